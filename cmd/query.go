package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Lscheinman/odata/internal/config"
	"github.com/Lscheinman/odata/internal/observability"
	"github.com/Lscheinman/odata/internal/odata"
)

func newQueryCmd() *cobra.Command {
	var (
		service  string
		fields   []string
		filter   string
		orderBy  string
		top      int
		skip     int
		expand   string
		maxPages int
		validate bool
	)

	cmd := &cobra.Command{
		Use:   "query <entity-set>",
		Short: "Run a raw query against an entity set and print the records.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			components, err := newComponents(config.Get())
			if err != nil {
				return err
			}
			defer components.Shutdown()

			engine := components.Elements
			if strings.EqualFold(service, "network") {
				engine = components.Network
			}

			res, err := engine.Query(cmd.Context(), odata.Request{
				EntitySet:      args[0],
				Fields:         fields,
				Filter:         filter,
				OrderBy:        orderBy,
				Top:            top,
				Skip:           skip,
				Expand:         expand,
				MaxPages:       maxPages,
				ValidateFields: validate,
			})
			if err != nil {
				return err
			}

			if res.Truncated {
				observability.GetLogger().Warn("Result truncated by page bound",
					zap.Int("pages", res.Pages),
					zap.Int("records", len(res.Records)))
			}
			return printJSON(res)
		},
	}

	cmd.Flags().StringVar(&service, "service", "elements", "engine to query: 'elements' or 'network'")
	cmd.Flags().StringSliceVar(&fields, "fields", nil, "fields to select")
	cmd.Flags().StringVar(&filter, "filter", "", "raw $filter expression")
	cmd.Flags().StringVar(&orderBy, "order-by", "", "raw $orderby expression")
	cmd.Flags().IntVar(&top, "top", 0, "page size (0 uses the configured default)")
	cmd.Flags().IntVar(&skip, "skip", 0, "records to skip")
	cmd.Flags().StringVar(&expand, "expand", "", "raw $expand expression")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "continuation pages to follow (0 uses the configured default)")
	cmd.Flags().BoolVar(&validate, "validate-fields", true, "drop unknown fields from $select using the service schema")

	return cmd
}

func newElementCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "element <id>",
		Short: "Read one force element by its identifier.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			components, err := newComponents(config.Get())
			if err != nil {
				return err
			}
			defer components.Shutdown()

			rec, err := components.Force.Element(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(rec)
		},
	}
}
