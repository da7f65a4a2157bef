package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/Lscheinman/odata/internal/config"
)

func newSetsCmd() *cobra.Command {
	var service string

	cmd := &cobra.Command{
		Use:   "sets [entity-set]",
		Short: "List the entity sets of a service, or the fields of one entity set.",
		Args:  cobra.MaximumNArgs(1),
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

			if len(args) == 1 {
				fields, err := engine.ListFields(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(fields)
			}

			sets, err := engine.ListEntitySets(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(sets)
		},
	}

	cmd.Flags().StringVar(&service, "service", "elements", "service to inspect: 'elements' or 'network'")
	return cmd
}
