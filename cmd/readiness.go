package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Lscheinman/odata/internal/config"
)

func newReadinessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "readiness <id> [id...]",
		Short: "Fetch readiness indicators for force elements and print their snapshots.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			components, err := newComponents(config.Get())
			if err != nil {
				return err
			}
			defer components.Shutdown()

			snapshots, err := components.Force.FetchReadiness(cmd.Context(), args)
			if err != nil {
				return err
			}
			return printJSON(snapshots)
		},
	}
}
