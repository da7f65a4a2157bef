package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Lscheinman/odata/internal/config"
	"github.com/Lscheinman/odata/internal/observability"
)

func newTreeCmd() *cobra.Command {
	var (
		hierarchyType string
		maxDepth      int
	)

	cmd := &cobra.Command{
		Use:   "tree <root-id>",
		Short: "Fetch and print the subtree below a force element for one hierarchy type.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			components, err := newComponents(config.Get())
			if err != nil {
				return err
			}
			defer components.Shutdown()

			root, stats, err := components.Force.BuildTree(cmd.Context(), args[0], hierarchyType, maxDepth)
			if err != nil {
				return err
			}

			log := observability.GetLogger()
			if stats.SkippedCycles > 0 {
				log.Warn("Parent pointers form cycles, affected subtrees were cut",
					zap.Int("skipped", stats.SkippedCycles),
					zap.Strings("ids", stats.CycleIDs))
			}
			log.Info("Tree built",
				zap.Int("nodes", stats.Nodes),
				zap.Int("max_depth_reached", stats.MaxDepthReached))

			return printJSON(struct {
				Tree  any `json:"tree"`
				Stats any `json:"stats"`
			}{root, stats})
		},
	}

	cmd.Flags().StringVar(&hierarchyType, "hierarchy", "structure", "hierarchy type: structure, peacetime, wartime, operation or exercise")
	cmd.Flags().IntVar(&maxDepth, "max-depth", 5, "levels to descend below the root")
	return cmd
}
