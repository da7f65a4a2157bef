package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Lscheinman/odata/internal/config"
	"github.com/Lscheinman/odata/internal/force"
	"github.com/Lscheinman/odata/internal/observability"
)

func newGraphCmd() *cobra.Command {
	var (
		depth      int
		relTypes   []string
		structural bool
		radius     int
		persist    bool
	)

	cmd := &cobra.Command{
		Use:   "graph <root-id>",
		Short: "Fetch the relationship network around a force element and print it as a graph.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Get()
			components, err := newComponents(cfg)
			if err != nil {
				return err
			}
			defer components.Shutdown()

			rels := relTypes
			if structural {
				rels = []string{force.RelStructure}
			}

			g, err := components.Force.BuildGraph(cmd.Context(), args[0], depth, rels)
			if err != nil {
				return err
			}

			if radius > 0 {
				g, err = components.Force.Graphs().Subgraph(g, args[0], radius)
				if err != nil {
					return err
				}
			}

			log := observability.GetLogger()
			if persist {
				st, err := components.SnapshotStore(cmd.Context(), cfg)
				if err != nil {
					return err
				}
				snapshotID, err := st.SaveGraph(cmd.Context(), args[0], g)
				if err != nil {
					return err
				}
				log.Info("Snapshot persisted", zap.String("snapshot_id", snapshotID))
			}

			return printJSON(g)
		},
	}

	cmd.Flags().IntVar(&depth, "depth", 2, "relationship hops to walk outward from the root")
	cmd.Flags().StringSliceVar(&relTypes, "rel", nil, "relationship subtypes to keep (default all)")
	cmd.Flags().BoolVar(&structural, "structural", false, "keep only structural relationships")
	cmd.Flags().IntVar(&radius, "radius", 0, "trim the result to nodes within this many hops of the root (0 keeps everything)")
	cmd.Flags().BoolVar(&persist, "persist", false, "save the graph as a snapshot in PostgreSQL")
	return cmd
}
