package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ckg/internal/pipeline"
)

var indexFull bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index the repository and rebuild the fused graph",
	Long: `Index walks the repository, splits files into units, embeds changed
fragments, derives the structural and history signals, fuses them into
the graph, and persists the snapshot. Unchanged fragments reuse their
stored embeddings.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, root, err := loadConfig()
		if err != nil {
			return err
		}
		e, err := openEngine(cfg, logger, root, false)
		if err != nil {
			return err
		}
		defer e.Close()

		driver := pipeline.NewDriver(root, []pipeline.Stage{
			pipeline.CollectStage{Root: root},
			pipeline.IndexStage{Embedder: e.embedder, Store: e.store, Logger: logger, Full: indexFull},
			pipeline.SignalStage{Root: root, Logger: logger},
			pipeline.FuseStage{Logger: logger},
			pipeline.PersistStage{Store: e.store},
			pipeline.PublishStage{Snapshots: e.snapshots},
		}, logger)

		st := &pipeline.State{Config: cfg}
		if err := driver.Run(cmd.Context(), st); err != nil {
			return err
		}

		fmt.Printf("Indexed %d files into %d units (%d embedded, %d cached, %d degraded)\n",
			st.Stats.Files, st.Stats.Units, st.Stats.EmbedCalls, st.Stats.CacheHits, st.Stats.Degraded)
		fmt.Printf("Graph: %d units, %d fused edges\n", st.Graph.NumUnits(), st.Graph.NumEdges())
		return nil
	},
}

func init() {
	indexCmd.Flags().BoolVar(&indexFull, "full", false,
		"Re-embed every fragment instead of reusing cached vectors")
	rootCmd.AddCommand(indexCmd)
}
