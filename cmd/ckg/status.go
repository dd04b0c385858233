package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ckg/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index and store status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, root, err := loadConfig()
		if err != nil {
			return err
		}

		if _, err := os.Stat(config.StateDir(root)); os.IsNotExist(err) {
			fmt.Println("Not initialized. Run 'ckg init' first.")
			return nil
		}

		e, err := openEngine(cfg, logger, root, true)
		if err != nil {
			return err
		}
		defer e.Close()

		g := e.snapshots.Graph()
		fmt.Printf("Repository: %s\n", root)
		fmt.Printf("Units:      %d\n", g.NumUnits())
		fmt.Printf("Edges:      %d\n", g.NumEdges())
		if len(g.Signals) > 0 {
			fmt.Print("Signals:    ")
			for i, s := range g.Signals {
				if i > 0 {
					fmt.Print(", ")
				}
				fmt.Print(string(s))
			}
			fmt.Println()
		} else {
			fmt.Println("Signals:    none (run 'ckg index')")
		}

		lessonsAll, err := e.lessons.List()
		if err != nil {
			return err
		}
		active := 0
		for _, l := range lessonsAll {
			if l.Active {
				active++
			}
		}
		fmt.Printf("Lessons:    %d (%d active)\n", len(lessonsAll), active)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
