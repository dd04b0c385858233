package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	searchBudget int
	searchJSON   bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Assemble a token-bounded context bundle for a task query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, root, err := loadConfig()
		if err != nil {
			return err
		}
		e, err := openEngine(cfg, logger, root, true)
		if err != nil {
			return err
		}
		defer e.Close()

		query := strings.Join(args, " ")
		res, err := e.assembler().Assemble(cmd.Context(), query, searchBudget)
		if err != nil {
			return err
		}

		if searchJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}

		for _, l := range res.Lessons {
			fmt.Printf("[lesson %.2f] %s\n", l.Score, l.Text)
		}
		if len(res.Lessons) > 0 {
			fmt.Println()
		}
		for _, item := range res.Items {
			fmt.Printf("%-8.4f %s (%d tokens)\n", item.Score, item.UnitID, item.Tokens)
		}
		fmt.Printf("\n%d units, %d/%d tokens", len(res.Items), res.TokensUsed, res.Budget)
		if !res.Quality.Complete() {
			var missing []string
			if !res.Quality.Semantic {
				missing = append(missing, "semantic")
			}
			if !res.Quality.Structural {
				missing = append(missing, "structural")
			}
			if !res.Quality.Temporal {
				missing = append(missing, "temporal")
			}
			if !res.Quality.CoMod {
				missing = append(missing, "co-modification")
			}
			fmt.Printf(" (missing signals: %s)", strings.Join(missing, ", "))
		}
		fmt.Println()
		return nil
	},
}

func init() {
	searchCmd.Flags().IntVar(&searchBudget, "budget", 0,
		"Token budget for the bundle (default: from config)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false,
		"Emit the full result as JSON, including excerpts")
	rootCmd.AddCommand(searchCmd)
}
