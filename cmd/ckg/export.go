package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/cobra"

	"ckg/internal/chunk"
	"ckg/internal/fusion"
)

var exportOut string

// exportedGraph is the stable export shape for downstream tooling.
type exportedGraph struct {
	Version int            `json:"version"`
	Units   []exportedUnit `json:"units"`
	Edges   []fusion.Edge  `json:"edges"`
}

type exportedUnit struct {
	ID        string `json:"id"`
	Path      string `json:"path"`
	StartLine int    `json:"startLine"`
	EndLine   int    `json:"endLine"`
	Symbol    string `json:"symbol,omitempty"`
	Language  string `json:"language"`
	Hash      string `json:"hash"`
	Degraded  bool   `json:"degraded,omitempty"`
	Tokens    int    `json:"tokens"`
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the fused graph as JSON",
	Long: `Export writes the fused graph, with per-kind edge weights, as JSON.
An output path ending in .zst is zstd-compressed; '-' writes plain JSON
to stdout.`,
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

		g := e.snapshots.Graph()
		out := exportedGraph{Version: 1, Edges: g.Edges()}
		g.Each(func(u *chunk.Unit) {
			out.Units = append(out.Units, exportedUnit{
				ID:        u.ID,
				Path:      u.Path,
				StartLine: u.StartLine,
				EndLine:   u.EndLine,
				Symbol:    u.Symbol,
				Language:  string(u.Language),
				Hash:      u.Hash,
				Degraded:  u.Degraded,
				Tokens:    u.Tokens(),
			})
		})

		if exportOut == "-" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}

		f, err := os.Create(exportOut)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", exportOut, err)
		}
		defer f.Close()

		if strings.HasSuffix(exportOut, ".zst") {
			zw, err := zstd.NewWriter(f)
			if err != nil {
				return err
			}
			if err := json.NewEncoder(zw).Encode(out); err != nil {
				zw.Close()
				return err
			}
			if err := zw.Close(); err != nil {
				return err
			}
		} else {
			enc := json.NewEncoder(f)
			enc.SetIndent("", "  ")
			if err := enc.Encode(out); err != nil {
				return err
			}
		}
		fmt.Printf("Exported %d units, %d edges to %s\n", len(out.Units), len(out.Edges), exportOut)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "-",
		"Output path (.zst for compressed, '-' for stdout)")
	rootCmd.AddCommand(exportCmd)
}
