package main

import (
	"os"

	"github.com/spf13/cobra"

	"ckg/internal/mcp"
	"ckg/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the engine over stdio JSON-RPC",
	Long: `Serve speaks line-delimited JSON-RPC on stdin/stdout for editor
integrations. Exposed tools: search, lessons, guardian_status.`,
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

		g, auditStore, err := newGuardian(cfg, logger, root)
		if err != nil {
			return err
		}
		defer auditStore.Close()

		server := mcp.NewServer(version.Info(), os.Stdin, os.Stdout,
			e.assembler(), e.lessons, g, logger)
		return server.Serve(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
