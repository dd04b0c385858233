package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"ckg/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the state directory and default configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := repoRoot()
		if err != nil {
			return err
		}

		stateDir := config.StateDir(root)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", stateDir, err)
		}

		configPath := filepath.Join(stateDir, "config.toml")
		if _, err := os.Stat(configPath); err == nil {
			fmt.Printf("Already initialized: %s\n", configPath)
			return nil
		}

		cfg := config.Default()
		cfg.RepoRoot = root
		if err := cfg.Save(root); err != nil {
			return err
		}

		checksPath := filepath.Join(stateDir, "checks.yaml")
		if _, err := os.Stat(checksPath); os.IsNotExist(err) {
			if err := os.WriteFile(checksPath, []byte(defaultChecks), 0644); err != nil {
				return fmt.Errorf("failed to write checks manifest: %w", err)
			}
		}

		fmt.Printf("Initialized %s\n", stateDir)
		fmt.Println("Edit checks.yaml to configure the commit gate, then run 'ckg index'.")
		return nil
	},
}

// defaultChecks is a starting gate manifest; every entry is a command
// run from the repo root that must exit zero for the gate to pass.
const defaultChecks = `# Commit gate checks. Each command must exit zero.
checks: []
# Example:
# checks:
#   - name: vet
#     command: ["go", "vet", "./..."]
#   - name: test
#     command: ["go", "test", "./..."]
#     timeoutMs: 300000
`

func init() {
	rootCmd.AddCommand(initCmd)
}
