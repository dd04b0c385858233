package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ckg/internal/config"
	"ckg/internal/logging"
	"ckg/internal/version"
)

var (
	repoFlag      string
	logLevelFlag  string
	logFormatFlag string
)

var rootCmd = &cobra.Command{
	Use:   "ckg",
	Short: "CKG - Code Knowledge Graph",
	Long: `CKG (Code Knowledge Graph) indexes a repository into embedded code
units, fuses semantic, structural, temporal, and co-modification signals
into one weighted graph, and answers task queries with token-bounded
context bundles. It also learns lessons from commit and test history and
audits commits against the configured gate checks.`,
	Version: version.Version,
}

func init() {
	rootCmd.SetVersionTemplate("CKG version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&repoFlag, "repo", "",
		"Repository root (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "",
		"Log level: debug, info, warn, error (default: from config)")
	rootCmd.PersistentFlags().StringVar(&logFormatFlag, "log-format", "",
		"Log format: human or json (default: from config)")
}

// repoRoot resolves the target repository root.
func repoRoot() (string, error) {
	if repoFlag != "" {
		return repoFlag, nil
	}
	return os.Getwd()
}

// loadConfig loads the repo configuration and builds the logger from
// it, with CLI flags taking precedence.
func loadConfig() (*config.Config, *logging.Logger, string, error) {
	root, err := repoRoot()
	if err != nil {
		return nil, nil, "", err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return nil, nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, "", fmt.Errorf("invalid configuration: %w", err)
	}

	format := cfg.Logging.Format
	if logFormatFlag != "" {
		format = logFormatFlag
	}
	level := cfg.Logging.Level
	if logLevelFlag != "" {
		level = logLevelFlag
	}
	logger := logging.New(logging.Config{
		Format: logging.Format(format),
		Level:  logging.ParseLevel(level),
	})
	return cfg, logger, root, nil
}
