package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ckg/internal/config"
	"ckg/internal/history"
	"ckg/internal/lessons"
)

var guardianCmd = &cobra.Command{
	Use:   "guardian",
	Short: "Commit gate audit",
	Long: `Guardian tracks whether each commit passed the configured gate
checks. 'gate' runs from the pre-commit hook and certifies the tree
with an atomic marker; 'record' runs from the post-commit hook and
resolves the marker into a VERIFIED or BYPASSED record. 'reconcile'
reruns the checks against bypassed commits' own trees.`,
}

var guardianGateCmd = &cobra.Command{
	Use:   "gate",
	Short: "Run the gate checks and certify the working tree (pre-commit)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, root, err := loadConfig()
		if err != nil {
			return err
		}
		g, store, err := newGuardian(cfg, logger, root)
		if err != nil {
			return err
		}
		defer store.Close()

		key, err := g.RunGate(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Gate passed, marker %s\n", key[:12])
		return nil
	},
}

var guardianRecordCmd = &cobra.Command{
	Use:   "record",
	Short: "Resolve the just-created commit against the marker store (post-commit)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, root, err := loadConfig()
		if err != nil {
			return err
		}
		g, store, err := newGuardian(cfg, logger, root)
		if err != nil {
			return err
		}
		defer store.Close()

		// Bypasses feed the lesson store so the assembler can surface
		// the pattern later.
		lessonStore, err := lessons.OpenStore(config.LessonsDBPath(root), logger)
		if err != nil {
			return err
		}
		defer lessonStore.Close()
		g.Learner = lessons.NewEngine(lessonStore, lessons.Options{
			ScoreStep:  cfg.Lessons.ScoreStep,
			ScoreFloor: cfg.Lessons.ScoreFloor,
		}, logger)

		commits, err := history.ReadLog(root, 1)
		if err != nil {
			return err
		}
		if len(commits) == 0 {
			return fmt.Errorf("no commits to record")
		}
		head := commits[0]

		rec, err := g.RecordCommit(cmd.Context(), head.Hash, head.Message)
		if err != nil {
			return err
		}
		if rec.Bypassed {
			fmt.Printf("BYPASS DETECTED: commit %.8s skipped the gate\n", rec.Hash)
			fmt.Println("Run 'ckg guardian reconcile' to rerun the checks.")
		} else {
			fmt.Printf("Commit %.8s verified\n", rec.Hash)
		}
		return nil
	},
}

var guardianReconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Rerun gate checks against bypassed commits' trees",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, root, err := loadConfig()
		if err != nil {
			return err
		}
		g, store, err := newGuardian(cfg, logger, root)
		if err != nil {
			return err
		}
		defer store.Close()

		fixed, open, err := g.Reconcile(cmd.Context())
		if err != nil {
			return err
		}
		for _, r := range fixed {
			fmt.Printf("VERIFIED_RETROACTIVE %.8s %s\n", r.Hash, r.Message)
		}
		for _, r := range open {
			fmt.Printf("STILL BYPASSED       %.8s %s\n", r.Hash, r.Message)
		}
		if len(open) > 0 {
			return fmt.Errorf("%d commits remain open compliance issues", len(open))
		}
		fmt.Printf("Reconciled %d commits, no open issues\n", len(fixed))
		return nil
	},
}

var guardianStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the audit summary and recent records",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, root, err := loadConfig()
		if err != nil {
			return err
		}
		g, store, err := newGuardian(cfg, logger, root)
		if err != nil {
			return err
		}
		defer store.Close()

		summary, records, err := g.Status()
		if err != nil {
			return err
		}
		fmt.Printf("Tracked commits:  %d\n", summary.Total)
		fmt.Printf("Verified:         %d\n", summary.Verified)
		fmt.Printf("Bypassed (open):  %d\n", summary.Bypassed)
		fmt.Printf("Retroactive:      %d\n", summary.Retroactive)
		if summary.Total > 0 {
			fmt.Printf("Bypass rate:      %.1f%%\n", summary.BypassRate*100)
		}
		if len(records) > 0 {
			fmt.Println("\nRecent commits:")
			max := len(records)
			if max > 10 {
				max = 10
			}
			for _, r := range records[:max] {
				fmt.Printf("  [%s] %.8s %s\n", r.Status, r.Hash, r.Message)
			}
		}
		return nil
	},
}

func init() {
	guardianCmd.AddCommand(guardianGateCmd)
	guardianCmd.AddCommand(guardianRecordCmd)
	guardianCmd.AddCommand(guardianReconcileCmd)
	guardianCmd.AddCommand(guardianStatusCmd)
	rootCmd.AddCommand(guardianCmd)
}
