package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ckg/internal/history"
	"ckg/internal/lessons"
)

var lessonsCmd = &cobra.Command{
	Use:   "lessons",
	Short: "Manage learned lessons",
}

var lessonsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List lessons with effectiveness scores, active first",
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

		all, err := e.lessons.List()
		if err != nil {
			return err
		}
		if len(all) == 0 {
			fmt.Println("No lessons learned yet. Run 'ckg lessons extract' after some commits.")
			return nil
		}
		for _, l := range all {
			state := "active"
			if !l.Active {
				state = "inactive"
			}
			fmt.Printf("%.2f [%s] %s\n", l.Score, state, l.Text)
			if len(l.Tags) > 0 {
				fmt.Printf("     tags: %s\n", strings.Join(l.Tags, ", "))
			}
		}
		return nil
	},
}

var lessonsExtractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Mine recent commit messages for new lessons",
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

		commits, err := history.ReadLog(root, cfg.History.CommitWindow)
		if err != nil {
			return err
		}
		engine := lessons.NewEngine(e.lessons, lessons.Options{
			ScoreStep:  cfg.Lessons.ScoreStep,
			ScoreFloor: cfg.Lessons.ScoreFloor,
		}, logger)

		extracted := 0
		for _, c := range commits {
			l, err := engine.ExtractFromCommit(c.Hash, c.Message, c.Files)
			if err != nil {
				return err
			}
			if l != nil {
				extracted++
				fmt.Printf("+ %s\n", l.Text)
			}
		}
		fmt.Printf("Extracted %d lessons from %d commits\n", extracted, len(commits))
		return nil
	},
}

var (
	testPassed bool
	testFailed bool
	testFiles  []string
)

var lessonsRecordTestCmd = &cobra.Command{
	Use:   "record-test",
	Short: "Record a test outcome and update overlapping lesson scores",
	RunE: func(cmd *cobra.Command, args []string) error {
		if testPassed == testFailed {
			return fmt.Errorf("exactly one of --passed or --failed is required")
		}
		cfg, logger, root, err := loadConfig()
		if err != nil {
			return err
		}
		e, err := openEngine(cfg, logger, root, false)
		if err != nil {
			return err
		}
		defer e.Close()

		files := testFiles
		if len(files) == 0 {
			// Default to the files changed by the most recent commit.
			commits, err := history.ReadLog(root, 1)
			if err != nil {
				return err
			}
			if len(commits) > 0 {
				files = commits[0].Files
			}
		}

		engine := lessons.NewEngine(e.lessons, lessons.Options{
			ScoreStep:  cfg.Lessons.ScoreStep,
			ScoreFloor: cfg.Lessons.ScoreFloor,
		}, logger)
		if err := engine.RecordTestResult(testPassed, files); err != nil {
			return err
		}
		fmt.Printf("Recorded test outcome over %d files\n", len(files))
		return nil
	},
}

func init() {
	lessonsRecordTestCmd.Flags().BoolVar(&testPassed, "passed", false, "The test run passed")
	lessonsRecordTestCmd.Flags().BoolVar(&testFailed, "failed", false, "The test run failed")
	lessonsRecordTestCmd.Flags().StringSliceVar(&testFiles, "files", nil,
		"Changed files the outcome applies to (default: last commit's files)")

	lessonsCmd.AddCommand(lessonsListCmd)
	lessonsCmd.AddCommand(lessonsExtractCmd)
	lessonsCmd.AddCommand(lessonsRecordTestCmd)
	rootCmd.AddCommand(lessonsCmd)
}
