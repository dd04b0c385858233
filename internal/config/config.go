// Package config loads and persists engine configuration from
// .ckg/config.toml. Tunables that operators are expected to adjust
// (fusion weights, score step, traversal bounds) live here rather
// than as constants.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// Dir is the engine state directory relative to the repo root.
const Dir = ".ckg"

// Config is the complete engine configuration.
type Config struct {
	Version  int    `toml:"version" mapstructure:"version"`
	RepoRoot string `toml:"repoRoot" mapstructure:"repoRoot"`

	Index    IndexConfig    `toml:"index" mapstructure:"index"`
	Fusion   FusionConfig   `toml:"fusion" mapstructure:"fusion"`
	History  HistoryConfig  `toml:"history" mapstructure:"history"`
	Assemble AssembleConfig `toml:"assemble" mapstructure:"assemble"`
	Lessons  LessonsConfig  `toml:"lessons" mapstructure:"lessons"`
	Guardian GuardianConfig `toml:"guardian" mapstructure:"guardian"`
	Logging  LoggingConfig  `toml:"logging" mapstructure:"logging"`
}

// IndexConfig tunes the chunk indexer.
type IndexConfig struct {
	// Excludes are doublestar glob patterns skipped during the walk.
	Excludes []string `toml:"excludes" mapstructure:"excludes"`
	// MaxFragmentTokens bounds the estimated token size of one fragment.
	MaxFragmentTokens int `toml:"maxFragmentTokens" mapstructure:"maxFragmentTokens"`
	// WindowLines is the fallback window size for non-parseable files.
	WindowLines int `toml:"windowLines" mapstructure:"windowLines"`
	// EmbedTimeoutMs bounds a single embedding backend call.
	EmbedTimeoutMs int `toml:"embedTimeoutMs" mapstructure:"embedTimeoutMs"`
	// Workers is the per-file embedding fan-out width.
	Workers int `toml:"workers" mapstructure:"workers"`
}

// FusionConfig holds the per-signal weights for combining edges.
// Defaults are equal weighting; the true mix is a tunable, not a
// measured constant.
type FusionConfig struct {
	Semantic   float64 `toml:"semantic" mapstructure:"semantic"`
	Structural float64 `toml:"structural" mapstructure:"structural"`
	Temporal   float64 `toml:"temporal" mapstructure:"temporal"`
	CoMod      float64 `toml:"comod" mapstructure:"comod"`
}

// HistoryConfig tunes the history miner.
type HistoryConfig struct {
	// CommitWindow is the sliding window of commits considered for
	// co-modification.
	CommitWindow int `toml:"commitWindow" mapstructure:"commitWindow"`
	// HalfLifeDays controls the exponential decay of temporal edges.
	HalfLifeDays float64 `toml:"halfLifeDays" mapstructure:"halfLifeDays"`
}

// AssembleConfig tunes the context assembler.
type AssembleConfig struct {
	SeedK         int `toml:"seedK" mapstructure:"seedK"`
	MaxHops       int `toml:"maxHops" mapstructure:"maxHops"`
	DefaultBudget int `toml:"defaultBudget" mapstructure:"defaultBudget"`
	LessonCount   int `toml:"lessonCount" mapstructure:"lessonCount"`
}

// LessonsConfig tunes the auto-learning engine.
type LessonsConfig struct {
	ScoreStep  float64 `toml:"scoreStep" mapstructure:"scoreStep"`
	ScoreFloor float64 `toml:"scoreFloor" mapstructure:"scoreFloor"`
}

// GuardianConfig tunes the hook guardian.
type GuardianConfig struct {
	// ChecksFile is the gate-check manifest, relative to the repo root.
	ChecksFile string `toml:"checksFile" mapstructure:"checksFile"`
}

// LoggingConfig selects log format and level.
type LoggingConfig struct {
	Format string `toml:"format" mapstructure:"format"`
	Level  string `toml:"level" mapstructure:"level"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Version:  1,
		RepoRoot: ".",
		Index: IndexConfig{
			Excludes:          []string{"vendor/**", "node_modules/**", ".git/**", Dir + "/**", "dist/**"},
			MaxFragmentTokens: 800,
			WindowLines:       60,
			EmbedTimeoutMs:    10000,
			Workers:           4,
		},
		Fusion: FusionConfig{
			Semantic:   0.25,
			Structural: 0.25,
			Temporal:   0.25,
			CoMod:      0.25,
		},
		History: HistoryConfig{
			CommitWindow: 100,
			HalfLifeDays: 7,
		},
		Assemble: AssembleConfig{
			SeedK:         10,
			MaxHops:       2,
			DefaultBudget: 4000,
			LessonCount:   3,
		},
		Lessons: LessonsConfig{
			ScoreStep:  0.1,
			ScoreFloor: 0.1,
		},
		Guardian: GuardianConfig{
			ChecksFile: filepath.Join(Dir, "checks.yaml"),
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// Load reads configuration from <repoRoot>/.ckg/config.toml, applying
// CKG_* environment overrides. A missing file yields the defaults.
func Load(repoRoot string) (*Config, error) {
	v := viper.New()

	def := Default()
	v.SetDefault("version", def.Version)
	v.SetDefault("repoRoot", def.RepoRoot)
	v.SetDefault("index", structMap(def.Index))
	v.SetDefault("fusion", structMap(def.Fusion))
	v.SetDefault("history", structMap(def.History))
	v.SetDefault("assemble", structMap(def.Assemble))
	v.SetDefault("lessons", structMap(def.Lessons))
	v.SetDefault("guardian", structMap(def.Guardian))
	v.SetDefault("logging", structMap(def.Logging))

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(filepath.Join(repoRoot, Dir))
	v.SetEnvPrefix("CKG")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return def, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// Save writes the configuration to <repoRoot>/.ckg/config.toml.
func (c *Config) Save(repoRoot string) error {
	dir := filepath.Join(repoRoot, Dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "config.toml"), data, 0o644)
}

// Validate checks invariants the engine relies on.
func (c *Config) Validate() error {
	sum := c.Fusion.Semantic + c.Fusion.Structural + c.Fusion.Temporal + c.Fusion.CoMod
	if sum <= 0 {
		return fmt.Errorf("fusion weights must sum to a positive value, got %v", sum)
	}
	if c.Index.MaxFragmentTokens <= 0 {
		return fmt.Errorf("index.maxFragmentTokens must be positive")
	}
	if c.Lessons.ScoreStep <= 0 || c.Lessons.ScoreStep > 1 {
		return fmt.Errorf("lessons.scoreStep must be in (0,1]")
	}
	if c.Assemble.MaxHops < 0 {
		return fmt.Errorf("assemble.maxHops must be non-negative")
	}
	return nil
}

// structMap converts a config section to a map for viper defaults.
func structMap(section interface{}) map[string]interface{} {
	data, err := toml.Marshal(section)
	if err != nil {
		return nil
	}
	var m map[string]interface{}
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil
	}
	return m
}
