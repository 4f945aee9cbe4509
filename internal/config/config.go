package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete council configuration.
// A Config is constructed once at session start and threaded explicitly
// through the review, debate, consensus, and adjudication engines.
type Config struct {
	Review      ReviewConfig      `mapstructure:"review"`
	Debate      DebateConfig      `mapstructure:"debate"`
	Consensus   ConsensusConfig   `mapstructure:"consensus"`
	Adjudicator AdjudicatorConfig `mapstructure:"adjudicator"`
	Workflow    WorkflowConfig    `mapstructure:"workflow"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Paths       PathsConfig       `mapstructure:"paths"`
}

// ReviewerConfig describes one member of the review panel.
type ReviewerConfig struct {
	// ID is the reviewer's unique identity within the panel.
	ID string `mapstructure:"id"`
	// Role selects the weight applied to this reviewer's vote.
	Role string `mapstructure:"role"`
	// Weight is this reviewer's share of the consensus score.
	// Weights across the panel should sum to 1.0.
	Weight float64 `mapstructure:"weight"`
	// Capabilities lists glob patterns for the tools this reviewer may
	// request during evaluation (e.g., "search:*", "lint:go").
	Capabilities []string `mapstructure:"capabilities"`
}

// ReviewConfig controls opinion collection.
type ReviewConfig struct {
	// Reviewers is the fixed panel consulted every round.
	Reviewers []ReviewerConfig `mapstructure:"reviewers"`
	// OpinionTimeoutSeconds bounds each individual reviewer call.
	// Zero derives the timeout from the debate round timeout.
	OpinionTimeoutSeconds int `mapstructure:"opinion_timeout_seconds"`
}

// OpinionTimeout returns the per-reviewer timeout, deriving it from the
// debate round timeout when unset.
func (c *ReviewConfig) OpinionTimeout(debate *DebateConfig) time.Duration {
	if c.OpinionTimeoutSeconds > 0 {
		return time.Duration(c.OpinionTimeoutSeconds) * time.Second
	}
	return 2 * debate.RoundTimeout()
}

// DebateConfig controls bounded debate rounds and their safeguards.
type DebateConfig struct {
	// MaxRounds is the debate round budget per disagreement (1-10).
	MaxRounds int `mapstructure:"max_rounds"`
	// RoundTimeoutSeconds is the wall-clock budget per round (1-60).
	RoundTimeoutSeconds int `mapstructure:"round_timeout_seconds"`
	// RepetitionSimilarityThreshold forces resolution when consecutive
	// rounds restate near-identical positions (0.5-1.0).
	RepetitionSimilarityThreshold float64 `mapstructure:"repetition_similarity_threshold"`
	// EnableRepetitionDetection toggles the repetition safeguard.
	EnableRepetitionDetection bool `mapstructure:"enable_repetition_detection"`
	// EnableForcedConsensus toggles all forced-resolution safeguards.
	// When disabled, debates that exhaust their budget are left unresolved.
	EnableForcedConsensus bool `mapstructure:"enable_forced_consensus"`
}

// RoundTimeout returns the per-round wall-clock budget, clamped to 1-60s.
func (c *DebateConfig) RoundTimeout() time.Duration {
	secs := c.RoundTimeoutSeconds
	if secs < 1 {
		secs = 1
	}
	if secs > 60 {
		secs = 60
	}
	return time.Duration(secs) * time.Second
}

// RoundBudget returns the debate round budget, clamped to 1-10.
func (c *DebateConfig) RoundBudget() int {
	rounds := c.MaxRounds
	if rounds < 1 {
		rounds = 1
	}
	if rounds > 10 {
		rounds = 10
	}
	return rounds
}

// ConsensusConfig controls weighted consensus scoring.
type ConsensusConfig struct {
	// Threshold is the minimum final score for consensus (default 0.65).
	Threshold float64 `mapstructure:"threshold"`
	// Weights maps reviewer roles to their vote weight. Reviewers whose
	// role is absent fall back to DefaultWeight.
	Weights map[string]float64 `mapstructure:"weights"`
	// DefaultWeight applies to roles missing from the weight table.
	DefaultWeight float64 `mapstructure:"default_weight"`
}

// WeightFor returns the weight for a reviewer role.
func (c *ConsensusConfig) WeightFor(role string) float64 {
	if w, ok := c.Weights[role]; ok {
		return w
	}
	return c.DefaultWeight
}

// AdjudicatorConfig controls the run-once adjudication step.
type AdjudicatorConfig struct {
	// MaxRuns bounds adjudicator invocations per session (1-3).
	MaxRuns int `mapstructure:"max_runs"`
}

// RunBudget returns the adjudicator invocation budget, clamped to 1-3.
func (c *AdjudicatorConfig) RunBudget() int {
	runs := c.MaxRuns
	if runs < 1 {
		runs = 1
	}
	if runs > 3 {
		runs = 3
	}
	return runs
}

// WorkflowConfig controls the outer revision loop.
type WorkflowConfig struct {
	// MaxRevisions bounds proposal revision cycles before the run is
	// escalated to a human (default 3).
	MaxRevisions int `mapstructure:"max_revisions"`
}

// LoggingConfig controls session logging behavior.
type LoggingConfig struct {
	// Enabled turns session debug logging on or off (default: true).
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", or "error".
	Level string `mapstructure:"level"`
}

// PathsConfig controls where session state is stored.
type PathsConfig struct {
	// SessionDir is the base directory for session snapshots and logs.
	// Empty means ~/.council/sessions.
	SessionDir string `mapstructure:"session_dir"`
}

// ResolveSessionDir returns the resolved session directory path,
// expanding a leading ~ to the user's home directory.
func (p *PathsConfig) ResolveSessionDir() string {
	path := p.SessionDir
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ".council"
		}
		return filepath.Join(home, ".council", "sessions")
	}
	if len(path) >= 2 && path[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return path
}

// Default returns a Config populated with default values.
func Default() *Config {
	return &Config{
		Review: ReviewConfig{
			Reviewers: []ReviewerConfig{
				{ID: "lead", Role: "lead", Weight: 0.40, Capabilities: []string{"*"}},
				{ID: "security", Role: "security", Weight: 0.35, Capabilities: []string{"search:*", "audit:*"}},
				{ID: "integration", Role: "specialist", Weight: 0.25, Capabilities: []string{"search:*"}},
			},
		},
		Debate: DebateConfig{
			MaxRounds:                     3,
			RoundTimeoutSeconds:           15,
			RepetitionSimilarityThreshold: 0.85,
			EnableRepetitionDetection:     true,
			EnableForcedConsensus:         true,
		},
		Consensus: ConsensusConfig{
			Threshold: 0.65,
			Weights: map[string]float64{
				"lead":       0.40,
				"security":   0.35,
				"specialist": 0.25,
			},
			DefaultWeight: 0.05,
		},
		Adjudicator: AdjudicatorConfig{
			MaxRuns: 1,
		},
		Workflow: WorkflowConfig{
			MaxRevisions: 3,
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   "info",
		},
		Paths: PathsConfig{},
	}
}

// SetDefaults registers all default values with viper.
func SetDefaults() {
	defaults := Default()

	// Review defaults
	viper.SetDefault("review.opinion_timeout_seconds", defaults.Review.OpinionTimeoutSeconds)

	// Debate defaults
	viper.SetDefault("debate.max_rounds", defaults.Debate.MaxRounds)
	viper.SetDefault("debate.round_timeout_seconds", defaults.Debate.RoundTimeoutSeconds)
	viper.SetDefault("debate.repetition_similarity_threshold", defaults.Debate.RepetitionSimilarityThreshold)
	viper.SetDefault("debate.enable_repetition_detection", defaults.Debate.EnableRepetitionDetection)
	viper.SetDefault("debate.enable_forced_consensus", defaults.Debate.EnableForcedConsensus)

	// Consensus defaults
	viper.SetDefault("consensus.threshold", defaults.Consensus.Threshold)
	viper.SetDefault("consensus.weights", defaults.Consensus.Weights)
	viper.SetDefault("consensus.default_weight", defaults.Consensus.DefaultWeight)

	// Adjudicator defaults
	viper.SetDefault("adjudicator.max_runs", defaults.Adjudicator.MaxRuns)

	// Workflow defaults
	viper.SetDefault("workflow.max_revisions", defaults.Workflow.MaxRevisions)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)

	// Paths defaults
	viper.SetDefault("paths.session_dir", defaults.Paths.SessionDir)
}

// Load reads the configuration from viper into a Config struct and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// The reviewer panel has no viper default (SetDefault on a struct
	// slice does not survive Unmarshal), so fall back explicitly.
	if len(cfg.Review.Reviewers) == 0 {
		cfg.Review.Reviewers = Default().Review.Reviewers
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "council")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".council"
	}
	return filepath.Join(home, ".config", "council")
}

// ConfigFile returns the path to the config file.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
