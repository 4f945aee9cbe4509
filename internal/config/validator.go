package config

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "debate.max_rounds")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// weightTolerance allows for float accumulation error when checking
// that panel weights sum to 1.0.
const weightTolerance = 0.001

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateReview()...)
	errors = append(errors, c.validateDebate()...)
	errors = append(errors, c.validateConsensus()...)
	errors = append(errors, c.validateAdjudicator()...)
	errors = append(errors, c.validateWorkflow()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

func (c *Config) validateReview() []ValidationError {
	var errors []ValidationError

	if c.Review.OpinionTimeoutSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "review.opinion_timeout_seconds",
			Value:   c.Review.OpinionTimeoutSeconds,
			Message: "must be zero (derived) or positive",
		})
	}

	seen := make(map[string]bool)
	var weightSum float64
	for i, r := range c.Review.Reviewers {
		field := fmt.Sprintf("review.reviewers[%d]", i)
		if r.ID == "" {
			errors = append(errors, ValidationError{
				Field:   field + ".id",
				Value:   r.ID,
				Message: "reviewer id must not be empty",
			})
		}
		if seen[r.ID] {
			errors = append(errors, ValidationError{
				Field:   field + ".id",
				Value:   r.ID,
				Message: "duplicate reviewer id",
			})
		}
		seen[r.ID] = true
		if r.Weight < 0 || r.Weight > 1 {
			errors = append(errors, ValidationError{
				Field:   field + ".weight",
				Value:   r.Weight,
				Message: "must be between 0 and 1",
			})
		}
		weightSum += r.Weight
	}

	if len(c.Review.Reviewers) > 0 && math.Abs(weightSum-1.0) > weightTolerance {
		errors = append(errors, ValidationError{
			Field:   "review.reviewers",
			Value:   weightSum,
			Message: "reviewer weights must sum to 1.0",
		})
	}

	return errors
}

func (c *Config) validateDebate() []ValidationError {
	var errors []ValidationError

	if c.Debate.MaxRounds < 1 || c.Debate.MaxRounds > 10 {
		errors = append(errors, ValidationError{
			Field:   "debate.max_rounds",
			Value:   c.Debate.MaxRounds,
			Message: "must be between 1 and 10",
		})
	}
	if c.Debate.RoundTimeoutSeconds < 1 || c.Debate.RoundTimeoutSeconds > 60 {
		errors = append(errors, ValidationError{
			Field:   "debate.round_timeout_seconds",
			Value:   c.Debate.RoundTimeoutSeconds,
			Message: "must be between 1 and 60",
		})
	}
	if c.Debate.RepetitionSimilarityThreshold < 0.5 || c.Debate.RepetitionSimilarityThreshold > 1.0 {
		errors = append(errors, ValidationError{
			Field:   "debate.repetition_similarity_threshold",
			Value:   c.Debate.RepetitionSimilarityThreshold,
			Message: "must be between 0.5 and 1.0",
		})
	}

	return errors
}

func (c *Config) validateConsensus() []ValidationError {
	var errors []ValidationError

	if c.Consensus.Threshold <= 0 || c.Consensus.Threshold > 1 {
		errors = append(errors, ValidationError{
			Field:   "consensus.threshold",
			Value:   c.Consensus.Threshold,
			Message: "must be between 0 (exclusive) and 1",
		})
	}
	if c.Consensus.DefaultWeight < 0 || c.Consensus.DefaultWeight > 1 {
		errors = append(errors, ValidationError{
			Field:   "consensus.default_weight",
			Value:   c.Consensus.DefaultWeight,
			Message: "must be between 0 and 1",
		})
	}
	for role, w := range c.Consensus.Weights {
		if w < 0 || w > 1 {
			errors = append(errors, ValidationError{
				Field:   "consensus.weights." + role,
				Value:   w,
				Message: "must be between 0 and 1",
			})
		}
	}

	return errors
}

func (c *Config) validateAdjudicator() []ValidationError {
	var errors []ValidationError

	if c.Adjudicator.MaxRuns < 1 || c.Adjudicator.MaxRuns > 3 {
		errors = append(errors, ValidationError{
			Field:   "adjudicator.max_runs",
			Value:   c.Adjudicator.MaxRuns,
			Message: "must be between 1 and 3",
		})
	}

	return errors
}

func (c *Config) validateWorkflow() []ValidationError {
	var errors []ValidationError

	if c.Workflow.MaxRevisions < 1 {
		errors = append(errors, ValidationError{
			Field:   "workflow.max_revisions",
			Value:   c.Workflow.MaxRevisions,
			Message: "must be at least 1",
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}
