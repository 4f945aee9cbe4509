// Package review collects structured opinions from a fixed reviewer
// panel. Collection fans out concurrently with per-reviewer timeouts;
// reviewers that fail, time out, or return malformed payloads are
// recorded as abstentions rather than failing the round.
package review

import (
	"context"
	"fmt"

	"github.com/gobwas/glob"

	"github.com/councilhq/council/internal/config"
	"github.com/councilhq/council/internal/council"
)

// Request carries the proposal version a reviewer is asked to evaluate,
// along with the reviewer's capability grants.
type Request struct {
	SessionID  string
	RoundIndex int
	Proposal   council.Proposal
	// PriorFeedback holds concerns from the previous round so a
	// revised proposal is evaluated against what was asked for.
	PriorFeedback []string
	// Capabilities lists the glob patterns for the tools this reviewer
	// has been granted. Set by the coordinator from the panel config.
	Capabilities []string
	// Allowed reports whether the grants cover the named tool. Sources
	// must consult it before using a tool on the reviewer's behalf.
	Allowed func(tool string) bool
}

// OpinionSource produces one reviewer's opinion on a proposal.
// Implementations wrap model calls, remote reviewers, or test stubs.
// Evaluate must honor ctx cancellation; the coordinator enforces the
// per-reviewer timeout through it.
type OpinionSource interface {
	Evaluate(ctx context.Context, req Request) (council.Opinion, error)
}

// OpinionSourceFunc adapts a function to the OpinionSource interface.
type OpinionSourceFunc func(ctx context.Context, req Request) (council.Opinion, error)

// Evaluate implements OpinionSource.
func (f OpinionSourceFunc) Evaluate(ctx context.Context, req Request) (council.Opinion, error) {
	return f(ctx, req)
}

// Reviewer binds a panel member's identity, weight, and capability
// grants to an opinion source.
type Reviewer struct {
	ID     string
	Role   string
	Weight float64
	Source OpinionSource

	capabilities []glob.Glob
	patterns     []string
}

// NewReviewer builds a Reviewer from panel configuration, compiling
// its capability patterns. An empty capability list grants nothing.
func NewReviewer(cfg config.ReviewerConfig, source OpinionSource) (*Reviewer, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("reviewer id cannot be empty")
	}
	if source == nil {
		return nil, fmt.Errorf("reviewer %s: opinion source cannot be nil", cfg.ID)
	}

	r := &Reviewer{
		ID:       cfg.ID,
		Role:     cfg.Role,
		Weight:   cfg.Weight,
		Source:   source,
		patterns: cfg.Capabilities,
	}
	for _, pattern := range cfg.Capabilities {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("reviewer %s: invalid capability pattern %q: %w", cfg.ID, pattern, err)
		}
		r.capabilities = append(r.capabilities, g)
	}
	return r, nil
}

// Can reports whether the reviewer's capability grants cover the named
// tool.
func (r *Reviewer) Can(tool string) bool {
	for _, g := range r.capabilities {
		if g.Match(tool) {
			return true
		}
	}
	return false
}

// Capabilities returns the raw capability patterns.
func (r *Reviewer) Capabilities() []string {
	return r.patterns
}
