package review

import (
	"context"
	"sort"
	"time"

	"github.com/councilhq/council/internal/config"
	"github.com/councilhq/council/internal/council"
	"github.com/councilhq/council/internal/errors"
	"github.com/councilhq/council/internal/event"
	"github.com/councilhq/council/internal/logging"
)

// Coordinator fans a proposal out to the reviewer panel and assembles
// the collected opinions into a Round.
type Coordinator struct {
	panel   []*Reviewer
	timeout time.Duration
	bus     *event.Bus
	logger  *logging.Logger
}

// NewCoordinator builds a Coordinator over the given panel.
func NewCoordinator(panel []*Reviewer, cfg *config.Config, bus *event.Bus, logger *logging.Logger) (*Coordinator, error) {
	if len(panel) == 0 {
		return nil, errors.ErrNoReviewers
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Coordinator{
		panel:   panel,
		timeout: cfg.Review.OpinionTimeout(&cfg.Debate),
		bus:     bus,
		logger:  logger.WithComponent("review"),
	}, nil
}

// Panel returns the reviewers consulted each round.
func (c *Coordinator) Panel() []*Reviewer {
	return c.panel
}

type collectResult struct {
	reviewer string
	opinion  council.Opinion
	err      error
}

// Collect asks every panel member for an opinion on the proposal
// concurrently and returns the assembled round. Reviewers that error,
// time out, or return a malformed opinion become abstentions; the
// round fails only when every reviewer abstained.
func (c *Coordinator) Collect(ctx context.Context, sessionID string, roundIndex int, proposal council.Proposal, priorFeedback []string) (council.Round, error) {
	round := council.Round{
		Index:           roundIndex,
		ProposalVersion: proposal.Version,
		OpenedAt:        time.Now().UTC(),
	}

	if c.bus != nil {
		c.bus.Publish(event.NewRoundOpenedEvent(sessionID, roundIndex, proposal.Version, len(c.panel)))
	}
	c.logger.Info("round opened",
		"round", roundIndex,
		"proposal_version", proposal.Version,
		"reviewers", len(c.panel))

	req := Request{
		SessionID:     sessionID,
		RoundIndex:    roundIndex,
		Proposal:      proposal,
		PriorFeedback: priorFeedback,
	}

	results := make(chan collectResult, len(c.panel))
	for _, reviewer := range c.panel {
		go func(r *Reviewer) {
			results <- c.evaluate(ctx, r, req)
		}(reviewer)
	}

	for range c.panel {
		res := <-results
		if res.err != nil {
			reason := abstentionReason(res.err)
			round.Abstentions = append(round.Abstentions, res.reviewer)
			if c.bus != nil {
				c.bus.Publish(event.NewReviewerAbstainedEvent(sessionID, roundIndex, res.reviewer, reason))
			}
			c.logger.Warn("reviewer abstained",
				"round", roundIndex,
				"reviewer", res.reviewer,
				"reason", reason,
				"error", res.err)
			continue
		}

		round.Opinions = append(round.Opinions, res.opinion)
		if c.bus != nil {
			c.bus.Publish(event.NewOpinionReceivedEvent(sessionID, roundIndex,
				res.opinion.Reviewer, res.opinion.Decision.String(), res.opinion.Severity.String()))
		}
		c.logger.Debug("opinion received",
			"round", roundIndex,
			"reviewer", res.opinion.Reviewer,
			"decision", res.opinion.Decision,
			"severity", res.opinion.Severity)
	}

	// Channel arrival order is nondeterministic; keep rounds stable.
	sort.Slice(round.Opinions, func(i, j int) bool {
		return round.Opinions[i].Reviewer < round.Opinions[j].Reviewer
	})
	sort.Strings(round.Abstentions)

	round.ClosedAt = time.Now().UTC()

	if len(round.Opinions) == 0 {
		return round, errors.ErrNoReviewers
	}
	return round, nil
}

type evalResult struct {
	opinion council.Opinion
	err     error
}

// evaluate runs one reviewer under the per-reviewer timeout and
// validates its payload. The source call runs in its own goroutine so
// a source that ignores ctx cannot hold the round open past the
// deadline; its eventual result is discarded.
func (c *Coordinator) evaluate(ctx context.Context, r *Reviewer, req Request) collectResult {
	evalCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req.Capabilities = r.Capabilities()
	req.Allowed = r.Can

	done := make(chan evalResult, 1)
	go func() {
		opinion, err := r.Source.Evaluate(evalCtx, req)
		done <- evalResult{opinion, err}
	}()

	var opinion council.Opinion
	select {
	case <-evalCtx.Done():
		if errors.Is(evalCtx.Err(), context.DeadlineExceeded) {
			return collectResult{reviewer: r.ID, err: errors.NewReviewError("opinion collection timed out", errors.ErrReviewerTimeout).WithReviewer(r.ID)}
		}
		return collectResult{reviewer: r.ID, err: errors.NewReviewError("opinion collection canceled", evalCtx.Err()).WithReviewer(r.ID)}
	case res := <-done:
		if res.err != nil {
			if errors.Is(res.err, context.DeadlineExceeded) {
				return collectResult{reviewer: r.ID, err: errors.NewReviewError("opinion collection timed out", errors.ErrReviewerTimeout).WithReviewer(r.ID)}
			}
			return collectResult{reviewer: r.ID, err: errors.NewReviewError("opinion collection failed", res.err).WithReviewer(r.ID)}
		}
		opinion = res.opinion
	}

	// The source may omit identity fields; stamp them from the panel.
	if opinion.Reviewer == "" {
		opinion.Reviewer = r.ID
	}
	if opinion.Role == "" {
		opinion.Role = r.Role
	}
	if opinion.Timestamp.IsZero() {
		opinion.Timestamp = time.Now().UTC()
	}

	if err := opinion.Validate(); err != nil {
		return collectResult{reviewer: r.ID, err: errors.NewReviewError(err.Error(), errors.ErrMalformedOpinion).WithReviewer(r.ID)}
	}
	return collectResult{reviewer: r.ID, opinion: opinion}
}

func abstentionReason(err error) string {
	switch {
	case errors.Is(err, errors.ErrReviewerTimeout):
		return "timeout"
	case errors.Is(err, errors.ErrMalformedOpinion):
		return "malformed"
	default:
		return "error"
	}
}
