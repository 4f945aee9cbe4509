// Package adjudicate produces the final binding ruling for
// disagreements the debate cycle could not resolve. The adjudicator is
// guarded by a run-once contract: the workflow run carries a
// completion flag and an invocation counter, both persisted in the
// snapshot, so the guard survives process restarts. Re-entry after
// completion returns the cached record and performs no work.
package adjudicate

import (
	"context"
	"time"

	"github.com/councilhq/council/internal/config"
	"github.com/councilhq/council/internal/council"
	"github.com/councilhq/council/internal/errors"
	"github.com/councilhq/council/internal/event"
	"github.com/councilhq/council/internal/logging"
)

// Ruler produces binding decisions for unresolved disagreements.
// Implementations wrap model calls or test stubs. The full run history
// is available on the run for context.
type Ruler interface {
	Adjudicate(ctx context.Context, run *council.WorkflowRun, unresolved []council.Disagreement) (council.AdjudicationRecord, error)
}

// RulerFunc adapts a function to the Ruler interface.
type RulerFunc func(ctx context.Context, run *council.WorkflowRun, unresolved []council.Disagreement) (council.AdjudicationRecord, error)

// Adjudicate implements Ruler.
func (f RulerFunc) Adjudicate(ctx context.Context, run *council.WorkflowRun, unresolved []council.Disagreement) (council.AdjudicationRecord, error) {
	return f(ctx, run, unresolved)
}

// Adjudicator enforces the run-once contract around a Ruler.
type Adjudicator struct {
	ruler  Ruler
	budget int
	bus    *event.Bus
	logger *logging.Logger
}

// New builds an Adjudicator with the configured invocation budget.
func New(ruler Ruler, cfg *config.Config, bus *event.Bus, logger *logging.Logger) (*Adjudicator, error) {
	if ruler == nil {
		return nil, errors.New("adjudicator requires a ruler")
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Adjudicator{
		ruler:  ruler,
		budget: cfg.Adjudicator.RunBudget(),
		bus:    bus,
		logger: logger.WithComponent("adjudicate"),
	}, nil
}

// Run produces the session's adjudication record, or returns the
// cached one if adjudication already completed. Safe to call again
// after completion; the record is never recomputed or mutated. A
// session whose invocation budget is exhausted without a record
// returns ErrAdjudicationComplete.
func (a *Adjudicator) Run(ctx context.Context, sessionID string, run *council.WorkflowRun) (*council.AdjudicationRecord, error) {
	if run.AdjudicationComplete && run.Adjudication != nil {
		a.logger.Debug("adjudication replayed from cache",
			"session", sessionID,
			"runs", run.AdjudicatorRunCount)
		return run.Adjudication, nil
	}

	if run.AdjudicatorRunCount >= a.budget {
		return nil, errors.NewWorkflowError("adjudicator invocation budget exhausted", errors.ErrAdjudicationComplete).
			WithSession(sessionID)
	}

	run.AdjudicatorRunCount++
	if run.Metadata == nil {
		run.Metadata = make(map[string]any)
	}
	run.Metadata[council.MetaAdjudicatorRuns] = run.AdjudicatorRunCount

	unresolved := run.UnresolvedDisagreements()
	a.logger.Info("adjudication started",
		"session", sessionID,
		"run", run.AdjudicatorRunCount,
		"budget", a.budget,
		"unresolved", len(unresolved))

	record, err := a.ruler.Adjudicate(ctx, run, unresolved)
	if err != nil {
		// The invocation counted against the budget even though it failed.
		return nil, errors.NewWorkflowError("adjudication failed", err).WithSession(sessionID)
	}
	if record.RecordedAt.IsZero() {
		record.RecordedAt = time.Now().UTC()
	}

	run.Adjudication = &record
	run.AdjudicationComplete = true
	run.UpdatedAt = time.Now().UTC()

	if a.bus != nil {
		a.bus.Publish(event.NewAdjudicationRecordedEvent(sessionID, len(record.Decisions), record.Approved))
	}
	a.logger.Info("adjudication recorded",
		"session", sessionID,
		"decisions", len(record.Decisions),
		"approved", record.Approved)

	return run.Adjudication, nil
}
