// Package debate runs bounded debates over detected disagreements.
// Each disagreement gets an independent state machine that repeatedly
// asks a restatement collaborator to move the opposing positions
// toward common ground, under three safeguards: a wall-clock timeout
// per round, repetition detection across consecutive rounds, and a
// hard round budget. Safeguard activations force a terminal outcome
// instead of letting a debate run away.
package debate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/councilhq/council/internal/config"
	"github.com/councilhq/council/internal/council"
	"github.com/councilhq/council/internal/errors"
	"github.com/councilhq/council/internal/event"
	"github.com/councilhq/council/internal/logging"
)

// forcedConfidence is the confidence assigned to safeguard-forced
// resolutions: the midpoint of [0.5, 0.7].
const forcedConfidence = 0.6

// Restatement is one round's output from the restatement collaborator.
type Restatement struct {
	// Positions are the revised stances after this round.
	Positions []council.Position
	// Converged signals that the collaborator judged the positions to
	// have reached genuine agreement.
	Converged bool
	// Summary is the collaborator's account of the round.
	Summary string
}

// Restater moves a disagreement's positions toward common ground.
// Implementations wrap model calls or test stubs. Restate must honor
// ctx cancellation; the engine enforces the round timeout through it.
type Restater interface {
	Restate(ctx context.Context, d council.Disagreement, roundIndex int, current []council.Position) (Restatement, error)
}

// RestaterFunc adapts a function to the Restater interface.
type RestaterFunc func(ctx context.Context, d council.Disagreement, roundIndex int, current []council.Position) (Restatement, error)

// Restate implements Restater.
func (f RestaterFunc) Restate(ctx context.Context, d council.Disagreement, roundIndex int, current []council.Position) (Restatement, error) {
	return f(ctx, d, roundIndex, current)
}

// Engine debates disagreements to a terminal outcome.
type Engine struct {
	restater Restater
	cfg      config.DebateConfig
	bus      *event.Bus
	logger   *logging.Logger
}

// NewEngine builds a debate engine over the given restatement
// collaborator.
func NewEngine(restater Restater, cfg *config.Config, bus *event.Bus, logger *logging.Logger) (*Engine, error) {
	if restater == nil {
		return nil, fmt.Errorf("debate engine requires a restater")
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Engine{
		restater: restater,
		cfg:      cfg.Debate,
		bus:      bus,
		logger:   logger.WithComponent("debate"),
	}, nil
}

// DebateAll debates every disagreement concurrently. Each debate is an
// independent state machine; a restater failure terminates only its
// own debate, recorded as an unresolved outcome with reason "error".
func (e *Engine) DebateAll(ctx context.Context, sessionID string, disagreements []council.Disagreement) []council.DebateOutcome {
	if len(disagreements) == 0 {
		return nil
	}

	outcomes := make([]council.DebateOutcome, len(disagreements))
	g, gctx := errgroup.WithContext(ctx)
	for i, d := range disagreements {
		g.Go(func() error {
			outcome, err := e.Debate(gctx, sessionID, d)
			if err != nil {
				e.logger.Error("debate failed",
					"disagreement", d.ID,
					"topic", d.Topic,
					"error", err)
			}
			outcomes[i] = outcome
			return nil
		})
	}
	g.Wait()
	return outcomes
}

// Debate runs one disagreement's state machine to a terminal outcome.
// The returned error is non-nil only when the restatement collaborator
// failed outright; the outcome is always populated.
func (e *Engine) Debate(ctx context.Context, sessionID string, d council.Disagreement) (council.DebateOutcome, error) {
	outcome := council.DebateOutcome{
		DebateID:       uuid.NewString(),
		DisagreementID: d.ID,
	}

	if e.bus != nil {
		e.bus.Publish(event.NewDebateStartedEvent(sessionID, outcome.DebateID, d.ID, d.Topic))
	}
	e.logger.Info("debate started",
		"debate", outcome.DebateID,
		"disagreement", d.ID,
		"topic", d.Topic,
		"budget", e.cfg.RoundBudget())

	current := d.Positions
	budget := e.cfg.RoundBudget()

	for i := 0; i < budget; i++ {
		restatement, elapsed, err := e.runRound(ctx, d, i, current)
		if err != nil {
			if errors.Is(err, errors.ErrDebateTimeout) {
				return e.finalize(sessionID, outcome, d, council.ReasonTimeout,
					fmt.Sprintf("Round %d exceeded its %s budget.", i+1, e.cfg.RoundTimeout())), nil
			}
			outcome.Resolved = false
			outcome.Reason = council.ReasonError
			outcome.Summary = fmt.Sprintf("Debate aborted in round %d: restatement failed.", i+1)
			outcome.FinishedAt = time.Now().UTC()
			e.publishResolved(sessionID, outcome)
			return outcome, errors.NewDebateError("restatement failed", errors.Join(errors.ErrRestatementFailed, err)).
				WithDisagreement(d.ID).WithRound(i)
		}

		outcome.Rounds = append(outcome.Rounds, council.DebateRound{
			Index:     i,
			Positions: restatement.Positions,
			Converged: restatement.Converged,
			Elapsed:   elapsed,
		})

		if restatement.Converged {
			outcome.Confidence = convergence(d.Positions, restatement.Positions)
			return e.finalize(sessionID, outcome, d, council.ReasonNatural,
				fmt.Sprintf("Consensus reached after %d round(s).", len(outcome.Rounds))), nil
		}

		if e.cfg.EnableRepetitionDetection && i > 0 {
			sim := Ratio(flatten(current), flatten(restatement.Positions))
			if sim >= e.cfg.RepetitionSimilarityThreshold {
				return e.finalize(sessionID, outcome, d, council.ReasonRepetition,
					fmt.Sprintf("Positions repeated across rounds %d and %d (similarity %.2f).", i, i+1, sim)), nil
			}
		}

		current = restatement.Positions
	}

	return e.finalize(sessionID, outcome, d, council.ReasonMaxRounds,
		fmt.Sprintf("Round budget of %d exhausted without convergence.", budget)), nil
}

type roundResult struct {
	restatement Restatement
	err         error
}

// runRound executes one restatement call under the round timeout. The
// call runs in its own goroutine so a restater that ignores ctx cannot
// stall the debate; a round that exceeds its wall-clock budget times
// out regardless of what the restater eventually returns.
func (e *Engine) runRound(ctx context.Context, d council.Disagreement, roundIndex int, current []council.Position) (Restatement, time.Duration, error) {
	roundCtx, cancel := context.WithTimeout(ctx, e.cfg.RoundTimeout())
	defer cancel()

	start := time.Now()
	done := make(chan roundResult, 1)
	go func() {
		restatement, err := e.restater.Restate(roundCtx, d, roundIndex, current)
		done <- roundResult{restatement, err}
	}()

	select {
	case <-roundCtx.Done():
		if errors.Is(roundCtx.Err(), context.DeadlineExceeded) {
			return Restatement{}, time.Since(start), errors.ErrDebateTimeout
		}
		return Restatement{}, time.Since(start), roundCtx.Err()
	case res := <-done:
		elapsed := time.Since(start)
		if res.err != nil {
			if errors.Is(res.err, context.DeadlineExceeded) {
				return Restatement{}, elapsed, errors.ErrDebateTimeout
			}
			return Restatement{}, elapsed, res.err
		}
		// Content that lands after the deadline does not count as a round.
		if errors.Is(roundCtx.Err(), context.DeadlineExceeded) {
			return Restatement{}, elapsed, errors.ErrDebateTimeout
		}
		return res.restatement, elapsed, nil
	}
}

// finalize records the terminal state for a debate. Forced reasons
// yield a resolved outcome with the fixed safeguard confidence only
// while forced consensus is enabled; otherwise the debate is left
// unresolved with the reason preserved for adjudication.
func (e *Engine) finalize(sessionID string, outcome council.DebateOutcome, d council.Disagreement, reason council.ResolutionReason, summary string) council.DebateOutcome {
	outcome.Reason = reason
	outcome.Summary = summary
	outcome.FinishedAt = time.Now().UTC()

	switch {
	case reason == council.ReasonNatural:
		outcome.Resolved = true
	case reason.Forced() && e.cfg.EnableForcedConsensus:
		outcome.Resolved = true
		outcome.Confidence = forcedConfidence
	default:
		outcome.Resolved = false
		outcome.Confidence = 0
	}

	e.publishResolved(sessionID, outcome)
	e.logger.Info("debate finished",
		"debate", outcome.DebateID,
		"disagreement", d.ID,
		"resolved", outcome.Resolved,
		"reason", outcome.Reason,
		"rounds", len(outcome.Rounds),
		"confidence", outcome.Confidence)
	return outcome
}

func (e *Engine) publishResolved(sessionID string, outcome council.DebateOutcome) {
	if e.bus != nil {
		e.bus.Publish(event.NewDebateResolvedEvent(sessionID, outcome.DebateID,
			outcome.Resolved, string(outcome.Reason), len(outcome.Rounds)))
	}
}

// convergence measures how far final positions moved toward a shared
// vocabulary, as the similarity between initial and final position
// text.
func convergence(initial, final []council.Position) float64 {
	return Ratio(flatten(initial), flatten(final))
}

func flatten(positions []council.Position) string {
	var sb strings.Builder
	for _, p := range positions {
		sb.WriteString(p.Statement)
		sb.WriteString(" ")
	}
	return sb.String()
}
