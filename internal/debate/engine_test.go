package debate

import (
	"context"
	"testing"
	"time"

	"github.com/councilhq/council/internal/config"
	"github.com/councilhq/council/internal/council"
	"github.com/councilhq/council/internal/errors"
	"github.com/councilhq/council/internal/event"
	"github.com/councilhq/council/internal/logging"
)

func testDisagreement() council.Disagreement {
	return council.Disagreement{
		ID:       "dg-1",
		Category: council.ConflictPattern,
		Topic:    "Technical Approach: Sync Vs Async",
		Positions: []council.Position{
			{Reviewer: "lead", Statement: "synchronous calls keep the flow simple"},
			{Reviewer: "integration", Statement: "an asynchronous queue decouples the services"},
		},
		Severity: council.SeverityMedium,
	}
}

func debateConfig() *config.Config {
	cfg := config.Default()
	cfg.Debate.RoundTimeoutSeconds = 1
	return cfg
}

func newEngine(t *testing.T, restater Restater, cfg *config.Config, bus *event.Bus) *Engine {
	t.Helper()
	e, err := NewEngine(restater, cfg, bus, logging.NopLogger())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return e
}

func TestDebateNaturalResolution(t *testing.T) {
	restater := RestaterFunc(func(ctx context.Context, d council.Disagreement, round int, current []council.Position) (Restatement, error) {
		return Restatement{
			Positions: []council.Position{
				{Reviewer: "lead", Statement: "use an asynchronous queue with a synchronous fallback"},
				{Reviewer: "integration", Statement: "use an asynchronous queue with a synchronous fallback"},
			},
			Converged: true,
		}, nil
	})
	e := newEngine(t, restater, debateConfig(), nil)

	outcome, err := e.Debate(context.Background(), "sess-1", testDisagreement())
	if err != nil {
		t.Fatalf("Debate() error = %v", err)
	}
	if !outcome.Resolved {
		t.Error("Resolved = false, want true")
	}
	if outcome.Reason != council.ReasonNatural {
		t.Errorf("Reason = %q, want %q", outcome.Reason, council.ReasonNatural)
	}
	if len(outcome.Rounds) != 1 {
		t.Errorf("got %d rounds, want 1", len(outcome.Rounds))
	}
	if outcome.Reason.Forced() {
		t.Error("natural resolution must not be marked forced")
	}
}

func TestDebateTimeoutForcesResolution(t *testing.T) {
	restater := RestaterFunc(func(ctx context.Context, d council.Disagreement, round int, current []council.Position) (Restatement, error) {
		<-ctx.Done()
		return Restatement{}, ctx.Err()
	})
	e := newEngine(t, restater, debateConfig(), nil)

	outcome, err := e.Debate(context.Background(), "sess-1", testDisagreement())
	if err != nil {
		t.Fatalf("Debate() error = %v", err)
	}
	if !outcome.Resolved {
		t.Error("Resolved = false, want forced resolution")
	}
	if outcome.Reason != council.ReasonTimeout {
		t.Errorf("Reason = %q, want %q", outcome.Reason, council.ReasonTimeout)
	}
	if outcome.Confidence != 0.6 {
		t.Errorf("Confidence = %v, want 0.6", outcome.Confidence)
	}
}

func TestDebateTimeoutForcedEvenWhenRestaterIgnoresContext(t *testing.T) {
	// A restater that never checks ctx and returns convergence after
	// the deadline must still yield a forced timeout, not a natural
	// resolution.
	restater := RestaterFunc(func(ctx context.Context, d council.Disagreement, round int, current []council.Position) (Restatement, error) {
		time.Sleep(1500 * time.Millisecond)
		return Restatement{Positions: current, Converged: true}, nil
	})
	e := newEngine(t, restater, debateConfig(), nil)

	start := time.Now()
	outcome, err := e.Debate(context.Background(), "sess-1", testDisagreement())
	if err != nil {
		t.Fatalf("Debate() error = %v", err)
	}
	if outcome.Reason != council.ReasonTimeout {
		t.Errorf("Reason = %q, want %q (round exceeded its wall-clock budget)", outcome.Reason, council.ReasonTimeout)
	}
	if !outcome.Resolved {
		t.Error("Resolved = false, want forced resolution")
	}
	if outcome.Confidence != 0.6 {
		t.Errorf("Confidence = %v, want 0.6", outcome.Confidence)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("debate ran %v, want the 1s round timeout to bound it", elapsed)
	}
}

func TestDebateRepetitionForcesResolution(t *testing.T) {
	fixed := []council.Position{
		{Reviewer: "lead", Statement: "the synchronous approach remains correct for this workload"},
		{Reviewer: "integration", Statement: "the asynchronous approach remains correct for this workload"},
	}
	restater := RestaterFunc(func(ctx context.Context, d council.Disagreement, round int, current []council.Position) (Restatement, error) {
		return Restatement{Positions: fixed, Converged: false}, nil
	})
	e := newEngine(t, restater, debateConfig(), nil)

	outcome, err := e.Debate(context.Background(), "sess-1", testDisagreement())
	if err != nil {
		t.Fatalf("Debate() error = %v", err)
	}
	if !outcome.Resolved || outcome.Reason != council.ReasonRepetition {
		t.Errorf("Resolved/Reason = %v/%q, want true/repetition", outcome.Resolved, outcome.Reason)
	}
	if len(outcome.Rounds) != 2 {
		t.Errorf("got %d rounds, want 2 (repetition detected on the second)", len(outcome.Rounds))
	}
	if outcome.Confidence != 0.6 {
		t.Errorf("Confidence = %v, want 0.6", outcome.Confidence)
	}
}

func TestDebateMaxRoundsForcesResolution(t *testing.T) {
	var calls int
	restater := RestaterFunc(func(ctx context.Context, d council.Disagreement, round int, current []council.Position) (Restatement, error) {
		calls++
		// Distinct positions every round to keep repetition detection quiet.
		return Restatement{
			Positions: []council.Position{
				{Reviewer: "lead", Statement: []string{"alpha", "bravo", "charlie", "delta"}[round%4]},
				{Reviewer: "integration", Statement: []string{"echo", "foxtrot", "golf", "hotel"}[round%4]},
			},
		}, nil
	})
	e := newEngine(t, restater, debateConfig(), nil)

	outcome, err := e.Debate(context.Background(), "sess-1", testDisagreement())
	if err != nil {
		t.Fatalf("Debate() error = %v", err)
	}
	if !outcome.Resolved || outcome.Reason != council.ReasonMaxRounds {
		t.Errorf("Resolved/Reason = %v/%q, want true/max_rounds", outcome.Resolved, outcome.Reason)
	}
	if calls != 3 {
		t.Errorf("restater called %d times, want 3 (the default round budget)", calls)
	}
}

func TestDebateForcedConsensusDisabled(t *testing.T) {
	cfg := debateConfig()
	cfg.Debate.EnableForcedConsensus = false

	restater := RestaterFunc(func(ctx context.Context, d council.Disagreement, round int, current []council.Position) (Restatement, error) {
		return Restatement{
			Positions: []council.Position{
				{Reviewer: "lead", Statement: []string{"one", "two", "three"}[round%3]},
			},
		}, nil
	})
	e := newEngine(t, restater, cfg, nil)

	outcome, err := e.Debate(context.Background(), "sess-1", testDisagreement())
	if err != nil {
		t.Fatalf("Debate() error = %v", err)
	}
	if outcome.Resolved {
		t.Error("Resolved = true, want unresolved when forced consensus is disabled")
	}
	if outcome.Reason != council.ReasonMaxRounds {
		t.Errorf("Reason = %q, want max_rounds preserved", outcome.Reason)
	}
}

func TestDebateRestaterFailure(t *testing.T) {
	restater := RestaterFunc(func(ctx context.Context, d council.Disagreement, round int, current []council.Position) (Restatement, error) {
		return Restatement{}, errors.New("model backend unavailable")
	})
	e := newEngine(t, restater, debateConfig(), nil)

	outcome, err := e.Debate(context.Background(), "sess-1", testDisagreement())
	if !errors.Is(err, errors.ErrRestatementFailed) {
		t.Errorf("Debate() error = %v, want ErrRestatementFailed", err)
	}
	if outcome.Resolved {
		t.Error("Resolved = true, want false on restater failure")
	}
	if outcome.Reason != council.ReasonError {
		t.Errorf("Reason = %q, want %q", outcome.Reason, council.ReasonError)
	}
}

func TestDebateAllRunsIndependently(t *testing.T) {
	restater := RestaterFunc(func(ctx context.Context, d council.Disagreement, round int, current []council.Position) (Restatement, error) {
		if d.ID == "dg-bad" {
			return Restatement{}, errors.New("backend down")
		}
		return Restatement{Positions: current, Converged: true}, nil
	})
	e := newEngine(t, restater, debateConfig(), nil)

	good := testDisagreement()
	bad := testDisagreement()
	bad.ID = "dg-bad"

	outcomes := e.DebateAll(context.Background(), "sess-1", []council.Disagreement{good, bad})
	if len(outcomes) != 2 {
		t.Fatalf("got %d outcomes, want 2", len(outcomes))
	}
	if !outcomes[0].Resolved {
		t.Error("healthy debate not resolved")
	}
	if outcomes[1].Resolved || outcomes[1].Reason != council.ReasonError {
		t.Errorf("failed debate Resolved/Reason = %v/%q, want false/error", outcomes[1].Resolved, outcomes[1].Reason)
	}
}

func TestDebatePublishesEvents(t *testing.T) {
	bus := event.NewBus()
	var started, resolved int
	bus.Subscribe("debate.started", func(event.Event) { started++ })
	bus.Subscribe("debate.resolved", func(event.Event) { resolved++ })

	restater := RestaterFunc(func(ctx context.Context, d council.Disagreement, round int, current []council.Position) (Restatement, error) {
		return Restatement{Positions: current, Converged: true}, nil
	})
	e := newEngine(t, restater, debateConfig(), bus)

	if _, err := e.Debate(context.Background(), "sess-1", testDisagreement()); err != nil {
		t.Fatal(err)
	}
	if started != 1 || resolved != 1 {
		t.Errorf("events started/resolved = %d/%d, want 1/1", started, resolved)
	}
}

func TestDebateTimeoutElapsedIsBounded(t *testing.T) {
	restater := RestaterFunc(func(ctx context.Context, d council.Disagreement, round int, current []council.Position) (Restatement, error) {
		<-ctx.Done()
		return Restatement{}, ctx.Err()
	})
	e := newEngine(t, restater, debateConfig(), nil)

	start := time.Now()
	if _, err := e.Debate(context.Background(), "sess-1", testDisagreement()); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("debate ran %v, want under 3s with a 1s round timeout", elapsed)
	}
}
