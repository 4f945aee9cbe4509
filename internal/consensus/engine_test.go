package consensus

import (
	"math"
	"strings"
	"testing"

	"github.com/councilhq/council/internal/config"
	"github.com/councilhq/council/internal/council"
	"github.com/councilhq/council/internal/event"
	"github.com/councilhq/council/internal/logging"
)

func newTestEngine() *Engine {
	return NewEngine(config.Default(), nil, logging.NopLogger())
}

func opinion(reviewer, role string, decision council.Decision) council.Opinion {
	return council.Opinion{
		Reviewer: reviewer,
		Role:     role,
		Decision: decision,
		Severity: council.SeverityLow,
	}
}

func fullPanelRound(lead, security, specialist council.Decision) council.Round {
	return council.Round{Opinions: []council.Opinion{
		opinion("lead", "lead", lead),
		opinion("security", "security", security),
		opinion("integration", "specialist", specialist),
	}}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestComputeUnanimousApproval(t *testing.T) {
	e := newTestEngine()
	round := fullPanelRound(council.DecisionApprove, council.DecisionApprove, council.DecisionApprove)

	result := e.Compute("sess-1", round, nil)

	// All approve: sum = W, score = (W + 0.5W)/(1.5W) = 1.0.
	if !almostEqual(result.Score, 1.0) {
		t.Errorf("Score = %v, want 1.0", result.Score)
	}
	if !result.Resolved {
		t.Error("Resolved = false, want true")
	}
}

func TestComputeAllReviseLandsAtMidpoint(t *testing.T) {
	e := newTestEngine()
	round := fullPanelRound(council.DecisionRevise, council.DecisionRevise, council.DecisionRevise)

	result := e.Compute("sess-1", round, nil)

	if !almostEqual(result.Score, 0.5) {
		t.Errorf("Score = %v, want 0.5 for an all-revise panel", result.Score)
	}
	if result.Resolved {
		t.Error("Resolved = true, want false below the 0.65 threshold")
	}
}

func TestComputeAllRejectHitsFloor(t *testing.T) {
	e := newTestEngine()
	round := fullPanelRound(council.DecisionReject, council.DecisionReject, council.DecisionReject)

	result := e.Compute("sess-1", round, nil)

	// All reject: sum = -0.5W, score = 0.
	if !almostEqual(result.Score, 0.0) {
		t.Errorf("Score = %v, want 0.0", result.Score)
	}
}

func TestComputeWeightedSplit(t *testing.T) {
	e := newTestEngine()
	// lead approves (0.40), security rejects (0.35), specialist revises (0.25).
	round := fullPanelRound(council.DecisionApprove, council.DecisionReject, council.DecisionRevise)

	result := e.Compute("sess-1", round, nil)

	// sum = 0.40 - 0.175 = 0.225; score = (0.225 + 0.5)/1.5 ≈ 0.4833.
	want := (0.40 - 0.5*0.35 + 0.5) / 1.5
	if !almostEqual(result.Score, want) {
		t.Errorf("Score = %v, want %v", result.Score, want)
	}
	if result.Resolved {
		t.Error("Resolved = true, want false")
	}
}

func TestComputeEscalateIsSlightlyPositive(t *testing.T) {
	e := newTestEngine()
	round := fullPanelRound(council.DecisionEscalate, council.DecisionEscalate, council.DecisionEscalate)

	result := e.Compute("sess-1", round, nil)

	// All escalate: sum = 0.3W, score = 0.8/1.5 ≈ 0.5333.
	want := (0.3 + 0.5) / 1.5
	if !almostEqual(result.Score, want) {
		t.Errorf("Score = %v, want %v", result.Score, want)
	}
}

func TestComputeAbstentionsDropWeight(t *testing.T) {
	e := newTestEngine()
	// Only the lead voted; the abstainers contribute no weight, so a
	// lone approval still normalizes to 1.0.
	round := council.Round{
		Opinions:    []council.Opinion{opinion("lead", "lead", council.DecisionApprove)},
		Abstentions: []string{"security", "integration"},
	}

	result := e.Compute("sess-1", round, nil)
	if !almostEqual(result.Score, 1.0) {
		t.Errorf("Score = %v, want 1.0 with abstainers excluded", result.Score)
	}
	if len(result.Weights) != 1 {
		t.Errorf("Weights has %d entries, want 1", len(result.Weights))
	}
}

func TestComputeEmptyRound(t *testing.T) {
	e := newTestEngine()
	result := e.Compute("sess-1", council.Round{}, nil)

	if result.Score != 0 {
		t.Errorf("Score = %v, want 0 for an empty round", result.Score)
	}
	if result.Resolved {
		t.Error("Resolved = true, want false")
	}
}

func TestComputeUnknownRoleUsesDefaultWeight(t *testing.T) {
	e := newTestEngine()
	round := council.Round{Opinions: []council.Opinion{
		opinion("guest", "observer", council.DecisionApprove),
	}}

	result := e.Compute("sess-1", round, nil)
	if got := result.Weights["guest"]; got != 0.05 {
		t.Errorf("Weights[guest] = %v, want default 0.05", got)
	}
}

func TestDebateAdjustment(t *testing.T) {
	resolved := council.DebateOutcome{Resolved: true}
	unresolved := council.DebateOutcome{Resolved: false}

	tests := []struct {
		name    string
		debates []council.DebateOutcome
		want    float64
	}{
		{"no debates", nil, 0},
		{"one resolved", []council.DebateOutcome{resolved}, 0.05},
		{"one unresolved", []council.DebateOutcome{unresolved}, -0.05},
		{"mixed cancels", []council.DebateOutcome{resolved, unresolved}, 0},
		{"positive cap", []council.DebateOutcome{resolved, resolved, resolved, resolved, resolved}, 0.20},
		{"negative cap", []council.DebateOutcome{unresolved, unresolved, unresolved, unresolved, unresolved}, -0.20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DebateAdjustment(tt.debates); !almostEqual(got, tt.want) {
				t.Errorf("DebateAdjustment() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComputeAppliesDebateAdjustment(t *testing.T) {
	e := newTestEngine()
	round := fullPanelRound(council.DecisionRevise, council.DecisionRevise, council.DecisionRevise)
	debates := []council.DebateOutcome{
		{DisagreementID: "dg-1", Resolved: true, Reason: council.ReasonNatural},
		{DisagreementID: "dg-2", Resolved: false, Reason: council.ReasonError},
		{DisagreementID: "dg-3", Resolved: true, Reason: council.ReasonTimeout},
	}

	result := e.Compute("sess-1", round, debates)

	// Base 0.5 + (2 resolved - 1 unresolved) * 0.05 = 0.55.
	if !almostEqual(result.Score, 0.55) {
		t.Errorf("Score = %v, want 0.55", result.Score)
	}
	if len(result.ResolvedIDs) != 2 || len(result.UnresolvedIDs) != 1 {
		t.Errorf("ResolvedIDs/UnresolvedIDs = %d/%d, want 2/1", len(result.ResolvedIDs), len(result.UnresolvedIDs))
	}
}

func TestComputeScoreAlwaysInRange(t *testing.T) {
	e := newTestEngine()
	decisions := []council.Decision{
		council.DecisionApprove, council.DecisionRevise,
		council.DecisionReject, council.DecisionEscalate,
	}
	manyResolved := make([]council.DebateOutcome, 10)
	for i := range manyResolved {
		manyResolved[i] = council.DebateOutcome{Resolved: true}
	}

	for _, a := range decisions {
		for _, b := range decisions {
			for _, c := range decisions {
				round := fullPanelRound(a, b, c)
				for _, debates := range [][]council.DebateOutcome{nil, manyResolved} {
					result := e.Compute("sess-1", round, debates)
					if result.Score < 0 || result.Score > 1 {
						t.Fatalf("Score = %v out of [0,1] for votes %s/%s/%s", result.Score, a, b, c)
					}
				}
			}
		}
	}
}

func TestSummaryMentionsForcedResolutions(t *testing.T) {
	e := newTestEngine()
	round := fullPanelRound(council.DecisionApprove, council.DecisionApprove, council.DecisionApprove)
	debates := []council.DebateOutcome{
		{DisagreementID: "dg-1", Resolved: true, Reason: council.ReasonTimeout},
	}

	result := e.Compute("sess-1", round, debates)
	if !strings.Contains(result.Summary, "forced resolution") {
		t.Errorf("Summary = %q, want mention of forced resolutions", result.Summary)
	}
}

func TestSummaryRequiresAdjudicationWhenUnresolved(t *testing.T) {
	e := newTestEngine()
	round := fullPanelRound(council.DecisionReject, council.DecisionReject, council.DecisionRevise)
	debates := []council.DebateOutcome{
		{DisagreementID: "dg-1", Resolved: false, Reason: council.ReasonError},
	}

	result := e.Compute("sess-1", round, debates)
	if !strings.Contains(result.Summary, "adjudication") {
		t.Errorf("Summary = %q, want mention of adjudication", result.Summary)
	}
}

func TestComputePublishesEvent(t *testing.T) {
	bus := event.NewBus()
	var published int
	bus.Subscribe("consensus.computed", func(event.Event) { published++ })

	e := NewEngine(config.Default(), bus, nil)
	e.Compute("sess-1", fullPanelRound(council.DecisionApprove, council.DecisionApprove, council.DecisionApprove), nil)

	if published != 1 {
		t.Errorf("consensus.computed published %d times, want 1", published)
	}
}
