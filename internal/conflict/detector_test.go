package conflict

import (
	"testing"

	"github.com/councilhq/council/internal/council"
)

func opinion(reviewer string, decision council.Decision, severity council.Severity) council.Opinion {
	return council.Opinion{
		Reviewer:  reviewer,
		Decision:  decision,
		Severity:  severity,
		Rationale: "rationale from " + reviewer,
	}
}

func TestDetectSkipsSingleOpinionRound(t *testing.T) {
	round := council.Round{Opinions: []council.Opinion{
		opinion("lead", council.DecisionApprove, council.SeverityLow),
	}}
	if got := Detect(round); got != nil {
		t.Errorf("Detect() = %v, want nil for single-opinion round", got)
	}
}

func TestDetectDecisionConflict(t *testing.T) {
	round := council.Round{Index: 2, Opinions: []council.Opinion{
		opinion("lead", council.DecisionApprove, council.SeverityLow),
		opinion("security", council.DecisionReject, council.SeverityHigh),
	}}

	found := Detect(round)
	if len(found) != 1 {
		t.Fatalf("Detect() found %d disagreements, want 1", len(found))
	}
	d := found[0]
	if d.Category != council.ConflictDecision {
		t.Errorf("Category = %q, want %q", d.Category, council.ConflictDecision)
	}
	if d.RoundIndex != 2 {
		t.Errorf("RoundIndex = %d, want 2", d.RoundIndex)
	}
	if len(d.Positions) != 2 {
		t.Errorf("got %d positions, want 2", len(d.Positions))
	}
	if d.ID == "" {
		t.Error("disagreement ID not assigned")
	}
}

func TestDetectEscalateOpposesApprove(t *testing.T) {
	round := council.Round{Opinions: []council.Opinion{
		opinion("lead", council.DecisionApprove, council.SeverityLow),
		opinion("security", council.DecisionEscalate, council.SeverityLow),
	}}
	if found := Detect(round); len(found) != 1 {
		t.Errorf("Detect() found %d disagreements, want 1 for approve vs escalate", len(found))
	}
}

func TestDetectNoConflictWhenUnanimous(t *testing.T) {
	round := council.Round{Opinions: []council.Opinion{
		opinion("lead", council.DecisionApprove, council.SeverityLow),
		opinion("security", council.DecisionApprove, council.SeverityLow),
		opinion("integration", council.DecisionApprove, council.SeverityMedium),
	}}
	if found := Detect(round); len(found) != 0 {
		t.Errorf("Detect() found %d disagreements, want 0 for unanimous approval", len(found))
	}
}

func TestDetectPatternConflict(t *testing.T) {
	sync := opinion("lead", council.DecisionRevise, council.SeverityMedium)
	sync.Suggestions = []string{"Use synchronous request handling for predictable latency"}
	async := opinion("integration", council.DecisionRevise, council.SeverityMedium)
	async.Suggestions = []string{"Prefer an asynchronous queue between services"}

	round := council.Round{Opinions: []council.Opinion{sync, async}}
	found := Detect(round)
	if len(found) != 1 {
		t.Fatalf("Detect() found %d disagreements, want 1", len(found))
	}
	d := found[0]
	if d.Category != council.ConflictPattern {
		t.Errorf("Category = %q, want %q", d.Category, council.ConflictPattern)
	}
	if d.Topic != "Technical Approach: Sync Vs Async" {
		t.Errorf("Topic = %q", d.Topic)
	}
	if d.Severity != council.SeverityMedium {
		t.Errorf("Severity = %q, want medium", d.Severity)
	}
}

func TestDetectPatternNeedsTwoReviewers(t *testing.T) {
	// One reviewer weighing both sides of a tradeoff is not a conflict.
	both := opinion("lead", council.DecisionRevise, council.SeverityMedium)
	both.Concerns = []string{"synchronous handling is simpler but an asynchronous queue scales better"}
	quiet := opinion("security", council.DecisionRevise, council.SeverityMedium)

	round := council.Round{Opinions: []council.Opinion{both, quiet}}
	if found := Detect(round); len(found) != 0 {
		t.Errorf("Detect() found %d disagreements, want 0 for single-reviewer pattern mention", len(found))
	}
}

func TestDetectSeverityConflict(t *testing.T) {
	a := opinion("lead", council.DecisionRevise, council.SeverityLow)
	a.Concerns = []string{"database connection pooling limits"}
	b := opinion("security", council.DecisionRevise, council.SeverityCritical)
	b.Concerns = []string{"connection pooling limits on the database"}

	round := council.Round{Opinions: []council.Opinion{a, b}}
	found := Detect(round)
	if len(found) != 1 {
		t.Fatalf("Detect() found %d disagreements, want 1", len(found))
	}
	if found[0].Category != council.ConflictSeverity {
		t.Errorf("Category = %q, want %q", found[0].Category, council.ConflictSeverity)
	}
}

func TestDetectSeverityConflictRequiresMaterialGap(t *testing.T) {
	// One level apart is a judgment call, not a conflict.
	a := opinion("lead", council.DecisionRevise, council.SeverityMedium)
	a.Concerns = []string{"database connection pooling limits"}
	b := opinion("security", council.DecisionRevise, council.SeverityHigh)
	b.Concerns = []string{"database connection pooling limits"}

	round := council.Round{Opinions: []council.Opinion{a, b}}
	if found := Detect(round); len(found) != 0 {
		t.Errorf("Detect() found %d disagreements, want 0 for one-level severity gap", len(found))
	}
}

func TestDetectRanksCriticalFirst(t *testing.T) {
	a := opinion("lead", council.DecisionApprove, council.SeverityCritical)
	a.Concerns = []string{"plaintext credential storage"}
	b := opinion("security", council.DecisionReject, council.SeverityCritical)
	b.Suggestions = []string{"switch to a nosql document store"}
	c := opinion("integration", council.DecisionRevise, council.SeverityMedium)
	c.Suggestions = []string{"keep the relational sql schema normalized"}

	round := council.Round{Opinions: []council.Opinion{a, b, c}}
	found := Detect(round)
	if len(found) < 2 {
		t.Fatalf("Detect() found %d disagreements, want at least 2", len(found))
	}
	for i := 1; i < len(found); i++ {
		if found[i].Severity.Rank() > found[i-1].Severity.Rank() {
			t.Errorf("disagreements not sorted by severity: %q before %q",
				found[i-1].Severity, found[i].Severity)
		}
	}
	if found[0].Severity != council.SeverityCritical {
		t.Errorf("first disagreement severity = %q, want critical", found[0].Severity)
	}
}

func TestAggregateSeverity(t *testing.T) {
	tests := []struct {
		name       string
		severities []council.Severity
		want       council.Severity
	}{
		{"any critical wins", []council.Severity{council.SeverityLow, council.SeverityCritical}, council.SeverityCritical},
		{"two highs", []council.Severity{council.SeverityHigh, council.SeverityHigh}, council.SeverityHigh},
		{"one high", []council.Severity{council.SeverityHigh, council.SeverityLow}, council.SeverityMedium},
		{"two mediums", []council.Severity{council.SeverityMedium, council.SeverityMedium}, council.SeverityMedium},
		{"all low", []council.Severity{council.SeverityLow, council.SeverityLow}, council.SeverityLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opinions := make([]council.Opinion, len(tt.severities))
			for i, s := range tt.severities {
				opinions[i] = council.Opinion{Severity: s}
			}
			if got := AggregateSeverity(opinions); got != tt.want {
				t.Errorf("AggregateSeverity() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTokenOverlap(t *testing.T) {
	if got := tokenOverlap("database pooling limits", "database pooling limits"); got != 1.0 {
		t.Errorf("identical strings overlap = %v, want 1.0", got)
	}
	if got := tokenOverlap("database pooling", "frontend caching"); got != 0 {
		t.Errorf("disjoint strings overlap = %v, want 0", got)
	}
	if got := tokenOverlap("", "anything"); got != 0 {
		t.Errorf("empty string overlap = %v, want 0", got)
	}
}
