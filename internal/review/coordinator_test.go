package review

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

func stubSource(decision council.Decision, severity council.Severity) OpinionSource {
	return OpinionSourceFunc(func(ctx context.Context, req Request) (council.Opinion, error) {
		return council.Opinion{
			Decision:  decision,
			Severity:  severity,
			Rationale: "stub rationale",
		}, nil
	})
}

func slowSource(delay time.Duration) OpinionSource {
	return OpinionSourceFunc(func(ctx context.Context, req Request) (council.Opinion, error) {
		select {
		case <-time.After(delay):
			return council.Opinion{Decision: council.DecisionApprove, Severity: council.SeverityLow}, nil
		case <-ctx.Done():
			return council.Opinion{}, ctx.Err()
		}
	})
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Review.OpinionTimeoutSeconds = 1
	return cfg
}

func mustReviewer(t *testing.T, id, role string, weight float64, source OpinionSource) *Reviewer {
	t.Helper()
	r, err := NewReviewer(config.ReviewerConfig{
		ID: id, Role: role, Weight: weight, Capabilities: []string{"search:*"},
	}, source)
	if err != nil {
		t.Fatalf("NewReviewer(%s) error = %v", id, err)
	}
	return r
}

func TestCollectGathersAllOpinions(t *testing.T) {
	panel := []*Reviewer{
		mustReviewer(t, "lead", "lead", 0.4, stubSource(council.DecisionApprove, council.SeverityLow)),
		mustReviewer(t, "security", "security", 0.35, stubSource(council.DecisionRevise, council.SeverityHigh)),
		mustReviewer(t, "integration", "specialist", 0.25, stubSource(council.DecisionApprove, council.SeverityMedium)),
	}
	c, err := NewCoordinator(panel, testConfig(), event.NewBus(), logging.NopLogger())
	if err != nil {
		t.Fatalf("NewCoordinator() error = %v", err)
	}

	proposal := council.Proposal{ID: "p1", Version: 1, Content: "use sql storage"}
	round, err := c.Collect(context.Background(), "sess-1", 0, proposal, nil)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	if len(round.Opinions) != 3 {
		t.Fatalf("got %d opinions, want 3", len(round.Opinions))
	}
	if len(round.Abstentions) != 0 {
		t.Errorf("got %d abstentions, want 0", len(round.Abstentions))
	}
	// Opinions are sorted by reviewer ID for deterministic rounds.
	wantOrder := []string{"integration", "lead", "security"}
	for i, want := range wantOrder {
		if round.Opinions[i].Reviewer != want {
			t.Errorf("Opinions[%d].Reviewer = %q, want %q", i, round.Opinions[i].Reviewer, want)
		}
	}
	if round.Opinions[1].Role != "lead" {
		t.Errorf("identity stamping: Role = %q, want lead", round.Opinions[1].Role)
	}
}

func TestCollectRecordsTimeoutAsAbstention(t *testing.T) {
	panel := []*Reviewer{
		mustReviewer(t, "lead", "lead", 0.5, stubSource(council.DecisionApprove, council.SeverityLow)),
		mustReviewer(t, "slow", "security", 0.5, slowSource(5*time.Second)),
	}
	c, err := NewCoordinator(panel, testConfig(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	round, err := c.Collect(context.Background(), "sess-1", 0, council.Proposal{Version: 1}, nil)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(round.Opinions) != 1 {
		t.Errorf("got %d opinions, want 1", len(round.Opinions))
	}
	if len(round.Abstentions) != 1 || round.Abstentions[0] != "slow" {
		t.Errorf("Abstentions = %v, want [slow]", round.Abstentions)
	}
}

func TestCollectBoundsSourcesThatIgnoreContext(t *testing.T) {
	// A source that never checks ctx must not hold the round open past
	// the per-reviewer timeout.
	stubborn := OpinionSourceFunc(func(ctx context.Context, req Request) (council.Opinion, error) {
		time.Sleep(5 * time.Second)
		return council.Opinion{Decision: council.DecisionApprove, Severity: council.SeverityLow}, nil
	})
	panel := []*Reviewer{
		mustReviewer(t, "lead", "lead", 0.5, stubSource(council.DecisionApprove, council.SeverityLow)),
		mustReviewer(t, "stubborn", "security", 0.5, stubborn),
	}
	c, err := NewCoordinator(panel, testConfig(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	round, err := c.Collect(context.Background(), "sess-1", 0, council.Proposal{Version: 1}, nil)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("Collect() took %s against a 1s per-reviewer timeout", elapsed)
	}
	if len(round.Abstentions) != 1 || round.Abstentions[0] != "stubborn" {
		t.Errorf("Abstentions = %v, want [stubborn]", round.Abstentions)
	}
}

func TestCollectRecordsMalformedOpinionAsAbstention(t *testing.T) {
	malformed := OpinionSourceFunc(func(ctx context.Context, req Request) (council.Opinion, error) {
		return council.Opinion{Decision: "maybe", Severity: council.SeverityLow}, nil
	})
	panel := []*Reviewer{
		mustReviewer(t, "lead", "lead", 0.5, stubSource(council.DecisionApprove, council.SeverityLow)),
		mustReviewer(t, "broken", "security", 0.5, malformed),
	}
	c, err := NewCoordinator(panel, testConfig(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	round, err := c.Collect(context.Background(), "sess-1", 0, council.Proposal{Version: 1}, nil)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(round.Abstentions) != 1 || round.Abstentions[0] != "broken" {
		t.Errorf("Abstentions = %v, want [broken]", round.Abstentions)
	}
}

func TestCollectFailsWhenAllAbstain(t *testing.T) {
	failing := OpinionSourceFunc(func(ctx context.Context, req Request) (council.Opinion, error) {
		return council.Opinion{}, errors.New("reviewer backend unavailable")
	})
	panel := []*Reviewer{
		mustReviewer(t, "a", "lead", 0.5, failing),
		mustReviewer(t, "b", "security", 0.5, failing),
	}
	c, err := NewCoordinator(panel, testConfig(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	round, err := c.Collect(context.Background(), "sess-1", 0, council.Proposal{Version: 1}, nil)
	if !errors.Is(err, errors.ErrNoReviewers) {
		t.Errorf("Collect() error = %v, want ErrNoReviewers", err)
	}
	if len(round.Abstentions) != 2 {
		t.Errorf("got %d abstentions, want 2", len(round.Abstentions))
	}
}

func TestCollectPublishesEvents(t *testing.T) {
	bus := event.NewBus()
	var opened, received, abstained int
	bus.Subscribe("round.opened", func(event.Event) { opened++ })
	bus.Subscribe("opinion.received", func(event.Event) { received++ })
	bus.Subscribe("reviewer.abstained", func(event.Event) { abstained++ })

	panel := []*Reviewer{
		mustReviewer(t, "lead", "lead", 0.5, stubSource(council.DecisionApprove, council.SeverityLow)),
		mustReviewer(t, "slow", "security", 0.5, slowSource(5*time.Second)),
	}
	c, err := NewCoordinator(panel, testConfig(), bus, nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := c.Collect(context.Background(), "sess-1", 0, council.Proposal{Version: 1}, nil); err != nil {
		t.Fatal(err)
	}

	if opened != 1 || received != 1 || abstained != 1 {
		t.Errorf("events opened/received/abstained = %d/%d/%d, want 1/1/1", opened, received, abstained)
	}
}

func TestNewCoordinatorRequiresPanel(t *testing.T) {
	if _, err := NewCoordinator(nil, testConfig(), nil, nil); !errors.Is(err, errors.ErrNoReviewers) {
		t.Errorf("NewCoordinator(nil panel) error = %v, want ErrNoReviewers", err)
	}
}

func TestReviewerCapabilities(t *testing.T) {
	r, err := NewReviewer(config.ReviewerConfig{
		ID: "security", Role: "security", Weight: 0.35,
		Capabilities: []string{"search:*", "audit:deps"},
	}, stubSource(council.DecisionApprove, council.SeverityLow))
	if err != nil {
		t.Fatalf("NewReviewer() error = %v", err)
	}

	tests := []struct {
		tool string
		want bool
	}{
		{"search:code", true},
		{"audit:deps", true},
		{"audit:network", false},
		{"deploy:prod", false},
	}
	for _, tt := range tests {
		if got := r.Can(tt.tool); got != tt.want {
			t.Errorf("Can(%q) = %v, want %v", tt.tool, got, tt.want)
		}
	}
}

func TestCollectPassesCapabilityGrantsToSources(t *testing.T) {
	// Sources receive the reviewer's grants and a matcher; tool use on
	// the reviewer's behalf is gated by them.
	toolUser := OpinionSourceFunc(func(ctx context.Context, req Request) (council.Opinion, error) {
		opinion := council.Opinion{Decision: council.DecisionApprove, Severity: council.SeverityLow}
		if req.Allowed == nil {
			return opinion, errors.New("no capability matcher provided")
		}
		if req.Allowed("audit:deps") {
			opinion.Rationale = "dependency audit clean"
		} else {
			opinion.Rationale = "audit not permitted"
		}
		return opinion, nil
	})

	auditor, err := NewReviewer(config.ReviewerConfig{
		ID: "auditor", Role: "security", Weight: 0.5,
		Capabilities: []string{"audit:*"},
	}, toolUser)
	if err != nil {
		t.Fatal(err)
	}
	reader, err := NewReviewer(config.ReviewerConfig{
		ID: "reader", Role: "lead", Weight: 0.5,
		Capabilities: []string{"search:*"},
	}, toolUser)
	if err != nil {
		t.Fatal(err)
	}

	c, err := NewCoordinator([]*Reviewer{auditor, reader}, testConfig(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	round, err := c.Collect(context.Background(), "sess-1", 0, council.Proposal{Version: 1}, nil)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	rationales := make(map[string]string)
	for _, o := range round.Opinions {
		rationales[o.Reviewer] = o.Rationale
	}
	if rationales["auditor"] != "dependency audit clean" {
		t.Errorf("auditor rationale = %q, want the audit to be permitted", rationales["auditor"])
	}
	if rationales["reader"] != "audit not permitted" {
		t.Errorf("reader rationale = %q, want the audit to be denied", rationales["reader"])
	}
}

func TestNewReviewerRejectsBadPattern(t *testing.T) {
	_, err := NewReviewer(config.ReviewerConfig{
		ID: "x", Role: "lead", Weight: 1,
		Capabilities: []string{"search:["},
	}, stubSource(council.DecisionApprove, council.SeverityLow))
	if err == nil {
		t.Error("NewReviewer() with invalid glob should fail")
	}
}
