package errors

import (
	"strings"
	"testing"
)

func TestReviewErrorFormatting(t *testing.T) {
	err := NewReviewError("collect opinions", ErrReviewerTimeout).WithReviewer("security")

	msg := err.Error()
	if !strings.Contains(msg, "reviewer=security") {
		t.Errorf("Error() = %q, want reviewer context", msg)
	}
	if !strings.Contains(msg, "reviewer timed out") {
		t.Errorf("Error() = %q, want wrapped cause", msg)
	}
}

func TestReviewErrorIs(t *testing.T) {
	err := NewReviewError("collect opinions", ErrReviewerTimeout)

	if !Is(err, ErrReviewerTimeout) {
		t.Error("Is(err, ErrReviewerTimeout) = false, want true")
	}
	if Is(err, ErrDebateTimeout) {
		t.Error("Is(err, ErrDebateTimeout) = true, want false")
	}
}

func TestDebateErrorContext(t *testing.T) {
	err := NewDebateError("restate positions", ErrDebateTimeout).
		WithDisagreement("dg-1").
		WithRound(2)

	msg := err.Error()
	for _, want := range []string{"disagreement=dg-1", "round=2", "debate round timed out"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
}

func TestErrorsAs(t *testing.T) {
	var wrapped error = NewWorkflowError("transition", ErrInvalidTransition).
		WithSession("sess-1").
		WithPhase("in_progress")

	var wfErr *WorkflowError
	if !As(wrapped, &wfErr) {
		t.Fatal("As(err, *WorkflowError) = false, want true")
	}
	if wfErr.SessionID != "sess-1" {
		t.Errorf("SessionID = %q, want %q", wfErr.SessionID, "sess-1")
	}
}

func TestIsSafeguard(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"reviewer timeout sentinel", ErrReviewerTimeout, true},
		{"debate timeout sentinel", ErrDebateTimeout, true},
		{"malformed opinion sentinel", ErrMalformedOpinion, true},
		{"wrapped review error", NewReviewError("collect", ErrReviewerTimeout), true},
		{"wrapped debate error", NewDebateError("restate", nil), true},
		{"workflow error", NewWorkflowError("transition", ErrInvalidTransition), false},
		{"persistence error", NewPersistenceError("save", nil), false},
		{"plain error", New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSafeguard(tt.err); got != tt.want {
				t.Errorf("IsSafeguard() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsFatal(t *testing.T) {
	if !IsFatal(NewPersistenceError("save snapshot", nil)) {
		t.Error("IsFatal(PersistenceError) = false, want true")
	}
	if !IsFatal(ErrProducerFailed) {
		t.Error("IsFatal(ErrProducerFailed) = false, want true")
	}
	if IsFatal(NewReviewError("collect", ErrReviewerTimeout)) {
		t.Error("IsFatal(ReviewError) = true, want false")
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(NewPersistenceError("save", nil)) {
		t.Error("IsRetryable(PersistenceError) = false, want true")
	}
	if IsRetryable(New("boom")) {
		t.Error("IsRetryable(plain error) = true, want false")
	}
}
