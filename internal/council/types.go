package council

import (
	"fmt"
	"time"
)

// Decision is a reviewer's verdict on a proposal version.
type Decision string

const (
	// DecisionApprove indicates the reviewer accepts the proposal as-is.
	DecisionApprove Decision = "approve"
	// DecisionRevise indicates the reviewer wants changes before approval.
	DecisionRevise Decision = "revise"
	// DecisionReject indicates the reviewer considers the proposal unworkable.
	DecisionReject Decision = "reject"
	// DecisionEscalate indicates the reviewer defers to a higher authority.
	DecisionEscalate Decision = "escalate"
)

// IsValid returns true if the decision is a recognized value.
func (d Decision) IsValid() bool {
	switch d {
	case DecisionApprove, DecisionRevise, DecisionReject, DecisionEscalate:
		return true
	}
	return false
}

// String returns the string representation of the decision.
func (d Decision) String() string {
	return string(d)
}

// Severity is the severity a reviewer attaches to an opinion or that a
// detected disagreement carries.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// IsValid returns true if the severity is a recognized value.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Rank returns a numeric rank for ordering severities.
// Higher rank = more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// String returns the string representation of the severity.
func (s Severity) String() string {
	return string(s)
}

// Proposal is the versioned artifact under review. A proposal is
// immutable once superseded; Revise returns the successor version.
type Proposal struct {
	ID       string    `json:"id"`
	Version  int       `json:"version"`
	Content  string    `json:"content"`
	Revision int       `json:"revision"`
	Created  time.Time `json:"created"`
}

// Revise returns the next version of the proposal with new content.
// The receiver is left untouched.
func (p Proposal) Revise(content string) Proposal {
	return Proposal{
		ID:       p.ID,
		Version:  p.Version + 1,
		Content:  content,
		Revision: p.Revision + 1,
		Created:  time.Now().UTC(),
	}
}

// Opinion is one reviewer's structured verdict on a proposal version.
// Immutable once created; one per (reviewer, round).
type Opinion struct {
	Reviewer    string    `json:"reviewer"`
	Role        string    `json:"role"`
	Decision    Decision  `json:"decision"`
	Severity    Severity  `json:"severity"`
	Concerns    []string  `json:"concerns,omitempty"`
	Suggestions []string  `json:"suggestions,omitempty"`
	Rationale   string    `json:"rationale"`
	Timestamp   time.Time `json:"timestamp"`
}

// Validate rejects opinions with unknown decision or severity values.
// Opinion sources return loosely structured payloads; the boundary
// enforces the fixed enums rather than trusting the collaborator.
func (o Opinion) Validate() error {
	if o.Reviewer == "" {
		return fmt.Errorf("opinion: missing reviewer identity")
	}
	if !o.Decision.IsValid() {
		return fmt.Errorf("opinion from %s: unknown decision %q", o.Reviewer, o.Decision)
	}
	if !o.Severity.IsValid() {
		return fmt.Errorf("opinion from %s: unknown severity %q", o.Reviewer, o.Severity)
	}
	return nil
}

// Round is the set of opinions collected for one proposal version.
// Reviewers that errored or timed out are recorded as abstentions and
// contribute zero weight downstream.
type Round struct {
	Index           int       `json:"index"`
	ProposalVersion int       `json:"proposal_version"`
	Opinions        []Opinion `json:"opinions"`
	Abstentions     []string  `json:"abstentions,omitempty"`
	OpenedAt        time.Time `json:"opened_at"`
	ClosedAt        time.Time `json:"closed_at"`
}

// HasCritical returns true if any opinion in the round carries
// critical severity.
func (r Round) HasCritical() bool {
	for _, o := range r.Opinions {
		if o.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// ConflictCategory classifies a detected disagreement.
type ConflictCategory string

const (
	// ConflictDecision marks opposing approve vs revise/reject/escalate verdicts.
	ConflictDecision ConflictCategory = "decision-conflict"
	// ConflictPattern marks opposing technical stances found in concern/suggestion text.
	ConflictPattern ConflictCategory = "pattern-conflict"
	// ConflictSeverity marks the same concern flagged at materially different severities.
	ConflictSeverity ConflictCategory = "severity-conflict"
)

// Position is one reviewer's stated stance within a disagreement.
type Position struct {
	Reviewer  string `json:"reviewer"`
	Statement string `json:"statement"`
}

// Disagreement is a detected conflict between two or more opinions in
// a round. Created by the detector, consumed by the debate engine.
type Disagreement struct {
	ID         string           `json:"id"`
	Category   ConflictCategory `json:"category"`
	Topic      string           `json:"topic"`
	Positions  []Position       `json:"positions"`
	Severity   Severity         `json:"severity"`
	RoundIndex int              `json:"round_index"`
	DetectedAt time.Time        `json:"detected_at"`
}

// ResolutionReason records how a debate reached its terminal state.
type ResolutionReason string

const (
	// ReasonNatural indicates the restatement collaborator signaled convergence.
	ReasonNatural ResolutionReason = "natural"
	// ReasonTimeout indicates a debate round exceeded its wall-clock budget.
	ReasonTimeout ResolutionReason = "timeout"
	// ReasonRepetition indicates consecutive rounds restated near-identical positions.
	ReasonRepetition ResolutionReason = "repetition"
	// ReasonMaxRounds indicates the round budget was exhausted.
	ReasonMaxRounds ResolutionReason = "max_rounds"
	// ReasonError indicates the restatement collaborator failed unrecoverably.
	ReasonError ResolutionReason = "error"
)

// Forced returns true for safeguard-triggered resolutions that yielded
// a resolved outcome without genuine agreement.
func (r ResolutionReason) Forced() bool {
	return r == ReasonTimeout || r == ReasonRepetition || r == ReasonMaxRounds
}

// DebateRound is one round's position snapshot within a debate.
type DebateRound struct {
	Index     int           `json:"index"`
	Positions []Position    `json:"positions"`
	Converged bool          `json:"converged"`
	Elapsed   time.Duration `json:"elapsed"`
}

// DebateOutcome is the terminal result of debating one disagreement.
// Immutable once finalized.
type DebateOutcome struct {
	DebateID       string           `json:"debate_id"`
	DisagreementID string           `json:"disagreement_id"`
	Rounds         []DebateRound    `json:"rounds"`
	Resolved       bool             `json:"resolved"`
	Reason         ResolutionReason `json:"reason"`
	Confidence     float64          `json:"confidence"`
	Summary        string           `json:"summary"`
	FinishedAt     time.Time        `json:"finished_at"`
}

// ConsensusResult is the weighted aggregate for one round.
// One per round; the run's consensus history is append-only.
type ConsensusResult struct {
	RoundIndex    int                 `json:"round_index"`
	Score         float64             `json:"score"`
	Resolved      bool                `json:"resolved"`
	Threshold     float64             `json:"threshold"`
	Votes         map[string]Decision `json:"votes"`
	Weights       map[string]float64  `json:"weights"`
	ResolvedIDs   []string            `json:"resolved_disagreements,omitempty"`
	UnresolvedIDs []string            `json:"unresolved_disagreements,omitempty"`
	Summary       string              `json:"summary"`
	ComputedAt    time.Time           `json:"computed_at"`
}

// BindingDecision is the adjudicator's ruling on one unresolved
// disagreement.
type BindingDecision struct {
	DisagreementID string `json:"disagreement_id"`
	Ruling         string `json:"ruling"`
	Rationale      string `json:"rationale"`
}

// AdjudicationRecord is the single allowed adjudicator output for a
// session. Created at most once, never mutated afterwards.
type AdjudicationRecord struct {
	Decisions  []BindingDecision `json:"decisions"`
	Rationale  string            `json:"rationale"`
	Approved   bool              `json:"approved"`
	RecordedAt time.Time         `json:"recorded_at"`
}

// HumanDecision is the single decision accepted while awaiting human
// input.
type HumanDecision struct {
	Action  Decision  `json:"action"` // approve, revise, or reject
	Comment string    `json:"comment,omitempty"`
	At      time.Time `json:"at"`
}

// Validate rejects decisions outside the accepted action set.
func (h HumanDecision) Validate() error {
	switch h.Action {
	case DecisionApprove, DecisionRevise, DecisionReject:
		return nil
	}
	return fmt.Errorf("human decision: unsupported action %q", h.Action)
}
