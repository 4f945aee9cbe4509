package council

import (
	"time"

	"github.com/google/uuid"
)

// Phase is the aggregate state of a workflow run.
type Phase string

const (
	// PhasePending indicates the run has been created but not started.
	PhasePending Phase = "pending"
	// PhaseInProgress indicates the review cycle is executing.
	PhaseInProgress Phase = "in_progress"
	// PhaseAwaitingHuman indicates the run is blocked on a human decision.
	PhaseAwaitingHuman Phase = "awaiting_human"
	// PhaseCompleted indicates the run finished with an accepted proposal.
	PhaseCompleted Phase = "completed"
	// PhaseFailed indicates an unrecoverable fault (persistence or producer).
	PhaseFailed Phase = "failed"
	// PhaseCancelled indicates a human rejected the proposal outright.
	PhaseCancelled Phase = "cancelled"
)

// Terminal returns true for phases from which no transition is possible.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed || p == PhaseCancelled
}

// Metadata keys recorded on the run when safeguards activate.
const (
	MetaForcedReasons      = "forced_consensus_reasons"
	MetaAdjudicatorRuns    = "adjudicator_run_count"
	MetaRoundDurations     = "round_durations_ms"
	MetaHumanEscalationWhy = "human_escalation_reason"
)

// WorkflowRun owns all state produced during one session. It is the
// unit of persistence: every entity above exists only inside a run,
// and the persisted snapshot is the source of truth across restarts
// (in particular for the adjudicator run counter).
type WorkflowRun struct {
	SessionID string `json:"session_id"`
	Phase     Phase  `json:"phase"`

	Proposal        Proposal   `json:"proposal"`
	ProposalHistory []Proposal `json:"proposal_history,omitempty"`
	RevisionCount   int        `json:"revision_count"`

	Rounds           []Round             `json:"rounds,omitempty"`
	Disagreements    []Disagreement      `json:"disagreements,omitempty"`
	Debates          []DebateOutcome     `json:"debates,omitempty"`
	ConsensusHistory []ConsensusResult   `json:"consensus_history,omitempty"`
	Adjudication     *AdjudicationRecord `json:"adjudication,omitempty"`

	AdjudicationComplete bool `json:"adjudication_complete"`
	AdjudicatorRunCount  int  `json:"adjudicator_run_count"`

	HumanDecision *HumanDecision `json:"human_decision,omitempty"`

	Errors   []string       `json:"errors,omitempty"`
	Warnings []string       `json:"warnings,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewRun creates a pending run for the given proposal content.
func NewRun(content string) *WorkflowRun {
	now := time.Now().UTC()
	return &WorkflowRun{
		SessionID: uuid.NewString(),
		Phase:     PhasePending,
		Proposal: Proposal{
			ID:      uuid.NewString(),
			Version: 1,
			Content: content,
			Created: now,
		},
		Metadata:  make(map[string]any),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CurrentRound returns the most recent round, or nil if no round has
// been collected yet.
func (r *WorkflowRun) CurrentRound() *Round {
	if len(r.Rounds) == 0 {
		return nil
	}
	return &r.Rounds[len(r.Rounds)-1]
}

// LatestConsensus returns the most recent consensus result, or nil.
func (r *WorkflowRun) LatestConsensus() *ConsensusResult {
	if len(r.ConsensusHistory) == 0 {
		return nil
	}
	return &r.ConsensusHistory[len(r.ConsensusHistory)-1]
}

// DebatesForRound returns the debate outcomes whose disagreements were
// detected in the given round.
func (r *WorkflowRun) DebatesForRound(roundIndex int) []DebateOutcome {
	ids := make(map[string]bool)
	for _, d := range r.Disagreements {
		if d.RoundIndex == roundIndex {
			ids[d.ID] = true
		}
	}
	var out []DebateOutcome
	for _, o := range r.Debates {
		if ids[o.DisagreementID] {
			out = append(out, o)
		}
	}
	return out
}

// UnresolvedDisagreements returns the disagreements whose debates did
// not reach a resolved outcome.
func (r *WorkflowRun) UnresolvedDisagreements() []Disagreement {
	unresolved := make(map[string]bool)
	for _, o := range r.Debates {
		if !o.Resolved {
			unresolved[o.DisagreementID] = true
		}
	}
	var out []Disagreement
	for _, d := range r.Disagreements {
		if unresolved[d.ID] {
			out = append(out, d)
		}
	}
	return out
}

// ReviseProposal archives the current proposal version and installs
// the revised content, incrementing the revision counter.
func (r *WorkflowRun) ReviseProposal(content string) {
	r.ProposalHistory = append(r.ProposalHistory, r.Proposal)
	r.Proposal = r.Proposal.Revise(content)
	r.RevisionCount++
	r.UpdatedAt = time.Now().UTC()
}

// RecordWarning appends a non-fatal warning to the run.
func (r *WorkflowRun) RecordWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
	r.UpdatedAt = time.Now().UTC()
}

// RecordError appends an error to the run without changing its phase.
func (r *WorkflowRun) RecordError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.UpdatedAt = time.Now().UTC()
}

// AppendForcedReason records a safeguard activation in the metadata map.
// Snapshots decode metadata lists as []any, so both shapes are accepted.
func (r *WorkflowRun) AppendForcedReason(reason string) {
	if r.Metadata == nil {
		r.Metadata = make(map[string]any)
	}
	var reasons []string
	switch v := r.Metadata[MetaForcedReasons].(type) {
	case []string:
		reasons = v
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				reasons = append(reasons, s)
			}
		}
	}
	r.Metadata[MetaForcedReasons] = append(reasons, reason)
}
