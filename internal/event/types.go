package event

import "time"

// Event is the interface that all events must implement.
// It provides a common way to identify and timestamp events.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "round.opened", "debate.resolved")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent with the current time.
func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Review Round Events
// -----------------------------------------------------------------------------

// RoundOpenedEvent is emitted when the coordinator begins collecting opinions.
type RoundOpenedEvent struct {
	baseEvent
	SessionID       string // Owning session
	RoundIndex      int    // Zero-based round index
	ProposalVersion int    // Proposal version under review
	Reviewers       int    // Number of reviewers being consulted
}

// NewRoundOpenedEvent creates a RoundOpenedEvent.
func NewRoundOpenedEvent(sessionID string, roundIndex, proposalVersion, reviewers int) RoundOpenedEvent {
	return RoundOpenedEvent{
		baseEvent:       newBaseEvent("round.opened"),
		SessionID:       sessionID,
		RoundIndex:      roundIndex,
		ProposalVersion: proposalVersion,
		Reviewers:       reviewers,
	}
}

// OpinionReceivedEvent is emitted when a reviewer's opinion arrives.
type OpinionReceivedEvent struct {
	baseEvent
	SessionID  string
	RoundIndex int
	Reviewer   string
	Decision   string
	Severity   string
}

// NewOpinionReceivedEvent creates an OpinionReceivedEvent.
func NewOpinionReceivedEvent(sessionID string, roundIndex int, reviewer, decision, severity string) OpinionReceivedEvent {
	return OpinionReceivedEvent{
		baseEvent:  newBaseEvent("opinion.received"),
		SessionID:  sessionID,
		RoundIndex: roundIndex,
		Reviewer:   reviewer,
		Decision:   decision,
		Severity:   severity,
	}
}

// ReviewerAbstainedEvent is emitted when a reviewer errors or times out
// and is recorded as an abstention for the round.
type ReviewerAbstainedEvent struct {
	baseEvent
	SessionID  string
	RoundIndex int
	Reviewer   string
	Reason     string // "timeout" or "error"
}

// NewReviewerAbstainedEvent creates a ReviewerAbstainedEvent.
func NewReviewerAbstainedEvent(sessionID string, roundIndex int, reviewer, reason string) ReviewerAbstainedEvent {
	return ReviewerAbstainedEvent{
		baseEvent:  newBaseEvent("reviewer.abstained"),
		SessionID:  sessionID,
		RoundIndex: roundIndex,
		Reviewer:   reviewer,
		Reason:     reason,
	}
}

// -----------------------------------------------------------------------------
// Debate Events
// -----------------------------------------------------------------------------

// DebateStartedEvent is emitted when a debate begins for a disagreement.
type DebateStartedEvent struct {
	baseEvent
	SessionID      string
	DebateID       string
	DisagreementID string
	Topic          string
}

// NewDebateStartedEvent creates a DebateStartedEvent.
func NewDebateStartedEvent(sessionID, debateID, disagreementID, topic string) DebateStartedEvent {
	return DebateStartedEvent{
		baseEvent:      newBaseEvent("debate.started"),
		SessionID:      sessionID,
		DebateID:       debateID,
		DisagreementID: disagreementID,
		Topic:          topic,
	}
}

// DebateResolvedEvent is emitted when a debate reaches a terminal state,
// whether naturally or through a safeguard.
type DebateResolvedEvent struct {
	baseEvent
	SessionID string
	DebateID  string
	Resolved  bool
	Reason    string // natural, timeout, repetition, max_rounds, error
	Rounds    int
}

// NewDebateResolvedEvent creates a DebateResolvedEvent.
func NewDebateResolvedEvent(sessionID, debateID string, resolved bool, reason string, rounds int) DebateResolvedEvent {
	return DebateResolvedEvent{
		baseEvent: newBaseEvent("debate.resolved"),
		SessionID: sessionID,
		DebateID:  debateID,
		Resolved:  resolved,
		Reason:    reason,
		Rounds:    rounds,
	}
}

// -----------------------------------------------------------------------------
// Consensus and Adjudication Events
// -----------------------------------------------------------------------------

// ConsensusComputedEvent is emitted after each consensus computation.
type ConsensusComputedEvent struct {
	baseEvent
	SessionID  string
	RoundIndex int
	Score      float64
	Resolved   bool
}

// NewConsensusComputedEvent creates a ConsensusComputedEvent.
func NewConsensusComputedEvent(sessionID string, roundIndex int, score float64, resolved bool) ConsensusComputedEvent {
	return ConsensusComputedEvent{
		baseEvent:  newBaseEvent("consensus.computed"),
		SessionID:  sessionID,
		RoundIndex: roundIndex,
		Score:      score,
		Resolved:   resolved,
	}
}

// AdjudicationRecordedEvent is emitted exactly once per session, when
// the adjudicator produces its binding record.
type AdjudicationRecordedEvent struct {
	baseEvent
	SessionID string
	Decisions int
	Approved  bool
}

// NewAdjudicationRecordedEvent creates an AdjudicationRecordedEvent.
func NewAdjudicationRecordedEvent(sessionID string, decisions int, approved bool) AdjudicationRecordedEvent {
	return AdjudicationRecordedEvent{
		baseEvent: newBaseEvent("adjudication.recorded"),
		SessionID: sessionID,
		Decisions: decisions,
		Approved:  approved,
	}
}

// -----------------------------------------------------------------------------
// Workflow Events
// -----------------------------------------------------------------------------

// PhaseChangedEvent is emitted after every workflow phase transition.
type PhaseChangedEvent struct {
	baseEvent
	SessionID string
	From      string
	To        string
}

// NewPhaseChangedEvent creates a PhaseChangedEvent.
func NewPhaseChangedEvent(sessionID, from, to string) PhaseChangedEvent {
	return PhaseChangedEvent{
		baseEvent: newBaseEvent("workflow.phase"),
		SessionID: sessionID,
		From:      from,
		To:        to,
	}
}

// HumanDecisionEvent is emitted when a human decision is accepted
// while the workflow is awaiting input.
type HumanDecisionEvent struct {
	baseEvent
	SessionID string
	Action    string // approve, revise, or reject
	Comment   string
}

// NewHumanDecisionEvent creates a HumanDecisionEvent.
func NewHumanDecisionEvent(sessionID, action, comment string) HumanDecisionEvent {
	return HumanDecisionEvent{
		baseEvent: newBaseEvent("human.decision"),
		SessionID: sessionID,
		Action:    action,
		Comment:   comment,
	}
}
