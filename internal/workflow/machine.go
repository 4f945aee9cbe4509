// Package workflow drives a proposal through the full review cycle:
// collect opinions, detect disagreements, debate them, compute
// consensus, adjudicate what remains, then route the run onward —
// revise and loop, finish, or hand off to a human. A single
// orchestrating goroutine sequences the phases; fan-out happens only
// inside the review and debate steps, which return immutable results.
// The run snapshot is persisted on every phase transition and after
// every inner step, so a crashed process resumes from disk.
package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/councilhq/council/internal/adjudicate"
	"github.com/councilhq/council/internal/config"
	"github.com/councilhq/council/internal/conflict"
	"github.com/councilhq/council/internal/consensus"
	"github.com/councilhq/council/internal/council"
	"github.com/councilhq/council/internal/debate"
	"github.com/councilhq/council/internal/errors"
	"github.com/councilhq/council/internal/event"
	"github.com/councilhq/council/internal/logging"
	"github.com/councilhq/council/internal/review"
	"github.com/councilhq/council/internal/session"
)

// Producer revises the proposal in response to panel feedback. Called
// on revision routing with the prior proposal and the concerns,
// suggestions, and binding rulings gathered for it.
type Producer interface {
	Produce(ctx context.Context, prior council.Proposal, feedback []string) (string, error)
}

// ProducerFunc adapts a function to the Producer interface.
type ProducerFunc func(ctx context.Context, prior council.Proposal, feedback []string) (string, error)

// Produce implements Producer.
func (f ProducerFunc) Produce(ctx context.Context, prior council.Proposal, feedback []string) (string, error) {
	return f(ctx, prior, feedback)
}

// DecisionGate blocks until a human decision arrives for a session.
// Satisfied by approval.Gate.
type DecisionGate interface {
	Await(ctx context.Context, sessionID string) (council.HumanDecision, error)
}

// Deps collects the collaborators the machine orchestrates.
type Deps struct {
	Coordinator *review.Coordinator
	Debates     *debate.Engine
	Consensus   *consensus.Engine
	Adjudicator *adjudicate.Adjudicator
	Producer    Producer
	Gate        DecisionGate
	Store       session.Store
}

// Machine is the workflow state machine for one or more runs.
type Machine struct {
	deps   Deps
	cfg    *config.Config
	bus    *event.Bus
	logger *logging.Logger
}

// New builds a Machine, rejecting missing collaborators up front.
func New(deps Deps, cfg *config.Config, bus *event.Bus, logger *logging.Logger) (*Machine, error) {
	switch {
	case deps.Coordinator == nil:
		return nil, errors.New("workflow requires a review coordinator")
	case deps.Debates == nil:
		return nil, errors.New("workflow requires a debate engine")
	case deps.Consensus == nil:
		return nil, errors.New("workflow requires a consensus engine")
	case deps.Adjudicator == nil:
		return nil, errors.New("workflow requires an adjudicator")
	case deps.Producer == nil:
		return nil, errors.New("workflow requires a producer")
	case deps.Gate == nil:
		return nil, errors.New("workflow requires a decision gate")
	case deps.Store == nil:
		return nil, errors.New("workflow requires a session store")
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Machine{
		deps:   deps,
		cfg:    cfg,
		bus:    bus,
		logger: logger.WithComponent("workflow"),
	}, nil
}

// Run drives a workflow run from its current phase to a terminal one.
// A freshly created run starts its first review round; a run restored
// in the awaiting-human phase resumes at the gate. Calling Run on a
// terminal run returns ErrRunTerminal.
func (m *Machine) Run(ctx context.Context, run *council.WorkflowRun) error {
	if run.Phase.Terminal() {
		return errors.NewWorkflowError("run already finished", errors.ErrRunTerminal).
			WithSession(run.SessionID).WithPhase(string(run.Phase))
	}

	logger := m.logger.WithSession(run.SessionID)

	if run.Phase == council.PhaseAwaitingHuman {
		return m.awaitHuman(ctx, run, logger)
	}

	if err := m.transition(run, council.PhaseInProgress, logger); err != nil {
		return err
	}

	for {
		verdict, err := m.cycle(ctx, run, logger)
		if err != nil {
			return m.fail(run, err, logger)
		}

		switch verdict {
		case routeCompleted:
			return m.transition(run, council.PhaseCompleted, logger)
		case routeHuman:
			return m.awaitHuman(ctx, run, logger)
		case routeRevise:
			if err := m.revise(ctx, run, logger); err != nil {
				return m.fail(run, err, logger)
			}
		}
	}
}

// route is the Evaluate step's verdict for one cycle.
type route int

const (
	routeCompleted route = iota
	routeHuman
	routeRevise
)

// cycle executes one review-debate-consensus-adjudication pass and
// evaluates where the run goes next.
func (m *Machine) cycle(ctx context.Context, run *council.WorkflowRun, logger *logging.Logger) (route, error) {
	roundIndex := len(run.Rounds)
	phaseLogger := logger.WithPhase(fmt.Sprintf("round-%d", roundIndex))
	roundStart := time.Now()

	// Review: fan out to the panel.
	round, err := m.deps.Coordinator.Collect(ctx, run.SessionID, roundIndex, run.Proposal, m.feedbackFor(run))
	if err != nil {
		// Every reviewer abstained: an unrecoverable collaborator fault.
		run.Rounds = append(run.Rounds, round)
		return 0, errors.NewWorkflowError("review round collected no opinions", err).
			WithSession(run.SessionID)
	}
	run.Rounds = append(run.Rounds, round)
	for _, reviewer := range round.Abstentions {
		run.RecordWarning(fmt.Sprintf("round %d: reviewer %s abstained", roundIndex, reviewer))
	}
	if err := m.save(run); err != nil {
		return 0, err
	}

	// Detect and debate disagreements.
	disagreements := conflict.Detect(round)
	run.Disagreements = append(run.Disagreements, disagreements...)
	phaseLogger.Info("disagreements detected", "count", len(disagreements))

	outcomes := m.deps.Debates.DebateAll(ctx, run.SessionID, disagreements)
	run.Debates = append(run.Debates, outcomes...)
	for _, outcome := range outcomes {
		if outcome.Resolved && outcome.Reason.Forced() {
			run.AppendForcedReason(string(outcome.Reason))
		}
		if outcome.Reason == council.ReasonError {
			run.RecordWarning(fmt.Sprintf("debate %s aborted: %s", outcome.DebateID, outcome.Summary))
		}
	}
	if err := m.save(run); err != nil {
		return 0, err
	}

	// Consensus over the round and its debates.
	result := m.deps.Consensus.Compute(run.SessionID, round, outcomes)
	run.ConsensusHistory = append(run.ConsensusHistory, result)
	m.recordRoundDuration(run, time.Since(roundStart))
	if err := m.save(run); err != nil {
		return 0, err
	}

	// Adjudicate what the debates left open.
	if !result.Resolved && len(run.UnresolvedDisagreements()) > 0 {
		if _, err := m.deps.Adjudicator.Run(ctx, run.SessionID, run); err != nil {
			run.RecordWarning(fmt.Sprintf("adjudication unavailable: %v", err))
		}
		if err := m.save(run); err != nil {
			return 0, err
		}
	}

	return m.evaluate(run, round, result, phaseLogger), nil
}

// evaluate applies the routing rules in priority order: critical
// opinions and exhausted revision budgets always escalate to a human;
// a resolved consensus completes the run; anything else revises and
// loops.
func (m *Machine) evaluate(run *council.WorkflowRun, round council.Round, result council.ConsensusResult, logger *logging.Logger) route {
	maxRevisions := m.cfg.Workflow.MaxRevisions
	if run.Metadata == nil {
		run.Metadata = make(map[string]any)
	}

	switch {
	case round.HasCritical():
		run.Metadata[council.MetaHumanEscalationWhy] = "critical severity opinion"
		logger.Warn("escalating to human", "reason", "critical severity opinion")
		return routeHuman
	case run.RevisionCount >= maxRevisions:
		run.Metadata[council.MetaHumanEscalationWhy] = "revision budget exhausted"
		logger.Warn("escalating to human", "reason", "revision budget exhausted",
			"revisions", run.RevisionCount, "max", maxRevisions)
		return routeHuman
	case result.Resolved:
		logger.Info("consensus resolved", "score", result.Score)
		return routeCompleted
	default:
		logger.Info("routing to revision", "score", result.Score, "revisions", run.RevisionCount)
		return routeRevise
	}
}

// revise asks the producer for a new proposal version built from the
// panel's feedback. A producer fault is fatal to the run.
func (m *Machine) revise(ctx context.Context, run *council.WorkflowRun, logger *logging.Logger) error {
	content, err := m.deps.Producer.Produce(ctx, run.Proposal, m.feedbackFor(run))
	if err != nil {
		return errors.NewWorkflowError("proposal revision failed", errors.Join(errors.ErrProducerFailed, err)).
			WithSession(run.SessionID)
	}
	run.ReviseProposal(content)
	logger.Info("proposal revised", "version", run.Proposal.Version, "revisions", run.RevisionCount)
	return m.save(run)
}

// awaitHuman parks the run at the decision gate and applies the one
// accepted decision.
func (m *Machine) awaitHuman(ctx context.Context, run *council.WorkflowRun, logger *logging.Logger) error {
	if err := m.transition(run, council.PhaseAwaitingHuman, logger); err != nil {
		return err
	}

	decision, err := m.deps.Gate.Await(ctx, run.SessionID)
	if err != nil {
		// No decision arrived; the run stays parked for a later resume.
		return err
	}
	run.HumanDecision = &decision
	if err := m.save(run); err != nil {
		return err
	}

	switch decision.Action {
	case council.DecisionApprove:
		return m.transition(run, council.PhaseCompleted, logger)
	case council.DecisionReject:
		return m.transition(run, council.PhaseCancelled, logger)
	case council.DecisionRevise:
		if err := m.transition(run, council.PhaseInProgress, logger); err != nil {
			return err
		}
		feedback := m.feedbackFor(run)
		if decision.Comment != "" {
			feedback = append(feedback, decision.Comment)
		}
		content, err := m.deps.Producer.Produce(ctx, run.Proposal, feedback)
		if err != nil {
			return m.fail(run, errors.NewWorkflowError("proposal revision failed",
				errors.Join(errors.ErrProducerFailed, err)).WithSession(run.SessionID), logger)
		}
		run.ReviseProposal(content)
		if err := m.save(run); err != nil {
			return m.fail(run, err, logger)
		}
		return m.Run(ctx, run)
	default:
		return errors.NewWorkflowError(fmt.Sprintf("unsupported human decision %q", decision.Action),
			errors.ErrInvalidInput).WithSession(run.SessionID)
	}
}

// feedbackFor gathers the most recent round's concerns and
// suggestions, plus any binding adjudication rulings, as revision
// guidance.
func (m *Machine) feedbackFor(run *council.WorkflowRun) []string {
	var feedback []string
	if round := run.CurrentRound(); round != nil {
		for _, o := range round.Opinions {
			feedback = append(feedback, o.Concerns...)
			feedback = append(feedback, o.Suggestions...)
		}
	}
	if run.Adjudication != nil {
		for _, d := range run.Adjudication.Decisions {
			feedback = append(feedback, d.Ruling)
		}
	}
	return feedback
}

// transition moves the run to a new phase, persists the snapshot, and
// publishes the change. The snapshot write happens before control
// leaves the transition.
func (m *Machine) transition(run *council.WorkflowRun, to council.Phase, logger *logging.Logger) error {
	if run.Phase == to {
		return m.save(run)
	}
	if run.Phase.Terminal() {
		return errors.NewWorkflowError(fmt.Sprintf("cannot leave terminal phase %s", run.Phase),
			errors.ErrInvalidTransition).WithSession(run.SessionID).WithPhase(string(run.Phase))
	}

	from := run.Phase
	run.Phase = to
	run.UpdatedAt = time.Now().UTC()

	if err := m.save(run); err != nil {
		// Roll the in-memory phase back so the caller sees the
		// persisted state.
		run.Phase = from
		return err
	}

	if m.bus != nil {
		m.bus.Publish(event.NewPhaseChangedEvent(run.SessionID, string(from), string(to)))
	}
	logger.Info("phase changed", "from", from, "to", to)
	return nil
}

// fail records the error, moves the run to Failed, and returns the
// original error.
func (m *Machine) fail(run *council.WorkflowRun, cause error, logger *logging.Logger) error {
	run.RecordError(cause.Error())
	if run.Phase.Terminal() {
		return cause
	}
	from := run.Phase
	run.Phase = council.PhaseFailed
	run.UpdatedAt = time.Now().UTC()
	if err := m.save(run); err != nil {
		logger.Error("failed to persist failure state", "error", err)
	} else if m.bus != nil {
		m.bus.Publish(event.NewPhaseChangedEvent(run.SessionID, string(from), string(council.PhaseFailed)))
	}
	logger.Error("run failed", "error", cause)
	return cause
}

func (m *Machine) save(run *council.WorkflowRun) error {
	return m.deps.Store.Save(context.Background(), run)
}

func (m *Machine) recordRoundDuration(run *council.WorkflowRun, elapsed time.Duration) {
	if run.Metadata == nil {
		run.Metadata = make(map[string]any)
	}
	var durations []int64
	switch v := run.Metadata[council.MetaRoundDurations].(type) {
	case []int64:
		durations = v
	case []any:
		for _, item := range v {
			if f, ok := item.(float64); ok {
				durations = append(durations, int64(f))
			}
		}
	}
	run.Metadata[council.MetaRoundDurations] = append(durations, elapsed.Milliseconds())
}
