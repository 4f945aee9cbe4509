// Package consensus computes the weighted agreement score for a
// review round. Votes are weighted by reviewer role, normalized so a
// revise-heavy panel sits at the midpoint, then adjusted by debate
// outcomes. The resulting ConsensusResult is append-only history on
// the run.
package consensus

import (
	"fmt"
	"time"

	"github.com/councilhq/council/internal/config"
	"github.com/councilhq/council/internal/council"
	"github.com/councilhq/council/internal/event"
	"github.com/councilhq/council/internal/logging"
)

// Per-decision vote scores, applied before weighting.
const (
	scoreApprove  = 1.0
	scoreRevise   = 0.0
	scoreReject   = -0.5
	scoreEscalate = 0.3
)

// Debate adjustment contract: each resolved debate adds
// debateDelta, each unresolved subtracts it, and the cumulative
// adjustment is clamped to ±debateAdjustmentCap.
const (
	debateDelta         = 0.05
	debateAdjustmentCap = 0.20
)

// Engine computes weighted consensus for rounds.
type Engine struct {
	cfg    config.ConsensusConfig
	bus    *event.Bus
	logger *logging.Logger
}

// NewEngine builds a consensus engine from configuration.
func NewEngine(cfg *config.Config, bus *event.Bus, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Engine{
		cfg:    cfg.Consensus,
		bus:    bus,
		logger: logger.WithComponent("consensus"),
	}
}

// Compute scores a round's opinions against the weight table, applies
// the debate adjustment, and decides whether the panel reached
// consensus. Abstaining reviewers contribute no weight.
func (e *Engine) Compute(sessionID string, round council.Round, debates []council.DebateOutcome) council.ConsensusResult {
	result := council.ConsensusResult{
		RoundIndex: round.Index,
		Threshold:  e.cfg.Threshold,
		Votes:      make(map[string]council.Decision, len(round.Opinions)),
		Weights:    make(map[string]float64, len(round.Opinions)),
		ComputedAt: time.Now().UTC(),
	}

	var totalWeight, weightedSum float64
	for _, o := range round.Opinions {
		weight := e.cfg.WeightFor(o.Role)
		result.Votes[o.Reviewer] = o.Decision
		result.Weights[o.Reviewer] = weight
		totalWeight += weight
		weightedSum += voteScore(o.Decision) * weight
	}

	base := normalize(weightedSum, totalWeight)
	adjustment := DebateAdjustment(debates)
	result.Score = clamp01(base + adjustment)
	result.Resolved = result.Score >= e.cfg.Threshold

	for _, d := range debates {
		if d.Resolved {
			result.ResolvedIDs = append(result.ResolvedIDs, d.DisagreementID)
		} else {
			result.UnresolvedIDs = append(result.UnresolvedIDs, d.DisagreementID)
		}
	}

	result.Summary = e.summarize(result, round, debates)

	if e.bus != nil {
		e.bus.Publish(event.NewConsensusComputedEvent(sessionID, round.Index, result.Score, result.Resolved))
	}
	e.logger.Info("consensus computed",
		"round", round.Index,
		"score", result.Score,
		"base", base,
		"adjustment", adjustment,
		"resolved", result.Resolved,
		"threshold", e.cfg.Threshold)

	return result
}

// DebateAdjustment folds debate outcomes into a bounded score delta:
// resolved debates push the score up, unresolved pull it down.
func DebateAdjustment(debates []council.DebateOutcome) float64 {
	if len(debates) == 0 {
		return 0
	}
	var resolved int
	for _, d := range debates {
		if d.Resolved {
			resolved++
		}
	}
	unresolved := len(debates) - resolved
	adjustment := float64(resolved)*debateDelta - float64(unresolved)*debateDelta
	if adjustment > debateAdjustmentCap {
		return debateAdjustmentCap
	}
	if adjustment < -debateAdjustmentCap {
		return -debateAdjustmentCap
	}
	return adjustment
}

func voteScore(d council.Decision) float64 {
	switch d {
	case council.DecisionApprove:
		return scoreApprove
	case council.DecisionRevise:
		return scoreRevise
	case council.DecisionReject:
		return scoreReject
	case council.DecisionEscalate:
		return scoreEscalate
	default:
		return 0
	}
}

// normalize maps the weighted sum into [0,1]. The range of the raw sum
// is [-0.5*W, +1.0*W] for total weight W; the affine mapping puts a
// zero sum (all revise) at 0.5.
func normalize(weightedSum, totalWeight float64) float64 {
	if totalWeight == 0 {
		return 0
	}
	return clamp01((weightedSum + 0.5*totalWeight) / (1.5 * totalWeight))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func (e *Engine) summarize(result council.ConsensusResult, round council.Round, debates []council.DebateOutcome) string {
	var approvals, revisions, rejections int
	for _, o := range round.Opinions {
		switch o.Decision {
		case council.DecisionApprove:
			approvals++
		case council.DecisionRevise:
			revisions++
		case council.DecisionReject:
			rejections++
		}
	}

	var forced int
	for _, d := range debates {
		if d.Resolved && d.Reason.Forced() {
			forced++
		}
	}

	var summary string
	if result.Resolved {
		summary = fmt.Sprintf("Consensus reached with %.1f%% confidence. Votes: %d approve, %d revise, %d reject.",
			result.Score*100, approvals, revisions, rejections)
		if len(debates) > 0 {
			summary += fmt.Sprintf(" Resolved %d/%d debates.", len(result.ResolvedIDs), len(debates))
		}
	} else {
		summary = fmt.Sprintf("Consensus not reached (%.1f%% confidence, threshold %.1f%%). Votes: %d approve, %d revise, %d reject.",
			result.Score*100, e.cfg.Threshold*100, approvals, revisions, rejections)
		if len(result.UnresolvedIDs) > 0 {
			summary += fmt.Sprintf(" %d unresolved debate(s). Requires adjudication.", len(result.UnresolvedIDs))
		}
	}
	if forced > 0 {
		summary += fmt.Sprintf(" Includes %d forced resolution(s).", forced)
	}
	return summary
}
