package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/councilhq/council/internal/adjudicate"
	"github.com/councilhq/council/internal/config"
	"github.com/councilhq/council/internal/council"
	"github.com/councilhq/council/internal/debate"
	"github.com/councilhq/council/internal/review"
)

// The CLI ships rule-based collaborators so a run works end to end
// without any external reviewer service wired in. Each panel role scans
// the proposal for trigger phrases and raises them as concerns until a
// revision carries a matching mitigation note.

// keywordRule flags a trigger phrase in proposal text.
type keywordRule struct {
	trigger    string
	concern    string
	suggestion string
	severity   council.Severity
}

var roleRules = map[string][]keywordRule{
	"lead": {
		{
			trigger:    "single point of failure",
			concern:    "design names a single point of failure without a recovery path",
			suggestion: "describe failover or degraded-mode behavior for the component",
			severity:   council.SeverityHigh,
		},
		{
			trigger:    "tbd",
			concern:    "proposal leaves sections marked tbd",
			suggestion: "resolve open sections before requesting approval",
			severity:   council.SeverityMedium,
		},
	},
	"security": {
		{
			trigger:    "plaintext",
			concern:    "data is handled in plaintext",
			suggestion: "encrypt the data at rest and in transit",
			severity:   council.SeverityHigh,
		},
		{
			trigger:    "no authentication",
			concern:    "an endpoint is exposed without authentication",
			suggestion: "require authenticated callers on every exposed endpoint",
			severity:   council.SeverityHigh,
		},
		{
			trigger:    "shared credentials",
			concern:    "components share a single credential",
			suggestion: "issue per-component credentials with least privilege",
			severity:   council.SeverityMedium,
		},
	},
	"specialist": {
		{
			trigger:    "unbounded queue",
			concern:    "queue growth is unbounded under load",
			suggestion: "bound the queue and define backpressure behavior",
			severity:   council.SeverityMedium,
		},
		{
			trigger:    "polling",
			concern:    "polling loop adds avoidable latency and load",
			suggestion: "consider push notification or filesystem events instead of polling",
			severity:   council.SeverityLow,
		},
	},
}

// builtinSource returns the rule-based opinion source for a panel role.
// Roles without a rule table approve everything at low severity.
func builtinSource(role string) review.OpinionSource {
	rules := roleRules[role]
	return review.OpinionSourceFunc(func(ctx context.Context, req review.Request) (council.Opinion, error) {
		content := strings.ToLower(req.Proposal.Content)

		opinion := council.Opinion{
			Decision: council.DecisionApprove,
			Severity: council.SeverityLow,
		}
		for _, rule := range rules {
			if !strings.Contains(content, rule.trigger) {
				continue
			}
			// A revision that carries a mitigation note for the concern
			// counts as having addressed it.
			if strings.Contains(content, "mitigation: "+strings.ToLower(rule.concern)) {
				continue
			}
			opinion.Concerns = append(opinion.Concerns, rule.concern)
			opinion.Suggestions = append(opinion.Suggestions, rule.suggestion)
			if rule.severity.Rank() > opinion.Severity.Rank() {
				opinion.Severity = rule.severity
			}
		}

		if len(opinion.Concerns) > 0 {
			opinion.Decision = council.DecisionRevise
			opinion.Rationale = fmt.Sprintf("%d unaddressed concern(s) in version %d",
				len(opinion.Concerns), req.Proposal.Version)
		} else {
			opinion.Rationale = fmt.Sprintf("no flagged issues in version %d", req.Proposal.Version)
		}
		return opinion, nil
	})
}

// builtinRestater restates positions once, then converges the panel on
// a merged statement. Debates between rule-based reviewers have no new
// information to surface, so one clarifying round is enough.
func builtinRestater() debate.Restater {
	return debate.RestaterFunc(func(ctx context.Context, d council.Disagreement, roundIndex int, current []council.Position) (debate.Restatement, error) {
		if roundIndex == 0 {
			restated := make([]council.Position, len(current))
			for i, p := range current {
				restated[i] = council.Position{
					Reviewer:  p.Reviewer,
					Statement: "maintains that " + p.Statement,
				}
			}
			return debate.Restatement{Positions: restated}, nil
		}

		var stances []string
		for _, p := range current {
			stances = append(stances, p.Statement)
		}
		merged := fmt.Sprintf("accepts the merged position on %s", d.Topic)
		converged := make([]council.Position, len(current))
		for i, p := range current {
			converged[i] = council.Position{Reviewer: p.Reviewer, Statement: merged}
		}
		return debate.Restatement{
			Positions: converged,
			Converged: true,
			Summary:   fmt.Sprintf("panel merged %d positions on %s", len(stances), d.Topic),
		}, nil
	})
}

// builtinRuler rules in favor of the highest-weight reviewer holding a
// position in each unresolved disagreement.
func builtinRuler(cfg *config.Config) adjudicate.Ruler {
	weights := make(map[string]float64)
	for _, r := range cfg.Review.Reviewers {
		weights[r.ID] = r.Weight
	}
	return adjudicate.RulerFunc(func(ctx context.Context, run *council.WorkflowRun, unresolved []council.Disagreement) (council.AdjudicationRecord, error) {
		record := council.AdjudicationRecord{
			Approved: true,
			Rationale: fmt.Sprintf("ruled on %d unresolved disagreement(s) by panel weight",
				len(unresolved)),
		}
		for _, d := range unresolved {
			var winner council.Position
			best := -1.0
			for _, p := range d.Positions {
				if w := weights[p.Reviewer]; w > best {
					best = w
					winner = p
				}
			}
			record.Decisions = append(record.Decisions, council.BindingDecision{
				DisagreementID: d.ID,
				Ruling:         winner.Statement,
				Rationale:      fmt.Sprintf("adopting %s's position (weight %.2f)", winner.Reviewer, best),
			})
		}
		return record, nil
	})
}

// builtinProducer revises the proposal by appending mitigation notes
// for each piece of panel feedback. The notes are what the rule-based
// reviewers look for on the next round.
func builtinProducer() func(ctx context.Context, prior council.Proposal, feedback []string) (string, error) {
	return func(ctx context.Context, prior council.Proposal, feedback []string) (string, error) {
		var b strings.Builder
		b.WriteString(prior.Content)
		b.WriteString(fmt.Sprintf("\n\n## Revision %d (%s)\n",
			prior.Revision+1, time.Now().UTC().Format("2006-01-02")))

		seen := make(map[string]bool)
		for _, item := range feedback {
			if item == "" || seen[item] {
				continue
			}
			seen[item] = true
			b.WriteString("- Mitigation: " + item + "\n")
		}
		return b.String(), nil
	}
}
