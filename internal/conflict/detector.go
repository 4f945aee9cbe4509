// Package conflict detects disagreements between the opinions of a
// review round. Detection is a pure scan over the round: three passes
// (decision, pattern, severity), deduplicated and ranked most severe
// first. Detected disagreements feed the debate engine.
package conflict

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/councilhq/council/internal/council"
)

// rationaleExcerptLen bounds the rationale text quoted in a position.
const rationaleExcerptLen = 100

// severityGap is the minimum severity rank distance for two
// assessments of the same concern to count as a conflict.
const severityGap = 2

// topicOverlapThreshold is the minimum token overlap for two concerns
// to be treated as the same topic.
const topicOverlapThreshold = 0.5

// Detect scans a round's opinions for pairwise conflicts. The result
// is deduplicated by (category, topic) and sorted critical-first. A
// round with fewer than two opinions yields nothing.
func Detect(round council.Round) []council.Disagreement {
	if len(round.Opinions) < 2 {
		return nil
	}

	var found []council.Disagreement
	found = append(found, detectDecisionConflicts(round)...)
	found = append(found, detectPatternConflicts(round)...)
	found = append(found, detectSeverityConflicts(round)...)

	found = dedupe(found)
	sort.SliceStable(found, func(i, j int) bool {
		if found[i].Severity.Rank() != found[j].Severity.Rank() {
			return found[i].Severity.Rank() > found[j].Severity.Rank()
		}
		return found[i].Topic < found[j].Topic
	})
	return found
}

// detectDecisionConflicts flags a round where approvals stand against
// revise, reject, or escalate verdicts.
func detectDecisionConflicts(round council.Round) []council.Disagreement {
	var approvals, objections int
	for _, o := range round.Opinions {
		switch o.Decision {
		case council.DecisionApprove:
			approvals++
		case council.DecisionRevise, council.DecisionReject, council.DecisionEscalate:
			objections++
		}
	}
	if approvals == 0 || objections == 0 {
		return nil
	}

	positions := make([]council.Position, 0, len(round.Opinions))
	for _, o := range round.Opinions {
		positions = append(positions, council.Position{
			Reviewer:  o.Reviewer,
			Statement: fmt.Sprintf("%s: %s", o.Decision, excerptRationale(o.Rationale)),
		})
	}

	return []council.Disagreement{{
		ID:         uuid.NewString(),
		Category:   council.ConflictDecision,
		Topic:      "Overall Design Approval",
		Positions:  positions,
		Severity:   AggregateSeverity(round.Opinions),
		RoundIndex: round.Index,
		DetectedAt: time.Now().UTC(),
	}}
}

// detectPatternConflicts scans concern/suggestion text for opposing
// technical stances from the fixed pattern table. A conflict requires
// at least two sides of a pattern, advocated by different reviewers.
func detectPatternConflicts(round council.Round) []council.Disagreement {
	texts := make(map[string]string, len(round.Opinions))
	for _, o := range round.Opinions {
		texts[o.Reviewer] = strings.ToLower(strings.Join(append(append([]string{}, o.Suggestions...), o.Concerns...), " "))
	}

	var found []council.Disagreement
	for _, pattern := range opposingPatterns {
		// reviewer -> first side they advocated
		advocates := make(map[string]string)
		sides := make(map[string]bool)

		sideNames := make([]string, 0, len(pattern.sides))
		for side := range pattern.sides {
			sideNames = append(sideNames, side)
		}
		sort.Strings(sideNames)

		for _, side := range sideNames {
			for _, keyword := range pattern.sides[side] {
				for _, o := range round.Opinions {
					if strings.Contains(texts[o.Reviewer], keyword) {
						if _, taken := advocates[o.Reviewer]; !taken {
							advocates[o.Reviewer] = side
						}
						if advocates[o.Reviewer] == side {
							sides[side] = true
						}
					}
				}
			}
		}
		if len(sides) < 2 {
			continue
		}

		var positions []council.Position
		for _, o := range round.Opinions {
			if side, ok := advocates[o.Reviewer]; ok {
				positions = append(positions, council.Position{
					Reviewer:  o.Reviewer,
					Statement: "Recommends " + side,
				})
			}
		}

		found = append(found, council.Disagreement{
			ID:         uuid.NewString(),
			Category:   council.ConflictPattern,
			Topic:      "Technical Approach: " + pattern.label,
			Positions:  positions,
			Severity:   council.SeverityMedium,
			RoundIndex: round.Index,
			DetectedAt: time.Now().UTC(),
		})
	}
	return found
}

// detectSeverityConflicts flags the same concern topic assessed at
// materially different severities (two or more levels apart).
func detectSeverityConflicts(round council.Round) []council.Disagreement {
	type assessment struct {
		reviewer string
		concern  string
		severity council.Severity
	}

	var all []assessment
	for _, o := range round.Opinions {
		for _, concern := range o.Concerns {
			all = append(all, assessment{o.Reviewer, concern, o.Severity})
		}
	}

	var found []council.Disagreement
	claimed := make([]bool, len(all))
	for i := range all {
		if claimed[i] {
			continue
		}
		group := []assessment{all[i]}
		for j := i + 1; j < len(all); j++ {
			if claimed[j] || all[j].reviewer == all[i].reviewer {
				continue
			}
			if tokenOverlap(all[i].concern, all[j].concern) >= topicOverlapThreshold {
				group = append(group, all[j])
				claimed[j] = true
			}
		}
		if len(group) < 2 {
			continue
		}

		minRank, maxRank := group[0].severity.Rank(), group[0].severity.Rank()
		for _, a := range group[1:] {
			if r := a.severity.Rank(); r < minRank {
				minRank = r
			} else if r > maxRank {
				maxRank = r
			}
		}
		if maxRank-minRank < severityGap {
			continue
		}

		positions := make([]council.Position, 0, len(group))
		for _, a := range group {
			positions = append(positions, council.Position{
				Reviewer:  a.reviewer,
				Statement: "Severity: " + a.severity.String(),
			})
		}
		found = append(found, council.Disagreement{
			ID:         uuid.NewString(),
			Category:   council.ConflictSeverity,
			Topic:      "Severity Assessment: " + excerptTopic(all[i].concern),
			Positions:  positions,
			Severity:   council.SeverityLow,
			RoundIndex: round.Index,
			DetectedAt: time.Now().UTC(),
		})
	}
	return found
}

// AggregateSeverity folds the opinions involved in a conflict into a
// single severity: any critical wins outright, repeated highs rank
// high, a lone high or repeated mediums rank medium, everything else
// low.
func AggregateSeverity(opinions []council.Opinion) council.Severity {
	counts := make(map[council.Severity]int)
	for _, o := range opinions {
		counts[o.Severity]++
	}
	switch {
	case counts[council.SeverityCritical] > 0:
		return council.SeverityCritical
	case counts[council.SeverityHigh] > 1:
		return council.SeverityHigh
	case counts[council.SeverityHigh] > 0 || counts[council.SeverityMedium] > 1:
		return council.SeverityMedium
	default:
		return council.SeverityLow
	}
}

// tokenOverlap computes the Jaccard overlap of the word sets of two
// concern strings, in [0,1].
func tokenOverlap(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	var shared int
	for token := range setA {
		if setB[token] {
			shared++
		}
	}
	union := len(setA) + len(setB) - shared
	return float64(shared) / float64(union)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, token := range strings.Fields(strings.ToLower(s)) {
		token = strings.Trim(token, ".,;:!?()\"'")
		if token != "" {
			set[token] = true
		}
	}
	return set
}

func dedupe(disagreements []council.Disagreement) []council.Disagreement {
	seen := make(map[string]bool)
	out := disagreements[:0]
	for _, d := range disagreements {
		key := string(d.Category) + "|" + d.Topic
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, d)
	}
	return out
}

func excerptRationale(s string) string {
	if len(s) <= rationaleExcerptLen {
		return s
	}
	return s[:rationaleExcerptLen] + "..."
}

func excerptTopic(s string) string {
	const max = 50
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
