package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/councilhq/council/internal/config"
	"github.com/councilhq/council/internal/council"
	"github.com/councilhq/council/internal/session"
)

var statusCmd = &cobra.Command{
	Use:   "status <session-id>",
	Short: "Show the state of a council session",
	Args:  cobra.ExactArgs(1),
	RunE:  showStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

var (
	labelStyle = lipgloss.NewStyle().Bold(true).Width(14)
	dimStyle   = lipgloss.NewStyle().Faint(true)

	phaseStyles = map[council.Phase]lipgloss.Style{
		council.PhasePending:       lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		council.PhaseInProgress:    lipgloss.NewStyle().Foreground(lipgloss.Color("33")),
		council.PhaseAwaitingHuman: lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
		council.PhaseCompleted:     lipgloss.NewStyle().Foreground(lipgloss.Color("35")).Bold(true),
		council.PhaseFailed:        lipgloss.NewStyle().Foreground(lipgloss.Color("160")).Bold(true),
		council.PhaseCancelled:     lipgloss.NewStyle().Foreground(lipgloss.Color("160")),
	}
)

// phaseBadge renders a phase name in its status color.
func phaseBadge(phase council.Phase) string {
	style, ok := phaseStyles[phase]
	if !ok {
		return string(phase)
	}
	return style.Render(strings.ToUpper(string(phase)))
}

// shortID abbreviates a UUID for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func showStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	store, err := session.NewFileStore(cfg.Paths.ResolveSessionDir())
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}

	run, err := store.Load(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Session"), run.SessionID)
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Phase"), phaseBadge(run.Phase))
	fmt.Fprintf(w, "%s v%d (%d revision(s))\n", labelStyle.Render("Proposal"),
		run.Proposal.Version, run.RevisionCount)
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Updated"),
		run.UpdatedAt.Local().Format("2006-01-02 15:04:05"))

	for _, round := range run.Rounds {
		fmt.Fprintf(w, "\n%s %d opinions", labelStyle.Render(fmt.Sprintf("Round %d", round.Index)),
			len(round.Opinions))
		if len(round.Abstentions) > 0 {
			fmt.Fprintf(w, ", %d abstained", len(round.Abstentions))
		}
		fmt.Fprintln(w)
		for _, o := range round.Opinions {
			fmt.Fprintf(w, "  %-14s %-8s %s\n", o.Reviewer, o.Decision, dimStyle.Render(string(o.Severity)))
		}
	}

	if len(run.Debates) > 0 {
		fmt.Fprintf(w, "\n%s\n", labelStyle.Render("Debates"))
		for _, d := range run.Debates {
			state := "unresolved"
			if d.Resolved {
				state = "resolved"
			}
			fmt.Fprintf(w, "  %s  %s (%s, %d round(s), confidence %.2f)\n",
				shortID(d.DebateID), state, d.Reason, len(d.Rounds), d.Confidence)
		}
	}

	if result := run.LatestConsensus(); result != nil {
		fmt.Fprintf(w, "\n%s %.2f / %.2f\n", labelStyle.Render("Consensus"),
			result.Score, result.Threshold)
		fmt.Fprintf(w, "  %s\n", dimStyle.Render(result.Summary))
	}

	if run.Adjudication != nil {
		fmt.Fprintf(w, "\n%s %d binding decision(s)\n", labelStyle.Render("Adjudication"),
			len(run.Adjudication.Decisions))
		fmt.Fprintf(w, "  %s\n", dimStyle.Render(run.Adjudication.Rationale))
	}

	if run.HumanDecision != nil {
		fmt.Fprintf(w, "\n%s %s", labelStyle.Render("Human"), run.HumanDecision.Action)
		if run.HumanDecision.Comment != "" {
			fmt.Fprintf(w, " (%s)", run.HumanDecision.Comment)
		}
		fmt.Fprintln(w)
	}

	if why, ok := run.Metadata[council.MetaHumanEscalationWhy].(string); ok {
		fmt.Fprintf(w, "\n%s %s\n", labelStyle.Render("Escalation"), why)
	}

	for _, warning := range run.Warnings {
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Warning"), dimStyle.Render(warning))
	}
	for _, errMsg := range run.Errors {
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Error"), errMsg)
	}
	return nil
}
