package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/councilhq/council/internal/approval"
	"github.com/councilhq/council/internal/config"
	"github.com/councilhq/council/internal/council"
	"github.com/councilhq/council/internal/event"
	"github.com/councilhq/council/internal/logging"
	"github.com/councilhq/council/internal/session"
)

var approveCmd = &cobra.Command{
	Use:   "approve <session-id>",
	Short: "Decide on a session awaiting human input",
	Long: `Approve resolves a run parked in the awaiting-human phase. Without
flags it opens an interactive picker for the decision and an optional
comment; with --action it submits non-interactively. After the
decision is recorded the run is resumed in this process.`,
	Args: cobra.ExactArgs(1),
	RunE: decideSession,
}

func init() {
	rootCmd.AddCommand(approveCmd)
	approveCmd.Flags().String("action", "", "decision to submit: approve, revise, or reject")
	approveCmd.Flags().String("comment", "", "optional comment attached to the decision")
	approveCmd.Flags().Bool("no-resume", false, "record the decision without resuming the run in this process")
}

func decideSession(cmd *cobra.Command, args []string) error {
	sessionID := args[0]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	store, err := session.NewFileStore(cfg.Paths.ResolveSessionDir())
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}

	run, err := store.Load(cmd.Context(), sessionID)
	if err != nil {
		return err
	}
	if run.Phase != council.PhaseAwaitingHuman {
		return fmt.Errorf("session %s is %s, not awaiting a human decision", sessionID, run.Phase)
	}

	action := council.Decision(mustString(cmd, "action"))
	comment := mustString(cmd, "comment")
	if action == "" {
		action, comment, err = pickDecision(run)
		if err != nil {
			return err
		}
		if action == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "No decision submitted.")
			return nil
		}
	}

	sessionDir := store.SessionDir(sessionID)
	if err := approval.Submit(sessionDir, action, comment); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s for session %s\n", action, sessionID)

	// If the original run process is still attached, its gate applies
	// the decision; resuming here as well would contend for it.
	if noResume, _ := cmd.Flags().GetBool("no-resume"); noResume {
		return nil
	}

	// Resume the parked run; the gate picks up the decision file that
	// was just written.
	logger := logging.NopLogger()
	if cfg.Logging.Enabled {
		logger, err = logging.NewLogger(sessionDir, cfg.Logging.Level)
		if err != nil {
			return fmt.Errorf("failed to open session log: %w", err)
		}
		defer logger.Close()
	}

	bus := event.NewBus()
	subscribeProgress(bus, cmd.OutOrStdout())
	machine, err := buildMachine(cfg, store, sessionDir, bus, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := machine.Run(ctx, run); err != nil {
		if run.Phase == council.PhaseAwaitingHuman {
			fmt.Fprintf(cmd.OutOrStdout(),
				"\nRun is awaiting another human decision.\nResume with: council approve %s\n",
				sessionID)
			return nil
		}
		return err
	}
	printOutcome(cmd.OutOrStdout(), run)
	return nil
}

func mustString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}

// pickDecision runs the interactive decision picker. An empty action
// means the user aborted without deciding.
func pickDecision(run *council.WorkflowRun) (council.Decision, string, error) {
	model := newApproveModel(run)
	final, err := tea.NewProgram(model).Run()
	if err != nil {
		return "", "", err
	}
	m := final.(approveModel)
	if m.aborted {
		return "", "", nil
	}
	return m.actions[m.cursor], m.comment.Value(), nil
}

const (
	stagePick = iota
	stageComment
)

var (
	pickerTitleStyle    = lipgloss.NewStyle().Bold(true).MarginBottom(1)
	pickerCursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	pickerHelpStyle     = lipgloss.NewStyle().Faint(true).MarginTop(1)
	pickerContextStyle  = lipgloss.NewStyle().Faint(true)
	pickerSelectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("35"))
)

// approveModel is the bubbletea model for the decision picker: an
// action list first, then an optional comment input.
type approveModel struct {
	run     *council.WorkflowRun
	actions []council.Decision
	cursor  int
	stage   int
	comment textinput.Model
	aborted bool
}

func newApproveModel(run *council.WorkflowRun) approveModel {
	ti := textinput.New()
	ti.Placeholder = "optional comment"
	ti.CharLimit = 200
	ti.Width = 60

	return approveModel{
		run:     run,
		actions: []council.Decision{council.DecisionApprove, council.DecisionRevise, council.DecisionReject},
		comment: ti,
	}
}

func (m approveModel) Init() tea.Cmd {
	return nil
}

func (m approveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		if m.stage == stageComment {
			var cmd tea.Cmd
			m.comment, cmd = m.comment.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	switch keyMsg.String() {
	case "ctrl+c", "esc":
		m.aborted = true
		return m, tea.Quit
	}

	if m.stage == stagePick {
		switch keyMsg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.actions)-1 {
				m.cursor++
			}
		case "enter":
			m.stage = stageComment
			m.comment.Focus()
			return m, textinput.Blink
		}
		return m, nil
	}

	if keyMsg.String() == "enter" {
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.comment, cmd = m.comment.Update(msg)
	return m, cmd
}

func (m approveModel) View() string {
	var b []string

	b = append(b, pickerTitleStyle.Render(fmt.Sprintf("Decision for session %s", shortID(m.run.SessionID))))
	if why, ok := m.run.Metadata[council.MetaHumanEscalationWhy].(string); ok {
		b = append(b, pickerContextStyle.Render("Escalated: "+why), "")
	}
	if result := m.run.LatestConsensus(); result != nil {
		b = append(b, pickerContextStyle.Render(
			fmt.Sprintf("Last consensus: %.2f / %.2f", result.Score, result.Threshold)), "")
	}

	for i, action := range m.actions {
		line := "  " + string(action)
		if i == m.cursor {
			line = pickerCursorStyle.Render("> ") + pickerSelectedStyle.Render(string(action))
		}
		b = append(b, line)
	}

	if m.stage == stageComment {
		b = append(b, "", "Comment:", m.comment.View())
		b = append(b, pickerHelpStyle.Render("enter submit • esc abort"))
	} else {
		b = append(b, pickerHelpStyle.Render("↑/↓ select • enter continue • esc abort"))
	}

	return lipgloss.JoinVertical(lipgloss.Left, b...)
}
