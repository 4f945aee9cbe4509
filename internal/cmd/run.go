package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/councilhq/council/internal/adjudicate"
	"github.com/councilhq/council/internal/approval"
	"github.com/councilhq/council/internal/config"
	"github.com/councilhq/council/internal/consensus"
	"github.com/councilhq/council/internal/council"
	"github.com/councilhq/council/internal/debate"
	"github.com/councilhq/council/internal/event"
	"github.com/councilhq/council/internal/logging"
	"github.com/councilhq/council/internal/review"
	"github.com/councilhq/council/internal/session"
	"github.com/councilhq/council/internal/workflow"
)

var runCmd = &cobra.Command{
	Use:   "run [proposal-file]",
	Short: "Run a proposal through the review council",
	Long: `Run submits a proposal to the reviewer panel and drives it through
review, debate, consensus, and adjudication until the run completes,
needs a revision, or escalates to a human decision.

The proposal is read from the given file, or from stdin when no file
is provided. A run that escalates parks in the awaiting-human phase;
resume it with "council approve <session-id>".`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProposal,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Bool("quiet", false, "suppress per-phase progress output")
}

func runProposal(cmd *cobra.Command, args []string) error {
	content, err := readProposal(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := session.NewFileStore(cfg.Paths.ResolveSessionDir())
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}

	run := council.NewRun(content)
	sessionDir := store.SessionDir(run.SessionID)

	logger := logging.NopLogger()
	if cfg.Logging.Enabled {
		logger, err = logging.NewLogger(sessionDir, cfg.Logging.Level)
		if err != nil {
			return fmt.Errorf("failed to open session log: %w", err)
		}
		defer logger.Close()
	}

	bus := event.NewBus()
	quiet, _ := cmd.Flags().GetBool("quiet")
	if !quiet {
		subscribeProgress(bus, cmd.OutOrStdout())
	}

	machine, err := buildMachine(cfg, store, sessionDir, bus, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fmt.Fprintf(cmd.OutOrStdout(), "Session %s\n", run.SessionID)
	if err := machine.Run(ctx, run); err != nil {
		if run.Phase == council.PhaseAwaitingHuman {
			fmt.Fprintf(cmd.OutOrStdout(),
				"\nRun is awaiting a human decision.\nResume with: council approve %s\n",
				run.SessionID)
			return nil
		}
		return err
	}

	printOutcome(cmd.OutOrStdout(), run)
	return nil
}

// readProposal loads the proposal text from the file argument or stdin.
func readProposal(args []string) (string, error) {
	var data []byte
	var err error
	if len(args) == 1 {
		data, err = os.ReadFile(args[0])
		if err != nil {
			return "", fmt.Errorf("failed to read proposal: %w", err)
		}
	} else {
		data, err = io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read proposal from stdin: %w", err)
		}
	}
	if len(data) == 0 {
		return "", fmt.Errorf("proposal is empty")
	}
	return string(data), nil
}

// buildMachine wires the workflow machine with the built-in rule-based
// collaborators. The approval gate watches the session directory so an
// interrupted run can resume from another process.
func buildMachine(cfg *config.Config, store session.Store, sessionDir string, bus *event.Bus, logger *logging.Logger) (*workflow.Machine, error) {
	panel := make([]*review.Reviewer, 0, len(cfg.Review.Reviewers))
	for _, rc := range cfg.Review.Reviewers {
		reviewer, err := review.NewReviewer(rc, builtinSource(rc.Role))
		if err != nil {
			return nil, err
		}
		panel = append(panel, reviewer)
	}

	coordinator, err := review.NewCoordinator(panel, cfg, bus, logger)
	if err != nil {
		return nil, err
	}
	debates, err := debate.NewEngine(builtinRestater(), cfg, bus, logger)
	if err != nil {
		return nil, err
	}
	adjudicator, err := adjudicate.New(builtinRuler(cfg), cfg, bus, logger)
	if err != nil {
		return nil, err
	}

	return workflow.New(workflow.Deps{
		Coordinator: coordinator,
		Debates:     debates,
		Consensus:   consensus.NewEngine(cfg, bus, logger),
		Adjudicator: adjudicator,
		Producer:    workflow.ProducerFunc(builtinProducer()),
		Gate:        approval.NewGate(sessionDir, bus, logger),
		Store:       store,
	}, cfg, bus, logger)
}

// subscribeProgress prints one line per significant engine event.
func subscribeProgress(bus *event.Bus, w io.Writer) {
	dim := lipgloss.NewStyle().Faint(true)

	bus.Subscribe("round.opened", func(e event.Event) {
		ev := e.(event.RoundOpenedEvent)
		fmt.Fprintln(w, dim.Render(fmt.Sprintf("round %d: consulting %d reviewers on version %d",
			ev.RoundIndex, ev.Reviewers, ev.ProposalVersion)))
	})
	bus.Subscribe("reviewer.abstained", func(e event.Event) {
		ev := e.(event.ReviewerAbstainedEvent)
		fmt.Fprintln(w, dim.Render(fmt.Sprintf("round %d: %s abstained (%s)",
			ev.RoundIndex, ev.Reviewer, ev.Reason)))
	})
	bus.Subscribe("debate.resolved", func(e event.Event) {
		ev := e.(event.DebateResolvedEvent)
		fmt.Fprintln(w, dim.Render(fmt.Sprintf("debate %s: resolved=%t after %d round(s) (%s)",
			shortID(ev.DebateID), ev.Resolved, ev.Rounds, ev.Reason)))
	})
	bus.Subscribe("consensus.computed", func(e event.Event) {
		ev := e.(event.ConsensusComputedEvent)
		fmt.Fprintln(w, dim.Render(fmt.Sprintf("round %d: consensus score %.2f (resolved=%t)",
			ev.RoundIndex, ev.Score, ev.Resolved)))
	})
	bus.Subscribe("workflow.phase", func(e event.Event) {
		ev := e.(event.PhaseChangedEvent)
		fmt.Fprintln(w, dim.Render(fmt.Sprintf("phase: %s -> %s", ev.From, ev.To)))
	})
}

func printOutcome(w io.Writer, run *council.WorkflowRun) {
	fmt.Fprintf(w, "\n%s  session %s\n", phaseBadge(run.Phase), run.SessionID)
	if result := run.LatestConsensus(); result != nil {
		fmt.Fprintf(w, "Final consensus score: %.2f (threshold %.2f)\n", result.Score, result.Threshold)
		fmt.Fprintln(w, result.Summary)
	}
	if run.RevisionCount > 0 {
		fmt.Fprintf(w, "Revisions: %d\n", run.RevisionCount)
	}
}
