// Package approval blocks a workflow run on a human decision. While a
// run sits in the awaiting-human phase, the gate watches the session
// directory for a decision file and returns the first valid decision
// written there. The gate has no timeout: it holds until a decision
// arrives or the context is cancelled.
package approval

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/councilhq/council/internal/council"
	"github.com/councilhq/council/internal/errors"
	"github.com/councilhq/council/internal/event"
	"github.com/councilhq/council/internal/logging"
	"github.com/councilhq/council/internal/session"
)

// debounce delays reads after a filesystem event so a decision file
// written in multiple syscalls is not read half-finished.
const debounce = 100 * time.Millisecond

// decisionFile is the on-disk shape of a submitted decision.
type decisionFile struct {
	Action  string `json:"action"`
	Comment string `json:"comment,omitempty"`
}

// Gate awaits human decisions for sessions.
type Gate struct {
	sessionDir string
	bus        *event.Bus
	logger     *logging.Logger
}

// NewGate builds a gate over the given session directory.
func NewGate(sessionDir string, bus *event.Bus, logger *logging.Logger) *Gate {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Gate{
		sessionDir: sessionDir,
		bus:        bus,
		logger:     logger.WithComponent("approval"),
	}
}

// Await blocks until a valid decision file appears in the session
// directory, then returns the decision. A decision written before
// Await was called is picked up immediately. Malformed or incomplete
// files are logged and ignored; the gate keeps waiting for a valid
// rewrite. There is no timeout: only ctx cancellation ends the wait
// without a decision.
func (g *Gate) Await(ctx context.Context, sessionID string) (council.HumanDecision, error) {
	path := filepath.Join(g.sessionDir, session.DecisionFileName)

	// The decision may predate the watch.
	if decision, ok := g.tryRead(path); ok {
		return g.accept(sessionID, path, decision), nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return council.HumanDecision{}, errors.NewWorkflowError("failed to create decision watcher", err).WithSession(sessionID)
	}
	defer watcher.Close()

	// Watch the directory rather than the file: fsnotify handles
	// create-then-rename writes more reliably that way.
	if err := os.MkdirAll(g.sessionDir, 0755); err != nil {
		return council.HumanDecision{}, errors.NewWorkflowError("failed to create session directory", err).WithSession(sessionID)
	}
	if err := watcher.Add(g.sessionDir); err != nil {
		return council.HumanDecision{}, errors.NewWorkflowError("failed to watch session directory", err).WithSession(sessionID)
	}

	// A second pre-check closes the race between the first check and
	// the watch starting.
	if decision, ok := g.tryRead(path); ok {
		return g.accept(sessionID, path, decision), nil
	}

	g.logger.Info("awaiting human decision", "session", sessionID, "path", path)

	debounceTimer := time.NewTimer(0)
	<-debounceTimer.C
	defer debounceTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return council.HumanDecision{}, errors.Join(errors.ErrDecisionPending, ctx.Err())

		case ev, ok := <-watcher.Events:
			if !ok {
				return council.HumanDecision{}, errors.ErrDecisionPending
			}
			if filepath.Base(ev.Name) != session.DecisionFileName {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			debounceTimer.Reset(debounce)

		case <-debounceTimer.C:
			if decision, ok := g.tryRead(path); ok {
				return g.accept(sessionID, path, decision), nil
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return council.HumanDecision{}, errors.ErrDecisionPending
			}
			g.logger.Warn("decision watcher error", "session", sessionID, "error", err)
		}
	}
}

// tryRead attempts to load and validate a decision file. Missing or
// malformed files return ok=false.
func (g *Gate) tryRead(path string) (council.HumanDecision, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return council.HumanDecision{}, false
	}

	var df decisionFile
	if err := json.Unmarshal(data, &df); err != nil {
		g.logger.Warn("ignoring malformed decision file", "path", path, "error", err)
		return council.HumanDecision{}, false
	}

	decision := council.HumanDecision{
		Action:  council.Decision(df.Action),
		Comment: df.Comment,
		At:      time.Now().UTC(),
	}
	if err := decision.Validate(); err != nil {
		g.logger.Warn("ignoring invalid decision", "path", path, "error", err)
		return council.HumanDecision{}, false
	}
	return decision, true
}

func (g *Gate) accept(sessionID, path string, decision council.HumanDecision) council.HumanDecision {
	// Consume the file so a later escalation in the same session does
	// not replay a stale decision.
	if err := os.Remove(path); err != nil {
		g.logger.Warn("failed to remove consumed decision file", "path", path, "error", err)
	}
	if g.bus != nil {
		g.bus.Publish(event.NewHumanDecisionEvent(sessionID, decision.Action.String(), decision.Comment))
	}
	g.logger.Info("human decision received",
		"session", sessionID,
		"action", decision.Action,
		"comment", decision.Comment)
	return decision
}

// Submit writes a decision file into a session directory for a
// waiting gate to pick up. Used by the approve command.
func Submit(sessionDir string, action council.Decision, comment string) error {
	decision := council.HumanDecision{Action: action, Comment: comment}
	if err := decision.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(sessionDir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(decisionFile{
		Action:  action.String(),
		Comment: comment,
	}, "", "  ")
	if err != nil {
		return err
	}

	// Write-then-rename so the watcher never sees a partial file.
	tmp, err := os.CreateTemp(sessionDir, ".decision-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, filepath.Join(sessionDir, session.DecisionFileName))
}
