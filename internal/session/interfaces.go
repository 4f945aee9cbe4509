// Package session persists workflow run snapshots to the local
// filesystem. Each session owns a directory holding its JSON snapshot
// and its debug log; the snapshot is rewritten atomically before every
// phase transition so a crashed run can be resumed from disk.
package session

import (
	"context"
	"time"

	"github.com/councilhq/council/internal/council"
)

// SnapshotFileName is the name of the run snapshot within a session directory.
const SnapshotFileName = "run.json"

// DecisionFileName is the name of the human decision file a session
// directory is watched for while a run awaits human input.
const DecisionFileName = "decision.json"

// Info summarizes a persisted session without loading its full snapshot.
type Info struct {
	SessionID     string        `json:"session_id"`
	Phase         council.Phase `json:"phase"`
	Excerpt       string        `json:"excerpt"`
	RevisionCount int           `json:"revision_count"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Store is the persistence interface for workflow runs.
type Store interface {
	// Save persists a run snapshot, replacing any previous snapshot
	// for the same session.
	Save(ctx context.Context, run *council.WorkflowRun) error

	// Load retrieves the snapshot for the given session.
	Load(ctx context.Context, sessionID string) (*council.WorkflowRun, error)

	// List returns summary information for all persisted sessions,
	// most recently updated first.
	List(ctx context.Context) ([]*Info, error)

	// Delete removes a session and all associated files.
	Delete(ctx context.Context, sessionID string) error

	// Exists reports whether a snapshot exists for the given session.
	Exists(ctx context.Context, sessionID string) bool

	// SessionDir returns the directory owned by the given session.
	SessionDir(sessionID string) string
}
