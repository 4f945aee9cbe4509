package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/councilhq/council/internal/council"
	"github.com/councilhq/council/internal/errors"
)

// excerptLen bounds the proposal excerpt included in listings.
const excerptLen = 80

// FileStore is a file-based implementation of the Store interface.
// Each session maps to a directory under baseDir named by its session
// ID, containing the JSON snapshot and the session's debug log.
type FileStore struct {
	baseDir string
	mu      sync.RWMutex
}

// NewFileStore creates a FileStore rooted at the given directory.
// The directory is created if it doesn't exist.
func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, errors.NewPersistenceError("create store directory", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

// Save persists a run snapshot using atomic write.
func (fs *FileStore) Save(ctx context.Context, run *council.WorkflowRun) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if run.SessionID == "" {
		return errors.NewPersistenceError("save snapshot", errors.ErrInvalidInput)
	}

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return errors.NewPersistenceError("marshal snapshot", err).WithSession(run.SessionID)
	}

	dir := fs.SessionDir(run.SessionID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.NewPersistenceError("create session directory", err).WithSession(run.SessionID)
	}

	path := filepath.Join(dir, SnapshotFileName)
	if err := atomicWriteFile(path, data, 0644); err != nil {
		return errors.NewPersistenceError("write snapshot", err).WithSession(run.SessionID)
	}
	return nil
}

// Load retrieves the snapshot for the given session.
func (fs *FileStore) Load(ctx context.Context, sessionID string) (*council.WorkflowRun, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	path := filepath.Join(fs.SessionDir(sessionID), SnapshotFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ErrSnapshotNotFound
		}
		return nil, errors.NewPersistenceError("read snapshot", err).WithSession(sessionID)
	}

	var run council.WorkflowRun
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrSnapshotCorrupted, err)
	}
	if run.SessionID != sessionID {
		return nil, fmt.Errorf("%w: session ID mismatch (file: %s, expected: %s)",
			errors.ErrSnapshotCorrupted, run.SessionID, sessionID)
	}
	return &run, nil
}

// List returns summaries of all persisted sessions, most recently
// updated first. Directories with unreadable or corrupt snapshots are
// skipped rather than failing the whole listing.
func (fs *FileStore) List(ctx context.Context) ([]*Info, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	entries, err := os.ReadDir(fs.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.NewPersistenceError("read store directory", err)
	}

	var infos []*Info
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(fs.baseDir, entry.Name(), SnapshotFileName)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var run council.WorkflowRun
		if err := json.Unmarshal(data, &run); err != nil {
			continue
		}
		infos = append(infos, &Info{
			SessionID:     run.SessionID,
			Phase:         run.Phase,
			Excerpt:       excerpt(run.Proposal.Content),
			RevisionCount: run.RevisionCount,
			CreatedAt:     run.CreatedAt,
			UpdatedAt:     run.UpdatedAt,
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].UpdatedAt.After(infos[j].UpdatedAt)
	})
	return infos, nil
}

// Delete removes a session directory and everything in it.
func (fs *FileStore) Delete(ctx context.Context, sessionID string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	dir := fs.SessionDir(sessionID)
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return errors.ErrSnapshotNotFound
		}
		return errors.NewPersistenceError("check session directory", err).WithSession(sessionID)
	}
	if err := os.RemoveAll(dir); err != nil {
		return errors.NewPersistenceError("delete session directory", err).WithSession(sessionID)
	}
	return nil
}

// Exists reports whether a snapshot exists for the given session.
func (fs *FileStore) Exists(ctx context.Context, sessionID string) bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	path := filepath.Join(fs.SessionDir(sessionID), SnapshotFileName)
	_, err := os.Stat(path)
	return err == nil
}

// SessionDir returns the directory owned by the given session.
func (fs *FileStore) SessionDir(sessionID string) string {
	return filepath.Join(fs.baseDir, sessionID)
}

// BaseDir returns the root directory for all sessions.
func (fs *FileStore) BaseDir() string {
	return fs.baseDir
}

func excerpt(content string) string {
	if len(content) <= excerptLen {
		return content
	}
	return content[:excerptLen] + "..."
}

// atomicWriteFile writes data to a file atomically by writing to a
// temporary file first, then renaming. The target file is never left
// in a partially-written state.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	// Temp file must live in the same directory for the rename to be atomic.
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}
