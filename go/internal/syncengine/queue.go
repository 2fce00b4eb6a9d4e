package syncengine

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sidelinehq/sideline/go/internal/models"
)

// queue is the durable offline write queue. Edits within one session
// collapse to the latest snapshot, so the queue holds at most one
// entry per session, written atomically via rename. An empty dir
// disables durability (memory-only operation, e.g. tests).
type queue struct {
	dir string
}

func newQueue(dir string) *queue {
	return &queue{dir: dir}
}

func (q *queue) path(id uuid.UUID) string {
	return filepath.Join(q.dir, fmt.Sprintf("%s.pending.json", id))
}

// Save persists the latest unsynced snapshot, replacing any older one.
func (q *queue) Save(snapshot *models.GameSession) error {
	if q.dir == "" {
		return nil
	}
	if err := os.MkdirAll(q.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create queue dir: %w", err)
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal queued snapshot: %w", err)
	}
	tmp := q.path(snapshot.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write queue file: %w", err)
	}
	if err := os.Rename(tmp, q.path(snapshot.ID)); err != nil {
		return fmt.Errorf("failed to commit queue file: %w", err)
	}
	return nil
}

// Load returns the queued snapshot for a session, or nil.
func (q *queue) Load(id uuid.UUID) (*models.GameSession, error) {
	if q.dir == "" {
		return nil, nil
	}
	data, err := os.ReadFile(q.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read queue file: %w", err)
	}
	var snapshot models.GameSession
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode queued snapshot: %w", err)
	}
	return &snapshot, nil
}

// QueuedSnapshot returns the offline-queued snapshot for a session, or
// nil when the queue is empty or disabled. Resuming callers seed the
// session from it when it is newer than the remote copy.
func QueuedSnapshot(cfg Config, id uuid.UUID) *models.GameSession {
	snap, err := newQueue(cfg.QueueDir).Load(id)
	if err != nil {
		log.Warn().Err(err).Str("session_id", id.String()).Msg("failed to read offline queue")
		return nil
	}
	return snap
}

// Clear drops the queued snapshot once it has reached the remote store.
func (q *queue) Clear(id uuid.UUID) {
	if q.dir == "" {
		return
	}
	if err := os.Remove(q.path(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Str("session_id", id.String()).Msg("failed to clear offline queue entry")
	}
}
