// Package engine owns the live session state: every mutation, local or
// remote, funnels through one dispatch point backed by the pure
// session reducer, with the history stack and sync engine hanging off
// each commit.
package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/sidelinehq/sideline/go/internal/models"
	"github.com/sidelinehq/sideline/go/internal/session"
	"github.com/sidelinehq/sideline/go/internal/session/history"
	"github.com/sidelinehq/sideline/go/internal/syncengine"
)

// Engine serializes all mutations of one game session. Callers may
// dispatch from any goroutine; the internal mutex makes the reducer
// the sole serialization point.
type Engine struct {
	deviceID string
	clock    clockwork.Clock

	mu      sync.Mutex
	current *models.GameSession
	hist    *history.Stack
	syncer  *syncengine.Syncer
}

// New builds an engine around an initial snapshot. The snapshot itself
// becomes the history baseline.
func New(deviceID string, clock clockwork.Clock, initial *models.GameSession, historyLimit int) *Engine {
	hist := history.New(deviceID, historyLimit)
	hist.Commit(initial)
	return &Engine{
		deviceID: deviceID,
		clock:    clock,
		current:  initial,
		hist:     hist,
	}
}

// AttachSyncer wires the sync engine in. Optional; a detached engine
// works purely locally.
func (e *Engine) AttachSyncer(s *syncengine.Syncer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.syncer = s
}

// DeviceID returns the local device identifier.
func (e *Engine) DeviceID() string { return e.deviceID }

// Meta stamps an action with this device and the current instant.
func (e *Engine) Meta() session.Meta {
	return session.Meta{DeviceID: e.deviceID, At: e.clock.Now()}
}

// Snapshot returns the current immutable snapshot.
func (e *Engine) Snapshot() *models.GameSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Elapsed returns the derived match clock reading.
func (e *Engine) Elapsed() time.Duration {
	e.mu.Lock()
	s := e.current
	e.mu.Unlock()
	return s.Clock.Elapsed(e.clock.Now())
}

// CanUndo reports whether a local entry is available to undo.
func (e *Engine) CanUndo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hist.CanUndo()
}

// CanRedo reports whether an undone entry can be reinstated.
func (e *Engine) CanRedo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hist.CanRedo()
}

// SyncStatus returns the sync indicator state.
func (e *Engine) SyncStatus() syncengine.Status {
	e.mu.Lock()
	s := e.syncer
	e.mu.Unlock()
	if s == nil {
		return syncengine.StatusSynced
	}
	return s.Status()
}

// Dispatch applies one action, commits the result to history, and
// schedules an autosave. Rejections leave the session untouched and
// come back as a *session.RejectedActionError, never a panic across
// the dispatch boundary.
func (e *Engine) Dispatch(action session.Action) (*models.GameSession, error) {
	e.mu.Lock()
	syncer := e.syncer

	if key, ok := targetKey(action); ok && syncer != nil && syncer.Blocks(key) {
		cur := e.current
		e.mu.Unlock()
		return cur, &session.RejectedActionError{
			Action: action.Name(),
			Reason: "a sync conflict on this item is awaiting resolution",
		}
	}

	next, err := session.Apply(e.current, action)
	if err != nil {
		cur := e.current
		e.mu.Unlock()
		return cur, err
	}
	e.current = next
	e.hist.Commit(next)
	e.mu.Unlock()

	if syncer != nil {
		syncer.NotifyCommit(next)
	}
	return next, nil
}

// Undo restores the snapshot before the last local action. Remote
// entries interleaved above it are skipped and their data folded back
// in, never discarded.
func (e *Engine) Undo() (*models.GameSession, bool) {
	e.mu.Lock()
	res, ok := e.hist.Undo()
	if !ok {
		cur := e.current
		e.mu.Unlock()
		return cur, false
	}
	restored := res.Restored
	if res.SkippedRemote {
		mr := session.Merge(res.Undone.Snapshot, restored, e.current)
		restored = mr.Merged
	}
	restored = restored.Clone()
	restored.Revision = e.current.Revision + 1
	restored.LastWriter = e.deviceID
	e.current = restored
	syncer := e.syncer
	e.mu.Unlock()

	if syncer != nil {
		syncer.NotifyCommit(restored)
	}
	return restored, true
}

// Redo reinstates the most recently undone local action.
func (e *Engine) Redo() (*models.GameSession, bool) {
	e.mu.Lock()
	res, ok := e.hist.Redo()
	if !ok {
		cur := e.current
		e.mu.Unlock()
		return cur, false
	}
	restored := res.Restored
	if res.SkippedRemote && res.Prior != nil {
		mr := session.Merge(res.Prior, restored, e.current)
		restored = mr.Merged
	}
	restored = restored.Clone()
	restored.Revision = e.current.Revision + 1
	restored.LastWriter = e.deviceID
	e.current = restored
	syncer := e.syncer
	e.mu.Unlock()

	if syncer != nil {
		syncer.NotifyCommit(restored)
	}
	return restored, true
}

// ApplyMerge installs a snapshot reconciled with another device's
// edits. The history entry is tagged with the remote device so local
// undo skips it; the superseded local state stays one undo step away.
func (e *Engine) ApplyMerge(merged *models.GameSession, remoteDeviceID string) *models.GameSession {
	e.mu.Lock()
	defer e.mu.Unlock()

	next, err := session.Apply(e.current, session.MergeRemote{
		Meta:   session.Meta{DeviceID: remoteDeviceID, At: e.clock.Now()},
		Merged: merged,
	})
	if err != nil {
		log.Error().Err(err).Str("session_id", e.current.ID.String()).Msg("remote merge rejected")
		return e.current
	}
	e.current = next
	e.hist.CommitRemote(next, remoteDeviceID)
	return next
}

// ReconcileOnResume corrects a clock that kept "running" while the
// process was suspended: if the derived elapsed time overran the
// period, the clock pauses at the boundary and the phase advances.
func (e *Engine) ReconcileOnResume() {
	for _, action := range session.OverrunActions(e.Snapshot(), e.clock.Now(), e.deviceID) {
		if _, err := e.Dispatch(action); err != nil {
			log.Error().Err(err).Str("action", action.Name()).Msg("resume reconciliation action rejected")
			return
		}
	}
}

// targetKey extracts the field-level key an action edits, for conflict
// blocking.
func targetKey(action session.Action) (uuid.UUID, bool) {
	switch a := action.(type) {
	case session.PlacePlayer:
		return a.PlayerID, true
	case session.MovePlayer:
		return a.PlayerID, true
	case session.RemovePlayer:
		return a.PlayerID, true
	case session.PlaceOpponent:
		return a.MarkerID, true
	case session.MoveOpponent:
		return a.MarkerID, true
	case session.RemoveOpponent:
		return a.MarkerID, true
	}
	return uuid.Nil, false
}
