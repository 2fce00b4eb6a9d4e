package gateway

import (
	"github.com/google/uuid"

	"github.com/sidelinehq/sideline/go/internal/engine"
	"github.com/sidelinehq/sideline/go/internal/models"
	"github.com/sidelinehq/sideline/go/internal/syncengine"
)

// The connection manager doubles as the engine's notifier: every
// committed snapshot, status flip, conflict prompt, and clock tick is
// turned into a ServerEvent and queued for broadcast. All methods are
// non-blocking; a full broadcast channel drops rather than stalls the
// engine.

// SessionUpdated pushes the new snapshot to every viewing device.
func (cm *ConnectionManager) SessionUpdated(sessionID uuid.UUID, snapshot *models.GameSession, status syncengine.Status) {
	payload := SnapshotPayload{Snapshot: snapshot, SyncStatus: status}
	if sess, ok := cm.sessions.Get(sessionID); ok {
		payload.CanUndo = sess.Engine.CanUndo()
		payload.CanRedo = sess.Engine.CanRedo()
	}
	if event := cm.newEvent(sessionID, EventTypeSnapshot, payload); event != nil {
		cm.BroadcastToSession(sessionID, event)
	}
}

// SyncStatusChanged pushes a sync indicator change.
func (cm *ConnectionManager) SyncStatusChanged(sessionID uuid.UUID, status syncengine.Status) {
	if event := cm.newEvent(sessionID, EventTypeSyncStatus, SyncStatusPayload{Status: status}); event != nil {
		cm.BroadcastToSession(sessionID, event)
	}
}

// ConflictPrompt asks every viewing device to surface the keep-or-
// discard choice for conflicted edits.
func (cm *ConnectionManager) ConflictPrompt(sessionID uuid.UUID, conflict *syncengine.Conflict) {
	payload := ConflictPayload{
		RemoteDevice: conflict.RemoteDevice,
		Fields:       conflict.FieldNames(),
	}
	if event := cm.newEvent(sessionID, EventTypeConflict, payload); event != nil {
		cm.BroadcastToSession(sessionID, event)
	}
}

// ClockTick pushes the 1 Hz display refresh.
func (cm *ConnectionManager) ClockTick(sessionID uuid.UUID, tick engine.DisplayTick) {
	payload := ClockTickPayload{
		ElapsedMs: tick.Elapsed.Milliseconds(),
		Phase:     tick.Phase,
		IsRunning: tick.IsRunning,
	}
	if event := cm.newEvent(sessionID, EventTypeClockTick, payload); event != nil {
		cm.BroadcastToSession(sessionID, event)
	}
}
