package gateway

import (
	"encoding/json"
	"time"

	"github.com/sidelinehq/sideline/go/internal/models"
	"github.com/sidelinehq/sideline/go/internal/syncengine"
)

// ServerEvent is the envelope pushed to every device viewing a session.
type ServerEvent struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// EventType names the kind of server push.
type EventType string

const (
	EventTypeSnapshot   EventType = "Snapshot"
	EventTypeSyncStatus EventType = "SyncStatus"
	EventTypeConflict   EventType = "Conflict"
	EventTypeClockTick  EventType = "ClockTick"
	EventTypeRejected   EventType = "Rejected"
)

// SnapshotPayload carries the full session state after any committed
// mutation, local or merged from another device.
type SnapshotPayload struct {
	Snapshot   *models.GameSession `json:"snapshot"`
	SyncStatus syncengine.Status   `json:"sync_status"`
	CanUndo    bool                `json:"can_undo"`
	CanRedo    bool                `json:"can_redo"`
}

// SyncStatusPayload carries a sync indicator change on its own, so the
// UI can flip the badge without re-rendering the field.
type SyncStatusPayload struct {
	Status syncengine.Status `json:"status"`
}

// ConflictPayload asks the coach to confirm or discard conflicted
// edits after a concurrent-change merge.
type ConflictPayload struct {
	RemoteDevice string   `json:"remote_device"`
	Fields       []string `json:"fields"`
}

// ClockTickPayload is the 1 Hz display refresh.
type ClockTickPayload struct {
	ElapsedMs int64            `json:"elapsed_ms"`
	Phase     models.GamePhase `json:"phase"`
	IsRunning bool             `json:"is_running"`
}

// RejectedPayload reports an action the reducer refused, addressed to
// the device that sent it.
type RejectedPayload struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}
