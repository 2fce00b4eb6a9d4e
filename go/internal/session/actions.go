package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/sidelinehq/sideline/go/internal/models"
)

// Meta carries the acting device and the wall-clock instant of every
// action. The reducer never reads a clock itself; callers supply time
// so the reducer stays a pure function.
type Meta struct {
	DeviceID string
	At       time.Time
}

// Action is one mutation request against a game session. All session
// mutations are expressed as actions and funneled through Apply.
type Action interface {
	Name() string
	meta() Meta
}

func (m Meta) meta() Meta { return m }

// StartClock starts the match clock. Valid only while the clock is
// stopped and the phase is playable.
type StartClock struct{ Meta }

func (StartClock) Name() string { return "StartClock" }

// PauseClock stops the match clock, folding elapsed time into the
// accumulated total.
type PauseClock struct{ Meta }

func (PauseClock) Name() string { return "PauseClock" }

// AdjustClock is an explicit coach correction of the paused clock.
// The clock only ever moves forward.
type AdjustClock struct {
	Meta
	To time.Duration
}

func (AdjustClock) Name() string { return "AdjustClock" }

// AdvancePhase moves the session one step along the forward phase
// path. Auto marks transitions triggered by an elapsed period rather
// than a coach tap.
type AdvancePhase struct {
	Meta
	Auto bool
}

func (AdvancePhase) Name() string { return "AdvancePhase" }

// RevertPhase is an explicit coach correction moving one phase back.
// The correction itself is recorded as an event.
type RevertPhase struct{ Meta }

func (RevertPhase) Name() string { return "RevertPhase" }

// SetPeriodConfig edits period duration and count. Only valid while
// the clock is stopped.
type SetPeriodConfig struct {
	Meta
	PeriodDurationMinutes int
	NumberOfPeriods       int
}

func (SetPeriodConfig) Name() string { return "SetPeriodConfig" }

// SelectRoster replaces the set of players eligible for this game.
// Pre-game only; players dropped from the selection leave the field.
type SelectRoster struct {
	Meta
	PlayerIDs []uuid.UUID
}

func (SelectRoster) Name() string { return "SelectRoster" }

// PlacePlayer puts a roster player on the field at a normalized
// position, or moves an already placed one.
type PlacePlayer struct {
	Meta
	PlayerID uuid.UUID
	X, Y     float64
}

func (PlacePlayer) Name() string { return "PlacePlayer" }

// MovePlayer repositions a player already on the field.
type MovePlayer struct {
	Meta
	PlayerID uuid.UUID
	X, Y     float64
}

func (MovePlayer) Name() string { return "MovePlayer" }

// RemovePlayer sends a placed player back to the bench.
type RemovePlayer struct {
	Meta
	PlayerID uuid.UUID
}

func (RemovePlayer) Name() string { return "RemovePlayer" }

// PlaceOpponent adds or moves an opponent marker.
type PlaceOpponent struct {
	Meta
	MarkerID uuid.UUID
	X, Y     float64
}

func (PlaceOpponent) Name() string { return "PlaceOpponent" }

// MoveOpponent repositions an existing opponent marker.
type MoveOpponent struct {
	Meta
	MarkerID uuid.UUID
	X, Y     float64
}

func (MoveOpponent) Name() string { return "MoveOpponent" }

// RemoveOpponent deletes an opponent marker.
type RemoveOpponent struct {
	Meta
	MarkerID uuid.UUID
}

func (RemoveOpponent) Name() string { return "RemoveOpponent" }

// AppendEvent adds one entry to the append-only event log.
type AppendEvent struct {
	Meta
	Event models.MatchEvent
}

func (AppendEvent) Name() string { return "AppendEvent" }

// AddStroke commits one complete freehand drawing.
type AddStroke struct {
	Meta
	Stroke models.Stroke
}

func (AddStroke) Name() string { return "AddStroke" }

// ClearStrokes removes all drawings from the field.
type ClearStrokes struct{ Meta }

func (ClearStrokes) Name() string { return "ClearStrokes" }

// MergeRemote installs a snapshot reconciled with another device's
// edits. It is produced by the sync engine only, never by the UI.
type MergeRemote struct {
	Meta
	Merged *models.GameSession
}

func (MergeRemote) Name() string { return "MergeRemote" }
