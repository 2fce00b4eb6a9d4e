// Package placement implements the pointer interaction lifecycle for
// the field and bench surfaces. Pointer traffic is tracked in
// transient state here and materialized into exactly one reducer
// action per completed gesture, so a drag across the field costs one
// history entry regardless of how many move events occurred.
package placement

import (
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/sidelinehq/sideline/go/internal/session"
)

// Dispatch funnels a completed gesture into the session reducer.
type Dispatch func(session.Action) error

// Surface identifies an interactive area.
type Surface string

const (
	SurfaceField Surface = "field"
	SurfaceBench Surface = "bench"
)

// EntityKind identifies what a gesture is dragging.
type EntityKind string

const (
	EntityPlayer   EntityKind = "player"
	EntityOpponent EntityKind = "opponent"
)

// DragPhase is the per-gesture state machine.
type DragPhase int

const (
	PhaseIdle DragPhase = iota
	PhaseDragging
)

// DropTarget describes where a pointer was released.
type DropTarget struct {
	Surface Surface
	X, Y    float64
}

type dragState struct {
	kind     EntityKind
	entityID uuid.UUID
	fromX    float64
	fromY    float64
	onField  bool
	curX     float64
	curY     float64
}

// Manager tracks one coach device's in-flight gestures. It is driven
// from the UI event loop and is not safe for concurrent use.
type Manager struct {
	deviceID string
	clock    clockwork.Clock
	dispatch Dispatch

	drag     *dragState
	selected *uuid.UUID
	stroke   *strokeBuffer
}

// NewManager returns a placement manager dispatching into fn.
func NewManager(deviceID string, clock clockwork.Clock, fn Dispatch) *Manager {
	return &Manager{deviceID: deviceID, clock: clock, dispatch: fn}
}

// Phase returns the current drag phase.
func (m *Manager) Phase() DragPhase {
	if m.drag != nil {
		return PhaseDragging
	}
	return PhaseIdle
}

// BeginDrag starts a drag over a draggable entity. onField reports
// whether the entity is currently on the field (as opposed to a bench
// chip being pulled onto it).
func (m *Manager) BeginDrag(kind EntityKind, entityID uuid.UUID, onField bool, x, y float64) {
	if m.drag != nil {
		// A second pointer-down mid-drag cancels the first gesture.
		m.CancelDrag()
	}
	m.selected = nil
	m.drag = &dragState{
		kind:     kind,
		entityID: entityID,
		fromX:    x,
		fromY:    y,
		onField:  onField,
		curX:     x,
		curY:     y,
	}
	log.Debug().
		Str("entity_id", entityID.String()).
		Str("kind", string(kind)).
		Msg("drag started")
}

// DragMove updates the transient pointer position. It never reaches
// the reducer.
func (m *Manager) DragMove(x, y float64) {
	if m.drag == nil {
		return
	}
	m.drag.curX = x
	m.drag.curY = y
}

// DragPosition returns the transient position for rendering the chip
// under the pointer.
func (m *Manager) DragPosition() (x, y float64, ok bool) {
	if m.drag == nil {
		return 0, 0, false
	}
	return m.drag.curX, m.drag.curY, true
}

// Drop completes the drag over a target. A valid target produces one
// reducer action; anything else cancels with zero mutations and the
// chip snaps back to its origin.
func (m *Manager) Drop(target DropTarget) error {
	if m.drag == nil {
		return nil
	}
	d := m.drag
	m.drag = nil

	action, ok := m.actionForDrop(d, target)
	if !ok {
		log.Debug().Str("entity_id", d.entityID.String()).Msg("drag cancelled: invalid target")
		return nil
	}
	return m.dispatch(action)
}

// CancelDrag abandons the gesture with zero history entries.
func (m *Manager) CancelDrag() {
	if m.drag == nil {
		return
	}
	log.Debug().Str("entity_id", m.drag.entityID.String()).Msg("drag cancelled")
	m.drag = nil
}

func (m *Manager) actionForDrop(d *dragState, target DropTarget) (session.Action, bool) {
	meta := m.meta()
	switch target.Surface {
	case SurfaceField:
		switch d.kind {
		case EntityPlayer:
			if d.onField {
				return session.MovePlayer{Meta: meta, PlayerID: d.entityID, X: target.X, Y: target.Y}, true
			}
			return session.PlacePlayer{Meta: meta, PlayerID: d.entityID, X: target.X, Y: target.Y}, true
		case EntityOpponent:
			if d.onField {
				return session.MoveOpponent{Meta: meta, MarkerID: d.entityID, X: target.X, Y: target.Y}, true
			}
			return session.PlaceOpponent{Meta: meta, MarkerID: d.entityID, X: target.X, Y: target.Y}, true
		}
	case SurfaceBench:
		// Dropping back onto the bench bar removes from the field.
		if !d.onField {
			return nil, false
		}
		switch d.kind {
		case EntityPlayer:
			return session.RemovePlayer{Meta: meta, PlayerID: d.entityID}, true
		case EntityOpponent:
			return session.RemoveOpponent{Meta: meta, MarkerID: d.entityID}, true
		}
	}
	return nil, false
}

// TapBench toggles the transient selection of a bench player used for
// the tap-to-place gesture. Selection is UI state only.
func (m *Manager) TapBench(playerID uuid.UUID) {
	if m.selected != nil && *m.selected == playerID {
		m.selected = nil
		return
	}
	id := playerID
	m.selected = &id
}

// Selected returns the tap-selected bench player, if any.
func (m *Manager) Selected() (uuid.UUID, bool) {
	if m.selected == nil {
		return uuid.Nil, false
	}
	return *m.selected, true
}

// TapField places the tap-selected player exactly as a drop would.
// Without a selection it is a no-op.
func (m *Manager) TapField(x, y float64) error {
	if m.selected == nil {
		return nil
	}
	playerID := *m.selected
	m.selected = nil
	return m.dispatch(session.PlacePlayer{Meta: m.meta(), PlayerID: playerID, X: x, Y: y})
}

func (m *Manager) meta() session.Meta {
	return session.Meta{DeviceID: m.deviceID, At: m.clock.Now()}
}
