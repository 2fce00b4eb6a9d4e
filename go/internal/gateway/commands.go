package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sidelinehq/sideline/go/internal/engine"
	"github.com/sidelinehq/sideline/go/internal/models"
	"github.com/sidelinehq/sideline/go/internal/placement"
	"github.com/sidelinehq/sideline/go/internal/session"
)

// ClientCommand is the inbound envelope from a coach device. Type
// selects the command; the remaining fields are populated per type.
type ClientCommand struct {
	Type string `json:"type"`

	// Pointer gestures.
	Entity   string    `json:"entity,omitempty"`
	EntityID uuid.UUID `json:"entity_id,omitempty"`
	OnField  bool      `json:"on_field,omitempty"`
	Surface  string    `json:"surface,omitempty"`
	X        float64   `json:"x,omitempty"`
	Y        float64   `json:"y,omitempty"`

	// Clock and period settings.
	ElapsedMs             int64 `json:"elapsed_ms,omitempty"`
	PeriodDurationMinutes int   `json:"period_duration_minutes,omitempty"`
	NumberOfPeriods       int   `json:"number_of_periods,omitempty"`

	// Roster and event log.
	PlayerIDs []uuid.UUID        `json:"player_ids,omitempty"`
	Event     *models.MatchEvent `json:"event,omitempty"`

	// Conflict resolution.
	KeepMine bool `json:"keep_mine,omitempty"`
}

// Command type values accepted from clients.
const (
	CmdDragStart  = "drag_start"
	CmdDragMove   = "drag_move"
	CmdDrop       = "drop"
	CmdDragCancel = "drag_cancel"
	CmdTapBench   = "tap_bench"
	CmdTapField   = "tap_field"

	CmdStrokeStart  = "stroke_start"
	CmdStrokeMove   = "stroke_move"
	CmdStrokeEnd    = "stroke_end"
	CmdStrokeCancel = "stroke_cancel"
	CmdClearStrokes = "clear_strokes"

	CmdStartClock      = "start_clock"
	CmdPauseClock      = "pause_clock"
	CmdAdjustClock     = "adjust_clock"
	CmdAdvancePhase    = "advance_phase"
	CmdRevertPhase     = "revert_phase"
	CmdSetPeriodConfig = "set_period_config"
	CmdSelectRoster    = "select_roster"
	CmdAppendEvent     = "append_event"

	CmdUndo    = "undo"
	CmdRedo    = "redo"
	CmdResolve = "resolve_conflict"
)

// handleClientMessage decodes and executes one inbound command. Drag
// and stroke moves stay inside the per-connection gesture state; only
// completed gestures and direct actions reach the reducer.
func (c *Connection) handleClientMessage(message []byte) {
	var cmd ClientCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		log.Warn().
			Err(err).
			Str("connection_id", c.ID).
			Msg("dropping malformed client message")
		return
	}

	if err := c.execute(cmd); err != nil {
		c.reportRejection(cmd, err)
	}
}

func (c *Connection) execute(cmd ClientCommand) error {
	switch cmd.Type {
	case CmdDragStart:
		kind := placement.EntityPlayer
		if cmd.Entity == string(placement.EntityOpponent) {
			kind = placement.EntityOpponent
		}
		c.gestures.BeginDrag(kind, cmd.EntityID, cmd.OnField, cmd.X, cmd.Y)
		return nil
	case CmdDragMove:
		c.gestures.DragMove(cmd.X, cmd.Y)
		return nil
	case CmdDrop:
		surface := placement.SurfaceField
		if cmd.Surface == string(placement.SurfaceBench) {
			surface = placement.SurfaceBench
		}
		return c.gestures.Drop(placement.DropTarget{Surface: surface, X: cmd.X, Y: cmd.Y})
	case CmdDragCancel:
		c.gestures.CancelDrag()
		return nil
	case CmdTapBench:
		c.gestures.TapBench(cmd.EntityID)
		return nil
	case CmdTapField:
		return c.gestures.TapField(cmd.X, cmd.Y)

	case CmdStrokeStart:
		c.gestures.BeginStroke(cmd.X, cmd.Y)
		return nil
	case CmdStrokeMove:
		c.gestures.StrokeTo(cmd.X, cmd.Y)
		return nil
	case CmdStrokeEnd:
		return c.gestures.EndStroke()
	case CmdStrokeCancel:
		c.gestures.CancelStroke()
		return nil

	case CmdUndo:
		sess, err := c.openSession()
		if err != nil {
			return err
		}
		sess.Undo()
		return nil
	case CmdRedo:
		sess, err := c.openSession()
		if err != nil {
			return err
		}
		sess.Redo()
		return nil
	case CmdResolve:
		sess, err := c.openSession()
		if err != nil {
			return err
		}
		sess.Resolve(cmd.KeepMine)
		return nil
	}

	action, err := c.actionFor(cmd)
	if err != nil {
		return err
	}
	return c.dispatch(action)
}

// actionFor builds the reducer action for a direct command.
func (c *Connection) actionFor(cmd ClientCommand) (session.Action, error) {
	meta := session.Meta{DeviceID: c.DeviceID, At: c.Manager.clock.Now()}
	switch cmd.Type {
	case CmdStartClock:
		return session.StartClock{Meta: meta}, nil
	case CmdPauseClock:
		return session.PauseClock{Meta: meta}, nil
	case CmdAdjustClock:
		return session.AdjustClock{Meta: meta, To: time.Duration(cmd.ElapsedMs) * time.Millisecond}, nil
	case CmdAdvancePhase:
		return session.AdvancePhase{Meta: meta}, nil
	case CmdRevertPhase:
		return session.RevertPhase{Meta: meta}, nil
	case CmdSetPeriodConfig:
		return session.SetPeriodConfig{
			Meta:                  meta,
			PeriodDurationMinutes: cmd.PeriodDurationMinutes,
			NumberOfPeriods:       cmd.NumberOfPeriods,
		}, nil
	case CmdSelectRoster:
		return session.SelectRoster{Meta: meta, PlayerIDs: cmd.PlayerIDs}, nil
	case CmdAppendEvent:
		if cmd.Event == nil {
			return nil, errors.New("append_event requires an event payload")
		}
		return session.AppendEvent{Meta: meta, Event: *cmd.Event}, nil
	case CmdClearStrokes:
		return session.ClearStrokes{Meta: meta}, nil
	}
	return nil, fmt.Errorf("unknown command type %q", cmd.Type)
}

func (c *Connection) openSession() (*engine.OpenSession, error) {
	sess, ok := c.Manager.sessions.Get(c.SessionID)
	if !ok {
		return nil, fmt.Errorf("session %s is not open", c.SessionID)
	}
	return sess, nil
}

// reportRejection sends the refusal back to the device that caused it.
// Other devices never see it; their state did not change.
func (c *Connection) reportRejection(cmd ClientCommand, err error) {
	var rejected *session.RejectedActionError
	payload := RejectedPayload{Action: cmd.Type, Reason: err.Error()}
	if errors.As(err, &rejected) {
		payload.Action = rejected.Action
		payload.Reason = rejected.Reason
	}

	log.Debug().
		Str("connection_id", c.ID).
		Str("command", cmd.Type).
		Str("reason", payload.Reason).
		Msg("client command rejected")

	event := c.Manager.newEvent(c.SessionID, EventTypeRejected, payload)
	if event == nil {
		return
	}
	c.Manager.BroadcastToDevice(c.SessionID, c.DeviceID, event)
}
