package gateway

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/sidelinehq/sideline/go/internal/session"
)

func testConnection() *Connection {
	cm := NewConnectionManager(DefaultConnectionConfig(), clockwork.NewFakeClockAt(time.UnixMilli(1_700_000_000_000)))
	return &Connection{ID: "conn-1", DeviceID: "device-a", Manager: cm}
}

func TestClientCommandDecoding(t *testing.T) {
	playerID := uuid.New()
	raw := []byte(`{"type":"drag_start","entity":"player","entity_id":"` + playerID.String() + `","on_field":true,"x":0.25,"y":0.75}`)

	var cmd ClientCommand
	if err := json.Unmarshal(raw, &cmd); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if cmd.Type != CmdDragStart || cmd.EntityID != playerID || !cmd.OnField {
		t.Errorf("decoded = %+v", cmd)
	}
	if cmd.X != 0.25 || cmd.Y != 0.75 {
		t.Errorf("coords = (%v, %v)", cmd.X, cmd.Y)
	}
}

func TestActionForDirectCommands(t *testing.T) {
	conn := testConnection()
	playerID := uuid.New()

	tests := []struct {
		name string
		cmd  ClientCommand
		want string
	}{
		{"start clock", ClientCommand{Type: CmdStartClock}, "StartClock"},
		{"pause clock", ClientCommand{Type: CmdPauseClock}, "PauseClock"},
		{"adjust clock", ClientCommand{Type: CmdAdjustClock, ElapsedMs: 60_000}, "AdjustClock"},
		{"advance phase", ClientCommand{Type: CmdAdvancePhase}, "AdvancePhase"},
		{"revert phase", ClientCommand{Type: CmdRevertPhase}, "RevertPhase"},
		{"period config", ClientCommand{Type: CmdSetPeriodConfig, PeriodDurationMinutes: 30, NumberOfPeriods: 2}, "SetPeriodConfig"},
		{"select roster", ClientCommand{Type: CmdSelectRoster, PlayerIDs: []uuid.UUID{playerID}}, "SelectRoster"},
		{"clear strokes", ClientCommand{Type: CmdClearStrokes}, "ClearStrokes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action, err := conn.actionFor(tt.cmd)
			if err != nil {
				t.Fatalf("actionFor failed: %v", err)
			}
			if action.Name() != tt.want {
				t.Errorf("action = %s, want %s", action.Name(), tt.want)
			}
		})
	}
}

func TestActionForStampsDeviceAndTime(t *testing.T) {
	conn := testConnection()
	action, err := conn.actionFor(ClientCommand{Type: CmdAdjustClock, ElapsedMs: 90_000})
	if err != nil {
		t.Fatalf("actionFor failed: %v", err)
	}
	adjust, ok := action.(session.AdjustClock)
	if !ok {
		t.Fatalf("action = %T, want AdjustClock", action)
	}
	if adjust.To != 90*time.Second {
		t.Errorf("To = %v, want 90s", adjust.To)
	}
	if adjust.DeviceID != "device-a" {
		t.Errorf("DeviceID = %q, want device-a", adjust.DeviceID)
	}
	if adjust.At.UnixMilli() != 1_700_000_000_000 {
		t.Errorf("At = %v, want the gateway clock's instant", adjust.At)
	}
}

func TestActionForRejectsUnknownAndIncomplete(t *testing.T) {
	conn := testConnection()
	if _, err := conn.actionFor(ClientCommand{Type: "warp_time"}); err == nil {
		t.Error("unknown command type must fail")
	}
	if _, err := conn.actionFor(ClientCommand{Type: CmdAppendEvent}); err == nil {
		t.Error("append_event without a payload must fail")
	}
}
