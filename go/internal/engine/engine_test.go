package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/sidelinehq/sideline/go/internal/models"
	"github.com/sidelinehq/sideline/go/internal/session"
)

func testSnapshot(players ...uuid.UUID) *models.GameSession {
	selection := make(map[uuid.UUID]bool, len(players))
	for _, id := range players {
		selection[id] = true
	}
	return &models.GameSession{
		ID:                    uuid.New(),
		GamePhase:             models.GamePhaseFirstHalf,
		PeriodDurationMinutes: 45,
		NumberOfPeriods:       2,
		RosterSelection:       selection,
		PlacedPlayers:         make(map[uuid.UUID]models.PlacedPosition),
		OpponentMarkers:       make(map[uuid.UUID]models.OpponentMarker),
		Revision:              1,
		LastWriter:            "device-a",
	}
}

func TestDispatchUndoRedo(t *testing.T) {
	playerID := uuid.New()
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1_700_000_000_000))
	eng := New("device-a", clock, testSnapshot(playerID), 0)

	// Place, then drag to a new position.
	if _, err := eng.Dispatch(session.PlacePlayer{Meta: eng.Meta(), PlayerID: playerID, X: 0.3, Y: 0.3}); err != nil {
		t.Fatalf("place failed: %v", err)
	}
	clock.Advance(time.Second)
	if _, err := eng.Dispatch(session.MovePlayer{Meta: eng.Meta(), PlayerID: playerID, X: 0.7, Y: 0.7}); err != nil {
		t.Fatalf("move failed: %v", err)
	}

	if got := eng.Snapshot().PlacedPlayers[playerID]; got.X != 0.7 {
		t.Fatalf("position = %+v, want the move applied", got)
	}

	// Undo the drag: back at the original placement.
	snap, ok := eng.Undo()
	if !ok {
		t.Fatal("undo failed")
	}
	if got := snap.PlacedPlayers[playerID]; got.X != 0.3 {
		t.Errorf("position after undo = %+v, want 0.3", got)
	}

	// Undo the placement: empty field.
	snap, ok = eng.Undo()
	if !ok {
		t.Fatal("second undo failed")
	}
	if len(snap.PlacedPlayers) != 0 {
		t.Error("second undo should clear the field")
	}
	if eng.CanUndo() {
		t.Error("nothing local left to undo")
	}

	// Redo walks forward again.
	snap, ok = eng.Redo()
	if !ok {
		t.Fatal("redo failed")
	}
	if got := snap.PlacedPlayers[playerID]; got.X != 0.3 {
		t.Errorf("position after redo = %+v, want 0.3", got)
	}

	// Undo and redo are commits too: revisions only move forward.
	if snap.Revision <= 2 {
		t.Errorf("Revision = %d, want a fresh revision per restore", snap.Revision)
	}
	if snap.LastWriter != "device-a" {
		t.Errorf("LastWriter = %q", snap.LastWriter)
	}
}

func TestDispatchRejectionLeavesStateUntouched(t *testing.T) {
	clock := clockwork.NewFakeClock()
	eng := New("device-a", clock, testSnapshot(), 0)
	before := eng.Snapshot()

	_, err := eng.Dispatch(session.PlacePlayer{Meta: eng.Meta(), PlayerID: uuid.New(), X: 0.5, Y: 0.5})
	if err == nil {
		t.Fatal("placing an unselected player must fail")
	}
	var rejected *session.RejectedActionError
	if !errors.As(err, &rejected) {
		t.Fatalf("error = %T, want *session.RejectedActionError", err)
	}
	if eng.Snapshot() != before {
		t.Error("rejection must not change the snapshot")
	}
	if eng.CanUndo() {
		t.Error("rejection must not create a history entry")
	}
}

func TestUndoFoldsRemoteChangesBackIn(t *testing.T) {
	p1, p2 := uuid.New(), uuid.New()
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1_700_000_000_000))
	eng := New("device-a", clock, testSnapshot(p1, p2), 0)

	if _, err := eng.Dispatch(session.PlacePlayer{Meta: eng.Meta(), PlayerID: p1, X: 0.2, Y: 0.2}); err != nil {
		t.Fatalf("place failed: %v", err)
	}

	// A merge from another device lands on top: p2 appears.
	merged := eng.Snapshot().Clone()
	merged.PlacedPlayers[p2] = models.PlacedPosition{X: 0.8, Y: 0.8, StampMs: clock.Now().UnixMilli()}
	merged.Revision++
	merged.LastWriter = "device-b"
	eng.ApplyMerge(merged, "device-b")

	// Undoing "my last action" removes p1 but keeps device-b's p2.
	snap, ok := eng.Undo()
	if !ok {
		t.Fatal("undo failed")
	}
	if _, has := snap.PlacedPlayers[p1]; has {
		t.Error("undo should take my placement off the field")
	}
	if _, has := snap.PlacedPlayers[p2]; !has {
		t.Error("undo must not discard the other device's placement")
	}

	// Redo reinstates my placement, still keeping p2.
	snap, ok = eng.Redo()
	if !ok {
		t.Fatal("redo failed")
	}
	if _, has := snap.PlacedPlayers[p1]; !has {
		t.Error("redo should restore my placement")
	}
	if _, has := snap.PlacedPlayers[p2]; !has {
		t.Error("redo must not discard the other device's placement")
	}
}

func TestApplyMergeTagsRemoteEntry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	eng := New("device-a", clock, testSnapshot(), 0)

	merged := eng.Snapshot().Clone()
	merged.Revision++
	merged.LastWriter = "device-b"
	next := eng.ApplyMerge(merged, "device-b")

	if next.LastWriter != "device-b" {
		t.Errorf("LastWriter = %q, want device-b", next.LastWriter)
	}
	if eng.CanUndo() {
		t.Error("a remote merge alone is not locally undoable")
	}
}

func TestReconcileOnResume(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	clock := clockwork.NewFakeClockAt(now)

	// The clock "ran" 47 minutes while the process was gone.
	snap := testSnapshot()
	started := now.Add(-47 * time.Minute).UnixMilli()
	snap.Clock = models.ClockState{StartedAtEpochMs: &started, IsRunning: true}

	eng := New("device-a", clock, snap, 0)
	eng.ReconcileOnResume()

	got := eng.Snapshot()
	if got.GamePhase != models.GamePhaseHalftime {
		t.Errorf("phase = %s, want HALFTIME", got.GamePhase)
	}
	if got.Clock.IsRunning {
		t.Error("clock should be paused at the period boundary")
	}
	if got.Clock.AccumulatedMs != (45 * time.Minute).Milliseconds() {
		t.Errorf("AccumulatedMs = %d, want exactly 45m", got.Clock.AccumulatedMs)
	}
}

func TestReconcileOnResumeNoopInsidePeriod(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	clock := clockwork.NewFakeClockAt(now)

	snap := testSnapshot()
	started := now.Add(-10 * time.Minute).UnixMilli()
	snap.Clock = models.ClockState{StartedAtEpochMs: &started, IsRunning: true}

	eng := New("device-a", clock, snap, 0)
	eng.ReconcileOnResume()

	got := eng.Snapshot()
	if !got.Clock.IsRunning || got.GamePhase != models.GamePhaseFirstHalf {
		t.Error("a clock inside the period must keep running untouched")
	}
	if eng.Elapsed() != 10*time.Minute {
		t.Errorf("Elapsed = %v, want 10m", eng.Elapsed())
	}
}
