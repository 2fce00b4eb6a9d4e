package placement

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/sidelinehq/sideline/go/internal/session"
)

type recorder struct {
	actions []session.Action
}

func (r *recorder) dispatch(a session.Action) error {
	r.actions = append(r.actions, a)
	return nil
}

func newTestManager() (*Manager, *recorder) {
	rec := &recorder{}
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1_700_000_000_000))
	return NewManager("device-a", clock, rec.dispatch), rec
}

func TestDragFromBenchPlacesOnce(t *testing.T) {
	m, rec := newTestManager()
	playerID := uuid.New()

	m.BeginDrag(EntityPlayer, playerID, false, 0.0, 0.9)
	for i := 0; i < 25; i++ {
		m.DragMove(float64(i)/100, 0.5)
	}
	if err := m.Drop(DropTarget{Surface: SurfaceField, X: 0.25, Y: 0.5}); err != nil {
		t.Fatalf("Drop failed: %v", err)
	}

	if len(rec.actions) != 1 {
		t.Fatalf("drag produced %d actions, want exactly 1", len(rec.actions))
	}
	place, ok := rec.actions[0].(session.PlacePlayer)
	if !ok {
		t.Fatalf("action = %T, want PlacePlayer", rec.actions[0])
	}
	if place.PlayerID != playerID || place.X != 0.25 || place.Y != 0.5 {
		t.Errorf("PlacePlayer = %+v", place)
	}
}

func TestDragOnFieldMoves(t *testing.T) {
	m, rec := newTestManager()
	playerID := uuid.New()

	m.BeginDrag(EntityPlayer, playerID, true, 0.3, 0.3)
	m.DragMove(0.4, 0.4)
	if err := m.Drop(DropTarget{Surface: SurfaceField, X: 0.6, Y: 0.7}); err != nil {
		t.Fatalf("Drop failed: %v", err)
	}

	if len(rec.actions) != 1 {
		t.Fatalf("actions = %d, want 1", len(rec.actions))
	}
	if _, ok := rec.actions[0].(session.MovePlayer); !ok {
		t.Fatalf("action = %T, want MovePlayer", rec.actions[0])
	}
}

func TestDropOnBenchRemoves(t *testing.T) {
	m, rec := newTestManager()
	playerID := uuid.New()

	m.BeginDrag(EntityPlayer, playerID, true, 0.3, 0.3)
	if err := m.Drop(DropTarget{Surface: SurfaceBench}); err != nil {
		t.Fatalf("Drop failed: %v", err)
	}
	if len(rec.actions) != 1 {
		t.Fatalf("actions = %d, want 1", len(rec.actions))
	}
	if _, ok := rec.actions[0].(session.RemovePlayer); !ok {
		t.Fatalf("action = %T, want RemovePlayer", rec.actions[0])
	}

	// A bench chip dropped back on the bench is a no-op.
	rec.actions = nil
	m.BeginDrag(EntityPlayer, playerID, false, 0.0, 0.9)
	if err := m.Drop(DropTarget{Surface: SurfaceBench}); err != nil {
		t.Fatalf("Drop failed: %v", err)
	}
	if len(rec.actions) != 0 {
		t.Errorf("bench-to-bench drop produced %d actions, want 0", len(rec.actions))
	}
}

func TestOpponentDrag(t *testing.T) {
	m, rec := newTestManager()
	markerID := uuid.New()

	m.BeginDrag(EntityOpponent, markerID, false, 0.0, 0.0)
	if err := m.Drop(DropTarget{Surface: SurfaceField, X: 0.5, Y: 0.5}); err != nil {
		t.Fatalf("Drop failed: %v", err)
	}
	if _, ok := rec.actions[0].(session.PlaceOpponent); !ok {
		t.Fatalf("action = %T, want PlaceOpponent", rec.actions[0])
	}

	m.BeginDrag(EntityOpponent, markerID, true, 0.5, 0.5)
	if err := m.Drop(DropTarget{Surface: SurfaceBench}); err != nil {
		t.Fatalf("Drop failed: %v", err)
	}
	if _, ok := rec.actions[1].(session.RemoveOpponent); !ok {
		t.Fatalf("action = %T, want RemoveOpponent", rec.actions[1])
	}
}

func TestCancelDragMutatesNothing(t *testing.T) {
	m, rec := newTestManager()

	m.BeginDrag(EntityPlayer, uuid.New(), false, 0.0, 0.9)
	m.DragMove(0.5, 0.5)
	m.CancelDrag()

	if m.Phase() != PhaseIdle {
		t.Error("cancel should return to idle")
	}
	if len(rec.actions) != 0 {
		t.Errorf("cancelled drag produced %d actions, want 0", len(rec.actions))
	}

	// Dropping after cancel is a no-op too.
	if err := m.Drop(DropTarget{Surface: SurfaceField, X: 0.5, Y: 0.5}); err != nil {
		t.Fatalf("Drop failed: %v", err)
	}
	if len(rec.actions) != 0 {
		t.Error("drop without an active drag must not dispatch")
	}
}

func TestSecondPointerDownCancelsFirst(t *testing.T) {
	m, rec := newTestManager()
	first, second := uuid.New(), uuid.New()

	m.BeginDrag(EntityPlayer, first, false, 0.0, 0.9)
	m.BeginDrag(EntityPlayer, second, false, 0.1, 0.9)
	if err := m.Drop(DropTarget{Surface: SurfaceField, X: 0.5, Y: 0.5}); err != nil {
		t.Fatalf("Drop failed: %v", err)
	}

	if len(rec.actions) != 1 {
		t.Fatalf("actions = %d, want 1", len(rec.actions))
	}
	if got := rec.actions[0].(session.PlacePlayer).PlayerID; got != second {
		t.Errorf("placed %s, want the second drag's player", got)
	}
}

func TestTapToPlace(t *testing.T) {
	m, rec := newTestManager()
	playerID := uuid.New()

	m.TapBench(playerID)
	if sel, ok := m.Selected(); !ok || sel != playerID {
		t.Fatal("tap should select the bench player")
	}

	// Tapping again deselects.
	m.TapBench(playerID)
	if _, ok := m.Selected(); ok {
		t.Fatal("second tap should deselect")
	}
	if err := m.TapField(0.5, 0.5); err != nil {
		t.Fatalf("TapField failed: %v", err)
	}
	if len(rec.actions) != 0 {
		t.Error("field tap without a selection must not dispatch")
	}

	m.TapBench(playerID)
	if err := m.TapField(0.4, 0.6); err != nil {
		t.Fatalf("TapField failed: %v", err)
	}
	if len(rec.actions) != 1 {
		t.Fatalf("actions = %d, want 1", len(rec.actions))
	}
	place := rec.actions[0].(session.PlacePlayer)
	if place.PlayerID != playerID || place.X != 0.4 || place.Y != 0.6 {
		t.Errorf("PlacePlayer = %+v", place)
	}
	if _, ok := m.Selected(); ok {
		t.Error("placing should consume the selection")
	}
}

func TestStrokeCommitsOnce(t *testing.T) {
	m, rec := newTestManager()

	m.BeginStroke(0.1, 0.1)
	m.StrokeTo(0.2, 0.2)
	m.StrokeTo(0.3, 0.2)
	if err := m.EndStroke(); err != nil {
		t.Fatalf("EndStroke failed: %v", err)
	}

	if len(rec.actions) != 1 {
		t.Fatalf("stroke produced %d actions, want 1", len(rec.actions))
	}
	add := rec.actions[0].(session.AddStroke)
	if len(add.Stroke.Points) != 3 {
		t.Errorf("points = %d, want all sampled points", len(add.Stroke.Points))
	}
	if add.Stroke.ID == uuid.Nil {
		t.Error("stroke must get an id")
	}
}

func TestShortOrCancelledStrokeIsDiscarded(t *testing.T) {
	m, rec := newTestManager()

	m.BeginStroke(0.1, 0.1)
	if err := m.EndStroke(); err != nil {
		t.Fatalf("EndStroke failed: %v", err)
	}
	if len(rec.actions) != 0 {
		t.Error("a single-point stroke must be discarded")
	}

	m.BeginStroke(0.1, 0.1)
	m.StrokeTo(0.5, 0.5)
	m.CancelStroke()
	if err := m.EndStroke(); err != nil {
		t.Fatalf("EndStroke failed: %v", err)
	}
	if len(rec.actions) != 0 {
		t.Error("a cancelled stroke must not dispatch")
	}
}
