package session

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sidelinehq/sideline/go/internal/models"
)

func TestMergeDisjointKeyEdits(t *testing.T) {
	p1, p2 := uuid.New(), uuid.New()
	base := testSession(p1, p2)
	base.GamePhase = models.GamePhaseFirstHalf
	base.PlacedPlayers[p1] = models.PlacedPosition{X: 0.1, Y: 0.1, StampMs: 1}
	base.PlacedPlayers[p2] = models.PlacedPosition{X: 0.9, Y: 0.9, StampMs: 1}

	mine := mustApply(t, base, MovePlayer{Meta: at(time.Second), PlayerID: p1, X: 0.2, Y: 0.2})
	theirs := mustApply(t, base, MovePlayer{
		Meta:     Meta{DeviceID: "device-b", At: t0.Add(2 * time.Second)},
		PlayerID: p2, X: 0.8, Y: 0.8,
	})

	res := Merge(base, mine, theirs)
	if len(res.Conflicts) != 0 {
		t.Fatalf("disjoint edits should not conflict, got %d conflicts", len(res.Conflicts))
	}
	if got := res.Merged.PlacedPlayers[p1]; got.X != 0.2 {
		t.Errorf("p1 = %+v, want my move", got)
	}
	if got := res.Merged.PlacedPlayers[p2]; got.X != 0.8 {
		t.Errorf("p2 = %+v, want their move", got)
	}
}

func TestMergeEventsUnionAndDeletion(t *testing.T) {
	base := testSession()
	kept := models.MatchEvent{ID: uuid.New(), Type: models.EventTypeGoal, TimestampMs: 10}
	deleted := models.MatchEvent{ID: uuid.New(), Type: models.EventTypeNote, TimestampMs: 20}
	base.Events = []models.MatchEvent{kept, deleted}

	mine := base.Clone()
	mineOnly := models.MatchEvent{ID: uuid.New(), Type: models.EventTypeCard, TimestampMs: 30}
	mine.Events = []models.MatchEvent{kept, deleted, mineOnly}

	theirs := base.Clone()
	theirsOnly := models.MatchEvent{ID: uuid.New(), Type: models.EventTypeAssist, TimestampMs: 40}
	// They removed the note.
	theirs.Events = []models.MatchEvent{kept, theirsOnly}

	res := Merge(base, mine, theirs)

	got := make(map[uuid.UUID]bool)
	for _, ev := range res.Merged.Events {
		got[ev.ID] = true
	}
	if !got[kept.ID] || !got[mineOnly.ID] || !got[theirsOnly.ID] {
		t.Errorf("merged events missing entries: %v", got)
	}
	if got[deleted.ID] {
		t.Error("an event deleted on one side must stay deleted")
	}
	for i := 1; i < len(res.Merged.Events); i++ {
		if res.Merged.Events[i-1].TimestampMs > res.Merged.Events[i].TimestampMs {
			t.Error("merged events must be sorted by timestamp")
		}
	}
}

func TestMergeStrokesUnion(t *testing.T) {
	base := testSession()
	mine := base.Clone()
	mine.Drawings = []models.Stroke{{ID: uuid.New(), CreatedMs: 5, Points: []models.StrokePoint{{}, {X: 1, Y: 1}}}}
	theirs := base.Clone()
	theirs.Drawings = []models.Stroke{{ID: uuid.New(), CreatedMs: 3, Points: []models.StrokePoint{{}, {X: 0.5, Y: 0.5}}}}

	res := Merge(base, mine, theirs)
	if len(res.Merged.Drawings) != 2 {
		t.Fatalf("Drawings = %d, want both sides' strokes", len(res.Merged.Drawings))
	}
	if res.Merged.Drawings[0].CreatedMs > res.Merged.Drawings[1].CreatedMs {
		t.Error("strokes must be sorted by creation time")
	}
}

func TestMergePhaseAndClockLastWriteWins(t *testing.T) {
	base := testSession()
	base.GamePhase = models.GamePhaseFirstHalf
	base.PhaseStampMs = 100
	base.ClockStampMs = 100

	mine := base.Clone()
	mine.Clock.AccumulatedMs = 60_000
	mine.ClockStampMs = 200

	theirs := base.Clone()
	theirs.GamePhase = models.GamePhaseHalftime
	theirs.PhaseStampMs = 300
	theirs.Clock.AccumulatedMs = 30_000
	theirs.ClockStampMs = 150

	res := Merge(base, mine, theirs)
	if res.Merged.GamePhase != models.GamePhaseHalftime {
		t.Errorf("phase = %s, want their newer phase", res.Merged.GamePhase)
	}
	if res.Merged.Clock.AccumulatedMs != 60_000 {
		t.Errorf("clock = %d, want my newer clock", res.Merged.Clock.AccumulatedMs)
	}
}

func TestMergeSameKeyConflict(t *testing.T) {
	p := uuid.New()
	base := testSession(p)
	base.GamePhase = models.GamePhaseFirstHalf
	base.PlacedPlayers[p] = models.PlacedPosition{X: 0.5, Y: 0.5, StampMs: 100}

	mine := base.Clone()
	mine.PlacedPlayers[p] = models.PlacedPosition{X: 0.3, Y: 0.3, StampMs: 200}
	theirs := base.Clone()
	theirs.PlacedPlayers[p] = models.PlacedPosition{X: 0.7, Y: 0.7, StampMs: 300}

	res := Merge(base, mine, theirs)
	if len(res.Conflicts) != 1 {
		t.Fatalf("Conflicts = %d, want 1", len(res.Conflicts))
	}
	c := res.Conflicts[0]
	if c.Field != ConflictFieldPlayer || c.Key != p {
		t.Errorf("conflict = %+v", c)
	}
	// Provisional pick is last-write-wins: theirs has the newer stamp.
	if got := res.Merged.PlacedPlayers[p]; got.X != 0.7 {
		t.Errorf("provisional pick = %+v, want their newer write", got)
	}

	kept := Resolve(res.Merged, c, true)
	if got := kept.PlacedPlayers[p]; got.X != 0.3 {
		t.Errorf("Resolve(keepMine) = %+v, want my position", got)
	}
	dropped := Resolve(res.Merged, c, false)
	if got := dropped.PlacedPlayers[p]; got.X != 0.7 {
		t.Errorf("Resolve(keepTheirs) = %+v, want their position", got)
	}
}

func TestMergeMoveBeatsRemoval(t *testing.T) {
	p := uuid.New()
	base := testSession(p)
	base.GamePhase = models.GamePhaseFirstHalf
	base.PlacedPlayers[p] = models.PlacedPosition{X: 0.5, Y: 0.5, StampMs: 100}

	mine := base.Clone()
	delete(mine.PlacedPlayers, p)
	theirs := base.Clone()
	theirs.PlacedPlayers[p] = models.PlacedPosition{X: 0.6, Y: 0.6, StampMs: 50}

	res := Merge(base, mine, theirs)
	if len(res.Conflicts) != 1 {
		t.Fatalf("Conflicts = %d, want 1", len(res.Conflicts))
	}
	if !res.Conflicts[0].MineRemoved {
		t.Error("conflict should record my removal")
	}
	if got, ok := res.Merged.PlacedPlayers[p]; !ok || got.X != 0.6 {
		t.Errorf("surviving position should win over removal, got %+v ok=%v", got, ok)
	}
}

func TestMergeOpponentMarkerConflict(t *testing.T) {
	m := uuid.New()
	base := testSession()
	base.OpponentMarkers[m] = models.OpponentMarker{ID: m, X: 0.5, Y: 0.5, StampMs: 100}

	mine := base.Clone()
	mine.OpponentMarkers[m] = models.OpponentMarker{ID: m, X: 0.2, Y: 0.2, StampMs: 300}
	theirs := base.Clone()
	theirs.OpponentMarkers[m] = models.OpponentMarker{ID: m, X: 0.8, Y: 0.8, StampMs: 200}

	res := Merge(base, mine, theirs)
	if len(res.Conflicts) != 1 || res.Conflicts[0].Field != ConflictFieldOpponent {
		t.Fatalf("Conflicts = %+v, want one opponent conflict", res.Conflicts)
	}
	if got := res.Merged.OpponentMarkers[m]; got.X != 0.2 {
		t.Errorf("provisional pick = %+v, want my newer write", got)
	}
}

func TestMergeTakesRemoteRevisionAndWriter(t *testing.T) {
	base := testSession()
	mine := base.Clone()
	mine.Revision = 3
	theirs := base.Clone()
	theirs.Revision = 9
	theirs.LastWriter = "device-b"

	res := Merge(base, mine, theirs)
	if res.Merged.Revision != 9 {
		t.Errorf("Revision = %d, want the higher remote revision", res.Merged.Revision)
	}
	if res.Merged.LastWriter != "device-b" {
		t.Errorf("LastWriter = %q, want device-b", res.Merged.LastWriter)
	}
}
