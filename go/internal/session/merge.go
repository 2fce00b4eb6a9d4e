package session

import (
	"github.com/google/uuid"

	"github.com/sidelinehq/sideline/go/internal/models"
)

// ConflictField names the part of the session a key conflict lives in.
type ConflictField string

const (
	ConflictFieldPlayer   ConflictField = "placed_player"
	ConflictFieldOpponent ConflictField = "opponent_marker"
)

// KeyConflict records one key that both sides edited to different
// values since the common base. The merged snapshot already carries
// the last-write-wins pick; callers that require coach confirmation
// can override it with Resolve.
type KeyConflict struct {
	Field         ConflictField
	Key           uuid.UUID
	Mine          models.PlacedPosition
	Theirs        models.PlacedPosition
	MineRemoved   bool
	TheirsRemoved bool
}

// MergeResult is the outcome of a three-way reconciliation.
type MergeResult struct {
	Merged    *models.GameSession
	Conflicts []KeyConflict
}

// Merge reconciles two divergent snapshots against their common base:
//
//   - events and drawings are set-merged by id and re-sorted, so
//     appends from both sides survive and explicit deletions on either
//     side hold;
//   - phase and clock are whole-value last-write-wins by their stamps;
//   - placed players and opponent markers merge key by key, each key
//     independently last-write-wins; keys both sides changed to
//     different values are additionally reported as conflicts;
//   - period settings take the side that changed them, remote winning
//     a simultaneous change.
//
// Merge never mutates its inputs.
func Merge(base, mine, theirs *models.GameSession) MergeResult {
	merged := mine.Clone()

	merged.Events = mergeEvents(base.Events, mine.Events, theirs.Events)
	merged.Drawings = mergeStrokes(base.Drawings, mine.Drawings, theirs.Drawings)

	if theirs.PhaseStampMs > mine.PhaseStampMs {
		merged.GamePhase = theirs.GamePhase
		merged.PhaseStampMs = theirs.PhaseStampMs
	}
	if theirs.ClockStampMs > mine.ClockStampMs {
		merged.Clock = theirs.Clock
		if theirs.Clock.StartedAtEpochMs != nil {
			v := *theirs.Clock.StartedAtEpochMs
			merged.Clock.StartedAtEpochMs = &v
		}
		merged.ClockStampMs = theirs.ClockStampMs
	}

	if theirs.PeriodDurationMinutes != base.PeriodDurationMinutes {
		merged.PeriodDurationMinutes = theirs.PeriodDurationMinutes
	}
	if theirs.NumberOfPeriods != base.NumberOfPeriods {
		merged.NumberOfPeriods = theirs.NumberOfPeriods
	}

	merged.RosterSelection = mergeRoster(base.RosterSelection, mine.RosterSelection, theirs.RosterSelection)

	var conflicts []KeyConflict
	merged.PlacedPlayers, conflicts = mergePlayers(base, mine, theirs, conflicts)
	merged.OpponentMarkers, conflicts = mergeMarkers(base, mine, theirs, conflicts)

	if theirs.Revision > merged.Revision {
		merged.Revision = theirs.Revision
	}
	merged.LastWriter = theirs.LastWriter

	return MergeResult{Merged: merged, Conflicts: conflicts}
}

// Resolve overrides the automatic pick for one conflicted key with the
// coach's choice and returns the updated snapshot.
func Resolve(snapshot *models.GameSession, c KeyConflict, keepMine bool) *models.GameSession {
	next := snapshot.Clone()
	pos, removed := c.Theirs, c.TheirsRemoved
	if keepMine {
		pos, removed = c.Mine, c.MineRemoved
	}
	switch c.Field {
	case ConflictFieldPlayer:
		if removed {
			delete(next.PlacedPlayers, c.Key)
		} else {
			next.PlacedPlayers[c.Key] = pos
		}
	case ConflictFieldOpponent:
		if removed {
			delete(next.OpponentMarkers, c.Key)
		} else {
			next.OpponentMarkers[c.Key] = models.OpponentMarker{ID: c.Key, X: pos.X, Y: pos.Y, StampMs: pos.StampMs}
		}
	}
	return next
}

func mergeEvents(base, mine, theirs []models.MatchEvent) []models.MatchEvent {
	inBase := eventIDs(base)
	inMine := eventIDs(mine)
	inTheirs := eventIDs(theirs)

	var out []models.MatchEvent
	seen := make(map[uuid.UUID]bool)
	for _, ev := range append(append([]models.MatchEvent{}, mine...), theirs...) {
		if seen[ev.ID] {
			continue
		}
		if keepInSetMerge(ev.ID, inBase, inMine, inTheirs) {
			seen[ev.ID] = true
			out = append(out, ev)
		}
	}
	models.SortEvents(out)
	return out
}

func mergeStrokes(base, mine, theirs []models.Stroke) []models.Stroke {
	inBase := strokeIDs(base)
	inMine := strokeIDs(mine)
	inTheirs := strokeIDs(theirs)

	var out []models.Stroke
	seen := make(map[uuid.UUID]bool)
	for _, st := range append(append([]models.Stroke{}, mine...), theirs...) {
		if seen[st.ID] {
			continue
		}
		if keepInSetMerge(st.ID, inBase, inMine, inTheirs) {
			seen[st.ID] = true
			out = append(out, st)
		}
	}
	models.SortStrokes(out)
	return out
}

// keepInSetMerge is the three-way membership rule: an element survives
// if both sides still have it, or one side added it since the base.
func keepInSetMerge(id uuid.UUID, inBase, inMine, inTheirs map[uuid.UUID]bool) bool {
	if inMine[id] && inTheirs[id] {
		return true
	}
	if inMine[id] && !inBase[id] {
		return true
	}
	if inTheirs[id] && !inBase[id] {
		return true
	}
	return false
}

func mergeRoster(base, mine, theirs map[uuid.UUID]bool) map[uuid.UUID]bool {
	out := make(map[uuid.UUID]bool)
	for id := range mine {
		if theirs[id] || !base[id] {
			out[id] = true
		}
	}
	for id := range theirs {
		if !base[id] {
			out[id] = true
		}
	}
	return out
}

func mergePlayers(base, mine, theirs *models.GameSession, conflicts []KeyConflict) (map[uuid.UUID]models.PlacedPosition, []KeyConflict) {
	out := make(map[uuid.UUID]models.PlacedPosition)
	for key := range keyUnion(base.PlacedPlayers, mine.PlacedPlayers, theirs.PlacedPlayers) {
		b, inB := base.PlacedPlayers[key]
		m, inM := mine.PlacedPlayers[key]
		t, inT := theirs.PlacedPlayers[key]

		mineChanged := inM != inB || (inM && m != b)
		theirsChanged := inT != inB || (inT && t != b)

		switch {
		case !theirsChanged:
			if inM {
				out[key] = m
			}
		case !mineChanged:
			if inT {
				out[key] = t
			}
		case inM && inT && m == t:
			out[key] = m
		default:
			pos, removed := pickLWW(m, inM, t, inT)
			if !removed {
				out[key] = pos
			}
			conflicts = append(conflicts, KeyConflict{
				Field:         ConflictFieldPlayer,
				Key:           key,
				Mine:          m,
				Theirs:        t,
				MineRemoved:   !inM,
				TheirsRemoved: !inT,
			})
		}
	}
	return out, conflicts
}

func mergeMarkers(base, mine, theirs *models.GameSession, conflicts []KeyConflict) (map[uuid.UUID]models.OpponentMarker, []KeyConflict) {
	out := make(map[uuid.UUID]models.OpponentMarker)
	keys := make(map[uuid.UUID]bool)
	for id := range base.OpponentMarkers {
		keys[id] = true
	}
	for id := range mine.OpponentMarkers {
		keys[id] = true
	}
	for id := range theirs.OpponentMarkers {
		keys[id] = true
	}

	for key := range keys {
		b, inB := base.OpponentMarkers[key]
		m, inM := mine.OpponentMarkers[key]
		t, inT := theirs.OpponentMarkers[key]

		mineChanged := inM != inB || (inM && m != b)
		theirsChanged := inT != inB || (inT && t != b)

		switch {
		case !theirsChanged:
			if inM {
				out[key] = m
			}
		case !mineChanged:
			if inT {
				out[key] = t
			}
		case inM && inT && m == t:
			out[key] = m
		default:
			mPos := models.PlacedPosition{X: m.X, Y: m.Y, StampMs: m.StampMs}
			tPos := models.PlacedPosition{X: t.X, Y: t.Y, StampMs: t.StampMs}
			pos, removed := pickLWW(mPos, inM, tPos, inT)
			if !removed {
				out[key] = models.OpponentMarker{ID: key, X: pos.X, Y: pos.Y, StampMs: pos.StampMs}
			}
			conflicts = append(conflicts, KeyConflict{
				Field:         ConflictFieldOpponent,
				Key:           key,
				Mine:          mPos,
				Theirs:        tPos,
				MineRemoved:   !inM,
				TheirsRemoved: !inT,
			})
		}
	}
	return out, conflicts
}

// pickLWW chooses the provisional winner for a both-sides-changed key:
// a surviving position beats a removal, otherwise the newer stamp
// wins, remote winning ties.
func pickLWW(mine models.PlacedPosition, inMine bool, theirs models.PlacedPosition, inTheirs bool) (models.PlacedPosition, bool) {
	switch {
	case !inMine && !inTheirs:
		return models.PlacedPosition{}, true
	case !inMine:
		return theirs, false
	case !inTheirs:
		return mine, false
	case mine.StampMs > theirs.StampMs:
		return mine, false
	default:
		return theirs, false
	}
}

func keyUnion(maps ...map[uuid.UUID]models.PlacedPosition) map[uuid.UUID]bool {
	keys := make(map[uuid.UUID]bool)
	for _, m := range maps {
		for id := range m {
			keys[id] = true
		}
	}
	return keys
}

func eventIDs(events []models.MatchEvent) map[uuid.UUID]bool {
	ids := make(map[uuid.UUID]bool, len(events))
	for _, ev := range events {
		ids[ev.ID] = true
	}
	return ids
}

func strokeIDs(strokes []models.Stroke) map[uuid.UUID]bool {
	ids := make(map[uuid.UUID]bool, len(strokes))
	for _, st := range strokes {
		ids[st.ID] = true
	}
	return ids
}
