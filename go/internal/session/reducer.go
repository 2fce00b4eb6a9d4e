package session

import (
	"github.com/google/uuid"

	"github.com/sidelinehq/sideline/go/internal/models"
)

// Apply is the single entry point for session mutations. It is a pure
// function: the input snapshot is never mutated, the next snapshot is a
// clone, and a rejected action returns the input unchanged with a
// *RejectedActionError. Every successful application bumps Revision
// and records the acting device as LastWriter.
func Apply(s *models.GameSession, action Action) (*models.GameSession, error) {
	if s == nil {
		return nil, reject(action.Name(), "no active session")
	}
	m := action.meta()

	var (
		next *models.GameSession
		err  error
	)

	switch a := action.(type) {
	case StartClock:
		next, err = applyStartClock(s, a)
	case PauseClock:
		next, err = applyPauseClock(s, a)
	case AdjustClock:
		next, err = applyAdjustClock(s, a)
	case AdvancePhase:
		next, err = applyAdvancePhase(s, a)
	case RevertPhase:
		next, err = applyRevertPhase(s, a)
	case SetPeriodConfig:
		next, err = applySetPeriodConfig(s, a)
	case SelectRoster:
		next, err = applySelectRoster(s, a)
	case PlacePlayer:
		next, err = applyPlacePlayer(s, a.PlayerID, a.X, a.Y, false, a.Meta)
	case MovePlayer:
		next, err = applyPlacePlayer(s, a.PlayerID, a.X, a.Y, true, a.Meta)
	case RemovePlayer:
		next, err = applyRemovePlayer(s, a)
	case PlaceOpponent:
		next, err = applyPlaceOpponent(s, a.MarkerID, a.X, a.Y, false, a.Meta)
	case MoveOpponent:
		next, err = applyPlaceOpponent(s, a.MarkerID, a.X, a.Y, true, a.Meta)
	case RemoveOpponent:
		next, err = applyRemoveOpponent(s, a)
	case AppendEvent:
		next, err = applyAppendEvent(s, a)
	case AddStroke:
		next, err = applyAddStroke(s, a)
	case ClearStrokes:
		next = s.Clone()
		next.Drawings = nil
	case MergeRemote:
		return applyMergeRemote(s, a)
	default:
		return s, reject(action.Name(), "unknown action")
	}

	if err != nil {
		return s, err
	}

	next.Revision = s.Revision + 1
	next.LastWriter = m.DeviceID
	return next, nil
}

func applyStartClock(s *models.GameSession, a StartClock) (*models.GameSession, error) {
	if s.Clock.IsRunning {
		return nil, reject(a.Name(), "clock already running")
	}
	if !s.GamePhase.Playable() {
		return nil, reject(a.Name(), "clock cannot run in phase %s", s.GamePhase)
	}
	next := s.Clone()
	startedAt := a.At.UnixMilli()
	next.Clock.StartedAtEpochMs = &startedAt
	next.Clock.IsRunning = true
	next.ClockStampMs = a.At.UnixMilli()
	return next, nil
}

func applyPauseClock(s *models.GameSession, a PauseClock) (*models.GameSession, error) {
	if !s.Clock.IsRunning {
		return nil, reject(a.Name(), "clock is not running")
	}
	next := s.Clone()
	next.Clock.AccumulatedMs = s.Clock.Elapsed(a.At).Milliseconds()
	next.Clock.IsRunning = false
	next.Clock.StartedAtEpochMs = nil
	next.ClockStampMs = a.At.UnixMilli()
	return next, nil
}

func applyAdjustClock(s *models.GameSession, a AdjustClock) (*models.GameSession, error) {
	if s.Clock.IsRunning {
		return nil, reject(a.Name(), "pause the clock before adjusting it")
	}
	if a.To.Milliseconds() < s.Clock.AccumulatedMs {
		return nil, reject(a.Name(), "clock cannot move backward")
	}
	next := s.Clone()
	next.Clock.AccumulatedMs = a.To.Milliseconds()
	next.ClockStampMs = a.At.UnixMilli()
	return next, nil
}

func applyAdvancePhase(s *models.GameSession, a AdvancePhase) (*models.GameSession, error) {
	phase, ok := s.GamePhase.Next(s.HasOvertime())
	if !ok {
		return nil, reject(a.Name(), "no phase after %s", s.GamePhase)
	}
	next := s.Clone()
	next.GamePhase = phase
	next.PhaseStampMs = a.At.UnixMilli()

	// Each playable period is timed independently.
	if phase.Playable() {
		next.Clock = models.ClockState{}
		next.ClockStampMs = a.At.UnixMilli()
	} else if next.Clock.IsRunning {
		next.Clock.AccumulatedMs = s.Clock.Elapsed(a.At).Milliseconds()
		next.Clock.IsRunning = false
		next.Clock.StartedAtEpochMs = nil
		next.ClockStampMs = a.At.UnixMilli()
	}

	evType := models.EventTypePhaseChange
	if a.Auto {
		evType = models.EventTypePeriodElapsed
	}
	next.Events = append(next.Events, models.MatchEvent{
		ID:          uuid.New(),
		Type:        evType,
		TimestampMs: a.At.UnixMilli(),
		Payload:     map[string]string{"from": string(s.GamePhase), "to": string(phase)},
	})
	return next, nil
}

func applyRevertPhase(s *models.GameSession, a RevertPhase) (*models.GameSession, error) {
	if s.Clock.IsRunning {
		return nil, reject(a.Name(), "pause the clock before reverting the phase")
	}
	phase, ok := s.GamePhase.Prev()
	if !ok {
		return nil, reject(a.Name(), "no phase before %s", s.GamePhase)
	}
	if s.GamePhase == models.GamePhaseFinished && !s.HasOvertime() {
		phase = models.GamePhaseSecondHalf
	}
	next := s.Clone()
	next.GamePhase = phase
	next.PhaseStampMs = a.At.UnixMilli()
	next.Events = append(next.Events, models.MatchEvent{
		ID:          uuid.New(),
		Type:        models.EventTypePhaseCorrection,
		TimestampMs: a.At.UnixMilli(),
		Payload:     map[string]string{"from": string(s.GamePhase), "to": string(phase)},
	})
	return next, nil
}

func applySetPeriodConfig(s *models.GameSession, a SetPeriodConfig) (*models.GameSession, error) {
	if s.Clock.IsRunning {
		return nil, reject(a.Name(), "period settings are locked while the clock runs")
	}
	if a.PeriodDurationMinutes <= 0 {
		return nil, reject(a.Name(), "period duration must be positive")
	}
	if a.NumberOfPeriods <= 0 {
		return nil, reject(a.Name(), "number of periods must be positive")
	}
	next := s.Clone()
	next.PeriodDurationMinutes = a.PeriodDurationMinutes
	next.NumberOfPeriods = a.NumberOfPeriods
	return next, nil
}

func applySelectRoster(s *models.GameSession, a SelectRoster) (*models.GameSession, error) {
	if s.GamePhase != models.GamePhasePreGame {
		return nil, reject(a.Name(), "roster selection is locked once the game starts")
	}
	next := s.Clone()
	next.RosterSelection = make(map[uuid.UUID]bool, len(a.PlayerIDs))
	for _, id := range a.PlayerIDs {
		next.RosterSelection[id] = true
	}
	for id := range next.PlacedPlayers {
		if !next.RosterSelection[id] {
			delete(next.PlacedPlayers, id)
		}
	}
	return next, nil
}

func applyPlacePlayer(s *models.GameSession, playerID uuid.UUID, x, y float64, mustExist bool, m Meta) (*models.GameSession, error) {
	name := "PlacePlayer"
	if mustExist {
		name = "MovePlayer"
	}
	if !s.InRoster(playerID) {
		return nil, reject(name, "player %s is not in the roster selection", playerID)
	}
	if !validCoord(x, y) {
		return nil, reject(name, "position (%v, %v) is outside the field", x, y)
	}
	if _, placed := s.PlacedPlayers[playerID]; mustExist && !placed {
		return nil, reject(name, "player %s is not on the field", playerID)
	}
	next := s.Clone()
	next.PlacedPlayers[playerID] = models.PlacedPosition{X: x, Y: y, StampMs: m.At.UnixMilli()}
	return next, nil
}

func applyRemovePlayer(s *models.GameSession, a RemovePlayer) (*models.GameSession, error) {
	if _, placed := s.PlacedPlayers[a.PlayerID]; !placed {
		return nil, reject(a.Name(), "player %s is not on the field", a.PlayerID)
	}
	next := s.Clone()
	delete(next.PlacedPlayers, a.PlayerID)
	return next, nil
}

func applyPlaceOpponent(s *models.GameSession, markerID uuid.UUID, x, y float64, mustExist bool, m Meta) (*models.GameSession, error) {
	name := "PlaceOpponent"
	if mustExist {
		name = "MoveOpponent"
	}
	if markerID == uuid.Nil {
		return nil, reject(name, "marker id is required")
	}
	if !validCoord(x, y) {
		return nil, reject(name, "position (%v, %v) is outside the field", x, y)
	}
	if _, exists := s.OpponentMarkers[markerID]; mustExist && !exists {
		return nil, reject(name, "marker %s does not exist", markerID)
	}
	next := s.Clone()
	next.OpponentMarkers[markerID] = models.OpponentMarker{ID: markerID, X: x, Y: y, StampMs: m.At.UnixMilli()}
	return next, nil
}

func applyRemoveOpponent(s *models.GameSession, a RemoveOpponent) (*models.GameSession, error) {
	if _, exists := s.OpponentMarkers[a.MarkerID]; !exists {
		return nil, reject(a.Name(), "marker %s does not exist", a.MarkerID)
	}
	next := s.Clone()
	delete(next.OpponentMarkers, a.MarkerID)
	return next, nil
}

func applyAppendEvent(s *models.GameSession, a AppendEvent) (*models.GameSession, error) {
	if a.Event.ID == uuid.Nil {
		return nil, reject(a.Name(), "event id is required")
	}
	if a.Event.PlayerID != nil && !s.InRoster(*a.Event.PlayerID) {
		return nil, reject(a.Name(), "event references player %s outside the roster selection", *a.Event.PlayerID)
	}
	for _, ev := range s.Events {
		if ev.ID == a.Event.ID {
			return nil, reject(a.Name(), "event %s already recorded", a.Event.ID)
		}
	}
	next := s.Clone()
	next.Events = append(next.Events, a.Event)
	return next, nil
}

func applyAddStroke(s *models.GameSession, a AddStroke) (*models.GameSession, error) {
	if a.Stroke.ID == uuid.Nil {
		return nil, reject(a.Name(), "stroke id is required")
	}
	if len(a.Stroke.Points) < 2 {
		return nil, reject(a.Name(), "a stroke needs at least two points")
	}
	for _, p := range a.Stroke.Points {
		if !validCoord(p.X, p.Y) {
			return nil, reject(a.Name(), "stroke point (%v, %v) is outside the field", p.X, p.Y)
		}
	}
	next := s.Clone()
	next.Drawings = append(next.Drawings, a.Stroke)
	return next, nil
}

func applyMergeRemote(s *models.GameSession, a MergeRemote) (*models.GameSession, error) {
	if a.Merged == nil {
		return s, reject(a.Name(), "merged snapshot is required")
	}
	if a.Merged.ID != s.ID {
		return s, reject(a.Name(), "merged snapshot belongs to session %s", a.Merged.ID)
	}
	next := a.Merged.Clone()
	if next.Revision <= s.Revision {
		next.Revision = s.Revision + 1
	}
	return next, nil
}

func validCoord(x, y float64) bool {
	return x >= 0 && x <= 1 && y >= 0 && y <= 1
}
