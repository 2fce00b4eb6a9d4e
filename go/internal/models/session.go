package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// GamePhase defines where a session is in the match lifecycle.
type GamePhase string

const (
	GamePhasePreGame    GamePhase = "PRE_GAME"
	GamePhaseFirstHalf  GamePhase = "FIRST_HALF"
	GamePhaseHalftime   GamePhase = "HALFTIME"
	GamePhaseSecondHalf GamePhase = "SECOND_HALF"
	GamePhaseOvertime   GamePhase = "OVERTIME"
	GamePhaseFinished   GamePhase = "FINISHED"
)

// phaseOrder is the forward-only path. Overtime is optional: sessions
// configured without it jump from SecondHalf straight to Finished.
var phaseOrder = []GamePhase{
	GamePhasePreGame,
	GamePhaseFirstHalf,
	GamePhaseHalftime,
	GamePhaseSecondHalf,
	GamePhaseOvertime,
	GamePhaseFinished,
}

// Next returns the following phase on the forward path.
// hasOvertime controls whether SecondHalf advances to Overtime or
// directly to Finished.
func (p GamePhase) Next(hasOvertime bool) (GamePhase, bool) {
	if p == GamePhaseSecondHalf && !hasOvertime {
		return GamePhaseFinished, true
	}
	for i, phase := range phaseOrder {
		if phase == p && i+1 < len(phaseOrder) {
			return phaseOrder[i+1], true
		}
	}
	return p, false
}

// Prev returns the preceding phase on the forward path.
func (p GamePhase) Prev() (GamePhase, bool) {
	for i, phase := range phaseOrder {
		if phase == p && i > 0 {
			return phaseOrder[i-1], true
		}
	}
	return p, false
}

// Playable reports whether the match clock may run in this phase.
func (p GamePhase) Playable() bool {
	switch p {
	case GamePhaseFirstHalf, GamePhaseSecondHalf, GamePhaseOvertime:
		return true
	}
	return false
}

// ClockState is the offline-first match clock. Elapsed time is always
// derived from timestamps, never advanced by ticks, so a suspended tab
// cannot make it drift.
type ClockState struct {
	StartedAtEpochMs *int64 `json:"started_at_epoch_ms,omitempty"`
	AccumulatedMs    int64  `json:"accumulated_ms"`
	IsRunning        bool   `json:"is_running"`
}

// Elapsed returns the elapsed time at now.
func (c ClockState) Elapsed(now time.Time) time.Duration {
	if c.IsRunning && c.StartedAtEpochMs != nil {
		ms := now.UnixMilli() - *c.StartedAtEpochMs + c.AccumulatedMs
		return time.Duration(ms) * time.Millisecond
	}
	return time.Duration(c.AccumulatedMs) * time.Millisecond
}

// PlacedPosition is a player's spot on the field in normalized
// coordinates (0..1). StampMs records the last local write so
// concurrent edits to different players merge independently.
type PlacedPosition struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	StampMs int64   `json:"stamp_ms"`
}

// OpponentMarker is a generic opposition chip, independent of the roster.
type OpponentMarker struct {
	ID      uuid.UUID `json:"id"`
	X       float64   `json:"x"`
	Y       float64   `json:"y"`
	StampMs int64     `json:"stamp_ms"`
}

// StrokePoint is one sampled point of a freehand drawing.
type StrokePoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Stroke is one committed freehand drawing on the field surface.
type Stroke struct {
	ID        uuid.UUID     `json:"id"`
	Points    []StrokePoint `json:"points"`
	CreatedMs int64         `json:"created_ms"`
}

// EventType defines the kind of a recorded match event.
type EventType string

const (
	EventTypeGoal            EventType = "GOAL"
	EventTypeAssist          EventType = "ASSIST"
	EventTypeCard            EventType = "CARD"
	EventTypeSubstitution    EventType = "SUBSTITUTION"
	EventTypePhaseChange     EventType = "PHASE_CHANGE"
	EventTypePhaseCorrection EventType = "PHASE_CORRECTION"
	EventTypePeriodElapsed   EventType = "PERIOD_ELAPSED"
	EventTypeNote            EventType = "NOTE"
)

// MatchEvent is one entry of the append-only event log. Entries are
// never edited in place; corrections are new compensating events.
type MatchEvent struct {
	ID          uuid.UUID         `json:"id"`
	Type        EventType         `json:"type"`
	TimestampMs int64             `json:"timestamp_ms"`
	PlayerID    *uuid.UUID        `json:"player_id,omitempty"`
	Payload     map[string]string `json:"payload,omitempty"`
}

// GameSession is the root aggregate for one live game. Instances are
// treated as immutable snapshots: every mutation goes through the
// session reducer, which clones before writing.
type GameSession struct {
	ID                    uuid.UUID                     `json:"id"`
	GamePhase             GamePhase                     `json:"game_phase"`
	PhaseStampMs          int64                         `json:"phase_stamp_ms"`
	Clock                 ClockState                    `json:"clock"`
	ClockStampMs          int64                         `json:"clock_stamp_ms"`
	PeriodDurationMinutes int                           `json:"period_duration_minutes"`
	NumberOfPeriods       int                           `json:"number_of_periods"`
	RosterSelection       map[uuid.UUID]bool            `json:"roster_selection"`
	PlacedPlayers         map[uuid.UUID]PlacedPosition  `json:"placed_players"`
	OpponentMarkers       map[uuid.UUID]OpponentMarker  `json:"opponent_markers"`
	Drawings              []Stroke                      `json:"drawings"`
	Events                []MatchEvent                  `json:"events"`
	Revision              int64                         `json:"revision"`
	LastWriter            string                        `json:"last_writer"`
}

// PeriodDuration returns the configured length of one period.
func (s *GameSession) PeriodDuration() time.Duration {
	return time.Duration(s.PeriodDurationMinutes) * time.Minute
}

// HasOvertime reports whether the session was configured with an
// overtime period beyond the regular ones.
func (s *GameSession) HasOvertime() bool {
	return s.NumberOfPeriods > 2
}

// InRoster reports whether the player was selected for this game.
func (s *GameSession) InRoster(playerID uuid.UUID) bool {
	return s.RosterSelection[playerID]
}

// Clone returns a deep copy of the snapshot. Slices and maps are
// copied so the original can be kept on the history stack untouched.
func (s *GameSession) Clone() *GameSession {
	if s == nil {
		return nil
	}
	out := *s

	if s.Clock.StartedAtEpochMs != nil {
		v := *s.Clock.StartedAtEpochMs
		out.Clock.StartedAtEpochMs = &v
	}

	out.RosterSelection = make(map[uuid.UUID]bool, len(s.RosterSelection))
	for id, ok := range s.RosterSelection {
		out.RosterSelection[id] = ok
	}

	out.PlacedPlayers = make(map[uuid.UUID]PlacedPosition, len(s.PlacedPlayers))
	for id, pos := range s.PlacedPlayers {
		out.PlacedPlayers[id] = pos
	}

	out.OpponentMarkers = make(map[uuid.UUID]OpponentMarker, len(s.OpponentMarkers))
	for id, m := range s.OpponentMarkers {
		out.OpponentMarkers[id] = m
	}

	out.Drawings = make([]Stroke, len(s.Drawings))
	for i, stroke := range s.Drawings {
		cp := stroke
		cp.Points = append([]StrokePoint(nil), stroke.Points...)
		out.Drawings[i] = cp
	}

	out.Events = make([]MatchEvent, len(s.Events))
	for i, ev := range s.Events {
		cp := ev
		if ev.PlayerID != nil {
			id := *ev.PlayerID
			cp.PlayerID = &id
		}
		if ev.Payload != nil {
			cp.Payload = make(map[string]string, len(ev.Payload))
			for k, v := range ev.Payload {
				cp.Payload[k] = v
			}
		}
		out.Events[i] = cp
	}

	return &out
}

// SortEvents orders the event log by timestamp, then id for stability.
func SortEvents(events []MatchEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].TimestampMs != events[j].TimestampMs {
			return events[i].TimestampMs < events[j].TimestampMs
		}
		return events[i].ID.String() < events[j].ID.String()
	})
}

// SortStrokes orders drawings by creation time, then id.
func SortStrokes(strokes []Stroke) {
	sort.SliceStable(strokes, func(i, j int) bool {
		if strokes[i].CreatedMs != strokes[j].CreatedMs {
			return strokes[i].CreatedMs < strokes[j].CreatedMs
		}
		return strokes[i].ID.String() < strokes[j].ID.String()
	})
}
