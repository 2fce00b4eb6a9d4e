// Package roster supplies the external inputs a session starts from:
// the master roster and the team's period settings. The engine treats
// these as immutable once the game begins.
package roster

import (
	"context"

	"github.com/google/uuid"
)

// Player is one member of the master roster.
type Player struct {
	ID      uuid.UUID `json:"id"`
	TeamID  uuid.UUID `json:"team_id"`
	Name    string    `json:"name"`
	ShirtNo *int      `json:"shirt_no,omitempty"`
	Active  bool      `json:"active"`
}

// Setup is everything the engine needs to create a session.
type Setup struct {
	TeamID                uuid.UUID   `json:"team_id"`
	PlayerIDs             []uuid.UUID `json:"player_ids"`
	PeriodDurationMinutes int         `json:"period_duration_minutes"`
	NumberOfPeriods       int         `json:"number_of_periods"`
}

// Provider hands out game setups at session creation.
type Provider interface {
	GameSetup(ctx context.Context, teamID uuid.UUID) (*Setup, error)
}

// StaticProvider serves a fixed setup, used in tests and demos.
type StaticProvider struct {
	Setup Setup
}

func (p StaticProvider) GameSetup(_ context.Context, teamID uuid.UUID) (*Setup, error) {
	setup := p.Setup
	setup.TeamID = teamID
	return &setup, nil
}
