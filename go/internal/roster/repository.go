package roster

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/sidelinehq/sideline/go/internal/sqlutil"
)

// Repository reads rosters and team settings from Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository returns a roster repository on the given handle.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const defaultPeriodMinutes = 45
const defaultPeriods = 2

// GameSetup loads the active roster and period settings for a team.
// Teams without stored settings get the defaults.
func (r *Repository) GameSetup(ctx context.Context, teamID uuid.UUID) (*Setup, error) {
	setup := &Setup{
		TeamID:                teamID,
		PeriodDurationMinutes: defaultPeriodMinutes,
		NumberOfPeriods:       defaultPeriods,
	}

	err := r.db.QueryRowContext(ctx,
		`SELECT period_duration_minutes, number_of_periods FROM team_settings WHERE team_id = $1`,
		teamID,
	).Scan(&setup.PeriodDurationMinutes, &setup.NumberOfPeriods)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to load team settings: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM team_players WHERE team_id = $1 AND active ORDER BY shirt_no NULLS LAST, name`,
		teamID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load roster: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan roster row: %w", err)
		}
		setup.PlayerIDs = append(setup.PlayerIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate roster rows: %w", err)
	}
	return setup, nil
}

// Players loads the full active roster with display fields for the
// bench bar.
func (r *Repository) Players(ctx context.Context, teamID uuid.UUID) ([]Player, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, team_id, name, shirt_no, active FROM team_players WHERE team_id = $1 AND active ORDER BY shirt_no NULLS LAST, name`,
		teamID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load players: %w", err)
	}
	defer rows.Close()

	var players []Player
	for rows.Next() {
		var p Player
		var shirt sql.NullInt32
		if err := rows.Scan(&p.ID, &p.TeamID, &p.Name, &shirt, &p.Active); err != nil {
			return nil, fmt.Errorf("failed to scan player row: %w", err)
		}
		p.ShirtNo = sqlutil.FromSqlInt32(shirt)
		players = append(players, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate player rows: %w", err)
	}
	return players, nil
}

// UpsertPlayer creates or updates one master roster entry.
func (r *Repository) UpsertPlayer(ctx context.Context, p Player) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO team_players (id, team_id, name, shirt_no, active)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET name = $3, shirt_no = $4, active = $5`,
		p.ID, p.TeamID, p.Name, sqlutil.ToSqlInt32(p.ShirtNo), p.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert player: %w", err)
	}
	return nil
}

// SaveSettings stores the team's period configuration.
func (r *Repository) SaveSettings(ctx context.Context, teamID uuid.UUID, periodMinutes, periods int) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO team_settings (team_id, period_duration_minutes, number_of_periods)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (team_id) DO UPDATE SET period_duration_minutes = $2, number_of_periods = $3`,
		teamID, periodMinutes, periods,
	)
	if err != nil {
		return fmt.Errorf("failed to save team settings: %w", err)
	}
	return nil
}
