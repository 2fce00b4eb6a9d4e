package roster

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// The queries bind parameters as $1, $2, ... which SQLite accepts as
// named parameters indexed in order of first appearance, so the same
// repository runs against an in-process database here.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "roster.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	for _, stmt := range []string{
		`CREATE TABLE team_players (
			id TEXT PRIMARY KEY,
			team_id TEXT NOT NULL,
			name TEXT NOT NULL,
			shirt_no INTEGER,
			active INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE team_settings (
			team_id TEXT PRIMARY KEY,
			period_duration_minutes INTEGER NOT NULL,
			number_of_periods INTEGER NOT NULL
		)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

func intPtr(v int) *int { return &v }

func TestRepositoryPlayersAndUpsert(t *testing.T) {
	repo := NewRepository(openTestDB(t))
	ctx := context.Background()
	teamID := uuid.New()

	keeper := Player{ID: uuid.New(), TeamID: teamID, Name: "Avery", ShirtNo: intPtr(1), Active: true}
	unnumbered := Player{ID: uuid.New(), TeamID: teamID, Name: "Billie", Active: true}
	retired := Player{ID: uuid.New(), TeamID: teamID, Name: "Casey", ShirtNo: intPtr(9), Active: false}
	for _, p := range []Player{unnumbered, retired, keeper} {
		if err := repo.UpsertPlayer(ctx, p); err != nil {
			t.Fatalf("upsert %s: %v", p.Name, err)
		}
	}

	players, err := repo.Players(ctx, teamID)
	if err != nil {
		t.Fatalf("Players failed: %v", err)
	}
	if len(players) != 2 {
		t.Fatalf("got %d players, want the 2 active ones", len(players))
	}
	// Numbered shirts sort first, unnumbered last.
	if players[0].ID != keeper.ID || players[1].ID != unnumbered.ID {
		t.Errorf("order = %s, %s; want numbered before unnumbered", players[0].Name, players[1].Name)
	}
	if players[0].ShirtNo == nil || *players[0].ShirtNo != 1 {
		t.Errorf("keeper shirt = %v, want 1", players[0].ShirtNo)
	}
	if players[1].ShirtNo != nil {
		t.Errorf("unnumbered player shirt = %d, want nil", *players[1].ShirtNo)
	}

	// Upserting an existing id updates in place.
	keeper.Name = "Avery K"
	keeper.ShirtNo = intPtr(12)
	if err := repo.UpsertPlayer(ctx, keeper); err != nil {
		t.Fatalf("re-upsert failed: %v", err)
	}
	players, err = repo.Players(ctx, teamID)
	if err != nil {
		t.Fatalf("Players failed: %v", err)
	}
	if len(players) != 2 || players[0].Name != "Avery K" || *players[0].ShirtNo != 12 {
		t.Errorf("players after update = %+v", players)
	}
}

func TestRepositoryGameSetupAndSettings(t *testing.T) {
	repo := NewRepository(openTestDB(t))
	ctx := context.Background()
	teamID := uuid.New()

	// A team without stored settings gets the defaults.
	setup, err := repo.GameSetup(ctx, teamID)
	if err != nil {
		t.Fatalf("GameSetup failed: %v", err)
	}
	if setup.PeriodDurationMinutes != defaultPeriodMinutes || setup.NumberOfPeriods != defaultPeriods {
		t.Errorf("defaults = %d/%d, want %d/%d",
			setup.PeriodDurationMinutes, setup.NumberOfPeriods, defaultPeriodMinutes, defaultPeriods)
	}
	if len(setup.PlayerIDs) != 0 {
		t.Errorf("empty team roster = %d players, want none", len(setup.PlayerIDs))
	}

	if err := repo.SaveSettings(ctx, teamID, 30, 4); err != nil {
		t.Fatalf("SaveSettings failed: %v", err)
	}
	// Saving again overwrites.
	if err := repo.SaveSettings(ctx, teamID, 25, 4); err != nil {
		t.Fatalf("SaveSettings update failed: %v", err)
	}

	p := Player{ID: uuid.New(), TeamID: teamID, Name: "Drew", ShirtNo: intPtr(7), Active: true}
	if err := repo.UpsertPlayer(ctx, p); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	setup, err = repo.GameSetup(ctx, teamID)
	if err != nil {
		t.Fatalf("GameSetup failed: %v", err)
	}
	if setup.PeriodDurationMinutes != 25 || setup.NumberOfPeriods != 4 {
		t.Errorf("settings = %d/%d, want 25/4", setup.PeriodDurationMinutes, setup.NumberOfPeriods)
	}
	if len(setup.PlayerIDs) != 1 || setup.PlayerIDs[0] != p.ID {
		t.Errorf("roster = %v, want just %s", setup.PlayerIDs, p.ID)
	}
}
