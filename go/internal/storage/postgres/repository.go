// Package postgres persists session snapshots as jsonb rows with an
// optimistic-concurrency revision column.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sidelinehq/sideline/go/internal/models"
	"github.com/sidelinehq/sideline/go/internal/storage"
)

// Repository implements storage.ReadWriter on a pgx pool.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a session repository on the given pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Load(ctx context.Context, id uuid.UUID) (*models.GameSession, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx,
		`SELECT snapshot FROM game_sessions WHERE id = $1`, id,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, classify(fmt.Errorf("failed to load session: %w", err))
	}

	var snapshot models.GameSession
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode session snapshot: %w", err)
	}
	return &snapshot, nil
}

func (r *Repository) Write(ctx context.Context, id uuid.UUID, snapshot *models.GameSession, baseRevision int64) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal session snapshot: %w", err)
	}

	var tag pgconn.CommandTag
	if baseRevision == 0 {
		tag, err = r.pool.Exec(ctx,
			`INSERT INTO game_sessions (id, snapshot, revision, last_writer, updated_at)
			 VALUES ($1, $2, $3, $4, now())
			 ON CONFLICT (id) DO NOTHING`,
			id, raw, snapshot.Revision, snapshot.LastWriter,
		)
	} else {
		tag, err = r.pool.Exec(ctx,
			`UPDATE game_sessions
			 SET snapshot = $2, revision = $3, last_writer = $4, updated_at = now()
			 WHERE id = $1 AND revision = $5`,
			id, raw, snapshot.Revision, snapshot.LastWriter, baseRevision,
		)
	}
	if err != nil {
		return classify(fmt.Errorf("failed to write session: %w", err))
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// The base revision was stale; hand the caller whatever won.
	remote, err := r.Load(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.ErrNotFound
	}
	if err != nil {
		return err
	}
	return &storage.ConflictError{Remote: remote}
}

// classify wraps permission and schema failures as fatal so the sync
// engine suspends instead of retrying forever.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "42501", // insufficient_privilege
			"28000", // invalid_authorization_specification
			"3D000", // invalid_catalog_name
			"42P01": // undefined_table
			return &storage.FatalError{Err: err}
		}
	}
	return err
}
