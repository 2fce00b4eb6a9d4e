// Package storage defines the remote store contract the engine syncs
// against. The engine never sees storage protocol details; it only
// requires load, compare-and-swap write, and change subscription.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/sidelinehq/sideline/go/internal/models"
)

// ErrNotFound reports a session id with no remote copy.
var ErrNotFound = errors.New("session not found")

// ConflictError reports a write whose base revision was stale. Remote
// carries the snapshot that won, for three-way reconciliation.
type ConflictError struct {
	Remote *models.GameSession
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("write conflict: remote is at revision %d", e.Remote.Revision)
}

// AsConflict extracts the winning remote snapshot from a conflict error.
func AsConflict(err error) (*models.GameSession, bool) {
	var c *ConflictError
	if errors.As(err, &c) {
		return c.Remote, true
	}
	return nil, false
}

// FatalError marks storage failures that retrying cannot fix, e.g.
// revoked permissions. Sync suspends; local edits stay queued.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return "fatal storage error: " + e.Err.Error() }
func (e *FatalError) Unwrap() error { return e.Err }

// IsFatal reports whether err is unrecoverable by retry.
func IsFatal(err error) bool {
	var f *FatalError
	return errors.As(err, &f)
}

// OnChange delivers a remote snapshot written by some device.
type OnChange func(*models.GameSession)

// Unsubscribe tears down a change subscription.
type Unsubscribe func()

// ReadWriter is the persistence half of a Store. Backends that cannot
// push change notifications themselves implement only this and are
// composed with a change feed.
type ReadWriter interface {
	Load(ctx context.Context, id uuid.UUID) (*models.GameSession, error)
	Write(ctx context.Context, id uuid.UUID, snapshot *models.GameSession, baseRevision int64) error
}

// Store is the opaque keyed object store holding session snapshots.
type Store interface {
	// Load fetches the current remote snapshot.
	Load(ctx context.Context, id uuid.UUID) (*models.GameSession, error)

	// Write stores snapshot if the remote copy is still at
	// baseRevision; otherwise it fails with *ConflictError carrying
	// the current remote snapshot. baseRevision 0 creates.
	Write(ctx context.Context, id uuid.UUID, snapshot *models.GameSession, baseRevision int64) error

	// Subscribe delivers snapshots written by any device, including
	// this one; callers filter by LastWriter.
	Subscribe(ctx context.Context, id uuid.UUID, fn OnChange) (Unsubscribe, error)
}
