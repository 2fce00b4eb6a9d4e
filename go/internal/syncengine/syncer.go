// Package syncengine reconciles the in-memory session with the remote
// store and with edits made on the coach's other devices. Local
// commits autosave on a debounce; remote changes merge three-way;
// network failures queue durably and retry with backoff. Sync never
// blocks local editing.
package syncengine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/sidelinehq/sideline/go/internal/models"
	"github.com/sidelinehq/sideline/go/internal/session"
	"github.com/sidelinehq/sideline/go/internal/storage"
)

// Callbacks funnel sync outcomes back into the engine. OnMerged must
// apply the merged snapshot through the session reducer and return the
// snapshot that actually took effect; it is the only path by which
// remote data enters the session.
type Callbacks struct {
	OnMerged   func(merged *models.GameSession, remoteDeviceID string) *models.GameSession
	OnStatus   func(Status)
	OnConflict func(*Conflict)
}

// Syncer drives autosave and reconciliation for one open session.
type Syncer struct {
	store    storage.Store
	clock    clockwork.Clock
	deviceID string
	cfg      Config
	queue    *queue
	cb       Callbacks

	mu        sync.Mutex
	sessionID uuid.UUID
	base      *models.GameSession // last snapshot known to match remote
	local     *models.GameSession // latest committed local snapshot
	dirty     bool
	writing   bool
	suspended bool
	retries   int
	status    Status
	conflict  *Conflict
	timer     clockwork.Timer
	unsub     storage.Unsubscribe
	closed    bool
}

// New builds a syncer for one device.
func New(store storage.Store, clock clockwork.Clock, deviceID string, cfg Config, cb Callbacks) *Syncer {
	cfg = cfg.withDefaults()
	return &Syncer{
		store:    store,
		clock:    clock,
		deviceID: deviceID,
		cfg:      cfg,
		queue:    newQueue(cfg.QueueDir),
		cb:       cb,
		status:   StatusSynced,
	}
}

// Start binds the syncer to a session. remote is the snapshot loaded
// from the store, or nil when the session has never been written; a
// queued offline snapshot newer than remote is flushed first.
func (s *Syncer) Start(ctx context.Context, sess *models.GameSession, remote *models.GameSession) error {
	s.mu.Lock()
	s.sessionID = sess.ID
	s.base = remote
	s.local = sess
	s.mu.Unlock()

	unsub, err := s.store.Subscribe(ctx, sess.ID, s.handleRemote)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.unsub = unsub
	s.mu.Unlock()

	queued, err := s.queue.Load(sess.ID)
	if err != nil {
		log.Warn().Err(err).Str("session_id", sess.ID.String()).Msg("failed to read offline queue")
	}
	var pending *models.GameSession
	switch {
	case queued != nil && (remote == nil || queued.Revision > remote.Revision):
		log.Info().
			Str("session_id", sess.ID.String()).
			Int64("queued_revision", queued.Revision).
			Msg("flushing offline queue")
		// A resuming caller seeds sess from the queue, so sess is at
		// least as new; flush whichever carries more.
		pending = queued
		if sess.Revision >= queued.Revision {
			pending = sess
		}
	case remote == nil:
		// Brand-new session: get the initial snapshot remote.
		pending = sess
	}
	if pending != nil {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return nil
		}
		s.local = pending
		s.dirty = true
		changed := s.setStatusLocked(s.workingStatusLocked())
		s.armLocked(s.cfg.Debounce)
		s.mu.Unlock()
		s.notifyStatus(changed)
	}
	return nil
}

// NotifyCommit records a freshly committed local snapshot and (re)arms
// the autosave debounce. A write already in flight is never cancelled;
// the new snapshot just schedules the next one.
func (s *Syncer) NotifyCommit(snapshot *models.GameSession) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	// Commits notify outside the engine lock, so an older snapshot can
	// arrive after a newer one; it must not shadow it.
	if s.local != nil && snapshot.Revision <= s.local.Revision {
		s.mu.Unlock()
		return
	}
	s.local = snapshot
	s.dirty = true
	changed := s.setStatusLocked(s.workingStatusLocked())
	s.armLocked(s.cfg.Debounce)
	s.mu.Unlock()

	s.notifyStatus(changed)
}

// Status returns the current sync status.
func (s *Syncer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// PendingConflict returns the unresolved conflict prompt, if any.
func (s *Syncer) PendingConflict() *Conflict {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conflict
}

// Blocks reports whether a key is frozen pending conflict resolution.
func (s *Syncer) Blocks(key uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conflict.Blocks(key)
}

// RetryNow forces an immediate flush attempt, e.g. after the coach
// taps the "not saved" indicator or fixes credentials.
func (s *Syncer) RetryNow() {
	s.mu.Lock()
	s.suspended = false
	s.retries = 0
	s.mu.Unlock()
	s.flush()
}

// Close stops the debounce timer and the subscription. A write already
// on the wire completes; a still-unsaved snapshot lands in the durable
// queue so no committed edit is lost.
func (s *Syncer) Close() {
	s.mu.Lock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	unsub := s.unsub
	s.unsub = nil
	var pending *models.GameSession
	if s.dirty && !s.writing {
		pending = s.local
	}
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if pending != nil {
		if err := s.queue.Save(pending); err != nil {
			log.Error().Err(err).Str("session_id", pending.ID.String()).Msg("failed to queue unsaved snapshot on close")
		}
	}
}

// armLocked (re)arms the flush timer. Caller holds mu.
func (s *Syncer) armLocked(d time.Duration) {
	if s.closed {
		return
	}
	if s.timer != nil {
		s.timer.Reset(d)
		return
	}
	t := s.clock.NewTimer(d)
	s.timer = t
	go func() {
		<-t.Chan()
		s.mu.Lock()
		if s.timer == t {
			s.timer = nil
		}
		s.mu.Unlock()
		s.flush()
	}()
}

// flush writes the latest local snapshot with an optimistic-
// concurrency check against the last known remote revision.
func (s *Syncer) flush() {
	s.mu.Lock()
	if s.writing || !s.dirty || s.suspended || s.conflict != nil || s.closed {
		s.mu.Unlock()
		return
	}
	snapshot := s.local
	baseRev := int64(0)
	if s.base != nil {
		baseRev = s.base.Revision
	}
	s.writing = true
	s.dirty = false
	s.mu.Unlock()

	// Independent of session lifetime: closing the session must not
	// cancel a write already sent.
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.WriteTimeout)
	err := s.store.Write(ctx, snapshot.ID, snapshot, baseRev)
	cancel()

	if err == nil {
		s.afterWriteOK(snapshot)
		return
	}
	if remote, ok := storage.AsConflict(err); ok {
		s.mu.Lock()
		s.writing = false
		s.dirty = true
		s.mu.Unlock()
		s.reconcile(remote)
		return
	}
	s.afterWriteFailed(snapshot, err)
}

func (s *Syncer) afterWriteOK(written *models.GameSession) {
	s.mu.Lock()
	s.writing = false
	s.base = written
	s.retries = 0
	var changed bool
	if s.dirty {
		// Edits landed while the write was in flight.
		s.armLocked(s.cfg.Debounce)
		changed = s.setStatusLocked(s.workingStatusLocked())
	} else {
		s.queue.Clear(written.ID)
		changed = s.setStatusLocked(StatusSynced)
	}
	s.mu.Unlock()

	log.Debug().
		Str("session_id", written.ID.String()).
		Int64("revision", written.Revision).
		Msg("autosave written")
	s.notifyStatus(changed)
}

func (s *Syncer) afterWriteFailed(snapshot *models.GameSession, err error) {
	if qErr := s.queue.Save(snapshot); qErr != nil {
		log.Error().Err(qErr).Str("session_id", snapshot.ID.String()).Msg("failed to queue snapshot after write failure")
	}

	s.mu.Lock()
	s.writing = false
	s.dirty = true
	fatal := storage.IsFatal(err)
	if fatal {
		s.suspended = true
	} else {
		s.retries++
		if s.retries <= s.cfg.MaxRetries {
			s.armLocked(s.cfg.backoffDelay(s.retries))
		}
	}
	exhausted := !fatal && s.retries > s.cfg.MaxRetries
	changed := s.setStatusLocked(StatusOffline)
	s.mu.Unlock()

	evt := log.Warn()
	if fatal {
		evt = log.Error()
	}
	evt.Err(err).
		Str("session_id", snapshot.ID.String()).
		Bool("fatal", fatal).
		Bool("retries_exhausted", exhausted).
		Msg("autosave failed; snapshot preserved in offline queue")
	s.notifyStatus(changed)
}

// handleRemote receives snapshots from the change subscription.
func (s *Syncer) handleRemote(remote *models.GameSession) {
	if remote.LastWriter == s.deviceID {
		return
	}
	s.mu.Lock()
	stale := s.base != nil && remote.Revision <= s.base.Revision
	s.mu.Unlock()
	if stale {
		return
	}
	s.reconcile(remote)
}

// reconcile applies the three-way merge policy against a newer remote
// snapshot.
func (s *Syncer) reconcile(remote *models.GameSession) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	base := s.base
	if base == nil {
		base = &models.GameSession{ID: remote.ID}
	}
	local := s.local
	localChanged := local.Revision != base.Revision || s.dirty
	s.mu.Unlock()

	res := session.Merge(base, local, remote)

	if len(res.Conflicts) == 0 {
		applied := s.applyMerged(res.Merged, remote.LastWriter)
		s.mu.Lock()
		s.base = remote
		s.local = applied
		s.dirty = localChanged
		var changed bool
		if localChanged {
			s.armLocked(s.cfg.Debounce)
			changed = s.setStatusLocked(s.workingStatusLocked())
		} else {
			changed = s.setStatusLocked(StatusSynced)
		}
		s.mu.Unlock()
		s.notifyStatus(changed)
		return
	}

	// Unresolvable keys keep the local value until the coach picks a
	// side; everything mergeable merges now.
	provisional := res.Merged
	for _, c := range res.Conflicts {
		provisional = session.Resolve(provisional, c, true)
	}
	conflict := &Conflict{
		SessionID:    remote.ID,
		RemoteDevice: remote.LastWriter,
		Keys:         res.Conflicts,
	}

	applied := s.applyMerged(provisional, remote.LastWriter)
	s.mu.Lock()
	s.base = remote
	s.local = applied
	s.dirty = true
	s.conflict = conflict
	changed := s.setStatusLocked(StatusConflictPending)
	s.mu.Unlock()

	log.Warn().
		Str("session_id", remote.ID.String()).
		Strs("fields", conflict.FieldNames()).
		Msg("sync conflict requires coach resolution")
	s.notifyStatus(changed)
	if s.cb.OnConflict != nil {
		s.cb.OnConflict(conflict)
	}
}

// Resolve applies the coach's choice for the pending conflict and
// makes it the durable remote state.
func (s *Syncer) Resolve(keepMine bool) {
	s.mu.Lock()
	conflict := s.conflict
	if conflict == nil {
		s.mu.Unlock()
		return
	}
	s.conflict = nil
	local := s.local
	s.mu.Unlock()

	resolved := local
	if !keepMine {
		for _, c := range conflict.Keys {
			resolved = session.Resolve(resolved, c, false)
		}
		resolved = s.applyMerged(resolved, conflict.RemoteDevice)
	}

	s.mu.Lock()
	s.local = resolved
	s.dirty = true
	changed := s.setStatusLocked(StatusSaving)
	s.armLocked(s.cfg.Debounce)
	s.mu.Unlock()

	log.Info().
		Str("session_id", conflict.SessionID.String()).
		Bool("keep_mine", keepMine).
		Msg("sync conflict resolved")
	s.notifyStatus(changed)
}

func (s *Syncer) applyMerged(merged *models.GameSession, remoteDevice string) *models.GameSession {
	if s.cb.OnMerged == nil {
		return merged
	}
	if applied := s.cb.OnMerged(merged, remoteDevice); applied != nil {
		return applied
	}
	return merged
}

// workingStatusLocked is the status while edits are pending: an
// offline or suspended syncer stays Offline, otherwise Saving.
func (s *Syncer) workingStatusLocked() Status {
	if s.suspended || s.retries > 0 {
		return StatusOffline
	}
	if s.conflict != nil {
		return StatusConflictPending
	}
	return StatusSaving
}

func (s *Syncer) setStatusLocked(status Status) bool {
	if s.status == status {
		return false
	}
	s.status = status
	return true
}

func (s *Syncer) notifyStatus(changed bool) {
	if !changed || s.cb.OnStatus == nil {
		return
	}
	s.cb.OnStatus(s.Status())
}
