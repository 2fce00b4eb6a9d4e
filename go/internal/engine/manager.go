package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/sidelinehq/sideline/go/internal/models"
	"github.com/sidelinehq/sideline/go/internal/roster"
	"github.com/sidelinehq/sideline/go/internal/session"
	"github.com/sidelinehq/sideline/go/internal/storage"
	"github.com/sidelinehq/sideline/go/internal/syncengine"
)

// Notifier receives engine-side updates for fan-out to connected
// devices. Implementations must not block.
type Notifier interface {
	SessionUpdated(sessionID uuid.UUID, snapshot *models.GameSession, status syncengine.Status)
	SyncStatusChanged(sessionID uuid.UUID, status syncengine.Status)
	ConflictPrompt(sessionID uuid.UUID, conflict *syncengine.Conflict)
	ClockTick(sessionID uuid.UUID, tick DisplayTick)
}

// NopNotifier discards all updates.
type NopNotifier struct{}

func (NopNotifier) SessionUpdated(uuid.UUID, *models.GameSession, syncengine.Status) {}
func (NopNotifier) SyncStatusChanged(uuid.UUID, syncengine.Status)                   {}
func (NopNotifier) ConflictPrompt(uuid.UUID, *syncengine.Conflict)                   {}
func (NopNotifier) ClockTick(uuid.UUID, DisplayTick)                                 {}

// ManagerConfig tunes session lifecycle handling.
type ManagerConfig struct {
	DeviceID     string
	HistoryLimit int
	TickInterval time.Duration
	Sync         syncengine.Config
}

// Manager owns the lifecycle of open sessions: create or load, wire up
// sync, reconcile the clock, and tear everything down on close.
type Manager struct {
	store    storage.Store
	provider roster.Provider
	clock    clockwork.Clock
	cfg      ManagerConfig
	notifier Notifier

	mu   sync.Mutex
	open map[uuid.UUID]*OpenSession
}

// OpenSession bundles the live pieces of one session.
type OpenSession struct {
	Engine *Engine
	Syncer *syncengine.Syncer

	manager *Manager
	cancel  context.CancelFunc
}

// NewManager builds a session manager.
func NewManager(store storage.Store, provider roster.Provider, clock clockwork.Clock, cfg ManagerConfig, notifier Notifier) *Manager {
	if cfg.DeviceID == "" {
		cfg.DeviceID = uuid.New().String()[:8]
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Manager{
		store:    store,
		provider: provider,
		clock:    clock,
		cfg:      cfg,
		notifier: notifier,
		open:     make(map[uuid.UUID]*OpenSession),
	}
}

// DeviceID returns the device identity this manager writes as.
func (m *Manager) DeviceID() string { return m.cfg.DeviceID }

// Create sets up a brand-new session from the roster provider's
// initial selection and settings.
func (m *Manager) Create(ctx context.Context, teamID uuid.UUID) (*OpenSession, error) {
	setup, err := m.provider.GameSetup(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to load game setup: %w", err)
	}

	selection := make(map[uuid.UUID]bool, len(setup.PlayerIDs))
	for _, id := range setup.PlayerIDs {
		selection[id] = true
	}
	initial := &models.GameSession{
		ID:                    uuid.New(),
		GamePhase:             models.GamePhasePreGame,
		PeriodDurationMinutes: setup.PeriodDurationMinutes,
		NumberOfPeriods:       setup.NumberOfPeriods,
		RosterSelection:       selection,
		PlacedPlayers:         make(map[uuid.UUID]models.PlacedPosition),
		OpponentMarkers:       make(map[uuid.UUID]models.OpponentMarker),
		Revision:              1,
		LastWriter:            m.cfg.DeviceID,
	}

	log.Info().
		Str("session_id", initial.ID.String()).
		Str("team_id", teamID.String()).
		Int("roster_size", len(setup.PlayerIDs)).
		Msg("session created")
	return m.openWith(initial, nil)
}

// Open loads an existing session from the remote store and resumes it,
// reconciling a clock that ran while nothing was watching.
func (m *Manager) Open(ctx context.Context, id uuid.UUID) (*OpenSession, error) {
	m.mu.Lock()
	if sess, ok := m.open[id]; ok {
		m.mu.Unlock()
		return sess, nil
	}
	m.mu.Unlock()

	remote, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	initial := remote.Clone()
	if queued := syncengine.QueuedSnapshot(m.cfg.Sync, id); queued != nil && queued.Revision > remote.Revision {
		// Edits committed offline by a previous run are newer than the
		// store copy; resume from them so the flush cannot be undone
		// by the next local edit.
		log.Info().
			Str("session_id", id.String()).
			Int64("queued_revision", queued.Revision).
			Int64("remote_revision", remote.Revision).
			Msg("resuming from offline-queued edits")
		initial = queued
	}
	return m.openWith(initial, remote)
}

func (m *Manager) openWith(initial, remote *models.GameSession) (*OpenSession, error) {
	eng := New(m.cfg.DeviceID, m.clock, initial, m.cfg.HistoryLimit)
	id := initial.ID

	syncer := syncengine.New(m.store, m.clock, m.cfg.DeviceID, m.cfg.Sync, syncengine.Callbacks{
		OnMerged: func(merged *models.GameSession, remoteDevice string) *models.GameSession {
			next := eng.ApplyMerge(merged, remoteDevice)
			m.notifier.SessionUpdated(id, next, eng.SyncStatus())
			return next
		},
		OnStatus: func(status syncengine.Status) {
			m.notifier.SyncStatusChanged(id, status)
		},
		OnConflict: func(c *syncengine.Conflict) {
			m.notifier.ConflictPrompt(id, c)
		},
	})
	eng.AttachSyncer(syncer)
	eng.ReconcileOnResume()

	runCtx, cancel := context.WithCancel(context.Background())
	if err := syncer.Start(runCtx, eng.Snapshot(), remote); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start sync: %w", err)
	}

	go eng.RunTicker(runCtx, m.cfg.TickInterval, func(tick DisplayTick) {
		m.notifier.ClockTick(id, tick)
	})

	sess := &OpenSession{Engine: eng, Syncer: syncer, manager: m, cancel: cancel}
	m.mu.Lock()
	m.open[id] = sess
	m.mu.Unlock()
	return sess, nil
}

// Get returns an already open session.
func (m *Manager) Get(id uuid.UUID) (*OpenSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.open[id]
	return sess, ok
}

// Close tears down an open session: ticker stopped, debounce
// cancelled, subscription dropped. In-flight writes complete and
// unsaved edits land in the durable queue; the remote copy persists.
func (m *Manager) Close(id uuid.UUID) {
	m.mu.Lock()
	sess, ok := m.open[id]
	delete(m.open, id)
	m.mu.Unlock()
	if !ok {
		return
	}
	sess.cancel()
	sess.Syncer.Close()
	log.Info().Str("session_id", id.String()).Msg("session closed")
}

// CloseAll closes every open session, e.g. on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	ids := make([]uuid.UUID, 0, len(m.open))
	for id := range m.open {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	for _, id := range ids {
		m.Close(id)
	}
}

// Dispatch applies a local action and fans the new snapshot out to
// every device viewing the session.
func (s *OpenSession) Dispatch(action session.Action) (*models.GameSession, error) {
	next, err := s.Engine.Dispatch(action)
	if err != nil {
		return next, err
	}
	s.manager.notifier.SessionUpdated(next.ID, next, s.Engine.SyncStatus())
	return next, nil
}

// Undo reverses the last local action and fans out the result.
func (s *OpenSession) Undo() (*models.GameSession, bool) {
	snap, ok := s.Engine.Undo()
	if ok {
		s.manager.notifier.SessionUpdated(snap.ID, snap, s.Engine.SyncStatus())
	}
	return snap, ok
}

// Redo reinstates the last undone action and fans out the result.
func (s *OpenSession) Redo() (*models.GameSession, bool) {
	snap, ok := s.Engine.Redo()
	if ok {
		s.manager.notifier.SessionUpdated(snap.ID, snap, s.Engine.SyncStatus())
	}
	return snap, ok
}

// Resolve answers the pending conflict prompt and fans out the result.
func (s *OpenSession) Resolve(keepMine bool) {
	s.Syncer.Resolve(keepMine)
	snap := s.Engine.Snapshot()
	s.manager.notifier.SessionUpdated(snap.ID, snap, s.Engine.SyncStatus())
}
