package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/sidelinehq/sideline/go/internal/dbconfig"
	"github.com/sidelinehq/sideline/go/internal/engine"
	"github.com/sidelinehq/sideline/go/internal/gateway"
	"github.com/sidelinehq/sideline/go/internal/roster"
	"github.com/sidelinehq/sideline/go/internal/storage"
	"github.com/sidelinehq/sideline/go/internal/storage/natsfeed"
	"github.com/sidelinehq/sideline/go/internal/storage/postgres"
)

// Services bundles the wired application components.
type Services struct {
	DB       *sql.DB
	Pool     *pgxpool.Pool
	NATS     *nats.Conn
	Sessions *engine.Manager
	Gateway  *gateway.ConnectionManager
	Handler  *gateway.WebSocketHandler
}

// setupServices wires the dependency chain: storage and change feed,
// roster provider, session manager, WebSocket gateway.
func setupServices(ctx context.Context, config *Config) (*Services, error) {
	svc := &Services{}
	clock := clockwork.NewRealClock()

	var store storage.Store
	if config.NATS.Enabled {
		dbCfg := dbconfig.NewConfigFromEnv()

		db, err := setupDatabase(dbCfg)
		if err != nil {
			return nil, err
		}
		svc.DB = db

		pool, err := setupPool(ctx, dbCfg)
		if err != nil {
			svc.Close()
			return nil, err
		}
		svc.Pool = pool

		nc, err := natsfeed.Connect(config.natsConfig())
		if err != nil {
			svc.Close()
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		svc.NATS = nc

		store = natsfeed.New(postgres.NewRepository(pool), nc, config.natsConfig().SubjectPrefix)
	} else {
		// Without a change feed there is no cross-device sync; an
		// in-memory store keeps single-device development working.
		log.Warn().Msg("NATS disabled, using in-memory session store")
		store = storage.NewMemoryStore()
	}

	var provider roster.Provider
	var rosterStore gateway.RosterStore
	if svc.DB != nil {
		repo := roster.NewRepository(svc.DB)
		provider = repo
		rosterStore = repo
	} else {
		provider = roster.StaticProvider{Setup: roster.Setup{
			PeriodDurationMinutes: 45,
			NumberOfPeriods:       2,
		}}
	}

	svc.Gateway = gateway.NewConnectionManager(config.websocketConfig(), clock)
	svc.Sessions = engine.NewManager(store, provider, clock, config.managerConfig(), svc.Gateway)
	svc.Gateway.Bind(svc.Sessions)
	svc.Handler = gateway.NewWebSocketHandler(svc.Gateway, svc.Sessions, rosterStore)

	return svc, nil
}

// Close tears the components down in reverse dependency order.
func (s *Services) Close() {
	if s.Sessions != nil {
		s.Sessions.CloseAll()
	}
	if s.NATS != nil {
		s.NATS.Drain()
	}
	if s.Pool != nil {
		s.Pool.Close()
	}
	if s.DB != nil {
		s.DB.Close()
	}
}
