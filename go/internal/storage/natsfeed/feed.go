// Package natsfeed turns a persistence backend into a full
// storage.Store by fanning session writes out over NATS, so every
// device editing a session hears about every committed write.
package natsfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/sidelinehq/sideline/go/internal/models"
	"github.com/sidelinehq/sideline/go/internal/storage"
)

// Config holds NATS connection settings for the change feed.
type Config struct {
	URL           string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultConfig returns the development defaults.
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		SubjectPrefix: "session.changed",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// changeEnvelope is the wire format of one change notification.
type changeEnvelope struct {
	SessionID string              `json:"session_id"`
	Revision  int64               `json:"revision"`
	Writer    string              `json:"writer"`
	Snapshot  *models.GameSession `json:"snapshot"`
}

// Connect dials NATS with reconnect handlers wired to the logger.
func Connect(cfg Config) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}
	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}

// Feed is a storage.Store that persists via inner and notifies via
// NATS.
type Feed struct {
	inner         storage.ReadWriter
	nc            *nats.Conn
	subjectPrefix string
}

// New wraps inner with a NATS change feed.
func New(inner storage.ReadWriter, nc *nats.Conn, subjectPrefix string) *Feed {
	if subjectPrefix == "" {
		subjectPrefix = DefaultConfig().SubjectPrefix
	}
	return &Feed{inner: inner, nc: nc, subjectPrefix: subjectPrefix}
}

func (f *Feed) subject(id uuid.UUID) string {
	return fmt.Sprintf("%s.%s", f.subjectPrefix, id)
}

func (f *Feed) Load(ctx context.Context, id uuid.UUID) (*models.GameSession, error) {
	return f.inner.Load(ctx, id)
}

func (f *Feed) Write(ctx context.Context, id uuid.UUID, snapshot *models.GameSession, baseRevision int64) error {
	if err := f.inner.Write(ctx, id, snapshot, baseRevision); err != nil {
		return err
	}

	env := changeEnvelope{
		SessionID: id.String(),
		Revision:  snapshot.Revision,
		Writer:    snapshot.LastWriter,
		Snapshot:  snapshot,
	}
	data, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Str("session_id", id.String()).Msg("failed to marshal change envelope")
		return nil
	}
	// The write itself succeeded; a failed notification only delays
	// other devices until their next conflict-triggered fetch.
	if err := f.nc.Publish(f.subject(id), data); err != nil {
		log.Error().Err(err).Str("session_id", id.String()).Msg("failed to publish change")
	}
	return nil
}

func (f *Feed) Subscribe(_ context.Context, id uuid.UUID, fn storage.OnChange) (storage.Unsubscribe, error) {
	sub, err := f.nc.Subscribe(f.subject(id), func(msg *nats.Msg) {
		var env changeEnvelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			log.Error().Err(err).Str("session_id", id.String()).Msg("failed to decode change envelope")
			return
		}
		if env.Snapshot == nil {
			return
		}
		fn(env.Snapshot)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to session changes: %w", err)
	}

	return func() {
		if err := sub.Unsubscribe(); err != nil {
			log.Warn().Err(err).Str("session_id", id.String()).Msg("failed to unsubscribe")
		}
	}, nil
}
