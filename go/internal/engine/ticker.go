package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sidelinehq/sideline/go/internal/models"
	"github.com/sidelinehq/sideline/go/internal/session"
)

// DisplayTick is one 1 Hz clock reading pushed to the UI. It carries
// derived values only; rendering from it can never corrupt the model.
type DisplayTick struct {
	Elapsed   time.Duration
	Phase     models.GamePhase
	IsRunning bool
}

// RunTicker drives the display refresh until ctx is cancelled. Each
// tick reads the derived elapsed time; when a running clock has
// reached the period duration the ticker dispatches the automatic
// pause-and-advance through the reducer, which is the only way the
// tick ever touches state.
func (e *Engine) RunTicker(ctx context.Context, interval time.Duration, fn func(DisplayTick)) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := e.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			snap := e.Snapshot()
			now := e.clock.Now()

			if session.PeriodElapsed(snap, now) {
				log.Info().
					Str("session_id", snap.ID.String()).
					Str("phase", string(snap.GamePhase)).
					Msg("period elapsed; advancing phase")
				for _, action := range session.OverrunActions(snap, now, e.deviceID) {
					if _, err := e.Dispatch(action); err != nil {
						log.Error().Err(err).Str("action", action.Name()).Msg("period rollover action rejected")
						break
					}
				}
				snap = e.Snapshot()
			}

			if fn != nil {
				fn(DisplayTick{
					Elapsed:   snap.Clock.Elapsed(now),
					Phase:     snap.GamePhase,
					IsRunning: snap.Clock.IsRunning,
				})
			}
		}
	}
}
