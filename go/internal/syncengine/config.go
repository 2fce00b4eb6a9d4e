package syncengine

import "time"

// Status is the user-visible synchronization state.
type Status string

const (
	StatusSynced          Status = "SYNCED"
	StatusSaving          Status = "SAVING"
	StatusOffline         Status = "OFFLINE"
	StatusConflictPending Status = "CONFLICT_PENDING"
)

// Config tunes the autosave and retry schedule. The debounce interval
// and backoff constants are knobs, not contracts.
type Config struct {
	Debounce     time.Duration
	WriteTimeout time.Duration
	MaxRetries   int
	RetryBase    time.Duration
	RetryMax     time.Duration
	QueueDir     string
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Debounce:     2 * time.Second,
		WriteTimeout: 10 * time.Second,
		MaxRetries:   5,
		RetryBase:    time.Second,
		RetryMax:     30 * time.Second,
		QueueDir:     "",
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Debounce <= 0 {
		c.Debounce = d.Debounce
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.RetryBase <= 0 {
		c.RetryBase = d.RetryBase
	}
	if c.RetryMax <= 0 {
		c.RetryMax = d.RetryMax
	}
	return c
}

// backoffDelay returns the exponential delay before retry attempt n
// (1-based), capped at RetryMax.
func (c Config) backoffDelay(attempt int) time.Duration {
	delay := c.RetryBase
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.RetryMax {
			return c.RetryMax
		}
	}
	if delay > c.RetryMax {
		return c.RetryMax
	}
	return delay
}
