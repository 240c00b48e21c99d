package sampler

import (
	"time"

	"github.com/Iron-Ham/proctree/internal/event"
	"github.com/Iron-Ham/proctree/internal/logging"
)

const (
	// DefaultInterval is the pause between the end of one pass and the
	// start of the next while active.
	DefaultInterval = time.Second
	// DefaultIdleTimeout bounds a single idle wait.
	DefaultIdleTimeout = 10000 * time.Second
	defaultQueueSize   = 16
)

// Option configures a Loop.
type Option func(*Loop)

// WithBus sets the bus that receives sampler events.
func WithBus(bus *event.Bus) Option {
	return func(l *Loop) {
		if bus != nil {
			l.bus = bus
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithInterval sets the sampling interval. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.interval = d
		}
	}
}

// WithIdleTimeout sets how long one idle wait lasts before the loop wakes
// and idles again. Non-positive values are ignored.
func WithIdleTimeout(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.idleTimeout = d
		}
	}
}

// WithActive makes the loop start in active mode.
func WithActive(active bool) Option {
	return func(l *Loop) {
		l.startActive = active
	}
}

// WithQueueSize sets the control channel capacity.
func WithQueueSize(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.queueSize = n
		}
	}
}
