package sampler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Iron-Ham/proctree/internal/errors"
	"github.com/Iron-Ham/proctree/internal/event"
	"github.com/Iron-Ham/proctree/internal/logging"
	"github.com/Iron-Ham/proctree/internal/process"
	"github.com/Iron-Ham/proctree/internal/snapshot"
)

// Signal is a control message for the sampling loop.
type Signal int

// Control signals.
const (
	Activate Signal = iota + 1
	Deactivate
	Stop
)

// String returns the signal name used in logs and errors.
func (s Signal) String() string {
	switch s {
	case Activate:
		return "activate"
	case Deactivate:
		return "deactivate"
	case Stop:
		return "stop"
	default:
		return fmt.Sprintf("signal(%d)", int(s))
	}
}

// Stats is a point-in-time view of the loop's counters.
type Stats struct {
	Passes   uint64
	Failures uint64
	// Dropped counts snapshots overwritten before the consumer took them.
	Dropped     uint64
	Active      bool
	LastElapsed time.Duration
}

// Loop samples the process table in the background.
type Loop struct {
	enum     process.Enumerator
	exchange *Exchange
	bus      *event.Bus
	logger   *logging.Logger

	interval    time.Duration
	idleTimeout time.Duration
	startActive bool
	queueSize   int

	control   chan Signal
	done      chan struct{}
	startOnce sync.Once

	active      atomic.Bool
	passes      atomic.Uint64
	failures    atomic.Uint64
	dropped     atomic.Uint64
	lastElapsed atomic.Int64
}

// New creates a loop that publishes into exchange. Call Start to run it.
func New(enum process.Enumerator, exchange *Exchange, opts ...Option) *Loop {
	l := &Loop{
		enum:        enum,
		exchange:    exchange,
		logger:      logging.NopLogger(),
		interval:    DefaultInterval,
		idleTimeout: DefaultIdleTimeout,
		queueSize:   defaultQueueSize,
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.bus == nil {
		l.bus = event.NewBus(l.logger)
	}
	l.logger = l.logger.WithComponent("sampler")
	l.control = make(chan Signal, l.queueSize)
	l.active.Store(l.startActive)
	return l
}

// Start launches the loop goroutine. Calls after the first, or after
// Close, do nothing. Cancelling ctx ends the loop like Stop does and also
// cancels an in-flight enumeration.
func (l *Loop) Start(ctx context.Context) {
	l.startOnce.Do(func() {
		go l.run(ctx)
	})
}

// Send queues a control signal. It fails with an error wrapping
// errors.ErrSamplerStopped once the loop has exited.
func (l *Loop) Send(sig Signal) error {
	select {
	case <-l.done:
		return l.stoppedError(sig)
	default:
	}
	select {
	case l.control <- sig:
		return nil
	case <-l.done:
		return l.stoppedError(sig)
	}
}

func (l *Loop) stoppedError(sig Signal) error {
	return errors.NewSamplerError("control signal not delivered", errors.ErrSamplerStopped).
		WithSignal(sig.String())
}

// Close sends Stop and waits for the loop to exit. It is safe to call more
// than once and on a loop that was never started.
func (l *Loop) Close() error {
	l.startOnce.Do(func() {
		close(l.done)
	})
	if err := l.Send(Stop); err != nil && !errors.Is(err, errors.ErrSamplerStopped) {
		return err
	}
	<-l.done
	return nil
}

// Done is closed when the loop has exited.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Active reports the mode the loop last switched to.
func (l *Loop) Active() bool {
	return l.active.Load()
}

// Exchange returns the exchange the loop publishes into.
func (l *Loop) Exchange() *Exchange {
	return l.exchange
}

// Bus returns the bus that receives sampler events.
func (l *Loop) Bus() *event.Bus {
	return l.bus
}

// Stats returns the current counters.
func (l *Loop) Stats() Stats {
	return Stats{
		Passes:      l.passes.Load(),
		Failures:    l.failures.Load(),
		Dropped:     l.dropped.Load(),
		Active:      l.active.Load(),
		LastElapsed: time.Duration(l.lastElapsed.Load()),
	}
}

func (l *Loop) run(ctx context.Context) {
	defer close(l.done)

	active := l.startActive
	timer := time.NewTimer(l.wait(active))
	defer timer.Stop()

	l.logger.Debug("sampler started", "active", active, "interval", l.interval)

	for {
		select {
		case <-ctx.Done():
			l.setState(false, true, "context cancelled")
			return

		case sig := <-l.control:
			switch sig {
			case Stop:
				l.setState(false, true, sig.String())
				return
			case Activate:
				active = true
			case Deactivate:
				active = false
			default:
				l.logger.Warn("ignoring unknown control signal", "signal", sig.String())
				continue
			}
			l.setState(active, false, sig.String())
			timer.Reset(l.wait(active))

		case <-timer.C:
			if !active {
				l.logger.Debug("idle wait elapsed")
				timer.Reset(l.idleTimeout)
				continue
			}
			l.pass(ctx)
			timer.Reset(l.interval)
		}
	}
}

// wait returns the delay before the next timer expiry after a mode switch:
// an activation samples right away.
func (l *Loop) wait(active bool) time.Duration {
	if active {
		return 0
	}
	return l.idleTimeout
}

func (l *Loop) setState(active, stopped bool, reason string) {
	changed := l.active.Swap(active) != active
	if !changed && !stopped {
		return
	}
	l.logger.Debug("sampler state changed", "active", active, "stopped", stopped, "reason", reason)
	l.bus.Publish(event.NewSamplerStateEvent(active, stopped, reason))
}

// pass runs one enumerate, build and publish cycle.
func (l *Loop) pass(ctx context.Context) {
	n := l.passes.Add(1)
	log := l.logger.WithPass(n)

	start := time.Now()
	snap, err := l.sample(ctx)
	elapsed := time.Since(start)
	l.lastElapsed.Store(int64(elapsed))

	if err != nil {
		l.failures.Add(1)
		if errors.GetSeverity(err) >= errors.SeverityError {
			log.Error("discarding sampling pass", "error", err, "retryable", errors.IsRetryable(err))
		} else {
			log.Warn("sampling pass failed", "error", err, "retryable", errors.IsRetryable(err))
		}
		l.bus.Publish(event.NewSampleFailedEvent(n, err))
		return
	}

	dropped := l.exchange.Publish(snap)
	if dropped {
		l.dropped.Add(1)
		log.Debug("overwrote unconsumed snapshot")
	}
	log.Debug("published snapshot", "processes", snap.Len(), "total_cpu", snap.TotalCPU, "elapsed", elapsed)
	l.bus.Publish(event.NewSnapshotReadyEvent(n, snap.Len(), snap.TotalCPU, elapsed, dropped))
}

func (l *Loop) sample(ctx context.Context) (*snapshot.Snapshot, error) {
	entries, err := l.enum.Enumerate(ctx)
	if err != nil {
		return nil, errors.NewSnapshotError("enumeration failed",
			fmt.Errorf("%w: %w", errors.ErrEnumerationFailed, err)).WithSeverity(errors.SeverityWarning)
	}
	return snapshot.Build(entries)
}
