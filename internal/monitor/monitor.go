// Package monitor is the control surface a front end owns: it runs the
// sampler in the background and applies its snapshots to a live tree on
// the caller's goroutine.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/Iron-Ham/proctree/internal/errors"
	"github.com/Iron-Ham/proctree/internal/event"
	"github.com/Iron-Ham/proctree/internal/logging"
	"github.com/Iron-Ham/proctree/internal/process"
	"github.com/Iron-Ham/proctree/internal/sampler"
	"github.com/Iron-Ham/proctree/internal/tree"
)

// Options configures a Monitor.
type Options struct {
	// Enumerator supplies the process table. Required.
	Enumerator process.Enumerator
	// View receives tree mutations. Defaults to tree.NopView.
	View tree.View
	// Bus receives sampler and tree events. A private bus is created when nil.
	Bus    *event.Bus
	Logger *logging.Logger

	Interval    time.Duration
	IdleTimeout time.Duration
	// Active starts the sampler in active mode.
	Active bool
	// CheckInvariants verifies the live tree after every refresh.
	CheckInvariants bool
}

// Monitor couples a background sampler with a consumer-owned live tree.
// Apart from Close, its methods must be called from the goroutine that
// owns the tree.
type Monitor struct {
	loop     *sampler.Loop
	exchange *sampler.Exchange
	tree     *tree.Tree
	bus      *event.Bus
	logger   *logging.Logger
	check    bool

	active bool
	cancel context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

// New starts the sampler goroutine and returns the monitor. Call Close to
// stop it.
func New(opts Options) (*Monitor, error) {
	if opts.Enumerator == nil {
		return nil, errors.NewValidationError("an enumerator is required").WithField("Enumerator")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	bus := opts.Bus
	if bus == nil {
		bus = event.NewBus(logger)
	}

	exchange := sampler.NewExchange()
	loop := sampler.New(opts.Enumerator, exchange,
		sampler.WithBus(bus),
		sampler.WithLogger(logger),
		sampler.WithInterval(opts.Interval),
		sampler.WithIdleTimeout(opts.IdleTimeout),
		sampler.WithActive(opts.Active),
	)

	ctx, cancel := context.WithCancel(context.Background())
	m := &Monitor{
		loop:     loop,
		exchange: exchange,
		tree:     tree.New(opts.View, logger),
		bus:      bus,
		logger:   logger.WithComponent("monitor"),
		check:    opts.CheckInvariants,
		active:   opts.Active,
		cancel:   cancel,
	}
	loop.Start(ctx)
	return m, nil
}

// SetActive switches sampling on or off. Asking for the current state is a
// no-op. The error wraps errors.ErrSamplerStopped when the sampler has
// exited; the session should be treated as over.
func (m *Monitor) SetActive(active bool) error {
	if active == m.active {
		return nil
	}
	sig := sampler.Deactivate
	if active {
		sig = sampler.Activate
	}
	if err := m.loop.Send(sig); err != nil {
		m.logger.Error("sampler unreachable", "signal", sig.String(), "error", err)
		return err
	}
	m.active = active
	return nil
}

// Active reports the last state requested with SetActive.
func (m *Monitor) Active() bool {
	return m.active
}

// CanRefresh reports whether sampling is active and a snapshot is waiting.
// It never blocks.
func (m *Monitor) CanRefresh() bool {
	return m.active && m.exchange.Pending()
}

// ApplyPendingRefresh syncs the waiting snapshot into the tree, if any. It
// does not require the monitor to be active, so a paused front end can
// still flush the snapshot that was in flight when it paused.
//
// A failed sync leaves the tree cleared; the next snapshot rebuilds it.
func (m *Monitor) ApplyPendingRefresh() error {
	incoming := m.exchange.TryTake()
	if incoming == nil {
		return nil
	}

	err := m.tree.Sync(incoming)
	if err == nil && m.check {
		err = m.tree.Check()
	}
	res := m.tree.LastSync()
	if err != nil {
		m.logger.Error("sync failed, clearing tree", "error", err)
		m.tree.Clear()
		m.bus.Publish(event.NewTreeSyncedEvent(res.Inserted, res.Removed, res.Changed, true, err))
		return errors.Wrap(err, "apply refresh")
	}

	m.bus.Publish(event.NewTreeSyncedEvent(res.Inserted, res.Removed, res.Changed, res.Reset, nil))
	return nil
}

// Tree returns the live tree.
func (m *Monitor) Tree() *tree.Tree {
	return m.tree
}

// Bus returns the event bus shared with the sampler.
func (m *Monitor) Bus() *event.Bus {
	return m.bus
}

// Stats returns the sampler counters.
func (m *Monitor) Stats() sampler.Stats {
	return m.loop.Stats()
}

// Done is closed once the sampler has exited.
func (m *Monitor) Done() <-chan struct{} {
	return m.loop.Done()
}

// Close stops the sampler and waits for it. It is safe to call more than
// once and from any goroutine.
func (m *Monitor) Close() error {
	m.closeOnce.Do(func() {
		m.closeErr = m.loop.Close()
		m.cancel()
	})
	return m.closeErr
}
