package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "sampler.snapshot_ready").
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type identifiers.
const (
	TypeSnapshotReady = "sampler.snapshot_ready"
	TypeSampleFailed  = "sampler.sample_failed"
	TypeSamplerState  = "sampler.state_changed"
	TypeTreeSynced    = "tree.synced"
	TypeConfigChanged = "config.changed"
)

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Sampler Events
// -----------------------------------------------------------------------------

// SnapshotReadyEvent signals that a fresh snapshot is waiting in the
// exchange. It carries only a summary; the snapshot itself is taken from
// the exchange by the consumer.
type SnapshotReadyEvent struct {
	baseEvent
	Pass      uint64        // Sampling pass that produced the snapshot
	Processes int           // Number of processes in the snapshot
	TotalCPU  float64       // Snapshot cpu denominator
	Elapsed   time.Duration // Time spent enumerating and building
	Dropped   bool          // Whether an unconsumed snapshot was overwritten
}

// NewSnapshotReadyEvent creates a SnapshotReadyEvent.
func NewSnapshotReadyEvent(pass uint64, processes int, totalCPU float64, elapsed time.Duration, dropped bool) SnapshotReadyEvent {
	return SnapshotReadyEvent{
		baseEvent: newBaseEvent(TypeSnapshotReady),
		Pass:      pass,
		Processes: processes,
		TotalCPU:  totalCPU,
		Elapsed:   elapsed,
		Dropped:   dropped,
	}
}

// SampleFailedEvent is emitted when a pass produced no snapshot.
type SampleFailedEvent struct {
	baseEvent
	Pass uint64
	Err  error
}

// NewSampleFailedEvent creates a SampleFailedEvent.
func NewSampleFailedEvent(pass uint64, err error) SampleFailedEvent {
	return SampleFailedEvent{
		baseEvent: newBaseEvent(TypeSampleFailed),
		Pass:      pass,
		Err:       err,
	}
}

// SamplerStateEvent is emitted when the sampler loop switches between
// active and idle, or exits.
type SamplerStateEvent struct {
	baseEvent
	Active  bool
	Stopped bool
	Reason  string // Control signal or condition that caused the change
}

// NewSamplerStateEvent creates a SamplerStateEvent.
func NewSamplerStateEvent(active, stopped bool, reason string) SamplerStateEvent {
	return SamplerStateEvent{
		baseEvent: newBaseEvent(TypeSamplerState),
		Active:    active,
		Stopped:   stopped,
		Reason:    reason,
	}
}

// -----------------------------------------------------------------------------
// Tree Events
// -----------------------------------------------------------------------------

// TreeSyncedEvent is emitted after a snapshot has been applied to the live
// tree. Counts describe the view mutations the sync produced.
type TreeSyncedEvent struct {
	baseEvent
	Inserted int
	Removed  int
	Changed  int
	Reset    bool // Whether the snapshot was adopted wholesale
	Err      error
}

// NewTreeSyncedEvent creates a TreeSyncedEvent.
func NewTreeSyncedEvent(inserted, removed, changed int, reset bool, err error) TreeSyncedEvent {
	return TreeSyncedEvent{
		baseEvent: newBaseEvent(TypeTreeSynced),
		Inserted:  inserted,
		Removed:   removed,
		Changed:   changed,
		Reset:     reset,
		Err:       err,
	}
}

// -----------------------------------------------------------------------------
// Config Events
// -----------------------------------------------------------------------------

// ConfigChangedEvent is emitted when the config file was re-read and
// validated.
type ConfigChangedEvent struct {
	baseEvent
	Path  string
	Theme string // tui.theme after the reload
}

// NewConfigChangedEvent creates a ConfigChangedEvent.
func NewConfigChangedEvent(path, theme string) ConfigChangedEvent {
	return ConfigChangedEvent{
		baseEvent: newBaseEvent(TypeConfigChanged),
		Path:      path,
		Theme:     theme,
	}
}
