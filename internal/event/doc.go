// Package event provides a synchronous pub-sub bus that lets the sampler,
// the tree synchronizer and the front ends talk without importing each
// other.
//
// The sampler never touches the live tree. It parks each snapshot in the
// exchange and publishes a [SnapshotReadyEvent]; whoever owns the tree
// reacts by taking the snapshot on its own goroutine.
//
// # Events
//
//   - [SnapshotReadyEvent]: a snapshot is waiting ("sampler.snapshot_ready")
//   - [SampleFailedEvent]: a pass produced no snapshot ("sampler.sample_failed")
//   - [SamplerStateEvent]: the loop went active, idle or stopped ("sampler.state_changed")
//   - [TreeSyncedEvent]: a snapshot was applied to the live tree ("tree.synced")
//   - [ConfigChangedEvent]: the config file was re-read ("config.changed")
//
// # Usage
//
//	bus := event.NewBus()
//	bus.Subscribe(event.TypeSnapshotReady, func(e event.Event) {
//	    ready := e.(event.SnapshotReadyEvent)
//	    notify(ready.Pass)
//	})
//
// Handlers run synchronously on the publisher's goroutine, so they must be
// short. A panicking handler is recovered and logged; delivery continues
// with the remaining handlers.
package event
