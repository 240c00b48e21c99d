// Package sampler runs the background sampling loop and the single-slot
// [Exchange] that hands its snapshots to the consumer.
//
// The [Loop] owns one goroutine. While active it enumerates processes,
// builds a snapshot and publishes it every interval, then announces it with
// an event.SnapshotReadyEvent. While idle it only waits for the next control
// signal. Control signals are queued in order; the loop reacts to a signal
// only between passes, so a Deactivate sent mid-pass still lets that pass
// publish.
//
//	ex := sampler.NewExchange()
//	loop := sampler.New(enum, ex, sampler.WithBus(bus), sampler.WithActive(true))
//	loop.Start(ctx)
//	defer loop.Close()
//
// Stop, or cancelling the context passed to Start, is the only way to end
// the loop.
package sampler
