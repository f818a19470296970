// Package engine implements the offline SOS sync engine.
//
// The engine sits between the local durable queue (internal/store) and the
// remote SOS endpoint. It saves records, drains pending records to an
// Uploader and broadcasts queue counts to subscribers.
//
// ARCHITECTURE:
//
// Sync passes:
// Sync(ctx, force) runs at most one pass at a time. The busy flag is an
// atomic compare-and-swap; a second caller gets a zero result instead of
// waiting. A pass reads the pending list once and uploads it sequentially,
// one attempt per record.
//
// Event loop:
// Background passes are requested through a FIFO event queue consumed by
// Run. Save enqueues a sync request when the engine believes it is online;
// SetOnline enqueues network transitions, and a transition to online runs a
// pass. The loop executes passes one after another.
//
// Notifications:
// Save and MarkSynced raise a coalescing signal. A goroutine started by Run
// recomputes the counts and calls every subscriber, recovering panics per
// subscriber.
//
// The reachability flag is advisory. Upload failures while "online" are
// ordinary and leave the record pending for a later pass.
package engine
