package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/lifeline/lifeline/internal/ir"
	"github.com/lifeline/lifeline/internal/store"
)

// Uploader delivers one report to the remote SOS endpoint.
// Any non-nil error counts as a failed upload for that record.
// Implemented by backend.Client.
type Uploader interface {
	Upload(ctx context.Context, rep ir.Report) error
}

// Engine owns the offline SOS queue: it saves records, drains them to the
// uploader and tells subscribers when the counts change.
//
// Thread-safety model:
//   - Save, Sync, SetOnline, Subscribe and the accessors: safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//
// INVARIANTS:
//   - At most one sync pass executes at a time (busy flag)
//   - A pass uploads the pending snapshot taken at its start, sequentially
//   - The busy flag is always released when a pass ends
type Engine struct {
	store    *store.Store
	uploader Uploader
	ids      ir.IDGenerator
	clock    *Clock
	wall     WallClock
	metrics  *Metrics
	queue    *eventQueue
	notifier *notifier

	online atomic.Bool
	busy   atomic.Bool
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithIDGenerator sets the record id generator.
// Default: ir.UUIDv7Generator.
func WithIDGenerator(g ir.IDGenerator) EngineOption {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithWallClock sets the clock used to stamp drafts that carry no timestamp.
func WithWallClock(c WallClock) EngineOption {
	return func(e *Engine) {
		e.wall = c
	}
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithOnline sets the initial reachability state.
// Default: online.
func WithOnline(online bool) EngineOption {
	return func(e *Engine) {
		e.online.Store(online)
	}
}

// New creates an Engine over an open store.
func New(s *store.Store, up Uploader, opts ...EngineOption) *Engine {
	e := &Engine{
		store:    s,
		uploader: up,
		ids:      ir.UUIDv7Generator{},
		clock:    NewClock(),
		wall:     systemClock{},
		queue:    newEventQueue(),
		notifier: newNotifier(),
	}
	e.online.Store(true)

	for _, opt := range opts {
		opt(e)
	}

	e.metrics.setOnline(e.online.Load())
	return e
}

// Save validates and persists a draft as a new pending record. The
// emergency type and message are stored exactly as given.
//
// The record is committed before Save returns. Subscribers are then
// notified and, if the engine believes it is online, a sync pass is
// requested from the Run loop.
func (e *Engine) Save(ctx context.Context, d ir.Draft) (ir.Record, error) {
	if d.Timestamp == 0 {
		d.Timestamp = e.wall.Now().UnixMilli()
	}
	if err := ir.ValidateDraft(d); err != nil {
		return ir.Record{}, err
	}

	rec := ir.NewRecord(e.ids.Generate(), d)
	if err := e.store.InsertRecord(ctx, rec); err != nil {
		return ir.Record{}, NewSaveError(rec.ID, err)
	}

	slog.Info("sos record saved",
		"id", rec.ID,
		"type", rec.EmergencyType,
		"timestamp", rec.Timestamp,
	)

	e.notifier.notify()
	if e.Online() {
		e.RequestSync(false, "save")
	}

	return rec, nil
}

// MarkSynced flags a record as accepted by the endpoint.
// Unknown ids are ignored. Subscribers are notified whenever the record
// exists.
func (e *Engine) MarkSynced(ctx context.Context, id string) error {
	found, err := e.store.MarkSynced(ctx, id)
	if err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	if !found {
		slog.Debug("mark synced: unknown record", "id", id)
		return nil
	}
	e.notifier.notify()
	return nil
}

// SetOnline records the current reachability state.
//
// Only transitions are acted on: a change is forwarded to the Run loop, and
// the loop runs one sync pass when the engine comes online. Going offline
// does not cancel a pass in flight.
func (e *Engine) SetOnline(online bool) {
	if e.online.Swap(online) == online {
		return
	}
	e.metrics.setOnline(online)
	if !e.queue.Enqueue(Event{Type: EventTypeNetwork, Online: online, Reason: "network"}) {
		slog.Debug("network transition dropped: engine stopped", "online", online)
	}
}

// Online reports the cached reachability state.
func (e *Engine) Online() bool {
	return e.online.Load()
}

// RequestSync asks the Run loop for a sync pass.
// Returns false if the engine has been stopped.
func (e *Engine) RequestSync(force bool, reason string) bool {
	return e.queue.Enqueue(Event{Type: EventTypeSyncRequest, Force: force, Reason: reason})
}

// Subscribe registers fn to receive queue counts after every state change.
// Callbacks run on the notification goroutine started by Run.
func (e *Engine) Subscribe(fn StatsFunc) *Subscription {
	return e.notifier.add(fn)
}

// Stats returns the current queue counts.
func (e *Engine) Stats(ctx context.Context) (ir.Stats, error) {
	stats, err := e.store.Stats(ctx)
	if err != nil {
		return ir.Stats{}, err
	}
	e.metrics.setStats(stats)
	return stats, nil
}

// ListAll returns every record, newest first.
func (e *Engine) ListAll(ctx context.Context) ([]ir.Record, error) {
	return e.store.ListAll(ctx)
}

// ListPending returns records not yet accepted by the endpoint.
func (e *Engine) ListPending(ctx context.Context) ([]ir.Record, error) {
	return e.store.ListPending(ctx)
}

// Run starts the event loop and the notification goroutine.
// Blocks until context is cancelled or Stop() is called.
//
// CRITICAL: Must be called from exactly ONE goroutine.
//
// A failed pass is logged and the loop continues; the records stay pending
// for the next pass.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine starting", "online", e.Online())

	notifyDone := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		e.notifier.loop(ctx, notifyDone, e.Stats)
	}()
	defer func() {
		close(notifyDone)
		wg.Wait()
	}()

	// Broadcast the initial counts to anyone who subscribed before Run
	e.notifier.notify()

	for {
		event, ok := e.queue.TryDequeue()
		if ok {
			e.processEvent(ctx, event)
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("engine stopping: context cancelled")
			e.queue.Close()
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel closes when the queue is closed
			if e.queue.Len() == 0 && e.queue.Closed() {
				slog.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop gracefully shuts down the engine.
// Events already queued are still processed before Run returns.
func (e *Engine) Stop() {
	e.queue.Close()
}

// processEvent routes an event to the appropriate handler.
// CRITICAL: Called only from Run() goroutine.
func (e *Engine) processEvent(ctx context.Context, event Event) {
	switch event.Type {
	case EventTypeNetwork:
		slog.Info("network state changed", "online", event.Online)
		if event.Online {
			e.runPass(ctx, false, "online")
		}

	case EventTypeSyncRequest:
		e.runPass(ctx, event.Force, event.Reason)

	default:
		slog.Error("event processing failed",
			"error", fmt.Errorf("unknown event type: %d", event.Type),
			"event_type", event.Type,
		)
	}
}

func (e *Engine) runPass(ctx context.Context, force bool, reason string) {
	result, err := e.Sync(ctx, force)
	if err != nil {
		slog.Error("background sync failed",
			"reason", reason,
			"error", err,
		)
		return
	}
	slog.Debug("background sync finished",
		"reason", reason,
		"synced", result.Synced,
		"failed", result.Failed,
	)
}

// Clock returns the pass counter.
func (e *Engine) Clock() *Clock {
	return e.clock
}

// QueueLen returns the current number of unprocessed events.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

// Busy reports whether a sync pass is in flight.
func (e *Engine) Busy() bool {
	return e.busy.Load()
}
