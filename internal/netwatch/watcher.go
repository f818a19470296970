package netwatch

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultInterval is the sampling period used when none is given.
const DefaultInterval = 2 * time.Second

// Sink receives reachability transitions.
// Implemented by engine.Engine.
type Sink interface {
	SetOnline(online bool)
}

// Watcher samples a Probe and forwards changes to a Sink.
//
// The first sample is always forwarded so the sink starts from the observed
// state. After that only transitions are delivered. A probe error counts as
// offline.
type Watcher struct {
	probe    Probe
	sink     Sink
	interval time.Duration

	mu    sync.Mutex
	known bool
	last  bool
}

// NewWatcher creates a Watcher. A non-positive interval uses DefaultInterval.
func NewWatcher(p Probe, s Sink, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Watcher{probe: p, sink: s, interval: interval}
}

// Check takes one sample and forwards it if it differs from the last one.
// Returns the sampled state.
func (w *Watcher) Check(ctx context.Context) bool {
	online, err := w.probe.Online(ctx)
	if err != nil {
		slog.Warn("network probe failed", "error", err)
		online = false
	}

	w.mu.Lock()
	changed := !w.known || w.last != online
	w.known = true
	w.last = online
	w.mu.Unlock()

	if changed {
		slog.Debug("network state observed", "online", online)
		w.sink.SetOnline(online)
	}
	return online
}

// Run samples immediately and then every interval until ctx is done.
// Always returns ctx.Err().
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.Check(ctx)
		}
	}
}
