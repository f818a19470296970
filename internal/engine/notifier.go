package engine

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/lifeline/lifeline/internal/ir"
)

// StatsFunc receives the queue counts after a state change.
type StatsFunc func(ir.Stats)

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	id   uint64
	n    *notifier
	once sync.Once
}

// Unsubscribe removes the callback. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.n.remove(s.id)
	})
}

// notifier fans queue counts out to subscribers.
//
// State changes only raise a signal; the loop goroutine recomputes stats and
// broadcasts. Signals raised while a broadcast is running coalesce into one
// follow-up broadcast.
type notifier struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]StatsFunc
	signal chan struct{} // buffered, size 1
}

func newNotifier() *notifier {
	return &notifier{
		subs:   make(map[uint64]StatsFunc),
		signal: make(chan struct{}, 1),
	}
}

func (n *notifier) add(fn StatsFunc) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.nextID++
	n.subs[n.nextID] = fn
	return &Subscription{id: n.nextID, n: n}
}

func (n *notifier) remove(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.subs, id)
}

// count returns the number of live subscriptions.
func (n *notifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}

// notify requests a broadcast. Never blocks.
func (n *notifier) notify() {
	select {
	case n.signal <- struct{}{}:
	default:
	}
}

// snapshot returns the subscribers in subscription order.
func (n *notifier) snapshot() []StatsFunc {
	n.mu.Lock()
	defer n.mu.Unlock()

	ids := make([]uint64, 0, len(n.subs))
	for id := range n.subs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	fns := make([]StatsFunc, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, n.subs[id])
	}
	return fns
}

// broadcast delivers stats to every subscriber. A panicking subscriber is
// logged and skipped.
func (n *notifier) broadcast(stats ir.Stats) {
	for i, fn := range n.snapshot() {
		deliver(i, fn, stats)
	}
}

func deliver(index int, fn StatsFunc, stats ir.Stats) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("subscriber panicked",
				"subscriber", index,
				"panic", r,
			)
		}
	}()
	fn(stats)
}

// loop waits for signals and broadcasts fresh stats until ctx is done or
// done is closed.
func (n *notifier) loop(ctx context.Context, done <-chan struct{}, load func(context.Context) (ir.Stats, error)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-n.signal:
			stats, err := load(ctx)
			if err != nil {
				slog.Error("stats recomputation failed", "error", err)
				continue
			}
			n.broadcast(stats)
		}
	}
}
