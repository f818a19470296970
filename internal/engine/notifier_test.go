package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifeline/lifeline/internal/ir"
)

// statsRecorder collects broadcasts for assertions.
type statsRecorder struct {
	mu   sync.Mutex
	seen []ir.Stats
}

func (r *statsRecorder) record(s ir.Stats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, s)
}

func (r *statsRecorder) last() (ir.Stats, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.seen) == 0 {
		return ir.Stats{}, false
	}
	return r.seen[len(r.seen)-1], true
}

func (r *statsRecorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

func (r *statsRecorder) waitFor(t *testing.T, want ir.Stats) {
	t.Helper()
	require.Eventually(t, func() bool {
		got, ok := r.last()
		return ok && got == want
	}, 2*time.Second, 5*time.Millisecond, "subscriber never saw %+v", want)
}

func TestNotifier_SubscribeReceivesStatsAfterSave(t *testing.T) {
	e, _ := newTestEngine(t, newFakeUploader(), WithOnline(false))
	rec := &statsRecorder{}
	e.Subscribe(rec.record)
	startEngine(t, e)

	_, err := e.Save(context.Background(), testDraft("one"))
	require.NoError(t, err)
	rec.waitFor(t, ir.Stats{Pending: 1})

	_, err = e.Save(context.Background(), testDraft("two"))
	require.NoError(t, err)
	rec.waitFor(t, ir.Stats{Pending: 2})
}

func TestNotifier_BroadcastAfterMarkSynced(t *testing.T) {
	e, _ := newTestEngine(t, newFakeUploader(), WithOnline(false))
	rec := &statsRecorder{}
	e.Subscribe(rec.record)
	startEngine(t, e)

	saved, err := e.Save(context.Background(), testDraft("one"))
	require.NoError(t, err)
	require.NoError(t, e.MarkSynced(context.Background(), saved.ID))

	rec.waitFor(t, ir.Stats{Synced: 1})
}

func TestNotifier_PanickingSubscriberIsIsolated(t *testing.T) {
	e, _ := newTestEngine(t, newFakeUploader(), WithOnline(false))

	e.Subscribe(func(ir.Stats) { panic("bad subscriber") })
	rec := &statsRecorder{}
	e.Subscribe(rec.record)
	e.Subscribe(func(ir.Stats) { panic("another bad subscriber") })
	startEngine(t, e)

	_, err := e.Save(context.Background(), testDraft("still delivered"))
	require.NoError(t, err, "subscriber failure must not fail the save")

	rec.waitFor(t, ir.Stats{Pending: 1})
}

func TestNotifier_Unsubscribe(t *testing.T) {
	e, _ := newTestEngine(t, newFakeUploader(), WithOnline(false))
	rec := &statsRecorder{}
	sub := e.Subscribe(rec.record)
	require.Equal(t, 1, e.notifier.count())

	sub.Unsubscribe()
	assert.NotPanics(t, sub.Unsubscribe, "unsubscribe is idempotent")
	assert.Equal(t, 0, e.notifier.count())

	var nilSub *Subscription
	assert.NotPanics(t, nilSub.Unsubscribe)

	startEngine(t, e)
	_, err := e.Save(context.Background(), testDraft("unheard"))
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, rec.len())
}

func TestNotifier_SubscribeDuringRun(t *testing.T) {
	e, _ := newTestEngine(t, newFakeUploader(), WithOnline(false))
	startEngine(t, e)

	rec := &statsRecorder{}
	e.Subscribe(rec.record)

	_, err := e.Save(context.Background(), testDraft("late subscriber"))
	require.NoError(t, err)
	rec.waitFor(t, ir.Stats{Pending: 1})
}

func TestNotifier_SignalsCoalesce(t *testing.T) {
	n := newNotifier()
	for i := 0; i < 10; i++ {
		n.notify()
	}
	assert.Len(t, n.signal, 1)
}

func TestNotifier_BroadcastOrder(t *testing.T) {
	n := newNotifier()
	var mu sync.Mutex
	var order []int
	for i := 1; i <= 3; i++ {
		i := i
		n.add(func(ir.Stats) {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, i)
		})
	}

	n.broadcast(ir.Stats{})
	assert.Equal(t, []int{1, 2, 3}, order)
}
