package engine

import (
	"sync"
)

// EventType distinguishes between event kinds.
type EventType int

const (
	// EventTypeNetwork records a reachability transition.
	EventTypeNetwork EventType = iota + 1
	// EventTypeSyncRequest asks the Run loop to execute one sync pass.
	EventTypeSyncRequest
)

// String returns the event type name used in logs.
func (t EventType) String() string {
	switch t {
	case EventTypeNetwork:
		return "network"
	case EventTypeSyncRequest:
		return "sync_request"
	default:
		return "unknown"
	}
}

// Event is a unit of work for the Run loop.
type Event struct {
	Type EventType

	// Online is the new reachability state (EventTypeNetwork).
	Online bool

	// Force bypasses the reachability gate (EventTypeSyncRequest).
	Force bool

	// Reason names what raised the event, for logging ("save", "online", ...).
	Reason string
}

// eventQueue is a thread-safe FIFO queue for events.
//
// The queue is unbounded so Save and SetOnline never block on a slow pass.
// It uses a channel for signaling to enable context-aware waiting in the Run
// loop.
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{} // Signals event availability (buffered, size 1)
}

// newEventQueue creates an empty event queue.
func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]Event, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.events = append(q.events, e)

	// Non-blocking: buffer of 1 coalesces multiple signals
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue attempts to dequeue without blocking.
// Returns (Event{}, false) if queue is empty.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}

	e := q.events[0]
	q.events[0] = Event{}

	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}

	return e, true
}

// Wait returns a channel that signals when events may be available.
// Use with select for context-aware waiting:
//
//	select {
//	case <-ctx.Done():
//	    return ctx.Err()
//	case <-q.Wait():
//	    // Try TryDequeue
//	}
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Closed reports whether Close has been called.
func (q *eventQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close signals that no more events will be enqueued.
// Wakes any blocked waiters by closing the signal channel.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
