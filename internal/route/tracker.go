package route

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"
)

// Default replay cadence.
const (
	DefaultStep          = 500 * time.Millisecond
	DefaultAnimate       = 450 * time.Millisecond
	DefaultFrameInterval = 50 * time.Millisecond
)

// ErrEmptyPath is returned by Start when there is nothing to replay.
var ErrEmptyPath = errors.New("route: empty path")

// Config controls replay timing.
type Config struct {
	// Step is the time spent on each anchor.
	Step time.Duration
	// Animate is how long the marker takes to glide to a new anchor.
	// It is capped at Step.
	Animate time.Duration
	// FrameInterval is the spacing of interpolated frames.
	FrameInterval time.Duration
	// Speed returns the simulated speed for a step in km/h.
	// nil draws uniformly from [40, 65).
	Speed func() float64
}

func (c Config) withDefaults() Config {
	if c.Step <= 0 {
		c.Step = DefaultStep
	}
	if c.Animate <= 0 {
		c.Animate = DefaultAnimate
	}
	if c.Animate > c.Step {
		c.Animate = c.Step
	}
	if c.FrameInterval <= 0 {
		c.FrameInterval = DefaultFrameInterval
	}
	if c.Speed == nil {
		c.Speed = simulatedSpeed
	}
	return c
}

func simulatedSpeed() float64 {
	return 40 + rand.Float64()*25
}

// Frame is one observation of the replay.
type Frame struct {
	Index      int     `json:"index"`
	Total      int     `json:"total"`
	Position   Point   `json:"position"`
	Heading    float64 `json:"heading"`
	Progress   float64 `json:"progress"`
	DistanceKm float64 `json:"distanceKm"`
	ETAMinutes int     `json:"etaMinutes"`
	SpeedKmh   float64 `json:"speedKmh"`
}

// EmitFunc receives frames on the tracker goroutine. It must not call Start
// or Stop on the same tracker.
type EmitFunc func(Frame)

// Tracker replays a path one anchor per Step. At most one replay runs at a
// time; Start replaces any running replay and begins again at index 0.
type Tracker struct {
	cfg Config

	// startMu serializes Start and Stop so a replay is never orphaned.
	startMu sync.Mutex

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	last    Frame
	hasLast bool
}

// NewTracker returns an idle tracker.
func NewTracker(cfg Config) *Tracker {
	done := make(chan struct{})
	close(done)
	return &Tracker{cfg: cfg.withDefaults(), done: done}
}

// Start begins replaying path toward its final point. A running replay is
// stopped first. The replay ends on its own after the last anchor, when ctx
// is cancelled, or when Stop is called. Concurrent calls are serialized;
// the last one to run wins.
func (t *Tracker) Start(ctx context.Context, path []Point, emit EmitFunc) error {
	if len(path) == 0 {
		return ErrEmptyPath
	}

	t.startMu.Lock()
	defer t.startMu.Unlock()
	t.stop()

	anchors := make([]Point, len(path))
	copy(anchors, path)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	t.mu.Lock()
	t.cancel = cancel
	t.done = done
	t.mu.Unlock()

	slog.Debug("route replay started", "anchors", len(anchors))
	go t.run(runCtx, cancel, anchors, emit, done)
	return nil
}

// Stop halts the running replay and waits for it to exit. The last emitted
// frame is kept. Stop on an idle tracker is a no-op.
func (t *Tracker) Stop() {
	t.startMu.Lock()
	defer t.startMu.Unlock()
	t.stop()
}

func (t *Tracker) stop() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	<-done
}

// Done returns a channel closed when the current replay ends.
func (t *Tracker) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

// Tracking reports whether a replay is running.
func (t *Tracker) Tracking() bool {
	select {
	case <-t.Done():
		return false
	default:
		return true
	}
}

// Last returns the most recent frame, if any.
func (t *Tracker) Last() (Frame, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last, t.hasLast
}

func (t *Tracker) record(f Frame, emit EmitFunc) {
	t.mu.Lock()
	t.last = f
	t.hasLast = true
	t.mu.Unlock()
	if emit != nil {
		emit(f)
	}
}

func (t *Tracker) run(ctx context.Context, cancel context.CancelFunc, path []Point, emit EmitFunc, done chan struct{}) {
	defer close(done)
	defer cancel()

	total := len(path)
	dest := path[total-1]
	heading := 0.0
	prev := path[0]

	for i, target := range path {
		stepStart := time.Now()
		heading = Heading(prev, target, heading)
		speed := t.cfg.Speed()
		dist := Haversine(target, dest)

		base := Frame{
			Index:      i,
			Total:      total,
			Heading:    heading,
			Progress:   float64(i+1) / float64(total),
			DistanceKm: dist,
			ETAMinutes: ETAMinutes(dist, speed),
			SpeedKmh:   speed,
		}

		if !t.animate(ctx, prev, target, base, emit) {
			slog.Debug("route replay stopped", "index", i, "total", total)
			return
		}
		prev = target

		if !sleep(ctx, t.cfg.Step-time.Since(stepStart)) {
			slog.Debug("route replay stopped", "index", i, "total", total)
			return
		}
	}
	slog.Debug("route replay finished", "anchors", total)
}

// animate emits interpolated frames from a to b over the animation window
// and always ends with a frame exactly at b.
func (t *Tracker) animate(ctx context.Context, a, b Point, base Frame, emit EmitFunc) bool {
	if a == b {
		f := base
		f.Position = b
		t.record(f, emit)
		return true
	}

	ticker := time.NewTicker(t.cfg.FrameInterval)
	defer ticker.Stop()

	start := time.Now()
	for {
		progress := float64(time.Since(start)) / float64(t.cfg.Animate)
		f := base
		f.Position = Interpolate(a, b, progress)
		t.record(f, emit)
		if progress >= 1 {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
