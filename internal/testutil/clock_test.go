package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualClock_Frozen(t *testing.T) {
	start := time.UnixMilli(1700000000000)
	clock := NewManualClock(start)

	assert.Equal(t, start, clock.Now())
	assert.Equal(t, start, clock.Now(), "clock must not move on its own")
}

func TestManualClock_Advance(t *testing.T) {
	clock := NewManualClockMillis(1000)

	clock.Advance(500 * time.Millisecond)
	assert.Equal(t, int64(1500), clock.Now().UnixMilli())

	clock.Advance(2 * time.Second)
	assert.Equal(t, int64(3500), clock.Now().UnixMilli())
}

func TestManualClock_Set(t *testing.T) {
	clock := NewManualClockMillis(5000)

	clock.Set(time.UnixMilli(1000))
	assert.Equal(t, int64(1000), clock.Now().UnixMilli())
}

func TestManualClock_ThreadSafe(t *testing.T) {
	clock := NewManualClockMillis(0)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				clock.Advance(time.Millisecond)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1000), clock.Now().UnixMilli())
}
