package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequenceGenerator_Sequence(t *testing.T) {
	gen := NewSequenceGenerator("sos-demo")

	assert.Equal(t, "sos-demo-0001", gen.Generate())
	assert.Equal(t, "sos-demo-0002", gen.Generate())
	assert.Equal(t, "sos-demo-0003", gen.Generate())
}

func TestSequenceGenerator_DefaultPrefix(t *testing.T) {
	gen := NewSequenceGenerator("")

	assert.Equal(t, "sos-test-0001", gen.Generate())
}

func TestSequenceGenerator_Reset(t *testing.T) {
	gen := NewSequenceGenerator("sos")
	gen.Generate()
	gen.Generate()

	gen.Reset()

	assert.Equal(t, "sos-0001", gen.Generate())
}

func TestSequenceGenerator_UniqueUnderConcurrency(t *testing.T) {
	gen := NewSequenceGenerator("sos")

	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				id := gen.Generate()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, 500)
}
