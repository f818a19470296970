package testutil

import (
	"fmt"
	"sync"
)

// SequenceGenerator generates record ids "<prefix>-0001", "<prefix>-0002", ...
//
// Unlike ir.FixedGenerator it never runs out, which suits scenarios that
// save an unknown number of records. The same scenario always produces the
// same ids, so golden traces stay byte-identical.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequenceGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceGenerator creates a generator. An empty prefix becomes "sos-test".
func NewSequenceGenerator(prefix string) *SequenceGenerator {
	if prefix == "" {
		prefix = "sos-test"
	}
	return &SequenceGenerator{prefix: prefix}
}

// Generate returns the next id.
// Implements ir.IDGenerator.
func (g *SequenceGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}

// Reset restarts the sequence at 1.
func (g *SequenceGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
