package testutil

import (
	"fmt"
	"sync"
)

// SequenceIDGenerator returns "0001", "0002", ... so that record IDs in
// golden traces are stable across runs.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequenceIDGenerator struct {
	mu sync.Mutex
	n  int
}

// NewSequenceIDGenerator creates a generator whose first ID is "0001".
func NewSequenceIDGenerator() *SequenceIDGenerator {
	return &SequenceIDGenerator{}
}

// Generate returns the next ID in sequence.
func (g *SequenceIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%04d", g.n)
}
