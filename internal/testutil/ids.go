package testutil

import (
	"fmt"
	"sync"
)

// SequenceIDs returns predetermined run IDs in order.
//
// Once the list is exhausted it falls back to "<prefix>-<n>" so a test that
// runs more builds than it declared still gets distinct, stable IDs.
//
// Thread-safety: SequenceIDs is safe for concurrent use via internal mutex.
type SequenceIDs struct {
	mu     sync.Mutex
	prefix string
	ids    []string
	idx    int
}

// NewSequenceIDs creates a generator that returns ids, then prefix-n.
func NewSequenceIDs(prefix string, ids ...string) *SequenceIDs {
	if prefix == "" {
		prefix = "test-run"
	}
	return &SequenceIDs{prefix: prefix, ids: ids}
}

// Generate returns the next ID.
func (g *SequenceIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.idx++
	if g.idx <= len(g.ids) {
		return g.ids[g.idx-1]
	}
	return fmt.Sprintf("%s-%d", g.prefix, g.idx)
}

// Issued reports how many IDs have been generated.
func (g *SequenceIDs) Issued() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.idx
}
