package testutil

import (
	"fmt"
	"sync"

	"github.com/roach88/simkernel/internal/task"
)

// ResettableIDs is a task.IDGenerator that can be rewound, so the same
// scenario run twice in one test produces identical task ids.
//
// Thread-safety: all methods are safe for concurrent use.
type ResettableIDs struct {
	mu     sync.Mutex
	prefix string
	seq    int64
}

// NewResettableIDs creates a generator producing prefix-1, prefix-2, ...
// An empty prefix defaults to "t".
func NewResettableIDs(prefix string) *ResettableIDs {
	if prefix == "" {
		prefix = "t"
	}
	return &ResettableIDs{prefix: prefix}
}

// Generate implements task.IDGenerator.
func (g *ResettableIDs) Generate() task.ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return task.ID(fmt.Sprintf("%s-%d", g.prefix, g.seq))
}

// Issued returns how many ids have been generated since the last reset.
func (g *ResettableIDs) Issued() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seq
}

// Reset rewinds the generator. The next id is prefix-1 again.
func (g *ResettableIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq = 0
}
