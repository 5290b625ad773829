package task

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// ID identifies a task for the lifetime of a run.
type ID string

// IDGenerator produces task ids.
type IDGenerator interface {
	Generate() ID
}

// SequentialGenerator numbers tasks in creation order. Runs that create
// tasks in the same order get the same ids, which keeps results
// reproducible.
//
// Thread-safety: safe for concurrent use.
type SequentialGenerator struct {
	prefix string
	seq    atomic.Int64
}

// NewSequentialGenerator returns a generator producing prefix-1, prefix-2, ...
func NewSequentialGenerator(prefix string) *SequentialGenerator {
	if prefix == "" {
		prefix = "task"
	}
	return &SequentialGenerator{prefix: prefix}
}

// Generate implements IDGenerator.
func (g *SequentialGenerator) Generate() ID {
	return ID(fmt.Sprintf("%s-%d", g.prefix, g.seq.Add(1)))
}

// UUIDv7Generator generates time-sortable UUIDv7 task ids. Ids differ
// between runs, so use it only where reproducible ids are not needed.
type UUIDv7Generator struct{}

// Generate implements IDGenerator. Panics if the UUID source fails.
func (UUIDv7Generator) Generate() ID {
	return ID(uuid.Must(uuid.NewV7()).String())
}

// FixedGenerator returns predetermined ids in order.
//
// Generate panics once every id has been used.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []ID
	idx int
}

// NewFixedGenerator creates a generator over ids.
func NewFixedGenerator(ids ...ID) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate implements IDGenerator.
func (g *FixedGenerator) Generate() ID {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("task: FixedGenerator exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
