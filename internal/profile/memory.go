package profile

import (
	"context"

	"github.com/roach88/simkernel/internal/resource"
	"github.com/roach88/simkernel/internal/simtime"
)

// InMemoryManager keeps every segment in memory.
type InMemoryManager struct {
	tracker  tracker
	segments map[string][]Segment
}

var _ Manager = (*InMemoryManager)(nil)

// NewInMemoryManager creates an empty manager.
func NewInMemoryManager() *InMemoryManager {
	return &InMemoryManager{
		tracker:  newTracker(),
		segments: make(map[string][]Segment),
	}
}

func (m *InMemoryManager) add(s Segment) {
	m.segments[s.Resource] = append(m.segments[s.Resource], s)
}

// AcceptUpdates implements Manager.
func (m *InMemoryManager) AcceptUpdates(_ context.Context, elapsed simtime.Duration, updates map[string]resource.Dynamics) error {
	return m.tracker.accept(elapsed, updates, m.add)
}

// Finish implements Manager.
func (m *InMemoryManager) Finish(_ context.Context, until simtime.Duration) error {
	return m.tracker.finish(until, m.add)
}

// Profiles returns the profile of every resource seen so far, in order of
// first appearance. Segments still open are reported up to the latest
// update.
func (m *InMemoryManager) Profiles() []Profile {
	out := make([]Profile, 0, len(m.tracker.names))
	for _, name := range m.tracker.names {
		segs := append([]Segment(nil), m.segments[name]...)
		if cur, ok := m.tracker.open[name]; ok {
			segs = append(segs, closeSegment(name, cur, max(m.tracker.last, cur.start)))
		}
		p := Profile{Resource: name, Segments: segs}
		if len(segs) > 0 {
			p.Kind = segs[0].Kind
		}
		out = append(out, p)
	}
	return out
}

// Profile returns the profile of one resource.
func (m *InMemoryManager) Profile(name string) (Profile, bool) {
	for _, p := range m.Profiles() {
		if p.Resource == name {
			return p, true
		}
	}
	return Profile{}, false
}
