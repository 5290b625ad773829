package profile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/simkernel/internal/resource"
	"github.com/roach88/simkernel/internal/simtime"
)

// StreamingManager buffers completed segments and hands them to a Sink in
// batches, so a long run never holds its whole profile in memory.
type StreamingManager struct {
	tracker   tracker
	sink      Sink
	threshold int
	logger    *slog.Logger

	buffer  []Segment
	flushed int
	batches int
}

var _ Manager = (*StreamingManager)(nil)

// NewStreamingManager creates a manager writing to sink.
func NewStreamingManager(sink Sink, opts ...ManagerOption) *StreamingManager {
	o := buildOptions(opts)
	return &StreamingManager{
		tracker:   newTracker(),
		sink:      sink,
		threshold: o.threshold,
		logger:    o.logger,
	}
}

func (m *StreamingManager) add(s Segment) {
	m.buffer = append(m.buffer, s)
}

// AcceptUpdates implements Manager. It flushes once the buffer reaches the
// threshold.
func (m *StreamingManager) AcceptUpdates(ctx context.Context, elapsed simtime.Duration, updates map[string]resource.Dynamics) error {
	if err := m.tracker.accept(elapsed, updates, m.add); err != nil {
		return err
	}
	if len(m.buffer) >= m.threshold {
		return m.Flush(ctx)
	}
	return nil
}

// Finish implements Manager. It closes every open segment and flushes
// whatever remains.
func (m *StreamingManager) Finish(ctx context.Context, until simtime.Duration) error {
	if err := m.tracker.finish(until, m.add); err != nil {
		return err
	}
	if err := m.Flush(ctx); err != nil {
		return err
	}
	m.logger.Debug("profile stream finished",
		"segments", m.flushed,
		"batches", m.batches,
		"until", until,
	)
	return nil
}

// Flush writes buffered segments to the sink. On failure the buffer is
// kept so a later flush can retry.
func (m *StreamingManager) Flush(ctx context.Context) error {
	if len(m.buffer) == 0 {
		return nil
	}
	if err := m.sink.WriteSegments(ctx, m.buffer); err != nil {
		return fmt.Errorf("flush %d segments: %w", len(m.buffer), err)
	}
	m.flushed += len(m.buffer)
	m.batches++
	m.buffer = nil
	return nil
}

// Buffered returns the number of segments waiting to be flushed.
func (m *StreamingManager) Buffered() int { return len(m.buffer) }

// Flushed returns the number of segments written to the sink.
func (m *StreamingManager) Flushed() int { return m.flushed }

// MemorySink is a Sink that keeps every batch. It suits tests and small
// runs.
type MemorySink struct {
	Batches [][]Segment
}

// WriteSegments implements Sink.
func (s *MemorySink) WriteSegments(_ context.Context, segments []Segment) error {
	s.Batches = append(s.Batches, append([]Segment(nil), segments...))
	return nil
}

// Segments returns every segment received, in arrival order.
func (s *MemorySink) Segments() []Segment {
	var out []Segment
	for _, b := range s.Batches {
		out = append(out, b...)
	}
	return out
}
