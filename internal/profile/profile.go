// Package profile turns resource samples into profiles: runs of segments,
// each holding one resource's dynamics for a stretch of simulated time.
//
// A manager receives the dynamics of every resource after each committed
// instant. Consecutive samples that describe the same evolution extend the
// open segment; anything else closes it and opens a new one. Elapsed time
// must never decrease between updates.
package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/roach88/simkernel/internal/resource"
	"github.com/roach88/simkernel/internal/simtime"
)

// Segment is the dynamics of one resource over [Start, Start+Length).
// Dynamics are expressed relative to Start.
type Segment struct {
	Resource string
	Kind     string
	Start    simtime.Duration
	Length   simtime.Duration
	Dynamics resource.Dynamics
}

// End returns the instant the segment stops applying.
func (s Segment) End() simtime.Duration { return s.Start + s.Length }

// Profile is the ordered segments of one resource.
type Profile struct {
	Resource string
	Kind     string
	Segments []Segment
}

// Manager ingests resource samples.
type Manager interface {
	// AcceptUpdates records the dynamics of the named resources as of
	// elapsed. Resources absent from updates keep their open segment.
	AcceptUpdates(ctx context.Context, elapsed simtime.Duration, updates map[string]resource.Dynamics) error

	// Finish closes every open segment at until. No updates are accepted
	// afterwards.
	Finish(ctx context.Context, until simtime.Duration) error
}

// Sink receives completed segments from a StreamingManager.
type Sink interface {
	WriteSegments(ctx context.Context, segments []Segment) error
}

// ErrFinished is returned for updates after Finish.
var ErrFinished = errors.New("profile: manager already finished")

// NonMonotonicError is returned when an update goes back in time.
type NonMonotonicError struct {
	Last simtime.Duration
	Got  simtime.Duration
}

func (e *NonMonotonicError) Error() string {
	return fmt.Sprintf("profile: update at %s precedes previous update at %s", e.Got, e.Last)
}

// IsNonMonotonicError reports whether err is a NonMonotonicError.
func IsNonMonotonicError(err error) bool {
	var nm *NonMonotonicError
	return errors.As(err, &nm)
}

// ManagerOption configures a manager.
type ManagerOption func(*options)

type options struct {
	threshold int
	logger    *slog.Logger
}

// DefaultFlushThreshold is the number of buffered segments at which a
// StreamingManager flushes.
const DefaultFlushThreshold = 256

// WithFlushThreshold sets how many completed segments a StreamingManager
// buffers before flushing. Values below one flush on every segment.
func WithFlushThreshold(n int) ManagerOption {
	return func(o *options) {
		o.threshold = max(n, 1)
	}
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(o *options) {
		o.logger = logger
	}
}

func buildOptions(opts []ManagerOption) options {
	o := options{threshold: DefaultFlushThreshold, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// openSegment is a segment that has not ended yet.
type openSegment struct {
	start    simtime.Duration
	dynamics resource.Dynamics
}

// tracker follows the open segment of every resource and hands out the
// segments that close.
type tracker struct {
	last     simtime.Duration
	started  bool
	finished bool
	names    []string
	open     map[string]*openSegment
}

func newTracker() tracker {
	return tracker{open: make(map[string]*openSegment)}
}

func (t *tracker) advance(elapsed simtime.Duration) error {
	if t.finished {
		return ErrFinished
	}
	if t.started && elapsed < t.last {
		return &NonMonotonicError{Last: t.last, Got: elapsed}
	}
	t.started = true
	t.last = elapsed
	return nil
}

// accept applies updates at elapsed and calls emit for each closed
// segment, in resource name order of first appearance.
func (t *tracker) accept(elapsed simtime.Duration, updates map[string]resource.Dynamics, emit func(Segment)) error {
	if err := t.advance(elapsed); err != nil {
		return err
	}
	for _, name := range t.names {
		d, ok := updates[name]
		if !ok {
			continue
		}
		cur := t.open[name]
		if resource.Equivalent(resource.Step(cur.dynamics, elapsed-cur.start), d) {
			continue
		}
		if elapsed > cur.start {
			emit(closeSegment(name, cur, elapsed))
		}
		t.open[name] = &openSegment{start: elapsed, dynamics: d}
	}
	for _, name := range sortedNew(updates, t.open) {
		t.names = append(t.names, name)
		t.open[name] = &openSegment{start: elapsed, dynamics: updates[name]}
	}
	return nil
}

func (t *tracker) finish(until simtime.Duration, emit func(Segment)) error {
	if err := t.advance(until); err != nil {
		return err
	}
	t.finished = true
	for _, name := range t.names {
		cur := t.open[name]
		emit(closeSegment(name, cur, until))
		delete(t.open, name)
	}
	return nil
}

func closeSegment(name string, cur *openSegment, end simtime.Duration) Segment {
	return Segment{
		Resource: name,
		Kind:     resource.Kind(cur.dynamics),
		Start:    cur.start,
		Length:   end - cur.start,
		Dynamics: cur.dynamics,
	}
}

// sortedNew returns the names in updates that are not yet tracked.
func sortedNew(updates map[string]resource.Dynamics, tracked map[string]*openSegment) []string {
	var out []string
	for _, name := range slices.Sorted(maps.Keys(updates)) {
		if _, ok := tracked[name]; !ok {
			out = append(out, name)
		}
	}
	return out
}
