package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/simkernel/internal/driver"
	"github.com/roach88/simkernel/internal/engine"
	"github.com/roach88/simkernel/internal/ir"
	"github.com/roach88/simkernel/internal/profile"
	"github.com/roach88/simkernel/internal/resource"
	"github.com/roach88/simkernel/internal/simtime"
)

const runColumns = `id, seq, plan, plan_digest, model, horizon, status, instants, digest`

// ReadRun returns one run.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	return scanRun(row)
}

// ListRuns returns every run in the order they were started.
// Returns an empty slice (not nil) for an empty store.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	return s.queryRuns(ctx, `SELECT `+runColumns+` FROM runs ORDER BY seq ASC`)
}

// RunsForPlan returns the runs of one plan digest, oldest first.
func (s *Store) RunsForPlan(ctx context.Context, planDigest string) ([]Run, error) {
	return s.queryRuns(ctx, `
		SELECT `+runColumns+` FROM runs
		WHERE plan_digest = ?
		ORDER BY seq ASC
	`, planDigest)
}

func (s *Store) queryRuns(ctx context.Context, query string, args ...any) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var run Run
	var horizon int64
	err := row.Scan(
		&run.ID,
		&run.Seq,
		&run.Plan,
		&run.PlanDigest,
		&run.Model,
		&horizon,
		&run.Status,
		&run.Instants,
		&run.Digest,
	)
	if err == sql.ErrNoRows {
		return Run{}, err
	}
	if err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.Horizon = simtime.Duration(horizon)
	return run, nil
}

// ReadResults returns the stored results object of a run. A failed run's
// object holds only its error.
func (s *Store) ReadResults(ctx context.Context, id string) (ir.Object, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT results FROM runs WHERE id = ?`, id).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("read results %s: %w", id, err)
	}
	v, err := ir.ParseJSON([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("read results %s: %w", id, err)
	}
	obj, ok := v.(ir.Object)
	if !ok {
		return nil, fmt.Errorf("read results %s: expected object, got %s", id, ir.TypeName(v))
	}
	return obj, nil
}

// LoadProfiles reassembles the profiles of a run, ordered by resource name
// with each profile's segments in time order.
func (s *Store) LoadProfiles(ctx context.Context, runID string) ([]profile.Profile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT resource, kind, start, length, dynamics
		FROM profile_segments
		WHERE run_id = ?
		ORDER BY resource COLLATE BINARY ASC, start ASC, seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query segments: %w", err)
	}
	defer rows.Close()

	profiles := []profile.Profile{}
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		n := len(profiles)
		if n == 0 || profiles[n-1].Resource != seg.Resource {
			profiles = append(profiles, profile.Profile{Resource: seg.Resource, Kind: seg.Kind})
			n++
		}
		profiles[n-1].Segments = append(profiles[n-1].Segments, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate segments: %w", err)
	}
	return profiles, nil
}

func scanSegment(row scanner) (profile.Segment, error) {
	var seg profile.Segment
	var start, length int64
	var data string
	if err := row.Scan(&seg.Resource, &seg.Kind, &start, &length, &data); err != nil {
		return seg, fmt.Errorf("scan segment: %w", err)
	}
	v, err := ir.ParseJSON([]byte(data))
	if err != nil {
		return seg, fmt.Errorf("segment %s at %d: %w", seg.Resource, start, err)
	}
	if seg.Dynamics, err = resource.Decode(seg.Kind, v); err != nil {
		return seg, fmt.Errorf("segment %s at %d: %w", seg.Resource, start, err)
	}
	seg.Start = simtime.Duration(start)
	seg.Length = simtime.Duration(length)
	return seg, nil
}

// LoadSpans returns the spans of a run in opening order. Task IDs are not
// stored and come back empty.
func (s *Store) LoadSpans(ctx context.Context, runID string) ([]driver.SpanRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT span_id, parent_id, type, activity_id, args, start, end_time
		FROM spans
		WHERE run_id = ?
		ORDER BY span_id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query spans: %w", err)
	}
	defer rows.Close()

	spans := []driver.SpanRecord{}
	for rows.Next() {
		var rec driver.SpanRecord
		var id, parent, start int64
		var args string
		var end sql.NullInt64
		if err := rows.Scan(&id, &parent, &rec.Type, &rec.ActivityID, &args, &start, &end); err != nil {
			return nil, fmt.Errorf("scan span: %w", err)
		}
		v, err := ir.ParseJSON([]byte(args))
		if err != nil {
			return nil, fmt.Errorf("span %d args: %w", id, err)
		}
		obj, ok := v.(ir.Object)
		if !ok {
			return nil, fmt.Errorf("span %d args: expected object, got %s", id, ir.TypeName(v))
		}
		rec.Span = engine.Span{
			ID:     engine.SpanID(id),
			Parent: engine.SpanID(parent),
			Type:   rec.Type,
			Args:   obj,
			Start:  simtime.Duration(start),
		}
		if end.Valid {
			rec.End = simtime.Duration(end.Int64)
			rec.Ended = true
		}
		spans = append(spans, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate spans: %w", err)
	}
	return spans, nil
}

// LoadEvents returns the event graphs of a run, oldest instant first and
// by topic within an instant.
func (s *Store) LoadEvents(ctx context.Context, runID string) ([]driver.EventRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT time, topic, graph
		FROM events
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []driver.EventRecord{}
	for rows.Next() {
		var ev driver.EventRecord
		var at int64
		if err := rows.Scan(&at, &ev.Topic, &ev.Graph); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Time = simtime.Duration(at)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
