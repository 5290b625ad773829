package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/simkernel/internal/driver"
	"github.com/roach88/simkernel/internal/ir"
	"github.com/roach88/simkernel/internal/profile"
	"github.com/roach88/simkernel/internal/resource"
	"github.com/roach88/simkernel/internal/simtime"
)

// Run is one recorded simulation.
type Run struct {
	ID         string
	Seq        int64
	Plan       string
	PlanDigest string
	Model      string
	Horizon    simtime.Duration
	Status     string
	Instants   int
	Digest     string
}

// BeginRun records a run as started and returns it with its seq assigned.
// Segments may be written for the run from then on.
func (s *Store) BeginRun(ctx context.Context, run Run) (Run, error) {
	if run.ID == "" {
		return Run{}, fmt.Errorf("begin run: empty run id")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("begin run: begin tx: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM runs`).Scan(&seq); err != nil {
		return Run{}, fmt.Errorf("begin run: next seq: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, seq, plan, plan_digest, model, horizon, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		seq,
		run.Plan,
		run.PlanDigest,
		run.Model,
		int64(run.Horizon),
		StatusRunning,
	)
	if err != nil {
		return Run{}, fmt.Errorf("begin run: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("begin run: commit: %w", err)
	}

	run.Seq = seq
	run.Status = StatusRunning
	return run, nil
}

// FinishRun stores the results of a running run together with its spans.
func (s *Store) FinishRun(ctx context.Context, id string, res *driver.Results) error {
	results, err := ir.MarshalCanonical(res.Object())
	if err != nil {
		return fmt.Errorf("finish run %s: %w", id, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("finish run %s: begin tx: %w", id, err)
	}
	defer tx.Rollback()

	updated, err := tx.ExecContext(ctx, `
		UPDATE runs SET status = ?, instants = ?, digest = ?, results = ?
		WHERE id = ? AND status = ?
	`, StatusFinished, res.Commits, res.Digest, string(results), id, StatusRunning)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", id, err)
	}
	if n, err := updated.RowsAffected(); err != nil {
		return fmt.Errorf("finish run %s: %w", id, err)
	} else if n == 0 {
		return fmt.Errorf("finish run %s: no running run with that id", id)
	}

	for _, span := range res.Spans {
		if err := insertSpan(ctx, tx, id, span); err != nil {
			return fmt.Errorf("finish run %s: %w", id, err)
		}
	}
	if err := insertEvents(ctx, tx, id, res.Events); err != nil {
		return fmt.Errorf("finish run %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("finish run %s: commit: %w", id, err)
	}
	return nil
}

// FailRun marks a running run as failed with cause.
func (s *Store) FailRun(ctx context.Context, id string, cause error) error {
	results, err := ir.MarshalCanonical(ir.Object{"error": ir.String(cause.Error())})
	if err != nil {
		return fmt.Errorf("fail run %s: %w", id, err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, results = ? WHERE id = ?
	`, StatusFailed, string(results), id)
	if err != nil {
		return fmt.Errorf("fail run %s: %w", id, err)
	}
	return nil
}

// SaveRun records a completed run in one call, including the profiles held
// by res. Use it when the run kept its profiles in memory.
func (s *Store) SaveRun(ctx context.Context, id string, res *driver.Results) (Run, error) {
	run, err := s.BeginRun(ctx, Run{
		ID:         id,
		Plan:       res.Plan,
		PlanDigest: res.PlanDigest,
		Model:      res.Model,
		Horizon:    res.Horizon,
	})
	if err != nil {
		return Run{}, err
	}

	var segments []profile.Segment
	for _, p := range res.Profiles {
		segments = append(segments, p.Segments...)
	}
	if err := s.WriteSegments(ctx, id, segments); err != nil {
		return Run{}, err
	}
	if err := s.FinishRun(ctx, id, res); err != nil {
		return Run{}, err
	}

	run.Status = StatusFinished
	run.Instants = res.Commits
	run.Digest = res.Digest
	return run, nil
}

// WriteSegments appends profile segments to a run, numbering them after
// any already stored.
func (s *Store) WriteSegments(ctx context.Context, runID string, segments []profile.Segment) error {
	if len(segments) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write segments: begin tx: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM profile_segments WHERE run_id = ?
	`, runID).Scan(&seq)
	if err != nil {
		return fmt.Errorf("write segments: next seq: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO profile_segments (run_id, seq, resource, kind, start, length, dynamics)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("write segments: prepare: %w", err)
	}
	defer stmt.Close()

	for _, seg := range segments {
		dynamics, err := ir.MarshalCanonical(resource.Encode(seg.Dynamics))
		if err != nil {
			return fmt.Errorf("write segments: %s at %s: %w", seg.Resource, seg.Start, err)
		}
		seq++
		_, err = stmt.ExecContext(ctx,
			runID,
			seq,
			seg.Resource,
			seg.Kind,
			int64(seg.Start),
			int64(seg.Length),
			string(dynamics),
		)
		if err != nil {
			return fmt.Errorf("write segments: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write segments: commit: %w", err)
	}
	return nil
}

func insertSpan(ctx context.Context, tx *sql.Tx, runID string, span driver.SpanRecord) error {
	args, err := ir.MarshalCanonical(argsObject(span.Args))
	if err != nil {
		return fmt.Errorf("span %d: %w", span.ID, err)
	}
	var end sql.NullInt64
	if span.Ended {
		end = sql.NullInt64{Int64: int64(span.End), Valid: true}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO spans (run_id, span_id, parent_id, type, activity_id, args, start, end_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID,
		int64(span.ID),
		int64(span.Parent),
		span.Type,
		span.ActivityID,
		string(args),
		int64(span.Start),
		end,
	)
	if err != nil {
		return fmt.Errorf("span %d: %w", span.ID, err)
	}
	return nil
}

func insertEvents(ctx context.Context, tx *sql.Tx, runID string, events []driver.EventRecord) error {
	if len(events) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events (run_id, seq, time, topic, graph)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("events: prepare: %w", err)
	}
	defer stmt.Close()

	for i, ev := range events {
		if _, err := stmt.ExecContext(ctx, runID, i+1, int64(ev.Time), ev.Topic, ev.Graph); err != nil {
			return fmt.Errorf("event %s at %s: %w", ev.Topic, ev.Time, err)
		}
	}
	return nil
}

func argsObject(args ir.Object) ir.Object {
	if args == nil {
		return ir.Object{}
	}
	return args
}

// SegmentSink returns a profile.Sink that appends to runID. The run must
// have been started with BeginRun.
func (s *Store) SegmentSink(runID string) profile.Sink {
	return &segmentSink{store: s, runID: runID}
}

type segmentSink struct {
	store *Store
	runID string
}

func (k *segmentSink) WriteSegments(ctx context.Context, segments []profile.Segment) error {
	return k.store.WriteSegments(ctx, k.runID, segments)
}
