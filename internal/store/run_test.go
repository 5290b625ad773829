package store

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"testing"

	"github.com/roach88/simkernel/internal/driver"
	"github.com/roach88/simkernel/internal/ir"
	"github.com/roach88/simkernel/internal/profile"
	"github.com/roach88/simkernel/internal/resource"
	"github.com/roach88/simkernel/internal/simtime"
)

func TestSaveRun_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	res := simulateTestPlan(t)

	run, err := s.SaveRun(ctx, "run-1", res)
	if err != nil {
		t.Fatalf("SaveRun() failed: %v", err)
	}
	if run.Seq != 1 {
		t.Errorf("Seq = %d, want 1", run.Seq)
	}

	got, err := s.ReadRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("ReadRun() failed: %v", err)
	}
	want := Run{
		ID:         "run-1",
		Seq:        1,
		Plan:       "store-test",
		PlanDigest: res.PlanDigest,
		Model:      "banana",
		Horizon:    simtime.Hour,
		Status:     StatusFinished,
		Instants:   res.Commits,
		Digest:     res.Digest,
	}
	if got != want {
		t.Errorf("ReadRun() = %+v, want %+v", got, want)
	}

	profiles, err := s.LoadProfiles(ctx, "run-1")
	if err != nil {
		t.Fatalf("LoadProfiles() failed: %v", err)
	}
	if !reflect.DeepEqual(profiles, res.Profiles) {
		t.Errorf("LoadProfiles() = %+v\nwant %+v", profiles, res.Profiles)
	}
}

func TestReadResults_MatchesDigest(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	res := simulateTestPlan(t)

	if _, err := s.SaveRun(ctx, "run-1", res); err != nil {
		t.Fatalf("SaveRun() failed: %v", err)
	}

	obj, err := s.ReadResults(ctx, "run-1")
	if err != nil {
		t.Fatalf("ReadResults() failed: %v", err)
	}
	digest, err := ir.ResultsDigest(obj)
	if err != nil {
		t.Fatalf("ResultsDigest() failed: %v", err)
	}
	if digest != res.Digest {
		t.Errorf("digest of stored results = %s, want %s", digest, res.Digest)
	}
}

func TestReadResults_ComputedAttributes(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if _, err := s.SaveRun(ctx, "run-1", simulateTestPlan(t)); err != nil {
		t.Fatalf("SaveRun() failed: %v", err)
	}
	obj, err := s.ReadResults(ctx, "run-1")
	if err != nil {
		t.Fatalf("ReadResults() failed: %v", err)
	}

	activities, ok := obj["activities"].(ir.List)
	if !ok {
		t.Fatalf("activities = %T, want ir.List", obj["activities"])
	}
	byID := map[string]ir.Object{}
	for _, v := range activities {
		a := v.(ir.Object)
		byID[string(a["id"].(ir.String))] = a
	}

	want := ir.Object{"biteSizeWasBig": ir.Bool(false)}
	if got := byID["snack"]["computed"]; !ir.Equal(got, want) {
		t.Errorf("snack computed = %v, want %v", got, want)
	}
	if got, ok := byID["ripen"]["computed"]; ok {
		t.Errorf("unfinished ripen has computed = %v", got)
	}
}

func TestLoadEvents(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	res := simulateTestPlan(t)
	if len(res.Events) == 0 {
		t.Fatal("simulation recorded no events")
	}

	if _, err := s.SaveRun(ctx, "run-1", res); err != nil {
		t.Fatalf("SaveRun() failed: %v", err)
	}
	events, err := s.LoadEvents(ctx, "run-1")
	if err != nil {
		t.Fatalf("LoadEvents() failed: %v", err)
	}
	if !reflect.DeepEqual(events, res.Events) {
		t.Errorf("LoadEvents() = %+v\nwant %+v", events, res.Events)
	}

	none, err := s.LoadEvents(ctx, "missing")
	if err != nil {
		t.Fatalf("LoadEvents(missing) failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("LoadEvents(missing) = %+v, want empty", none)
	}
}

func TestLoadSpans(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	res := simulateTestPlan(t)

	if _, err := s.SaveRun(ctx, "run-1", res); err != nil {
		t.Fatalf("SaveRun() failed: %v", err)
	}

	spans, err := s.LoadSpans(ctx, "run-1")
	if err != nil {
		t.Fatalf("LoadSpans() failed: %v", err)
	}
	if len(spans) != len(res.Spans) {
		t.Fatalf("LoadSpans() returned %d spans, want %d", len(spans), len(res.Spans))
	}

	for i, got := range spans {
		want := res.Spans[i]
		if got.ID != want.ID || got.Parent != want.Parent || got.Type != want.Type {
			t.Errorf("span %d = %d/%d/%q, want %d/%d/%q", i, got.ID, got.Parent, got.Type, want.ID, want.Parent, want.Type)
		}
		if got.ActivityID != want.ActivityID {
			t.Errorf("span %d activity = %q, want %q", i, got.ActivityID, want.ActivityID)
		}
		if got.Start != want.Start || got.Ended != want.Ended || got.End != want.End {
			t.Errorf("span %d window = %s, want %s", i, got.Window(simtime.Hour), want.Window(simtime.Hour))
		}
	}

	// The ripen activity never finishes: its span stays open.
	var open int
	for _, sp := range spans {
		if !sp.Ended {
			open++
			if sp.ActivityID != "ripen" {
				t.Errorf("open span belongs to %q, want ripen", sp.ActivityID)
			}
		}
	}
	if open != 1 {
		t.Errorf("open spans = %d, want 1", open)
	}

	snack := spans[len(spans)-5]
	if snack.Type != "BananaSnack" || !ir.Equal(snack.Args["biteSize"], ir.Real(0.5)) {
		t.Errorf("snack span = %+v", snack)
	}
}

func TestStreamingSink(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	memory := simulateTestPlan(t)

	run, err := s.BeginRun(ctx, Run{
		ID:         NewRunID(),
		Plan:       memory.Plan,
		PlanDigest: memory.PlanDigest,
		Model:      memory.Model,
		Horizon:    memory.Horizon,
	})
	if err != nil {
		t.Fatalf("BeginRun() failed: %v", err)
	}

	manager := profile.NewStreamingManager(s.SegmentSink(run.ID), profile.WithFlushThreshold(2))
	streamed := simulateTestPlan(t, driver.WithManager(manager))
	if err := s.FinishRun(ctx, run.ID, streamed); err != nil {
		t.Fatalf("FinishRun() failed: %v", err)
	}

	profiles, err := s.LoadProfiles(ctx, run.ID)
	if err != nil {
		t.Fatalf("LoadProfiles() failed: %v", err)
	}
	if !reflect.DeepEqual(profiles, memory.Profiles) {
		t.Errorf("streamed profiles = %+v\nwant %+v", profiles, memory.Profiles)
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM profile_segments WHERE run_id = ?`, run.ID).Scan(&count); err != nil {
		t.Fatalf("count segments: %v", err)
	}
	if count != manager.Flushed() {
		t.Errorf("stored %d segments, manager flushed %d", count, manager.Flushed())
	}

	got, err := s.ReadRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("ReadRun() failed: %v", err)
	}
	if got.Digest != memory.Digest {
		t.Errorf("streamed run digest = %s, want %s", got.Digest, memory.Digest)
	}
}

func TestWriteSegments_SeqContinues(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if _, err := s.BeginRun(ctx, Run{ID: "r", Plan: "p", PlanDigest: "d", Model: "m", Horizon: simtime.Hour}); err != nil {
		t.Fatalf("BeginRun() failed: %v", err)
	}

	seg := func(start simtime.Duration, v int64) profile.Segment {
		return profile.Segment{
			Resource: "plant",
			Kind:     "discrete",
			Start:    start,
			Length:   simtime.Minute,
			Dynamics: resource.Discrete{Value: ir.Int(v)},
		}
	}
	if err := s.WriteSegments(ctx, "r", []profile.Segment{seg(0, 1), seg(simtime.Minute, 2)}); err != nil {
		t.Fatalf("first WriteSegments() failed: %v", err)
	}
	if err := s.WriteSegments(ctx, "r", []profile.Segment{seg(2*simtime.Minute, 3)}); err != nil {
		t.Fatalf("second WriteSegments() failed: %v", err)
	}

	var maxSeq int
	if err := s.db.QueryRow(`SELECT MAX(seq) FROM profile_segments WHERE run_id = 'r'`).Scan(&maxSeq); err != nil {
		t.Fatalf("max seq: %v", err)
	}
	if maxSeq != 3 {
		t.Errorf("max seq = %d, want 3", maxSeq)
	}

	if err := s.WriteSegments(ctx, "r", nil); err != nil {
		t.Errorf("WriteSegments(nil) = %v, want nil", err)
	}
	if err := s.WriteSegments(ctx, "unknown", []profile.Segment{seg(0, 1)}); err == nil {
		t.Error("expected error writing segments for unknown run")
	}
}

func TestListRuns_Ordered(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	runs, err := s.ListRuns(ctx)
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	if runs == nil || len(runs) != 0 {
		t.Errorf("ListRuns() on empty store = %#v, want empty slice", runs)
	}

	for _, id := range []string{"zeta", "alpha", "mid"} {
		if _, err := s.BeginRun(ctx, Run{ID: id, Plan: "p", PlanDigest: "d-" + id[:1], Model: "m", Horizon: simtime.Hour}); err != nil {
			t.Fatalf("BeginRun(%s) failed: %v", id, err)
		}
	}

	runs, err = s.ListRuns(ctx)
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	var ids []string
	for _, r := range runs {
		ids = append(ids, r.ID)
	}
	if !reflect.DeepEqual(ids, []string{"zeta", "alpha", "mid"}) {
		t.Errorf("ListRuns() order = %v, want start order", ids)
	}

	byPlan, err := s.RunsForPlan(ctx, "d-a")
	if err != nil {
		t.Fatalf("RunsForPlan() failed: %v", err)
	}
	if len(byPlan) != 1 || byPlan[0].ID != "alpha" {
		t.Errorf("RunsForPlan(d-a) = %+v", byPlan)
	}
}

func TestBeginRun_Errors(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if _, err := s.BeginRun(ctx, Run{}); err == nil {
		t.Error("expected error for empty run id")
	}

	run := Run{ID: "dup", Plan: "p", PlanDigest: "d", Model: "m", Horizon: simtime.Hour}
	if _, err := s.BeginRun(ctx, run); err != nil {
		t.Fatalf("BeginRun() failed: %v", err)
	}
	if _, err := s.BeginRun(ctx, run); err == nil {
		t.Error("expected error for duplicate run id")
	}
}

func TestFinishRun_OnlyOnce(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	res := simulateTestPlan(t)

	if _, err := s.SaveRun(ctx, "run-1", res); err != nil {
		t.Fatalf("SaveRun() failed: %v", err)
	}
	if err := s.FinishRun(ctx, "run-1", res); err == nil {
		t.Error("expected error finishing a finished run")
	}
	if err := s.FinishRun(ctx, "missing", res); err == nil {
		t.Error("expected error finishing an unknown run")
	}
}

func TestFailRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if _, err := s.BeginRun(ctx, Run{ID: "r", Plan: "p", PlanDigest: "d", Model: "m", Horizon: simtime.Hour}); err != nil {
		t.Fatalf("BeginRun() failed: %v", err)
	}
	if err := s.FailRun(ctx, "r", errors.New("quota exceeded")); err != nil {
		t.Fatalf("FailRun() failed: %v", err)
	}

	run, err := s.ReadRun(ctx, "r")
	if err != nil {
		t.Fatalf("ReadRun() failed: %v", err)
	}
	if run.Status != StatusFailed {
		t.Errorf("Status = %q, want %q", run.Status, StatusFailed)
	}

	obj, err := s.ReadResults(ctx, "r")
	if err != nil {
		t.Fatalf("ReadResults() failed: %v", err)
	}
	if !ir.Equal(obj["error"], ir.String("quota exceeded")) {
		t.Errorf("results = %v, want error message", obj)
	}
}

func TestReadRun_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadRun(context.Background(), "nope")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("ReadRun() error = %v, want sql.ErrNoRows", err)
	}
	_, err = s.ReadResults(context.Background(), "nope")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("ReadResults() error = %v, want sql.ErrNoRows", err)
	}
}
