package driver

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/simkernel/internal/engine"
	"github.com/roach88/simkernel/internal/ir"
	"github.com/roach88/simkernel/internal/model/banana"
	"github.com/roach88/simkernel/internal/plan"
	"github.com/roach88/simkernel/internal/profile"
	"github.com/roach88/simkernel/internal/resource"
	"github.com/roach88/simkernel/internal/simtime"
	"github.com/roach88/simkernel/internal/task"
	"github.com/roach88/simkernel/internal/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func simulate(t *testing.T, p *plan.Plan, opts ...DriverOption) *Results {
	t.Helper()
	opts = append([]DriverOption{WithLogger(quietLogger())}, opts...)
	res, err := Simulate(context.Background(), banana.New(), p, opts...)
	require.NoError(t, err)
	return res
}

func peelAndBite() *plan.Plan {
	return &plan.Plan{
		Name:    "peel-and-bite",
		Horizon: simtime.Hour,
		Activities: []plan.Activity{
			{ID: "peel-1", Type: "PeelBanana", Start: simtime.Second, Args: ir.Object{"peelDirection": ir.String("fromStem")}},
			{ID: "bite-1", Type: "BiteBanana", Start: 2 * simtime.Second, Args: ir.Object{"biteSize": ir.Real(0.1)}},
		},
	}
}

func realValue(t *testing.T, res *Results, name string) float64 {
	t.Helper()
	d, ok := res.Final[name].(resource.RealDynamics)
	require.True(t, ok, "%s is not real: %#v", name, res.Final[name])
	return d.ValueAt(0)
}

func findProfile(t *testing.T, profiles []profile.Profile, name string) profile.Profile {
	t.Helper()
	for _, p := range profiles {
		if p.Resource == name {
			return p
		}
	}
	t.Fatalf("no profile for %s", name)
	return profile.Profile{}
}

func TestSimulate_PeelAndBite(t *testing.T) {
	res := simulate(t, peelAndBite())

	assert.InDelta(t, 2.9, realValue(t, res, "fruit"), 1e-9)
	assert.InDelta(t, 3.0, realValue(t, res, "peel"), 1e-9)
	assert.Equal(t, resource.Discrete{Value: ir.Int(200)}, res.Final["plant"])
	assert.Equal(t, resource.Discrete{Value: ir.String("Chiquita")}, res.Final["producer"])
	assert.Equal(t, resource.Discrete{Value: ir.String("A")}, res.Final["flag"])

	// Daemon start at 0, then the two activities.
	assert.Equal(t, 3, res.Commits)
	assert.Empty(t, res.Unfinished)
	assert.Empty(t, res.Failures)

	peel, ok := res.Activity("peel-1")
	require.True(t, ok)
	assert.True(t, peel.Finished)
	assert.Equal(t, simtime.Second, peel.Start)
	assert.Equal(t, simtime.Second, peel.End)

	require.Len(t, res.Spans, 2)
	assert.Equal(t, "PeelBanana", res.Spans[0].Type)
	assert.Equal(t, "peel-1", res.Spans[0].ActivityID)
	assert.Equal(t, "bite-1", res.Spans[1].ActivityID)
	assert.Equal(t, ir.Real(0.1), res.Spans[1].Args["biteSize"])
	assert.Equal(t, simtime.Between(2*simtime.Second, 2*simtime.Second), res.Spans[1].Window(res.Horizon))

	assert.Len(t, res.Digest, 64)
	assert.Len(t, res.PlanDigest, 64)
}

func TestSimulate_FruitProfile(t *testing.T) {
	res := simulate(t, peelAndBite())

	fruit := findProfile(t, res.Profiles, "fruit")
	require.Len(t, fruit.Segments, 3)

	starts := []simtime.Duration{0, simtime.Second, 2 * simtime.Second}
	values := []float64{4.0, 3.0, 2.9}
	for i, seg := range fruit.Segments {
		assert.Equal(t, starts[i], seg.Start)
		assert.InDelta(t, values[i], seg.Dynamics.(resource.RealDynamics).ValueAt(0), 1e-9)
	}
	assert.Equal(t, simtime.Hour, fruit.Segments[2].End())

	plant := findProfile(t, res.Profiles, "plant")
	require.Len(t, plant.Segments, 1)
	assert.Equal(t, simtime.Hour, plant.Segments[0].Length)
}

func TestSimulate_SamplingPeriodKeepsSegments(t *testing.T) {
	plain := simulate(t, peelAndBite())

	p := peelAndBite()
	p.SamplingPeriod = 10 * simtime.Minute
	sampled := simulate(t, p)

	assert.Equal(t,
		findProfile(t, plain.Profiles, "fruit").Segments,
		findProfile(t, sampled.Profiles, "fruit").Segments,
	)
}

func TestSimulate_GrowthIsSampledAsRate(t *testing.T) {
	p := &plan.Plan{
		Name:           "grow",
		Horizon:        2 * simtime.Hour,
		SamplingPeriod: 15 * simtime.Minute,
		Activities: []plan.Activity{
			{ID: "grow", Type: "GrowBanana", Args: ir.Object{"quantity": ir.Int(36), "growingDuration": ir.String("1h")}},
		},
	}
	res := simulate(t, p)

	fruit := findProfile(t, res.Profiles, "fruit")
	require.Len(t, fruit.Segments, 2)
	assert.Equal(t, resource.Linear{Initial: 4, Rate: 0.01}, fruit.Segments[0].Dynamics)
	assert.Equal(t, simtime.Hour, fruit.Segments[0].Length)
	assert.InDelta(t, 40.0, fruit.Segments[1].Dynamics.(resource.RealDynamics).ValueAt(0), 1e-6)
	assert.InDelta(t, 40.0, realValue(t, res, "fruit"), 1e-6)
}

func TestSimulate_FailuresDoNotStopTheRun(t *testing.T) {
	p := peelAndBite()
	p.Activities = append(p.Activities,
		plan.Activity{ID: "jump", Type: "JumpBanana"},
		plan.Activity{ID: "bad-peel", Type: "PeelBanana", Args: ir.Object{"peelDirection": ir.String("sideways")}},
		plan.Activity{ID: "bad-bite", Type: "BiteBanana", Args: ir.Object{"biteSize": ir.Real(-1)}},
	)
	res := simulate(t, p)

	require.Len(t, res.Failures, 3)
	assert.Equal(t, "jump", res.Failures[0].ActivityID)
	assert.Contains(t, res.Failures[0].Message, "JumpBanana")
	assert.Equal(t, "bad-peel", res.Failures[1].ActivityID)
	assert.Contains(t, res.Failures[2].Message, "negative")

	assert.Len(t, res.Activities, 2)
	assert.InDelta(t, 2.9, realValue(t, res, "fruit"), 1e-9)
}

func TestSimulate_UnfinishedAtHorizon(t *testing.T) {
	p := &plan.Plan{
		Name:    "never-ripe",
		Horizon: simtime.Hour,
		Activities: []plan.Activity{
			{ID: "ripen", Type: "RipenBanana", Args: ir.Object{"threshold": ir.Real(10)}},
			{ID: "throw", Type: "ThrowBanana", Start: 59 * simtime.Minute, Args: ir.Object{"speed": ir.Real(0.1)}},
		},
	}
	res := simulate(t, p)

	assert.Equal(t, []string{"ripen", "throw"}, res.Unfinished)
	ripen, _ := res.Activity("ripen")
	assert.False(t, ripen.Finished)
	assert.Equal(t, simtime.Hour, ripen.Duration(res.Horizon))

	require.Len(t, res.Spans, 2)
	assert.False(t, res.Spans[0].Ended)
	assert.Equal(t, simtime.Between(0, simtime.Hour), res.Spans[0].Window(res.Horizon))
	assert.Equal(t, resource.Discrete{Value: ir.String("A")}, res.Final["flag"])
}

func TestSimulate_ConditionWakesActivity(t *testing.T) {
	p := &plan.Plan{
		Name:    "ripen",
		Horizon: simtime.Hour,
		Activities: []plan.Activity{
			{ID: "grow", Type: "GrowBanana", Args: ir.Object{"quantity": ir.Int(10), "growingDuration": ir.String("1h")}},
			{ID: "ripen", Type: "RipenBanana", Args: ir.Object{"threshold": ir.Real(10)}},
		},
	}
	res := simulate(t, p)

	ripen, ok := res.Activity("ripen")
	require.True(t, ok)
	require.True(t, ripen.Finished)
	// 4 + 10/3600 per second reaches 10 after 2160s.
	assert.InDelta(t, float64(36*simtime.Minute), float64(ripen.End), float64(simtime.Millisecond))
	assert.Equal(t, resource.Discrete{Value: ir.String("ripe")}, res.Final["flag"])
	assert.Equal(t, ir.Object{"ripeAt": ir.Int(ripen.End)}, ripen.Computed)
}

func TestSimulate_ComputedAttributes(t *testing.T) {
	p := peelAndBite()
	p.Activities = append(p.Activities, plan.Activity{
		ID: "bite-2", Type: "BiteBanana", Start: 3 * simtime.Second, Args: ir.Object{"biteSize": ir.Real(1.5)},
	})
	res := simulate(t, p)

	peel, _ := res.Activity("peel-1")
	assert.Nil(t, peel.Computed)
	small, _ := res.Activity("bite-1")
	assert.Equal(t, ir.Object{"biteSizeWasBig": ir.Bool(false)}, small.Computed)
	big, _ := res.Activity("bite-2")
	assert.Equal(t, ir.Object{"biteSizeWasBig": ir.Bool(true)}, big.Computed)

	activities := res.Object()["activities"].(ir.List)
	require.Len(t, activities, 3)
	assert.NotContains(t, activities[0].(ir.Object), "computed")
	assert.Equal(t, ir.Object{"biteSizeWasBig": ir.Bool(true)}, activities[2].(ir.Object)["computed"])
}

func TestSimulate_SnackComputesThroughNestedCalls(t *testing.T) {
	p := &plan.Plan{
		Name:       "snack",
		Horizon:    simtime.Hour,
		Activities: []plan.Activity{{ID: "snack", Type: "BananaSnack", Args: ir.Object{"biteSize": ir.Real(2)}}},
	}
	res := simulate(t, p)

	snack, ok := res.Activity("snack")
	require.True(t, ok)
	assert.Equal(t, ir.Object{"biteSizeWasBig": ir.Bool(true)}, snack.Computed)
}

func TestSimulate_Events(t *testing.T) {
	res := simulate(t, peelAndBite())

	assert.Equal(t, []EventRecord{
		{Time: simtime.Second, Topic: "fruit", Graph: "-1"},
		{Time: simtime.Second, Topic: "peel", Graph: "-1"},
		{Time: 2 * simtime.Second, Topic: "fruit", Graph: "-0.1"},
	}, res.Events)
}

func TestSimulate_ConcurrentEvents(t *testing.T) {
	p := peelAndBite()
	p.Activities[1].Start = simtime.Second
	res := simulate(t, p, WithEngineOptions(engine.WithCommitLog(false)))

	require.Len(t, res.Events, 2)
	assert.Equal(t, "fruit", res.Events[0].Topic)
	assert.Regexp(t, `^(-1 \| -0\.1|-0\.1 \| -1)$`, res.Events[0].Graph)
	assert.Equal(t, EventRecord{Time: simtime.Second, Topic: "peel", Graph: "-1"}, res.Events[1])
}

func TestSimulate_DaemonReactsToPick(t *testing.T) {
	p := &plan.Plan{
		Name:    "harvest",
		Horizon: simtime.Hour,
		Activities: []plan.Activity{
			{ID: "pick-1", Type: "PickBanana", Start: 10 * simtime.Minute, Args: ir.Object{"quantity": ir.Int(60)}},
			{ID: "pick-2", Type: "PickBanana", Start: 20 * simtime.Minute, Args: ir.Object{"quantity": ir.Int(60)}},
		},
	}
	res := simulate(t, p)

	assert.Equal(t, resource.Discrete{Value: ir.Int(80)}, res.Final["plant"])
	assert.Equal(t, resource.Discrete{Value: ir.String("C")}, res.Final["flag"])

	flag := findProfile(t, res.Profiles, "flag")
	require.Len(t, flag.Segments, 2)
	assert.Equal(t, 20*simtime.Minute, flag.Segments[1].Start)
}

func TestSimulate_SnackSpansBelongToActivity(t *testing.T) {
	p := &plan.Plan{
		Name:    "snack",
		Horizon: simtime.Hour,
		Activities: []plan.Activity{
			{ID: "snack", Type: "BananaSnack", Start: simtime.Minute},
		},
	}
	res := simulate(t, p)

	spans := res.SpansOf("snack")
	require.Len(t, spans, 5)

	var types []string
	for _, s := range spans {
		types = append(types, s.Type)
		assert.True(t, s.Ended)
	}
	assert.Equal(t, []string{"BananaSnack", "", "PeelBanana", "", "BiteBanana"}, types)
	assert.Equal(t, spans[0].ID, spans[1].Parent)
	assert.Equal(t, spans[1].ID, spans[2].Parent)

	snack, _ := res.Activity("snack")
	assert.Equal(t, simtime.Minute, snack.Duration(res.Horizon))
	assert.Equal(t, spans[0].ID, snack.Span)

	assert.InDelta(t, 3.5, realValue(t, res, "fruit"), 1e-9)
	assert.InDelta(t, 3.0, realValue(t, res, "peel"), 1e-9)
	assert.Equal(t, resource.Discrete{Value: ir.Int(199)}, res.Final["plant"])
}

func TestSimulate_StreamingManager(t *testing.T) {
	memory := simulate(t, peelAndBite())

	sink := &profile.MemorySink{}
	streamed := simulate(t, peelAndBite(), WithManager(profile.NewStreamingManager(sink, profile.WithFlushThreshold(2))))

	assert.Nil(t, streamed.Profiles)
	assert.Equal(t, memory.Digest, streamed.Digest)

	var total int
	for _, p := range memory.Profiles {
		total += len(p.Segments)
	}
	assert.Len(t, sink.Segments(), total)
}

func TestSimulate_Trace(t *testing.T) {
	var times []simtime.Duration
	res := simulate(t, peelAndBite(), WithTrace(func(c engine.Commit) {
		times = append(times, c.Time)
	}))

	assert.Equal(t, []simtime.Duration{0, simtime.Second, 2 * simtime.Second}, times)
	assert.Equal(t, res.Commits, len(times))
}

func TestSimulate_Deterministic(t *testing.T) {
	a := simulate(t, peelAndBite())
	b := simulate(t, peelAndBite())
	assert.Equal(t, a.Digest, b.Digest)
	assert.Equal(t, a.Object(), b.Object())

	changed := peelAndBite()
	changed.Activities[1].Args["biteSize"] = ir.Real(0.2)
	c := simulate(t, changed)
	assert.NotEqual(t, a.Digest, c.Digest)
	assert.NotEqual(t, a.PlanDigest, c.PlanDigest)
}

func TestSimulate_TaskIDsReplay(t *testing.T) {
	ids := testutil.NewResettableIDs("job")
	run := func() []task.ID {
		res, err := Simulate(context.Background(), banana.New(), peelAndBite(),
			WithLogger(quietLogger()),
			WithEngineOptions(engine.WithIDGenerator(ids)),
		)
		require.NoError(t, err)
		var out []task.ID
		for _, a := range res.Activities {
			out = append(out, a.Task)
		}
		return out
	}

	first := run()
	issued := ids.Issued()
	require.Len(t, first, 2)
	assert.Positive(t, issued)
	for _, id := range first {
		assert.Regexp(t, `^job-\d+$`, string(id))
	}

	ids.Reset()
	assert.Equal(t, first, run())
	assert.Equal(t, issued, ids.Issued())
}

func TestSimulate_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Simulate(ctx, banana.New(), peelAndBite(), WithLogger(quietLogger()))
	require.ErrorIs(t, err, context.Canceled)
}

func TestSimulate_QuotaExceeded(t *testing.T) {
	_, err := Simulate(context.Background(), banana.New(), peelAndBite(),
		WithLogger(quietLogger()),
		WithEngineOptions(engine.WithMaxStepsPerInstant(1)),
	)
	require.Error(t, err)
	assert.True(t, engine.IsQuotaError(err))
	assert.True(t, engine.IsStepsExceededError(err))
}
