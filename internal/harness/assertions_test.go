package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/simkernel/internal/driver"
	"github.com/roach88/simkernel/internal/engine"
	"github.com/roach88/simkernel/internal/ir"
	"github.com/roach88/simkernel/internal/profile"
	"github.com/roach88/simkernel/internal/resource"
	"github.com/roach88/simkernel/internal/simtime"
)

func dur(d simtime.Duration) *simtime.Duration { return &d }

func fixtureResult() *Result {
	r := NewResult()
	r.Results = &driver.Results{
		Horizon: simtime.Hour,
		Activities: []driver.ActivityResult{
			{ID: "grow", Type: "GrowBanana", Span: 1, Start: 0, End: 10 * simtime.Minute, Finished: true},
			{ID: "wait", Type: "RipenBanana", Span: 2, Start: simtime.Minute},
			{ID: "ghost", Type: "GrowBanana"},
		},
		Spans: []driver.SpanRecord{
			{Span: engine.Span{ID: 1, Type: "GrowBanana", Start: 0, End: 10 * simtime.Minute, Ended: true}, ActivityID: "grow"},
			{Span: engine.Span{ID: 2, Type: "RipenBanana", Start: simtime.Minute}, ActivityID: "wait"},
			{Span: engine.Span{ID: 3, Parent: 2, Start: simtime.Minute}, ActivityID: "wait"},
		},
		Unfinished: []string{"wait"},
		Failures:   []driver.Failure{{ActivityID: "ghost", Type: "GrowBanana", Message: "bad"}},
		Final: map[string]resource.Dynamics{
			"fruit": resource.Linear{Initial: 10, Rate: 0},
			"flag":  resource.Discrete{Value: ir.String("A")},
			"plant": resource.Discrete{Value: ir.Int(200)},
		},
	}
	r.Profiles = []profile.Profile{
		{
			Resource: "fruit",
			Kind:     "linear",
			Segments: []profile.Segment{
				{Resource: "fruit", Kind: "linear", Start: 0, Length: 10 * simtime.Minute, Dynamics: resource.Linear{Initial: 4, Rate: 0.01}},
				{Resource: "fruit", Kind: "linear", Start: 10 * simtime.Minute, Length: 50 * simtime.Minute, Dynamics: resource.Linear{Initial: 10, Rate: 0}},
			},
		},
	}
	return r
}

func TestEvaluateAssertions_Pass(t *testing.T) {
	assertions := []Assertion{
		{Type: AssertFinalValue, Resource: "fruit", Value: 10},
		{Type: AssertFinalValue, Resource: "flag", Value: "A"},
		{Type: AssertFinalValue, Resource: "plant", Value: 200.0},
		{Type: AssertValueAt, Resource: "fruit", At: dur(5 * simtime.Minute), Value: 7.0},
		{Type: AssertValueAt, Resource: "fruit", At: dur(10 * simtime.Minute), Value: 10},
		{Type: AssertValueAt, Resource: "fruit", At: dur(simtime.Hour), Value: 10},
		{Type: AssertValueAt, Resource: "fruit", At: dur(simtime.Minute), Value: 4.5, Tolerance: 0.2},
		{Type: AssertSpanWindow, Activity: "grow", Start: dur(0), End: dur(10 * simtime.Minute)},
		{Type: AssertSpanWindow, Activity: "wait", Start: dur(simtime.Minute)},
		{Type: AssertSpanCount, Activity: "wait", Count: 2},
		{Type: AssertSpanCount, Activity: "ghost", Count: 0},
		{Type: AssertUnfinished, Activities: []string{"wait"}},
		{Type: AssertFailed, Activities: []string{"ghost"}},
	}

	assert.Empty(t, EvaluateAssertions(fixtureResult(), assertions))
}

func TestEvaluateAssertions_Failures(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		want      string
	}{
		{"final value", Assertion{Type: AssertFinalValue, Resource: "fruit", Value: 9}, "fruit = 10.0"},
		{"missing resource", Assertion{Type: AssertFinalValue, Resource: "peel", Value: 1}, "no such resource"},
		{"discrete mismatch", Assertion{Type: AssertFinalValue, Resource: "flag", Value: "C"}, `flag = "A"`},
		{"value at", Assertion{Type: AssertValueAt, Resource: "fruit", At: dur(5 * simtime.Minute), Value: 4}, "fruit = 7.0"},
		{"outside profile", Assertion{Type: AssertValueAt, Resource: "fruit", At: dur(2 * simtime.Hour), Value: 4}, "instant outside the profile"},
		{"no profile", Assertion{Type: AssertValueAt, Resource: "peel", At: dur(0), Value: 4}, "no such profile"},
		{"window end", Assertion{Type: AssertSpanWindow, Activity: "grow", Start: dur(0), End: dur(simtime.Minute)}, "grow spans 0s..10m0s"},
		{"window open", Assertion{Type: AssertSpanWindow, Activity: "wait", Start: dur(simtime.Minute), End: dur(simtime.Hour)}, "wait spans 1m0s..open"},
		{"window no span", Assertion{Type: AssertSpanWindow, Activity: "ghost", Start: dur(0)}, "activity has no span"},
		{"count", Assertion{Type: AssertSpanCount, Activity: "grow", Count: 2}, "1 spans"},
		{"unfinished", Assertion{Type: AssertUnfinished}, "Actual: [wait]"},
		{"failed", Assertion{Type: AssertFailed, Activities: []string{"grow"}}, "Actual: [ghost]"},
		{"unknown", Assertion{Type: "vibes"}, `unknown assertion type "vibes"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := EvaluateAssertions(fixtureResult(), []Assertion{tt.assertion})
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0], tt.want)
		})
	}
}

func TestAssertionError_ListsSpans(t *testing.T) {
	errs := EvaluateAssertions(fixtureResult(), []Assertion{{Type: AssertSpanCount, Activity: "grow", Count: 5}})
	require.Len(t, errs, 1)

	msg := errs[0]
	assert.Contains(t, msg, "Assertion failed: span_count")
	assert.Contains(t, msg, "Spans:")
	assert.Contains(t, msg, "[1] grow GrowBanana 0s..10m0s")
	assert.Contains(t, msg, "[3] wait (anonymous) 1m0s..open")
}
