package harness

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/roach88/simkernel/internal/driver"
	"github.com/roach88/simkernel/internal/ir"
	"github.com/roach88/simkernel/internal/profile"
	"github.com/roach88/simkernel/internal/resource"
	"github.com/roach88/simkernel/internal/simtime"
)

// AssertionError describes a failed assertion.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	// Spans is the span listing of the run, for context.
	Spans []driver.SpanRecord
}

func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Spans) > 0 {
		fmt.Fprintf(&buf, "\nSpans:\n")
		for _, s := range e.Spans {
			typ := s.Type
			if typ == "" {
				typ = "(anonymous)"
			}
			end := "open"
			if s.Ended {
				end = s.End.String()
			}
			fmt.Fprintf(&buf, "  [%d] %s %s %s..%s\n", s.ID, s.ActivityID, typ, s.Start, end)
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns one message per
// failure.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertFinalValue:
			err = assertFinalValue(result.Results, a)
		case AssertValueAt:
			err = assertValueAt(result.Profiles, a)
		case AssertSpanWindow:
			err = assertSpanWindow(result.Results, a)
		case AssertSpanCount:
			err = assertSpanCount(result.Results, a)
		case AssertUnfinished:
			err = assertIDSet(AssertUnfinished, result.Results.Unfinished, a.Activities, result.Results.Spans)
		case AssertFailed:
			var failed []string
			for _, f := range result.Results.Failures {
				failed = append(failed, f.ActivityID)
			}
			err = assertIDSet(AssertFailed, failed, a.Activities, nil)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func assertFinalValue(res *driver.Results, a Assertion) error {
	d, ok := res.Final[a.Resource]
	if !ok {
		return &AssertionError{
			Type:     AssertFinalValue,
			Expected: fmt.Sprintf("resource %s", a.Resource),
			Actual:   "no such resource",
		}
	}
	return compareDynamics(AssertFinalValue, a, d, 0)
}

func assertValueAt(profiles []profile.Profile, a Assertion) error {
	at := *a.At
	for _, p := range profiles {
		if p.Resource != a.Resource {
			continue
		}
		for i, seg := range p.Segments {
			last := i == len(p.Segments)-1
			if at >= seg.Start && (at < seg.End() || (last && at == seg.End())) {
				return compareDynamics(AssertValueAt, a, seg.Dynamics, at-seg.Start)
			}
		}
		return &AssertionError{
			Type:     AssertValueAt,
			Expected: fmt.Sprintf("%s profiled at %s", a.Resource, at),
			Actual:   "instant outside the profile",
		}
	}
	return &AssertionError{
		Type:     AssertValueAt,
		Expected: fmt.Sprintf("profile of %s", a.Resource),
		Actual:   "no such profile",
	}
}

// compareDynamics checks d, read offset into its segment, against the
// assertion's expected value.
func compareDynamics(typ string, a Assertion, d resource.Dynamics, offset simtime.Duration) error {
	want, err := ir.FromAny(a.Value)
	if err != nil {
		return fmt.Errorf("%s %s: expected value: %w", typ, a.Resource, err)
	}

	var got ir.Value
	switch d := d.(type) {
	case resource.RealDynamics:
		got = ir.Real(d.ValueAt(offset))
	case resource.Discrete:
		got = d.Value
	}

	if equalValues(want, got, a.Tolerance) {
		return nil
	}
	return &AssertionError{
		Type:     typ,
		Expected: fmt.Sprintf("%s = %s", a.Resource, ir.Format(want)),
		Actual:   fmt.Sprintf("%s = %s", a.Resource, ir.Format(got)),
	}
}

// equalValues compares numerically when both sides are numbers.
func equalValues(want, got ir.Value, tolerance float64) bool {
	if tolerance == 0 {
		tolerance = DefaultTolerance
	}
	wf, wok := ir.AsFloat(want)
	gf, gok := ir.AsFloat(got)
	if wok && gok {
		return math.Abs(wf-gf) <= tolerance
	}
	return ir.Equal(want, got)
}

func assertSpanWindow(res *driver.Results, a Assertion) error {
	act, ok := res.Activity(a.Activity)
	if !ok || act.Span == 0 {
		return &AssertionError{
			Type:     AssertSpanWindow,
			Expected: fmt.Sprintf("span of activity %s", a.Activity),
			Actual:   "activity has no span",
			Spans:    res.Spans,
		}
	}
	span := res.Spans[act.Span-1]

	expected := fmt.Sprintf("%s..open", *a.Start)
	if a.End != nil {
		expected = fmt.Sprintf("%s..%s", *a.Start, *a.End)
	}
	actual := fmt.Sprintf("%s..open", span.Start)
	if span.Ended {
		actual = fmt.Sprintf("%s..%s", span.Start, span.End)
	}

	if expected != actual {
		return &AssertionError{
			Type:     AssertSpanWindow,
			Expected: fmt.Sprintf("%s spans %s", a.Activity, expected),
			Actual:   fmt.Sprintf("%s spans %s", a.Activity, actual),
			Spans:    res.Spans,
		}
	}
	return nil
}

func assertSpanCount(res *driver.Results, a Assertion) error {
	count := len(res.SpansOf(a.Activity))
	if count != a.Count {
		return &AssertionError{
			Type:     AssertSpanCount,
			Expected: fmt.Sprintf("%d spans for %s", a.Count, a.Activity),
			Actual:   fmt.Sprintf("%d spans", count),
			Spans:    res.Spans,
		}
	}
	return nil
}

// assertIDSet compares activity ID sets, ignoring order.
func assertIDSet(typ string, got, want []string, spans []driver.SpanRecord) error {
	g := slices.Sorted(slices.Values(got))
	w := slices.Sorted(slices.Values(want))
	if slices.Equal(g, w) {
		return nil
	}
	return &AssertionError{
		Type:     typ,
		Expected: fmt.Sprintf("%v", w),
		Actual:   fmt.Sprintf("%v", g),
		Spans:    spans,
	}
}
