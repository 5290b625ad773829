package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/simkernel/internal/ir"
	"github.com/roach88/simkernel/internal/model"
	"github.com/roach88/simkernel/internal/resource"
)

// Snapshot renders a scenario result as canonical JSON. The plan digest
// is left out so golden files survive changes to plan hashing; every other
// field of the results is kept, along with the stored profiles.
func Snapshot(name string, result *Result) ([]byte, error) {
	obj := result.Results.Object()
	delete(obj, "plan_digest")
	obj["scenario"] = ir.String(name)

	profiles := make(ir.List, 0, len(result.Profiles))
	for _, p := range result.Profiles {
		segments := make(ir.List, 0, len(p.Segments))
		for _, seg := range p.Segments {
			segments = append(segments, ir.NewObject(
				ir.O("start", ir.Int(seg.Start)),
				ir.O("length", ir.Int(seg.Length)),
				ir.O("value", resource.Encode(seg.Dynamics)),
			))
		}
		profiles = append(profiles, ir.NewObject(
			ir.O("resource", ir.String(p.Resource)),
			ir.O("kind", ir.String(p.Kind)),
			ir.O("segments", segments),
		))
	}
	obj["profiles"] = profiles

	return ir.MarshalCanonical(obj)
}

// RunWithGolden runs a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns an error if the scenario cannot run. A snapshot mismatch fails t
// through goldie.
func RunWithGolden(t *testing.T, scenario *Scenario, catalog *model.Catalog, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, catalog, opts...)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := Snapshot(name, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
