package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/simkernel/internal/simtime"
)

func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_InlinePlan(t *testing.T) {
	s := loadScenario(t, "peel-and-bite")

	assert.Equal(t, "peel-and-bite", s.Name)
	assert.Equal(t, "banana", s.Model)
	require.NotNil(t, s.Plan)
	assert.Equal(t, simtime.Hour, s.Plan.Horizon)
	require.Len(t, s.Plan.Activities, 2)
	assert.Equal(t, "peel-1", s.Plan.Activities[0].ID)
	assert.Equal(t, simtime.Second, s.Plan.Activities[0].Start)

	require.Len(t, s.Assertions, 7)
	at := s.Assertions[2]
	assert.Equal(t, AssertValueAt, at.Type)
	require.NotNil(t, at.At)
	assert.Equal(t, 1500*simtime.Millisecond, *at.At)
	assert.Equal(t, 3.0, at.Value)
}

func TestLoadScenario_CUEPlanFile(t *testing.T) {
	s := loadScenario(t, "snack")

	require.NotNil(t, s.Plan)
	assert.Equal(t, "snack", s.Plan.Name)
	require.Len(t, s.Plan.Activities, 2)
	assert.Equal(t, "BananaSnack", s.Plan.Activities[0].Type)
	assert.Equal(t, simtime.Minute, s.Plan.Activities[0].Start)
}

func TestLoadScenario_YAMLPlanFile(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "plan.yaml", `
name: single
horizon: 10m
activities:
  - id: pick
    type: PickBanana
`)
	path := writeScenario(t, dir, "single.scenario.yaml", `
name: single
description: one pick
model: banana
plan_file: plan.yaml
assertions:
  - type: final_value
    resource: plant
    value: 190
`)

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, 10*simtime.Minute, s.Plan.Horizon)
}

func TestLoadScenario_MissingPlanFile(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, "x.scenario.yaml", `
name: x
description: missing plan
model: banana
plan_file: nowhere.yaml
assertions:
  - type: failed
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	var notFound *ScenarioNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "nowhere.yaml", notFound.PlanFile)
	assert.Equal(t, filepath.Join(dir, "nowhere.yaml"), notFound.ResolvedPath)
}

func TestLoadScenario_Invalid(t *testing.T) {
	plan := `
plan:
  name: p
  horizon: 1h
`
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "unknown field",
			content: "name: x\ndescription: d\nmodel: banana\nbogus: 1\n" + plan,
			wantErr: "bogus",
		},
		{
			name:    "missing name",
			content: "description: d\nmodel: banana\nassertions: [{type: failed}]\n" + plan,
			wantErr: "name is required",
		},
		{
			name:    "missing model",
			content: "name: x\ndescription: d\nassertions: [{type: failed}]\n" + plan,
			wantErr: "model is required",
		},
		{
			name:    "missing plan",
			content: "name: x\ndescription: d\nmodel: banana\nassertions: [{type: failed}]\n",
			wantErr: "plan or plan_file is required",
		},
		{
			name:    "plan and plan_file",
			content: "name: x\ndescription: d\nmodel: banana\nplan_file: p.yaml\nassertions: [{type: failed}]\n" + plan,
			wantErr: "mutually exclusive",
		},
		{
			name:    "no assertions",
			content: "name: x\ndescription: d\nmodel: banana\n" + plan,
			wantErr: "assertions list is required",
		},
		{
			name:    "unknown assertion",
			content: "name: x\ndescription: d\nmodel: banana\nassertions: [{type: vibes}]\n" + plan,
			wantErr: `unknown assertion type "vibes"`,
		},
		{
			name:    "value_at without at",
			content: "name: x\ndescription: d\nmodel: banana\nassertions: [{type: value_at, resource: fruit, value: 1}]\n" + plan,
			wantErr: "at is required",
		},
		{
			name:    "final_value without value",
			content: "name: x\ndescription: d\nmodel: banana\nassertions: [{type: final_value, resource: fruit}]\n" + plan,
			wantErr: "value is required",
		},
		{
			name:    "span_window without start",
			content: "name: x\ndescription: d\nmodel: banana\nassertions: [{type: span_window, activity: a}]\n" + plan,
			wantErr: "start is required",
		},
		{
			name:    "negative tolerance",
			content: "name: x\ndescription: d\nmodel: banana\nassertions: [{type: final_value, resource: fruit, value: 1, tolerance: -1}]\n" + plan,
			wantErr: "tolerance must be non-negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeScenario(t, t.TempDir(), "s.scenario.yaml", tt.content)
			_, err := LoadScenario(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadPlan_DispatchesOnExtension(t *testing.T) {
	p, err := LoadPlan("testdata/plans/snack.cue")
	require.NoError(t, err)
	assert.Equal(t, "snack", p.Name)

	_, err = LoadPlan("testdata/plans/missing.yaml")
	assert.Error(t, err)
}
