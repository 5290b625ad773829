package cli

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/simkernel/internal/simtime"
)

func TestLoadPlanFile(t *testing.T) {
	dir := t.TempDir()

	p, err := LoadPlanFile(writeFile(t, dir, "peel.yaml", peelPlan))
	require.NoError(t, err)
	assert.Equal(t, "peel-and-bite", p.Name)
	assert.Equal(t, simtime.Hour, p.Horizon)

	p, err = LoadPlanFile(writeFile(t, dir, "snack.cue", snackPlan))
	require.NoError(t, err)
	assert.Equal(t, "snack", p.Name)
	assert.Equal(t, simtime.Minute, p.Activities[0].Start)
}

func TestLoadPlanFile_Errors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name     string
		path     string
		wantCode string
	}{
		{"missing", filepath.Join(dir, "nope.yaml"), ErrCodeNotFound},
		{"bad yaml", writeFile(t, dir, "bad.yaml", "horizon: [\n"), ErrCodeLoadFailed},
		{"unknown field", writeFile(t, dir, "extra.yaml", "name: x\nhorizon: 1h\ncolor: blue\n"), ErrCodeLoadFailed},
		{"no plan field", writeFile(t, dir, "empty.cue", `other: 1`), ErrCodeLoadFailed},
		{"bad cue", writeFile(t, dir, "syntax.cue", `plan: {`), ErrCodeBuildFailed},
		{"missing name", writeFile(t, dir, "noname.cue", `plan: {horizon: "1h"}`), "E200"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadPlanFile(tt.path)
			require.Error(t, err)
			var loadErr *LoadError
			require.True(t, errors.As(err, &loadErr), "got %T: %v", err, err)
			assert.Equal(t, tt.wantCode, loadErr.Code)
		})
	}
}

func TestFindPlanFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "b/a.yaml", peelPlan)
	b := writeFile(t, dir, "c.cue", snackPlan)
	c := writeFile(t, dir, "d.yml", peelPlan)
	writeFile(t, dir, "x.scenario.yaml", "")
	writeFile(t, dir, "readme.md", "")
	single := writeFile(t, t.TempDir(), "plan.txt", peelPlan)

	files, err := FindPlanFiles([]string{dir, single})
	require.NoError(t, err)
	assert.Equal(t, []string{a, b, c, single}, files)
}

func TestFindPlanFiles_Errors(t *testing.T) {
	_, err := FindPlanFiles([]string{filepath.Join(t.TempDir(), "nope")})
	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, ErrCodeNotFound, loadErr.Code)

	_, err = FindPlanFiles([]string{t.TempDir()})
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, ErrCodeNoFiles, loadErr.Code)
}

func TestLoadError_Format(t *testing.T) {
	assert.Equal(t, "E001: boom", (&LoadError{Code: "E001", Message: "boom"}).Error())
	assert.Equal(t, "p.yaml: E004: bad", (&LoadError{Code: "E004", Path: "p.yaml", Message: "bad"}).Error())
}

func TestMapFieldToErrorCode(t *testing.T) {
	assert.Equal(t, "E201", MapFieldToErrorCode("horizon"))
	assert.Equal(t, "E203", MapFieldToErrorCode("id"))
	assert.Equal(t, ErrCodeLoadFailed, MapFieldToErrorCode("args"))
	assert.Equal(t, ErrCodeBuildFailed, MapFieldToErrorCode("something"))
}
