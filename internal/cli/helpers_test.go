package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const peelPlan = `
name: peel-and-bite
horizon: 1h
activities:
  - id: peel-1
    type: PeelBanana
    start: 1s
    args:
      peelDirection: fromStem
  - id: bite-1
    type: BiteBanana
    start: 2s
    args:
      biteSize: 0.1
`

const snackPlan = `
plan: {
	name:    "snack"
	horizon: "1h"
	activities: [
		{id: "snack", type: "BananaSnack", start: "1m"},
		{id: "ripen", type: "RipenBanana", args: threshold: 50},
	]
}
`

const invalidPlan = `
name: broken
horizon: 1h
activities:
  - id: a
    type: JuggleBanana
  - id: a
    type: PeelBanana
    args:
      peelDirection: sideways
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

type response[T any] struct {
	Status string    `json:"status"`
	Data   T         `json:"data"`
	Error  *CLIError `json:"error"`
}

func decodeResponse[T any](t *testing.T, out string) response[T] {
	t.Helper()
	var resp response[T]
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	return resp
}
