package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/roach88/simkernel/internal/driver"
	"github.com/roach88/simkernel/internal/ir"
	"github.com/roach88/simkernel/internal/model/banana"
	"github.com/roach88/simkernel/internal/plan"
	"github.com/roach88/simkernel/internal/simtime"
)

// createTestStore opens a store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testPlan is a short banana plan with a snack, so its results carry
// nested spans.
func testPlan() *plan.Plan {
	return &plan.Plan{
		Name:    "store-test",
		Horizon: simtime.Hour,
		Activities: []plan.Activity{
			{ID: "peel-1", Type: "PeelBanana", Start: simtime.Second, Args: ir.Object{"peelDirection": ir.String("fromStem")}},
			{ID: "snack", Type: "BananaSnack", Start: simtime.Minute},
			{ID: "ripen", Type: "RipenBanana", Args: ir.Object{"threshold": ir.Real(50)}},
		},
	}
}

// simulateTestPlan runs testPlan with the given driver options.
func simulateTestPlan(t *testing.T, opts ...driver.DriverOption) *driver.Results {
	t.Helper()
	opts = append([]driver.DriverOption{driver.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	res, err := driver.Simulate(context.Background(), banana.New(), testPlan(), opts...)
	if err != nil {
		t.Fatalf("Simulate() failed: %v", err)
	}
	return res
}
