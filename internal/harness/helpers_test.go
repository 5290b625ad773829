package harness

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/simkernel/internal/model"
	"github.com/roach88/simkernel/internal/model/banana"
)

func testCatalog(t *testing.T) *model.Catalog {
	t.Helper()
	c := model.NewCatalog()
	c.Add(banana.Name, banana.New)
	return c
}

func loadScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario("testdata/scenarios/" + name + ".scenario.yaml")
	require.NoError(t, err)
	return s
}
