package walkgraph

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cityrouter/transitlive/internal/transit"
)

func writeGraphFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "walking_distances.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadParsesSymmetricEdges(t *testing.T) {
	path := writeGraphFile(t, `{
		"A": {"B": 120, "C": 900},
		"B": {"A": 120}
	}`)

	g, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 2, g.Len())

	secs, ok := g.Seconds("A", "B")
	require.True(t, ok)
	require.Equal(t, 120, secs)

	_, ok = g.Seconds("Z", "A")
	require.False(t, ok)
}

func TestNeighborsFiltersByMaxWalk(t *testing.T) {
	path := writeGraphFile(t, `{
		"A": {"B": 120, "C": 900}
	}`)
	g, err := Load(path)
	require.NoError(t, err)

	near := g.Neighbors(transit.StopID("A"), 300)
	require.Len(t, near, 1)
	require.Equal(t, transit.StopID("B"), near[0].To)

	// C's 900s edge is past the 600s default cap.
	capped := g.Neighbors(transit.StopID("A"), DefaultMaxWalkSeconds)
	require.Len(t, capped, 1)
}

func TestNeighborsUnknownStop(t *testing.T) {
	path := writeGraphFile(t, `{"A": {"B": 60}}`)
	g, err := Load(path)
	require.NoError(t, err)
	require.Empty(t, g.Neighbors(transit.StopID("nowhere"), DefaultMaxWalkSeconds))
}
