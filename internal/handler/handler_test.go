package handler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cityrouter/transitlive/internal/engine"
	"github.com/cityrouter/transitlive/internal/transit"
	"github.com/cityrouter/transitlive/internal/walkgraph"
)

func TestClassifyLineBusWins(t *testing.T) {
	line := classifyLine("25", map[string]bool{"bus": true, "rail": true}, "bus", nil)
	require.Equal(t, "bus", line.Type)
	require.Equal(t, busColor, line.Color)
}

func TestClassifyLineRail(t *testing.T) {
	line := classifyLine("southeastern", map[string]bool{"rail": true}, "rail", nil)
	require.Equal(t, "rail", line.Type)
	require.Equal(t, railColors["Southeastern"], line.Color)
}

func TestClassifyLineTube(t *testing.T) {
	line := classifyLine("victoria", map[string]bool{"tube": true}, "tube", nil)
	require.Equal(t, "tube", line.Type)
	require.Equal(t, tubeColors["victoria"], line.Color)
}

func TestClassifyLineNoModesFallsBackToTubeName(t *testing.T) {
	line := classifyLine("central", map[string]bool{}, "tube", nil)
	require.Equal(t, "tube", line.Type)
	require.Equal(t, tubeColors["central"], line.Color)
}

func TestClassifyLineNoModesUnknownLineFallsBackToStopMode(t *testing.T) {
	line := classifyLine("X1", map[string]bool{}, "bus", nil)
	require.Equal(t, "bus", line.Type)
}

func TestTubeLineInfoTitleCasesHyphenated(t *testing.T) {
	name, color, ok := tubeLineInfo("hammersmith-city")
	require.True(t, ok)
	require.Equal(t, "Hammersmith City", name)
	require.Equal(t, tubeColors["hammersmith-city"], color)

	_, _, ok = tubeLineInfo("not-a-tube-line")
	require.False(t, ok)
}

func TestIsRailRoute(t *testing.T) {
	require.True(t, isRailRoute(transit.RouteID("SE/CHX")))
	require.False(t, isRailRoute(transit.RouteID("victoria")))
}

func TestDedupByNamePrefersRail(t *testing.T) {
	all := []searchResult{
		{Name: "Victoria", Mode: "tube", lineCount: 5},
		{Name: "Victoria", Mode: "rail", lineCount: 1},
	}
	out := dedupByName(all)
	require.Len(t, out, 1)
	require.Equal(t, "rail", out[0].Mode)
}

func TestDedupByNamePrefersHigherLineCountWhenModesTie(t *testing.T) {
	all := []searchResult{
		{Name: "Stratford", Mode: "tube", lineCount: 2},
		{Name: "Stratford", Mode: "tube", lineCount: 6},
	}
	out := dedupByName(all)
	require.Len(t, out, 1)
	require.Equal(t, 6, out[0].lineCount)
}

func TestSearchPriorityRanksUndergroundAndRailFirst(t *testing.T) {
	require.Equal(t, 0, searchPriority("underground"))
	require.Equal(t, 0, searchPriority("tube"))
	require.Equal(t, 0, searchPriority("rail"))
	require.Equal(t, 1, searchPriority("bus"))
}

func TestIntermediateStopsForwardAndReversed(t *testing.T) {
	walk := mustLoadEmptyWalkGraph(t)
	tt := transit.LiveTimetable{}
	eng := engine.New(tt, walk, nil, 0, 0)

	stops := []transit.StopTime{
		{StopID: "A", ArrivalUnix: 0},
		{StopID: "B", ArrivalUnix: 60},
		{StopID: "C", ArrivalUnix: 120},
		{StopID: "D", ArrivalUnix: 180},
	}

	forward := intermediateStops(eng, stops, "A", "C")
	require.Len(t, forward, 3)
	require.Equal(t, "A", forward[0].ID)
	require.Equal(t, "C", forward[2].ID)

	reversed := intermediateStops(eng, stops, "C", "A")
	require.Len(t, reversed, 3)
	require.Equal(t, "C", reversed[0].ID)
	require.Equal(t, "A", reversed[2].ID)

	require.Nil(t, intermediateStops(eng, stops, "A", "Z"))
}

func mustLoadEmptyWalkGraph(t *testing.T) walkgraph.Graph {
	t.Helper()
	path := filepath.Join(t.TempDir(), "walk.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o644))
	g, err := walkgraph.Load(path)
	require.NoError(t, err)
	return g
}
