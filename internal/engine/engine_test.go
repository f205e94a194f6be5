package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cityrouter/transitlive/internal/terr"
	"github.com/cityrouter/transitlive/internal/transit"
	"github.com/cityrouter/transitlive/internal/walkgraph"
)

func loadWalkGraph(t *testing.T, body string) walkgraph.Graph {
	t.Helper()
	path := filepath.Join(t.TempDir(), "walk.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	g, err := walkgraph.Load(path)
	require.NoError(t, err)
	return g
}

func TestRouteDirectTrip(t *testing.T) {
	tt := transit.LiveTimetable{
		"L1": {
			"V1": &transit.Trip{
				RouteID:   "L1",
				VehicleID: "V1",
				Stops: []transit.StopTime{
					{StopID: "A", ArrivalUnix: 1000},
					{StopID: "B", ArrivalUnix: 1100},
					{StopID: "C", ArrivalUnix: 1200},
				},
			},
		},
	}
	walk := loadWalkGraph(t, `{}`)

	e := New(tt, walk, nil, 0, 0)
	journeys, err := e.Route("A", "C", 900)
	require.NoError(t, err)
	require.NotEmpty(t, journeys)

	best := journeys[0]
	require.Equal(t, int64(1200), best.Arrival)
	require.Equal(t, 1, best.Legs)
	require.Equal(t, transit.StopID("A"), best.Path[0].FromStop)
	require.Equal(t, transit.StopID("C"), best.Path[len(best.Path)-1].ToStop)
}

func TestRouteNoPath(t *testing.T) {
	tt := transit.LiveTimetable{
		"L1": {
			"V1": &transit.Trip{
				RouteID:   "L1",
				VehicleID: "V1",
				Stops: []transit.StopTime{
					{StopID: "A", ArrivalUnix: 1000},
					{StopID: "B", ArrivalUnix: 1100},
				},
			},
		},
	}
	walk := loadWalkGraph(t, `{}`)

	e := New(tt, walk, nil, 0, 0)
	_, err := e.Route("A", "Z", 900)
	require.ErrorIs(t, err, terr.ErrNoPath)
}

func TestRouteParetoSetIsMinimal(t *testing.T) {
	// Two routes from A to C: a slow direct one and a fast one via a
	// transfer at B, so both a 1-leg-but-late and a 2-legs-but-early
	// journey should survive as distinct Pareto-optimal results.
	tt := transit.LiveTimetable{
		"slow": {
			"V1": &transit.Trip{
				RouteID:   "slow",
				VehicleID: "V1",
				Stops: []transit.StopTime{
					{StopID: "A", ArrivalUnix: 1000},
					{StopID: "C", ArrivalUnix: 3000},
				},
			},
		},
		"leg1": {
			"V2": &transit.Trip{
				RouteID:   "leg1",
				VehicleID: "V2",
				Stops: []transit.StopTime{
					{StopID: "A", ArrivalUnix: 1000},
					{StopID: "B", ArrivalUnix: 1200},
				},
			},
		},
		"leg2": {
			"V3": &transit.Trip{
				RouteID:   "leg2",
				VehicleID: "V3",
				Stops: []transit.StopTime{
					{StopID: "B", ArrivalUnix: 1250},
					{StopID: "C", ArrivalUnix: 1500},
				},
			},
		},
	}
	walk := loadWalkGraph(t, `{}`)

	e := New(tt, walk, nil, 0, 0)
	journeys, err := e.Route("A", "C", 900)
	require.NoError(t, err)
	require.NotEmpty(t, journeys)

	for i := range journeys {
		for j := range journeys {
			if i == j {
				continue
			}
			li := transit.ParetoLabel{Arrival: journeys[i].Arrival, Legs: journeys[i].Legs}
			lj := transit.ParetoLabel{Arrival: journeys[j].Arrival, Legs: journeys[j].Legs}
			require.False(t, li.Dominates(lj), "journey %d should not dominate journey %d", i, j)
		}
	}

	// The faster 2-leg journey must be present.
	foundFast := false
	for _, j := range journeys {
		if j.Arrival == 1500 && j.Legs == 2 {
			foundFast = true
		}
	}
	require.True(t, foundFast, "expected the 2-leg 1500-arrival journey to survive Pareto filtering")
}

func TestRouteRespectsMaxRoundsLegBound(t *testing.T) {
	tt := transit.LiveTimetable{
		"L1": {"V1": &transit.Trip{RouteID: "L1", VehicleID: "V1", Stops: []transit.StopTime{
			{StopID: "A", ArrivalUnix: 1000}, {StopID: "B", ArrivalUnix: 1100},
		}}},
		"L2": {"V2": &transit.Trip{RouteID: "L2", VehicleID: "V2", Stops: []transit.StopTime{
			{StopID: "B", ArrivalUnix: 1150}, {StopID: "C", ArrivalUnix: 1250},
		}}},
	}
	walk := loadWalkGraph(t, `{}`)

	e := New(tt, walk, nil, 0, 1) // only 1 round allowed, the 2-leg journey can't be found
	_, err := e.Route("A", "C", 900)
	require.ErrorIs(t, err, terr.ErrNoPath)
}

func TestRouteWalkTransfer(t *testing.T) {
	tt := transit.LiveTimetable{
		"L1": {"V1": &transit.Trip{RouteID: "L1", VehicleID: "V1", Stops: []transit.StopTime{
			{StopID: "A", ArrivalUnix: 1000}, {StopID: "B", ArrivalUnix: 1100},
		}}},
	}
	walk := loadWalkGraph(t, `{"B": {"C": 300}}`)

	e := New(tt, walk, nil, 0, 0)
	journeys, err := e.Route("A", "C", 900)
	require.NoError(t, err)
	require.NotEmpty(t, journeys)
	require.Equal(t, int64(1400), journeys[0].Arrival)

	last := journeys[0].Path[len(journeys[0].Path)-1]
	require.Equal(t, "walk", last.Type)
}
