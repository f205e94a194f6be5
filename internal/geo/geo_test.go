package geo

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHaversineMetersZeroForSamePoint(t *testing.T) {
	p := LatLon{Lat: 51.5, Lon: -0.1}
	require.InDelta(t, 0, HaversineMeters(p, p), 1e-6)
}

func TestHaversineMetersKnownDistance(t *testing.T) {
	// King's Cross to Euston, roughly 0.75km apart.
	kingsCross := LatLon{Lat: 51.5308, Lon: -0.1238}
	euston := LatLon{Lat: 51.5282, Lon: -0.1337}
	d := HaversineMeters(kingsCross, euston)
	require.InDelta(t, 720, d, 300)
}

func TestStraightenBuildsTwoPointRoute(t *testing.T) {
	from := LatLon{Lat: 51.5, Lon: -0.1}
	to := LatLon{Lat: 51.51, Lon: -0.11}
	route := Straighten(from, to)
	require.Len(t, route.Coordinates, 2)
	require.Equal(t, from, route.Coordinates[0])
	require.Equal(t, to, route.Coordinates[1])
	require.Greater(t, route.DistanceM, 0.0)
	require.Greater(t, route.DurationSec, 0)
}

func TestStraightLineRouterMatchesStraighten(t *testing.T) {
	from := LatLon{Lat: 51.5, Lon: -0.1}
	to := LatLon{Lat: 51.6, Lon: -0.2}
	route, err := StraightLineRouter{}.Walk(from, to)
	require.NoError(t, err)
	require.Equal(t, Straighten(from, to), route)
}
