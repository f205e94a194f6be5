// Package geo models the pedestrian-routing and polyline-extraction
// external collaborators (spec §1, §9: "not part of the journey-engine
// core and can be stubbed in tests"). Router is the interface contract;
// StraightLineRouter is the fallback this module actually ships, a
// great-circle stub matching the original service's degrade-to-
// straight-line behaviour (§7).
package geo

import "math"

// LatLon is a point in WGS84 degrees.
type LatLon struct {
	Lat float64
	Lon float64
}

// Route is the geometry and timing of one pedestrian leg.
type Route struct {
	Coordinates []LatLon
	DurationSec int
	DistanceM   float64
}

// walkSpeedMPS is the assumed pedestrian speed used whenever a real
// router is unavailable, matching the source's duration = distance / 1.4.
const walkSpeedMPS = 1.4

// Router fetches a walking route between two points. The production
// implementation (an OSRM-style `/route/v1/walking/{lon,lat};{lon,lat}`
// service, §6) is an external collaborator out of scope for this
// module; StraightLineRouter below is the only implementation shipped here.
type Router interface {
	Walk(from, to LatLon) (Route, error)
}

// StraightLineRouter always returns the great-circle straight line
// between two points, the fallback §7 specifies for when the real
// pedestrian router is unavailable or simply not wired up.
type StraightLineRouter struct{}

func (StraightLineRouter) Walk(from, to LatLon) (Route, error) {
	return Straighten(from, to), nil
}

// Straighten builds the great-circle fallback route between two points.
func Straighten(from, to LatLon) Route {
	d := HaversineMeters(from, to)
	return Route{
		Coordinates: []LatLon{from, to},
		DurationSec: int(d / walkSpeedMPS),
		DistanceM:   d,
	}
}

// HaversineMeters is the great-circle distance between two WGS84 points.
func HaversineMeters(a, b LatLon) float64 {
	const earthRadiusM = 6371000.0
	lat1, lon1 := a.Lat*math.Pi/180, a.Lon*math.Pi/180
	lat2, lon2 := b.Lat*math.Pi/180, b.Lon*math.Pi/180

	dLat := lat2 - lat1
	dLon := lon2 - lon1

	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Asin(math.Sqrt(h))
	return c * earthRadiusM
}
