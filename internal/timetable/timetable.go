// Package timetable implements component G, the Timetable Facade: a
// pure function that merges the bus, tube, tram and rail ingestors' outputs
// into one consistent snapshot body. All I/O already happened in
// internal/ingest; this package performs no I/O of its own.
package timetable

import (
	"github.com/cityrouter/transitlive/internal/ingest"
	"github.com/cityrouter/transitlive/internal/transit"
)

// Assemble merges the ingestors' per-route/per-vehicle trip maps and
// platform maps into the LiveTimetable/PlatformMap pair a Snapshot
// carries.
func Assemble(bus, tube, tram, rail ingest.Result) (transit.LiveTimetable, transit.PlatformMap) {
	merged := make(transit.LiveTimetable)
	platforms := make(transit.PlatformMap)

	for _, r := range []ingest.Result{bus, tube, tram, rail} {
		for route, byVehicle := range r.Trips {
			dst, ok := merged[route]
			if !ok {
				dst = make(map[transit.VehicleID]*transit.Trip)
				merged[route] = dst
			}
			for vehicle, trip := range byVehicle {
				dst[vehicle] = trip
			}
		}
		for key, platform := range r.Platforms {
			platforms[key] = platform
		}
	}

	return merged, platforms
}
