package ingest

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/cityrouter/transitlive/internal/statictt"
	"github.com/cityrouter/transitlive/internal/transit"
)

// defaultBusDelaySeconds is the fallback delay-per-stop used when a
// vehicle has no usable delta samples at all, matching
// `update_times.py`'s "Default 1 minute delay if no data".
const defaultBusDelaySeconds = 60

// lateFutureTripThreshold is how far past a line's latest observed
// arrival a static start time must be before it is synthesized as a
// future trip, matching the source's `latestinfo[line]+300`.
const lateFutureTripThreshold = 5 * time.Minute

type observedStop struct {
	stop transit.StopID
	at   int64
}

// Bus runs the bus ingestor (component D): fetch live arrivals, align
// each vehicle to its single matching static route pattern, derive a
// per-vehicle median delay, extrapolate unobserved stops, and
// synthesize future trips for static start times not yet covered by
// any observed vehicle.
func Bus(ctx context.Context, client *http.Client, baseURL, apiKey string, store *statictt.Store, logger *zap.Logger) Result {
	result := newResult()

	arrivals, err := FetchArrivals(ctx, client, baseURL, "bus", apiKey)
	if err != nil {
		logger.Warn("bus ingest: fetch arrivals", zap.Error(err))
		return result
	}

	// Observations are grouped per (line, vehicle), keyed "<line>/<vehicle>".
	vehicleStops := make(map[string][]observedStop)
	vehicleLine := make(map[string]string)
	vehicleIDs := make(map[string]string)
	vehicleDirection := make(map[string]string)
	latestByLine := make(map[string]int64)

	for _, a := range arrivals {
		t, err := ParseTFLTime(a.ExpectedArrival)
		if err != nil {
			logger.Warn("bus ingest: parse arrival", zap.Error(err))
			continue
		}
		unix := t.Unix()

		key := a.LineID + "/" + a.VehicleID
		vehicleLine[key] = a.LineID
		vehicleIDs[key] = a.VehicleID
		if _, ok := vehicleDirection[key]; !ok {
			vehicleDirection[key] = a.Direction
		}
		vehicleStops[key] = append(vehicleStops[key], observedStop{stop: transit.StopID(a.NaptanID), at: unix})

		if unix > latestByLine[a.LineID] {
			latestByLine[a.LineID] = unix
		}

		result.addStop(transit.RouteID(a.LineID), transit.VehicleID(a.VehicleID), transit.StopID(a.NaptanID), unix)
	}

	for key, stops := range vehicleStops {
		line := vehicleLine[key]
		direction := vehicleDirection[key]

		patterns := store.PatternsForLine(line, direction)
		if len(patterns) != 1 {
			// The source only aligns a vehicle when its line/direction
			// has exactly one static route pattern; otherwise the
			// observed stops above stand on their own.
			continue
		}
		pattern := patterns[0]
		if len(pattern.Intervals) == 0 || len(pattern.Intervals[0].Stops) == 0 {
			continue
		}

		extrapolateBus(result, transit.RouteID(line), transit.VehicleID(vehicleIDs[key]), stops, pattern)
	}

	addFutureBusTrips(result, store, latestByLine)

	return result
}

func extrapolateBus(result Result, route transit.RouteID, vehicle transit.VehicleID, stops []observedStop, pattern statictt.RoutePattern) {
	stopOffset := make(map[transit.StopID]int, len(pattern.Intervals[0].Stops))
	for _, s := range pattern.Intervals[0].Stops {
		stopOffset[s.StopID] = s.MinuteOffset
	}

	sorted := append([]observedStop(nil), stops...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].at < sorted[j].at })

	var earliestAt int64
	var earliestOffset int
	found := false
	for _, s := range sorted {
		if off, ok := stopOffset[s.stop]; ok {
			earliestAt, earliestOffset = s.at, off
			found = true
			break
		}
	}
	if !found {
		return
	}

	included := make(map[transit.StopID]bool)
	var differences []float64
	lastAt, lastOffset := earliestAt, earliestOffset
	for _, s := range sorted {
		off, ok := stopOffset[s.stop]
		if !ok {
			continue
		}
		included[s.stop] = true
		expected := lastAt + int64(off-lastOffset)*60
		differences = append(differences, float64(s.at-expected))
		lastAt, lastOffset = s.at, off
	}

	delayPerStop := defaultBusDelaySeconds
	if len(differences) > 0 {
		delayPerStop = medianDelay(differences)
	}

	lastAt, lastOffset = earliestAt, earliestOffset
	for _, is := range pattern.Intervals[0].Stops {
		if included[is.StopID] || is.MinuteOffset <= earliestOffset {
			continue
		}
		predicted := lastAt + int64(is.MinuteOffset-lastOffset)*60 + int64(delayPerStop)
		result.addStop(route, vehicle, is.StopID, predicted)
		lastAt, lastOffset = predicted, is.MinuteOffset
	}
}

// addFutureBusTrips synthesizes a "T<unixStart>" vehicle for every
// static start time more than 5 minutes past its line's latest
// observed arrival, matching `update_times.py`'s future-trip loop.
func addFutureBusTrips(result Result, store *statictt.Store, latestByLine map[string]int64) {
	now := time.Now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	for _, line := range store.Lines() {
		latest, ok := latestByLine[line]
		if !ok {
			continue
		}
		for _, direction := range store.Directions(line) {
			for _, pattern := range store.PatternsForLine(line, direction) {
				if len(pattern.Intervals) == 0 {
					continue
				}
				for _, startMinutes := range pattern.StartTimes {
					unixStart := startOfDay.Unix() + int64(startMinutes)*60
					if unixStart <= latest+int64(lateFutureTripThreshold.Seconds()) {
						continue
					}
					vehicle := transit.VehicleID("T" + strconv.FormatInt(unixStart, 10))
					result.addStop(transit.RouteID(line), vehicle, pattern.Start, unixStart)
					for _, is := range pattern.Intervals[0].Stops {
						result.addStop(transit.RouteID(line), vehicle, is.StopID, unixStart+int64(is.MinuteOffset)*60)
					}
				}
			}
		}
	}
}
