package ingest

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cityrouter/transitlive/internal/directory"
	"github.com/cityrouter/transitlive/internal/statictt"
	"github.com/cityrouter/transitlive/internal/transit"
)

// tubeScheduleWindow is how far back from now a scheduled interval
// start may be and still be considered a live candidate, matching
// `update_times.py`'s extension from 1 to 2 hours.
const tubeScheduleWindow = 2 * time.Hour

// multiIntervalLimit is the largest number of candidate intervals the
// ingestor will still aggregate a prediction from; beyond this the
// vehicle is left unresolved, matching the source's `<= 5` cutoff.
const multiIntervalLimit = 5

type tubeVehicle struct {
	line    string
	towards string
	stops   []observedStop
}

// Tube runs the tube ingestor (component E): identify each vehicle's
// route by destination-name match or interval-subsequence fallback,
// select the candidate scheduled interval(s) within the trailing
// 2-hour window, and align observed stops to produce predictions.
func Tube(ctx context.Context, client *http.Client, baseURL, apiKey string, store *statictt.Store, dir *directory.Directory, logger *zap.Logger) Result {
	result := newResult()

	arrivals, err := FetchArrivals(ctx, client, baseURL, "tube", apiKey)
	if err != nil {
		logger.Warn("tube ingest: fetch arrivals", zap.Error(err))
		return result
	}

	vehicles := make(map[string]*tubeVehicle)
	for _, a := range arrivals {
		if a.DestinationNaptanID == "" {
			continue
		}
		key := a.VehicleID + "/" + a.LineID
		v, ok := vehicles[key]
		if !ok {
			v = &tubeVehicle{line: a.LineID, towards: a.Towards}
			vehicles[key] = v
		}
		t, err := ParseTFLTime(a.ExpectedArrival)
		if err != nil {
			logger.Warn("tube ingest: parse arrival", zap.Error(err))
			continue
		}
		v.stops = append(v.stops, observedStop{stop: transit.StopID(a.NaptanID), at: t.Unix()})
	}

	possibleStopsByLine := make(map[string]map[transit.StopID]bool)
	patternsByLine := make(map[string]map[string]statictt.RoutePattern)
	for _, line := range store.Lines() {
		patterns := store.AllPatterns(line)
		patternsByLine[line] = patterns
		stops := make(map[transit.StopID]bool)
		for _, p := range patterns {
			for _, iv := range p.Intervals {
				for _, s := range iv.Stops {
					stops[s.StopID] = true
				}
			}
		}
		possibleStopsByLine[line] = stops
	}

	now := time.Now()
	weekday := now.Weekday().String()

	for key, v := range vehicles {
		routeCode, resolved := resolveTubeRoute(v, patternsByLine[v.line], dir)

		if !resolved {
			for _, s := range v.stops {
				if possibleStopsByLine[v.line][s.stop] {
					result.addStop(transit.RouteID(v.line), transit.VehicleID(key), s.stop, s.at)
				}
			}
			continue
		}

		pattern := patternsByLine[v.line][routeCode]
		predictTube(result, transit.RouteID(v.line), transit.VehicleID(key), v, pattern, weekday, now)
	}

	return result
}

// resolveTubeRoute identifies a vehicle's single candidate route code:
// first by destination-name containment of the first towards-word
// (mirrors `getStopName(routeDestNaptan)... in ...`), falling back to
// interval-subsequence consistency with the observed stop sequence.
func resolveTubeRoute(v *tubeVehicle, patterns map[string]statictt.RoutePattern, dir *directory.Directory) (string, bool) {
	towardsWord := firstWord(v.towards)
	observed := make([]transit.StopID, len(v.stops))
	for i, s := range v.stops {
		observed[i] = s.stop
	}

	var fromTowards, fromIntervals []string
	for code, p := range patterns {
		destName := strings.ToLower(dir.Name(p.End))
		if towardsWord != "" && strings.Contains(destName, towardsWord) {
			fromTowards = append(fromTowards, code)
			continue
		}
		if subsequenceOfAnyInterval(observed, p) {
			fromIntervals = append(fromIntervals, code)
		}
	}

	if len(fromTowards) == 1 {
		return fromTowards[0], true
	}
	if len(fromTowards) == 0 && len(fromIntervals) == 1 {
		return fromIntervals[0], true
	}
	return "", false
}

// subsequenceOfAnyInterval reports whether observed appears, in order,
// as a subsequence of at least one of the pattern's interval stop
// lists (mirrors the source's `all(obs in it for obs in observed_ids)`
// over a shared iterator).
func subsequenceOfAnyInterval(observed []transit.StopID, p statictt.RoutePattern) bool {
	for _, iv := range p.Intervals {
		if isSubsequence(observed, iv.Stops) {
			return true
		}
	}
	return false
}

func isSubsequence(observed []transit.StopID, stops []statictt.IntervalStop) bool {
	i := 0
	for _, s := range stops {
		if i < len(observed) && observed[i] == s.StopID {
			i++
		}
	}
	return i == len(observed)
}

func predictTube(result Result, route transit.RouteID, vehicle transit.VehicleID, v *tubeVehicle, pattern statictt.RoutePattern, weekday string, now time.Time) {
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	nowMinutes := int(now.Sub(startOfDay).Minutes())
	lowerMinutes := nowMinutes - int(tubeScheduleWindow.Minutes())

	schedule := pattern.Schedules[weekday]

	candidateIDs := make(map[int]bool)
	for _, sched := range schedule {
		if sched.StartMinutes > lowerMinutes && sched.StartMinutes < nowMinutes {
			candidateIDs[sched.IntervalID] = true
		}
	}

	routeStops := make(map[transit.StopID]bool)
	for _, iv := range pattern.Intervals {
		for _, s := range iv.Stops {
			routeStops[s.StopID] = true
		}
	}
	var ordered []observedStop
	seen := make(map[transit.StopID]bool)
	for _, s := range v.stops {
		if routeStops[s.stop] && !seen[s.stop] {
			ordered = append(ordered, s)
			seen[s.stop] = true
		}
	}
	if len(ordered) == 0 {
		return
	}

	switch {
	case len(candidateIDs) == 1:
		var id int
		for cid := range candidateIDs {
			id = cid
		}
		iv, ok := pattern.Interval(id)
		if !ok {
			return
		}
		predictSingleInterval(result, route, vehicle, ordered, iv)
	case len(candidateIDs) > 1 && len(candidateIDs) <= multiIntervalLimit:
		predictMultiInterval(result, route, vehicle, ordered, pattern, candidateIDs)
	default:
		// No schedule for today, no candidate in the window, or more
		// than multiIntervalLimit candidates: the vehicle stays
		// unresolved and only its observed stops on this route are
		// published.
		for _, s := range ordered {
			result.addStop(route, vehicle, s.stop, s.at)
		}
	}
}

func predictSingleInterval(result Result, route transit.RouteID, vehicle transit.VehicleID, ordered []observedStop, iv statictt.Interval) {
	aligned, ok := alignToInterval(ordered, iv)
	if !ok {
		return
	}

	for _, s := range iv.Stops {
		if actual, ok := aligned.actualTime[s.StopID]; ok {
			result.addStop(route, vehicle, s.StopID, actual)
			continue
		}
		if s.MinuteOffset <= aligned.firstOffset {
			continue
		}
		predicted := ordered[0].at + int64(s.MinuteOffset-aligned.firstOffset)*60 + int64(aligned.medianDiffSeconds)
		result.addStop(route, vehicle, s.StopID, predicted)
	}
}

func predictMultiInterval(result Result, route transit.RouteID, vehicle transit.VehicleID, ordered []observedStop, pattern statictt.RoutePattern, candidateIDs map[int]bool) {
	predictions := make(map[transit.StopID][]int64)

	for id := range candidateIDs {
		iv, ok := pattern.Interval(id)
		if !ok {
			continue
		}
		aligned, ok := alignToInterval(ordered, iv)
		if !ok {
			continue
		}
		for _, s := range iv.Stops {
			if actual, ok := aligned.actualTime[s.StopID]; ok {
				predictions[s.StopID] = append(predictions[s.StopID], actual)
				continue
			}
			if s.MinuteOffset <= aligned.firstOffset {
				continue
			}
			predicted := ordered[0].at + int64(s.MinuteOffset-aligned.firstOffset)*60 + int64(aligned.medianDiffSeconds)
			predictions[s.StopID] = append(predictions[s.StopID], predicted)
		}
	}

	for stop, times := range predictions {
		if len(times) == 0 {
			continue
		}
		result.addStop(route, vehicle, stop, medianTime(times))
	}
}

type intervalAlignment struct {
	firstOffset       int
	actualTime        map[transit.StopID]int64
	medianDiffSeconds int
}

// alignToInterval computes, for one candidate interval, the observed
// stops' alignment against the timetable offsets and the resulting
// median delay in seconds (source: `actualIntervals`/`differences` in
// `addTubeTimes`'s single- and multi-interval branches). Fewer than
// two usable delta samples falls back to a 0.5-minute default, as the
// source does for both branches.
func alignToInterval(ordered []observedStop, iv statictt.Interval) (intervalAlignment, bool) {
	offsets := make(map[transit.StopID]int, len(iv.Stops))
	for _, s := range iv.Stops {
		offsets[s.StopID] = s.MinuteOffset
	}
	firstOffset, ok := offsets[ordered[0].stop]
	if !ok {
		return intervalAlignment{}, false
	}

	actualOffset := make(map[transit.StopID]float64, len(ordered))
	actualTime := make(map[transit.StopID]int64, len(ordered))
	for i, s := range ordered {
		if i == 0 {
			actualOffset[s.stop] = float64(firstOffset)
		} else {
			actualOffset[s.stop] = float64(s.at-ordered[0].at)/60 + float64(firstOffset)
		}
		actualTime[s.stop] = s.at
	}

	var differences []float64
	for _, s := range iv.Stops {
		if ao, ok := actualOffset[s.StopID]; ok {
			differences = append(differences, ao-float64(s.MinuteOffset))
		}
	}

	medianDiffMinutes := 0.5
	if len(differences) >= 2 {
		medianDiffMinutes = quantileMedian(differences)
	}

	return intervalAlignment{
		firstOffset:       firstOffset,
		actualTime:        actualTime,
		medianDiffSeconds: int(medianDiffMinutes * 60),
	}, true
}
