// Package engine implements component H, the Journey Engine: a
// McRAPTOR multi-criteria (arrival time, leg count) search over a
// live timetable snapshot and walking graph, ported from
// `original_source/backend/mcraptor.py`'s McRAPTOR class into the
// teacher's array/typed-ID RAPTOR idiom
// (`internal/routing/raptor.go`'s round-indexed labels and
// `buildStopRoutesIndex`), generalized from single-criterion earliest
// arrival to two-criteria Pareto search.
package engine

import (
	"math"
	"sort"

	"github.com/cityrouter/transitlive/internal/directory"
	"github.com/cityrouter/transitlive/internal/terr"
	"github.com/cityrouter/transitlive/internal/transit"
	"github.com/cityrouter/transitlive/internal/walkgraph"
)

// DefaultMaxRounds is the spec default (5 rounds), distinct from the
// teacher's single-criterion RAPTOR's MaxRounds of 6.
const DefaultMaxRounds = 5

// walkSpeedMPS mirrors mcraptor.py's `walking_time_seconds * 1.4`
// estimated-distance conversion.
const walkSpeedMPS = 1.4

type vehicleRef struct {
	Route   transit.RouteID
	Vehicle transit.VehicleID
}

type labelKey struct {
	Stop transit.StopID
	Idx  int
}

// Engine holds one immutable timetable snapshot and walking graph,
// indexed once at construction so repeated Route calls reuse the
// stop->(route,vehicle) index the way mcraptor.py's __init__ does.
type Engine struct {
	timetable      transit.LiveTimetable
	walk           walkgraph.Graph
	dir            *directory.Directory
	maxWalkSeconds int
	maxRounds      int

	routesAtStop map[transit.StopID][]vehicleRef
}

// New builds an Engine over one timetable snapshot. maxWalkSeconds <=
// 0 falls back to walkgraph.DefaultMaxWalkSeconds; maxRounds <= 0
// falls back to DefaultMaxRounds.
func New(tt transit.LiveTimetable, walk walkgraph.Graph, dir *directory.Directory, maxWalkSeconds, maxRounds int) *Engine {
	if maxWalkSeconds <= 0 {
		maxWalkSeconds = walkgraph.DefaultMaxWalkSeconds
	}
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}

	e := &Engine{
		timetable:      tt,
		walk:           walk,
		dir:            dir,
		maxWalkSeconds: maxWalkSeconds,
		maxRounds:      maxRounds,
		routesAtStop:   make(map[transit.StopID][]vehicleRef),
	}

	seen := make(map[transit.StopID]map[vehicleRef]bool)
	for route, byVehicle := range tt {
		for vehicle, trip := range byVehicle {
			ref := vehicleRef{Route: route, Vehicle: vehicle}
			for _, st := range trip.Stops {
				if seen[st.StopID] == nil {
					seen[st.StopID] = make(map[vehicleRef]bool)
				}
				if !seen[st.StopID][ref] {
					seen[st.StopID][ref] = true
					e.routesAtStop[st.StopID] = append(e.routesAtStop[st.StopID], ref)
				}
			}
		}
	}

	return e
}

// Route runs McRAPTOR from origin to destination, departing no
// earlier than departureUnix, and returns every Pareto-optimal
// journey (by arrival time and leg count), sorted by (legs, arrival).
func (e *Engine) Route(origin, destination transit.StopID, departureUnix int64) ([]transit.Journey, error) {
	pareto := map[transit.StopID][]transit.ParetoLabel{
		origin: {{Arrival: departureUnix, Legs: 0}},
	}
	paths := map[labelKey]*transit.PathPointer{
		{origin, 0}: nil,
	}

	marked := map[transit.StopID]bool{origin: true}

	for _, edge := range e.walk.Neighbors(origin, e.maxWalkSeconds) {
		newTime := departureUnix + int64(edge.Seconds)
		pareto[edge.To] = []transit.ParetoLabel{{Arrival: newTime, Legs: 0}}
		paths[labelKey{edge.To, 0}] = &transit.PathPointer{
			PrevStop:     origin,
			PrevLabelIdx: 0,
			Kind:         transit.PathKindWalk,
			BoardOrDist:  float64(edge.Seconds) * walkSpeedMPS,
			AlightOrWalk: float64(edge.Seconds),
		}
		marked[edge.To] = true
	}

	for k := 1; k <= e.maxRounds; k++ {
		markedNext := make(map[transit.StopID]bool)

		routesToScan := make(map[vehicleRef]bool)
		for stop := range marked {
			for _, ref := range e.routesAtStop[stop] {
				routesToScan[ref] = true
			}
		}

		for ref := range routesToScan {
			e.scanRoute(ref, k, pareto, paths, markedNext)
		}

		walkingMarked := make(map[transit.StopID]bool)
		for stop := range markedNext {
			e.scanWalkTransfers(stop, k, pareto, paths, walkingMarked)
		}
		for s := range walkingMarked {
			markedNext[s] = true
		}

		marked = markedNext
		if len(marked) == 0 {
			break
		}
	}

	destLabels, ok := pareto[destination]
	if !ok || len(destLabels) == 0 {
		return nil, terr.ErrNoPath
	}

	results := make([]transit.Journey, 0, len(destLabels))
	for labelIdx, lbl := range destLabels {
		path := reconstructPath(destination, labelIdx, paths)
		results = append(results, transit.Journey{
			Arrival:     lbl.Arrival,
			Legs:        lbl.Legs,
			JourneyTime: lbl.Arrival - departureUnix,
			Path:        path,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Legs != results[j].Legs {
			return results[i].Legs < results[j].Legs
		}
		return results[i].Arrival < results[j].Arrival
	})

	return results, nil
}

func (e *Engine) scanRoute(ref vehicleRef, k int, pareto map[transit.StopID][]transit.ParetoLabel, paths map[labelKey]*transit.PathPointer, markedNext map[transit.StopID]bool) {
	byVehicle, ok := e.timetable[ref.Route]
	if !ok {
		return
	}
	trip, ok := byVehicle[ref.Vehicle]
	if !ok {
		return
	}
	stops := trip.Stops

	earliestBoardIdx := -1
	var earliestBoardStop transit.StopID
	var earliestBoardTime int64
	boardLabelIdx := -1

	for i, st := range stops {
		labels, ok := pareto[st.StopID]
		if !ok {
			continue
		}
		for labelIdx, lbl := range labels {
			if lbl.Arrival <= st.ArrivalUnix && lbl.Legs == k-1 {
				if earliestBoardIdx == -1 || i < earliestBoardIdx {
					earliestBoardTime = st.ArrivalUnix
					earliestBoardStop = st.StopID
					earliestBoardIdx = i
					boardLabelIdx = labelIdx
				}
			}
		}
	}

	if earliestBoardIdx == -1 {
		return
	}

	for i := earliestBoardIdx + 1; i < len(stops); i++ {
		st := stops[i]
		if st.ArrivalUnix < earliestBoardTime {
			continue
		}

		newLabel := transit.ParetoLabel{Arrival: st.ArrivalUnix, Legs: k}
		if isDominated(newLabel, pareto[st.StopID]) {
			continue
		}
		pareto[st.StopID] = addToParetoSet(newLabel, pareto[st.StopID])
		labelIdx := len(pareto[st.StopID]) - 1
		paths[labelKey{st.StopID, labelIdx}] = &transit.PathPointer{
			PrevStop:     earliestBoardStop,
			PrevLabelIdx: boardLabelIdx,
			Kind:         string(ref.Route),
			Vehicle:      ref.Vehicle,
			BoardOrDist:  float64(earliestBoardTime),
			AlightOrWalk: float64(st.ArrivalUnix),
		}
		markedNext[st.StopID] = true
	}
}

func (e *Engine) scanWalkTransfers(stop transit.StopID, k int, pareto map[transit.StopID][]transit.ParetoLabel, paths map[labelKey]*transit.PathPointer, walkingMarked map[transit.StopID]bool) {
	for _, edge := range e.walk.Neighbors(stop, e.maxWalkSeconds) {
		bestTime := int64(math.MaxInt64)
		bestLabelIdx := -1
		for labelIdx, lbl := range pareto[stop] {
			if lbl.Legs == k && lbl.Arrival < bestTime {
				bestTime = lbl.Arrival
				bestLabelIdx = labelIdx
			}
		}
		if bestLabelIdx < 0 {
			continue
		}

		newTime := bestTime + int64(edge.Seconds)
		newLabel := transit.ParetoLabel{Arrival: newTime, Legs: k}
		if isDominated(newLabel, pareto[edge.To]) {
			continue
		}
		pareto[edge.To] = addToParetoSet(newLabel, pareto[edge.To])
		newIdx := len(pareto[edge.To]) - 1
		paths[labelKey{edge.To, newIdx}] = &transit.PathPointer{
			PrevStop:     stop,
			PrevLabelIdx: bestLabelIdx,
			Kind:         transit.PathKindWalk,
			BoardOrDist:  float64(edge.Seconds) * walkSpeedMPS,
			AlightOrWalk: float64(edge.Seconds),
		}
		walkingMarked[edge.To] = true
	}
}

// isDominated reports whether any label already in set dominates the
// candidate (mcraptor.py's is_pareto_dominated).
func isDominated(candidate transit.ParetoLabel, set []transit.ParetoLabel) bool {
	for _, existing := range set {
		if existing.Dominates(candidate) {
			return true
		}
	}
	return false
}

// addToParetoSet drops every member the candidate itself dominates,
// then appends it (mcraptor.py's add_to_pareto_set).
func addToParetoSet(candidate transit.ParetoLabel, set []transit.ParetoLabel) []transit.ParetoLabel {
	next := make([]transit.ParetoLabel, 0, len(set)+1)
	for _, existing := range set {
		if !candidate.Dominates(existing) {
			next = append(next, existing)
		}
	}
	return append(next, candidate)
}

// reconstructPath walks the path-pointer chain from (stop, labelIdx)
// back to its root, then reverses and merges consecutive walk
// segments into one, matching mcraptor.py's reconstruct_path.
func reconstructPath(stop transit.StopID, labelIdx int, paths map[labelKey]*transit.PathPointer) []transit.Segment {
	var raw []transit.Segment

	curStop, curIdx := stop, labelIdx
	for {
		ptr, ok := paths[labelKey{curStop, curIdx}]
		if !ok || ptr == nil {
			break
		}

		if ptr.Kind == transit.PathKindWalk {
			raw = append(raw, transit.Segment{
				Type:       "walk",
				FromStop:   ptr.PrevStop,
				ToStop:     curStop,
				WalkMeters: ptr.BoardOrDist,
				WalkSecs:   int64(ptr.AlightOrWalk),
			})
		} else {
			raw = append(raw, transit.Segment{
				Type:       "trip",
				FromStop:   ptr.PrevStop,
				ToStop:     curStop,
				RouteID:    transit.RouteID(ptr.Kind),
				VehicleID:  ptr.Vehicle,
				BoardUnix:  int64(ptr.BoardOrDist),
				AlightUnix: int64(ptr.AlightOrWalk),
			})
		}

		curStop, curIdx = ptr.PrevStop, ptr.PrevLabelIdx
	}

	for i, j := 0, len(raw)-1; i < j; i, j = i+1, j-1 {
		raw[i], raw[j] = raw[j], raw[i]
	}

	return mergeWalkSegments(raw)
}

// mergeWalkSegments collapses runs of consecutive walk segments into
// one, so a multi-hop walking transfer reads as a single leg.
func mergeWalkSegments(segs []transit.Segment) []transit.Segment {
	merged := make([]transit.Segment, 0, len(segs))
	i := 0
	for i < len(segs) {
		seg := segs[i]
		if seg.Type != "walk" {
			merged = append(merged, seg)
			i++
			continue
		}

		j := i + 1
		for j < len(segs) && segs[j].Type == "walk" {
			seg.ToStop = segs[j].ToStop
			seg.WalkMeters += segs[j].WalkMeters
			seg.WalkSecs += segs[j].WalkSecs
			j++
		}
		merged = append(merged, seg)
		i = j
	}
	return merged
}

// StopName resolves a stop's display name for path enrichment.
func (e *Engine) StopName(id transit.StopID) string {
	if e.dir == nil {
		return string(id)
	}
	return e.dir.Name(id)
}

// TripStops returns one trip's full calling-point list, for enriching
// a ride segment with its intermediate stops (full_api.py's
// `raptor.get_trip_stops`).
func (e *Engine) TripStops(route transit.RouteID, vehicle transit.VehicleID) []transit.StopTime {
	byVehicle, ok := e.timetable[route]
	if !ok {
		return nil
	}
	trip, ok := byVehicle[vehicle]
	if !ok {
		return nil
	}
	return trip.Stops
}
