// Package statictt implements component C, the Static Timetable Store:
// read-only route-pattern/schedule data loaded from the per-mode JSON
// files (`tube_timetable.json`, `bus_timetable.json`,
// `tram_timetable.json`) that the ingestors align live observations
// against.
package statictt

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/cityrouter/transitlive/internal/transit"
)

// IntervalStop is one (stop, minute-offset-from-interval-start) pair
// within an Interval.
type IntervalStop struct {
	StopID       transit.StopID
	MinuteOffset int
}

// Interval is an ordered run of stops belonging to one route pattern.
type Interval struct {
	ID    int
	Stops []IntervalStop
}

// ScheduledStart is one entry of a per-weekday schedule: which interval
// runs, and at what minute-of-day it starts.
type ScheduledStart struct {
	IntervalID   int
	StartMinutes int
}

// RoutePattern is everything known about one (line, direction,
// start-stop, end-stop) combination: the stop intervals making it up,
// the per-weekday schedule of when each interval starts, and (for
// modes that synthesize future trips) the raw list of daily start
// times.
type RoutePattern struct {
	Line      string
	Direction string
	Start     transit.StopID
	End       transit.StopID

	Intervals  []Interval
	Schedules  map[string][]ScheduledStart // weekday name -> starts
	StartTimes []int                       // minutes since midnight
}

// Store is the read-only, in-memory set of route patterns for one
// mode's timetable file, keyed by line and direction.
type Store struct {
	byLineDirection map[string]map[string]map[string]RoutePattern // line -> direction -> "start:end" -> pattern
}

type rawFile map[string]map[string]map[string]rawPattern

type rawPattern struct {
	Intervals  json.RawMessage     `json:"intervals"`
	Schedules  map[string][][2]int `json:"schedules"`
	StartTimes []int               `json:"start_times"`
}

// Load reads one mode's timetable JSON file and builds its Store.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("statictt: read %s: %w", path, err)
	}

	var raw rawFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("statictt: parse %s: %w", path, err)
	}

	store := &Store{byLineDirection: make(map[string]map[string]map[string]RoutePattern)}

	for line, directions := range raw {
		store.byLineDirection[line] = make(map[string]map[string]RoutePattern)
		for direction, keyed := range directions {
			patterns := make(map[string]RoutePattern, len(keyed))
			for key, rp := range keyed {
				pattern, err := buildPattern(line, direction, key, rp)
				if err != nil {
					return nil, fmt.Errorf("statictt: %s/%s/%s: %w", line, direction, key, err)
				}
				patterns[key] = pattern
			}
			store.byLineDirection[line][direction] = patterns
		}
	}

	return store, nil
}

func buildPattern(line, direction, key string, rp rawPattern) (RoutePattern, error) {
	start, end, err := splitKey(key)
	if err != nil {
		return RoutePattern{}, err
	}

	intervals, err := parseIntervals(rp.Intervals)
	if err != nil {
		return RoutePattern{}, err
	}

	schedules := make(map[string][]ScheduledStart, len(rp.Schedules))
	for weekday, entries := range rp.Schedules {
		starts := make([]ScheduledStart, 0, len(entries))
		for _, e := range entries {
			starts = append(starts, ScheduledStart{IntervalID: e[0], StartMinutes: e[1]})
		}
		schedules[weekday] = starts
	}

	return RoutePattern{
		Line:       line,
		Direction:  direction,
		Start:      transit.StopID(start),
		End:        transit.StopID(end),
		Intervals:  intervals,
		Schedules:  schedules,
		StartTimes: rp.StartTimes,
	}, nil
}

// parseIntervals accepts both JSON shapes the two timetable families
// use: bus/tram's flat `[[stopId, offset], ...]` (a single implicit
// interval 0), and tube's nested `[[[stopId, offset], ...], ...]`
// (multiple named-by-position route-pattern variants, matched against
// live schedule entries' intervalId).
func parseIntervals(raw json.RawMessage) ([]Interval, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	// A nested list also decodes into [][2]any without error (extra
	// elements are dropped), so only accept the flat reading when its
	// pairs actually parse; otherwise try the nested shape.
	var flat [][2]any
	if err := json.Unmarshal(raw, &flat); err == nil {
		if stops, err := parseIntervalPairs(flat); err == nil {
			return []Interval{{ID: 0, Stops: stops}}, nil
		}
	}

	var nested [][][2]any
	if err := json.Unmarshal(raw, &nested); err != nil {
		return nil, fmt.Errorf("intervals is neither a flat nor nested pair list: %w", err)
	}
	intervals := make([]Interval, 0, len(nested))
	for i, pairs := range nested {
		stops, err := parseIntervalPairs(pairs)
		if err != nil {
			return nil, err
		}
		intervals = append(intervals, Interval{ID: i, Stops: stops})
	}
	return intervals, nil
}

func parseIntervalPairs(pairs [][2]any) ([]IntervalStop, error) {
	stops := make([]IntervalStop, 0, len(pairs))
	for _, pair := range pairs {
		stopID, offset, err := parseIntervalPair(pair)
		if err != nil {
			return nil, err
		}
		stops = append(stops, IntervalStop{StopID: stopID, MinuteOffset: offset})
	}
	return stops, nil
}

func splitKey(key string) (start, end string, err error) {
	parts := strings.SplitN(key, ":", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("malformed pattern key %q, want \"start:end\"", key)
	}
	return parts[0], parts[1], nil
}

func parseIntervalPair(pair [2]any) (transit.StopID, int, error) {
	stopRaw, ok := pair[0].(string)
	if !ok {
		return "", 0, fmt.Errorf("interval stop id is not a string: %v", pair[0])
	}
	offsetRaw, ok := pair[1].(float64)
	if !ok {
		return "", 0, fmt.Errorf("interval minute offset is not a number: %v", pair[1])
	}
	return transit.StopID(stopRaw), int(offsetRaw), nil
}

// Pattern looks up the route pattern for (line, direction, start, end).
func (s *Store) Pattern(line, direction string, start, end transit.StopID) (RoutePattern, bool) {
	key := string(start) + ":" + string(end)
	p, ok := s.byLineDirection[line][direction][key]
	return p, ok
}

// PatternsForLine returns every pattern known for (line, direction),
// used by the bus ingestor's single-pattern alignment and by the bus
// and tram future-trip synthesis.
func (s *Store) PatternsForLine(line, direction string) []RoutePattern {
	byKey := s.byLineDirection[line][direction]
	out := make([]RoutePattern, 0, len(byKey))
	for _, p := range byKey {
		out = append(out, p)
	}
	return out
}

// AllPatterns returns every pattern for a line across every direction,
// keyed by its "start:end" route code — the shape the tube ingestor
// needs, since `tube_timetable.json` routeCodes are not partitioned by
// direction the way bus/tram route codes are.
func (s *Store) AllPatterns(line string) map[string]RoutePattern {
	out := make(map[string]RoutePattern)
	for _, byKey := range s.byLineDirection[line] {
		for key, p := range byKey {
			out[key] = p
		}
	}
	return out
}

// Interval returns the interval with the given id within a pattern.
func (p RoutePattern) Interval(id int) (Interval, bool) {
	for _, iv := range p.Intervals {
		if iv.ID == id {
			return iv, true
		}
	}
	return Interval{}, false
}

// Directions reports every direction name known for a line.
func (s *Store) Directions(line string) []string {
	byDirection := s.byLineDirection[line]
	out := make([]string, 0, len(byDirection))
	for direction := range byDirection {
		out = append(out, direction)
	}
	return out
}

// Lines reports every line name this store has patterns for.
func (s *Store) Lines() []string {
	lines := make([]string, 0, len(s.byLineDirection))
	for line := range s.byLineDirection {
		lines = append(lines, line)
	}
	return lines
}
