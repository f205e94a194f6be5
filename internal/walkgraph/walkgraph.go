// Package walkgraph implements component B, the Walking Graph: a
// static, read-only lookup of pedestrian transfer times between
// nearby stops, loaded once from the JSON file a separate offline
// builder produces (`original_source/backend/walkingdist.py`'s bucketed
// OSRM Table API builder is explicitly out of scope here; this package
// only parses its output format).
package walkgraph

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/cityrouter/transitlive/internal/transit"
)

// DefaultMaxWalkSeconds is the `max_walking_distance` default
// `mcraptor.py`'s constructor documents (600 seconds), kept as the
// package-level default transfer cutoff when a caller passes 0.
const DefaultMaxWalkSeconds = 600

// WalkEdge is one pedestrian transfer candidate.
type WalkEdge struct {
	To      transit.StopID
	Seconds int
}

// Graph is the full set of pairwise walking times, symmetric by
// construction (the builder emits both directions; Load does not
// assume symmetry and trusts the file as given).
type Graph struct {
	edges map[transit.StopID]map[transit.StopID]int
}

// Load reads the walking-distances JSON file: an object of objects,
// `{stopId: {otherStopId: seconds, ...}, ...}`.
func Load(path string) (Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Graph{}, fmt.Errorf("walkgraph: read %s: %w", path, err)
	}

	var raw map[string]map[string]int
	if err := json.Unmarshal(data, &raw); err != nil {
		return Graph{}, fmt.Errorf("walkgraph: parse %s: %w", path, err)
	}

	edges := make(map[transit.StopID]map[transit.StopID]int, len(raw))
	for from, neighbors := range raw {
		m := make(map[transit.StopID]int, len(neighbors))
		for to, secs := range neighbors {
			m[transit.StopID(to)] = secs
		}
		edges[transit.StopID(from)] = m
	}
	return Graph{edges: edges}, nil
}

// Neighbors returns every stop reachable on foot from id within
// maxWalk seconds. maxWalk <= 0 means DefaultMaxWalkSeconds.
func (g Graph) Neighbors(id transit.StopID, maxWalk int) []WalkEdge {
	if maxWalk <= 0 {
		maxWalk = DefaultMaxWalkSeconds
	}
	neighbors := g.edges[id]
	if len(neighbors) == 0 {
		return nil
	}

	out := make([]WalkEdge, 0, len(neighbors))
	for to, secs := range neighbors {
		if secs <= maxWalk {
			out = append(out, WalkEdge{To: to, Seconds: secs})
		}
	}
	return out
}

// Seconds returns the walking time between two stops and whether an
// edge exists at all (regardless of any maxWalk cutoff).
func (g Graph) Seconds(from, to transit.StopID) (int, bool) {
	secs, ok := g.edges[from][to]
	return secs, ok
}

// Len reports how many stops have at least one recorded walking edge.
func (g Graph) Len() int { return len(g.edges) }
