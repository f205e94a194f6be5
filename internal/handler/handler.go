// Package handler implements component J's HTTP surface: the chi
// handlers for /api/search and /api/route, ported from
// `original_source/backend/full_api.py`'s `search_stops` and `route()`
// onto the Go Stop Directory/engine stack, in the teacher's
// `json.NewEncoder(w).Encode(...)` / `http.Error(w, ...)` style
// (`KhalidEchchahid-transit-app`'s transport_handler.go).
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/cityrouter/transitlive/internal/config"
	"github.com/cityrouter/transitlive/internal/directory"
	"github.com/cityrouter/transitlive/internal/engine"
	"github.com/cityrouter/transitlive/internal/geo"
	"github.com/cityrouter/transitlive/internal/models"
	"github.com/cityrouter/transitlive/internal/refresh"
	"github.com/cityrouter/transitlive/internal/repository"
	"github.com/cityrouter/transitlive/internal/terr"
	"github.com/cityrouter/transitlive/internal/transit"
	"github.com/cityrouter/transitlive/internal/walkgraph"
)

// busColor/defaultColor match full_api.py's hardcoded '#ef4444' /
// '#3b82f6' cosmetic fallbacks.
const (
	busColor     = "#ef4444"
	defaultColor = "#3b82f6"
)

// tubeColors is TUBE_COLORS, the line-code -> hex map full_api.py uses
// to both recognize a route id as a tube line and colour it.
var tubeColors = map[string]string{
	"bakerloo":         "#B36305",
	"central":          "#E32017",
	"circle":           "#FFD300",
	"district":         "#00782A",
	"hammersmith-city": "#F3A9BB",
	"jubilee":          "#A0A5A9",
	"metropolitan":     "#9B0056",
	"northern":         "#000000",
	"piccadilly":       "#003688",
	"victoria":         "#0098D4",
	"waterloo-city":    "#95CDBA",
}

// railColors is RAIL_COLORS, keyed by train operator name.
var railColors = map[string]string{
	"Southeastern":       "#1E1E50",
	"Southern":           "#003F2E",
	"Thameslink":         "#E9418B",
	"London Overground":  "#EE7C0E",
	"Elizabeth Line":     "#6E4C9F",
}

var titleCaser = cases.Title(language.English)

// Handler wires the journey engine, stop directory and repository into
// chi-compatible HTTP handlers. One Handler serves the process
// lifetime; each request builds a fresh engine.Engine over the
// currently published Snapshot, matching the scheduler's "readers load
// one Snapshot per request" model (§5).
type Handler struct {
	scheduler *refresh.Scheduler
	dir       *directory.Directory
	repo      *repository.Repository
	walk      walkgraph.Graph
	router    geo.Router
	cfg       *config.Config
}

func New(scheduler *refresh.Scheduler, dir *directory.Directory, repo *repository.Repository, walk walkgraph.Graph, router geo.Router, cfg *config.Config) *Handler {
	if router == nil {
		router = geo.StraightLineRouter{}
	}
	return &Handler{scheduler: scheduler, dir: dir, repo: repo, walk: walk, router: router, cfg: cfg}
}

// --- /api/search -----------------------------------------------------

type searchLine struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Type  string `json:"type"`
}

type searchResult struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Lat       float64      `json:"lat"`
	Lng       float64      `json:"lng"`
	Mode      string       `json:"mode"`
	Lines     []searchLine `json:"lines"`
	lineCount int
}

// Search handles GET /api/search?q=..., matching search_stops: a
// case-insensitive substring match on stop name, enriched with the
// lines serving each stop and deduplicated by name.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if len(query) < 2 {
		writeJSON(w, []searchResult{})
		return
	}

	stops, err := h.repo.SearchStops(r.Context(), query)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var all []searchResult
	for _, stop := range stops {
		lines, lineCount, err := h.linesForStop(r.Context(), stop)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		all = append(all, searchResult{
			ID:        stop.ID,
			Name:      stop.Name,
			Lat:       stop.Lat,
			Lng:       stop.Lon,
			Mode:      stop.Mode,
			Lines:     lines,
			lineCount: lineCount,
		})
	}

	results := dedupByName(all)

	sort.SliceStable(results, func(i, j int) bool {
		pi, pj := searchPriority(results[i].Mode), searchPriority(results[j].Mode)
		if pi != pj {
			return pi < pj
		}
		return results[i].lineCount > results[j].lineCount
	})

	if len(results) > 20 {
		results = results[:20]
	}
	writeJSON(w, results)
}

// linesForStop groups a stop's outgoing connections by line id and
// classifies each line's type/colour from its destinations' modes,
// matching search_stops's per-line connection-mode ladder.
func (h *Handler) linesForStop(ctx context.Context, stop models.Point) ([]searchLine, int, error) {
	conns, err := h.repo.ConnectionsFrom(ctx, stop.ID)
	if err != nil {
		return nil, 0, err
	}

	byLine := make(map[string][]models.Connection)
	var lineIDs []string
	for _, c := range conns {
		if _, ok := byLine[c.LineID]; !ok {
			lineIDs = append(lineIDs, c.LineID)
		}
		byLine[c.LineID] = append(byLine[c.LineID], c)
	}
	sort.Strings(lineIDs)

	var lines []searchLine
	for _, lineID := range lineIDs {
		destConns := byLine[lineID]
		if len(destConns) > 10 {
			destConns = destConns[:10]
		}
		modes := make(map[string]bool)
		for _, c := range destConns {
			if m := h.dir.Mode(transit.StopID(c.DestinationID)); m != "" {
				modes[m] = true
			}
		}
		lines = append(lines, classifyLine(lineID, modes, stop.Mode, h.dir))
	}

	if len(lines) > 10 {
		lines = lines[:10]
	}
	return lines, len(lineIDs), nil
}

// classifyLine mirrors search_stops's per-line ladder: bus destination
// modes win outright, then rail, then tube, with a final fallback keyed
// off the stop's own mode when no destination mode was observed at all.
func classifyLine(lineID string, modes map[string]bool, stopMode string, dir *directory.Directory) searchLine {
	switch {
	case modes["bus"]:
		return searchLine{ID: strings.ToUpper(lineID), Name: strings.ToUpper(lineID), Color: busColor, Type: "bus"}
	case modes["rail"]:
		name, color := railLineInfoStatic(lineID, dir)
		return searchLine{ID: lineID, Name: name, Color: color, Type: "rail"}
	case modes["tube"] || modes["underground"]:
		if name, color, ok := tubeLineInfo(lineID); ok {
			return searchLine{ID: lineID, Name: name, Color: color, Type: "tube"}
		}
		return searchLine{ID: strings.ToUpper(lineID), Name: strings.ToUpper(lineID), Color: busColor, Type: "bus"}
	case len(modes) == 0:
		if name, color, ok := tubeLineInfo(lineID); ok {
			return searchLine{ID: lineID, Name: name, Color: color, Type: "tube"}
		}
		if stopMode == "bus" {
			return searchLine{ID: strings.ToUpper(lineID), Name: strings.ToUpper(lineID), Color: busColor, Type: "bus"}
		}
		if stopMode == "rail" {
			return searchLine{ID: strings.ToUpper(lineID), Name: strings.ToUpper(lineID), Color: defaultColor, Type: "rail"}
		}
		return searchLine{ID: strings.ToUpper(lineID), Name: strings.ToUpper(lineID), Color: busColor, Type: "bus"}
	default:
		return searchLine{ID: strings.ToUpper(lineID), Name: strings.ToUpper(lineID), Color: busColor, Type: "bus"}
	}
}

// railLineInfoStatic resolves a bare line id (not the rail ingestor's
// "<operator>/<destCRS>" route id shape) to a display name/colour,
// matching get_rail_line_info's single-token branch.
func railLineInfoStatic(lineID string, dir *directory.Directory) (string, string) {
	for operator, color := range railColors {
		if strings.EqualFold(operator, lineID) {
			return lineID, color
		}
	}
	return lineID, defaultColor
}

func dedupByName(all []searchResult) []searchResult {
	best := make(map[string]searchResult)
	order := make([]string, 0, len(all))
	for _, r := range all {
		existing, ok := best[r.Name]
		if !ok {
			best[r.Name] = r
			order = append(order, r.Name)
			continue
		}
		isRail := r.Mode == "rail"
		existingIsRail := existing.Mode == "rail"
		switch {
		case isRail && !existingIsRail:
			best[r.Name] = r
		case !isRail && existingIsRail:
			// keep existing
		case r.lineCount > existing.lineCount:
			best[r.Name] = r
		}
	}
	out := make([]searchResult, 0, len(order))
	for _, name := range order {
		out = append(out, best[name])
	}
	return out
}

func searchPriority(mode string) int {
	m := strings.ToLower(mode)
	if strings.Contains(m, "underground") || strings.Contains(m, "tube") || m == "rail" {
		return 0
	}
	return 1
}

// --- /api/route --------------------------------------------------------

type routeRequest struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	Departure   int64  `json:"departure,omitempty"`
}

type stopRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Time int64  `json:"time"`
}

type segmentResponse struct {
	Type        string       `json:"type"`
	From        string       `json:"from"`
	To          string       `json:"to"`
	FromID      string       `json:"from_id"`
	ToID        string       `json:"to_id"`
	StartTime   int64        `json:"start_time"`
	EndTime     int64        `json:"end_time"`
	Route       string       `json:"route,omitempty"`
	Vehicle     string       `json:"vehicle,omitempty"`
	Mode        string       `json:"mode,omitempty"`
	LineColor   string       `json:"line_color,omitempty"`
	TubeLine    string       `json:"tube_line,omitempty"`
	RailLine    string       `json:"rail_line,omitempty"`
	Platform    string       `json:"platform,omitempty"`
	Stops       []stopRef    `json:"stops,omitempty"`
	Coordinates [][2]float64 `json:"coordinates"`
	Duration    int          `json:"duration"`
	Distance    float64      `json:"distance"`
}

type routeResponse struct {
	JourneyTime    int64             `json:"journey_time"`
	JourneyMinutes int64             `json:"journey_minutes"`
	NumLegs        int               `json:"num_legs"`
	ArrivalTime    int64             `json:"arrival_time"`
	DepartureTime  int64             `json:"departure_time"`
	Segments       []segmentResponse `json:"segments"`
}

// Route handles POST /api/route, matching route()'s JSON-body
// origin/destination stop ids and per-segment enrichment.
func (h *Handler) Route(w http.ResponseWriter, r *http.Request) {
	var req routeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, terr.ErrInvalidRequest)
		return
	}
	if req.Origin == "" || req.Destination == "" {
		writeError(w, terr.ErrInvalidRequest)
		return
	}

	departure := req.Departure
	if departure == 0 {
		departure = time.Now().Unix()
	}

	snap := h.scheduler.Snapshot()
	eng := engine.New(snap.Timetable, h.walk, h.dir, h.cfg.MaxWalkSeconds, h.cfg.MaxRounds)

	journeys, err := eng.Route(transit.StopID(req.Origin), transit.StopID(req.Destination), departure)
	if err != nil {
		writeError(w, err)
		return
	}

	best := journeys[0]
	segments := make([]segmentResponse, 0, len(best.Path))
	currentTime := departure
	for _, seg := range best.Path {
		segResp, next := h.buildSegment(eng, snap, seg, currentTime)
		currentTime = next
		segments = append(segments, segResp)
	}

	writeJSON(w, routeResponse{
		JourneyTime:    best.JourneyTime,
		JourneyMinutes: best.JourneyTime / 60,
		NumLegs:        best.Legs,
		ArrivalTime:    best.Arrival,
		DepartureTime:  departure,
		Segments:       segments,
	})
}

// buildSegment enriches one reconstructed leg into its response shape
// and returns the wall-clock time the next segment starts at. Ride
// segments carry the engine's own board/alight times; walk segments
// have no absolute timestamps (only a duration), so they advance from
// whatever the previous segment left off, matching route()'s running
// current_time accumulator.
func (h *Handler) buildSegment(eng *engine.Engine, snap *transit.Snapshot, seg transit.Segment, currentTime int64) (segmentResponse, int64) {
	resp := segmentResponse{
		Type:   seg.Type,
		From:   eng.StopName(seg.FromStop),
		To:     eng.StopName(seg.ToStop),
		FromID: string(seg.FromStop),
		ToID:   string(seg.ToStop),
	}

	fromLL, fromOK := h.coord(seg.FromStop)
	toLL, toOK := h.coord(seg.ToStop)

	if seg.Type == "walk" {
		resp.StartTime = currentTime
		resp.EndTime = currentTime + seg.WalkSecs
		route := geo.Straighten(fromLL, toLL)
		if fromOK && toOK {
			if r, err := h.router.Walk(fromLL, toLL); err == nil {
				route = r
			}
		}
		resp.Coordinates = toLeafletCoords(route.Coordinates)
		resp.Duration = route.DurationSec
		resp.Distance = route.DistanceM
		return resp, resp.EndTime
	}

	resp.StartTime = seg.BoardUnix
	resp.EndTime = seg.AlightUnix
	resp.Route = string(seg.RouteID)
	resp.Vehicle = string(seg.VehicleID)

	originMode := h.dir.Mode(seg.FromStop)
	destMode := h.dir.Mode(seg.ToStop)
	h.classifySegment(&resp, seg, originMode, destMode, snap)

	if fromOK && toOK {
		straight := geo.Straighten(fromLL, toLL)
		resp.Coordinates = toLeafletCoords(straight.Coordinates)
		resp.Distance = straight.DistanceM
	}
	resp.Duration = int(seg.AlightUnix - seg.BoardUnix)

	if stops := eng.TripStops(seg.RouteID, seg.VehicleID); len(stops) > 0 {
		resp.Stops = intermediateStops(eng, stops, seg.FromStop, seg.ToStop)
	}

	return resp, resp.EndTime
}

// classifySegment mirrors route()'s mode/colour ladder: bus stops win
// first, then tube, then rail (restricted to rail-shaped route ids),
// then a last-resort tube/rail/bus fallback classification from the
// route id alone.
func (h *Handler) classifySegment(resp *segmentResponse, seg transit.Segment, originMode, destMode string, snap *transit.Snapshot) {
	switch {
	case originMode == "bus" || destMode == "bus":
		resp.Mode = "bus"
		resp.LineColor = busColor
	case isTubeMode(originMode) || isTubeMode(destMode):
		if name, color, ok := tubeLineInfo(string(seg.RouteID)); ok {
			resp.Mode = "tube"
			resp.TubeLine = name
			resp.LineColor = color
		} else {
			resp.Mode = "bus"
			resp.LineColor = busColor
		}
	case (originMode == "rail" || destMode == "rail") && isRailRoute(seg.RouteID):
		name, color := h.railLineInfo(string(seg.RouteID))
		resp.Mode = "rail"
		resp.RailLine = name
		resp.LineColor = color
		key := string(seg.VehicleID) + "/" + string(seg.FromStop)
		if platform, ok := snap.Platforms[key]; ok {
			resp.Platform = platform
		} else {
			resp.Platform = "?"
		}
	default:
		if name, color, ok := tubeLineInfo(string(seg.RouteID)); ok {
			resp.Mode = "tube"
			resp.TubeLine = name
			resp.LineColor = color
		} else if isRailRoute(seg.RouteID) {
			name, color := h.railLineInfo(string(seg.RouteID))
			resp.Mode = "rail"
			resp.RailLine = name
			resp.LineColor = color
		} else {
			resp.Mode = "bus"
			resp.LineColor = busColor
		}
	}
}

func isTubeMode(mode string) bool {
	return mode == "tube" || mode == "underground"
}

// isRailRoute reports whether a route id has the rail ingestor's
// synthesized "<operator>/<destCRS>" shape, used in place of the
// source's separately-tracked RAIL_ROUTES set.
func isRailRoute(id transit.RouteID) bool {
	return strings.Contains(string(id), "/")
}

func tubeLineInfo(routeID string) (name, color string, ok bool) {
	lower := strings.ToLower(routeID)
	color, ok = tubeColors[lower]
	if !ok {
		return "", "", false
	}
	return titleCaser.String(strings.ReplaceAll(lower, "-", " ")), color, true
}

func (h *Handler) railLineInfo(routeID string) (name, color string) {
	parts := strings.SplitN(routeID, "/", 2)
	if len(parts) < 2 {
		return routeID, defaultColor
	}
	operator, destCRS := parts[0], parts[1]
	destName := h.dir.Name(transit.StopID(destCRS))
	color, ok := railColors[operator]
	if !ok {
		color = defaultColor
	}
	return operator + "/" + destName, color
}

// intermediateStops slices a trip's full calling-point list down to
// the board->alight range the segment covers, reversing if the trip
// traverses the stops in the opposite order.
func intermediateStops(eng *engine.Engine, stops []transit.StopTime, from, to transit.StopID) []stopRef {
	boardIdx, alightIdx := -1, -1
	for i, st := range stops {
		if st.StopID == from {
			boardIdx = i
		}
		if st.StopID == to {
			alightIdx = i
		}
	}
	if boardIdx == -1 || alightIdx == -1 {
		return nil
	}

	var segment []transit.StopTime
	if boardIdx < alightIdx {
		segment = stops[boardIdx : alightIdx+1]
	} else {
		segment = make([]transit.StopTime, boardIdx-alightIdx+1)
		copy(segment, stops[alightIdx:boardIdx+1])
		for i, j := 0, len(segment)-1; i < j; i, j = i+1, j-1 {
			segment[i], segment[j] = segment[j], segment[i]
		}
	}

	out := make([]stopRef, 0, len(segment))
	for _, st := range segment {
		out = append(out, stopRef{ID: string(st.StopID), Name: eng.StopName(st.StopID), Time: st.ArrivalUnix})
	}
	return out
}

func (h *Handler) coord(id transit.StopID) (geo.LatLon, bool) {
	lon, lat, ok := h.dir.Coord(id)
	if !ok {
		return geo.LatLon{}, false
	}
	return geo.LatLon{Lat: lat, Lon: lon}, true
}

func toLeafletCoords(points []geo.LatLon) [][2]float64 {
	out := make([][2]float64, 0, len(points))
	for _, p := range points {
		out = append(out, [2]float64{p.Lat, p.Lon})
	}
	return out
}

// writeError maps the terr taxonomy to HTTP status codes (§7):
// ErrInvalidRequest -> 400, ErrNoPath -> 404, anything else -> 500.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, terr.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, terr.ErrNoPath):
		status = http.StatusNotFound
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
