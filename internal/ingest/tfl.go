// Package ingest implements components D, E and F: the bus, tube and
// rail live-prediction ingestors that the refresh scheduler (component
// I) runs every cycle and hands to the timetable facade (component G).
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cityrouter/transitlive/internal/terr"
	"github.com/cityrouter/transitlive/internal/transit"
)

// Arrival is one TfL `Mode/{mode}/Arrivals` prediction, the subset of
// fields the bus/tube ingestors consume.
type Arrival struct {
	LineID              string `json:"lineId"`
	VehicleID           string `json:"vehicleId"`
	NaptanID            string `json:"naptanId"`
	Direction           string `json:"direction"`
	DestinationNaptanID string `json:"destinationNaptanId"`
	Towards             string `json:"towards"`
	ExpectedArrival     string `json:"expectedArrival"`
}

// FetchArrivals calls `GET {baseURL}/Mode/{mode}/Arrivals?count=-1`
// with the TfL bearer token and decodes the JSON array of predictions.
func FetchArrivals(ctx context.Context, client *http.Client, baseURL, mode, apiKey string) ([]Arrival, error) {
	url := fmt.Sprintf("%s/Mode/%s/Arrivals?count=-1", baseURL, mode)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ingest: build request: %w", err)
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s arrivals: %v", terr.ErrUpstreamUnavailable, mode, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s arrivals returned %d", terr.ErrUpstreamUnavailable, mode, resp.StatusCode)
	}

	var arrivals []Arrival
	if err := json.NewDecoder(resp.Body).Decode(&arrivals); err != nil {
		return nil, fmt.Errorf("%w: decode %s arrivals: %v", terr.ErrUpstreamUnavailable, mode, err)
	}
	return arrivals, nil
}

// tflTimeLayouts covers both the with- and without-fractional-seconds
// forms TfL emits across modes ("...Z" and "....%fZ").
var tflTimeLayouts = []string{
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05Z",
}

// ParseTFLTime parses a TfL `expectedArrival` timestamp, trying the
// fractional-seconds form first since that's what tube/tram emit.
func ParseTFLTime(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range tflTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, fmt.Errorf("%w: unparseable timestamp %q: %v", terr.ErrParseFailure, s, lastErr)
}

// firstWord lowercases and returns the first space-delimited token of
// s, mirroring `towards.split(" ")[0].strip().lower()`.
func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}

// Result is the per-ingestor output the timetable facade merges.
type Result struct {
	Trips     map[transit.RouteID]map[transit.VehicleID]*transit.Trip
	Platforms transit.PlatformMap
}

func newResult() Result {
	return Result{
		Trips:     make(map[transit.RouteID]map[transit.VehicleID]*transit.Trip),
		Platforms: make(transit.PlatformMap),
	}
}

func (r Result) addStop(route transit.RouteID, vehicle transit.VehicleID, stop transit.StopID, arrivalUnix int64) {
	byVehicle, ok := r.Trips[route]
	if !ok {
		byVehicle = make(map[transit.VehicleID]*transit.Trip)
		r.Trips[route] = byVehicle
	}
	trip, ok := byVehicle[vehicle]
	if !ok {
		trip = &transit.Trip{RouteID: route, VehicleID: vehicle}
		byVehicle[vehicle] = trip
	}
	trip.Stops = append(trip.Stops, transit.StopTime{StopID: stop, ArrivalUnix: arrivalUnix})
}
