package ingest

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/cityrouter/transitlive/internal/statictt"
	"github.com/cityrouter/transitlive/internal/transit"
)

// Tram runs the tram ingestor: publish each vehicle's raw observed
// stops unchanged (tram has no per-stop extrapolation in the source),
// then synthesize future "T<unixStart>" trips for every static start
// time past the line's latest observed arrival. Mirrors
// `update_times.py`'s addTramTimes, which the source itself leaves
// disabled in its periodic reload but keeps as working code.
func Tram(ctx context.Context, client *http.Client, baseURL, apiKey string, store *statictt.Store, logger *zap.Logger) Result {
	result := newResult()

	arrivals, err := FetchArrivals(ctx, client, baseURL, "tram", apiKey)
	if err != nil {
		logger.Warn("tram ingest: fetch arrivals", zap.Error(err))
		return result
	}

	latestByLine := make(map[string]int64)
	for _, a := range arrivals {
		t, err := ParseTFLTime(a.ExpectedArrival)
		if err != nil {
			logger.Warn("tram ingest: parse arrival", zap.Error(err))
			continue
		}
		unix := t.Unix()
		if unix > latestByLine[a.LineID] {
			latestByLine[a.LineID] = unix
		}
		result.addStop(transit.RouteID(a.LineID), transit.VehicleID(a.VehicleID), transit.StopID(a.NaptanID), unix)
	}

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
					if unixStart <= latest {
						continue
					}
					vehicle := transit.VehicleID("T" + strconv.FormatInt(unixStart, 10))
					for _, is := range pattern.Intervals[0].Stops {
						result.addStop(transit.RouteID(line), vehicle, is.StopID, unixStart+int64(is.MinuteOffset)*60)
					}
				}
			}
		}
	}

	return result
}
