package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cityrouter/transitlive/internal/models"
	"github.com/cityrouter/transitlive/internal/transit"
)

// serviceIDPrefixLen truncates a rail serviceID to its first 7
// characters for global deduplication, matching `serviceID[:7]` in
// `process_stop`.
const serviceIDPrefixLen = 7

type railCallingPoint struct {
	CRS string `json:"crs"`
	AT  string `json:"at"`
	ET  string `json:"et"`
	ST  string `json:"st"`
}

type railCallingPointList struct {
	CallingPoint []railCallingPoint `json:"callingPoint"`
}

type railTrainService struct {
	IsCancelled bool   `json:"isCancelled"`
	ServiceID   string `json:"serviceID"`
	Platform    string `json:"platform"`
	STA         string `json:"sta"`
	ETA         string `json:"eta"`
	ATA         string `json:"ata"`
	Operator    string `json:"operator"`
	Destination []struct {
		CRS string `json:"crs"`
	} `json:"destination"`
	SubsequentCallingPoints []railCallingPointList `json:"subsequentCallingPoints"`
	PreviousCallingPoints   []railCallingPointList `json:"previousCallingPoints"`
}

type railBoardResponse struct {
	TrainServices []railTrainService `json:"trainServices"`
}

type railServiceRecord struct {
	station    transit.StopID
	ownUnix    int64
	destCRS    string
	operator   string
	platform   string
	previous   []railCallingPoint
	subsequent []railCallingPoint
}

// RailConfig bounds the rail ingestor's worker pool and request
// timeout; BaseURL/APIKey address the live boards API.
type RailConfig struct {
	BaseURL     string
	APIKey      string
	WorkerCount int
	Timeout     time.Duration
	MinLat      float64
	MaxLat      float64
	MinLon      float64
	MaxLon      float64
}

// Rail runs the rail ingestor (component F): fetch each in-region rail
// station's live board concurrently through a bounded worker pool,
// dedup services globally by a 7-character serviceID, and assemble
// each service's full calling-point trajectory into a trip.
func Rail(ctx context.Context, client *http.Client, cfg RailConfig, stations []models.Point, logger *zap.Logger) Result {
	result := newResult()

	inRegion := make([]models.Point, 0, len(stations))
	for _, s := range stations {
		if s.Lat < cfg.MinLat || s.Lat > cfg.MaxLat || s.Lon < cfg.MinLon || s.Lon > cfg.MaxLon {
			continue
		}
		inRegion = append(inRegion, s)
	}

	var mu sync.Mutex
	services := make(map[string]railServiceRecord)
	platforms := make(transit.PlatformMap)
	statusCodes := make(map[int]int)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.WorkerCount)

	for _, station := range inRegion {
		station := station
		g.Go(func() error {
			records, stationPlatforms, status, err := fetchStationBoard(gctx, client, cfg, station)

			mu.Lock()
			if status != 0 {
				statusCodes[status]++
			}
			mu.Unlock()

			if err != nil {
				logger.Warn("rail ingest: fetch station board", zap.String("station", string(station.ID)), zap.Error(err))
				return nil
			}

			mu.Lock()
			for serviceID, rec := range records {
				services[serviceID] = rec
			}
			for key, platform := range stationPlatforms {
				platforms[key] = platform
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // fetchStationBoard never returns an error to the group; failures are logged per-station

	for code, count := range statusCodes {
		logger.Info("rail ingest: board status", zap.Int("status", code), zap.Int("count", count))
	}

	now := time.Now().Unix()
	for serviceID, rec := range services {
		route := transit.RouteID(rec.operator + "/" + rec.destCRS)

		var stops []transit.StopTime
		stops = append(stops, transit.StopTime{StopID: rec.station, ArrivalUnix: rec.ownUnix})
		for _, cp := range rec.previous {
			if t, ok := parseCallingPointTime(cp); ok {
				stops = append(stops, transit.StopTime{StopID: transit.StopID(cp.CRS), ArrivalUnix: t})
			}
		}
		for _, cp := range rec.subsequent {
			if t, ok := parseCallingPointTime(cp); ok {
				stops = append(stops, transit.StopTime{StopID: transit.StopID(cp.CRS), ArrivalUnix: t})
			}
		}

		var future []transit.StopTime
		for _, s := range stops {
			if s.ArrivalUnix > now {
				future = append(future, s)
			}
		}
		if len(future) == 0 {
			continue
		}

		byVehicle, ok := result.Trips[route]
		if !ok {
			byVehicle = make(map[transit.VehicleID]*transit.Trip)
			result.Trips[route] = byVehicle
		}
		byVehicle[transit.VehicleID(serviceID)] = &transit.Trip{RouteID: route, VehicleID: transit.VehicleID(serviceID), Stops: future}
	}
	for key, platform := range platforms {
		result.Platforms[key] = platform
	}

	return result
}

func fetchStationBoard(ctx context.Context, client *http.Client, cfg RailConfig, station models.Point) (map[string]railServiceRecord, transit.PlatformMap, int, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	url := fmt.Sprintf("%s/1010-live-arrival-and-departure-boards-arr-and-dep1_1/LDBWS/api/20220120/GetArrDepBoardWithDetails/%s?timeWindow=120",
		cfg.BaseURL, station.ID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, 0, err
	}
	req.Header.Set("x-apikey", cfg.APIKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, 0, err
	}
	defer resp.Body.Close()

	status := resp.StatusCode
	if status != http.StatusOK {
		return nil, nil, status, fmt.Errorf("station %s board returned %d", station.ID, status)
	}

	var board railBoardResponse
	if err := json.NewDecoder(resp.Body).Decode(&board); err != nil {
		return nil, nil, status, fmt.Errorf("decode board: %w", err)
	}

	records := make(map[string]railServiceRecord)
	platforms := make(transit.PlatformMap)
	startOfDay := startOfDayFor(time.Now())

	for _, svc := range board.TrainServices {
		if svc.IsCancelled {
			continue
		}
		serviceID := svc.ServiceID
		if len(serviceID) > serviceIDPrefixLen {
			serviceID = serviceID[:serviceIDPrefixLen]
		}

		ownUnix := preferredOwnTime(svc.STA, svc.ETA, svc.ATA, startOfDay)
		platform := svc.Platform
		if platform == "" {
			platform = "?"
		}

		destCRS := ""
		if len(svc.Destination) > 0 {
			destCRS = svc.Destination[0].CRS
		}

		var previous, subsequent []railCallingPoint
		if len(svc.PreviousCallingPoints) > 0 {
			previous = svc.PreviousCallingPoints[0].CallingPoint
		}
		if len(svc.SubsequentCallingPoints) > 0 {
			subsequent = svc.SubsequentCallingPoints[0].CallingPoint
		}

		records[serviceID] = railServiceRecord{
			station:    transit.StopID(station.ID),
			ownUnix:    ownUnix,
			destCRS:    destCRS,
			operator:   svc.Operator,
			platform:   platform,
			previous:   previous,
			subsequent: subsequent,
		}
		platforms[serviceID+"/"+string(station.ID)] = platform
	}

	return records, platforms, status, nil
}

// preferredOwnTime resolves the local station's own call time with
// precedence eta (if a real clock time) > ata (if a real clock time
// and eta absent/estimated) > sta, matching `process_stop`'s
// sequential overwrite of `time_unix`.
func preferredOwnTime(sta, eta, ata string, startOfDay time.Time) int64 {
	unix := int64(-1)
	if sta != "" {
		if t, err := parseHHMM(sta, startOfDay); err == nil {
			unix = t
		}
	}
	if eta != "" && strings.Contains(eta, ":") {
		if t, err := parseHHMM(eta, startOfDay); err == nil {
			unix = t
		}
	} else if ata != "" && strings.Contains(ata, ":") {
		if t, err := parseHHMM(ata, startOfDay); err == nil {
			unix = t
		}
	}
	return unix
}

// parseCallingPointTime resolves one previous/subsequent calling
// point's time with precedence at (if real) > et (if real) > st,
// matching the source's handling of `addRailTimes`'s calling-point
// loops.
func parseCallingPointTime(cp railCallingPoint) (int64, bool) {
	startOfDay := startOfDayFor(time.Now())
	if strings.Contains(cp.AT, ":") {
		if t, err := parseHHMM(cp.AT, startOfDay); err == nil {
			return t, true
		}
	}
	if strings.Contains(cp.ET, ":") {
		if t, err := parseHHMM(cp.ET, startOfDay); err == nil {
			return t, true
		}
	}
	if cp.ST != "" {
		if t, err := parseHHMM(cp.ST, startOfDay); err == nil {
			return t, true
		}
	}
	return 0, false
}

func startOfDayFor(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// parseHHMM parses an "HH:MM" clock time into a unix timestamp on the
// given day, matching `format_time`.
func parseHHMM(s string, startOfDay time.Time) (int64, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("ingest: invalid time string %q", s)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("ingest: invalid hour in %q: %w", s, err)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("ingest: invalid minute in %q: %w", s, err)
	}
	return startOfDay.Unix() + int64(hours)*3600 + int64(minutes)*60, nil
}
