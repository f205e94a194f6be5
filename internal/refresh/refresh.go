// Package refresh implements component I, the Refresh Scheduler: a
// ticker-driven background worker (generalized from the teacher's
// request-time load into a periodic one, and from
// `banshee-data-velocity.report`'s TransitWorker ticker-with-stop-
// channel shape) that rebuilds the live timetable every cycle and
// atomically publishes a new Snapshot.
package refresh

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/cityrouter/transitlive/internal/config"
	"github.com/cityrouter/transitlive/internal/directory"
	"github.com/cityrouter/transitlive/internal/ingest"
	"github.com/cityrouter/transitlive/internal/metrics"
	"github.com/cityrouter/transitlive/internal/models"
	"github.com/cityrouter/transitlive/internal/statictt"
	"github.com/cityrouter/transitlive/internal/timetable"
	"github.com/cityrouter/transitlive/internal/transit"
	"github.com/cityrouter/transitlive/internal/walkgraph"
)

// Scheduler owns the periodic D->E->F->G pipeline and the single
// atomic.Pointer[Snapshot] readers load from.
type Scheduler struct {
	cfg    *config.Config
	dir    *directory.Directory
	walk   walkgraph.Graph
	bus    *statictt.Store
	tube   *statictt.Store
	tram   *statictt.Store
	rail   []models.Point
	client *http.Client
	sink   metrics.Sink
	logger *zap.Logger

	snapshot atomic.Pointer[transit.Snapshot]
	seq      atomic.Uint64
	stop     chan struct{}
}

// New builds a Scheduler. The caller is expected to call
// LoadWarmStart before Start so readers have something to serve
// before the first refresh cycle completes.
func New(cfg *config.Config, dir *directory.Directory, walk walkgraph.Graph, bus, tube, tram *statictt.Store, rail []models.Point, sink metrics.Sink, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cfg:    cfg,
		dir:    dir,
		walk:   walk,
		bus:    bus,
		tube:   tube,
		tram:   tram,
		rail:   rail,
		client: &http.Client{},
		sink:   sink,
		logger: logger,
		stop:   make(chan struct{}),
	}
}

// LoadWarmStart seeds the published snapshot with an empty timetable
// and the platforms.json warm cache (§9 Open Question 3: read-only,
// never written back), so /api/route has platform data even before
// the first refresh cycle finishes.
func (s *Scheduler) LoadWarmStart() {
	platforms := make(transit.PlatformMap)
	if data, err := os.ReadFile(s.cfg.PlatformsCachePath); err == nil {
		if err := json.Unmarshal(data, &platforms); err != nil {
			s.logger.Warn("refresh: parse platforms cache", zap.Error(err))
		}
	}
	s.snapshot.Store(&transit.Snapshot{
		Timetable: make(transit.LiveTimetable),
		Platforms: platforms,
		BuiltAt:   time.Now(),
		Seq:       0,
	})
}

// Snapshot returns the most recently published snapshot. Safe for
// concurrent use; never blocks on a refresh in progress.
func (s *Scheduler) Snapshot() *transit.Snapshot {
	return s.snapshot.Load()
}

// Start runs the refresh loop in a goroutine: one immediate cycle,
// then one every cfg.RefreshInterval until Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		s.RunOnce(ctx)

		ticker := time.NewTicker(s.cfg.RefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.RunOnce(ctx)
			case <-s.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop requests the refresh loop to exit.
func (s *Scheduler) Stop() {
	close(s.stop)
}

// RunOnce executes one D->E->F->G cycle and publishes the result.
// Per-ingestor failures are logged and leave that subset's data out
// of the new snapshot; RunOnce itself never returns an error, matching
// §7's "the refresh cycle never aborts because of it".
func (s *Scheduler) RunOnce(ctx context.Context) {
	cycleStart := time.Now()

	busStart := time.Now()
	busResult := ingest.Bus(ctx, s.client, s.cfg.TFLBaseURL, s.cfg.TFLAPIKey, s.bus, s.logger)
	s.sink.Duration("bus_reload", "duration", time.Since(busStart), nil)
	s.sink.Count("bus_data", "vehicles", countVehicles(busResult), nil)

	tubeStart := time.Now()
	tubeResult := ingest.Tube(ctx, s.client, s.cfg.TFLBaseURL, s.cfg.TFLAPIKey, s.tube, s.dir, s.logger)
	s.sink.Duration("tube_reload", "duration", time.Since(tubeStart), nil)
	s.sink.Count("tube_data", "vehicles", countVehicles(tubeResult), nil)

	railStart := time.Now()
	railCfg := ingest.RailConfig{
		BaseURL:     s.cfg.RailBoardsBaseURL,
		APIKey:      s.cfg.RailMarketplaceKey,
		WorkerCount: s.cfg.RailWorkerCount,
		Timeout:     s.cfg.RailTimeout,
		MinLat:      s.cfg.MinLat,
		MaxLat:      s.cfg.MaxLat,
		MinLon:      s.cfg.MinLon,
		MaxLon:      s.cfg.MaxLon,
	}
	railResult := ingest.Rail(ctx, s.client, railCfg, s.rail, s.logger)
	s.sink.Duration("rail_reload", "duration", time.Since(railStart), nil)
	s.sink.Count("rail_data", "train_count", countVehicles(railResult), nil)

	tramResult := ingest.Tram(ctx, s.client, s.cfg.TFLBaseURL, s.cfg.TFLAPIKey, s.tram, s.logger)

	tt, platforms := timetable.Assemble(busResult, tubeResult, tramResult, railResult)

	seq := s.seq.Add(1)
	s.snapshot.Store(&transit.Snapshot{
		Timetable: tt,
		Platforms: platforms,
		BuiltAt:   time.Now(),
		Seq:       seq,
	})

	s.logger.Info("refresh cycle complete",
		zap.Uint64("seq", seq),
		zap.Duration("total", time.Since(cycleStart)),
		zap.Int("routes", len(tt)),
	)
}

func countVehicles(r ingest.Result) int {
	n := 0
	for _, byVehicle := range r.Trips {
		n += len(byVehicle)
	}
	return n
}
