package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/cityrouter/transitlive/internal/config"
	"github.com/cityrouter/transitlive/internal/directory"
	"github.com/cityrouter/transitlive/internal/geo"
	"github.com/cityrouter/transitlive/internal/handler"
	"github.com/cityrouter/transitlive/internal/metrics"
	"github.com/cityrouter/transitlive/internal/models"
	"github.com/cityrouter/transitlive/internal/refresh"
	"github.com/cityrouter/transitlive/internal/repository"
	"github.com/cityrouter/transitlive/internal/statictt"
	"github.com/cityrouter/transitlive/internal/walkgraph"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer logger.Sync()

	cfg := config.Load()
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("unable to create connection pool", zap.Error(err))
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatal("unable to connect to database", zap.Error(err))
	}
	logger.Info("connected to database")

	dir, err := directory.Load(ctx, pool, logger)
	if err != nil {
		logger.Fatal("load stop directory", zap.Error(err))
	}

	walk, err := walkgraph.Load(cfg.WalkingDistancesPath)
	if err != nil {
		logger.Fatal("load walking graph", zap.Error(err))
	}

	busStore, err := statictt.Load(cfg.BusTimetablePath)
	if err != nil {
		logger.Fatal("load bus timetable", zap.Error(err))
	}
	tubeStore, err := statictt.Load(cfg.TubeTimetablePath)
	if err != nil {
		logger.Fatal("load tube timetable", zap.Error(err))
	}
	tramStore, err := statictt.Load(cfg.TramTimetablePath)
	if err != nil {
		logger.Fatal("load tram timetable", zap.Error(err))
	}

	sink := metrics.NewLogSink(logger)

	scheduler := refresh.New(cfg, dir, walk, busStore, tubeStore, tramStore, railStationsFromDirectory(dir), sink, logger)
	scheduler.LoadWarmStart()

	refreshCtx, cancelRefresh := context.WithCancel(ctx)
	defer cancelRefresh()
	scheduler.Start(refreshCtx)

	repo := repository.New(pool)
	h := handler.New(scheduler, dir, repo, walk, geo.StraightLineRouter{}, cfg)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			http.Error(w, `{"status":"error","db":"disconnected"}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","db":"connected"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/search", h.Search)
		r.Post("/route", h.Route)
	})

	logger.Info("server starting", zap.String("port", cfg.Port))
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

// railStationsFromDirectory projects the rail-mode subset of the Stop
// Directory into the []models.Point the rail ingestor's bounding-box
// filter and per-station worker pool consume.
func railStationsFromDirectory(dir *directory.Directory) []models.Point {
	var stations []models.Point
	for id, p := range dir.All() {
		if p.Mode != "rail" {
			continue
		}
		stations = append(stations, models.Point{ID: string(id), Name: p.Name, Lat: p.Lat, Lon: p.Lon, Mode: p.Mode})
	}
	return stations
}
