// Package directory implements component A, the Stop Directory: a
// read-through lookup of static stop metadata keyed by stop id,
// memoized from the Postgres-backed persistent store (teacher's pgxpool
// stack, schema generalized to spec §6's Point/Connection tables —
// ashfn/london-raptor's data.py peewee models, ported to Go).
package directory

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/cityrouter/transitlive/internal/models"
	"github.com/cityrouter/transitlive/internal/transit"
)

// Directory is an immutable-after-load, concurrency-safe lookup of
// stop metadata. It is read-only once Load returns, so concurrent
// reads need no locking (§5: "Stop Directory is read-only after load
// and safely shared").
type Directory struct {
	stops  map[transit.StopID]models.Point
	logger *zap.Logger

	missMu sync.Mutex
	warned map[transit.StopID]bool
}

// Load reads every point from the database into memory.
func Load(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) (*Directory, error) {
	rows, err := pool.Query(ctx, `SELECT id, name, lat, lon, mode FROM points`)
	if err != nil {
		return nil, fmt.Errorf("directory: query points: %w", err)
	}
	defer rows.Close()

	stops := make(map[transit.StopID]models.Point)
	for rows.Next() {
		var p models.Point
		if err := rows.Scan(&p.ID, &p.Name, &p.Lat, &p.Lon, &p.Mode); err != nil {
			return nil, fmt.Errorf("directory: scan point: %w", err)
		}
		stops[transit.StopID(p.ID)] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	logger.Info("directory loaded", zap.Int("stops", len(stops)))
	return &Directory{stops: stops, logger: logger, warned: make(map[transit.StopID]bool)}, nil
}

// Name returns the stop's display name, or the id itself when the stop
// is unknown (§4.A: "Lookup failure returns the id itself as the name").
func (d *Directory) Name(id transit.StopID) string {
	if s, ok := d.stops[id]; ok {
		return s.Name
	}
	d.noteMiss(id)
	return string(id)
}

// Coord returns the stop's (lon, lat), or the zero value when unknown.
func (d *Directory) Coord(id transit.StopID) (lon, lat float64, ok bool) {
	if s, ok := d.stops[id]; ok {
		return s.Lon, s.Lat, true
	}
	d.noteMiss(id)
	return 0, 0, false
}

// Mode returns the stop's transport mode, or "" when unknown.
func (d *Directory) Mode(id transit.StopID) string {
	if s, ok := d.stops[id]; ok {
		return s.Mode
	}
	return ""
}

// Len reports how many stops are loaded.
func (d *Directory) Len() int { return len(d.stops) }

// All returns every loaded stop. Callers must not mutate the result.
func (d *Directory) All() map[transit.StopID]models.Point { return d.stops }

func (d *Directory) noteMiss(id transit.StopID) {
	d.missMu.Lock()
	defer d.missMu.Unlock()
	// First miss per id only: avoid spamming logs for a hot missing
	// stop id queried on every request.
	if d.warned[id] {
		return
	}
	d.warned[id] = true
	d.logger.Warn("unknown stop id", zap.String("stop_id", string(id)))
}
