// Package repository holds the handful of per-request Postgres queries
// the query coordinator needs beyond the in-memory Stop Directory: stop
// search by name and a stop's outgoing connections, the Go encoding of
// `original_source/backend/data.py`'s `Point`/`Connection` Peewee
// models (§6, §4.A). Kept as request-time queries rather than
// preloaded, matching `full_api.py`'s `search_stops` querying the DB on
// every call.
package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cityrouter/transitlive/internal/models"
)

// connectionsPerStopLimit bounds how many outgoing connections Search
// inspects per matching stop, matching full_api.py's
// `Connection.select()...limit(50)`.
const connectionsPerStopLimit = 50

// Repository queries the static points/connections tables directly,
// for handler requests that need more than the Stop Directory's
// id->name/coord/mode lookup.
type Repository struct {
	db *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// SearchStops returns every point whose name contains query
// (case-insensitive), matching `search_stops`'s `query in stop.name.lower()`.
func (r *Repository) SearchStops(ctx context.Context, query string) ([]models.Point, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, lat, lon, mode FROM points WHERE LOWER(name) LIKE $1`,
		"%"+strings.ToLower(query)+"%")
	if err != nil {
		return nil, fmt.Errorf("repository: search stops: %w", err)
	}
	defer rows.Close()

	var stops []models.Point
	for rows.Next() {
		var p models.Point
		if err := rows.Scan(&p.ID, &p.Name, &p.Lat, &p.Lon, &p.Mode); err != nil {
			return nil, fmt.Errorf("repository: scan point: %w", err)
		}
		stops = append(stops, p)
	}
	return stops, rows.Err()
}

// ConnectionsFrom returns the connections whose origin is stopID, up to
// connectionsPerStopLimit rows, matching `search_stops`'s
// `Connection.select().where(origin_point_id == stop.point_id).limit(50)`.
func (r *Repository) ConnectionsFrom(ctx context.Context, stopID string) ([]models.Connection, error) {
	rows, err := r.db.Query(ctx,
		`SELECT origin_id, destination_id, line_id, direction FROM connections WHERE origin_id = $1 LIMIT $2`,
		stopID, connectionsPerStopLimit)
	if err != nil {
		return nil, fmt.Errorf("repository: connections from %s: %w", stopID, err)
	}
	defer rows.Close()

	var conns []models.Connection
	for rows.Next() {
		var c models.Connection
		if err := rows.Scan(&c.OriginID, &c.DestinationID, &c.LineID, &c.Direction); err != nil {
			return nil, fmt.Errorf("repository: scan connection: %w", err)
		}
		conns = append(conns, c)
	}
	return conns, rows.Err()
}
