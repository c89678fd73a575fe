package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dbpranger/delay-api/models"
)

// ErrStationNotFound is returned by GetStation for an unknown id
var ErrStationNotFound = errors.New("station not found")

// StationRepository reads the station directory from Postgres.
// Expected table:
//
//	CREATE TABLE stations (id TEXT PRIMARY KEY, name TEXT NOT NULL, lat DOUBLE PRECISION, lon DOUBLE PRECISION);
type StationRepository struct {
	pool *pgxpool.Pool
}

// NewStationRepository connects to databaseURL and verifies the connection
func NewStationRepository(ctx context.Context, databaseURL string) (*StationRepository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &StationRepository{pool: pool}, nil
}

func (r *StationRepository) Close() {
	r.pool.Close()
}

// ListStations returns every station with coordinates, ordered by id
func (r *StationRepository) ListStations(ctx context.Context) ([]models.Station, error) {
	query := `
		SELECT id, name, lat, lon
		FROM stations
		WHERE lat IS NOT NULL AND lon IS NOT NULL
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query stations: %w", err)
	}
	defer rows.Close()

	var stations []models.Station
	for rows.Next() {
		var s models.Station
		if err := rows.Scan(&s.ID, &s.Name, &s.Lat, &s.Lon); err != nil {
			return nil, fmt.Errorf("failed to scan station row: %w", err)
		}
		stations = append(stations, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating station rows: %w", err)
	}

	return stations, nil
}

// GetStation returns a single station by id
func (r *StationRepository) GetStation(ctx context.Context, id string) (*models.Station, error) {
	if id == "" {
		return nil, errors.New("station id cannot be empty")
	}

	var s models.Station
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, lat, lon FROM stations WHERE id = $1
	`, id).Scan(&s.ID, &s.Name, &s.Lat, &s.Lon)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrStationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query station %s: %w", id, err)
	}
	return &s, nil
}

// SaveStations upserts stations in one batch
func (r *StationRepository) SaveStations(ctx context.Context, stations []models.Station) error {
	if len(stations) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, s := range stations {
		batch.Queue(`
			INSERT INTO stations (id, name, lat, lon)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				lat = EXCLUDED.lat,
				lon = EXCLUDED.lon
		`, s.ID, s.Name, s.Lat, s.Lon)
	}

	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to save stations: %w", err)
	}
	return nil
}
