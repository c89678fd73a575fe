package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/dbpranger/delay-api/models"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

const finalSegmentsSQL = `
	CREATE TABLE final_segments AS
	SELECT *
	FROM (
		SELECT
			s.*,
			ROW_NUMBER() OVER (
				PARTITION BY journey_id
				ORDER BY start_timestamp DESC, row_id ASC
			) AS rn
		FROM segments s
		WHERE journey_id IS NOT NULL
	)
	WHERE rn = 1;

	CREATE UNIQUE INDEX idx_final_journey ON final_segments (journey_id);
	CREATE INDEX idx_final_line ON final_segments (line);
`

// SnapshotDB holds the flattened log in SQLite.
// With an empty path the database lives in memory, shared between the pool's
// connections under the snapshot ID; one connection stays pinned so the data
// survives idle connections being closed.
type SnapshotDB struct {
	db       *sql.DB
	pinned   *sql.Conn
	location *time.Location
	path     string
}

// NewSnapshotDB opens the snapshot database.
// loc is the time zone used for the heatmap's hour and weekday.
func NewSnapshotDB(ctx context.Context, snapshotID, dbPath string, loc *time.Location) (*SnapshotDB, error) {
	if loc == nil {
		loc = time.UTC
	}

	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	if dbPath == "" {
		dsn = fmt.Sprintf("file:%s?mode=memory&cache=shared", snapshotID)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)

	pinned, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pinned.PingContext(ctx); err != nil {
		pinned.Close()
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA temp_store = MEMORY",
		"PRAGMA cache_size = 10000",
	} {
		if _, err := pinned.ExecContext(ctx, pragma); err != nil {
			slog.Warn("Failed to set pragma", "pragma", pragma, "error", err)
		}
	}

	return &SnapshotDB{db: db, pinned: pinned, location: loc, path: dbPath}, nil
}

// Close releases the pinned connection and the pool.
// An in-memory snapshot is discarded.
func (s *SnapshotDB) Close() error {
	s.pinned.Close()
	return s.db.Close()
}

// GetDB returns the underlying database handle
func (s *SnapshotDB) GetDB() *sql.DB {
	return s.db
}

// Location returns the time zone used for local hour and weekday columns
func (s *SnapshotDB) Location() *time.Location {
	return s.location
}

// LoadResult summarises a snapshot build
type LoadResult struct {
	Segments      int
	Journeys      int
	WeatherRows   int
	DelayMean     float64
	DelayStdDev   float64
	BuildDuration time.Duration
}

// Load recreates the schema and fills it with rows and observations, then
// selects the final segment of every journey. The final_segments table is
// computed once here and only read afterwards.
func (s *SnapshotDB) Load(ctx context.Context, rows []models.FlatRow, observations []models.WeatherObservation) (*LoadResult, error) {
	start := time.Now()

	if _, err := s.pinned.ExecContext(ctx, schemaSQL); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	tx, err := s.pinned.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stats, err := s.insertSegments(ctx, tx, rows)
	if err != nil {
		return nil, err
	}
	if err := insertWeather(ctx, tx, observations); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, finalSegmentsSQL); err != nil {
		return nil, fmt.Errorf("failed to build final segments: %w", err)
	}

	var journeys int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM final_segments`).Scan(&journeys); err != nil {
		return nil, fmt.Errorf("failed to count journeys: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit snapshot: %w", err)
	}

	if _, err := s.pinned.ExecContext(ctx, `ANALYZE`); err != nil {
		slog.Warn("Failed to analyze snapshot", "error", err)
	}

	result := &LoadResult{
		Segments:      len(rows),
		Journeys:      journeys,
		WeatherRows:   len(observations),
		DelayMean:     stats.Mean(),
		DelayStdDev:   stats.StdDev(),
		BuildDuration: time.Since(start),
	}
	slog.Info("Snapshot built",
		"segments", result.Segments,
		"journeys", result.Journeys,
		"weather_rows", result.WeatherRows,
		"duration", result.BuildDuration,
	)
	return result, nil
}

func (s *SnapshotDB) insertSegments(ctx context.Context, tx *sql.Tx, rows []models.FlatRow) (*welford, error) {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO segments (
			row_id, ingestion_iso, box_index, journey_id, line, direction,
			line_type, vehicle_type, realtime, start_station, start_station_key,
			end_station, end_station_key, start_timestamp, end_timestamp,
			delay_minutes, is_first, is_last, local_hour, local_dow
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare segment statement: %w", err)
	}
	defer stmt.Close()

	stats := &welford{}
	for _, r := range rows {
		var hour, dow *int
		if r.StartTimestamp != nil {
			t := time.Unix(*r.StartTimestamp, 0).In(s.location)
			h, d := t.Hour(), int(t.Weekday())+1
			hour, dow = &h, &d
		}
		stats.Update(float64(r.DelayOrZero()))

		_, err := stmt.ExecContext(ctx,
			r.RowID,
			r.IngestionISO,
			r.BoxIndex,
			r.JourneyID,
			r.Line,
			r.Direction,
			r.LineType,
			r.VehicleType,
			r.Realtime,
			r.StartStation,
			r.StartStationKey,
			r.EndStation,
			r.EndStationKey,
			r.StartTimestamp,
			r.EndTimestamp,
			r.DelayMinutes,
			r.IsFirst,
			r.IsLast,
			hour,
			dow,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert segment %d: %w", r.RowID, err)
		}
	}
	return stats, nil
}

func insertWeather(ctx context.Context, tx *sql.Tx, observations []models.WeatherObservation) error {
	if len(observations) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO weather_observations (
			timestamp_iso, timestamp_unix, temperature_c, precipitation_mm,
			wind_speed_kmh, weather_code, humidity_percent, cloud_cover_percent
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare weather statement: %w", err)
	}
	defer stmt.Close()

	for i, o := range observations {
		_, err := stmt.ExecContext(ctx,
			o.TimestampISO,
			o.TimestampUnix,
			o.TemperatureC,
			o.PrecipitationMM,
			o.WindSpeedKMH,
			o.WeatherCode,
			o.HumidityPercent,
			o.CloudCoverPercent,
		)
		if err != nil {
			return fmt.Errorf("failed to insert weather observation %d: %w", i, err)
		}
	}
	return nil
}
