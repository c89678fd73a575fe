package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/dbpranger/delay-api/models"
)

// delayExpr counts a missing delay as zero
const delayExpr = `COALESCE(delay_minutes, 0)`

// delayedExpr is 1 for a delayed row, 0 otherwise; bind DelayedThresholdMinutes
const delayedExpr = `CASE WHEN COALESCE(delay_minutes, 0) > ? THEN 1 ELSE 0 END`

const flatRowColumns = `
	row_id, ingestion_iso, box_index, journey_id, line, direction, line_type,
	vehicle_type, realtime, start_station, start_station_key, end_station,
	end_station_key, start_timestamp, end_timestamp, delay_minutes, is_first,
	is_last
`

// segmentSortColumns is the allow-list of ORDER BY columns for SegmentStats
var segmentSortColumns = map[models.SegmentSort]string{
	models.SegmentSortAvg:   "avg_delay",
	models.SegmentSortMax:   "max_delay",
	models.SegmentSortTotal: "total_delay",
}

// ErrUnknownSort is returned for a SegmentSort outside the allow-list
var ErrUnknownSort = errors.New("unknown sort key")

// SegmentFilter narrows the paginated listing; nil fields match everything
type SegmentFilter struct {
	Line        *string
	VehicleType *string
}

// HistoryRepository runs the read-only aggregations over a loaded snapshot.
// Every method is safe for concurrent use.
type HistoryRepository struct {
	db *sql.DB
}

// NewHistoryRepository creates a new HistoryRepository
func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func percentage(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)*1000/float64(total)) / 10
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFlatRow(s rowScanner) (models.FlatRow, error) {
	var r models.FlatRow
	err := s.Scan(
		&r.RowID,
		&r.IngestionISO,
		&r.BoxIndex,
		&r.JourneyID,
		&r.Line,
		&r.Direction,
		&r.LineType,
		&r.VehicleType,
		&r.Realtime,
		&r.StartStation,
		&r.StartStationKey,
		&r.EndStation,
		&r.EndStationKey,
		&r.StartTimestamp,
		&r.EndTimestamp,
		&r.DelayMinutes,
		&r.IsFirst,
		&r.IsLast,
	)
	return r, err
}

// =============================================================================
// ROW LEVEL
// =============================================================================

// CountSegments returns the number of rows in the snapshot
func (r *HistoryRepository) CountSegments(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM segments`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count segments: %w", err)
	}
	return n, nil
}

// HasLine reports whether any row carries the given line name
func (r *HistoryRepository) HasLine(ctx context.Context, line string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM segments WHERE line = ?)`, line)
}

// HasVehicleType reports whether any row carries the given vehicle type
func (r *HistoryRepository) HasVehicleType(ctx context.Context, vehicleType string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM segments WHERE vehicle_type = ?)`, vehicleType)
}

func (r *HistoryRepository) exists(ctx context.Context, query string, arg string) (bool, error) {
	var found int
	if err := r.db.QueryRowContext(ctx, query, arg).Scan(&found); err != nil {
		return false, fmt.Errorf("failed to check value: %w", err)
	}
	return found == 1, nil
}

// ListSegments returns one page of rows ordered by start timestamp, then
// load order. Rows without a start timestamp sort first.
func (r *HistoryRepository) ListSegments(ctx context.Context, filter SegmentFilter, limit, offset int) (*models.SegmentPage, error) {
	var conditions []string
	var args []interface{}
	if filter.Line != nil {
		conditions = append(conditions, "line = ?")
		args = append(args, *filter.Line)
	}
	if filter.VehicleType != nil {
		conditions = append(conditions, "vehicle_type = ?")
		args = append(args, *filter.VehicleType)
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM segments `+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count segments: %w", err)
	}

	query := `SELECT ` + flatRowColumns + ` FROM segments ` + where + `
		ORDER BY start_timestamp ASC, row_id ASC
		LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query segments: %w", err)
	}
	defer rows.Close()

	page := &models.SegmentPage{
		Journeys: make([]models.FlatRow, 0, limit),
		Total:    total,
		Limit:    limit,
		Offset:   offset,
		HasMore:  offset+limit < total,
	}
	for rows.Next() {
		fr, err := scanFlatRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan segment row: %w", err)
		}
		page.Journeys = append(page.Journeys, fr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating segment rows: %w", err)
	}
	return page, nil
}

// FinalPerJourney returns the final segment of every journey, keyed by
// journey ID. The final segment is the row with the latest start timestamp;
// equal timestamps resolve to the row loaded first.
func (r *HistoryRepository) FinalPerJourney(ctx context.Context) (map[string]models.FlatRow, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+flatRowColumns+` FROM final_segments`)
	if err != nil {
		return nil, fmt.Errorf("failed to query final segments: %w", err)
	}
	defer rows.Close()

	finals := make(map[string]models.FlatRow)
	for rows.Next() {
		fr, err := scanFlatRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan final segment: %w", err)
		}
		finals[*fr.JourneyID] = fr
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating final segments: %w", err)
	}
	return finals, nil
}

// =============================================================================
// JOURNEY LEVEL (final segment per journey)
// =============================================================================

// OverallStats summarises the final delay of every journey
func (r *HistoryRepository) OverallStats(ctx context.Context) (*models.OverallStats, error) {
	query := `
		SELECT
			COALESCE(AVG(` + delayExpr + `), 0),
			COALESCE(MAX(` + delayExpr + `), 0),
			COALESCE(MIN(` + delayExpr + `), 0),
			COALESCE(SUM(` + delayedExpr + `), 0),
			COUNT(*),
			(SELECT COUNT(*) FROM segments)
		FROM final_segments
	`

	var avg float64
	var stats models.OverallStats
	err := r.db.QueryRowContext(ctx, query, models.DelayedThresholdMinutes).Scan(
		&avg,
		&stats.MaxDelayMinutes,
		&stats.MinDelayMinutes,
		&stats.DelayedJourneys,
		&stats.TotalJourneys,
		&stats.TotalSegments,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query overall stats: %w", err)
	}

	stats.AvgDelayMinutes = round2(avg)
	stats.DelayedPercentage = percentage(stats.DelayedJourneys, stats.TotalJourneys)
	stats.Status = models.ClassifyDelay(stats.AvgDelayMinutes)
	return &stats, nil
}

// StatsByLine aggregates final journey delays per (line, vehicle type, line
// type), worst average first
func (r *HistoryRepository) StatsByLine(ctx context.Context) ([]models.LineStats, error) {
	query := `
		WITH fin AS (
			SELECT
				line, vehicle_type, line_type,
				AVG(` + delayExpr + `) AS avg_delay,
				MAX(` + delayExpr + `) AS max_delay,
				SUM(` + delayedExpr + `) AS delayed,
				COUNT(*) AS journeys
			FROM final_segments
			GROUP BY line, vehicle_type, line_type
		),
		seg AS (
			SELECT line, vehicle_type, line_type, COUNT(*) AS seg_count
			FROM segments
			GROUP BY line, vehicle_type, line_type
		)
		SELECT
			fin.line, fin.vehicle_type, fin.line_type,
			fin.avg_delay, fin.max_delay, fin.delayed, fin.journeys,
			COALESCE(seg.seg_count, 0)
		FROM fin
		LEFT JOIN seg
			ON seg.line IS fin.line
			AND seg.vehicle_type IS fin.vehicle_type
			AND seg.line_type IS fin.line_type
		ORDER BY fin.avg_delay DESC, fin.line, fin.vehicle_type, fin.line_type
	`

	rows, err := r.db.QueryContext(ctx, query, models.DelayedThresholdMinutes)
	if err != nil {
		return nil, fmt.Errorf("failed to query line stats: %w", err)
	}
	defer rows.Close()

	stats := make([]models.LineStats, 0)
	for rows.Next() {
		var s models.LineStats
		var avg float64
		var delayed int
		if err := rows.Scan(
			&s.Line, &s.VehicleType, &s.LineType,
			&avg, &s.MaxDelayMinutes, &delayed, &s.TotalJourneys,
			&s.TotalSegments,
		); err != nil {
			return nil, fmt.Errorf("failed to scan line stats: %w", err)
		}
		s.AvgDelayMinutes = round2(avg)
		s.DelayedPercentage = percentage(delayed, s.TotalJourneys)
		s.Status = models.ClassifyDelay(s.AvgDelayMinutes)
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating line stats: %w", err)
	}
	return stats, nil
}

// Lines returns every distinct (line, vehicle type, line type) sorted by name.
// Direction is a representative value since a line runs both ways.
func (r *HistoryRepository) Lines(ctx context.Context) ([]models.LineInfo, error) {
	query := `
		SELECT line, vehicle_type, line_type, MIN(direction)
		FROM segments
		WHERE line IS NOT NULL
		GROUP BY line, vehicle_type, line_type
		ORDER BY line, vehicle_type, line_type
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query lines: %w", err)
	}
	defer rows.Close()

	lines := make([]models.LineInfo, 0)
	for rows.Next() {
		var l models.LineInfo
		if err := rows.Scan(&l.Name, &l.VehicleType, &l.LineType, &l.Direction); err != nil {
			return nil, fmt.Errorf("failed to scan line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lines: %w", err)
	}
	return lines, nil
}

// JourneysByLine lists the journeys of a line, most recent first. Delay
// extremes cover every observed row of the journey; the final delay and last
// station come from its final segment. total counts every journey of the line
// regardless of limit.
func (r *HistoryRepository) JourneysByLine(ctx context.Context, line string, limit int) (*models.LineJourneys, error) {
	result := &models.LineJourneys{
		Line:     line,
		Journeys: make([]models.LineJourney, 0),
		Limit:    limit,
	}

	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT journey_id) FROM segments WHERE line = ? AND journey_id IS NOT NULL
	`, line).Scan(&result.Total)
	if err != nil {
		return nil, fmt.Errorf("failed to count journeys: %w", err)
	}
	if result.Total == 0 {
		return result, nil
	}

	query := `
		WITH j AS (
			SELECT
				journey_id,
				MIN(row_id) AS first_row,
				AVG(` + delayExpr + `) AS avg_delay,
				MAX(` + delayExpr + `) AS max_delay,
				MIN(` + delayExpr + `) AS min_delay,
				COUNT(*) AS segment_count,
				MIN(start_timestamp) AS start_time,
				MAX(end_timestamp) AS end_time
			FROM segments
			WHERE line = ? AND journey_id IS NOT NULL
			GROUP BY journey_id
		)
		SELECT
			j.journey_id,
			fr.line, fr.direction, fr.vehicle_type, fr.line_type,
			j.avg_delay, j.max_delay, j.min_delay,
			f.delay_minutes,
			j.segment_count,
			fr.start_station,
			f.end_station,
			j.start_time, j.end_time
		FROM j
		JOIN segments fr ON fr.row_id = j.first_row
		LEFT JOIN final_segments f ON f.journey_id = j.journey_id
		ORDER BY j.start_time DESC, j.journey_id ASC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, line, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query journeys for line %s: %w", line, err)
	}
	defer rows.Close()

	for rows.Next() {
		var lj models.LineJourney
		var avg float64
		if err := rows.Scan(
			&lj.JourneyID,
			&lj.Line, &lj.Direction, &lj.VehicleType, &lj.LineType,
			&avg, &lj.MaxDelayMinutes, &lj.MinDelayMinutes,
			&lj.FinalDelayMinutes,
			&lj.SegmentCount,
			&lj.FirstStation,
			&lj.LastStation,
			&lj.StartTime, &lj.EndTime,
		); err != nil {
			return nil, fmt.Errorf("failed to scan journey: %w", err)
		}
		lj.AvgDelayMinutes = round2(avg)
		lj.Status = models.ClassifyNullableDelay(lj.FinalDelayMinutes)
		result.Journeys = append(result.Journeys, lj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating journeys: %w", err)
	}
	return result, nil
}

// JourneyDetail lists every observed segment of a journey by start time.
// An unknown journey yields an empty Segments slice, not an error.
func (r *HistoryRepository) JourneyDetail(ctx context.Context, journeyID string) (*models.JourneyDetail, error) {
	detail := &models.JourneyDetail{
		JourneyID: journeyID,
		Segments:  make([]models.JourneySegment, 0),
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT
			start_station, start_station_key, end_station, end_station_key,
			start_timestamp, delay_minutes,
			line, direction, vehicle_type, line_type
		FROM segments
		WHERE journey_id = ?
		ORDER BY start_timestamp ASC, row_id ASC
	`, journeyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query journey %s: %w", journeyID, err)
	}
	defer rows.Close()

	total := 0
	for rows.Next() {
		var s models.JourneySegment
		var line, direction, vehicleType, lineType *string
		if err := rows.Scan(
			&s.StartStation, &s.StartStationKey, &s.EndStation, &s.EndStationKey,
			&s.StartTimestamp, &s.DelayMinutes,
			&line, &direction, &vehicleType, &lineType,
		); err != nil {
			return nil, fmt.Errorf("failed to scan journey segment: %w", err)
		}
		if len(detail.Segments) == 0 {
			detail.Line, detail.Direction = line, direction
			detail.VehicleType, detail.LineType = vehicleType, lineType
		}
		if s.DelayMinutes != nil {
			total += *s.DelayMinutes
		}
		s.Status = models.ClassifyNullableDelay(s.DelayMinutes)
		detail.Segments = append(detail.Segments, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating journey segments: %w", err)
	}

	detail.TotalSegments = len(detail.Segments)
	if detail.IsEmpty() {
		return detail, nil
	}
	detail.AvgDelay = round2(float64(total) / float64(detail.TotalSegments))

	err = r.db.QueryRowContext(ctx, `
		SELECT delay_minutes FROM final_segments WHERE journey_id = ?
	`, journeyID).Scan(&detail.FinalDelayMinutes)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to query final delay for %s: %w", journeyID, err)
	}
	detail.FinalStatus = models.ClassifyNullableDelay(detail.FinalDelayMinutes)
	return detail, nil
}

// =============================================================================
// SEGMENT LEVEL (every observed row)
// =============================================================================

// DelaysOverTime groups rows into fixed buckets of bucketSeconds by floor
// division of the start timestamp. Rows without a timestamp are ignored.
func (r *HistoryRepository) DelaysOverTime(ctx context.Context, bucketSeconds int64) ([]models.TimeBucket, error) {
	if bucketSeconds <= 0 {
		return nil, fmt.Errorf("bucket size must be positive, got %d", bucketSeconds)
	}

	query := `
		SELECT
			start_timestamp - ((start_timestamp % ? + ?) % ?) AS bucket,
			AVG(` + delayExpr + `),
			MAX(` + delayExpr + `),
			MIN(` + delayExpr + `),
			COUNT(*)
		FROM segments
		WHERE start_timestamp IS NOT NULL
		GROUP BY bucket
		ORDER BY bucket ASC
	`

	rows, err := r.db.QueryContext(ctx, query, bucketSeconds, bucketSeconds, bucketSeconds)
	if err != nil {
		return nil, fmt.Errorf("failed to query delays over time: %w", err)
	}
	defer rows.Close()

	buckets := make([]models.TimeBucket, 0)
	for rows.Next() {
		var b models.TimeBucket
		var avg float64
		if err := rows.Scan(&b.BucketStart, &avg, &b.MaxDelay, &b.MinDelay, &b.Count); err != nil {
			return nil, fmt.Errorf("failed to scan time bucket: %w", err)
		}
		b.AvgDelay = round2(avg)
		b.Timestamp = bucketTimestamp(b.BucketStart)
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating time buckets: %w", err)
	}
	return buckets, nil
}

func bucketTimestamp(unix int64) string {
	return time.Unix(unix, 0).UTC().Format(time.RFC3339)
}

// HourlyDelaysWithWeather returns hourly buckets joined with the first
// weather observation recorded in the same hour
func (r *HistoryRepository) HourlyDelaysWithWeather(ctx context.Context) ([]models.WeatherBucket, error) {
	query := `
		WITH buckets AS (
			SELECT
				start_timestamp - ((start_timestamp % 3600 + 3600) % 3600) AS bucket,
				AVG(` + delayExpr + `) AS avg_delay,
				MAX(` + delayExpr + `) AS max_delay,
				MIN(` + delayExpr + `) AS min_delay,
				COUNT(*) AS n
			FROM segments
			WHERE start_timestamp IS NOT NULL
			GROUP BY bucket
		),
		hourly AS (
			SELECT
				timestamp_unix - ((timestamp_unix % 3600 + 3600) % 3600) AS hour,
				timestamp_unix, observation_id,
				temperature_c, precipitation_mm, wind_speed_kmh,
				weather_code, humidity_percent, cloud_cover_percent
			FROM weather_observations
			WHERE timestamp_unix IS NOT NULL
		),
		wx AS (
			SELECT * FROM (
				SELECT
					hourly.*,
					ROW_NUMBER() OVER (
						PARTITION BY hour
						ORDER BY timestamp_unix ASC, observation_id ASC
					) AS rn
				FROM hourly
			)
			WHERE rn = 1
		)
		SELECT
			b.bucket, b.avg_delay, b.max_delay, b.min_delay, b.n,
			wx.temperature_c, wx.precipitation_mm, wx.wind_speed_kmh,
			wx.weather_code, wx.humidity_percent, wx.cloud_cover_percent
		FROM buckets b
		LEFT JOIN wx ON wx.hour = b.bucket
		ORDER BY b.bucket ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query hourly delays with weather: %w", err)
	}
	defer rows.Close()

	buckets := make([]models.WeatherBucket, 0)
	for rows.Next() {
		var b models.WeatherBucket
		var avg float64
		if err := rows.Scan(
			&b.BucketStart, &avg, &b.MaxDelay, &b.MinDelay, &b.Count,
			&b.TemperatureC, &b.PrecipitationMM, &b.WindSpeedKMH,
			&b.WeatherCode, &b.HumidityPercent, &b.CloudCoverPercent,
		); err != nil {
			return nil, fmt.Errorf("failed to scan weather bucket: %w", err)
		}
		b.AvgDelay = round2(avg)
		b.Timestamp = bucketTimestamp(b.BucketStart)
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating weather buckets: %w", err)
	}
	return buckets, nil
}

// Heatmap groups rows by local hour and Sunday-first weekday
func (r *HistoryRepository) Heatmap(ctx context.Context) ([]models.HeatmapCell, error) {
	query := `
		SELECT
			local_hour, local_dow,
			AVG(` + delayExpr + `),
			MAX(` + delayExpr + `),
			COUNT(*),
			SUM(` + delayedExpr + `)
		FROM segments
		WHERE local_hour IS NOT NULL
		GROUP BY local_dow, local_hour
		ORDER BY local_dow ASC, local_hour ASC
	`

	rows, err := r.db.QueryContext(ctx, query, models.DelayedThresholdMinutes)
	if err != nil {
		return nil, fmt.Errorf("failed to query heatmap: %w", err)
	}
	defer rows.Close()

	cells := make([]models.HeatmapCell, 0)
	for rows.Next() {
		var c models.HeatmapCell
		var avg float64
		var delayed int
		if err := rows.Scan(&c.Hour, &c.DayOfWeek, &avg, &c.MaxDelay, &c.Count, &delayed); err != nil {
			return nil, fmt.Errorf("failed to scan heatmap cell: %w", err)
		}
		c.AvgDelay = round2(avg)
		c.DayName = models.DayName(c.DayOfWeek)
		c.DelayedPercentage = percentage(delayed, c.Count)
		cells = append(cells, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating heatmap: %w", err)
	}
	return cells, nil
}

// SegmentStats aggregates every observation per (start key, end key) and
// returns the top limit pairs by the selected metric. Ties are broken by the
// station keys so the order is stable.
func (r *HistoryRepository) SegmentStats(ctx context.Context, sortBy models.SegmentSort, limit int) ([]models.SegmentStats, error) {
	orderColumn, ok := segmentSortColumns[sortBy]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSort, sortBy)
	}

	query := `
		SELECT
			start_station_key, end_station_key,
			MIN(start_station), MIN(end_station),
			AVG(` + delayExpr + `) AS avg_delay,
			MAX(` + delayExpr + `) AS max_delay,
			MIN(` + delayExpr + `) AS min_delay,
			SUM(` + delayExpr + `) AS total_delay,
			COUNT(*),
			SUM(` + delayedExpr + `),
			json_group_array(DISTINCT line) FILTER (WHERE line IS NOT NULL)
		FROM segments
		GROUP BY start_station_key, end_station_key
		ORDER BY ` + orderColumn + ` DESC, start_station_key ASC, end_station_key ASC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, models.DelayedThresholdMinutes, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query segment stats: %w", err)
	}
	defer rows.Close()

	stats := make([]models.SegmentStats, 0)
	for rows.Next() {
		var s models.SegmentStats
		var avg float64
		var delayed int
		var linesJSON string
		if err := rows.Scan(
			&s.StartStationKey, &s.EndStationKey,
			&s.StartStation, &s.EndStation,
			&avg, &s.MaxDelay, &s.MinDelay, &s.TotalDelay,
			&s.Count, &delayed, &linesJSON,
		); err != nil {
			return nil, fmt.Errorf("failed to scan segment stats: %w", err)
		}

		s.Lines = make([]string, 0)
		if err := json.Unmarshal([]byte(linesJSON), &s.Lines); err != nil {
			return nil, fmt.Errorf("failed to decode lines for segment: %w", err)
		}
		sort.Strings(s.Lines)

		s.AvgDelay = round2(avg)
		s.DelayedPercentage = percentage(delayed, s.Count)
		s.Status = models.ClassifyDelay(s.AvgDelay)
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating segment stats: %w", err)
	}
	return stats, nil
}
