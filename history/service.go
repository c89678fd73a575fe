package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dbpranger/delay-api/journeylog"
	"github.com/dbpranger/delay-api/models"
	"github.com/dbpranger/delay-api/repository"
	"github.com/dbpranger/delay-api/telemetry"
)

// Options controls where a snapshot is read from
type Options struct {
	DataDir       string
	TransportGlob string
	WeatherGlob   string
	Location      *time.Location

	// SnapshotDBPath stores the snapshot on disk; empty keeps it in memory
	SnapshotDBPath string
}

// Service is the read API over one immutable snapshot of the journey log.
// It is safe for concurrent use once Load or FromRows has returned.
type Service struct {
	snapshot *repository.SnapshotDB
	repo     *repository.HistoryRepository
	info     models.SnapshotInfo
}

// Load reads every log file under opts.DataDir and builds the snapshot.
// Files that cannot be read are logged and skipped; if none can be read the
// snapshot is empty. Only a failure to create the snapshot store is returned.
func Load(ctx context.Context, opts Options) (*Service, error) {
	rows, report := journeylog.LoadDir(opts.DataDir, opts.TransportGlob, opts.WeatherGlob)
	logReport("transport", report)
	telemetry.RecordLoadErrors(ctx, "transport", report.FilesFailed)

	info := models.SnapshotInfo{
		DataDir:      opts.DataDir,
		FilesLoaded:  report.FilesLoaded,
		FilesFailed:  report.FilesFailed,
		LinesSkipped: report.LinesSkipped,
		LoadErrors:   report.Errors(),
	}

	var observations []models.WeatherObservation
	if opts.WeatherGlob != "" {
		var weatherReport journeylog.LoadReport
		observations, weatherReport = journeylog.LoadWeatherDir(opts.DataDir, opts.WeatherGlob)
		logReport("weather", weatherReport)
		telemetry.RecordLoadErrors(ctx, "weather", weatherReport.FilesFailed)

		info.FilesLoaded += weatherReport.FilesLoaded
		info.FilesFailed += weatherReport.FilesFailed
		info.LinesSkipped += weatherReport.LinesSkipped
		info.LoadErrors = append(info.LoadErrors, weatherReport.Errors()...)
	}

	return build(ctx, opts.SnapshotDBPath, opts.Location, rows, observations, info)
}

// FromRows builds an in-memory snapshot from rows that were already flattened
func FromRows(ctx context.Context, rows []models.FlatRow, observations []models.WeatherObservation, loc *time.Location) (*Service, error) {
	return build(ctx, "", loc, rows, observations, models.SnapshotInfo{})
}

func build(ctx context.Context, dbPath string, loc *time.Location, rows []models.FlatRow, observations []models.WeatherObservation, info models.SnapshotInfo) (*Service, error) {
	info.SnapshotID = uuid.NewString()

	snapshot, err := repository.NewSnapshotDB(ctx, info.SnapshotID, dbPath, loc)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}

	result, err := snapshot.Load(ctx, rows, observations)
	if err != nil {
		slog.Error("Failed to load snapshot, serving empty history", "error", err)
		info.LoadErrors = append(info.LoadErrors, err.Error())
		result, err = snapshot.Load(ctx, nil, nil)
		if err != nil {
			snapshot.Close()
			return nil, fmt.Errorf("failed to create empty snapshot: %w", err)
		}
	}

	info.LoadedAt = time.Now().UTC()
	info.TotalSegments = result.Segments
	info.TotalJourneys = result.Journeys
	info.WeatherRows = result.WeatherRows
	telemetry.SetSnapshotSize(int64(result.Segments), int64(result.Journeys))

	slog.Info("History snapshot loaded",
		"snapshot_id", info.SnapshotID,
		"segments", result.Segments,
		"journeys", result.Journeys,
		"weather_rows", result.WeatherRows,
		"delay_mean", result.DelayMean,
		"delay_stddev", result.DelayStdDev,
		"duration", result.BuildDuration,
	)

	return &Service{
		snapshot: snapshot,
		repo:     repository.NewHistoryRepository(snapshot.GetDB()),
		info:     info,
	}, nil
}

func logReport(kind string, report journeylog.LoadReport) {
	for _, f := range report.Files {
		if f.Err != nil {
			slog.Warn("Failed to load log file", "kind", kind, "path", f.Path, "error", f.Err)
		} else if f.LinesSkipped > 0 {
			slog.Warn("Skipped malformed lines", "kind", kind, "path", f.Path, "lines", f.LinesSkipped)
		}
	}
	if report.Err != nil {
		slog.Warn("No log data loaded", "kind", kind, "error", report.Err)
	}
}

// Close releases the snapshot store
func (s *Service) Close() error {
	return s.snapshot.Close()
}

// Info describes the loaded snapshot
func (s *Service) Info() models.SnapshotInfo {
	return s.info
}

// TotalSegments is the row count computed at load
func (s *Service) TotalSegments() int {
	return s.info.TotalSegments
}

// Location is the time zone used for local hours and weekdays
func (s *Service) Location() *time.Location {
	return s.snapshot.Location()
}

// observe wraps one operation in a span and records its duration
func observe[T any](ctx context.Context, operation string, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "history."+operation)
	defer span.End()

	start := time.Now()
	result, err := fn(ctx)
	telemetry.RecordQuery(ctx, operation, start, err)

	if err != nil {
		var pe *ParamError
		if errors.As(err, &pe) {
			telemetry.RecordError(span, err, telemetry.ErrorTypeValidation, false)
		} else {
			telemetry.RecordError(span, err, telemetry.ErrorTypeQuery, false)
		}
		return result, err
	}
	telemetry.SetSpanOk(span)
	return result, nil
}

// ListSegments returns one page of raw rows in load order
func (s *Service) ListSegments(ctx context.Context, p ListParams) (*models.SegmentPage, error) {
	return observe(ctx, "list_segments", func(ctx context.Context) (*models.SegmentPage, error) {
		limit, err := boundedInt("limit", p.Limit, DefaultListLimit, 1, MaxListLimit)
		if err != nil {
			return nil, err
		}
		offset, err := nonNegative("offset", p.Offset)
		if err != nil {
			return nil, err
		}

		filter := repository.SegmentFilter{Line: p.Line, VehicleType: p.VehicleType}
		if err := s.checkKnown(ctx, "line", filter.Line, s.repo.HasLine); err != nil {
			return nil, err
		}
		if err := s.checkKnown(ctx, "vehicle_type", filter.VehicleType, s.repo.HasVehicleType); err != nil {
			return nil, err
		}

		return s.repo.ListSegments(ctx, filter, limit, offset)
	})
}

// checkKnown rejects a filter value that matches nothing. On an empty
// snapshot every value is accepted so that the result is just empty.
func (s *Service) checkKnown(ctx context.Context, param string, value *string, exists func(context.Context, string) (bool, error)) error {
	if value == nil || s.info.TotalSegments == 0 {
		return nil
	}
	ok, err := exists(ctx, *value)
	if err != nil {
		return err
	}
	if !ok {
		return &ParamError{Param: param, Reason: fmt.Sprintf("unknown value %q", *value)}
	}
	return nil
}

// FinalSegments returns the final segment of every journey keyed by journey id
func (s *Service) FinalSegments(ctx context.Context) (map[string]models.FlatRow, error) {
	return observe(ctx, "final_segments", s.repo.FinalPerJourney)
}

// OverallStats summarises the final delay of every journey
func (s *Service) OverallStats(ctx context.Context) (*models.OverallStats, error) {
	return observe(ctx, "overall_stats", s.repo.OverallStats)
}

// StatsByLine groups final journey delays by line
func (s *Service) StatsByLine(ctx context.Context) ([]models.LineStats, error) {
	return observe(ctx, "stats_by_line", s.repo.StatsByLine)
}

// Lines lists the distinct lines in the snapshot
func (s *Service) Lines(ctx context.Context) ([]models.LineInfo, error) {
	return observe(ctx, "lines", s.repo.Lines)
}

// DelaysOverTime buckets every row by start time. bucketMinutes defaults to 60.
func (s *Service) DelaysOverTime(ctx context.Context, bucketMinutes *int) ([]models.TimeBucket, error) {
	return observe(ctx, "delays_over_time", func(ctx context.Context) ([]models.TimeBucket, error) {
		minutes, err := boundedInt("bucket_minutes", bucketMinutes, DefaultBucketMinutes, 1, MaxBucketMinutes)
		if err != nil {
			return nil, err
		}
		return s.repo.DelaysOverTime(ctx, int64(minutes)*60)
	})
}

// HourlyDelaysWithWeather joins hourly buckets with the weather log
func (s *Service) HourlyDelaysWithWeather(ctx context.Context) ([]models.WeatherBucket, error) {
	return observe(ctx, "hourly_delays_with_weather", s.repo.HourlyDelaysWithWeather)
}

// Heatmap groups every row by local hour and weekday
func (s *Service) Heatmap(ctx context.Context) ([]models.HeatmapCell, error) {
	return observe(ctx, "heatmap", s.repo.Heatmap)
}

// SegmentStats ranks station pairs by the selected metric
func (s *Service) SegmentStats(ctx context.Context, p SegmentParams) ([]models.SegmentStats, error) {
	return observe(ctx, "segment_stats", func(ctx context.Context) ([]models.SegmentStats, error) {
		sortBy, err := parseSort(p.SortBy)
		if err != nil {
			return nil, err
		}
		limit, err := boundedInt("limit", p.Limit, DefaultSegmentLimit, 1, MaxSegmentLimit)
		if err != nil {
			return nil, err
		}
		return s.repo.SegmentStats(ctx, sortBy, limit)
	})
}

// JourneysByLine lists the most recent journeys of a line. An unknown line
// yields an empty list.
func (s *Service) JourneysByLine(ctx context.Context, line string, limit *int) (*models.LineJourneys, error) {
	return observe(ctx, "journeys_by_line", func(ctx context.Context) (*models.LineJourneys, error) {
		if strings.TrimSpace(line) == "" {
			return nil, &ParamError{Param: "line", Reason: "is required"}
		}
		n, err := boundedInt("limit", limit, DefaultJourneyLimit, 1, MaxJourneyLimit)
		if err != nil {
			return nil, err
		}
		return s.repo.JourneysByLine(ctx, line, n)
	})
}

// JourneyDetail lists every observed segment of one journey. An unknown
// journey yields a detail with no segments.
func (s *Service) JourneyDetail(ctx context.Context, journeyID string) (*models.JourneyDetail, error) {
	return observe(ctx, "journey_detail", func(ctx context.Context) (*models.JourneyDetail, error) {
		if strings.TrimSpace(journeyID) == "" {
			return nil, &ParamError{Param: "journey_id", Reason: "is required"}
		}
		return s.repo.JourneyDetail(ctx, journeyID)
	})
}
