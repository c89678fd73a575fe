package handlers

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dbpranger/delay-api/history"
	"github.com/dbpranger/delay-api/models"
	"github.com/dbpranger/delay-api/stations"
)

// HistoryService defines the read operations over the delay history
type HistoryService interface {
	ListSegments(ctx context.Context, p history.ListParams) (*models.SegmentPage, error)
	OverallStats(ctx context.Context) (*models.OverallStats, error)
	StatsByLine(ctx context.Context) ([]models.LineStats, error)
	Lines(ctx context.Context) ([]models.LineInfo, error)
	JourneysByLine(ctx context.Context, line string, limit *int) (*models.LineJourneys, error)
	JourneyDetail(ctx context.Context, journeyID string) (*models.JourneyDetail, error)
	DelaysOverTime(ctx context.Context, bucketMinutes *int) ([]models.TimeBucket, error)
	HourlyDelaysWithWeather(ctx context.Context) ([]models.WeatherBucket, error)
	Heatmap(ctx context.Context) ([]models.HeatmapCell, error)
	SegmentStats(ctx context.Context, p history.SegmentParams) ([]models.SegmentStats, error)
}

// StationEnricher adds coordinates to station-pair aggregates
type StationEnricher interface {
	Enrich(segments []models.SegmentStats) []models.EnrichedSegment
}

// HistoryHandler handles HTTP requests for historical delay data
type HistoryHandler struct {
	svc      HistoryService
	stations StationEnricher
	timeout  time.Duration
}

// NewHistoryHandler creates a new handler. timeout bounds every request.
func NewHistoryHandler(svc HistoryService, stations StationEnricher, timeout time.Duration) *HistoryHandler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HistoryHandler{svc: svc, stations: stations, timeout: timeout}
}

// LinesResponse is the JSON response for GET /api/history/lines
type LinesResponse struct {
	Lines []models.LineInfo `json:"lines"`
	Count int               `json:"count"`
}

// LineStatsResponse is the JSON response for GET /api/history/lines/stats
type LineStatsResponse struct {
	Lines []models.LineStats `json:"lines"`
	Count int                `json:"count"`
}

// DelaysResponse is the JSON response for GET /api/history/delays
type DelaysResponse struct {
	BucketMinutes int                 `json:"bucket_minutes"`
	Buckets       []models.TimeBucket `json:"buckets"`
	Count         int                 `json:"count"`
}

// WeatherDelaysResponse is the JSON response for GET /api/history/delays/weather
type WeatherDelaysResponse struct {
	Buckets []models.WeatherBucket `json:"buckets"`
	Count   int                    `json:"count"`
}

// HeatmapResponse is the JSON response for GET /api/history/heatmap
type HeatmapResponse struct {
	Cells []models.HeatmapCell `json:"cells"`
	Count int                  `json:"count"`
}

// SegmentsResponse is the JSON response for GET /api/history/segments
type SegmentsResponse struct {
	SortBy   string                `json:"sort_by"`
	Segments []models.SegmentStats `json:"segments"`
	Count    int                   `json:"count"`
}

// SegmentMapResponse is the JSON response for GET /api/history/segments/map.
// Total counts the ranked segments before those without coordinates were dropped.
type SegmentMapResponse struct {
	SortBy   string                   `json:"sort_by"`
	Segments []models.EnrichedSegment `json:"segments"`
	Count    int                      `json:"count"`
	Total    int                      `json:"total"`
}

// ListJourneys handles GET /api/history/journeys
// Query params: limit, offset, line, vehicle_type (all optional)
func (h *HistoryHandler) ListJourneys(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, err, "Invalid request")
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeError(w, err, "Invalid request")
		return
	}

	page, err := h.svc.ListSegments(ctx, history.ListParams{
		Limit:       limit,
		Offset:      offset,
		Line:        queryString(r, "line"),
		VehicleType: queryString(r, "vehicle_type"),
	})
	if err != nil {
		writeError(w, err, "Failed to list journeys")
		return
	}

	writeJSON(w, http.StatusOK, page)
}

// GetStats handles GET /api/history/stats
func (h *HistoryHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	stats, err := h.svc.OverallStats(ctx)
	if err != nil {
		writeError(w, err, "Failed to get delay statistics")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// GetLines handles GET /api/history/lines
func (h *HistoryHandler) GetLines(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	lines, err := h.svc.Lines(ctx)
	if err != nil {
		writeError(w, err, "Failed to get lines")
		return
	}

	writeJSON(w, http.StatusOK, LinesResponse{Lines: lines, Count: len(lines)})
}

// GetLineStats handles GET /api/history/lines/stats
func (h *HistoryHandler) GetLineStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	stats, err := h.svc.StatsByLine(ctx)
	if err != nil {
		writeError(w, err, "Failed to get line statistics")
		return
	}

	writeJSON(w, http.StatusOK, LineStatsResponse{Lines: stats, Count: len(stats)})
}

// GetLineJourneys handles GET /api/history/lines/{line}/journeys
// Query params: limit (optional, default 50)
func (h *HistoryHandler) GetLineJourneys(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	line, err := url.PathUnescape(chi.URLParam(r, "line"))
	if err != nil {
		writeError(w, &history.ParamError{Param: "line", Reason: "invalid escape"}, "Invalid request")
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, err, "Invalid request")
		return
	}

	journeys, err := h.svc.JourneysByLine(ctx, line, limit)
	if err != nil {
		writeError(w, err, "Failed to get line journeys")
		return
	}

	writeJSON(w, http.StatusOK, journeys)
}

// GetJourneyDetail handles GET /api/history/journeys/{journeyId}
// Returns 404 when the journey has no recorded segments
func (h *HistoryHandler) GetJourneyDetail(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	journeyID, err := url.PathUnescape(chi.URLParam(r, "journeyId"))
	if err != nil {
		writeError(w, &history.ParamError{Param: "journey_id", Reason: "invalid escape"}, "Invalid request")
		return
	}

	detail, err := h.svc.JourneyDetail(ctx, journeyID)
	if err != nil {
		writeError(w, err, "Failed to get journey detail")
		return
	}

	if detail.IsEmpty() {
		writeJSON(w, http.StatusNotFound, ErrorResponse{
			Error: "Journey not found",
			Details: map[string]interface{}{
				"journey_id": journeyID,
			},
		})
		return
	}

	writeJSON(w, http.StatusOK, detail)
}

// GetDelays handles GET /api/history/delays
// Query params: bucket_minutes (optional, default 60)
func (h *HistoryHandler) GetDelays(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	bucket, err := queryInt(r, "bucket_minutes")
	if err != nil {
		writeError(w, err, "Invalid request")
		return
	}

	buckets, err := h.svc.DelaysOverTime(ctx, bucket)
	if err != nil {
		writeError(w, err, "Failed to get delays over time")
		return
	}

	minutes := history.DefaultBucketMinutes
	if bucket != nil {
		minutes = *bucket
	}
	writeJSON(w, http.StatusOK, DelaysResponse{BucketMinutes: minutes, Buckets: buckets, Count: len(buckets)})
}

// GetDelaysWithWeather handles GET /api/history/delays/weather
func (h *HistoryHandler) GetDelaysWithWeather(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	buckets, err := h.svc.HourlyDelaysWithWeather(ctx)
	if err != nil {
		writeError(w, err, "Failed to get delays with weather")
		return
	}

	writeJSON(w, http.StatusOK, WeatherDelaysResponse{Buckets: buckets, Count: len(buckets)})
}

// GetHeatmap handles GET /api/history/heatmap
func (h *HistoryHandler) GetHeatmap(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cells, err := h.svc.Heatmap(ctx)
	if err != nil {
		writeError(w, err, "Failed to get heatmap")
		return
	}

	writeJSON(w, http.StatusOK, HeatmapResponse{Cells: cells, Count: len(cells)})
}

func (h *HistoryHandler) segmentStats(ctx context.Context, r *http.Request) (string, []models.SegmentStats, error) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		return "", nil, err
	}
	sortBy := r.URL.Query().Get("sort_by")

	segments, err := h.svc.SegmentStats(ctx, history.SegmentParams{SortBy: sortBy, Limit: limit})
	if err != nil {
		return "", nil, err
	}
	if sortBy == "" {
		sortBy = string(models.SegmentSortAvg)
	}
	return sortBy, segments, nil
}

// GetSegments handles GET /api/history/segments
// Query params: sort_by (avg, max, total; default avg), limit (default 50)
func (h *HistoryHandler) GetSegments(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sortBy, segments, err := h.segmentStats(ctx, r)
	if err != nil {
		writeError(w, err, "Failed to get segment statistics")
		return
	}

	writeJSON(w, http.StatusOK, SegmentsResponse{SortBy: sortBy, Segments: segments, Count: len(segments)})
}

// GetSegmentsMap handles GET /api/history/segments/map
// Same parameters as GetSegments; only segments whose endpoints could both
// be located are returned.
func (h *HistoryHandler) GetSegmentsMap(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sortBy, segments, err := h.segmentStats(ctx, r)
	if err != nil {
		writeError(w, err, "Failed to get segment statistics")
		return
	}

	var onMap []models.EnrichedSegment
	if h.stations != nil {
		onMap = stations.WithCoordinates(h.stations.Enrich(segments))
	} else {
		onMap = []models.EnrichedSegment{}
	}

	writeJSON(w, http.StatusOK, SegmentMapResponse{
		SortBy:   sortBy,
		Segments: onMap,
		Count:    len(onMap),
		Total:    len(segments),
	})
}
