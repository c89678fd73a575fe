package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbpranger/delay-api/history"
	"github.com/dbpranger/delay-api/models"
	"github.com/dbpranger/delay-api/stations"
)

func strp(s string) *string { return &s }

func row(id int64, journey, line, vehicle, from, to string, start int64, delay *int) models.FlatRow {
	return models.FlatRow{
		RowID:           id,
		JourneyID:       strp(journey),
		Line:            strp(line),
		VehicleType:     strp(vehicle),
		StartStationKey: strp(from),
		EndStationKey:   strp(to),
		StartTimestamp:  &start,
		DelayMinutes:    delay,
	}
}

func delay(d int) *int { return &d }

func newHistoryRouter(t *testing.T, svc HistoryService) http.Handler {
	t.Helper()
	dir := stations.NewDirectory([]models.Station{
		{ID: "Master:A", Name: "A", Lat: 53.1, Lon: 10.1},
		{ID: "Master:B", Name: "B", Lat: 53.2, Lon: 10.2},
	})
	h := NewHistoryHandler(svc, dir, time.Second)

	r := chi.NewRouter()
	r.Get("/api/history/journeys", h.ListJourneys)
	r.Get("/api/history/journeys/{journeyId}", h.GetJourneyDetail)
	r.Get("/api/history/stats", h.GetStats)
	r.Get("/api/history/lines", h.GetLines)
	r.Get("/api/history/lines/stats", h.GetLineStats)
	r.Get("/api/history/lines/{line}/journeys", h.GetLineJourneys)
	r.Get("/api/history/delays", h.GetDelays)
	r.Get("/api/history/delays/weather", h.GetDelaysWithWeather)
	r.Get("/api/history/heatmap", h.GetHeatmap)
	r.Get("/api/history/segments", h.GetSegments)
	r.Get("/api/history/segments/map", h.GetSegmentsMap)
	return r
}

func newTestService(t *testing.T) *history.Service {
	t.Helper()
	svc, err := history.FromRows(context.Background(), []models.FlatRow{
		row(1, "J1", "U3", "U_BAHN", "Master:A", "Master:B", 1000, delay(1)),
		row(2, "J2", "6", "METROBUS", "Master:B", "Master:C", 1100, delay(6)),
		row(3, "J2", "6", "METROBUS", "Master:C", "Master:D", 1200, nil),
	}, nil, time.UTC)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestHistoryHandler_Stats(t *testing.T) {
	router := newHistoryRouter(t, newTestService(t))

	rec := get(t, router, "/api/history/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats models.OverallStats
	decode(t, rec, &stats)
	assert.Equal(t, 2, stats.TotalJourneys)
	assert.Equal(t, 3, stats.TotalSegments)
	assert.Equal(t, 0.5, stats.AvgDelayMinutes)
}

func TestHistoryHandler_ParameterErrors(t *testing.T) {
	router := newHistoryRouter(t, newTestService(t))

	tests := []struct {
		target string
		param  string
	}{
		{"/api/history/journeys?limit=abc", "limit"},
		{"/api/history/journeys?limit=0", "limit"},
		{"/api/history/journeys?offset=-5", "offset"},
		{"/api/history/journeys?line=999", "line"},
		{"/api/history/delays?bucket_minutes=2000", "bucket_minutes"},
		{"/api/history/segments?sort_by=bogus", "sort_by"},
		{"/api/history/segments/map?limit=501", "limit"},
		{"/api/history/lines/U3/journeys?limit=x", "limit"},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := get(t, router, tt.target)
			require.Equal(t, http.StatusBadRequest, rec.Code)

			var resp ErrorResponse
			decode(t, rec, &resp)
			assert.Equal(t, tt.param, resp.Details["param"])
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestHistoryHandler_ListJourneys(t *testing.T) {
	router := newHistoryRouter(t, newTestService(t))

	rec := get(t, router, "/api/history/journeys?line=6&limit=1&offset=1")
	require.Equal(t, http.StatusOK, rec.Code)

	var page models.SegmentPage
	decode(t, rec, &page)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 1, page.Limit)
	assert.Equal(t, 1, page.Offset)
	assert.False(t, page.HasMore)
	require.Len(t, page.Journeys, 1)
	assert.Equal(t, int64(3), page.Journeys[0].RowID)
}

func TestHistoryHandler_JourneyDetail(t *testing.T) {
	router := newHistoryRouter(t, newTestService(t))

	rec := get(t, router, "/api/history/journeys/J2")
	require.Equal(t, http.StatusOK, rec.Code)
	var detail models.JourneyDetail
	decode(t, rec, &detail)
	assert.Equal(t, "J2", detail.JourneyID)
	assert.Len(t, detail.Segments, 2)

	rec = get(t, router, "/api/history/journeys/unknown")
	require.Equal(t, http.StatusNotFound, rec.Code)
	var resp ErrorResponse
	decode(t, rec, &resp)
	assert.Equal(t, "unknown", resp.Details["journey_id"])
}

func TestHistoryHandler_LineJourneys(t *testing.T) {
	router := newHistoryRouter(t, newTestService(t))

	rec := get(t, router, "/api/history/lines/6/journeys?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)

	var result models.LineJourneys
	decode(t, rec, &result)
	assert.Equal(t, "6", result.Line)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, 5, result.Limit)
	require.Len(t, result.Journeys, 1)
	assert.Equal(t, 2, result.Journeys[0].SegmentCount)
}

func TestHistoryHandler_Lists(t *testing.T) {
	router := newHistoryRouter(t, newTestService(t))

	var lines LinesResponse
	rec := get(t, router, "/api/history/lines")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &lines)
	assert.Equal(t, 2, lines.Count)

	var lineStats LineStatsResponse
	rec = get(t, router, "/api/history/lines/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &lineStats)
	assert.Equal(t, 2, lineStats.Count)

	var delays DelaysResponse
	rec = get(t, router, "/api/history/delays?bucket_minutes=30")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &delays)
	assert.Equal(t, 30, delays.BucketMinutes)
	assert.Equal(t, 1, delays.Count)

	var weather WeatherDelaysResponse
	rec = get(t, router, "/api/history/delays/weather")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &weather)
	require.Equal(t, 1, weather.Count)
	assert.Nil(t, weather.Buckets[0].TemperatureC)

	var heatmap HeatmapResponse
	rec = get(t, router, "/api/history/heatmap")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &heatmap)
	assert.Equal(t, 1, heatmap.Count)
}

func TestHistoryHandler_Segments(t *testing.T) {
	router := newHistoryRouter(t, newTestService(t))

	var all SegmentsResponse
	rec := get(t, router, "/api/history/segments?sort_by=max")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &all)
	assert.Equal(t, "max", all.SortBy)
	require.Equal(t, 3, all.Count)
	assert.Equal(t, "Master:B", *all.Segments[0].StartStationKey)

	var onMap SegmentMapResponse
	rec = get(t, router, "/api/history/segments/map")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &onMap)
	assert.Equal(t, "avg", onMap.SortBy)
	assert.Equal(t, 3, onMap.Total)
	require.Equal(t, 1, onMap.Count, "only A->B has both coordinates")
	assert.Equal(t, 53.1, *onMap.Segments[0].StartLat)
	assert.Equal(t, 10.2, *onMap.Segments[0].EndLon)
}

func TestHistoryHandler_EmptySnapshot(t *testing.T) {
	svc, err := history.FromRows(context.Background(), nil, nil, time.UTC)
	require.NoError(t, err)
	defer svc.Close()
	router := newHistoryRouter(t, svc)

	for _, target := range []string{
		"/api/history/journeys?line=U3",
		"/api/history/stats",
		"/api/history/lines",
		"/api/history/lines/stats",
		"/api/history/lines/U3/journeys",
		"/api/history/delays",
		"/api/history/delays/weather",
		"/api/history/heatmap",
		"/api/history/segments",
		"/api/history/segments/map",
	} {
		rec := get(t, router, target)
		assert.Equal(t, http.StatusOK, rec.Code, target)
	}

	rec := get(t, router, "/api/history/journeys/J1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// failingService fails every call with a storage error
type failingService struct{ HistoryService }

func (failingService) OverallStats(ctx context.Context) (*models.OverallStats, error) {
	return nil, errors.New("database is locked")
}

func TestHistoryHandler_InternalError(t *testing.T) {
	router := newHistoryRouter(t, failingService{})

	rec := get(t, router, "/api/history/stats")
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp ErrorResponse
	decode(t, rec, &resp)
	assert.Equal(t, "Failed to get delay statistics", resp.Error)
	assert.Equal(t, "database is locked", resp.Details["internal"])
}
