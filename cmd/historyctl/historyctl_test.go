package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbpranger/delay-api/models"
)

const (
	batchJ1 = `{"ingestion_iso":"2025-01-01T10:00:00","box_index":0,"journeys":[{"journeyID":"J1","line":{"name":"U3","type":{"simpleType":"TRAIN"}},"vehicleType":"U_BAHN","segments":[{"startStationKey":"Master:A","endStationKey":"Master:B","startDateTime":1000,"realtimeDelay":1}]}]}`
	batchJ2 = `{"ingestion_iso":"2025-01-01T10:01:00","box_index":1,"journeys":[{"journeyID":"J2","line":{"name":"6","type":{"simpleType":"BUS"}},"vehicleType":"METROBUS","segments":[{"startStationKey":"Master:B","endStationKey":"Master:C","startDateTime":1100,"realtimeDelay":6},{"startStationKey":"Master:C","endStationKey":"Master:D","startDateTime":1200}]}]}`
)

func writeLogs(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	content := batchJ1 + "\n" + batchJ2 + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "transport_2025-01-01.jsonl"), []byte(content), 0o644))
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestStatsCommand(t *testing.T) {
	dir := writeLogs(t)

	out, err := execute(t, "stats", "--data-dir", dir, "--timezone", "UTC")
	require.NoError(t, err)

	var stats models.OverallStats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 2, stats.TotalJourneys)
	assert.Equal(t, 3, stats.TotalSegments)
	assert.Equal(t, 0.5, stats.AvgDelayMinutes)
}

func TestJourneysCommand(t *testing.T) {
	dir := writeLogs(t)

	out, err := execute(t, "journeys", "-d", dir, "--line", "6", "--limit", "1")
	require.NoError(t, err)
	var page models.SegmentPage
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	assert.Equal(t, 2, page.Total)
	assert.True(t, page.HasMore)
	require.Len(t, page.Journeys, 1)

	out, err = execute(t, "journeys", "6", "-d", dir)
	require.NoError(t, err)
	var byLine models.LineJourneys
	require.NoError(t, json.Unmarshal([]byte(out), &byLine))
	assert.Equal(t, "6", byLine.Line)
	assert.Equal(t, 1, byLine.Total)
}

func TestJourneyCommand(t *testing.T) {
	dir := writeLogs(t)

	out, err := execute(t, "journey", "J2", "-d", dir)
	require.NoError(t, err)
	var detail models.JourneyDetail
	require.NoError(t, json.Unmarshal([]byte(out), &detail))
	assert.Equal(t, 2, detail.TotalSegments)

	_, err = execute(t, "journey", "missing", "-d", dir)
	assert.ErrorContains(t, err, "journey missing not found")
}

func TestInvalidParameters(t *testing.T) {
	dir := writeLogs(t)

	_, err := execute(t, "segments", "-d", dir, "--sort-by", "median")
	assert.ErrorContains(t, err, "sort_by")

	_, err = execute(t, "timeline", "-d", dir, "--bucket-minutes", "0")
	assert.ErrorContains(t, err, "bucket_minutes")

	_, err = execute(t, "stats", "-d", dir, "--timezone", "Mars/Olympus")
	assert.ErrorContains(t, err, "invalid timezone")
}

func TestTimelineCommand(t *testing.T) {
	dir := writeLogs(t)

	out, err := execute(t, "timeline", "-d", dir, "-b", "30")
	require.NoError(t, err)
	var buckets []models.TimeBucket
	require.NoError(t, json.Unmarshal([]byte(out), &buckets))
	require.Len(t, buckets, 1)
	assert.Equal(t, 3, buckets[0].Count)
}

func TestExportCommand(t *testing.T) {
	dir := writeLogs(t)

	out, err := execute(t, "export", "-d", dir)
	require.NoError(t, err)
	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, csvHeader, records[0])
	assert.Equal(t, "J1", records[1][3])
	assert.Equal(t, "", records[3][15], "null delay exports as an empty cell")

	path := filepath.Join(t.TempDir(), "final.csv")
	_, err = execute(t, "export", "-d", dir, "--final-only", "-o", path)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	records, err = csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "Master:C", records[2][10], "J2 ends on its latest segment")
}
