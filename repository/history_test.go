package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbpranger/delay-api/models"
)

func strp(s string) *string { return &s }
func intp(i int) *int       { return &i }
func i64p(i int64) *int64   { return &i }

// seg builds a row on the A->B station pair; a negative delay means null
func seg(id int64, journey, line string, start int64, delay int) models.FlatRow {
	r := models.FlatRow{
		RowID:           id,
		JourneyID:       strp(journey),
		Line:            strp(line),
		Direction:       strp("Innenstadt"),
		LineType:        strp("BUS"),
		VehicleType:     strp("METROBUS"),
		StartStation:    strp("Station A"),
		StartStationKey: strp("Master:A"),
		EndStation:      strp("Station B"),
		EndStationKey:   strp("Master:B"),
		StartTimestamp:  i64p(start),
		EndTimestamp:    i64p(start + 120),
	}
	if delay >= 0 {
		r.DelayMinutes = intp(delay)
	}
	return r
}

func newTestRepo(t *testing.T, rows []models.FlatRow, obs []models.WeatherObservation) *HistoryRepository {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	ctx := context.Background()
	snap, err := NewSnapshotDB(ctx, uuid.NewString(), "", loc)
	require.NoError(t, err)
	t.Cleanup(func() { snap.Close() })

	result, err := snap.Load(ctx, rows, obs)
	require.NoError(t, err)
	require.Equal(t, len(rows), result.Segments)

	return NewHistoryRepository(snap.GetDB())
}

func TestFinalSegment_EndToEndScenario(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, []models.FlatRow{
		seg(1, "J1", "6", 1000, 1),
		seg(2, "J1", "6", 1100, 6),
	}, nil)

	finals, err := repo.FinalPerJourney(ctx)
	require.NoError(t, err)
	require.Len(t, finals, 1)
	final := finals["J1"]
	assert.Equal(t, int64(1100), *final.StartTimestamp)
	assert.Equal(t, 6, *final.DelayMinutes)
	assert.Equal(t, models.StatusCritical, models.ClassifyDelay(float64(*final.DelayMinutes)))

	stats, err := repo.OverallStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalSegments)
	assert.Equal(t, 1, stats.TotalJourneys)
	assert.Equal(t, 6.0, stats.AvgDelayMinutes)
	assert.Equal(t, 1, stats.DelayedJourneys)
	assert.Equal(t, 100.0, stats.DelayedPercentage)
	assert.Equal(t, models.StatusCritical, stats.Status)
}

func TestFinalPerJourney_OneRowPerJourneyWithLatestTimestamp(t *testing.T) {
	ctx := context.Background()
	rows := []models.FlatRow{
		seg(1, "J1", "6", 3000, 2),
		seg(2, "J2", "U3", 1000, 0),
		seg(3, "J1", "6", 1000, 9),
		seg(4, "J3", "U3", 500, -1),
		seg(5, "J2", "U3", 4000, 4),
		seg(6, "J1", "6", 2000, 1),
	}
	// Missing start timestamp never wins over a known one
	noTS := seg(7, "J3", "U3", 0, 8)
	noTS.StartTimestamp = nil
	rows = append(rows, noTS)
	// Rows without a journey are not journeys
	orphan := seg(8, "", "U3", 9000, 1)
	orphan.JourneyID = nil
	rows = append(rows, orphan)

	repo := newTestRepo(t, rows, nil)

	finals, err := repo.FinalPerJourney(ctx)
	require.NoError(t, err)
	require.Len(t, finals, 3)

	for id, final := range finals {
		for _, r := range rows {
			if r.JourneyID == nil || *r.JourneyID != id || r.StartTimestamp == nil {
				continue
			}
			assert.GreaterOrEqual(t, *final.StartTimestamp, *r.StartTimestamp, "journey %s", id)
		}
	}
	assert.Equal(t, int64(1), finals["J1"].RowID)
	assert.Equal(t, int64(5), finals["J2"].RowID)
	assert.Equal(t, int64(4), finals["J3"].RowID)
	assert.Nil(t, finals["J3"].DelayMinutes)
}

func TestFinalPerJourney_TieBreaksOnLoadOrder(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, []models.FlatRow{
		seg(1, "J1", "6", 2000, 3),
		seg(2, "J1", "6", 2000, 7),
	}, nil)

	finals, err := repo.FinalPerJourney(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), finals["J1"].RowID)

	detail, err := repo.JourneyDetail(ctx, "J1")
	require.NoError(t, err)
	require.NotNil(t, detail.FinalDelayMinutes)
	assert.Equal(t, 3, *detail.FinalDelayMinutes, "detail agrees with the selector")
}

func TestSegmentStats_Scenario(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, []models.FlatRow{
		seg(1, "J1", "U3", 1000, 1),
		seg(2, "J2", "U3", 1100, 3),
		seg(3, "J3", "6", 1200, 5),
	}, nil)

	stats, err := repo.SegmentStats(ctx, models.SegmentSortAvg, 50)
	require.NoError(t, err)
	require.Len(t, stats, 1)

	s := stats[0]
	assert.Equal(t, "Master:A", *s.StartStationKey)
	assert.Equal(t, "Station B", *s.EndStation)
	assert.Equal(t, 3.0, s.AvgDelay)
	assert.Equal(t, 5, s.MaxDelay)
	assert.Equal(t, 1, s.MinDelay)
	assert.Equal(t, 9, s.TotalDelay)
	assert.Equal(t, 3, s.Count)
	assert.Equal(t, 66.7, s.DelayedPercentage)
	assert.Equal(t, []string{"6", "U3"}, s.Lines)
	assert.Equal(t, models.StatusWarning, s.Status)
}

func TestSegmentStats_SortAndLimit(t *testing.T) {
	ctx := context.Background()
	pair := func(r models.FlatRow, from, to string) models.FlatRow {
		r.StartStationKey, r.EndStationKey = strp(from), strp(to)
		return r
	}
	repo := newTestRepo(t, []models.FlatRow{
		// X->Y: avg 4, max 4, total 8
		pair(seg(1, "J1", "6", 1000, 4), "X", "Y"),
		pair(seg(2, "J2", "6", 1000, 4), "X", "Y"),
		// Y->Z: avg 3, max 6, total 9
		pair(seg(3, "J3", "6", 1000, 0), "Y", "Z"),
		pair(seg(4, "J4", "6", 1000, 6), "Y", "Z"),
		pair(seg(5, "J5", "6", 1000, 3), "Y", "Z"),
		// A->C: avg 4, max 4, total 4, ties with X->Y on avg
		pair(seg(6, "J6", "6", 1000, 4), "A", "C"),
	}, nil)

	keys := func(stats []models.SegmentStats) []string {
		out := make([]string, 0, len(stats))
		for _, s := range stats {
			out = append(out, *s.StartStationKey+"->"+*s.EndStationKey)
		}
		return out
	}

	byAvg, err := repo.SegmentStats(ctx, models.SegmentSortAvg, 50)
	require.NoError(t, err)
	assert.Equal(t, []string{"A->C", "X->Y", "Y->Z"}, keys(byAvg))

	byMax, err := repo.SegmentStats(ctx, models.SegmentSortMax, 50)
	require.NoError(t, err)
	assert.Equal(t, []string{"Y->Z", "A->C", "X->Y"}, keys(byMax))

	byTotal, err := repo.SegmentStats(ctx, models.SegmentSortTotal, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"Y->Z", "X->Y"}, keys(byTotal))

	_, err = repo.SegmentStats(ctx, models.SegmentSort("delay; DROP TABLE segments"), 10)
	assert.ErrorIs(t, err, ErrUnknownSort)
}

func TestListSegments_Pagination(t *testing.T) {
	ctx := context.Background()
	var rows []models.FlatRow
	// Inserted out of time order; listing must sort
	starts := []int64{5000, 1000, 3000, 2000, 4000}
	for i, s := range starts {
		rows = append(rows, seg(int64(i+1), "J", "6", s, i))
	}
	repo := newTestRepo(t, rows, nil)
	total := len(rows)

	for _, tc := range []struct{ offset, limit int }{
		{0, 1}, {0, 5}, {0, 100}, {2, 2}, {3, 2}, {4, 10}, {5, 1}, {50, 10},
	} {
		page, err := repo.ListSegments(ctx, SegmentFilter{}, tc.limit, tc.offset)
		require.NoError(t, err)

		want := tc.limit
		if rest := total - tc.offset; rest < want {
			want = rest
		}
		if want < 0 {
			want = 0
		}
		assert.Len(t, page.Journeys, want, "offset=%d limit=%d", tc.offset, tc.limit)
		assert.Equal(t, tc.offset+tc.limit < total, page.HasMore, "offset=%d limit=%d", tc.offset, tc.limit)
		assert.Equal(t, total, page.Total)
	}

	page, err := repo.ListSegments(ctx, SegmentFilter{}, 5, 0)
	require.NoError(t, err)
	var got []int64
	for _, r := range page.Journeys {
		got = append(got, *r.StartTimestamp)
	}
	assert.Equal(t, []int64{1000, 2000, 3000, 4000, 5000}, got)
}

func TestListSegments_Filters(t *testing.T) {
	ctx := context.Background()
	tram := seg(3, "J3", "U3", 3000, 0)
	tram.VehicleType = strp("U_BAHN")
	repo := newTestRepo(t, []models.FlatRow{
		seg(1, "J1", "6", 1000, 0),
		seg(2, "J2", "U3", 2000, 0),
		tram,
	}, nil)

	page, err := repo.ListSegments(ctx, SegmentFilter{Line: strp("U3")}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)

	page, err = repo.ListSegments(ctx, SegmentFilter{Line: strp("U3"), VehicleType: strp("U_BAHN")}, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	assert.Equal(t, int64(3), page.Journeys[0].RowID)

	known, err := repo.HasLine(ctx, "U3")
	require.NoError(t, err)
	assert.True(t, known)
	known, err = repo.HasVehicleType(ctx, "FERRY")
	require.NoError(t, err)
	assert.False(t, known)
}

func TestStatsByLine(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, []models.FlatRow{
		seg(1, "J1", "6", 1000, 10),
		seg(2, "J1", "6", 2000, 1), // final for J1
		seg(3, "J2", "6", 2000, 3), // final for J2
		seg(4, "J3", "U3", 1000, 7),
	}, nil)

	stats, err := repo.StatsByLine(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)

	assert.Equal(t, "U3", *stats[0].Line)
	assert.Equal(t, 7.0, stats[0].AvgDelayMinutes)
	assert.Equal(t, models.StatusCritical, stats[0].Status)

	six := stats[1]
	assert.Equal(t, "6", *six.Line)
	assert.Equal(t, 2.0, six.AvgDelayMinutes)
	assert.Equal(t, 3, six.MaxDelayMinutes, "max over final segments only")
	assert.Equal(t, 2, six.TotalJourneys)
	assert.Equal(t, 3, six.TotalSegments)
	assert.Equal(t, 50.0, six.DelayedPercentage)
	assert.Equal(t, models.StatusGood, six.Status)
}

func TestLines(t *testing.T) {
	ctx := context.Background()
	other := seg(3, "J3", "6", 1200, 0)
	other.Direction = strp("Altona")
	noLine := seg(4, "J4", "", 1300, 0)
	noLine.Line = nil
	repo := newTestRepo(t, []models.FlatRow{
		seg(1, "J1", "U3", 1000, 1),
		seg(2, "J2", "6", 1100, 2),
		other,
		noLine,
	}, nil)

	lines, err := repo.Lines(ctx)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "6", *lines[0].Name)
	assert.Equal(t, "Altona", *lines[0].Direction, "smallest direction of the group")
	assert.Equal(t, "U3", *lines[1].Name)
	assert.Equal(t, "METROBUS", *lines[1].VehicleType)
}

func TestDelaysOverTime_FloorBuckets(t *testing.T) {
	ctx := context.Background()
	noTS := seg(5, "J5", "6", 0, 9)
	noTS.StartTimestamp = nil
	repo := newTestRepo(t, []models.FlatRow{
		seg(1, "J1", "6", 3599, 2),
		seg(2, "J2", "6", 3600, 4),
		seg(3, "J3", "6", 7199, -1),
		seg(4, "J4", "6", -1, 1),
		noTS,
	}, nil)

	buckets, err := repo.DelaysOverTime(ctx, 3600)
	require.NoError(t, err)
	require.Len(t, buckets, 3)

	assert.Equal(t, int64(-3600), buckets[0].BucketStart)
	assert.Equal(t, int64(0), buckets[1].BucketStart)
	assert.Equal(t, 1, buckets[1].Count)

	b := buckets[2]
	assert.Equal(t, int64(3600), b.BucketStart)
	assert.Equal(t, "1970-01-01T01:00:00Z", b.Timestamp)
	assert.Equal(t, 2, b.Count)
	assert.Equal(t, 2.0, b.AvgDelay, "missing delay counts as zero")
	assert.Equal(t, 4, b.MaxDelay)
	assert.Equal(t, 0, b.MinDelay)

	_, err = repo.DelaysOverTime(ctx, 0)
	assert.Error(t, err)
}

func TestHeatmap_LocalTime(t *testing.T) {
	ctx := context.Background()
	// 2025-01-01T10:00:00Z is Wednesday 11:00 in Berlin
	const wed10utc = 1735725600
	repo := newTestRepo(t, []models.FlatRow{
		seg(1, "J1", "6", wed10utc, 1),
		seg(2, "J2", "6", wed10utc+600, 5),
		// 2024-12-29T12:00:00Z is Sunday 13:00 in Berlin
		seg(3, "J3", "6", wed10utc-3*86400+7200, 0),
	}, nil)

	cells, err := repo.Heatmap(ctx)
	require.NoError(t, err)
	require.Len(t, cells, 2)

	assert.Equal(t, 1, cells[0].DayOfWeek)
	assert.Equal(t, "Sonntag", cells[0].DayName)
	assert.Equal(t, 13, cells[0].Hour)

	wed := cells[1]
	assert.Equal(t, 4, wed.DayOfWeek)
	assert.Equal(t, "Mittwoch", wed.DayName)
	assert.Equal(t, 11, wed.Hour)
	assert.Equal(t, 2, wed.Count)
	assert.Equal(t, 3.0, wed.AvgDelay)
	assert.Equal(t, 50.0, wed.DelayedPercentage)
}

func TestJourneysByLine(t *testing.T) {
	ctx := context.Background()
	first := seg(1, "J1", "6", 1000, 2)
	first.StartStation = strp("Rathaus")
	last := seg(3, "J1", "6", 1300, 6)
	last.EndStation = strp("Altona")
	repo := newTestRepo(t, []models.FlatRow{
		first,
		seg(2, "J2", "6", 5000, -1),
		last,
		seg(4, "J1", "6", 1100, 0),
		seg(5, "J9", "U3", 9000, 0),
	}, nil)

	result, err := repo.JourneysByLine(ctx, "6", 50)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)
	require.Len(t, result.Journeys, 2)

	j2 := result.Journeys[0]
	assert.Equal(t, "J2", j2.JourneyID, "latest start first")
	assert.Nil(t, j2.FinalDelayMinutes)
	assert.Nil(t, j2.Status, "unknown delay has no status")

	j1 := result.Journeys[1]
	assert.Equal(t, 3, j1.SegmentCount)
	assert.Equal(t, 6, j1.MaxDelayMinutes)
	assert.Equal(t, 0, j1.MinDelayMinutes)
	assert.Equal(t, 2.67, j1.AvgDelayMinutes)
	require.NotNil(t, j1.FinalDelayMinutes)
	assert.Equal(t, 6, *j1.FinalDelayMinutes)
	assert.Equal(t, "Rathaus", *j1.FirstStation)
	assert.Equal(t, "Altona", *j1.LastStation)
	assert.Equal(t, int64(1000), *j1.StartTime)
	assert.Equal(t, int64(1420), *j1.EndTime)
	require.NotNil(t, j1.Status)
	assert.Equal(t, models.StatusCritical, *j1.Status)

	limited, err := repo.JourneysByLine(ctx, "6", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, limited.Total)
	assert.Len(t, limited.Journeys, 1)

	none, err := repo.JourneysByLine(ctx, "X99", 50)
	require.NoError(t, err)
	assert.Zero(t, none.Total)
	assert.NotNil(t, none.Journeys)
	assert.Empty(t, none.Journeys)
}

func TestJourneyDetail(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, []models.FlatRow{
		seg(1, "J1", "6", 1200, 4),
		seg(2, "J1", "6", 1000, -1),
		seg(3, "J1", "6", 1100, 2),
	}, nil)

	detail, err := repo.JourneyDetail(ctx, "J1")
	require.NoError(t, err)
	require.Len(t, detail.Segments, 3)
	assert.Equal(t, 3, detail.TotalSegments)

	assert.Equal(t, int64(1000), *detail.Segments[0].StartTimestamp)
	assert.Nil(t, detail.Segments[0].Status)
	assert.Equal(t, models.StatusGood, *detail.Segments[1].Status)
	assert.Equal(t, models.StatusWarning, *detail.Segments[2].Status)

	assert.Equal(t, 2.0, detail.AvgDelay)
	assert.Equal(t, 4, *detail.FinalDelayMinutes)
	assert.Equal(t, models.StatusWarning, *detail.FinalStatus)
	assert.Equal(t, "6", *detail.Line)

	missing, err := repo.JourneyDetail(ctx, "nope")
	require.NoError(t, err)
	assert.True(t, missing.IsEmpty())
	assert.Nil(t, missing.FinalDelayMinutes)
}

func TestHourlyDelaysWithWeather(t *testing.T) {
	ctx := context.Background()
	const hour = 1735725600
	repo := newTestRepo(t,
		[]models.FlatRow{
			seg(1, "J1", "6", hour+100, 2),
			seg(2, "J2", "6", hour+3600+5, 4),
		},
		[]models.WeatherObservation{
			{TimestampUnix: i64p(hour + 3000), TemperatureC: func() *float64 { v := 1.5; return &v }()},
			{TimestampUnix: i64p(hour + 1800), TemperatureC: func() *float64 { v := 3.5; return &v }(), WeatherCode: intp(61)},
			{TemperatureC: func() *float64 { v := 99.0; return &v }()},
		},
	)

	buckets, err := repo.HourlyDelaysWithWeather(ctx)
	require.NoError(t, err)
	require.Len(t, buckets, 2)

	require.NotNil(t, buckets[0].TemperatureC)
	assert.Equal(t, 3.5, *buckets[0].TemperatureC, "first observation in the hour")
	assert.Equal(t, 61, *buckets[0].WeatherCode)
	assert.Nil(t, buckets[0].WindSpeedKMH)

	assert.Equal(t, int64(hour+3600), buckets[1].BucketStart)
	assert.Nil(t, buckets[1].TemperatureC)
}

func TestEmptySnapshot(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, nil, nil)

	page, err := repo.ListSegments(ctx, SegmentFilter{}, 100, 0)
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	assert.False(t, page.HasMore)
	assert.NotNil(t, page.Journeys)

	stats, err := repo.OverallStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.OverallStats{Status: models.StatusGood}, *stats)

	lines, err := repo.StatsByLine(ctx)
	require.NoError(t, err)
	assert.NotNil(t, lines)
	assert.Empty(t, lines)

	buckets, err := repo.DelaysOverTime(ctx, 3600)
	require.NoError(t, err)
	assert.Empty(t, buckets)

	cells, err := repo.Heatmap(ctx)
	require.NoError(t, err)
	assert.Empty(t, cells)

	segs, err := repo.SegmentStats(ctx, models.SegmentSortAvg, 50)
	require.NoError(t, err)
	assert.Empty(t, segs)

	journeys, err := repo.JourneysByLine(ctx, "6", 50)
	require.NoError(t, err)
	assert.Empty(t, journeys.Journeys)

	detail, err := repo.JourneyDetail(ctx, "J1")
	require.NoError(t, err)
	assert.True(t, detail.IsEmpty())

	finals, err := repo.FinalPerJourney(ctx)
	require.NoError(t, err)
	assert.Empty(t, finals)
}

func TestAggregationsAreIdempotent(t *testing.T) {
	ctx := context.Background()
	var rows []models.FlatRow
	lines := []string{"6", "U3", "S1"}
	for i := int64(1); i <= 60; i++ {
		r := seg(i, "J"+string(rune('A'+i%7)), lines[i%3], 1735725600+i*997, int(i%9))
		r.StartStationKey = strp("Master:" + string(rune('A'+i%4)))
		rows = append(rows, r)
	}
	repo := newTestRepo(t, rows, nil)

	run := func() []byte {
		var out []interface{}
		page, err := repo.ListSegments(ctx, SegmentFilter{}, 25, 10)
		require.NoError(t, err)
		stats, err := repo.OverallStats(ctx)
		require.NoError(t, err)
		byLine, err := repo.StatsByLine(ctx)
		require.NoError(t, err)
		buckets, err := repo.DelaysOverTime(ctx, 1800)
		require.NoError(t, err)
		cells, err := repo.Heatmap(ctx)
		require.NoError(t, err)
		segs, err := repo.SegmentStats(ctx, models.SegmentSortTotal, 3)
		require.NoError(t, err)
		journeys, err := repo.JourneysByLine(ctx, "U3", 5)
		require.NoError(t, err)
		detail, err := repo.JourneyDetail(ctx, "JB")
		require.NoError(t, err)
		out = append(out, page, stats, byLine, buckets, cells, segs, journeys, detail)
		b, err := json.Marshal(out)
		require.NoError(t, err)
		return b
	}

	assert.Equal(t, string(run()), string(run()))
}
