package models

// FlatRow is one observed segment of one journey in one ingestion batch.
// Many rows share a JourneyID: one per segment per observation.
// Nullable columns mirror fields that may be missing in the input log.
type FlatRow struct {
	// RowID is the load sequence number; lower means read earlier
	RowID int64 `json:"row_id"`

	IngestionISO *string `json:"ingestion_iso"`
	BoxIndex     *int    `json:"box_index"`

	JourneyID   *string `json:"journey_id"`
	Line        *string `json:"line"`
	Direction   *string `json:"direction"`
	LineType    *string `json:"line_type"`
	VehicleType *string `json:"vehicle_type"`
	Realtime    *bool   `json:"realtime"`

	StartStation    *string `json:"start_station"`
	StartStationKey *string `json:"start_station_key"`
	EndStation      *string `json:"end_station"`
	EndStationKey   *string `json:"end_station_key"`

	StartTimestamp *int64 `json:"start_timestamp"`
	EndTimestamp   *int64 `json:"end_timestamp"`
	DelayMinutes   *int   `json:"delay_minutes"`

	IsFirst *bool `json:"is_first"`
	IsLast  *bool `json:"is_last"`
}

// DelayOrZero returns the delay with missing values counted as zero
func (r FlatRow) DelayOrZero() int {
	if r.DelayMinutes == nil {
		return 0
	}
	return *r.DelayMinutes
}

// SegmentPage is the response for the paginated row listing
type SegmentPage struct {
	Journeys []FlatRow `json:"journeys"`
	Total    int       `json:"total"`
	Limit    int       `json:"limit"`
	Offset   int       `json:"offset"`
	HasMore  bool      `json:"has_more"`
}

// OverallStats summarises the final delay of every journey in the snapshot
type OverallStats struct {
	AvgDelayMinutes   float64     `json:"avg_delay_minutes"`
	MaxDelayMinutes   int         `json:"max_delay_minutes"`
	MinDelayMinutes   int         `json:"min_delay_minutes"`
	DelayedPercentage float64     `json:"delayed_percentage"`
	DelayedJourneys   int         `json:"delayed_journeys"`
	TotalJourneys     int         `json:"total_journeys"`
	TotalSegments     int         `json:"total_segments"`
	Status            DelayStatus `json:"status"`
}

// LineInfo describes one distinct line seen in the log
type LineInfo struct {
	Name        *string `json:"name"`
	VehicleType *string `json:"vehicle_type"`
	LineType    *string `json:"line_type"`
	Direction   *string `json:"direction"`
}

// LineStats aggregates final journey delays per (line, vehicle type, line type)
type LineStats struct {
	Line              *string     `json:"line"`
	VehicleType       *string     `json:"vehicle_type"`
	LineType          *string     `json:"line_type"`
	AvgDelayMinutes   float64     `json:"avg_delay_minutes"`
	MaxDelayMinutes   int         `json:"max_delay_minutes"`
	DelayedPercentage float64     `json:"delayed_percentage"`
	TotalJourneys     int         `json:"total_journeys"`
	TotalSegments     int         `json:"total_segments"`
	Status            DelayStatus `json:"status"`
}

// TimeBucket aggregates every segment observation that starts in one bucket
type TimeBucket struct {
	BucketStart int64   `json:"bucket_start"`
	Timestamp   string  `json:"timestamp"`
	AvgDelay    float64 `json:"avg_delay"`
	MaxDelay    int     `json:"max_delay"`
	MinDelay    int     `json:"min_delay"`
	Count       int     `json:"count"`
}

// WeatherBucket is an hourly TimeBucket joined with the weather observed in
// that hour. Weather fields are null when no observation matched.
type WeatherBucket struct {
	TimeBucket
	TemperatureC      *float64 `json:"temperature_c"`
	PrecipitationMM   *float64 `json:"precipitation_mm"`
	WindSpeedKMH      *float64 `json:"wind_speed_kmh"`
	WeatherCode       *int     `json:"weather_code"`
	HumidityPercent   *float64 `json:"humidity_percent"`
	CloudCoverPercent *float64 `json:"cloud_cover_percent"`
}

// HeatmapCell aggregates segment observations by local hour and weekday.
// DayOfWeek is Sunday-first: 1=Sunday .. 7=Saturday.
type HeatmapCell struct {
	Hour              int     `json:"hour"`
	DayOfWeek         int     `json:"day_of_week"`
	DayName           string  `json:"day_name"`
	AvgDelay          float64 `json:"avg_delay"`
	MaxDelay          int     `json:"max_delay"`
	Count             int     `json:"count"`
	DelayedPercentage float64 `json:"delayed_percentage"`
}

// SegmentSort selects the metric used to rank station-pair aggregates
type SegmentSort string

const (
	SegmentSortAvg   SegmentSort = "avg"
	SegmentSortMax   SegmentSort = "max"
	SegmentSortTotal SegmentSort = "total"
)

// SegmentStats aggregates every observation of one station pair
type SegmentStats struct {
	StartStation      *string     `json:"start_station"`
	StartStationKey   *string     `json:"start_station_key"`
	EndStation        *string     `json:"end_station"`
	EndStationKey     *string     `json:"end_station_key"`
	AvgDelay          float64     `json:"avg_delay"`
	MaxDelay          int         `json:"max_delay"`
	MinDelay          int         `json:"min_delay"`
	TotalDelay        int         `json:"total_delay"`
	Count             int         `json:"count"`
	DelayedPercentage float64     `json:"delayed_percentage"`
	Lines             []string    `json:"lines"`
	Status            DelayStatus `json:"status"`
}

// LineJourney is one journey of a line with its final state
type LineJourney struct {
	JourneyID         string       `json:"journey_id"`
	Line              *string      `json:"line"`
	Direction         *string      `json:"direction"`
	VehicleType       *string      `json:"vehicle_type"`
	LineType          *string      `json:"line_type"`
	AvgDelayMinutes   float64      `json:"avg_delay_minutes"`
	MaxDelayMinutes   int          `json:"max_delay_minutes"`
	MinDelayMinutes   int          `json:"min_delay_minutes"`
	FinalDelayMinutes *int         `json:"final_delay_minutes"`
	SegmentCount      int          `json:"segment_count"`
	FirstStation      *string      `json:"first_station"`
	LastStation       *string      `json:"last_station"`
	StartTime         *int64       `json:"start_time"`
	EndTime           *int64       `json:"end_time"`
	Status            *DelayStatus `json:"status"`
}

// LineJourneys is the response for the per-line journey listing
type LineJourneys struct {
	Line     string        `json:"line"`
	Journeys []LineJourney `json:"journeys"`
	Total    int           `json:"total"`
	Limit    int           `json:"limit"`
}

// JourneySegment is one row of a journey detail view
type JourneySegment struct {
	StartStation    *string      `json:"start_station"`
	StartStationKey *string      `json:"start_station_key"`
	EndStation      *string      `json:"end_station"`
	EndStationKey   *string      `json:"end_station_key"`
	StartTimestamp  *int64       `json:"start_timestamp"`
	DelayMinutes    *int         `json:"delay_minutes"`
	Status          *DelayStatus `json:"status"`
}

// JourneyDetail lists every observed segment of a journey in time order.
// An unknown journey yields an empty Segments slice.
type JourneyDetail struct {
	JourneyID         string           `json:"journey_id"`
	Line              *string          `json:"line,omitempty"`
	Direction         *string          `json:"direction,omitempty"`
	VehicleType       *string          `json:"vehicle_type,omitempty"`
	LineType          *string          `json:"line_type,omitempty"`
	Segments          []JourneySegment `json:"segments"`
	TotalSegments     int              `json:"total_segments"`
	AvgDelay          float64          `json:"avg_delay"`
	FinalDelayMinutes *int             `json:"final_delay_minutes"`
	FinalStatus       *DelayStatus     `json:"final_status"`
}

// IsEmpty reports whether no segments were found for the journey
func (d *JourneyDetail) IsEmpty() bool {
	return len(d.Segments) == 0
}
