package models

import "time"

// Health status constants
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// SnapshotInfo describes the dataset loaded at startup
type SnapshotInfo struct {
	SnapshotID    string    `json:"snapshot_id"`
	LoadedAt      time.Time `json:"loaded_at"`
	DataDir       string    `json:"data_dir"`
	FilesLoaded   int       `json:"files_loaded"`
	FilesFailed   int       `json:"files_failed"`
	LinesSkipped  int       `json:"lines_skipped"`
	TotalSegments int       `json:"total_segments"`
	TotalJourneys int       `json:"total_journeys"`
	WeatherRows   int       `json:"weather_rows"`
	LoadErrors    []string  `json:"load_errors,omitempty"`
}

// HealthResponse is the response for GET /health
type HealthResponse struct {
	Status       string       `json:"status"`
	Snapshot     SnapshotInfo `json:"snapshot"`
	ModelsLoaded bool         `json:"models_loaded"`
	Timestamp    time.Time    `json:"timestamp"`
}
