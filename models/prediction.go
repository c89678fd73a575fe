package models

import "time"

// PredictionFeatures is the raw feature record expected by the delay models
type PredictionFeatures struct {
	Line              string  `json:"line"`
	VehicleType       string  `json:"vehicle_type"`
	LineType          string  `json:"line_type"`
	Direction         string  `json:"direction"`
	HourOfDay         int     `json:"hour_of_day"`
	DayOfWeek         int     `json:"day_of_week"` // 1=Sunday .. 7=Saturday
	TemperatureC      float64 `json:"temperature_c"`
	PrecipitationMM   float64 `json:"precipitation_mm"`
	WindSpeedKMH      float64 `json:"wind_speed_kmh"`
	WeatherCode       int     `json:"weather_code"`
	HumidityPercent   float64 `json:"humidity_percent"`
	CloudCoverPercent float64 `json:"cloud_cover_percent"`
}

// DefaultPredictionFeatures returns the example record served by
// GET /api/model/features and used to fill omitted request fields.
func DefaultPredictionFeatures() PredictionFeatures {
	return PredictionFeatures{
		Line:              "6",
		VehicleType:       "METROBUS",
		LineType:          "BUS",
		Direction:         "unknown",
		HourOfDay:         12,
		DayOfWeek:         3,
		TemperatureC:      10.0,
		PrecipitationMM:   0.0,
		WindSpeedKMH:      10.0,
		WeatherCode:       0,
		HumidityPercent:   70.0,
		CloudCoverPercent: 50.0,
	}
}

// DelayClassification is the output of the binary delayed/on-time model
type DelayClassification struct {
	IsDelayed          bool    `json:"is_delayed"`
	ProbabilityDelayed float64 `json:"probability_delayed"`
	ProbabilityOnTime  float64 `json:"probability_on_time"`
	ThresholdMinutes   float64 `json:"threshold_minutes"`
}

// PredictionResult combines regression and classification output.
// Either part is nil when the corresponding model is not loaded.
type PredictionResult struct {
	PredictedDelayMinutes *float64             `json:"predicted_delay_minutes"`
	Classification        *DelayClassification `json:"classification"`
	InputFeatures         PredictionFeatures   `json:"input_features"`
	Timestamp             time.Time            `json:"timestamp"`
}

// ModelStatus describes one loaded model
type ModelStatus struct {
	Loaded       bool               `json:"loaded"`
	Trees        int                `json:"trees"`
	Metrics      map[string]float64 `json:"metrics"`
	TrainingDate *string            `json:"training_date"`
}

// ModelInfo is the response for GET /api/model/info
type ModelInfo struct {
	ModelDir        string      `json:"model_dir"`
	Regressor       ModelStatus `json:"regressor"`
	Classifier      ModelStatus `json:"classifier"`
	FeatureColumns  []string    `json:"feature_columns"`
	UnmappedColumns []string    `json:"unmapped_columns"`
}
