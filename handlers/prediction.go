package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dbpranger/delay-api/journeylog"
	"github.com/dbpranger/delay-api/models"
	"github.com/dbpranger/delay-api/predictor"
	"github.com/dbpranger/delay-api/weather"
)

const (
	maxBatchSize    = 1000
	maxRequestBytes = 1 << 20
)

// Predictor defines the model operations used by the prediction endpoints
type Predictor interface {
	PredictFull(f models.PredictionFeatures) models.PredictionResult
	PredictBatch(features []models.PredictionFeatures) []models.PredictionResult
	Info() models.ModelInfo
}

// WeatherSource returns current conditions, falling back to fixed defaults
type WeatherSource interface {
	Current(ctx context.Context) models.Weather
}

// PredictionHandler handles HTTP requests for delay predictions.
// A nil predictor makes every model endpoint answer 503.
type PredictionHandler struct {
	predictor Predictor
	weather   WeatherSource
	location  *time.Location
	now       func() time.Time
}

// NewPredictionHandler creates a new handler
func NewPredictionHandler(p Predictor, w WeatherSource, loc *time.Location) *PredictionHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &PredictionHandler{predictor: p, weather: w, location: loc, now: time.Now}
}

// CombinedPredictionRequest is the body of POST /api/predict/combined
type CombinedPredictionRequest struct {
	Transport journeylog.Journey `json:"transport"`
	Weather   *WeatherInput      `json:"weather"`
	Timestamp *int64             `json:"timestamp"`
}

// WeatherInput carries observed weather; omitted fields use the fallback values
type WeatherInput struct {
	TemperatureC      *float64 `json:"temperature_c"`
	PrecipitationMM   *float64 `json:"precipitation_mm"`
	WindSpeedKMH      *float64 `json:"wind_speed_kmh"`
	WeatherCode       *int     `json:"weather_code"`
	HumidityPercent   *float64 `json:"humidity_percent"`
	CloudCoverPercent *float64 `json:"cloud_cover_percent"`
}

// CombinedPredictionResponse is the JSON response for POST /api/predict/combined
type CombinedPredictionResponse struct {
	PredictedDelayMinutes *float64                    `json:"predicted_delay_minutes"`
	Classification        *models.DelayClassification `json:"classification"`
	ExtractedFeatures     models.PredictionFeatures   `json:"extracted_features"`
	Timestamp             time.Time                   `json:"timestamp"`
}

// BatchPredictionResponse is the JSON response for POST /api/predict/batch
type BatchPredictionResponse struct {
	Predictions []models.PredictionResult `json:"predictions"`
	Count       int                       `json:"count"`
}

// LivePredictionResponse is the JSON response for GET /api/predict/live
type LivePredictionResponse struct {
	models.PredictionResult
	Weather models.Weather `json:"weather"`
}

// FeatureSchemaResponse is the JSON response for GET /api/model/features
type FeatureSchemaResponse struct {
	Features map[string]string         `json:"features"`
	Example  models.PredictionFeatures `json:"example"`
}

var featureDescriptions = map[string]string{
	"line":                "Transit line name (e.g., '6', 'U3')",
	"vehicle_type":        "Vehicle type (METROBUS, U_BAHN, etc.)",
	"line_type":           "Line type (BUS, TRAIN)",
	"direction":           "Line direction",
	"hour_of_day":         "Hour (0-23)",
	"day_of_week":         "Day of week (1=Sunday, 7=Saturday)",
	"temperature_c":       "Temperature in Celsius",
	"precipitation_mm":    "Precipitation in mm",
	"wind_speed_kmh":      "Wind speed in km/h",
	"weather_code":        "WMO weather code",
	"humidity_percent":    "Relative humidity %",
	"cloud_cover_percent": "Cloud cover %",
}

func (h *PredictionHandler) requireModels(w http.ResponseWriter) bool {
	if h.predictor == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
			Error: "Models not loaded",
		})
		return false
	}
	return true
}

func badRequest(w http.ResponseWriter, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = map[string]interface{}{"reason": err.Error()}
	}
	writeJSON(w, http.StatusBadRequest, resp)
}

// decodeFeatures fills omitted fields from DefaultPredictionFeatures
func decodeFeatures(raw json.RawMessage) (models.PredictionFeatures, error) {
	f := models.DefaultPredictionFeatures()
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &f); err != nil {
			return f, err
		}
	}
	if f.HourOfDay < 0 || f.HourOfDay > 23 {
		return f, fmt.Errorf("hour_of_day must be between 0 and 23")
	}
	if f.DayOfWeek < 1 || f.DayOfWeek > 7 {
		return f, fmt.Errorf("day_of_week must be between 1 and 7")
	}
	return f, nil
}

// Predict handles POST /api/predict
func (h *PredictionHandler) Predict(w http.ResponseWriter, r *http.Request) {
	if !h.requireModels(w) {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		badRequest(w, "Failed to read request body", err)
		return
	}
	f, err := decodeFeatures(body)
	if err != nil {
		badRequest(w, "Invalid prediction features", err)
		return
	}

	writeJSON(w, http.StatusOK, h.predictor.PredictFull(f))
}

// PredictCombined handles POST /api/predict/combined
// Builds features from a raw journey and weather observation
func (h *PredictionHandler) PredictCombined(w http.ResponseWriter, r *http.Request) {
	if !h.requireModels(w) {
		return
	}

	var req CombinedPredictionRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes)).Decode(&req); err != nil {
		badRequest(w, "Invalid combined prediction request", err)
		return
	}

	wx := models.FallbackWeather("", h.now(), nil)
	if req.Weather != nil {
		wx = req.Weather.apply(wx)
	}

	f := predictor.FeaturesFromJourney(&req.Transport, wx, req.Timestamp, h.location)
	result := h.predictor.PredictFull(f)

	writeJSON(w, http.StatusOK, CombinedPredictionResponse{
		PredictedDelayMinutes: result.PredictedDelayMinutes,
		Classification:        result.Classification,
		ExtractedFeatures:     f,
		Timestamp:             result.Timestamp,
	})
}

func (in *WeatherInput) apply(w models.Weather) models.Weather {
	if in.TemperatureC != nil {
		w.TemperatureC = *in.TemperatureC
	}
	if in.PrecipitationMM != nil {
		w.PrecipitationMM = *in.PrecipitationMM
	}
	if in.WindSpeedKMH != nil {
		w.WindSpeedKMH = *in.WindSpeedKMH
	}
	if in.WeatherCode != nil {
		w.WeatherCode = *in.WeatherCode
	}
	if in.HumidityPercent != nil {
		w.HumidityPercent = *in.HumidityPercent
	}
	if in.CloudCoverPercent != nil {
		w.CloudCoverPercent = *in.CloudCoverPercent
	}
	return w
}

// PredictBatch handles POST /api/predict/batch
// Body: JSON array of feature records (at most 1000)
func (h *PredictionHandler) PredictBatch(w http.ResponseWriter, r *http.Request) {
	if !h.requireModels(w) {
		return
	}

	var raw []json.RawMessage
	if err := json.NewDecoder(io.LimitReader(r.Body, 16*maxRequestBytes)).Decode(&raw); err != nil {
		badRequest(w, "Invalid batch request", err)
		return
	}
	if len(raw) > maxBatchSize {
		badRequest(w, fmt.Sprintf("Batch size must not exceed %d", maxBatchSize), nil)
		return
	}

	features := make([]models.PredictionFeatures, 0, len(raw))
	for i, item := range raw {
		f, err := decodeFeatures(item)
		if err != nil {
			badRequest(w, fmt.Sprintf("Invalid prediction features at index %d", i), err)
			return
		}
		features = append(features, f)
	}

	results := h.predictor.PredictBatch(features)
	writeJSON(w, http.StatusOK, BatchPredictionResponse{Predictions: results, Count: len(results)})
}

// PredictLive handles GET /api/predict/live
// Query params: line, vehicle_type, line_type, direction (optional)
// Uses the current weather and the current local time
func (h *PredictionHandler) PredictLive(w http.ResponseWriter, r *http.Request) {
	if !h.requireModels(w) {
		return
	}

	var wx models.Weather
	if h.weather != nil {
		wx = h.weather.Current(r.Context())
	} else {
		wx = models.FallbackWeather("", h.now(), nil)
	}

	ts := h.now().Unix()
	q := r.URL.Query()
	journey := &journeylog.Journey{
		VehicleType: queryString(r, "vehicle_type"),
		Line: &journeylog.Line{
			Name:      queryString(r, "line"),
			Direction: queryString(r, "direction"),
		},
	}
	if lt := q.Get("line_type"); lt != "" {
		journey.Line.Type = &journeylog.LineType{SimpleType: &lt}
	}

	f := predictor.FeaturesFromJourney(journey, wx, &ts, h.location)
	writeJSON(w, http.StatusOK, LivePredictionResponse{
		PredictionResult: h.predictor.PredictFull(f),
		Weather:          wx,
	})
}

// GetModelInfo handles GET /api/model/info
func (h *PredictionHandler) GetModelInfo(w http.ResponseWriter, r *http.Request) {
	if !h.requireModels(w) {
		return
	}
	writeJSON(w, http.StatusOK, h.predictor.Info())
}

// GetModelFeatures handles GET /api/model/features
// Available without models so clients can build requests
func (h *PredictionHandler) GetModelFeatures(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, FeatureSchemaResponse{
		Features: featureDescriptions,
		Example:  models.DefaultPredictionFeatures(),
	})
}

// WeatherHandler handles HTTP requests for current weather
type WeatherHandler struct {
	weather WeatherSource
}

// NewWeatherHandler creates a new handler
func NewWeatherHandler(w WeatherSource) *WeatherHandler {
	return &WeatherHandler{weather: w}
}

// GetCurrent handles GET /api/weather/current
// Always answers 200; a failed fetch yields the fallback record
func (h *WeatherHandler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	wx := h.weather.Current(r.Context())
	writeJSON(w, http.StatusOK, models.CurrentWeatherResponse{
		Weather: wx,
		Impact:  weather.Impact(wx),
	})
}
