package predictor

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dbpranger/delay-api/models"
)

var (
	ErrNoModels            = errors.New("no models found")
	ErrRegressorNotLoaded  = errors.New("regression model not loaded")
	ErrClassifierNotLoaded = errors.New("classification model not loaded")
)

// defaultThresholdMinutes is used when the classifier metadata has none
const defaultThresholdMinutes = 2.0

// FeatureConfig describes the model input vector as written by the trainer
type FeatureConfig struct {
	FeatureColumns     []string            `json:"feature_columns"`
	NumericFeatures    []string            `json:"numeric_features"`
	CategoricalColumns []string            `json:"categorical_columns"`
	IndexedColumns     []string            `json:"indexed_columns"`
	LabelMappings      map[string][]string `json:"label_mappings"`
}

// Predictor evaluates the delay regressor and classifier.
// It is read-only after Load and safe for concurrent use.
type Predictor struct {
	modelDir   string
	config     FeatureConfig
	labelIndex map[string]map[string]int
	unmapped   []string

	regressor  *ensemble
	regMeta    *metadata
	classifier *ensemble
	clfMeta    *metadata
}

// Load reads feature_config.json and whichever of the two models exist
func Load(modelDir string) (*Predictor, error) {
	p := &Predictor{modelDir: modelDir}

	if err := readJSON(filepath.Join(modelDir, "feature_config.json"), &p.config); err != nil {
		return nil, fmt.Errorf("failed to load feature config: %w", err)
	}
	if len(p.config.FeatureColumns) == 0 {
		return nil, fmt.Errorf("feature config in %s lists no feature columns", modelDir)
	}

	var err error
	p.regressor, p.regMeta, err = loadModel(
		filepath.Join(modelDir, "delay_regressor.json"),
		filepath.Join(modelDir, "delay_regressor_metadata.json"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load regressor: %w", err)
	}
	p.classifier, p.clfMeta, err = loadModel(
		filepath.Join(modelDir, "delay_classifier.json"),
		filepath.Join(modelDir, "delay_classifier_metadata.json"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load classifier: %w", err)
	}
	if p.regressor == nil && p.classifier == nil {
		return nil, fmt.Errorf("%w in %s", ErrNoModels, modelDir)
	}

	p.buildLabelIndex()

	slog.Info("Loaded delay models",
		"dir", modelDir,
		"regressor", p.regressor != nil,
		"classifier", p.classifier != nil,
		"features", len(p.config.FeatureColumns),
	)
	if len(p.unmapped) > 0 {
		slog.Warn("Categorical columns without label mapping encode as unseen", "columns", p.unmapped)
	}
	return p, nil
}

func (p *Predictor) buildLabelIndex() {
	p.labelIndex = make(map[string]map[string]int)
	for _, col := range p.config.FeatureColumns {
		if !strings.HasSuffix(col, "_idx") {
			continue
		}
		base := strings.TrimSuffix(col, "_idx")
		labels, ok := p.config.LabelMappings[base]
		if !ok {
			p.unmapped = append(p.unmapped, base)
			continue
		}
		idx := make(map[string]int, len(labels))
		for i, l := range labels {
			idx[l] = i
		}
		p.labelIndex[base] = idx
	}
	sort.Strings(p.unmapped)
}

// vector builds the model input in feature_columns order. Categorical
// values not seen in training map to len(labels).
func (p *Predictor) vector(f models.PredictionFeatures) []float64 {
	x := make([]float64, len(p.config.FeatureColumns))
	for i, col := range p.config.FeatureColumns {
		switch {
		case col == "is_rush_hour":
			x[i] = boolFloat(IsRushHour(f.HourOfDay))
		case col == "is_weekend":
			x[i] = boolFloat(IsWeekend(f.DayOfWeek))
		case strings.HasSuffix(col, "_idx"):
			base := strings.TrimSuffix(col, "_idx")
			idx := p.labelIndex[base]
			if v, ok := idx[categorical(f, base)]; ok {
				x[i] = float64(v)
			} else {
				x[i] = float64(len(p.config.LabelMappings[base]))
			}
		default:
			x[i] = numeric(f, col)
		}
	}
	return x
}

func categorical(f models.PredictionFeatures, name string) string {
	switch name {
	case "line":
		return f.Line
	case "vehicle_type":
		return f.VehicleType
	case "line_type":
		return f.LineType
	case "direction":
		return f.Direction
	}
	return ""
}

func numeric(f models.PredictionFeatures, name string) float64 {
	switch name {
	case "hour_of_day":
		return float64(f.HourOfDay)
	case "day_of_week":
		return float64(f.DayOfWeek)
	case "temperature_c":
		return f.TemperatureC
	case "precipitation_mm":
		return f.PrecipitationMM
	case "wind_speed_kmh":
		return f.WindSpeedKMH
	case "weather_code":
		return float64(f.WeatherCode)
	case "humidity_percent":
		return f.HumidityPercent
	case "cloud_cover_percent":
		return f.CloudCoverPercent
	}
	return 0
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// IsRushHour reports whether hour falls in 7-9 or 16-19
func IsRushHour(hour int) bool {
	return (hour >= 7 && hour <= 9) || (hour >= 16 && hour <= 19)
}

// IsWeekend reports whether a Sunday-first weekday is Sunday or Saturday
func IsWeekend(dayOfWeek int) bool {
	return dayOfWeek == 1 || dayOfWeek == 7
}

// HasRegressor reports whether the regression model is loaded
func (p *Predictor) HasRegressor() bool {
	return p.regressor != nil
}

// HasClassifier reports whether the classification model is loaded
func (p *Predictor) HasClassifier() bool {
	return p.classifier != nil
}

// Predict returns the expected delay in minutes, never negative
func (p *Predictor) Predict(f models.PredictionFeatures) (float64, error) {
	if p.regressor == nil {
		return 0, ErrRegressorNotLoaded
	}
	out, err := p.regressor.predict(p.vector(f))
	if err != nil {
		return 0, err
	}
	if out[0] < 0 {
		return 0, nil
	}
	return out[0], nil
}

// PredictIsDelayed returns the delayed/on-time probabilities
func (p *Predictor) PredictIsDelayed(f models.PredictionFeatures) (*models.DelayClassification, error) {
	if p.classifier == nil {
		return nil, ErrClassifierNotLoaded
	}
	out, err := p.classifier.predict(p.vector(f))
	if err != nil {
		return nil, err
	}
	if len(out) != 2 {
		return nil, fmt.Errorf("%w: classifier has %d classes", errMalformedTree, len(out))
	}

	total := out[0] + out[1]
	onTime, delayed := 0.5, 0.5
	if total > 0 {
		onTime, delayed = out[0]/total, out[1]/total
	}

	threshold := defaultThresholdMinutes
	if p.clfMeta != nil {
		if v, ok := p.clfMeta.Metrics["delay_threshold"]; ok {
			threshold = v
		}
	}

	return &models.DelayClassification{
		IsDelayed:          delayed > onTime,
		ProbabilityDelayed: delayed,
		ProbabilityOnTime:  onTime,
		ThresholdMinutes:   threshold,
	}, nil
}

// PredictFull runs every loaded model. A model that fails leaves its part nil.
func (p *Predictor) PredictFull(f models.PredictionFeatures) models.PredictionResult {
	result := models.PredictionResult{
		InputFeatures: f,
		Timestamp:     time.Now().UTC(),
	}
	if p.regressor != nil {
		if delay, err := p.Predict(f); err != nil {
			slog.Warn("Regression failed", "error", err)
		} else {
			result.PredictedDelayMinutes = &delay
		}
	}
	if p.classifier != nil {
		if c, err := p.PredictIsDelayed(f); err != nil {
			slog.Warn("Classification failed", "error", err)
		} else {
			result.Classification = c
		}
	}
	return result
}

// PredictBatch runs PredictFull for every input in order
func (p *Predictor) PredictBatch(features []models.PredictionFeatures) []models.PredictionResult {
	results := make([]models.PredictionResult, 0, len(features))
	for _, f := range features {
		results = append(results, p.PredictFull(f))
	}
	return results
}

// Info describes the loaded models
func (p *Predictor) Info() models.ModelInfo {
	unmapped := p.unmapped
	if unmapped == nil {
		unmapped = []string{}
	}
	return models.ModelInfo{
		ModelDir:        p.modelDir,
		Regressor:       status(p.regressor, p.regMeta),
		Classifier:      status(p.classifier, p.clfMeta),
		FeatureColumns:  p.config.FeatureColumns,
		UnmappedColumns: unmapped,
	}
}

func status(e *ensemble, meta *metadata) models.ModelStatus {
	s := models.ModelStatus{Loaded: e != nil}
	if e != nil {
		s.Trees = len(e.Trees)
	}
	if meta != nil {
		s.Metrics = meta.Metrics
		s.TrainingDate = meta.TrainingDate
	}
	return s
}
