package predictor

import (
	"time"

	"github.com/dbpranger/delay-api/journeylog"
	"github.com/dbpranger/delay-api/models"
)

const unknownValue = "unknown"

// FeaturesFromJourney builds a feature record from a live journey and the
// current weather. ts defaults to the first segment's start, then to now.
// Hour and weekday are taken in loc; the weekday is Sunday-first.
func FeaturesFromJourney(j *journeylog.Journey, w models.Weather, ts *int64, loc *time.Location) models.PredictionFeatures {
	if loc == nil {
		loc = time.UTC
	}

	f := models.PredictionFeatures{
		Line:              unknownValue,
		VehicleType:       unknownValue,
		LineType:          unknownValue,
		Direction:         unknownValue,
		TemperatureC:      w.TemperatureC,
		PrecipitationMM:   w.PrecipitationMM,
		WindSpeedKMH:      w.WindSpeedKMH,
		WeatherCode:       w.WeatherCode,
		HumidityPercent:   w.HumidityPercent,
		CloudCoverPercent: w.CloudCoverPercent,
	}

	var unix int64
	switch {
	case ts != nil:
		unix = *ts
	case j != nil && len(j.Segments) > 0 && j.Segments[0] != nil && j.Segments[0].StartDateTime != nil:
		unix = *j.Segments[0].StartDateTime
	default:
		unix = time.Now().Unix()
	}
	t := time.Unix(unix, 0).In(loc)
	f.HourOfDay = t.Hour()
	f.DayOfWeek = int(t.Weekday()) + 1

	if j == nil {
		return f
	}
	f.VehicleType = orUnknown(j.VehicleType)
	if j.Line != nil {
		f.Line = orUnknown(j.Line.Name)
		f.Direction = orUnknown(j.Line.Direction)
		if j.Line.Type != nil {
			f.LineType = orUnknown(j.Line.Type.SimpleType)
		}
	}
	return f
}

func orUnknown(s *string) string {
	if s == nil || *s == "" {
		return unknownValue
	}
	return *s
}
