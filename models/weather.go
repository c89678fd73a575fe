package models

import "time"

// Weather is a current-conditions snapshot used as prediction input
type Weather struct {
	TemperatureC      float64   `json:"temperature_c"`
	PrecipitationMM   float64   `json:"precipitation_mm"`
	WindSpeedKMH      float64   `json:"wind_speed_kmh"`
	WeatherCode       int       `json:"weather_code"`
	HumidityPercent   float64   `json:"humidity_percent"`
	CloudCoverPercent float64   `json:"cloud_cover_percent"`
	Timestamp         time.Time `json:"timestamp"`
	Location          string    `json:"location"`
	Source            string    `json:"source"` // "open-meteo" or "fallback"
	Error             string    `json:"error,omitempty"`
}

// FallbackWeather returns the fixed record used whenever a fetch fails
func FallbackWeather(location string, now time.Time, cause error) Weather {
	w := Weather{
		TemperatureC:      10.0,
		PrecipitationMM:   0.0,
		WindSpeedKMH:      10.0,
		WeatherCode:       0,
		HumidityPercent:   70.0,
		CloudCoverPercent: 50.0,
		Timestamp:         now,
		Location:          location,
		Source:            "fallback",
	}
	if cause != nil {
		w.Error = cause.Error()
	}
	return w
}

// WeatherObservation is one line of a weather_*.jsonl log
type WeatherObservation struct {
	TimestampISO      *string  `json:"timestamp_iso"`
	TimestampUnix     *int64   `json:"timestamp_unix"`
	TemperatureC      *float64 `json:"temperature_c"`
	PrecipitationMM   *float64 `json:"precipitation_mm"`
	WindSpeedKMH      *float64 `json:"wind_speed_kmh"`
	WeatherCode       *int     `json:"weather_code"`
	HumidityPercent   *float64 `json:"humidity_percent"`
	CloudCoverPercent *float64 `json:"cloud_cover_percent"`
}

// WeatherImpact is a coarse estimate of how the weather affects service
type WeatherImpact struct {
	Level              string   `json:"level"` // "low", "medium", "high"
	Score              int      `json:"score"`
	Description        string   `json:"description"`
	Factors            []string `json:"factors"`
	WeatherDescription string   `json:"weather_description"`
}

// CurrentWeatherResponse is the response for GET /api/weather/current
type CurrentWeatherResponse struct {
	Weather Weather       `json:"weather"`
	Impact  WeatherImpact `json:"impact"`
}
