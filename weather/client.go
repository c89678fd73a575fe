package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/dbpranger/delay-api/models"
	"github.com/dbpranger/delay-api/telemetry"
)

const (
	forecastPath  = "/v1/forecast"
	currentFields = "temperature_2m,precipitation,wind_speed_10m,weather_code,relative_humidity_2m,cloud_cover"
)

// Client fetches current conditions from Open-Meteo
type Client struct {
	baseURL    string
	lat, lon   float64
	timezone   string
	location   string
	httpClient *http.Client
	now        func() time.Time
}

// NewClient creates a client for one location. timeout bounds every request.
func NewClient(baseURL string, lat, lon float64, timezone, location string, timeout time.Duration) *Client {
	return &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		lat:      lat,
		lon:      lon,
		timezone: timezone,
		location: location,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		now: time.Now,
	}
}

// forecastResponse holds the fields we read; missing values stay nil
type forecastResponse struct {
	Current struct {
		Temperature   *float64 `json:"temperature_2m"`
		Precipitation *float64 `json:"precipitation"`
		WindSpeed     *float64 `json:"wind_speed_10m"`
		WeatherCode   *int     `json:"weather_code"`
		Humidity      *float64 `json:"relative_humidity_2m"`
		CloudCover    *float64 `json:"cloud_cover"`
	} `json:"current"`
}

// Current returns the current conditions. It never fails: on any error the
// fixed fallback record is returned with Source "fallback" and the error text.
func (c *Client) Current(ctx context.Context) models.Weather {
	w, err := c.fetch(ctx)
	if err != nil {
		slog.Warn("Weather fetch failed, using fallback", "error", err)
		telemetry.RecordFallback(ctx, "weather")
		return models.FallbackWeather(c.location, c.now(), err)
	}
	return w
}

func (c *Client) fetch(ctx context.Context) (models.Weather, error) {
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(c.lat, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(c.lon, 'f', -1, 64))
	params.Set("current", currentFields)
	params.Set("timezone", c.timezone)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+forecastPath+"?"+params.Encode(), nil)
	if err != nil {
		return models.Weather{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.Weather{}, fmt.Errorf("weather request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Weather{}, fmt.Errorf("weather API returned status %d", resp.StatusCode)
	}

	var data forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return models.Weather{}, fmt.Errorf("failed to decode weather response: %w", err)
	}

	fallback := models.FallbackWeather(c.location, c.now(), nil)
	cur := data.Current
	return models.Weather{
		TemperatureC:      floatOr(cur.Temperature, fallback.TemperatureC),
		PrecipitationMM:   floatOr(cur.Precipitation, fallback.PrecipitationMM),
		WindSpeedKMH:      floatOr(cur.WindSpeed, fallback.WindSpeedKMH),
		WeatherCode:       intOr(cur.WeatherCode, fallback.WeatherCode),
		HumidityPercent:   floatOr(cur.Humidity, fallback.HumidityPercent),
		CloudCoverPercent: floatOr(cur.CloudCover, fallback.CloudCoverPercent),
		Timestamp:         fallback.Timestamp,
		Location:          c.location,
		Source:            "open-meteo",
	}, nil
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}
