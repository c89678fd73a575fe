package stations

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/dbpranger/delay-api/models"
)

const (
	listStationsPath = "/gti/public/listStations"
	gtiVersion       = 62
)

// ErrMissingCredentials is returned when no GTI user or password is configured
var ErrMissingCredentials = errors.New("geofox credentials not configured")

// GeofoxClient fetches the station directory from the HVV GTI API
type GeofoxClient struct {
	baseURL    string
	user       string
	password   string
	httpClient *http.Client
}

// NewGeofoxClient creates a client whose requests are bounded by timeout
func NewGeofoxClient(baseURL, user, password string, timeout time.Duration) *GeofoxClient {
	return &GeofoxClient{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		user:     user,
		password: password,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type listStationsRequest struct {
	Version        int    `json:"version"`
	CoordinateType string `json:"coordinateType"`
}

type listStationsResponse struct {
	ReturnCode string `json:"returnCode"`
	ErrorText  string `json:"errorText"`
	Stations   []struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		Coordinate *struct {
			X float64 `json:"x"`
			Y float64 `json:"y"`
		} `json:"coordinate"`
	} `json:"stations"`
}

// sign returns the base64 HMAC-SHA1 of body keyed by the password
func sign(body []byte, password string) string {
	mac := hmac.New(sha1.New, []byte(password))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// ListStations returns every station that has a WGS84 coordinate
func (c *GeofoxClient) ListStations(ctx context.Context) ([]models.Station, error) {
	if c.user == "" || c.password == "" {
		return nil, ErrMissingCredentials
	}

	body, err := json.Marshal(listStationsRequest{Version: gtiVersion, CoordinateType: "EPSG_4326"})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+listStationsPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json;charset=UTF-8")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("geofox-auth-user", c.user)
	req.Header.Set("geofox-auth-signature", sign(body, c.password))
	req.Header.Set("geofox-auth-type", "HmacSHA1")
	req.Header.Set("X-TraceId", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listStations request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("listStations returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var payload listStationsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode listStations response: %w", err)
	}
	if payload.ReturnCode != "OK" {
		return nil, fmt.Errorf("listStations returned %s: %s", payload.ReturnCode, payload.ErrorText)
	}

	stations := make([]models.Station, 0, len(payload.Stations))
	for _, s := range payload.Stations {
		if s.Coordinate == nil || s.ID == "" {
			continue
		}
		stations = append(stations, models.Station{
			ID:   s.ID,
			Name: s.Name,
			Lat:  s.Coordinate.Y,
			Lon:  s.Coordinate.X,
		})
	}

	slog.Info("Fetched station directory from Geofox", "stations", len(stations))
	return stations, nil
}
