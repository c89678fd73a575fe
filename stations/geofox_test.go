package stations

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeofoxClient_ListStations(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, listStationsPath, r.URL.Path)

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"version":62,"coordinateType":"EPSG_4326"}`, string(body))

		assert.Equal(t, "user", r.Header.Get("geofox-auth-user"))
		assert.Equal(t, "HmacSHA1", r.Header.Get("geofox-auth-type"))
		assert.Equal(t, sign(body, "secret"), r.Header.Get("geofox-auth-signature"))
		assert.NotEmpty(t, r.Header.Get("X-TraceId"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"returnCode": "OK",
			"stations": []map[string]interface{}{
				{"id": "Master:80950", "name": "Hauptbahnhof", "coordinate": map[string]float64{"x": 10.006, "y": 53.553}},
				{"id": "Master:1", "name": "No coordinate"},
			},
		})
	}))
	defer server.Close()

	client := NewGeofoxClient(server.URL+"/", "user", "secret", time.Second)
	stations, err := client.ListStations(context.Background())
	require.NoError(t, err)
	require.Len(t, stations, 1)
	assert.Equal(t, "Master:80950", stations[0].ID)
	assert.Equal(t, 53.553, stations[0].Lat)
	assert.Equal(t, 10.006, stations[0].Lon)
}

func TestGeofoxClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"api error", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"returnCode":"ERROR_TEXT","errorText":"Authentication failed"}`))
		}},
		{"http error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}},
		{"bad json", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{`))
		}},
		{"timeout", func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client := NewGeofoxClient(server.URL, "user", "secret", 50*time.Millisecond)
			_, err := client.ListStations(context.Background())
			assert.Error(t, err)
		})
	}
}

func TestGeofoxClient_MissingCredentials(t *testing.T) {
	client := NewGeofoxClient("http://127.0.0.1:1", "", "", time.Second)
	_, err := client.ListStations(context.Background())
	assert.ErrorIs(t, err, ErrMissingCredentials)
}
