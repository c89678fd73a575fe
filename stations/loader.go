package stations

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dbpranger/delay-api/models"
	"github.com/dbpranger/delay-api/repository"
	"github.com/dbpranger/delay-api/telemetry"
)

// Source supplies a list of stations
type Source interface {
	ListStations(ctx context.Context) ([]models.Station, error)
}

// Sink persists a fetched station list
type Sink interface {
	SaveStations(ctx context.Context, stations []models.Station) error
}

// Loader builds a Directory from the first source that yields stations:
// the cache file, then Postgres, then Geofox. Stations fetched from Geofox
// are written back to the cache file and to Postgres when configured.
type Loader struct {
	CacheFile string
	Postgres  interface {
		Source
		Sink
	}
	Remote  Source
	Timeout time.Duration
}

// cachedStation is one value of the cache file, which maps id to station
type cachedStation struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// Load never fails: if every source is unavailable the directory is empty
// and every lookup returns nil coordinates.
func (l *Loader) Load(ctx context.Context) *Directory {
	if l.CacheFile != "" {
		stations, err := ReadCacheFile(l.CacheFile)
		if err == nil && len(stations) > 0 {
			slog.Info("Loaded stations from cache", "path", l.CacheFile, "stations", len(stations))
			return NewDirectory(stations)
		}
		if err != nil && !os.IsNotExist(err) {
			slog.Warn("Failed to read stations cache", "path", l.CacheFile, "error", err)
		}
	}

	if l.Postgres != nil {
		stations, err := l.withTimeout(ctx, l.Postgres)
		if err == nil && len(stations) > 0 {
			slog.Info("Loaded stations from Postgres", "stations", len(stations))
			return NewDirectory(stations)
		}
		if err != nil {
			slog.Warn("Failed to load stations from Postgres", "error", err)
		}
	}

	if l.Remote != nil {
		stations, err := l.withTimeout(ctx, l.Remote)
		if err == nil && len(stations) > 0 {
			l.persist(ctx, stations)
			return NewDirectory(stations)
		}
		if err != nil {
			slog.Warn("Failed to fetch stations", "error", err)
		}
	}

	telemetry.RecordFallback(ctx, "stations")
	slog.Warn("Station directory is empty, map segments will have no coordinates")
	return NewDirectory(nil)
}

func (l *Loader) withTimeout(ctx context.Context, src Source) ([]models.Station, error) {
	if l.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.Timeout)
		defer cancel()
	}
	return src.ListStations(ctx)
}

func (l *Loader) persist(ctx context.Context, stations []models.Station) {
	if l.CacheFile != "" {
		if err := WriteCacheFile(l.CacheFile, stations); err != nil {
			slog.Warn("Failed to write stations cache", "path", l.CacheFile, "error", err)
		} else {
			slog.Info("Saved stations cache", "path", l.CacheFile)
		}
	}
	if l.Postgres != nil {
		if err := l.Postgres.SaveStations(ctx, stations); err != nil {
			slog.Warn("Failed to save stations to Postgres", "error", err)
		}
	}
}

// ReadCacheFile reads a cache file mapping station id to name and coordinates
func ReadCacheFile(path string) ([]models.Station, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cache map[string]cachedStation
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	stations := make([]models.Station, 0, len(cache))
	for id, s := range cache {
		stations = append(stations, models.Station{ID: id, Name: s.Name, Lat: s.Lat, Lon: s.Lon})
	}
	sort.Slice(stations, func(i, j int) bool { return stations[i].ID < stations[j].ID })
	return stations, nil
}

// WriteCacheFile writes stations in the format read by ReadCacheFile
func WriteCacheFile(path string, stations []models.Station) error {
	cache := make(map[string]cachedStation, len(stations))
	for _, s := range stations {
		cache[s.ID] = cachedStation{Name: s.Name, Lat: s.Lat, Lon: s.Lon}
	}

	data, err := json.Marshal(cache)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// NewLoader wires the configured sources. A Postgres connection failure is
// logged and the source skipped; set connect_timeout in databaseURL to bound it. The returned close function releases it.
func NewLoader(ctx context.Context, cacheFile, databaseURL string, remote Source, timeout time.Duration) (*Loader, func()) {
	l := &Loader{CacheFile: cacheFile, Remote: remote, Timeout: timeout}
	closeFn := func() {}

	if databaseURL != "" {
		repo, err := repository.NewStationRepository(ctx, databaseURL)
		if err != nil {
			slog.Warn("Station database unavailable", "error", err)
		} else {
			l.Postgres = repo
			closeFn = repo.Close
		}
	}

	return l, closeFn
}
