package stations

import (
	"sort"
	"strings"

	"github.com/bluele/gcache"

	"github.com/dbpranger/delay-api/models"
)

// lookupCacheSize bounds the number of resolved station keys kept in memory
const lookupCacheSize = 4096

// Directory resolves station keys from the journey log to coordinates.
// It is read-only after construction and safe for concurrent use.
type Directory struct {
	stations map[string]models.Station
	ids      []string
	resolved gcache.Cache
}

// NewDirectory indexes stations by id
func NewDirectory(stations []models.Station) *Directory {
	d := &Directory{stations: make(map[string]models.Station, len(stations))}
	for _, s := range stations {
		if s.ID == "" {
			continue
		}
		d.stations[s.ID] = s
	}

	d.ids = make([]string, 0, len(d.stations))
	for id := range d.stations {
		d.ids = append(d.ids, id)
	}
	sort.Strings(d.ids)

	d.resolved = gcache.New(lookupCacheSize).
		LRU().
		LoaderFunc(func(key interface{}) (interface{}, error) {
			return d.match(key.(string)), nil
		}).
		Build()

	return d
}

// Len returns the number of stations with coordinates
func (d *Directory) Len() int {
	return len(d.stations)
}

// Stations returns every station sorted by id
func (d *Directory) Stations() []models.Station {
	out := make([]models.Station, 0, len(d.ids))
	for _, id := range d.ids {
		out = append(out, d.stations[id])
	}
	return out
}

// Lookup returns the coordinates for a station key such as "Master:80950".
// Keys are matched exactly, then by the part after the last colon, then by
// substring in either direction against ids in ascending order. Unmatched
// keys yield nil coordinates.
func (d *Directory) Lookup(key string) models.Coordinates {
	if key == "" || len(d.stations) == 0 {
		return models.Coordinates{}
	}
	v, err := d.resolved.Get(key)
	if err != nil {
		return d.match(key)
	}
	return v.(models.Coordinates)
}

func (d *Directory) match(key string) models.Coordinates {
	if s, ok := d.stations[key]; ok {
		return coordinatesOf(s)
	}

	if idx := strings.LastIndex(key, ":"); idx != -1 {
		if s, ok := d.stations[key[idx+1:]]; ok {
			return coordinatesOf(s)
		}
	}

	for _, id := range d.ids {
		if strings.Contains(id, key) || strings.Contains(key, id) {
			return coordinatesOf(d.stations[id])
		}
	}

	return models.Coordinates{}
}

func coordinatesOf(s models.Station) models.Coordinates {
	lat, lon := s.Lat, s.Lon
	return models.Coordinates{Lat: &lat, Lon: &lon}
}

// Enrich adds endpoint coordinates to station-pair aggregates.
// Rows without a match keep nil coordinates.
func (d *Directory) Enrich(segments []models.SegmentStats) []models.EnrichedSegment {
	out := make([]models.EnrichedSegment, 0, len(segments))
	for _, s := range segments {
		start := d.Lookup(deref(s.StartStationKey))
		end := d.Lookup(deref(s.EndStationKey))
		out = append(out, models.EnrichedSegment{
			SegmentStats: s,
			StartLat:     start.Lat,
			StartLon:     start.Lon,
			EndLat:       end.Lat,
			EndLon:       end.Lon,
		})
	}
	return out
}

// WithCoordinates keeps the rows whose endpoints were both located
func WithCoordinates(enriched []models.EnrichedSegment) []models.EnrichedSegment {
	out := make([]models.EnrichedSegment, 0, len(enriched))
	for _, s := range enriched {
		if s.HasCoordinates() {
			out = append(out, s)
		}
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
