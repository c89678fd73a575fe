package models

// Station is one entry of the station directory
type Station struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// Coordinates is the result of a station key lookup; both fields are nil
// when the key could not be matched.
type Coordinates struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

// Found reports whether both coordinates are present
func (c Coordinates) Found() bool {
	return c.Lat != nil && c.Lon != nil
}

// EnrichedSegment is a station-pair aggregate with endpoint coordinates
type EnrichedSegment struct {
	SegmentStats
	StartLat *float64 `json:"start_lat"`
	StartLon *float64 `json:"start_lon"`
	EndLat   *float64 `json:"end_lat"`
	EndLon   *float64 `json:"end_lon"`
}

// HasCoordinates reports whether both endpoints were located
func (s EnrichedSegment) HasCoordinates() bool {
	return s.StartLat != nil && s.StartLon != nil && s.EndLat != nil && s.EndLon != nil
}
