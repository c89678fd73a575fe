package journeylog

// IngestionBatch is one line of a transport log: one poll of one grid tile.
// Journeys observed by overlapping polls are kept as separate observations.
type IngestionBatch struct {
	IngestionISO *string    `json:"ingestion_iso"`
	BoxIndex     *int       `json:"box_index"`
	Journeys     []*Journey `json:"journeys"`
}

// Journey is one observation of a vehicle trip
type Journey struct {
	JourneyID   *string    `json:"journeyID"`
	Line        *Line      `json:"line"`
	VehicleType *string    `json:"vehicleType"`
	Realtime    *bool      `json:"realtime"`
	Segments    []*Segment `json:"segments"`
}

// Line identifies the service a journey runs on
type Line struct {
	Name      *string   `json:"name"`
	Direction *string   `json:"direction"`
	Origin    *string   `json:"origin"`
	Type      *LineType `json:"type"`
	ID        *string   `json:"id"`
}

// LineType carries the coarse and detailed vehicle classification
type LineType struct {
	SimpleType *string `json:"simpleType"`
	Model      *string `json:"model"`
}

// Segment is one stop-to-stop leg as observed at poll time
type Segment struct {
	StartStopPointKey *string `json:"startStopPointKey"`
	EndStopPointKey   *string `json:"endStopPointKey"`
	StartStationName  *string `json:"startStationName"`
	StartStationKey   *string `json:"startStationKey"`
	StartDateTime     *int64  `json:"startDateTime"`
	EndStationName    *string `json:"endStationName"`
	EndStationKey     *string `json:"endStationKey"`
	EndDateTime       *int64  `json:"endDateTime"`
	Destination       *string `json:"destination"`
	RealtimeDelay     *int    `json:"realtimeDelay"`
	IsFirst           *bool   `json:"isFirst"`
	IsLast            *bool   `json:"isLast"`
}

// lineName and friends walk optional nesting without panicking

func (j *Journey) lineName() *string {
	if j.Line == nil {
		return nil
	}
	return j.Line.Name
}

func (j *Journey) lineDirection() *string {
	if j.Line == nil {
		return nil
	}
	return j.Line.Direction
}

func (j *Journey) lineSimpleType() *string {
	if j.Line == nil || j.Line.Type == nil {
		return nil
	}
	return j.Line.Type.SimpleType
}
