package journeylog

import "github.com/dbpranger/delay-api/models"

// Flatten produces one FlatRow per (batch, journey, segment).
// Row IDs are assigned in input order starting at 1. A null journey or a
// journey without segments yields no rows; a null segment yields a row whose
// segment columns are all null.
func Flatten(batches []IngestionBatch) []models.FlatRow {
	var rows []models.FlatRow
	var nextID int64 = 1
	for _, b := range batches {
		rows = appendBatch(rows, b, &nextID)
	}
	return rows
}

func appendBatch(rows []models.FlatRow, b IngestionBatch, nextID *int64) []models.FlatRow {
	for _, j := range b.Journeys {
		if j == nil {
			continue
		}
		for _, s := range j.Segments {
			if s == nil {
				s = &Segment{}
			}
			rows = append(rows, models.FlatRow{
				RowID:           *nextID,
				IngestionISO:    b.IngestionISO,
				BoxIndex:        b.BoxIndex,
				JourneyID:       j.JourneyID,
				Line:            j.lineName(),
				Direction:       j.lineDirection(),
				LineType:        j.lineSimpleType(),
				VehicleType:     j.VehicleType,
				Realtime:        j.Realtime,
				StartStation:    s.StartStationName,
				StartStationKey: s.StartStationKey,
				EndStation:      s.EndStationName,
				EndStationKey:   s.EndStationKey,
				StartTimestamp:  s.StartDateTime,
				EndTimestamp:    s.EndDateTime,
				DelayMinutes:    s.RealtimeDelay,
				IsFirst:         s.IsFirst,
				IsLast:          s.IsLast,
			})
			*nextID++
		}
	}
	return rows
}
