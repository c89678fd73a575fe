package history

import (
	"fmt"

	"github.com/dbpranger/delay-api/models"
)

// Parameter defaults and bounds
const (
	DefaultListLimit = 100
	MaxListLimit     = 1000

	DefaultBucketMinutes = 60
	MaxBucketMinutes     = 1440

	DefaultSegmentLimit = 50
	MaxSegmentLimit     = 500

	DefaultJourneyLimit = 50
	MaxJourneyLimit     = 500
)

// ParamError reports a request parameter that was rejected
type ParamError struct {
	Param  string
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid parameter %q: %s", e.Param, e.Reason)
}

// ListParams selects a page of segment rows
type ListParams struct {
	Limit       *int
	Offset      *int
	Line        *string
	VehicleType *string
}

// SegmentParams selects the station-pair ranking
type SegmentParams struct {
	SortBy string
	Limit  *int
}

// boundedInt returns def when v is nil and rejects values outside [min, max]
func boundedInt(name string, v *int, def, min, max int) (int, error) {
	if v == nil {
		return def, nil
	}
	if *v < min || *v > max {
		return 0, &ParamError{Param: name, Reason: fmt.Sprintf("must be between %d and %d", min, max)}
	}
	return *v, nil
}

func nonNegative(name string, v *int) (int, error) {
	if v == nil {
		return 0, nil
	}
	if *v < 0 {
		return 0, &ParamError{Param: name, Reason: "must not be negative"}
	}
	return *v, nil
}

func parseSort(s string) (models.SegmentSort, error) {
	if s == "" {
		return models.SegmentSortAvg, nil
	}
	switch sort := models.SegmentSort(s); sort {
	case models.SegmentSortAvg, models.SegmentSortMax, models.SegmentSortTotal:
		return sort, nil
	}
	return "", &ParamError{Param: "sort_by", Reason: "must be one of avg, max, total"}
}
