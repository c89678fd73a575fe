package handlers

import (
	"net/http"
	"time"

	"github.com/dbpranger/delay-api/models"
)

// SnapshotReporter describes the loaded history snapshot
type SnapshotReporter interface {
	Info() models.SnapshotInfo
}

// HealthHandler handles GET /health
type HealthHandler struct {
	snapshot     SnapshotReporter
	modelsLoaded bool
}

// NewHealthHandler creates a new handler
func NewHealthHandler(snapshot SnapshotReporter, modelsLoaded bool) *HealthHandler {
	return &HealthHandler{snapshot: snapshot, modelsLoaded: modelsLoaded}
}

// GetHealth handles GET /health
// Degraded when any log file failed to load or no models are available;
// unhealthy when nothing at all was loaded
func (h *HealthHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	info := h.snapshot.Info()

	status := models.StatusHealthy
	switch {
	case info.TotalSegments == 0 && len(info.LoadErrors) > 0:
		status = models.StatusUnhealthy
	case len(info.LoadErrors) > 0 || !h.modelsLoaded:
		status = models.StatusDegraded
	}

	writeJSON(w, http.StatusOK, models.HealthResponse{
		Status:       status,
		Snapshot:     info,
		ModelsLoaded: h.modelsLoaded,
		Timestamp:    time.Now().UTC(),
	})
}
