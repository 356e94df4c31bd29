package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/wattwise/controller/pkg/log"
	"github.com/wattwise/controller/pkg/override"
	"github.com/wattwise/controller/pkg/types"
)

type manualOverrideSetRequest struct {
	DeviceID      types.Device `json:"deviceId"`
	DesiredState  bool         `json:"desiredState"`
	Source        string       `json:"source,omitempty"`
	DurationHours float64      `json:"durationHours,omitempty"`
}

// handleManualOverrideSet creates a new active manual override for a
// device, atomically replacing any prior active row.
func (s *Server) handleManualOverrideSet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req manualOverrideSetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "malformed request body", http.StatusBadRequest)
		return
	}

	expiresAt, err := s.overrides.SetManual(ctx, req.DeviceID, req.DesiredState, req.DurationHours, req.Source, s.clock())
	if err != nil {
		if errors.Is(err, override.ErrInvalidDevice) || errors.Is(err, override.ErrInvalidDuration) {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Ctx(ctx).ErrorContext(ctx, "server: setting manual override", slog.Any("error", err))
		writeJSONError(w, "failed to set manual override", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		DeviceID  types.Device `json:"deviceId"`
		ExpiresAt time.Time    `json:"expiresAt"`
	}{DeviceID: req.DeviceID, ExpiresAt: expiresAt})
}

type manualStatusResponse struct {
	IsActive              bool    `json:"isActive"`
	DesiredState          *bool   `json:"desiredState,omitempty"`
	ExpiresAt             *string `json:"expiresAt,omitempty"`
	TimeRemainingMinutes  int     `json:"timeRemainingMinutes"`
	Source                string  `json:"source,omitempty"`
}

// handleManualOverrideStatus returns per-device manual override status
// plus an any-active summary flag.
func (s *Server) handleManualOverrideStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := s.clock()

	statuses, err := s.overrides.ManualStatusAll(ctx, now)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "server: loading manual override status", slog.Any("error", err))
		writeJSONError(w, "failed to load manual override status", http.StatusInternalServerError)
		return
	}

	byDevice := make(map[types.Device]manualStatusResponse, len(statuses))
	anyActive := false
	for device, st := range statuses {
		resp := manualStatusResponse{IsActive: st.Active}
		if st.Active {
			desired := st.DesiredState
			expires := st.ExpiresAt.UTC().Format(time.RFC3339)
			resp.DesiredState = &desired
			resp.ExpiresAt = &expires
			resp.TimeRemainingMinutes = st.TimeRemainingMinutes
			resp.Source = st.Source
			anyActive = true
		}
		byDevice[device] = resp
	}

	writeJSON(w, http.StatusOK, struct {
		Devices   map[types.Device]manualStatusResponse `json:"devices"`
		AnyActive bool                                   `json:"anyActive"`
	}{Devices: byDevice, AnyActive: anyActive})
}

// handleManualOverrideClear deactivates one device's active manual
// override. Idempotent: clearing an already-inactive device is a no-op.
func (s *Server) handleManualOverrideClear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	device := types.Device(q.Get("device_id"))
	clearedBy := q.Get("cleared_by")

	n, err := s.overrides.ClearManual(ctx, device, clearedBy)
	if err != nil {
		if errors.Is(err, override.ErrInvalidDevice) {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Ctx(ctx).ErrorContext(ctx, "server: clearing manual override", slog.Any("error", err))
		writeJSONError(w, "failed to clear manual override", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Cleared int `json:"cleared"`
	}{Cleared: n})
}

// handleManualOverrideClearAll deactivates every device's active manual
// override.
func (s *Server) handleManualOverrideClearAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clearedBy := r.URL.Query().Get("cleared_by")

	n, err := s.overrides.ClearAllManual(ctx, clearedBy)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "server: clearing all manual overrides", slog.Any("error", err))
		writeJSONError(w, "failed to clear manual overrides", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Cleared int `json:"cleared"`
	}{Cleared: n})
}
