package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/wattwise/controller/pkg/log"
	"github.com/wattwise/controller/pkg/override"
	"github.com/wattwise/controller/pkg/types"
)

type scheduleUpdateRequest struct {
	DeviceID  types.Device `json:"deviceId"`
	IsActive  bool         `json:"isActive"`
	Reason    string       `json:"reason"`
	Timestamp time.Time    `json:"timestamp"`
}

// handleScheduleUpdate records one heartbeat from the external schedule
// source.
func (s *Server) handleScheduleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req scheduleUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "malformed request body", http.StatusBadRequest)
		return
	}

	at := req.Timestamp
	if at.IsZero() {
		at = s.clock()
	}

	if err := s.overrides.ReportSchedule(ctx, req.DeviceID, req.IsActive, req.Reason, at); err != nil {
		if err == override.ErrInvalidDevice {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Ctx(ctx).ErrorContext(ctx, "server: reporting schedule override", slog.Any("error", err))
		writeJSONError(w, "failed to report schedule", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		OK bool `json:"ok"`
	}{OK: true})
}

type scheduleStatusResponse struct {
	IsActive        bool      `json:"isActive"`
	Reason          string    `json:"reason,omitempty"`
	ActivatedAt     time.Time `json:"activatedAt,omitempty"`
	DurationMinutes int       `json:"durationMinutes"`
}

// handleScheduleStatus returns per-device schedule status plus an
// any-active summary flag.
func (s *Server) handleScheduleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := s.clock()

	statuses, err := s.overrides.ScheduleStatusAll(ctx, now)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "server: loading schedule status", slog.Any("error", err))
		writeJSONError(w, "failed to load schedule status", http.StatusInternalServerError)
		return
	}

	byDevice := make(map[types.Device]scheduleStatusResponse, len(statuses))
	anyActive := false
	for device, st := range statuses {
		resp := scheduleStatusResponse{IsActive: st.Active, Reason: st.Reason}
		if st.Active {
			resp.ActivatedAt = st.ActivatedAt
			resp.DurationMinutes = int(now.Sub(st.ActivatedAt).Minutes())
			anyActive = true
		}
		byDevice[device] = resp
	}

	writeJSON(w, http.StatusOK, struct {
		Devices   map[types.Device]scheduleStatusResponse `json:"devices"`
		AnyActive bool                                     `json:"anyActive"`
	}{Devices: byDevice, AnyActive: anyActive})
}

// handleScheduleHistory returns recent schedule transitions for one device.
func (s *Server) handleScheduleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	device := types.Device(q.Get("device_id"))
	if !device.Valid() {
		writeJSONError(w, override.ErrInvalidDevice.Error(), http.StatusBadRequest)
		return
	}

	now := s.clock()
	start, end, err := parseHistoryRange(q, now)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	limit := 50
	if raw := q.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSONError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	transitions, err := s.overrides.ScheduleHistory(ctx, device, start, end, limit)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "server: loading schedule history", slog.Any("error", err))
		writeJSONError(w, "failed to load schedule history", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, transitions)
}

func parseHistoryRange(q map[string][]string, now time.Time) (time.Time, time.Time, error) {
	start := now.Add(-24 * time.Hour)
	end := now

	if raw := first(q, "start"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, errInvalidQueryParam
		}
		start = parsed
	}
	if raw := first(q, "end"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, errInvalidQueryParam
		}
		end = parsed
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, errInvalidQueryParam
	}
	return start, end, nil
}

func first(q map[string][]string, key string) string {
	vals, ok := q[key]
	if !ok || len(vals) == 0 {
		return ""
	}
	return vals[0]
}
