package server

import (
	"log/slog"
	"net/http"

	"github.com/wattwise/controller/pkg/log"
)

// handleStateCurrent returns the latest forecast/state adapter snapshot.
// SystemState is ephemeral (spec.md §3): this is a live read through the
// adapter's own cache, never a persisted row.
func (s *Server) handleStateCurrent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	state, err := s.adapter.Snapshot(ctx)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "server: adapter snapshot failed", slog.Any("error", err))
		writeJSONError(w, "failed to read system state", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, state)
}
