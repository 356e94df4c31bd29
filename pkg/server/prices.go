package server

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/wattwise/controller/pkg/log"
	"github.com/wattwise/controller/pkg/tariff"
)

// handlePricesRefresh pulls the current tariff window from the external
// tariff API and upserts it into the store. Idempotent: re-running it
// against the same window replaces rows by valid_from rather than
// duplicating them.
func (s *Server) handlePricesRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if s.fetcher == nil {
		writeJSONError(w, "no tariff fetcher configured", http.StatusInternalServerError)
		return
	}

	raw, err := s.fetcher.Fetch(ctx)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "server: tariff fetch failed", slog.Any("error", err))
		writeJSONError(w, "tariff fetch failed: "+err.Error(), http.StatusBadGateway)
		return
	}

	now := s.clock()
	report, err := s.tariff.Ingest(ctx, now, raw)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "server: tariff ingest failed", slog.Any("error", err))
		writeJSONError(w, "failed to ingest tariff window", http.StatusInternalServerError)
		return
	}

	window, err := s.tariff.GetWindow(ctx, now, now.Add(48*time.Hour))
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "server: loading window after refresh", slog.Any("error", err))
		writeJSONError(w, "failed to load refreshed window", http.StatusInternalServerError)
		return
	}

	coverageHours := float64(len(window)) * 0.5
	writeJSON(w, http.StatusOK, struct {
		PricesStored  int         `json:"pricesStored"`
		CoverageHours float64     `json:"coverageHours"`
		Statistics    interface{} `json:"statistics"`
		Report        interface{} `json:"ingestReport"`
	}{
		PricesStored:  report.Inserted + report.Updated,
		CoverageHours: coverageHours,
		Statistics:    tariff.Stats(window),
		Report:        report,
	})
}

// handlePricesCurrent returns the current window of PricePoints covering
// the next hours query parameter (default 24h).
func (s *Server) handlePricesCurrent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	hours := 24.0
	if raw := r.URL.Query().Get("hours"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 {
			writeJSONError(w, "hours must be a positive number", http.StatusBadRequest)
			return
		}
		hours = parsed
	}

	now := s.clock()
	window, err := s.tariff.GetWindow(ctx, now, now.Add(time.Duration(hours*float64(time.Hour))))
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "server: loading price window", slog.Any("error", err))
		writeJSONError(w, "failed to load price window", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, window)
}
