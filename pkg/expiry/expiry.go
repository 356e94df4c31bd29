// Package expiry runs the periodic manual-override expiry sweep, and
// optionally the periodic tariff refresh, each on its own cron schedule.
package expiry

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wattwise/controller/pkg/log"
	"github.com/wattwise/controller/pkg/storage"
	"github.com/wattwise/controller/pkg/tariff"
)

// Worker sweeps expired manual overrides on a fixed period. A single-
// flight guard drops a tick if the previous one is still running,
// rather than letting ticks pile up under a slow database.
type Worker struct {
	store  storage.Provider
	period time.Duration

	tariffStore   *tariff.Store
	fetcher       tariff.Fetcher
	refreshPeriod time.Duration

	running        atomic.Bool
	refreshRunning atomic.Bool
	cron           *cron.Cron
}

func NewWorker(store storage.Provider, period time.Duration) *Worker {
	return &Worker{store: store, period: period}
}

// Configure replaces the worker's dependency and sweep period in place,
// so a Worker can be handed out before flag-derived values are available
// and populated once lflag.Configure() runs. It never copies the whole
// struct (it embeds atomic.Bool guards, which must not be copied).
func (w *Worker) Configure(store storage.Provider, period time.Duration) {
	w.store = store
	w.period = period
}

// EnableTariffRefresh schedules a second cron job that re-fetches the
// tariff window from fetcher and ingests it into tariffStore every
// refreshPeriod, so /prices/refresh isn't the only way the store ever
// gets new prices (tariff.refresh_interval_s, default 1800s).
func (w *Worker) EnableTariffRefresh(tariffStore *tariff.Store, fetcher tariff.Fetcher, refreshPeriod time.Duration) {
	w.tariffStore = tariffStore
	w.fetcher = fetcher
	w.refreshPeriod = refreshPeriod
}

// Run schedules the sweep (and, if enabled, the tariff refresh) and
// blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if w.period <= 0 {
		w.period = 5 * time.Minute
	}

	w.cron = cron.New()
	if _, err := w.cron.AddFunc(fmt.Sprintf("@every %s", w.period), func() { w.tick(ctx) }); err != nil {
		return err
	}

	if w.tariffStore != nil && w.fetcher != nil {
		refreshPeriod := w.refreshPeriod
		if refreshPeriod <= 0 {
			refreshPeriod = 30 * time.Minute
		}
		if _, err := w.cron.AddFunc(fmt.Sprintf("@every %s", refreshPeriod), func() { w.refreshTick(ctx) }); err != nil {
			return err
		}
	}

	w.cron.Start()
	<-ctx.Done()
	stopCtx := w.cron.Stop()
	<-stopCtx.Done()
	return ctx.Err()
}

func (w *Worker) tick(ctx context.Context) {
	if !w.running.CompareAndSwap(false, true) {
		log.Ctx(ctx).WarnContext(ctx, "expiry: previous tick still running, skipping")
		return
	}
	defer w.running.Store(false)

	count, err := w.store.ExpireManualOverrides(ctx, time.Now())
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "expiry: sweep failed", slog.Any("error", err))
		return
	}
	log.Ctx(ctx).InfoContext(ctx, "expiry: sweep complete", slog.Int("expired", count))
}

func (w *Worker) refreshTick(ctx context.Context) {
	if !w.refreshRunning.CompareAndSwap(false, true) {
		log.Ctx(ctx).WarnContext(ctx, "expiry: previous tariff refresh still running, skipping")
		return
	}
	defer w.refreshRunning.Store(false)

	raw, err := w.fetcher.Fetch(ctx)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "expiry: tariff refresh fetch failed", slog.Any("error", err))
		return
	}

	report, err := w.tariffStore.Ingest(ctx, time.Now(), raw)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "expiry: tariff refresh ingest failed", slog.Any("error", err))
		return
	}
	log.Ctx(ctx).InfoContext(ctx, "expiry: tariff refresh complete",
		slog.Int("inserted", report.Inserted), slog.Int("updated", report.Updated))
}
