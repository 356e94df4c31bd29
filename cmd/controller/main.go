package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/levenlabs/go-lflag"
	"github.com/levenlabs/go-llog"

	"github.com/wattwise/controller/pkg/adapter"
	"github.com/wattwise/controller/pkg/config"
	"github.com/wattwise/controller/pkg/expiry"
	"github.com/wattwise/controller/pkg/log"
	"github.com/wattwise/controller/pkg/override"
	"github.com/wattwise/controller/pkg/server"
	"github.com/wattwise/controller/pkg/storage"
	"github.com/wattwise/controller/pkg/tariff"
)

func main() {
	// init packages
	cfg := config.Configured()
	store := storage.Configured(cfg)
	ad := adapter.Configured(cfg)
	fetcher := tariff.ConfiguredFetcher()

	// tariffStore, overrides and worker are handed out now and
	// reconfigured in place once lflag.Configure() below has populated
	// cfg's flag-derived fields.
	tariffStore := tariff.NewStore(store, 0)
	overrides := override.NewManager(store, 0, 0, 0)
	worker := expiry.NewWorker(store, 0)
	srv := server.Configured(store, tariffStore, ad, overrides, fetcher, cfg)

	lflag.Do(func() {
		tariffStore.Configure(store, cfg.Tariff.RetentionDays)
		overrides.Configure(store, cfg.Override.ManualDefaultHours, cfg.Override.ManualMaxHours, cfg.Override.ScheduleStaleThreshold)
		worker.Configure(store, cfg.ExpiryWorkerPeriod)
		worker.EnableTariffRefresh(tariffStore, fetcher, cfg.Tariff.RefreshInterval)
	})

	// parse flags
	lflag.Configure()

	var level slog.Level
	// lflag automatically sets llog's level, but we need to set the slog level
	switch llog.GetLevel() {
	case llog.DebugLevel:
		level = slog.LevelDebug
	case llog.InfoLevel:
		level = slog.LevelInfo
	case llog.WarnLevel:
		level = slog.LevelWarn
	case llog.ErrorLevel:
		level = slog.LevelError
	default:
		panic(fmt.Errorf("unknown log level: %s", llog.GetLevel().String()))
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	slog.Debug("logger configured", slog.String("level", level.String()))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// If initialization inside lflag.Do failed, we wouldn't be here (panic).
	defer func() {
		if err := store.Close(); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to close storage", "error", err)
		}
	}()

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return srv.Run(egCtx)
	})
	eg.Go(func() error {
		return worker.Run(egCtx)
	})

	if err := eg.Wait(); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "controller exited with error", "error", err)
		os.Exit(1)
	}
	log.Ctx(ctx).InfoContext(ctx, "controller exited cleanly")
}
