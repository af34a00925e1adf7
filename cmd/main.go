package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/bmbilon/merets/internal/adapters/http/api"
	"github.com/bmbilon/merets/internal/adapters/repository"
	app "github.com/bmbilon/merets/internal/app"
	"github.com/bmbilon/merets/internal/config"
	"github.com/bmbilon/merets/internal/domain/progress"
	"github.com/bmbilon/merets/internal/domain/scoring"
	"github.com/bmbilon/merets/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 10 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func main() {
	// The metrics manager keeps its own registry; the default Go and
	// process collectors would only duplicate series there.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store, err := buildStore(ctx, cfg, log)
	if err != nil {
		os.Stderr.WriteString("failed to open store: " + err.Error() + "\n")
		return
	}

	// Create and start the service with configuration options
	svc := app.New(
		app.WithLogger(log),
		app.WithStore(store),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithMaxAuditLimit(cfg.MaxAuditLimit),
		app.WithChangeEpsilon(cfg.ChangeEpsilon),
		app.WithScoringOptions(
			scoring.WithWeights(cfg.ReliabilityWeight, cfg.QualityWeight, cfg.ExperienceWeight),
			scoring.WithMinSamples(cfg.MinSamples),
			scoring.WithExperienceSaturation(cfg.ExperienceSaturation),
			scoring.WithTrendWindow(cfg.TrendWindow),
			scoring.WithTrendBand(cfg.TrendBand),
		),
		app.WithProgressOptions(
			progress.WithUnitMinutes(cfg.UnitMinutes),
			progress.WithWeeklyTarget(cfg.WeeklyUnitTarget),
			progress.WithBonusFloor(cfg.BonusScoreFloor),
			progress.WithMissedCeiling(cfg.BonusMissedCeiling),
			progress.WithBonusRate(cfg.BonusRate),
			progress.WithQualityMultipliers(cfg.PerfectMultiplier, cfg.PassMultiplier, cfg.UnratedMultiplier, cfg.MissMultiplier),
		),
	)
	if err := svc.Start(ctx); err != nil {
		os.Stderr.WriteString("failed to start service: " + err.Error() + "\n")
		return
	}
	defer svc.Stop()

	go startServiceMetricsUpdater(ctx, svc)

	// HTTP mux and routes.
	mux := http.NewServeMux()
	apiServer := api.NewServer(svc, svc)
	apiServer.Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
}

// buildStore opens the configured history/ledger store.
func buildStore(ctx context.Context, cfg *config.Config, log logger.Logger) (repository.Store, error) {
	switch cfg.StoreDriver {
	case "sqlite":
		log.Info(ctx, "using sqlite store", logger.String("path", cfg.StorePath))
		return repository.NewSQLiteStore(ctx, cfg.StorePath)
	default:
		log.Info(ctx, "using in-memory store")
		return repository.NewMemoryStore(ctx), nil
	}
}

// startServiceMetricsUpdater refreshes the service-level gauges.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// GetStats refreshes the queue, worker and subject gauges as a
			// side effect.
			_ = svc.GetStats()
		}
	}
}
