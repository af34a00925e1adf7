package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/bmbilon/merets/internal/seeder"
	"github.com/bmbilon/merets/pkg/logger"
)

// Default configuration constants.
const (
	defaultNumSubjects      = 200
	defaultEventsPerSubject = 12
	defaultWorkerMultiplier = 2
	defaultRunTimeout       = 10 * time.Minute
)

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:9090", "Base URL of the engine")
		numSubjects = flag.Int("subjects", defaultNumSubjects, "Number of subjects to seed")
		perSubject  = flag.Int("events", defaultEventsPerSubject, "Events per subject")
		workers     = flag.Int("workers", runtime.NumCPU()*defaultWorkerMultiplier, "Number of concurrent posting workers")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultRunTimeout)
	defer cancel()

	stats, err := seeder.Run(ctx, seeder.Config{
		BaseURL:          *baseURL,
		NumSubjects:      *numSubjects,
		EventsPerSubject: *perSubject,
		Workers:          *workers,
	})
	if err != nil {
		log.Error(ctx, "seeding failed", logger.Error(err))
		os.Exit(1)
	}

	log.Info(ctx, "seeding complete",
		logger.Int64("posted", stats.Posted.Load()),
		logger.Int64("duplicates", stats.Duplicates.Load()),
		logger.Int64("failed", stats.Failed.Load()),
	)
}
