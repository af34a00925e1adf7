package seeder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmbilon/merets/internal/domain/model"
	"github.com/bmbilon/merets/pkg/logger"
)

// Default runner configuration constants.
const (
	defaultWorkers     = 8
	defaultHTTPTimeout = 10 * time.Second
	retryBackoff       = 250 * time.Millisecond
	maxAttempts        = 3
)

// Config controls a seeding run.
type Config struct {
	BaseURL          string // engine base URL, e.g. http://localhost:9090
	NumSubjects      int
	EventsPerSubject int
	Workers          int
}

// Stats counts the outcome of a seeding run.
type Stats struct {
	Posted     atomic.Int64
	Duplicates atomic.Int64
	Failed     atomic.Int64
}

// wireOutcome mirrors the POST /outcomes request schema.
type wireOutcome struct {
	EventID              string `json:"event_id"`
	SubjectID            string `json:"subject_id"`
	Kind                 string `json:"kind"`
	Rating               string `json:"rating,omitempty"`
	AcceptedAt           string `json:"accepted_at"`
	CompletedAt          string `json:"completed_at,omitempty"`
	DueAt                string `json:"due_at,omitempty"`
	PlannedEffortMinutes int    `json:"planned_effort_minutes"`
}

func toWire(e model.OutcomeEvent) wireOutcome {
	w := wireOutcome{
		EventID:              e.EventID,
		SubjectID:            e.SubjectID,
		Kind:                 string(e.Kind),
		Rating:               string(e.Rating),
		AcceptedAt:           e.AcceptedAt.Format(time.RFC3339),
		PlannedEffortMinutes: int(e.PlannedEffort / time.Minute),
	}
	if e.CompletedAt != nil {
		w.CompletedAt = e.CompletedAt.Format(time.RFC3339)
	}
	if e.DueAt != nil {
		w.DueAt = e.DueAt.Format(time.RFC3339)
	}
	return w
}

// Run generates subject streams and posts every event against the engine.
// Subjects are sharded across workers whole, so each subject's events post
// in order.
func Run(ctx context.Context, cfg Config) (*Stats, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}

	streams, err := GenerateSubjects(ctx, cfg.NumSubjects, cfg.EventsPerSubject)
	if err != nil {
		return nil, err
	}

	log := logger.Get().Named("seeder")
	stats := &Stats{}
	client := &http.Client{Timeout: defaultHTTPTimeout}

	work := make(chan []model.OutcomeEvent)
	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for stream := range work {
				for _, e := range stream {
					postWithRetry(ctx, client, cfg.BaseURL, e, stats, log)
				}
			}
		}()
	}

	for _, stream := range streams {
		select {
		case work <- stream:
		case <-ctx.Done():
			close(work)
			wg.Wait()
			return stats, fmt.Errorf("seeding cancelled: %w", ctx.Err())
		}
	}
	close(work)
	wg.Wait()

	log.Info(ctx, "seeding finished",
		logger.Int64("posted", stats.Posted.Load()),
		logger.Int64("duplicates", stats.Duplicates.Load()),
		logger.Int64("failed", stats.Failed.Load()),
	)

	return stats, nil
}

// postWithRetry posts one event, retrying briefly on backpressure.
func postWithRetry(ctx context.Context, client *http.Client, baseURL string, e model.OutcomeEvent, stats *Stats, log logger.Logger) {
	body, err := json.Marshal(toWire(e))
	if err != nil {
		stats.Failed.Add(1)
		return
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/outcomes", bytes.NewReader(body))
		if err != nil {
			stats.Failed.Add(1)
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			stats.Failed.Add(1)
			return
		}
		status := resp.StatusCode
		resp.Body.Close()

		switch status {
		case http.StatusAccepted:
			stats.Posted.Add(1)
			return
		case http.StatusOK:
			stats.Duplicates.Add(1)
			return
		case http.StatusServiceUnavailable:
			select {
			case <-time.After(retryBackoff * time.Duration(attempt)):
			case <-ctx.Done():
				stats.Failed.Add(1)
				return
			}
		default:
			log.Warn(ctx, "event rejected",
				logger.String("eventID", e.EventID),
				logger.Int("status", status),
			)
			stats.Failed.Add(1)
			return
		}
	}
	stats.Failed.Add(1)
}
