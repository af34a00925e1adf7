// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bmbilon/merets/internal/domain/ledger"
	"github.com/bmbilon/merets/internal/domain/model"
	"github.com/bmbilon/merets/internal/domain/progress"
	"github.com/bmbilon/merets/internal/domain/scoring"
	"github.com/bmbilon/merets/pkg/metrics"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Idempotency and ingestion.
	SeenAndRecord(ctx context.Context, id string) bool
	Unrecord(ctx context.Context, id string)
	Enqueue(ctx context.Context, event model.OutcomeEvent) bool

	// Read operations over a subject's derived state.
	CurrentScore(ctx context.Context, subjectID string) (scoring.Score, error)
	AuditTrail(ctx context.Context, subjectID string, limit int) ([]ledger.Entry, error)
	VerifyIntegrity(ctx context.Context, subjectID string) (ledger.Status, error)
	WindowedProgress(ctx context.Context, subjectID, window string) (progress.Progress, error)
	BonusQualification(ctx context.Context, subjectID string) (progress.Qualification, error)
}

// Server wires HTTP routes for the attribution API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	outcomesHandler *OutcomesHandler
	scoreHandler    *ScoreHandler
	auditHandler    *AuditHandler
	verifyHandler   *VerifyHandler
	progressHandler *ProgressHandler
	bonusHandler    *BonusHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		outcomesHandler: NewOutcomesHandler(deps),
		scoreHandler:    NewScoreHandler(deps),
		auditHandler:    NewAuditHandler(deps),
		verifyHandler:   NewVerifyHandler(deps),
		progressHandler: NewProgressHandler(deps),
		bonusHandler:    NewBonusHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/outcomes", MetricsMiddleware(s.outcomesHandler.HandlePostOutcome, "outcomes"))
	mux.HandleFunc("/score/", MetricsMiddleware(s.scoreHandler.HandleGetScore, "score"))
	mux.HandleFunc("/audit/", MetricsMiddleware(s.auditHandler.HandleGetAudit, "audit"))
	mux.HandleFunc("/verify/", MetricsMiddleware(s.verifyHandler.HandleGetVerify, "verify"))
	mux.HandleFunc("/progress/", MetricsMiddleware(s.progressHandler.HandleGetProgress, "progress"))
	mux.HandleFunc("/bonus/", MetricsMiddleware(s.bonusHandler.HandleGetBonus, "bonus"))
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
