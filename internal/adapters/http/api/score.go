// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/bmbilon/merets/internal/adapters/repository"
	"github.com/bmbilon/merets/internal/domain/scoring"
)

// ScoreDependencies defines the interface for score reads.
type ScoreDependencies interface {
	CurrentScore(ctx context.Context, subjectID string) (scoring.Score, error)
}

// ScoreHandler handles score requests.
type ScoreHandler struct {
	deps ScoreDependencies
}

// NewScoreHandler creates a new score handler.
func NewScoreHandler(deps ScoreDependencies) *ScoreHandler {
	return &ScoreHandler{deps: deps}
}

// scoreResponse decorates the computed score with its rounded display value.
type scoreResponse struct {
	SubjectID string  `json:"subject_id"`
	Display   float64 `json:"display_composite"`
	scoring.Score
}

// HandleGetScore handles GET /score/{subject_id} requests.
func (h *ScoreHandler) HandleGetScore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	subjectID, ok := subjectFromPath(r, "/score/")
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	score, err := h.deps.CurrentScore(r.Context(), subjectID)
	if err != nil {
		writeReadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scoreResponse{
		SubjectID: subjectID,
		Display:   score.DisplayComposite(),
		Score:     score,
	})
}

// subjectFromPath extracts the single path parameter after prefix.
func subjectFromPath(r *http.Request, prefix string) (string, bool) {
	p := strings.TrimPrefix(r.URL.Path, prefix)
	if p == "" || strings.Contains(p, "/") {
		return "", false
	}
	return p, true
}

// writeReadError translates upstream read failures onto HTTP statuses.
func writeReadError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	case errors.Is(err, repository.ErrInvalidLimit):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
