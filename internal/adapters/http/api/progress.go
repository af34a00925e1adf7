// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/bmbilon/merets/internal/domain/progress"
)

// ProgressDependencies defines the interface for windowed progress reads.
type ProgressDependencies interface {
	WindowedProgress(ctx context.Context, subjectID, window string) (progress.Progress, error)
}

// ProgressHandler handles windowed progress requests.
type ProgressHandler struct {
	deps ProgressDependencies
}

// NewProgressHandler creates a new progress handler.
func NewProgressHandler(deps ProgressDependencies) *ProgressHandler {
	return &ProgressHandler{deps: deps}
}

// progressResponse names the subject alongside its windowed progress.
type progressResponse struct {
	SubjectID string `json:"subject_id"`
	progress.Progress
}

// HandleGetProgress handles GET /progress/{subject_id}?window=weekly|monthly
// requests. The window defaults to weekly.
func (h *ProgressHandler) HandleGetProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	subjectID, ok := subjectFromPath(r, "/progress/")
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	p, err := h.deps.WindowedProgress(r.Context(), subjectID, r.URL.Query().Get("window"))
	if err != nil {
		if errors.Is(err, progress.ErrInvalidWindow) {
			writeError(w, http.StatusBadRequest, "bad_request", err)
			return
		}
		writeReadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progressResponse{SubjectID: subjectID, Progress: p})
}

// BonusDependencies defines the interface for bonus qualification reads.
type BonusDependencies interface {
	BonusQualification(ctx context.Context, subjectID string) (progress.Qualification, error)
}

// BonusHandler handles bonus qualification requests.
type BonusHandler struct {
	deps BonusDependencies
}

// NewBonusHandler creates a new bonus handler.
func NewBonusHandler(deps BonusDependencies) *BonusHandler {
	return &BonusHandler{deps: deps}
}

// bonusResponse names the subject alongside its qualification verdict.
type bonusResponse struct {
	SubjectID string `json:"subject_id"`
	progress.Qualification
}

// HandleGetBonus handles GET /bonus/{subject_id} requests.
func (h *BonusHandler) HandleGetBonus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	subjectID, ok := subjectFromPath(r, "/bonus/")
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	q, err := h.deps.BonusQualification(r.Context(), subjectID)
	if err != nil {
		writeReadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bonusResponse{SubjectID: subjectID, Qualification: q})
}
