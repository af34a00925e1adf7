// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	"github.com/bmbilon/merets/internal/domain/ledger"
)

// VerifyDependencies defines the interface for chain verification.
type VerifyDependencies interface {
	VerifyIntegrity(ctx context.Context, subjectID string) (ledger.Status, error)
}

// VerifyHandler handles chain verification requests.
type VerifyHandler struct {
	deps VerifyDependencies
}

// NewVerifyHandler creates a new verify handler.
func NewVerifyHandler(deps VerifyDependencies) *VerifyHandler {
	return &VerifyHandler{deps: deps}
}

// verifyResponse names the subject alongside its chain status.
type verifyResponse struct {
	SubjectID string `json:"subject_id"`
	ledger.Status
}

// HandleGetVerify handles GET /verify/{subject_id} requests. A broken
// chain is still a 200: the verdict is the payload.
func (h *VerifyHandler) HandleGetVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	subjectID, ok := subjectFromPath(r, "/verify/")
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	status, err := h.deps.VerifyIntegrity(r.Context(), subjectID)
	if err != nil {
		writeReadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, verifyResponse{SubjectID: subjectID, Status: status})
}
