// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/bmbilon/merets/internal/domain/ledger"
)

// Default audit page size when the client does not ask for one.
const defaultAuditLimit = 20

// AuditDependencies defines the interface for audit trail reads.
type AuditDependencies interface {
	AuditTrail(ctx context.Context, subjectID string, limit int) ([]ledger.Entry, error)
}

// AuditHandler handles audit trail requests.
type AuditHandler struct {
	deps AuditDependencies
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(deps AuditDependencies) *AuditHandler {
	return &AuditHandler{deps: deps}
}

// auditResponse wraps the page so an empty trail serializes as [].
type auditResponse struct {
	SubjectID string         `json:"subject_id"`
	Entries   []ledger.Entry `json:"entries"`
}

// HandleGetAudit handles GET /audit/{subject_id}?limit=N requests.
func (h *AuditHandler) HandleGetAudit(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_audit"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	subjectID, ok := subjectFromPath(r, "/audit/")
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	limit := defaultAuditLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		limit = n
	}

	entries, err := h.deps.AuditTrail(r.Context(), subjectID, limit)
	if err != nil {
		writeReadError(w, err)
		return
	}
	if entries == nil {
		entries = []ledger.Entry{}
	}
	writeJSON(w, http.StatusOK, auditResponse{SubjectID: subjectID, Entries: entries})
}
