// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bmbilon/merets/internal/domain/model"
)

// OutcomeDependencies defines the interface for outcome ingestion.
type OutcomeDependencies interface {
	SeenAndRecord(ctx context.Context, id string) bool
	Unrecord(ctx context.Context, id string)
	Enqueue(ctx context.Context, event model.OutcomeEvent) bool
}

// OutcomesHandler handles outcome submissions.
type OutcomesHandler struct {
	deps OutcomeDependencies
}

// NewOutcomesHandler creates a new outcomes handler.
func NewOutcomesHandler(deps OutcomeDependencies) *OutcomesHandler {
	return &OutcomesHandler{deps: deps}
}

// outcomeRequest mirrors the wire schema for POST /outcomes.
type outcomeRequest struct {
	EventID              string `json:"event_id"`
	SubjectID            string `json:"subject_id"`
	Kind                 string `json:"kind"`
	Rating               string `json:"rating,omitempty"`
	AcceptedAt           string `json:"accepted_at"`
	CompletedAt          string `json:"completed_at,omitempty"`
	DueAt                string `json:"due_at,omitempty"`
	PlannedEffortMinutes int    `json:"planned_effort_minutes"`
}

// toEvent parses the wire request into a domain event. Timestamps are
// RFC3339; enum fields are case-insensitive on the wire.
func (r outcomeRequest) toEvent() (model.OutcomeEvent, error) {
	kind, err := model.ParseOutcomeKind(r.Kind)
	if err != nil {
		return model.OutcomeEvent{}, err
	}
	rating, err := model.ParseQualityRating(r.Rating)
	if err != nil {
		return model.OutcomeEvent{}, err
	}

	accepted, err := parseTimestamp(r.AcceptedAt, "accepted_at")
	if err != nil {
		return model.OutcomeEvent{}, err
	}

	e := model.OutcomeEvent{
		EventID:       strings.TrimSpace(r.EventID),
		SubjectID:     strings.TrimSpace(r.SubjectID),
		Kind:          kind,
		Rating:        rating,
		AcceptedAt:    accepted,
		PlannedEffort: time.Duration(r.PlannedEffortMinutes) * time.Minute,
	}

	if r.CompletedAt != "" {
		completed, err := parseTimestamp(r.CompletedAt, "completed_at")
		if err != nil {
			return model.OutcomeEvent{}, err
		}
		e.CompletedAt = &completed
	}
	if r.DueAt != "" {
		due, err := parseTimestamp(r.DueAt, "due_at")
		if err != nil {
			return model.OutcomeEvent{}, err
		}
		e.DueAt = &due
	}

	return e, nil
}

func parseTimestamp(s, field string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, fmt.Errorf("missing %s", field)
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s; must be RFC3339", field)
	}
	return t, nil
}

// HandlePostOutcome handles POST /outcomes requests.
func (h *OutcomesHandler) HandlePostOutcome(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_outcome"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req outcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	event, err := req.toEvent()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := event.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	// Idempotency check - mark as seen first.
	if h.deps.SeenAndRecord(r.Context(), event.EventID) {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
		return
	}

	if ok := h.deps.Enqueue(r.Context(), event); !ok {
		// Rollback the "seen" status so the client can retry this id.
		h.deps.Unrecord(r.Context(), event.EventID)
		writeError(w, http.StatusServiceUnavailable, "backpressure", NewKind(op, ErrBackpressure))
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", Duplicate: false})
}
