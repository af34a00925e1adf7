// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
	"time"
)

// OutcomeKind is the closed set of terminal states a unit of work can reach.
type OutcomeKind string

const (
	OutcomeSubmitted OutcomeKind = "SUBMITTED"
	OutcomeAccepted  OutcomeKind = "ACCEPTED"
	OutcomeCompleted OutcomeKind = "COMPLETED"
	OutcomeMissed    OutcomeKind = "MISSED"
	OutcomeDeclined  OutcomeKind = "DECLINED"
	OutcomeRejected  OutcomeKind = "REJECTED"
)

// Valid reports whether k is one of the declared outcome kinds.
func (k OutcomeKind) Valid() bool {
	switch k {
	case OutcomeSubmitted, OutcomeAccepted, OutcomeCompleted,
		OutcomeMissed, OutcomeDeclined, OutcomeRejected:
		return true
	}
	return false
}

// ParseOutcomeKind maps a wire string onto an OutcomeKind.
func ParseOutcomeKind(s string) (OutcomeKind, error) {
	k := OutcomeKind(strings.ToUpper(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: unknown outcome kind %q", ErrInvalidEvent, s)
	}
	return k, nil
}

// QualityRating is a reviewer's judgement of completed work.
// The zero value means the work was never rated.
type QualityRating string

const (
	RatingNone    QualityRating = ""
	RatingMiss    QualityRating = "MISS"
	RatingPass    QualityRating = "PASS"
	RatingPerfect QualityRating = "PERFECT"
)

// Valid reports whether r is a declared rating or unrated.
func (r QualityRating) Valid() bool {
	switch r {
	case RatingNone, RatingMiss, RatingPass, RatingPerfect:
		return true
	}
	return false
}

// Rated reports whether a reviewer actually judged the work.
func (r QualityRating) Rated() bool { return r != RatingNone }

// ParseQualityRating maps a wire string onto a QualityRating.
// The empty string parses to RatingNone.
func ParseQualityRating(s string) (QualityRating, error) {
	r := QualityRating(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: unknown quality rating %q", ErrInvalidEvent, s)
	}
	return r, nil
}

// OutcomeEvent is one historical fact about a unit of work. Events are
// immutable once recorded; corrections are new events, never edits.
type OutcomeEvent struct {
	EventID       string        `json:"event_id"`   // unique id for idempotency
	SubjectID     string        `json:"subject_id"` // owner of the event stream
	Kind          OutcomeKind   `json:"kind"`
	Rating        QualityRating `json:"rating,omitempty"` // only when a reviewer judged the work
	AcceptedAt    time.Time     `json:"accepted_at"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
	DueAt         *time.Time    `json:"due_at,omitempty"`
	PlannedEffort time.Duration `json:"planned_effort"` // planned effort for the unit of work
}

// Validate rejects malformed events before they can reach a subject's
// history. All violations wrap ErrInvalidEvent.
func (e OutcomeEvent) Validate() error {
	switch {
	case strings.TrimSpace(e.EventID) == "":
		return fmt.Errorf("%w: missing event id", ErrInvalidEvent)
	case strings.TrimSpace(e.SubjectID) == "":
		return fmt.Errorf("%w: missing subject id", ErrInvalidEvent)
	case !e.Kind.Valid() || e.Kind == "":
		return fmt.Errorf("%w: invalid outcome kind %q", ErrInvalidEvent, e.Kind)
	case !e.Rating.Valid():
		return fmt.Errorf("%w: invalid quality rating %q", ErrInvalidEvent, e.Rating)
	case e.AcceptedAt.IsZero():
		return fmt.Errorf("%w: missing accepted-at timestamp", ErrInvalidEvent)
	case e.PlannedEffort < 0:
		return fmt.Errorf("%w: negative planned effort", ErrInvalidEvent)
	}
	if e.CompletedAt != nil && e.CompletedAt.Before(e.AcceptedAt) {
		return fmt.Errorf("%w: completed-at %s precedes accepted-at %s",
			ErrInvalidEvent, e.CompletedAt.Format(time.RFC3339), e.AcceptedAt.Format(time.RFC3339))
	}
	if e.Kind == OutcomeMissed && e.Rating.Rated() {
		return fmt.Errorf("%w: a missed outcome cannot carry a quality rating", ErrInvalidEvent)
	}
	return nil
}

// Completed reports whether the event represents finished work.
func (e OutcomeEvent) Completed() bool { return e.Kind == OutcomeCompleted }

// Resolved reports whether the event counts toward the completion rate,
// i.e. the unit of work reached a terminal state that was the subject's
// to win or lose.
func (e OutcomeEvent) Resolved() bool {
	switch e.Kind {
	case OutcomeCompleted, OutcomeMissed, OutcomeDeclined:
		return true
	}
	return false
}
