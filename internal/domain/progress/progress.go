// Package progress aggregates completed work into windowed credited time,
// reward units and bonus eligibility.
//
// Like the scoring model it is pure over explicit inputs: the caller
// supplies the history and the reference instant, so results are
// reproducible and testable without a store or a wall clock.
package progress

import (
	"fmt"
	"time"

	"github.com/bmbilon/merets/internal/domain/model"
)

// Window selects the aggregation period.
type Window string

const (
	WindowWeekly  Window = "WEEKLY"
	WindowMonthly Window = "MONTHLY"
)

// ParseWindow maps a wire string onto a Window.
func ParseWindow(s string) (Window, error) {
	switch Window(s) {
	case WindowWeekly, "":
		return WindowWeekly, nil
	case WindowMonthly:
		return WindowMonthly, nil
	}
	// Accept lowercase query values from the HTTP layer.
	switch s {
	case "weekly":
		return WindowWeekly, nil
	case "monthly":
		return WindowMonthly, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidWindow, s)
}

// Default tracker configuration constants.
const (
	defaultUnitMinutes   = 30
	defaultWeeklyTarget  = 5
	defaultBonusFloor    = 3.5
	defaultMissedCeiling = 1
	defaultBonusRate     = 1.5

	defaultPerfectMultiplier = 1.25
	defaultPassMultiplier    = 1.0
	defaultUnratedMultiplier = 1.0
	defaultMissMultiplier    = 0.25

	weeklySpan = 7 * 24 * time.Hour
)

// Progress is the derived windowed state: earned units plus partial
// progress toward the next one. Recomputed per query, never persisted.
type Progress struct {
	Window          Window `json:"window"`
	Units           int    `json:"units"`
	TargetUnits     int    `json:"target_units"`
	MinutesIntoNext int    `json:"minutes_into_next"`
	UnitMinutes     int    `json:"unit_minutes"`
}

// Requirement reports one bonus gate with its current and required values,
// so a caller can show exactly which gate failed.
type Requirement struct {
	Name     string  `json:"name"`
	Met      bool    `json:"met"`
	Current  float64 `json:"current"`
	Required float64 `json:"required"`
}

// Qualification is the all-or-nothing bonus decision.
type Qualification struct {
	Qualifies    bool          `json:"qualifies"`
	Multiplier   float64       `json:"multiplier,omitempty"`
	Requirements []Requirement `json:"requirements"`
}

// Tracker evaluates windowed progress and bonus rules.
type Tracker struct {
	unitMinutes   int
	weeklyTarget  int
	bonusFloor    float64
	missedCeiling int
	bonusRate     float64

	perfectMultiplier float64
	passMultiplier    float64
	unratedMultiplier float64
	missMultiplier    float64
}

// NewTracker creates a tracker with configuration options.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		unitMinutes:       defaultUnitMinutes,
		weeklyTarget:      defaultWeeklyTarget,
		bonusFloor:        defaultBonusFloor,
		missedCeiling:     defaultMissedCeiling,
		bonusRate:         defaultBonusRate,
		perfectMultiplier: defaultPerfectMultiplier,
		passMultiplier:    defaultPassMultiplier,
		unratedMultiplier: defaultUnratedMultiplier,
		missMultiplier:    defaultMissMultiplier,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Progress folds the history's completed events inside the window ending at
// now into credited time and reward units. Only COMPLETED events with a
// completed-at timestamp count; each contributes its planned effort scaled
// by the quality multiplier, so micro-tasks still count and low-quality
// work is discounted without being discarded.
func (t *Tracker) Progress(history []model.OutcomeEvent, now time.Time, window Window) Progress {
	start, end := t.bounds(now, window)

	credited := time.Duration(0)
	for _, e := range history {
		if !e.Completed() || e.CompletedAt == nil {
			continue
		}
		if !t.inWindow(*e.CompletedAt, start, end) {
			continue
		}
		credited += time.Duration(float64(e.PlannedEffort) * t.multiplier(e.Rating))
	}

	unit := time.Duration(t.unitMinutes) * time.Minute
	creditedMinutes := int(credited / time.Minute)

	return Progress{
		Window:          window,
		Units:           int(credited / unit),
		TargetUnits:     t.weeklyTarget,
		MinutesIntoNext: creditedMinutes % t.unitMinutes,
		UnitMinutes:     t.unitMinutes,
	}
}

// MissedInWindow counts MISSED outcomes whose due date (falling back to
// accepted-at) lies inside the window ending at now.
func (t *Tracker) MissedInWindow(history []model.OutcomeEvent, now time.Time, window Window) int {
	start, end := t.bounds(now, window)

	missed := 0
	for _, e := range history {
		if e.Kind != model.OutcomeMissed {
			continue
		}
		at := e.AcceptedAt
		if e.DueAt != nil {
			at = *e.DueAt
		}
		if t.inWindow(at, start, end) {
			missed++
		}
	}
	return missed
}

// Bonus requirement names surfaced to callers.
const (
	RequirementUnits  = "weekly_units"
	RequirementScore  = "composite_score"
	RequirementMissed = "missed_commitments"
)

// Bonus evaluates the all-or-nothing qualification: weekly units at target,
// composite at or above the floor, and missed commitments at or below the
// ceiling. Every gate reports its own current/required pair regardless of
// the overall outcome.
func (t *Tracker) Bonus(weeklyUnits int, composite float64, missedCount int) Qualification {
	reqs := []Requirement{
		{
			Name:     RequirementUnits,
			Met:      weeklyUnits >= t.weeklyTarget,
			Current:  float64(weeklyUnits),
			Required: float64(t.weeklyTarget),
		},
		{
			Name:     RequirementScore,
			Met:      composite >= t.bonusFloor,
			Current:  composite,
			Required: t.bonusFloor,
		},
		{
			Name:     RequirementMissed,
			Met:      missedCount <= t.missedCeiling,
			Current:  float64(missedCount),
			Required: float64(t.missedCeiling),
		},
	}

	q := Qualification{Qualifies: true, Requirements: reqs}
	for _, r := range reqs {
		if !r.Met {
			q.Qualifies = false
		}
	}
	if q.Qualifies {
		q.Multiplier = t.bonusRate
	}
	return q
}

// bounds returns the half-open interval [start, end) for the window
// ending at now. WEEKLY trails 7 days; MONTHLY is the calendar month of
// now. The start instant is inclusive and the end exclusive, so a boundary
// event lands in exactly one window.
func (t *Tracker) bounds(now time.Time, window Window) (start, end time.Time) {
	switch window {
	case WindowMonthly:
		y, m, _ := now.Date()
		start = time.Date(y, m, 1, 0, 0, 0, 0, now.Location())
		return start, start.AddDate(0, 1, 0)
	default:
		return now.Add(-weeklySpan), now.Add(time.Nanosecond)
	}
}

func (t *Tracker) inWindow(at, start, end time.Time) bool {
	return !at.Before(start) && at.Before(end)
}

func (t *Tracker) multiplier(r model.QualityRating) float64 {
	switch r {
	case model.RatingPerfect:
		return t.perfectMultiplier
	case model.RatingPass:
		return t.passMultiplier
	case model.RatingMiss:
		return t.missMultiplier
	}
	return t.unratedMultiplier
}
