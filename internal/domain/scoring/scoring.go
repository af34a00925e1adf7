// Package scoring computes bounded reputation scores from outcome history.
//
// The model is a pure function over an ordered event sequence: no clock, no
// store, no side effects. Callers own loading the history; the model only
// folds it into subscores, a blended composite, tier classification, streak
// and trend analysis, and a next-milestone projection.
package scoring

import (
	"math"

	"github.com/bmbilon/merets/internal/domain/model"
)

// Default model configuration constants.
const (
	// neutralScore is the documented floor for empty or thin histories.
	// New accounts start in the middle of the range rather than at zero.
	neutralScore = 2.5

	maxScore = 5.0

	defaultMinSamples    = 3
	defaultExperienceSat = 10.0 // completed count at which experience reaches half of max
	defaultTrendWindow   = 5
	defaultTrendBand     = 0.5 // rating-point tolerance before a trend flips

	defaultReliabilityWeight = 0.50
	defaultQualityWeight     = 0.30
	defaultExperienceWeight  = 0.20

	// consistencySat is the streak length treated as full consistency in
	// the recorded breakdown.
	consistencySat = 10.0
)

// Rating values on the [0,5] scale used for quality averaging.
const (
	ratingValuePerfect = 5.0
	ratingValuePass    = 3.0
	ratingValueMiss    = 1.0
)

// Trend summarizes recent quality movement.
type Trend string

const (
	TrendUp     Trend = "UP"
	TrendDown   Trend = "DOWN"
	TrendStable Trend = "STABLE"
)

// Score is the derived reputation state for one subject. All score fields
// are bounded to [0,5]. Composite carries full precision; use
// DisplayComposite for the rounded user-facing value.
type Score struct {
	Reliability float64 `json:"reliability"`
	Quality     float64 `json:"quality"`
	Experience  float64 `json:"experience"`
	Composite   float64 `json:"composite"`
	Tier        Tier    `json:"tier"`

	CurrentStreak int   `json:"current_streak"`
	LongestStreak int   `json:"longest_streak"`
	Trend         Trend `json:"trend"`

	// NextTier is empty at the top tier. EventsToNextTier is the estimated
	// number of additional perfect completions needed to cross NextTierAt;
	// -1 means the gap is not closable by further perfect completions alone.
	NextTier         Tier    `json:"next_tier,omitempty"`
	NextTierAt       float64 `json:"next_tier_at,omitempty"`
	EventsToNextTier int     `json:"events_to_next_tier"`
}

// DisplayComposite returns the composite rounded to one decimal place.
func (s Score) DisplayComposite() float64 {
	return math.Round(s.Composite*10) / 10
}

// Breakdown records the weighted sub-components behind a computed score.
// It is persisted verbatim inside every ledger entry so a transition can be
// audited without replaying history.
type Breakdown struct {
	CompletionRate float64 `json:"completion_rate"` // completed / resolved, in [0,1]
	QualityAverage float64 `json:"quality_average"` // mean rated quality on the [0,5] scale
	Consistency    float64 `json:"consistency"`     // current streak saturation, in [0,1]
	VolumeBonus    float64 `json:"volume_bonus"`    // experience saturation, in [0,1]
	FailurePenalty float64 `json:"failure_penalty"` // missed / resolved, in [0,1]
}

// Model folds outcome history into reputation scores.
type Model struct {
	minSamples    int
	experienceSat float64
	trendWindow   int
	trendBand     float64

	reliabilityWeight float64
	qualityWeight     float64
	experienceWeight  float64
}

// NewModel creates a scoring model with configuration options.
func NewModel(opts ...Option) *Model {
	m := &Model{
		minSamples:        defaultMinSamples,
		experienceSat:     defaultExperienceSat,
		trendWindow:       defaultTrendWindow,
		trendBand:         defaultTrendBand,
		reliabilityWeight: defaultReliabilityWeight,
		qualityWeight:     defaultQualityWeight,
		experienceWeight:  defaultExperienceWeight,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Compute derives the full reputation state from an ordered history.
// It is deterministic, never fails, and is defined for the empty sequence.
func (m *Model) Compute(history []model.OutcomeEvent) Score {
	s := m.computeCore(history)

	s.CurrentStreak, s.LongestStreak = streaks(history)
	s.Trend = m.trend(history)
	m.projectMilestone(history, &s)

	return s
}

// ComputeBreakdown derives the sub-component record for the current history.
func (m *Model) ComputeBreakdown(history []model.OutcomeEvent) Breakdown {
	c := tally(history)

	b := Breakdown{}
	if c.resolved > 0 {
		b.CompletionRate = float64(c.completed) / float64(c.resolved)
		b.FailurePenalty = float64(c.missed) / float64(c.resolved)
	}
	if c.rated > 0 {
		b.QualityAverage = c.ratingSum / float64(c.rated)
	}
	current, _ := streaks(history)
	b.Consistency = math.Min(1, float64(current)/consistencySat)
	b.VolumeBonus = math.Min(1, float64(c.completed)/(float64(c.completed)+m.experienceSat))

	return b
}

// counts is the fold state shared by the subscore computations.
type counts struct {
	completed int
	missed    int
	declined  int
	resolved  int
	rated     int
	ratingSum float64
}

func tally(history []model.OutcomeEvent) counts {
	var c counts
	for _, e := range history {
		switch e.Kind {
		case model.OutcomeCompleted:
			c.completed++
		case model.OutcomeMissed:
			c.missed++
		case model.OutcomeDeclined:
			c.declined++
		}
		if e.Completed() && e.Rating.Rated() {
			c.rated++
			c.ratingSum += ratingValue(e.Rating)
		}
	}
	c.resolved = c.completed + c.missed + c.declined
	return c
}

func ratingValue(r model.QualityRating) float64 {
	switch r {
	case model.RatingPerfect:
		return ratingValuePerfect
	case model.RatingPass:
		return ratingValuePass
	case model.RatingMiss:
		return ratingValueMiss
	}
	return 0
}

// computeCore produces the three subscores and composite without the
// streak/trend/milestone decoration. Milestone projection reuses it on a
// hypothetical extended history, so it must not recurse into Compute.
func (m *Model) computeCore(history []model.OutcomeEvent) Score {
	if len(history) == 0 {
		return Score{
			Reliability: neutralScore,
			Quality:     neutralScore,
			Experience:  neutralScore,
			Composite:   neutralScore,
			Tier:        TierFor(neutralScore),
			Trend:       TrendStable,
		}
	}

	c := tally(history)

	reliability := neutralScore
	if c.resolved > 0 {
		rate := float64(c.completed) / float64(c.resolved)
		reliability = rate * maxScore
		if c.resolved < m.minSamples {
			// Thin sample: blend toward neutral so one early miss does not
			// crater a brand-new account.
			observed := float64(c.resolved)
			reliability = (reliability*observed + neutralScore*(float64(m.minSamples)-observed)) / float64(m.minSamples)
		}
	}

	quality := neutralScore
	if c.rated > 0 {
		quality = c.ratingSum / float64(c.rated)
	}

	// Saturating growth: more completions keep raising the floor, but each
	// one earns less than the last.
	experience := maxScore * float64(c.completed) / (float64(c.completed) + m.experienceSat)

	wSum := m.reliabilityWeight + m.qualityWeight + m.experienceWeight
	composite := (m.reliabilityWeight*reliability + m.qualityWeight*quality + m.experienceWeight*experience) / wSum
	composite = clamp(composite, 0, maxScore)

	return Score{
		Reliability: clamp(reliability, 0, maxScore),
		Quality:     clamp(quality, 0, maxScore),
		Experience:  clamp(experience, 0, maxScore),
		Composite:   composite,
		Tier:        TierFor(composite),
		Trend:       TrendStable,
	}
}

// streaks returns the current and longest runs of consecutive COMPLETED
// outcomes. MISSED and REJECTED break a run; other kinds are skipped.
func streaks(history []model.OutcomeEvent) (current, longest int) {
	run := 0
	for _, e := range history {
		switch e.Kind {
		case model.OutcomeCompleted:
			run++
			if run > longest {
				longest = run
			}
		case model.OutcomeMissed, model.OutcomeRejected:
			run = 0
		}
	}
	return run, longest
}

// trend compares mean rated quality of the most recent window against the
// window before it. The tolerance band keeps noise from flapping the signal.
func (m *Model) trend(history []model.OutcomeEvent) Trend {
	var ratings []float64
	for _, e := range history {
		if e.Completed() && e.Rating.Rated() {
			ratings = append(ratings, ratingValue(e.Rating))
		}
	}
	k := m.trendWindow
	if len(ratings) < 2*k {
		return TrendStable
	}

	recent := mean(ratings[len(ratings)-k:])
	previous := mean(ratings[len(ratings)-2*k : len(ratings)-k])

	switch {
	case recent-previous > m.trendBand:
		return TrendUp
	case previous-recent > m.trendBand:
		return TrendDown
	}
	return TrendStable
}

// projectMilestone fills the next-tier fields. The marginal gain of one
// further perfect completion depends on current sample size, so the estimate
// is recomputed from scratch on every call rather than cached.
func (m *Model) projectMilestone(history []model.OutcomeEvent, s *Score) {
	next, threshold, ok := NextTier(s.Composite)
	if !ok {
		s.EventsToNextTier = 0
		return
	}
	s.NextTier = next
	s.NextTierAt = threshold

	extended := make([]model.OutcomeEvent, len(history), len(history)+1)
	copy(extended, history)
	extended = append(extended, perfectCompletion(history))

	marginal := m.computeCore(extended).Composite - s.Composite
	if marginal <= 0 {
		s.EventsToNextTier = -1
		return
	}
	s.EventsToNextTier = int(math.Ceil((threshold - s.Composite) / marginal))
}

// perfectCompletion fabricates the hypothetical next event used for
// milestone projection. Timestamps are irrelevant to the core subscores.
func perfectCompletion(history []model.OutcomeEvent) model.OutcomeEvent {
	e := model.OutcomeEvent{
		Kind:   model.OutcomeCompleted,
		Rating: model.RatingPerfect,
	}
	if len(history) > 0 {
		e.SubjectID = history[0].SubjectID
	}
	return e
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
