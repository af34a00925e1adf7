package scoring_test

import (
	"testing"
	"time"

	"github.com/bmbilon/merets/internal/domain/model"
	scoring "github.com/bmbilon/merets/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func completedEvent(rating model.QualityRating) model.OutcomeEvent {
	accepted := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	done := accepted.Add(time.Hour)
	return model.OutcomeEvent{
		EventID:       "evt",
		SubjectID:     "subject-1",
		Kind:          model.OutcomeCompleted,
		Rating:        rating,
		AcceptedAt:    accepted,
		CompletedAt:   &done,
		PlannedEffort: 30 * time.Minute,
	}
}

func kindEvent(kind model.OutcomeKind) model.OutcomeEvent {
	return model.OutcomeEvent{
		EventID:    "evt",
		SubjectID:  "subject-1",
		Kind:       kind,
		AcceptedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestModelCompute(t *testing.T) {
	Convey("Given a scoring model with default configuration", t, func() {
		m := scoring.NewModel()

		Convey("When the history is empty", func() {
			s := m.Compute(nil)

			Convey("Then every subscore sits at the neutral floor", func() {
				So(s.Reliability, ShouldEqual, 2.5)
				So(s.Quality, ShouldEqual, 2.5)
				So(s.Experience, ShouldEqual, 2.5)
				So(s.Composite, ShouldEqual, 2.5)
				So(s.Tier, ShouldEqual, scoring.TierTrusted)
				So(s.Trend, ShouldEqual, scoring.TrendStable)
			})
		})

		Convey("When computing twice over the same history", func() {
			history := []model.OutcomeEvent{
				completedEvent(model.RatingPerfect),
				completedEvent(model.RatingPass),
				kindEvent(model.OutcomeMissed),
				completedEvent(model.RatingPerfect),
			}

			Convey("Then both results are identical", func() {
				So(m.Compute(history), ShouldResemble, m.Compute(history))
			})
		})

		Convey("When folding the worked four-event history", func() {
			history := []model.OutcomeEvent{
				completedEvent(model.RatingPerfect),
				completedEvent(model.RatingPass),
				kindEvent(model.OutcomeMissed),
				completedEvent(model.RatingPerfect),
			}
			s := m.Compute(history)

			Convey("Then reliability reflects 3 of 4 resolved completions", func() {
				So(s.Reliability, ShouldAlmostEqual, 3.75, 0.001)
			})

			Convey("Then quality reflects the mean of {5,3,5}", func() {
				So(s.Quality, ShouldAlmostEqual, 13.0/3.0, 0.001)
			})

			Convey("Then the composite lands in the trusted-or-expert band", func() {
				So(s.Composite, ShouldBeGreaterThanOrEqualTo, 2.5)
				So(s.Composite, ShouldBeLessThan, 4.5)
			})

			Convey("Then the streaks reflect the miss in position three", func() {
				So(s.CurrentStreak, ShouldEqual, 1)
				So(s.LongestStreak, ShouldEqual, 2)
			})
		})

		Convey("When the sample is thinner than the guard", func() {
			history := []model.OutcomeEvent{kindEvent(model.OutcomeMissed)}
			s := m.Compute(history)

			Convey("Then reliability is pulled toward neutral, not zero", func() {
				// One miss out of one resolved with minSamples=3:
				// (0*1 + 2.5*2) / 3
				So(s.Reliability, ShouldAlmostEqual, 5.0/3.0, 0.001)
			})
		})

		Convey("When completed events carry no rating", func() {
			unrated := completedEvent(model.RatingNone)
			rated := completedEvent(model.RatingPerfect)
			s := m.Compute([]model.OutcomeEvent{unrated, rated, unrated})

			Convey("Then unrated events are excluded from the mean, not zeroed", func() {
				So(s.Quality, ShouldAlmostEqual, 5.0, 0.001)
			})
		})

		Convey("When history grows with perfect completions", func() {
			Convey("Then experience rises monotonically and saturates below the cap", func() {
				var history []model.OutcomeEvent
				last := 0.0
				for i := 0; i < 100; i++ {
					history = append(history, completedEvent(model.RatingPerfect))
					s := m.Compute(history)
					So(s.Experience, ShouldBeGreaterThan, last)
					So(s.Experience, ShouldBeLessThan, 5.0)
					last = s.Experience
				}
			})
		})
	})
}

func TestTierBoundaries(t *testing.T) {
	Convey("Given the tier partition of [0,5]", t, func() {
		cases := []struct {
			composite float64
			tier      scoring.Tier
		}{
			{0.0, scoring.TierNovice},
			{1.49, scoring.TierNovice},
			{1.5, scoring.TierApprentice},
			{2.49, scoring.TierApprentice},
			{2.5, scoring.TierTrusted},
			{3.49, scoring.TierTrusted},
			{3.5, scoring.TierExpert},
			{4.49, scoring.TierExpert},
			{4.5, scoring.TierLegendary},
			{5.0, scoring.TierLegendary},
		}

		Convey("Then every boundary is closed-open with no gaps", func() {
			for _, c := range cases {
				So(scoring.TierFor(c.composite), ShouldEqual, c.tier)
			}
		})
	})
}

func TestNextTier(t *testing.T) {
	Convey("Given composite scores across the range", t, func() {
		Convey("Then the next milestone is the smallest threshold above", func() {
			tier, at, ok := scoring.NextTier(2.6)
			So(ok, ShouldBeTrue)
			So(tier, ShouldEqual, scoring.TierExpert)
			So(at, ShouldEqual, 3.5)
		})

		Convey("Then the top tier has no milestone", func() {
			_, _, ok := scoring.NextTier(4.8)
			So(ok, ShouldBeFalse)
		})
	})
}

func TestMilestoneProjection(t *testing.T) {
	Convey("Given a mid-range history", t, func() {
		m := scoring.NewModel()
		history := []model.OutcomeEvent{
			completedEvent(model.RatingPass),
			completedEvent(model.RatingPass),
			completedEvent(model.RatingPerfect),
			kindEvent(model.OutcomeMissed),
			completedEvent(model.RatingPerfect),
		}
		s := m.Compute(history)

		Convey("Then a reachable next tier yields a positive estimate", func() {
			So(s.NextTier, ShouldNotBeEmpty)
			So(s.NextTierAt, ShouldBeGreaterThan, s.Composite)
			So(s.EventsToNextTier, ShouldBeGreaterThan, 0)
		})
	})
}

func TestStreaksAndTrend(t *testing.T) {
	Convey("Given a model with a trend window of 2", t, func() {
		m := scoring.NewModel(
			scoring.WithTrendWindow(2),
			scoring.WithTrendBand(0.5),
		)

		Convey("When recent quality beats the previous window", func() {
			history := []model.OutcomeEvent{
				completedEvent(model.RatingMiss),
				completedEvent(model.RatingMiss),
				completedEvent(model.RatingPerfect),
				completedEvent(model.RatingPerfect),
			}
			So(m.Compute(history).Trend, ShouldEqual, scoring.TrendUp)
		})

		Convey("When recent quality falls off", func() {
			history := []model.OutcomeEvent{
				completedEvent(model.RatingPerfect),
				completedEvent(model.RatingPerfect),
				completedEvent(model.RatingMiss),
				completedEvent(model.RatingMiss),
			}
			So(m.Compute(history).Trend, ShouldEqual, scoring.TrendDown)
		})

		Convey("When movement stays inside the tolerance band", func() {
			history := []model.OutcomeEvent{
				completedEvent(model.RatingPass),
				completedEvent(model.RatingPass),
				completedEvent(model.RatingPass),
				completedEvent(model.RatingPass),
			}
			So(m.Compute(history).Trend, ShouldEqual, scoring.TrendStable)
		})

		Convey("When a rejection interrupts a run of completions", func() {
			history := []model.OutcomeEvent{
				completedEvent(model.RatingPass),
				completedEvent(model.RatingPass),
				completedEvent(model.RatingPass),
				kindEvent(model.OutcomeRejected),
				completedEvent(model.RatingPass),
			}
			s := m.Compute(history)
			So(s.CurrentStreak, ShouldEqual, 1)
			So(s.LongestStreak, ShouldEqual, 3)
		})

		Convey("When a declined event sits between completions", func() {
			history := []model.OutcomeEvent{
				completedEvent(model.RatingPass),
				kindEvent(model.OutcomeDeclined),
				completedEvent(model.RatingPass),
			}
			s := m.Compute(history)

			Convey("Then the streak survives; only misses and rejections break it", func() {
				So(s.CurrentStreak, ShouldEqual, 2)
			})
		})
	})
}

func TestDisplayComposite(t *testing.T) {
	Convey("Given a score with full internal precision", t, func() {
		s := scoring.Score{Composite: 3.4449}

		Convey("Then the display value rounds to one decimal", func() {
			So(s.DisplayComposite(), ShouldEqual, 3.4)
		})
	})
}

func TestComputeBreakdown(t *testing.T) {
	Convey("Given the worked four-event history", t, func() {
		m := scoring.NewModel()
		history := []model.OutcomeEvent{
			completedEvent(model.RatingPerfect),
			completedEvent(model.RatingPass),
			kindEvent(model.OutcomeMissed),
			completedEvent(model.RatingPerfect),
		}
		b := m.ComputeBreakdown(history)

		Convey("Then the recorded components mirror the fold", func() {
			So(b.CompletionRate, ShouldAlmostEqual, 0.75, 0.001)
			So(b.QualityAverage, ShouldAlmostEqual, 13.0/3.0, 0.001)
			So(b.FailurePenalty, ShouldAlmostEqual, 0.25, 0.001)
			So(b.Consistency, ShouldBeBetweenOrEqual, 0, 1)
			So(b.VolumeBonus, ShouldBeBetweenOrEqual, 0, 1)
		})
	})
}
