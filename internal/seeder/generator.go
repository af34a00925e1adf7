// Package seeder generates realistic outcome event streams and posts them
// against a running engine, for load checks and demo data.
package seeder

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/bmbilon/merets/internal/domain/model"
	"github.com/bmbilon/merets/pkg/logger"
)

// Constants for random number generation.
const (
	randomFloatDivisor = 1000000
	profileCount       = 4
)

// Subject profiles shape the generated event mix.
const (
	profileReliable = 0 // mostly completed, mostly perfect
	profileSteady   = 1 // completed with passes, occasional miss
	profileFlaky    = 2 // frequent misses and declines
	profileFresh    = 3 // thin history, mixed outcomes
)

// Effort bounds for generated events, in minutes.
const (
	minEffortMinutes    = 15
	effortMinutesRange  = 105
	maxHistoryDaysAgo   = 21
	acceptToDueHours    = 48
	acceptToDoneMinHrs  = 1
	acceptToDoneRangeHr = 24
)

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// GenerateSubjects produces numSubjects subject ids, each with a stream of
// eventsPerSubject outcome events shaped by a randomly assigned profile.
// Events are ordered oldest first within a subject.
func GenerateSubjects(ctx context.Context, numSubjects, eventsPerSubject int) ([][]model.OutcomeEvent, error) {
	log := logger.Get().Named("seeder")
	log.Info(ctx, "generating outcome streams",
		logger.Int("subjects", numSubjects),
		logger.Int("eventsPerSubject", eventsPerSubject),
	)

	streams := make([][]model.OutcomeEvent, numSubjects)
	for i := 0; i < numSubjects; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("generation cancelled: %w", err)
		}
		subjectID := uuid.New().String()
		profile := int(getRandomFloat() * profileCount)
		if profile >= profileCount {
			profile = profileCount - 1
		}

		n := eventsPerSubject
		if profile == profileFresh && n > 3 {
			n = 1 + int(getRandomFloat()*2)
		}

		stream := make([]model.OutcomeEvent, 0, n)
		for j := 0; j < n; j++ {
			stream = append(stream, generateEvent(subjectID, profile, n, j))
		}
		streams[i] = stream
	}

	return streams, nil
}

// generateEvent fabricates one event. Timestamps walk forward through the
// last few weeks so windowed progress queries have something to chew on.
func generateEvent(subjectID string, profile, total, index int) model.OutcomeEvent {
	// Spread the stream across the history span, oldest first.
	daysAgo := float64(maxHistoryDaysAgo) * float64(total-index) / float64(total+1)
	accepted := time.Now().Add(-time.Duration(daysAgo*24) * time.Hour).Truncate(time.Second)
	due := accepted.Add(acceptToDueHours * time.Hour)

	e := model.OutcomeEvent{
		EventID:       uuid.New().String(),
		SubjectID:     subjectID,
		Kind:          pickKind(profile),
		AcceptedAt:    accepted,
		DueAt:         &due,
		PlannedEffort: time.Duration(minEffortMinutes+int(getRandomFloat()*effortMinutesRange)) * time.Minute,
	}

	if e.Kind == model.OutcomeCompleted {
		done := accepted.Add(time.Duration(acceptToDoneMinHrs+getRandomFloat()*acceptToDoneRangeHr) * time.Hour)
		e.CompletedAt = &done
		e.Rating = pickRating(profile)
	}

	return e
}

func pickKind(profile int) model.OutcomeKind {
	r := getRandomFloat()
	switch profile {
	case profileReliable:
		if r < 0.92 {
			return model.OutcomeCompleted
		}
		return model.OutcomeDeclined
	case profileSteady:
		switch {
		case r < 0.75:
			return model.OutcomeCompleted
		case r < 0.88:
			return model.OutcomeMissed
		default:
			return model.OutcomeDeclined
		}
	case profileFlaky:
		switch {
		case r < 0.40:
			return model.OutcomeCompleted
		case r < 0.75:
			return model.OutcomeMissed
		case r < 0.90:
			return model.OutcomeDeclined
		default:
			return model.OutcomeRejected
		}
	default:
		switch {
		case r < 0.50:
			return model.OutcomeCompleted
		case r < 0.70:
			return model.OutcomeSubmitted
		case r < 0.85:
			return model.OutcomeAccepted
		default:
			return model.OutcomeMissed
		}
	}
}

func pickRating(profile int) model.QualityRating {
	r := getRandomFloat()
	switch profile {
	case profileReliable:
		switch {
		case r < 0.60:
			return model.RatingPerfect
		case r < 0.95:
			return model.RatingPass
		default:
			return model.RatingMiss
		}
	case profileFlaky:
		switch {
		case r < 0.15:
			return model.RatingPerfect
		case r < 0.55:
			return model.RatingPass
		case r < 0.80:
			return model.RatingMiss
		default:
			return model.RatingNone
		}
	default:
		switch {
		case r < 0.30:
			return model.RatingPerfect
		case r < 0.80:
			return model.RatingPass
		case r < 0.90:
			return model.RatingMiss
		default:
			return model.RatingNone
		}
	}
}
