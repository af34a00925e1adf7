package progress

// Option applies a configuration option to the Tracker.
type Option func(*Tracker)

// WithUnitMinutes sets the credited-time threshold for one reward unit.
func WithUnitMinutes(minutes int) Option {
	return func(t *Tracker) {
		if minutes > 0 {
			t.unitMinutes = minutes
		}
	}
}

// WithWeeklyTarget sets the unit count required for bonus qualification.
func WithWeeklyTarget(units int) Option {
	return func(t *Tracker) {
		if units > 0 {
			t.weeklyTarget = units
		}
	}
}

// WithBonusFloor sets the minimum composite score for bonus qualification.
func WithBonusFloor(score float64) Option {
	return func(t *Tracker) {
		if score >= 0 {
			t.bonusFloor = score
		}
	}
}

// WithMissedCeiling sets the maximum missed-commitment count allowed for
// bonus qualification.
func WithMissedCeiling(n int) Option {
	return func(t *Tracker) {
		if n >= 0 {
			t.missedCeiling = n
		}
	}
}

// WithBonusRate sets the earnings multiplier granted on qualification.
func WithBonusRate(rate float64) Option {
	return func(t *Tracker) {
		if rate > 1 {
			t.bonusRate = rate
		}
	}
}

// WithQualityMultipliers sets the per-rating credited-time multipliers.
func WithQualityMultipliers(perfect, pass, unrated, miss float64) Option {
	return func(t *Tracker) {
		if perfect > 0 && pass > 0 && unrated > 0 && miss >= 0 {
			t.perfectMultiplier = perfect
			t.passMultiplier = pass
			t.unratedMultiplier = unrated
			t.missMultiplier = miss
		}
	}
}
