package scoring

// Option applies a configuration option to the Model.
type Option func(*Model)

// WithWeights sets the composite blend weights. Weights are normalized at
// computation time, so callers may pass percentages or fractions.
func WithWeights(reliability, quality, experience float64) Option {
	return func(m *Model) {
		if reliability > 0 && quality > 0 && experience > 0 {
			m.reliabilityWeight = reliability
			m.qualityWeight = quality
			m.experienceWeight = experience
		}
	}
}

// WithMinSamples sets the resolved-event count below which reliability is
// blended toward neutral.
func WithMinSamples(n int) Option {
	return func(m *Model) {
		if n > 0 {
			m.minSamples = n
		}
	}
}

// WithExperienceSaturation sets the completed-event count at which the
// experience subscore reaches half of its maximum.
func WithExperienceSaturation(k float64) Option {
	return func(m *Model) {
		if k > 0 {
			m.experienceSat = k
		}
	}
}

// WithTrendWindow sets the number of recent rated completions compared
// against the preceding window for the trend signal.
func WithTrendWindow(k int) Option {
	return func(m *Model) {
		if k > 0 {
			m.trendWindow = k
		}
	}
}

// WithTrendBand sets the rating-point tolerance before the trend signal
// moves off STABLE.
func WithTrendBand(band float64) Option {
	return func(m *Model) {
		if band >= 0 {
			m.trendBand = band
		}
	}
}
