// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() defaults and Load(ctx) for layered loading.
// - All scoring and bonus thresholds live here, not as magic numbers.
package config

import "runtime"

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory outcome event queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of recording workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the event-id idempotency cache.
	DedupeSize int `koanf:"dedupe_size"`

	// StoreDriver selects the history/ledger store: memory or sqlite.
	StoreDriver string `koanf:"store_driver"`

	// StorePath is the SQLite database path when StoreDriver is sqlite.
	StorePath string `koanf:"store_path"`

	// MaxAuditLimit caps GET /audit/{subject}?limit.
	MaxAuditLimit int `koanf:"max_audit_limit"`

	// ReliabilityWeight, QualityWeight and ExperienceWeight blend the
	// subscores into the composite. Normalized at computation time.
	ReliabilityWeight float64 `koanf:"reliability_weight"`
	QualityWeight     float64 `koanf:"quality_weight"`
	ExperienceWeight  float64 `koanf:"experience_weight"`

	// MinSamples is the resolved-event count below which reliability is
	// blended toward neutral.
	MinSamples int `koanf:"min_samples"`

	// ExperienceSaturation is the completed count at which the experience
	// subscore reaches half of its maximum.
	ExperienceSaturation float64 `koanf:"experience_saturation"`

	// TrendWindow and TrendBand tune the quality trend signal.
	TrendWindow int     `koanf:"trend_window"`
	TrendBand   float64 `koanf:"trend_band"`

	// ChangeEpsilon is the minimum composite delta that earns a ledger
	// entry. Smaller recomputations are suppressed as no-ops.
	ChangeEpsilon float64 `koanf:"change_epsilon"`

	// UnitMinutes is the credited-time threshold for one reward unit.
	UnitMinutes int `koanf:"unit_minutes"`

	// WeeklyUnitTarget is the unit count gate for the bonus.
	WeeklyUnitTarget int `koanf:"weekly_unit_target"`

	// BonusScoreFloor is the composite gate for the bonus.
	BonusScoreFloor float64 `koanf:"bonus_score_floor"`

	// BonusMissedCeiling is the maximum missed commitments for the bonus.
	BonusMissedCeiling int `koanf:"bonus_missed_ceiling"`

	// BonusRate is the earnings multiplier on qualification.
	BonusRate float64 `koanf:"bonus_rate"`

	// Quality multipliers discount or boost credited time per rating.
	PerfectMultiplier float64 `koanf:"perfect_multiplier"`
	PassMultiplier    float64 `koanf:"pass_multiplier"`
	UnratedMultiplier float64 `koanf:"unrated_multiplier"`
	MissMultiplier    float64 `koanf:"miss_multiplier"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		Addr:                 ":9090",
		QueueSize:            100_000,
		WorkerCount:          runtime.NumCPU() * 2,
		DedupeSize:           500_000,
		StoreDriver:          "memory",
		StorePath:            "merets.db",
		MaxAuditLimit:        100,
		ReliabilityWeight:    0.50,
		QualityWeight:        0.30,
		ExperienceWeight:     0.20,
		MinSamples:           3,
		ExperienceSaturation: 10,
		TrendWindow:          5,
		TrendBand:            0.5,
		ChangeEpsilon:        0.05,
		UnitMinutes:          30,
		WeeklyUnitTarget:     5,
		BonusScoreFloor:      3.5,
		BonusMissedCeiling:   1,
		BonusRate:            1.5,
		PerfectMultiplier:    1.25,
		PassMultiplier:       1.0,
		UnratedMultiplier:    1.0,
		MissMultiplier:       0.25,
	}
}
