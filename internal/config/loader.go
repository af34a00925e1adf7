package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if MERETS_CONFIG is set
//  3. env (prefix MERETS_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("MERETS_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadFile, err)
		}
	}

	// Env keys like MERETS_QUEUE_SIZE map to queue_size; underscores are
	// preserved to match the koanf tags on the struct.
	envProvider := env.Provider("MERETS_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "merets_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadEnv, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnmarshal, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.StoreDriver != "memory" && c.StoreDriver != "sqlite":
		return fmt.Errorf("%w: store_driver must be memory or sqlite, got %q", ErrInvalidConfig, c.StoreDriver)
	case c.ReliabilityWeight <= 0 || c.QualityWeight <= 0 || c.ExperienceWeight <= 0:
		return fmt.Errorf("%w: score weights must be positive", ErrInvalidConfig)
	case c.ReliabilityWeight < c.QualityWeight || c.QualityWeight < c.ExperienceWeight:
		// Consistency matters most for a recoverable trust score.
		return fmt.Errorf("%w: weights must satisfy reliability >= quality >= experience", ErrInvalidConfig)
	case c.ChangeEpsilon < 0:
		return fmt.Errorf("%w: change_epsilon must not be negative", ErrInvalidConfig)
	case c.UnitMinutes <= 0:
		return fmt.Errorf("%w: unit_minutes must be positive", ErrInvalidConfig)
	case c.MaxAuditLimit <= 0:
		return fmt.Errorf("%w: max_audit_limit must be positive", ErrInvalidConfig)
	}
	return nil
}
