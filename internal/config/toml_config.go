package config

import (
	"fmt"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// durations may be strings ("30s") or seconds, so they are decoded apart
// from the typed config
type tomlDurations struct {
	Semantic struct {
		Timeout interface{} `toml:"timeout"`
	} `toml:"semantic"`
	Cache struct {
		TTL interface{} `toml:"ttl"`
	} `toml:"cache"`
}

func parseTOML(content []byte) (*Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(content, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML config: %w", err)
	}

	var d tomlDurations
	if err := toml.Unmarshal(content, &d); err != nil {
		return nil, fmt.Errorf("failed to parse TOML config: %w", err)
	}
	if err := tomlDuration("semantic.timeout", d.Semantic.Timeout, &cfg.Semantic.Timeout); err != nil {
		return nil, err
	}
	if err := tomlDuration("cache.ttl", d.Cache.TTL, &cfg.Cache.TTL); err != nil {
		return nil, err
	}
	return cfg, nil
}

func tomlDuration(key string, raw interface{}, dst *time.Duration) error {
	switch v := raw.(type) {
	case nil:
		return nil
	case string:
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = d
	case int64:
		*dst = time.Duration(v) * time.Second
	case float64:
		*dst = time.Duration(v * float64(time.Second))
	default:
		return fmt.Errorf("invalid %s: unsupported type %T", key, raw)
	}
	return nil
}
