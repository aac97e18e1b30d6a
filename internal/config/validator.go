package config

import (
	"errors"
	"fmt"
	"runtime"
	"strconv"

	perrors "github.com/standardbeagle/pricematch/internal/errors"
	"github.com/standardbeagle/pricematch/internal/types"
)

// Validator validates configuration and sets smart defaults
type Validator struct{}

// NewValidator creates a new configuration validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAndSetDefaults validates configuration and applies smart defaults
func (v *Validator) ValidateAndSetDefaults(cfg *Config) error {
	if err := v.validateMatching(&cfg.Matching); err != nil {
		return err
	}
	if err := v.validateLearning(&cfg.Learning); err != nil {
		return err
	}
	if err := v.validateSemantic(&cfg.Semantic); err != nil {
		return err
	}
	if err := v.validateCache(&cfg.Cache); err != nil {
		return err
	}
	if cfg.Performance.Workers < 0 {
		return perrors.NewConfigError("performance.workers", strconv.Itoa(cfg.Performance.Workers), errors.New("cannot be negative"))
	}

	v.setSmartDefaults(cfg)
	return nil
}

func unitInterval(field string, f float64) error {
	if f < 0 || f > 1 {
		return perrors.NewConfigError(field, formatFloat(f), errors.New("must be between 0 and 1"))
	}
	return nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func (v *Validator) validateMatching(m *Matching) error {
	if m.TextWeight < 0 || m.UnitWeight < 0 {
		return perrors.NewConfigError("matching.text_weight", fmt.Sprintf("%v/%v", m.TextWeight, m.UnitWeight),
			errors.New("weights cannot be negative"))
	}
	if m.TextWeight+m.UnitWeight <= 0 {
		return perrors.NewConfigError("matching.text_weight", fmt.Sprintf("%v/%v", m.TextWeight, m.UnitWeight),
			errors.New("weights must have a positive sum"))
	}
	if m.Alternatives < 0 {
		return perrors.NewConfigError("matching.alternatives", strconv.Itoa(m.Alternatives), errors.New("cannot be negative"))
	}
	if err := unitInterval("matching.auto_threshold", m.AutoThreshold); err != nil {
		return err
	}
	if m.KeywordBoost <= 0 {
		return perrors.NewConfigError("matching.keyword_boost", formatFloat(m.KeywordBoost), errors.New("must be positive"))
	}
	if err := unitInterval("matching.substring_bonus", m.SubstringBonus); err != nil {
		return err
	}
	if m.QueryCoverageWeight < 0 || m.TargetCoverageWeight < 0 || m.QueryCoverageWeight+m.TargetCoverageWeight <= 0 {
		return perrors.NewConfigError("matching.query_coverage_weight",
			fmt.Sprintf("%v/%v", m.QueryCoverageWeight, m.TargetCoverageWeight),
			errors.New("coverage weights must be non-negative with a positive sum"))
	}
	switch m.Algorithm {
	case "", "levenshtein", "jaro-winkler":
	default:
		return perrors.NewConfigError("matching.algorithm", m.Algorithm, errors.New("unknown algorithm"))
	}
	return nil
}

func (v *Validator) validateLearning(l *Learning) error {
	if l.MinFrequency < 1 {
		return perrors.NewConfigError("learning.min_frequency", strconv.Itoa(l.MinFrequency), errors.New("must be at least 1"))
	}
	return nil
}

func (v *Validator) validateSemantic(s *Semantic) error {
	if err := unitInterval("semantic.accept_threshold", s.AcceptThreshold); err != nil {
		return err
	}
	if err := unitInterval("semantic.skip_threshold", s.SkipThreshold); err != nil {
		return err
	}
	if s.MaxCandidates < 1 || s.MaxCandidates > types.DefaultRerankCandidates {
		return perrors.NewConfigError("semantic.max_candidates", strconv.Itoa(s.MaxCandidates),
			fmt.Errorf("must be between 1 and %d", types.DefaultRerankCandidates))
	}
	if s.Timeout < 0 {
		return perrors.NewConfigError("semantic.timeout", s.Timeout.String(), errors.New("cannot be negative"))
	}
	if s.RequestsPerSecond < 0 || s.Burst < 0 || s.MaxAttempts < 0 {
		return perrors.NewConfigError("semantic.requests_per_second", formatFloat(s.RequestsPerSecond),
			errors.New("rate limits and attempts cannot be negative"))
	}
	return nil
}

func (v *Validator) validateCache(c *Cache) error {
	switch c.Backend {
	case "", CacheBackendMemory, CacheBackendRedis:
	default:
		return perrors.NewConfigError("cache.backend", c.Backend, errors.New("must be memory or redis"))
	}
	if c.TTL < 0 {
		return perrors.NewConfigError("cache.ttl", c.TTL.String(), errors.New("cannot be negative"))
	}
	if c.Backend == CacheBackendRedis && c.Enabled && c.RedisAddr == "" {
		return perrors.NewConfigError("cache.redis_addr", "", errors.New("required for the redis backend"))
	}
	return nil
}

// setSmartDefaults fills values left at zero
func (v *Validator) setSmartDefaults(cfg *Config) {
	if cfg.Performance.Workers == 0 {
		cfg.Performance.Workers = max(1, runtime.NumCPU())
	}
	if cfg.Matching.Algorithm == "" {
		cfg.Matching.Algorithm = "levenshtein"
	}
	if cfg.Matching.TokenCacheSize <= 0 {
		cfg.Matching.TokenCacheSize = 2048
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = CacheBackendMemory
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = Default().Cache.TTL
	}
	if cfg.Semantic.Timeout == 0 {
		cfg.Semantic.Timeout = Default().Semantic.Timeout
	}
}

// ValidateConfig is a convenience function for quick validation
func ValidateConfig(cfg *Config) error {
	return NewValidator().ValidateAndSetDefaults(cfg)
}
