// Package config loads pricematch settings from .pricematch.kdl or a TOML
// file, with PRICEMATCH_* environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	perrors "github.com/standardbeagle/pricematch/internal/errors"
	"github.com/standardbeagle/pricematch/internal/types"
)

// DefaultConfigFile is looked up in the working directory by the CLI.
const DefaultConfigFile = ".pricematch.kdl"

// Cache backends
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

type Config struct {
	Version     int         `toml:"version"`
	Matching    Matching    `toml:"matching"`
	Learning    Learning    `toml:"learning"`
	Semantic    Semantic    `toml:"semantic"`
	Cache       Cache       `toml:"cache"`
	Performance Performance `toml:"performance"`
	Synonyms    Synonyms    `toml:"synonyms"`
}

// Matching holds the lexical scoring and ranking constants.
type Matching struct {
	TextWeight           float64 `toml:"text_weight"`
	UnitWeight           float64 `toml:"unit_weight"`
	Alternatives         int     `toml:"alternatives"`
	AutoThreshold        float64 `toml:"auto_threshold"` // status auto at or above
	KeywordBoost         float64 `toml:"keyword_boost"`
	SubstringBonus       float64 `toml:"substring_bonus"`
	QueryCoverageWeight  float64 `toml:"query_coverage_weight"`
	TargetCoverageWeight float64 `toml:"target_coverage_weight"`
	TokenCacheSize       int     `toml:"token_cache_size"`
	Algorithm            string  `toml:"algorithm"` // levenshtein | jaro-winkler
}

type Learning struct {
	Enabled      bool   `toml:"enabled"`
	MinFrequency int    `toml:"min_frequency"`
	Database     string `toml:"database"` // empty = in-memory store
}

type Semantic struct {
	Enabled           bool          `toml:"enabled"`
	Model             string        `toml:"model"`
	BaseURL           string        `toml:"base_url"`
	APIKeyEnv         string        `toml:"api_key_env"`
	Timeout           time.Duration `toml:"-"`
	AcceptThreshold   float64       `toml:"accept_threshold"`
	SkipThreshold     float64       `toml:"skip_threshold"`
	MaxCandidates     int           `toml:"max_candidates"`
	MaxTokens         int           `toml:"max_tokens"`
	RequestsPerSecond float64       `toml:"requests_per_second"`
	Burst             int           `toml:"burst"`
	MaxAttempts       int           `toml:"max_attempts"`
}

// APIKey reads the key from the configured environment variable.
func (s Semantic) APIKey() string {
	if s.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(s.APIKeyEnv)
}

// Available reports whether the semantic stage is enabled and has a key.
func (s Semantic) Available() bool {
	return s.Enabled && s.APIKey() != ""
}

type Cache struct {
	Enabled       bool          `toml:"enabled"`
	Backend       string        `toml:"backend"`
	TTL           time.Duration `toml:"-"`
	MaxEntries    int           `toml:"max_entries"`
	RedisAddr     string        `toml:"redis_addr"`
	RedisPassword string        `toml:"redis_password"`
	RedisDB       int           `toml:"redis_db"`
	KeyPrefix     string        `toml:"key_prefix"`
}

type Performance struct {
	Workers int `toml:"workers"` // 0 = NumCPU
}

type Synonyms struct {
	Path string `toml:"path"` // extra concepts, KDL
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version: 1,
		Matching: Matching{
			TextWeight:           types.DefaultTextWeight,
			UnitWeight:           types.DefaultUnitWeight,
			Alternatives:         types.DefaultMaxAlternatives,
			AutoThreshold:        types.DefaultAutoThreshold,
			KeywordBoost:         1.2,
			SubstringBonus:       0.15,
			QueryCoverageWeight:  0.7,
			TargetCoverageWeight: 0.3,
			TokenCacheSize:       2048,
			Algorithm:            "levenshtein",
		},
		Learning: Learning{
			Enabled:      true,
			MinFrequency: types.DefaultMinCorrectionFreq,
			Database:     "pricematch.db",
		},
		Semantic: Semantic{
			Enabled:           true,
			Model:             "gpt-4o-mini",
			APIKeyEnv:         "OPENAI_API_KEY",
			Timeout:           30 * time.Second,
			AcceptThreshold:   types.DefaultSemanticAccept,
			SkipThreshold:     types.DefaultSemanticSkip,
			MaxCandidates:     types.DefaultRerankCandidates,
			MaxTokens:         500,
			RequestsPerSecond: 3,
			Burst:             5,
			MaxAttempts:       3,
		},
		Cache: Cache{
			Enabled:    true,
			Backend:    CacheBackendMemory,
			TTL:        24 * time.Hour,
			MaxEntries: 10000,
			RedisAddr:  "localhost:6379",
			KeyPrefix:  "pricematch:verdict:",
		},
	}
}

// Load reads path (.kdl or .toml), applies PRICEMATCH_* environment
// overrides and validates the result. An empty path or a missing file
// yields the defaults. Relative file paths inside the config resolve
// against the config file's directory.
func Load(path string) (*Config, error) {
	cfg, err := loadFile(path)
	if err != nil {
		return nil, err
	}
	if err := ApplyEnv(cfg, os.Getenv); err != nil {
		return nil, err
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var cfg *Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		cfg, err = parseTOML(content)
	default:
		cfg, err = parseKDL(string(content))
	}
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	cfg.Learning.Database = resolvePath(dir, cfg.Learning.Database)
	cfg.Synonyms.Path = resolvePath(dir, cfg.Synonyms.Path)
	return cfg, nil
}

func resolvePath(dir, p string) string {
	if p == "" || p == ":memory:" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(dir, p))
}

// ApplyEnv overrides cfg from PRICEMATCH_* variables looked up with getenv.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	var firstErr error
	set := func(name string, apply func(string) error) {
		v := strings.TrimSpace(getenv(name))
		if v == "" || firstErr != nil {
			return
		}
		if err := apply(v); err != nil {
			firstErr = fmt.Errorf("%s=%q: %w", name, v, err)
		}
	}
	boolVar := func(dst *bool) func(string) error {
		return func(v string) error {
			b, err := strconv.ParseBool(v)
			*dst = b
			return err
		}
	}
	floatVar := func(dst *float64) func(string) error {
		return func(v string) error {
			f, err := strconv.ParseFloat(v, 64)
			*dst = f
			return err
		}
	}
	intVar := func(dst *int) func(string) error {
		return func(v string) error {
			n, err := strconv.Atoi(v)
			*dst = n
			return err
		}
	}
	durationVar := func(dst *time.Duration) func(string) error {
		return func(v string) error {
			d, err := parseDuration(v)
			*dst = d
			return err
		}
	}
	stringVar := func(dst *string) func(string) error {
		return func(v string) error {
			*dst = v
			return nil
		}
	}

	set("PRICEMATCH_TEXT_WEIGHT", floatVar(&cfg.Matching.TextWeight))
	set("PRICEMATCH_UNIT_WEIGHT", floatVar(&cfg.Matching.UnitWeight))
	set("PRICEMATCH_AUTO_THRESHOLD", floatVar(&cfg.Matching.AutoThreshold))
	set("PRICEMATCH_LEARNING_ENABLED", boolVar(&cfg.Learning.Enabled))
	set("PRICEMATCH_MIN_FREQUENCY", intVar(&cfg.Learning.MinFrequency))
	set("PRICEMATCH_DB", stringVar(&cfg.Learning.Database))
	set("PRICEMATCH_SEMANTIC_ENABLED", boolVar(&cfg.Semantic.Enabled))
	set("PRICEMATCH_SEMANTIC_MODEL", stringVar(&cfg.Semantic.Model))
	set("PRICEMATCH_SEMANTIC_BASE_URL", stringVar(&cfg.Semantic.BaseURL))
	set("PRICEMATCH_ACCEPT_THRESHOLD", floatVar(&cfg.Semantic.AcceptThreshold))
	set("PRICEMATCH_MAX_CANDIDATES", intVar(&cfg.Semantic.MaxCandidates))
	set("PRICEMATCH_SEMANTIC_TIMEOUT", durationVar(&cfg.Semantic.Timeout))
	set("PRICEMATCH_CACHE_ENABLED", boolVar(&cfg.Cache.Enabled))
	set("PRICEMATCH_CACHE_BACKEND", stringVar(&cfg.Cache.Backend))
	set("PRICEMATCH_CACHE_TTL", durationVar(&cfg.Cache.TTL))
	set("PRICEMATCH_REDIS_ADDR", stringVar(&cfg.Cache.RedisAddr))
	set("PRICEMATCH_WORKERS", intVar(&cfg.Performance.Workers))

	if firstErr != nil {
		return perrors.NewConfigError("env", "", firstErr)
	}
	return nil
}

// parseDuration accepts Go durations ("30s", "24h") and bare seconds.
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(n * float64(time.Second)), nil
	}
	return time.ParseDuration(s)
}
