package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// ToKDL renders cfg in the .pricematch.kdl layout read by Load.
func ToKDL(cfg *Config) string {
	var b strings.Builder
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

	fmt.Fprintf(&b, "version %d\n\n", cfg.Version)

	m := cfg.Matching
	b.WriteString("matching {\n")
	fmt.Fprintf(&b, "    text_weight %s\n", f(m.TextWeight))
	fmt.Fprintf(&b, "    unit_weight %s\n", f(m.UnitWeight))
	fmt.Fprintf(&b, "    alternatives %d\n", m.Alternatives)
	fmt.Fprintf(&b, "    auto_threshold %s\n", f(m.AutoThreshold))
	fmt.Fprintf(&b, "    keyword_boost %s\n", f(m.KeywordBoost))
	fmt.Fprintf(&b, "    substring_bonus %s\n", f(m.SubstringBonus))
	fmt.Fprintf(&b, "    query_coverage_weight %s\n", f(m.QueryCoverageWeight))
	fmt.Fprintf(&b, "    target_coverage_weight %s\n", f(m.TargetCoverageWeight))
	fmt.Fprintf(&b, "    token_cache_size %d\n", m.TokenCacheSize)
	fmt.Fprintf(&b, "    algorithm %q\n", m.Algorithm)
	b.WriteString("}\n\n")

	l := cfg.Learning
	b.WriteString("learning {\n")
	fmt.Fprintf(&b, "    enabled %t\n", l.Enabled)
	fmt.Fprintf(&b, "    min_frequency %d\n", l.MinFrequency)
	fmt.Fprintf(&b, "    database %q\n", l.Database)
	b.WriteString("}\n\n")

	s := cfg.Semantic
	b.WriteString("semantic {\n")
	fmt.Fprintf(&b, "    enabled %t\n", s.Enabled)
	fmt.Fprintf(&b, "    model %q\n", s.Model)
	if s.BaseURL != "" {
		fmt.Fprintf(&b, "    base_url %q\n", s.BaseURL)
	}
	fmt.Fprintf(&b, "    api_key_env %q\n", s.APIKeyEnv)
	fmt.Fprintf(&b, "    timeout %q\n", s.Timeout.String())
	fmt.Fprintf(&b, "    accept_threshold %s\n", f(s.AcceptThreshold))
	fmt.Fprintf(&b, "    skip_threshold %s\n", f(s.SkipThreshold))
	fmt.Fprintf(&b, "    max_candidates %d\n", s.MaxCandidates)
	fmt.Fprintf(&b, "    max_tokens %d\n", s.MaxTokens)
	fmt.Fprintf(&b, "    requests_per_second %s\n", f(s.RequestsPerSecond))
	fmt.Fprintf(&b, "    burst %d\n", s.Burst)
	fmt.Fprintf(&b, "    max_attempts %d\n", s.MaxAttempts)
	b.WriteString("}\n\n")

	c := cfg.Cache
	b.WriteString("cache {\n")
	fmt.Fprintf(&b, "    enabled %t\n", c.Enabled)
	fmt.Fprintf(&b, "    backend %q\n", c.Backend)
	fmt.Fprintf(&b, "    ttl %q\n", c.TTL.String())
	fmt.Fprintf(&b, "    max_entries %d\n", c.MaxEntries)
	fmt.Fprintf(&b, "    redis_addr %q\n", c.RedisAddr)
	fmt.Fprintf(&b, "    redis_db %d\n", c.RedisDB)
	fmt.Fprintf(&b, "    key_prefix %q\n", c.KeyPrefix)
	b.WriteString("}\n\n")

	b.WriteString("performance {\n")
	fmt.Fprintf(&b, "    workers %d\n", cfg.Performance.Workers)
	b.WriteString("}\n")

	if cfg.Synonyms.Path != "" {
		fmt.Fprintf(&b, "\nsynonyms %q\n", cfg.Synonyms.Path)
	}
	return b.String()
}

// ToTOML renders cfg as TOML. Durations are written as strings. The Redis
// password is never written.
func ToTOML(cfg *Config) ([]byte, error) {
	raw, err := toml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var doc map[string]interface{}
	if err := toml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if s, ok := doc["semantic"].(map[string]interface{}); ok {
		s["timeout"] = cfg.Semantic.Timeout.String()
	}
	if c, ok := doc["cache"].(map[string]interface{}); ok {
		c["ttl"] = cfg.Cache.TTL.String()
		delete(c, "redis_password")
	}
	return toml.Marshal(doc)
}
