package config

import (
	"fmt"
	"strings"
	"time"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"

	"github.com/standardbeagle/pricematch/internal/debug"
)

// parseKDL reads a .pricematch.kdl document over the defaults:
//
//	matching { text_weight 0.7; alternatives 4; }
//	semantic { enabled true; timeout "30s"; }
//	cache { backend "redis"; redis_addr "localhost:6379"; }
func parseKDL(content string) (*Config, error) {
	cfg := Default()

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse KDL config: %w", err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "version":
			if v, ok := firstIntArg(n); ok {
				cfg.Version = v
			}
		case "matching":
			for _, cn := range n.Children {
				m := &cfg.Matching
				switch nodeName(cn) {
				case "text_weight":
					assignFloat(cn, &m.TextWeight)
				case "unit_weight":
					assignFloat(cn, &m.UnitWeight)
				case "alternatives":
					assignInt(cn, &m.Alternatives)
				case "auto_threshold":
					assignFloat(cn, &m.AutoThreshold)
				case "keyword_boost":
					assignFloat(cn, &m.KeywordBoost)
				case "substring_bonus":
					assignFloat(cn, &m.SubstringBonus)
				case "query_coverage_weight":
					assignFloat(cn, &m.QueryCoverageWeight)
				case "target_coverage_weight":
					assignFloat(cn, &m.TargetCoverageWeight)
				case "token_cache_size":
					assignInt(cn, &m.TokenCacheSize)
				case "algorithm":
					assignString(cn, &m.Algorithm)
				}
			}
		case "learning":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "enabled":
					assignBool(cn, &cfg.Learning.Enabled)
				case "min_frequency":
					assignInt(cn, &cfg.Learning.MinFrequency)
				case "database":
					assignString(cn, &cfg.Learning.Database)
				}
			}
		case "semantic":
			for _, cn := range n.Children {
				s := &cfg.Semantic
				switch nodeName(cn) {
				case "enabled":
					assignBool(cn, &s.Enabled)
				case "model":
					assignString(cn, &s.Model)
				case "base_url":
					assignString(cn, &s.BaseURL)
				case "api_key_env":
					assignString(cn, &s.APIKeyEnv)
				case "timeout":
					if err := assignDuration(cn, &s.Timeout); err != nil {
						return nil, err
					}
				case "accept_threshold":
					assignFloat(cn, &s.AcceptThreshold)
				case "skip_threshold":
					assignFloat(cn, &s.SkipThreshold)
				case "max_candidates":
					assignInt(cn, &s.MaxCandidates)
				case "max_tokens":
					assignInt(cn, &s.MaxTokens)
				case "requests_per_second":
					assignFloat(cn, &s.RequestsPerSecond)
				case "burst":
					assignInt(cn, &s.Burst)
				case "max_attempts":
					assignInt(cn, &s.MaxAttempts)
				}
			}
		case "cache":
			for _, cn := range n.Children {
				c := &cfg.Cache
				switch nodeName(cn) {
				case "enabled":
					assignBool(cn, &c.Enabled)
				case "backend":
					assignString(cn, &c.Backend)
				case "ttl":
					if err := assignDuration(cn, &c.TTL); err != nil {
						return nil, err
					}
				case "max_entries":
					assignInt(cn, &c.MaxEntries)
				case "redis_addr":
					assignString(cn, &c.RedisAddr)
				case "redis_password":
					assignString(cn, &c.RedisPassword)
				case "redis_db":
					assignInt(cn, &c.RedisDB)
				case "key_prefix":
					assignString(cn, &c.KeyPrefix)
				}
			}
		case "performance":
			for _, cn := range n.Children {
				if nodeName(cn) == "workers" {
					assignInt(cn, &cfg.Performance.Workers)
				}
			}
		case "synonyms":
			// synonyms "path.kdl" or synonyms { path "path.kdl"; }
			assignString(n, &cfg.Synonyms.Path)
			for _, cn := range n.Children {
				if nodeName(cn) == "path" {
					assignString(cn, &cfg.Synonyms.Path)
				}
			}
		default:
			debug.Log("config", "ignoring unknown KDL node %q", nodeName(n))
		}
	}

	return cfg, nil
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

func firstFloatArg(n *document.Node) (float64, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	default:
		debug.Log("config", "invalid float value for %q, expected number but got %T", nodeName(n), n.Arguments[0].Value)
		return 0, false
	}
}

func assignInt(n *document.Node, dst *int) {
	if v, ok := firstIntArg(n); ok {
		*dst = v
	}
}

func assignFloat(n *document.Node, dst *float64) {
	if v, ok := firstFloatArg(n); ok {
		*dst = v
	}
}

func assignBool(n *document.Node, dst *bool) {
	if v, ok := firstBoolArg(n); ok {
		*dst = v
	}
}

func assignString(n *document.Node, dst *string) {
	if v, ok := firstStringArg(n); ok {
		*dst = v
	}
}

// assignDuration accepts "30s"-style strings or a number of seconds.
func assignDuration(n *document.Node, dst *time.Duration) error {
	if s, ok := firstStringArg(n); ok {
		d, err := parseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration for %q: %w", nodeName(n), err)
		}
		*dst = d
		return nil
	}
	if f, ok := firstFloatArg(n); ok {
		*dst = time.Duration(f * float64(time.Second))
	}
	return nil
}
