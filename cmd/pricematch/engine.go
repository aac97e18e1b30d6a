package main

import (
	"context"
	"time"

	"github.com/standardbeagle/pricematch/internal/cache"
	"github.com/standardbeagle/pricematch/internal/config"
	"github.com/standardbeagle/pricematch/internal/corrections"
	"github.com/standardbeagle/pricematch/internal/debug"
	"github.com/standardbeagle/pricematch/internal/matching"
	"github.com/standardbeagle/pricematch/internal/rerank"
	"github.com/standardbeagle/pricematch/internal/semantic"
)

// engine is everything one CLI invocation needs to resolve and learn.
type engine struct {
	cfg      *config.Config
	store    corrections.Admin
	verdicts cache.VerdictCache
	adapter  *rerank.Adapter
	resolver *matching.Resolver
}

func (e *engine) Close() error {
	if e.verdicts != nil {
		if err := e.verdicts.Close(); err != nil {
			debug.Log("cli", "closing verdict cache: %v", err)
		}
	}
	if e.store != nil {
		return e.store.Close()
	}
	return nil
}

func scoreLayers(m config.Matching) semantic.ScoreLayers {
	return semantic.ScoreLayers{
		KeywordBoost:         m.KeywordBoost,
		SubstringBonus:       m.SubstringBonus,
		QueryCoverageWeight:  m.QueryCoverageWeight,
		TargetCoverageWeight: m.TargetCoverageWeight,
		Algorithm:            m.Algorithm,
		TokenCacheSize:       m.TokenCacheSize,
	}
}

func resolverConfig(cfg *config.Config) matching.ResolverConfig {
	return matching.ResolverConfig{
		Weights:         matching.Weights{Text: cfg.Matching.TextWeight, Unit: cfg.Matching.UnitWeight},
		MaxAlternatives: cfg.Matching.Alternatives,
		AutoThreshold:   cfg.Matching.AutoThreshold,
		SemanticSkip:    cfg.Semantic.SkipThreshold,
		SemanticAccept:  cfg.Semantic.AcceptThreshold,
		LearningEnabled: cfg.Learning.Enabled,
		MinFrequency:    cfg.Learning.MinFrequency,
		SemanticEnabled: cfg.Semantic.Enabled,
		Workers:         cfg.Performance.Workers,
	}
}

// openStore opens the SQLite store at path, or an in-memory one for "" and
// ":memory:".
func openStore(ctx context.Context, path string) (corrections.Admin, error) {
	if path == "" || path == ":memory:" {
		return corrections.NewMemoryStore(nil), nil
	}
	return corrections.OpenSQLite(ctx, path)
}

// openVerdictCache returns nil when caching is off. An unreachable Redis
// falls back to the in-process cache.
func openVerdictCache(ctx context.Context, c config.Cache) cache.VerdictCache {
	if !c.Enabled {
		return nil
	}
	memory := func() cache.VerdictCache {
		return cache.NewMemoryCache(cache.MemoryConfig{
			TTL:             c.TTL,
			MaxEntries:      c.MaxEntries,
			AutoCleanup:     true,
			CleanupInterval: cache.DefaultCleanupInterval,
		})
	}
	if c.Backend != config.CacheBackendRedis {
		return memory()
	}

	rc := cache.NewRedisCache(cache.RedisConfig{
		Addr:     c.RedisAddr,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
		Prefix:   c.KeyPrefix,
		TTL:      c.TTL,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rc.Ping(pingCtx); err != nil {
		debug.Warn("CACHE", "redis at %s unavailable (%v), using memory cache", c.RedisAddr, err)
		_ = rc.Close()
		return memory()
	}
	return rc
}

// semanticService picks the OpenAI service when configured with a key and
// NullService otherwise.
func semanticService(s config.Semantic) rerank.SemanticMatchService {
	if !s.Enabled {
		return rerank.NullService{}
	}
	svc, err := rerank.NewOpenAIService(rerank.OpenAIConfig{
		APIKey:            s.APIKey(),
		BaseURL:           s.BaseURL,
		Model:             s.Model,
		MaxTokens:         s.MaxTokens,
		RequestsPerSecond: s.RequestsPerSecond,
		Burst:             s.Burst,
		MaxAttempts:       s.MaxAttempts,
	})
	if err != nil {
		debug.Log("cli", "semantic matching off: %v (set %s)", err, s.APIKeyEnv)
		return rerank.NullService{}
	}
	return svc
}

// newEngine wires config into a resolver. service overrides the configured
// semantic service when non-nil.
func newEngine(ctx context.Context, cfg *config.Config, service rerank.SemanticMatchService) (*engine, error) {
	dict, err := semantic.LoadSynonymDictionary(cfg.Synonyms.Path)
	if err != nil {
		return nil, err
	}
	scorer := semantic.NewLexicalScorer(scoreLayers(cfg.Matching), dict, nil)

	store, err := openStore(ctx, cfg.Learning.Database)
	if err != nil {
		return nil, err
	}

	e := &engine{cfg: cfg, store: store}

	var reranker matching.Reranker
	if cfg.Semantic.Enabled {
		if service == nil {
			service = semanticService(cfg.Semantic)
		}
		if _, off := service.(rerank.NullService); !off {
			e.verdicts = openVerdictCache(ctx, cfg.Cache)
			e.adapter = rerank.NewAdapter(service, e.verdicts, rerank.AdapterConfig{
				MaxCandidates:     cfg.Semantic.MaxCandidates,
				Timeout:           cfg.Semantic.Timeout,
				DefaultConfidence: 0.8,
			})
			reranker = e.adapter
		}
	}

	var learned corrections.Store
	if cfg.Learning.Enabled {
		learned = store
	}

	ranker := matching.NewRanker(scorer, matching.Weights{Text: cfg.Matching.TextWeight, Unit: cfg.Matching.UnitWeight})
	e.resolver = matching.NewResolver(resolverConfig(cfg), ranker, learned, reranker)
	return e, nil
}
