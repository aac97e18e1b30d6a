package rerank

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/standardbeagle/pricematch/internal/cache"
	"github.com/standardbeagle/pricematch/internal/debug"
	perrors "github.com/standardbeagle/pricematch/internal/errors"
	"github.com/standardbeagle/pricematch/internal/types"
)

// AdapterConfig configures the reranker adapter
type AdapterConfig struct {
	MaxCandidates     int           // at most 10
	Timeout           time.Duration // per external call
	DefaultConfidence float64       // when the reply omits one
}

// DefaultAdapterConfig returns the defaults
func DefaultAdapterConfig() AdapterConfig {
	return AdapterConfig{
		MaxCandidates:     types.DefaultRerankCandidates,
		Timeout:           30 * time.Second,
		DefaultConfidence: types.DefaultVerdictConfidence,
	}
}

// Adapter turns a SemanticMatchService into a failure-safe reranker with
// caching and request coalescing. Safe for concurrent use.
type Adapter struct {
	service SemanticMatchService
	cache   cache.VerdictCache
	cfg     AdapterConfig
	group   singleflight.Group

	calls     int64
	cacheHits int64
	verdicts  int64

	mu       sync.Mutex
	failures map[perrors.RerankErrorKind]int64
}

// AdapterStats counts adapter activity
type AdapterStats struct {
	Calls     int64                             `json:"calls"`
	CacheHits int64                             `json:"cache_hits"`
	Verdicts  int64                             `json:"verdicts"`
	Failures  map[perrors.RerankErrorKind]int64 `json:"failures"`
}

// NewAdapter creates an adapter. A nil service behaves like NullService and
// a nil cache disables caching.
func NewAdapter(service SemanticMatchService, verdicts cache.VerdictCache, cfg AdapterConfig) *Adapter {
	if service == nil {
		service = NullService{}
	}
	def := DefaultAdapterConfig()
	if cfg.MaxCandidates <= 0 || cfg.MaxCandidates > types.DefaultRerankCandidates {
		cfg.MaxCandidates = def.MaxCandidates
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.DefaultConfidence <= 0 || cfg.DefaultConfidence > 1 {
		cfg.DefaultConfidence = def.DefaultConfidence
	}
	return &Adapter{
		service:  service,
		cache:    verdicts,
		cfg:      cfg,
		failures: make(map[perrors.RerankErrorKind]int64),
	}
}

// Enabled reports whether the adapter can ever return a verdict
func (a *Adapter) Enabled() bool {
	_, isNull := a.service.(NullService)
	return !isNull
}

// MaxCandidates returns how many candidates are sent per call
func (a *Adapter) MaxCandidates() int {
	return a.cfg.MaxCandidates
}

// Rerank asks the service to choose among candidates. It returns the
// verdict and true, or nil and false for "no opinion". It never panics and
// never returns an error: failures are logged and counted.
func (a *Adapter) Rerank(ctx context.Context, item types.WorkItem, candidates []types.MatchCandidate) (*types.Verdict, bool) {
	if len(candidates) == 0 {
		return nil, false
	}
	if len(candidates) > a.cfg.MaxCandidates {
		candidates = candidates[:a.cfg.MaxCandidates]
	}

	req := NewRequest(item, candidates)
	key := req.Key()

	if v, ok := a.cached(ctx, key, len(candidates)); ok {
		atomic.AddInt64(&a.cacheHits, 1)
		return &v, true
	}

	// the shared call outlives any one caller; each caller waits on its own ctx
	callCtx := context.WithoutCancel(ctx)
	ch := a.group.DoChan(key, func() (interface{}, error) {
		return a.call(callCtx, req)
	})

	var (
		res    interface{}
		err    error
		shared bool
	)
	select {
	case r := <-ch:
		res, err, shared = r.Val, r.Err, r.Shared
	case <-ctx.Done():
		err = perrors.NewRerankError(perrors.RerankTimeout, ctx.Err())
	}
	if err != nil {
		a.recordFailure(err)
		debug.Warn("RERANK", "no opinion for %q: %v", item.Description, err)
		return nil, false
	}

	v := res.(types.Verdict)
	atomic.AddInt64(&a.verdicts, 1)
	debug.LogRerank("%q -> %s (%.2f, shared=%t)", item.Description, candidates[v.Index].Entry.Code, v.Confidence, shared)
	return &v, true
}

func (a *Adapter) cached(ctx context.Context, key string, n int) (types.Verdict, bool) {
	if a.cache == nil {
		return types.Verdict{}, false
	}
	v, ok, err := a.cache.Get(ctx, key)
	if err != nil {
		debug.Warn("RERANK", "verdict cache get failed: %v", err)
		return types.Verdict{}, false
	}
	if !ok || v.Index < 0 || v.Index >= n {
		return types.Verdict{}, false
	}
	return v, true
}

func (a *Adapter) call(ctx context.Context, req *Request) (verdict interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = perrors.NewRerankError(perrors.RerankTransport, fmt.Errorf("panic in semantic service: %v", r))
		}
	}()

	atomic.AddInt64(&a.calls, 1)
	callCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	reply, err := a.service.Match(callCtx, req)
	if err != nil {
		return nil, classify(err)
	}

	v, err := ParseVerdict(reply, len(req.Candidates), a.cfg.DefaultConfidence)
	if err != nil {
		return nil, err
	}

	if a.cache != nil {
		if err := a.cache.Set(ctx, req.Key(), v); err != nil {
			debug.Warn("RERANK", "verdict cache set failed: %v", err)
		}
	}
	return v, nil
}

func classify(err error) error {
	var rerr *perrors.RerankError
	switch {
	case errors.As(err, &rerr):
		return rerr
	case errors.Is(err, ErrServiceUnavailable):
		return perrors.NewRerankError(perrors.RerankUnavailable, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return perrors.NewRerankError(perrors.RerankTimeout, err)
	default:
		return perrors.NewRerankError(perrors.RerankTransport, err)
	}
}

func (a *Adapter) recordFailure(err error) {
	kind := perrors.RerankTransport
	var rerr *perrors.RerankError
	if errors.As(err, &rerr) {
		kind = rerr.Kind
	}
	a.mu.Lock()
	a.failures[kind]++
	a.mu.Unlock()
}

// Stats returns a snapshot of the adapter counters
func (a *Adapter) Stats() AdapterStats {
	a.mu.Lock()
	failures := make(map[perrors.RerankErrorKind]int64, len(a.failures))
	for k, v := range a.failures {
		failures[k] = v
	}
	a.mu.Unlock()

	return AdapterStats{
		Calls:     atomic.LoadInt64(&a.calls),
		CacheHits: atomic.LoadInt64(&a.cacheHits),
		Verdicts:  atomic.LoadInt64(&a.verdicts),
		Failures:  failures,
	}
}
