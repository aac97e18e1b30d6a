package rerank

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/pricematch/internal/cache"
	"github.com/standardbeagle/pricematch/internal/debug"
	perrors "github.com/standardbeagle/pricematch/internal/errors"
	"github.com/standardbeagle/pricematch/internal/types"
)

func newTestCache(t *testing.T) *cache.MemoryCache {
	t.Helper()
	mc := cache.NewMemoryCache(cache.MemoryConfig{TTL: time.Hour, MaxEntries: 100})
	t.Cleanup(func() { _ = mc.Close() })
	return mc
}

func replyService(reply string, calls *int64) ServiceFunc {
	return func(ctx context.Context, req *Request) (string, error) {
		atomic.AddInt64(calls, 1)
		return reply, nil
	}
}

var wallpaper = types.WorkItem{Description: "behang verwijderen", Quantity: 30, Unit: "m2"}

func TestAdapter_Verdict(t *testing.T) {
	var calls int64
	a := NewAdapter(replyService(`{"best_match_index": 2, "confidence": 0.85, "reasoning": "ok"}`, &calls), nil, AdapterConfig{})

	v, ok := a.Rerank(context.Background(), wallpaper, testCandidates("A", "B", "C"))
	require.True(t, ok)
	assert.Equal(t, 1, v.Index)
	assert.InDelta(t, 0.85, v.Confidence, 1e-9)
	assert.Equal(t, "ok", v.Rationale)
	assert.True(t, a.Enabled())

	stats := a.Stats()
	assert.Equal(t, int64(1), stats.Calls)
	assert.Equal(t, int64(1), stats.Verdicts)
}

func TestAdapter_NoCandidates(t *testing.T) {
	var calls int64
	a := NewAdapter(replyService(`{"best_match_index": 1}`, &calls), nil, AdapterConfig{})

	v, ok := a.Rerank(context.Background(), wallpaper, nil)
	assert.False(t, ok)
	assert.Nil(t, v)
	assert.Zero(t, atomic.LoadInt64(&calls))
}

func TestAdapter_NullService(t *testing.T) {
	a := NewAdapter(nil, nil, AdapterConfig{})
	assert.False(t, a.Enabled())

	v, ok := a.Rerank(context.Background(), wallpaper, testCandidates("A"))
	assert.False(t, ok)
	assert.Nil(t, v)
	assert.Equal(t, int64(1), a.Stats().Failures[perrors.RerankUnavailable])
}

func TestAdapter_FailuresDegradeToNoOpinion(t *testing.T) {
	tests := []struct {
		name    string
		service ServiceFunc
		kind    perrors.RerankErrorKind
	}{
		{
			name: "transport error",
			service: func(context.Context, *Request) (string, error) {
				return "", errors.New("connection reset")
			},
			kind: perrors.RerankTransport,
		},
		{
			name: "malformed reply",
			service: func(context.Context, *Request) (string, error) {
				return "geen idee", nil
			},
			kind: perrors.RerankMalformed,
		},
		{
			name: "index out of range",
			service: func(context.Context, *Request) (string, error) {
				return `{"best_match_index": 7}`, nil
			},
			kind: perrors.RerankOutOfRange,
		},
		{
			name: "panic",
			service: func(context.Context, *Request) (string, error) {
				panic("boom")
			},
			kind: perrors.RerankTransport,
		},
		{
			name: "unavailable",
			service: func(context.Context, *Request) (string, error) {
				return "", ErrServiceUnavailable
			},
			kind: perrors.RerankUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAdapter(tt.service, nil, AdapterConfig{})
			v, ok := a.Rerank(context.Background(), wallpaper, testCandidates("A", "B"))
			assert.False(t, ok)
			assert.Nil(t, v)
			assert.Equal(t, int64(1), a.Stats().Failures[tt.kind])
		})
	}
}

func TestAdapter_Timeout(t *testing.T) {
	slow := ServiceFunc(func(ctx context.Context, _ *Request) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	a := NewAdapter(slow, nil, AdapterConfig{Timeout: 20 * time.Millisecond})

	start := time.Now()
	_, ok := a.Rerank(context.Background(), wallpaper, testCandidates("A"))
	assert.False(t, ok)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, int64(1), a.Stats().Failures[perrors.RerankTimeout])
}

func TestAdapter_TruncatesCandidates(t *testing.T) {
	var seen int
	svc := ServiceFunc(func(_ context.Context, req *Request) (string, error) {
		seen = len(req.Candidates)
		return `{"best_match_index": 3}`, nil
	})
	a := NewAdapter(svc, nil, AdapterConfig{MaxCandidates: 3})
	assert.Equal(t, 3, a.MaxCandidates())

	v, ok := a.Rerank(context.Background(), wallpaper, testCandidates("A", "B", "C", "D", "E"))
	require.True(t, ok)
	assert.Equal(t, 3, seen)
	assert.Equal(t, 2, v.Index)
}

func TestAdapter_MaxCandidatesCapped(t *testing.T) {
	a := NewAdapter(nil, nil, AdapterConfig{MaxCandidates: 25})
	assert.Equal(t, types.DefaultRerankCandidates, a.MaxCandidates())
}

func TestAdapter_CachesValidVerdicts(t *testing.T) {
	var calls int64
	verdicts := newTestCache(t)
	a := NewAdapter(replyService(`{"best_match_index": 1, "confidence": 0.9}`, &calls), verdicts, AdapterConfig{})

	cands := testCandidates("A", "B")
	_, ok := a.Rerank(context.Background(), wallpaper, cands)
	require.True(t, ok)
	v, ok := a.Rerank(context.Background(), types.WorkItem{Description: "Behang verwijderen.", Unit: "M2"}, cands)
	require.True(t, ok)

	assert.Equal(t, 0, v.Index)
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))
	assert.Equal(t, int64(1), a.Stats().CacheHits)
}

func TestAdapter_DoesNotCacheFailures(t *testing.T) {
	var calls int64
	verdicts := newTestCache(t)
	a := NewAdapter(replyService(`{"confidence": 0.9}`, &calls), verdicts, AdapterConfig{})

	cands := testCandidates("A", "B")
	_, ok := a.Rerank(context.Background(), wallpaper, cands)
	require.False(t, ok)
	_, ok = a.Rerank(context.Background(), wallpaper, cands)
	require.False(t, ok)

	assert.Equal(t, int64(2), atomic.LoadInt64(&calls))
	assert.Zero(t, verdicts.Stats().Entries)
}

func TestAdapter_IgnoresStaleCachedIndex(t *testing.T) {
	var calls int64
	verdicts := newTestCache(t)
	cands := testCandidates("A", "B")
	req := NewRequest(wallpaper, cands)
	require.NoError(t, verdicts.Set(context.Background(), req.Key(), types.Verdict{Index: 5, Confidence: 1}))

	a := NewAdapter(replyService(`{"best_match_index": 2}`, &calls), verdicts, AdapterConfig{})
	v, ok := a.Rerank(context.Background(), wallpaper, cands)
	require.True(t, ok)
	assert.Equal(t, 1, v.Index)
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))
}

func TestAdapter_CoalescesConcurrentRequests(t *testing.T) {
	var calls int64
	release := make(chan struct{})
	svc := ServiceFunc(func(ctx context.Context, _ *Request) (string, error) {
		atomic.AddInt64(&calls, 1)
		<-release
		return `{"best_match_index": 1, "confidence": 0.9}`, nil
	})
	a := NewAdapter(svc, newTestCache(t), AdapterConfig{})
	cands := testCandidates("A", "B")

	const workers = 8
	var wg sync.WaitGroup
	var verdicts int64
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := a.Rerank(context.Background(), wallpaper, cands); ok {
				atomic.AddInt64(&verdicts, 1)
			}
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	// late callers either join the in-flight call or hit the cache
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))
	assert.Equal(t, int64(workers), atomic.LoadInt64(&verdicts))
}

func TestAdapter_CancelledCallerDoesNotDegradeOthers(t *testing.T) {
	var calls int64
	started := make(chan struct{})
	release := make(chan struct{})
	svc := ServiceFunc(func(ctx context.Context, _ *Request) (string, error) {
		if atomic.AddInt64(&calls, 1) == 1 {
			close(started)
		}
		select {
		case <-release:
			return `{"best_match_index": 2, "confidence": 0.9}`, nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})
	a := NewAdapter(svc, newTestCache(t), AdapterConfig{Timeout: 5 * time.Second})
	cands := testCandidates("A", "B")

	firstCtx, cancel := context.WithCancel(context.Background())
	firstDone := make(chan bool)
	go func() {
		_, ok := a.Rerank(firstCtx, wallpaper, cands)
		firstDone <- ok
	}()

	<-started
	cancel()
	assert.False(t, <-firstDone, "cancelled caller gets no opinion")

	secondDone := make(chan *types.Verdict)
	go func() {
		v, _ := a.Rerank(context.Background(), wallpaper, cands)
		secondDone <- v
	}()

	time.Sleep(20 * time.Millisecond)
	close(release)

	v := <-secondDone
	require.NotNil(t, v, "in-flight call survives the first caller's cancellation")
	assert.Equal(t, 1, v.Index)
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))
	assert.Equal(t, int64(1), a.Stats().Failures[perrors.RerankTimeout])
}

func TestAdapter_DegradationWarnsWithoutDebugMode(t *testing.T) {
	t.Setenv("DEBUG", "")
	t.Setenv("PRICEMATCH_DEBUG", "")
	var buf bytes.Buffer
	debug.SetDebugOutput(&buf)
	t.Cleanup(func() { debug.SetDebugOutput(nil) })

	failing := ServiceFunc(func(context.Context, *Request) (string, error) {
		return "", errors.New("connection reset")
	})
	a := NewAdapter(failing, nil, AdapterConfig{})

	_, ok := a.Rerank(context.Background(), wallpaper, testCandidates("A", "B"))
	assert.False(t, ok)
	assert.Contains(t, buf.String(), "[WARN:RERANK] no opinion for \"behang verwijderen\"")
}
