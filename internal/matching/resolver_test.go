package matching

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/pricematch/internal/corrections"
	perrors "github.com/standardbeagle/pricematch/internal/errors"
	"github.com/standardbeagle/pricematch/internal/rerank"
	"github.com/standardbeagle/pricematch/internal/types"
)

func newTestResolver(store corrections.Store, reranker Reranker, workers int) *Resolver {
	cfg := DefaultResolverConfig()
	cfg.Workers = workers
	return NewResolver(cfg, nil, store, reranker)
}

func TestResolve_OneRecordPerItemInOrder(t *testing.T) {
	r := newTestResolver(nil, nil, 4)
	records, err := r.Resolve(context.Background(), testSurvey(), testCatalog())
	require.NoError(t, err)
	require.Len(t, records, 5)

	want := []struct{ room, desc, code string }{
		{"Woonkamer", "behang verwijderen", "B100"},
		{"Woonkamer", "plafond witten", "B300"},
		{"Slaapkamer", "radiator demonteren", "B200"},
		{"Slaapkamer", "kozijn schilderen", "B400"},
		{"Slaapkamer", "laminaat leggen", "B600"},
	}
	ids := make(map[string]bool)
	for i, w := range want {
		rec := records[i]
		assert.Equal(t, w.room, rec.Room)
		assert.Equal(t, w.desc, rec.Item.Description)
		assert.Equal(t, w.code, rec.Match.Code, "item %q", w.desc)
		assert.Equal(t, types.MatchTypeLexical, rec.MatchType)
		assert.LessOrEqual(t, len(rec.Alternatives), types.DefaultMaxAlternatives)
		for _, alt := range rec.Alternatives {
			assert.NotEqual(t, rec.Match.Code, alt.Code)
		}

		_, err := uuid.Parse(rec.ID)
		assert.NoError(t, err)
		assert.False(t, ids[rec.ID], "ids are unique")
		ids[rec.ID] = true
	}
}

func TestResolve_WallpaperIsAuto(t *testing.T) {
	r := newTestResolver(nil, nil, 1)
	survey := types.Survey{Rooms: []types.Room{{Name: "Hal", Items: []types.WorkItem{{Description: "behang verwijderen", Quantity: 10, Unit: "m2"}}}}}

	records, err := r.Resolve(context.Background(), survey, testCatalog())
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "B100", rec.Match.Code)
	assert.InDelta(t, 1.0, rec.Confidence, 1e-9)
	assert.Equal(t, types.StatusAuto, rec.Status)
	assert.Len(t, rec.Alternatives, types.DefaultMaxAlternatives)
	assert.InDelta(t, 9.98, rec.Match.PriceIncl, 1e-9)
}

func TestResolve_EmptyCatalog(t *testing.T) {
	r := newTestResolver(nil, nil, 2)
	records, err := r.Resolve(context.Background(), testSurvey(), nil)
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestResolve_InvalidCatalog(t *testing.T) {
	tests := []struct {
		name    string
		catalog []types.CatalogEntry
		row     int
	}{
		{"empty code", []types.CatalogEntry{{Code: "A", Description: "a"}, {Description: "geen code"}}, 1},
		{"duplicate code", []types.CatalogEntry{{Code: "A"}, {Code: "B"}, {Code: "A"}}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestResolver(nil, nil, 1)
			records, err := r.Resolve(context.Background(), testSurvey(), tt.catalog)
			assert.Nil(t, records)
			var cerr *perrors.CatalogError
			require.True(t, errors.As(err, &cerr))
			assert.Equal(t, tt.row, cerr.Row)
		})
	}
}

func TestResolve_LearnedHitTakesPrecedence(t *testing.T) {
	ctx := context.Background()
	store := corrections.NewMemoryStore(nil)
	ev := types.CorrectionEvent{Text: "Behang verwijderen", Unit: "m2", ChosenCode: "B500", PreviousCode: "B100"}
	for i := 0; i < 2; i++ {
		_, err := store.Record(ctx, ev)
		require.NoError(t, err)
	}

	reranker := &fakeReranker{verdict: &types.Verdict{Index: 1, Confidence: 0.99}}
	r := newTestResolver(store, reranker, 2)
	records, err := r.Resolve(ctx, testSurvey(), testCatalog())
	require.NoError(t, err)

	rec := records[0]
	assert.Equal(t, "B500", rec.Match.Code)
	assert.Equal(t, types.MatchTypeLearned, rec.MatchType)
	assert.InDelta(t, 1.0, rec.Confidence, 1e-9)
	assert.Equal(t, types.StatusAuto, rec.Status)
	require.NotEmpty(t, rec.Alternatives)
	assert.Equal(t, "B100", rec.Alternatives[0].Code)
	for _, alt := range rec.Alternatives {
		assert.NotEqual(t, "B500", alt.Code)
	}
}

func TestResolve_LearnedBelowMinFrequencyIsIgnored(t *testing.T) {
	ctx := context.Background()
	store := corrections.NewMemoryStore(nil)
	_, err := store.Record(ctx, types.CorrectionEvent{Text: "behang verwijderen", Unit: "m2", ChosenCode: "B500"})
	require.NoError(t, err)

	r := newTestResolver(store, nil, 1)
	records, err := r.Resolve(ctx, testSurvey(), testCatalog())
	require.NoError(t, err)
	assert.Equal(t, "B100", records[0].Match.Code)
	assert.Equal(t, types.MatchTypeLexical, records[0].MatchType)
}

func TestResolve_LearnedCodeMissingFromCatalog(t *testing.T) {
	ctx := context.Background()
	store := corrections.NewMemoryStore(nil)
	for i := 0; i < 3; i++ {
		_, err := store.Record(ctx, types.CorrectionEvent{Text: "behang verwijderen", Unit: "m2", ChosenCode: "GONE"})
		require.NoError(t, err)
	}

	r := newTestResolver(store, nil, 1)
	records, err := r.Resolve(ctx, testSurvey(), testCatalog())
	require.NoError(t, err)
	assert.Equal(t, "B100", records[0].Match.Code)
	assert.Equal(t, types.MatchTypeLexical, records[0].MatchType)
}

func TestResolve_LearningDisabled(t *testing.T) {
	ctx := context.Background()
	store := corrections.NewMemoryStore(nil)
	for i := 0; i < 2; i++ {
		_, err := store.Record(ctx, types.CorrectionEvent{Text: "behang verwijderen", Unit: "m2", ChosenCode: "B500"})
		require.NoError(t, err)
	}

	cfg := DefaultResolverConfig()
	cfg.LearningEnabled = false
	r := NewResolver(cfg, nil, store, nil)
	records, err := r.Resolve(ctx, testSurvey(), testCatalog())
	require.NoError(t, err)
	assert.Equal(t, "B100", records[0].Match.Code)
}

func TestResolve_SemanticAccepted(t *testing.T) {
	item := types.WorkItem{Description: "trapleuning vernissen", Quantity: 2, Unit: "stu"}
	survey := types.Survey{Rooms: []types.Room{{Name: "Gang", Items: []types.WorkItem{item}}}}

	reranker := &fakeReranker{verdict: &types.Verdict{Index: 1, Confidence: 0.85, Rationale: "zelfde werk"}}
	r := newTestResolver(nil, reranker, 1)
	expected := r.ranker.Rank(item, testCatalog(), r.rankDepth())
	require.Less(t, expected[0].Score, types.DefaultSemanticSkip)

	records, err := r.Resolve(context.Background(), survey, testCatalog())
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, 1, reranker.callCount())
	assert.Equal(t, expected[1].Entry.Code, rec.Match.Code)
	assert.Equal(t, types.MatchTypeSemantic, rec.MatchType)
	assert.InDelta(t, 0.85, rec.Confidence, 1e-9)
	assert.Equal(t, types.StatusReview, rec.Status)
	assert.Equal(t, "zelfde werk", rec.Rationale)
	require.NotEmpty(t, rec.Alternatives)
	assert.Equal(t, expected[0].Entry.Code, rec.Alternatives[0].Code)
}

func TestResolve_SemanticBelowAcceptKeepsLexical(t *testing.T) {
	item := types.WorkItem{Description: "trapleuning vernissen", Unit: "stu"}
	survey := types.Survey{Rooms: []types.Room{{Items: []types.WorkItem{item}}}}

	reranker := &fakeReranker{verdict: &types.Verdict{Index: 1, Confidence: 0.5}}
	r := newTestResolver(nil, reranker, 1)
	expected := r.ranker.Rank(item, testCatalog(), 0)

	records, err := r.Resolve(context.Background(), survey, testCatalog())
	require.NoError(t, err)
	assert.Equal(t, 1, reranker.callCount())
	assert.Equal(t, expected[0].Entry.Code, records[0].Match.Code)
	assert.Equal(t, types.MatchTypeLexical, records[0].MatchType)
	assert.InDelta(t, expected[0].Score, records[0].Confidence, 1e-9)
	assert.Empty(t, records[0].Rationale)
}

func TestResolve_SemanticSkippedForStrongLexical(t *testing.T) {
	reranker := &fakeReranker{verdict: &types.Verdict{Index: 1, Confidence: 0.99}}
	r := newTestResolver(nil, reranker, 1)
	survey := types.Survey{Rooms: []types.Room{{Items: []types.WorkItem{{Description: "plafond witten", Unit: "m2"}}}}}

	records, err := r.Resolve(context.Background(), survey, testCatalog())
	require.NoError(t, err)
	assert.Zero(t, reranker.callCount())
	assert.Equal(t, "B300", records[0].Match.Code)
}

func TestResolve_SemanticNeedsTwoCandidates(t *testing.T) {
	reranker := &fakeReranker{verdict: &types.Verdict{Index: 0, Confidence: 0.99}}
	r := newTestResolver(nil, reranker, 1)
	survey := types.Survey{Rooms: []types.Room{{Items: []types.WorkItem{{Description: "trapleuning vernissen", Unit: "stu"}}}}}

	records, err := r.Resolve(context.Background(), survey, testCatalog()[:1])
	require.NoError(t, err)
	assert.Zero(t, reranker.callCount())
	assert.Equal(t, types.MatchTypeLexical, records[0].MatchType)
}

func TestResolve_RerankerDepth(t *testing.T) {
	catalog := testCatalog()
	for i := 0; i < 6; i++ {
		catalog = append(catalog, types.CatalogEntry{Code: "X" + string(rune('A'+i)), Description: "stucwerk herstellen", Unit: "m2"})
	}
	reranker := &fakeReranker{}
	r := newTestResolver(nil, reranker, 1)
	survey := types.Survey{Rooms: []types.Room{{Items: []types.WorkItem{{Description: "trapleuning vernissen", Unit: "stu"}}}}}

	records, err := r.Resolve(context.Background(), survey, catalog)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []int{types.DefaultRerankCandidates}, reranker.sizes)
	assert.Len(t, records[0].Alternatives, types.DefaultMaxAlternatives)
}

func TestResolve_RerankerFailureDegradesToLexical(t *testing.T) {
	svc := rerank.ServiceFunc(func(context.Context, *rerank.Request) (string, error) {
		return "dit is geen json", nil
	})
	adapter := rerank.NewAdapter(svc, nil, rerank.DefaultAdapterConfig())
	r := newTestResolver(nil, adapter, 2)

	survey := testSurvey()
	survey.Rooms[0].Items = append(survey.Rooms[0].Items, types.WorkItem{Description: "trapleuning vernissen", Unit: "stu"})
	records, err := r.Resolve(context.Background(), survey, testCatalog())
	require.NoError(t, err)
	require.Len(t, records, 6)
	for _, rec := range records {
		assert.NotEqual(t, types.MatchTypeSemantic, rec.MatchType)
	}
	assert.Equal(t, int64(1), adapter.Stats().Failures[perrors.RerankMalformed])
}

func TestResolve_WithRerankAdapter(t *testing.T) {
	svc := rerank.ServiceFunc(func(_ context.Context, req *rerank.Request) (string, error) {
		return `{"best_match_index": 2, "confidence": 0.92, "reasoning": "trap"}`, nil
	})
	adapter := rerank.NewAdapter(svc, nil, rerank.DefaultAdapterConfig())
	r := newTestResolver(nil, adapter, 1)

	item := types.WorkItem{Description: "trapleuning vernissen", Unit: "stu"}
	expected := r.ranker.Rank(item, testCatalog(), r.rankDepth())
	records, err := r.Resolve(context.Background(), types.Survey{Rooms: []types.Room{{Items: []types.WorkItem{item}}}}, testCatalog())
	require.NoError(t, err)

	assert.Equal(t, expected[1].Entry.Code, records[0].Match.Code)
	assert.Equal(t, types.MatchTypeSemantic, records[0].MatchType)
	assert.Equal(t, types.StatusAuto, records[0].Status)
}

func TestResolve_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newTestResolver(nil, nil, 2)
	records, err := r.Resolve(ctx, testSurvey(), testCatalog())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, records)
}

func TestResolve_CancelledMidRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// cancel once the first item reaches the reranker
	svc := rerank.ServiceFunc(func(ctx context.Context, _ *rerank.Request) (string, error) {
		cancel()
		return "", ctx.Err()
	})
	adapter := rerank.NewAdapter(svc, nil, rerank.DefaultAdapterConfig())
	r := newTestResolver(nil, adapter, 1)

	survey := types.Survey{Rooms: []types.Room{{Items: []types.WorkItem{
		{Description: "trapleuning vernissen", Unit: "stu"},
		{Description: "behang verwijderen", Unit: "m2"},
		{Description: "plafond witten", Unit: "m2"},
	}}}}
	records, err := r.Resolve(ctx, survey, testCatalog())
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, records, 1)
	assert.Equal(t, "trapleuning vernissen", records[0].Item.Description)
	assert.Equal(t, types.MatchTypeLexical, records[0].MatchType)
}
