package corrections

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/standardbeagle/pricematch/internal/errors"
	"github.com/standardbeagle/pricematch/internal/types"
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC)}
}

// Now advances one minute per call so every write gets a distinct time.
func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Minute)
	return c.now
}

type storeFactory struct {
	name string
	open func(t *testing.T, clock func() time.Time) Admin
}

func storeFactories() []storeFactory {
	return []storeFactory{
		{"memory", func(t *testing.T, clock func() time.Time) Admin {
			return NewMemoryStore(clock)
		}},
		{"sqlite", func(t *testing.T, clock func() time.Time) Admin {
			s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "corrections.db"), WithClock(clock))
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		}},
	}
}

func forEachStore(t *testing.T, fn func(t *testing.T, s Admin)) {
	for _, f := range storeFactories() {
		t.Run(f.name, func(t *testing.T) {
			fn(t, f.open(t, newStepClock().Now))
		})
	}
}

func event(text, unit, code string) types.CorrectionEvent {
	return types.CorrectionEvent{Text: text, Unit: unit, ChosenCode: code, ChosenDescription: "desc " + code}
}

func TestStore_TwoIdenticalCorrectionsCollapse(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Admin) {
		ctx := context.Background()

		outcome, err := s.Record(ctx, event("Behang verwijderen", "m2", "W-100"))
		require.NoError(t, err)
		assert.Equal(t, OutcomeAdded, outcome)

		outcome, err = s.Record(ctx, event("behang  verwijderen.", "m²", "W-100"))
		require.NoError(t, err)
		assert.Equal(t, OutcomeUpdated, outcome)

		all, err := s.Export(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, 2, all[0].Frequency)
		assert.Equal(t, "behang verwijderen", all[0].Text)
		assert.Equal(t, "m2", all[0].Unit)
		assert.True(t, all[0].LastUsed.After(all[0].CreatedAt))
	})
}

func TestStore_LookupHonoursMinFrequency(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Admin) {
		ctx := context.Background()

		_, err := s.Record(ctx, event("behang verwijderen", "m2", "W-100"))
		require.NoError(t, err)

		got, err := s.Lookup(ctx, "behang verwijderen", "m2", 2)
		require.NoError(t, err)
		assert.Nil(t, got, "a single correction is below the default threshold")

		_, err = s.Record(ctx, event("behang verwijderen", "m2", "W-100"))
		require.NoError(t, err)

		got, err = s.Lookup(ctx, "Behang Verwijderen", "vierkante meter", 2)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "W-100", got.Code)
		assert.Equal(t, 2, got.Frequency)
		assert.Equal(t, "desc W-100", got.Description)
	})
}

func TestStore_LookupPrefersFrequencyThenRecency(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Admin) {
		ctx := context.Background()
		record := func(code string, n int) {
			for i := 0; i < n; i++ {
				_, err := s.Record(ctx, event("deur afhangen", "stu", code))
				require.NoError(t, err)
			}
		}

		record("D-1", 3)
		record("D-2", 2)
		got, err := s.Lookup(ctx, "deur afhangen", "stu", 1)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "D-1", got.Code)

		record("D-2", 1) // tie at 3, D-2 used last
		got, err = s.Lookup(ctx, "deur afhangen", "stu", 1)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "D-2", got.Code)
	})
}

func TestStore_UnitIsPartOfTheKey(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Admin) {
		ctx := context.Background()
		for i := 0; i < 2; i++ {
			_, err := s.Record(ctx, event("plint", "m1", "P-1"))
			require.NoError(t, err)
		}

		got, err := s.Lookup(ctx, "plint", "stu", 1)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestStore_RecordRejectsInvalidEvents(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Admin) {
		ctx := context.Background()

		_, err := s.Record(ctx, event("behang", "m2", ""))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrEmptyCode))

		_, err = s.Record(ctx, event(" .. ", "m2", "W-1"))
		require.Error(t, err)
		var storeErr *perrors.StoreError
		assert.True(t, errors.As(err, &storeErr))
		assert.Equal(t, "record", storeErr.Operation)
	})
}

func TestStore_Similar(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Admin) {
		ctx := context.Background()
		for _, ev := range []types.CorrectionEvent{
			event("behang verwijderen", "m2", "W-100"),
			event("behang aanbrengen", "m2", "W-200"),
			event("behang verwijderen woonkamer", "m2", "W-100"),
			event("radiator demonteren", "stu", "R-1"),
		} {
			_, err := s.Record(ctx, ev)
			require.NoError(t, err)
		}

		got, err := s.Similar(ctx, "oud behang", 5)
		require.NoError(t, err)
		codes := make([]string, 0, len(got))
		for _, c := range got {
			codes = append(codes, c.Code)
		}
		assert.ElementsMatch(t, []string{"W-100", "W-200"}, codes, "short words are ignored, codes are unique")

		none, err := s.Similar(ctx, "de en", 5)
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestStore_StatisticsAndFeedback(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Admin) {
		ctx := context.Background()
		for i := 0; i < 3; i++ {
			_, err := s.Record(ctx, event("kozijn schilderen", "m1", "K-1"))
			require.NoError(t, err)
		}
		_, err := s.Record(ctx, event("plafond sauzen", "m2", "P-9"))
		require.NoError(t, err)

		require.NoError(t, s.RecordAIFeedback(ctx, types.AIFeedback{Text: "a", SuggestedCode: "X", Confidence: 0.9, Accepted: true}))
		require.NoError(t, s.RecordAIFeedback(ctx, types.AIFeedback{Text: "b", SuggestedCode: "Y", Confidence: 0.7, UserChosenCode: "Z"}))

		stats, err := s.Statistics(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, stats.TotalCorrections)
		assert.Equal(t, 4, stats.TotalUses)
		require.Len(t, stats.Top, 2)
		assert.Equal(t, "K-1", stats.Top[0].Code)
		assert.Equal(t, 2, stats.AIFeedback.TotalSuggestions)
		assert.Equal(t, 1, stats.AIFeedback.Accepted)
		assert.InDelta(t, 50.0, stats.AIFeedback.AcceptanceRate, 1e-9)
		assert.InDelta(t, 0.8, stats.AIFeedback.AvgConfidence, 1e-9)
	})
}

func TestStore_Clear(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Admin) {
		ctx := context.Background()
		_, err := s.Record(ctx, event("behang", "m2", "W-1"))
		require.NoError(t, err)
		require.NoError(t, s.RecordAIFeedback(ctx, types.AIFeedback{Text: "behang", Accepted: true}))

		require.NoError(t, s.Clear(ctx))

		all, err := s.Export(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
		stats, err := s.Statistics(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, stats.AIFeedback.TotalSuggestions)
	})
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "corrections.db")

	s, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err := s.Record(ctx, event("gipsplaat aanbrengen", "m2", "G-1"))
		require.NoError(t, err)
	}
	require.NoError(t, s.Close())

	s2, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer s2.Close()
	assert.Equal(t, path, s2.Path())

	got, err := s2.Lookup(ctx, "gipsplaat aanbrengen", "m2", 2)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "G-1", got.Code)
}

func TestMemoryStore_ConcurrentRecord(t *testing.T) {
	s := NewMemoryStore(nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Record(ctx, event("tegels vervangen", "m2", "T-1"))
		}()
	}
	wg.Wait()

	got, err := s.Lookup(ctx, "tegels vervangen", "m2", 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 20, got.Frequency)
}

func TestNullStore(t *testing.T) {
	var s Store = NullStore{}
	ctx := context.Background()

	outcome, err := s.Record(ctx, event("behang", "m2", "W-1"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)

	got, err := s.Lookup(ctx, "behang", "m2", 1)
	require.NoError(t, err)
	assert.Nil(t, got)
}
