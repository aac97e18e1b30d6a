package matching

import (
	"context"

	"github.com/standardbeagle/pricematch/internal/corrections"
	"github.com/standardbeagle/pricematch/internal/debug"
	"github.com/standardbeagle/pricematch/internal/types"
)

// LearnedLookup asks the correction store for a human-confirmed code.
type LearnedLookup struct {
	store        corrections.Store
	minFrequency int
}

// NewLearnedLookup creates a lookup. A nil store never hits.
func NewLearnedLookup(store corrections.Store, minFrequency int) *LearnedLookup {
	if store == nil {
		store = corrections.NullStore{}
	}
	if minFrequency < 1 {
		minFrequency = types.DefaultMinCorrectionFreq
	}
	return &LearnedLookup{store: store, minFrequency: minFrequency}
}

// Lookup returns the learned correction for item, or nil. Store failures
// are logged and count as a miss.
func (l *LearnedLookup) Lookup(ctx context.Context, item types.WorkItem) *types.LearnedCorrection {
	c, err := l.store.Lookup(ctx, item.Description, item.Unit, l.minFrequency)
	if err != nil {
		debug.Warn("STORE", "learned lookup failed for %q: %v", item.Description, err)
		return nil
	}
	if c != nil {
		debug.LogLearn("%q [%s] -> %s (freq %d)", item.Description, item.Unit, c.Code, c.Frequency)
	}
	return c
}
