package corrections

import (
	"context"

	"github.com/standardbeagle/pricematch/internal/types"
)

// NullStore is used when learning is disabled: nothing is found and nothing
// is kept.
type NullStore struct{}

// Lookup always misses
func (NullStore) Lookup(context.Context, string, string, int) (*types.LearnedCorrection, error) {
	return nil, nil
}

// Record discards the event
func (NullStore) Record(context.Context, types.CorrectionEvent) (RecordOutcome, error) {
	return OutcomeSkipped, nil
}
