package matching

import (
	"context"
	"errors"

	"github.com/standardbeagle/pricematch/internal/corrections"
	"github.com/standardbeagle/pricematch/internal/debug"
	perrors "github.com/standardbeagle/pricematch/internal/errors"
	"github.com/standardbeagle/pricematch/internal/types"
)

// ErrNotSemantic is returned by Accept for records the reranker did not choose.
var ErrNotSemantic = errors.New("record was not matched semantically")

// Override replaces the record's match with entry, marks it manual with
// confidence 1.0 and writes the correction to store. Overriding a semantic
// pick also records rejected AI feedback when the store keeps it. The
// record is updated even when the store write fails.
func Override(ctx context.Context, rec *types.MatchRecord, entry types.CatalogEntry, store corrections.Store) (corrections.RecordOutcome, error) {
	if entry.Code == "" {
		return "", perrors.NewCatalogError(entry.RowNum, "", "override entry has no code")
	}
	if store == nil {
		store = corrections.NullStore{}
	}

	previous := *rec

	rec.Match = types.SnapshotEntry(entry)
	rec.MatchType = types.MatchTypeManual
	rec.Confidence = 1.0
	rec.Status = types.StatusAuto
	rec.Rationale = ""
	rec.Alternatives = dropAlternative(rec.Alternatives, entry.Code)

	var errs []error
	outcome, err := store.Record(ctx, types.CorrectionEvent{
		Text:                rec.Item.Description,
		Unit:                rec.Item.Unit,
		ChosenCode:          entry.Code,
		ChosenDescription:   entry.Description,
		PreviousCode:        previous.Match.Code,
		PreviousDescription: previous.Match.Description,
	})
	if err != nil {
		debug.Warn("STORE", "recording override for %q failed: %v", rec.Item.Description, err)
		errs = append(errs, err)
	} else {
		debug.LogLearn("%q: %s -> %s (%s)", rec.Item.Description, previous.Match.Code, entry.Code, outcome)
	}

	if previous.MatchType == types.MatchTypeSemantic {
		if err := recordFeedback(ctx, store, previous, false, entry.Code); err != nil {
			errs = append(errs, err)
		}
	}

	return outcome, perrors.NewMultiError(errs).ErrorOrNil()
}

// Accept confirms a semantic suggestion. It only writes AI feedback; the
// record itself is unchanged.
func Accept(ctx context.Context, rec *types.MatchRecord, store corrections.Store) error {
	if rec.MatchType != types.MatchTypeSemantic {
		return ErrNotSemantic
	}
	return recordFeedback(ctx, store, *rec, true, rec.Match.Code)
}

func recordFeedback(ctx context.Context, store corrections.Store, suggestion types.MatchRecord, accepted bool, chosen string) error {
	fr, ok := store.(corrections.FeedbackRecorder)
	if !ok {
		return nil
	}
	err := fr.RecordAIFeedback(ctx, types.AIFeedback{
		Text:           suggestion.Item.Description,
		SuggestedCode:  suggestion.Match.Code,
		Confidence:     suggestion.Confidence,
		Rationale:      suggestion.Rationale,
		Accepted:       accepted,
		UserChosenCode: chosen,
	})
	if err != nil {
		debug.Warn("STORE", "recording AI feedback for %q failed: %v", suggestion.Item.Description, err)
	}
	return err
}

func dropAlternative(alts []types.Alternative, code string) []types.Alternative {
	out := alts[:0:0]
	for _, a := range alts {
		if a.Code != code {
			out = append(out, a)
		}
	}
	return out
}
