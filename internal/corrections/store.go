// Package corrections persists human overrides so equivalent work items are
// resolved the same way next time.
package corrections

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/standardbeagle/pricematch/internal/semantic"
	"github.com/standardbeagle/pricematch/internal/types"
)

// RecordOutcome tells whether a correction created a row or bumped one.
type RecordOutcome string

const (
	OutcomeAdded   RecordOutcome = "added"
	OutcomeUpdated RecordOutcome = "updated"
	OutcomeSkipped RecordOutcome = "skipped" // learning disabled
)

var (
	ErrEmptyCode = errors.New("correction has no chosen code")
	ErrEmptyText = errors.New("correction has no text")
)

// Store is the capability the matching engine needs: look up a learned code
// and record a new correction. Both normalize text and unit internally.
type Store interface {
	Lookup(ctx context.Context, text, unit string, minFrequency int) (*types.LearnedCorrection, error)
	Record(ctx context.Context, ev types.CorrectionEvent) (RecordOutcome, error)
}

// FeedbackRecorder is implemented by stores that keep reviewer reactions to
// semantic suggestions.
type FeedbackRecorder interface {
	RecordAIFeedback(ctx context.Context, fb types.AIFeedback) error
}

// Admin is the maintenance surface used by the CLI.
type Admin interface {
	Store
	FeedbackRecorder
	Similar(ctx context.Context, text string, limit int) ([]types.LearnedCorrection, error)
	Statistics(ctx context.Context) (*Statistics, error)
	Export(ctx context.Context) ([]types.LearnedCorrection, error)
	Clear(ctx context.Context) error
	Close() error
}

// Statistics summarizes the store contents
type Statistics struct {
	TotalCorrections int                       `json:"total_corrections"`
	TotalUses        int                       `json:"total_uses"`
	Top              []types.LearnedCorrection `json:"top_corrections"`
	AIFeedback       AIStatistics              `json:"ai_feedback"`
}

// AIStatistics summarizes reviewer reactions to semantic suggestions
type AIStatistics struct {
	TotalSuggestions int     `json:"total_suggestions"`
	Accepted         int     `json:"accepted"`
	AcceptanceRate   float64 `json:"acceptance_rate"` // percent
	AvgConfidence    float64 `json:"avg_confidence"`
}

const topCorrections = 10

// NormalizeKey maps a (text, unit) pair onto the store key.
func NormalizeKey(text, unit string) (string, string) {
	return semantic.NormalizeText(text), semantic.NormalizeUnit(unit)
}

func validateEvent(ev types.CorrectionEvent) error {
	if ev.ChosenCode == "" {
		return ErrEmptyCode
	}
	if semantic.NormalizeText(ev.Text) == "" {
		return ErrEmptyText
	}
	return nil
}

// similarWords returns the distinct words of at least three characters.
func similarWords(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, w := range semantic.Tokenize(text) {
		if utf8.RuneCountInString(w) < 3 || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

func acceptanceRate(accepted, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(accepted) / float64(total) * 100
}

func defaultClock(c func() time.Time) func() time.Time {
	if c == nil {
		return time.Now
	}
	return c
}
