package corrections

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	perrors "github.com/standardbeagle/pricematch/internal/errors"
	"github.com/standardbeagle/pricematch/internal/types"
)

type correctionKey struct {
	text, unit, code string
}

// MemoryStore keeps corrections in process memory with the same semantics
// as SQLiteStore.
type MemoryStore struct {
	mu       sync.RWMutex
	rows     map[correctionKey]*types.LearnedCorrection
	order    []correctionKey // insertion order, for stable export
	feedback []types.AIFeedback
	clock    func() time.Time
}

// NewMemoryStore creates an empty store. A nil clock uses time.Now.
func NewMemoryStore(clock func() time.Time) *MemoryStore {
	return &MemoryStore{
		rows:  make(map[correctionKey]*types.LearnedCorrection),
		clock: defaultClock(clock),
	}
}

// Lookup returns the most frequent, most recently used correction
func (m *MemoryStore) Lookup(ctx context.Context, text, unit string, minFrequency int) (*types.LearnedCorrection, error) {
	if err := ctx.Err(); err != nil {
		return nil, perrors.NewStoreError("lookup", err)
	}
	nt, nu := NormalizeKey(text, unit)
	if nt == "" {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *types.LearnedCorrection
	for _, k := range m.order {
		if k.text != nt || k.unit != nu {
			continue
		}
		c := m.rows[k]
		if c.Frequency < minFrequency {
			continue
		}
		if best == nil || better(c, best) {
			best = c
		}
	}
	if best == nil {
		return nil, nil
	}
	out := *best
	return &out, nil
}

// Record upserts a correction
func (m *MemoryStore) Record(ctx context.Context, ev types.CorrectionEvent) (RecordOutcome, error) {
	if err := ctx.Err(); err != nil {
		return "", perrors.NewStoreError("record", err)
	}
	if err := validateEvent(ev); err != nil {
		return "", perrors.NewStoreError("record", err)
	}
	nt, nu := NormalizeKey(ev.Text, ev.Unit)
	key := correctionKey{text: nt, unit: nu, code: ev.ChosenCode}
	now := m.clock().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.rows[key]; ok {
		c.Frequency++
		c.LastUsed = now
		if ev.ChosenDescription != "" {
			c.Description = ev.ChosenDescription
		}
		return OutcomeUpdated, nil
	}

	m.rows[key] = &types.LearnedCorrection{
		Text:                nt,
		Unit:                nu,
		Code:                ev.ChosenCode,
		Description:         ev.ChosenDescription,
		PreviousCode:        ev.PreviousCode,
		PreviousDescription: ev.PreviousDescription,
		Frequency:           1,
		LastUsed:            now,
		CreatedAt:           now,
	}
	m.order = append(m.order, key)
	return OutcomeAdded, nil
}

// RecordAIFeedback stores a reviewer reaction
func (m *MemoryStore) RecordAIFeedback(_ context.Context, fb types.AIFeedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feedback = append(m.feedback, fb)
	return nil
}

// Feedback returns a copy of the recorded AI feedback
func (m *MemoryStore) Feedback() []types.AIFeedback {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]types.AIFeedback(nil), m.feedback...)
}

// Similar finds corrections containing any word of three or more characters
func (m *MemoryStore) Similar(_ context.Context, text string, limit int) ([]types.LearnedCorrection, error) {
	if limit <= 0 {
		limit = 5
	}
	all := m.sorted()

	var out []types.LearnedCorrection
	seen := make(map[string]bool)
	for _, word := range similarWords(text) {
		n := 0
		for _, c := range all {
			if n == limit {
				break
			}
			if !strings.Contains(c.Text, word) {
				continue
			}
			n++
			if seen[c.Code] {
				continue
			}
			seen[c.Code] = true
			out = append(out, c)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Statistics reports totals, the top corrections and AI feedback rates
func (m *MemoryStore) Statistics(_ context.Context) (*Statistics, error) {
	all := m.sorted()
	stats := &Statistics{TotalCorrections: len(all)}
	for _, c := range all {
		stats.TotalUses += c.Frequency
	}
	if len(all) > topCorrections {
		all = all[:topCorrections]
	}
	stats.Top = all

	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0.0
	for _, fb := range m.feedback {
		if fb.Accepted {
			stats.AIFeedback.Accepted++
		}
		total += fb.Confidence
	}
	stats.AIFeedback.TotalSuggestions = len(m.feedback)
	if n := len(m.feedback); n > 0 {
		stats.AIFeedback.AvgConfidence = total / float64(n)
	}
	stats.AIFeedback.AcceptanceRate = acceptanceRate(stats.AIFeedback.Accepted, stats.AIFeedback.TotalSuggestions)
	return stats, nil
}

// Export returns all corrections, most used first
func (m *MemoryStore) Export(_ context.Context) ([]types.LearnedCorrection, error) {
	return m.sorted(), nil
}

// Clear removes everything
func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = make(map[correctionKey]*types.LearnedCorrection)
	m.order = nil
	m.feedback = nil
	return nil
}

// Close is a no-op
func (m *MemoryStore) Close() error {
	return nil
}

func (m *MemoryStore) sorted() []types.LearnedCorrection {
	m.mu.RLock()
	out := make([]types.LearnedCorrection, 0, len(m.order))
	for _, k := range m.order {
		out = append(out, *m.rows[k])
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return better(&out[i], &out[j])
	})
	return out
}

// better orders by frequency, then recency.
func better(a, b *types.LearnedCorrection) bool {
	if a.Frequency != b.Frequency {
		return a.Frequency > b.Frequency
	}
	return a.LastUsed.After(b.LastUsed)
}
