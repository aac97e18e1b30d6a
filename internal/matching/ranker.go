// Package matching resolves survey work items against a price-book catalog.
package matching

import (
	"math"
	"sort"

	"github.com/standardbeagle/pricematch/internal/semantic"
	"github.com/standardbeagle/pricematch/internal/types"
)

// Weights balances text and unit similarity in a candidate's combined score.
type Weights struct {
	Text float64
	Unit float64
}

// DefaultWeights returns 0.7 text / 0.3 unit
func DefaultWeights() Weights {
	return Weights{Text: types.DefaultTextWeight, Unit: types.DefaultUnitWeight}
}

// Ranker scores every catalog entry against a work item.
type Ranker struct {
	scorer  *semantic.LexicalScorer
	weights Weights
}

// NewRanker creates a ranker. A nil scorer uses the default layers and
// weights are scaled to sum to one.
func NewRanker(scorer *semantic.LexicalScorer, weights Weights) *Ranker {
	if scorer == nil {
		scorer = semantic.NewLexicalScorer(semantic.DefaultScoreLayers, nil, nil)
	}
	if weights.Text < 0 || weights.Unit < 0 || weights.Text+weights.Unit <= 0 {
		weights = DefaultWeights()
	}
	// combined scores stay in [0,1]
	if sum := weights.Text + weights.Unit; math.Abs(sum-1) > 1e-9 {
		weights.Text /= sum
		weights.Unit /= sum
	}
	return &Ranker{scorer: scorer, weights: weights}
}

// Scorer returns the lexical scorer
func (r *Ranker) Scorer() *semantic.LexicalScorer {
	return r.scorer
}

// Score computes the candidate for a single entry.
func (r *Ranker) Score(item types.WorkItem, entry types.CatalogEntry) types.MatchCandidate {
	text := r.scorer.Score(item.Description, entry.Description)
	unit := semantic.UnitScore(item.Unit, entry.Unit)
	return types.MatchCandidate{
		Entry:     entry,
		Score:     r.weights.Text*text + r.weights.Unit*unit,
		TextScore: text,
		UnitScore: unit,
	}
}

// Rank returns the topN candidates by combined score, highest first. Ties
// keep catalog order. topN <= 0 returns every entry.
func (r *Ranker) Rank(item types.WorkItem, catalog []types.CatalogEntry, topN int) []types.MatchCandidate {
	candidates := make([]types.MatchCandidate, len(catalog))
	for i, entry := range catalog {
		candidates[i] = r.Score(item, entry)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	if topN > 0 && len(candidates) > topN {
		candidates = candidates[:topN]
	}
	return candidates
}
