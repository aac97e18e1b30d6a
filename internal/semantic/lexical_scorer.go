package semantic

import "strings"

// preparedText is the normalized, tokenized and expanded form of one
// description. Immutable once built, so cached values are shared freely.
type preparedText struct {
	normalized string
	tokens     []string   // content tokens, stop words removed
	synonyms   []TokenSet // synonyms[i] = expansion of tokens[i]
	expanded   TokenSet   // union of synonyms
}

// LexicalScorer compares survey descriptions with catalog descriptions.
// Safe for concurrent use.
type LexicalScorer struct {
	layers ScoreLayers
	dict   *SynonymDictionary
	fuzzy  *FuzzyMatcher
	cache  *LRUCache
}

// NewLexicalScorer creates a scorer. A nil dictionary selects the built-in
// one and a nil cache gets one sized from layers.TokenCacheSize.
func NewLexicalScorer(layers ScoreLayers, dict *SynonymDictionary, cache *LRUCache) *LexicalScorer {
	if dict == nil {
		dict = DefaultSynonymDictionary()
	}
	if cache == nil {
		cache = NewLRUCache(layers.TokenCacheSize)
	}
	return &LexicalScorer{
		layers: layers,
		dict:   dict,
		fuzzy:  NewFuzzyMatcher(layers.Algorithm),
		cache:  cache,
	}
}

// Layers returns the scorer's configuration
func (s *LexicalScorer) Layers() ScoreLayers {
	return s.layers
}

// Cache exposes the prepared-text cache for stats reporting
func (s *LexicalScorer) Cache() *LRUCache {
	return s.cache
}

// Score returns the text similarity of query and target in [0,1].
func (s *LexicalScorer) Score(query, target string) float64 {
	return s.Detail(query, target).Score
}

// Detail returns the text similarity together with its components.
func (s *LexicalScorer) Detail(query, target string) TextScore {
	a, b := s.prepare(query), s.prepare(target)

	if a.normalized == b.normalized {
		return TextScore{Score: 1.0, EditRatio: 1.0, Keyword: keywordForEqual(a), Exact: true}
	}

	result := TextScore{
		EditRatio: s.fuzzy.Similarity(a.normalized, b.normalized),
		Keyword:   s.keywordScore(a, b),
	}

	best := result.EditRatio
	if boosted := result.Keyword * s.layers.KeywordBoost; boosted > best {
		best = boosted
	}

	if a.normalized != "" && b.normalized != "" &&
		(strings.Contains(a.normalized, b.normalized) || strings.Contains(b.normalized, a.normalized)) {
		result.Substring = true
		best += s.layers.SubstringBonus
	}

	result.Score = clamp01(best)
	return result
}

func keywordForEqual(p *preparedText) float64 {
	if len(p.tokens) == 0 {
		return 0
	}
	return 1
}

// keywordScore blends how much of each side is covered by the other's
// synonym-expanded tokens. The better-covered side gets the larger weight,
// which keeps the score symmetric.
func (s *LexicalScorer) keywordScore(a, b *preparedText) float64 {
	if len(a.tokens) == 0 || len(b.tokens) == 0 {
		return 0
	}
	ca := coverage(a, b)
	cb := coverage(b, a)
	hi, lo := ca, cb
	if lo > hi {
		hi, lo = lo, hi
	}
	return clamp01(s.layers.QueryCoverageWeight*hi + s.layers.TargetCoverageWeight*lo)
}

// coverage is the fraction of from's tokens that have a synonym in to.
func coverage(from, to *preparedText) float64 {
	matched := 0
	for _, syn := range from.synonyms {
		if syn.Intersects(to.expanded) {
			matched++
		}
	}
	return float64(matched) / float64(len(from.tokens))
}

func (s *LexicalScorer) prepare(text string) *preparedText {
	normalized := NormalizeText(text)
	if p, ok := s.cache.Get(normalized); ok {
		return p
	}

	p := &preparedText{
		normalized: normalized,
		tokens:     ContentTokens(normalized),
	}
	p.synonyms = make([]TokenSet, len(p.tokens))
	p.expanded = make(TokenSet, len(p.tokens))
	for i, t := range p.tokens {
		p.synonyms[i] = NewTokenSet(s.dict.Synonyms(t)...)
		for syn := range p.synonyms[i] {
			p.expanded[syn] = struct{}{}
		}
	}

	s.cache.Set(normalized, p)
	return p
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
