package semantic

import (
	"unicode/utf8"

	"github.com/hbollon/go-edlib"
)

// Edit-distance algorithms understood by FuzzyMatcher.
const (
	AlgorithmLevenshtein = "levenshtein"
	AlgorithmJaroWinkler = "jaro-winkler"
)

// FuzzyMatcher scores two normalized strings by edit distance.
type FuzzyMatcher struct {
	algorithm string
}

// NewFuzzyMatcher creates a matcher for the given algorithm. An empty or
// unknown name selects Levenshtein.
func NewFuzzyMatcher(algorithm string) *FuzzyMatcher {
	switch algorithm {
	case AlgorithmJaroWinkler:
	default:
		algorithm = AlgorithmLevenshtein
	}
	return &FuzzyMatcher{algorithm: algorithm}
}

// Algorithm returns the configured algorithm name
func (fm *FuzzyMatcher) Algorithm() string {
	return fm.algorithm
}

// Similarity returns a score in [0,1]; identical strings score 1.0 and a
// single empty side scores 0.0.
func (fm *FuzzyMatcher) Similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	switch fm.algorithm {
	case AlgorithmJaroWinkler:
		return fm.jaroWinkler(a, b)
	default:
		return fm.levenshteinRatio(a, b)
	}
}

// levenshteinRatio is 1 - distance/maxLen with lengths counted in runes, so
// "m²" and accented input are not penalized for their byte width.
func (fm *FuzzyMatcher) levenshteinRatio(a, b string) float64 {
	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 1.0
	}

	distance := edlib.LevenshteinDistance(a, b)
	ratio := 1.0 - float64(distance)/float64(maxLen)
	if ratio < 0 {
		return 0
	}
	return ratio
}

func (fm *FuzzyMatcher) jaroWinkler(a, b string) float64 {
	score, err := edlib.StringsSimilarity(a, b, edlib.JaroWinkler)
	if err != nil {
		return 0.0
	}
	return float64(score)
}
