package semantic

import "fmt"

// ScoreLayers contains the tunable constants of the lexical scorer
type ScoreLayers struct {
	// Multiplier applied to the keyword score before it competes with the
	// edit-distance ratio. Lets a full keyword overlap beat a poor edit ratio.
	KeywordBoost float64

	// Added when one normalized string contains the other
	SubstringBonus float64

	// Keyword blend: weight of the better-covered side and of the
	// worse-covered side. The short survey line is usually the former.
	QueryCoverageWeight  float64
	TargetCoverageWeight float64

	// Edit-distance algorithm, see FuzzyMatcher
	Algorithm string

	// Bound on memoized prepared texts
	TokenCacheSize int
}

// DefaultScoreLayers provides the empirically tuned defaults
var DefaultScoreLayers = ScoreLayers{
	KeywordBoost:         1.2,
	SubstringBonus:       0.15,
	QueryCoverageWeight:  0.7,
	TargetCoverageWeight: 0.3,
	Algorithm:            AlgorithmLevenshtein,
	TokenCacheSize:       2048,
}

// TextScore is the breakdown of one query/target comparison
type TextScore struct {
	// Final score in [0,1]
	Score float64

	EditRatio float64
	Keyword   float64

	// Both normalized strings were byte-equal
	Exact bool

	// One normalized string contains the other
	Substring bool
}

// String returns a human-readable representation of a TextScore
func (s TextScore) String() string {
	return fmt.Sprintf("TextScore{Score: %.3f, Edit: %.3f, Keyword: %.3f, Exact: %t, Substring: %t}",
		s.Score, s.EditRatio, s.Keyword, s.Exact, s.Substring)
}

// IsValidScore checks that every component is within [0,1]
func (s TextScore) IsValidScore() bool {
	return s.Score >= 0.0 && s.Score <= 1.0 &&
		s.EditRatio >= 0.0 && s.EditRatio <= 1.0 &&
		s.Keyword >= 0.0 && s.Keyword <= 1.0
}
