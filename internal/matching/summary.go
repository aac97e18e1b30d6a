package matching

import "github.com/standardbeagle/pricematch/internal/types"

// Confidence bands used by Summarize
const (
	HighConfidence   = 0.9
	MediumConfidence = 0.7
)

// Summary counts records per confidence band, match type and status.
type Summary struct {
	Total       int                     `json:"total"`
	High        int                     `json:"high_confidence"`
	Medium      int                     `json:"medium_confidence"`
	Low         int                     `json:"low_confidence"`
	NeedsReview int                     `json:"needs_review"`
	ByType      map[types.MatchType]int `json:"by_type"`
}

// Summarize counts records: high >= 0.9, medium >= 0.7, low below.
func Summarize(records []types.MatchRecord) Summary {
	s := Summary{Total: len(records), ByType: make(map[types.MatchType]int)}
	for _, rec := range records {
		switch {
		case rec.Confidence >= HighConfidence:
			s.High++
		case rec.Confidence >= MediumConfidence:
			s.Medium++
		default:
			s.Low++
		}
		if rec.Status == types.StatusReview {
			s.NeedsReview++
		}
		s.ByType[rec.MatchType]++
	}
	return s
}
