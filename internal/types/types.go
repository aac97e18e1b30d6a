package types

import (
	"fmt"
	"time"
)

// Engine-wide defaults. All of them can be overridden through config.
const (
	DefaultTextWeight = 0.7 // share of the text score in a candidate's combined score
	DefaultUnitWeight = 0.3 // share of the unit score in a candidate's combined score

	DefaultAutoThreshold     = 0.9  // records at or above this confidence need no review
	DefaultSemanticSkip      = 0.95 // lexical top at or above this never goes to the reranker
	DefaultSemanticAccept    = 0.7  // minimum reranker confidence to replace the lexical pick
	DefaultMaxAlternatives   = 4
	DefaultRerankCandidates  = 10
	DefaultMinCorrectionFreq = 2
	DefaultVerdictConfidence = 0.8 // used when the reranker omits a confidence
)

// MatchType records which stage produced a MatchRecord's choice.
type MatchType string

const (
	MatchTypeLearned  MatchType = "learned"
	MatchTypeLexical  MatchType = "lexical"
	MatchTypeSemantic MatchType = "semantic"
	MatchTypeManual   MatchType = "manual"
)

// Status tells the review UI whether a record needs a human.
type Status string

const (
	StatusAuto   Status = "auto"
	StatusReview Status = "review"
)

// StatusFor classifies a confidence against the auto-accept threshold.
func StatusFor(confidence, autoThreshold float64) Status {
	if confidence >= autoThreshold {
		return StatusAuto
	}
	return StatusReview
}

// WorkItem is one line of survey text with its parsed quantity and unit.
type WorkItem struct {
	Description string  `json:"description" yaml:"description"`
	Quantity    float64 `json:"quantity" yaml:"quantity"`
	Unit        string  `json:"unit" yaml:"unit"`
	RawText     string  `json:"raw_text,omitempty" yaml:"raw_text,omitempty"`
}

// Room groups the work items found under one heading of a survey.
type Room struct {
	Name  string     `json:"name" yaml:"name"`
	Items []WorkItem `json:"items" yaml:"items"`
}

// Survey is the ordered output of the document extractor.
type Survey struct {
	Rooms []Room `json:"rooms" yaml:"rooms"`
}

// ItemCount returns the number of work items across all rooms.
func (s Survey) ItemCount() int {
	n := 0
	for _, r := range s.Rooms {
		n += len(r.Items)
	}
	return n
}

// CatalogEntry is one priced service in the price book.
type CatalogEntry struct {
	Code             string  `json:"code" yaml:"code"`
	Description      string  `json:"description" yaml:"description"`
	OfferDescription string  `json:"offer_description,omitempty" yaml:"offer_description,omitempty"`
	Unit             string  `json:"unit" yaml:"unit"`
	MaterialCost     float64 `json:"material_cost" yaml:"material_cost"`
	LaborCost        float64 `json:"labor_cost" yaml:"labor_cost"`
	UnitPrice        float64 `json:"unit_price" yaml:"unit_price"`
	TotalExclTax     float64 `json:"total_excl_tax" yaml:"total_excl_tax"`
	TotalInclTax     float64 `json:"total_incl_tax" yaml:"total_incl_tax"`
	RowNum           int     `json:"row_num,omitempty" yaml:"row_num,omitempty"`
}

// OfferText returns the customer-facing description, falling back to the
// canonical one.
func (e CatalogEntry) OfferText() string {
	if e.OfferDescription != "" {
		return e.OfferDescription
	}
	return e.Description
}

// PriceExcl returns the pre-tax total, or the unit price when no total was set.
func (e CatalogEntry) PriceExcl() float64 {
	if e.TotalExclTax != 0 {
		return e.TotalExclTax
	}
	return e.UnitPrice
}

// MatchCandidate is a scored catalog entry. It only lives inside one ranking call.
type MatchCandidate struct {
	Entry     CatalogEntry
	Score     float64
	TextScore float64
	UnitScore float64
}

// String returns a short description for debug output
func (c MatchCandidate) String() string {
	return fmt.Sprintf("MatchCandidate{Code: %s, Score: %.3f, Text: %.3f, Unit: %.3f}",
		c.Entry.Code, c.Score, c.TextScore, c.UnitScore)
}

// MatchedEntry is a denormalized copy of the chosen catalog entry.
type MatchedEntry struct {
	Code             string  `json:"code"`
	Description      string  `json:"description"`
	OfferDescription string  `json:"offer_description"`
	Unit             string  `json:"unit"`
	MaterialCost     float64 `json:"material_cost"`
	LaborCost        float64 `json:"labor_cost"`
	UnitPrice        float64 `json:"unit_price"`
	PriceExcl        float64 `json:"price_excl"`
	PriceIncl        float64 `json:"price_incl"`
	RowNum           int     `json:"row_num,omitempty"`
}

// SnapshotEntry copies the fields of e that a MatchRecord keeps.
func SnapshotEntry(e CatalogEntry) MatchedEntry {
	return MatchedEntry{
		Code:             e.Code,
		Description:      e.Description,
		OfferDescription: e.OfferText(),
		Unit:             e.Unit,
		MaterialCost:     e.MaterialCost,
		LaborCost:        e.LaborCost,
		UnitPrice:        e.UnitPrice,
		PriceExcl:        e.PriceExcl(),
		PriceIncl:        e.TotalInclTax,
		RowNum:           e.RowNum,
	}
}

// Alternative is a runner-up offered to the reviewer.
type Alternative struct {
	Code        string  `json:"code"`
	Description string  `json:"description"`
	Unit        string  `json:"unit"`
	PriceExcl   float64 `json:"price_excl"`
	PriceIncl   float64 `json:"price_incl"`
	Score       float64 `json:"score"`
}

// AlternativeFrom builds an Alternative from a ranked candidate.
func AlternativeFrom(c MatchCandidate) Alternative {
	return Alternative{
		Code:        c.Entry.Code,
		Description: c.Entry.Description,
		Unit:        c.Entry.Unit,
		PriceExcl:   c.Entry.PriceExcl(),
		PriceIncl:   c.Entry.TotalInclTax,
		Score:       c.Score,
	}
}

// MatchRecord is the engine's output for a single work item.
type MatchRecord struct {
	ID           string        `json:"id"`
	Room         string        `json:"room"`
	Item         WorkItem      `json:"item"`
	Match        MatchedEntry  `json:"match"`
	Confidence   float64       `json:"confidence"`
	TextScore    float64       `json:"text_score"`
	UnitScore    float64       `json:"unit_score"`
	MatchType    MatchType     `json:"match_type"`
	Rationale    string        `json:"rationale,omitempty"`
	Status       Status        `json:"status"`
	Alternatives []Alternative `json:"alternatives"`
}

// LearnedCorrection is a human-confirmed (text, unit) -> code mapping.
type LearnedCorrection struct {
	Text        string    `json:"text"`
	Unit        string    `json:"unit"`
	Code        string    `json:"code"`
	Description string    `json:"description,omitempty"`
	Frequency   int       `json:"frequency"`
	LastUsed    time.Time `json:"last_used"`
	CreatedAt   time.Time `json:"created_at"`

	PreviousCode        string `json:"previous_code,omitempty"`
	PreviousDescription string `json:"previous_description,omitempty"`
}

// CorrectionEvent is what the override path writes into the correction store.
type CorrectionEvent struct {
	Text                string
	Unit                string
	ChosenCode          string
	ChosenDescription   string
	PreviousCode        string
	PreviousDescription string
}

// AIFeedback records how a reviewer responded to a semantic suggestion.
type AIFeedback struct {
	Text           string
	SuggestedCode  string
	Confidence     float64
	Rationale      string
	Accepted       bool
	UserChosenCode string
}

// Verdict is a validated reranker answer. Index is 0-based into the
// candidate list that was sent.
type Verdict struct {
	Index      int     `json:"index"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}
