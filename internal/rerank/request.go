// Package rerank asks an external semantic matcher to pick the best of a
// short list of lexical candidates. Every failure degrades to "no opinion".
package rerank

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/pricematch/internal/semantic"
	"github.com/standardbeagle/pricematch/internal/types"
	"github.com/standardbeagle/pricematch/internal/version"
)

const systemPrompt = "Je bent een expert in Nederlandse bouw- en renovatieterminologie. " +
	"Je koppelt werkzaamheden uit een opnamerapport aan posten uit een prijzenboek en antwoordt uitsluitend met JSON."

// Candidate is one numbered option as shown to the matcher.
type Candidate struct {
	Position    int // 1-based, as in the prompt
	Code        string
	Description string
	Unit        string
	PriceExcl   float64
	Score       float64
}

// Request is the deterministic payload for one rerank call.
type Request struct {
	Item        types.WorkItem
	Candidates  []Candidate
	System      string
	Prompt      string
	Fingerprint uint64
}

// Key returns the fingerprint as a cache key
func (r *Request) Key() string {
	return strconv.FormatUint(r.Fingerprint, 16)
}

// NewRequest builds the request for item and its ranked candidates.
func NewRequest(item types.WorkItem, ranked []types.MatchCandidate) *Request {
	cands := make([]Candidate, len(ranked))
	codes := make([]string, len(ranked))
	for i, c := range ranked {
		cands[i] = Candidate{
			Position:    i + 1,
			Code:        c.Entry.Code,
			Description: c.Entry.Description,
			Unit:        c.Entry.Unit,
			PriceExcl:   c.Entry.PriceExcl(),
			Score:       c.Score,
		}
		codes[i] = c.Entry.Code
	}

	return &Request{
		Item:        item,
		Candidates:  cands,
		System:      systemPrompt,
		Prompt:      buildPrompt(item, cands),
		Fingerprint: Fingerprint(item, codes),
	}
}

// Fingerprint hashes the normalized item text and unit together with the
// ordered candidate codes. Same inputs in the same order give the same key.
func Fingerprint(item types.WorkItem, codes []string) uint64 {
	h := xxhash.New()
	h.WriteString("v" + version.PromptVersion)
	h.Write([]byte{0})
	h.WriteString(semantic.NormalizeText(item.Description))
	h.Write([]byte{0})
	h.WriteString(semantic.NormalizeUnit(item.Unit))
	for _, code := range codes {
		h.Write([]byte{0})
		h.WriteString(code)
	}
	return h.Sum64()
}

func buildPrompt(item types.WorkItem, cands []Candidate) string {
	var b strings.Builder

	quantity := item.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	unit := item.Unit
	if unit == "" {
		unit = "stu"
	}

	b.WriteString("Je taak is om een werkzaamheid uit een opnamerapport te matchen met de beste optie uit een prijzenboek.\n\n")
	b.WriteString("WERKZAAMHEID UIT OPNAME:\n")
	fmt.Fprintf(&b, "- Omschrijving: %s\n", item.Description)
	fmt.Fprintf(&b, "- Hoeveelheid: %s\n", strconv.FormatFloat(quantity, 'f', -1, 64))
	fmt.Fprintf(&b, "- Eenheid: %s\n\n", unit)

	b.WriteString("KANDIDATEN UIT PRIJZENBOEK:\n")
	for _, c := range cands {
		cu := c.Unit
		if cu == "" {
			cu = "stu"
		}
		fmt.Fprintf(&b, "%d. Code: %s\n", c.Position, c.Code)
		fmt.Fprintf(&b, "   Omschrijving: %s\n", c.Description)
		fmt.Fprintf(&b, "   Eenheid: %s\n", cu)
		fmt.Fprintf(&b, "   Prijs: €%.2f per %s\n", c.PriceExcl, cu)
	}

	b.WriteString(`
INSTRUCTIES:
1. Bepaal wat er met de werkzaamheid precies bedoeld wordt
2. Vergelijk met elke kandidaat op:
   - Semantische betekenis (niet alleen tekst-overeenkomst)
   - Type werkzaamheid (verwijderen, vervangen, schilderen, etc.)
   - Materiaal of object (behang, kozijn, radiator, etc.)
   - Eenheid compatibiliteit (m2, m1, stuks, etc.)
3. Kies de beste match

Voorbeelden: "gipsplaten wand plaatsen" past bij "Gipsplaat aanbrengen"; "behang verwijderen" past bij "wandbekleding verwijderen incl. lijmresten".

Antwoord alleen met JSON in dit formaat:
{"best_match_index": 1, "confidence": 0.95, "reasoning": "Korte uitleg"}
`)
	fmt.Fprintf(&b, "waarbij best_match_index het nummer van de kandidaat is (1-%d).\n", len(cands))
	return b.String()
}
