package semantic

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldDiacritics returns a fresh transformer; transform chains keep state and
// must not be shared between goroutines.
func foldDiacritics() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// NormalizeText lower-cases s, folds diacritics, turns punctuation into
// whitespace and collapses whitespace runs to single spaces.
func NormalizeText(s string) string {
	if s == "" {
		return ""
	}

	folded, _, err := transform.String(foldDiacritics(), s)
	if err != nil {
		folded = norm.NFC.String(s)
	}

	var b strings.Builder
	b.Grow(len(folded))
	pendingSpace := false
	for _, r := range folded {
		if unicode.IsSpace(r) || unicode.IsPunct(r) {
			pendingSpace = b.Len() > 0
			continue
		}
		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// Tokenize splits normalized text on whitespace.
func Tokenize(s string) []string {
	return strings.Fields(NormalizeText(s))
}

// stopWords are removed from both sides before keyword coverage is computed.
// Short Dutch function words plus the filler that price-book entries add
// ("incl.", "t.b.v.", "per").
var stopWords = map[string]bool{
	"de": true, "het": true, "een": true, "en": true, "van": true, "in": true,
	"op": true, "met": true, "voor": true, "te": true, "tot": true, "aan": true,
	"bij": true, "uit": true, "door": true, "naar": true, "om": true, "over": true,
	"of": true, "is": true, "zijn": true, "wordt": true, "worden": true,
	"die": true, "dat": true, "er": true, "al": true, "ca": true, "etc": true,
	"incl": true, "inclusief": true, "excl": true, "exclusief": true,
	"t": true, "b": true, "v": true, "tbv": true, "per": true, "x": true,
}

// IsStopWord reports whether token is ignored by keyword scoring.
func IsStopWord(token string) bool {
	return stopWords[token]
}

// ContentTokens tokenizes s and drops stop words, keeping first-seen order
// and removing duplicates.
func ContentTokens(s string) []string {
	tokens := Tokenize(s)
	out := make([]string, 0, len(tokens))
	seen := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		if IsStopWord(t) || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
