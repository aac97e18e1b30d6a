package semantic

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"

	"github.com/standardbeagle/pricematch/internal/debug"
)

// TokenSet is an unordered set of normalized tokens.
type TokenSet map[string]struct{}

// NewTokenSet builds a set from tokens.
func NewTokenSet(tokens ...string) TokenSet {
	s := make(TokenSet, len(tokens))
	for _, t := range tokens {
		s[t] = struct{}{}
	}
	return s
}

// Has reports whether t is in the set.
func (s TokenSet) Has(t string) bool {
	_, ok := s[t]
	return ok
}

// Intersects reports whether the two sets share at least one token.
func (s TokenSet) Intersects(other TokenSet) bool {
	small, large := s, other
	if len(small) > len(large) {
		small, large = large, small
	}
	for t := range small {
		if large.Has(t) {
			return true
		}
	}
	return false
}

// Sorted returns the tokens in lexical order.
func (s TokenSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// defaultConcepts is the built-in construction-trade vocabulary. Keys are
// concept names and also count as surface forms.
var defaultConcepts = map[string][]string{
	"verwijderen":    {"slopen", "weghalen", "uitbreken", "afbreken", "strippen", "verwijderd", "sloop"},
	"demonteren":     {"afkoppelen", "losnemen", "demontage", "afhangen"},
	"vervangen":      {"vernieuwen", "vervanging", "vernieuwing"},
	"schilderen":     {"verven", "lakken", "schilderwerk", "sauzen", "latexen"},
	"aanbrengen":     {"plaatsen", "monteren", "installeren", "leggen", "aanleggen", "montage"},
	"behang":         {"wandbekleding", "behangpapier", "behangen", "vliesbehang"},
	"gipsplaat":      {"gipsplaten", "gipskarton", "gipsbord", "gipskartonplaat"},
	"kozijn":         {"kozijnen", "raamkozijn", "deurkozijn"},
	"deur":           {"deuren", "binnendeur", "deurblad"},
	"plint":          {"plinten", "vloerplint", "vloerplinten"},
	"tegels":         {"tegel", "tegelwerk", "wandtegels", "vloertegels"},
	"vloerbedekking": {"vloerbekleding", "tapijt", "laminaat", "marmoleum", "vinyl"},
	"radiator":       {"radiatoren", "verwarmingselement", "convector"},
	"plafond":        {"plafonds", "zoldering"},
	"kit":            {"kitvoeg", "kitwerk", "afkitten", "kitten"},
	"wand":           {"muur", "wanden", "muren"},
	"reinigen":       {"schoonmaken", "schoonmaak", "opleveringsschoon"},
	"stucwerk":       {"stucen", "stukadoren", "pleisterwerk", "pleisteren"},
}

// SynonymDictionary maps tokens onto the full set of surface forms of every
// concept they belong to. It is read-only once built and safe to share.
type SynonymDictionary struct {
	concepts map[string][]string
	reverse  map[string][]string // term -> concept keys
}

// NewSynonymDictionary builds a dictionary from concept -> terms. Concept
// names and terms are normalized; terms that normalize to more than one word
// are dropped since expansion works per token.
func NewSynonymDictionary(concepts map[string][]string) *SynonymDictionary {
	d := &SynonymDictionary{
		concepts: make(map[string][]string, len(concepts)),
		reverse:  make(map[string][]string),
	}
	for concept, terms := range concepts {
		d.add(concept, terms)
	}
	d.buildReverseIndex()
	return d
}

func (d *SynonymDictionary) add(concept string, terms []string) {
	key := NormalizeText(concept)
	if key == "" || strings.Contains(key, " ") {
		debug.Log("SYNONYM", "skipping concept %q: not a single word", concept)
		return
	}
	seen := make(map[string]bool)
	for _, existing := range d.concepts[key] {
		seen[existing] = true
	}
	if !seen[key] {
		d.concepts[key] = append(d.concepts[key], key)
		seen[key] = true
	}
	for _, term := range terms {
		t := NormalizeText(term)
		if t == "" || strings.Contains(t, " ") || seen[t] {
			continue
		}
		seen[t] = true
		d.concepts[key] = append(d.concepts[key], t)
	}
}

func (d *SynonymDictionary) buildReverseIndex() {
	d.reverse = make(map[string][]string)
	keys := make([]string, 0, len(d.concepts))
	for k := range d.concepts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, term := range d.concepts[k] {
			d.reverse[term] = append(d.reverse[term], k)
		}
	}
}

// ConceptCount returns the number of concepts.
func (d *SynonymDictionary) ConceptCount() int {
	if d == nil {
		return 0
	}
	return len(d.concepts)
}

// Synonyms returns every surface form sharing a concept with token,
// including token itself. Unknown tokens return just themselves.
func (d *SynonymDictionary) Synonyms(token string) []string {
	if d == nil {
		return []string{token}
	}
	concepts := d.reverse[token]
	if len(concepts) == 0 {
		return []string{token}
	}
	out := []string{token}
	for _, c := range concepts {
		for _, term := range d.concepts[c] {
			if term != token {
				out = append(out, term)
			}
		}
	}
	return out
}

// Expand tokenizes text and unions in the synonyms of every token. The
// result always contains the original tokens.
func (d *SynonymDictionary) Expand(text string) TokenSet {
	return d.ExpandTokens(Tokenize(text))
}

// ExpandTokens is Expand for already normalized tokens.
func (d *SynonymDictionary) ExpandTokens(tokens []string) TokenSet {
	set := make(TokenSet, len(tokens))
	for _, t := range tokens {
		for _, s := range d.Synonyms(t) {
			set[s] = struct{}{}
		}
	}
	return set
}

var (
	defaultDictOnce sync.Once
	defaultDict     *SynonymDictionary
)

// DefaultSynonymDictionary returns the shared built-in dictionary.
func DefaultSynonymDictionary() *SynonymDictionary {
	defaultDictOnce.Do(func() {
		defaultDict = NewSynonymDictionary(defaultConcepts)
	})
	return defaultDict
}

// LoadSynonymDictionary merges the concepts in a KDL file over the built-in
// table. A missing file yields the built-in dictionary. Accepted forms:
//
//	concept "behang" {
//	    terms "wandbekleding" "behangpapier"
//	}
//	concept "steiger" { terms "rolsteiger"; }
//	concept "dakkapel" "dakopbouw" "koekoek"
func LoadSynonymDictionary(path string) (*SynonymDictionary, error) {
	if path == "" {
		return DefaultSynonymDictionary(), nil
	}
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		debug.Log("SYNONYM", "no synonym file at %s, using built-in table", path)
		return DefaultSynonymDictionary(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read synonym file %s: %w", path, err)
	}

	extra, err := parseSynonymKDL(string(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse synonym file %s: %w", path, err)
	}

	merged := make(map[string][]string, len(defaultConcepts)+len(extra))
	for k, v := range defaultConcepts {
		merged[k] = append([]string(nil), v...)
	}
	for k, v := range extra {
		merged[k] = append(merged[k], v...)
	}
	debug.Log("SYNONYM", "loaded %d concepts from %s", len(extra), path)
	return NewSynonymDictionary(merged), nil
}

func parseSynonymKDL(content string) (map[string][]string, error) {
	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, err
	}

	out := make(map[string][]string)
	for _, n := range doc.Nodes {
		if kdlNodeName(n) != "concept" {
			continue
		}
		args := kdlStringArgs(n)
		if len(args) == 0 {
			return nil, fmt.Errorf("concept node without a name")
		}
		name, terms := args[0], args[1:]
		for _, cn := range n.Children {
			if kdlNodeName(cn) == "terms" {
				terms = append(terms, kdlStringArgs(cn)...)
			}
		}
		out[name] = append(out[name], terms...)
	}
	return out, nil
}

func kdlNodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func kdlStringArgs(n *document.Node) []string {
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
