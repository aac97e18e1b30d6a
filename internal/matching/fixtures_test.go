package matching

import (
	"context"
	"sync"

	"github.com/standardbeagle/pricematch/internal/types"
)

func testCatalog() []types.CatalogEntry {
	return []types.CatalogEntry{
		{Code: "B100", Description: "Wandbekleding verwijderen incl. lijmresten", Unit: "m2", TotalExclTax: 8.25, TotalInclTax: 9.98},
		{Code: "B200", Description: "Radiator demonteren en monteren", Unit: "stu", TotalExclTax: 95, TotalInclTax: 114.95},
		{Code: "B300", Description: "Plafond witten", Unit: "m2", TotalExclTax: 12.4, TotalInclTax: 15},
		{Code: "B400", Description: "Kozijn schilderen", Unit: "m1", TotalExclTax: 21, TotalInclTax: 25.41},
		{Code: "B500", Description: "Gipsplaat aanbrengen", Unit: "m2", TotalExclTax: 34.5, TotalInclTax: 41.75},
		{Code: "B600", Description: "Laminaat leggen", Unit: "m2", TotalExclTax: 27, TotalInclTax: 32.67},
		{Code: "B700", Description: "Binnendeur afhangen", Unit: "stu", TotalExclTax: 65, TotalInclTax: 78.65},
	}
}

func testSurvey() types.Survey {
	return types.Survey{Rooms: []types.Room{
		{Name: "Woonkamer", Items: []types.WorkItem{
			{Description: "behang verwijderen", Quantity: 32, Unit: "m2"},
			{Description: "plafond witten", Quantity: 18, Unit: "m²"},
		}},
		{Name: "Slaapkamer", Items: []types.WorkItem{
			{Description: "radiator demonteren", Quantity: 1, Unit: "stuks"},
			{Description: "kozijn schilderen", Quantity: 6.5, Unit: "meter"},
			{Description: "laminaat leggen", Quantity: 14, Unit: "m2"},
		}},
	}}
}

// fakeReranker returns a fixed verdict and records what it was asked.
type fakeReranker struct {
	mu      sync.Mutex
	verdict *types.Verdict
	max     int
	calls   int
	sizes   []int
}

func (f *fakeReranker) Rerank(_ context.Context, _ types.WorkItem, candidates []types.MatchCandidate) (*types.Verdict, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.sizes = append(f.sizes, len(candidates))
	if f.verdict == nil {
		return nil, false
	}
	v := *f.verdict
	return &v, true
}

func (f *fakeReranker) MaxCandidates() int {
	if f.max == 0 {
		return types.DefaultRerankCandidates
	}
	return f.max
}

func (f *fakeReranker) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
