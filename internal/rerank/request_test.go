package rerank

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/pricematch/internal/types"
)

func testCandidates(codes ...string) []types.MatchCandidate {
	out := make([]types.MatchCandidate, len(codes))
	for i, code := range codes {
		out[i] = types.MatchCandidate{
			Entry: types.CatalogEntry{
				Code:         code,
				Description:  "omschrijving " + code,
				Unit:         "m2",
				TotalExclTax: 10.5 + float64(i),
			},
			Score: 0.9 - float64(i)*0.1,
		}
	}
	return out
}

func TestNewRequest(t *testing.T) {
	item := types.WorkItem{Description: "Behang verwijderen", Quantity: 12.5, Unit: "m²"}
	req := NewRequest(item, testCandidates("A1", "B2"))

	require.Len(t, req.Candidates, 2)
	assert.Equal(t, 1, req.Candidates[0].Position)
	assert.Equal(t, 2, req.Candidates[1].Position)
	assert.Equal(t, "B2", req.Candidates[1].Code)
	assert.Equal(t, systemPrompt, req.System)

	assert.Contains(t, req.Prompt, "Omschrijving: Behang verwijderen")
	assert.Contains(t, req.Prompt, "Hoeveelheid: 12.5")
	assert.Contains(t, req.Prompt, "1. Code: A1")
	assert.Contains(t, req.Prompt, "2. Code: B2")
	assert.Contains(t, req.Prompt, "€10.50 per m2")
	assert.Contains(t, req.Prompt, "(1-2)")
}

func TestNewRequest_DefaultsQuantityAndUnit(t *testing.T) {
	req := NewRequest(types.WorkItem{Description: "deur afhangen"}, testCandidates("D1"))
	assert.Contains(t, req.Prompt, "Hoeveelheid: 1\n")
	assert.Contains(t, req.Prompt, "Eenheid: stu\n")
}

func TestFingerprint(t *testing.T) {
	item := types.WorkItem{Description: "Behang  verwijderen!", Unit: "M2"}
	same := types.WorkItem{Description: "behang verwijderen", Unit: "m2", Quantity: 40}

	a := Fingerprint(item, []string{"A", "B"})
	assert.Equal(t, a, Fingerprint(same, []string{"A", "B"}), "normalization and quantity do not affect the key")
	assert.NotEqual(t, a, Fingerprint(item, []string{"B", "A"}), "candidate order matters")
	assert.NotEqual(t, a, Fingerprint(item, []string{"A"}))
	assert.NotEqual(t, a, Fingerprint(types.WorkItem{Description: "behang verwijderen", Unit: "m1"}, []string{"A", "B"}))

	// separators prevent code concatenation collisions
	assert.NotEqual(t, Fingerprint(item, []string{"AB", "C"}), Fingerprint(item, []string{"A", "BC"}))
}

func TestRequestKey(t *testing.T) {
	req := NewRequest(types.WorkItem{Description: "kozijn schilderen"}, testCandidates("K1"))
	key := req.Key()
	assert.NotEmpty(t, key)
	assert.Equal(t, strings.ToLower(key), key)
	assert.Equal(t, key, NewRequest(types.WorkItem{Description: "kozijn schilderen"}, testCandidates("K1")).Key())
}
