package rerank

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	perrors "github.com/standardbeagle/pricematch/internal/errors"
	"github.com/standardbeagle/pricematch/internal/types"
)

const defaultRationale = "semantic match"

type rawVerdict struct {
	BestMatchIndex json.RawMessage `json:"best_match_index"`
	Confidence     json.RawMessage `json:"confidence"`
	Reasoning      *string         `json:"reasoning"`
	Rationale      *string         `json:"rationale"`
}

// ParseVerdict validates a matcher reply against n candidates. The returned
// index is 0-based. defaultConfidence is used when the reply has none.
func ParseVerdict(reply string, n int, defaultConfidence float64) (types.Verdict, error) {
	body, ok := extractObject(stripFences(reply))
	if !ok {
		return types.Verdict{}, perrors.NewRerankError(perrors.RerankMalformed, errors.New("no JSON object in reply"))
	}

	var raw rawVerdict
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return types.Verdict{}, perrors.NewRerankError(perrors.RerankMalformed, err)
	}

	if len(raw.BestMatchIndex) == 0 {
		return types.Verdict{}, perrors.NewRerankError(perrors.RerankMalformed, errors.New("best_match_index missing"))
	}
	idx, ok := number(raw.BestMatchIndex)
	if !ok || idx != math.Trunc(idx) {
		return types.Verdict{}, perrors.NewRerankError(perrors.RerankMalformed,
			fmt.Errorf("best_match_index %s is not an integer", string(raw.BestMatchIndex)))
	}
	if idx < 1 || idx > float64(n) {
		return types.Verdict{}, perrors.NewRerankError(perrors.RerankOutOfRange,
			fmt.Errorf("best_match_index %v outside 1..%d", idx, n))
	}

	confidence := defaultConfidence
	if len(raw.Confidence) > 0 && string(raw.Confidence) != "null" {
		c, ok := number(raw.Confidence)
		if !ok {
			return types.Verdict{}, perrors.NewRerankError(perrors.RerankMalformed,
				fmt.Errorf("confidence %s is not a number", string(raw.Confidence)))
		}
		confidence = c
	}

	rationale := defaultRationale
	switch {
	case raw.Reasoning != nil && strings.TrimSpace(*raw.Reasoning) != "":
		rationale = strings.TrimSpace(*raw.Reasoning)
	case raw.Rationale != nil && strings.TrimSpace(*raw.Rationale) != "":
		rationale = strings.TrimSpace(*raw.Rationale)
	}

	return types.Verdict{
		Index:      int(idx) - 1,
		Confidence: math.Max(0, math.Min(1, confidence)),
		Rationale:  rationale,
	}, nil
}

// number accepts a JSON number or a string holding one.
func number(raw json.RawMessage) (float64, bool) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, !math.IsNaN(f) && !math.IsInf(f, 0)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// stripFences removes a surrounding ``` or ```json code fence.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	var body []string
	for _, line := range lines[1:] {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			break
		}
		body = append(body, line)
	}
	return strings.Join(body, "\n")
}

// extractObject returns the first balanced top-level {...} in s, skipping
// braces inside JSON strings.
func extractObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
