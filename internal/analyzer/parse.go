package analyzer

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/aristath/agentorch/internal/session"
)

// Complexity grades how much planning a query needs.
type Complexity string

const (
	Simple   Complexity = "simple"
	Moderate Complexity = "moderate"
	Complex  Complexity = "complex"
)

// Analysis is the orchestrator's classification of a query.
type Analysis struct {
	TaskType             string     `json:"taskType"`
	RequiredCapabilities []string   `json:"requiredCapabilities"`
	Complexity           Complexity `json:"complexity"`
	EstimatedSubtasks    int        `json:"estimatedSubtasks"`
}

// DefaultAnalysis is used whenever the model's analysis cannot be trusted.
func DefaultAnalysis() Analysis {
	return Analysis{
		TaskType:             "unknown",
		RequiredCapabilities: []string{},
		Complexity:           Moderate,
		EstimatedSubtasks:    1,
	}
}

// ParseResult is a parsed analysis, or the default with the reason it was
// substituted.
type ParseResult struct {
	Analysis Analysis
	Fallback bool
	Reason   string
}

func fallback(reason string) ParseResult {
	return ParseResult{Analysis: DefaultAnalysis(), Fallback: true, Reason: reason}
}

// ExtractJSONObject returns the first balanced {...} span in text that is
// valid JSON.
func ExtractJSONObject(text string) (string, bool) {
	return extractBalanced(text, '{', '}')
}

// ExtractJSONArray returns the first balanced [...] span in text that is
// valid JSON.
func ExtractJSONArray(text string) (string, bool) {
	return extractBalanced(text, '[', ']')
}

func extractBalanced(text string, open, close byte) (string, bool) {
	for start := strings.IndexByte(text, open); start >= 0; {
		if end := matchClose(text, start, open, close); end > 0 {
			candidate := text[start : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate, true
			}
		}
		next := strings.IndexByte(text[start+1:], open)
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

// matchClose returns the index of the delimiter closing the one at start,
// skipping delimiters inside JSON strings, or -1.
func matchClose(text string, start int, open, close byte) int {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == open:
			depth++
		case c == close:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// ParseAnalysis extracts and validates an analysis from free-form model
// output. taskType, requiredCapabilities and complexity must be present; an
// unknown complexity becomes moderate.
func ParseAnalysis(text string) ParseResult {
	raw, ok := ExtractJSONObject(text)
	if !ok {
		return fallback("no JSON object in response")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return fallback(fmt.Sprintf("invalid JSON: %v", err))
	}
	for _, key := range []string{"taskType", "requiredCapabilities", "complexity"} {
		if v, ok := fields[key]; !ok || string(v) == "null" {
			return fallback("missing field " + key)
		}
	}

	var a Analysis
	if err := json.Unmarshal(fields["taskType"], &a.TaskType); err != nil {
		return fallback("taskType is not a string")
	}
	if err := json.Unmarshal(fields["requiredCapabilities"], &a.RequiredCapabilities); err != nil {
		return fallback("requiredCapabilities is not a list of strings")
	}
	var complexity string
	if err := json.Unmarshal(fields["complexity"], &complexity); err != nil {
		return fallback("complexity is not a string")
	}

	a.Complexity = Complexity(strings.ToLower(strings.TrimSpace(complexity)))
	switch a.Complexity {
	case Simple, Moderate, Complex:
	default:
		a.Complexity = Moderate
	}

	a.EstimatedSubtasks = 1
	if v, ok := fields["estimatedSubtasks"]; ok {
		var n float64
		if json.Unmarshal(v, &n) == nil && n >= 1 && n <= math.MaxInt32 {
			a.EstimatedSubtasks = int(n)
		}
	}
	if a.RequiredCapabilities == nil {
		a.RequiredCapabilities = []string{}
	}
	return ParseResult{Analysis: a}
}

// Item is one element of a decomposition as the model wrote it.
type Item struct {
	Description          string            `json:"description"`
	RequiredCapabilities []string          `json:"requiredCapabilities"`
	Dependencies         []json.RawMessage `json:"dependencies"`
}

// ParseDecomposition extracts the decomposition array from model output.
func ParseDecomposition(text string) ([]Item, error) {
	raw, ok := ExtractJSONArray(text)
	if !ok {
		return nil, fmt.Errorf("no JSON array in response")
	}
	var items []Item
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("invalid decomposition: %w", err)
	}
	return items, nil
}

// ResolveDependencies turns decomposition items into pending subtasks with
// fresh ids. Dependencies written as 1-based positions (numbers or numeric
// strings) become the ids of those subtasks; self-references, out-of-range
// positions, positions of dropped items and anything non-numeric are
// discarded. Items without a description are dropped.
func ResolveDependencies(items []Item, newID func() string) []*session.Subtask {
	ids := make([]string, len(items))
	for i, it := range items {
		if strings.TrimSpace(it.Description) != "" {
			ids[i] = newID()
		}
	}

	out := make([]*session.Subtask, 0, len(items))
	for i, it := range items {
		if ids[i] == "" {
			continue
		}
		deps := []string{}
		for _, ref := range it.Dependencies {
			pos, ok := position(ref)
			if !ok || pos < 1 || pos > len(items) || pos-1 == i {
				continue
			}
			dep := ids[pos-1]
			if dep == "" || slices.Contains(deps, dep) {
				continue
			}
			deps = append(deps, dep)
		}
		caps := it.RequiredCapabilities
		if caps == nil {
			caps = []string{}
		}
		out = append(out, &session.Subtask{
			ID:                   ids[i],
			Description:          strings.TrimSpace(it.Description),
			RequiredCapabilities: caps,
			Dependencies:         deps,
			Status:               session.SubtaskPending,
		})
	}
	return out
}

// position reads a 1-based index from a JSON number or numeric string.
func position(raw json.RawMessage) (int, bool) {
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		v, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return 0, false
		}
		return v, true
	}
	if n != math.Trunc(n) || n > math.MaxInt32 || n < math.MinInt32 {
		return 0, false
	}
	return int(n), true
}
