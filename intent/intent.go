// Package intent extracts coordination intents from free-form text: which
// known workers are named and what they should work on. Detection is a
// structured, ordered rule table of (pattern, extractor) pairs so new
// coordination phrasing can be added without touching control flow. Fewer
// than two recognized workers is a negative result, not an error.
package intent

import (
	"fmt"
	"strings"
)

// Intent is the result of analyzing one piece of text.
type Intent struct {
	// HasIntent is true only when at least two known workers are named.
	HasIntent bool `json:"has_intent"`
	// Confidence is a fixed high value when HasIntent, zero otherwise.
	Confidence float64 `json:"confidence"`
	// Workers lists the recognized worker ids, deduplicated, in the order
	// they are known (not the order they appear in the text).
	Workers []string `json:"workers,omitempty"`
	// TaskDescriptions holds the extracted task clauses. At least one
	// (possibly synthesized) entry when HasIntent.
	TaskDescriptions []string `json:"task_descriptions,omitempty"`
	// Title is the best-effort workflow title.
	Title string `json:"title,omitempty"`
	// Patterns names the coordination patterns that matched, for diagnostics.
	Patterns []string `json:"patterns,omitempty"`
}

// detectionConfidence is the fixed confidence assigned when at least two
// workers are recognized. No partial scoring is performed.
const detectionConfidence = 0.95

// defaultTitle is used when no explicit title phrase is found.
const defaultTitle = "Multi-Agent Coordination"

// Analyze scans text for a coordination intent against the set of known
// worker ids. Matching is case-insensitive substring matching; the rule
// table runs in order and the first matching pattern wins.
func Analyze(text string, knownWorkerIDs []string) Intent {
	workers := scanWorkers(text, knownWorkerIDs)
	if len(workers) < 2 {
		return Intent{}
	}

	out := Intent{
		HasIntent:  true,
		Confidence: detectionConfidence,
		Workers:    workers,
		Title:      extractTitle(text),
	}

	for _, rule := range coordinationRules {
		desc, ok := rule.extract(text)
		if !ok {
			continue
		}
		out.TaskDescriptions = []string{strings.TrimSpace(desc)}
		out.Patterns = []string{rule.name}
		break
	}
	if len(out.TaskDescriptions) == 0 {
		out.TaskDescriptions = []string{synthesizeDescription(workers)}
		out.Patterns = []string{"generic-coordination"}
	}
	return out
}

// scanWorkers returns the known worker ids found in text, deduplicated,
// preserving the order of knownWorkerIDs.
func scanWorkers(text string, knownWorkerIDs []string) []string {
	lower := strings.ToLower(text)
	seen := make(map[string]bool, len(knownWorkerIDs))
	var found []string
	for _, id := range knownWorkerIDs {
		if id == "" || seen[id] {
			continue
		}
		if strings.Contains(lower, strings.ToLower(id)) {
			seen[id] = true
			found = append(found, id)
		}
	}
	return found
}

// synthesizeDescription builds the generic fallback task description.
func synthesizeDescription(workers []string) string {
	return fmt.Sprintf("Coordinate %s", joinWithAnd(workers))
}

func joinWithAnd(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	default:
		return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
	}
}
