package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var knownWorkers = []string{"aria", "zara", "kai"}

func TestAnalyzeNegativeResults(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"no workers", "please redesign the dashboard"},
		{"one worker", "I'll coordinate Aria to redesign the dashboard"},
		{"empty text", ""},
		{"unknown workers", "I'll coordinate Bob and Carol to do things"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Analyze(tt.text, knownWorkers)
			assert.False(t, res.HasIntent, "fewer than 2 known workers is a negative result")
			assert.Zero(t, res.Confidence)
			assert.Empty(t, res.Workers)
		})
	}
}

func TestAnalyzeCoordinationPhrase(t *testing.T) {
	res := Analyze("I'll coordinate Aria and Zara to redesign the dashboard", knownWorkers)

	require.True(t, res.HasIntent)
	assert.InDelta(t, 0.95, res.Confidence, 0.001)
	assert.Equal(t, []string{"aria", "zara"}, res.Workers)
	require.Len(t, res.TaskDescriptions, 1)
	assert.Contains(t, res.TaskDescriptions[0], "redesign the dashboard")
	assert.Equal(t, []string{"ill-coordinate-to"}, res.Patterns)
}

func TestAnalyzePhraseTable(t *testing.T) {
	tests := []struct {
		text    string
		pattern string
		desc    string
	}{
		{"Let's have Aria and Kai work on the signup flow.", "lets-have-work-on", "the signup flow"},
		{"We should coordinate zara and kai to fix the search index", "coordinate-to", "fix the search index"},
		{"Get aria and zara to handle the migration!", "get-to-handle", "the migration"},
		{"have Aria and Zara team up on the release notes", "collaborate-on", "the release notes"},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			res := Analyze(tt.text, knownWorkers)
			require.True(t, res.HasIntent, tt.text)
			require.Len(t, res.TaskDescriptions, 1)
			assert.Equal(t, tt.desc, res.TaskDescriptions[0])
			assert.Equal(t, []string{tt.pattern}, res.Patterns)
		})
	}
}

func TestAnalyzeSynthesizedDescription(t *testing.T) {
	res := Analyze("aria, zara and kai are all on deck", knownWorkers)
	require.True(t, res.HasIntent)
	require.Len(t, res.TaskDescriptions, 1)
	assert.Equal(t, "Coordinate aria, zara and kai", res.TaskDescriptions[0])
	assert.Equal(t, []string{"generic-coordination"}, res.Patterns)
}

func TestAnalyzeDeduplicatesWorkers(t *testing.T) {
	res := Analyze("Aria and aria and ARIA plus zara", knownWorkers)
	require.True(t, res.HasIntent)
	assert.Equal(t, []string{"aria", "zara"}, res.Workers)
}

func TestExtractTitle(t *testing.T) {
	res := Analyze(`Kick off the "Dashboard Redesign Workflow" with aria and zara`, knownWorkers)
	require.True(t, res.HasIntent)
	assert.Equal(t, "Dashboard Redesign Workflow", res.Title)

	res = Analyze("aria and zara, usual drill", knownWorkers)
	require.True(t, res.HasIntent)
	assert.Equal(t, defaultTitle, res.Title)
}
