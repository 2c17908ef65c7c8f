package intent

import (
	"regexp"
	"strings"
)

// coordinationRule pairs a named predicate with an extractor producing the
// trailing task clause. Rules are evaluated in table order; the first match
// wins.
type coordinationRule struct {
	name    string
	extract func(text string) (string, bool)
}

func regexExtractor(re *regexp.Regexp) func(string) (string, bool) {
	return func(text string) (string, bool) {
		m := re.FindStringSubmatch(text)
		if m == nil {
			return "", false
		}
		return m[len(m)-1], true
	}
}

// coordinationRules is the ordered phrase table. Each pattern captures the
// trailing clause after the worker list as the task description.
var coordinationRules = []coordinationRule{
	{
		name: "ill-coordinate-to",
		extract: regexExtractor(regexp.MustCompile(
			`(?i)\bI'?ll\s+coordinate\s+.+?\s+to\s+(.+?)[.!?]?\s*$`)),
	},
	{
		name: "lets-have-work-on",
		extract: regexExtractor(regexp.MustCompile(
			`(?i)\blet'?s\s+have\s+.+?\s+work\s+on\s+(.+?)[.!?]?\s*$`)),
	},
	{
		name: "coordinate-to",
		extract: regexExtractor(regexp.MustCompile(
			`(?i)\bcoordinate\s+.+?\s+to\s+(.+?)[.!?]?\s*$`)),
	},
	{
		name: "get-to-handle",
		extract: regexExtractor(regexp.MustCompile(
			`(?i)\bget\s+.+?\s+to\s+(?:work\s+on|handle)\s+(.+?)[.!?]?\s*$`)),
	},
	{
		name: "collaborate-on",
		extract: regexExtractor(regexp.MustCompile(
			`(?i)\bhave\s+.+?\s+(?:collaborate|team\s+up)\s+on\s+(.+?)[.!?]?\s*$`)),
	},
	{
		name: "assign-task-colon",
		extract: regexExtractor(regexp.MustCompile(
			`(?i)\btask\s*:\s*(.+?)\s*$`)),
	},
}

var titlePatterns = []*regexp.Regexp{
	regexp.MustCompile(`"([^"]*(?i:workflow|coordination)[^"]*)"`),
	regexp.MustCompile(`\*\*([^*]*(?i:workflow|coordination)[^*]*)\*\*`),
}

// extractTitle looks for a quoted or starred phrase naming the workflow and
// falls back to a generic title.
func extractTitle(text string) string {
	for _, re := range titlePatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return defaultTitle
}
