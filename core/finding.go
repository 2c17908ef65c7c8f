package core

// Severity classifies validation findings. High findings are cosmetic or
// structural and always auto-fixed; critical findings cover destructive
// actions, exposed secrets and known-dangerous patterns.
type Severity string

const (
	// SeverityHigh marks auto-fixable structural issues.
	SeverityHigh Severity = "high"
	// SeverityCritical marks findings that block acceptance unless a safe
	// rewrite neutralizes them.
	SeverityCritical Severity = "critical"
)

// ValidationFinding records one rule match produced by the safety gate.
type ValidationFinding struct {
	RuleID         string   `json:"rule_id"`
	Severity       Severity `json:"severity"`
	MatchedSpan    string   `json:"matched_span"`
	AutoFixApplied bool     `json:"auto_fix_applied"`
}
