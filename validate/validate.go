// Package validate implements the artifact safety gate. Every worker
// generated artifact passes through Validator.Validate before it may touch
// shared state. The gate is a fixed-order table of (pattern, severity,
// autofix) rules: each match produces a ValidationFinding and applies the
// paired rewrite. Critical findings without a safe rewrite are routed through
// an emergency intervention path that applies a last-resort substitution and
// flags the artifact for manual review instead of silently accepting it.
//
// Idempotence is a contract, not an accident: re-running Validate on the
// returned FixedContent yields a clean result with zero findings.
package validate

import (
	"fmt"
	"regexp"

	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/logging"
)

// Rule pairs a detection pattern with a severity and an optional rewrite.
// A nil Rewrite on a critical rule means no safe rewrite exists; matches are
// handled by the emergency path.
type Rule struct {
	ID       string
	Severity core.Severity
	Pattern  *regexp.Regexp
	Rewrite  func(content string) string
}

// Result is the outcome of one validation pass.
type Result struct {
	// IsValid is true when the input produced no findings at all.
	IsValid bool
	// Findings lists every rule match in scan order.
	Findings []core.ValidationFinding
	// FixedContent is the input after all rewrites and, when the emergency
	// path ran, the last-resort substitutions.
	FixedContent string
	// RequiresReview is set when a critical finding had no safe rewrite and
	// the emergency substitution was applied. Callers must not treat such an
	// artifact as accepted.
	RequiresReview bool
}

// Validator scans content against its rule table in a fixed order.
type Validator struct {
	rules  []Rule
	logger logging.Logger
}

// Options configure the Validator.
type Options struct {
	// Rules overrides the default rule table. Order matters.
	Rules []Rule
	// Logger receives one entry per validation pass.
	Logger logging.Logger
}

// New constructs a Validator with the default rule table unless overridden.
func New(optFns ...func(o *Options)) *Validator {
	opts := Options{Rules: DefaultRules(), Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Validator{rules: opts.Rules, logger: opts.Logger}
}

// Validate scans content, applies auto-fixes and returns the gated result.
// Only destructive-action and security-risk detections block acceptance
// outright; everything else is corrected and surfaced as a warning.
func (v *Validator) Validate(content string) Result {
	res := Result{FixedContent: content}

	for _, rule := range v.rules {
		matches := rule.Pattern.FindAllString(res.FixedContent, -1)
		if len(matches) == 0 {
			continue
		}
		fixable := rule.Rewrite != nil
		for _, m := range matches {
			res.Findings = append(res.Findings, core.ValidationFinding{
				RuleID:         rule.ID,
				Severity:       rule.Severity,
				MatchedSpan:    m,
				AutoFixApplied: fixable,
			})
		}
		if fixable {
			res.FixedContent = rule.Rewrite(res.FixedContent)
		}
	}

	// Emergency intervention: any critical pattern still present after the
	// fix pass gets the last-resort substitution and the artifact is flagged.
	for _, rule := range v.rules {
		if rule.Severity != core.SeverityCritical {
			continue
		}
		if !rule.Pattern.MatchString(res.FixedContent) {
			continue
		}
		res.FixedContent = rule.Pattern.ReplaceAllString(
			res.FixedContent,
			fmt.Sprintf("[removed:%s]", rule.ID),
		)
		res.RequiresReview = true
		v.logger.Warn("validator emergency intervention rule=%s", rule.ID)
	}

	res.IsValid = len(res.Findings) == 0
	if !res.IsValid {
		critical := 0
		for _, f := range res.Findings {
			if f.Severity == core.SeverityCritical {
				critical++
			}
		}
		v.logger.Info("validator findings=%d critical=%d review=%t",
			len(res.Findings), critical, res.RequiresReview)
	}
	return res
}
