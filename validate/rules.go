package validate

import (
	"regexp"

	"github.com/hupe1980/taskmesh/core"
)

var (
	reUseUser     = regexp.MustCompile(`\buseUser\b`)
	reConsoleLog  = regexp.MustCompile(`console\.log\([^)\n]*\);?`)
	reVarDecl     = regexp.MustCompile(`\bvar\s+([A-Za-z_]\w*)\s*=`)
	reRmRf        = regexp.MustCompile(`rm\s+-[rRf]+\s+[/~][^\s]*`)
	reDropTable   = regexp.MustCompile(`(?i)DROP\s+TABLE\s+[\w."]+`)
	reTruncate    = regexp.MustCompile(`(?i)TRUNCATE\s+TABLE\s+[\w."]+`)
	reSecretKey   = regexp.MustCompile(`\bsk-[A-Za-z0-9_-]{20,}\b`)
	reAWSKey      = regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`)
	rePrivateKey  = regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----`)
	reEvalCall    = regexp.MustCompile(`\beval\s*\(`)
	reCurlPipeSh  = regexp.MustCompile(`curl\s+[^\n|]*\|\s*(?:sudo\s+)?(?:ba|z)?sh\b`)
	reGitForceAll = regexp.MustCompile(`git\s+push\s+[^\n]*--force\b`)
)

func replaceAll(re *regexp.Regexp, repl string) func(string) string {
	return func(content string) string { return re.ReplaceAllString(content, repl) }
}

// DefaultRules returns the standard rule table in scan order. High severity
// rules always carry a rewrite so the idempotence contract holds; critical
// rules without a safe rewrite (Rewrite == nil) are resolved by the
// emergency path.
func DefaultRules() []Rule {
	return []Rule{
		// Structural / cosmetic issues: auto-fixed and logged.
		{
			ID:       "deprecated-use-user-hook",
			Severity: core.SeverityHigh,
			Pattern:  reUseUser,
			Rewrite:  replaceAll(reUseUser, "useAuth"),
		},
		{
			ID:       "stray-console-log",
			Severity: core.SeverityHigh,
			Pattern:  reConsoleLog,
			Rewrite:  replaceAll(reConsoleLog, ""),
		},
		{
			ID:       "var-declaration",
			Severity: core.SeverityHigh,
			Pattern:  reVarDecl,
			Rewrite:  replaceAll(reVarDecl, "const $1 ="),
		},

		// Destructive actions: safe rewrite neutralizes the command.
		{
			ID:       "destructive-rm",
			Severity: core.SeverityCritical,
			Pattern:  reRmRf,
			Rewrite:  replaceAll(reRmRf, `echo "blocked destructive removal"`),
		},
		{
			ID:       "drop-table",
			Severity: core.SeverityCritical,
			Pattern:  reDropTable,
			Rewrite:  replaceAll(reDropTable, "-- removed destructive statement"),
		},
		{
			ID:       "truncate-table",
			Severity: core.SeverityCritical,
			Pattern:  reTruncate,
			Rewrite:  replaceAll(reTruncate, "-- removed destructive statement"),
		},

		// Exposed secrets: redaction is always safe.
		{
			ID:       "exposed-api-key",
			Severity: core.SeverityCritical,
			Pattern:  reSecretKey,
			Rewrite:  replaceAll(reSecretKey, "[REDACTED]"),
		},
		{
			ID:       "exposed-aws-key",
			Severity: core.SeverityCritical,
			Pattern:  reAWSKey,
			Rewrite:  replaceAll(reAWSKey, "[REDACTED]"),
		},
		{
			ID:       "embedded-private-key",
			Severity: core.SeverityCritical,
			Pattern:  rePrivateKey,
			Rewrite:  replaceAll(rePrivateKey, "[REDACTED KEY MATERIAL]"),
		},

		// Known-dangerous structural patterns with no safe rewrite: the
		// emergency path substitutes and flags for manual review.
		{
			ID:       "eval-call",
			Severity: core.SeverityCritical,
			Pattern:  reEvalCall,
		},
		{
			ID:       "curl-pipe-shell",
			Severity: core.SeverityCritical,
			Pattern:  reCurlPipeSh,
		},
		{
			ID:       "force-push",
			Severity: core.SeverityCritical,
			Pattern:  reGitForceAll,
		},
	}
}
