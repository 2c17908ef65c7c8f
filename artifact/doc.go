// Package artifact stores the validated outputs that task executions
// produce. The executor only hands artifacts to a Writer after they passed
// the safety validator, so everything in a store is either clean or carries
// its auto-fix findings alongside the fixed content.
//
// Callers should depend on the Writer interface rather than concrete types
// so alternative persistence layers can be substituted in tests or
// production.
package artifact
