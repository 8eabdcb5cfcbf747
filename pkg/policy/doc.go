// Package policy implements the governance rule engine: declarative
// condition documents evaluated against webhook events, and remediation
// actions executed against the GitHub API when a policy is violated.
//
// Evaluation fails safe: any error or panic while resolving conditions
// means "no violation". Enforcement is the opposite of atomic: actions
// run in order, a failed action does not stop later ones, and there is
// no rollback.
package policy
