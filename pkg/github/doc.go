// Package github implements the GitHub App client used for remediation:
// RS256 app JWTs, installation access token exchange, and the small set
// of REST calls policy enforcement needs. Every call carries an explicit
// timeout so a slow GitHub API surfaces as an action failure instead of
// a stuck enforcement run.
package github
