// Package audit provides the append-only audit trail. Every mutation
// and enforcement run in the system records an entry here; entries are
// never updated or deleted, and write failures propagate to callers
// rather than being swallowed.
package audit
