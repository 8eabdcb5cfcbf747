// Package rbac implements permission checking for the governance
// console: a Redis cache-aside layer in front of the Postgres role and
// permission graph, plus the assignment operations that mutate that
// graph and invalidate stale cache entries.
//
// Authorization is fail-closed throughout: lookup errors, missing users
// and cache trouble all resolve to deny.
package rbac
