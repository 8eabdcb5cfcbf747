// Package orgs manages the governed GitHub organizations: the store
// mapping org logins to app installations, and the periodic sync that
// detects revoked or suspended installations.
package orgs
