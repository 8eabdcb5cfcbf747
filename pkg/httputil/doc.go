// Package httputil provides the HTTP middleware shared by all API
// routes: request identifiers, structured request logging, and panic
// recovery.
package httputil
