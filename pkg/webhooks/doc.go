// Package webhooks receives GitHub webhook deliveries, verifies their
// signatures, and dispatches them to typed handlers. Handlers return
// errors instead of firing and forgetting, so a failed enforcement run
// is visible to the caller and in the delivery response.
package webhooks
