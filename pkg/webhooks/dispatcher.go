package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/authright-test/iga-test-sub000/pkg/observability"
)

// Handler processes one webhook event. A returned error marks the
// delivery as failed; it is logged and surfaced, never dropped.
type Handler func(ctx context.Context, event *Event) error

// Dispatcher routes parsed events to the handlers registered for their
// type.
type Dispatcher struct {
	secret   []byte
	handlers map[EventType][]Handler
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewDispatcher creates a dispatcher that verifies deliveries against
// the shared webhook secret. Metrics may be nil.
func NewDispatcher(secret string, logger *observability.Logger, metrics *observability.Metrics) *Dispatcher {
	return &Dispatcher{
		secret:   []byte(secret),
		handlers: make(map[EventType][]Handler),
		logger:   logger,
		metrics:  metrics,
	}
}

// Register adds a handler for an event type. Handlers run in
// registration order.
func (d *Dispatcher) Register(eventType EventType, handler Handler) {
	d.handlers[eventType] = append(d.handlers[eventType], handler)
}

// VerifySignature checks the X-Hub-Signature-256 header against the
// request body. Comparison is constant time.
func (d *Dispatcher) VerifySignature(body []byte, signatureHeader string) bool {
	if len(d.secret) == 0 {
		return false
	}
	signature, ok := strings.CutPrefix(signatureHeader, "sha256=")
	if !ok {
		return false
	}

	mac := hmac.New(sha256.New, d.secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

// Dispatch runs every handler registered for the event's type. All
// handlers run even when an earlier one fails; the first error is
// returned. An event type with no handlers is not an error.
func (d *Dispatcher) Dispatch(ctx context.Context, event *Event) error {
	handlers := d.handlers[event.Type]
	if len(handlers) == 0 {
		d.logger.WithField("event_type", string(event.Type)).Debug("no handlers registered for event")
		d.record(event.Type, "ignored")
		return nil
	}

	var firstErr error
	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			d.logger.WithError(err).WithFields(map[string]interface{}{
				"event_type":  string(event.Type),
				"delivery_id": event.DeliveryID,
			}).Error("webhook handler failed")
			if firstErr == nil {
				firstErr = fmt.Errorf("handler for %s event failed: %w", event.Type, err)
			}
		}
	}

	if firstErr != nil {
		d.record(event.Type, "failed")
		return firstErr
	}
	d.record(event.Type, "handled")
	return nil
}

func (d *Dispatcher) record(eventType EventType, status string) {
	if d.metrics == nil {
		return
	}
	d.metrics.WebhookEventsTotal.WithLabelValues(string(eventType), status).Inc()
}
