package webhooks

import (
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// maxBodySize caps webhook delivery bodies at 5 MiB, well above
// GitHub's own payload limit.
const maxBodySize = 5 << 20

// Handlers exposes the webhook receiver endpoint.
type Handlers struct {
	dispatcher *Dispatcher
	logger     *logrus.Logger
}

// NewHandlers creates webhook HTTP handlers.
func NewHandlers(dispatcher *Dispatcher, logger *logrus.Logger) *Handlers {
	return &Handlers{dispatcher: dispatcher, logger: logger}
}

// RegisterRoutes registers the receiver route.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/webhooks/github", h.receive).Methods("POST")
}

func (h *Handlers) receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	if !h.dispatcher.VerifySignature(body, r.Header.Get("X-Hub-Signature-256")) {
		h.logger.Warn("webhook delivery rejected, signature mismatch")
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	eventType := EventType(r.Header.Get("X-GitHub-Event"))
	if eventType == "" {
		http.Error(w, "missing event type", http.StatusBadRequest)
		return
	}

	deliveryID := r.Header.Get("X-GitHub-Delivery")
	if deliveryID == "" {
		deliveryID = uuid.NewString()
	}

	event, err := ParseEvent(eventType, deliveryID, body)
	if err != nil {
		h.logger.WithError(err).Warn("webhook delivery rejected, malformed payload")
		http.Error(w, "malformed payload", http.StatusBadRequest)
		return
	}

	if err := h.dispatcher.Dispatch(r.Context(), event); err != nil {
		h.logger.WithError(err).WithField("delivery_id", deliveryID).Error("webhook processing failed")
		http.Error(w, "processing failed", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}
