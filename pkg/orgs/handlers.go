package orgs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/authright-test/iga-test-sub000/pkg/webhooks"
)

// Handlers provides read endpoints for governed organizations.
type Handlers struct {
	store  *Store
	logger *logrus.Logger
}

// NewHandlers creates organization handlers.
func NewHandlers(store *Store, logger *logrus.Logger) *Handlers {
	return &Handlers{store: store, logger: logger}
}

// RegisterRoutes registers organization routes.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/organizations", h.list).Methods("GET")
	router.HandleFunc("/organizations/{orgID}", h.get).Methods("GET")
}

func (h *Handlers) list(w http.ResponseWriter, r *http.Request) {
	organizations, err := h.store.List(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("failed to list organizations")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(organizations)
}

func (h *Handlers) get(w http.ResponseWriter, r *http.Request) {
	orgID, err := strconv.ParseInt(mux.Vars(r)["orgID"], 10, 64)
	if err != nil {
		http.Error(w, "invalid organization id", http.StatusBadRequest)
		return
	}

	org, err := h.store.Get(r.Context(), orgID)
	if errors.Is(err, ErrNotFound) {
		http.Error(w, "organization not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("failed to load organization")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(org)
}

// NewInstallationHandler returns the webhook handler that keeps the
// organization registry in sync with installation events: created and
// unsuspended installations are upserted active, deleted and suspended
// ones are marked suspended.
func NewInstallationHandler(store *Store) webhooks.Handler {
	return func(ctx context.Context, event *webhooks.Event) error {
		if event.Payload.Installation == nil {
			return nil
		}
		// Installation lifecycle payloads carry the account on the
		// installation itself; a top-level organization, when present,
		// wins.
		account := event.Payload.Organization
		if account == nil {
			account = event.Payload.Installation.Account
		}
		if account == nil {
			return nil
		}

		switch event.Payload.Action {
		case "created", "unsuspend", "new_permissions_accepted":
			org := &Organization{
				GitHubID:       account.ID,
				Login:          account.Login,
				InstallationID: event.Payload.Installation.ID,
				Status:         StatusActive,
			}
			return store.Upsert(ctx, org)
		case "deleted", "suspend":
			existing, err := store.GetByLogin(ctx, account.Login)
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			return store.SetStatus(ctx, existing.ID, StatusSuspended)
		}
		return nil
	}
}
