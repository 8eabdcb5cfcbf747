package policy

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Handlers provides HTTP handlers for policy CRUD.
type Handlers struct {
	store  *Store
	logger *logrus.Logger
}

// NewHandlers creates new policy handlers.
func NewHandlers(store *Store, logger *logrus.Logger) *Handlers {
	return &Handlers{store: store, logger: logger}
}

// RegisterRoutes registers policy routes.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/organizations/{orgID}/policies", h.list).Methods("GET")
	router.HandleFunc("/organizations/{orgID}/policies", h.create).Methods("POST")
	router.HandleFunc("/policies/{policyID}", h.get).Methods("GET")
	router.HandleFunc("/policies/{policyID}", h.update).Methods("PUT")
	router.HandleFunc("/policies/{policyID}", h.delete).Methods("DELETE")
	router.HandleFunc("/policies/{policyID}/activate", h.setActive(true)).Methods("POST")
	router.HandleFunc("/policies/{policyID}/deactivate", h.setActive(false)).Methods("POST")
}

func (h *Handlers) list(w http.ResponseWriter, r *http.Request) {
	orgID, err := strconv.ParseInt(mux.Vars(r)["orgID"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid organization id")
		return
	}

	policies, err := h.store.ListForOrganization(r.Context(), orgID)
	if err != nil {
		h.logger.WithError(err).Error("failed to list policies")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, policies)
}

func (h *Handlers) create(w http.ResponseWriter, r *http.Request) {
	orgID, err := strconv.ParseInt(mux.Vars(r)["orgID"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid organization id")
		return
	}

	var p Policy
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid policy document")
		return
	}
	p.OrganizationID = orgID

	if err := p.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := h.store.Create(r.Context(), &p); err != nil {
		h.logger.WithError(err).Error("failed to create policy")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusCreated, &p)
}

func (h *Handlers) get(w http.ResponseWriter, r *http.Request) {
	policyID, ok := h.policyID(w, r)
	if !ok {
		return
	}

	p, err := h.store.Get(r.Context(), policyID)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "policy not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("failed to load policy")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func (h *Handlers) update(w http.ResponseWriter, r *http.Request) {
	policyID, ok := h.policyID(w, r)
	if !ok {
		return
	}

	existing, err := h.store.Get(r.Context(), policyID)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "policy not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("failed to load policy")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	var p Policy
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid policy document")
		return
	}
	p.ID = policyID
	p.OrganizationID = existing.OrganizationID

	if err := p.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := h.store.Update(r.Context(), &p); err != nil {
		h.logger.WithError(err).Error("failed to update policy")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, &p)
}

func (h *Handlers) delete(w http.ResponseWriter, r *http.Request) {
	policyID, ok := h.policyID(w, r)
	if !ok {
		return
	}

	err := h.store.Delete(r.Context(), policyID)
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "policy not found")
	case err != nil:
		h.logger.WithError(err).Error("failed to delete policy")
		writeError(w, http.StatusInternalServerError, "internal error")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handlers) setActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		policyID, ok := h.policyID(w, r)
		if !ok {
			return
		}

		err := h.store.SetActive(r.Context(), policyID, active)
		switch {
		case errors.Is(err, ErrNotFound):
			writeError(w, http.StatusNotFound, "policy not found")
		case err != nil:
			h.logger.WithError(err).Error("failed to toggle policy")
			writeError(w, http.StatusInternalServerError, "internal error")
		default:
			writeJSON(w, http.StatusOK, map[string]bool{"is_active": active})
		}
	}
}

func (h *Handlers) policyID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	policyID, err := strconv.ParseInt(mux.Vars(r)["policyID"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid policy id")
		return 0, false
	}
	return policyID, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
