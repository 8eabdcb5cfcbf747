package audit

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Handlers provides read-only HTTP access to the audit trail.
type Handlers struct {
	recorder *Recorder
	logger   *logrus.Logger
}

// NewHandlers creates new audit handlers.
func NewHandlers(recorder *Recorder, logger *logrus.Logger) *Handlers {
	return &Handlers{recorder: recorder, logger: logger}
}

// RegisterRoutes registers audit routes.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/audit", h.search).Methods("GET")
}

func (h *Handlers) search(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	entries, err := h.recorder.Search(r.Context(), filter)
	if err != nil {
		h.logger.WithError(err).Error("audit search failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

func filterFromQuery(r *http.Request) (Filter, error) {
	q := r.URL.Query()
	filter := Filter{
		Action:       q.Get("action"),
		ResourceType: q.Get("resource_type"),
		ResourceID:   q.Get("resource_id"),
		Limit:        100,
	}

	if v := q.Get("user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return filter, err
		}
		filter.UserID = &id
	}
	if v := q.Get("organization_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return filter, err
		}
		filter.OrganizationID = &id
	}
	if v := q.Get("start"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, err
		}
		filter.StartTime = &t
	}
	if v := q.Get("end"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, err
		}
		filter.EndTime = &t
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return filter, err
		}
		filter.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil {
			return filter, err
		}
		filter.Offset = offset
	}

	return filter, nil
}
