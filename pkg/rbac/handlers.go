package rbac

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Handlers provides HTTP handlers for role and permission assignment.
type Handlers struct {
	manager *AssignmentManager
	checker *Checker
	store   *Store
	logger  *logrus.Logger
}

// NewHandlers creates new RBAC handlers.
func NewHandlers(manager *AssignmentManager, checker *Checker, store *Store, logger *logrus.Logger) *Handlers {
	return &Handlers{
		manager: manager,
		checker: checker,
		store:   store,
		logger:  logger,
	}
}

// RegisterRoutes registers RBAC routes.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/users/{userID}/roles/{roleID}", h.assignRole).Methods("POST")
	router.HandleFunc("/users/{userID}/roles/{roleID}", h.removeRole).Methods("DELETE")
	router.HandleFunc("/users/{userID}/permissions/check", h.checkPermission).Methods("GET")
	router.HandleFunc("/roles/{roleID}", h.getRole).Methods("GET")
	router.HandleFunc("/roles/{roleID}", h.deleteRole).Methods("DELETE")
	router.HandleFunc("/roles/{roleID}/permissions/{permissionID}", h.addPermission).Methods("POST")
	router.HandleFunc("/roles/{roleID}/permissions/{permissionID}", h.removePermission).Methods("DELETE")
}

func (h *Handlers) assignRole(w http.ResponseWriter, r *http.Request) {
	userID, roleID, ok := h.userRoleIDs(w, r)
	if !ok {
		return
	}

	assigned, err := h.manager.AssignRole(r.Context(), userID, roleID)
	h.writeMutationResult(w, r, assigned, err)
}

func (h *Handlers) removeRole(w http.ResponseWriter, r *http.Request) {
	userID, roleID, ok := h.userRoleIDs(w, r)
	if !ok {
		return
	}

	removed, err := h.manager.RemoveRole(r.Context(), userID, roleID)
	h.writeMutationResult(w, r, removed, err)
}

func (h *Handlers) addPermission(w http.ResponseWriter, r *http.Request) {
	roleID, permissionID, ok := h.rolePermissionIDs(w, r)
	if !ok {
		return
	}

	added, err := h.manager.AddPermissionToRole(r.Context(), roleID, permissionID)
	h.writeMutationResult(w, r, added, err)
}

func (h *Handlers) removePermission(w http.ResponseWriter, r *http.Request) {
	roleID, permissionID, ok := h.rolePermissionIDs(w, r)
	if !ok {
		return
	}

	removed, err := h.manager.RemovePermissionFromRole(r.Context(), roleID, permissionID)
	h.writeMutationResult(w, r, removed, err)
}

func (h *Handlers) getRole(w http.ResponseWriter, r *http.Request) {
	roleID, err := strconv.ParseInt(mux.Vars(r)["roleID"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid role id")
		return
	}

	role, err := h.store.GetRole(r.Context(), roleID)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "role not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("failed to load role")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, role)
}

func (h *Handlers) deleteRole(w http.ResponseWriter, r *http.Request) {
	roleID, err := strconv.ParseInt(mux.Vars(r)["roleID"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid role id")
		return
	}

	err = h.store.DeleteRole(r.Context(), roleID)
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "role not found")
	case errors.Is(err, ErrSystemRole):
		writeError(w, http.StatusUnprocessableEntity, "system roles cannot be deleted")
	case err != nil:
		h.logger.WithError(err).Error("failed to delete role")
		writeError(w, http.StatusInternalServerError, "internal error")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handlers) checkPermission(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(mux.Vars(r)["userID"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	permission := r.URL.Query().Get("permission")
	if permission == "" {
		writeError(w, http.StatusBadRequest, "permission query parameter is required")
		return
	}

	var resource *Resource
	if resourceID := r.URL.Query().Get("resource_id"); resourceID != "" {
		resource = &Resource{
			ID:   resourceID,
			Type: ResourceType(r.URL.Query().Get("resource_type")),
		}
	}

	allowed := h.checker.HasPermission(r.Context(), userID, permission, resource)
	writeJSON(w, http.StatusOK, map[string]bool{"allowed": allowed})
}

func (h *Handlers) userRoleIDs(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	vars := mux.Vars(r)
	userID, err := strconv.ParseInt(vars["userID"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return 0, 0, false
	}
	roleID, err := strconv.ParseInt(vars["roleID"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid role id")
		return 0, 0, false
	}
	return userID, roleID, true
}

func (h *Handlers) rolePermissionIDs(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	vars := mux.Vars(r)
	roleID, err := strconv.ParseInt(vars["roleID"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid role id")
		return 0, 0, false
	}
	permissionID, err := strconv.ParseInt(vars["permissionID"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid permission id")
		return 0, 0, false
	}
	return roleID, permissionID, true
}

func (h *Handlers) writeMutationResult(w http.ResponseWriter, r *http.Request, applied bool, err error) {
	switch {
	case errors.Is(err, ErrSystemRole):
		writeError(w, http.StatusUnprocessableEntity, "system roles cannot be modified")
	case err != nil:
		h.logger.WithError(err).WithField("path", r.URL.Path).Error("assignment mutation failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	case !applied:
		writeError(w, http.StatusNotFound, "referenced entity not found")
	default:
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
