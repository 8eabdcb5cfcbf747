package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/authright-test/iga-test-sub000/pkg/observability"
)

// AssignmentManager mutates the user/role and role/permission relations
// and keeps the permission cache consistent by invalidating every cached
// entry for each affected user.
//
// The mutation and the invalidation are not a single transaction: a
// concurrent check can observe either the pre- or post-mutation cached
// value inside that window. The window is bounded by the cache TTLs.
//
// When invalidation fails after the store write was applied, the
// mutation returns the error so callers surface it and retry; stale
// grants must not outlive a mutation silently.
type AssignmentManager struct {
	store   *Store
	cache   *Cache
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewAssignmentManager creates an assignment manager with injected store
// and cache. The metrics parameter may be nil.
func NewAssignmentManager(store *Store, cache *Cache, logger *observability.Logger, metrics *observability.Metrics) *AssignmentManager {
	return &AssignmentManager{
		store:   store,
		cache:   cache,
		logger:  logger,
		metrics: metrics,
	}
}

// AssignRole grants a role to a user. Returns (false, nil) if either
// entity does not exist; unexpected store errors propagate and the
// caller must fail closed.
func (m *AssignmentManager) AssignRole(ctx context.Context, userID, roleID int64) (bool, error) {
	if found, err := m.entitiesExist(ctx, userID, roleID); !found || err != nil {
		return false, err
	}

	if err := m.store.AssignRole(ctx, userID, roleID); err != nil {
		return false, fmt.Errorf("assign role: %w", err)
	}

	return true, m.invalidateUser(ctx, userID)
}

// RemoveRole revokes a role from a user. Returns (false, nil) if either
// entity does not exist.
func (m *AssignmentManager) RemoveRole(ctx context.Context, userID, roleID int64) (bool, error) {
	if found, err := m.entitiesExist(ctx, userID, roleID); !found || err != nil {
		return false, err
	}

	if err := m.store.RemoveRole(ctx, userID, roleID); err != nil {
		return false, fmt.Errorf("remove role: %w", err)
	}

	return true, m.invalidateUser(ctx, userID)
}

// AddPermissionToRole attaches a permission to a role and invalidates
// the cache of every user currently holding that role. System roles are
// rejected before any mutation.
func (m *AssignmentManager) AddPermissionToRole(ctx context.Context, roleID, permissionID int64) (bool, error) {
	role, err := m.roleAndPermissionExist(ctx, roleID, permissionID)
	if role == nil || err != nil {
		return false, err
	}

	if err := m.store.AddPermissionToRole(ctx, roleID, permissionID); err != nil {
		return false, fmt.Errorf("add permission to role: %w", err)
	}

	return true, m.invalidateRoleHolders(ctx, roleID)
}

// RemovePermissionFromRole detaches a permission from a role and
// invalidates the cache of every user currently holding that role.
// System roles are rejected before any mutation.
func (m *AssignmentManager) RemovePermissionFromRole(ctx context.Context, roleID, permissionID int64) (bool, error) {
	role, err := m.roleAndPermissionExist(ctx, roleID, permissionID)
	if role == nil || err != nil {
		return false, err
	}

	if err := m.store.RemovePermissionFromRole(ctx, roleID, permissionID); err != nil {
		return false, fmt.Errorf("remove permission from role: %w", err)
	}

	return true, m.invalidateRoleHolders(ctx, roleID)
}

// entitiesExist loads both referenced entities. A missing entity maps to
// (false, nil); store failures propagate.
func (m *AssignmentManager) entitiesExist(ctx context.Context, userID, roleID int64) (bool, error) {
	if _, err := m.store.GetUser(ctx, userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("load user: %w", err)
	}
	if _, err := m.store.GetRole(ctx, roleID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("load role: %w", err)
	}
	return true, nil
}

func (m *AssignmentManager) roleAndPermissionExist(ctx context.Context, roleID, permissionID int64) (*Role, error) {
	role, err := m.store.GetRole(ctx, roleID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load role: %w", err)
	}
	if role.IsSystem {
		return nil, ErrSystemRole
	}
	if _, err := m.store.GetPermission(ctx, permissionID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load permission: %w", err)
	}
	return role, nil
}

// invalidateUser drops every cached permission entry for a user. Stale
// grants must never persist past a mutation, so the whole prefix goes.
// One immediate retry covers transient connection drops; a persistent
// failure propagates to the caller.
func (m *AssignmentManager) invalidateUser(ctx context.Context, userID int64) error {
	err := m.cache.InvalidateUser(ctx, userID)
	if err != nil {
		err = m.cache.InvalidateUser(ctx, userID)
	}
	if err != nil {
		m.logger.WithError(err).WithField("user_id", userID).Error("permission cache invalidation failed")
		return fmt.Errorf("invalidate permission cache for user %d: %w", userID, err)
	}
	if m.metrics != nil {
		m.metrics.CacheInvalidationsTotal.Inc()
	}
	return nil
}

// invalidateRoleHolders fans invalidation out to every user holding the
// role. A failure for one holder does not skip the rest; the first
// failure is returned.
func (m *AssignmentManager) invalidateRoleHolders(ctx context.Context, roleID int64) error {
	userIDs, err := m.store.ListRoleUserIDs(ctx, roleID)
	if err != nil {
		m.logger.WithError(err).WithField("role_id", roleID).Error("failed to enumerate role holders for invalidation")
		return fmt.Errorf("list role holders: %w", err)
	}
	var firstErr error
	for _, userID := range userIDs {
		if err := m.invalidateUser(ctx, userID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
