package rbac

import (
	"context"
	"errors"
	"time"

	"github.com/authright-test/iga-test-sub000/pkg/observability"
)

// Checker answers "does user U have permission P, optionally scoped to
// resource R?" using the cache-aside pattern: cache first, store on
// miss, outcome written back with asymmetric TTLs.
//
// Failure semantics are fail-closed: any store or cache error is logged
// and resolves to deny. Callers never see an error from HasPermission.
//
// Known over-grant, preserved deliberately: for repository-scoped checks
// that find no role-derived match, membership in any team with access to
// the repository grants the check regardless of which permission was
// asked for. Fixing this would change authorization outcomes for
// existing deployments, so it is documented here instead.
type Checker struct {
	store   *Store
	cache   *Cache
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewChecker creates a permission checker with injected store and cache.
// The metrics parameter may be nil.
func NewChecker(store *Store, cache *Cache, logger *observability.Logger, metrics *observability.Metrics) *Checker {
	return &Checker{
		store:   store,
		cache:   cache,
		logger:  logger,
		metrics: metrics,
	}
}

// HasPermission reports whether the user holds the named permission. The
// resource is optional; repository resources enable the team-membership
// fallback.
func (c *Checker) HasPermission(ctx context.Context, userID int64, permission string, resource *Resource) bool {
	start := time.Now()
	allowed := c.check(ctx, userID, permission, resource)
	if c.metrics != nil {
		c.metrics.PermissionCheckDuration.Observe(time.Since(start).Seconds())
		outcome := "denied"
		if allowed {
			outcome = "allowed"
		}
		c.metrics.PermissionChecksTotal.WithLabelValues(outcome).Inc()
	}
	return allowed
}

func (c *Checker) check(ctx context.Context, userID int64, permission string, resource *Resource) bool {
	key := CacheKey(userID, permission, resource)

	cached, found, err := c.cache.Get(ctx, key)
	if err != nil {
		// Cache errors deny like store errors do; the store is not
		// consulted.
		c.logger.WithError(err).WithField("key", key).Warn("permission cache read failed")
		return false
	}
	if found {
		if c.metrics != nil {
			c.metrics.CacheHitsTotal.Inc()
		}
		return cached
	}
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}

	user, err := c.store.GetUserWithRoles(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Unknown user is a deny, but absence of a user is not a
			// permission fact worth caching.
			return false
		}
		c.logger.WithError(err).WithField("user_id", userID).Error("permission lookup failed")
		return false
	}

	for _, role := range user.Roles {
		for _, perm := range role.Permissions {
			if perm.Name == permission {
				c.writeBack(ctx, key, true)
				return true
			}
		}
	}

	if resource != nil && resource.Type == ResourceTypeRepository {
		member, err := c.store.IsUserOnRepositoryTeam(ctx, userID, resource.ID)
		if err != nil {
			c.logger.WithError(err).WithFields(map[string]interface{}{
				"user_id":       userID,
				"repository_id": resource.ID,
			}).Error("repository team lookup failed")
			return false
		}
		if member {
			c.writeBack(ctx, key, true)
			return true
		}
	}

	c.writeBack(ctx, key, false)
	return false
}

// writeBack stores the outcome in the cache. Concurrent checks for the
// same key may both write; last write wins and both write the same
// boolean, so no coordination is needed.
func (c *Checker) writeBack(ctx context.Context, key string, allowed bool) {
	if err := c.cache.Set(ctx, key, allowed); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("permission cache write failed")
	}
}
