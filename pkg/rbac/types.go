package rbac

import (
	"fmt"
	"time"
)

// Cache TTLs for permission check results. Positive results live longer;
// negative results expire sooner so a permission grant that races a check
// is observed within five minutes even if invalidation is missed.
const (
	PositiveResultTTL = 600 * time.Second
	NegativeResultTTL = 300 * time.Second
)

// GlobalScope is the resource segment used in cache keys for checks that
// are not scoped to a specific resource.
const GlobalScope = "global"

// UserStatus represents the lifecycle state of a user account. Users are
// never hard-deleted while audit history references them.
type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusDeleted   UserStatus = "deleted"
)

// User is an authenticated identity with assigned roles.
type User struct {
	ID        int64      `json:"id"`
	Login     string     `json:"login"`
	GitHubID  int64      `json:"github_id"`
	Status    UserStatus `json:"status"`
	Roles     []Role     `json:"roles,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Role is a named bundle of permissions, scoped to zero or one
// organization. System roles are immutable: they cannot be edited or
// deleted.
type Role struct {
	ID             int64        `json:"id"`
	Name           string       `json:"name"`
	Description    string       `json:"description"`
	OrganizationID *int64       `json:"organization_id,omitempty"`
	IsSystem       bool         `json:"is_system"`
	Permissions    []Permission `json:"permissions"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Permission is an atomic capability identified by a unique name such as
// "view:audit_logs", optionally qualified by a resource/action pair.
type Permission struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Resource string `json:"resource,omitempty"`
	Action   string `json:"action,omitempty"`
}

// ResourceType identifies the kind of resource a permission check is
// scoped to.
type ResourceType string

const (
	ResourceTypeRepository   ResourceType = "repository"
	ResourceTypeOrganization ResourceType = "organization"
	ResourceTypeTeam         ResourceType = "team"
)

// Resource optionally scopes a permission check to a concrete resource.
type Resource struct {
	ID   string       `json:"id"`
	Type ResourceType `json:"type"`
}

// CacheKey builds the cache key for a permission check. Format:
// permission:<userID>:<permissionName>:<resourceID|global>.
func CacheKey(userID int64, permission string, resource *Resource) string {
	scope := GlobalScope
	if resource != nil && resource.ID != "" {
		scope = resource.ID
	}
	return fmt.Sprintf("permission:%d:%s:%s", userID, permission, scope)
}

// UserKeyPattern matches every cached permission entry for a user. Used
// by coarse invalidation after role or permission mutations.
func UserKeyPattern(userID int64) string {
	return fmt.Sprintf("permission:%d:*", userID)
}
