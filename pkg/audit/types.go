package audit

import (
	"fmt"
	"time"
)

// Well-known audit actions recorded by the governance console.
const (
	ActionPolicyEnforced   = "policy_enforced"
	ActionRoleAssigned     = "role_assigned"
	ActionRoleRemoved      = "role_removed"
	ActionPolicyCreated    = "policy_created"
	ActionPolicyUpdated    = "policy_updated"
	ActionPolicyDeleted    = "policy_deleted"
	ActionWebhookReceived  = "webhook_received"
	ActionSyncFailed       = "org_sync_failed"
	ActionPermissionDenied = "permission_denied"
)

// Column limits enforced before insert. Oversized values are rejected,
// not truncated: a silently shortened audit record is worse than a
// failed write the caller can see.
const (
	maxActionLen       = 50
	maxResourceTypeLen = 50
	maxResourceIDLen   = 255
)

// Entry is an immutable audit record. Entries are append-only and never
// mutated after creation. The user reference is nullable: system actions
// carry no user, and user deletion nullifies the reference rather than
// cascading, so history survives.
type Entry struct {
	ID             int64                  `json:"id"`
	Action         string                 `json:"action"`
	ResourceType   string                 `json:"resource_type"`
	ResourceID     string                 `json:"resource_id"`
	Details        map[string]interface{} `json:"details,omitempty"`
	UserID         *int64                 `json:"user_id,omitempty"`
	OrganizationID *int64                 `json:"organization_id,omitempty"`
	IPAddress      string                 `json:"ip_address,omitempty"`
	UserAgent      string                 `json:"user_agent,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}

// Validate checks field length constraints before an insert is
// attempted.
func (e *Entry) Validate() error {
	if e.Action == "" {
		return fmt.Errorf("audit entry requires an action")
	}
	if len(e.Action) > maxActionLen {
		return fmt.Errorf("action exceeds %d characters", maxActionLen)
	}
	if len(e.ResourceType) > maxResourceTypeLen {
		return fmt.Errorf("resource type exceeds %d characters", maxResourceTypeLen)
	}
	if len(e.ResourceID) > maxResourceIDLen {
		return fmt.Errorf("resource id exceeds %d characters", maxResourceIDLen)
	}
	return nil
}

// Filter selects audit entries for search and export.
type Filter struct {
	UserID         *int64
	OrganizationID *int64
	Action         string
	ResourceType   string
	ResourceID     string
	StartTime      *time.Time
	EndTime        *time.Time
	Limit          int
	Offset         int
}
