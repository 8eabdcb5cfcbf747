package policy

import (
	"fmt"
	"time"
)

// Severity classifies how serious a policy violation is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Condition types supported by the evaluator.
const (
	ConditionEquals      = "equals"
	ConditionNotEquals   = "not_equals"
	ConditionContains    = "contains"
	ConditionGreaterThan = "greater_than"
	ConditionLessThan    = "less_than"
)

// Action types supported by the executor.
const (
	ActionRevertChange     = "revert_change"
	ActionNotifyAdmin      = "notify_admin"
	ActionRemovePermission = "remove_permission"
	ActionLogEvent         = "log_event"
)

// Condition is a single declarative predicate over an event. Field is a
// dot-separated path into the event document (e.g. "repository.private").
type Condition struct {
	Type  string      `json:"type"`
	Field string      `json:"field"`
	Value interface{} `json:"value"`
}

// Validate rejects unknown condition types and empty field paths.
func (c Condition) Validate() error {
	switch c.Type {
	case ConditionEquals, ConditionNotEquals, ConditionContains,
		ConditionGreaterThan, ConditionLessThan:
	default:
		return fmt.Errorf("unknown condition type %q", c.Type)
	}
	if c.Field == "" {
		return fmt.Errorf("condition of type %q requires a field path", c.Type)
	}
	return nil
}

// Action is a single remediation directive. Params carries the
// type-specific parameters, e.g. "username" for remove_permission.
type Action struct {
	Type   string                 `json:"type"`
	Params map[string]interface{} `json:"params,omitempty"`
}

// Validate rejects unknown action types and checks the parameters each
// type requires.
func (a Action) Validate() error {
	switch a.Type {
	case ActionRevertChange, ActionNotifyAdmin, ActionLogEvent:
		return nil
	case ActionRemovePermission:
		if _, ok := a.Params["username"].(string); !ok {
			if a.Params == nil || a.Params["username"] == nil {
				// The member login can also come from the event payload,
				// so a missing parameter is allowed here.
				return nil
			}
			return fmt.Errorf("remove_permission username must be a string")
		}
		return nil
	default:
		return fmt.Errorf("unknown action type %q", a.Type)
	}
}

// Policy pairs a condition list (AND-composed triggers) with an ordered
// action list (remediations). Inactive policies are never evaluated.
type Policy struct {
	ID             int64       `json:"id"`
	OrganizationID int64       `json:"organization_id"`
	Name           string      `json:"name"`
	Description    string      `json:"description,omitempty"`
	Conditions     []Condition `json:"conditions"`
	Actions        []Action    `json:"actions"`
	Severity       Severity    `json:"severity"`
	IsActive       bool        `json:"is_active"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// Validate checks the whole policy document at the creation boundary.
// Condition and action documents are validated here, not at evaluation
// time, so a stored policy can always be evaluated without re-parsing.
func (p *Policy) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("policy requires a name")
	}
	if p.OrganizationID == 0 {
		return fmt.Errorf("policy requires an organization")
	}
	if !p.Severity.Valid() {
		return fmt.Errorf("unknown severity %q", p.Severity)
	}
	if len(p.Conditions) == 0 {
		return fmt.Errorf("policy requires at least one condition")
	}
	for i, c := range p.Conditions {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("condition %d: %w", i, err)
		}
	}
	if len(p.Actions) == 0 {
		return fmt.Errorf("policy requires at least one action")
	}
	for i, a := range p.Actions {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
	}
	return nil
}

// Rule is an optional finer-grained sub-rule of a policy carrying its
// own condition/action pair. Rules are ordered by ascending priority and
// individually toggleable.
type Rule struct {
	ID        int64     `json:"id"`
	PolicyID  int64     `json:"policy_id"`
	Condition Condition `json:"condition"`
	Action    Action    `json:"action"`
	Priority  int       `json:"priority"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the rule's condition and action documents.
func (r *Rule) Validate() error {
	if r.PolicyID == 0 {
		return fmt.Errorf("rule requires a policy")
	}
	if err := r.Condition.Validate(); err != nil {
		return fmt.Errorf("rule condition: %w", err)
	}
	if err := r.Action.Validate(); err != nil {
		return fmt.Errorf("rule action: %w", err)
	}
	return nil
}
