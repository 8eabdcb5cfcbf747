package policy

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/authright-test/iga-test-sub000/pkg/audit"
	"github.com/authright-test/iga-test-sub000/pkg/observability"
)

// GitHubAPI is the slice of the GitHub client the executor needs.
type GitHubAPI interface {
	CreateInstallationToken(ctx context.Context, installationID int64) (string, error)
	SetRepositoryVisibility(ctx context.Context, token, owner, repo string, private bool) error
	RemoveCollaborator(ctx context.Context, token, owner, repo, username string) error
}

// AuditWriter appends audit entries produced by enforcement runs.
type AuditWriter interface {
	Create(ctx context.Context, entry *audit.Entry) error
}

// ExecContext identifies the installation the remediation actions run
// against.
type ExecContext struct {
	InstallationID int64
	OrganizationID int64
	OrgLogin       string
}

// Executor runs a violated policy's remediation actions against the
// GitHub API and records the enforcement in the audit trail.
type Executor struct {
	github  GitHubAPI
	audit   AuditWriter
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewExecutor creates a policy action executor. Metrics may be nil.
func NewExecutor(github GitHubAPI, auditWriter AuditWriter, logger *observability.Logger, metrics *observability.Metrics) *Executor {
	return &Executor{
		github:  github,
		audit:   auditWriter,
		logger:  logger,
		metrics: metrics,
	}
}

// Execute runs the policy's actions in list order. An installation token
// is acquired before any action runs; if that fails the whole call fails
// and nothing is attempted. Once actions start, a failed action is
// logged and counted but does not stop later actions, and nothing is
// rolled back. After the action loop a policy_enforced audit entry is
// written unconditionally; an audit write failure is returned to the
// caller rather than swallowed.
func (e *Executor) Execute(ctx context.Context, p *Policy, event map[string]interface{}, exec ExecContext) error {
	token, err := e.github.CreateInstallationToken(ctx, exec.InstallationID)
	if err != nil {
		return fmt.Errorf("failed to create installation token for installation %d: %w", exec.InstallationID, err)
	}

	log := e.logger.WithFields(map[string]interface{}{
		"policy_id":   p.ID,
		"policy_name": p.Name,
		"severity":    string(p.Severity),
	})

	for i, action := range p.Actions {
		if err := e.runAction(ctx, token, action, event); err != nil {
			log.WithError(err).WithFields(map[string]interface{}{
				"action_type":  action.Type,
				"action_index": i,
			}).Error("remediation action failed, continuing with remaining actions")
			if e.metrics != nil {
				e.metrics.PolicyActionErrorsTotal.WithLabelValues(action.Type).Inc()
			}
		}
	}

	if e.metrics != nil {
		e.metrics.PolicyEnforcementsTotal.WithLabelValues(string(p.Severity)).Inc()
	}

	orgID := exec.OrganizationID
	entry := &audit.Entry{
		Action:       audit.ActionPolicyEnforced,
		ResourceType: "repository",
		ResourceID:   eventRepositoryID(event),
		Details: map[string]interface{}{
			"policy_id":   p.ID,
			"policy_name": p.Name,
			"severity":    string(p.Severity),
			"event":       event,
		},
	}
	if orgID != 0 {
		entry.OrganizationID = &orgID
	}

	if err := e.audit.Create(ctx, entry); err != nil {
		return fmt.Errorf("failed to record policy enforcement: %w", err)
	}

	log.Info("policy enforced")
	return nil
}

func (e *Executor) runAction(ctx context.Context, token string, action Action, event map[string]interface{}) error {
	switch action.Type {
	case ActionRevertChange:
		return e.revertChange(ctx, token, event)
	case ActionNotifyAdmin:
		e.logger.WithField("event_action", event["action"]).Info("admin notification requested for policy violation")
		return nil
	case ActionRemovePermission:
		return e.removePermission(ctx, token, action, event)
	case ActionLogEvent:
		return nil
	default:
		return fmt.Errorf("unknown action type %q", action.Type)
	}
}

// revertChange forces the affected repository back to private when the
// event says it was made public. Other events are left alone.
func (e *Executor) revertChange(ctx context.Context, token string, event map[string]interface{}) error {
	owner, name, err := eventRepository(event)
	if err != nil {
		return err
	}

	if !repositoryMadePublic(event) {
		e.logger.WithField("repository", owner+"/"+name).Debug("revert_change skipped, event is not a visibility change")
		return nil
	}

	if err := e.github.SetRepositoryVisibility(ctx, token, owner, name, true); err != nil {
		return fmt.Errorf("failed to revert %s/%s to private: %w", owner, name, err)
	}
	return nil
}

// removePermission removes a member's collaborator access from the
// affected repository. The login comes from the action parameters, or
// from the event's member payload when the parameter is absent.
func (e *Executor) removePermission(ctx context.Context, token string, action Action, event map[string]interface{}) error {
	owner, name, err := eventRepository(event)
	if err != nil {
		return err
	}

	username, _ := action.Params["username"].(string)
	if username == "" {
		if resolved, ok := resolvePath(event, "member.login"); ok {
			username, _ = resolved.(string)
		}
	}
	if username == "" {
		return fmt.Errorf("remove_permission has no target username")
	}

	if err := e.github.RemoveCollaborator(ctx, token, owner, name, username); err != nil {
		return fmt.Errorf("failed to remove collaborator %s from %s/%s: %w", username, owner, name, err)
	}
	return nil
}

func repositoryMadePublic(event map[string]interface{}) bool {
	if action, ok := resolvePath(event, "action"); ok && action == "publicized" {
		return true
	}
	if visibility, ok := resolvePath(event, "visibility"); ok && visibility == "public" {
		return true
	}
	if private, ok := resolvePath(event, "repository.private"); ok && private == false {
		return true
	}
	return false
}

func eventRepository(event map[string]interface{}) (owner, name string, err error) {
	resolved, ok := resolvePath(event, "repository.name")
	if !ok {
		return "", "", fmt.Errorf("event carries no repository")
	}
	name, _ = resolved.(string)

	if resolved, ok := resolvePath(event, "repository.owner.login"); ok {
		owner, _ = resolved.(string)
	}
	if owner == "" {
		// full_name is "owner/name"; fall back to it when the owner
		// object is absent.
		if resolved, ok := resolvePath(event, "repository.full_name"); ok {
			if full, ok := resolved.(string); ok {
				for i := 0; i < len(full); i++ {
					if full[i] == '/' {
						owner = full[:i]
						break
					}
				}
			}
		}
	}

	if owner == "" || name == "" {
		return "", "", fmt.Errorf("event repository is missing owner or name")
	}
	return owner, name, nil
}

// eventRepositoryID renders the repository id for the audit record. JSON
// decoding delivers numbers as float64, so integral floats print without
// a fraction.
func eventRepositoryID(event map[string]interface{}) string {
	resolved, ok := resolvePath(event, "repository.id")
	if !ok {
		return ""
	}
	switch id := resolved.(type) {
	case string:
		return id
	case float64:
		if id == math.Trunc(id) {
			return strconv.FormatInt(int64(id), 10)
		}
		return strconv.FormatFloat(id, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(id, 10)
	case int:
		return strconv.Itoa(id)
	default:
		return fmt.Sprintf("%v", id)
	}
}
