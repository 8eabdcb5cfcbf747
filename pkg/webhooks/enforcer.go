package webhooks

import (
	"context"
	"fmt"

	"github.com/authright-test/iga-test-sub000/pkg/observability"
	"github.com/authright-test/iga-test-sub000/pkg/policy"
)

// PolicySource loads the policies eligible for evaluation.
type PolicySource interface {
	ListActiveForOrganization(ctx context.Context, orgID int64) ([]*policy.Policy, error)
}

// PolicyExecutor runs a violated policy's remediation actions.
type PolicyExecutor interface {
	Execute(ctx context.Context, p *policy.Policy, event map[string]interface{}, exec policy.ExecContext) error
}

// OrganizationResolver maps a GitHub org login to the internal
// organization record and its app installation.
type OrganizationResolver interface {
	ResolveInstallation(ctx context.Context, login string) (orgID, installationID int64, err error)
}

// Enforcer is the webhook handler that evaluates an organization's
// active policies against each delivery and executes remediations for
// the ones that match.
type Enforcer struct {
	policies  PolicySource
	evaluator *policy.Evaluator
	executor  PolicyExecutor
	orgs      OrganizationResolver
	logger    *observability.Logger
}

// NewEnforcer creates a policy enforcement handler.
func NewEnforcer(policies PolicySource, evaluator *policy.Evaluator, executor PolicyExecutor, orgs OrganizationResolver, logger *observability.Logger) *Enforcer {
	return &Enforcer{
		policies:  policies,
		evaluator: evaluator,
		executor:  executor,
		orgs:      orgs,
		logger:    logger,
	}
}

// Handle evaluates and enforces policies for one delivery. Policies run
// sequentially in store order so the audit trail for a single event is
// deterministic; a slow remediation for one policy delays the next.
func (e *Enforcer) Handle(ctx context.Context, event *Event) error {
	if event.Payload.Organization == nil {
		e.logger.WithField("delivery_id", event.DeliveryID).Debug("event carries no organization, skipping enforcement")
		return nil
	}
	login := event.Payload.Organization.Login

	orgID, installationID, err := e.orgs.ResolveInstallation(ctx, login)
	if err != nil {
		return fmt.Errorf("failed to resolve organization %s: %w", login, err)
	}
	if event.Payload.Installation != nil && event.Payload.Installation.ID != 0 {
		installationID = event.Payload.Installation.ID
	}

	policies, err := e.policies.ListActiveForOrganization(ctx, orgID)
	if err != nil {
		return fmt.Errorf("failed to load policies for organization %s: %w", login, err)
	}

	execCtx := policy.ExecContext{
		InstallationID: installationID,
		OrganizationID: orgID,
		OrgLogin:       login,
	}

	var firstErr error
	for _, p := range policies {
		if !e.evaluator.Evaluate(p, event.Raw) {
			continue
		}

		e.logger.WithFields(map[string]interface{}{
			"policy_id":   p.ID,
			"policy_name": p.Name,
			"delivery_id": event.DeliveryID,
		}).Info("policy violated, executing remediation actions")

		if err := e.executor.Execute(ctx, p, event.Raw, execCtx); err != nil {
			e.logger.WithError(err).WithField("policy_id", p.ID).Error("policy enforcement failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}
