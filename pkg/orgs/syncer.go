package orgs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/authright-test/iga-test-sub000/pkg/audit"
	"github.com/authright-test/iga-test-sub000/pkg/observability"
)

// TokenMinter mints installation tokens; minting is also the health
// probe for an installation.
type TokenMinter interface {
	CreateInstallationToken(ctx context.Context, installationID int64) (string, error)
}

// AuditWriter records sync outcomes.
type AuditWriter interface {
	Create(ctx context.Context, entry *audit.Entry) error
}

// Syncer periodically verifies that each active organization's app
// installation still works. An installation whose token exchange fails
// has been revoked or suspended on the GitHub side; the org is marked
// suspended here so enforcement stops cleanly instead of failing on
// every delivery.
type Syncer struct {
	store   *Store
	minter  TokenMinter
	auditor AuditWriter
	logger  *observability.Logger
	cron    *cron.Cron
	timeout time.Duration
}

// NewSyncer creates an organization syncer.
func NewSyncer(store *Store, minter TokenMinter, auditor AuditWriter, logger *observability.Logger) *Syncer {
	return &Syncer{
		store:   store,
		minter:  minter,
		auditor: auditor,
		logger:  logger,
		cron:    cron.New(),
		timeout: time.Minute,
	}
}

// Start schedules the sync on the given cron expression and starts the
// scheduler.
func (s *Syncer) Start(schedule string) error {
	_, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		if err := s.SyncAll(ctx); err != nil {
			s.logger.WithError(err).Error("organization sync failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule organization sync: %w", err)
	}

	s.cron.Start()
	s.logger.WithField("schedule", schedule).Info("organization sync scheduled")
	return nil
}

// Stop stops the scheduler and waits for a running sync to finish.
func (s *Syncer) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// SyncAll probes every active organization's installation once.
func (s *Syncer) SyncAll(ctx context.Context) error {
	organizations, err := s.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list organizations: %w", err)
	}

	for _, org := range organizations {
		if org.Status != StatusActive {
			continue
		}
		s.syncOne(ctx, org)
	}
	return nil
}

func (s *Syncer) syncOne(ctx context.Context, org *Organization) {
	_, err := s.minter.CreateInstallationToken(ctx, org.InstallationID)
	if err == nil {
		return
	}

	s.logger.WithError(err).WithFields(map[string]interface{}{
		"organization":    org.Login,
		"installation_id": org.InstallationID,
	}).Warn("installation probe failed, suspending organization")

	if err := s.store.SetStatus(ctx, org.ID, StatusSuspended); err != nil {
		s.logger.WithError(err).WithField("organization", org.Login).Error("failed to suspend organization")
		return
	}

	orgID := org.ID
	entry := &audit.Entry{
		Action:         audit.ActionSyncFailed,
		ResourceType:   "organization",
		ResourceID:     org.Login,
		OrganizationID: &orgID,
		Details: map[string]interface{}{
			"installation_id": org.InstallationID,
			"error":           err.Error(),
		},
	}
	if auditErr := s.auditor.Create(ctx, entry); auditErr != nil {
		s.logger.WithError(auditErr).WithField("organization", org.Login).Error("failed to record sync failure")
	}
}
