package orgs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when an organization does not exist.
var ErrNotFound = errors.New("organization not found")

// Organization statuses.
const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
)

// Organization is one GitHub org governed by the console, tied to a
// GitHub App installation.
type Organization struct {
	ID             int64     `json:"id"`
	GitHubID       int64     `json:"github_id"`
	Login          string    `json:"login"`
	Name           string    `json:"name,omitempty"`
	InstallationID int64     `json:"installation_id"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Store persists organizations in PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates an organization store and ensures its table exists.
// The organizations table is referenced by roles, policies, and the
// audit trail, so this store must be initialized before those.
func NewStore(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	store := &Store{db: db}
	if err := store.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure organizations table: %w", err)
	}
	return store, nil
}

func (s *Store) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS organizations (
		id BIGSERIAL PRIMARY KEY,
		github_id BIGINT NOT NULL UNIQUE,
		login VARCHAR(255) NOT NULL UNIQUE,
		name VARCHAR(255),
		installation_id BIGINT NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'active',
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_organizations_login ON organizations(login);
	`

	_, err := s.db.Exec(query)
	return err
}

// Upsert inserts or refreshes an organization keyed by its GitHub id.
// Installation events re-deliver the same org, so this is the write
// path for onboarding and installation renumbering alike.
func (s *Store) Upsert(ctx context.Context, org *Organization) error {
	if org.Login == "" || org.GitHubID == 0 {
		return fmt.Errorf("organization requires a login and github id")
	}
	if org.Status == "" {
		org.Status = StatusActive
	}

	query := `
		INSERT INTO organizations (github_id, login, name, installation_id, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (github_id) DO UPDATE
		SET login = EXCLUDED.login, name = EXCLUDED.name,
		    installation_id = EXCLUDED.installation_id, status = EXCLUDED.status,
		    updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

	err := s.db.QueryRowContext(ctx, query,
		org.GitHubID, org.Login, org.Name, org.InstallationID, org.Status,
	).Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert organization: %w", err)
	}
	return nil
}

// GetByLogin loads one organization by its GitHub login.
func (s *Store) GetByLogin(ctx context.Context, login string) (*Organization, error) {
	query := `
		SELECT id, github_id, login, name, installation_id, status, created_at, updated_at
		FROM organizations
		WHERE login = $1
	`
	return s.scanOrganization(s.db.QueryRowContext(ctx, query, login))
}

// Get loads one organization by internal id.
func (s *Store) Get(ctx context.Context, id int64) (*Organization, error) {
	query := `
		SELECT id, github_id, login, name, installation_id, status, created_at, updated_at
		FROM organizations
		WHERE id = $1
	`
	return s.scanOrganization(s.db.QueryRowContext(ctx, query, id))
}

// List returns all governed organizations.
func (s *Store) List(ctx context.Context) ([]*Organization, error) {
	query := `
		SELECT id, github_id, login, name, installation_id, status, created_at, updated_at
		FROM organizations
		ORDER BY login
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	organizations := make([]*Organization, 0)
	for rows.Next() {
		org := &Organization{}
		var name sql.NullString
		err := rows.Scan(&org.ID, &org.GitHubID, &org.Login, &name,
			&org.InstallationID, &org.Status, &org.CreatedAt, &org.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		org.Name = name.String
		organizations = append(organizations, org)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating organizations: %w", err)
	}
	return organizations, nil
}

// SetStatus transitions an organization between active and suspended.
func (s *Store) SetStatus(ctx context.Context, id int64, status string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE organizations SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update organization status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ResolveInstallation maps an org login to its internal id and
// installation id. Suspended organizations do not resolve: their
// policies must not be enforced against a dead installation.
func (s *Store) ResolveInstallation(ctx context.Context, login string) (int64, int64, error) {
	org, err := s.GetByLogin(ctx, login)
	if err != nil {
		return 0, 0, err
	}
	if org.Status != StatusActive {
		return 0, 0, fmt.Errorf("organization %s is %s", login, org.Status)
	}
	return org.ID, org.InstallationID, nil
}

func (s *Store) scanOrganization(row *sql.Row) (*Organization, error) {
	org := &Organization{}
	var name sql.NullString

	err := row.Scan(&org.ID, &org.GitHubID, &org.Login, &name,
		&org.InstallationID, &org.Status, &org.CreatedAt, &org.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan organization: %w", err)
	}

	org.Name = name.String
	return org, nil
}
