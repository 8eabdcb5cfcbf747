package policy

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a policy or rule does not exist.
var ErrNotFound = errors.New("policy not found")

// Store persists policies and rules in PostgreSQL. Condition and action
// documents are stored as JSONB and validated before insert, so rows
// read back always decode.
type Store struct {
	db *sql.DB
}

// NewStore creates a policy store and ensures its tables exist.
func NewStore(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	store := &Store{db: db}
	if err := store.ensureTables(); err != nil {
		return nil, fmt.Errorf("failed to ensure policy tables: %w", err)
	}
	return store, nil
}

func (s *Store) ensureTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS policies (
		id BIGSERIAL PRIMARY KEY,
		organization_id BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
		name VARCHAR(255) NOT NULL,
		description TEXT,
		conditions JSONB NOT NULL,
		actions JSONB NOT NULL,
		severity VARCHAR(20) NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		UNIQUE (organization_id, name)
	);

	CREATE INDEX IF NOT EXISTS idx_policies_org_active ON policies(organization_id, is_active);

	CREATE TABLE IF NOT EXISTS policy_rules (
		id BIGSERIAL PRIMARY KEY,
		policy_id BIGINT NOT NULL REFERENCES policies(id) ON DELETE CASCADE,
		condition JSONB NOT NULL,
		action JSONB NOT NULL,
		priority INTEGER NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_policy_rules_policy ON policy_rules(policy_id, priority);
	`

	_, err := s.db.Exec(query)
	return err
}

// Create validates and inserts a policy, populating its ID and
// timestamps.
func (s *Store) Create(ctx context.Context, p *Policy) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid policy: %w", err)
	}

	conditionsJSON, err := json.Marshal(p.Conditions)
	if err != nil {
		return fmt.Errorf("failed to marshal conditions: %w", err)
	}
	actionsJSON, err := json.Marshal(p.Actions)
	if err != nil {
		return fmt.Errorf("failed to marshal actions: %w", err)
	}

	query := `
		INSERT INTO policies (organization_id, name, description, conditions, actions, severity, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`

	err = s.db.QueryRowContext(ctx, query,
		p.OrganizationID, p.Name, p.Description,
		conditionsJSON, actionsJSON, string(p.Severity), p.IsActive,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert policy: %w", err)
	}
	return nil
}

// Get loads one policy by id.
func (s *Store) Get(ctx context.Context, id int64) (*Policy, error) {
	query := `
		SELECT id, organization_id, name, description, conditions, actions, severity, is_active, created_at, updated_at
		FROM policies
		WHERE id = $1
	`
	return s.scanPolicy(s.db.QueryRowContext(ctx, query, id))
}

// Update validates and rewrites a policy's mutable fields.
func (s *Store) Update(ctx context.Context, p *Policy) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid policy: %w", err)
	}

	conditionsJSON, err := json.Marshal(p.Conditions)
	if err != nil {
		return fmt.Errorf("failed to marshal conditions: %w", err)
	}
	actionsJSON, err := json.Marshal(p.Actions)
	if err != nil {
		return fmt.Errorf("failed to marshal actions: %w", err)
	}

	query := `
		UPDATE policies
		SET name = $1, description = $2, conditions = $3, actions = $4, severity = $5, is_active = $6, updated_at = NOW()
		WHERE id = $7
		RETURNING updated_at
	`

	err = s.db.QueryRowContext(ctx, query,
		p.Name, p.Description, conditionsJSON, actionsJSON,
		string(p.Severity), p.IsActive, p.ID,
	).Scan(&p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update policy: %w", err)
	}
	return nil
}

// SetActive toggles a policy without rewriting its documents.
func (s *Store) SetActive(ctx context.Context, id int64, active bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE policies SET is_active = $1, updated_at = NOW() WHERE id = $2`,
		active, id,
	)
	if err != nil {
		return fmt.Errorf("failed to toggle policy: %w", err)
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

// Delete removes a policy and, via cascade, its rules.
func (s *Store) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM policies WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete policy: %w", err)
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

// ListForOrganization returns all of an organization's policies.
func (s *Store) ListForOrganization(ctx context.Context, orgID int64) ([]*Policy, error) {
	query := `
		SELECT id, organization_id, name, description, conditions, actions, severity, is_active, created_at, updated_at
		FROM policies
		WHERE organization_id = $1
		ORDER BY id
	`
	return s.listPolicies(ctx, query, orgID)
}

// ListActiveForOrganization returns only the policies eligible for
// evaluation.
func (s *Store) ListActiveForOrganization(ctx context.Context, orgID int64) ([]*Policy, error) {
	query := `
		SELECT id, organization_id, name, description, conditions, actions, severity, is_active, created_at, updated_at
		FROM policies
		WHERE organization_id = $1 AND is_active = TRUE
		ORDER BY id
	`
	return s.listPolicies(ctx, query, orgID)
}

func (s *Store) listPolicies(ctx context.Context, query string, args ...interface{}) ([]*Policy, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}
	defer rows.Close()

	policies := make([]*Policy, 0)
	for rows.Next() {
		p, err := s.scanPolicyRow(rows)
		if err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating policies: %w", err)
	}
	return policies, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *Store) scanPolicy(row rowScanner) (*Policy, error) {
	p, err := s.scanPolicyRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func (s *Store) scanPolicyRow(row rowScanner) (*Policy, error) {
	p := &Policy{}
	var (
		description    sql.NullString
		conditionsJSON []byte
		actionsJSON    []byte
		severity       string
	)

	err := row.Scan(
		&p.ID, &p.OrganizationID, &p.Name, &description,
		&conditionsJSON, &actionsJSON, &severity, &p.IsActive,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan policy: %w", err)
	}

	p.Description = description.String
	p.Severity = Severity(severity)
	if err := json.Unmarshal(conditionsJSON, &p.Conditions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conditions: %w", err)
	}
	if err := json.Unmarshal(actionsJSON, &p.Actions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal actions: %w", err)
	}
	return p, nil
}

// CreateRule validates and inserts a sub-rule.
func (s *Store) CreateRule(ctx context.Context, r *Rule) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("invalid rule: %w", err)
	}

	conditionJSON, err := json.Marshal(r.Condition)
	if err != nil {
		return fmt.Errorf("failed to marshal condition: %w", err)
	}
	actionJSON, err := json.Marshal(r.Action)
	if err != nil {
		return fmt.Errorf("failed to marshal action: %w", err)
	}

	query := `
		INSERT INTO policy_rules (policy_id, condition, action, priority, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err = s.db.QueryRowContext(ctx, query,
		r.PolicyID, conditionJSON, actionJSON, r.Priority, r.IsActive,
	).Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert rule: %w", err)
	}
	return nil
}

// ListRulesForPolicy returns a policy's rules ordered by ascending
// priority.
func (s *Store) ListRulesForPolicy(ctx context.Context, policyID int64) ([]*Rule, error) {
	query := `
		SELECT id, policy_id, condition, action, priority, is_active, created_at
		FROM policy_rules
		WHERE policy_id = $1
		ORDER BY priority, id
	`

	rows, err := s.db.QueryContext(ctx, query, policyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	rules := make([]*Rule, 0)
	for rows.Next() {
		r := &Rule{}
		var conditionJSON, actionJSON []byte
		err := rows.Scan(&r.ID, &r.PolicyID, &conditionJSON, &actionJSON, &r.Priority, &r.IsActive, &r.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		if err := json.Unmarshal(conditionJSON, &r.Condition); err != nil {
			return nil, fmt.Errorf("failed to unmarshal rule condition: %w", err)
		}
		if err := json.Unmarshal(actionJSON, &r.Action); err != nil {
			return nil, fmt.Errorf("failed to unmarshal rule action: %w", err)
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}
	return rules, nil
}
