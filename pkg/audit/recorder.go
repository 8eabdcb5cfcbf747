package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// Recorder appends immutable audit entries to PostgreSQL.
//
// Create never swallows store errors: losing an audit record silently is
// unacceptable, so failures propagate and the caller decides whether to
// retry or continue. This is deliberately the opposite of the permission
// checker's fail-closed error swallowing.
type Recorder struct {
	db *sql.DB
}

// NewRecorder creates a database-backed audit recorder and ensures the
// audit_logs table exists.
func NewRecorder(db *sql.DB) (*Recorder, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	recorder := &Recorder{db: db}
	if err := recorder.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure audit_logs table: %w", err)
	}

	return recorder, nil
}

// ensureTable creates the audit_logs table if it doesn't exist. The user
// reference is nullified on user deletion and the organization reference
// is nullified on organization deletion: audit history outlives both.
func (r *Recorder) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_logs (
		id BIGSERIAL PRIMARY KEY,
		action VARCHAR(50) NOT NULL,
		resource_type VARCHAR(50),
		resource_id VARCHAR(255),
		details JSONB,
		user_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
		organization_id BIGINT REFERENCES organizations(id) ON DELETE SET NULL,
		ip_address VARCHAR(45),
		user_agent TEXT,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_audit_logs_created_at ON audit_logs(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_action ON audit_logs(action);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_user_id ON audit_logs(user_id);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_resource ON audit_logs(resource_type, resource_id);
	`

	_, err := r.db.Exec(query)
	return err
}

// Create appends an audit entry. The entry's ID and CreatedAt are
// populated on success.
func (r *Recorder) Create(ctx context.Context, entry *Entry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("invalid audit entry: %w", err)
	}

	var detailsJSON []byte
	if entry.Details != nil {
		var err error
		detailsJSON, err = json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("failed to marshal details: %w", err)
		}
	}

	query := `
		INSERT INTO audit_logs (action, resource_type, resource_id, details, user_id, organization_id, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`

	err := r.db.QueryRowContext(ctx, query,
		entry.Action,
		entry.ResourceType,
		entry.ResourceID,
		detailsJSON,
		entry.UserID,
		entry.OrganizationID,
		entry.IPAddress,
		entry.UserAgent,
	).Scan(&entry.ID, &entry.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	return nil
}

// Search returns audit entries matching the filter, newest first.
func (r *Recorder) Search(ctx context.Context, filter Filter) ([]*Entry, error) {
	query := `
		SELECT id, action, resource_type, resource_id, details, user_id, organization_id, ip_address, user_agent, created_at
		FROM audit_logs
		WHERE 1=1
	`

	args := []interface{}{}
	argCount := 1

	if filter.UserID != nil {
		query += fmt.Sprintf(" AND user_id = $%d", argCount)
		args = append(args, *filter.UserID)
		argCount++
	}
	if filter.OrganizationID != nil {
		query += fmt.Sprintf(" AND organization_id = $%d", argCount)
		args = append(args, *filter.OrganizationID)
		argCount++
	}
	if filter.Action != "" {
		query += fmt.Sprintf(" AND action = $%d", argCount)
		args = append(args, filter.Action)
		argCount++
	}
	if filter.ResourceType != "" {
		query += fmt.Sprintf(" AND resource_type = $%d", argCount)
		args = append(args, filter.ResourceType)
		argCount++
	}
	if filter.ResourceID != "" {
		query += fmt.Sprintf(" AND resource_id = $%d", argCount)
		args = append(args, filter.ResourceID)
		argCount++
	}
	if filter.StartTime != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argCount)
		args = append(args, *filter.StartTime)
		argCount++
	}
	if filter.EndTime != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argCount)
		args = append(args, *filter.EndTime)
		argCount++
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argCount)
		args = append(args, filter.Limit)
		argCount++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argCount)
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search audit logs: %w", err)
	}
	defer rows.Close()

	entries := make([]*Entry, 0)
	for rows.Next() {
		entry := &Entry{}
		var (
			detailsJSON  []byte
			resourceType sql.NullString
			resourceID   sql.NullString
			userID       sql.NullInt64
			orgID        sql.NullInt64
			ipAddress    sql.NullString
			userAgent    sql.NullString
		)

		err := rows.Scan(
			&entry.ID,
			&entry.Action,
			&resourceType,
			&resourceID,
			&detailsJSON,
			&userID,
			&orgID,
			&ipAddress,
			&userAgent,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}

		entry.ResourceType = resourceType.String
		entry.ResourceID = resourceID.String
		entry.IPAddress = ipAddress.String
		entry.UserAgent = userAgent.String
		if userID.Valid {
			id := userID.Int64
			entry.UserID = &id
		}
		if orgID.Valid {
			id := orgID.Int64
			entry.OrganizationID = &id
		}
		if len(detailsJSON) > 0 {
			if err := json.Unmarshal(detailsJSON, &entry.Details); err != nil {
				return nil, fmt.Errorf("failed to unmarshal details: %w", err)
			}
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit logs: %w", err)
	}

	return entries, nil
}
