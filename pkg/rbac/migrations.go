package rbac

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all access-control migrations
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id BIGSERIAL PRIMARY KEY,
					login VARCHAR(255) NOT NULL UNIQUE,
					github_id BIGINT NOT NULL UNIQUE,
					status VARCHAR(20) NOT NULL DEFAULT 'active',
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_users_login ON users(login);
				CREATE INDEX IF NOT EXISTS idx_users_github_id ON users(github_id);
			`,
		},
		{
			Version:     2,
			Description: "Create roles table",
			SQL: `
				CREATE TABLE IF NOT EXISTS roles (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					description TEXT,
					organization_id BIGINT REFERENCES organizations(id) ON DELETE CASCADE,
					is_system BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(name, organization_id)
				);

				CREATE INDEX IF NOT EXISTS idx_roles_organization_id ON roles(organization_id);
			`,
		},
		{
			Version:     3,
			Description: "Create permissions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS permissions (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL UNIQUE,
					resource VARCHAR(100),
					action VARCHAR(100)
				);
			`,
		},
		{
			Version:     4,
			Description: "Create user_roles relation",
			SQL: `
				CREATE TABLE IF NOT EXISTS user_roles (
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					role_id BIGINT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
					granted_at TIMESTAMP NOT NULL DEFAULT NOW(),
					PRIMARY KEY (user_id, role_id)
				);

				CREATE INDEX IF NOT EXISTS idx_user_roles_role_id ON user_roles(role_id);
			`,
		},
		{
			Version:     5,
			Description: "Create role_permissions relation",
			SQL: `
				CREATE TABLE IF NOT EXISTS role_permissions (
					role_id BIGINT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
					permission_id BIGINT NOT NULL REFERENCES permissions(id) ON DELETE CASCADE,
					PRIMARY KEY (role_id, permission_id)
				);
			`,
		},
		{
			Version:     6,
			Description: "Create user_permissions relation for directly assigned permissions",
			SQL: `
				CREATE TABLE IF NOT EXISTS user_permissions (
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					permission_id BIGINT NOT NULL REFERENCES permissions(id) ON DELETE CASCADE,
					PRIMARY KEY (user_id, permission_id)
				);
			`,
		},
		{
			Version:     7,
			Description: "Create teams and repository access tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS teams (
					id BIGSERIAL PRIMARY KEY,
					organization_id BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					github_id BIGINT,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(organization_id, name)
				);

				CREATE TABLE IF NOT EXISTS team_members (
					team_id BIGINT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					PRIMARY KEY (team_id, user_id)
				);

				CREATE TABLE IF NOT EXISTS repositories (
					id VARCHAR(255) PRIMARY KEY,
					organization_id BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					full_name VARCHAR(512) NOT NULL,
					private BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS repository_teams (
					repository_id VARCHAR(255) NOT NULL REFERENCES repositories(id) ON DELETE CASCADE,
					team_id BIGINT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
					PRIMARY KEY (repository_id, team_id)
				);

				CREATE INDEX IF NOT EXISTS idx_team_members_user_id ON team_members(user_id);
				CREATE INDEX IF NOT EXISTS idx_repository_teams_repository_id ON repository_teams(repository_id);
			`,
		},
	}
}

// RunMigrations applies all pending migrations in version order. A
// schema_migrations table tracks applied versions.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	for _, migration := range GetMigrations() {
		var applied bool
		err := db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`,
			migration.Version,
		).Scan(&applied)
		if err != nil {
			return fmt.Errorf("failed to check migration %d: %w", migration.Version, err)
		}
		if applied {
			continue
		}

		if _, err := db.ExecContext(ctx, migration.SQL); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Description, err)
		}

		_, err = db.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, description) VALUES ($1, $2)`,
			migration.Version, migration.Description,
		)
		if err != nil {
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
