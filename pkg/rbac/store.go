package rbac

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound indicates a referenced user, role or permission does not
// exist.
var ErrNotFound = errors.New("rbac: not found")

// ErrSystemRole indicates an attempted mutation of an immutable system
// role.
var ErrSystemRole = errors.New("rbac: system roles are immutable")

// Store handles persistence for users, roles and permissions. It is the
// source of truth behind the permission cache.
type Store struct {
	db *sql.DB
}

// NewStore creates a new RBAC store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetUser retrieves a user by ID. Returns ErrNotFound if the user does
// not exist.
func (s *Store) GetUser(ctx context.Context, userID int64) (*User, error) {
	query := `
		SELECT id, login, github_id, status, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	var user User
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&user.ID,
		&user.Login,
		&user.GitHubID,
		&user.Status,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// GetUserWithRoles loads a user together with all assigned roles and
// each role's permissions in a single pass.
func (s *Store) GetUserWithRoles(ctx context.Context, userID int64) (*User, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT r.id, r.name, r.description, r.organization_id, r.is_system,
		       p.id, p.name, p.resource, p.action
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		LEFT JOIN role_permissions rp ON rp.role_id = r.id
		LEFT JOIN permissions p ON p.id = rp.permission_id
		WHERE ur.user_id = $1
		ORDER BY r.id
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user roles: %w", err)
	}
	defer rows.Close()

	roleIndex := make(map[int64]int)
	for rows.Next() {
		var (
			role     Role
			orgID    sql.NullInt64
			permID   sql.NullInt64
			permName sql.NullString
			permRes  sql.NullString
			permAct  sql.NullString
		)

		err := rows.Scan(
			&role.ID,
			&role.Name,
			&role.Description,
			&orgID,
			&role.IsSystem,
			&permID,
			&permName,
			&permRes,
			&permAct,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user role: %w", err)
		}

		if orgID.Valid {
			id := orgID.Int64
			role.OrganizationID = &id
		}

		idx, seen := roleIndex[role.ID]
		if !seen {
			role.Permissions = []Permission{}
			user.Roles = append(user.Roles, role)
			idx = len(user.Roles) - 1
			roleIndex[role.ID] = idx
		}

		if permID.Valid {
			user.Roles[idx].Permissions = append(user.Roles[idx].Permissions, Permission{
				ID:       permID.Int64,
				Name:     permName.String,
				Resource: permRes.String,
				Action:   permAct.String,
			})
		}
	}

	return user, rows.Err()
}

// GetRole retrieves a role by ID with its permissions. Returns
// ErrNotFound if the role does not exist.
func (s *Store) GetRole(ctx context.Context, roleID int64) (*Role, error) {
	query := `
		SELECT id, name, description, organization_id, is_system, created_at, updated_at
		FROM roles
		WHERE id = $1
	`

	var role Role
	var orgID sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, roleID).Scan(
		&role.ID,
		&role.Name,
		&role.Description,
		&orgID,
		&role.IsSystem,
		&role.CreatedAt,
		&role.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	if orgID.Valid {
		id := orgID.Int64
		role.OrganizationID = &id
	}

	permQuery := `
		SELECT p.id, p.name, p.resource, p.action
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		WHERE rp.role_id = $1
		ORDER BY p.name
	`

	rows, err := s.db.QueryContext(ctx, permQuery, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load role permissions: %w", err)
	}
	defer rows.Close()

	role.Permissions = []Permission{}
	for rows.Next() {
		var perm Permission
		var res, act sql.NullString
		if err := rows.Scan(&perm.ID, &perm.Name, &res, &act); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		perm.Resource = res.String
		perm.Action = act.String
		role.Permissions = append(role.Permissions, perm)
	}

	return &role, rows.Err()
}

// GetPermission retrieves a permission by ID. Returns ErrNotFound if it
// does not exist.
func (s *Store) GetPermission(ctx context.Context, permissionID int64) (*Permission, error) {
	query := `
		SELECT id, name, resource, action
		FROM permissions
		WHERE id = $1
	`

	var perm Permission
	var res, act sql.NullString
	err := s.db.QueryRowContext(ctx, query, permissionID).Scan(&perm.ID, &perm.Name, &res, &act)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get permission: %w", err)
	}
	perm.Resource = res.String
	perm.Action = act.String

	return &perm, nil
}

// AssignRole creates a user/role relation. Idempotent: re-assigning an
// existing role is a no-op.
func (s *Store) AssignRole(ctx context.Context, userID, roleID int64) error {
	query := `
		INSERT INTO user_roles (user_id, role_id, granted_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id, role_id) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, query, userID, roleID); err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}
	return nil
}

// RemoveRole deletes a user/role relation.
func (s *Store) RemoveRole(ctx context.Context, userID, roleID int64) error {
	query := `DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`
	if _, err := s.db.ExecContext(ctx, query, userID, roleID); err != nil {
		return fmt.Errorf("failed to remove role: %w", err)
	}
	return nil
}

// AddPermissionToRole attaches a permission to a role.
func (s *Store) AddPermissionToRole(ctx context.Context, roleID, permissionID int64) error {
	query := `
		INSERT INTO role_permissions (role_id, permission_id)
		VALUES ($1, $2)
		ON CONFLICT (role_id, permission_id) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, query, roleID, permissionID); err != nil {
		return fmt.Errorf("failed to add permission to role: %w", err)
	}
	return nil
}

// RemovePermissionFromRole detaches a permission from a role.
func (s *Store) RemovePermissionFromRole(ctx context.Context, roleID, permissionID int64) error {
	query := `DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2`
	if _, err := s.db.ExecContext(ctx, query, roleID, permissionID); err != nil {
		return fmt.Errorf("failed to remove permission from role: %w", err)
	}
	return nil
}

// ListRoleUserIDs returns the IDs of every user currently holding a
// role. Used to fan out cache invalidation after role-level permission
// changes.
func (s *Store) ListRoleUserIDs(ctx context.Context, roleID int64) ([]int64, error) {
	query := `SELECT user_id FROM user_roles WHERE role_id = $1`

	rows, err := s.db.QueryContext(ctx, query, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list role users: %w", err)
	}
	defer rows.Close()

	var userIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		userIDs = append(userIDs, id)
	}

	return userIDs, rows.Err()
}

// IsUserOnRepositoryTeam reports whether the user belongs to any team
// that has been granted access to the repository.
func (s *Store) IsUserOnRepositoryTeam(ctx context.Context, userID int64, repositoryID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM repository_teams rt
			JOIN team_members tm ON tm.team_id = rt.team_id
			WHERE rt.repository_id = $1 AND tm.user_id = $2
		)
	`

	var member bool
	if err := s.db.QueryRowContext(ctx, query, repositoryID, userID).Scan(&member); err != nil {
		return false, fmt.Errorf("failed to check repository team membership: %w", err)
	}
	return member, nil
}

// DeleteRole deletes a role. System roles are rejected before any store
// mutation occurs.
func (s *Store) DeleteRole(ctx context.Context, roleID int64) error {
	role, err := s.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return ErrSystemRole
	}

	query := `DELETE FROM roles WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, query, roleID); err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}
	return nil
}
