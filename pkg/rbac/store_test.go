package rbac

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_GetUserWithRoles_GroupsPermissionsByRole(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)
	ctx := context.Background()

	expectUser(mock, 1)
	mock.ExpectQuery("JOIN user_roles ur").
		WithArgs(int64(1)).
		WillReturnRows(roleRowColumns().
			AddRow(10, "admin", "org admin", nil, true, 100, "view:audit_logs", "audit_logs", "view").
			AddRow(10, "admin", "org admin", nil, true, 101, "manage:policies", "policies", "manage").
			AddRow(11, "viewer", "read only", 5, false, nil, nil, nil, nil))

	user, err := store.GetUserWithRoles(ctx, 1)
	require.NoError(t, err)
	require.Len(t, user.Roles, 2)

	assert.Equal(t, "admin", user.Roles[0].Name)
	assert.Len(t, user.Roles[0].Permissions, 2)
	assert.True(t, user.Roles[0].IsSystem)

	assert.Equal(t, "viewer", user.Roles[1].Name)
	assert.Empty(t, user.Roles[1].Permissions, "roles without permissions must scan cleanly")
	require.NotNil(t, user.Roles[1].OrganizationID)
	assert.Equal(t, int64(5), *user.Roles[1].OrganizationID)
}

func TestStore_DeleteRole_RejectsSystemRoleBeforeMutation(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)
	ctx := context.Background()

	now := time.Now()
	mock.ExpectQuery("SELECT id, name, description, organization_id, is_system").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "description", "organization_id", "is_system", "created_at", "updated_at",
		}).AddRow(1, "superadmin", "", nil, true, now, now))
	mock.ExpectQuery("JOIN role_permissions rp").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "resource", "action"}))

	err = store.DeleteRole(ctx, 1)
	assert.ErrorIs(t, err, ErrSystemRole)

	// No DELETE was ever expected; if one had been issued the
	// expectations check would fail.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_DeleteRole_DeletesCustomRole(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)
	ctx := context.Background()

	now := time.Now()
	mock.ExpectQuery("SELECT id, name, description, organization_id, is_system").
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "description", "organization_id", "is_system", "created_at", "updated_at",
		}).AddRow(2, "custom", "", nil, false, now, now))
	mock.ExpectQuery("JOIN role_permissions rp").
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "resource", "action"}))
	mock.ExpectExec("DELETE FROM roles").
		WithArgs(int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.DeleteRole(ctx, 2))
	assert.NoError(t, mock.ExpectationsWereMet())
}
