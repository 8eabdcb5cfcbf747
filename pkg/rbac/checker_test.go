package rbac

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authright-test/iga-test-sub000/pkg/observability"
)

func newTestChecker(t *testing.T) (*Checker, sqlmock.Sqlmock, *miniredis.Miniredis) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	checker := NewChecker(NewStore(db), NewCache(client), logger, nil)

	return checker, mock, mr
}

func userRows(userID int64) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "login", "github_id", "status", "created_at", "updated_at"}).
		AddRow(userID, "octocat", 1000+userID, "active", now, now)
}

func expectUser(mock sqlmock.Sqlmock, userID int64) {
	mock.ExpectQuery("SELECT id, login, github_id, status").
		WithArgs(userID).
		WillReturnRows(userRows(userID))
}

func roleRowColumns() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "description", "organization_id", "is_system",
		"perm_id", "perm_name", "perm_resource", "perm_action",
	})
}

func TestChecker_GrantsViaRolePermission(t *testing.T) {
	checker, mock, mr := newTestChecker(t)
	ctx := context.Background()

	expectUser(mock, 1)
	mock.ExpectQuery("JOIN user_roles ur").
		WithArgs(int64(1)).
		WillReturnRows(roleRowColumns().
			AddRow(10, "admin", "org admin", nil, true, 100, "view:audit_logs", "audit_logs", "view").
			AddRow(10, "admin", "org admin", nil, true, 101, "manage:policies", "policies", "manage"))

	assert.True(t, checker.HasPermission(ctx, 1, "view:audit_logs", nil))
	require.NoError(t, mock.ExpectationsWereMet())

	key := CacheKey(1, "view:audit_logs", nil)
	val, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "true", val)
	assert.Equal(t, PositiveResultTTL, mr.TTL(key))
}

func TestChecker_SecondCallHitsCache(t *testing.T) {
	checker, mock, _ := newTestChecker(t)
	ctx := context.Background()

	expectUser(mock, 1)
	mock.ExpectQuery("JOIN user_roles ur").
		WithArgs(int64(1)).
		WillReturnRows(roleRowColumns().
			AddRow(10, "admin", "org admin", nil, true, 100, "view:audit_logs", "audit_logs", "view"))

	assert.True(t, checker.HasPermission(ctx, 1, "view:audit_logs", nil))

	// No further store expectations: the second identical check must be
	// answered entirely from the cache.
	assert.True(t, checker.HasPermission(ctx, 1, "view:audit_logs", nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChecker_DeniesUnknownUserWithoutCaching(t *testing.T) {
	checker, mock, mr := newTestChecker(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT id, login, github_id, status").
		WithArgs(int64(404)).
		WillReturnError(sql.ErrNoRows)

	assert.False(t, checker.HasPermission(ctx, 404, "view:audit_logs", nil))
	assert.Empty(t, mr.Keys(), "absence of a user must not be cached as a permission fact")
}

func TestChecker_CachesNegativeWithShortTTL(t *testing.T) {
	checker, mock, mr := newTestChecker(t)
	ctx := context.Background()

	expectUser(mock, 2)
	mock.ExpectQuery("JOIN user_roles ur").
		WithArgs(int64(2)).
		WillReturnRows(roleRowColumns().
			AddRow(11, "viewer", "read only", nil, false, 102, "view:repos", "repos", "view"))

	assert.False(t, checker.HasPermission(ctx, 2, "manage:policies", nil))

	key := CacheKey(2, "manage:policies", nil)
	val, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "false", val)
	assert.Equal(t, NegativeResultTTL, mr.TTL(key))
}

func TestChecker_RepositoryTeamFallback(t *testing.T) {
	checker, mock, mr := newTestChecker(t)
	ctx := context.Background()

	expectUser(mock, 3)
	mock.ExpectQuery("JOIN user_roles ur").
		WithArgs(int64(3)).
		WillReturnRows(roleRowColumns())
	mock.ExpectQuery("FROM repository_teams rt").
		WithArgs("9876", int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	resource := &Resource{ID: "9876", Type: ResourceTypeRepository}
	assert.True(t, checker.HasPermission(ctx, 3, "anything:at_all", resource))

	val, err := mr.Get(CacheKey(3, "anything:at_all", resource))
	require.NoError(t, err)
	assert.Equal(t, "true", val)
}

func TestChecker_NonRepositoryResourceSkipsFallback(t *testing.T) {
	checker, mock, _ := newTestChecker(t)
	ctx := context.Background()

	expectUser(mock, 3)
	mock.ExpectQuery("JOIN user_roles ur").
		WithArgs(int64(3)).
		WillReturnRows(roleRowColumns())

	resource := &Resource{ID: "55", Type: ResourceTypeTeam}
	assert.False(t, checker.HasPermission(ctx, 3, "view:members", resource))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChecker_CacheErrorFailsClosed(t *testing.T) {
	checker, mock, mr := newTestChecker(t)
	ctx := context.Background()

	// No store expectations: with the cache unreachable the check must
	// deny without ever touching the store, even for a user whose roles
	// would grant the permission.
	mr.Close()

	assert.False(t, checker.HasPermission(ctx, 1, "view:audit_logs", nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChecker_StoreErrorFailsClosed(t *testing.T) {
	checker, mock, mr := newTestChecker(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT id, login, github_id, status").
		WithArgs(int64(1)).
		WillReturnError(errors.New("connection reset"))

	assert.False(t, checker.HasPermission(ctx, 1, "view:audit_logs", nil))
	assert.Empty(t, mr.Keys(), "errors must not populate the cache")
}
