package policy

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &Store{db: db}, mock
}

func policyColumns() []string {
	return []string{
		"id", "organization_id", "name", "description", "conditions",
		"actions", "severity", "is_active", "created_at", "updated_at",
	}
}

func TestStore_CreateValidatesBeforeInsert(t *testing.T) {
	store, mock := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		policy Policy
	}{
		{"missing name", Policy{OrganizationID: 5, Severity: SeverityLow,
			Conditions: []Condition{{Type: ConditionEquals, Field: "action", Value: "x"}},
			Actions:    []Action{{Type: ActionLogEvent}}}},
		{"unknown severity", Policy{OrganizationID: 5, Name: "p", Severity: "urgent",
			Conditions: []Condition{{Type: ConditionEquals, Field: "action", Value: "x"}},
			Actions:    []Action{{Type: ActionLogEvent}}}},
		{"unknown condition type", Policy{OrganizationID: 5, Name: "p", Severity: SeverityLow,
			Conditions: []Condition{{Type: "matches_regex", Field: "action", Value: "x"}},
			Actions:    []Action{{Type: ActionLogEvent}}}},
		{"unknown action type", Policy{OrganizationID: 5, Name: "p", Severity: SeverityLow,
			Conditions: []Condition{{Type: ConditionEquals, Field: "action", Value: "x"}},
			Actions:    []Action{{Type: "page_oncall"}}}},
		{"no conditions", Policy{OrganizationID: 5, Name: "p", Severity: SeverityLow,
			Actions: []Action{{Type: ActionLogEvent}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.Create(ctx, &tt.policy)
			assert.Error(t, err)
		})
	}

	// No insert may have reached the database.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CreateInsertsValidPolicy(t *testing.T) {
	store, mock := newTestStore(t)
	ctx := context.Background()

	p := &Policy{
		OrganizationID: 5,
		Name:           "no public repos",
		Severity:       SeverityHigh,
		IsActive:       true,
		Conditions:     []Condition{{Type: ConditionEquals, Field: "action", Value: "publicized"}},
		Actions:        []Action{{Type: ActionRevertChange}},
	}

	mock.ExpectQuery("INSERT INTO policies").
		WithArgs(int64(5), "no public repos", "", sqlmock.AnyArg(), sqlmock.AnyArg(), "high", true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(12, time.Now(), time.Now()))

	require.NoError(t, store.Create(ctx, p))
	assert.Equal(t, int64(12), p.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetNotFound(t *testing.T) {
	store, mock := newTestStore(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT id, organization_id, name").
		WithArgs(int64(99)).
		WillReturnError(sql.ErrNoRows)

	p, err := store.Get(ctx, 99)
	assert.Nil(t, p)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListActiveForOrganization(t *testing.T) {
	store, mock := newTestStore(t)
	ctx := context.Background()

	conditions := `[{"type":"equals","field":"action","value":"publicized"}]`
	actions := `[{"type":"revert_change"}]`

	rows := sqlmock.NewRows(policyColumns()).
		AddRow(1, 5, "no public repos", "keep repos private", []byte(conditions), []byte(actions),
			"high", true, time.Now(), time.Now())

	mock.ExpectQuery("is_active = TRUE").
		WithArgs(int64(5)).
		WillReturnRows(rows)

	policies, err := store.ListActiveForOrganization(ctx, 5)
	require.NoError(t, err)
	require.Len(t, policies, 1)

	p := policies[0]
	assert.Equal(t, "no public repos", p.Name)
	assert.Equal(t, SeverityHigh, p.Severity)
	require.Len(t, p.Conditions, 1)
	assert.Equal(t, ConditionEquals, p.Conditions[0].Type)
	assert.Equal(t, "publicized", p.Conditions[0].Value)
	require.Len(t, p.Actions, 1)
	assert.Equal(t, ActionRevertChange, p.Actions[0].Type)
}

func TestStore_DeleteNotFound(t *testing.T) {
	store, mock := newTestStore(t)
	ctx := context.Background()

	mock.ExpectExec("DELETE FROM policies").
		WithArgs(int64(404)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, store.Delete(ctx, 404), ErrNotFound)
}
