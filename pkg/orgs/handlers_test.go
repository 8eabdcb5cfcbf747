package orgs

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authright-test/iga-test-sub000/pkg/webhooks"
)

func TestInstallationHandler_OnboardsFromInstallationAccount(t *testing.T) {
	store, mock := newTestStore(t)
	handler := NewInstallationHandler(store)

	// Live installation lifecycle payloads carry the org under
	// installation.account with no top-level organization.
	event := &webhooks.Event{
		Type: webhooks.EventInstallation,
		Payload: webhooks.Payload{
			Action: "created",
			Installation: &webhooks.Installation{
				ID:      77,
				Account: &webhooks.Organization{ID: 11, Login: "acme"},
			},
		},
	}

	mock.ExpectQuery("INSERT INTO organizations").
		WithArgs(int64(11), "acme", "", int64(77), StatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(5, time.Now(), time.Now()))

	require.NoError(t, handler(context.Background(), event))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInstallationHandler_TopLevelOrganizationWins(t *testing.T) {
	store, mock := newTestStore(t)
	handler := NewInstallationHandler(store)

	event := &webhooks.Event{
		Type: webhooks.EventInstallation,
		Payload: webhooks.Payload{
			Action:       "created",
			Organization: &webhooks.Organization{ID: 22, Login: "globex"},
			Installation: &webhooks.Installation{
				ID:      78,
				Account: &webhooks.Organization{ID: 11, Login: "acme"},
			},
		},
	}

	mock.ExpectQuery("INSERT INTO organizations").
		WithArgs(int64(22), "globex", "", int64(78), StatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(6, time.Now(), time.Now()))

	require.NoError(t, handler(context.Background(), event))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInstallationHandler_SuspendsFromInstallationAccount(t *testing.T) {
	store, mock := newTestStore(t)
	handler := NewInstallationHandler(store)

	event := &webhooks.Event{
		Type: webhooks.EventInstallation,
		Payload: webhooks.Payload{
			Action: "deleted",
			Installation: &webhooks.Installation{
				ID:      77,
				Account: &webhooks.Organization{ID: 11, Login: "acme"},
			},
		},
	}

	mock.ExpectQuery("FROM organizations").
		WithArgs("acme").
		WillReturnRows(sqlmock.NewRows(orgColumns()).
			AddRow(5, 11, "acme", nil, 77, StatusActive, time.Now(), time.Now()))
	mock.ExpectExec("UPDATE organizations SET status").
		WithArgs(StatusSuspended, int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, handler(context.Background(), event))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInstallationHandler_IgnoresPayloadWithoutAccount(t *testing.T) {
	store, mock := newTestStore(t)
	handler := NewInstallationHandler(store)

	event := &webhooks.Event{
		Type: webhooks.EventInstallation,
		Payload: webhooks.Payload{
			Action:       "created",
			Installation: &webhooks.Installation{ID: 77},
		},
	}

	assert.NoError(t, handler(context.Background(), event))
	assert.NoError(t, mock.ExpectationsWereMet())
}
