package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"coldreach/internal/crypto"
	"coldreach/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock, *crypto.Codec) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	codec, err := crypto.NewCodec("test-key")
	require.NoError(t, err)

	return NewStore(sqlx.NewDb(mockDB, "sqlmock"), codec), mock, codec
}

func TestStore_GetUserByUsername(t *testing.T) {
	store, mock, codec := newMockStore(t)

	encName, err := codec.Encrypt("Jane Doe")
	require.NoError(t, err)
	encEmail, err := codec.Encrypt("jane@example.com")
	require.NoError(t, err)

	mock.ExpectQuery("SELECT id, username, name, email FROM users").
		WithArgs("jane").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "name", "email"}).
			AddRow(7, "jane", encName, encEmail))

	user, err := store.GetUserByUsername(context.Background(), "jane")
	require.NoError(t, err)
	assert.Equal(t, int64(7), user.ID)
	assert.Equal(t, "Jane Doe", user.Name)
	assert.Equal(t, "jane@example.com", user.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetUserByUsername_NotFound(t *testing.T) {
	store, mock, _ := newMockStore(t)

	mock.ExpectQuery("SELECT id, username, name, email FROM users").
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	user, err := store.GetUserByUsername(context.Background(), "ghost")
	assert.Nil(t, user)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_GetCampaign_NotFound(t *testing.T) {
	store, mock, _ := newMockStore(t)

	mock.ExpectQuery("SELECT id, user_id, name, service").
		WithArgs(int64(1), "missing").
		WillReturnError(sql.ErrNoRows)

	campaign, err := store.GetCampaign(context.Background(), 1, "missing")
	assert.Nil(t, campaign)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_UpdateCampaignStatus(t *testing.T) {
	store, mock, _ := newMockStore(t)

	mock.ExpectExec("UPDATE campaigns SET status").
		WithArgs("Sending Emails", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.UpdateCampaignStatus(context.Background(), 3, models.InProgress(models.StageSend))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_InsertLead(t *testing.T) {
	store, mock, _ := newMockStore(t)

	mock.ExpectExec("INSERT INTO leads").
		WithArgs(int64(3), sqlmock.AnyArg(), sqlmock.AnyArg(), "Linkedin",
			sqlmock.AnyArg(), "Texas", "Clinic", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(42, 1))

	lead := &models.Lead{
		CampaignID:     3,
		Name:           "Dr. Smith",
		Email:          "smith@clinic.example",
		PlatformSource: "Linkedin",
		State:          "Texas",
		Industry:       "Clinic",
	}
	err := store.InsertLead(context.Background(), lead)
	require.NoError(t, err)
	assert.Equal(t, int64(42), lead.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_DeleteCampaignEmails(t *testing.T) {
	store, mock, _ := newMockStore(t)

	mock.ExpectExec("DELETE FROM email_contents WHERE campaign_id").
		WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 12))

	err := store.DeleteCampaignEmails(context.Background(), 9)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_MarkOpened(t *testing.T) {
	tests := []struct {
		name         string
		rowsAffected int64
		wantFlipped  bool
	}{
		{name: "first open flips the flag", rowsAffected: 1, wantFlipped: true},
		{name: "repeat open is a no-op", rowsAffected: 0, wantFlipped: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock, _ := newMockStore(t)

			mock.ExpectExec("UPDATE email_contents SET opened = TRUE").
				WithArgs(int64(5)).
				WillReturnResult(sqlmock.NewResult(0, tt.rowsAffected))

			flipped, err := store.MarkOpened(context.Background(), 5)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFlipped, flipped)
		})
	}
}

func TestStore_MarkOpened_RowsAffectedError(t *testing.T) {
	store, mock, _ := newMockStore(t)

	mock.ExpectExec("UPDATE email_contents SET opened = TRUE").
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewErrorResult(errors.New("rows affected unsupported")))

	flipped, err := store.MarkOpened(context.Background(), 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rows affected")
	assert.False(t, flipped)
}

func TestStore_UnsentEmails(t *testing.T) {
	store, mock, codec := newMockStore(t)

	encSubject, err := codec.Encrypt("Quick question")
	require.NoError(t, err)
	encBody, err := codec.Encrypt("Hi there")
	require.NoError(t, err)
	encEmail, err := codec.Encrypt("lead@example.com")
	require.NoError(t, err)
	encName, err := codec.Encrypt("Lead Name")
	require.NoError(t, err)

	columns := []string{
		"email_id", "lead_id", "campaign_id", "subject", "body", "html",
		"delivery_status", "opened", "reply_text", "reply_sentiment",
		"lead_name", "lead_email", "platform_source", "profile_link",
		"state", "industry", "profile_description",
	}
	mock.ExpectQuery("FROM email_contents e").
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(10, 4, 2, encSubject, encBody, nil, nil, false, nil, nil,
				encName, encEmail, "Linkedin", "", "Texas", "Clinic", ""))

	pairs, err := store.UnsentEmails(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, int64(10), pairs[0].Email.ID)
	assert.Equal(t, "Quick question", pairs[0].Email.Subject)
	assert.Equal(t, "Hi there", pairs[0].Email.Body)
	assert.Equal(t, "lead@example.com", pairs[0].Lead.Email)
	assert.Equal(t, "Lead Name", pairs[0].Lead.Name)
	assert.False(t, pairs[0].Email.DeliveryStatus.Valid)
}

func TestStore_UpdateReply(t *testing.T) {
	store, mock, _ := newMockStore(t)

	mock.ExpectExec("UPDATE email_contents SET reply_text").
		WithArgs(sqlmock.AnyArg(), models.SentimentPositive, int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.UpdateReply(context.Background(), 10, "Sounds great, let's talk", models.SentimentPositive)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetSenderConfig_NotFound(t *testing.T) {
	store, mock, _ := newMockStore(t)

	mock.ExpectQuery("FROM sender_configs").
		WithArgs(int64(1)).
		WillReturnError(sql.ErrNoRows)

	sc, err := store.GetSenderConfig(context.Background(), 1)
	assert.Nil(t, sc)
	assert.ErrorIs(t, err, ErrNotFound)
}
