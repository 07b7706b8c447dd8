package db

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientCommitsSuccessfulOperations(t *testing.T) {
	assert := assert.New(t)

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE notifications SET is_read").
		WithArgs(true, testUserID, false).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	client := NewClient(sqlDB)
	count, err := client.MarkAllNotificationsRead(context.Background(), testUserID)
	assert.NoError(err)
	assert.Equal(int64(3), count)

	assert.NoError(mock.ExpectationsWereMet(), "not all mock expectations were met")
}

func TestClientRollsBackFailedOperations(t *testing.T) {
	assert := assert.New(t)

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT user_id FROM project_members").
		WithArgs("7", "ACCEPTED").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	client := NewClient(sqlDB)
	_, err = client.AcceptedMemberIDs(context.Background(), "7")
	assert.Error(err)

	assert.NoError(mock.ExpectationsWereMet(), "not all mock expectations were met")
}

func TestClientRollbackAfterCommitIsHarmless(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectBegin()
	mock.ExpectCommit()

	client := NewClient(sqlDB)
	tx, err := client.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, client.Commit(tx))
	assert.NoError(t, client.Rollback(tx))
}
