package db

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func TestAcceptedMemberIDs(t *testing.T) {
	assert := assert.New(t)
	_, mock, tx := beginMockTx(t)

	rows := sqlmock.NewRows([]string{"user_id"}).AddRow("a").AddRow("f").AddRow("g")
	mock.ExpectQuery("SELECT user_id FROM project_members WHERE project_id = \\$1 AND invitation_status = \\$2").
		WithArgs("7", "ACCEPTED").
		WillReturnRows(rows)
	mock.ExpectRollback()

	ids, err := AcceptedMemberIDs(context.Background(), tx, "7")
	assert.NoError(err)
	assert.Equal([]string{"a", "f", "g"}, ids)
	_ = tx.Rollback()

	assert.NoError(mock.ExpectationsWereMet(), "not all mock expectations were met")
}

func TestAcceptedProjects(t *testing.T) {
	assert := assert.New(t)
	_, mock, tx := beginMockTx(t)

	rows := sqlmock.NewRows([]string{"id", "name"}).AddRow("1", "Alpha").AddRow("2", "Beta")
	mock.ExpectQuery(
		"SELECT p.id, p.name FROM projects p JOIN project_members m ON m.project_id = p.id WHERE m.user_id = \\$1 AND m.invitation_status = \\$2",
	).
		WithArgs(testUserID, "ACCEPTED").
		WillReturnRows(rows)
	mock.ExpectRollback()

	projects, err := AcceptedProjects(context.Background(), tx, testUserID)
	assert.NoError(err)
	if assert.Len(projects, 2) {
		assert.Equal("Alpha", projects[0].Name)
	}
	_ = tx.Rollback()

	assert.NoError(mock.ExpectationsWereMet(), "not all mock expectations were met")
}
