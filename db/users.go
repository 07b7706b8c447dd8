package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cyverse-de/project-notifications/common"
	"github.com/cyverse-de/project-notifications/model"
	"github.com/pkg/errors"

	sq "github.com/Masterminds/squirrel"
)

// GetUser obtains the details of a user account. A common.NotFoundError is returned if the user doesn't exist.
func GetUser(ctx context.Context, tx *sql.Tx, id string) (*model.User, error) {
	wrapMsg := fmt.Sprintf("unable to look up user `%s`", id)

	// Build the query.
	query, args, err := psql.
		Select("id", "name", "email", "COALESCE(avatar_url, '')").
		From("users").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	// Query the database.
	var user model.User
	row := tx.QueryRowContext(ctx, query, args...)
	err = row.Scan(&user.ID, &user.Name, &user.Email, &user.AvatarURL)

	// If the error is ErrNoRows then the user doesn't exist.
	if err == sql.ErrNoRows {
		return nil, common.NewNotFoundError("user `%s` not found", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	return &user, nil
}
