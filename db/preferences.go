package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cyverse-de/project-notifications/model"
	"github.com/pkg/errors"

	sq "github.com/Masterminds/squirrel"
)

// preferenceFlagColumns lists the flag columns of the notification_preferences table in the order used for
// scanning and inserting.
var preferenceFlagColumns = []string{
	"email_notifications",
	"task_assigned",
	"task_updated",
	"task_commented",
	"task_due_date",
	"project_invitation",
	"daily_digest",
	"weekly_digest",
}

// digestColumns maps each digest frequency to its preference column.
var digestColumns = map[model.Frequency]string{
	model.Daily:  "daily_digest",
	model.Weekly: "weekly_digest",
}

// GetPreferences loads the notification preferences for a user. A nil value without an error is returned if the
// user has never saved any preferences.
func GetPreferences(ctx context.Context, tx *sql.Tx, userID string) (*model.Preferences, error) {
	wrapMsg := fmt.Sprintf("unable to load notification preferences for `%s`", userID)

	// Build the query.
	query, args, err := psql.
		Select(preferenceFlagColumns...).
		From("notification_preferences").
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	// Query the database.
	p := model.Preferences{UserID: userID}
	err = tx.QueryRowContext(ctx, query, args...).Scan(
		&p.EmailNotifications,
		&p.TaskAssigned,
		&p.TaskUpdated,
		&p.TaskCommented,
		&p.TaskDueDate,
		&p.ProjectInvitation,
		&p.DailyDigest,
		&p.WeeklyDigest,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	return &p, nil
}

// SavePreferences inserts or replaces the notification preferences for a user.
func SavePreferences(ctx context.Context, tx *sql.Tx, p *model.Preferences) error {
	wrapMsg := fmt.Sprintf("unable to save notification preferences for `%s`", p.UserID)

	// Build the upsert statement.
	columns := append([]string{"user_id"}, preferenceFlagColumns...)
	statement, args, err := psql.
		Insert("notification_preferences").
		Columns(columns...).
		Values(
			p.UserID,
			p.EmailNotifications,
			p.TaskAssigned,
			p.TaskUpdated,
			p.TaskCommented,
			p.TaskDueDate,
			p.ProjectInvitation,
			p.DailyDigest,
			p.WeeklyDigest).
		Suffix(
			"ON CONFLICT (user_id) DO UPDATE SET " +
				"email_notifications = EXCLUDED.email_notifications, " +
				"task_assigned = EXCLUDED.task_assigned, " +
				"task_updated = EXCLUDED.task_updated, " +
				"task_commented = EXCLUDED.task_commented, " +
				"task_due_date = EXCLUDED.task_due_date, " +
				"project_invitation = EXCLUDED.project_invitation, " +
				"daily_digest = EXCLUDED.daily_digest, " +
				"weekly_digest = EXCLUDED.weekly_digest").
		ToSql()
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}

	// Execute the statement.
	if _, err = tx.ExecContext(ctx, statement, args...); err != nil {
		return errors.Wrap(err, wrapMsg)
	}

	return nil
}

// ListDigestRecipients lists the users who receive digests of the given frequency. Users without a preference
// row receive every digest.
func ListDigestRecipients(ctx context.Context, tx *sql.Tx, frequency model.Frequency) ([]*model.User, error) {
	wrapMsg := fmt.Sprintf("unable to list %s digest recipients", frequency)

	column, ok := digestColumns[frequency]
	if !ok {
		return nil, fmt.Errorf("%s: unsupported digest frequency", wrapMsg)
	}

	// Build the query.
	query, args, err := psql.
		Select("u.id", "u.name", "u.email", "COALESCE(u.avatar_url, '')").
		From("users u").
		LeftJoin("notification_preferences p ON p.user_id = u.id").
		Where(fmt.Sprintf("COALESCE(p.%s, TRUE)", column)).
		OrderBy("u.id").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	// Query the database.
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}
	defer rows.Close()

	users := make([]*model.User, 0)
	for rows.Next() {
		var u model.User
		if err = rows.Scan(&u.ID, &u.Name, &u.Email, &u.AvatarURL); err != nil {
			return nil, errors.Wrap(err, wrapMsg)
		}
		users = append(users, &u)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	return users, nil
}
