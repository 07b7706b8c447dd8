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

// notificationColumns lists the columns selected whenever a notification is loaded.
var notificationColumns = []string{
	"n.id",
	"n.recipient_id",
	"COALESCE(n.actor_id::text, '')",
	"n.category",
	"n.message",
	"COALESCE(n.link, '')",
	"n.is_read",
	"n.created_at",
}

// scanner is implemented by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanNotification(row scanner, n *model.Notification) error {
	var category string
	err := row.Scan(&n.ID, &n.Recipient, &n.Actor, &category, &n.Message, &n.Link, &n.Read, &n.CreatedAt)
	if err != nil {
		return err
	}
	n.Category = model.Category(category)
	return nil
}

// CountUnreadNotifications counts the number of notifications for the user that haven't been marked as read.
func CountUnreadNotifications(ctx context.Context, tx *sql.Tx, userID string) (int64, error) {
	wrapMsg := "unable to count unread notifications"
	var total int64

	// Build the statement to count the unread notifications.
	statement, args, err := psql.
		Select("count(*)").
		From("notifications").
		Where(sq.Eq{"recipient_id": userID}).
		Where(sq.Eq{"is_read": false}).
		ToSql()
	if err != nil {
		return 0, errors.Wrap(err, wrapMsg)
	}

	// Execute the statement.
	err = tx.QueryRowContext(ctx, statement, args...).Scan(&total)
	if err != nil {
		return 0, errors.Wrap(err, wrapMsg)
	}

	return total, nil
}

// SaveNotification saves a single notification into the database. The identifier and creation timestamp
// assigned by the database are stored in the notification structure.
func SaveNotification(ctx context.Context, tx *sql.Tx, notification *model.Notification) error {
	wrapMsg := "unable to save notification"

	// Build the statement to insert the notification.
	statement, args, err := psql.
		Insert("notifications").
		Columns(
			"recipient_id",
			"actor_id",
			"category",
			"message",
			"link",
			"is_read").
		Values(
			notification.Recipient,
			nullString(notification.Actor),
			string(notification.Category),
			notification.Message,
			nullString(notification.Link),
			false).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}

	// Execute the insert statement, scanning the ID and timestamp into the notification structure.
	row := tx.QueryRowContext(ctx, statement, args...)
	err = row.Scan(&notification.ID, &notification.CreatedAt)
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}
	notification.Read = false

	return nil
}

// GetNotification loads a single notification. A common.NotFoundError is returned if it doesn't exist.
func GetNotification(ctx context.Context, tx *sql.Tx, id string) (*model.Notification, error) {
	wrapMsg := fmt.Sprintf("unable to look up notification `%s`", id)

	// Build the query.
	query, args, err := psql.
		Select(notificationColumns...).
		From("notifications n").
		Where(sq.Eq{"n.id": id}).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	// Query the database.
	var notification model.Notification
	err = scanNotification(tx.QueryRowContext(ctx, query, args...), &notification)
	if err == sql.ErrNoRows {
		return nil, common.NewNotFoundError("notification `%s` not found", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	return &notification, nil
}

// ListNotifications lists the notifications belonging to a user, newest first, along with the public details
// of the user who caused each one.
func ListNotifications(
	ctx context.Context,
	tx *sql.Tx,
	userID string,
	filter *model.NotificationFilter,
) ([]*model.NotificationResponse, error) {
	wrapMsg := "unable to list notifications"

	// Build the query.
	columns := append(append([]string{}, notificationColumns...),
		"COALESCE(a.name, '')",
		"COALESCE(a.avatar_url, '')")
	builder := psql.
		Select(columns...).
		From("notifications n").
		LeftJoin("users a ON n.actor_id = a.id").
		Where(sq.Eq{"n.recipient_id": userID}).
		OrderBy("n.created_at DESC", "n.id DESC")
	if filter != nil && filter.Category != "" {
		builder = builder.Where(sq.Eq{"n.category": string(filter.Category)})
	}
	if filter != nil && filter.UnreadOnly {
		builder = builder.Where(sq.Eq{"n.is_read": false})
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	// Query the database.
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}
	defer rows.Close()

	// Build the list of notifications.
	result := make([]*model.NotificationResponse, 0)
	for rows.Next() {
		var (
			n         model.Notification
			category  string
			actorName string
			avatarURL string
		)
		err = rows.Scan(
			&n.ID, &n.Recipient, &n.Actor, &category, &n.Message, &n.Link, &n.Read, &n.CreatedAt,
			&actorName, &avatarURL,
		)
		if err != nil {
			return nil, errors.Wrap(err, wrapMsg)
		}
		n.Category = model.Category(category)

		var actor *model.User
		if n.HasActor() {
			actor = &model.User{ID: n.Actor, Name: actorName, AvatarURL: avatarURL}
		}
		result = append(result, model.NewNotificationResponse(&n, actor))
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	return result, nil
}

// MarkNotificationRead marks a single notification as read.
func MarkNotificationRead(ctx context.Context, tx *sql.Tx, id string) error {
	wrapMsg := fmt.Sprintf("unable to mark notification `%s` as read", id)

	// Build the update statement.
	statement, args, err := psql.
		Update("notifications").
		Set("is_read", true).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}

	// Execute the update statement and verify that the correct number of rows was affected.
	result, err := tx.ExecContext(ctx, statement, args...)
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}
	if rowsAffected != 1 {
		return fmt.Errorf("%s: unexpected number of rows affected: %d", wrapMsg, rowsAffected)
	}

	return nil
}

// MarkAllNotificationsRead marks every unread notification belonging to a user as read, returning the number
// of notifications that changed.
func MarkAllNotificationsRead(ctx context.Context, tx *sql.Tx, userID string) (int64, error) {
	wrapMsg := "unable to mark all notifications as read"

	// Build the update statement.
	statement, args, err := psql.
		Update("notifications").
		Set("is_read", true).
		Where(sq.Eq{"recipient_id": userID}).
		Where(sq.Eq{"is_read": false}).
		ToSql()
	if err != nil {
		return 0, errors.Wrap(err, wrapMsg)
	}

	// Execute the update statement.
	result, err := tx.ExecContext(ctx, statement, args...)
	if err != nil {
		return 0, errors.Wrap(err, wrapMsg)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, wrapMsg)
	}

	return rowsAffected, nil
}
