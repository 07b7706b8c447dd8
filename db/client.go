package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/cyverse-de/project-notifications/model"
	"github.com/pkg/errors"
)

// Client wraps a database connection. Operations that must take part in a caller's transaction accept a
// *sql.Tx; the rest run in a transaction of their own.
type Client struct {
	db *sql.DB
}

// NewClient returns a new database client.
func NewClient(db *sql.DB) *Client {
	return &Client{db: db}
}

// Begin starts a new transaction.
func (c *Client) Begin(ctx context.Context) (*sql.Tx, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "unable to begin a database transaction")
	}
	return tx, nil
}

// Commit commits a transaction.
func (c *Client) Commit(tx *sql.Tx) error {
	return tx.Commit()
}

// Rollback rolls back a transaction. Rolling back a transaction that has already been committed is harmless.
func (c *Client) Rollback(tx *sql.Tx) error {
	err := tx.Rollback()
	if err == sql.ErrTxDone {
		return nil
	}
	return err
}

// Ping verifies that the database can be reached.
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (c *Client) Close() error {
	return c.db.Close()
}

// inTx runs fn in a new transaction, committing it if fn succeeds and rolling it back otherwise.
func (c *Client) inTx(ctx context.Context, readOnly bool, fn func(tx *sql.Tx) error) error {
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: readOnly})
	if err != nil {
		return errors.Wrap(err, "unable to begin a database transaction")
	}
	defer func() { _ = c.Rollback(tx) }()

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "unable to commit the database transaction")
	}
	return nil
}

// SaveNotification saves a notification within the caller's transaction.
func (c *Client) SaveNotification(ctx context.Context, tx *sql.Tx, notification *model.Notification) error {
	return SaveNotification(ctx, tx, notification)
}

// GetNotification loads a notification within the caller's transaction.
func (c *Client) GetNotification(ctx context.Context, tx *sql.Tx, id string) (*model.Notification, error) {
	return GetNotification(ctx, tx, id)
}

// MarkNotificationRead marks a notification as read within the caller's transaction.
func (c *Client) MarkNotificationRead(ctx context.Context, tx *sql.Tx, id string) error {
	return MarkNotificationRead(ctx, tx, id)
}

// GetUser loads a user within the caller's transaction.
func (c *Client) GetUser(ctx context.Context, tx *sql.Tx, id string) (*model.User, error) {
	return GetUser(ctx, tx, id)
}

// ListNotifications lists a user's notifications, newest first.
func (c *Client) ListNotifications(
	ctx context.Context,
	userID string,
	filter *model.NotificationFilter,
) ([]*model.NotificationResponse, error) {
	var result []*model.NotificationResponse
	err := c.inTx(ctx, true, func(tx *sql.Tx) error {
		var err error
		result, err = ListNotifications(ctx, tx, userID, filter)
		return err
	})
	return result, err
}

// MarkAllNotificationsRead marks all of a user's notifications as read in a single statement.
func (c *Client) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := c.inTx(ctx, false, func(tx *sql.Tx) error {
		var err error
		count, err = MarkAllNotificationsRead(ctx, tx, userID)
		return err
	})
	return count, err
}

// CountUnreadNotifications counts a user's unread notifications.
func (c *Client) CountUnreadNotifications(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := c.inTx(ctx, true, func(tx *sql.Tx) error {
		var err error
		count, err = CountUnreadNotifications(ctx, tx, userID)
		return err
	})
	return count, err
}

// GetPreferences loads a user's notification preferences, returning nil if none have been saved.
func (c *Client) GetPreferences(ctx context.Context, userID string) (*model.Preferences, error) {
	var prefs *model.Preferences
	err := c.inTx(ctx, true, func(tx *sql.Tx) error {
		var err error
		prefs, err = GetPreferences(ctx, tx, userID)
		return err
	})
	return prefs, err
}

// SavePreferences stores a user's notification preferences.
func (c *Client) SavePreferences(ctx context.Context, prefs *model.Preferences) error {
	return c.inTx(ctx, false, func(tx *sql.Tx) error {
		return SavePreferences(ctx, tx, prefs)
	})
}

// DigestRecipients lists the users who receive digests of the given frequency.
func (c *Client) DigestRecipients(ctx context.Context, frequency model.Frequency) ([]*model.User, error) {
	var users []*model.User
	err := c.inTx(ctx, true, func(tx *sql.Tx) error {
		var err error
		users, err = ListDigestRecipients(ctx, tx, frequency)
		return err
	})
	return users, err
}

// AcceptedMemberIDs lists the accepted members of a project.
func (c *Client) AcceptedMemberIDs(ctx context.Context, projectID string) ([]string, error) {
	var ids []string
	err := c.inTx(ctx, true, func(tx *sql.Tx) error {
		var err error
		ids, err = AcceptedMemberIDs(ctx, tx, projectID)
		return err
	})
	return ids, err
}

// AcceptedProjects lists the projects a user has accepted membership in.
func (c *Client) AcceptedProjects(ctx context.Context, userID string) ([]*model.Project, error) {
	var projects []*model.Project
	err := c.inTx(ctx, true, func(tx *sql.Tx) error {
		var err error
		projects, err = AcceptedProjects(ctx, tx, userID)
		return err
	})
	return projects, err
}

// taskLister is the common signature of the task queries used by the digest.
type taskLister func(ctx context.Context, tx *sql.Tx, projectID, userID string, since time.Time) ([]*model.Task, error)

func (c *Client) listTasks(
	ctx context.Context,
	lister taskLister,
	projectID, userID string,
	since time.Time,
) ([]*model.Task, error) {
	var tasks []*model.Task
	err := c.inTx(ctx, true, func(tx *sql.Tx) error {
		var err error
		tasks, err = lister(ctx, tx, projectID, userID, since)
		return err
	})
	return tasks, err
}

// NewlyAssignedTasks lists the open tasks in a project newly assigned to a user.
func (c *Client) NewlyAssignedTasks(ctx context.Context, projectID, userID string, since time.Time) ([]*model.Task, error) {
	return c.listTasks(ctx, NewlyAssignedTasks, projectID, userID, since)
}

// CompletedTasks lists the tasks in a project assigned to a user and completed recently.
func (c *Client) CompletedTasks(ctx context.Context, projectID, userID string, since time.Time) ([]*model.Task, error) {
	return c.listTasks(ctx, CompletedTasks, projectID, userID, since)
}

// CommentedTasks lists the tasks in a project assigned to a user that other users commented on recently.
func (c *Client) CommentedTasks(ctx context.Context, projectID, userID string, since time.Time) ([]*model.Task, error) {
	return c.listTasks(ctx, CommentedTasks, projectID, userID, since)
}

// TasksDueBetween lists open, assigned tasks due on the calendar days from start to end.
func (c *Client) TasksDueBetween(ctx context.Context, start, end time.Time) ([]*model.Task, error) {
	var tasks []*model.Task
	err := c.inTx(ctx, true, func(tx *sql.Tx) error {
		var err error
		tasks, err = TasksDueBetween(ctx, tx, start, end)
		return err
	})
	return tasks, err
}
