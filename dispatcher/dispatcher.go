package dispatcher

import (
	"context"
	"database/sql"
	"net/url"

	"github.com/cyverse-de/project-notifications/common"
	"github.com/cyverse-de/project-notifications/email"
	"github.com/cyverse-de/project-notifications/model"
	"github.com/cyverse-de/project-notifications/registry"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var log = common.Log.WithField("package", "dispatcher")

// DatabaseClient describes the storage operations the dispatcher relies on.
type DatabaseClient interface {
	Begin(ctx context.Context) (*sql.Tx, error)
	Commit(tx *sql.Tx) error
	Rollback(tx *sql.Tx) error
	SaveNotification(ctx context.Context, tx *sql.Tx, notification *model.Notification) error
	GetNotification(ctx context.Context, tx *sql.Tx, id string) (*model.Notification, error)
	MarkNotificationRead(ctx context.Context, tx *sql.Tx, id string) error
	GetUser(ctx context.Context, tx *sql.Tx, id string) (*model.User, error)
	ListNotifications(ctx context.Context, userID string, filter *model.NotificationFilter) ([]*model.NotificationResponse, error)
	MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error)
	CountUnreadNotifications(ctx context.Context, userID string) (int64, error)
}

// Pusher delivers events to users over live connections.
type Pusher interface {
	SendToUser(userID, eventName string, payload interface{})
}

// EmailGate decides whether a notification should be accompanied by an e-mail.
type EmailGate interface {
	ShouldEmail(ctx context.Context, userID string, category model.Category) (bool, error)
}

// Request describes a notifiable event.
type Request struct {
	Recipient string
	Category  model.Category
	Message   string
	Link      string
	Actor     string
}

// Dispatcher turns events into stored notifications and routes them to live connections and e-mail.
type Dispatcher struct {
	db       DatabaseClient
	pusher   Pusher
	gate     EmailGate
	mailer   email.Sender
	linkBase *url.URL
}

// New creates a new dispatcher. The mailer should not block; links in e-mails are resolved against linkBase.
func New(db DatabaseClient, pusher Pusher, gate EmailGate, mailer email.Sender, linkBase string) (*Dispatcher, error) {
	base, err := url.Parse(linkBase)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid link base URL `%s`", linkBase)
	}
	return &Dispatcher{
		db:       db,
		pusher:   pusher,
		gate:     gate,
		mailer:   mailer,
		linkBase: base,
	}, nil
}

// Dispatch stores a notification and delivers it. Storage failures are returned to the caller; delivery
// failures after the notification has been stored are logged and never returned.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) (*model.Notification, error) {
	wrapMsg := "unable to dispatch notification"

	// Validate the request.
	if req.Recipient == "" {
		return nil, common.NewValidationError("a notification recipient is required")
	}
	if !req.Category.Valid() {
		return nil, common.NewValidationError("unknown notification category: %s", req.Category)
	}

	// Begin a database transaction.
	tx, err := d.db.Begin(ctx)
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}
	defer func() { _ = d.db.Rollback(tx) }()

	// Look up the users involved.
	recipient, err := d.db.GetUser(ctx, tx, req.Recipient)
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}
	var actor *model.User
	if req.Actor != "" {
		actor, err = d.db.GetUser(ctx, tx, req.Actor)
		if err != nil {
			return nil, errors.Wrap(err, wrapMsg)
		}
	}

	// Store the notification.
	notification := &model.Notification{
		Recipient: recipient.ID,
		Actor:     req.Actor,
		Category:  req.Category,
		Message:   req.Message,
		Link:      req.Link,
	}
	if err = d.db.SaveNotification(ctx, tx, notification); err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	// Commit the transaction.
	if err = d.db.Commit(tx); err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	fields := logrus.Fields{
		"user":         recipient.ID,
		"notification": notification.ID,
		"category":     notification.Category,
	}
	log.WithFields(fields).Info("notification stored")

	// Live push is never gated by preferences.
	d.pusher.SendToUser(recipient.ID, registry.EventNewNotification, model.NewNotificationResponse(notification, actor))

	d.sendEmail(ctx, recipient, notification, fields)

	return notification, nil
}

// sendEmail sends the e-mail that accompanies a notification if the recipient wants one.
func (d *Dispatcher) sendEmail(ctx context.Context, recipient *model.User, n *model.Notification, fields logrus.Fields) {
	logger := log.WithFields(fields)

	ok, err := d.gate.ShouldEmail(ctx, recipient.ID, n.Category)
	if err != nil {
		logger.WithError(err).Error("unable to check e-mail preferences; no e-mail sent")
		return
	}
	if !ok {
		logger.Debug("e-mail disabled by preferences")
		return
	}

	msg, err := email.NotificationMessage(recipient.Email, n.Category.DisplayName(), n.Message, d.emailLink(n.Link, recipient.ID))
	if err != nil {
		logger.WithError(err).Error("unable to build the notification e-mail")
		return
	}

	if err = d.mailer.Send(ctx, msg); err != nil {
		logger.WithError(err).Error("unable to send the notification e-mail")
	}
}

// emailLink resolves a notification link against the link base and tags it with the recipient.
func (d *Dispatcher) emailLink(link, recipientID string) string {
	if link == "" {
		return ""
	}
	parsed, err := url.Parse(link)
	if err != nil {
		log.WithField("link", link).WithError(err).Warn("unable to parse notification link")
		return ""
	}
	resolved := d.linkBase.ResolveReference(parsed)
	query := resolved.Query()
	query.Set("recipientId", recipientID)
	resolved.RawQuery = query.Encode()
	return resolved.String()
}

// List returns the caller's notifications, newest first.
func (d *Dispatcher) List(
	ctx context.Context,
	callerID string,
	filter *model.NotificationFilter,
) ([]*model.NotificationResponse, error) {
	if filter != nil && filter.Category != "" && !filter.Category.Valid() {
		return nil, common.NewValidationError("unknown notification category: %s", filter.Category)
	}
	result, err := d.db.ListNotifications(ctx, callerID, filter)
	if err != nil {
		return nil, errors.Wrap(err, "unable to list notifications")
	}
	return result, nil
}

// MarkRead marks one of the caller's notifications as read. Notifications belonging to other users cannot be
// marked.
func (d *Dispatcher) MarkRead(ctx context.Context, callerID, notificationID string) error {
	wrapMsg := "unable to mark notification as read"

	tx, err := d.db.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}
	defer func() { _ = d.db.Rollback(tx) }()

	notification, err := d.db.GetNotification(ctx, tx, notificationID)
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}
	if notification.Recipient != callerID {
		return common.NewAccessDeniedError("notification `%s` does not belong to the caller", notificationID)
	}

	if !notification.Read {
		if err = d.db.MarkNotificationRead(ctx, tx, notificationID); err != nil {
			return errors.Wrap(err, wrapMsg)
		}
	}

	if err = d.db.Commit(tx); err != nil {
		return errors.Wrap(err, wrapMsg)
	}

	log.WithFields(logrus.Fields{"user": callerID, "notification": notificationID}).Info("notification marked as read")
	return nil
}

// MarkAllRead marks every notification belonging to the caller as read.
func (d *Dispatcher) MarkAllRead(ctx context.Context, callerID string) (int64, error) {
	count, err := d.db.MarkAllNotificationsRead(ctx, callerID)
	if err != nil {
		return 0, errors.Wrap(err, "unable to mark all notifications as read")
	}
	log.WithField("user", callerID).Infof("%d notifications marked as read", count)
	return count, nil
}

// UnreadCount counts the caller's unread notifications.
func (d *Dispatcher) UnreadCount(ctx context.Context, callerID string) (int64, error) {
	count, err := d.db.CountUnreadNotifications(ctx, callerID)
	if err != nil {
		return 0, errors.Wrap(err, "unable to count unread notifications")
	}
	return count, nil
}
