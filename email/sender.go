// Package email delivers notification and digest e-mails. Every transport validates the recipient address
// before handing the message off; the Async wrapper decouples callers from mail-server latency.
package email

import (
	"context"

	"github.com/cyverse-de/project-notifications/common"
	"github.com/pkg/errors"
)

var log = common.Log.WithField("package", "email")

// Message is a single HTML e-mail.
type Message struct {
	To       string
	Subject  string
	HTMLBody string
}

// Sender delivers e-mail messages.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// validate verifies that a message can be sent.
func validate(msg *Message) error {
	if err := common.ValidateEmailAddress(msg.To); err != nil {
		return errors.Wrapf(err, "invalid recipient address `%s`", msg.To)
	}
	if msg.Subject == "" {
		return errors.New("an e-mail subject is required")
	}
	return nil
}

// LogSender writes messages to the log instead of sending them. It is used in development deployments.
type LogSender struct{}

// Send logs the message.
func (LogSender) Send(_ context.Context, msg *Message) error {
	if err := validate(msg); err != nil {
		return err
	}
	log.WithField("to", msg.To).WithField("subject", msg.Subject).Info("e-mail delivery is disabled; message logged")
	return nil
}
