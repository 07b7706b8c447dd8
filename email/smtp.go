package email

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/smtp"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/pkg/errors"
)

// SMTPSettings represents the settings required to deliver e-mail through an SMTP relay.
type SMTPSettings struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// SMTPSender delivers e-mail through an SMTP relay.
type SMTPSender struct {
	settings SMTPSettings
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	now      func() time.Time
}

// NewSMTPSender returns a new SMTP sender.
func NewSMTPSender(settings SMTPSettings) *SMTPSender {
	return &SMTPSender{
		settings: settings,
		sendMail: smtp.SendMail,
		now:      time.Now,
	}
}

// compose builds the MIME representation of a message.
func (s *SMTPSender) compose(msg *Message) ([]byte, error) {
	wrapMsg := "unable to compose the e-mail message"

	var h mail.Header
	h.SetDate(s.now())
	h.SetAddressList("From", []*mail.Address{{Name: s.settings.FromName, Address: s.settings.From}})
	h.SetAddressList("To", []*mail.Address{{Address: msg.To}})
	h.SetSubject(msg.Subject)
	h.SetContentType("text/html", map[string]string{"charset": "utf-8"})
	if err := h.GenerateMessageID(); err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}
	if _, err = io.WriteString(w, msg.HTMLBody); err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}
	if err = w.Close(); err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	return buf.Bytes(), nil
}

// Send delivers a message. The SMTP exchange is not interruptible, so the context is only checked before it
// starts.
func (s *SMTPSender) Send(ctx context.Context, msg *Message) error {
	wrapMsg := fmt.Sprintf("unable to send e-mail to `%s`", msg.To)

	if err := validate(msg); err != nil {
		return errors.Wrap(err, wrapMsg)
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, wrapMsg)
	}

	body, err := s.compose(msg)
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}

	var auth smtp.Auth
	if s.settings.Username != "" {
		auth = smtp.PlainAuth("", s.settings.Username, s.settings.Password, s.settings.Host)
	}

	addr := fmt.Sprintf("%s:%d", s.settings.Host, s.settings.Port)
	if err = s.sendMail(addr, auth, s.settings.From, []string{msg.To}, body); err != nil {
		return errors.Wrap(err, wrapMsg)
	}

	log.WithField("to", msg.To).Info("e-mail sent")
	return nil
}
