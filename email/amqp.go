package email

import (
	"context"
	"fmt"
	"time"

	"github.com/cyverse-de/messaging/v9"
	"github.com/cyverse-de/project-notifications/common"
	"github.com/pkg/errors"
)

// DefaultTemplateName is the relay template used when none is configured. The rendered HTML body is passed to
// it in the `contents` template value.
const DefaultTemplateName = "blank"

// Publisher publishes e-mail requests to the e-mail relay.
type Publisher interface {
	PublishEmailRequestContext(ctx context.Context, request *messaging.EmailRequest) error
}

// AMQPSender hands e-mail off to a relay service by publishing requests on an AMQP exchange.
type AMQPSender struct {
	publisher    Publisher
	templateName string
	from         string
	fromName     string
	now          func() time.Time
}

// NewAMQPSender returns a new sender that publishes e-mail requests.
func NewAMQPSender(publisher Publisher, templateName, from, fromName string) *AMQPSender {
	if templateName == "" {
		templateName = DefaultTemplateName
	}
	return &AMQPSender{
		publisher:    publisher,
		templateName: templateName,
		from:         from,
		fromName:     fromName,
		now:          time.Now,
	}
}

// request builds the relay request for a message.
func (s *AMQPSender) request(msg *Message) *messaging.EmailRequest {
	return &messaging.EmailRequest{
		TemplateName: s.templateName,
		TemplateValues: map[string]interface{}{
			"contents":     msg.HTMLBody,
			"content_type": "text/html",
			"timestamp":    common.FormatTimestamp(s.now()),
		},
		Subject:     msg.Subject,
		ToAddress:   msg.To,
		FromAddress: s.from,
		FromName:    s.fromName,
	}
}

// Send publishes an e-mail request.
func (s *AMQPSender) Send(ctx context.Context, msg *Message) error {
	wrapMsg := fmt.Sprintf("unable to publish e-mail request for `%s`", msg.To)

	if err := validate(msg); err != nil {
		return errors.Wrap(err, wrapMsg)
	}

	if err := s.publisher.PublishEmailRequestContext(ctx, s.request(msg)); err != nil {
		return errors.Wrap(err, wrapMsg)
	}

	return nil
}
