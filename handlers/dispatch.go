package handlers

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/cyverse-de/project-notifications/common"
	"github.com/cyverse-de/project-notifications/dispatcher"
	"github.com/cyverse-de/project-notifications/model"
	"github.com/streadway/amqp"
)

// DispatchRequest represents a deserialized request to create a notification.
type DispatchRequest struct {
	Recipient string `json:"recipient"`
	Category  string `json:"category"`
	Message   string `json:"message"`
	Link      string `json:"link"`
	Actor     string `json:"actor"`
}

// Dispatcher creates and delivers notifications.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *dispatcher.Request) (*model.Notification, error)
}

// Dispatch is a message handler for notification requests published by other services.
type Dispatch struct {
	dispatcher Dispatcher
}

// NewDispatch returns a new notification request handler.
func NewDispatch(d Dispatcher) *Dispatch {
	return &Dispatch{dispatcher: d}
}

// HandleMessage handles a single AMQP delivery.
func (h *Dispatch) HandleMessage(ctx context.Context, delivery amqp.Delivery) error {

	// Parse the message body.
	var request DispatchRequest
	err := json.Unmarshal(delivery.Body, &request)
	if err != nil {
		return NewUnrecoverableError("unable to parse message body: %s", err.Error())
	}

	// Validate the category.
	category, err := model.ParseCategory(request.Category)
	if err != nil {
		return NewUnrecoverableError("%s", err.Error())
	}

	// Create and deliver the notification.
	_, err = h.dispatcher.Dispatch(ctx, &dispatcher.Request{
		Recipient: request.Recipient,
		Category:  category,
		Message:   request.Message,
		Link:      request.Link,
		Actor:     request.Actor,
	})
	if err != nil {
		return classify(err)
	}

	return nil
}

// classify decides whether a failed request is worth retrying. Requests that refer to missing users or that
// are otherwise invalid will never succeed.
func classify(err error) error {
	var (
		invalid  common.ValidationError
		notFound common.NotFoundError
	)
	if errors.As(err, &invalid) || errors.As(err, &notFound) {
		return NewUnrecoverableError("%s", err.Error())
	}
	return NewRecoverableError("%s", err.Error())
}
