package handlers

import (
	"context"

	"github.com/streadway/amqp"
)

// DispatchRoutingKey is the routing key for requests to create and deliver a notification.
const DispatchRoutingKey = "events.notification.dispatch"

// ProjectUpdatedRoutingKey is the routing key for signals that a project's contents changed.
const ProjectUpdatedRoutingKey = "events.project.updated"

// MessageHandler describes the interface used to handle AMQP messages.
type MessageHandler interface {
	HandleMessage(ctx context.Context, delivery amqp.Delivery) error
}

// InitMessageHandlers returns a map from routing key to message handler.
func InitMessageHandlers(d Dispatcher, b Broadcaster) map[string]MessageHandler {
	return map[string]MessageHandler{
		DispatchRoutingKey:       NewDispatch(d),
		ProjectUpdatedRoutingKey: NewProjectUpdated(b),
	}
}
