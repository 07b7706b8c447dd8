package handlerset

import (
	"context"

	"github.com/cyverse-de/messaging/v9"
	"github.com/cyverse-de/project-notifications/common"
	"github.com/cyverse-de/project-notifications/handlers"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
)

var log = common.Log.WithField("package", "handlerset")

// AMQPSettings represents the settings that we require in order to connect to the AMQP exchange.
type AMQPSettings struct {
	URI          string
	ExchangeName string
	ExchangeType string
	QueueName    string
	Prefetch     int
}

// HandlerSet represents a set of AMQP message handlers.
type HandlerSet struct {
	amqpClient *messaging.Client
	settings   *AMQPSettings
	handlerFor map[string]handlers.MessageHandler
}

// New creates a new handler set and prepares it for publishing. Handlers are registered with AddHandlers.
func New(amqpSettings *AMQPSettings) (*HandlerSet, error) {
	wrapMsg := "unable to create the message handler set"

	// Create the AMQP client.
	amqpClient, err := messaging.NewClient(amqpSettings.URI, true)
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	// Outgoing e-mail requests are published to the same exchange.
	err = amqpClient.SetupPublishing(amqpSettings.ExchangeName)
	if err != nil {
		amqpClient.Close()
		return nil, errors.Wrap(err, wrapMsg)
	}

	// Build and return the handler set.
	handlerSet := HandlerSet{
		amqpClient: amqpClient,
		settings:   amqpSettings,
		handlerFor: make(map[string]handlers.MessageHandler),
	}
	return &handlerSet, nil
}

// AddHandlers binds the queue to every routing key in handlerFor and registers the handlers.
func (hs *HandlerSet) AddHandlers(handlerFor map[string]handlers.MessageHandler) {
	for routingKey, handler := range handlerFor {
		hs.handlerFor[routingKey] = handler
		hs.amqpClient.AddConsumer(
			hs.settings.ExchangeName,
			hs.settings.ExchangeType,
			hs.settings.QueueName,
			routingKey,
			hs.handleDelivery,
			hs.settings.Prefetch,
		)
		log.WithField("routing-key", routingKey).Info("message handler registered")
	}
}

// Listen starts consuming messages in the background.
func (hs *HandlerSet) Listen() {
	go hs.amqpClient.Listen()
}

// PublishEmailRequestContext publishes a request to the e-mail relay.
func (hs *HandlerSet) PublishEmailRequestContext(ctx context.Context, request *messaging.EmailRequest) error {
	return hs.amqpClient.PublishEmailRequestContext(ctx, request)
}

// handleDelivery passes a delivery to the handler registered for its routing key.
func (hs *HandlerSet) handleDelivery(ctx context.Context, delivery amqp.Delivery) {
	handler, ok := hs.handlerFor[delivery.RoutingKey]
	if !ok {
		log.WithField("routing-key", delivery.RoutingKey).Error("no handler registered for routing key")
		reject(delivery)
		return
	}
	process(ctx, handler, delivery)
}

// process handles a single delivery and acknowledges it. Recoverable failures are requeued; every other
// failure is rejected.
func process(ctx context.Context, handler handlers.MessageHandler, delivery amqp.Delivery) {
	logger := log.WithFields(logrus.Fields{"routing-key": delivery.RoutingKey, "delivery-tag": delivery.DeliveryTag})

	err := handler.HandleMessage(ctx, delivery)
	if err == nil {
		if err = delivery.Ack(false); err != nil {
			logger.WithError(err).Error("unable to acknowledge message")
		}
		return
	}

	switch err.(type) {
	case handlers.RecoverableError:
		logger.WithError(err).Warn("message handling failed; requeueing")
		if err = delivery.Nack(false, true); err != nil {
			logger.WithError(err).Error("unable to requeue message")
		}
	default:
		logger.WithError(err).Error("message handling failed; rejecting")
		reject(delivery)
	}
}

// reject rejects a delivery without requeueing it.
func reject(delivery amqp.Delivery) {
	if err := delivery.Reject(false); err != nil {
		log.WithField("routing-key", delivery.RoutingKey).WithError(err).Error("unable to reject message")
	}
}

// Close closes a message handler set.
func (hs *HandlerSet) Close() {
	hs.amqpClient.Close()
}
