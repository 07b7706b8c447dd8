package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/cyverse-de/project-notifications/common"
	"github.com/cyverse-de/project-notifications/dispatcher"
	"github.com/cyverse-de/project-notifications/model"
	"github.com/cyverse-de/project-notifications/registry"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
)

// FakeNotificationID is the identifier that will be assigned to notifications by the mock dispatcher.
const FakeNotificationID = "46ae63be-7030-4cdd-8eb9-66aa49fcf38b"

// MockDispatcher records the requests it receives.
type MockDispatcher struct {
	Request *dispatcher.Request
	err     error
}

// Dispatch stores a copy of the request for later inspection.
func (d *MockDispatcher) Dispatch(_ context.Context, req *dispatcher.Request) (*model.Notification, error) {
	d.Request = req
	if d.err != nil {
		return nil, d.err
	}
	return &model.Notification{ID: FakeNotificationID, Recipient: req.Recipient, Category: req.Category}, nil
}

// MockBroadcaster records the broadcasts it receives.
type MockBroadcaster struct {
	ProjectID string
	EventName string
	Payload   interface{}
}

// BroadcastToProject stores the broadcast for later inspection.
func (b *MockBroadcaster) BroadcastToProject(_ context.Context, projectID, eventName string, payload interface{}) {
	b.ProjectID = projectID
	b.EventName = eventName
	b.Payload = payload
}

// getDispatchRequest returns a map that can be used as a notification request.
func getDispatchRequest() map[string]interface{} {
	return map[string]interface{}{
		"recipient": "a",
		"category":  "task-assigned",
		"message":   "Task 'X' assigned",
		"link":      "/project/1?taskId=5",
		"actor":     "b",
	}
}

// getDelivery marshals a request into an AMQP delivery.
func getDelivery(t *testing.T, key string, req interface{}) amqp.Delivery {
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("unable to marshal the request: %s", err.Error())
	}
	return amqp.Delivery{Body: body, RoutingKey: key}
}

func TestDispatch(t *testing.T) {
	assert := assert.New(t)

	d := &MockDispatcher{}
	handler := NewDispatch(d)

	err := handler.HandleMessage(context.Background(), getDelivery(t, DispatchRoutingKey, getDispatchRequest()))
	if err != nil {
		t.Fatalf("unexpected error returned by dispatch handler: %s", err.Error())
	}

	// Spot-check the request that was passed along.
	if d.Request == nil {
		t.Fatalf("no notification was dispatched")
	}
	assert.Equal("a", d.Request.Recipient, "incorrect recipient")
	assert.Equal(model.TaskAssigned, d.Request.Category, "incorrect category")
	assert.Equal("b", d.Request.Actor, "incorrect actor")
	assert.Equal("/project/1?taskId=5", d.Request.Link, "incorrect link")
}

func TestDispatchMalformedBody(t *testing.T) {
	d := &MockDispatcher{}
	handler := NewDispatch(d)

	err := handler.HandleMessage(context.Background(), amqp.Delivery{Body: []byte("{not json")})
	_, ok := err.(UnrecoverableError)
	assert.True(t, ok, "a malformed body should be unrecoverable")
	assert.Nil(t, d.Request)
}

func TestDispatchUnknownCategory(t *testing.T) {
	d := &MockDispatcher{}
	handler := NewDispatch(d)

	req := getDispatchRequest()
	req["category"] = "task-exploded"

	err := handler.HandleMessage(context.Background(), getDelivery(t, DispatchRoutingKey, req))
	_, ok := err.(UnrecoverableError)
	assert.True(t, ok, "an unknown category should be unrecoverable")
	assert.Nil(t, d.Request)
}

func TestDispatchErrorClassification(t *testing.T) {
	assert := assert.New(t)

	// Missing users will never appear by retrying.
	d := &MockDispatcher{err: common.NewNotFoundError("user `a` not found")}
	err := NewDispatch(d).HandleMessage(context.Background(), getDelivery(t, DispatchRoutingKey, getDispatchRequest()))
	_, ok := err.(UnrecoverableError)
	assert.True(ok, "a missing user should be unrecoverable")

	// Storage failures may be transient.
	d = &MockDispatcher{err: errors.New("connection reset by peer")}
	err = NewDispatch(d).HandleMessage(context.Background(), getDelivery(t, DispatchRoutingKey, getDispatchRequest()))
	_, ok = err.(RecoverableError)
	assert.True(ok, "a storage failure should be recoverable")
}

func TestProjectUpdated(t *testing.T) {
	assert := assert.New(t)

	b := &MockBroadcaster{}
	handler := NewProjectUpdated(b)

	err := handler.HandleMessage(
		context.Background(),
		getDelivery(t, ProjectUpdatedRoutingKey, map[string]interface{}{"project_id": "p1"}),
	)
	if err != nil {
		t.Fatalf("unexpected error returned by project update handler: %s", err.Error())
	}

	assert.Equal("p1", b.ProjectID)
	assert.Equal(registry.EventProjectUpdated, b.EventName)
	payload, ok := b.Payload.(*model.ProjectUpdatedPayload)
	if !ok {
		t.Fatal("payload doesn't appear to be a ProjectUpdatedPayload")
	}
	assert.Equal("p1", payload.ProjectID)
}

func TestProjectUpdatedWithoutProject(t *testing.T) {
	b := &MockBroadcaster{}
	err := NewProjectUpdated(b).HandleMessage(
		context.Background(),
		getDelivery(t, ProjectUpdatedRoutingKey, map[string]interface{}{}),
	)
	_, ok := err.(UnrecoverableError)
	assert.True(t, ok, "a missing project ID should be unrecoverable")
	assert.Equal(t, "", b.ProjectID)
}

func TestInitMessageHandlers(t *testing.T) {
	handlerFor := InitMessageHandlers(&MockDispatcher{}, &MockBroadcaster{})
	assert.Len(t, handlerFor, 2)
	assert.IsType(t, &Dispatch{}, handlerFor[DispatchRoutingKey])
	assert.IsType(t, &ProjectUpdated{}, handlerFor[ProjectUpdatedRoutingKey])
}
