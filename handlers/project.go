package handlers

import (
	"context"
	"encoding/json"

	"github.com/cyverse-de/project-notifications/model"
	"github.com/cyverse-de/project-notifications/registry"
	"github.com/streadway/amqp"
)

// ProjectUpdatedRequest represents a deserialized signal that a project changed.
type ProjectUpdatedRequest struct {
	ProjectID string `json:"project_id"`
}

// Broadcaster delivers an event to every live connection of a project's accepted members.
type Broadcaster interface {
	BroadcastToProject(ctx context.Context, projectID, eventName string, payload interface{})
}

// ProjectUpdated is a message handler that tells connected project members to refetch a project.
type ProjectUpdated struct {
	broadcaster Broadcaster
}

// NewProjectUpdated returns a new project update handler.
func NewProjectUpdated(b Broadcaster) *ProjectUpdated {
	return &ProjectUpdated{broadcaster: b}
}

// HandleMessage handles a single AMQP delivery.
func (h *ProjectUpdated) HandleMessage(ctx context.Context, delivery amqp.Delivery) error {
	var request ProjectUpdatedRequest
	err := json.Unmarshal(delivery.Body, &request)
	if err != nil {
		return NewUnrecoverableError("unable to parse message body: %s", err.Error())
	}
	if request.ProjectID == "" {
		return NewUnrecoverableError("no project ID provided")
	}

	h.broadcaster.BroadcastToProject(
		ctx,
		request.ProjectID,
		registry.EventProjectUpdated,
		&model.ProjectUpdatedPayload{ProjectID: request.ProjectID},
	)
	return nil
}
