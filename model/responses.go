package model

import "time"

// ActorResponse is the public view of the user who caused a notification.
type ActorResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// NotificationResponse is the serialized form of a notification, used for both the list endpoint and the
// `new-notification` push event.
type NotificationResponse struct {
	ID        string         `json:"id"`
	Category  Category       `json:"category"`
	Message   string         `json:"message"`
	Link      string         `json:"link,omitempty"`
	Read      bool           `json:"read"`
	Timestamp time.Time      `json:"timestamp"`
	Actor     *ActorResponse `json:"actor,omitempty"`
}

// NewNotificationResponse builds the serialized form of a notification. The actor may be nil.
func NewNotificationResponse(n *Notification, actor *User) *NotificationResponse {
	resp := &NotificationResponse{
		ID:        n.ID,
		Category:  n.Category,
		Message:   n.Message,
		Link:      n.Link,
		Read:      n.Read,
		Timestamp: n.CreatedAt,
	}
	if actor != nil {
		resp.Actor = &ActorResponse{
			ID:        actor.ID,
			Name:      actor.Name,
			AvatarURL: actor.AvatarURL,
		}
	}
	return resp
}

// ProjectUpdatedPayload is the payload of the `project-updated` refetch signal.
type ProjectUpdatedPayload struct {
	ProjectID string `json:"projectId"`
}
