package model

import (
	"fmt"
	"time"
)

// Category identifies the kind of event a notification describes. The set of categories is closed.
type Category string

// The supported notification categories.
const (
	TaskAssigned      Category = "task-assigned"
	TaskUpdated       Category = "task-updated"
	TaskCommented     Category = "task-commented"
	TaskDueSoon       Category = "task-due-soon"
	ProjectInvitation Category = "project-invitation"
	ProjectJoined     Category = "project-joined"
	TaskCompleted     Category = "task-completed"
)

var displayNames = map[Category]string{
	TaskAssigned:      "New task assigned",
	TaskUpdated:       "Task updated",
	TaskCommented:     "New comment",
	TaskDueSoon:       "Task due soon",
	ProjectInvitation: "Project invitation",
	ProjectJoined:     "Project joined",
	TaskCompleted:     "Task completed",
}

// Categories returns every supported category.
func Categories() []Category {
	return []Category{
		TaskAssigned,
		TaskUpdated,
		TaskCommented,
		TaskDueSoon,
		ProjectInvitation,
		ProjectJoined,
		TaskCompleted,
	}
}

// Valid returns true if the category is one of the supported categories.
func (c Category) Valid() bool {
	_, ok := displayNames[c]
	return ok
}

// DisplayName returns the human readable name of the category.
func (c Category) DisplayName() string {
	if name, ok := displayNames[c]; ok {
		return name
	}
	return string(c)
}

// ParseCategory converts a category slug into a Category, returning an error for unknown slugs.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown notification category: %s", s)
	}
	return c, nil
}

// Notification represents a single notification stored for a recipient.
type Notification struct {
	ID        string
	Recipient string
	Actor     string
	Category  Category
	Message   string
	Link      string
	Read      bool
	CreatedAt time.Time
}

// HasActor returns true if the notification was triggered by a known user.
func (n *Notification) HasActor() bool {
	return n.Actor != ""
}

// NotificationFilter describes the optional restrictions applied when notifications are listed.
type NotificationFilter struct {
	Category   Category
	UnreadOnly bool
}
