package model

import "time"

// User describes the parts of a user account that the notification service needs.
type User struct {
	ID        string
	Name      string
	Email     string
	AvatarURL string
}

// Project is a shared project that users may be members of.
type Project struct {
	ID   string
	Name string
}

// TaskStatus is the workflow status of a task.
type TaskStatus string

// Task statuses known to the notification service.
const (
	TaskTodo       TaskStatus = "TODO"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskDone       TaskStatus = "DONE"
)

// Task is a unit of work within a project.
type Task struct {
	ID        string
	ProjectID string
	Title     string
	Status    TaskStatus
	Assignee  string
	DueDate   time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MembershipStatus is the state of a project-membership invitation.
type MembershipStatus string

// Membership statuses. Only accepted memberships take part in broadcasts and digests.
const (
	MembershipPending  MembershipStatus = "PENDING"
	MembershipAccepted MembershipStatus = "ACCEPTED"
	MembershipDeclined MembershipStatus = "DECLINED"
)
