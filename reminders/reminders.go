// Package reminders notifies assignees about tasks whose due date is approaching.
package reminders

import (
	"context"
	"fmt"
	"time"

	"github.com/cyverse-de/project-notifications/common"
	"github.com/cyverse-de/project-notifications/dispatcher"
	"github.com/cyverse-de/project-notifications/model"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var log = common.Log.WithField("package", "reminders")

// Horizon is the number of days ahead of today that due dates are checked.
const Horizon = 3

// TaskSource lists tasks by due date.
type TaskSource interface {
	TasksDueBetween(ctx context.Context, start, end time.Time) ([]*model.Task, error)
}

// Dispatcher creates and delivers notifications.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *dispatcher.Request) (*model.Notification, error)
}

// Checker sends due-date reminders.
type Checker struct {
	tasks      TaskSource
	dispatcher Dispatcher
}

// NewChecker creates a new due-date checker.
func NewChecker(tasks TaskSource, d Dispatcher) *Checker {
	return &Checker{tasks: tasks, dispatcher: d}
}

// startOfDay truncates a time to midnight in its own location.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// daysUntil returns the number of calendar days from today until the due date. Due dates are calendar dates;
// the database returns them as midnight UTC, so their own date fields are used rather than converting them.
func daysUntil(today, due time.Time) int {
	y, m, d := due.Date()
	dueDay := time.Date(y, m, d, 0, 0, 0, 0, today.Location())
	return int(dueDay.Sub(today).Hours()+12) / 24
}

// Message describes how soon a task is due.
func Message(title string, days int) string {
	switch days {
	case 0:
		return fmt.Sprintf("Task '%s' is due today.", title)
	case 1:
		return fmt.Sprintf("Task '%s' is due tomorrow.", title)
	default:
		return fmt.Sprintf("Task '%s' is due in %d days.", title, days)
	}
}

// Link returns the dashboard link for a task.
func Link(task *model.Task) string {
	return fmt.Sprintf("/dashboard/project/%s?taskId=%s", task.ProjectID, task.ID)
}

// Run notifies the assignee of every unfinished task that is due between today and Horizon days from today,
// where today is the calendar day of now in its own location.
// It returns the number of reminders that were dispatched.
func (c *Checker) Run(ctx context.Context, now time.Time) (int, error) {
	today := startOfDay(now)
	end := today.AddDate(0, 0, Horizon)

	tasks, err := c.tasks.TasksDueBetween(ctx, today, end)
	if err != nil {
		return 0, errors.Wrap(err, "unable to check task due dates")
	}

	count := 0
	for _, task := range tasks {
		if task.Assignee == "" || task.Status == model.TaskDone {
			continue
		}

		req := &dispatcher.Request{
			Recipient: task.Assignee,
			Category:  model.TaskDueSoon,
			Message:   Message(task.Title, daysUntil(today, task.DueDate)),
			Link:      Link(task),
			Actor:     task.Assignee,
		}
		if _, err = c.dispatcher.Dispatch(ctx, req); err != nil {
			log.WithFields(logrus.Fields{"task": task.ID, "user": task.Assignee}).
				WithError(err).
				Error("unable to send due-date reminder")
			continue
		}
		count++
	}

	log.Infof("%d due-date reminders sent", count)
	return count, nil
}
