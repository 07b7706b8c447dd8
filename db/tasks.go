package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/cyverse-de/project-notifications/model"
	"github.com/pkg/errors"

	sq "github.com/Masterminds/squirrel"
)

// taskColumns lists the columns selected whenever a task is loaded.
var taskColumns = []string{
	"t.id",
	"t.project_id",
	"t.title",
	"t.status",
	"COALESCE(t.assignee_id::text, '')",
	"t.due_date",
	"t.created_at",
	"t.updated_at",
}

// queryTasks runs a task query and scans every row.
func queryTasks(ctx context.Context, tx *sql.Tx, builder sq.SelectBuilder, wrapMsg string) ([]*model.Task, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}
	defer rows.Close()

	tasks := make([]*model.Task, 0)
	for rows.Next() {
		var (
			t       model.Task
			status  string
			dueDate sql.NullTime
		)
		err = rows.Scan(&t.ID, &t.ProjectID, &t.Title, &status, &t.Assignee, &dueDate, &t.CreatedAt, &t.UpdatedAt)
		if err != nil {
			return nil, errors.Wrap(err, wrapMsg)
		}
		t.Status = model.TaskStatus(status)
		if dueDate.Valid {
			t.DueDate = dueDate.Time
		}
		tasks = append(tasks, &t)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	return tasks, nil
}

// NewlyAssignedTasks lists the tasks in a project that were assigned to a user after the given time and that
// are not yet done.
func NewlyAssignedTasks(
	ctx context.Context,
	tx *sql.Tx,
	projectID, userID string,
	since time.Time,
) ([]*model.Task, error) {
	builder := psql.
		Select(taskColumns...).
		From("tasks t").
		Where(sq.Eq{"t.project_id": projectID}).
		Where(sq.Eq{"t.assignee_id": userID}).
		Where(sq.NotEq{"t.status": string(model.TaskDone)}).
		Where(sq.Gt{"t.created_at": since}).
		OrderBy("t.created_at")
	return queryTasks(ctx, tx, builder, "unable to list newly assigned tasks")
}

// CompletedTasks lists the tasks in a project assigned to a user that were completed after the given time.
func CompletedTasks(
	ctx context.Context,
	tx *sql.Tx,
	projectID, userID string,
	since time.Time,
) ([]*model.Task, error) {
	builder := psql.
		Select(taskColumns...).
		From("tasks t").
		Where(sq.Eq{"t.project_id": projectID}).
		Where(sq.Eq{"t.assignee_id": userID}).
		Where(sq.Eq{"t.status": string(model.TaskDone)}).
		Where(sq.Gt{"t.updated_at": since}).
		OrderBy("t.updated_at")
	return queryTasks(ctx, tx, builder, "unable to list completed tasks")
}

// CommentedTasks lists the tasks in a project assigned to a user that received comments from other users after
// the given time. A task is listed once for every qualifying comment.
func CommentedTasks(
	ctx context.Context,
	tx *sql.Tx,
	projectID, userID string,
	since time.Time,
) ([]*model.Task, error) {
	builder := psql.
		Select(taskColumns...).
		From("comments c").
		Join("tasks t ON c.task_id = t.id").
		Where(sq.Eq{"t.project_id": projectID}).
		Where(sq.Eq{"t.assignee_id": userID}).
		Where(sq.NotEq{"c.user_id": userID}).
		Where(sq.Gt{"c.created_at": since}).
		OrderBy("c.created_at")
	return queryTasks(ctx, tx, builder, "unable to list commented tasks")
}

// dateLayout formats the calendar day a time falls on, in the time's own location.
const dateLayout = "2006-01-02"

// TasksDueBetween lists the assigned tasks that are not done and whose due date falls on one of the calendar
// days from start to end, inclusive. Only the calendar days of start and end are used.
func TasksDueBetween(ctx context.Context, tx *sql.Tx, start, end time.Time) ([]*model.Task, error) {
	builder := psql.
		Select(taskColumns...).
		From("tasks t").
		Where(sq.NotEq{"t.assignee_id": nil}).
		Where(sq.NotEq{"t.status": string(model.TaskDone)}).
		Where(sq.GtOrEq{"t.due_date": start.Format(dateLayout)}).
		Where(sq.LtOrEq{"t.due_date": end.Format(dateLayout)}).
		OrderBy("t.due_date", "t.id")
	return queryTasks(ctx, tx, builder, "unable to list tasks that are due soon")
}
