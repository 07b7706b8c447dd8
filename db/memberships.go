package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cyverse-de/project-notifications/model"
	"github.com/pkg/errors"

	sq "github.com/Masterminds/squirrel"
)

// AcceptedMemberIDs lists the identifiers of the users whose membership in a project has been accepted.
func AcceptedMemberIDs(ctx context.Context, tx *sql.Tx, projectID string) ([]string, error) {
	wrapMsg := fmt.Sprintf("unable to list the members of project `%s`", projectID)

	// Build the query.
	query, args, err := psql.
		Select("user_id").
		From("project_members").
		Where(sq.Eq{"project_id": projectID}).
		Where(sq.Eq{"invitation_status": string(model.MembershipAccepted)}).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	// Query the database.
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, wrapMsg)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	return ids, nil
}

// AcceptedProjects lists the projects in which a user's membership has been accepted.
func AcceptedProjects(ctx context.Context, tx *sql.Tx, userID string) ([]*model.Project, error) {
	wrapMsg := fmt.Sprintf("unable to list the projects of `%s`", userID)

	// Build the query.
	query, args, err := psql.
		Select("p.id", "p.name").
		From("projects p").
		Join("project_members m ON m.project_id = p.id").
		Where(sq.Eq{"m.user_id": userID}).
		Where(sq.Eq{"m.invitation_status": string(model.MembershipAccepted)}).
		OrderBy("p.name").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	// Query the database.
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}
	defer rows.Close()

	projects := make([]*model.Project, 0)
	for rows.Next() {
		var p model.Project
		if err = rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, errors.Wrap(err, wrapMsg)
		}
		projects = append(projects, &p)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	return projects, nil
}
