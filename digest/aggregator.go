// Package digest batches recent activity on a user's projects into a single periodic e-mail.
package digest

import (
	"context"
	"time"

	"github.com/cyverse-de/project-notifications/common"
	"github.com/cyverse-de/project-notifications/email"
	"github.com/cyverse-de/project-notifications/model"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var log = common.Log.WithField("package", "digest")

// Source provides the data a digest is built from.
type Source interface {
	DigestRecipients(ctx context.Context, frequency model.Frequency) ([]*model.User, error)
	AcceptedProjects(ctx context.Context, userID string) ([]*model.Project, error)
	NewlyAssignedTasks(ctx context.Context, projectID, userID string, since time.Time) ([]*model.Task, error)
	CompletedTasks(ctx context.Context, projectID, userID string, since time.Time) ([]*model.Task, error)
	CommentedTasks(ctx context.Context, projectID, userID string, since time.Time) ([]*model.Task, error)
}

// Gate reports whether a user still wants digests of a frequency.
type Gate interface {
	DigestEnabled(ctx context.Context, userID string, frequency model.Frequency) (bool, error)
}

// ProjectSection holds the activity in one project that is reported to a user.
type ProjectSection struct {
	Project   *model.Project
	Assigned  []*model.Task
	Completed []*model.Task
	Commented []*model.Task
}

// Empty returns true if nothing happened in the project during the window.
func (s *ProjectSection) Empty() bool {
	return len(s.Assigned) == 0 && len(s.Completed) == 0 && len(s.Commented) == 0
}

// Digest is the activity summary for a single user.
type Digest struct {
	User        *model.User
	Frequency   model.Frequency
	WindowStart time.Time
	Sections    []*ProjectSection
}

// Empty returns true if the digest contains no items at all.
func (d *Digest) Empty() bool {
	return len(d.Sections) == 0
}

// Aggregator builds and sends digests.
type Aggregator struct {
	source Source
	gate   Gate
	mailer email.Sender
}

// NewAggregator creates a new digest aggregator. Each recipient selected by the source is confirmed with the
// gate immediately before the digest is built, so a preference change made during a long run is honored.
func NewAggregator(source Source, gate Gate, mailer email.Sender) *Aggregator {
	return &Aggregator{source: source, gate: gate, mailer: mailer}
}

// Run sends one digest to every opted-in user who had activity in the window ending at now. It returns the
// number of digests that were handed to the mailer. A failure for one user is logged and does not stop the run.
func (a *Aggregator) Run(ctx context.Context, frequency model.Frequency, now time.Time) (int, error) {
	wrapMsg := "unable to run the " + string(frequency) + " digest"

	if !frequency.Valid() {
		return 0, common.NewValidationError("unsupported digest frequency: %s", frequency)
	}
	windowStart := now.Add(-frequency.Window())

	users, err := a.source.DigestRecipients(ctx, frequency)
	if err != nil {
		return 0, errors.Wrap(err, wrapMsg)
	}

	sent := 0
	for _, user := range users {
		logger := log.WithFields(logrus.Fields{"user": user.ID, "frequency": frequency})

		enabled, err := a.gate.DigestEnabled(ctx, user.ID, frequency)
		if err != nil {
			logger.WithError(err).Error("unable to confirm digest preference")
			continue
		}
		if !enabled {
			logger.Debug("digest disabled since recipients were selected")
			continue
		}

		d, err := a.Build(ctx, user, frequency, windowStart)
		if err != nil {
			logger.WithError(err).Error("unable to build digest")
			continue
		}
		if d.Empty() {
			logger.Debug("no activity; digest skipped")
			continue
		}

		msg, err := Render(d)
		if err != nil {
			logger.WithError(err).Error("unable to render digest")
			continue
		}
		if err = a.mailer.Send(ctx, msg); err != nil {
			logger.WithError(err).Error("unable to send digest")
			continue
		}
		sent++
	}

	log.WithField("frequency", frequency).Infof("%d of %d digest recipients had activity", sent, len(users))
	return sent, nil
}

// Build collects a user's activity since windowStart across all of the user's accepted projects. Projects
// without activity are omitted.
func (a *Aggregator) Build(
	ctx context.Context,
	user *model.User,
	frequency model.Frequency,
	windowStart time.Time,
) (*Digest, error) {
	wrapMsg := "unable to build digest"

	projects, err := a.source.AcceptedProjects(ctx, user.ID)
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	d := &Digest{User: user, Frequency: frequency, WindowStart: windowStart}
	for _, project := range projects {
		section := &ProjectSection{Project: project}

		assigned, err := a.source.NewlyAssignedTasks(ctx, project.ID, user.ID, windowStart)
		if err != nil {
			return nil, errors.Wrap(err, wrapMsg)
		}
		completed, err := a.source.CompletedTasks(ctx, project.ID, user.ID, windowStart)
		if err != nil {
			return nil, errors.Wrap(err, wrapMsg)
		}
		commented, err := a.source.CommentedTasks(ctx, project.ID, user.ID, windowStart)
		if err != nil {
			return nil, errors.Wrap(err, wrapMsg)
		}

		// Deduplication only happens within a section.
		section.Assigned = uniqueTasks(assigned)
		section.Completed = uniqueTasks(completed)
		section.Commented = uniqueTasks(commented)

		if !section.Empty() {
			d.Sections = append(d.Sections, section)
		}
	}

	return d, nil
}

// uniqueTasks removes repeated tasks, keeping the first occurrence of each.
func uniqueTasks(tasks []*model.Task) []*model.Task {
	seen := make(map[string]bool, len(tasks))
	result := make([]*model.Task, 0, len(tasks))
	for _, t := range tasks {
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		result = append(result, t)
	}
	return result
}
