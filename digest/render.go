package digest

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/cyverse-de/project-notifications/email"
	"github.com/cyverse-de/project-notifications/model"
	"github.com/pkg/errors"
)

var digestTemplate = template.Must(template.New("digest").Parse(`<div style="font-family: sans-serif;">
<h2>Your TaskFlow activity for the past {{.Period}}</h2>
<p>Hello {{.Name}}, here is what happened in your projects.</p>
{{range .Sections}}<h3>{{.Name}}</h3>
<ul>
{{range .Lines}}<li>{{.}}</li>
{{end}}</ul>
{{end}}</div>
`))

type renderedSection struct {
	Name  string
	Lines []string
}

// summaryLine describes one category of tasks, e.g. `Newly assigned tasks (2): 'A', 'B'`.
func summaryLine(label string, tasks []*model.Task) string {
	titles := make([]string, len(tasks))
	for i, t := range tasks {
		titles[i] = "'" + t.Title + "'"
	}
	return fmt.Sprintf("%s (%d): %s", label, len(tasks), strings.Join(titles, ", "))
}

// Lines returns the bullet lines for a section. Categories without tasks are left out.
func (s *ProjectSection) Lines() []string {
	lines := make([]string, 0, 3)
	if len(s.Assigned) > 0 {
		lines = append(lines, summaryLine("Newly assigned tasks", s.Assigned))
	}
	if len(s.Completed) > 0 {
		lines = append(lines, summaryLine("Completed tasks", s.Completed))
	}
	if len(s.Commented) > 0 {
		lines = append(lines, summaryLine("Tasks with new comments", s.Commented))
	}
	return lines
}

// Subject returns the subject line for a digest of the given frequency.
func Subject(frequency model.Frequency) string {
	if frequency == model.Weekly {
		return email.SubjectPrefix + " Weekly digest"
	}
	return email.SubjectPrefix + " Daily digest"
}

// Render builds the e-mail for a digest.
func Render(d *Digest) (*email.Message, error) {
	period := "day"
	if d.Frequency == model.Weekly {
		period = "week"
	}

	sections := make([]renderedSection, len(d.Sections))
	for i, s := range d.Sections {
		sections[i] = renderedSection{Name: s.Project.Name, Lines: s.Lines()}
	}

	var body bytes.Buffer
	err := digestTemplate.Execute(&body, struct {
		Period   string
		Name     string
		Sections []renderedSection
	}{period, d.User.Name, sections})
	if err != nil {
		return nil, errors.Wrap(err, "unable to render the digest e-mail")
	}

	return &email.Message{
		To:       d.User.Email,
		Subject:  Subject(d.Frequency),
		HTMLBody: body.String(),
	}, nil
}
