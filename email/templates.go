package email

import (
	"bytes"
	"html/template"

	"github.com/pkg/errors"
)

// SubjectPrefix is prepended to the subject of every e-mail the service sends.
const SubjectPrefix = "[TaskFlow]"

var notificationTemplate = template.Must(template.New("notification").Parse(
	`<div style="font-family: sans-serif;">` +
		`<h2>TaskFlow notification</h2>` +
		`<div style="border-left: 3px solid #007bff; padding-left: 15px; margin: 15px 0;">` +
		`<p>{{.Message}}</p>` +
		`</div>` +
		`{{if .Link}}<a href="{{.Link}}" style="display: inline-block; padding: 10px 15px; ` +
		`background-color: #007bff; color: white; text-decoration: none; border-radius: 5px;">View details</a>{{end}}` +
		`</div>`,
))

// NotificationMessage builds the e-mail that accompanies a single notification.
func NotificationMessage(to, categoryName, message, link string) (*Message, error) {
	var body bytes.Buffer
	err := notificationTemplate.Execute(&body, struct {
		Message string
		Link    string
	}{message, link})
	if err != nil {
		return nil, errors.Wrap(err, "unable to render the notification e-mail")
	}

	return &Message{
		To:       to,
		Subject:  SubjectPrefix + " New notification: " + categoryName,
		HTMLBody: body.String(),
	}, nil
}
