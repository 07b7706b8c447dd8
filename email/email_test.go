package email

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/smtp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cyverse-de/messaging/v9"
	"github.com/emersion/go-message/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockSender records every message it is asked to send.
type MockSender struct {
	mu       sync.Mutex
	Messages []*Message
	Err      error
}

// Send records the message.
func (s *MockSender) Send(_ context.Context, msg *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Messages = append(s.Messages, msg)
	return s.Err
}

// MockPublisher records published e-mail requests.
type MockPublisher struct {
	Request *messaging.EmailRequest
	Err     error
}

// PublishEmailRequestContext records the request.
func (p *MockPublisher) PublishEmailRequestContext(_ context.Context, request *messaging.EmailRequest) error {
	p.Request = request
	return p.Err
}

func testMessage() *Message {
	return &Message{To: "dana@example.org", Subject: "[TaskFlow] hi", HTMLBody: "<p>hello</p>"}
}

func TestNotificationMessage(t *testing.T) {
	assert := assert.New(t)

	msg, err := NotificationMessage("dana@example.org", "New comment", "Bo commented on <X>", "https://app/p/1?taskId=5")
	require.NoError(t, err)
	assert.Equal("[TaskFlow] New notification: New comment", msg.Subject)
	assert.Contains(msg.HTMLBody, "Bo commented on &lt;X&gt;", "message text must be escaped")
	assert.Contains(msg.HTMLBody, `href="https://app/p/1?taskId=5"`)
}

func TestNotificationMessageWithoutLink(t *testing.T) {
	msg, err := NotificationMessage("dana@example.org", "Task due soon", "due today", "")
	require.NoError(t, err)
	assert.NotContains(t, msg.HTMLBody, "href")
}

func TestSMTPSenderComposesMIME(t *testing.T) {
	assert := assert.New(t)

	var (
		gotAddr string
		gotFrom string
		gotTo   []string
		gotBody []byte
	)
	sender := NewSMTPSender(SMTPSettings{
		Host:     "mail.example.org",
		Port:     2525,
		From:     "noreply@example.org",
		FromName: "TaskFlow",
	})
	sender.now = func() time.Time { return time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC) }
	sender.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotBody = addr, from, to, msg
		assert.Nil(a, "no authentication was configured")
		return nil
	}

	require.NoError(t, sender.Send(context.Background(), testMessage()))
	assert.Equal("mail.example.org:2525", gotAddr)
	assert.Equal("noreply@example.org", gotFrom)
	assert.Equal([]string{"dana@example.org"}, gotTo)

	// Parse the generated message to verify the headers and body.
	reader, err := mail.CreateReader(strings.NewReader(string(gotBody)))
	require.NoError(t, err)
	subject, err := reader.Header.Subject()
	require.NoError(t, err)
	assert.Equal("[TaskFlow] hi", subject)

	part, err := reader.NextPart()
	require.NoError(t, err)
	body, err := io.ReadAll(part.Body)
	require.NoError(t, err)
	assert.Equal("<p>hello</p>", strings.TrimSpace(string(body)))
}

func TestSMTPSenderRejectsInvalidRecipient(t *testing.T) {
	called := false
	sender := NewSMTPSender(SMTPSettings{Host: "localhost", Port: 25, From: "noreply@example.org"})
	sender.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		called = true
		return nil
	}

	msg := testMessage()
	msg.To = "not-an-address"
	assert.Error(t, sender.Send(context.Background(), msg))
	assert.False(t, called, "nothing should be sent to an invalid address")
}

func TestAMQPSender(t *testing.T) {
	assert := assert.New(t)
	publisher := &MockPublisher{}
	sender := NewAMQPSender(publisher, "", "noreply@example.org", "TaskFlow")
	sender.now = func() time.Time { return time.Unix(1594336370, 706917000) }

	require.NoError(t, sender.Send(context.Background(), testMessage()))

	request := publisher.Request
	if request == nil {
		t.Fatalf("no email request was published")
	}
	assert.Equal("dana@example.org", request.ToAddress)
	assert.Equal("[TaskFlow] hi", request.Subject)
	assert.Equal("noreply@example.org", request.FromAddress)
	assert.Equal("TaskFlow", request.FromName)
	assert.Equal(DefaultTemplateName, request.TemplateName)
	assert.Equal("<p>hello</p>", request.TemplateValues["contents"])
	assert.Equal("1594336370706", request.TemplateValues["timestamp"])
}

func TestAMQPSenderRequestSurvivesTheWire(t *testing.T) {
	assert := assert.New(t)
	publisher := &MockPublisher{}
	sender := NewAMQPSender(publisher, "notification", "noreply@example.org", "TaskFlow")

	require.NoError(t, sender.Send(context.Background(), testMessage()))

	// The relay decodes the same type, so every field must make the round trip.
	body, err := json.Marshal(publisher.Request)
	require.NoError(t, err)
	var decoded messaging.EmailRequest
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal("notification", decoded.TemplateName)
	assert.Equal("noreply@example.org", decoded.FromAddress)
	assert.Equal("TaskFlow", decoded.FromName)
	assert.Equal("<p>hello</p>", decoded.TemplateValues["contents"])
}

func TestAMQPSenderPublishFailure(t *testing.T) {
	publisher := &MockPublisher{Err: errors.New("channel closed")}
	sender := NewAMQPSender(publisher, "", "", "")

	err := sender.Send(context.Background(), testMessage())
	assert.Error(t, err)
	assert.NotNil(t, publisher.Request)
}

func TestAMQPSenderRejectsInvalidRecipient(t *testing.T) {
	publisher := &MockPublisher{}
	msg := testMessage()
	msg.To = "not-an-address"

	assert.Error(t, NewAMQPSender(publisher, "", "", "").Send(context.Background(), msg))
	assert.Nil(t, publisher.Request, "nothing should be published for an invalid address")
}

func TestAsyncSendsInBackground(t *testing.T) {
	mock := &MockSender{}
	async := NewAsync(mock, 0)

	ctx, cancel := context.WithCancel(context.Background())
	assert.NoError(t, async.Send(ctx, testMessage()))
	cancel()
	async.Wait()

	assert.Len(t, mock.Messages, 1, "cancelling the caller's context must not abort the delivery")
}

func TestAsyncSwallowsFailures(t *testing.T) {
	mock := &MockSender{Err: errors.New("mail server unavailable")}
	async := NewAsync(mock, time.Second)

	assert.NoError(t, async.Send(context.Background(), testMessage()))
	async.Wait()
	assert.Len(t, mock.Messages, 1)
}

func TestLogSender(t *testing.T) {
	assert.NoError(t, LogSender{}.Send(context.Background(), testMessage()))
	assert.Error(t, LogSender{}.Send(context.Background(), &Message{To: "x"}))
}
