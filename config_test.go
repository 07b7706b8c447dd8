package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/cyverse-de/messaging/v9"
	"github.com/cyverse-de/project-notifications/email"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loadDefaults returns a configuration containing only the default values.
func loadDefaults(t *testing.T) *viper.Viper {
	t.Helper()
	cfg := viper.New()
	cfg.SetConfigType("yaml")
	require.NoError(t, cfg.ReadConfig(strings.NewReader(defaultConfig)))
	return cfg
}

type MockPublisher struct{}

func (MockPublisher) PublishEmailRequestContext(context.Context, *messaging.EmailRequest) error {
	return nil
}

func TestDefaults(t *testing.T) {
	assert := assert.New(t)
	cfg := loadDefaults(t)

	transport, err := emailTransport(cfg)
	require.NoError(t, err)
	assert.Equal(transportLog, transport)

	settings := amqpSettings(cfg)
	assert.Equal("taskflow", settings.ExchangeName)
	assert.Equal("topic", settings.ExchangeType)
	assert.Equal("project-notifications", settings.QueueName)
	assert.Equal(10, settings.Prefetch)

	assert.Equal(16, registryBufferSize(cfg))
	assert.Equal(30*time.Second, durationOr(cfg, "email.send_timeout", time.Minute))
	assert.Equal(time.Minute, durationOr(cfg, "email.missing", time.Minute))
}

func TestServerSettingsRequiresSecret(t *testing.T) {
	cfg := loadDefaults(t)

	_, err := serverSettings(cfg)
	assert.Error(t, err)

	cfg.Set("jwt.secret", "s3cr3t")
	settings, err := serverSettings(cfg)
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", settings.JWTSecret)
	assert.Equal(t, 30*time.Second, settings.Keepalive)
}

func TestEmailSender(t *testing.T) {
	assert := assert.New(t)
	cfg := loadDefaults(t)

	cfg.Set("email.transport", "pigeon")
	_, err := emailTransport(cfg)
	assert.Error(err)

	sender, err := emailSender(cfg, transportSMTP, nil)
	require.NoError(t, err)
	assert.IsType(&email.SMTPSender{}, sender)

	_, err = emailSender(cfg, transportAMQP, nil)
	assert.Error(err, "the amqp transport needs a publisher")

	sender, err = emailSender(cfg, transportAMQP, MockPublisher{})
	require.NoError(t, err)
	assert.IsType(&email.AMQPSender{}, sender)

	sender, err = emailSender(cfg, transportLog, nil)
	require.NoError(t, err)
	assert.IsType(email.LogSender{}, sender)
}
