package common

import (
	"strconv"
	"time"

	"github.com/mcnijman/go-emailaddress"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ServiceName is the name used to identify this service in logs and traces.
const ServiceName = "project-notifications"

// Log is the base logger for the service.
var Log = logrus.WithFields(logrus.Fields{
	"service": ServiceName,
	"art-id":  ServiceName,
	"group":   "org.cyverse",
})

// SetLogLevel sets the logging level from its name. An empty name leaves the level alone.
func SetLogLevel(level string) error {
	if level == "" {
		return nil
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return errors.Wrapf(err, "invalid log level `%s`", level)
	}
	logrus.SetLevel(parsed)
	return nil
}

// ValidateEmailAddress returns an error if the format of an email address is invalid.
func ValidateEmailAddress(emailAddress string) error {
	_, err := emailaddress.Parse(emailAddress)
	return err
}

// FormatTimestamp formats a timestamp as the number of milliseconds since the epoch.
func FormatTimestamp(timestamp time.Time) string {
	return strconv.FormatInt(timestamp.UnixMilli(), 10)
}

// Clock supplies the current time. Scheduled jobs take the time as an argument so that tests can control it.
type Clock func() time.Time

// SystemClock returns the current wall-clock time.
func SystemClock() time.Time {
	return time.Now()
}
