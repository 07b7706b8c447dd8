package registry

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// Event names emitted on a live connection.
const (
	EventConnected       = "connected"
	EventNewNotification = "new-notification"
	EventProjectUpdated  = "project-updated"
)

// ConnectedPayload is the acknowledgement sent as soon as a connection is opened.
const ConnectedPayload = "SSE-Connection-Success"

var (
	// ErrConnectionClosed is returned when an event is sent to a connection that has been closed.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrConnectionBackedUp is returned when a connection's event buffer is full.
	ErrConnectionBackedUp = errors.New("connection event buffer is full")
)

// Event is a single named event delivered over a live connection.
type Event struct {
	Name string
	Data interface{}
}

// Connection is the server side of a live push channel belonging to a single user. Events are read from
// Events() until Done() is closed.
type Connection struct {
	ID     string
	UserID string

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
}

func newConnection(userID string, bufferSize int) *Connection {
	return &Connection{
		ID:     uuid.New().String(),
		UserID: userID,
		events: make(chan Event, bufferSize),
		done:   make(chan struct{}),
	}
}

// Events returns the channel that events for this connection are delivered on. The channel is never closed;
// readers must also watch Done().
func (c *Connection) Events() <-chan Event {
	return c.events
}

// Done returns a channel that is closed when the connection has been closed or replaced.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Closed returns true if the connection has been closed.
func (c *Connection) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// send queues an event without blocking.
func (c *Connection) send(event Event) error {
	if c.Closed() {
		return ErrConnectionClosed
	}
	select {
	case c.events <- event:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	default:
		return ErrConnectionBackedUp
	}
}

// close marks the connection as closed. It is safe to call more than once.
func (c *Connection) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
