package registry

import (
	"context"
	"sync"

	"github.com/cyverse-de/project-notifications/common"
	"github.com/sirupsen/logrus"
)

var log = common.Log.WithField("package", "registry")

// DefaultBufferSize is the number of undelivered events a connection may hold before it is considered broken.
const DefaultBufferSize = 16

// MembershipResolver resolves the accepted members of a project.
type MembershipResolver interface {
	AcceptedMemberIDs(ctx context.Context, projectID string) ([]string, error)
}

// Registry tracks at most one live connection per user. It is safe for concurrent use; operations on different
// users never contend on a shared lock.
type Registry struct {
	connections sync.Map // user ID -> *Connection
	members     MembershipResolver
	bufferSize  int
}

// New creates an empty registry.
func New(members MembershipResolver, bufferSize int) *Registry {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Registry{
		members:    members,
		bufferSize: bufferSize,
	}
}

// Subscribe opens a new connection for a user, closing any connection the user already had. A `connected`
// event is queued on the new connection before it is returned.
func (r *Registry) Subscribe(userID string) *Connection {
	conn := newConnection(userID, r.bufferSize)

	// The buffer of a fresh connection always has room for the acknowledgement.
	_ = conn.send(Event{Name: EventConnected, Data: ConnectedPayload})

	if previous, loaded := r.connections.Swap(userID, conn); loaded {
		old := previous.(*Connection)
		old.close()
		log.WithFields(logrus.Fields{"user": userID, "connection": old.ID}).Info("replaced existing connection")
	}

	log.WithFields(logrus.Fields{"user": userID, "connection": conn.ID}).Info("connection opened")

	return conn
}

// Unsubscribe closes a connection and removes it from the registry if it is still the user's active
// connection. A connection that has already been replaced leaves the replacement in place.
func (r *Registry) Unsubscribe(conn *Connection) {
	if r.connections.CompareAndDelete(conn.UserID, conn) {
		log.WithFields(logrus.Fields{"user": conn.UserID, "connection": conn.ID}).Info("connection removed")
	}
	conn.close()
}

// SendToUser delivers an event to a user's active connection, if there is one. A connection that cannot accept
// the event is closed and removed; the failure is logged and never returned.
func (r *Registry) SendToUser(userID, eventName string, payload interface{}) {
	value, ok := r.connections.Load(userID)
	if !ok {
		return
	}
	conn := value.(*Connection)

	fields := logrus.Fields{"user": userID, "connection": conn.ID, "event": eventName}
	if err := conn.send(Event{Name: eventName, Data: payload}); err != nil {
		r.connections.CompareAndDelete(userID, conn)
		conn.close()
		log.WithFields(fields).WithError(err).Warn("dropped connection after failed delivery")
		return
	}

	log.WithFields(fields).Debug("event queued")
}

// BroadcastToProject delivers an event to every accepted member of a project who has an active connection.
// Failure to resolve the membership is logged and swallowed.
func (r *Registry) BroadcastToProject(ctx context.Context, projectID, eventName string, payload interface{}) {
	memberIDs, err := r.members.AcceptedMemberIDs(ctx, projectID)
	if err != nil {
		log.WithFields(logrus.Fields{"project": projectID, "event": eventName}).
			WithError(err).
			Error("unable to resolve project members for broadcast")
		return
	}

	for _, memberID := range memberIDs {
		r.SendToUser(memberID, eventName, payload)
	}
}

// Connected returns true if the user currently has an active connection.
func (r *Registry) Connected(userID string) bool {
	_, ok := r.connections.Load(userID)
	return ok
}

// Len returns the number of active connections.
func (r *Registry) Len() int {
	count := 0
	r.connections.Range(func(_, _ interface{}) bool {
		count++
		return true
	})
	return count
}

// Close closes and removes every connection. It is called once during shutdown.
func (r *Registry) Close() {
	r.connections.Range(func(key, value interface{}) bool {
		conn := value.(*Connection)
		r.connections.CompareAndDelete(key, conn)
		conn.close()
		return true
	})
	log.Info("all connections closed")
}
