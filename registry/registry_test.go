package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/cyverse-de/project-notifications/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockMembershipResolver returns a fixed set of accepted members for each project.
type MockMembershipResolver struct {
	members map[string][]string
	err     error
}

// AcceptedMemberIDs returns the configured members of the project.
func (m *MockMembershipResolver) AcceptedMemberIDs(_ context.Context, projectID string) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.members[projectID], nil
}

// drain returns every event currently queued on a connection.
func drain(conn *Connection) []Event {
	var events []Event
	for {
		select {
		case event := <-conn.Events():
			events = append(events, event)
		default:
			return events
		}
	}
}

func TestSubscribeSendsConnectedEvent(t *testing.T) {
	r := New(&MockMembershipResolver{}, 0)

	conn := r.Subscribe("a")
	events := drain(conn)
	require.Len(t, events, 1)
	assert.Equal(t, EventConnected, events[0].Name)
	assert.Equal(t, ConnectedPayload, events[0].Data)
	assert.True(t, r.Connected("a"))
}

func TestSecondSubscribeEvictsFirst(t *testing.T) {
	assert := assert.New(t)
	r := New(&MockMembershipResolver{}, 0)

	first := r.Subscribe("u")
	second := r.Subscribe("u")
	drain(first)
	drain(second)

	assert.Equal(1, r.Len(), "exactly one connection should be active")
	assert.True(first.Closed(), "the first connection should have been closed")
	assert.False(second.Closed())

	r.SendToUser("u", EventNewNotification, "hello")
	assert.Empty(drain(first), "the evicted connection must not receive events")
	events := drain(second)
	if assert.Len(events, 1) {
		assert.Equal(EventNewNotification, events[0].Name)
	}
}

func TestSendToUserWithoutConnection(t *testing.T) {
	r := New(&MockMembershipResolver{}, 0)

	// Nothing to assert beyond the absence of a panic or error.
	r.SendToUser("nobody", EventNewNotification, "hello")
	assert.Equal(t, 0, r.Len())
}

func TestBackedUpConnectionIsDropped(t *testing.T) {
	assert := assert.New(t)
	r := New(&MockMembershipResolver{}, 2)

	conn := r.Subscribe("u")

	// The connected event occupies one slot, the next event fills the buffer and the third one fails.
	r.SendToUser("u", EventNewNotification, 1)
	r.SendToUser("u", EventNewNotification, 2)

	assert.True(conn.Closed(), "a connection that cannot keep up should be closed")
	assert.False(r.Connected("u"), "a failed connection should be removed from the registry")
}

func TestUnsubscribeKeepsReplacement(t *testing.T) {
	assert := assert.New(t)
	r := New(&MockMembershipResolver{}, 0)

	first := r.Subscribe("u")
	second := r.Subscribe("u")

	// The first connection's handler finishing late must not remove the second connection.
	r.Unsubscribe(first)
	assert.True(r.Connected("u"))
	assert.False(second.Closed())

	r.Unsubscribe(second)
	assert.False(r.Connected("u"))
	assert.True(second.Closed())
	assert.Equal(ErrConnectionClosed, second.send(Event{Name: "late"}))
}

func TestBroadcastToProject(t *testing.T) {
	assert := assert.New(t)
	resolver := &MockMembershipResolver{
		members: map[string][]string{"7": {"a", "f", "g"}},
	}
	r := New(resolver, 0)

	a := r.Subscribe("a")
	g := r.Subscribe("g")
	outsider := r.Subscribe("z")
	drain(a)
	drain(g)
	drain(outsider)

	payload := model.ProjectUpdatedPayload{ProjectID: "7"}
	r.BroadcastToProject(context.Background(), "7", EventProjectUpdated, payload)

	for _, conn := range []*Connection{a, g} {
		events := drain(conn)
		if assert.Len(events, 1, "member %s should receive exactly one event", conn.UserID) {
			assert.Equal(EventProjectUpdated, events[0].Name)
			assert.Equal(payload, events[0].Data)
		}
	}
	assert.Empty(drain(outsider), "users outside the project must not receive the broadcast")
	assert.False(r.Connected("f"))
}

func TestBroadcastMembershipFailureIsSwallowed(t *testing.T) {
	r := New(&MockMembershipResolver{err: errors.New("database down")}, 0)
	conn := r.Subscribe("a")
	drain(conn)

	r.BroadcastToProject(context.Background(), "7", EventProjectUpdated, nil)
	assert.Empty(t, drain(conn))
	assert.True(t, r.Connected("a"))
}

func TestCloseDrainsRegistry(t *testing.T) {
	r := New(&MockMembershipResolver{}, 0)
	conns := []*Connection{r.Subscribe("a"), r.Subscribe("b"), r.Subscribe("c")}

	r.Close()

	assert.Equal(t, 0, r.Len())
	for _, conn := range conns {
		assert.True(t, conn.Closed())
	}
}

func TestConcurrentAccess(t *testing.T) {
	r := New(&MockMembershipResolver{members: map[string][]string{"p": {"u0", "u1", "u2"}}}, 64)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			userID := fmt.Sprintf("u%d", i%5)
			conn := r.Subscribe(userID)
			r.SendToUser(userID, EventNewNotification, i)
			r.BroadcastToProject(context.Background(), "p", EventProjectUpdated, i)
			r.Unsubscribe(conn)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, r.Len(), "every connection should have been removed")
}
