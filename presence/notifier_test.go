package presence

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shashankvibes/Pairon/domain"
	"github.com/Shashankvibes/Pairon/hub"
	"github.com/Shashankvibes/Pairon/session"
)

type mockConn struct {
	id       string
	received []domain.Event
	mu       sync.Mutex
}

func (m *mockConn) ID() string { return m.id }

func (m *mockConn) Send(ev domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.received = append(m.received, ev)
	return nil
}

func (m *mockConn) Close() error { return nil }

func setup() (*session.Directory, *hub.Hub, *Notifier) {
	dir := session.NewDirectory()
	h := hub.New()
	return dir, h, New(dir, h, h)
}

func TestNotifier_RosterIsJoinOrdered(t *testing.T) {
	dir, h, n := setup()
	for _, id := range []string{"c1", "c2", "c3"} {
		h.Register(&mockConn{id: id})
		h.Join(id, "abc")
	}
	dir.Register("c1", "alice")
	dir.Register("c3", "carol")
	// c2 never registered a name: whiteboard-only client.

	roster := n.Roster("abc")

	assert.Equal(t, []domain.RosterEntry{
		{ConnectionID: "c1", Username: "alice"},
		{ConnectionID: "c2", Username: ""},
		{ConnectionID: "c3", Username: "carol"},
	}, roster)
}

func TestNotifier_RosterOfUnknownRoomIsEmpty(t *testing.T) {
	_, _, n := setup()
	assert.Empty(t, n.Roster("ghost"))
}

func TestNotifier_JoinedSendsRosterToAllAndNoticeToOthers(t *testing.T) {
	dir, h, n := setup()
	a := &mockConn{id: "A"}
	b := &mockConn{id: "B"}
	h.Register(a)
	h.Register(b)
	dir.Register("A", "alice")
	dir.Register("B", "bob")
	h.Join("A", "abc")
	h.Join("B", "abc")

	n.Joined("B", "bob", "abc")

	for _, c := range []*mockConn{a, b} {
		var joined []domain.Event
		for _, ev := range c.received {
			if ev.Type == domain.EventJoined {
				joined = append(joined, ev)
			}
		}
		require.Len(t, joined, 1, "conn %s", c.id)
		var p domain.JoinedPayload
		require.NoError(t, json.Unmarshal(joined[0].Payload, &p))
		assert.Equal(t, "bob", p.Username)
		assert.Equal(t, "B", p.ConnectionID)
		require.Len(t, p.Clients, 2)
	}

	// Notice excludes the joiner.
	assert.Len(t, ofKind(a, domain.EventSystemMessage), 1)
	assert.Empty(t, ofKind(b, domain.EventSystemMessage))
}

func TestNotifier_LeftNotifiesEachRoom(t *testing.T) {
	dir, h, n := setup()
	a := &mockConn{id: "A"}
	c := &mockConn{id: "C"}
	h.Register(a)
	h.Register(c)
	dir.Register("A", "alice")
	h.Join("A", "r1")
	h.Attach("C", "r2")

	n.Left("B", "bob", []string{"r1", "r2"})

	for _, conn := range []*mockConn{a, c} {
		require.Len(t, ofKind(conn, domain.EventDisconnected), 1, "conn %s", conn.id)
		var p domain.DisconnectedPayload
		require.NoError(t, json.Unmarshal(ofKind(conn, domain.EventDisconnected)[0].Payload, &p))
		assert.Equal(t, "B", p.ConnectionID)
		assert.Equal(t, "bob", p.Username)

		require.Len(t, ofKind(conn, domain.EventSystemMessage), 1, "conn %s", conn.id)
		var sm domain.SystemMessagePayload
		require.NoError(t, json.Unmarshal(ofKind(conn, domain.EventSystemMessage)[0].Payload, &sm))
		assert.Equal(t, "bob left the chat", sm.Message)
		assert.NotEmpty(t, sm.Timestamp)
	}
}

func TestNotifier_LeftAnonymousFallback(t *testing.T) {
	_, h, n := setup()
	a := &mockConn{id: "A"}
	h.Register(a)
	h.Attach("A", "r1")

	// A whiteboard-only peer never registered a display name.
	n.Left("G", "", []string{"r1"})

	require.Len(t, ofKind(a, domain.EventSystemMessage), 1)
	var sm domain.SystemMessagePayload
	require.NoError(t, json.Unmarshal(ofKind(a, domain.EventSystemMessage)[0].Payload, &sm))
	assert.Equal(t, "Anonymous left the chat", sm.Message)

	require.Len(t, ofKind(a, domain.EventDisconnected), 1)
	var p domain.DisconnectedPayload
	require.NoError(t, json.Unmarshal(ofKind(a, domain.EventDisconnected)[0].Payload, &p))
	assert.Equal(t, "Anonymous", p.Username)
}

func ofKind(c *mockConn, kind string) []domain.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.Event
	for _, ev := range c.received {
		if ev.Type == kind {
			out = append(out, ev)
		}
	}
	return out
}
