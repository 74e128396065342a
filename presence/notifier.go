package presence

import (
	"fmt"
	"time"

	"github.com/Shashankvibes/Pairon/domain"
	"github.com/Shashankvibes/Pairon/session"
)

const noticeTimeFormat = "3:04 PM"

// Notifier emits the lifecycle events a room sees when members come and go:
// the joined roster dispatch, human-readable system notices, and structured
// disconnect events the client uses to prune its roster.
type Notifier struct {
	dir     *session.Directory
	members domain.Membership
	sender  domain.Sender
}

func New(dir *session.Directory, members domain.Membership, sender domain.Sender) *Notifier {
	return &Notifier{dir: dir, members: members, sender: sender}
}

// Roster materializes the room's (connection, display name) pairs, in join
// order. It is recomputed on every call, never cached.
func (n *Notifier) Roster(roomID string) []domain.RosterEntry {
	ids := n.members.Members(roomID)
	entries := make([]domain.RosterEntry, 0, len(ids))
	for _, id := range ids {
		name, _ := n.dir.Lookup(id)
		entries = append(entries, domain.RosterEntry{ConnectionID: id, Username: name})
	}
	return entries
}

// Joined announces a new member: every current member, the joiner included,
// receives the fresh roster; everyone else also gets a join notice.
func (n *Notifier) Joined(connID, username, roomID string) {
	joined := domain.NewEvent(domain.EventJoined, domain.JoinedPayload{
		Clients:      n.Roster(roomID),
		Username:     username,
		ConnectionID: connID,
	})
	n.sender.Broadcast(roomID, joined, "")

	notice := domain.NewEvent(domain.EventSystemMessage, domain.SystemMessagePayload{
		Message:   fmt.Sprintf("%s joined the chat", username),
		Timestamp: time.Now().Format(noticeTimeFormat),
	})
	n.sender.Broadcast(roomID, notice, connID)
}

// Left announces a departure to every room the connection belonged to. The
// departing connection itself receives nothing. A connection that never
// registered a name (whiteboard-only) departs as "Anonymous".
func (n *Notifier) Left(connID, username string, rooms []string) {
	if username == "" {
		username = "Anonymous"
	}
	notice := domain.NewEvent(domain.EventSystemMessage, domain.SystemMessagePayload{
		Message:   fmt.Sprintf("%s left the chat", username),
		Timestamp: time.Now().Format(noticeTimeFormat),
	})
	gone := domain.NewEvent(domain.EventDisconnected, domain.DisconnectedPayload{
		ConnectionID: connID,
		Username:     username,
	})
	for _, roomID := range rooms {
		n.sender.Broadcast(roomID, notice, connID)
		n.sender.Broadcast(roomID, gone, connID)
	}
}
