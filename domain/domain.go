package domain

import "encoding/json"

// Event kinds accepted and emitted by the session layer. Kinds not listed
// here are dropped by the router.
const (
	EventJoin             = "join"
	EventJoined           = "joined"
	EventCodeChange       = "code-change"
	EventSyncCode         = "sync-code"
	EventWhiteboardJoin   = "whiteboard-join"
	EventWhiteboardChange = "whiteboard-change"
	EventSyncWhiteboard   = "sync-whiteboard"
	EventChatMessage      = "chat-message"
	EventTyping           = "typing"
	EventSystemMessage    = "system-message"
	EventDisconnected     = "disconnected"
)

// Event is the wire envelope for every frame exchanged with clients.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEvent marshals payload into an envelope. A payload that cannot be
// marshaled yields an event with an empty payload.
func NewEvent(kind string, payload any) Event {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{Type: kind}
	}
	return Event{Type: kind, Payload: raw}
}

// RosterEntry pairs a live connection with its display name.
type RosterEntry struct {
	ConnectionID string `json:"connectionId"`
	Username     string `json:"username"`
}

type JoinPayload struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
}

type JoinedPayload struct {
	Clients      []RosterEntry `json:"clients"`
	Username     string        `json:"username"`
	ConnectionID string        `json:"connectionId"`
}

type CodeChangePayload struct {
	RoomID string `json:"roomId,omitempty"`
	Code   string `json:"code"`
}

type SyncCodePayload struct {
	ConnectionID string `json:"connectionId"`
	Code         string `json:"code"`
}

type WhiteboardJoinPayload struct {
	RoomID string `json:"roomId"`
}

type WhiteboardChangePayload struct {
	RoomID   string          `json:"roomId,omitempty"`
	Snapshot json.RawMessage `json:"snapshot,omitempty"`
}

type SyncWhiteboardPayload struct {
	ConnectionID string          `json:"connectionId"`
	Snapshot     json.RawMessage `json:"snapshot,omitempty"`
}

type ChatMessagePayload struct {
	RoomID   string `json:"roomId,omitempty"`
	Username string `json:"username,omitempty"`
	Message  string `json:"message"`
	Time     string `json:"time,omitempty"`
}

type TypingPayload struct {
	RoomID   string `json:"roomId,omitempty"`
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

type SystemMessagePayload struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type DisconnectedPayload struct {
	ConnectionID string `json:"connectionId"`
	Username     string `json:"username"`
}

// Connection is one live client transport session. A reconnecting user gets
// a fresh connection with a new ID.
type Connection interface {
	ID() string
	Send(ev Event) error
	Close() error
}

// Sender delivers events to connections without exposing transport
// internals. Unknown targets and empty rooms are no-ops.
type Sender interface {
	SendTo(connID string, ev Event)
	Broadcast(roomID string, ev Event, excludeConnID string)
}

// Membership tracks which connections belong to which rooms.
type Membership interface {
	Join(connID, roomID string)
	Attach(connID, roomID string)
	Leave(connID string)
	Members(roomID string) []string
	Rooms(connID string) []string
	Primary(connID string) string
}

// Handler processes inbound frames and the transport-synthesized
// disconnect for one connection.
type Handler interface {
	Handle(conn Connection, data []byte)
	Disconnecting(conn Connection)
}
