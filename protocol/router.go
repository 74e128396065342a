package protocol

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/Shashankvibes/Pairon/domain"
	"github.com/Shashankvibes/Pairon/metrics"
	"github.com/Shashankvibes/Pairon/presence"
	"github.com/Shashankvibes/Pairon/session"
)

const chatTimeFormat = "3:04 PM"

// Router dispatches inbound events over the closed set of kinds in
// domain. Every failure is absorbed locally: malformed payloads are logged
// and dropped, unknown targets and empty rooms are no-ops. Nothing is
// reported back to the sender.
type Router struct {
	dir     *session.Directory
	members domain.Membership
	sender  domain.Sender
	notify  *presence.Notifier
}

func New(dir *session.Directory, members domain.Membership, sender domain.Sender, notify *presence.Notifier) *Router {
	return &Router{dir: dir, members: members, sender: sender, notify: notify}
}

// Handle processes one inbound frame from conn.
func (r *Router) Handle(conn domain.Connection, data []byte) {
	var ev domain.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		slog.Warn("invalid frame", "connectionId", conn.ID(), "error", err)
		metrics.EventsDropped.WithLabelValues("malformed").Inc()
		return
	}

	switch ev.Type {
	case domain.EventJoin:
		r.handleJoin(conn, ev.Payload)
	case domain.EventCodeChange:
		r.handleCodeChange(conn, ev.Payload)
	case domain.EventSyncCode:
		r.handleSyncCode(conn, ev.Payload)
	case domain.EventWhiteboardJoin:
		r.handleWhiteboardJoin(conn, ev.Payload)
	case domain.EventWhiteboardChange:
		r.handleWhiteboardChange(conn, ev.Payload)
	case domain.EventSyncWhiteboard:
		r.handleSyncWhiteboard(conn, ev.Payload)
	case domain.EventChatMessage:
		r.handleChatMessage(conn, ev.Payload)
	case domain.EventTyping:
		r.handleTyping(conn, ev.Payload)
	default:
		slog.Warn("unknown event kind", "connectionId", conn.ID(), "kind", ev.Type)
		metrics.EventsDropped.WithLabelValues("unknown_kind").Inc()
	}
}

func (r *Router) handleJoin(conn domain.Connection, raw json.RawMessage) {
	var p domain.JoinPayload
	if !decode(conn, domain.EventJoin, raw, &p) || p.RoomID == "" || p.Username == "" {
		drop(conn, domain.EventJoin)
		return
	}

	// Moving between rooms: the old room hears the departure before the
	// membership flips.
	if prev := r.members.Primary(conn.ID()); prev != "" && prev != p.RoomID {
		oldName, _ := r.dir.Lookup(conn.ID())
		r.notify.Left(conn.ID(), oldName, []string{prev})
	}

	r.dir.Register(conn.ID(), p.Username)
	r.members.Join(conn.ID(), p.RoomID)
	r.notify.Joined(conn.ID(), p.Username, p.RoomID)
	metrics.EventsDispatched.WithLabelValues(domain.EventJoin).Inc()
}

func (r *Router) handleCodeChange(conn domain.Connection, raw json.RawMessage) {
	var p domain.CodeChangePayload
	if !decode(conn, domain.EventCodeChange, raw, &p) || p.RoomID == "" {
		drop(conn, domain.EventCodeChange)
		return
	}
	out := domain.NewEvent(domain.EventCodeChange, domain.CodeChangePayload{Code: p.Code})
	r.sender.Broadcast(p.RoomID, out, conn.ID())
	metrics.EventsDispatched.WithLabelValues(domain.EventCodeChange).Inc()
}

func (r *Router) handleSyncCode(conn domain.Connection, raw json.RawMessage) {
	var p domain.SyncCodePayload
	if !decode(conn, domain.EventSyncCode, raw, &p) || p.ConnectionID == "" {
		drop(conn, domain.EventSyncCode)
		return
	}
	out := domain.NewEvent(domain.EventCodeChange, domain.CodeChangePayload{Code: p.Code})
	r.sender.SendTo(p.ConnectionID, out)
	metrics.EventsDispatched.WithLabelValues(domain.EventSyncCode).Inc()
}

func (r *Router) handleWhiteboardJoin(conn domain.Connection, raw json.RawMessage) {
	var p domain.WhiteboardJoinPayload
	if !decode(conn, domain.EventWhiteboardJoin, raw, &p) || p.RoomID == "" {
		drop(conn, domain.EventWhiteboardJoin)
		return
	}
	r.members.Attach(conn.ID(), p.RoomID)
	metrics.EventsDispatched.WithLabelValues(domain.EventWhiteboardJoin).Inc()
}

func (r *Router) handleWhiteboardChange(conn domain.Connection, raw json.RawMessage) {
	var p domain.WhiteboardChangePayload
	if !decode(conn, domain.EventWhiteboardChange, raw, &p) || p.RoomID == "" {
		drop(conn, domain.EventWhiteboardChange)
		return
	}
	if !validSnapshot(p.Snapshot) {
		// Empty or non-object snapshots would wipe the shared canvas.
		metrics.EventsDropped.WithLabelValues("empty_snapshot").Inc()
		return
	}
	out := domain.NewEvent(domain.EventWhiteboardChange, domain.WhiteboardChangePayload{Snapshot: p.Snapshot})
	r.sender.Broadcast(p.RoomID, out, conn.ID())
	metrics.EventsDispatched.WithLabelValues(domain.EventWhiteboardChange).Inc()
}

func (r *Router) handleSyncWhiteboard(conn domain.Connection, raw json.RawMessage) {
	var p domain.SyncWhiteboardPayload
	if !decode(conn, domain.EventSyncWhiteboard, raw, &p) || p.ConnectionID == "" {
		drop(conn, domain.EventSyncWhiteboard)
		return
	}
	if !validSnapshot(p.Snapshot) {
		metrics.EventsDropped.WithLabelValues("empty_snapshot").Inc()
		return
	}
	out := domain.NewEvent(domain.EventWhiteboardChange, domain.WhiteboardChangePayload{Snapshot: p.Snapshot})
	r.sender.SendTo(p.ConnectionID, out)
	metrics.EventsDispatched.WithLabelValues(domain.EventSyncWhiteboard).Inc()
}

func (r *Router) handleChatMessage(conn domain.Connection, raw json.RawMessage) {
	var p domain.ChatMessagePayload
	if !decode(conn, domain.EventChatMessage, raw, &p) || p.RoomID == "" {
		drop(conn, domain.EventChatMessage)
		return
	}
	message := strings.TrimSpace(p.Message)
	if message == "" {
		drop(conn, domain.EventChatMessage)
		return
	}
	username, ok := r.dir.Lookup(conn.ID())
	if !ok || username == "" {
		username = "Anonymous"
	}
	out := domain.NewEvent(domain.EventChatMessage, domain.ChatMessagePayload{
		Username: username,
		Message:  message,
		Time:     time.Now().Format(chatTimeFormat),
	})
	r.sender.Broadcast(p.RoomID, out, "")
	metrics.EventsDispatched.WithLabelValues(domain.EventChatMessage).Inc()
}

func (r *Router) handleTyping(conn domain.Connection, raw json.RawMessage) {
	var p domain.TypingPayload
	if !decode(conn, domain.EventTyping, raw, &p) || p.RoomID == "" || p.Username == "" {
		drop(conn, domain.EventTyping)
		return
	}
	out := domain.NewEvent(domain.EventTyping, domain.TypingPayload{
		Username: p.Username,
		IsTyping: p.IsTyping,
	})
	r.sender.Broadcast(p.RoomID, out, conn.ID())
	metrics.EventsDispatched.WithLabelValues(domain.EventTyping).Inc()
}

// Disconnecting is synthesized by the transport when conn's read loop ends.
// It runs before the directory entry goes away because the departure
// notices need the display name.
func (r *Router) Disconnecting(conn domain.Connection) {
	username, _ := r.dir.Lookup(conn.ID())
	rooms := r.members.Rooms(conn.ID())
	r.notify.Left(conn.ID(), username, rooms)
	r.members.Leave(conn.ID())
	r.dir.Unregister(conn.ID())
	metrics.EventsDispatched.WithLabelValues("disconnecting").Inc()
}

// decode unmarshals a payload, logging the reason when it is unusable.
func decode(conn domain.Connection, kind string, raw json.RawMessage, dst any) bool {
	if len(raw) == 0 {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		slog.Warn("invalid payload", "connectionId", conn.ID(), "kind", kind, "error", err)
		return false
	}
	return true
}

func drop(conn domain.Connection, kind string) {
	slog.Warn("dropping event", "connectionId", conn.ID(), "kind", kind)
	metrics.EventsDropped.WithLabelValues("invalid_payload").Inc()
}

// validSnapshot reports whether raw is a JSON object with at least one key.
func validSnapshot(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return false
	}
	return len(obj) > 0
}
