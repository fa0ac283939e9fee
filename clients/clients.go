package clients

import (
	"github.com/zishang520/socket.io/v2/socket"
)

// Client represents one realtime session (one browser tab / console process)
type Client struct {
	ID        string
	Socket    *socket.Socket
	AgentID   string
	SessionID string
}

// RealtimeBroadcaster is the fan-out surface the presence and viewer services
// use to push deltas to connected sessions. Rooms are keyed per ticket so
// viewer deltas only reach sessions registered on that ticket.
type RealtimeBroadcaster interface {
	BroadcastAll(event string, payload any)
	BroadcastRoom(room, event string, payload any)
	BroadcastRoomExcept(room, event string, payload any, exceptClientID string)
	JoinRoom(clientID, room string)
	LeaveRoom(clientID, room string)
	GetClientIDs() []string
}
