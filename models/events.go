package models

import "time"

// Realtime event names. These are the only events that travel over the
// persistent connection; the layer is not a general pub/sub broker.
const (
	EventPresenceUpdate = "agent:presence:update"
	EventTicketView     = "ticket:view"
	EventTicketLeave    = "ticket:leave"
	EventViewerJoined   = "ticket:viewer:joined"
	EventViewerLeft     = "ticket:viewer:left"
)

// PresenceUpdatePayload is fanned out to every connected client when an
// agent's presence changes, so all open screens reflect it without a refetch.
type PresenceUpdatePayload struct {
	AgentID        string         `json:"agent_id"`
	AgentSlug      string         `json:"agent_slug,omitempty"`
	PresenceStatus PresenceStatus `json:"presence_status"`
	LastSeenAt     time.Time      `json:"last_seen_at"`
}

// TicketViewPayload registers the sender as a viewer of a ticket.
// The acknowledgement carries the current full viewer set.
type TicketViewPayload struct {
	TicketID   string    `json:"ticket_id"`
	UserID     string    `json:"user_id"`
	UserName   string    `json:"user_name"`
	UserAvatar *string   `json:"user_avatar"`
	UserType   AgentRole `json:"user_type"`
}

// TicketViewAck is the acknowledgement payload for a ticket:view emit
type TicketViewAck struct {
	TicketID string        `json:"ticket_id"`
	Viewers  []ViewerEntry `json:"viewers"`
}

// TicketLeavePayload unregisters the sender from a ticket's viewer set
type TicketLeavePayload struct {
	TicketID string `json:"ticket_id"`
}

// ViewerJoinedPayload notifies existing viewers of a new one
type ViewerJoinedPayload struct {
	TicketID string      `json:"ticket_id"`
	Viewer   ViewerEntry `json:"viewer"`
}

// ViewerLeftPayload notifies remaining viewers of a departure
type ViewerLeftPayload struct {
	TicketID string `json:"ticket_id"`
	UserID   string `json:"user_id"`
}
