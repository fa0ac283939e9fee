package models

import "time"

// ViewerEntry is one user currently registered as viewing a ticket page.
// At most one entry exists per (ticket, user) pair regardless of how many
// sessions that user has open on the ticket.
type ViewerEntry struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"user_name"`
	AvatarURL   *string   `json:"user_avatar"`
	UserType    AgentRole `json:"user_type"`
	JoinedAt    time.Time `json:"joined_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}
