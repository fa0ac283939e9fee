package models

import "time"

// PresenceStatus is an agent's current availability status
type PresenceStatus string

const (
	PresenceOnline    PresenceStatus = "online"
	PresenceAway      PresenceStatus = "away"
	PresenceBusy      PresenceStatus = "busy"
	PresenceInMeeting PresenceStatus = "in_meeting"
	PresenceDND       PresenceStatus = "dnd"
	PresenceOnLeave   PresenceStatus = "on_leave"
	PresenceOffline   PresenceStatus = "offline"
)

// IsValid reports whether the status is one of the known enum values
func (s PresenceStatus) IsValid() bool {
	switch s {
	case PresenceOnline, PresenceAway, PresenceBusy, PresenceInMeeting,
		PresenceDND, PresenceOnLeave, PresenceOffline:
		return true
	}
	return false
}

// PresenceRecord is the authoritative presence state for a single agent.
// An agent has exactly one current status at any instant; offline is only
// ever reached implicitly when the agent's last session disconnects.
type PresenceRecord struct {
	AgentID    string         `json:"agent_id"`
	AgentSlug  string         `json:"agent_slug,omitempty"`
	Status     PresenceStatus `json:"presence_status"`
	LastSeenAt time.Time      `json:"last_seen_at"`
}
