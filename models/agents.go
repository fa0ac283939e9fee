package models

import "time"

// AgentRole distinguishes admins from regular support agents
type AgentRole string

const (
	AgentRoleAdmin AgentRole = "admin"
	AgentRoleAgent AgentRole = "agent"
)

// IsValid reports whether the role is a known value
func (r AgentRole) IsValid() bool {
	return r == AgentRoleAdmin || r == AgentRoleAgent
}

// Agent is a helpdesk operator from the roster directory
type Agent struct {
	ID             string         `json:"id"              db:"id"`
	Slug           string         `json:"slug"            db:"slug"`
	DisplayName    string         `json:"display_name"    db:"display_name"`
	Email          *string        `json:"email,omitempty" db:"email"`
	AvatarURL      *string        `json:"avatar_url"      db:"avatar_url"`
	Role           AgentRole      `json:"role"            db:"role"`
	APIToken       string         `json:"-"               db:"api_token"`
	PresenceStatus PresenceStatus `json:"presence_status" db:"presence_status"`
	LastSeenAt     *time.Time     `json:"last_seen_at"    db:"last_seen_at"`
	CreatedAt      time.Time      `json:"created_at"      db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"      db:"updated_at"`
}

// MentionCandidate is a roster-derived target for @-mentions in composers.
// It has no independent lifecycle; it is recomputed from the roster snapshot.
type MentionCandidate struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Email       *string   `json:"email,omitempty"`
	Type        AgentRole `json:"type"`
	AvatarURL   *string   `json:"avatar_url"`
}
