package models

import "time"

// WorklogSource distinguishes automatically tracked intervals from manually entered ones
type WorklogSource string

const (
	WorklogSourceAuto   WorklogSource = "auto"
	WorklogSourceManual WorklogSource = "manual"
)

// WorklogEntry is one tracked work interval for an agent on a ticket.
// EndedAt is nil while an automatic timer is running; for a given
// (agent, ticket) pair at most one entry with nil EndedAt exists at any time.
type WorklogEntry struct {
	ID          string        `json:"id"          db:"id"`
	AgentID     string        `json:"agent_id"    db:"agent_id"`
	TicketID    string        `json:"ticket_id"   db:"ticket_id"`
	StartedAt   time.Time     `json:"started_at"  db:"started_at"`
	EndedAt     *time.Time    `json:"ended_at"    db:"ended_at"`
	Source      WorklogSource `json:"source"      db:"source"`
	Description *string       `json:"description" db:"description"`
	CreatedAt   time.Time     `json:"created_at"  db:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"  db:"updated_at"`
}

// IsActive reports whether the entry is a still-running automatic timer
func (e *WorklogEntry) IsActive() bool {
	return e.EndedAt == nil
}

// DurationSeconds returns the closed interval length in seconds, 0 while active
func (e *WorklogEntry) DurationSeconds() int64 {
	if e.EndedAt == nil {
		return 0
	}
	return int64(e.EndedAt.Sub(e.StartedAt) / time.Second)
}
