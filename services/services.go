package services

import (
	"context"
	"time"

	"github.com/samber/mo"

	"hdbackend/models"
)

// RosterService defines the interface for agent directory operations
type RosterService interface {
	GetAgentByID(ctx context.Context, id string) (mo.Option[*models.Agent], error)
	GetAgentBySlug(ctx context.Context, slug string) (mo.Option[*models.Agent], error)
	GetAgentByAPIToken(ctx context.Context, apiToken string) (mo.Option[*models.Agent], error)
	ListAgents(ctx context.Context) ([]*models.Agent, error)
	MentionRoster(ctx context.Context) ([]models.MentionCandidate, error)
	CreateAgent(
		ctx context.Context,
		slug, displayName string,
		email, avatarURL *string,
		role models.AgentRole,
	) (*models.Agent, error)
	RecordPresence(
		ctx context.Context,
		agentID string,
		status models.PresenceStatus,
		lastSeenAt time.Time,
	) error
}

// PresenceService defines the interface for the authoritative presence store
type PresenceService interface {
	SetStatus(ctx context.Context, agentID string, status models.PresenceStatus) (models.PresenceRecord, error)
	HandleSessionConnected(ctx context.Context, agentID, clientID string) error
	HandleSessionDisconnected(ctx context.Context, agentID, clientID string) error
	GetPresence(ctx context.Context, agentID string) mo.Option[models.PresenceRecord]
	Snapshot(ctx context.Context) []models.PresenceRecord
	FlushLastSeen(ctx context.Context) error
}

// ViewersService defines the interface for the authoritative ticket viewer registry
type ViewersService interface {
	View(ctx context.Context, clientID string, payload models.TicketViewPayload) ([]models.ViewerEntry, error)
	Leave(ctx context.Context, clientID, ticketID string) error
	LeaveAllForSession(ctx context.Context, clientID string) error
	GetViewers(ctx context.Context, ticketID string) []models.ViewerEntry
}

// WorklogsService defines the interface for work-time tracking operations
type WorklogsService interface {
	StartAuto(ctx context.Context, agentID, ticketID string) (*models.WorklogEntry, bool, error)
	StopAuto(ctx context.Context, agentID, ticketID string) (mo.Option[*models.WorklogEntry], error)
	CreateManual(
		ctx context.Context,
		agentID, ticketID string,
		startedAt, endedAt time.Time,
		description *string,
	) (*models.WorklogEntry, error)
	ListByTicket(ctx context.Context, ticketID string) ([]*models.WorklogEntry, error)
	ListByAgent(ctx context.Context, agentID string) ([]*models.WorklogEntry, error)
}

// TransactionManager defines the interface for database transaction management
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(context.Context) error) error
}
