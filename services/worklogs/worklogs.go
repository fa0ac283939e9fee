package worklogs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/samber/mo"

	"hdbackend/core"
	"hdbackend/db"
	"hdbackend/models"
	"hdbackend/services"
)

// Repository is the persistence surface the service needs. Satisfied by
// db.PostgresWorklogsRepository.
type Repository interface {
	GetActiveEntry(ctx context.Context, agentID, ticketID string, forUpdate bool) (mo.Option[*models.WorklogEntry], error)
	CreateEntry(ctx context.Context, entry *models.WorklogEntry) error
	CloseActiveEntry(ctx context.Context, agentID, ticketID string, endedAt time.Time) (mo.Option[*models.WorklogEntry], error)
	ListEntriesByTicket(ctx context.Context, ticketID string) ([]*models.WorklogEntry, error)
	ListEntriesByAgent(ctx context.Context, agentID string) ([]*models.WorklogEntry, error)
}

type WorklogsService struct {
	worklogsRepo  Repository
	rosterService services.RosterService
	txManager     services.TransactionManager
}

func NewWorklogsService(
	repo Repository,
	rosterService services.RosterService,
	txManager services.TransactionManager,
) *WorklogsService {
	return &WorklogsService{
		worklogsRepo:  repo,
		rosterService: rosterService,
		txManager:     txManager,
	}
}

// StartAuto opens an automatic timer for the (agent, ticket) pair. When a
// timer is already running the existing entry is returned with started=false;
// starting is idempotent so assignment races cannot stack intervals.
func (s *WorklogsService) StartAuto(
	ctx context.Context,
	agentID, ticketID string,
) (*models.WorklogEntry, bool, error) {
	log.Printf("📋 Starting to open auto worklog timer for agent %s on ticket %s", agentID, ticketID)
	if err := s.validatePair(ctx, agentID, ticketID); err != nil {
		return nil, false, err
	}

	var entry *models.WorklogEntry
	started := false
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		maybeActive, err := s.worklogsRepo.GetActiveEntry(txCtx, agentID, ticketID, true)
		if err != nil {
			return fmt.Errorf("failed to check for active entry: %w", err)
		}
		if maybeActive.IsPresent() {
			entry = maybeActive.MustGet()
			return nil
		}

		entry = &models.WorklogEntry{
			ID:        core.NewID("wl"),
			AgentID:   agentID,
			TicketID:  ticketID,
			StartedAt: time.Now(),
			Source:    models.WorklogSourceAuto,
		}
		if err := s.worklogsRepo.CreateEntry(txCtx, entry); err != nil {
			return fmt.Errorf("failed to create worklog entry: %w", err)
		}
		started = true
		return nil
	})
	if err != nil {
		// The partial unique index is the backstop for a concurrent start
		// that slipped past the row lock; surface the winner instead.
		if db.IsDuplicateActiveEntryError(err) {
			maybeActive, getErr := s.worklogsRepo.GetActiveEntry(ctx, agentID, ticketID, false)
			if getErr == nil && maybeActive.IsPresent() {
				log.Printf("📋 Completed successfully - concurrent start won, returning existing entry")
				return maybeActive.MustGet(), false, nil
			}
		}
		return nil, false, err
	}

	log.Printf("📋 Completed successfully - timer entry %s (started: %t)", entry.ID, started)
	return entry, started, nil
}

// StopAuto closes the running timer for the pair, if any. Stopping with no
// timer running returns None and is a benign no-op, so unload beacons and
// unassignment can race freely.
func (s *WorklogsService) StopAuto(
	ctx context.Context,
	agentID, ticketID string,
) (mo.Option[*models.WorklogEntry], error) {
	log.Printf("📋 Starting to close auto worklog timer for agent %s on ticket %s", agentID, ticketID)
	if !core.IsValidULID(agentID) {
		return mo.None[*models.WorklogEntry](), fmt.Errorf("agent ID must be a valid ULID")
	}
	if ticketID == "" {
		return mo.None[*models.WorklogEntry](), fmt.Errorf("%w: ticket_id must not be empty", core.ErrInvalid)
	}

	maybeEntry, err := s.worklogsRepo.CloseActiveEntry(ctx, agentID, ticketID, time.Now())
	if err != nil {
		return mo.None[*models.WorklogEntry](), fmt.Errorf("failed to close worklog entry: %w", err)
	}

	log.Printf("📋 Completed successfully - closed entry present: %t", maybeEntry.IsPresent())
	return maybeEntry, nil
}

// CreateManual records a hand-entered closed interval. The interval must end
// after it starts; manual entries never interact with the one-active-timer
// rule because they are born closed.
func (s *WorklogsService) CreateManual(
	ctx context.Context,
	agentID, ticketID string,
	startedAt, endedAt time.Time,
	description *string,
) (*models.WorklogEntry, error) {
	log.Printf("📋 Starting to create manual worklog entry for agent %s on ticket %s", agentID, ticketID)
	if err := s.validatePair(ctx, agentID, ticketID); err != nil {
		return nil, err
	}
	if !endedAt.After(startedAt) {
		return nil, fmt.Errorf("%w: ended_at must be after started_at", core.ErrInvalid)
	}

	entry := &models.WorklogEntry{
		ID:          core.NewID("wl"),
		AgentID:     agentID,
		TicketID:    ticketID,
		StartedAt:   startedAt,
		EndedAt:     &endedAt,
		Source:      models.WorklogSourceManual,
		Description: description,
	}
	if err := s.worklogsRepo.CreateEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to create manual worklog entry: %w", err)
	}

	log.Printf("📋 Completed successfully - created manual entry %s", entry.ID)
	return entry, nil
}

func (s *WorklogsService) ListByTicket(ctx context.Context, ticketID string) ([]*models.WorklogEntry, error) {
	log.Printf("📋 Starting to list worklog entries for ticket %s", ticketID)
	if ticketID == "" {
		return nil, fmt.Errorf("%w: ticket_id must not be empty", core.ErrInvalid)
	}

	entries, err := s.worklogsRepo.ListEntriesByTicket(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to list worklog entries: %w", err)
	}

	log.Printf("📋 Completed successfully - retrieved %d entries", len(entries))
	return entries, nil
}

func (s *WorklogsService) ListByAgent(ctx context.Context, agentID string) ([]*models.WorklogEntry, error) {
	log.Printf("📋 Starting to list worklog entries for agent %s", agentID)
	if !core.IsValidULID(agentID) {
		return nil, fmt.Errorf("agent ID must be a valid ULID")
	}

	entries, err := s.worklogsRepo.ListEntriesByAgent(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list worklog entries: %w", err)
	}

	log.Printf("📋 Completed successfully - retrieved %d entries", len(entries))
	return entries, nil
}

func (s *WorklogsService) validatePair(ctx context.Context, agentID, ticketID string) error {
	if !core.IsValidULID(agentID) {
		return fmt.Errorf("agent ID must be a valid ULID")
	}
	if ticketID == "" {
		return fmt.Errorf("%w: ticket_id must not be empty", core.ErrInvalid)
	}

	maybeAgent, err := s.rosterService.GetAgentByID(ctx, agentID)
	if err != nil {
		return fmt.Errorf("failed to verify agent: %w", err)
	}
	if !maybeAgent.IsPresent() {
		return fmt.Errorf("agent %s: %w", agentID, core.ErrNotFound)
	}
	return nil
}
