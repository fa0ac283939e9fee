package roster

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/samber/mo"

	"hdbackend/core"
	"hdbackend/db"
	"hdbackend/models"
	"hdbackend/services/mentions"
)

type RosterService struct {
	agentsRepo *db.PostgresAgentsRepository
}

func NewRosterService(repo *db.PostgresAgentsRepository) *RosterService {
	return &RosterService{agentsRepo: repo}
}

func (s *RosterService) GetAgentByID(ctx context.Context, id string) (mo.Option[*models.Agent], error) {
	log.Printf("📋 Starting to get agent by ID: %s", id)
	if !core.IsValidULID(id) {
		return mo.None[*models.Agent](), fmt.Errorf("agent ID must be a valid ULID")
	}

	maybeAgent, err := s.agentsRepo.GetAgentByID(ctx, id)
	if err != nil {
		return mo.None[*models.Agent](), fmt.Errorf("failed to get agent: %w", err)
	}
	if !maybeAgent.IsPresent() {
		log.Printf("📋 Completed successfully - agent not found")
		return mo.None[*models.Agent](), nil
	}

	log.Printf("📋 Completed successfully - retrieved agent with ID: %s", id)
	return maybeAgent, nil
}

func (s *RosterService) GetAgentBySlug(ctx context.Context, slug string) (mo.Option[*models.Agent], error) {
	log.Printf("📋 Starting to get agent by slug: %s", slug)
	if slug == "" {
		return mo.None[*models.Agent](), fmt.Errorf("slug must not be empty")
	}

	maybeAgent, err := s.agentsRepo.GetAgentBySlug(ctx, slug)
	if err != nil {
		return mo.None[*models.Agent](), fmt.Errorf("failed to get agent by slug: %w", err)
	}

	log.Printf("📋 Completed successfully - agent by slug present: %t", maybeAgent.IsPresent())
	return maybeAgent, nil
}

func (s *RosterService) GetAgentByAPIToken(ctx context.Context, apiToken string) (mo.Option[*models.Agent], error) {
	log.Printf("📋 Starting to get agent by API token")
	if apiToken == "" {
		return mo.None[*models.Agent](), fmt.Errorf("api token must not be empty")
	}

	maybeAgent, err := s.agentsRepo.GetAgentByAPIToken(ctx, apiToken)
	if err != nil {
		return mo.None[*models.Agent](), fmt.Errorf("failed to get agent by api token: %w", err)
	}

	log.Printf("📋 Completed successfully - agent by token present: %t", maybeAgent.IsPresent())
	return maybeAgent, nil
}

func (s *RosterService) ListAgents(ctx context.Context) ([]*models.Agent, error) {
	log.Printf("📋 Starting to list agents")

	agents, err := s.agentsRepo.ListAgents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}

	log.Printf("📋 Completed successfully - retrieved %d agents", len(agents))
	return agents, nil
}

// MentionRoster returns the roster projected into mention candidates,
// in roster order.
func (s *RosterService) MentionRoster(ctx context.Context) ([]models.MentionCandidate, error) {
	agents, err := s.ListAgents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build mention roster: %w", err)
	}
	return mentions.CandidatesFromRoster(agents), nil
}

func (s *RosterService) CreateAgent(
	ctx context.Context,
	slug, displayName string,
	email, avatarURL *string,
	role models.AgentRole,
) (*models.Agent, error) {
	log.Printf("📋 Starting to create agent with slug: %s", slug)
	if slug == "" {
		return nil, fmt.Errorf("%w: slug must not be empty", core.ErrInvalid)
	}
	if displayName == "" {
		return nil, fmt.Errorf("%w: display_name must not be empty", core.ErrInvalid)
	}
	if !role.IsValid() {
		return nil, fmt.Errorf("%w: unknown role %q", core.ErrInvalid, role)
	}

	apiToken, err := core.NewSecretKey("hd")
	if err != nil {
		return nil, fmt.Errorf("failed to generate api token: %w", err)
	}

	agent := &models.Agent{
		ID:             core.NewID("op"),
		Slug:           slug,
		DisplayName:    displayName,
		Email:          email,
		AvatarURL:      avatarURL,
		Role:           role,
		APIToken:       apiToken,
		PresenceStatus: models.PresenceOffline,
	}
	if err := s.agentsRepo.CreateAgent(ctx, agent); err != nil {
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}

	log.Printf("📋 Completed successfully - created agent with ID: %s", agent.ID)
	return agent, nil
}

func (s *RosterService) RecordPresence(
	ctx context.Context,
	agentID string,
	status models.PresenceStatus,
	lastSeenAt time.Time,
) error {
	if !core.IsValidULID(agentID) {
		return fmt.Errorf("agent ID must be a valid ULID")
	}
	if !status.IsValid() {
		return fmt.Errorf("%w: unknown presence status %q", core.ErrInvalid, status)
	}

	updated, err := s.agentsRepo.UpdatePresence(ctx, agentID, status, lastSeenAt)
	if err != nil {
		return fmt.Errorf("failed to record presence: %w", err)
	}
	if !updated {
		return core.ErrNotFound
	}

	return nil
}
