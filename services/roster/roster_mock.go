package roster

import (
	"context"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/mock"

	"hdbackend/models"
)

// MockRosterService is a mock implementation of services.RosterService
type MockRosterService struct {
	mock.Mock
}

func (m *MockRosterService) GetAgentByID(ctx context.Context, id string) (mo.Option[*models.Agent], error) {
	args := m.Called(ctx, id)
	return args.Get(0).(mo.Option[*models.Agent]), args.Error(1)
}

func (m *MockRosterService) GetAgentBySlug(ctx context.Context, slug string) (mo.Option[*models.Agent], error) {
	args := m.Called(ctx, slug)
	return args.Get(0).(mo.Option[*models.Agent]), args.Error(1)
}

func (m *MockRosterService) GetAgentByAPIToken(ctx context.Context, apiToken string) (mo.Option[*models.Agent], error) {
	args := m.Called(ctx, apiToken)
	return args.Get(0).(mo.Option[*models.Agent]), args.Error(1)
}

func (m *MockRosterService) ListAgents(ctx context.Context) ([]*models.Agent, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Agent), args.Error(1)
}

func (m *MockRosterService) MentionRoster(ctx context.Context) ([]models.MentionCandidate, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.MentionCandidate), args.Error(1)
}

func (m *MockRosterService) CreateAgent(
	ctx context.Context,
	slug, displayName string,
	email, avatarURL *string,
	role models.AgentRole,
) (*models.Agent, error) {
	args := m.Called(ctx, slug, displayName, email, avatarURL, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Agent), args.Error(1)
}

func (m *MockRosterService) RecordPresence(
	ctx context.Context,
	agentID string,
	status models.PresenceStatus,
	lastSeenAt time.Time,
) error {
	args := m.Called(ctx, agentID, status, lastSeenAt)
	return args.Error(0)
}
