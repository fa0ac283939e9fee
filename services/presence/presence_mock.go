package presence

import (
	"context"

	"github.com/samber/mo"
	"github.com/stretchr/testify/mock"

	"hdbackend/models"
)

// MockPresenceService is a mock implementation of services.PresenceService
type MockPresenceService struct {
	mock.Mock
}

func (m *MockPresenceService) SetStatus(
	ctx context.Context,
	agentID string,
	status models.PresenceStatus,
) (models.PresenceRecord, error) {
	args := m.Called(ctx, agentID, status)
	return args.Get(0).(models.PresenceRecord), args.Error(1)
}

func (m *MockPresenceService) HandleSessionConnected(ctx context.Context, agentID, clientID string) error {
	args := m.Called(ctx, agentID, clientID)
	return args.Error(0)
}

func (m *MockPresenceService) HandleSessionDisconnected(ctx context.Context, agentID, clientID string) error {
	args := m.Called(ctx, agentID, clientID)
	return args.Error(0)
}

func (m *MockPresenceService) GetPresence(ctx context.Context, agentID string) mo.Option[models.PresenceRecord] {
	args := m.Called(ctx, agentID)
	return args.Get(0).(mo.Option[models.PresenceRecord])
}

func (m *MockPresenceService) Snapshot(ctx context.Context) []models.PresenceRecord {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]models.PresenceRecord)
}

func (m *MockPresenceService) FlushLastSeen(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
