package worklogs

import (
	"context"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/mock"

	"hdbackend/models"
)

// MockWorklogsService is a mock implementation of services.WorklogsService
type MockWorklogsService struct {
	mock.Mock
}

func (m *MockWorklogsService) StartAuto(
	ctx context.Context,
	agentID, ticketID string,
) (*models.WorklogEntry, bool, error) {
	args := m.Called(ctx, agentID, ticketID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.WorklogEntry), args.Bool(1), args.Error(2)
}

func (m *MockWorklogsService) StopAuto(
	ctx context.Context,
	agentID, ticketID string,
) (mo.Option[*models.WorklogEntry], error) {
	args := m.Called(ctx, agentID, ticketID)
	return args.Get(0).(mo.Option[*models.WorklogEntry]), args.Error(1)
}

func (m *MockWorklogsService) CreateManual(
	ctx context.Context,
	agentID, ticketID string,
	startedAt, endedAt time.Time,
	description *string,
) (*models.WorklogEntry, error) {
	args := m.Called(ctx, agentID, ticketID, startedAt, endedAt, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WorklogEntry), args.Error(1)
}

func (m *MockWorklogsService) ListByTicket(ctx context.Context, ticketID string) ([]*models.WorklogEntry, error) {
	args := m.Called(ctx, ticketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.WorklogEntry), args.Error(1)
}

func (m *MockWorklogsService) ListByAgent(ctx context.Context, agentID string) ([]*models.WorklogEntry, error) {
	args := m.Called(ctx, agentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.WorklogEntry), args.Error(1)
}
