package viewers

import (
	"context"

	"github.com/stretchr/testify/mock"

	"hdbackend/models"
)

// MockViewersService is a mock implementation of services.ViewersService
type MockViewersService struct {
	mock.Mock
}

func (m *MockViewersService) View(
	ctx context.Context,
	clientID string,
	payload models.TicketViewPayload,
) ([]models.ViewerEntry, error) {
	args := m.Called(ctx, clientID, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ViewerEntry), args.Error(1)
}

func (m *MockViewersService) Leave(ctx context.Context, clientID, ticketID string) error {
	args := m.Called(ctx, clientID, ticketID)
	return args.Error(0)
}

func (m *MockViewersService) LeaveAllForSession(ctx context.Context, clientID string) error {
	args := m.Called(ctx, clientID)
	return args.Error(0)
}

func (m *MockViewersService) GetViewers(ctx context.Context, ticketID string) []models.ViewerEntry {
	args := m.Called(ctx, ticketID)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]models.ViewerEntry)
}
