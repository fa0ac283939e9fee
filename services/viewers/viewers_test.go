package viewers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"hdbackend/clients"
	"hdbackend/core"
	"hdbackend/models"
)

func newTestService(t *testing.T) (*ViewersService, *clients.MockRealtimeBroadcaster) {
	t.Helper()
	mockBroadcaster := new(clients.MockRealtimeBroadcaster)
	mockBroadcaster.On("JoinRoom", mock.Anything, mock.Anything).Return()
	mockBroadcaster.On("LeaveRoom", mock.Anything, mock.Anything).Return()
	return NewViewersService(mockBroadcaster), mockBroadcaster
}

func viewPayload(userID, ticketID string) models.TicketViewPayload {
	return models.TicketViewPayload{
		TicketID: ticketID,
		UserID:   userID,
		UserName: "Agent " + userID,
		UserType: models.AgentRoleAgent,
	}
}

func TestView(t *testing.T) {
	ctx := context.Background()

	t.Run("first viewer gets a set containing only themselves", func(t *testing.T) {
		service, mockBroadcaster := newTestService(t)
		mockBroadcaster.On("BroadcastRoomExcept", "ticket:tkt-1", models.EventViewerJoined, mock.Anything, "client-1").Return()

		viewers, err := service.View(ctx, "client-1", viewPayload("u1", "tkt-1"))
		require.NoError(t, err)
		require.Len(t, viewers, 1)
		assert.Equal(t, "u1", viewers[0].UserID)
		mockBroadcaster.AssertCalled(t, "JoinRoom", "client-1", "ticket:tkt-1")
	})

	t.Run("second viewer sees both and the first is notified", func(t *testing.T) {
		service, mockBroadcaster := newTestService(t)
		mockBroadcaster.On("BroadcastRoomExcept", mock.Anything, models.EventViewerJoined, mock.Anything, mock.Anything).Return()

		_, err := service.View(ctx, "client-1", viewPayload("u1", "tkt-1"))
		require.NoError(t, err)
		viewers, err := service.View(ctx, "client-2", viewPayload("u2", "tkt-1"))
		require.NoError(t, err)

		require.Len(t, viewers, 2)
		assert.Equal(t, "u1", viewers[0].UserID)
		assert.Equal(t, "u2", viewers[1].UserID)
		mockBroadcaster.AssertCalled(t, "BroadcastRoomExcept", "ticket:tkt-1", models.EventViewerJoined, mock.MatchedBy(func(p any) bool {
			payload, ok := p.(models.ViewerJoinedPayload)
			return ok && payload.Viewer.UserID == "u2"
		}), "client-2")
	})

	t.Run("repeat announcement from the same session is idempotent", func(t *testing.T) {
		service, mockBroadcaster := newTestService(t)
		mockBroadcaster.On("BroadcastRoomExcept", mock.Anything, models.EventViewerJoined, mock.Anything, mock.Anything).Return()

		_, err := service.View(ctx, "client-1", viewPayload("u1", "tkt-1"))
		require.NoError(t, err)
		viewers, err := service.View(ctx, "client-1", viewPayload("u1", "tkt-1"))
		require.NoError(t, err)

		assert.Len(t, viewers, 1)
		mockBroadcaster.AssertNumberOfCalls(t, "BroadcastRoomExcept", 1)
	})

	t.Run("same user in two tabs yields one entry", func(t *testing.T) {
		service, mockBroadcaster := newTestService(t)
		mockBroadcaster.On("BroadcastRoomExcept", mock.Anything, models.EventViewerJoined, mock.Anything, mock.Anything).Return()

		_, err := service.View(ctx, "client-1", viewPayload("u1", "tkt-1"))
		require.NoError(t, err)
		viewers, err := service.View(ctx, "client-2", viewPayload("u1", "tkt-1"))
		require.NoError(t, err)

		assert.Len(t, viewers, 1)
		mockBroadcaster.AssertNumberOfCalls(t, "BroadcastRoomExcept", 1)
	})

	t.Run("rejects empty identifiers", func(t *testing.T) {
		service, _ := newTestService(t)

		_, err := service.View(ctx, "client-1", viewPayload("u1", ""))
		require.Error(t, err)
		assert.True(t, core.IsValidationError(err))

		_, err = service.View(ctx, "client-1", viewPayload("", "tkt-1"))
		require.Error(t, err)
		assert.True(t, core.IsValidationError(err))
	})
}

func TestLeave(t *testing.T) {
	ctx := context.Background()

	t.Run("last session leaving broadcasts left and empties the set", func(t *testing.T) {
		service, mockBroadcaster := newTestService(t)
		mockBroadcaster.On("BroadcastRoomExcept", mock.Anything, models.EventViewerJoined, mock.Anything, mock.Anything).Return()
		mockBroadcaster.On("BroadcastRoom", "ticket:tkt-1", models.EventViewerLeft, mock.Anything).Return()

		_, err := service.View(ctx, "client-1", viewPayload("u1", "tkt-1"))
		require.NoError(t, err)
		require.NoError(t, service.Leave(ctx, "client-1", "tkt-1"))

		assert.Empty(t, service.GetViewers(ctx, "tkt-1"))
		mockBroadcaster.AssertCalled(t, "BroadcastRoom", "ticket:tkt-1", models.EventViewerLeft, models.ViewerLeftPayload{
			TicketID: "tkt-1",
			UserID:   "u1",
		})
	})

	t.Run("entry survives until the user's last session leaves", func(t *testing.T) {
		service, mockBroadcaster := newTestService(t)
		mockBroadcaster.On("BroadcastRoomExcept", mock.Anything, models.EventViewerJoined, mock.Anything, mock.Anything).Return()
		mockBroadcaster.On("BroadcastRoom", mock.Anything, models.EventViewerLeft, mock.Anything).Return()

		_, err := service.View(ctx, "client-1", viewPayload("u1", "tkt-1"))
		require.NoError(t, err)
		_, err = service.View(ctx, "client-2", viewPayload("u1", "tkt-1"))
		require.NoError(t, err)

		require.NoError(t, service.Leave(ctx, "client-1", "tkt-1"))
		assert.Len(t, service.GetViewers(ctx, "tkt-1"), 1)
		mockBroadcaster.AssertNotCalled(t, "BroadcastRoom", mock.Anything, mock.Anything, mock.Anything)

		require.NoError(t, service.Leave(ctx, "client-2", "tkt-1"))
		assert.Empty(t, service.GetViewers(ctx, "tkt-1"))
	})

	t.Run("leaving a ticket never viewed is a no-op", func(t *testing.T) {
		service, _ := newTestService(t)

		require.NoError(t, service.Leave(ctx, "client-1", "tkt-9"))
	})
}

func TestLeaveAllForSession(t *testing.T) {
	ctx := context.Background()

	service, mockBroadcaster := newTestService(t)
	mockBroadcaster.On("BroadcastRoomExcept", mock.Anything, models.EventViewerJoined, mock.Anything, mock.Anything).Return()
	mockBroadcaster.On("BroadcastRoom", mock.Anything, models.EventViewerLeft, mock.Anything).Return()

	_, err := service.View(ctx, "client-1", viewPayload("u1", "tkt-1"))
	require.NoError(t, err)
	_, err = service.View(ctx, "client-1", viewPayload("u1", "tkt-2"))
	require.NoError(t, err)
	_, err = service.View(ctx, "client-2", viewPayload("u2", "tkt-1"))
	require.NoError(t, err)

	require.NoError(t, service.LeaveAllForSession(ctx, "client-1"))

	viewers := service.GetViewers(ctx, "tkt-1")
	require.Len(t, viewers, 1)
	assert.Equal(t, "u2", viewers[0].UserID)
	assert.Empty(t, service.GetViewers(ctx, "tkt-2"))
}
