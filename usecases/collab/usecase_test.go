package collab

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hdbackend/clients"
	"hdbackend/core"
	"hdbackend/services/presence"
	"hdbackend/services/viewers"
)

func testClient() *clients.Client {
	return &clients.Client{
		ID:        core.NewID("sess"),
		AgentID:   core.NewID("op"),
		SessionID: "session-1",
	}
}

func TestRegisterSession(t *testing.T) {
	ctx := context.Background()
	client := testClient()

	mockPresence := new(presence.MockPresenceService)
	mockViewers := new(viewers.MockViewersService)
	mockPresence.On("HandleSessionConnected", ctx, client.AgentID, client.ID).Return(nil)

	uc := NewCollabUseCase(mockPresence, mockViewers)
	require.NoError(t, uc.RegisterSession(ctx, client))
	mockPresence.AssertExpectations(t)
}

func TestDeregisterSession(t *testing.T) {
	ctx := context.Background()

	t.Run("cleans up viewers before presence", func(t *testing.T) {
		client := testClient()
		mockPresence := new(presence.MockPresenceService)
		mockViewers := new(viewers.MockViewersService)
		mockViewers.On("LeaveAllForSession", ctx, client.ID).Return(nil)
		mockPresence.On("HandleSessionDisconnected", ctx, client.AgentID, client.ID).Return(nil)

		uc := NewCollabUseCase(mockPresence, mockViewers)
		require.NoError(t, uc.DeregisterSession(ctx, client))
		mockViewers.AssertExpectations(t)
		mockPresence.AssertExpectations(t)
	})

	t.Run("viewer cleanup failure short-circuits", func(t *testing.T) {
		client := testClient()
		mockPresence := new(presence.MockPresenceService)
		mockViewers := new(viewers.MockViewersService)
		mockViewers.On("LeaveAllForSession", ctx, client.ID).Return(errors.New("boom"))

		uc := NewCollabUseCase(mockPresence, mockViewers)
		err := uc.DeregisterSession(ctx, client)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to clean up viewer registrations")
		mockPresence.AssertNotCalled(t, "HandleSessionDisconnected", ctx, client.AgentID, client.ID)
	})
}
