package collab

import (
	"context"
	"fmt"
	"log"

	"hdbackend/clients"
	"hdbackend/services"
)

// CollabUseCase ties session lifecycle to the presence store and the viewer
// registry: a connecting session marks its agent present, and a disconnecting
// session tears down every viewer registration it held before presence drops.
type CollabUseCase struct {
	presenceService services.PresenceService
	viewersService  services.ViewersService
}

func NewCollabUseCase(
	presenceService services.PresenceService,
	viewersService services.ViewersService,
) *CollabUseCase {
	return &CollabUseCase{
		presenceService: presenceService,
		viewersService:  viewersService,
	}
}

// RegisterSession handles a newly connected realtime session
func (uc *CollabUseCase) RegisterSession(ctx context.Context, client *clients.Client) error {
	log.Printf("📋 Starting to register session %s for agent %s", client.ID, client.AgentID)

	if err := uc.presenceService.HandleSessionConnected(ctx, client.AgentID, client.ID); err != nil {
		return fmt.Errorf("failed to register session: %w", err)
	}

	log.Printf("📋 Completed successfully - registered session %s", client.ID)
	return nil
}

// DeregisterSession handles a disconnected realtime session. Viewer cleanup
// runs first so viewer-left deltas go out while the agent still reads as
// present to observers.
func (uc *CollabUseCase) DeregisterSession(ctx context.Context, client *clients.Client) error {
	log.Printf("📋 Starting to deregister session %s for agent %s", client.ID, client.AgentID)

	if err := uc.viewersService.LeaveAllForSession(ctx, client.ID); err != nil {
		return fmt.Errorf("failed to clean up viewer registrations: %w", err)
	}
	if err := uc.presenceService.HandleSessionDisconnected(ctx, client.AgentID, client.ID); err != nil {
		return fmt.Errorf("failed to deregister session: %w", err)
	}

	log.Printf("📋 Completed successfully - deregistered session %s", client.ID)
	return nil
}

// FlushPresence persists last-seen for connected agents. Runs on a ticker.
func (uc *CollabUseCase) FlushPresence(ctx context.Context) error {
	return uc.presenceService.FlushLastSeen(ctx)
}
