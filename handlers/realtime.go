package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"hdbackend/clients"
	"hdbackend/models"
	"hdbackend/services"
)

// RealtimeHandler owns the named events arriving over the persistent
// connection. Presence changes travel over REST; the realtime surface carries
// only viewer announcements.
type RealtimeHandler struct {
	viewersService services.ViewersService
}

func NewRealtimeHandler(viewersService services.ViewersService) *RealtimeHandler {
	return &RealtimeHandler{viewersService: viewersService}
}

// unmarshalPayload converts the decoded transport payload into a typed struct
// via a JSON round-trip, the same way the socket.io codec produced it.
func unmarshalPayload(payload any, target any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return nil
}

// HandleTicketView registers the sender as a viewer and acknowledges with the
// full current viewer set for the ticket.
func (h *RealtimeHandler) HandleTicketView(client *clients.Client, payload any) (any, error) {
	log.Printf("📥 Ticket view announcement from client %s", client.ID)

	var viewPayload models.TicketViewPayload
	if err := unmarshalPayload(payload, &viewPayload); err != nil {
		return nil, fmt.Errorf("invalid ticket:view payload: %w", err)
	}

	viewers, err := h.viewersService.View(context.Background(), client.ID, viewPayload)
	if err != nil {
		return nil, fmt.Errorf("failed to register viewer: %w", err)
	}

	return models.TicketViewAck{
		TicketID: viewPayload.TicketID,
		Viewers:  viewers,
	}, nil
}

// HandleTicketLeave unregisters the sender from a ticket's viewer set
func (h *RealtimeHandler) HandleTicketLeave(client *clients.Client, payload any) (any, error) {
	log.Printf("📥 Ticket leave from client %s", client.ID)

	var leavePayload models.TicketLeavePayload
	if err := unmarshalPayload(payload, &leavePayload); err != nil {
		return nil, fmt.Errorf("invalid ticket:leave payload: %w", err)
	}

	if err := h.viewersService.Leave(context.Background(), client.ID, leavePayload.TicketID); err != nil {
		return nil, fmt.Errorf("failed to unregister viewer: %w", err)
	}

	return nil, nil
}
