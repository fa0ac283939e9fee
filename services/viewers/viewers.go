package viewers

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"hdbackend/clients"
	"hdbackend/core"
	"hdbackend/models"
)

// viewerState is one user's registration on one ticket. A user can hold the
// same ticket open in several tabs; each tab is a session, and the entry
// survives until the last session leaves.
type viewerState struct {
	entry    models.ViewerEntry
	sessions map[string]struct{}
}

// ViewersService is the authoritative registry of who is looking at which
// ticket. Purely in-memory: a restart forgets everything, and clients
// re-announce themselves on reconnect.
type ViewersService struct {
	broadcaster clients.RealtimeBroadcaster

	mu sync.Mutex
	// ticketID -> userID -> state
	tickets map[string]map[string]*viewerState
	// clientID -> ticketID -> userID, for disconnect cleanup
	sessionTickets map[string]map[string]string
}

func NewViewersService(broadcaster clients.RealtimeBroadcaster) *ViewersService {
	return &ViewersService{
		broadcaster:    broadcaster,
		tickets:        make(map[string]map[string]*viewerState),
		sessionTickets: make(map[string]map[string]string),
	}
}

func roomForTicket(ticketID string) string {
	return "ticket:" + ticketID
}

// View registers the sender as a viewer of a ticket and returns the full
// current viewer set for the acknowledgement. Repeat announcements from the
// same session are idempotent. Other sessions on the ticket get a joined
// delta only when the user was not already viewing.
func (s *ViewersService) View(
	ctx context.Context,
	clientID string,
	payload models.TicketViewPayload,
) ([]models.ViewerEntry, error) {
	log.Printf("📋 Starting to register viewer %s on ticket %s", payload.UserID, payload.TicketID)
	if payload.TicketID == "" {
		return nil, fmt.Errorf("%w: ticket_id must not be empty", core.ErrInvalid)
	}
	if payload.UserID == "" {
		return nil, fmt.Errorf("%w: user_id must not be empty", core.ErrInvalid)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ticketViewers, ok := s.tickets[payload.TicketID]
	if !ok {
		ticketViewers = make(map[string]*viewerState)
		s.tickets[payload.TicketID] = ticketViewers
	}

	now := time.Now()
	state, existed := ticketViewers[payload.UserID]
	if !existed {
		state = &viewerState{
			entry: models.ViewerEntry{
				UserID:      payload.UserID,
				DisplayName: payload.UserName,
				AvatarURL:   payload.UserAvatar,
				UserType:    payload.UserType,
				JoinedAt:    now,
				LastSeenAt:  now,
			},
			sessions: make(map[string]struct{}),
		}
		ticketViewers[payload.UserID] = state
	} else {
		state.entry.LastSeenAt = now
	}
	state.sessions[clientID] = struct{}{}

	sessionIndex, ok := s.sessionTickets[clientID]
	if !ok {
		sessionIndex = make(map[string]string)
		s.sessionTickets[clientID] = sessionIndex
	}
	sessionIndex[payload.TicketID] = payload.UserID

	s.broadcaster.JoinRoom(clientID, roomForTicket(payload.TicketID))

	if !existed {
		s.broadcaster.BroadcastRoomExcept(
			roomForTicket(payload.TicketID),
			models.EventViewerJoined,
			models.ViewerJoinedPayload{TicketID: payload.TicketID, Viewer: state.entry},
			clientID,
		)
	}

	viewers := s.viewersLocked(payload.TicketID)
	log.Printf(
		"📋 Completed successfully - ticket %s has %d viewers",
		payload.TicketID,
		len(viewers),
	)
	return viewers, nil
}

// Leave unregisters one session of a viewer from a ticket. Leaving a ticket
// the session never viewed is a benign no-op. The left delta goes out only
// when the user's last session departs.
func (s *ViewersService) Leave(ctx context.Context, clientID, ticketID string) error {
	log.Printf("📋 Starting to unregister client %s from ticket %s", clientID, ticketID)
	if ticketID == "" {
		return fmt.Errorf("%w: ticket_id must not be empty", core.ErrInvalid)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.leaveLocked(clientID, ticketID)

	log.Printf("📋 Completed successfully - client %s left ticket %s", clientID, ticketID)
	return nil
}

// LeaveAllForSession removes every viewer registration held by a session.
// Called from the disconnect hook.
func (s *ViewersService) LeaveAllForSession(ctx context.Context, clientID string) error {
	log.Printf("📋 Starting to clean up viewer registrations for client %s", clientID)

	s.mu.Lock()
	defer s.mu.Unlock()

	sessionIndex := s.sessionTickets[clientID]
	ticketIDs := make([]string, 0, len(sessionIndex))
	for ticketID := range sessionIndex {
		ticketIDs = append(ticketIDs, ticketID)
	}
	for _, ticketID := range ticketIDs {
		s.leaveLocked(clientID, ticketID)
	}

	log.Printf(
		"📋 Completed successfully - cleaned up %d viewer registrations for client %s",
		len(ticketIDs),
		clientID,
	)
	return nil
}

// GetViewers returns the current viewer set for a ticket, ordered by join time
func (s *ViewersService) GetViewers(ctx context.Context, ticketID string) []models.ViewerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewersLocked(ticketID)
}

func (s *ViewersService) leaveLocked(clientID, ticketID string) {
	sessionIndex, ok := s.sessionTickets[clientID]
	if !ok {
		return
	}
	userID, ok := sessionIndex[ticketID]
	if !ok {
		return
	}
	delete(sessionIndex, ticketID)
	if len(sessionIndex) == 0 {
		delete(s.sessionTickets, clientID)
	}

	s.broadcaster.LeaveRoom(clientID, roomForTicket(ticketID))

	ticketViewers, ok := s.tickets[ticketID]
	if !ok {
		return
	}
	state, ok := ticketViewers[userID]
	if !ok {
		return
	}
	delete(state.sessions, clientID)
	if len(state.sessions) > 0 {
		return
	}

	delete(ticketViewers, userID)
	if len(ticketViewers) == 0 {
		delete(s.tickets, ticketID)
	}

	s.broadcaster.BroadcastRoom(
		roomForTicket(ticketID),
		models.EventViewerLeft,
		models.ViewerLeftPayload{TicketID: ticketID, UserID: userID},
	)
}

func (s *ViewersService) viewersLocked(ticketID string) []models.ViewerEntry {
	ticketViewers := s.tickets[ticketID]
	viewers := make([]models.ViewerEntry, 0, len(ticketViewers))
	for _, state := range ticketViewers {
		viewers = append(viewers, state.entry)
	}
	sort.Slice(viewers, func(i, j int) bool {
		if viewers[i].JoinedAt.Equal(viewers[j].JoinedAt) {
			return viewers[i].UserID < viewers[j].UserID
		}
		return viewers[i].JoinedAt.Before(viewers[j].JoinedAt)
	})
	return viewers
}
