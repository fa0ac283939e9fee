package presence

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/samber/mo"

	"hdbackend/clients"
	"hdbackend/core"
	"hdbackend/models"
	"hdbackend/services"
)

// presenceState is the in-memory authority for one agent. sessions holds the
// realtime client IDs currently connected for the agent; explicit marks that
// the current status came from a set-status request rather than a connection
// transition, so a reconnect does not clobber it back to online.
type presenceState struct {
	record   models.PresenceRecord
	sessions map[string]struct{}
	explicit bool
}

type PresenceService struct {
	rosterService services.RosterService
	broadcaster   clients.RealtimeBroadcaster

	mu     sync.Mutex
	states map[string]*presenceState
}

func NewPresenceService(
	rosterService services.RosterService,
	broadcaster clients.RealtimeBroadcaster,
) *PresenceService {
	return &PresenceService{
		rosterService: rosterService,
		broadcaster:   broadcaster,
		states:        make(map[string]*presenceState),
	}
}

// SetStatus applies an explicit status change. Unknown values are rejected,
// and offline cannot be requested explicitly - disconnecting does that
// implicitly. The resulting delta is fanned out to every connected client.
func (s *PresenceService) SetStatus(
	ctx context.Context,
	agentID string,
	status models.PresenceStatus,
) (models.PresenceRecord, error) {
	log.Printf("📋 Starting to set presence status for agent %s to %s", agentID, status)
	if !core.IsValidULID(agentID) {
		return models.PresenceRecord{}, fmt.Errorf("agent ID must be a valid ULID")
	}
	if !status.IsValid() {
		return models.PresenceRecord{}, fmt.Errorf("%w: unknown presence status %q", core.ErrInvalid, status)
	}
	if status == models.PresenceOffline {
		return models.PresenceRecord{}, fmt.Errorf(
			"%w: offline cannot be set explicitly, it is connection-derived",
			core.ErrInvalid,
		)
	}

	slug := s.slugForNewState(ctx, agentID)

	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.getOrCreateStateLocked(agentID, slug)
	state.record.Status = status
	state.record.LastSeenAt = time.Now()
	state.explicit = true

	s.persistLocked(ctx, state)
	s.broadcastLocked(state)

	log.Printf("📋 Completed successfully - set presence for agent %s to %s", agentID, status)
	return state.record, nil
}

// HandleSessionConnected records a connected session for the agent. The first
// connection of an agent with no explicit status forces online.
func (s *PresenceService) HandleSessionConnected(ctx context.Context, agentID, clientID string) error {
	log.Printf("📋 Starting to handle session connect for agent %s (client %s)", agentID, clientID)
	if !core.IsValidULID(agentID) {
		return fmt.Errorf("agent ID must be a valid ULID")
	}

	slug := s.slugForNewState(ctx, agentID)

	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.getOrCreateStateLocked(agentID, slug)
	state.sessions[clientID] = struct{}{}
	state.record.LastSeenAt = time.Now()

	if state.record.Status == models.PresenceOffline {
		state.record.Status = models.PresenceOnline
		state.explicit = false
		s.persistLocked(ctx, state)
		s.broadcastLocked(state)
	}

	log.Printf(
		"📋 Completed successfully - agent %s now has %d connected sessions",
		agentID,
		len(state.sessions),
	)
	return nil
}

// HandleSessionDisconnected removes a session. Only when the agent's last
// session goes away does the status transition to offline; an agent with a
// second open tab stays as-is.
func (s *PresenceService) HandleSessionDisconnected(ctx context.Context, agentID, clientID string) error {
	log.Printf("📋 Starting to handle session disconnect for agent %s (client %s)", agentID, clientID)
	if !core.IsValidULID(agentID) {
		return fmt.Errorf("agent ID must be a valid ULID")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[agentID]
	if !ok {
		log.Printf("📋 Completed successfully - no presence state for agent %s", agentID)
		return nil
	}
	delete(state.sessions, clientID)

	if len(state.sessions) == 0 && state.record.Status != models.PresenceOffline {
		state.record.Status = models.PresenceOffline
		state.record.LastSeenAt = time.Now()
		state.explicit = false
		s.persistLocked(ctx, state)
		s.broadcastLocked(state)
	}

	log.Printf(
		"📋 Completed successfully - agent %s has %d remaining sessions",
		agentID,
		len(state.sessions),
	)
	return nil
}

// GetPresence returns the current record for an agent, None if never seen
func (s *PresenceService) GetPresence(ctx context.Context, agentID string) mo.Option[models.PresenceRecord] {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[agentID]
	if !ok {
		return mo.None[models.PresenceRecord]()
	}
	return mo.Some(state.record)
}

// Snapshot returns all known presence records, ordered by agent ID
func (s *PresenceService) Snapshot(ctx context.Context) []models.PresenceRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]models.PresenceRecord, 0, len(s.states))
	for _, state := range s.states {
		records = append(records, state.record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].AgentID < records[j].AgentID })
	return records
}

// FlushLastSeen refreshes and persists last-seen for every agent that still
// has a connected session. Runs from the background ticker.
func (s *PresenceService) FlushLastSeen(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	flushed := 0
	for _, state := range s.states {
		if len(state.sessions) == 0 {
			continue
		}
		state.record.LastSeenAt = time.Now()
		s.persistLocked(ctx, state)
		flushed++
	}

	log.Printf("📋 Flushed last-seen for %d connected agents", flushed)
	return nil
}

// slugForNewState resolves the roster slug carried in broadcasts for an agent
// about to get in-memory state. The lookup runs before the state lock is
// taken so a slow roster query cannot stall unrelated presence traffic; when
// the agent already has state the lookup is skipped entirely.
func (s *PresenceService) slugForNewState(ctx context.Context, agentID string) string {
	s.mu.Lock()
	_, known := s.states[agentID]
	s.mu.Unlock()
	if known {
		return ""
	}

	maybeAgent, err := s.rosterService.GetAgentByID(ctx, agentID)
	if err != nil {
		log.Printf("❌ Failed to look up roster agent %s: %v", agentID, err)
		return ""
	}
	if maybeAgent.IsPresent() {
		return maybeAgent.MustGet().Slug
	}
	return ""
}

// getOrCreateStateLocked lazily creates the record for an agent never seen,
// in the offline initial state
func (s *PresenceService) getOrCreateStateLocked(agentID, slug string) *presenceState {
	if state, ok := s.states[agentID]; ok {
		return state
	}

	state := &presenceState{
		record: models.PresenceRecord{
			AgentID:   agentID,
			AgentSlug: slug,
			Status:    models.PresenceOffline,
		},
		sessions: make(map[string]struct{}),
	}
	s.states[agentID] = state
	return state
}

func (s *PresenceService) persistLocked(ctx context.Context, state *presenceState) {
	err := s.rosterService.RecordPresence(ctx, state.record.AgentID, state.record.Status, state.record.LastSeenAt)
	if err != nil {
		if core.IsNotFoundError(err) {
			// Agent not in the roster table; the in-memory record is still authoritative
			return
		}
		log.Printf("❌ Failed to persist presence for agent %s: %v", state.record.AgentID, err)
	}
}

// broadcastLocked fans the delta out to all connected clients. Done under the
// lock so delivery order matches application order for the agent's key.
func (s *PresenceService) broadcastLocked(state *presenceState) {
	s.broadcaster.BroadcastAll(models.EventPresenceUpdate, models.PresenceUpdatePayload{
		AgentID:        state.record.AgentID,
		AgentSlug:      state.record.AgentSlug,
		PresenceStatus: state.record.Status,
		LastSeenAt:     state.record.LastSeenAt,
	})
}
