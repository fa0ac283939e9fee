package presence

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/samber/mo"

	"hdbackend/models"
)

// Mirror is the client-side copy of the server's presence map. It is seeded
// from the REST snapshot on page load and kept current by folding in
// broadcast deltas. Records are keyed by agent id; a slug index covers
// screens and deltas that only know the secondary key.
type Mirror struct {
	mu       sync.Mutex
	byID     map[string]models.PresenceRecord
	idBySlug map[string]string
	onChange []func(models.PresenceRecord)
}

func NewMirror() *Mirror {
	return &Mirror{
		byID:     make(map[string]models.PresenceRecord),
		idBySlug: make(map[string]string),
	}
}

// OnChange registers a callback fired for every record whose status changes,
// from seeds and deltas alike
func (m *Mirror) OnChange(fn func(models.PresenceRecord)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = append(m.onChange, fn)
}

// Seed replaces the mirror's contents with a fresh REST snapshot. Called on
// page load and again after every reconnect: deltas broadcast during the gap
// are gone, so only a refetch closes it.
func (m *Mirror) Seed(records []models.PresenceRecord) {
	m.mu.Lock()
	previous := m.byID
	m.byID = make(map[string]models.PresenceRecord, len(records))
	m.idBySlug = make(map[string]string, len(records))

	var changed []models.PresenceRecord
	for _, record := range records {
		m.byID[record.AgentID] = record
		if record.AgentSlug != "" {
			m.idBySlug[record.AgentSlug] = record.AgentID
		}
		if prev, ok := previous[record.AgentID]; !ok || prev.Status != record.Status {
			changed = append(changed, record)
		}
	}
	listeners := append(([]func(models.PresenceRecord))(nil), m.onChange...)
	m.mu.Unlock()

	for _, record := range changed {
		for _, fn := range listeners {
			fn(record)
		}
	}
}

// ApplyEvent decodes a raw realtime payload and folds it into the mirror.
// The payload arrives as whatever the transport decoded the JSON into, so it
// goes through a marshal round-trip to the typed struct first.
func (m *Mirror) ApplyEvent(payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal presence payload: %w", err)
	}
	var update models.PresenceUpdatePayload
	if err := json.Unmarshal(raw, &update); err != nil {
		return fmt.Errorf("failed to decode presence payload: %w", err)
	}
	if update.AgentID == "" && update.AgentSlug == "" {
		return fmt.Errorf("presence payload carries neither agent id nor slug")
	}

	m.Apply(update)
	return nil
}

// Apply folds one broadcast delta into the mirror. The agent id is the
// primary key; when the id is unknown the slug index is checked before the
// delta is treated as a brand new agent, and a slug match re-keys the
// existing record under the id the server now uses.
func (m *Mirror) Apply(update models.PresenceUpdatePayload) {
	record := models.PresenceRecord{
		AgentID:    update.AgentID,
		AgentSlug:  update.AgentSlug,
		Status:     update.PresenceStatus,
		LastSeenAt: update.LastSeenAt,
	}

	m.mu.Lock()
	key := update.AgentID
	if _, ok := m.byID[key]; !ok && update.AgentSlug != "" {
		if existingID, ok := m.idBySlug[update.AgentSlug]; ok {
			delete(m.byID, existingID)
			if key == "" {
				key = existingID
				record.AgentID = existingID
			}
		}
	}
	if key == "" {
		m.mu.Unlock()
		return
	}

	m.byID[key] = record
	if record.AgentSlug != "" {
		m.idBySlug[record.AgentSlug] = key
	}
	listeners := append(([]func(models.PresenceRecord))(nil), m.onChange...)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(record)
	}
}

// Get returns the mirrored record for an agent id, None if never seen
func (m *Mirror) Get(agentID string) mo.Option[models.PresenceRecord] {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.byID[agentID]
	if !ok {
		return mo.None[models.PresenceRecord]()
	}
	return mo.Some(record)
}

// GetBySlug returns the mirrored record for the secondary slug key
func (m *Mirror) GetBySlug(slug string) mo.Option[models.PresenceRecord] {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.idBySlug[slug]
	if !ok {
		return mo.None[models.PresenceRecord]()
	}
	record, ok := m.byID[id]
	if !ok {
		return mo.None[models.PresenceRecord]()
	}
	return mo.Some(record)
}

// Snapshot returns all mirrored records, ordered by agent ID
func (m *Mirror) Snapshot() []models.PresenceRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	records := make([]models.PresenceRecord, 0, len(m.byID))
	for _, record := range m.byID {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].AgentID < records[j].AgentID })
	return records
}
