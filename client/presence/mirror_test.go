package presence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hdbackend/models"
)

func seedRecords() []models.PresenceRecord {
	return []models.PresenceRecord{
		{AgentID: "op_b", AgentSlug: "maria", Status: models.PresenceOnline, LastSeenAt: time.Now()},
		{AgentID: "op_a", AgentSlug: "jordan", Status: models.PresenceAway, LastSeenAt: time.Now()},
	}
}

func TestMirrorSeed(t *testing.T) {
	mirror := NewMirror()
	mirror.Seed(seedRecords())

	t.Run("snapshot is ordered by agent ID", func(t *testing.T) {
		records := mirror.Snapshot()
		require.Len(t, records, 2)
		assert.Equal(t, "op_a", records[0].AgentID)
		assert.Equal(t, "op_b", records[1].AgentID)
	})

	t.Run("lookup works by id and by slug", func(t *testing.T) {
		assert.Equal(t, models.PresenceOnline, mirror.Get("op_b").MustGet().Status)
		assert.Equal(t, models.PresenceAway, mirror.GetBySlug("jordan").MustGet().Status)
		assert.False(t, mirror.Get("op_unknown").IsPresent())
		assert.False(t, mirror.GetBySlug("nobody").IsPresent())
	})

	t.Run("reseed replaces stale entries", func(t *testing.T) {
		mirror.Seed([]models.PresenceRecord{
			{AgentID: "op_a", AgentSlug: "jordan", Status: models.PresenceBusy},
		})

		assert.Len(t, mirror.Snapshot(), 1)
		assert.False(t, mirror.Get("op_b").IsPresent())
		assert.Equal(t, models.PresenceBusy, mirror.Get("op_a").MustGet().Status)
	})
}

func TestMirrorApply(t *testing.T) {
	t.Run("delta for a known id updates the record", func(t *testing.T) {
		mirror := NewMirror()
		mirror.Seed(seedRecords())

		mirror.Apply(models.PresenceUpdatePayload{
			AgentID:        "op_b",
			AgentSlug:      "maria",
			PresenceStatus: models.PresenceInMeeting,
		})

		assert.Equal(t, models.PresenceInMeeting, mirror.Get("op_b").MustGet().Status)
		assert.Equal(t, models.PresenceInMeeting, mirror.GetBySlug("maria").MustGet().Status)
	})

	t.Run("unknown id falls back to the slug key", func(t *testing.T) {
		mirror := NewMirror()
		mirror.Seed(seedRecords())

		// Same agent, but the server now keys her under a different id
		mirror.Apply(models.PresenceUpdatePayload{
			AgentID:        "op_b2",
			AgentSlug:      "maria",
			PresenceStatus: models.PresenceDND,
		})

		assert.False(t, mirror.Get("op_b").IsPresent())
		assert.Equal(t, models.PresenceDND, mirror.Get("op_b2").MustGet().Status)
		assert.Equal(t, models.PresenceDND, mirror.GetBySlug("maria").MustGet().Status)
		assert.Len(t, mirror.Snapshot(), 2)
	})

	t.Run("delta without an id applies by slug alone", func(t *testing.T) {
		mirror := NewMirror()
		mirror.Seed(seedRecords())

		mirror.Apply(models.PresenceUpdatePayload{
			AgentSlug:      "jordan",
			PresenceStatus: models.PresenceOnLeave,
		})

		record := mirror.Get("op_a").MustGet()
		assert.Equal(t, models.PresenceOnLeave, record.Status)
		assert.Equal(t, "op_a", record.AgentID)
	})

	t.Run("delta for a brand new agent is inserted", func(t *testing.T) {
		mirror := NewMirror()
		mirror.Seed(seedRecords())

		mirror.Apply(models.PresenceUpdatePayload{
			AgentID:        "op_c",
			AgentSlug:      "sam",
			PresenceStatus: models.PresenceOnline,
		})

		assert.Len(t, mirror.Snapshot(), 3)
		assert.Equal(t, models.PresenceOnline, mirror.GetBySlug("sam").MustGet().Status)
	})

	t.Run("change callbacks fire with the applied record", func(t *testing.T) {
		mirror := NewMirror()
		mirror.Seed(seedRecords())

		var seen []models.PresenceRecord
		mirror.OnChange(func(record models.PresenceRecord) { seen = append(seen, record) })

		mirror.Apply(models.PresenceUpdatePayload{
			AgentID:        "op_a",
			AgentSlug:      "jordan",
			PresenceStatus: models.PresenceBusy,
		})

		require.Len(t, seen, 1)
		assert.Equal(t, "op_a", seen[0].AgentID)
		assert.Equal(t, models.PresenceBusy, seen[0].Status)
	})
}

func TestMirrorApplyEvent(t *testing.T) {
	t.Run("decodes the transport's generic payload", func(t *testing.T) {
		mirror := NewMirror()
		mirror.Seed(seedRecords())

		err := mirror.ApplyEvent(map[string]any{
			"agent_id":        "op_b",
			"agent_slug":      "maria",
			"presence_status": "away",
			"last_seen_at":    time.Now().Format(time.RFC3339),
		})

		require.NoError(t, err)
		assert.Equal(t, models.PresenceAway, mirror.Get("op_b").MustGet().Status)
	})

	t.Run("rejects a payload with neither key", func(t *testing.T) {
		mirror := NewMirror()

		err := mirror.ApplyEvent(map[string]any{"presence_status": "away"})
		require.Error(t, err)
		assert.Empty(t, mirror.Snapshot())
	})
}
