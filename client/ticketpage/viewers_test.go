package ticketpage

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hdbackend/client/conn"
	"hdbackend/models"
)

// fakeRealtime is a deterministic stand-in for the connection manager
type fakeRealtime struct {
	mutex          sync.Mutex
	state          conn.State
	handlers       map[string][]conn.EventHandlerFunc
	stateListeners []conn.StateListenerFunc
	announcements  map[string]any
	emitted        []string
	ackResponse    any
	ackErr         error
	ackCalls       int
}

func newFakeRealtime(state conn.State) *fakeRealtime {
	return &fakeRealtime{
		state:         state,
		handlers:      make(map[string][]conn.EventHandlerFunc),
		announcements: make(map[string]any),
	}
}

func (f *fakeRealtime) On(event string, handler conn.EventHandlerFunc) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.handlers[event] = append(f.handlers[event], handler)
}

func (f *fakeRealtime) OnStateChange(listener conn.StateListenerFunc) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.stateListeners = append(f.stateListeners, listener)
}

func (f *fakeRealtime) SetAnnouncement(key, event string, payload any) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.announcements[key] = payload
}

func (f *fakeRealtime) ClearAnnouncement(key string) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	delete(f.announcements, key)
}

func (f *fakeRealtime) Emit(event string, payload any) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.emitted = append(f.emitted, event)
	return nil
}

func (f *fakeRealtime) EmitWithAck(event string, payload any, timeout time.Duration) (any, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.ackCalls++
	return f.ackResponse, f.ackErr
}

func (f *fakeRealtime) State() conn.State {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.state
}

func (f *fakeRealtime) deliver(event string, payload any) {
	f.mutex.Lock()
	handlers := append([]conn.EventHandlerFunc(nil), f.handlers[event]...)
	f.mutex.Unlock()
	for _, handler := range handlers {
		handler(payload)
	}
}

func (f *fakeRealtime) transition(state conn.State) {
	f.mutex.Lock()
	f.state = state
	listeners := append([]conn.StateListenerFunc(nil), f.stateListeners...)
	f.mutex.Unlock()
	for _, listener := range listeners {
		listener(state)
	}
}

func selfViewer() models.ViewerEntry {
	return models.ViewerEntry{UserID: "op_self", DisplayName: "Maria", UserType: models.AgentRoleAgent}
}

func otherViewer(id string, joinedAt time.Time) models.ViewerEntry {
	return models.ViewerEntry{UserID: id, DisplayName: "Other " + id, UserType: models.AgentRoleAgent, JoinedAt: joinedAt}
}

func TestViewerPanelOpen(t *testing.T) {
	t.Run("local user shows up immediately", func(t *testing.T) {
		realtime := newFakeRealtime(conn.StateDisconnected)
		panel := NewViewerPanel(realtime, "tkt-1", selfViewer())

		panel.Open()

		viewers := panel.Viewers()
		require.Len(t, viewers, 1)
		assert.Equal(t, "op_self", viewers[0].UserID)
		assert.Contains(t, realtime.announcements, "view:tkt-1")
	})

	t.Run("acknowledgement reconciles the rest of the set", func(t *testing.T) {
		realtime := newFakeRealtime(conn.StateConnected)
		realtime.ackResponse = models.TicketViewAck{
			TicketID: "tkt-1",
			Viewers: []models.ViewerEntry{
				selfViewer(),
				otherViewer("op_b", time.Now().Add(-time.Minute)),
				otherViewer("op_c", time.Now()),
			},
		}
		panel := NewViewerPanel(realtime, "tkt-1", selfViewer())

		panel.Open()

		assert.Eventually(t, func() bool {
			return len(panel.Viewers()) == 3
		}, time.Second, 10*time.Millisecond)
		viewers := panel.Viewers()
		assert.Equal(t, "op_self", viewers[0].UserID)
		assert.Equal(t, "op_b", viewers[1].UserID)
		assert.Equal(t, "op_c", viewers[2].UserID)
	})

	t.Run("failed announce leaves the self-only view", func(t *testing.T) {
		realtime := newFakeRealtime(conn.StateConnected)
		realtime.ackErr = errors.New("timed out")
		reported := make(chan error, 1)
		panel := NewViewerPanel(realtime, "tkt-1", selfViewer())
		panel.OnError(func(err error) { reported <- err })

		panel.Open()

		select {
		case err := <-reported:
			assert.Error(t, err)
		case <-time.After(time.Second):
			t.Fatal("expected announce failure to be reported")
		}
		realtime.mutex.Lock()
		assert.Equal(t, maxAnnounceTries, realtime.ackCalls)
		realtime.mutex.Unlock()
		assert.Len(t, panel.Viewers(), 1)
	})
}

func TestViewerPanelDeltas(t *testing.T) {
	realtime := newFakeRealtime(conn.StateDisconnected)
	panel := NewViewerPanel(realtime, "tkt-1", selfViewer())
	panel.Open()

	t.Run("joined adds an entry", func(t *testing.T) {
		realtime.deliver(models.EventViewerJoined, models.ViewerJoinedPayload{
			TicketID: "tkt-1",
			Viewer:   otherViewer("op_b", time.Now()),
		})

		assert.Len(t, panel.Viewers(), 2)
	})

	t.Run("delta for another ticket is ignored", func(t *testing.T) {
		realtime.deliver(models.EventViewerJoined, models.ViewerJoinedPayload{
			TicketID: "tkt-9",
			Viewer:   otherViewer("op_z", time.Now()),
		})

		assert.Len(t, panel.Viewers(), 2)
	})

	t.Run("left removes the entry", func(t *testing.T) {
		realtime.deliver(models.EventViewerLeft, models.ViewerLeftPayload{TicketID: "tkt-1", UserID: "op_b"})

		assert.Len(t, panel.Viewers(), 1)
	})

	t.Run("self is never removed", func(t *testing.T) {
		realtime.deliver(models.EventViewerLeft, models.ViewerLeftPayload{TicketID: "tkt-1", UserID: "op_self"})

		viewers := panel.Viewers()
		require.Len(t, viewers, 1)
		assert.Equal(t, "op_self", viewers[0].UserID)
	})
}

func TestViewerPanelReconnect(t *testing.T) {
	realtime := newFakeRealtime(conn.StateConnected)
	realtime.ackResponse = models.TicketViewAck{TicketID: "tkt-1", Viewers: []models.ViewerEntry{selfViewer()}}
	panel := NewViewerPanel(realtime, "tkt-1", selfViewer())
	panel.Open()

	assert.Eventually(t, func() bool {
		realtime.mutex.Lock()
		defer realtime.mutex.Unlock()
		return realtime.ackCalls == 1
	}, time.Second, 10*time.Millisecond)

	// Drop and re-establish the connection: the panel re-announces
	realtime.transition(conn.StateDisconnected)
	realtime.transition(conn.StateConnected)

	assert.Eventually(t, func() bool {
		realtime.mutex.Lock()
		defer realtime.mutex.Unlock()
		return realtime.ackCalls == 2
	}, time.Second, 10*time.Millisecond)
}

func TestViewerPanelClose(t *testing.T) {
	realtime := newFakeRealtime(conn.StateConnected)
	realtime.ackResponse = models.TicketViewAck{TicketID: "tkt-1", Viewers: []models.ViewerEntry{selfViewer()}}
	panel := NewViewerPanel(realtime, "tkt-1", selfViewer())
	panel.Open()
	panel.Close()

	realtime.mutex.Lock()
	defer realtime.mutex.Unlock()
	assert.NotContains(t, realtime.announcements, "view:tkt-1")
	assert.Contains(t, realtime.emitted, models.EventTicketLeave)
}
