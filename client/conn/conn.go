package conn

import (
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/google/uuid"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// State is the connection lifecycle as observed by the rest of the client
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	// StateFailed is terminal: the retry budget is spent and the client
	// stays offline until the process restarts.
	StateFailed State = "failed"
)

type EventHandlerFunc func(payload any)
type StateListenerFunc func(state State)

type announcement struct {
	event   string
	payload any
}

// Manager owns the persistent connection to the collaboration backend.
// Inbound events are dispatched sequentially so handlers observe deltas in
// arrival order. Sticky announcements are re-emitted after every reconnect,
// because the server forgets all session state when the connection drops.
type Manager struct {
	serverURL string
	apiToken  string
	sessionID string

	sioManager *socket.Manager
	sock       *socket.Socket
	dispatcher *workerpool.WorkerPool

	mutex          sync.Mutex
	state          State
	handlers       map[string][]EventHandlerFunc
	stateListeners []StateListenerFunc
	announcements  map[string]announcement
}

func NewManager(serverURL, apiToken string) *Manager {
	sessionID := uuid.New().String()
	log.Printf("🆔 Using realtime session ID: %s", sessionID)

	return &Manager{
		serverURL:     serverURL,
		apiToken:      apiToken,
		sessionID:     sessionID,
		dispatcher:    workerpool.New(1),
		state:         StateDisconnected,
		handlers:      make(map[string][]EventHandlerFunc),
		announcements: make(map[string]announcement),
	}
}

func (m *Manager) SessionID() string {
	return m.sessionID
}

func (m *Manager) State() State {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.state
}

// On registers a handler for an inbound named event. Must be called before
// Connect.
func (m *Manager) On(event string, handler EventHandlerFunc) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.handlers[event] = append(m.handlers[event], handler)
}

// OnStateChange registers a listener invoked on every state transition
func (m *Manager) OnStateChange(listener StateListenerFunc) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.stateListeners = append(m.stateListeners, listener)
}

// SetAnnouncement records a sticky emit, keyed so later announcements for the
// same key replace earlier ones. It fires immediately when connected and
// again after every reconnect.
func (m *Manager) SetAnnouncement(key, event string, payload any) {
	m.mutex.Lock()
	m.announcements[key] = announcement{event: event, payload: payload}
	connected := m.state == StateConnected
	sock := m.sock
	m.mutex.Unlock()

	if connected && sock != nil {
		if err := sock.Emit(event, payload); err != nil {
			log.Printf("❌ Failed to emit announcement %s: %v", key, err)
		}
	}
}

// ClearAnnouncement drops a sticky emit so it is not replayed on reconnect
func (m *Manager) ClearAnnouncement(key string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.announcements, key)
}

// Connect establishes the persistent connection and starts the reconnect
// loop. The transport retries on its own; after the retry budget is spent
// the manager lands in the terminal failed state.
func (m *Manager) Connect() error {
	log.Printf("📋 Starting to connect to realtime server at %s", m.serverURL)
	m.setState(StateConnecting)

	opts := socket.DefaultOptions()
	opts.SetTransports(types.NewSet(transports.Polling, transports.WebSocket))
	opts.SetExtraHeaders(http.Header{
		"X-HELPDESK-TOKEN":      []string{m.apiToken},
		"X-HELPDESK-SESSION-ID": []string{m.sessionID},
	})
	opts.SetReconnection(true)
	opts.SetReconnectionAttempts(10)
	// Delay values in milliseconds, bounded to keep retries polite
	opts.SetReconnectionDelay(2000)
	opts.SetReconnectionDelayMax(5000)

	sioManager := socket.NewManager(m.serverURL, opts)

	sioManager.On("reconnect_attempt", func(...any) {
		log.Printf("🔄 Reconnect attempt in progress")
		m.setState(StateConnecting)
	})
	sioManager.On("reconnect", func(...any) {
		log.Printf("✅ Reconnected to realtime server")
	})
	sioManager.On("reconnect_failed", func(...any) {
		log.Printf("💀 All reconnect attempts failed, giving up")
		m.setState(StateFailed)
	})
	sioManager.On("error", func(errs ...any) {
		log.Printf("❌ Realtime transport error: %v", errs)
	})

	sock := sioManager.Socket("/", opts)

	sock.On("connect", func(...any) {
		log.Printf("✅ Connected to realtime server, socket ID: %v", sock.Id())
		m.setState(StateConnected)
		m.replayAnnouncements(sock)
	})
	sock.On("connect_error", func(args ...any) {
		log.Printf("❌ Realtime connect error: %v", args)
	})
	sock.On("disconnect", func(args ...any) {
		log.Printf("🔌 Disconnected from realtime server: %v", args)
		m.mutex.Lock()
		failed := m.state == StateFailed
		m.mutex.Unlock()
		if !failed {
			m.setState(StateDisconnected)
		}
	})

	m.mutex.Lock()
	events := make([]string, 0, len(m.handlers))
	for event := range m.handlers {
		events = append(events, event)
	}
	m.sioManager = sioManager
	m.sock = sock
	m.mutex.Unlock()

	for _, event := range events {
		event := event
		sock.On(types.EventName(event), func(datas ...any) {
			var payload any
			if len(datas) > 0 {
				payload = datas[0]
			}
			m.dispatchEvent(event, payload)
		})
	}

	log.Printf("📋 Completed successfully - realtime connection starting")
	return nil
}

// Emit sends a named event without waiting for an acknowledgement
func (m *Manager) Emit(event string, payload any) error {
	m.mutex.Lock()
	sock := m.sock
	connected := m.state == StateConnected
	m.mutex.Unlock()

	if sock == nil || !connected {
		return fmt.Errorf("not connected")
	}
	if err := sock.Emit(event, payload); err != nil {
		return fmt.Errorf("failed to emit %s: %w", event, err)
	}
	return nil
}

// EmitWithAck sends a named event and waits for the server acknowledgement,
// up to the given timeout.
func (m *Manager) EmitWithAck(event string, payload any, timeout time.Duration) (any, error) {
	m.mutex.Lock()
	sock := m.sock
	connected := m.state == StateConnected
	m.mutex.Unlock()

	if sock == nil || !connected {
		return nil, fmt.Errorf("not connected")
	}

	ackCh := make(chan any, 1)
	err := sock.Emit(event, payload, func(datas []any, _ error) {
		var ack any
		if len(datas) > 0 {
			ack = datas[0]
		}
		select {
		case ackCh <- ack:
		default:
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to emit %s: %w", event, err)
	}

	select {
	case ack := <-ackCh:
		if errMap, ok := ack.(map[string]any); ok {
			if errMsg, ok := errMap["error"].(string); ok && errMsg != "" {
				return nil, fmt.Errorf("server rejected %s: %s", event, errMsg)
			}
		}
		return ack, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("timed out waiting for %s acknowledgement", event)
	}
}

// Disconnect tears down the connection and drains in-flight handlers
func (m *Manager) Disconnect() {
	log.Printf("📋 Starting to disconnect from realtime server")

	m.mutex.Lock()
	sock := m.sock
	m.sock = nil
	m.sioManager = nil
	m.mutex.Unlock()

	if sock != nil {
		sock.Disconnect()
	}
	m.dispatcher.StopWait()
	m.setState(StateDisconnected)

	log.Printf("📋 Completed successfully - disconnected from realtime server")
}

// dispatchEvent routes one inbound event through the sequential worker pool
func (m *Manager) dispatchEvent(event string, payload any) {
	m.mutex.Lock()
	handlers := make([]EventHandlerFunc, len(m.handlers[event]))
	copy(handlers, m.handlers[event])
	m.mutex.Unlock()

	m.dispatcher.Submit(func() {
		for _, handler := range handlers {
			handler(payload)
		}
	})
}

func (m *Manager) replayAnnouncements(sock *socket.Socket) {
	m.mutex.Lock()
	pending := make([]announcement, 0, len(m.announcements))
	for _, a := range m.announcements {
		pending = append(pending, a)
	}
	m.mutex.Unlock()

	for _, a := range pending {
		if err := sock.Emit(a.event, a.payload); err != nil {
			log.Printf("❌ Failed to replay announcement %s: %v", a.event, err)
		}
	}
	if len(pending) > 0 {
		log.Printf("📤 Replayed %d sticky announcements after connect", len(pending))
	}
}

func (m *Manager) setState(state State) {
	m.mutex.Lock()
	if m.state == state {
		m.mutex.Unlock()
		return
	}
	m.state = state
	listeners := make([]StateListenerFunc, len(m.stateListeners))
	copy(listeners, m.stateListeners)
	m.mutex.Unlock()

	log.Printf("🔄 Connection state changed to %s", state)
	for _, listener := range listeners {
		listener(state)
	}
}
