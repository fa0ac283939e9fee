package socketio

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/gorilla/mux"
	"github.com/zishang520/socket.io/v2/socket"

	"hdbackend/clients"
	"hdbackend/core"
	"hdbackend/utils"
)

type EventHandlerFunc func(client *clients.Client, payload any) (ack any, err error)
type ConnectionHookFunc func(client *clients.Client) error
type TokenValidatorFunc func(token string) (agentID string, err error)

type SocketIOGateway struct {
	server             *socket.Server
	clients            []*clients.Client
	clientsBySocketID  map[string]*clients.Client
	rooms              map[string]map[string]*clients.Client
	mutex              sync.RWMutex
	eventHandlers      map[string]EventHandlerFunc
	connectionHooks    []ConnectionHookFunc
	disconnectionHooks []ConnectionHookFunc
	tokenValidator     TokenValidatorFunc
}

func NewSocketIOGateway(tokenValidator TokenValidatorFunc) *SocketIOGateway {
	server := socket.NewServer(nil, nil)
	gw := &SocketIOGateway{
		server:             server,
		clients:            make([]*clients.Client, 0),
		clientsBySocketID:  make(map[string]*clients.Client),
		rooms:              make(map[string]map[string]*clients.Client),
		eventHandlers:      make(map[string]EventHandlerFunc),
		connectionHooks:    make([]ConnectionHookFunc, 0),
		disconnectionHooks: make([]ConnectionHookFunc, 0),
		tokenValidator:     tokenValidator,
	}

	// Set up Socket.IO connection handler
	err := server.On("connection", func(sockets ...any) {
		sock := sockets[0].(*socket.Socket)
		gw.handleSocketIOConnection(sock)
	})
	utils.AssertInvariant(err == nil, fmt.Sprintf("Failed to register connection handler: %v", err))

	return gw
}

func (gw *SocketIOGateway) RegisterWithRouter(router *mux.Router) {
	log.Printf("🚀 Registering Socket.IO server on /socket.io/ endpoint")
	router.PathPrefix("/socket.io/").Handler(gw.server.ServeHandler(nil))
	log.Printf("✅ Socket.IO server registered on /socket.io/")
}

// getSocketIOHeader performs a case-insensitive lookup for a header in the headers map
func getSocketIOHeader(headers map[string][]string, headerName string) (string, bool) {
	for key, value := range headers {
		if strings.EqualFold(key, headerName) {
			if len(value) > 0 && value[0] != "" {
				return value[0], true
			}
		}
	}
	return "", false
}

func (gw *SocketIOGateway) handleSocketIOConnection(sock *socket.Socket) {
	log.Printf("🔗 New Socket.IO connection attempt, socket ID: %s", sock.Id())

	headers := sock.Handshake().Headers
	token, exists := getSocketIOHeader(headers, "X-HELPDESK-TOKEN")
	if !exists {
		log.Printf("❌ Rejecting Socket.IO connection: missing X-HELPDESK-TOKEN header")
		sock.Disconnect(true)
		return
	}

	sessionID, exists := getSocketIOHeader(headers, "X-HELPDESK-SESSION-ID")
	if !exists {
		log.Printf("❌ No X-HELPDESK-SESSION-ID provided, rejecting connection")
		sock.Disconnect(true)
		return
	}

	// Validate operator token
	agentID, err := gw.tokenValidator(token)
	if err != nil {
		log.Printf("❌ Rejecting Socket.IO connection: invalid token: %v", err)
		sock.Disconnect(true)
		return
	}

	client := &clients.Client{
		ID:        core.NewID("sess"),
		Socket:    sock,
		AgentID:   agentID,
		SessionID: sessionID,
	}
	gw.addClient(client)
	log.Printf("✅ Socket.IO client connected with ID: %s, socket ID: %s", client.ID, sock.Id())
	gw.invokeConnectionHooks(client)

	// Set up handlers for every registered named event
	gw.mutex.RLock()
	events := make([]string, 0, len(gw.eventHandlers))
	for event := range gw.eventHandlers {
		events = append(events, event)
	}
	gw.mutex.RUnlock()

	for _, event := range events {
		event := event
		err := sock.On(event, func(datas ...any) {
			gw.dispatchEvent(client, event, datas)
		})
		utils.AssertInvariant(
			err == nil,
			fmt.Sprintf("Failed to set up %s handler for client %s: %v", event, client.ID, err),
		)
	}

	// Handle disconnection
	err = sock.On("disconnect", func(data ...any) {
		log.Printf("🔌 Socket.IO connection closed for client %s (socket ID: %s)", client.ID, sock.Id())
		gw.invokeDisconnectionHooks(client)
		gw.removeClient(client.ID)
	})
	utils.AssertInvariant(
		err == nil,
		fmt.Sprintf("Failed to set up disconnection handler for client %s: %v", client.ID, err),
	)

	log.Printf("👂 Event listener setup complete for client %s", client.ID)
}

// dispatchEvent invokes the registered handler for a named event, sending the
// returned payload back through the transport acknowledgement when the sender
// asked for one.
func (gw *SocketIOGateway) dispatchEvent(client *clients.Client, event string, datas []any) {
	gw.mutex.RLock()
	handler, ok := gw.eventHandlers[event]
	gw.mutex.RUnlock()
	if !ok {
		log.Printf("⚠️ No handler registered for event %s from client %s", event, client.ID)
		return
	}

	var ackFn socket.Ack
	if len(datas) > 0 {
		if fn, isAck := datas[len(datas)-1].(socket.Ack); isAck {
			ackFn = fn
			datas = datas[:len(datas)-1]
		}
	}

	var payload any
	if len(datas) > 0 {
		payload = datas[0]
	}

	log.Printf("📥 Received %s from client %s", event, client.ID)
	ackPayload, err := handler(client, payload)
	if err != nil {
		log.Printf("❌ Handler for %s failed for client %s: %v", event, client.ID, err)
		if ackFn != nil {
			ackFn([]any{map[string]any{"error": err.Error()}}, nil)
		}
		return
	}
	if ackFn != nil {
		ackFn([]any{ackPayload}, nil)
	}
}

func (gw *SocketIOGateway) addClient(client *clients.Client) {
	gw.mutex.Lock()
	defer gw.mutex.Unlock()
	gw.clients = append(gw.clients, client)
	gw.clientsBySocketID[string(client.Socket.Id())] = client
	log.Printf("📊 Client %s added to active connections. Total clients: %d", client.ID, len(gw.clients))
}

func (gw *SocketIOGateway) removeClient(clientID string) {
	gw.mutex.Lock()
	defer gw.mutex.Unlock()
	for room, members := range gw.rooms {
		delete(members, clientID)
		if len(members) == 0 {
			delete(gw.rooms, room)
		}
	}
	for i, client := range gw.clients {
		if client.ID == clientID {
			// Remove from both the slice and the map
			delete(gw.clientsBySocketID, string(client.Socket.Id()))
			gw.clients = append(gw.clients[:i], gw.clients[i+1:]...)
			log.Printf("🔌 Socket.IO client %s disconnected. Remaining clients: %d", clientID, len(gw.clients))
			return
		}
	}
	log.Printf("⚠️ Attempted to remove client %s but not found in active connections", clientID)
}

func (gw *SocketIOGateway) GetClientIDs() []string {
	gw.mutex.RLock()
	defer gw.mutex.RUnlock()
	clientIDs := make([]string, len(gw.clients))
	for i, client := range gw.clients {
		clientIDs[i] = client.ID
	}
	return clientIDs
}

func (gw *SocketIOGateway) getClientByID(clientID string) *clients.Client {
	gw.mutex.RLock()
	defer gw.mutex.RUnlock()
	for _, client := range gw.clients {
		if client.ID == clientID {
			return client
		}
	}
	log.Printf("❌ Client %s not found in active connections", clientID)
	return nil
}

// JoinRoom registers a client into a room. Room membership is tracked by the
// gateway itself so broadcast scoping does not depend on transport internals.
func (gw *SocketIOGateway) JoinRoom(clientID, room string) {
	client := gw.getClientByID(clientID)
	if client == nil {
		return
	}
	gw.mutex.Lock()
	defer gw.mutex.Unlock()
	members, ok := gw.rooms[room]
	if !ok {
		members = make(map[string]*clients.Client)
		gw.rooms[room] = members
	}
	members[clientID] = client
	log.Printf("🚪 Client %s joined room %s (%d members)", clientID, room, len(members))
}

func (gw *SocketIOGateway) LeaveRoom(clientID, room string) {
	gw.mutex.Lock()
	defer gw.mutex.Unlock()
	members, ok := gw.rooms[room]
	if !ok {
		return
	}
	delete(members, clientID)
	if len(members) == 0 {
		delete(gw.rooms, room)
	}
	log.Printf("🚪 Client %s left room %s", clientID, room)
}

// BroadcastAll emits a named event to every connected client
func (gw *SocketIOGateway) BroadcastAll(event string, payload any) {
	gw.mutex.RLock()
	defer gw.mutex.RUnlock()
	for _, client := range gw.clients {
		if err := client.Socket.Emit(event, payload); err != nil {
			log.Printf("❌ Failed to emit %s to client %s: %v", event, client.ID, err)
		}
	}
	log.Printf("📤 Broadcast %s to %d clients", event, len(gw.clients))
}

// BroadcastRoom emits a named event to every client registered in a room
func (gw *SocketIOGateway) BroadcastRoom(room, event string, payload any) {
	gw.BroadcastRoomExcept(room, event, payload, "")
}

// BroadcastRoomExcept emits to every room member except the named client.
// Emits happen under the read lock so delivery order per room matches the
// server-side application order.
func (gw *SocketIOGateway) BroadcastRoomExcept(room, event string, payload any, exceptClientID string) {
	gw.mutex.RLock()
	defer gw.mutex.RUnlock()
	members := gw.rooms[room]
	sent := 0
	for clientID, client := range members {
		if clientID == exceptClientID {
			continue
		}
		if err := client.Socket.Emit(event, payload); err != nil {
			log.Printf("❌ Failed to emit %s to client %s in room %s: %v", event, clientID, room, err)
			continue
		}
		sent++
	}
	log.Printf("📤 Broadcast %s to %d clients in room %s", event, sent, room)
}

// RegisterEventHandler registers the handler for a named inbound event.
// Must be called before the first connection is accepted.
func (gw *SocketIOGateway) RegisterEventHandler(event string, handler EventHandlerFunc) {
	gw.mutex.Lock()
	defer gw.mutex.Unlock()
	gw.eventHandlers[event] = handler
	log.Printf("📝 Event handler registered for %s. Total handlers: %d", event, len(gw.eventHandlers))
}

func (gw *SocketIOGateway) RegisterConnectionHook(hook ConnectionHookFunc) {
	gw.mutex.Lock()
	defer gw.mutex.Unlock()
	gw.connectionHooks = append(gw.connectionHooks, hook)
	log.Printf("🔗 Connection hook registered. Total connection hooks: %d", len(gw.connectionHooks))
}

func (gw *SocketIOGateway) RegisterDisconnectionHook(hook ConnectionHookFunc) {
	gw.mutex.Lock()
	defer gw.mutex.Unlock()
	gw.disconnectionHooks = append(gw.disconnectionHooks, hook)
	log.Printf("🔌 Disconnection hook registered. Total disconnection hooks: %d", len(gw.disconnectionHooks))
}

func (gw *SocketIOGateway) invokeConnectionHooks(client *clients.Client) {
	gw.mutex.RLock()
	hooks := make([]ConnectionHookFunc, len(gw.connectionHooks))
	copy(hooks, gw.connectionHooks)
	gw.mutex.RUnlock()
	for i, hook := range hooks {
		if err := hook(client); err != nil {
			log.Printf("❌ Connection hook %d failed for client %s: %v", i+1, client.ID, err)
		}
	}
}

func (gw *SocketIOGateway) invokeDisconnectionHooks(client *clients.Client) {
	gw.mutex.RLock()
	hooks := make([]ConnectionHookFunc, len(gw.disconnectionHooks))
	copy(hooks, gw.disconnectionHooks)
	gw.mutex.RUnlock()
	for i, hook := range hooks {
		if err := hook(client); err != nil {
			log.Printf("❌ Disconnection hook %d failed for client %s: %v", i+1, client.ID, err)
		}
	}
}
