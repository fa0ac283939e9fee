package clients

import (
	"github.com/stretchr/testify/mock"
)

// MockRealtimeBroadcaster is a mock implementation of RealtimeBroadcaster
type MockRealtimeBroadcaster struct {
	mock.Mock
}

func (m *MockRealtimeBroadcaster) BroadcastAll(event string, payload any) {
	m.Called(event, payload)
}

func (m *MockRealtimeBroadcaster) BroadcastRoom(room, event string, payload any) {
	m.Called(room, event, payload)
}

func (m *MockRealtimeBroadcaster) BroadcastRoomExcept(room, event string, payload any, exceptClientID string) {
	m.Called(room, event, payload, exceptClientID)
}

func (m *MockRealtimeBroadcaster) JoinRoom(clientID, room string) {
	m.Called(clientID, room)
}

func (m *MockRealtimeBroadcaster) LeaveRoom(clientID, room string) {
	m.Called(clientID, room)
}

func (m *MockRealtimeBroadcaster) GetClientIDs() []string {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]string)
}
