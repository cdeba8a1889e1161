package stats

import (
	"github.com/stretchr/testify/mock"
	"github.com/swiftbook-app/swiftbook/internal/types"
)

// MockStatsUpdater records chat activity through testify expectations.
type MockStatsUpdater struct {
	mock.Mock
}

// AllowAny accepts every stats call, for tests that do not count.
func (m *MockStatsUpdater) AllowAny() *MockStatsUpdater {
	for _, method := range []string{"ClientConnected", "ClientDisconnected"} {
		m.On(method).Maybe()
	}
	for _, method := range []string{"RoomOpened", "RoomClosed", "MessageRouted", "FrameDropped"} {
		m.On(method, mock.Anything).Maybe()
	}
	return m
}

func (m *MockStatsUpdater) ClientConnected() {
	m.Called()
}

func (m *MockStatsUpdater) ClientDisconnected() {
	m.Called()
}

func (m *MockStatsUpdater) RoomOpened(kind types.MessageType) {
	m.Called(kind)
}

func (m *MockStatsUpdater) RoomClosed(kind types.MessageType) {
	m.Called(kind)
}

func (m *MockStatsUpdater) MessageRouted(kind types.MessageType) {
	m.Called(kind)
}

func (m *MockStatsUpdater) FrameDropped(kind types.MessageType) {
	m.Called(kind)
}
