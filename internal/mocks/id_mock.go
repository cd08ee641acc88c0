package mocks

import (
	"github.com/stretchr/testify/mock"
)

// MockProxyIDGenerator is a mock implementation of the services.ProxyIDGenerator interface
type MockProxyIDGenerator struct {
	mock.Mock
}

func (m *MockProxyIDGenerator) NewProxyID(kind, deviceID string) string {
	args := m.Called(kind, deviceID)
	return args.String(0)
}
