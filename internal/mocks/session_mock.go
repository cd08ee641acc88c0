package mocks

import (
	"github.com/stretchr/testify/mock"

	"github.com/benmeehan/iotctl/pkg/session"
)

// MockStore is a mock implementation of the session.Store interface
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Load() (*session.Record, error) {
	args := m.Called()
	record, _ := args.Get(0).(*session.Record)
	return record, args.Error(1)
}

func (m *MockStore) Save(record *session.Record) error {
	args := m.Called(record)
	return args.Error(0)
}

func (m *MockStore) Clear() error {
	args := m.Called()
	return args.Error(0)
}
