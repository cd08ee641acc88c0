package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/benmeehan/iotctl/pkg/api"
)

// MockAPIClient is a mock implementation of the services.APIClient interface
type MockAPIClient struct {
	mock.Mock
}

func (m *MockAPIClient) Do(ctx context.Context, method, path string, body, out any) error {
	args := m.Called(ctx, method, path, body, out)
	return args.Error(0)
}

func (m *MockAPIClient) DialStream(ctx context.Context, path string) (api.Stream, error) {
	args := m.Called(ctx, path)
	stream, _ := args.Get(0).(api.Stream)
	return stream, args.Error(1)
}
