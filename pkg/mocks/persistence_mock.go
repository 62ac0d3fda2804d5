package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/flowvector/flowvector/pkg/models"
)

// MockStateStore is a mock implementation of persistence.StateStore.
type MockStateStore struct {
	mock.Mock
}

func (m *MockStateStore) CircuitState(ctx context.Context, name string) (*models.CircuitState, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.CircuitState), args.Error(1)
}

func (m *MockStateStore) SaveCircuitState(ctx context.Context, name string, state *models.CircuitState) error {
	args := m.Called(ctx, name, state)

	return args.Error(0)
}

func (m *MockStateStore) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockStateStore) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
