package api

import (
	"github.com/stretchr/testify/mock"

	"ec2emulator/params"
)

// MockDispatcher is a mock implementation of Dispatcher
type MockDispatcher struct {
	mock.Mock
}

// Has mocks the Has method
func (m *MockDispatcher) Has(action string) bool {
	args := m.Called(action)
	return args.Bool(0)
}

// Dispatch mocks the Dispatch method
func (m *MockDispatcher) Dispatch(action string, p params.Params) (Response, error) {
	args := m.Called(action, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(Response), args.Error(1)
}
