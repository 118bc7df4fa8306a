package integrityChecker

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockAuditor is a mock implementation of Auditor
type MockAuditor struct {
	mock.Mock
}

// Audit mocks the Audit method
func (m *MockAuditor) Audit(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// RunLoop mocks the RunLoop method
func (m *MockAuditor) RunLoop(ctx context.Context, interval time.Duration) error {
	args := m.Called(ctx, interval)
	return args.Error(0)
}
