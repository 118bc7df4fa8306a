package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"ec2emulator/awsd"
	"ec2emulator/awsd/models"
	"ec2emulator/errors"
)

type mockSmokeRunner struct {
	mock.Mock
}

func (m *mockSmokeRunner) Smoke(ctx context.Context, opts awsd.SmokeOptions) (*models.SmokeReport, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SmokeReport), args.Error(1)
}

func (m *mockSmokeRunner) ListInstances(ctx context.Context) ([]models.Instance, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Instance), args.Error(1)
}

func TestRun(t *testing.T) {
	report := &models.SmokeReport{VpcID: "vpc-1", InstanceIDs: []string{"i-1"}}

	tests := []struct {
		name      string
		setup     func(m *mockSmokeRunner)
		wantError errors.ErrorType
	}{
		{
			name: "smoke passes",
			setup: func(m *mockSmokeRunner) {
				m.On("Smoke", mock.Anything, awsd.DefaultSmokeOptions()).Return(report, nil)
				m.On("ListInstances", mock.Anything).Return([]models.Instance{}, nil)
			},
		},
		{
			name: "smoke fails",
			setup: func(m *mockSmokeRunner) {
				m.On("Smoke", mock.Anything, awsd.DefaultSmokeOptions()).
					Return(report, errors.API(errors.ErrDependencyViolation, "blocked"))
			},
			wantError: errors.ErrAWSClient,
		},
		{
			name: "listing fails",
			setup: func(m *mockSmokeRunner) {
				m.On("Smoke", mock.Anything, awsd.DefaultSmokeOptions()).Return(report, nil)
				m.On("ListInstances", mock.Anything).Return(nil, errors.API(errors.ErrAWSClient, "connection refused"))
			},
			wantError: errors.ErrAWSClient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := new(mockSmokeRunner)
			tt.setup(m)

			err := run(context.Background(), m, awsd.DefaultSmokeOptions(), zap.NewNop())
			if tt.wantError != "" {
				assert.True(t, errors.Is(err, tt.wantError), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
			m.AssertExpectations(t)
		})
	}
}
