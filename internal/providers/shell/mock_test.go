package shell

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/GriffinCanCode/agentsh/internal/domain/job"
	"github.com/GriffinCanCode/agentsh/internal/domain/session"
	"github.com/GriffinCanCode/agentsh/internal/runtime/output"
)

type mockJobs struct {
	mock.Mock
}

func (m *mockJobs) Run(ctx context.Context, req job.Request) (*job.Job, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*job.Job), args.Error(1)
}

func (m *mockJobs) Start(ctx context.Context, req job.Request) (*job.Job, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*job.Job), args.Error(1)
}

func (m *mockJobs) Wait(ctx context.Context, jobID string, timeout time.Duration) (*job.Job, error) {
	args := m.Called(ctx, jobID, timeout)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*job.Job), args.Error(1)
}

func (m *mockJobs) Get(jobID string) (*job.Job, error) {
	args := m.Called(jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*job.Job), args.Error(1)
}

func (m *mockJobs) Kill(ctx context.Context, jobID string) (bool, error) {
	args := m.Called(ctx, jobID)
	return args.Bool(0), args.Error(1)
}

func (m *mockJobs) List() []job.Summary {
	args := m.Called()
	return args.Get(0).([]job.Summary)
}

func (m *mockJobs) Buffer(jobID string) (*output.Buffer, error) {
	args := m.Called(jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*output.Buffer), args.Error(1)
}

type mockSessions struct {
	mock.Mock
}

func (m *mockSessions) Create(ctx context.Context, req session.CreateRequest) (*session.Session, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*session.Session), args.Error(1)
}

func (m *mockSessions) Exec(ctx context.Context, id, command string, timeout time.Duration) (*session.Execution, error) {
	args := m.Called(ctx, id, command, timeout)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*session.Execution), args.Error(1)
}

func (m *mockSessions) Send(ctx context.Context, id, input string, idle time.Duration) (*session.Execution, error) {
	args := m.Called(ctx, id, input, idle)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*session.Execution), args.Error(1)
}

func (m *mockSessions) Close(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockSessions) List() []session.Info {
	args := m.Called()
	return args.Get(0).([]session.Info)
}

func (m *mockSessions) Buffer(id string) (*output.Buffer, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*output.Buffer), args.Error(1)
}
