package shell

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/agentsh/internal/domain/job"
	"github.com/GriffinCanCode/agentsh/internal/domain/session"
	"github.com/GriffinCanCode/agentsh/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/agentsh/internal/runtime/output"
	"github.com/GriffinCanCode/agentsh/internal/shared/errs"
	"github.com/GriffinCanCode/agentsh/internal/shared/types"
)

// JobRegistry runs one-off and background commands.
type JobRegistry interface {
	Run(ctx context.Context, req job.Request) (*job.Job, error)
	Start(ctx context.Context, req job.Request) (*job.Job, error)
	Wait(ctx context.Context, jobID string, timeout time.Duration) (*job.Job, error)
	Get(jobID string) (*job.Job, error)
	Kill(ctx context.Context, jobID string) (bool, error)
	List() []job.Summary
	Buffer(jobID string) (*output.Buffer, error)
}

// SessionRegistry runs commands in persistent shells.
type SessionRegistry interface {
	Create(ctx context.Context, req session.CreateRequest) (*session.Session, error)
	Exec(ctx context.Context, id, command string, timeout time.Duration) (*session.Execution, error)
	Send(ctx context.Context, id, input string, idle time.Duration) (*session.Execution, error)
	Close(ctx context.Context, id string) error
	List() []session.Info
	Buffer(id string) (*output.Buffer, error)
}

const (
	// DefaultMaxOutputLines is the tail size when neither the caller nor
	// the configuration sets one.
	DefaultMaxOutputLines = 200
	// MaxPageLines bounds one get_output call.
	MaxPageLines = 500
)

// Provider exposes the registries as named tools. It holds no state of its
// own.
type Provider struct {
	jobs     JobRegistry
	sessions SessionRegistry
	maxLines int
	logger   *zap.Logger
	metrics  *monitoring.Metrics
}

// NewProvider creates the shell provider. maxLines is the default tail size.
func NewProvider(jobs JobRegistry, sessions SessionRegistry, maxLines int, logger *zap.Logger, metrics *monitoring.Metrics) *Provider {
	if maxLines <= 0 {
		maxLines = DefaultMaxOutputLines
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		jobs:     jobs,
		sessions: sessions,
		maxLines: maxLines,
		logger:   logger,
		metrics:  metrics,
	}
}

// Definition returns service metadata
func (p *Provider) Definition() types.Service {
	return types.Service{
		ID:          "shell",
		Name:        "Shell Execution Service",
		Description: "Run shell commands and persistent terminal sessions with windowed, bounded output",
		Category:    types.CategorySystem,
		Capabilities: []string{
			"exec",
			"background_jobs",
			"pty_sessions",
			"output_windowing",
			"safety_filter",
		},
		Tools: tools(),
	}
}

// Execute routes a tool call. Only an unknown tool is returned as an error;
// every other failure is a failed Result carrying an error code.
func (p *Provider) Execute(ctx context.Context, toolID string, params map[string]interface{}) (*types.Result, error) {
	h, ok := p.handlers()[toolID]
	if !ok {
		return nil, fmt.Errorf("unknown tool: %s", toolID)
	}
	if params == nil {
		params = map[string]interface{}{}
	}

	timer := monitoring.NewTimer(p.metrics, toolID)
	result := h(ctx, params)

	outcome := "ok"
	if !result.Success {
		outcome = result.Code
	}
	timer.Stop(outcome)
	return result, nil
}

type handler func(ctx context.Context, params map[string]interface{}) *types.Result

func (p *Provider) handlers() map[string]handler {
	return map[string]handler{
		"run_command":    p.runCommand,
		"start_command":  p.startCommand,
		"wait_command":   p.waitCommand,
		"get_status":     p.getStatus,
		"kill_command":   p.killCommand,
		"list_commands":  p.listCommands,
		"get_output":     p.getOutput,
		"create_session": p.createSession,
		"session_exec":   p.sessionExec,
		"session_send":   p.sessionSend,
		"list_sessions":  p.listSessions,
		"close_session":  p.closeSession,
	}
}

// fail logs and shapes a failed call.
func (p *Provider) fail(tool string, err error, data map[string]interface{}) *types.Result {
	r := types.Failure(err, data)
	if cat, ok := errs.Category(err); ok {
		if r.Data == nil {
			r.Data = map[string]interface{}{}
		}
		r.Data["category"] = cat
	}
	p.logger.Debug("Tool call failed",
		zap.String("tool", tool),
		zap.String("code", r.Code),
		zap.Error(err),
	)
	return r
}

// tailSize reads max_output_lines.
func (p *Provider) tailSize(params map[string]interface{}) (int, error) {
	n, err := getInt(params, "max_output_lines", p.maxLines)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, fmt.Errorf("max_output_lines must be at least 1: %w", errs.ErrInvalidArgument)
	}
	return n, nil
}
