// Package job owns one-off and background command runs.
//
// Blocking runs and detached jobs share one launch path and one output
// buffer type; they differ only in who waits. Detached jobs count against
// the running-job ceiling, blocking runs do not. Every run stays queryable
// until it is reaped.
package job

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/GriffinCanCode/agentsh/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/agentsh/internal/runtime/governor"
	"github.com/GriffinCanCode/agentsh/internal/runtime/launcher"
	"github.com/GriffinCanCode/agentsh/internal/runtime/output"
	"github.com/GriffinCanCode/agentsh/internal/runtime/safety"
	"github.com/GriffinCanCode/agentsh/internal/shared/errs"
	"github.com/GriffinCanCode/agentsh/internal/shared/id"
)

// Config tunes the registry.
type Config struct {
	Shell          string
	DefaultTimeout time.Duration
	KillGrace      time.Duration
	Retention      time.Duration
	MaxRetained    int
	MaxRunning     int
	Env            launcher.EnvPolicy
	// HardCap overrides the output hard cap; zero uses the governor ceiling.
	HardCap int
}

// DefaultConfig returns production settings.
func DefaultConfig() Config {
	return Config{
		Shell:          launcher.DefaultShell,
		DefaultTimeout: 300 * time.Second,
		KillGrace:      governor.DefaultKillGrace,
		Retention:      30 * time.Minute,
		MaxRetained:    1000,
		MaxRunning:     governor.MaxRunningJobs,
		Env:            launcher.EnvPolicy{Patterns: launcher.DefaultStripPatterns},
	}
}

// Request describes a command to run.
type Request struct {
	Command string
	Dir     string
	Env     map[string]string
	Timeout time.Duration
}

// Manager is the job registry.
type Manager struct {
	cfg       Config
	filter    *safety.Filter
	admission *governor.Admission
	logger    *zap.Logger
	metrics   *monitoring.Metrics

	jobs sync.Map // map[string]*Job

	// wg tracks supervisor goroutines.
	wg sync.WaitGroup
}

// NewManager creates a job registry. filter and metrics may be nil.
func NewManager(cfg Config, filter *safety.Filter, logger *zap.Logger, metrics *monitoring.Metrics) *Manager {
	def := DefaultConfig()
	if cfg.Shell == "" {
		cfg.Shell = def.Shell
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = def.DefaultTimeout
	}
	if cfg.KillGrace <= 0 {
		cfg.KillGrace = def.KillGrace
	}
	if cfg.Retention <= 0 {
		cfg.Retention = def.Retention
	}
	if cfg.MaxRetained <= 0 {
		cfg.MaxRetained = def.MaxRetained
	}
	if cfg.MaxRunning <= 0 || cfg.MaxRunning > governor.MaxRunningJobs {
		cfg.MaxRunning = governor.MaxRunningJobs
	}
	if filter == nil {
		filter = safety.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		cfg:       cfg,
		filter:    filter,
		admission: governor.NewAdmission(cfg.MaxRunning),
		logger:    logger,
		metrics:   metrics,
	}
}

// Start launches a detached job. It fails with ErrBlocked before any process
// exists and with ErrResourceExhausted when the running ceiling is reached.
func (m *Manager) Start(ctx context.Context, req Request) (*Job, error) {
	if err := m.check(req.Command); err != nil {
		return nil, err
	}
	if !m.admission.TryAcquire() {
		return nil, fmt.Errorf("%d background jobs already running: %w",
			m.admission.Limit(), errs.ErrResourceExhausted)
	}

	j, err := m.launch(string(id.NewJobID()), ModeDetached, req)
	if err != nil {
		m.admission.Release()
		return nil, err
	}
	m.metrics.SetJobsRunning(m.admission.Running())
	return j, nil
}

// Run launches a command and waits for it to finish, time out, or for ctx
// to be cancelled, in which case the job is killed. Blocking runs are not
// subject to the running ceiling.
func (m *Manager) Run(ctx context.Context, req Request) (*Job, error) {
	if err := m.check(req.Command); err != nil {
		return nil, err
	}
	j, err := m.launch(string(id.NewRunID()), ModeBlocking, req)
	if err != nil {
		return nil, err
	}

	select {
	case <-j.Done():
	case <-ctx.Done():
		m.logger.Info("Caller went away, killing run", zap.String("job_id", j.ID))
		m.stop(j, reasonKill)
		<-j.Done()
	}
	return j, nil
}

func (m *Manager) check(command string) error {
	if command == "" {
		return fmt.Errorf("command is empty: %w", errs.ErrInvalidArgument)
	}
	if d := m.filter.Classify(command); !d.Allowed {
		m.logger.Warn("Blocked command",
			zap.String("command", command),
			zap.String("category", string(d.Category)),
		)
		m.metrics.RecordBlocked(string(d.Category))
		return d.Err()
	}
	return nil
}

func (m *Manager) launch(jobID string, mode Mode, req Request) (*Job, error) {
	timeout := governor.ClampTimeout(req.Timeout, m.cfg.DefaultTimeout)
	buf := output.NewBuffer(output.Options{HardCap: m.cfg.HardCap})

	proc, err := launcher.Launch(launcher.Spec{
		Command: req.Command,
		Shell:   m.cfg.Shell,
		Dir:     req.Dir,
		Env:     launcher.BuildEnv(os.Environ(), m.cfg.Env, req.Env),
		Output:  buf,
	})
	if err != nil {
		m.logger.Warn("Launch failed", zap.String("command", req.Command), zap.Error(err))
		return nil, err
	}

	j := &Job{
		ID:        jobID,
		Command:   req.Command,
		Dir:       req.Dir,
		Mode:      mode,
		StartedAt: proc.StartedAt(),
		Timeout:   timeout,
		buf:       buf,
		proc:      proc,
		done:      make(chan struct{}),
		status:    StatusRunning,
	}
	j.deadline = governor.Watch(timeout, func() {
		m.logger.Info("Job deadline reached",
			zap.String("job_id", j.ID),
			zap.Duration("timeout", timeout),
		)
		m.stop(j, reasonTimeout)
	})
	m.jobs.Store(j.ID, j)

	m.logger.Info("Job started",
		zap.String("job_id", j.ID),
		zap.String("mode", string(mode)),
		zap.Int("pid", proc.PID()),
		zap.String("command", req.Command),
	)

	m.wg.Add(1)
	go m.supervise(j)
	return j, nil
}

// supervise waits for the process and performs the terminal transition.
func (m *Manager) supervise(j *Job) {
	defer m.wg.Done()

	code := j.proc.ExitCode()
	j.deadline.Stop()
	m.sweep(j)
	j.buf.Flush()
	if err := j.proc.WaitErr(); err != nil {
		m.logger.Warn("Output capture ended with error", zap.String("job_id", j.ID), zap.Error(err))
	}
	_ = j.proc.Close()

	// Free the slot before waiters observe the terminal state, so a caller
	// that saw this job finish can immediately start another.
	if j.Mode == ModeDetached {
		m.admission.Release()
		m.metrics.SetJobsRunning(m.admission.Running())
	}
	status := j.finish(code)

	m.metrics.RecordJobFinished(string(status), j.buf.Total())
	m.logger.Info("Job finished",
		zap.String("job_id", j.ID),
		zap.String("status", string(status)),
		zap.Int("exit_code", code),
		zap.Duration("duration", j.Duration()),
		zap.Int("total_lines", j.buf.Total()),
	)
}

// sweep kills whatever is left of the group once the leader has exited, so
// nothing a job started outlives it.
func (m *Manager) sweep(j *Job) {
	if !j.proc.Alive() {
		return
	}
	m.logger.Info("Killing leftover processes", zap.String("job_id", j.ID), zap.Int("pgid", j.PID()))
	if err := j.proc.Signal(unix.SIGKILL); err != nil {
		m.logger.Warn("Sweep failed", zap.String("job_id", j.ID), zap.Error(err))
	}
}

// stop records reason and terminates the process group. Only the first
// reason is honoured.
func (m *Manager) stop(j *Job, reason stopReason) {
	if !j.requestStop(reason) {
		return
	}
	forced, err := governor.TerminateGroup(j.proc, m.cfg.KillGrace)
	if err != nil {
		m.logger.Warn("Terminate failed", zap.String("job_id", j.ID), zap.Error(err))
	}
	if forced {
		m.logger.Info("Job needed SIGKILL", zap.String("job_id", j.ID))
	}
}

// Get returns a job by id.
func (m *Manager) Get(jobID string) (*Job, error) {
	v, ok := m.jobs.Load(jobID)
	if !ok {
		return nil, fmt.Errorf("job %q: %w", jobID, errs.ErrJobNotFound)
	}
	return v.(*Job), nil
}

// Wait blocks until the job is terminal or timeout elapses. On
// ErrTimedOutWaiting the job is returned too and keeps running.
func (m *Manager) Wait(ctx context.Context, jobID string, timeout time.Duration) (*Job, error) {
	j, err := m.Get(jobID)
	if err != nil {
		return nil, err
	}
	timeout = governor.ClampTimeout(timeout, m.cfg.DefaultTimeout)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-j.Done():
		return j, nil
	case <-timer.C:
		return j, fmt.Errorf("job %q still running after %s: %w", jobID, timeout, errs.ErrTimedOutWaiting)
	case <-ctx.Done():
		return j, fmt.Errorf("wait for job %q: %w", jobID, ctx.Err())
	}
}

// Kill terminates a running job: SIGTERM to its group, SIGKILL after the
// grace period. It returns once the job is terminal. killed is false when
// the job had already finished.
func (m *Manager) Kill(ctx context.Context, jobID string) (killed bool, err error) {
	j, err := m.Get(jobID)
	if err != nil {
		return false, err
	}
	if j.Status().Terminal() {
		return false, nil
	}

	m.logger.Info("Killing job", zap.String("job_id", jobID), zap.Int("pid", j.PID()))
	m.stop(j, reasonKill)

	select {
	case <-j.Done():
	case <-ctx.Done():
		return false, fmt.Errorf("kill job %q: %w", jobID, ctx.Err())
	}
	return j.Status() == StatusKilled, nil
}

// List returns every tracked job, oldest first.
func (m *Manager) List() []Summary {
	var jobs []*Job
	m.jobs.Range(func(_, v any) bool {
		jobs = append(jobs, v.(*Job))
		return true
	})
	sort.Slice(jobs, func(i, k int) bool { return jobs[i].StartedAt.Before(jobs[k].StartedAt) })

	out := make([]Summary, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.Summary())
	}
	return out
}

// Buffer returns a job's output buffer.
func (m *Manager) Buffer(jobID string) (*output.Buffer, error) {
	j, err := m.Get(jobID)
	if err != nil {
		return nil, err
	}
	return j.buf, nil
}

// Running returns the number of detached jobs holding a slot.
func (m *Manager) Running() int { return m.admission.Running() }
