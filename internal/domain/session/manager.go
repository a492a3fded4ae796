package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/GriffinCanCode/agentsh/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/agentsh/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/agentsh/internal/runtime/governor"
	"github.com/GriffinCanCode/agentsh/internal/runtime/launcher"
	"github.com/GriffinCanCode/agentsh/internal/runtime/output"
	"github.com/GriffinCanCode/agentsh/internal/runtime/safety"
	"github.com/GriffinCanCode/agentsh/internal/shared/errs"
	"github.com/GriffinCanCode/agentsh/internal/shared/types"
)

// Config tunes the session registry.
type Config struct {
	Shell          string
	Cols, Rows     uint16
	MaxSessions    int
	DefaultTimeout time.Duration
	KillGrace      time.Duration
	// IdleTimeout closes sessions unused for this long; zero disables it.
	IdleTimeout time.Duration
	Retention   time.Duration
	Env         launcher.EnvPolicy

	// Timings of the shell protocol.
	DrainTimeout    time.Duration
	InterruptGap    time.Duration
	InterruptSettle time.Duration
	RecoveryWindow  time.Duration
	SendIdle        time.Duration
}

// DefaultConfig returns production settings.
func DefaultConfig() Config {
	return Config{
		Shell:           "/bin/bash",
		Cols:            launcher.DefaultCols,
		Rows:            launcher.DefaultRows,
		MaxSessions:     10,
		DefaultTimeout:  300 * time.Second,
		KillGrace:       governor.DefaultKillGrace,
		Retention:       30 * time.Minute,
		Env:             launcher.EnvPolicy{Patterns: launcher.DefaultStripPatterns},
		DrainTimeout:    5 * time.Second,
		InterruptGap:    200 * time.Millisecond,
		InterruptSettle: 500 * time.Millisecond,
		RecoveryWindow:  3 * time.Second,
		SendIdle:        2 * time.Second,
	}
}

var errShuttingDown = fmt.Errorf("session registry is shutting down: %w", errs.ErrResourceExhausted)

// minSendCap is the shortest hard cap on a send.
const minSendCap = 30 * time.Second

// CreateRequest describes a new session.
type CreateRequest struct {
	ID  string
	Dir string
	Env map[string]string
}

// Manager is the session registry.
type Manager struct {
	cfg       Config
	filter    *safety.Filter
	admission *governor.Admission
	breaker   *resilience.Breaker
	logger    *zap.Logger
	metrics   *monitoring.Metrics

	sessions sync.Map // map[string]*Session
	// closed is set by Shutdown; no session may start afterwards.
	closed atomic.Bool
}

// NewManager creates a session registry. filter and metrics may be nil.
func NewManager(cfg Config, filter *safety.Filter, logger *zap.Logger, metrics *monitoring.Metrics) *Manager {
	def := DefaultConfig()
	if cfg.Shell == "" {
		cfg.Shell = def.Shell
	}
	if cfg.Cols == 0 {
		cfg.Cols = def.Cols
	}
	if cfg.Rows == 0 {
		cfg.Rows = def.Rows
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = def.MaxSessions
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
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = def.DrainTimeout
	}
	if cfg.InterruptGap <= 0 {
		cfg.InterruptGap = def.InterruptGap
	}
	if cfg.InterruptSettle <= 0 {
		cfg.InterruptSettle = def.InterruptSettle
	}
	if cfg.RecoveryWindow <= 0 {
		cfg.RecoveryWindow = def.RecoveryWindow
	}
	if cfg.SendIdle <= 0 {
		cfg.SendIdle = def.SendIdle
	}
	if filter == nil {
		filter = safety.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Manager{
		cfg:       cfg,
		filter:    filter,
		admission: governor.NewAdmission(cfg.MaxSessions),
		logger:    logger,
		metrics:   metrics,
	}
	m.breaker = resilience.New("pty", resilience.Settings{
		Threshold: 3,
		Cooldown:  30 * time.Second,
		IsFailure: func(err error) bool { return errors.Is(err, errs.ErrLaunchFailed) },
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("Launch breaker changed state",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return m
}

// Create starts a shell for a new session id. An id held by a closed
// session may be reused.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*Session, error) {
	if req.ID == "" {
		return nil, fmt.Errorf("session id is empty: %w", errs.ErrInvalidArgument)
	}
	if m.closed.Load() {
		return nil, errShuttingDown
	}

	s := newSession(req.ID, req.Dir, req.Env)
	defer close(s.ready)

	if err := m.reserve(s); err != nil {
		return nil, err
	}
	if !m.admission.TryAcquire() {
		m.sessions.CompareAndDelete(s.ID, s)
		return nil, fmt.Errorf("%d sessions already open: %w", m.admission.Limit(), errs.ErrResourceExhausted)
	}

	proc, err := resilience.Execute(m.breaker, func() (*launcher.Process, error) {
		return launcher.Launch(launcher.Spec{
			Shell: m.cfg.Shell,
			Args:  []string{"--norc", "--noprofile", "--noediting", "-i"},
			Dir:   req.Dir,
			Env:   launcher.BuildEnv(os.Environ(), m.cfg.Env, m.overrides(req.Env)),
			PTY:   true,
			Cols:  m.cfg.Cols,
			Rows:  m.cfg.Rows,
		})
	})
	if err != nil {
		m.admission.Release()
		m.sessions.CompareAndDelete(s.ID, s)
		if errors.Is(err, resilience.ErrCircuitOpen) {
			err = fmt.Errorf("terminal allocation failing, retry later: %w", errs.ErrResourceExhausted)
		}
		m.logger.Warn("Session launch failed", zap.String("session_id", s.ID), zap.Error(err))
		return nil, err
	}

	s.mu.Lock()
	s.proc = proc
	s.mu.Unlock()

	go s.read()
	go m.monitor(s)

	// Shutdown may have missed s while it had no process.
	if m.closed.Load() {
		m.teardown(s, "server shutdown")
		m.sessions.CompareAndDelete(s.ID, s)
		return nil, errShuttingDown
	}

	if err := m.prepare(ctx, s); err != nil {
		m.teardown(s, "setup failed")
		m.sessions.CompareAndDelete(s.ID, s)
		return nil, err
	}

	if !s.activate() {
		m.sessions.CompareAndDelete(s.ID, s)
		return nil, fmt.Errorf("session %q closed during setup: %w", s.ID, errs.ErrSessionNotFound)
	}
	s.touch()
	s.busy.Store(false)
	m.metrics.SetSessionsActive(m.admission.Running())

	m.logger.Info("Session created",
		zap.String("session_id", s.ID),
		zap.Int("pid", proc.PID()),
		zap.String("dir", s.Dir),
	)
	return s, nil
}

// reserve claims the id for s, replacing a closed session if one holds it.
func (m *Manager) reserve(s *Session) error {
	actual, loaded := m.sessions.LoadOrStore(s.ID, s)
	if !loaded {
		return nil
	}
	prev := actual.(*Session)
	if prev.State() == StateClosed && m.sessions.CompareAndSwap(s.ID, prev, s) {
		return nil
	}
	return fmt.Errorf("session %q: %w", s.ID, errs.ErrSessionExists)
}

func (m *Manager) overrides(env map[string]string) map[string]string {
	out := make(map[string]string, len(env)+1)
	for k, v := range env {
		out[k] = v
	}
	out["TERM"] = "xterm-256color"
	return out
}

// prepare configures the shell and discards everything it printed while
// starting up.
func (m *Manager) prepare(ctx context.Context, s *Session) error {
	if _, err := s.proc.Write([]byte(setupScript)); err != nil {
		return fmt.Errorf("%w: session setup: %w", errs.ErrLaunchFailed, err)
	}
	script, marker := markerScript("D", newToken())
	if _, err := s.proc.Write([]byte(script)); err != nil {
		return fmt.Errorf("%w: session setup: %w", errs.ErrLaunchFailed, err)
	}

	timer := time.NewTimer(m.cfg.DrainTimeout)
	defer timer.Stop()
	for {
		select {
		case line, ok := <-s.lines:
			if !ok {
				return fmt.Errorf("shell exited during setup: %w", errs.ErrLaunchFailed)
			}
			if strings.Contains(line, marker) {
				return nil
			}
		case <-timer.C:
			// A slow shell still works; stale output is dropped before the
			// first command.
			m.logger.Warn("Session setup marker not seen", zap.String("session_id", s.ID))
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// monitor tears the session down when its shell exits on its own.
func (m *Manager) monitor(s *Session) {
	<-s.proc.Done()
	m.teardown(s, "shell exited")
}

// teardown closes the session exactly once: hang up the group, escalate to
// SIGKILL, release the terminal and the admission slot.
func (m *Manager) teardown(s *Session, reason string) {
	s.closeOnce.Do(func() {
		s.setState(StateClosed)
		close(s.closing)

		// Interactive bash ignores SIGTERM but exits on SIGHUP.
		if err := s.proc.Signal(unix.SIGHUP); err != nil {
			m.logger.Warn("Hangup failed", zap.String("session_id", s.ID), zap.Error(err))
		}
		forced, err := governor.TerminateGroup(s.proc, m.cfg.KillGrace)
		if err != nil {
			m.logger.Warn("Terminate failed", zap.String("session_id", s.ID), zap.Error(err))
		}
		_ = s.proc.Close()

		m.admission.Release()
		m.metrics.SetSessionsActive(m.admission.Running())
		m.logger.Info("Session closed",
			zap.String("session_id", s.ID),
			zap.String("reason", reason),
			zap.Bool("forced", forced),
		)
	})
}

// Get returns an active session.
func (m *Manager) Get(id string) (*Session, error) {
	v, ok := m.sessions.Load(id)
	if !ok {
		return nil, fmt.Errorf("session %q: %w", id, errs.ErrSessionNotFound)
	}
	s := v.(*Session)
	if s.State() == StateClosed {
		return nil, fmt.Errorf("session %q is closed: %w", id, errs.ErrSessionNotFound)
	}
	return s, nil
}

// claim marks s busy for one operation.
func (m *Manager) claim(id string) (*Session, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	if !s.busy.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("session %q: %w", id, errs.ErrSessionBusy)
	}
	if s.State() != StateActive {
		s.busy.Store(false)
		return nil, fmt.Errorf("session %q is closed: %w", id, errs.ErrSessionNotFound)
	}
	return s, nil
}

func (m *Manager) check(command string) error {
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

// Exec runs command in the session's shell and waits for it to finish.
//
// On timeout the command is interrupted, the shell is resynchronised and
// the partial execution is returned with ErrTimedOut; the session stays
// usable. If the shell dies the session is closed and the partial
// execution is returned with ErrIO.
func (m *Manager) Exec(ctx context.Context, id, command string, timeout time.Duration) (*Execution, error) {
	if command == "" {
		return nil, fmt.Errorf("command is empty: %w", errs.ErrInvalidArgument)
	}
	if err := m.check(command); err != nil {
		return nil, err
	}
	s, err := m.claim(id)
	if err != nil {
		return nil, err
	}
	defer s.busy.Store(false)
	defer s.touch()

	timeout = governor.ClampTimeout(timeout, m.cfg.DefaultTimeout)
	m.drainStale(s)

	exec := &Execution{
		SessionID: s.ID,
		Command:   command,
		StartedAt: time.Now(),
		Status:    types.StatusExited,
		Output:    output.NewBuffer(output.Options{}),
	}
	f := newFrame()
	m.logger.Info("Session exec",
		zap.String("session_id", s.ID),
		zap.String("command", command),
		zap.Duration("timeout", timeout),
	)

	if _, err := s.proc.Write([]byte(f.script(command))); err != nil {
		m.teardown(s, "terminal write failed")
		return nil, err
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	started := false
	for {
		select {
		case line, ok := <-s.lines:
			if !ok {
				return m.lost(s, exec)
			}
			if !started {
				started = f.isStart(line)
				continue
			}
			if rest, code, ok := f.matchEnd(line); ok {
				if rest != "" {
					m.record(s, exec, rest)
				}
				exec.ExitCode = types.IntPtr(code)
				return m.complete(exec), nil
			}
			m.record(s, exec, line)

		case <-deadline.C:
			m.logger.Info("Session command timed out, interrupting",
				zap.String("session_id", s.ID),
				zap.Duration("timeout", timeout),
			)
			if !m.resync(s, exec) {
				return m.lost(s, exec)
			}
			exec.TimedOut = true
			exec.Status = types.StatusTimedOut
			exec.ExitCode = types.IntPtr(governor.TimedOutExitCode)
			return m.complete(exec), fmt.Errorf("session %q command exceeded %s: %w", s.ID, timeout, errs.ErrTimedOut)

		case <-ctx.Done():
			if !m.resync(s, exec) {
				return m.lost(s, exec)
			}
			exec.Status = types.StatusKilled
			return m.complete(exec), fmt.Errorf("session %q exec: %w", s.ID, ctx.Err())
		}
	}
}

// record appends a command's line to its result and to the session history.
func (m *Manager) record(s *Session, exec *Execution, line string) {
	exec.Output.AppendLine(line)
	s.history.AppendLine(line)
}

func (m *Manager) complete(exec *Execution) *Execution {
	exec.Duration = time.Since(exec.StartedAt)
	m.metrics.AddOutputLines(exec.Output.Total())
	return exec
}

// lost handles a shell that died under a running command.
func (m *Manager) lost(s *Session, exec *Execution) (*Execution, error) {
	m.teardown(s, "shell exited during command")
	exec.Status = types.StatusKilled
	exec.ExitCode = nil
	return m.complete(exec), fmt.Errorf("%w: session %q shell exited during command", errs.ErrIO, s.ID)
}

// resync interrupts the foreground command and waits until the shell
// answers a fresh marker. Output seen meanwhile is kept. It returns false
// only if the shell died.
func (m *Manager) resync(s *Session, exec *Execution) bool {
	_ = s.proc.Interrupt()
	if !m.collectFor(s, exec, m.cfg.InterruptGap) {
		return false
	}
	_ = s.proc.Interrupt()
	if !m.collectFor(s, exec, m.cfg.InterruptSettle) {
		return false
	}

	script, marker := markerScript("R", newToken())
	if _, err := s.proc.Write([]byte("\n" + script)); err != nil {
		return false
	}

	timer := time.NewTimer(m.cfg.RecoveryWindow)
	defer timer.Stop()
	for {
		select {
		case line, ok := <-s.lines:
			if !ok {
				return false
			}
			if strings.Contains(line, marker) {
				return true
			}
			m.keep(s, exec, line)
		case <-timer.C:
			m.logger.Warn("Session did not resynchronise after interrupt", zap.String("session_id", s.ID))
			return true
		}
	}
}

// collectFor keeps non-marker lines arriving within d.
func (m *Manager) collectFor(s *Session, exec *Execution, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	for {
		select {
		case line, ok := <-s.lines:
			if !ok {
				return false
			}
			m.keep(s, exec, line)
		case <-timer.C:
			return true
		}
	}
}

// keep records line without sentinels, skipping blank terminal noise.
func (m *Manager) keep(s *Session, exec *Execution, line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	if line, ok := stripMarkers(line); ok {
		m.record(s, exec, line)
	}
}

// drainStale moves output produced between operations, such as from
// background jobs, into the history.
func (m *Manager) drainStale(s *Session) {
	for {
		select {
		case line, ok := <-s.lines:
			if !ok {
				return
			}
			if line, ok := stripMarkers(line); ok {
				s.history.AppendLine(line)
			}
		default:
			return
		}
	}
}

// Send writes raw input to the terminal and returns what the terminal
// prints until it has been quiet for idle. Escapes in input are decoded.
// Input that submits a line is classified like a command.
func (m *Manager) Send(ctx context.Context, id, input string, idle time.Duration) (*Execution, error) {
	data := DecodeEscapes(input)
	if containsLineBreak(data) {
		if err := m.check(data); err != nil {
			return nil, err
		}
	}
	s, err := m.claim(id)
	if err != nil {
		return nil, err
	}
	defer s.busy.Store(false)
	defer s.touch()

	if idle <= 0 {
		idle = m.cfg.SendIdle
	}
	hardCap := 5 * idle
	if hardCap < minSendCap {
		hardCap = minSendCap
	}

	m.drainStale(s)
	exec := &Execution{
		SessionID: s.ID,
		Command:   input,
		StartedAt: time.Now(),
		Status:    types.StatusRunning,
		Output:    output.NewBuffer(output.Options{}),
	}

	if data != "" {
		if _, err := s.proc.Write([]byte(data)); err != nil {
			m.teardown(s, "terminal write failed")
			return nil, err
		}
	}

	quiet := time.NewTimer(idle)
	defer quiet.Stop()
	limit := time.NewTimer(hardCap)
	defer limit.Stop()

	for {
		select {
		case line, ok := <-s.lines:
			if !ok {
				return m.lost(s, exec)
			}
			m.keep(s, exec, line)
			quiet.Reset(idle)
		case <-quiet.C:
			exec.Pending = s.splitter.Pending()
			return m.complete(exec), nil
		case <-limit.C:
			exec.Pending = s.splitter.Pending()
			return m.complete(exec), nil
		case <-ctx.Done():
			return m.complete(exec), ctx.Err()
		}
	}
}

func containsLineBreak(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' || s[i] == '\r' {
			return true
		}
	}
	return false
}

// Close tears a session down. Closing a closed session succeeds.
func (m *Manager) Close(ctx context.Context, id string) error {
	v, ok := m.sessions.Load(id)
	if !ok {
		return fmt.Errorf("session %q: %w", id, errs.ErrSessionNotFound)
	}
	s := v.(*Session)

	select {
	case <-s.ready:
	case <-ctx.Done():
		return ctx.Err()
	}
	if s.process() == nil {
		// Create failed before a shell existed.
		return nil
	}
	m.teardown(s, "closed by caller")
	return nil
}

// List returns every tracked session, oldest first.
func (m *Manager) List() []Info {
	var out []Info
	m.sessions.Range(func(_, v any) bool {
		out = append(out, v.(*Session).Info())
		return true
	})
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.Before(out[k].CreatedAt) })
	return out
}

// Buffer returns the history of a session, open or closed.
func (m *Manager) Buffer(id string) (*output.Buffer, error) {
	v, ok := m.sessions.Load(id)
	if !ok {
		return nil, fmt.Errorf("session %q: %w", id, errs.ErrSessionNotFound)
	}
	return v.(*Session).history, nil
}

// Active returns the number of sessions holding a slot.
func (m *Manager) Active() int { return m.admission.Running() }
