package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/agentsh/internal/runtime/launcher"
	"github.com/GriffinCanCode/agentsh/internal/runtime/output"
	"github.com/GriffinCanCode/agentsh/internal/shared/types"
)

// State is the lifecycle state of a session.
type State string

const (
	StateStarting State = "starting"
	StateActive   State = "active"
	StateClosed   State = "closed"
)

// lineQueue is how many unread terminal lines a session holds before its
// reader stops draining the terminal.
const lineQueue = 4096

// Session is one persistent shell on a pseudo-terminal.
type Session struct {
	ID        string
	Dir       string
	Env       map[string]string
	CreatedAt time.Time

	proc     *launcher.Process
	splitter *output.LineSplitter
	lines    chan string
	history  *output.Buffer

	// ready is closed once Create has finished, successfully or not.
	ready   chan struct{}
	closing chan struct{}
	busy    atomic.Bool

	mu         sync.RWMutex
	state      State
	lastActive time.Time
	closedAt   time.Time

	closeOnce sync.Once
}

func newSession(id, dir string, env map[string]string) *Session {
	now := time.Now()
	s := &Session{
		ID:         id,
		Dir:        dir,
		Env:        env,
		CreatedAt:  now,
		lines:      make(chan string, lineQueue),
		history:    output.NewBuffer(output.Options{}),
		ready:      make(chan struct{}),
		closing:    make(chan struct{}),
		state:      StateStarting,
		lastActive: now,
	}
	s.splitter = output.NewLineSplitter(output.SplitOptions{StripANSI: true}, s.push)
	// Setup holds the session until it is Active.
	s.busy.Store(true)
	return s
}

// push hands a line to whoever is collecting, giving up once the session is
// torn down.
func (s *Session) push(line string) {
	select {
	case s.lines <- line:
	case <-s.closing:
	}
}

// read pumps terminal output into lines until the terminal closes.
func (s *Session) read() {
	defer close(s.lines)
	buf := make([]byte, 32*1024)
	for {
		n, err := s.proc.Read(buf)
		if n > 0 {
			_, _ = s.splitter.Write(buf[:n])
		}
		if err != nil {
			s.splitter.Flush()
			return
		}
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	if st == StateClosed {
		s.closedAt = time.Now()
	}
	s.mu.Unlock()
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

// LastActive returns when the session last ran a command or received input.
func (s *Session) LastActive() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActive
}

// ClosedAt returns when the session was closed, zero while open.
func (s *Session) ClosedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closedAt
}

func (s *Session) process() *launcher.Process {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.proc
}

// Alive reports whether the shell process is still running.
func (s *Session) Alive() bool {
	p := s.process()
	return p != nil && !p.Exited()
}

// Busy reports whether a command or send is in flight.
func (s *Session) Busy() bool { return s.busy.Load() }

// History returns every line the session's commands have produced.
func (s *Session) History() *output.Buffer { return s.history }

// Info is a list entry.
type Info struct {
	ID         string    `json:"id"`
	State      State     `json:"state"`
	Dir        string    `json:"working_directory"`
	PID        int       `json:"pid"`
	Alive      bool      `json:"alive"`
	Busy       bool      `json:"busy"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
	TotalLines int       `json:"total_lines"`
}

// Info returns a snapshot of the session.
func (s *Session) Info() Info {
	s.mu.RLock()
	state, last := s.state, s.lastActive
	s.mu.RUnlock()

	info := Info{
		ID:         s.ID,
		State:      state,
		Dir:        s.Dir,
		Alive:      s.Alive(),
		Busy:       s.Busy(),
		CreatedAt:  s.CreatedAt,
		LastActive: last,
		TotalLines: s.history.Total(),
	}
	if p := s.process(); p != nil {
		info.PID = p.PID()
	}
	return info
}

// Execution is the outcome of one exec or send on a session.
type Execution struct {
	SessionID string
	Command   string
	StartedAt time.Time
	Duration  time.Duration
	// ExitCode is nil when the command did not report one, as with send or
	// when the shell died.
	ExitCode *int
	Status   string
	TimedOut bool
	// Pending is an unterminated last line, typically a prompt.
	Pending string
	Output  *output.Buffer
}

// Result builds the windowed result with a tail of maxLines.
func (e *Execution) Result(maxLines int) types.ExecutionResult {
	r := types.ExecutionResult{
		ID:              e.SessionID,
		ExitCode:        e.ExitCode,
		Status:          e.Status,
		DurationSeconds: e.Duration.Seconds(),
		TimedOut:        e.TimedOut,
	}
	e.Output.Snapshot(maxLines).Fill(&r)
	return r
}
