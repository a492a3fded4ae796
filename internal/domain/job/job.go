package job

import (
	"sync"
	"time"

	"github.com/GriffinCanCode/agentsh/internal/runtime/governor"
	"github.com/GriffinCanCode/agentsh/internal/runtime/launcher"
	"github.com/GriffinCanCode/agentsh/internal/runtime/output"
	"github.com/GriffinCanCode/agentsh/internal/shared/types"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusRunning  Status = types.StatusRunning
	StatusExited   Status = types.StatusExited
	StatusKilled   Status = types.StatusKilled
	StatusTimedOut Status = types.StatusTimedOut
)

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool { return s != StatusRunning }

// Mode says how the caller waits for a job.
type Mode string

const (
	// ModeBlocking jobs are awaited by the caller that started them.
	ModeBlocking Mode = "blocking"
	// ModeDetached jobs are polled through status and wait.
	ModeDetached Mode = "detached"
)

// stopReason records why the server asked a job to stop. The first reason
// set wins and decides the terminal status.
type stopReason int

const (
	reasonNone stopReason = iota
	reasonTimeout
	reasonKill
)

// Job is one launched command and its output.
type Job struct {
	ID        string
	Command   string
	Dir       string
	Mode      Mode
	StartedAt time.Time
	Timeout   time.Duration

	buf      *output.Buffer
	proc     *launcher.Process
	deadline *governor.Deadline
	done     chan struct{}

	mu         sync.RWMutex
	status     Status
	exitCode   int
	finishedAt time.Time
	reason     stopReason
}

// requestStop records reason unless one is already set or the process has
// already exited on its own. It reports whether this call set it.
func (j *Job) requestStop(r stopReason) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.reason != reasonNone || j.status.Terminal() || j.proc.Exited() {
		return false
	}
	j.reason = r
	return true
}

// finish performs the single Running to terminal transition.
func (j *Job) finish(code int) Status {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.status.Terminal() {
		return j.status
	}
	switch j.reason {
	case reasonTimeout:
		j.status = StatusTimedOut
		j.exitCode = governor.TimedOutExitCode
	case reasonKill:
		j.status = StatusKilled
		j.exitCode = code
	default:
		j.status = StatusExited
		j.exitCode = code
	}
	j.finishedAt = time.Now()
	close(j.done)
	return j.status
}

// Done is closed when the job reaches a terminal status.
func (j *Job) Done() <-chan struct{} { return j.done }

// Status returns the current status.
func (j *Job) Status() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status
}

// ExitCode returns the exit code once the job is terminal.
func (j *Job) ExitCode() (int, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.exitCode, j.status.Terminal()
}

// FinishedAt returns when the job became terminal, zero while running.
func (j *Job) FinishedAt() time.Time {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.finishedAt
}

// Duration returns elapsed run time, up to now for a running job.
func (j *Job) Duration() time.Duration {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.finishedAt.IsZero() {
		return time.Since(j.StartedAt)
	}
	return j.finishedAt.Sub(j.StartedAt)
}

// PID returns the process group id.
func (j *Job) PID() int { return j.proc.PID() }

// Output returns the job's buffer.
func (j *Job) Output() *output.Buffer { return j.buf }

// Result builds the windowed result with a tail of maxLines.
func (j *Job) Result(maxLines int) types.ExecutionResult {
	j.mu.RLock()
	status, code, terminal := j.status, j.exitCode, j.status.Terminal()
	j.mu.RUnlock()

	r := types.ExecutionResult{
		ID:              j.ID,
		Status:          string(status),
		DurationSeconds: j.Duration().Seconds(),
		TimedOut:        status == StatusTimedOut,
	}
	if terminal {
		r.ExitCode = types.IntPtr(code)
	}
	j.buf.Snapshot(maxLines).Fill(&r)
	return r
}

// StatusTailLines is the tail size in a status snapshot.
const StatusTailLines = 20

// Snapshot is the non-blocking view returned by a status query.
type Snapshot struct {
	ID               string    `json:"id"`
	Command          string    `json:"command"`
	Status           Status    `json:"status"`
	ExitCode         *int      `json:"exit_code"`
	RuntimeSeconds   float64   `json:"runtime_seconds"`
	StartedAt        time.Time `json:"started_at"`
	TailLines        []string  `json:"tail_lines"`
	TotalLines       int       `json:"total_lines"`
	// DeadlineAt and RemainingSeconds are set while the job runs.
	DeadlineAt       *time.Time `json:"deadline_at,omitempty"`
	RemainingSeconds *float64   `json:"remaining_seconds,omitempty"`
}

// Snapshot returns the current state and last StatusTailLines lines.
func (j *Job) Snapshot() Snapshot {
	j.mu.RLock()
	status, code := j.status, j.exitCode
	j.mu.RUnlock()

	snap := j.buf.Snapshot(StatusTailLines)
	s := Snapshot{
		ID:             j.ID,
		Command:        j.Command,
		Status:         status,
		RuntimeSeconds: j.Duration().Seconds(),
		StartedAt:      j.StartedAt,
		TailLines:      snap.Tail,
		TotalLines:     snap.TotalLines,
	}
	if status.Terminal() {
		s.ExitCode = types.IntPtr(code)
	} else if j.deadline != nil {
		at := j.deadline.At()
		remaining := j.deadline.Remaining().Seconds()
		s.DeadlineAt = &at
		s.RemainingSeconds = &remaining
	}
	return s
}

// Deadline returns when the job will be stopped for exceeding its timeout.
func (j *Job) Deadline() time.Time {
	if j.deadline == nil {
		return j.StartedAt.Add(j.Timeout)
	}
	return j.deadline.At()
}

// Summary is a list entry.
type Summary struct {
	ID             string  `json:"id"`
	Command        string  `json:"command"`
	Mode           Mode    `json:"mode"`
	Status         Status  `json:"status"`
	ExitCode       *int    `json:"exit_code"`
	RuntimeSeconds float64 `json:"runtime_seconds"`
}

// Summary returns a compact description.
func (j *Job) Summary() Summary {
	code, terminal := j.ExitCode()
	s := Summary{
		ID:             j.ID,
		Command:        j.Command,
		Mode:           j.Mode,
		Status:         j.Status(),
		RuntimeSeconds: j.Duration().Seconds(),
	}
	if terminal {
		s.ExitCode = types.IntPtr(code)
	}
	return s
}
