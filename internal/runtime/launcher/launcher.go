// Package launcher starts OS processes in their own session and process
// group, either attached to a pseudo-terminal or with piped output.
package launcher

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"

	"github.com/GriffinCanCode/agentsh/internal/shared/errs"
)

const (
	DefaultShell = "/bin/sh"
	DefaultCols  = 250
	DefaultRows  = 24

	// pipeWaitDelay bounds how long Wait keeps copying output after the
	// leader exits while a stray descendant still holds the pipe.
	pipeWaitDelay = 500 * time.Millisecond
)

// Spec describes a process to launch.
type Spec struct {
	// Command is run with Shell -c in pipe mode. Unused in PTY mode.
	Command string
	// Shell is the interpreter for pipe mode or the program for PTY mode.
	Shell string
	// Args are passed to Shell in PTY mode.
	Args []string
	Dir  string
	// Env is the complete environment; nil inherits the server's.
	Env []string

	PTY        bool
	Cols, Rows uint16

	// Output receives combined stdout and stderr in pipe mode.
	Output io.Writer
}

// Process is a launched process group. The caller must call Close once the
// process is no longer needed.
type Process struct {
	cmd     *exec.Cmd
	tty     *os.File
	pgid    int
	started time.Time

	done     chan struct{}
	exitCode int
	waitErr  error

	closeOnce sync.Once
	closeErr  error
}

// Launch starts spec. OS-level spawn failures wrap errs.ErrLaunchFailed.
func Launch(spec Spec) (*Process, error) {
	if spec.PTY {
		return launchPTY(spec)
	}
	return launchPipe(spec)
}

func launchPipe(spec Spec) (*Process, error) {
	shell := spec.Shell
	if shell == "" {
		shell = DefaultShell
	}
	out := spec.Output
	if out == nil {
		out = io.Discard
	}

	cmd := exec.Command(shell, "-c", spec.Command)
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	cmd.WaitDelay = pipeWaitDelay

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start %s: %w", errs.ErrLaunchFailed, shell, err)
	}
	return track(cmd, nil), nil
}

func launchPTY(spec Spec) (*Process, error) {
	if spec.Shell == "" {
		return nil, fmt.Errorf("pty launch needs a program: %w", errs.ErrLaunchFailed)
	}
	cols, rows := spec.Cols, spec.Rows
	if cols == 0 {
		cols = DefaultCols
	}
	if rows == 0 {
		rows = DefaultRows
	}

	cmd := exec.Command(spec.Shell, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env

	// StartWithSize makes the child a session leader with the terminal as
	// its controlling tty.
	tty, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: rows, Cols: cols})
	if err != nil {
		return nil, fmt.Errorf("%w: start pty %s: %w", errs.ErrLaunchFailed, spec.Shell, err)
	}
	return track(cmd, tty), nil
}

func track(cmd *exec.Cmd, tty *os.File) *Process {
	p := &Process{
		cmd:     cmd,
		tty:     tty,
		pgid:    cmd.Process.Pid,
		started: time.Now(),
		done:    make(chan struct{}),
	}
	go p.wait()
	return p
}

func (p *Process) wait() {
	err := p.cmd.Wait()
	p.exitCode = exitCode(p.cmd.ProcessState)
	if err != nil && !errors.As(err, new(*exec.ExitError)) {
		p.waitErr = err
	}
	close(p.done)
}

// exitCode follows the shell convention of 128+n for a signal death.
func exitCode(state *os.ProcessState) int {
	if state == nil {
		return -1
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return state.ExitCode()
}

// PID returns the leader's process id, which is also the group id.
func (p *Process) PID() int { return p.pgid }

// StartedAt returns the launch time.
func (p *Process) StartedAt() time.Time { return p.started }

// IsPTY reports whether the process is attached to a terminal.
func (p *Process) IsPTY() bool { return p.tty != nil }

// Done is closed once the leader has exited and its output is drained.
func (p *Process) Done() <-chan struct{} { return p.done }

// ExitCode blocks until exit and returns the exit code.
func (p *Process) ExitCode() int {
	<-p.done
	return p.exitCode
}

// WaitErr returns a non-exit error from Wait, such as an output copy failure.
func (p *Process) WaitErr() error {
	<-p.done
	return p.waitErr
}

// Exited reports whether the leader has exited.
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Signal delivers sig to every process in the group. A group that no longer
// exists is not an error.
func (p *Process) Signal(sig unix.Signal) error {
	err := unix.Kill(-p.pgid, sig)
	if err == nil || errors.Is(err, unix.ESRCH) {
		return nil
	}
	return fmt.Errorf("signal %s to group %d: %w", unix.SignalName(sig), p.pgid, err)
}

// Alive reports whether any member of the group still exists. The leader
// counts until it has been waited for.
func (p *Process) Alive() bool {
	return !errors.Is(unix.Kill(-p.pgid, 0), unix.ESRCH)
}

// Read reads terminal output.
func (p *Process) Read(b []byte) (int, error) {
	if p.tty == nil {
		return 0, fmt.Errorf("read: not a terminal: %w", errs.ErrIO)
	}
	return p.tty.Read(b)
}

// Write writes terminal input.
func (p *Process) Write(b []byte) (int, error) {
	if p.tty == nil {
		return 0, fmt.Errorf("write: not a terminal: %w", errs.ErrIO)
	}
	n, err := p.tty.Write(b)
	if err != nil {
		return n, fmt.Errorf("%w: write terminal: %w", errs.ErrIO, err)
	}
	return n, nil
}

// Interrupt sends the terminal interrupt character, which the line
// discipline turns into SIGINT for the foreground job only.
func (p *Process) Interrupt() error {
	_, err := p.Write([]byte{0x03})
	return err
}

// Close releases the terminal. It does not signal the process.
func (p *Process) Close() error {
	p.closeOnce.Do(func() {
		if p.tty != nil {
			p.closeErr = p.tty.Close()
		}
	})
	return p.closeErr
}
