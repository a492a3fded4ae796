package launcher

import (
	"bytes"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/GriffinCanCode/agentsh/internal/shared/errs"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func requireBinary(t *testing.T, name string) string {
	t.Helper()
	path, err := exec.LookPath(name)
	if err != nil {
		t.Skipf("%s not available", name)
	}
	return path
}

// gone treats an unreaped zombie as dead; PID 1 in a container may never
// reap reparented children.
func gone(pid int) bool {
	if unix.Kill(pid, 0) == unix.ESRCH {
		return true
	}
	stat, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/stat")
	if err != nil {
		return os.IsNotExist(err)
	}
	fields := strings.Fields(string(stat[bytes.LastIndexByte(stat, ')')+1:]))
	return len(fields) > 0 && fields[0] == "Z"
}

func waitDone(t *testing.T, p *Process, within time.Duration) {
	t.Helper()
	select {
	case <-p.Done():
	case <-time.After(within):
		t.Fatalf("process %d still running after %s", p.PID(), within)
	}
}

func TestPipeCapturesCombinedOutput(t *testing.T) {
	requireBinary(t, "sh")
	out := &syncBuffer{}

	p, err := Launch(Spec{Command: "echo out; echo err >&2; exit 3", Output: out})
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, 3, p.ExitCode())
	assert.NoError(t, p.WaitErr())
	assert.Contains(t, out.String(), "out\n")
	assert.Contains(t, out.String(), "err\n")
}

func TestPipeRunsInOwnProcessGroup(t *testing.T) {
	requireBinary(t, "sh")
	out := &syncBuffer{}

	p, err := Launch(Spec{Command: "ps -o pgid= -p $$", Output: out})
	require.NoError(t, err)
	defer p.Close()
	p.ExitCode()

	pgid, err := strconv.Atoi(strings.TrimSpace(out.String()))
	if err != nil {
		t.Skip("ps output not parseable")
	}
	assert.Equal(t, p.PID(), pgid)
	assert.NotEqual(t, unix.Getpgrp(), pgid)
}

func TestSignalKillsWholeGroup(t *testing.T) {
	requireBinary(t, "sh")
	out := &syncBuffer{}

	p, err := Launch(Spec{Command: "sleep 30 & echo $!; wait", Output: out})
	require.NoError(t, err)
	defer p.Close()

	var child int
	require.Eventually(t, func() bool {
		child, err = strconv.Atoi(strings.TrimSpace(out.String()))
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, p.Signal(unix.SIGKILL))
	waitDone(t, p, 2*time.Second)
	assert.Equal(t, 128+int(unix.SIGKILL), p.ExitCode())

	assert.Eventually(t, func() bool { return gone(child) }, 2*time.Second, 20*time.Millisecond,
		"background child survived")

	// Signalling a vanished group is not an error.
	assert.NoError(t, p.Signal(unix.SIGTERM))
}

func TestLaunchFailure(t *testing.T) {
	_, err := Launch(Spec{Shell: "/nonexistent/shell", Command: "true"})
	assert.ErrorIs(t, err, errs.ErrLaunchFailed)

	_, err = Launch(Spec{Command: "true", Dir: "/nonexistent/dir"})
	assert.ErrorIs(t, err, errs.ErrLaunchFailed)

	_, err = Launch(Spec{PTY: true})
	assert.ErrorIs(t, err, errs.ErrLaunchFailed)
}

func TestPTYIsATerminal(t *testing.T) {
	sh := requireBinary(t, "sh")

	p, err := Launch(Spec{
		PTY:   true,
		Shell: sh,
		Args:  []string{"-c", "if [ -t 1 ]; then echo tty; else echo notty; fi"},
		Env:   append(os.Environ(), "TERM=dumb"),
	})
	require.NoError(t, err)
	defer p.Close()
	assert.True(t, p.IsPTY())

	data, _ := io.ReadAll(p)
	waitDone(t, p, 5*time.Second)
	assert.Contains(t, string(data), "tty")
	assert.NotContains(t, string(data), "notty")
	assert.Equal(t, 0, p.ExitCode())
}

func TestPipeProcessHasNoTerminal(t *testing.T) {
	requireBinary(t, "sh")
	p, err := Launch(Spec{Command: "true"})
	require.NoError(t, err)
	defer p.Close()
	p.ExitCode()

	_, err = p.Write([]byte("x"))
	assert.ErrorIs(t, err, errs.ErrIO)
	assert.ErrorIs(t, p.Interrupt(), errs.ErrIO)
	assert.False(t, p.Alive())
	assert.NoError(t, p.Close())
}
