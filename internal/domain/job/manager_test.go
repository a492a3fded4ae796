package job

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/GriffinCanCode/agentsh/internal/runtime/governor"
	"github.com/GriffinCanCode/agentsh/internal/shared/errs"
)

func newTestManager(t *testing.T, mutate func(*Config)) *Manager {
	t.Helper()
	cfg := DefaultConfig()
	cfg.KillGrace = 200 * time.Millisecond
	if mutate != nil {
		mutate(&cfg)
	}
	m := NewManager(cfg, nil, zaptest.NewLogger(t), nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = m.Shutdown(ctx)
	})
	return m
}

func waitDone(t *testing.T, j *Job, within time.Duration) {
	t.Helper()
	select {
	case <-j.Done():
	case <-time.After(within):
		t.Fatalf("job %s still %s after %s", j.ID, j.Status(), within)
	}
}

func TestRunCapturesOutputAndExitCode(t *testing.T) {
	m := newTestManager(t, nil)

	j, err := m.Run(context.Background(), Request{Command: "echo hello; echo oops >&2; exit 3"})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(j.ID, "run_"))
	assert.Equal(t, StatusExited, j.Status())

	r := j.Result(200)
	require.NotNil(t, r.ExitCode)
	assert.Equal(t, 3, *r.ExitCode)
	assert.Equal(t, []string{"hello", "oops"}, r.OutputTail)
	assert.Equal(t, 2, r.TotalLines)
	assert.False(t, r.TimedOut)
	assert.False(t, r.Truncated)
}

func TestRunHonoursDirAndEnv(t *testing.T) {
	m := newTestManager(t, nil)
	dir := t.TempDir()

	j, err := m.Run(context.Background(), Request{
		Command: `pwd -P; echo "$GREETING"`,
		Dir:     dir,
		Env:     map[string]string{"GREETING": "hi there"},
	})
	require.NoError(t, err)

	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{resolved, "hi there"}, j.Result(10).OutputTail)
}

func TestRunLargeOutputIsWindowed(t *testing.T) {
	m := newTestManager(t, nil)

	j, err := m.Run(context.Background(), Request{Command: "seq 1 1000"})
	require.NoError(t, err)

	r := j.Result(50)
	assert.Equal(t, 1000, r.TotalLines)
	assert.True(t, r.Windowed)
	assert.False(t, r.Truncated)
	assert.Len(t, r.OutputHead, 10)
	assert.Equal(t, "1", r.OutputHead[0])
	assert.Len(t, r.OutputTail, 50)
	assert.Equal(t, "1000", r.OutputTail[49])
}

func TestRunTimeoutKeepsPartialOutput(t *testing.T) {
	m := newTestManager(t, nil)

	start := time.Now()
	j, err := m.Run(context.Background(), Request{
		Command: "echo started; sleep 30",
		Timeout: time.Second,
	})
	require.NoError(t, err)
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 5*time.Second)
	assert.GreaterOrEqual(t, elapsed, 900*time.Millisecond)

	r := j.Result(10)
	assert.Equal(t, string(StatusTimedOut), r.Status)
	assert.True(t, r.TimedOut)
	require.NotNil(t, r.ExitCode)
	assert.Equal(t, governor.TimedOutExitCode, *r.ExitCode)
	assert.Equal(t, []string{"started"}, r.OutputTail)
}

func TestRunCancelledContextKillsJob(t *testing.T) {
	m := newTestManager(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	j, err := m.Run(ctx, Request{Command: "sleep 30"})
	require.NoError(t, err)
	assert.Equal(t, StatusKilled, j.Status())
}

func TestBlockedCommandNeverLaunches(t *testing.T) {
	m := newTestManager(t, nil)
	marker := filepath.Join(t.TempDir(), "ran")

	_, err := m.Start(context.Background(), Request{
		Command: fmt.Sprintf("touch %s && rm -rf /", marker),
	})
	require.ErrorIs(t, err, errs.ErrBlocked)

	cat, ok := errs.Category(err)
	assert.True(t, ok)
	assert.Equal(t, "recursive_delete", cat)

	_, statErr := os.Stat(marker)
	assert.True(t, os.IsNotExist(statErr))
	assert.Empty(t, m.List())
	assert.Zero(t, m.Running())
}

func TestEmptyCommandIsInvalid(t *testing.T) {
	m := newTestManager(t, nil)
	_, err := m.Run(context.Background(), Request{})
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestLaunchFailureReleasesSlot(t *testing.T) {
	m := newTestManager(t, func(c *Config) { c.MaxRunning = 1 })

	_, err := m.Start(context.Background(), Request{Command: "true", Dir: "/does/not/exist"})
	require.ErrorIs(t, err, errs.ErrLaunchFailed)
	assert.Zero(t, m.Running())
}

func TestStartRespectsRunningCeiling(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()

	var started []*Job
	for i := 0; i < governor.MaxRunningJobs; i++ {
		j, err := m.Start(ctx, Request{Command: "sleep 30"})
		require.NoError(t, err, "job %d", i)
		started = append(started, j)
	}
	assert.Equal(t, governor.MaxRunningJobs, m.Running())

	_, err := m.Start(ctx, Request{Command: "sleep 30"})
	require.ErrorIs(t, err, errs.ErrResourceExhausted)

	// Blocking runs are not counted.
	j, err := m.Run(ctx, Request{Command: "echo still works"})
	require.NoError(t, err)
	assert.Equal(t, StatusExited, j.Status())

	killed, err := m.Kill(ctx, started[0].ID)
	require.NoError(t, err)
	assert.True(t, killed)

	_, err = m.Start(ctx, Request{Command: "true"})
	assert.NoError(t, err)
}

func TestKillTerminatesProcessGroup(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()
	pidFile := filepath.Join(t.TempDir(), "child.pid")

	j, err := m.Start(ctx, Request{
		Command: fmt.Sprintf("sleep 60 & echo $! > %s; wait", pidFile),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(j.ID, "job_"))

	var child int
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(pidFile)
		if err != nil {
			return false
		}
		child, err = strconv.Atoi(strings.TrimSpace(string(data)))
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	killed, err := m.Kill(ctx, j.ID)
	require.NoError(t, err)
	assert.True(t, killed)
	assert.Equal(t, StatusKilled, j.Status())

	code, terminal := j.ExitCode()
	assert.True(t, terminal)
	assert.Greater(t, code, 128)

	assert.Eventually(t, func() bool { return processGone(child) }, 2*time.Second, 20*time.Millisecond)

	// A second kill is a no-op.
	killed, err = m.Kill(ctx, j.ID)
	require.NoError(t, err)
	assert.False(t, killed)
}

func TestKillUnknownJob(t *testing.T) {
	m := newTestManager(t, nil)
	_, err := m.Kill(context.Background(), "job_missing")
	assert.ErrorIs(t, err, errs.ErrJobNotFound)
}

func TestWaitTimesOutWithoutStoppingJob(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()

	j, err := m.Start(ctx, Request{Command: "sleep 30"})
	require.NoError(t, err)

	got, err := m.Wait(ctx, j.ID, 100*time.Millisecond)
	require.ErrorIs(t, err, errs.ErrTimedOutWaiting)
	assert.Same(t, j, got)
	assert.Equal(t, StatusRunning, j.Status())
}

func TestWaitReturnsFinishedJob(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()

	j, err := m.Start(ctx, Request{Command: "echo done"})
	require.NoError(t, err)

	got, err := m.Wait(ctx, j.ID, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, StatusExited, got.Status())
	assert.Equal(t, []string{"done"}, got.Result(10).OutputTail)
	assert.Zero(t, m.Running())
}

func TestDetachedJobTimesOut(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()

	j, err := m.Start(ctx, Request{Command: "echo partial; sleep 30", Timeout: time.Second})
	require.NoError(t, err)
	waitDone(t, j, 5*time.Second)

	snap := j.Snapshot()
	assert.Equal(t, StatusTimedOut, snap.Status)
	require.NotNil(t, snap.ExitCode)
	assert.Equal(t, governor.TimedOutExitCode, *snap.ExitCode)
	assert.Equal(t, []string{"partial"}, snap.TailLines)
}

func TestSnapshotWhileRunning(t *testing.T) {
	m := newTestManager(t, nil)

	j, err := m.Start(context.Background(), Request{Command: "seq 1 30; sleep 30"})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return j.Output().Total() == 30 },
		2*time.Second, 10*time.Millisecond)

	snap := j.Snapshot()
	assert.Equal(t, StatusRunning, snap.Status)
	assert.Nil(t, snap.ExitCode)
	assert.Len(t, snap.TailLines, StatusTailLines)
	assert.Equal(t, "30", snap.TailLines[StatusTailLines-1])
	assert.Equal(t, 30, snap.TotalLines)
}

func TestBufferRange(t *testing.T) {
	m := newTestManager(t, nil)

	j, err := m.Run(context.Background(), Request{Command: "seq 1 20"})
	require.NoError(t, err)

	buf, err := m.Buffer(j.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, buf.Total())

	lines, err := buf.Range(5, 8)
	require.NoError(t, err)
	assert.Equal(t, []string{"6", "7", "8"}, lines)

	_, err = buf.Range(10, 5)
	assert.ErrorIs(t, err, errs.ErrInvalidRange)

	_, err = m.Buffer("job_missing")
	assert.ErrorIs(t, err, errs.ErrJobNotFound)
}

func TestListOrdersByStart(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()

	first, err := m.Run(ctx, Request{Command: "true"})
	require.NoError(t, err)
	second, err := m.Start(ctx, Request{Command: "sleep 30"})
	require.NoError(t, err)

	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, ModeBlocking, list[0].Mode)
	require.NotNil(t, list[0].ExitCode)
	assert.Equal(t, second.ID, list[1].ID)
	assert.Equal(t, StatusRunning, list[1].Status)
	assert.Nil(t, list[1].ExitCode)
}

func TestReap(t *testing.T) {
	m := newTestManager(t, func(c *Config) {
		c.Retention = time.Minute
		c.MaxRetained = 2
	})
	ctx := context.Background()

	var finished []*Job
	for i := 0; i < 3; i++ {
		j, err := m.Run(ctx, Request{Command: "true"})
		require.NoError(t, err)
		finished = append(finished, j)
	}
	running, err := m.Start(ctx, Request{Command: "sleep 30"})
	require.NoError(t, err)

	// Over the retained limit: the oldest finished job goes.
	assert.Equal(t, 1, m.Reap(time.Now()))
	_, err = m.Get(finished[0].ID)
	assert.ErrorIs(t, err, errs.ErrJobNotFound)

	// Past retention: every finished job goes, the running one stays.
	assert.Equal(t, 2, m.Reap(time.Now().Add(2*time.Minute)))
	_, err = m.Get(running.ID)
	assert.NoError(t, err)
}

func TestShutdownKillsRunningJobs(t *testing.T) {
	m := NewManager(Config{KillGrace: 200 * time.Millisecond}, nil, zaptest.NewLogger(t), nil)
	ctx := context.Background()

	a, err := m.Start(ctx, Request{Command: "sleep 30"})
	require.NoError(t, err)
	b, err := m.Start(ctx, Request{Command: "sleep 30"})
	require.NoError(t, err)

	sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(sctx))

	assert.Equal(t, StatusKilled, a.Status())
	assert.Equal(t, StatusKilled, b.Status())
	assert.Zero(t, m.Running())
}
