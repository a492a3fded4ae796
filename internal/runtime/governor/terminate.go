package governor

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// DefaultKillGrace is the pause between SIGTERM and SIGKILL.
const DefaultKillGrace = 2 * time.Second

// pollInterval is how often TerminateGroup checks whether the group is gone.
const pollInterval = 20 * time.Millisecond

// Group is a signalable process group.
type Group interface {
	Signal(sig unix.Signal) error
	// Alive reports whether any member of the group, including an
	// unreaped leader, still exists.
	Alive() bool
}

// TerminateGroup sends SIGTERM to the group, waits up to grace for every
// member to exit, then sends SIGKILL. The group is gone only when no member
// is left, not merely when its leader has exited. forced reports whether
// SIGKILL was needed.
func TerminateGroup(g Group, grace time.Duration) (forced bool, err error) {
	if !g.Alive() {
		return false, nil
	}
	if grace <= 0 {
		grace = DefaultKillGrace
	}

	if err := g.Signal(unix.SIGTERM); err != nil {
		return false, fmt.Errorf("sigterm: %w", err)
	}
	if waitGone(g, grace) {
		return false, nil
	}

	if err := g.Signal(unix.SIGKILL); err != nil {
		return true, fmt.Errorf("sigkill: %w", err)
	}
	if !waitGone(g, grace) {
		return true, fmt.Errorf("process group still alive %s after SIGKILL", grace)
	}
	return true, nil
}

// waitGone polls g until it has no members or d elapses.
func waitGone(g Group, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	tick := time.NewTicker(pollInterval)
	defer tick.Stop()

	for {
		if !g.Alive() {
			return true
		}
		select {
		case <-timer.C:
			return !g.Alive()
		case <-tick.C:
		}
	}
}
