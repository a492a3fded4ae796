// Package governor enforces the time and concurrency ceilings shared by the
// session and job registries and owns process-group termination.
package governor

import (
	"sync"
	"sync/atomic"
	"time"
)

// Fixed ceilings. These are not configurable.
const (
	MaxTimeout     = time.Hour
	OutputHardCap  = 100_000
	MaxRunningJobs = 20
)

// TimedOutExitCode is reported for commands stopped by their deadline.
const TimedOutExitCode = 124

// ClampTimeout returns requested bounded by MaxTimeout. A non-positive
// request falls back to def; if def is also non-positive the ceiling is used.
func ClampTimeout(requested, def time.Duration) time.Duration {
	if requested <= 0 {
		requested = def
	}
	if requested <= 0 || requested > MaxTimeout {
		return MaxTimeout
	}
	return requested
}

// Admission is a counting gate checked and claimed in one atomic step.
type Admission struct {
	limit   int64
	running atomic.Int64
}

// NewAdmission creates a gate admitting at most limit holders.
func NewAdmission(limit int) *Admission {
	return &Admission{limit: int64(limit)}
}

// TryAcquire claims a slot, reporting false when the gate is full.
func (a *Admission) TryAcquire() bool {
	for {
		cur := a.running.Load()
		if cur >= a.limit {
			return false
		}
		if a.running.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

// Release returns a slot. Extra releases are ignored.
func (a *Admission) Release() {
	for {
		cur := a.running.Load()
		if cur <= 0 {
			return
		}
		if a.running.CompareAndSwap(cur, cur-1) {
			return
		}
	}
}

// Running returns the number of claimed slots.
func (a *Admission) Running() int { return int(a.running.Load()) }

// Limit returns the gate size.
func (a *Admission) Limit() int { return int(a.limit) }

// Deadline fires a callback once when a duration elapses unless stopped first.
type Deadline struct {
	at    time.Time
	timer *time.Timer
	fired atomic.Bool
	once  sync.Once
}

// Watch arms a deadline d from now.
func Watch(d time.Duration, onExpire func()) *Deadline {
	dl := &Deadline{at: time.Now().Add(d)}
	dl.timer = time.AfterFunc(d, func() {
		dl.once.Do(func() {
			dl.fired.Store(true)
			onExpire()
		})
	})
	return dl
}

// Stop disarms the deadline. It reports whether the callback was prevented.
func (d *Deadline) Stop() bool {
	if d == nil {
		return false
	}
	prevented := false
	d.once.Do(func() { prevented = true })
	d.timer.Stop()
	return prevented
}

// Expired reports whether the callback ran.
func (d *Deadline) Expired() bool { return d != nil && d.fired.Load() }

// At returns the wall-clock deadline.
func (d *Deadline) At() time.Time { return d.at }

// Remaining returns the time left before expiry, never negative.
func (d *Deadline) Remaining() time.Duration {
	if r := time.Until(d.at); r > 0 {
		return r
	}
	return 0
}
