package session

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Reap forgets sessions closed more than Retention before now and, when an
// idle timeout is configured, closes sessions unused for longer than it.
// It returns the number of sessions closed or forgotten.
func (m *Manager) Reap(now time.Time) int {
	var idle []*Session
	n := 0

	m.sessions.Range(func(k, v any) bool {
		s := v.(*Session)
		switch s.State() {
		case StateClosed:
			if now.Sub(s.ClosedAt()) > m.cfg.Retention {
				if m.sessions.CompareAndDelete(k, s) {
					n++
				}
			}
		case StateActive:
			if m.cfg.IdleTimeout > 0 && !s.Busy() && now.Sub(s.LastActive()) > m.cfg.IdleTimeout {
				idle = append(idle, s)
			}
		}
		return true
	})

	for _, s := range idle {
		// Hold the session so no command starts while it is torn down.
		if !s.busy.CompareAndSwap(false, true) {
			continue
		}
		m.logger.Info("Closing idle session",
			zap.String("session_id", s.ID),
			zap.Time("last_active", s.LastActive()),
		)
		m.teardown(s, "idle")
		n++
	}
	return n
}

// Shutdown closes every session concurrently and refuses new ones. A session
// still being created is closed by Create itself once its shell exists.
// Teardown is bounded by twice the kill grace, so Shutdown always finishes
// it rather than abandoning sessions when ctx expires.
func (m *Manager) Shutdown(_ context.Context) error {
	m.closed.Store(true)

	var g errgroup.Group
	m.sessions.Range(func(_, v any) bool {
		s := v.(*Session)
		if s.State() == StateClosed || s.process() == nil {
			return true
		}
		g.Go(func() error {
			m.teardown(s, "server shutdown")
			return nil
		})
		return true
	})
	return g.Wait()
}
