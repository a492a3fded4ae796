package job

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Reap drops terminal jobs finished more than Retention before now, then
// the oldest terminal jobs beyond MaxRetained. Running jobs are never
// reaped. It returns the number removed.
func (m *Manager) Reap(now time.Time) int {
	var finished []*Job
	removed := 0

	m.jobs.Range(func(k, v any) bool {
		j := v.(*Job)
		at := j.FinishedAt()
		if at.IsZero() {
			return true
		}
		if now.Sub(at) > m.cfg.Retention {
			m.jobs.Delete(k)
			removed++
			return true
		}
		finished = append(finished, j)
		return true
	})

	if excess := len(finished) - m.cfg.MaxRetained; excess > 0 {
		sort.Slice(finished, func(i, k int) bool {
			return finished[i].FinishedAt().Before(finished[k].FinishedAt())
		})
		for _, j := range finished[:excess] {
			m.jobs.Delete(j.ID)
			removed++
		}
	}

	if removed > 0 {
		m.logger.Debug("Reaped jobs", zap.Int("count", removed))
	}
	return removed
}

// Shutdown kills every running job concurrently and waits for all
// supervisors to finish or ctx to expire.
func (m *Manager) Shutdown(ctx context.Context) error {
	var g errgroup.Group
	m.jobs.Range(func(_, v any) bool {
		j := v.(*Job)
		if j.Status().Terminal() {
			return true
		}
		g.Go(func() error {
			m.stop(j, reasonKill)
			return nil
		})
		return true
	})
	_ = g.Wait()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
