package shell

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/agentsh/internal/domain/session"
	"github.com/GriffinCanCode/agentsh/internal/shared/errs"
	"github.com/GriffinCanCode/agentsh/internal/shared/types"
)

func (p *Provider) createSession(ctx context.Context, params map[string]interface{}) *types.Result {
	id, err := getString(params, "session_id", true)
	if err != nil {
		return p.fail("create_session", err, nil)
	}
	cwd, err := getString(params, "cwd", false)
	if err != nil {
		return p.fail("create_session", err, nil)
	}
	env, err := getEnv(params, "env")
	if err != nil {
		return p.fail("create_session", err, nil)
	}

	s, err := p.sessions.Create(ctx, session.CreateRequest{ID: id, Dir: cwd, Env: env})
	if err != nil {
		return p.fail("create_session", err, nil)
	}
	info := s.Info()
	return types.OK(map[string]interface{}{
		"session_id": info.ID,
		"state":      string(info.State),
		"pid":        info.PID,
		"cwd":        info.Dir,
	})
}

// execution shapes a session exec or send. Partial output from a timeout or
// a dead shell rides along on the failure.
func (p *Provider) execution(tool string, e *session.Execution, err error, maxLines int) *types.Result {
	if e == nil {
		return p.fail(tool, err, nil)
	}
	data := e.Result(maxLines).Fields()
	data["session_id"] = e.SessionID
	if e.Pending != "" {
		data["pending"] = e.Pending
	}
	if err != nil {
		return p.fail(tool, err, data)
	}
	return types.OK(data)
}

func (p *Provider) sessionExec(ctx context.Context, params map[string]interface{}) *types.Result {
	id, err := getString(params, "session_id", true)
	if err != nil {
		return p.fail("session_exec", err, nil)
	}
	command, err := getString(params, "command", true)
	if err != nil {
		return p.fail("session_exec", err, nil)
	}
	timeout, err := getSeconds(params, "timeout")
	if err != nil {
		return p.fail("session_exec", err, nil)
	}
	maxLines, err := p.tailSize(params)
	if err != nil {
		return p.fail("session_exec", err, nil)
	}

	p.logger.Info("Session exec", zap.String("session_id", id), zap.String("command", command))
	e, err := p.sessions.Exec(ctx, id, command, timeout)
	return p.execution("session_exec", e, err, maxLines)
}

func (p *Provider) sessionSend(ctx context.Context, params map[string]interface{}) *types.Result {
	id, err := getString(params, "session_id", true)
	if err != nil {
		return p.fail("session_send", err, nil)
	}
	input, err := getString(params, "input", false)
	if err != nil {
		return p.fail("session_send", err, nil)
	}
	idle, err := getSeconds(params, "idle_timeout")
	if err != nil {
		return p.fail("session_send", err, nil)
	}
	maxLines, err := p.tailSize(params)
	if err != nil {
		return p.fail("session_send", err, nil)
	}

	e, err := p.sessions.Send(ctx, id, input, idle)
	return p.execution("session_send", e, err, maxLines)
}

func (p *Provider) listSessions(_ context.Context, _ map[string]interface{}) *types.Result {
	list := p.sessions.List()
	return types.OK(map[string]interface{}{
		"sessions": list,
		"count":    len(list),
	})
}

func (p *Provider) closeSession(ctx context.Context, params map[string]interface{}) *types.Result {
	id, err := getString(params, "session_id", true)
	if err != nil {
		return p.fail("close_session", err, nil)
	}

	p.logger.Info("Closing session", zap.String("session_id", id))
	if err := p.sessions.Close(ctx, id); err != nil {
		return p.fail("close_session", err, nil)
	}
	return types.OK(map[string]interface{}{
		"session_id": id,
		"closed":     true,
	})
}

// isNotFound reports whether err means the id is unknown to a registry.
func isNotFound(err error) bool {
	return errors.Is(err, errs.ErrJobNotFound) || errors.Is(err, errs.ErrSessionNotFound)
}
