package shell

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/agentsh/internal/domain/job"
	"github.com/GriffinCanCode/agentsh/internal/shared/errs"
	"github.com/GriffinCanCode/agentsh/internal/shared/types"
)

// commandRequest reads the parameters shared by run_command and
// start_command.
func commandRequest(params map[string]interface{}) (job.Request, error) {
	command, err := getString(params, "command", true)
	if err != nil {
		return job.Request{}, err
	}
	cwd, err := getString(params, "cwd", false)
	if err != nil {
		return job.Request{}, err
	}
	env, err := getEnv(params, "env")
	if err != nil {
		return job.Request{}, err
	}
	timeout, err := getSeconds(params, "timeout")
	if err != nil {
		return job.Request{}, err
	}
	return job.Request{Command: command, Dir: cwd, Env: env, Timeout: timeout}, nil
}

// finished shapes the result of a terminal job. A timed-out job is a
// failed call that still carries all captured output.
func (p *Provider) finished(tool string, j *job.Job, maxLines int) *types.Result {
	r := j.Result(maxLines)
	data := r.Fields()
	data["command"] = j.Command
	if j.Status() == job.StatusTimedOut {
		return p.fail(tool, fmt.Errorf("command exceeded %s: %w", j.Timeout, errs.ErrTimedOut), data)
	}
	return types.OK(data)
}

func (p *Provider) runCommand(ctx context.Context, params map[string]interface{}) *types.Result {
	req, err := commandRequest(params)
	if err != nil {
		return p.fail("run_command", err, nil)
	}
	maxLines, err := p.tailSize(params)
	if err != nil {
		return p.fail("run_command", err, nil)
	}

	p.logger.Info("Running command", zap.String("command", req.Command), zap.String("cwd", req.Dir))
	j, err := p.jobs.Run(ctx, req)
	if err != nil {
		return p.fail("run_command", err, nil)
	}
	return p.finished("run_command", j, maxLines)
}

func (p *Provider) startCommand(ctx context.Context, params map[string]interface{}) *types.Result {
	req, err := commandRequest(params)
	if err != nil {
		return p.fail("start_command", err, nil)
	}

	p.logger.Info("Starting background command", zap.String("command", req.Command), zap.String("cwd", req.Dir))
	j, err := p.jobs.Start(ctx, req)
	if err != nil {
		return p.fail("start_command", err, nil)
	}
	return types.OK(map[string]interface{}{
		"job_id":          j.ID,
		"command":         j.Command,
		"pid":             j.PID(),
		"status":          string(j.Status()),
		"timeout_seconds": j.Timeout.Seconds(),
		"deadline_at":     j.Deadline(),
	})
}

func (p *Provider) waitCommand(ctx context.Context, params map[string]interface{}) *types.Result {
	jobID, err := getString(params, "job_id", true)
	if err != nil {
		return p.fail("wait_command", err, nil)
	}
	timeout, err := getSeconds(params, "timeout")
	if err != nil {
		return p.fail("wait_command", err, nil)
	}
	maxLines, err := p.tailSize(params)
	if err != nil {
		return p.fail("wait_command", err, nil)
	}

	j, err := p.jobs.Wait(ctx, jobID, timeout)
	if err != nil {
		var data map[string]interface{}
		if j != nil {
			data = snapshotFields(j.Snapshot())
		}
		return p.fail("wait_command", err, data)
	}
	return p.finished("wait_command", j, maxLines)
}

func snapshotFields(s job.Snapshot) map[string]interface{} {
	data := map[string]interface{}{
		"job_id":          s.ID,
		"command":         s.Command,
		"status":          string(s.Status),
		"exit_code":       nil,
		"runtime_seconds": s.RuntimeSeconds,
		"started_at":      s.StartedAt,
		"tail_lines":      s.TailLines,
		"total_lines":     s.TotalLines,
	}
	if s.ExitCode != nil {
		data["exit_code"] = *s.ExitCode
	}
	if s.DeadlineAt != nil {
		data["deadline_at"] = *s.DeadlineAt
		data["remaining_seconds"] = *s.RemainingSeconds
	}
	return data
}

func (p *Provider) getStatus(_ context.Context, params map[string]interface{}) *types.Result {
	jobID, err := getString(params, "job_id", true)
	if err != nil {
		return p.fail("get_status", err, nil)
	}
	j, err := p.jobs.Get(jobID)
	if err != nil {
		return p.fail("get_status", err, nil)
	}
	return types.OK(snapshotFields(j.Snapshot()))
}

func (p *Provider) killCommand(ctx context.Context, params map[string]interface{}) *types.Result {
	jobID, err := getString(params, "job_id", true)
	if err != nil {
		return p.fail("kill_command", err, nil)
	}

	p.logger.Info("Killing command", zap.String("job_id", jobID))
	killed, err := p.jobs.Kill(ctx, jobID)
	if err != nil {
		return p.fail("kill_command", err, nil)
	}

	data := map[string]interface{}{
		"job_id": jobID,
		"killed": killed,
	}
	if j, err := p.jobs.Get(jobID); err == nil {
		snap := j.Snapshot()
		data["status"] = string(snap.Status)
		data["exit_code"] = nil
		if snap.ExitCode != nil {
			data["exit_code"] = *snap.ExitCode
		}
	}
	return types.OK(data)
}

func (p *Provider) listCommands(_ context.Context, _ map[string]interface{}) *types.Result {
	list := p.jobs.List()
	return types.OK(map[string]interface{}{
		"commands": list,
		"count":    len(list),
	})
}
