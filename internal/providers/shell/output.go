package shell

import (
	"context"
	"fmt"

	"github.com/GriffinCanCode/agentsh/internal/runtime/output"
	"github.com/GriffinCanCode/agentsh/internal/shared/errs"
	"github.com/GriffinCanCode/agentsh/internal/shared/types"
)

// lookup finds the buffer behind id, trying jobs before sessions.
func (p *Provider) lookup(id string) (*output.Buffer, error) {
	buf, err := p.jobs.Buffer(id)
	if err == nil {
		return buf, nil
	}
	if !isNotFound(err) {
		return nil, err
	}
	buf, err = p.sessions.Buffer(id)
	if err == nil {
		return buf, nil
	}
	if !isNotFound(err) {
		return nil, err
	}
	return nil, fmt.Errorf("no job or session %q: %w", id, errs.ErrJobNotFound)
}

// getOutput pages through retained lines. end_line is exclusive and defaults
// to the end of the output; a page never exceeds MaxPageLines.
func (p *Provider) getOutput(_ context.Context, params map[string]interface{}) *types.Result {
	id, err := getString(params, "id", true)
	if err != nil {
		return p.fail("get_output", err, nil)
	}
	buf, err := p.lookup(id)
	if err != nil {
		return p.fail("get_output", err, nil)
	}

	total := buf.Total()
	start, err := getInt(params, "start_line", 0)
	if err != nil {
		return p.fail("get_output", err, nil)
	}
	end, err := getInt(params, "end_line", total)
	if err != nil {
		return p.fail("get_output", err, nil)
	}
	capped := false
	if end-start > MaxPageLines {
		end = start + MaxPageLines
		capped = true
	}

	// first_available_line is the first retained line at or after start.
	firstAvailable := start
	gapFrom, gapTo := buf.Evicted()
	if start >= gapFrom && start < gapTo {
		firstAvailable = gapTo
	}

	data := map[string]interface{}{
		"id":                   id,
		"start_line":           start,
		"end_line":             end,
		"total_lines":          total,
		"first_available_line": firstAvailable,
		"capped":               capped,
	}
	if gapTo > gapFrom {
		data["evicted"] = []int{gapFrom, gapTo}
	}

	lines, err := buf.Range(start, end)
	if err != nil {
		return p.fail("get_output", err, data)
	}
	data["lines"] = lines
	data["has_more"] = end < total
	return types.OK(data)
}
