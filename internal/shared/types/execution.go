package types

// Status values shared by jobs and session commands.
const (
	StatusRunning  = "running"
	StatusExited   = "exited"
	StatusKilled   = "killed"
	StatusTimedOut = "timed_out"
)

// ExecutionResult is the windowed outcome of one command.
type ExecutionResult struct {
	ID               string   `json:"id,omitempty"`
	ExitCode         *int     `json:"exit_code"`
	Status           string   `json:"status"`
	DurationSeconds  float64  `json:"duration_seconds"`
	OutputHead       []string `json:"output_head"`
	OutputTail       []string `json:"output_tail"`
	OutputErrorLines []string `json:"output_error_lines"`
	TotalLines       int      `json:"total_lines"`
	Truncated        bool     `json:"truncated"`
	Windowed         bool     `json:"windowed"`
	TimedOut         bool     `json:"timed_out"`
}

// Fields flattens the result into tool result data.
func (r ExecutionResult) Fields() map[string]interface{} {
	data := map[string]interface{}{
		"exit_code":          nil,
		"status":             r.Status,
		"duration_seconds":   r.DurationSeconds,
		"output_head":        r.OutputHead,
		"output_tail":        r.OutputTail,
		"output_error_lines": r.OutputErrorLines,
		"total_lines":        r.TotalLines,
		"truncated":          r.Truncated,
		"windowed":           r.Windowed,
		"timed_out":          r.TimedOut,
	}
	if r.ID != "" {
		data["id"] = r.ID
	}
	if r.ExitCode != nil {
		data["exit_code"] = *r.ExitCode
	}
	return data
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }
