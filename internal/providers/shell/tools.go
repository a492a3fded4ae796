package shell

import "github.com/GriffinCanCode/agentsh/internal/shared/types"

var (
	commandParams = []types.Parameter{
		{Name: "command", Type: "string", Description: "Shell command line", Required: true},
		{Name: "cwd", Type: "string", Description: "Working directory (default: service directory)", Required: false},
		{Name: "env", Type: "object", Description: "Extra environment variables", Required: false},
		{Name: "timeout", Type: "number", Description: "Timeout in seconds (capped at 3600)", Required: false},
	}
	tailParam = types.Parameter{
		Name: "max_output_lines", Type: "number", Description: "Tail window size", Required: false,
	}
)

func tools() []types.Tool {
	return []types.Tool{
		{
			ID:          "run_command",
			Name:        "Run Command",
			Description: "Run a command to completion and return windowed output",
			Parameters:  append(append([]types.Parameter{}, commandParams...), tailParam),
			Returns:     "object",
		},
		{
			ID:          "start_command",
			Name:        "Start Command",
			Description: "Start a background command and return its job id",
			Parameters:  commandParams,
			Returns:     "object",
		},
		{
			ID:          "wait_command",
			Name:        "Wait Command",
			Description: "Wait for a background command to finish",
			Parameters: []types.Parameter{
				{Name: "job_id", Type: "string", Description: "Job identifier", Required: true},
				{Name: "timeout", Type: "number", Description: "Seconds to wait (default: until done)", Required: false},
				tailParam,
			},
			Returns: "object",
		},
		{
			ID:          "get_status",
			Name:        "Get Status",
			Description: "Snapshot a job without waiting",
			Parameters: []types.Parameter{
				{Name: "job_id", Type: "string", Description: "Job identifier", Required: true},
			},
			Returns: "object",
		},
		{
			ID:          "kill_command",
			Name:        "Kill Command",
			Description: "Terminate a job and its process group",
			Parameters: []types.Parameter{
				{Name: "job_id", Type: "string", Description: "Job identifier", Required: true},
			},
			Returns: "object",
		},
		{
			ID:          "list_commands",
			Name:        "List Commands",
			Description: "List known jobs, oldest first",
			Parameters:  []types.Parameter{},
			Returns:     "array",
		},
		{
			ID:          "get_output",
			Name:        "Get Output",
			Description: "Page through retained output of a job or session",
			Parameters: []types.Parameter{
				{Name: "id", Type: "string", Description: "Job or session identifier", Required: true},
				{Name: "start_line", Type: "number", Description: "First line, zero-based (default: 0)", Required: false},
				{Name: "end_line", Type: "number", Description: "End line, exclusive (default: total)", Required: false},
			},
			Returns: "array",
		},
		{
			ID:          "create_session",
			Name:        "Create Session",
			Description: "Open a persistent shell in a pseudo-terminal",
			Parameters: []types.Parameter{
				{Name: "session_id", Type: "string", Description: "Caller-chosen session identifier", Required: true},
				{Name: "cwd", Type: "string", Description: "Initial working directory", Required: false},
				{Name: "env", Type: "object", Description: "Extra environment variables", Required: false},
			},
			Returns: "object",
		},
		{
			ID:          "session_exec",
			Name:        "Session Exec",
			Description: "Run a command in a session and wait for its exit code",
			Parameters: []types.Parameter{
				{Name: "session_id", Type: "string", Description: "Session identifier", Required: true},
				{Name: "command", Type: "string", Description: "Shell command line", Required: true},
				{Name: "timeout", Type: "number", Description: "Timeout in seconds", Required: false},
				tailParam,
			},
			Returns: "object",
		},
		{
			ID:          "session_send",
			Name:        "Session Send",
			Description: "Write raw input to a session and collect output until it goes quiet",
			Parameters: []types.Parameter{
				{Name: "session_id", Type: "string", Description: "Session identifier", Required: true},
				{Name: "input", Type: "string", Description: `Input bytes; \n \r \t \xNN escapes are decoded`, Required: false},
				{Name: "idle_timeout", Type: "number", Description: "Seconds of silence that end collection", Required: false},
				tailParam,
			},
			Returns: "object",
		},
		{
			ID:          "list_sessions",
			Name:        "List Sessions",
			Description: "List sessions, oldest first",
			Parameters:  []types.Parameter{},
			Returns:     "array",
		},
		{
			ID:          "close_session",
			Name:        "Close Session",
			Description: "Terminate a session and every process it started",
			Parameters: []types.Parameter{
				{Name: "session_id", Type: "string", Description: "Session identifier", Required: true},
			},
			Returns: "boolean",
		},
	}
}
