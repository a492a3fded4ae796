// Package types provides the data structures shared by the tool layer and the
// HTTP adapter.
//
// Core Types:
//   - Service, Tool, Parameter: self-describing tool catalogue
//   - Result: standard tool result (success flag, data, error code)
//   - ExecutionResult: windowed outcome of one command
//   - ExecuteRequest: tool invocation envelope
//
// Example Usage:
//
//	res := types.ExecutionResult{Status: "exited", ExitCode: types.IntPtr(0)}
//	return types.OK(res.Fields()), nil
package types
