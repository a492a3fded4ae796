// Package main is the entry point of agentsh, an HTTP service that runs
// shell commands and persistent terminal sessions on behalf of an agent.
//
// The server provides:
//   - One-off and background commands with windowed output
//   - Persistent bash sessions in pseudo-terminals
//   - A safety filter that rejects destructive commands before launch
//   - Prometheus metrics and rate limiting
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - Defaults for local use
//
// Usage:
//
//	# Listen on localhost:8765
//	./agentsh
//
//	# Development mode (colored logs, debug level)
//	./agentsh --dev --log-level debug
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown; every job and session is killed
package main
