// Package server wires configuration, the job and session registries, the
// shell tool provider and the HTTP adapter into one process.
//
// Startup order:
//   - Prometheus registry and metrics
//   - Safety filter (builtin rules plus the optional policy file)
//   - Job and session registries
//   - gin router with request id, metrics, CORS and rate limit middleware
//   - Janitor cron that applies retention every minute
//
// Shutdown stops the janitor, drains HTTP, then kills every job and session
// in parallel.
package server
