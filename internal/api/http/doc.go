// Package http exposes the shell tools over HTTP with gin.
//
// Routes:
//   - POST /tools/:name   run a tool; the body is its parameter object
//   - POST /execute       run a tool from {"tool": ..., "params": {...}}
//   - GET  /tools         tool catalogue
//   - GET  /health        liveness plus running jobs and active sessions
//   - GET  /metrics       Prometheus exposition
//
// Tool failures are 200 responses whose body has success=false and a stable
// error code. Malformed bodies are 400 and unknown tools 404.
package http
