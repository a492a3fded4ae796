// Package logging provides structured logging using uber/zap.
//
// Two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Logs are written to stderr by default. Components take a *zap.Logger;
// use Named to give each registry its own logger name.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	jobs := job.NewManager(cfg, filter, logger.Named("jobs"), metrics)
//	logger.Info("Server starting", zap.String("addr", addr))
package logging
