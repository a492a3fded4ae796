// Package middleware provides HTTP middleware for the command service.
//
// Middleware stack includes:
//   - RequestID: Tags each request with an X-Request-ID and logs it via zap
//   - RateLimit: Per-client token bucket rate limiting with stale eviction
//   - CORS: Cross-origin resource sharing for explicitly listed origins
//
// Example Usage:
//
//	router.Use(middleware.RequestID(logger))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
