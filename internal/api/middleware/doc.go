// Package middleware provides the gin middleware stack of the toolrc API.
//
// Middleware stack includes:
//   - Recovery: panic recovery with a JSON 500 response
//   - RequestID: X-Request-ID propagation
//   - Logger: one zap line per request
//   - CORS: cross-origin access for browser callers
//   - RateLimit: per-IP token bucket with idle eviction
//
// Example Usage:
//
//	router.Use(middleware.Recovery(logger), middleware.RequestID(), middleware.Logger(logger))
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
