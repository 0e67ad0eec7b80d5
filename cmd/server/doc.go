// Package main is the entry point of the toolrc server.
//
// The server evaluates tool plugins in a sandboxed JavaScript context and
// exposes them over HTTP and over the /events WebSocket bridge.
//
// Configuration:
//   - Environment variables (12-factor), optionally from .env
//   - CLI flags (override env vars)
//   - Defaults for development
//
// Usage:
//
//	# Production mode
//	./server -port 9573 -tools ./tools
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
