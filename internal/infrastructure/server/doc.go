// Package server wires the toolrc service together.
//
// Server Lifecycle:
//  1. Load configuration from environment/flags
//  2. Initialize logger, metrics and tracer
//  3. Load the tool catalog
//  4. Start the sandbox
//  5. Setup HTTP routes, middleware and the /events WebSocket endpoint
//  6. Serve until the context is cancelled
//  7. Disconnect WebSocket clients, drain HTTP, destroy the sandbox
package server
