// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Components receive the embedded *zap.Logger; tests pass zap.NewNop().
// Correlation ids use the shared field constructors so every component
// writes the same keys:
//
//	logger.Debug("Evaluation failed",
//		logging.EvalID(evalID),
//		logging.Phase(string(res.Phase)),
//	)
//
// The level is atomic and shared by Named children, so SetLevel takes
// effect on a running server.
package logging
