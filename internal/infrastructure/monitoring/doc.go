/*
Package monitoring provides metrics collection for the evaluation service.

# Overview

Metrics are Prometheus collectors registered on a private registry, so
several collectors can coexist in one process (tests create one each).

# Features

- HTTP request metrics (latency, throughput, size)
- Evaluation metrics by outcome and failing phase
- Sandbox readiness and in-flight evaluations
- Bridge and hub client request counts
- WebSocket connection metrics

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	timer := monitoring.NewTimer(metrics)
	// ... evaluate ...
	timer.Stop(result.Success, string(result.Phase))
*/
package monitoring
