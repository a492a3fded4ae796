/*
Package monitoring provides Prometheus metrics for the execution service.

# Overview

Collectors cover the HTTP adapter, tool calls, the job and session
registries, the safety filter and output volume. They are registered on a
caller-supplied registerer so tests can use an isolated registry.

# Usage

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)

	router.Use(monitoring.Middleware(metrics))

	timer := monitoring.NewTimer(metrics, "run_command")
	// ... dispatch ...
	timer.Stop("success")

# Metrics Endpoint

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

All Record/Set methods are safe on a nil *Metrics, which disables collection.
*/
package monitoring
