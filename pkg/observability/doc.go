// Package observability provides structured logging, Prometheus metrics, and OpenTelemetry tracing.
//
// # Overview
//
// This package centralizes observability infrastructure including JSON logging, metrics
// collection, health checks, and distributed tracing integration.
//
// # Structured Logging
//
// Create logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.Info("Server started", "port", 8080)
//
// Context-aware logging:
//
//	logger.WithField("request_id", reqID).Error("Request failed", err)
//
// # Prometheus Metrics
//
// Initialize metrics:
//
//	metrics := observability.NewMetrics(prometheus.NewRegistry())
//	metrics.HTTPRequestsTotal.WithLabelValues("GET", "/session", "200").Inc()
//	metrics.LoginsTotal.WithLabelValues("success").Inc()
//
// Registry metrics:
//
//	metrics.RegisteredIdPs.Set(float64(len(snapshot)))
//	metrics.SigningCertDaysLeft.Set(float64(daysLeft))
//
// # Health Checks
//
// Configure health checker:
//
//	checker := observability.NewHealthChecker(primary, replica, idpCount)
//	status := checker.Check(ctx)
//	fmt.Printf("Status: %v\n", status.Status)
//
// # OpenTelemetry
//
// Initialize tracing:
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:        true,
//		ServiceName:    "ingresso",
//		ServiceVersion: "v1.0.0",
//		Endpoint:       "otel-collector:4317",
//	}, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
//
// # Related Packages
//
//   - pkg/config: Observability configuration
//   - pkg/middleware: Request logging middleware
package observability
