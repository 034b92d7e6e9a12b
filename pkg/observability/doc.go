// Package observability bundles the operational concerns of the plugin
// directory service: structured logging, Prometheus metrics, health and
// readiness probes over the storage backends, OpenTelemetry initialization,
// and graceful shutdown coordination.
//
// The Logger here is the server-lifecycle logger; request-scoped service
// logging uses logrus and lives with the services themselves.
package observability
