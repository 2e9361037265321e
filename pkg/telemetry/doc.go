// Package telemetry provides observability for the LeadForge engine:
// structured logging (zerolog), Prometheus metrics, OpenTelemetry tracing,
// and the buffered activity publisher that fans operator-facing engine
// activity out to subscribers such as the persistent activity log.
package telemetry
