// Package instrumentation provides OpenTelemetry metrics for the pepper
// auth service, exported through a Prometheus reader.
//
// The Provider owns the meter provider lifecycle; the Metrics recorder it
// hands out is nil-safe, so call sites never have to check whether
// instrumentation is enabled. Metrics are scraped from the dedicated
// metrics server (see internal/server).
//
// Cardinality is kept deliberately low: auth operations are labeled only by
// result, HTTP requests by method, route template, and status code. User
// identifiers never become metric labels unless detailed labels are
// explicitly enabled.
package instrumentation
