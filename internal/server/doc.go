// Package server exposes the auth orchestrator over HTTP.
//
// The router is deliberately thin: each handler parses untrusted input,
// calls exactly one orchestrator operation, and maps the typed errors to
// status codes. Invalid state and provider rejections become 400, missing
// sessions 404, configuration problems 500; status checks always answer
// 200. Token material never appears in a response body.
//
// Prometheus metrics are served by a separate MetricsServer on its own
// port, and /healthz and /readyz back Kubernetes probes.
package server
