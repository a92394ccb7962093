// Package server provides the shared server context and the HTTP surface
// of officebot.
//
// # Key Components
//
// ServerContext carries the root context, instrumentation and the inbound
// message handler shared by the chat transports. Its context is cancelled on
// Shutdown, which ends every running meeting intake flow.
//
// HTTPServer serves:
//   - GET /callback: completes the Google authorization code grant
//   - /healthz, /readyz, /healthz/detailed: probes; readiness pings the database
//
// Every request is counted by MetricsMiddleware. MetricsServer exposes the
// Prometheus registry on a dedicated port.
package server
