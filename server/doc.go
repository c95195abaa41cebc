// Package server provides the HTTP server used at the gateway boundary and
// for the health endpoints of the backend services. It runs Gin behind an
// h2c handler and follows the component lifecycle.
//
// # Middleware
//
// ApplyMiddleware installs, in order: panic recovery, request id, CORS,
// Prometheus request metrics, a body size limit and request logging.
//
// # Endpoints
//
//   - /health: component health aggregation
//   - /alive: liveness
//   - /metrics: Prometheus metrics
package server
