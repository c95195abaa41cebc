// Package endpoint provides the system HTTP endpoints: /health, /alive and
// /metrics.
package endpoint
