// Package errors provides the application error type shared by the gateway
// and the backend services: a machine-readable code, a client-safe message,
// an HTTP status and a retryable flag.
package errors
