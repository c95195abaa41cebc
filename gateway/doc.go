// Package gateway is the HTTP front of the platform. Each route forwards
// its JSON payload to one method of one upstream service and returns the
// upstream's answer unchanged.
//
// Failures are translated once, at this boundary: application errors keep
// the upstream's status and message, while any failure to reach the
// upstream becomes a single 503 that reveals nothing about addresses or
// retries.
package gateway
