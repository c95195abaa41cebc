// Package bootstrap runs a service process around a typed configuration.
//
// NewApp validates the config and sets up logging. Run starts the
// registered components in order, runs OnConfigure callbacks, blocks until
// SIGINT or SIGTERM and then stops components in reverse order.
package bootstrap
