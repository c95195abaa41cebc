// Package component defines the lifecycle contract shared by every piece of
// process infrastructure (servers, registry clients, databases, upstream
// pools) and a registry that starts them in order and stops them in reverse.
package component
