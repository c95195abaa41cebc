// Package discovery resolves a service name to a dialable endpoint.
//
// A Lookup asks the registry for every instance of a service and the status
// of each instance's health checks. A Selector then keeps only instances
// whose checks all pass and picks the first one in registry order.
//
// # Backends
//
//   - discovery/consul: HashiCorp Consul health API and agent registration
//   - discovery/static: in-memory instances for development and tests
//
// Backends register themselves by name; import them for side effects:
//
//	import _ "github.com/kbukum/bookingplatform/discovery/consul"
package discovery
