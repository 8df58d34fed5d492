// Package services assembles the front desk from configuration.
//
// Build selects the storage backend, starts or dials NATS, seeds the
// knowledge base and wires the router, help request registry, call sessions,
// desk and timeout sweeper. The returned Registry exposes each service and
// releases every resource it opened on Close.
package services
