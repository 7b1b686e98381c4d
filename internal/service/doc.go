// Package service contains the application-specific use cases and business
// logic. It orchestrates interactions between domain objects, the durable
// store, the message broker, the notification cache and the push hub.
//
// The notification orchestrator in this package is the only component with
// pipeline business rules: message templates, fan-out triggers, and the
// consistency repair performed on read. It is also the error boundary that
// converts lower-layer faults into boolean success/failure results for the
// API layer - a broker or cache fault is logged and tolerated once the
// durable write has succeeded, while a durable-store fault always fails the
// whole operation.
package service
