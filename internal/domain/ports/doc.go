// Package ports defines the interfaces that adapters implement so that the
// application services can be tested without Redis, Kafka, SMTP or a bus.
package ports
