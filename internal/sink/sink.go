package sink

import "context"

// Event is the flat document handed to a storage back-end. Keys are field
// names and values their data; back-ends decide how to serialise it (CSV
// row, JSON line, BSON document, Kafka message...).
type Event map[string]interface{}

// Sink is the persistence contract every writer relies on: append one
// event, then finalize once at the end of the run.
//
// Sinks are used from a single goroutine per run. Close flushes whatever is
// buffered and releases resources; it is called exactly once.
type Sink interface {
	// Write persists the provided event and returns an error if the operation
	// fails for any reason.
	Write(Event) error

	// Close flushes buffered data and releases the back-end.
	Close(ctx context.Context) error
}
