// Package history keeps a local record of characteristic value changes.
//
// Every change event emitted by an accessory is stored as one row in the
// characteristic_history table: accessory, service, characteristic, the
// JSON-encoded value, the event source and the time it was observed. The
// record survives restarts and works without the time-series database.
//
// Writes are taken off the event path by Recorder, which queues events and
// persists them from a single worker goroutine. Old rows are removed by
// Recorder's pruning loop according to the configured retention.
package history
