// Package progress aggregates per-file conversion progress into batch
// snapshots and provides the rate limiter and log sampler used to keep
// progress output readable.
//
// The aggregator is meant to be owned by a single consumer goroutine that
// drains progress events; any goroutine may read snapshots.
package progress
