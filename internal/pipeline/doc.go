// Package pipeline runs a batch conversion: scan the input, drop duplicate
// sources, derive collision-free targets, then convert on a bounded worker
// pool while a single consumer aggregates progress.
//
// Per-file failures are recorded as outcomes and never abort the batch,
// except that a missing engine fails every remaining task without starting
// a process. Only setup problems (unreadable input, missing engine, an
// unwritable or locked output directory) are returned as errors.
package pipeline
