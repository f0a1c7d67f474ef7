// Package host drives the status core from a single goroutine: it ticks the scheduler
// on an interval and applies file-system batches between ticks.
package host
