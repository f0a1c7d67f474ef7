// Package cli constructs the gixcore command-line interface, wiring the Cobra
// command hierarchy, configuration loader, structured logging and the status
// core. Commands read paths relative to the repository root.
package cli
