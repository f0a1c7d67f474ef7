// Package dirty accumulates repository paths that need a status refresh.
//
// Tracker is plain bookkeeping owned by the main context: it performs no I/O
// and is not safe for concurrent use.
package dirty
