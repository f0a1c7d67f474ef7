// Package statuscache holds the last known repository status and merges rescans into it.
//
// A full rescan replaces the snapshot. A path-scoped rescan replaces only the
// requested entries in place, unless no snapshot exists yet, in which case it
// falls back to a full rescan.
package statuscache
