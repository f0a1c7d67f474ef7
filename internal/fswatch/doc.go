// Package fswatch observes a working tree with fsnotify and reports debounced batches
// of saved, imported and deleted paths.
//
// Only the top of the .git directory is watched: writes to HEAD request a
// repository reload and writes to index mark the whole repository dirty. Batches are
// delivered on a channel so the consumer can apply them on its own goroutine.
package fswatch
