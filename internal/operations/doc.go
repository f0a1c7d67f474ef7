// Package operations tracks asynchronous stage and unstage requests so callers can ask
// whether a path is currently busy.
//
// Registry methods are called from the main context. Backend calls run on task queue
// workers; their completions return to the main context, where the covered paths are
// marked dirty and the operation is dropped from the registry.
package operations
