// Package scheduler implements the per-tick state machine that keeps the cached
// repository status current.
//
// The host calls Scheduler.Tick once per iteration of its main loop. Each tick
// derives an UpdateStatus, and when the host is ready and the lazy-mode gate
// allows it, runs a full rescan if the whole repository is dirty, or a
// path-scoped rescan over the queued paths otherwise. Full rescans run on a
// worker goroutine when status threading is enabled; their completion is
// delivered back to the main context through the task queue.
//
// A Scheduler is owned by the main context and is not safe for concurrent use.
package scheduler
