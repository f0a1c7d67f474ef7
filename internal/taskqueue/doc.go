// Package taskqueue runs work on worker goroutines and hands completions back to the main context.
//
// Workers never call completion callbacks themselves. A finished worker enqueues its
// callback as a main-context action, and the host drains one action per tick through
// Queue.DrainOne. An optional weighted semaphore serializes workers that share state.
package taskqueue
