// Package gixcore assembles the status core: backend, settings, task queue, dirty
// tracker, status cache, scheduler, operation registry, postprocessor and the
// notification bus. NewCore is the only place where these parts are wired together.
//
// Every Core method must be called from one goroutine, the main context.
package gixcore
