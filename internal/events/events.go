package events

import (
	"github.com/google/uuid"

	"github.com/temirov/gixcore/internal/vcs"
)

// OperationKind names an index or working tree operation.
type OperationKind string

// Supported operation kinds.
const (
	OperationKindStage   OperationKind = "stage"
	OperationKindUnstage OperationKind = "unstage"
	OperationKindRevert  OperationKind = "revert"
)

// RepositoryLoaded is emitted after a repository handle was (re)opened.
type RepositoryLoaded struct {
	Handle vcs.RepositoryHandle
}

// UpdateStarted is emitted before a rescan begins.
type UpdateStarted struct {
	Full bool
}

// UpdateFinished is emitted after every rescan attempt, successful or not.
// Paths is nil for a full rescan. Err carries the failure, if any.
type UpdateFinished struct {
	Snapshot *vcs.StatusSnapshot
	Paths    []string
	Err      error
}

// OperationSummary describes a completed asynchronous operation.
type OperationSummary struct {
	Identifier uuid.UUID
	Kind       OperationKind
	Paths      []string
	Err        error
}

// AsyncOperationDone is emitted on the main context once an asynchronous operation completed.
type AsyncOperationDone struct {
	Operation OperationSummary
}

// Observer receives core notifications. Calls arrive on the main context.
type Observer interface {
	RepositoryLoaded(event RepositoryLoaded)
	UpdateStarted(event UpdateStarted)
	UpdateFinished(event UpdateFinished)
	AsyncOperationDone(event AsyncOperationDone)
}

// NoopObserver discards every notification.
type NoopObserver struct{}

// RepositoryLoaded implements Observer.
func (NoopObserver) RepositoryLoaded(RepositoryLoaded) {}

// UpdateStarted implements Observer.
func (NoopObserver) UpdateStarted(UpdateStarted) {}

// UpdateFinished implements Observer.
func (NoopObserver) UpdateFinished(UpdateFinished) {}

// AsyncOperationDone implements Observer.
func (NoopObserver) AsyncOperationDone(AsyncOperationDone) {}
