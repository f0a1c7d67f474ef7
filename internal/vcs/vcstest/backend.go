// Package vcstest provides an in-memory vcs.Backend for tests of the status core.
package vcstest

import (
	"context"
	"sort"
	"sync"

	"github.com/temirov/gixcore/internal/vcs"
)

// Call records one backend invocation.
type Call struct {
	Operation string
	Paths     []string
}

// StatusHook runs at the start of RetrieveStatus. A non-nil error is returned to the caller.
type StatusHook func(executionContext context.Context) error

type handle struct {
	path string
}

func (repositoryHandle *handle) Path() string {
	return repositoryHandle.path
}

var workdirToIndex = []struct {
	workdir vcs.StatusFlags
	index   vcs.StatusFlags
}{
	{vcs.StatusNewInWorkdir, vcs.StatusNewInIndex},
	{vcs.StatusModifiedInWorkdir, vcs.StatusModifiedInIndex},
	{vcs.StatusDeletedFromWorkdir, vcs.StatusDeletedFromIndex},
	{vcs.StatusRenamedInWorkdir, vcs.StatusRenamedInIndex},
	{vcs.StatusTypeChangeInWorkdir, vcs.StatusTypeChangeInIndex},
}

// Backend keeps per-path flags in memory and records every call. Safe for concurrent use.
type Backend struct {
	mutex      sync.Mutex
	valid      bool
	entries    map[string]vcs.StatusFlags
	calls      []Call
	callCounts map[string]int
	failures   map[string]error
	statusHook StatusHook
	openCount  int
	closeCount int
	liveHandle *handle
}

// NewBackend returns a valid repository holding entries.
func NewBackend(entries ...vcs.StatusEntry) *Backend {
	backend := &Backend{
		valid:      true,
		entries:    map[string]vcs.StatusFlags{},
		failures:   map[string]error{},
		callCounts: map[string]int{},
	}
	for _, entry := range entries {
		backend.entries[entry.Path] = entry.Flags
	}
	return backend
}

// SetValid controls IsValidRepository.
func (backend *Backend) SetValid(valid bool) {
	backend.mutex.Lock()
	defer backend.mutex.Unlock()
	backend.valid = valid
}

// SetEntry records flags for path. StatusUnmodified removes the path from full status output.
func (backend *Backend) SetEntry(path string, flags vcs.StatusFlags) {
	backend.mutex.Lock()
	defer backend.mutex.Unlock()
	backend.entries[path] = flags
}

// Flags returns the flags currently recorded for path.
func (backend *Backend) Flags(path string) vcs.StatusFlags {
	backend.mutex.Lock()
	defer backend.mutex.Unlock()
	return backend.entries[path]
}

// Fail makes operation return failure until Fail is called again with nil.
func (backend *Backend) Fail(operation string, failure error) {
	backend.mutex.Lock()
	defer backend.mutex.Unlock()
	if failure == nil {
		delete(backend.failures, operation)
		return
	}
	backend.failures[operation] = failure
}

// SetStatusHook installs hook for RetrieveStatus.
func (backend *Backend) SetStatusHook(hook StatusHook) {
	backend.mutex.Lock()
	defer backend.mutex.Unlock()
	backend.statusHook = hook
}

// Calls returns a copy of the recorded calls.
func (backend *Backend) Calls() []Call {
	backend.mutex.Lock()
	defer backend.mutex.Unlock()
	return append([]Call(nil), backend.calls...)
}

// Operations returns the operation names of the recorded calls.
func (backend *Backend) Operations() []string {
	calls := backend.Calls()
	operations := make([]string, 0, len(calls))
	for _, call := range calls {
		operations = append(operations, call.Operation)
	}
	return operations
}

// CountOf returns how many times operation was called.
func (backend *Backend) CountOf(operation string) int {
	backend.mutex.Lock()
	defer backend.mutex.Unlock()
	return backend.callCounts[operation]
}

// ResetCalls forgets recorded calls.
func (backend *Backend) ResetCalls() {
	backend.mutex.Lock()
	defer backend.mutex.Unlock()
	backend.calls = nil
	backend.callCounts = map[string]int{}
}

// OpenCount returns how many handles were opened.
func (backend *Backend) OpenCount() int {
	backend.mutex.Lock()
	defer backend.mutex.Unlock()
	return backend.openCount
}

// CloseCount returns how many handles were closed.
func (backend *Backend) CloseCount() int {
	backend.mutex.Lock()
	defer backend.mutex.Unlock()
	return backend.closeCount
}

func (backend *Backend) record(operation string, paths []string) error {
	backend.calls = append(backend.calls, Call{Operation: operation, Paths: append([]string(nil), paths...)})
	backend.callCounts[operation]++
	if failure := backend.failures[operation]; failure != nil {
		return vcs.NewBackendError(operation, paths, failure)
	}
	return nil
}

func (backend *Backend) checkHandle(repositoryHandle vcs.RepositoryHandle) error {
	typedHandle, isOwnHandle := repositoryHandle.(*handle)
	if !isOwnHandle || typedHandle != backend.liveHandle {
		return vcs.ErrRepositoryNotOpen
	}
	return nil
}

// IsValidRepository implements vcs.Backend.
func (backend *Backend) IsValidRepository(string) bool {
	backend.mutex.Lock()
	defer backend.mutex.Unlock()
	return backend.valid
}

// OpenRepository implements vcs.Backend.
func (backend *Backend) OpenRepository(_ context.Context, path string) (vcs.RepositoryHandle, error) {
	backend.mutex.Lock()
	defer backend.mutex.Unlock()
	if recordError := backend.record(vcs.OperationOpen, []string{path}); recordError != nil {
		return nil, recordError
	}
	backend.openCount++
	backend.liveHandle = &handle{path: path}
	return backend.liveHandle, nil
}

// Close implements vcs.Backend.
func (backend *Backend) Close(repositoryHandle vcs.RepositoryHandle) error {
	backend.mutex.Lock()
	defer backend.mutex.Unlock()
	if checkError := backend.checkHandle(repositoryHandle); checkError != nil {
		return checkError
	}
	backend.closeCount++
	backend.liveHandle = nil
	return nil
}

// RetrieveStatus implements vcs.Backend.
func (backend *Backend) RetrieveStatus(executionContext context.Context, repositoryHandle vcs.RepositoryHandle, _ vcs.StatusOptions) (*vcs.StatusSnapshot, error) {
	backend.mutex.Lock()
	hook := backend.statusHook
	backend.mutex.Unlock()
	if hook != nil {
		if hookError := hook(executionContext); hookError != nil {
			backend.mutex.Lock()
			backend.calls = append(backend.calls, Call{Operation: vcs.OperationStatus})
			backend.callCounts[vcs.OperationStatus]++
			backend.mutex.Unlock()
			return nil, hookError
		}
	}

	backend.mutex.Lock()
	defer backend.mutex.Unlock()
	if recordError := backend.record(vcs.OperationStatus, nil); recordError != nil {
		return nil, recordError
	}
	if checkError := backend.checkHandle(repositoryHandle); checkError != nil {
		return nil, checkError
	}
	entries := make([]vcs.StatusEntry, 0, len(backend.entries))
	for path, flags := range backend.entries {
		if flags == vcs.StatusUnmodified {
			continue
		}
		entries = append(entries, vcs.StatusEntry{Path: path, Flags: flags})
	}
	return vcs.NewStatusSnapshot(entries), nil
}

// RetrievePathsStatus implements vcs.Backend. A pathspec with no changed path below it is reported with its own recorded flags.
func (backend *Backend) RetrievePathsStatus(_ context.Context, repositoryHandle vcs.RepositoryHandle, paths []string) ([]vcs.StatusEntry, error) {
	backend.mutex.Lock()
	defer backend.mutex.Unlock()
	if recordError := backend.record(vcs.OperationPathStatus, paths); recordError != nil {
		return nil, recordError
	}
	if checkError := backend.checkHandle(repositoryHandle); checkError != nil {
		return nil, checkError
	}

	reported := map[string]struct{}{}
	entries := make([]vcs.StatusEntry, 0, len(paths))
	for _, pathspec := range paths {
		within := make([]string, 0)
		for path, flags := range backend.entries {
			if flags != vcs.StatusUnmodified && vcs.PathWithin(path, pathspec) {
				within = append(within, path)
			}
		}
		if len(within) == 0 {
			within = append(within, pathspec)
		}
		sort.Strings(within)
		for _, path := range within {
			if _, seen := reported[path]; seen {
				continue
			}
			reported[path] = struct{}{}
			entries = append(entries, vcs.StatusEntry{Path: path, Flags: backend.entries[path]})
		}
	}
	return entries, nil
}

// Stage implements vcs.Backend by moving workdir flags to their index counterparts.
func (backend *Backend) Stage(_ context.Context, repositoryHandle vcs.RepositoryHandle, paths []string) error {
	backend.mutex.Lock()
	defer backend.mutex.Unlock()
	if recordError := backend.record(vcs.OperationStage, paths); recordError != nil {
		return recordError
	}
	if checkError := backend.checkHandle(repositoryHandle); checkError != nil {
		return checkError
	}
	for _, path := range paths {
		flags := backend.entries[path]
		for _, mapping := range workdirToIndex {
			if flags.Has(mapping.workdir) {
				flags = (flags &^ mapping.workdir) | mapping.index
			}
		}
		backend.entries[path] = flags
	}
	return nil
}

// Unstage implements vcs.Backend by moving index flags back to the working tree.
func (backend *Backend) Unstage(_ context.Context, repositoryHandle vcs.RepositoryHandle, paths []string) error {
	backend.mutex.Lock()
	defer backend.mutex.Unlock()
	if recordError := backend.record(vcs.OperationUnstage, paths); recordError != nil {
		return recordError
	}
	if checkError := backend.checkHandle(repositoryHandle); checkError != nil {
		return checkError
	}
	for _, path := range paths {
		flags := backend.entries[path]
		for _, mapping := range workdirToIndex {
			if flags.Has(mapping.index) {
				flags = (flags &^ mapping.index) | mapping.workdir
			}
		}
		backend.entries[path] = flags
	}
	return nil
}

// CheckoutPaths implements vcs.Backend by discarding every change on paths.
func (backend *Backend) CheckoutPaths(_ context.Context, repositoryHandle vcs.RepositoryHandle, paths []string, _ vcs.CheckoutOptions) error {
	backend.mutex.Lock()
	defer backend.mutex.Unlock()
	if recordError := backend.record(vcs.OperationCheckout, paths); recordError != nil {
		return recordError
	}
	if checkError := backend.checkHandle(repositoryHandle); checkError != nil {
		return checkError
	}
	for _, path := range paths {
		delete(backend.entries, path)
	}
	return nil
}
