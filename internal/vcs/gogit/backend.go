package gogit

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/format/index"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/temirov/gixcore/internal/vcs"
)

const (
	gitDirectoryNameConstant     = ".git"
	logMessageUnstageWithoutHead = "repository has no commits, removing paths from the index instead"
	logFieldRepositoryConstant   = "repository"
	logFieldPathsConstant        = "paths"
)

// Backend implements vcs.Backend with go-git. It needs no git executable.
type Backend struct {
	logger *zap.Logger
}

type repositoryHandle struct {
	rootPath   string
	mutex      sync.Mutex
	repository *git.Repository
}

func (handle *repositoryHandle) Path() string {
	return handle.rootPath
}

// NewBackend builds a go-git backend. A nil logger is replaced with a no-op logger.
func NewBackend(logger *zap.Logger) *Backend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{logger: logger}
}

// IsValidRepository reports whether path contains a .git entry.
func (backend *Backend) IsValidRepository(path string) bool {
	if len(strings.TrimSpace(path)) == 0 {
		return false
	}
	_, statError := os.Stat(filepath.Join(path, gitDirectoryNameConstant))
	return statError == nil
}

// OpenRepository opens the repository containing path.
func (backend *Backend) OpenRepository(executionContext context.Context, path string) (vcs.RepositoryHandle, error) {
	if contextError := executionContext.Err(); contextError != nil {
		return nil, vcs.NewBackendError(vcs.OperationOpen, nil, contextError)
	}
	repository, openError := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if openError != nil {
		return nil, vcs.NewBackendError(vcs.OperationOpen, nil, openError)
	}
	worktree, worktreeError := repository.Worktree()
	if worktreeError != nil {
		return nil, vcs.NewBackendError(vcs.OperationOpen, nil, worktreeError)
	}
	return &repositoryHandle{rootPath: filepath.Clean(worktree.Filesystem.Root()), repository: repository}, nil
}

// Close releases the repository. Closing twice is harmless.
func (backend *Backend) Close(handle vcs.RepositoryHandle) error {
	typedHandle, isOwnHandle := handle.(*repositoryHandle)
	if !isOwnHandle {
		return vcs.ErrRepositoryNotOpen
	}
	typedHandle.mutex.Lock()
	defer typedHandle.mutex.Unlock()
	typedHandle.repository = nil
	return nil
}

// RetrieveStatus reads the status of the whole working tree. go-git omits ignored paths, so IncludeIgnored has no effect.
func (backend *Backend) RetrieveStatus(executionContext context.Context, handle vcs.RepositoryHandle, options vcs.StatusOptions) (*vcs.StatusSnapshot, error) {
	entries, statusError := backend.readStatus(executionContext, handle, options.DetectRenames)
	if statusError != nil {
		return nil, vcs.NewBackendError(vcs.OperationStatus, nil, statusError)
	}
	return vcs.NewStatusSnapshot(entries), nil
}

// RetrievePathsStatus reads the status below each pathspec from a single worktree scan.
func (backend *Backend) RetrievePathsStatus(executionContext context.Context, handle vcs.RepositoryHandle, paths []string) ([]vcs.StatusEntry, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	entries, statusError := backend.readStatus(executionContext, handle, false)
	if statusError != nil {
		return nil, vcs.NewBackendError(vcs.OperationPathStatus, paths, statusError)
	}
	return vcs.CompleteWithinRoot(handle.Path(), paths, vcs.FilterWithin(entries, paths)), nil
}

// Stage records each path in the index. Paths missing from disk are staged as deletions.
func (backend *Backend) Stage(executionContext context.Context, handle vcs.RepositoryHandle, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	typedHandle, repository, handleError := backend.resolveHandle(handle)
	if handleError != nil {
		return vcs.NewBackendError(vcs.OperationStage, paths, handleError)
	}
	defer typedHandle.mutex.Unlock()

	worktree, worktreeError := repository.Worktree()
	if worktreeError != nil {
		return vcs.NewBackendError(vcs.OperationStage, paths, worktreeError)
	}

	var combinedError error
	for _, path := range paths {
		if contextError := executionContext.Err(); contextError != nil {
			combinedError = multierr.Append(combinedError, contextError)
			break
		}
		if _, statError := os.Lstat(filepath.Join(typedHandle.rootPath, filepath.FromSlash(path))); errors.Is(statError, os.ErrNotExist) {
			_, removeError := worktree.Remove(path)
			combinedError = multierr.Append(combinedError, removeError)
			continue
		}
		_, addError := worktree.Add(path)
		combinedError = multierr.Append(combinedError, addError)
	}
	if combinedError != nil {
		return vcs.NewBackendError(vcs.OperationStage, paths, combinedError)
	}
	return nil
}

// Unstage resets the index entries of paths to HEAD. Before the first commit the paths are removed from the index.
func (backend *Backend) Unstage(executionContext context.Context, handle vcs.RepositoryHandle, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	typedHandle, repository, handleError := backend.resolveHandle(handle)
	if handleError != nil {
		return vcs.NewBackendError(vcs.OperationUnstage, paths, handleError)
	}
	defer typedHandle.mutex.Unlock()

	if contextError := executionContext.Err(); contextError != nil {
		return vcs.NewBackendError(vcs.OperationUnstage, paths, contextError)
	}

	if _, headError := repository.Head(); errors.Is(headError, plumbing.ErrReferenceNotFound) {
		backend.logger.Debug(logMessageUnstageWithoutHead, zap.String(logFieldRepositoryConstant, typedHandle.rootPath), zap.Strings(logFieldPathsConstant, paths))
		if removeError := removeFromIndex(repository, paths); removeError != nil {
			return vcs.NewBackendError(vcs.OperationUnstage, paths, removeError)
		}
		return nil
	}

	worktree, worktreeError := repository.Worktree()
	if worktreeError != nil {
		return vcs.NewBackendError(vcs.OperationUnstage, paths, worktreeError)
	}
	if restoreError := worktree.Restore(&git.RestoreOptions{Staged: true, Files: paths}); restoreError != nil {
		return vcs.NewBackendError(vcs.OperationUnstage, paths, restoreError)
	}
	return nil
}

// CheckoutPaths restores paths in both the index and the working tree from HEAD.
// go-git always overwrites local changes, so options.Force is implied.
func (backend *Backend) CheckoutPaths(executionContext context.Context, handle vcs.RepositoryHandle, paths []string, options vcs.CheckoutOptions) error {
	if len(paths) == 0 {
		return nil
	}
	typedHandle, repository, handleError := backend.resolveHandle(handle)
	if handleError != nil {
		return vcs.NewBackendError(vcs.OperationCheckout, paths, handleError)
	}
	defer typedHandle.mutex.Unlock()

	if contextError := executionContext.Err(); contextError != nil {
		return vcs.NewBackendError(vcs.OperationCheckout, paths, contextError)
	}
	worktree, worktreeError := repository.Worktree()
	if worktreeError != nil {
		return vcs.NewBackendError(vcs.OperationCheckout, paths, worktreeError)
	}
	if restoreError := worktree.Restore(&git.RestoreOptions{Staged: true, Worktree: true, Files: paths}); restoreError != nil {
		return vcs.NewBackendError(vcs.OperationCheckout, paths, restoreError)
	}
	return nil
}

// resolveHandle locks the handle and returns its repository. Callers unlock on success.
func (backend *Backend) resolveHandle(handle vcs.RepositoryHandle) (*repositoryHandle, *git.Repository, error) {
	typedHandle, isOwnHandle := handle.(*repositoryHandle)
	if !isOwnHandle || typedHandle == nil {
		return nil, nil, vcs.ErrRepositoryNotOpen
	}
	typedHandle.mutex.Lock()
	if typedHandle.repository == nil {
		typedHandle.mutex.Unlock()
		return nil, nil, vcs.ErrRepositoryNotOpen
	}
	return typedHandle, typedHandle.repository, nil
}

func (backend *Backend) readStatus(executionContext context.Context, handle vcs.RepositoryHandle, detectRenames bool) ([]vcs.StatusEntry, error) {
	typedHandle, repository, handleError := backend.resolveHandle(handle)
	if handleError != nil {
		return nil, handleError
	}
	defer typedHandle.mutex.Unlock()

	if contextError := executionContext.Err(); contextError != nil {
		return nil, contextError
	}
	worktree, worktreeError := repository.Worktree()
	if worktreeError != nil {
		return nil, worktreeError
	}
	worktreeStatus, statusError := worktree.Status()
	if statusError != nil {
		return nil, statusError
	}
	if contextError := executionContext.Err(); contextError != nil {
		return nil, contextError
	}
	return convertStatus(worktreeStatus, detectRenames), nil
}

func removeFromIndex(repository *git.Repository, paths []string) error {
	repositoryIndex, indexError := repository.Storer.Index()
	if indexError != nil {
		return indexError
	}
	for _, path := range paths {
		if _, removeError := repositoryIndex.Remove(path); removeError != nil && !errors.Is(removeError, index.ErrEntryNotFound) {
			return removeError
		}
	}
	return repository.Storer.SetIndex(repositoryIndex)
}
