package gitcli

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/temirov/gixcore/internal/execshell"
	"github.com/temirov/gixcore/internal/vcs"
)

const (
	gitDirectoryNameConstant         = ".git"
	gitStatusSubcommandConstant      = "status"
	gitPorcelainFlagConstant         = "--porcelain=v2"
	gitNullTerminatedFlagConstant    = "-z"
	gitUntrackedAllFlagConstant      = "--untracked-files=all"
	gitIgnoredMatchingFlagConstant   = "--ignored=matching"
	gitIgnoredNoFlagConstant         = "--ignored=no"
	gitFindRenamesFlagConstant       = "--find-renames"
	gitNoRenamesFlagConstant         = "--no-renames"
	gitAddSubcommandConstant         = "add"
	gitAllFlagConstant               = "--all"
	gitResetSubcommandConstant       = "reset"
	gitQuietFlagConstant             = "--quiet"
	gitRemoveSubcommandConstant      = "rm"
	gitCachedFlagConstant            = "--cached"
	gitRecursiveFlagConstant         = "-r"
	gitIgnoreUnmatchFlagConstant     = "--ignore-unmatch"
	gitCheckoutSubcommandConstant    = "checkout"
	gitForceFlagConstant             = "--force"
	gitRevParseSubcommandConstant    = "rev-parse"
	gitShowTopLevelFlagConstant      = "--show-toplevel"
	gitVerifyFlagConstant            = "--verify"
	gitHeadReferenceConstant         = "HEAD"
	gitPathSeparatorArgumentConstant = "--"
	gitOptionalLocksVariableConstant = "GIT_OPTIONAL_LOCKS"
	gitOptionalLocksDisabledConstant = "0"
	logMessageUnstageWithoutHead     = "repository has no commits, removing paths from the index instead"
	logFieldRepositoryConstant       = "repository"
	logFieldPathsConstant            = "paths"
	executorNotConfiguredMessage     = "git executor not configured"
)

// ErrExecutorNotConfigured indicates that the backend was created without a git executor.
var ErrExecutorNotConfigured = errors.New(executorNotConfiguredMessage)

// Dependencies configures the git CLI backend.
type Dependencies struct {
	Logger   *zap.Logger
	Executor execshell.GitExecutor
}

// Backend implements vcs.Backend by running the git executable.
// Commands writing the index run one at a time per working tree.
type Backend struct {
	logger          *zap.Logger
	executor        execshell.GitExecutor
	indexLocksMutex sync.Mutex
	indexLocks      map[string]*sync.Mutex
}

type repositoryHandle struct {
	rootPath string
	closed   atomic.Bool
}

func (handle *repositoryHandle) Path() string {
	return handle.rootPath
}

// NewBackend validates dependencies and builds a Backend.
func NewBackend(dependencies Dependencies) (*Backend, error) {
	if dependencies.Executor == nil {
		return nil, ErrExecutorNotConfigured
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{logger: logger, executor: dependencies.Executor, indexLocks: map[string]*sync.Mutex{}}, nil
}

// IsValidRepository reports whether path contains a .git directory or worktree link file.
func (backend *Backend) IsValidRepository(path string) bool {
	if len(strings.TrimSpace(path)) == 0 {
		return false
	}
	_, statError := os.Stat(filepath.Join(path, gitDirectoryNameConstant))
	return statError == nil
}

// OpenRepository resolves the working tree root of path.
func (backend *Backend) OpenRepository(executionContext context.Context, path string) (vcs.RepositoryHandle, error) {
	executionResult, executionError := backend.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitRevParseSubcommandConstant, gitShowTopLevelFlagConstant},
		WorkingDirectory: path,
	})
	if executionError != nil {
		return nil, vcs.NewBackendError(vcs.OperationOpen, nil, executionError)
	}
	rootPath := strings.TrimSpace(executionResult.StandardOutput)
	if len(rootPath) == 0 {
		rootPath = path
	}
	return &repositoryHandle{rootPath: filepath.Clean(rootPath)}, nil
}

// Close invalidates the handle. Closing twice is harmless.
func (backend *Backend) Close(handle vcs.RepositoryHandle) error {
	typedHandle, isOwnHandle := handle.(*repositoryHandle)
	if !isOwnHandle {
		return vcs.ErrRepositoryNotOpen
	}
	typedHandle.closed.Store(true)
	return nil
}

// RetrieveStatus reads the status of the whole working tree. Ignored directories are reported without recursion.
func (backend *Backend) RetrieveStatus(executionContext context.Context, handle vcs.RepositoryHandle, options vcs.StatusOptions) (*vcs.StatusSnapshot, error) {
	rootPath, handleError := backend.resolveHandle(handle)
	if handleError != nil {
		return nil, vcs.NewBackendError(vcs.OperationStatus, nil, handleError)
	}

	arguments := []string{gitStatusSubcommandConstant, gitPorcelainFlagConstant, gitNullTerminatedFlagConstant, gitUntrackedAllFlagConstant}
	if options.IncludeIgnored {
		arguments = append(arguments, gitIgnoredMatchingFlagConstant)
	} else {
		arguments = append(arguments, gitIgnoredNoFlagConstant)
	}
	if options.DetectRenames {
		arguments = append(arguments, gitFindRenamesFlagConstant)
	} else {
		arguments = append(arguments, gitNoRenamesFlagConstant)
	}

	entries, statusError := backend.readStatus(executionContext, rootPath, arguments)
	if statusError != nil {
		return nil, vcs.NewBackendError(vcs.OperationStatus, nil, statusError)
	}
	return vcs.NewStatusSnapshot(entries), nil
}

// RetrievePathsStatus reads the status of every path within the pathspecs in one git call.
func (backend *Backend) RetrievePathsStatus(executionContext context.Context, handle vcs.RepositoryHandle, paths []string) ([]vcs.StatusEntry, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	rootPath, handleError := backend.resolveHandle(handle)
	if handleError != nil {
		return nil, vcs.NewBackendError(vcs.OperationPathStatus, paths, handleError)
	}

	arguments := []string{
		gitStatusSubcommandConstant, gitPorcelainFlagConstant, gitNullTerminatedFlagConstant,
		gitUntrackedAllFlagConstant, gitIgnoredMatchingFlagConstant, gitNoRenamesFlagConstant,
		gitPathSeparatorArgumentConstant,
	}
	arguments = append(arguments, paths...)
	entries, statusError := backend.readStatus(executionContext, rootPath, arguments)
	if statusError != nil {
		return nil, vcs.NewBackendError(vcs.OperationPathStatus, paths, statusError)
	}
	return vcs.CompleteWithinRoot(rootPath, paths, vcs.FilterWithin(entries, paths)), nil
}

// Stage adds the working tree state of paths, including deletions, to the index.
func (backend *Backend) Stage(executionContext context.Context, handle vcs.RepositoryHandle, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	rootPath, handleError := backend.resolveHandle(handle)
	if handleError != nil {
		return vcs.NewBackendError(vcs.OperationStage, paths, handleError)
	}
	indexLock := backend.indexLock(rootPath)
	indexLock.Lock()
	defer indexLock.Unlock()
	if executionError := backend.runPathCommand(executionContext, rootPath, []string{gitAddSubcommandConstant, gitAllFlagConstant}, paths); executionError != nil {
		return vcs.NewBackendError(vcs.OperationStage, paths, executionError)
	}
	return nil
}

// Unstage resets the index entries of paths to HEAD. Before the first commit the paths are removed from the index.
func (backend *Backend) Unstage(executionContext context.Context, handle vcs.RepositoryHandle, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	rootPath, handleError := backend.resolveHandle(handle)
	if handleError != nil {
		return vcs.NewBackendError(vcs.OperationUnstage, paths, handleError)
	}
	indexLock := backend.indexLock(rootPath)
	indexLock.Lock()
	defer indexLock.Unlock()

	resetError := backend.runPathCommand(executionContext, rootPath, []string{gitResetSubcommandConstant, gitQuietFlagConstant}, paths)
	if resetError == nil {
		return nil
	}
	if backend.hasHead(executionContext, rootPath) {
		return vcs.NewBackendError(vcs.OperationUnstage, paths, resetError)
	}

	backend.logger.Debug(logMessageUnstageWithoutHead, zap.String(logFieldRepositoryConstant, rootPath), zap.Strings(logFieldPathsConstant, paths))
	removeArguments := []string{gitRemoveSubcommandConstant, gitCachedFlagConstant, gitQuietFlagConstant, gitRecursiveFlagConstant, gitIgnoreUnmatchFlagConstant}
	if removeError := backend.runPathCommand(executionContext, rootPath, removeArguments, paths); removeError != nil {
		return vcs.NewBackendError(vcs.OperationUnstage, paths, removeError)
	}
	return nil
}

// CheckoutPaths restores paths in the working tree from the index.
func (backend *Backend) CheckoutPaths(executionContext context.Context, handle vcs.RepositoryHandle, paths []string, options vcs.CheckoutOptions) error {
	if len(paths) == 0 {
		return nil
	}
	rootPath, handleError := backend.resolveHandle(handle)
	if handleError != nil {
		return vcs.NewBackendError(vcs.OperationCheckout, paths, handleError)
	}
	indexLock := backend.indexLock(rootPath)
	indexLock.Lock()
	defer indexLock.Unlock()
	arguments := []string{gitCheckoutSubcommandConstant}
	if options.Force {
		arguments = append(arguments, gitForceFlagConstant)
	}
	if executionError := backend.runPathCommand(executionContext, rootPath, arguments, paths); executionError != nil {
		return vcs.NewBackendError(vcs.OperationCheckout, paths, executionError)
	}
	return nil
}

func (backend *Backend) resolveHandle(handle vcs.RepositoryHandle) (string, error) {
	typedHandle, isOwnHandle := handle.(*repositoryHandle)
	if !isOwnHandle || typedHandle == nil || typedHandle.closed.Load() {
		return "", vcs.ErrRepositoryNotOpen
	}
	return typedHandle.rootPath, nil
}

func (backend *Backend) indexLock(rootPath string) *sync.Mutex {
	backend.indexLocksMutex.Lock()
	defer backend.indexLocksMutex.Unlock()
	lock, exists := backend.indexLocks[rootPath]
	if !exists {
		lock = &sync.Mutex{}
		backend.indexLocks[rootPath] = lock
	}
	return lock
}

// readStatus runs status without taking optional locks so concurrent index writers are not blocked.
func (backend *Backend) readStatus(executionContext context.Context, rootPath string, arguments []string) ([]vcs.StatusEntry, error) {
	executionResult, executionError := backend.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:            arguments,
		WorkingDirectory:     rootPath,
		EnvironmentVariables: map[string]string{gitOptionalLocksVariableConstant: gitOptionalLocksDisabledConstant},
	})
	if executionError != nil {
		return nil, executionError
	}
	return parsePorcelainStatus(executionResult.StandardOutput)
}

func (backend *Backend) runPathCommand(executionContext context.Context, rootPath string, arguments []string, paths []string) error {
	commandArguments := append(append(append([]string{}, arguments...), gitPathSeparatorArgumentConstant), paths...)
	_, executionError := backend.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        commandArguments,
		WorkingDirectory: rootPath,
	})
	return executionError
}

func (backend *Backend) hasHead(executionContext context.Context, rootPath string) bool {
	_, executionError := backend.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitRevParseSubcommandConstant, gitVerifyFlagConstant, gitQuietFlagConstant, gitHeadReferenceConstant},
		WorkingDirectory: rootPath,
	})
	return executionError == nil
}
