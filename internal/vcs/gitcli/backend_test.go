package gitcli_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/gixcore/internal/execshell"
	"github.com/temirov/gixcore/internal/vcs"
	"github.com/temirov/gixcore/internal/vcs/gitcli"
)

type scriptedGitExecutor struct {
	responses       map[string]execshell.ExecutionResult
	failures        map[string]error
	recordedDetails []execshell.CommandDetails
}

func (executor *scriptedGitExecutor) ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	executor.recordedDetails = append(executor.recordedDetails, details)
	subcommand := details.Arguments[0]
	if failure, exists := executor.failures[subcommand]; exists {
		return execshell.ExecutionResult{}, failure
	}
	return executor.responses[subcommand], nil
}

func (executor *scriptedGitExecutor) recordedCommandLines() []string {
	commandLines := make([]string, 0, len(executor.recordedDetails))
	for _, details := range executor.recordedDetails {
		commandLines = append(commandLines, strings.Join(details.Arguments, " "))
	}
	return commandLines
}

func commandFailure(arguments ...string) error {
	return execshell.CommandFailedError{
		Command: execshell.ShellCommand{Name: execshell.CommandGit, Details: execshell.CommandDetails{Arguments: arguments}},
		Result:  execshell.ExecutionResult{ExitCode: 128},
	}
}

func openTestRepository(testInstance *testing.T, executor *scriptedGitExecutor) (*gitcli.Backend, vcs.RepositoryHandle, string) {
	testInstance.Helper()
	repositoryRoot := testInstance.TempDir()
	if executor.responses == nil {
		executor.responses = map[string]execshell.ExecutionResult{}
	}
	executor.responses["rev-parse"] = execshell.ExecutionResult{StandardOutput: repositoryRoot + "\n"}

	backend, creationError := gitcli.NewBackend(gitcli.Dependencies{Logger: zap.NewNop(), Executor: executor})
	require.NoError(testInstance, creationError)
	handle, openError := backend.OpenRepository(context.Background(), repositoryRoot)
	require.NoError(testInstance, openError)
	require.Equal(testInstance, repositoryRoot, handle.Path())
	executor.recordedDetails = nil
	return backend, handle, repositoryRoot
}

func TestNewBackendRequiresExecutor(testInstance *testing.T) {
	_, creationError := gitcli.NewBackend(gitcli.Dependencies{})
	require.ErrorIs(testInstance, creationError, gitcli.ErrExecutorNotConfigured)
}

func TestIsValidRepositoryChecksGitDirectory(testInstance *testing.T) {
	backend, creationError := gitcli.NewBackend(gitcli.Dependencies{Executor: &scriptedGitExecutor{}})
	require.NoError(testInstance, creationError)

	repositoryRoot := testInstance.TempDir()
	require.False(testInstance, backend.IsValidRepository(repositoryRoot))
	require.False(testInstance, backend.IsValidRepository(""))

	require.NoError(testInstance, os.Mkdir(filepath.Join(repositoryRoot, ".git"), 0o755))
	require.True(testInstance, backend.IsValidRepository(repositoryRoot))
}

func TestRetrieveStatusBuildsArguments(testInstance *testing.T) {
	testCases := []struct {
		name              string
		options           vcs.StatusOptions
		expectedArguments string
	}{
		{
			name:              "renames_and_ignored",
			options:           vcs.StatusOptions{DetectRenames: true, IncludeIgnored: true},
			expectedArguments: "status --porcelain=v2 -z --untracked-files=all --ignored=matching --find-renames",
		},
		{
			name:              "plain",
			options:           vcs.StatusOptions{},
			expectedArguments: "status --porcelain=v2 -z --untracked-files=all --ignored=no --no-renames",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			executor := &scriptedGitExecutor{responses: map[string]execshell.ExecutionResult{
				"status": {StandardOutput: "? new.txt\x00"},
			}}
			backend, handle, _ := openTestRepository(testInstance, executor)

			snapshot, statusError := backend.RetrieveStatus(context.Background(), handle, testCase.options)
			require.NoError(testInstance, statusError)
			require.Equal(testInstance, vcs.StatusNewInWorkdir, snapshot.Flags("new.txt"))
			require.Equal(testInstance, []string{testCase.expectedArguments}, executor.recordedCommandLines())
			require.Equal(testInstance, "0", executor.recordedDetails[0].EnvironmentVariables["GIT_OPTIONAL_LOCKS"])
		})
	}
}

func TestRetrievePathsStatusFallbacks(testInstance *testing.T) {
	executor := &scriptedGitExecutor{responses: map[string]execshell.ExecutionResult{
		"status": {StandardOutput: ""},
	}}
	backend, handle, repositoryRoot := openTestRepository(testInstance, executor)
	require.NoError(testInstance, os.WriteFile(filepath.Join(repositoryRoot, "present.txt"), []byte("x"), 0o644))

	entries, statusError := backend.RetrievePathsStatus(context.Background(), handle, []string{"present.txt", "missing.txt"})
	require.NoError(testInstance, statusError)
	require.Equal(testInstance, []vcs.StatusEntry{
		{Path: "present.txt", Flags: vcs.StatusUnmodified},
		{Path: "missing.txt", Flags: vcs.StatusNonexistent},
	}, entries)
	require.Equal(testInstance, []string{"status --porcelain=v2 -z --untracked-files=all --ignored=matching --no-renames -- present.txt missing.txt"}, executor.recordedCommandLines())
}

func TestRetrievePathsStatusExpandsDirectories(testInstance *testing.T) {
	executor := &scriptedGitExecutor{responses: map[string]execshell.ExecutionResult{
		"status": {StandardOutput: "1 A. N... 000000 100644 100644 0000000000000000000000000000000000000000 e69de29bb2d1d6434b8b29ae775ad8c2e48c5391 dir/x.txt\x00? dir/sub/y.txt\x00"},
	}}
	backend, handle, repositoryRoot := openTestRepository(testInstance, executor)
	require.NoError(testInstance, os.MkdirAll(filepath.Join(repositoryRoot, "dir", "sub"), 0o755))
	require.NoError(testInstance, os.MkdirAll(filepath.Join(repositoryRoot, "clean"), 0o755))

	entries, statusError := backend.RetrievePathsStatus(context.Background(), handle, []string{"dir", "clean"})
	require.NoError(testInstance, statusError)
	require.Equal(testInstance, []vcs.StatusEntry{
		{Path: "dir/x.txt", Flags: vcs.StatusNewInIndex},
		{Path: "dir/sub/y.txt", Flags: vcs.StatusNewInWorkdir},
	}, entries)
}

type concurrencyTrackingExecutor struct {
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	addCalls    atomic.Int32
}

func (executor *concurrencyTrackingExecutor) ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	if details.Arguments[0] == "rev-parse" {
		return execshell.ExecutionResult{StandardOutput: details.WorkingDirectory}, nil
	}
	current := executor.inFlight.Add(1)
	defer executor.inFlight.Add(-1)
	for {
		observed := executor.maxInFlight.Load()
		if current <= observed || executor.maxInFlight.CompareAndSwap(observed, current) {
			break
		}
	}
	if details.Arguments[0] == "add" {
		executor.addCalls.Add(1)
	}
	time.Sleep(2 * time.Millisecond)
	return execshell.ExecutionResult{}, nil
}

func TestIndexWritersRunOneAtATime(testInstance *testing.T) {
	executor := &concurrencyTrackingExecutor{}
	backend, creationError := gitcli.NewBackend(gitcli.Dependencies{Executor: executor})
	require.NoError(testInstance, creationError)
	repositoryRoot := testInstance.TempDir()
	handle, openError := backend.OpenRepository(context.Background(), repositoryRoot)
	require.NoError(testInstance, openError)
	reopenedHandle, reopenError := backend.OpenRepository(context.Background(), repositoryRoot)
	require.NoError(testInstance, reopenError)

	const stagerCount = 12
	var waitGroup sync.WaitGroup
	for stagerIndex := 0; stagerIndex < stagerCount; stagerIndex++ {
		waitGroup.Add(1)
		go func(stagerIndex int) {
			defer waitGroup.Done()
			stageHandle := handle
			if stagerIndex%2 == 1 {
				stageHandle = reopenedHandle
			}
			path := fmt.Sprintf("file-%d.txt", stagerIndex)
			if stagerIndex%3 == 0 {
				_ = backend.Unstage(context.Background(), stageHandle, []string{path})
				return
			}
			_ = backend.Stage(context.Background(), stageHandle, []string{path})
		}(stagerIndex)
	}
	waitGroup.Wait()

	require.Equal(testInstance, int32(1), executor.maxInFlight.Load())
	require.Equal(testInstance, int32(8), executor.addCalls.Load())
}

func TestStageUnstageAndCheckoutCommands(testInstance *testing.T) {
	executor := &scriptedGitExecutor{}
	backend, handle, _ := openTestRepository(testInstance, executor)

	require.NoError(testInstance, backend.Stage(context.Background(), handle, []string{"a.txt", "b.txt"}))
	require.NoError(testInstance, backend.Unstage(context.Background(), handle, []string{"a.txt"}))
	require.NoError(testInstance, backend.CheckoutPaths(context.Background(), handle, []string{"c.txt"}, vcs.CheckoutOptions{Force: true}))
	require.NoError(testInstance, backend.Stage(context.Background(), handle, nil))

	require.Equal(testInstance, []string{
		"add --all -- a.txt b.txt",
		"reset --quiet -- a.txt",
		"checkout --force -- c.txt",
	}, executor.recordedCommandLines())
}

func TestUnstageWithoutHeadRemovesFromIndex(testInstance *testing.T) {
	executor := &scriptedGitExecutor{}
	backend, handle, _ := openTestRepository(testInstance, executor)
	executor.failures = map[string]error{
		"reset":     commandFailure("reset"),
		"rev-parse": commandFailure("rev-parse"),
	}

	require.NoError(testInstance, backend.Unstage(context.Background(), handle, []string{"a.txt"}))
	require.Equal(testInstance, []string{
		"reset --quiet -- a.txt",
		"rev-parse --verify --quiet HEAD",
		"rm --cached --quiet -r --ignore-unmatch -- a.txt",
	}, executor.recordedCommandLines())
}

func TestBackendFailuresAreBackendErrors(testInstance *testing.T) {
	executor := &scriptedGitExecutor{}
	backend, handle, _ := openTestRepository(testInstance, executor)
	executor.failures = map[string]error{"add": commandFailure("add")}

	stageError := backend.Stage(context.Background(), handle, []string{"a.txt"})
	var backendError *vcs.BackendError
	require.ErrorAs(testInstance, stageError, &backendError)
	require.Equal(testInstance, vcs.OperationStage, backendError.Operation)
	require.Equal(testInstance, []string{"a.txt"}, backendError.Paths)
}

func TestClosedHandleIsRejected(testInstance *testing.T) {
	executor := &scriptedGitExecutor{}
	backend, handle, _ := openTestRepository(testInstance, executor)
	require.NoError(testInstance, backend.Close(handle))

	_, statusError := backend.RetrieveStatus(context.Background(), handle, vcs.StatusOptions{})
	require.ErrorIs(testInstance, statusError, vcs.ErrRepositoryNotOpen)
	require.Empty(testInstance, executor.recordedDetails)
}
