package gixcore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/gixcore/internal/config"
	"github.com/temirov/gixcore/internal/events"
	"github.com/temirov/gixcore/internal/execshell"
	"github.com/temirov/gixcore/internal/gixcore"
	"github.com/temirov/gixcore/internal/scheduler"
	"github.com/temirov/gixcore/internal/vcs"
	"github.com/temirov/gixcore/internal/vcs/vcstest"
)

const (
	testRepositoryPathConstant = "/workspace/project"
	testSettleTimeoutConstant  = 2 * time.Second
)

var (
	errTestOpen  = errors.New("repository locked")
	errTestStage = errors.New("index.lock exists")
)

type recordingObserver struct {
	events.NoopObserver
	notifications []string
}

func (observer *recordingObserver) RepositoryLoaded(events.RepositoryLoaded) {
	observer.notifications = append(observer.notifications, "loaded")
}

func (observer *recordingObserver) UpdateStarted(events.UpdateStarted) {
	observer.notifications = append(observer.notifications, "started")
}

func (observer *recordingObserver) UpdateFinished(events.UpdateFinished) {
	observer.notifications = append(observer.notifications, "finished")
}

func (observer *recordingObserver) AsyncOperationDone(events.AsyncOperationDone) {
	observer.notifications = append(observer.notifications, "operation")
}

type unusedRunner struct{}

func (unusedRunner) Run(context.Context, execshell.ShellCommand) (execshell.ExecutionResult, error) {
	return execshell.ExecutionResult{}, nil
}

func newTestCore(testInstance *testing.T, backend *vcstest.Backend, mutate func(configuration *config.CoreConfiguration)) *gixcore.Core {
	testInstance.Helper()
	coreConfiguration := config.DefaultConfiguration().Core
	coreConfiguration.RepositoryPath = testRepositoryPathConstant
	if mutate != nil {
		mutate(&coreConfiguration)
	}
	core, coreError := gixcore.NewCore(gixcore.Dependencies{
		Configuration: coreConfiguration,
		Backend:       backend,
		Environment:   scheduler.IdleEnvironment{},
	})
	require.NoError(testInstance, coreError)
	return core
}

func settleContext(testInstance *testing.T) context.Context {
	testInstance.Helper()
	executionContext, cancel := context.WithTimeout(context.Background(), testSettleTimeoutConstant)
	testInstance.Cleanup(cancel)
	return executionContext
}

func TestNewCoreSelectsBackend(testInstance *testing.T) {
	testCases := []struct {
		name          string
		backend       config.BackendKind
		expectedError error
	}{
		{name: "cli", backend: config.BackendCLI},
		{name: "gogit", backend: config.BackendGoGit},
		{name: "default", backend: ""},
		{name: "unsupported", backend: config.BackendKind("svn"), expectedError: config.ErrUnsupportedBackend},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			coreConfiguration := config.DefaultConfiguration().Core
			coreConfiguration.Backend = testCase.backend
			core, coreError := gixcore.NewCore(gixcore.Dependencies{Configuration: coreConfiguration, CommandRunner: unusedRunner{}})
			if testCase.expectedError != nil {
				require.ErrorIs(testInstance, coreError, testCase.expectedError)
				require.Nil(testInstance, core)
				return
			}
			require.NoError(testInstance, coreError)
			require.NotNil(testInstance, core.Scheduler())
			require.NotNil(testInstance, core.Registry())
			require.NotNil(testInstance, core.Processor())
		})
	}
}

func TestRefreshLoadsRepositoryAndNotifies(testInstance *testing.T) {
	backend := vcstest.NewBackend(
		vcs.StatusEntry{Path: "a.txt", Flags: vcs.StatusNewInWorkdir},
		vcs.StatusEntry{Path: "b.txt", Flags: vcs.StatusModifiedInIndex},
	)
	core := newTestCore(testInstance, backend, nil)
	observer := &recordingObserver{}
	core.Subscribe(observer)

	snapshot, refreshError := core.Refresh(settleContext(testInstance))
	require.NoError(testInstance, refreshError)
	require.Equal(testInstance, 2, snapshot.Len())
	require.Equal(testInstance, vcs.StatusNewInWorkdir, snapshot.Flags("a.txt"))
	require.Equal(testInstance, []string{"loaded", "started", "finished"}, observer.notifications)
	require.Equal(testInstance, 1, backend.OpenCount())
}

func TestRefreshIgnoresLazyGating(testInstance *testing.T) {
	backend := vcstest.NewBackend(vcs.StatusEntry{Path: "a.txt", Flags: vcs.StatusNewInWorkdir})
	core := newTestCore(testInstance, backend, func(configuration *config.CoreConfiguration) {
		configuration.LazyMode = true
	})

	snapshot, refreshError := core.Refresh(settleContext(testInstance))
	require.NoError(testInstance, refreshError)
	require.Equal(testInstance, 1, snapshot.Len())
	require.Zero(testInstance, core.Scheduler().Watchers())
}

func TestRefreshReportsFailures(testInstance *testing.T) {
	testInstance.Run("invalid_repository", func(testInstance *testing.T) {
		backend := vcstest.NewBackend()
		backend.SetValid(false)
		core := newTestCore(testInstance, backend, nil)

		_, refreshError := core.Refresh(settleContext(testInstance))
		require.ErrorIs(testInstance, refreshError, gixcore.ErrInvalidRepository)
		require.Empty(testInstance, backend.Calls())
	})

	testInstance.Run("open_failure", func(testInstance *testing.T) {
		backend := vcstest.NewBackend()
		backend.Fail(vcs.OperationOpen, errTestOpen)
		core := newTestCore(testInstance, backend, nil)

		_, refreshError := core.Refresh(settleContext(testInstance))
		require.ErrorIs(testInstance, refreshError, scheduler.ErrNoRepositoryHandle)
	})
}

func TestStageThenSettleReflectsIndex(testInstance *testing.T) {
	backend := vcstest.NewBackend(
		vcs.StatusEntry{Path: "a.txt", Flags: vcs.StatusNewInWorkdir},
		vcs.StatusEntry{Path: "b.txt", Flags: vcs.StatusModifiedInWorkdir},
	)
	core := newTestCore(testInstance, backend, nil)
	observer := &recordingObserver{}
	core.Subscribe(observer)

	_, refreshError := core.Refresh(settleContext(testInstance))
	require.NoError(testInstance, refreshError)

	require.NoError(testInstance, core.Registry().Stage(context.Background(), []string{"a.txt", "b.txt"}))
	require.True(testInstance, core.Registry().IsAsyncStaging())
	require.NoError(testInstance, core.Settle(settleContext(testInstance)))

	snapshot := core.Scheduler().CachedStatus()
	require.Equal(testInstance, vcs.StatusNewInIndex, snapshot.Flags("a.txt"))
	require.Equal(testInstance, vcs.StatusModifiedInIndex, snapshot.Flags("b.txt"))
	require.Contains(testInstance, observer.notifications, "operation")
	require.Equal(testInstance, "finished", observer.notifications[len(observer.notifications)-1])
}

func TestSettleReportsFailedAsyncOperations(testInstance *testing.T) {
	backend := vcstest.NewBackend(vcs.StatusEntry{Path: "a.txt", Flags: vcs.StatusNewInWorkdir})
	core := newTestCore(testInstance, backend, nil)
	_, refreshError := core.Refresh(settleContext(testInstance))
	require.NoError(testInstance, refreshError)

	backend.Fail(vcs.OperationStage, errTestStage)
	require.NoError(testInstance, core.Registry().Stage(context.Background(), []string{"a.txt"}))
	settleError := core.Settle(settleContext(testInstance))
	require.ErrorIs(testInstance, settleError, errTestStage)
	require.ErrorContains(testInstance, settleError, "stage [a.txt]")
	require.False(testInstance, core.Registry().IsAsyncStaging())
	require.Equal(testInstance, vcs.StatusNewInWorkdir, core.Scheduler().CachedStatus().Flags("a.txt"))

	require.NoError(testInstance, core.Settle(settleContext(testInstance)))
}

func TestCloseReleasesHandleAndSubscriptions(testInstance *testing.T) {
	backend := vcstest.NewBackend()
	core := newTestCore(testInstance, backend, nil)
	core.Subscribe(&recordingObserver{})
	require.Equal(testInstance, 1, core.Subscribers())

	_, refreshError := core.Refresh(settleContext(testInstance))
	require.NoError(testInstance, refreshError)

	require.NoError(testInstance, core.Close())
	require.Equal(testInstance, 1, backend.CloseCount())
	require.Zero(testInstance, core.Subscribers())
	require.Nil(testInstance, core.Scheduler().Handle())
}

func TestNewLoopUsesConfiguredInterval(testInstance *testing.T) {
	core := newTestCore(testInstance, vcstest.NewBackend(), nil)
	loop, loopError := core.NewLoop(nil)
	require.NoError(testInstance, loopError)
	require.NotNil(testInstance, loop)
}
