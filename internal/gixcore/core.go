package gixcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/temirov/gixcore/internal/config"
	"github.com/temirov/gixcore/internal/dirty"
	"github.com/temirov/gixcore/internal/events"
	"github.com/temirov/gixcore/internal/execshell"
	"github.com/temirov/gixcore/internal/fswatch"
	"github.com/temirov/gixcore/internal/host"
	"github.com/temirov/gixcore/internal/operations"
	"github.com/temirov/gixcore/internal/postprocess"
	"github.com/temirov/gixcore/internal/scheduler"
	"github.com/temirov/gixcore/internal/statuscache"
	"github.com/temirov/gixcore/internal/taskqueue"
	"github.com/temirov/gixcore/internal/vcs"
	"github.com/temirov/gixcore/internal/vcs/gitcli"
	"github.com/temirov/gixcore/internal/vcs/gogit"
)

const (
	settlePollIntervalConstant          = 10 * time.Millisecond
	invalidRepositoryMessageConstant    = "not a git repository"
	invalidRepositoryTemplateConstant   = "%w: %s"
	buildBackendErrorTemplateConstant   = "build %s backend: %w"
	buildComponentErrorTemplateConstant = "build %s: %w"
	settleErrorTemplateConstant         = "wait for status core: %w"
	operationErrorTemplateConstant      = "%s %v: %w"
	coreCreatedMessageConstant          = "Status core created"
	coreClosedMessageConstant           = "Status core closed"
	backendFieldConstant                = "backend"
	repositoryPathFieldConstant         = "repository_path"
	threadingFieldConstant              = "threading"
	cacheComponentConstant              = "status cache"
	schedulerComponentConstant          = "scheduler"
	registryComponentConstant           = "operation registry"
	postprocessComponentConstant        = "postprocessor"
	loopComponentConstant               = "host loop"
)

// ErrInvalidRepository indicates a repository path that holds no git repository.
var ErrInvalidRepository = errors.New(invalidRepositoryMessageConstant)

// Dependencies configures NewCore. Backend overrides the configured backend kind;
// CommandRunner and CommandObserver apply to the git CLI backend only; Environment
// defaults to an index-lock aware environment.
type Dependencies struct {
	Logger          *zap.Logger
	Configuration   config.CoreConfiguration
	Backend         vcs.Backend
	CommandRunner   execshell.CommandRunner
	CommandObserver execshell.CommandEventObserver
	Environment     scheduler.Environment
}

// Core owns every status core component.
type Core struct {
	logger    *zap.Logger
	settings  *config.Settings
	backend   vcs.Backend
	bus       *events.Bus
	queue     *taskqueue.Queue
	tracker   *dirty.Tracker
	cache     *statuscache.Cache
	scheduler *scheduler.Scheduler
	registry  *operations.Registry
	processor *postprocess.Processor

	unsubscribers []func()
}

// NewCore builds and wires the status core for one repository.
func NewCore(dependencies Dependencies) (*Core, error) {
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	coreConfiguration := dependencies.Configuration

	backend := dependencies.Backend
	if backend == nil {
		builtBackend, backendError := buildBackend(logger, coreConfiguration.Backend, dependencies.CommandRunner, dependencies.CommandObserver)
		if backendError != nil {
			return nil, backendError
		}
		backend = builtBackend
	}

	environment := dependencies.Environment
	if environment == nil {
		environment = host.NewIndexLockEnvironment(coreConfiguration.RepositoryPath)
	}

	settings := config.NewSettings(coreConfiguration)
	bus := events.NewBus()
	queue := taskqueue.NewQueue(taskqueue.Dependencies{Logger: logger})
	statusLock := taskqueue.NewStatusLock()
	tracker := dirty.NewTracker()

	cache, cacheError := statuscache.NewCache(statuscache.Dependencies{Logger: logger, Backend: backend, Settings: settings})
	if cacheError != nil {
		return nil, fmt.Errorf(buildComponentErrorTemplateConstant, cacheComponentConstant, cacheError)
	}
	statusScheduler, schedulerError := scheduler.NewScheduler(scheduler.Dependencies{
		Logger:         logger,
		RepositoryPath: coreConfiguration.RepositoryPath,
		Backend:        backend,
		Cache:          cache,
		Tracker:        tracker,
		Queue:          queue,
		StatusLock:     statusLock,
		Settings:       settings,
		Observer:       bus,
		Environment:    environment,
	})
	if schedulerError != nil {
		return nil, fmt.Errorf(buildComponentErrorTemplateConstant, schedulerComponentConstant, schedulerError)
	}
	registry, registryError := operations.NewRegistry(operations.Dependencies{
		Logger:     logger,
		Backend:    backend,
		Repository: statusScheduler,
		Queue:      queue,
		StatusLock: statusLock,
		Settings:   settings,
		Observer:   bus,
	})
	if registryError != nil {
		return nil, fmt.Errorf(buildComponentErrorTemplateConstant, registryComponentConstant, registryError)
	}
	processor, processorError := postprocess.NewProcessor(postprocess.Dependencies{
		Logger:     logger,
		RootPath:   coreConfiguration.RepositoryPath,
		Repository: statusScheduler,
		Stager:     registry,
		Settings:   settings,
	})
	if processorError != nil {
		return nil, fmt.Errorf(buildComponentErrorTemplateConstant, postprocessComponentConstant, processorError)
	}

	logger.Debug(coreCreatedMessageConstant,
		zap.String(repositoryPathFieldConstant, coreConfiguration.RepositoryPath),
		zap.String(backendFieldConstant, string(coreConfiguration.Backend)),
		zap.Stringer(threadingFieldConstant, coreConfiguration.Threading),
	)
	return &Core{
		logger:    logger,
		settings:  settings,
		backend:   backend,
		bus:       bus,
		queue:     queue,
		tracker:   tracker,
		cache:     cache,
		scheduler: statusScheduler,
		registry:  registry,
		processor: processor,
	}, nil
}

func buildBackend(logger *zap.Logger, kind config.BackendKind, runner execshell.CommandRunner, observer execshell.CommandEventObserver) (vcs.Backend, error) {
	switch kind {
	case config.BackendGoGit:
		return gogit.NewBackend(logger), nil
	case config.BackendCLI, "":
		if runner == nil {
			runner = execshell.NewOSCommandRunner()
		}
		executor, executorError := execshell.NewShellExecutor(logger, runner)
		if executorError != nil {
			return nil, fmt.Errorf(buildBackendErrorTemplateConstant, config.BackendCLI, executorError)
		}
		executor.WithObserver(observer)
		backend, backendError := gitcli.NewBackend(gitcli.Dependencies{Logger: logger, Executor: executor})
		if backendError != nil {
			return nil, fmt.Errorf(buildBackendErrorTemplateConstant, config.BackendCLI, backendError)
		}
		return backend, nil
	default:
		return nil, fmt.Errorf(buildBackendErrorTemplateConstant, kind, config.ErrUnsupportedBackend)
	}
}

// Settings returns the live settings.
func (core *Core) Settings() *config.Settings {
	return core.settings
}

// Scheduler returns the update scheduler.
func (core *Core) Scheduler() *scheduler.Scheduler {
	return core.scheduler
}

// Registry returns the operation registry.
func (core *Core) Registry() *operations.Registry {
	return core.registry
}

// Processor returns the file notification postprocessor.
func (core *Core) Processor() *postprocess.Processor {
	return core.processor
}

// Subscribe registers observer for core notifications and returns a function removing it.
// Close removes every observer still registered.
func (core *Core) Subscribe(observer events.Observer) func() {
	unsubscribe := core.bus.Subscribe(observer)
	core.unsubscribers = append(core.unsubscribers, unsubscribe)
	return unsubscribe
}

// Subscribers returns the number of registered observers.
func (core *Core) Subscribers() int {
	return core.bus.Subscribers()
}

// NewLoop builds a host loop driving this core. batches may be nil.
func (core *Core) NewLoop(batches <-chan fswatch.Batch) (*host.Loop, error) {
	loop, loopError := host.NewLoop(host.Dependencies{
		Logger:        core.logger,
		Scheduler:     core.scheduler,
		Postprocessor: core.processor,
		Batches:       batches,
		TickInterval:  core.settings.Core().TickInterval,
	})
	if loopError != nil {
		return nil, fmt.Errorf(buildComponentErrorTemplateConstant, loopComponentConstant, loopError)
	}
	return loop, nil
}

// Refresh marks the whole repository dirty and ticks until the rescan settled.
// It returns the new snapshot or the error the rescan finished with.
func (core *Core) Refresh(executionContext context.Context) (*vcs.StatusSnapshot, error) {
	if !core.scheduler.IsValidRepository() {
		return nil, fmt.Errorf(invalidRepositoryTemplateConstant, ErrInvalidRepository, core.scheduler.RepositoryPath())
	}
	core.scheduler.MarkDirty()
	if settleError := core.Settle(executionContext); settleError != nil {
		return nil, settleError
	}
	return core.cache.Snapshot(), nil
}

// Settle ticks the scheduler until nothing is dirty, updating, staging or queued.
// A rescan that finishes with an error ends the wait with that error. Asynchronous
// operations that failed while waiting are returned once the core settled.
func (core *Core) Settle(executionContext context.Context) error {
	watcher := &settleWatcher{}
	core.scheduler.AddWatcher(watcher)
	defer core.scheduler.RemoveWatcher(watcher)

	recorder := &finishRecorder{}
	unsubscribe := core.bus.Subscribe(recorder)
	defer unsubscribe()

	for {
		if tickError := core.scheduler.Tick(executionContext); tickError != nil {
			return fmt.Errorf(settleErrorTemplateConstant, tickError)
		}
		if recorder.lastError != nil {
			return fmt.Errorf(settleErrorTemplateConstant, recorder.lastError)
		}
		if core.isSettled() {
			return recorder.operationsError
		}
		select {
		case <-executionContext.Done():
			return fmt.Errorf(settleErrorTemplateConstant, executionContext.Err())
		case <-time.After(settlePollIntervalConstant):
		}
	}
}

func (core *Core) isSettled() bool {
	return !core.scheduler.IsDirty() &&
		!core.scheduler.IsUpdating() &&
		!core.registry.IsAsyncStaging() &&
		core.queue.PendingActions() == 0 &&
		core.queue.ActiveWorkers() == 0
}

// Close cancels outstanding workers, closes the repository handle and drops subscriptions.
func (core *Core) Close() error {
	closeError := core.scheduler.Close()
	for _, unsubscribe := range core.unsubscribers {
		unsubscribe()
	}
	core.unsubscribers = nil
	core.logger.Debug(coreClosedMessageConstant)
	return closeError
}

// settleWatcher keeps lazy-mode gating open while Settle waits.
type settleWatcher struct{}

func (*settleWatcher) IsValid() bool    { return true }
func (*settleWatcher) IsWatching() bool { return true }

type finishRecorder struct {
	events.NoopObserver
	lastError       error
	operationsError error
}

func (recorder *finishRecorder) UpdateFinished(event events.UpdateFinished) {
	recorder.lastError = event.Err
}

func (recorder *finishRecorder) AsyncOperationDone(event events.AsyncOperationDone) {
	summary := event.Operation
	if summary.Err == nil {
		return
	}
	recorder.operationsError = multierr.Append(recorder.operationsError, fmt.Errorf(operationErrorTemplateConstant, summary.Kind, summary.Paths, summary.Err))
}
