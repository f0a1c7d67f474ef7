package scheduler

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/temirov/gixcore/internal/config"
	"github.com/temirov/gixcore/internal/dirty"
	"github.com/temirov/gixcore/internal/events"
	"github.com/temirov/gixcore/internal/statuscache"
	"github.com/temirov/gixcore/internal/taskqueue"
	pathutils "github.com/temirov/gixcore/internal/utils/path"
	"github.com/temirov/gixcore/internal/vcs"
)

const (
	backendNotConfiguredMessageConstant  = "scheduler backend not configured"
	cacheNotConfiguredMessageConstant    = "scheduler status cache not configured"
	queueNotConfiguredMessageConstant    = "scheduler task queue not configured"
	settingsNotConfiguredMessageConstant = "scheduler settings not configured"
	noRepositoryHandleMessageConstant    = "no repository handle available"
	repositoryLoadedMessageConstant      = "Repository loaded"
	repositoryLoadFailedMessageConstant  = "Could not open repository"
	repositoryCloseFailedMessageConstant = "Could not close repository"
	updateStartedMessageConstant         = "Status update started"
	updateFinishedMessageConstant        = "Status update finished"
	updateFailedMessageConstant          = "Could not retrieve Git status"
	rescanInterruptedMessageConstant     = "Threaded status retrieval interrupted, re-running on the main context"
	repositoryPathFieldConstant          = "repository_path"
	pathsFieldConstant                   = "paths"
	fullUpdateFieldConstant              = "full"
	threadedFieldConstant                = "threaded"
	entryCountFieldConstant              = "entries"
)

var (
	// ErrBackendNotConfigured indicates a missing backend.
	ErrBackendNotConfigured = errors.New(backendNotConfiguredMessageConstant)

	// ErrCacheNotConfigured indicates a missing status cache.
	ErrCacheNotConfigured = errors.New(cacheNotConfiguredMessageConstant)

	// ErrQueueNotConfigured indicates a missing task queue.
	ErrQueueNotConfigured = errors.New(queueNotConfiguredMessageConstant)

	// ErrSettingsNotConfigured indicates missing settings.
	ErrSettingsNotConfigured = errors.New(settingsNotConfiguredMessageConstant)

	// ErrNoRepositoryHandle is reported in UpdateFinished when no repository could be opened.
	ErrNoRepositoryHandle = errors.New(noRepositoryHandleMessageConstant)
)

// Dependencies configures a Scheduler. Tracker, StatusLock, Observer and Environment get defaults when nil.
type Dependencies struct {
	Logger         *zap.Logger
	RepositoryPath string
	Backend        vcs.Backend
	Cache          *statuscache.Cache
	Tracker        *dirty.Tracker
	Queue          *taskqueue.Queue
	StatusLock     *semaphore.Weighted
	Settings       *config.Settings
	Observer       events.Observer
	Environment    Environment
}

// Scheduler decides on every tick whether and how the status cache is refreshed.
type Scheduler struct {
	logger         *zap.Logger
	repositoryPath string
	backend        vcs.Backend
	cache          *statuscache.Cache
	tracker        *dirty.Tracker
	queue          *taskqueue.Queue
	statusLock     *semaphore.Weighted
	settings       *config.Settings
	observer       events.Observer
	environment    Environment

	handle            vcs.RepositoryHandle
	isUpdating        bool
	updatingPaths     map[string]struct{}
	forceSingleThread bool
	activeWorker      *taskqueue.Handle
	watchers          []Watcher
}

// NewScheduler validates dependencies and constructs a Scheduler.
func NewScheduler(dependencies Dependencies) (*Scheduler, error) {
	if dependencies.Backend == nil {
		return nil, ErrBackendNotConfigured
	}
	if dependencies.Cache == nil {
		return nil, ErrCacheNotConfigured
	}
	if dependencies.Queue == nil {
		return nil, ErrQueueNotConfigured
	}
	if dependencies.Settings == nil {
		return nil, ErrSettingsNotConfigured
	}

	scheduler := &Scheduler{
		logger:         dependencies.Logger,
		repositoryPath: dependencies.RepositoryPath,
		backend:        dependencies.Backend,
		cache:          dependencies.Cache,
		tracker:        dependencies.Tracker,
		queue:          dependencies.Queue,
		statusLock:     dependencies.StatusLock,
		settings:       dependencies.Settings,
		observer:       dependencies.Observer,
		environment:    dependencies.Environment,
	}
	if scheduler.logger == nil {
		scheduler.logger = zap.NewNop()
	}
	if scheduler.tracker == nil {
		scheduler.tracker = dirty.NewTracker()
	}
	if scheduler.statusLock == nil {
		scheduler.statusLock = taskqueue.NewStatusLock()
	}
	if scheduler.observer == nil {
		scheduler.observer = events.NoopObserver{}
	}
	if scheduler.environment == nil {
		scheduler.environment = IdleEnvironment{}
	}
	return scheduler, nil
}

// UpdateStatus derives the current status from the repository, the host environment and the updating flag.
func (scheduler *Scheduler) UpdateStatus() UpdateStatus {
	switch {
	case !scheduler.IsValidRepository():
		return UpdateStatusInvalidRepo
	case scheduler.environment.IsSwitchingMode():
		return UpdateStatusSwitchingMode
	case scheduler.environment.IsCompiling():
		return UpdateStatusCompiling
	case scheduler.environment.IsBusy():
		return UpdateStatusBusy
	case scheduler.isUpdating:
		return UpdateStatusUpdating
	default:
		return UpdateStatusReady
	}
}

// Tick advances the state machine once. Update failures are logged, never returned.
// One pending main-context action is drained on every tick whatever the status; its error is returned.
// The repository is opened at most once per tick.
func (scheduler *Scheduler) Tick(executionContext context.Context) error {
	if scheduler.UpdateStatus() == UpdateStatusReady {
		openAttempted := scheduler.ensureHandle(executionContext)
		if scheduler.canUpdate() {
			switch {
			case scheduler.tracker.IsWholeDirty():
				_, reloadPending, _ := scheduler.tracker.DrainAndClear()
				scheduler.RunUpdate(executionContext, reloadPending && !openAttempted, nil)
			case scheduler.tracker.HasPaths():
				reload := (scheduler.tracker.IsReloadPending() || scheduler.handle == nil) && !openAttempted
				scheduler.tracker.SetReloadPending(false)
				scheduler.RunUpdate(executionContext, reload, scheduler.tracker.DrainPaths())
			}
		}
		if openAttempted && scheduler.handle == nil {
			scheduler.tracker.SetWholeDirty()
			scheduler.tracker.SetReloadPending(true)
		}
	}

	drainError := scheduler.queue.DrainOne()
	scheduler.pruneWatchers()
	return drainError
}

// RunUpdate starts a rescan, reopening the repository first when reload is set.
// Path-scoped rescans always run synchronously; full rescans run on a worker when status threading is enabled.
func (scheduler *Scheduler) RunUpdate(executionContext context.Context, reload bool, paths []string) {
	paths = pathutils.NormalizeRelativePaths(paths)
	scheduler.startUpdating(paths)

	if reload && scheduler.IsValidRepository() {
		scheduler.reloadHandle(executionContext)
	}
	if scheduler.handle == nil {
		scheduler.finishUpdating(paths, ErrNoRepositoryHandle)
		return
	}

	if len(paths) > 0 || scheduler.forceSingleThread || !scheduler.settings.IsThreaded(config.ThreadingStatusList) {
		scheduler.retrieveStatus(executionContext, paths)
		return
	}
	scheduler.retrieveStatusThreaded(executionContext, paths)
}

func (scheduler *Scheduler) retrieveStatus(executionContext context.Context, paths []string) {
	scheduler.forceSingleThread = false
	if scheduler.handle == nil {
		scheduler.finishUpdating(paths, ErrNoRepositoryHandle)
		return
	}
	_, rescanError := scheduler.cache.Rescan(executionContext, scheduler.handle, paths)
	if rescanError != nil {
		scheduler.logger.Error(updateFailedMessageConstant, zap.Strings(pathsFieldConstant, paths), zap.Bool(threadedFieldConstant, false), zap.Error(rescanError))
	}
	scheduler.finishUpdating(paths, rescanError)
}

func (scheduler *Scheduler) retrieveStatusThreaded(executionContext context.Context, paths []string) {
	handle := scheduler.handle
	work := func(workerContext context.Context) error {
		_, rescanError := scheduler.cache.Rescan(workerContext, handle, paths)
		return rescanError
	}
	onComplete := func(completed *taskqueue.Handle) error {
		if scheduler.activeWorker == completed {
			scheduler.activeWorker = nil
		}
		workerError := completed.Err()
		switch {
		case workerError == nil:
			scheduler.finishUpdating(paths, nil)
		case errors.Is(workerError, statuscache.ErrRescanInterrupted), errors.Is(workerError, taskqueue.ErrWorkerInterrupted):
			scheduler.logger.Warn(rescanInterruptedMessageConstant, zap.Strings(pathsFieldConstant, paths), zap.Error(workerError))
			scheduler.forceSingleThread = true
			scheduler.queue.Enqueue(func() error {
				scheduler.retrieveStatus(executionContext, paths)
				return nil
			})
		default:
			scheduler.logger.Error(updateFailedMessageConstant, zap.Strings(pathsFieldConstant, paths), zap.Bool(threadedFieldConstant, true), zap.Error(workerError))
			scheduler.tracker.SetWholeDirty()
			scheduler.finishUpdating(paths, workerError)
		}
		return nil
	}
	scheduler.activeWorker = scheduler.queue.QueueWorker(executionContext, work, onComplete, scheduler.statusLock)
}

func (scheduler *Scheduler) startUpdating(paths []string) {
	scheduler.isUpdating = true
	scheduler.updatingPaths = make(map[string]struct{}, len(paths))
	for _, path := range paths {
		scheduler.updatingPaths[path] = struct{}{}
	}
	scheduler.logger.Debug(updateStartedMessageConstant, zap.Bool(fullUpdateFieldConstant, len(paths) == 0), zap.Strings(pathsFieldConstant, paths))
	scheduler.observer.UpdateStarted(events.UpdateStarted{Full: len(paths) == 0})
}

func (scheduler *Scheduler) finishUpdating(paths []string, updateError error) {
	scheduler.isUpdating = false
	scheduler.updatingPaths = nil
	snapshot := scheduler.cache.Snapshot()
	scheduler.logger.Debug(updateFinishedMessageConstant, zap.Strings(pathsFieldConstant, paths), zap.Int(entryCountFieldConstant, snapshot.Len()))
	scheduler.observer.UpdateFinished(events.UpdateFinished{Snapshot: snapshot, Paths: paths, Err: updateError})
}

// ensureHandle opens the repository when no handle is held and reports whether it tried.
func (scheduler *Scheduler) ensureHandle(executionContext context.Context) bool {
	if scheduler.handle != nil || !scheduler.IsValidRepository() {
		return false
	}
	scheduler.openHandle(executionContext)
	return true
}

func (scheduler *Scheduler) reloadHandle(executionContext context.Context) {
	scheduler.closeHandle()
	scheduler.openHandle(executionContext)
}

func (scheduler *Scheduler) openHandle(executionContext context.Context) {
	handle, openError := scheduler.backend.OpenRepository(executionContext, scheduler.repositoryPath)
	if openError != nil {
		scheduler.logger.Error(repositoryLoadFailedMessageConstant, zap.String(repositoryPathFieldConstant, scheduler.repositoryPath), zap.Error(openError))
		scheduler.tracker.SetWholeDirty()
		scheduler.tracker.SetReloadPending(true)
		return
	}
	scheduler.handle = handle
	scheduler.logger.Info(repositoryLoadedMessageConstant, zap.String(repositoryPathFieldConstant, handle.Path()))
	scheduler.observer.RepositoryLoaded(events.RepositoryLoaded{Handle: handle})
}

func (scheduler *Scheduler) closeHandle() error {
	if scheduler.handle == nil {
		return nil
	}
	closeError := scheduler.backend.Close(scheduler.handle)
	if closeError != nil {
		scheduler.logger.Warn(repositoryCloseFailedMessageConstant, zap.String(repositoryPathFieldConstant, scheduler.repositoryPath), zap.Error(closeError))
	}
	scheduler.handle = nil
	return closeError
}

func (scheduler *Scheduler) canUpdate() bool {
	if !scheduler.settings.LazyMode() {
		return true
	}
	for _, watcher := range scheduler.watchers {
		if watcher.IsValid() && watcher.IsWatching() {
			return true
		}
	}
	return false
}

func (scheduler *Scheduler) pruneWatchers() {
	retained := scheduler.watchers[:0]
	for _, watcher := range scheduler.watchers {
		if watcher.IsValid() {
			retained = append(retained, watcher)
		}
	}
	for index := len(retained); index < len(scheduler.watchers); index++ {
		scheduler.watchers[index] = nil
	}
	scheduler.watchers = retained
}

// MarkDirty requests a full rescan on the next permitted tick.
func (scheduler *Scheduler) MarkDirty() {
	scheduler.tracker.SetWholeDirty()
}

// MarkDirtyWithReload requests a full rescan and sets whether the repository is reopened first.
func (scheduler *Scheduler) MarkDirtyWithReload(reload bool) {
	scheduler.tracker.SetWholeDirty()
	scheduler.tracker.SetReloadPending(reload)
}

// MarkDirtyPaths queues a path-scoped rescan of paths.
func (scheduler *Scheduler) MarkDirtyPaths(paths ...string) {
	scheduler.tracker.Add(paths...)
}

// AddWatcher registers watcher unless it is already registered.
func (scheduler *Scheduler) AddWatcher(watcher Watcher) {
	if watcher == nil {
		return
	}
	for _, registered := range scheduler.watchers {
		if registered == watcher {
			return
		}
	}
	scheduler.watchers = append(scheduler.watchers, watcher)
}

// RemoveWatcher unregisters watcher and reports whether it was registered.
func (scheduler *Scheduler) RemoveWatcher(watcher Watcher) bool {
	for index, registered := range scheduler.watchers {
		if registered == watcher {
			scheduler.watchers = append(scheduler.watchers[:index], scheduler.watchers[index+1:]...)
			return true
		}
	}
	return false
}

// Watchers returns the number of registered watchers.
func (scheduler *Scheduler) Watchers() int {
	return len(scheduler.watchers)
}

// CachedStatus returns the current snapshot. In lazy mode an absent snapshot marks the repository dirty,
// so the next watched tick populates it.
func (scheduler *Scheduler) CachedStatus() *vcs.StatusSnapshot {
	snapshot := scheduler.cache.Snapshot()
	if snapshot == nil && scheduler.settings.LazyMode() && !scheduler.isUpdating {
		scheduler.tracker.SetWholeDirty()
	}
	return snapshot
}

// ExecuteAction runs action now, or on a later tick when async is set.
func (scheduler *Scheduler) ExecuteAction(action taskqueue.Action, async bool) error {
	if action == nil {
		return nil
	}
	if async {
		scheduler.queue.Enqueue(action)
		return nil
	}
	return action()
}

// CancelUpdate interrupts a running threaded rescan. The rescan is re-run on the main context.
func (scheduler *Scheduler) CancelUpdate() {
	if scheduler.activeWorker != nil {
		scheduler.activeWorker.Cancel()
	}
}

// Handle returns the live repository handle, or nil.
func (scheduler *Scheduler) Handle() vcs.RepositoryHandle {
	return scheduler.handle
}

// RepositoryPath returns the configured repository location.
func (scheduler *Scheduler) RepositoryPath() string {
	return scheduler.repositoryPath
}

// IsValidRepository reports whether the configured location holds a repository.
func (scheduler *Scheduler) IsValidRepository() bool {
	return scheduler.backend.IsValidRepository(scheduler.repositoryPath)
}

// IsUpdating reports whether a rescan is in flight.
func (scheduler *Scheduler) IsUpdating() bool {
	return scheduler.isUpdating
}

// IsDirty reports whether any update is pending.
func (scheduler *Scheduler) IsDirty() bool {
	return scheduler.tracker.IsDirty()
}

// IsFileDirty reports whether path is queued for a path-scoped rescan.
func (scheduler *Scheduler) IsFileDirty(path string) bool {
	return scheduler.tracker.Contains(path)
}

// IsFileUpdating reports whether path is covered by the running rescan. Every path is covered by a full rescan.
func (scheduler *Scheduler) IsFileUpdating(path string) bool {
	if !scheduler.isUpdating {
		return false
	}
	if len(scheduler.updatingPaths) == 0 {
		return true
	}
	_, updating := scheduler.updatingPaths[pathutils.NormalizeRelativePath(path)]
	return updating
}

// Close cancels outstanding workers and releases the repository handle.
func (scheduler *Scheduler) Close() error {
	scheduler.queue.CancelAll()
	return scheduler.closeHandle()
}
