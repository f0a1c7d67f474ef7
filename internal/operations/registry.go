package operations

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/temirov/gixcore/internal/config"
	"github.com/temirov/gixcore/internal/events"
	"github.com/temirov/gixcore/internal/taskqueue"
	pathutils "github.com/temirov/gixcore/internal/utils/path"
	"github.com/temirov/gixcore/internal/vcs"
)

const (
	backendNotConfiguredMessageConstant    = "operations backend not configured"
	repositoryNotConfiguredMessageConstant = "operations repository not configured"
	queueNotConfiguredMessageConstant      = "operations task queue not configured"
	settingsNotConfiguredMessageConstant   = "operations settings not configured"
	noPathsMessageConstant                 = "no paths provided"
	operationStartedMessageConstant        = "Async operation started"
	operationFinishedMessageConstant       = "Async operation finished"
	operationFailedMessageConstant         = "Async operation failed"
	inlineOperationFailedMessageConstant   = "Operation failed"
	operationIdentifierFieldConstant       = "operation_id"
	operationKindFieldConstant             = "operation_kind"
	pathsFieldConstant                     = "paths"
)

var (
	// ErrBackendNotConfigured indicates a missing backend.
	ErrBackendNotConfigured = errors.New(backendNotConfiguredMessageConstant)

	// ErrRepositoryNotConfigured indicates a missing repository accessor.
	ErrRepositoryNotConfigured = errors.New(repositoryNotConfiguredMessageConstant)

	// ErrQueueNotConfigured indicates a missing task queue.
	ErrQueueNotConfigured = errors.New(queueNotConfiguredMessageConstant)

	// ErrSettingsNotConfigured indicates missing settings.
	ErrSettingsNotConfigured = errors.New(settingsNotConfiguredMessageConstant)

	// ErrNoPaths indicates a request without any usable path.
	ErrNoPaths = errors.New(noPathsMessageConstant)
)

// Repository gives the registry access to the live handle and the dirty queue.
type Repository interface {
	Handle() vcs.RepositoryHandle
	MarkDirtyPaths(paths ...string)
}

type backendCall func(executionContext context.Context, handle vcs.RepositoryHandle, paths []string) error

// Operation is one outstanding asynchronous stage or unstage.
type Operation struct {
	kind      events.OperationKind
	paths     []string
	pathIndex map[string]struct{}
	worker    *taskqueue.Handle
}

// Identifier returns the operation identity.
func (operation *Operation) Identifier() uuid.UUID {
	return operation.worker.Identifier()
}

// Kind returns whether the operation stages or unstages.
func (operation *Operation) Kind() events.OperationKind {
	return operation.kind
}

// Paths returns a copy of the covered paths.
func (operation *Operation) Paths() []string {
	return append([]string(nil), operation.paths...)
}

// Contains reports whether path is covered.
func (operation *Operation) Contains(path string) bool {
	_, covered := operation.pathIndex[pathutils.NormalizeRelativePath(path)]
	return covered
}

// IsDone reports whether the backend call returned. The operation stays registered until its completion runs.
func (operation *Operation) IsDone() bool {
	return operation.worker.IsDone()
}

// Done is closed when the backend call returns.
func (operation *Operation) Done() <-chan struct{} {
	return operation.worker.Done()
}

func (operation *Operation) summary(operationError error) events.OperationSummary {
	return events.OperationSummary{
		Identifier: operation.Identifier(),
		Kind:       operation.kind,
		Paths:      operation.Paths(),
		Err:        operationError,
	}
}

// Dependencies configures a Registry. StatusLock and Observer get defaults when nil.
type Dependencies struct {
	Logger     *zap.Logger
	Backend    vcs.Backend
	Repository Repository
	Queue      *taskqueue.Queue
	StatusLock *semaphore.Weighted
	Settings   *config.Settings
	Observer   events.Observer
}

// Registry owns the outstanding operations.
type Registry struct {
	logger     *zap.Logger
	backend    vcs.Backend
	repository Repository
	queue      *taskqueue.Queue
	statusLock *semaphore.Weighted
	settings   *config.Settings
	observer   events.Observer
	operations []*Operation
}

// NewRegistry validates dependencies and constructs a Registry.
func NewRegistry(dependencies Dependencies) (*Registry, error) {
	if dependencies.Backend == nil {
		return nil, ErrBackendNotConfigured
	}
	if dependencies.Repository == nil {
		return nil, ErrRepositoryNotConfigured
	}
	if dependencies.Queue == nil {
		return nil, ErrQueueNotConfigured
	}
	if dependencies.Settings == nil {
		return nil, ErrSettingsNotConfigured
	}
	registry := &Registry{
		logger:     dependencies.Logger,
		backend:    dependencies.Backend,
		repository: dependencies.Repository,
		queue:      dependencies.Queue,
		statusLock: dependencies.StatusLock,
		settings:   dependencies.Settings,
		observer:   dependencies.Observer,
	}
	if registry.logger == nil {
		registry.logger = zap.NewNop()
	}
	if registry.statusLock == nil {
		registry.statusLock = taskqueue.NewStatusLock()
	}
	if registry.observer == nil {
		registry.observer = events.NoopObserver{}
	}
	return registry, nil
}

// Stage stages paths, asynchronously when stage threading is enabled.
// Inline staging marks the paths dirty immediately and creates no operation.
func (registry *Registry) Stage(executionContext context.Context, paths []string) error {
	if registry.settings.IsThreaded(config.ThreadingStage) {
		_, beginError := registry.BeginStage(executionContext, paths)
		return beginError
	}
	return registry.runInline(executionContext, events.OperationKindStage, paths, registry.backend.Stage)
}

// Unstage unstages paths, asynchronously when unstage threading is enabled.
func (registry *Registry) Unstage(executionContext context.Context, paths []string) error {
	if registry.settings.IsThreaded(config.ThreadingUnstage) {
		_, beginError := registry.BeginUnstage(executionContext, paths)
		return beginError
	}
	return registry.runInline(executionContext, events.OperationKindUnstage, paths, registry.backend.Unstage)
}

// Revert discards index and working tree changes of paths and marks them dirty.
func (registry *Registry) Revert(executionContext context.Context, paths []string) error {
	checkout := func(callContext context.Context, handle vcs.RepositoryHandle, normalizedPaths []string) error {
		return registry.backend.CheckoutPaths(callContext, handle, normalizedPaths, vcs.CheckoutOptions{Force: true})
	}
	return registry.runInline(executionContext, events.OperationKindRevert, paths, checkout)
}

// BeginStage submits an asynchronous stage of paths.
func (registry *Registry) BeginStage(executionContext context.Context, paths []string) (*Operation, error) {
	return registry.begin(executionContext, events.OperationKindStage, paths, registry.backend.Stage)
}

// BeginUnstage submits an asynchronous unstage of paths.
func (registry *Registry) BeginUnstage(executionContext context.Context, paths []string) (*Operation, error) {
	return registry.begin(executionContext, events.OperationKindUnstage, paths, registry.backend.Unstage)
}

func (registry *Registry) begin(executionContext context.Context, kind events.OperationKind, paths []string, call backendCall) (*Operation, error) {
	normalizedPaths := pathutils.NormalizeRelativePaths(paths)
	if len(normalizedPaths) == 0 {
		return nil, ErrNoPaths
	}
	handle := registry.repository.Handle()
	if handle == nil {
		return nil, vcs.ErrRepositoryNotOpen
	}

	operation := &Operation{kind: kind, paths: normalizedPaths, pathIndex: make(map[string]struct{}, len(normalizedPaths))}
	for _, path := range normalizedPaths {
		operation.pathIndex[path] = struct{}{}
	}

	var lock *semaphore.Weighted
	if registry.settings.IsThreaded(config.ThreadingStatusList) {
		lock = registry.statusLock
	}
	work := func(workerContext context.Context) error {
		return call(workerContext, handle, normalizedPaths)
	}
	onComplete := func(completed *taskqueue.Handle) error {
		registry.complete(operation, completed.Err())
		return nil
	}
	operation.worker = registry.queue.QueueWorker(executionContext, work, onComplete, lock)
	registry.operations = append(registry.operations, operation)

	registry.logger.Debug(operationStartedMessageConstant, registry.operationFields(operation)...)
	return operation, nil
}

func (registry *Registry) complete(operation *Operation, operationError error) {
	registry.repository.MarkDirtyPaths(operation.paths...)
	for index, registered := range registry.operations {
		if registered == operation {
			registry.operations = append(registry.operations[:index], registry.operations[index+1:]...)
			break
		}
	}
	if operationError != nil {
		registry.logger.Warn(operationFailedMessageConstant, append(registry.operationFields(operation), zap.Error(operationError))...)
	} else {
		registry.logger.Debug(operationFinishedMessageConstant, registry.operationFields(operation)...)
	}
	registry.observer.AsyncOperationDone(events.AsyncOperationDone{Operation: operation.summary(operationError)})
}

func (registry *Registry) runInline(executionContext context.Context, kind events.OperationKind, paths []string, call backendCall) error {
	normalizedPaths := pathutils.NormalizeRelativePaths(paths)
	if len(normalizedPaths) == 0 {
		return ErrNoPaths
	}
	handle := registry.repository.Handle()
	if handle == nil {
		return vcs.ErrRepositoryNotOpen
	}
	callError := call(executionContext, handle, normalizedPaths)
	registry.repository.MarkDirtyPaths(normalizedPaths...)
	if callError != nil {
		registry.logger.Warn(inlineOperationFailedMessageConstant, zap.String(operationKindFieldConstant, string(kind)), zap.Strings(pathsFieldConstant, normalizedPaths), zap.Error(callError))
	}
	return callError
}

func (registry *Registry) operationFields(operation *Operation) []zap.Field {
	return []zap.Field{
		zap.String(operationIdentifierFieldConstant, operation.Identifier().String()),
		zap.String(operationKindFieldConstant, string(operation.kind)),
		zap.Strings(pathsFieldConstant, operation.paths),
	}
}

// IsPathStaging reports whether an outstanding operation covers path.
func (registry *Registry) IsPathStaging(path string) bool {
	for _, operation := range registry.operations {
		if operation.Contains(path) {
			return true
		}
	}
	return false
}

// IsAsyncStaging reports whether any operation is outstanding.
func (registry *Registry) IsAsyncStaging() bool {
	return len(registry.operations) > 0
}

// Operations returns the outstanding operations in submission order.
func (registry *Registry) Operations() []*Operation {
	return append([]*Operation(nil), registry.operations...)
}
