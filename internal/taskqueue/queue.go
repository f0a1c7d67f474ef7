package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const (
	workerInterruptedMessageConstant  = "worker interrupted"
	workerPanicTemplateConstant       = "worker panicked: %v"
	workerInterruptedTemplateConstant = "%w: %w"
	mainActionFailedTemplateConstant  = "main context action failed: %w"
	workerStartedMessageConstant      = "Worker started"
	workerFinishedMessageConstant     = "Worker finished"
	workerFailedMessageConstant       = "Worker failed"
	mainActionFailedMessageConstant   = "Main context action failed"
	workersCancelledMessageConstant   = "Cancelled outstanding workers"
	workerIdentifierFieldConstant     = "worker_id"
	pendingActionCountFieldConstant   = "pending_actions"
	cancelledWorkerCountFieldConstant = "cancelled_workers"
)

const statusLockWeightConstant int64 = 1

// ErrWorkerInterrupted marks a worker that stopped because its context ended.
var ErrWorkerInterrupted = errors.New(workerInterruptedMessageConstant)

// WorkFunc is executed on a worker goroutine.
type WorkFunc func(executionContext context.Context) error

// CompletionFunc runs on the main context after the worker for handle finished.
type CompletionFunc func(handle *Handle) error

// Action runs on the main context.
type Action func() error

// NewStatusLock returns the lock shared by workers that must not overlap.
func NewStatusLock() *semaphore.Weighted {
	return semaphore.NewWeighted(statusLockWeightConstant)
}

// Handle tracks one worker.
type Handle struct {
	identifier uuid.UUID
	cancel     context.CancelFunc
	done       chan struct{}
	finished   atomic.Bool
	err        error
}

// Identifier returns the worker identity.
func (handle *Handle) Identifier() uuid.UUID {
	return handle.identifier
}

// IsDone reports whether the worker returned.
func (handle *Handle) IsDone() bool {
	return handle.finished.Load()
}

// Done is closed when the worker returns.
func (handle *Handle) Done() <-chan struct{} {
	return handle.done
}

// Err returns the worker error. It is meaningful only once IsDone is true.
func (handle *Handle) Err() error {
	if !handle.IsDone() {
		return nil
	}
	return handle.err
}

// Cancel asks the worker to stop.
func (handle *Handle) Cancel() {
	handle.cancel()
}

// Dependencies configures a Queue.
type Dependencies struct {
	Logger *zap.Logger
}

// Queue owns outstanding workers and the FIFO of main-context actions.
type Queue struct {
	logger         *zap.Logger
	mutex          sync.Mutex
	pendingActions []Action
	workers        map[uuid.UUID]*Handle
}

// NewQueue constructs a Queue.
func NewQueue(dependencies Dependencies) *Queue {
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{logger: logger, workers: map[uuid.UUID]*Handle{}}
}

// QueueWorker starts work on a new goroutine. When lock is not nil it is held while work runs.
// onComplete, when present, is enqueued for the main context after work returns.
func (queue *Queue) QueueWorker(parentContext context.Context, work WorkFunc, onComplete CompletionFunc, lock *semaphore.Weighted) *Handle {
	if parentContext == nil {
		parentContext = context.Background()
	}
	workerContext, cancel := context.WithCancel(parentContext)
	handle := &Handle{identifier: uuid.New(), cancel: cancel, done: make(chan struct{})}

	queue.mutex.Lock()
	queue.workers[handle.identifier] = handle
	queue.mutex.Unlock()

	go func() {
		handle.err = queue.runWorker(workerContext, handle, work, lock)
		cancel()
		handle.finished.Store(true)

		queue.mutex.Lock()
		delete(queue.workers, handle.identifier)
		if onComplete != nil {
			queue.pendingActions = append(queue.pendingActions, func() error { return onComplete(handle) })
		}
		queue.mutex.Unlock()

		close(handle.done)
	}()
	return handle
}

func (queue *Queue) runWorker(workerContext context.Context, handle *Handle, work WorkFunc, lock *semaphore.Weighted) (workerError error) {
	identifierField := zap.String(workerIdentifierFieldConstant, handle.identifier.String())
	queue.logger.Debug(workerStartedMessageConstant, identifierField)

	defer func() {
		if recovered := recover(); recovered != nil {
			workerError = fmt.Errorf(workerPanicTemplateConstant, recovered)
		}
		if workerError != nil {
			queue.logger.Debug(workerFailedMessageConstant, identifierField, zap.Error(workerError))
			return
		}
		queue.logger.Debug(workerFinishedMessageConstant, identifierField)
	}()

	if lock != nil {
		if acquireError := lock.Acquire(workerContext, statusLockWeightConstant); acquireError != nil {
			return fmt.Errorf(workerInterruptedTemplateConstant, ErrWorkerInterrupted, acquireError)
		}
		defer lock.Release(statusLockWeightConstant)
	}

	if work == nil {
		return nil
	}
	workError := work(workerContext)
	if workError != nil && workerContext.Err() != nil && !errors.Is(workError, ErrWorkerInterrupted) {
		return fmt.Errorf(workerInterruptedTemplateConstant, ErrWorkerInterrupted, workError)
	}
	return workError
}

// Enqueue appends an action for the main context.
func (queue *Queue) Enqueue(action Action) {
	if action == nil {
		return
	}
	queue.mutex.Lock()
	defer queue.mutex.Unlock()
	queue.pendingActions = append(queue.pendingActions, action)
}

// DrainOne runs the oldest pending action. Its error is logged and returned.
func (queue *Queue) DrainOne() error {
	queue.mutex.Lock()
	if len(queue.pendingActions) == 0 {
		queue.mutex.Unlock()
		return nil
	}
	action := queue.pendingActions[0]
	queue.pendingActions[0] = nil
	queue.pendingActions = queue.pendingActions[1:]
	remaining := len(queue.pendingActions)
	queue.mutex.Unlock()

	if actionError := action(); actionError != nil {
		queue.logger.Error(mainActionFailedMessageConstant, zap.Int(pendingActionCountFieldConstant, remaining), zap.Error(actionError))
		return fmt.Errorf(mainActionFailedTemplateConstant, actionError)
	}
	return nil
}

// PendingActions returns the number of actions waiting for the main context.
func (queue *Queue) PendingActions() int {
	queue.mutex.Lock()
	defer queue.mutex.Unlock()
	return len(queue.pendingActions)
}

// ActiveWorkers returns the number of workers that have not returned.
func (queue *Queue) ActiveWorkers() int {
	queue.mutex.Lock()
	defer queue.mutex.Unlock()
	return len(queue.workers)
}

// CancelAll cancels every outstanding worker.
func (queue *Queue) CancelAll() {
	queue.mutex.Lock()
	handles := make([]*Handle, 0, len(queue.workers))
	for _, handle := range queue.workers {
		handles = append(handles, handle)
	}
	queue.mutex.Unlock()

	for _, handle := range handles {
		handle.Cancel()
	}
	if len(handles) > 0 {
		queue.logger.Info(workersCancelledMessageConstant, zap.Int(cancelledWorkerCountFieldConstant, len(handles)))
	}
}
