package host

import (
	"context"
	"errors"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/temirov/gixcore/internal/fswatch"
)

const (
	defaultTickIntervalConstant             = 100 * time.Millisecond
	schedulerNotConfiguredMessageConstant   = "host scheduler not configured"
	postprocessNotConfiguredMessageConstant = "host postprocessor not configured"
	loopStartedMessageConstant              = "Host loop started"
	loopStoppedMessageConstant              = "Host loop stopped"
	tickFailedMessageConstant               = "Main context action failed during tick"
	batchFailedMessageConstant              = "Could not apply file-system batch"
	closeFailedMessageConstant              = "Could not close status core"
	tickIntervalFieldConstant               = "tick_interval"
)

var (
	// ErrSchedulerNotConfigured indicates a missing scheduler.
	ErrSchedulerNotConfigured = errors.New(schedulerNotConfiguredMessageConstant)

	// ErrPostprocessorNotConfigured indicates a missing postprocessor.
	ErrPostprocessorNotConfigured = errors.New(postprocessNotConfiguredMessageConstant)
)

// Scheduler is the part of the update scheduler the loop drives.
type Scheduler interface {
	Tick(executionContext context.Context) error
	MarkDirty()
	MarkDirtyWithReload(reload bool)
	Close() error
}

// Postprocessor receives classified file notifications.
type Postprocessor interface {
	PathsSaved(executionContext context.Context, paths []string) error
	PathsImported(executionContext context.Context, paths []string) error
	PathsDeleted(executionContext context.Context, paths []string) error
}

// Dependencies configures a Loop. Batches may be nil when no watcher runs.
type Dependencies struct {
	Logger        *zap.Logger
	Scheduler     Scheduler
	Postprocessor Postprocessor
	Batches       <-chan fswatch.Batch
	TickInterval  time.Duration
}

// Loop owns the main context of the status core.
type Loop struct {
	logger        *zap.Logger
	scheduler     Scheduler
	postprocessor Postprocessor
	batches       <-chan fswatch.Batch
	tickInterval  time.Duration
}

// NewLoop validates dependencies and constructs a Loop.
func NewLoop(dependencies Dependencies) (*Loop, error) {
	if dependencies.Scheduler == nil {
		return nil, ErrSchedulerNotConfigured
	}
	if dependencies.Postprocessor == nil {
		return nil, ErrPostprocessorNotConfigured
	}
	loop := &Loop{
		logger:        dependencies.Logger,
		scheduler:     dependencies.Scheduler,
		postprocessor: dependencies.Postprocessor,
		batches:       dependencies.Batches,
		tickInterval:  dependencies.TickInterval,
	}
	if loop.logger == nil {
		loop.logger = zap.NewNop()
	}
	if loop.tickInterval <= 0 {
		loop.tickInterval = defaultTickIntervalConstant
	}
	return loop, nil
}

// Run ticks the scheduler and applies batches until the context ends. On exit it
// cancels outstanding workers and closes the repository handle.
func (loop *Loop) Run(executionContext context.Context) error {
	ticker := time.NewTicker(loop.tickInterval)
	defer ticker.Stop()

	loop.logger.Info(loopStartedMessageConstant, zap.Duration(tickIntervalFieldConstant, loop.tickInterval))
	batches := loop.batches
	for {
		select {
		case <-executionContext.Done():
			loop.logger.Info(loopStoppedMessageConstant)
			if closeError := loop.scheduler.Close(); closeError != nil {
				loop.logger.Warn(closeFailedMessageConstant, zap.Error(closeError))
			}
			return nil
		case <-ticker.C:
			if tickError := loop.scheduler.Tick(executionContext); tickError != nil {
				loop.logger.Error(tickFailedMessageConstant, zap.Error(tickError))
			}
		case batch, open := <-batches:
			if !open {
				batches = nil
				continue
			}
			if applyError := loop.ApplyBatch(executionContext, batch); applyError != nil {
				loop.logger.Warn(batchFailedMessageConstant, zap.Error(applyError))
			}
		}
	}
}

// ApplyBatch forwards one batch to the scheduler and the postprocessor.
// A batch without a reload request leaves an earlier pending reload in place.
func (loop *Loop) ApplyBatch(executionContext context.Context, batch fswatch.Batch) error {
	switch {
	case batch.ReloadRequested:
		loop.scheduler.MarkDirtyWithReload(true)
	case batch.RepositoryDirty:
		loop.scheduler.MarkDirty()
	}
	var applyErrors []error
	if len(batch.Saved) > 0 {
		applyErrors = append(applyErrors, loop.postprocessor.PathsSaved(executionContext, batch.Saved))
	}
	if len(batch.Imported) > 0 {
		applyErrors = append(applyErrors, loop.postprocessor.PathsImported(executionContext, batch.Imported))
	}
	if len(batch.Deleted) > 0 {
		applyErrors = append(applyErrors, loop.postprocessor.PathsDeleted(executionContext, batch.Deleted))
	}
	return multierr.Combine(applyErrors...)
}
