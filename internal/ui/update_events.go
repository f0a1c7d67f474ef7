package ui

import (
	"go.uber.org/zap"

	"github.com/temirov/gixcore/internal/events"
)

const (
	repositoryLoadedMessageConstant  = "Repository loaded"
	updateStartedMessageConstant     = "Status update started"
	updateFinishedMessageConstant    = "Status updated"
	updateFailedMessageConstant      = "Status update failed"
	operationFinishedMessageConstant = "Operation finished"
	operationFailedMessageConstant   = "Operation failed"
	repositoryPathFieldConstant      = "repository_path"
	fullUpdateFieldConstant          = "full"
	pathsFieldConstant               = "paths"
	entryCountFieldConstant          = "entries"
	stagedCountFieldConstant         = "staged"
	unstagedCountFieldConstant       = "unstaged"
	untrackedCountFieldConstant      = "untracked"
	conflictedCountFieldConstant     = "conflicted"
	operationIdentifierFieldConstant = "operation_id"
	operationKindFieldConstant       = "operation_kind"
)

// UpdateEventLogger implements events.Observer by logging every notification.
type UpdateEventLogger struct {
	logger *zap.Logger
}

// NewUpdateEventLogger constructs an UpdateEventLogger backed by logger.
func NewUpdateEventLogger(logger *zap.Logger) *UpdateEventLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UpdateEventLogger{logger: logger}
}

// RepositoryLoaded implements events.Observer.
func (eventLogger *UpdateEventLogger) RepositoryLoaded(event events.RepositoryLoaded) {
	repositoryPath := ""
	if event.Handle != nil {
		repositoryPath = event.Handle.Path()
	}
	eventLogger.logger.Info(repositoryLoadedMessageConstant, zap.String(repositoryPathFieldConstant, repositoryPath))
}

// UpdateStarted implements events.Observer.
func (eventLogger *UpdateEventLogger) UpdateStarted(event events.UpdateStarted) {
	eventLogger.logger.Debug(updateStartedMessageConstant, zap.Bool(fullUpdateFieldConstant, event.Full))
}

// UpdateFinished implements events.Observer.
func (eventLogger *UpdateEventLogger) UpdateFinished(event events.UpdateFinished) {
	if event.Err != nil {
		eventLogger.logger.Warn(updateFailedMessageConstant, zap.Strings(pathsFieldConstant, event.Paths), zap.Error(event.Err))
		return
	}
	summary := event.Snapshot.Summary()
	eventLogger.logger.Info(updateFinishedMessageConstant,
		zap.Bool(fullUpdateFieldConstant, event.Paths == nil),
		zap.Strings(pathsFieldConstant, event.Paths),
		zap.Int(entryCountFieldConstant, event.Snapshot.Len()),
		zap.Int(stagedCountFieldConstant, summary.Staged),
		zap.Int(unstagedCountFieldConstant, summary.Unstaged),
		zap.Int(untrackedCountFieldConstant, summary.Untracked),
		zap.Int(conflictedCountFieldConstant, summary.Conflicted),
	)
}

// AsyncOperationDone implements events.Observer.
func (eventLogger *UpdateEventLogger) AsyncOperationDone(event events.AsyncOperationDone) {
	fields := []zap.Field{
		zap.String(operationIdentifierFieldConstant, event.Operation.Identifier.String()),
		zap.String(operationKindFieldConstant, string(event.Operation.Kind)),
		zap.Strings(pathsFieldConstant, event.Operation.Paths),
	}
	if event.Operation.Err != nil {
		eventLogger.logger.Warn(operationFailedMessageConstant, append(fields, zap.Error(event.Operation.Err))...)
		return
	}
	eventLogger.logger.Info(operationFinishedMessageConstant, fields...)
}
