package execshell

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

const (
	logMessageCommandStartedConstant   = "command started"
	logMessageCommandCompletedConstant = "command completed"
	logMessageCommandFailedConstant    = "command failed"
	logMessageCommandErroredConstant   = "command could not run"
	logFieldCommandConstant            = "command"
	logFieldArgumentsConstant          = "arguments"
	logFieldWorkingDirectoryConstant   = "working_directory"
	logFieldExitCodeConstant           = "exit_code"
	logFieldStandardErrorConstant      = "stderr"
)

// ShellExecutor runs commands through a CommandRunner, logging each step and notifying an observer.
type ShellExecutor struct {
	logger               *zap.Logger
	runner               CommandRunner
	humanReadableLogging bool
	formatter            CommandMessageFormatter
	observer             CommandEventObserver
}

// NewShellExecutor validates its collaborators and builds an executor.
// Passing true for humanReadableLogging switches to sentence-style log messages.
func NewShellExecutor(logger *zap.Logger, runner CommandRunner, humanReadableLogging ...bool) (*ShellExecutor, error) {
	if logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if runner == nil {
		return nil, ErrCommandRunnerNotConfigured
	}
	executor := &ShellExecutor{
		logger:    logger,
		runner:    runner,
		formatter: CommandMessageFormatter{},
		observer:  noopCommandEventObserver{},
	}
	if len(humanReadableLogging) > 0 {
		executor.humanReadableLogging = humanReadableLogging[0]
	}
	return executor, nil
}

// WithObserver installs an observer that receives command lifecycle events. A nil observer restores the no-op one.
func (executor *ShellExecutor) WithObserver(observer CommandEventObserver) *ShellExecutor {
	if observer == nil {
		observer = noopCommandEventObserver{}
	}
	executor.observer = observer
	return executor
}

// ExecuteGit runs git with the provided details.
func (executor *ShellExecutor) ExecuteGit(executionContext context.Context, details CommandDetails) (ExecutionResult, error) {
	return executor.Execute(executionContext, ShellCommand{Name: CommandGit, Details: details})
}

// Execute runs the command. Non-zero exits become CommandFailedError; runner failures become CommandExecutionError.
func (executor *ShellExecutor) Execute(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	executor.logStarted(command)
	executor.observer.CommandStarted(command)

	executionResult, runError := executor.runner.Run(executionContext, command)
	if runError != nil {
		executor.logExecutionFailure(command, runError)
		executor.observer.CommandExecutionFailed(command, runError)
		return ExecutionResult{}, CommandExecutionError{Command: command, Cause: runError}
	}

	executor.observer.CommandCompleted(command, executionResult)
	if executionResult.ExitCode != 0 {
		executor.logFailure(command, executionResult)
		return ExecutionResult{}, CommandFailedError{Command: command, Result: executionResult}
	}

	executor.logCompleted(command)
	return executionResult, nil
}

func (executor *ShellExecutor) commandFields(command ShellCommand) []zap.Field {
	return []zap.Field{
		zap.String(logFieldCommandConstant, string(command.Name)),
		zap.String(logFieldArgumentsConstant, strings.Join(command.Details.Arguments, commandArgumentsJoinSeparatorConstant)),
		zap.String(logFieldWorkingDirectoryConstant, command.Details.WorkingDirectory),
	}
}

func (executor *ShellExecutor) logStarted(command ShellCommand) {
	if executor.humanReadableLogging {
		executor.logger.Debug(executor.formatter.BuildStartedMessage(command))
		return
	}
	executor.logger.Debug(logMessageCommandStartedConstant, executor.commandFields(command)...)
}

func (executor *ShellExecutor) logCompleted(command ShellCommand) {
	if executor.humanReadableLogging {
		executor.logger.Debug(executor.formatter.BuildSuccessMessage(command))
		return
	}
	executor.logger.Debug(logMessageCommandCompletedConstant, executor.commandFields(command)...)
}

func (executor *ShellExecutor) logFailure(command ShellCommand, result ExecutionResult) {
	if executor.humanReadableLogging {
		executor.logger.Warn(executor.formatter.BuildFailureMessage(command, result))
		return
	}
	fields := append(executor.commandFields(command),
		zap.Int(logFieldExitCodeConstant, result.ExitCode),
		zap.String(logFieldStandardErrorConstant, strings.TrimSpace(result.StandardError)),
	)
	executor.logger.Warn(logMessageCommandFailedConstant, fields...)
}

func (executor *ShellExecutor) logExecutionFailure(command ShellCommand, failure error) {
	if executor.humanReadableLogging {
		executor.logger.Warn(executor.formatter.BuildExecutionFailureMessage(command, failure))
		return
	}
	executor.logger.Warn(logMessageCommandErroredConstant, append(executor.commandFields(command), zap.Error(failure))...)
}
