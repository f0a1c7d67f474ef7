package execshell

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// CommandName identifies an executable invoked through the shell executor.
type CommandName string

// CommandGit is the git executable.
const CommandGit CommandName = "git"

const (
	loggerNotConfiguredMessageConstant        = "logger not configured"
	commandRunnerNotConfiguredMessageConstant = "command runner not configured"
	commandFailedTemplateConstant             = "%s %s exited with code %d: %s"
	commandExecutionFailedTemplateConstant    = "%s %s could not run: %v"
)

// ErrLoggerNotConfigured indicates that the executor was created without a logger.
var ErrLoggerNotConfigured = errors.New(loggerNotConfiguredMessageConstant)

// ErrCommandRunnerNotConfigured indicates that the executor was created without a runner.
var ErrCommandRunnerNotConfigured = errors.New(commandRunnerNotConfiguredMessageConstant)

// CommandDetails describes arguments and environment for a single invocation.
type CommandDetails struct {
	Arguments            []string
	WorkingDirectory     string
	EnvironmentVariables map[string]string
	StandardInput        []byte
}

// ShellCommand couples an executable with its invocation details.
type ShellCommand struct {
	Name    CommandName
	Details CommandDetails
}

// ExecutionResult captures process output.
type ExecutionResult struct {
	StandardOutput string
	StandardError  string
	ExitCode       int
}

// CommandRunner runs a shell command and reports its result.
type CommandRunner interface {
	Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error)
}

// GitExecutor runs git commands. ShellExecutor satisfies it.
type GitExecutor interface {
	ExecuteGit(executionContext context.Context, details CommandDetails) (ExecutionResult, error)
}

// CommandFailedError reports a command that ran and exited with a non-zero code.
type CommandFailedError struct {
	Command ShellCommand
	Result  ExecutionResult
}

func (failure CommandFailedError) Error() string {
	return fmt.Sprintf(commandFailedTemplateConstant, failure.Command.Name, strings.Join(failure.Command.Details.Arguments, commandArgumentsJoinSeparatorConstant), failure.Result.ExitCode, strings.TrimSpace(failure.Result.StandardError))
}

// CommandExecutionError reports a command that could not be run at all.
type CommandExecutionError struct {
	Command ShellCommand
	Cause   error
}

func (failure CommandExecutionError) Error() string {
	return fmt.Sprintf(commandExecutionFailedTemplateConstant, failure.Command.Name, strings.Join(failure.Command.Details.Arguments, commandArgumentsJoinSeparatorConstant), failure.Cause)
}

func (failure CommandExecutionError) Unwrap() error {
	return failure.Cause
}
