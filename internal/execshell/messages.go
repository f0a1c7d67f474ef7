package execshell

import (
	"fmt"
	"strings"
)

type messageStage int

const (
	messageStageStart messageStage = iota
	messageStageSuccess
	messageStageFailure
	messageStageExecutionFailure
)

const (
	genericStartTemplateConstant            = "Running %s"
	genericSuccessTemplateConstant          = "Completed %s"
	genericFailureTemplateConstant          = "%s failed with exit code %d%s"
	genericExecutionFailureTemplateConstant = "%s failed: %s"
	commandLabelTemplateConstant            = "%s%s"
	commandNameAndArgumentsTemplateConstant = "%s %s"
	workingDirectorySuffixTemplateConstant  = " (in %s)"
	commandArgumentsJoinSeparatorConstant   = " "
	pathListJoinSeparatorConstant           = ", "
	standardErrorSuffixTemplateConstant     = ": %s"
	unknownFailureMessageConstant           = "unknown error"
	emptyStringConstant                     = ""
	defaultWorkingDirectoryLabelConstant    = "current directory"
	allPathsLabelConstant                   = "all paths"
	pathCountLabelTemplateConstant          = "%s and %d more"
	pathSeparatorArgumentConstant           = "--"
	maximumListedPathsConstant              = 3
)

const (
	gitStatusSubcommandNameConstant   = "status"
	gitAddSubcommandNameConstant      = "add"
	gitResetSubcommandNameConstant    = "reset"
	gitRemoveSubcommandNameConstant   = "rm"
	gitCheckoutSubcommandNameConstant = "checkout"
	gitRevParseSubcommandNameConstant = "rev-parse"
)

// Each git template receives the described target first and the working directory second.
type gitMessageTemplates struct {
	start            string
	success          string
	failure          string
	executionFailure string
}

var gitMessageTemplatesBySubcommand = map[string]gitMessageTemplates{
	gitStatusSubcommandNameConstant: {
		start:            "Reading status of %s in %s",
		success:          "Read status of %s in %s",
		failure:          "Failed to read status of %s in %s (exit code %d%s)",
		executionFailure: "Unable to read status of %s in %s: %s",
	},
	gitAddSubcommandNameConstant: {
		start:            "Staging %s in %s",
		success:          "Staged %s in %s",
		failure:          "Failed to stage %s in %s (exit code %d%s)",
		executionFailure: "Unable to stage %s in %s: %s",
	},
	gitResetSubcommandNameConstant: {
		start:            "Unstaging %s in %s",
		success:          "Unstaged %s in %s",
		failure:          "Failed to unstage %s in %s (exit code %d%s)",
		executionFailure: "Unable to unstage %s in %s: %s",
	},
	gitRemoveSubcommandNameConstant: {
		start:            "Removing %s from the index in %s",
		success:          "Removed %s from the index in %s",
		failure:          "Failed to remove %s from the index in %s (exit code %d%s)",
		executionFailure: "Unable to remove %s from the index in %s: %s",
	},
	gitCheckoutSubcommandNameConstant: {
		start:            "Reverting %s in %s",
		success:          "Reverted %s in %s",
		failure:          "Failed to revert %s in %s (exit code %d%s)",
		executionFailure: "Unable to revert %s in %s: %s",
	},
	gitRevParseSubcommandNameConstant: {
		start:            "Resolving %s in %s",
		success:          "Resolved %s in %s",
		failure:          "Failed to resolve %s in %s (exit code %d%s)",
		executionFailure: "Unable to resolve %s in %s: %s",
	},
}

// CommandMessageFormatter builds human-readable messages for command lifecycle events.
type CommandMessageFormatter struct{}

// BuildStartedMessage formats the message describing a command about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageStart)
}

// BuildSuccessMessage formats the message describing a completed command with a zero exit code.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageSuccess)
}

// BuildFailureMessage formats the message describing a command that returned a non-zero exit code.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	return formatter.buildMessage(command, result, nil, messageStageFailure)
}

// BuildExecutionFailureMessage formats the message describing an unexpected execution failure.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, failure error) string {
	return formatter.buildMessage(command, ExecutionResult{}, failure, messageStageExecutionFailure)
}

func (formatter CommandMessageFormatter) buildMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	if command.Name != CommandGit || len(command.Details.Arguments) == 0 {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
	templates, known := gitMessageTemplatesBySubcommand[strings.TrimSpace(command.Details.Arguments[0])]
	if !known {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	target := formatter.describeTarget(command.Details.Arguments)
	workingDirectory := formatter.describeWorkingDirectory(command)
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(templates.start, target, workingDirectory)
	case messageStageSuccess:
		return fmt.Sprintf(templates.success, target, workingDirectory)
	case messageStageFailure:
		return fmt.Sprintf(templates.failure, target, workingDirectory, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(templates.executionFailure, target, workingDirectory, formatter.describeFailure(failure))
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) buildGenericMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	commandLabel := formatter.formatCommandLabel(command)
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(genericStartTemplateConstant, commandLabel)
	case messageStageSuccess:
		return fmt.Sprintf(genericSuccessTemplateConstant, commandLabel)
	case messageStageFailure:
		return fmt.Sprintf(genericFailureTemplateConstant, commandLabel, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(genericExecutionFailureTemplateConstant, commandLabel, formatter.describeFailure(failure))
	default:
		return emptyStringConstant
	}
}

// describeTarget lists the pathspecs following "--", or the last non-flag argument for rev-parse.
func (formatter CommandMessageFormatter) describeTarget(arguments []string) string {
	pathArguments := extractPathArguments(arguments)
	if len(pathArguments) == 0 {
		if strings.TrimSpace(arguments[0]) == gitRevParseSubcommandNameConstant && len(arguments) > 1 {
			return strings.TrimSpace(arguments[len(arguments)-1])
		}
		return allPathsLabelConstant
	}
	if len(pathArguments) <= maximumListedPathsConstant {
		return strings.Join(pathArguments, pathListJoinSeparatorConstant)
	}
	listedPaths := strings.Join(pathArguments[:maximumListedPathsConstant], pathListJoinSeparatorConstant)
	return fmt.Sprintf(pathCountLabelTemplateConstant, listedPaths, len(pathArguments)-maximumListedPathsConstant)
}

func (formatter CommandMessageFormatter) formatCommandLabel(command ShellCommand) string {
	commandLabel := string(command.Name)
	if len(command.Details.Arguments) > 0 {
		commandLabel = fmt.Sprintf(commandNameAndArgumentsTemplateConstant, commandLabel, strings.Join(command.Details.Arguments, commandArgumentsJoinSeparatorConstant))
	}
	return fmt.Sprintf(commandLabelTemplateConstant, commandLabel, formatter.formatWorkingDirectorySuffix(command))
}

func (formatter CommandMessageFormatter) formatWorkingDirectorySuffix(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(workingDirectorySuffixTemplateConstant, trimmedWorkingDirectory)
}

func (formatter CommandMessageFormatter) formatStandardErrorSuffix(standardError string) string {
	trimmedStandardError := strings.TrimSpace(standardError)
	if len(trimmedStandardError) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(standardErrorSuffixTemplateConstant, trimmedStandardError)
}

func (formatter CommandMessageFormatter) describeWorkingDirectory(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return defaultWorkingDirectoryLabelConstant
	}
	return trimmedWorkingDirectory
}

func (formatter CommandMessageFormatter) describeFailure(failure error) string {
	if failure == nil {
		return unknownFailureMessageConstant
	}
	return failure.Error()
}

func extractPathArguments(arguments []string) []string {
	for argumentIndex, argument := range arguments {
		if argument == pathSeparatorArgumentConstant {
			return arguments[argumentIndex+1:]
		}
	}
	return nil
}
