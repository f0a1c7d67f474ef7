package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/temirov/gixcore/internal/fswatch"
	"github.com/temirov/gixcore/internal/gixcore"
	"github.com/temirov/gixcore/internal/ui"
	"github.com/temirov/gixcore/internal/utils"
	pathutils "github.com/temirov/gixcore/internal/utils/path"
	"github.com/temirov/gixcore/internal/vcs"
)

const (
	statusCommandUseConstant          = "status"
	statusCommandShortConstant        = "Print the repository status"
	stageCommandUseConstant           = "stage <path>..."
	stageCommandShortConstant         = "Stage paths and print their resulting status"
	unstageCommandUseConstant         = "unstage <path>..."
	unstageCommandShortConstant       = "Unstage paths and print their resulting status"
	revertCommandUseConstant          = "revert <path>..."
	revertCommandShortConstant        = "Discard changes to paths and print their resulting status"
	watchCommandUseConstant           = "watch"
	watchCommandShortConstant         = "Keep the status current while files change"
	operationStageConstant            = "stage"
	operationUnstageConstant          = "unstage"
	operationRevertConstant           = "revert"
	pathOutsideRepositoryMessage      = "path outside repository"
	pathOutsideRepositoryTemplate     = "%w: %s"
	operationErrorTemplateConstant    = "%s failed: %w"
	reportEncodeErrorTemplateConstant = "unable to write report: %w"
	watcherCreationErrorTemplate      = "unable to watch repository: %w"
	watchingMessageConstant           = "Watching repository"
	watchStoppedMessageConstant       = "Stopped watching repository"
	repositoryPathLogFieldConstant    = "repository_path"
	reportIndentConstant              = 2
	parentDirectoryConstant           = ".."
	parentDirectoryPrefixConstant     = "../"
)

// ErrPathOutsideRepository indicates a command argument that does not resolve inside the working tree.
var ErrPathOutsideRepository = errors.New(pathOutsideRepositoryMessage)

type statusReport struct {
	Repository string            `yaml:"repository"`
	Backend    string            `yaml:"backend"`
	Summary    vcs.StatusSummary `yaml:"summary"`
	Entries    []vcs.StatusEntry `yaml:"entries"`
}

type operationReport struct {
	Repository string            `yaml:"repository"`
	Operation  string            `yaml:"operation"`
	Paths      []vcs.StatusEntry `yaml:"paths"`
}

type pathOperation func(core *gixcore.Core, executionContext context.Context, paths []string) error

func (application *Application) newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   statusCommandUseConstant,
		Short: statusCommandShortConstant,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			return application.runStatus(command)
		},
	}
}

func (application *Application) newStageCommand() *cobra.Command {
	return application.newPathCommand(stageCommandUseConstant, stageCommandShortConstant, operationStageConstant,
		func(core *gixcore.Core, executionContext context.Context, paths []string) error {
			return core.Registry().Stage(executionContext, paths)
		})
}

func (application *Application) newUnstageCommand() *cobra.Command {
	return application.newPathCommand(unstageCommandUseConstant, unstageCommandShortConstant, operationUnstageConstant,
		func(core *gixcore.Core, executionContext context.Context, paths []string) error {
			return core.Registry().Unstage(executionContext, paths)
		})
}

func (application *Application) newRevertCommand() *cobra.Command {
	return application.newPathCommand(revertCommandUseConstant, revertCommandShortConstant, operationRevertConstant,
		func(core *gixcore.Core, executionContext context.Context, paths []string) error {
			return core.Registry().Revert(executionContext, paths)
		})
}

func (application *Application) newPathCommand(use string, short string, operationName string, operation pathOperation) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			return application.runPathOperation(command, operationName, operation, arguments)
		},
	}
}

func (application *Application) newWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   watchCommandUseConstant,
		Short: watchCommandShortConstant,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			return application.runWatch(command)
		},
	}
}

func (application *Application) runStatus(command *cobra.Command) error {
	core, coreError := application.openCore()
	if coreError != nil {
		return coreError
	}
	defer core.Close()

	snapshot, refreshError := core.Refresh(command.Context())
	if refreshError != nil {
		return refreshError
	}
	invocation, found := utils.InvocationFrom(command.Context())
	if !found {
		invocation = utils.Invocation{
			RepositoryPath: application.configuration.Core.RepositoryPath,
			Backend:        string(application.configuration.Core.Backend),
		}
	}
	report := statusReport{
		Repository: invocation.RepositoryPath,
		Backend:    invocation.Backend,
		Summary:    snapshot.Summary(),
		Entries:    snapshot.Entries(),
	}
	return application.writeReport(command, report)
}

func (application *Application) runPathOperation(command *cobra.Command, operationName string, operation pathOperation, arguments []string) error {
	paths, resolveError := application.resolvePaths(arguments)
	if resolveError != nil {
		return resolveError
	}

	core, coreError := application.openCore()
	if coreError != nil {
		return coreError
	}
	defer core.Close()

	executionContext := command.Context()
	if _, refreshError := core.Refresh(executionContext); refreshError != nil {
		return refreshError
	}
	if operationError := operation(core, executionContext, paths); operationError != nil {
		return fmt.Errorf(operationErrorTemplateConstant, operationName, operationError)
	}
	if settleError := core.Settle(executionContext); settleError != nil {
		return fmt.Errorf(operationErrorTemplateConstant, operationName, settleError)
	}

	snapshot := core.Scheduler().CachedStatus()
	report := operationReport{
		Repository: application.configuration.Core.RepositoryPath,
		Operation:  operationName,
		Paths:      make([]vcs.StatusEntry, 0, len(paths)),
	}
	for _, path := range paths {
		entry := vcs.StatusEntry{Path: path}
		if snapshot != nil {
			if cachedEntry, found := snapshot.Get(path); found {
				entry = cachedEntry
			}
		}
		report.Paths = append(report.Paths, entry)
	}
	return application.writeReport(command, report)
}

func (application *Application) runWatch(command *cobra.Command) error {
	core, coreError := application.openCore()
	if coreError != nil {
		return coreError
	}
	defer core.Close()

	core.Subscribe(ui.NewUpdateEventLogger(application.logger))
	core.Scheduler().AddWatcher(&consoleWatcher{})

	repositoryPath := application.configuration.Core.RepositoryPath
	fileWatcher, watcherError := fswatch.NewWatcher(fswatch.Dependencies{
		Logger:   application.logger,
		RootPath: repositoryPath,
		Debounce: core.Settings().Core().WatchDebounce,
	})
	if watcherError != nil {
		return fmt.Errorf(watcherCreationErrorTemplate, watcherError)
	}
	loop, loopError := core.NewLoop(fileWatcher.Batches())
	if loopError != nil {
		return loopError
	}
	core.Scheduler().MarkDirty()

	parentContext := command.Context()
	if parentContext == nil {
		parentContext = context.Background()
	}
	signalContext, stopSignals := signal.NotifyContext(parentContext, os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	application.logger.Info(watchingMessageConstant, zap.String(repositoryPathLogFieldConstant, repositoryPath))
	group, groupContext := errgroup.WithContext(signalContext)
	group.Go(func() error {
		return fileWatcher.Run(groupContext)
	})
	group.Go(func() error {
		return loop.Run(groupContext)
	})
	waitError := group.Wait()
	application.logger.Info(watchStoppedMessageConstant, zap.String(repositoryPathLogFieldConstant, repositoryPath))
	return waitError
}

// resolvePaths converts command arguments into repository-relative paths.
// Relative arguments are taken relative to the repository root.
func (application *Application) resolvePaths(arguments []string) ([]string, error) {
	repositoryPath := application.configuration.Core.RepositoryPath
	candidates := make([]string, 0, len(arguments))
	for _, argument := range arguments {
		if !filepath.IsAbs(argument) {
			candidates = append(candidates, argument)
			continue
		}
		relativePath, inside := pathutils.RelativeToRoot(repositoryPath, argument)
		if !inside {
			return nil, fmt.Errorf(pathOutsideRepositoryTemplate, ErrPathOutsideRepository, argument)
		}
		candidates = append(candidates, relativePath)
	}
	for _, candidate := range candidates {
		normalized := pathutils.NormalizeRelativePath(candidate)
		if normalized == parentDirectoryConstant || strings.HasPrefix(normalized, parentDirectoryPrefixConstant) {
			return nil, fmt.Errorf(pathOutsideRepositoryTemplate, ErrPathOutsideRepository, candidate)
		}
	}
	return pathutils.NormalizeRelativePaths(candidates), nil
}

func (application *Application) writeReport(command *cobra.Command, report any) error {
	encoder := yaml.NewEncoder(application.outputWriter(command))
	encoder.SetIndent(reportIndentConstant)
	if encodeError := encoder.Encode(report); encodeError != nil {
		return fmt.Errorf(reportEncodeErrorTemplateConstant, encodeError)
	}
	if closeError := encoder.Close(); closeError != nil {
		return fmt.Errorf(reportEncodeErrorTemplateConstant, closeError)
	}
	return nil
}

// consoleWatcher keeps lazy-mode refreshes running while the watch command is active.
type consoleWatcher struct{}

func (*consoleWatcher) IsValid() bool    { return true }
func (*consoleWatcher) IsWatching() bool { return true }
