package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/temirov/gixcore/internal/config"
	"github.com/temirov/gixcore/internal/gixcore"
	"github.com/temirov/gixcore/internal/scheduler"
	"github.com/temirov/gixcore/internal/ui"
	"github.com/temirov/gixcore/internal/utils"
	flagutils "github.com/temirov/gixcore/internal/utils/flags"
	pathutils "github.com/temirov/gixcore/internal/utils/path"
	"github.com/temirov/gixcore/internal/vcs"
)

const (
	applicationNameConstant                 = "gixcore"
	applicationShortDescriptionConstant     = "Git status core with incremental refresh"
	applicationLongDescriptionConstant      = "gixcore keeps a cached Git status for a working tree, refreshing it incrementally as files change and staging edits automatically."
	configFileFlagNameConstant              = "config"
	configFileFlagUsageConstant             = "Optional path to a configuration file (YAML or JSON)."
	logLevelFlagNameConstant                = "log-level"
	logLevelFlagUsageConstant               = "Override the configured log level."
	logFormatFlagNameConstant               = "log-format"
	logFormatFlagUsageConstant              = "Override the configured log format (structured or console)."
	repositoryFlagNameConstant              = "repository"
	repositoryFlagShorthandConstant         = "C"
	repositoryFlagUsageConstant             = "Repository working tree to operate on."
	backendFlagNameConstant                 = "backend"
	backendFlagUsageConstant                = "Version-control backend."
	lazyFlagNameConstant                    = "lazy"
	lazyFlagUsageConstant                   = "Refresh only while a consumer is watching."
	autoStageFlagNameConstant               = "auto-stage"
	autoStageFlagUsageConstant              = "Stage saved and imported files automatically."
	threadedFlagNameConstant                = "threaded"
	threadedFlagUsageConstant               = "Run status and staging on background workers."
	environmentPrefixConstant               = "GIXCORE"
	configurationNameConstant               = "config"
	configurationTypeConstant               = "yaml"
	configurationInitializedMessageConstant = "configuration initialized"
	configurationLogLevelFieldConstant      = "log_level"
	configurationLogFormatFieldConstant     = "log_format"
	configurationFileFieldConstant          = "config_file"
	configurationRepositoryFieldConstant    = "repository_path"
	configurationLoadErrorTemplateConstant  = "unable to load configuration: %w"
	configurationInvalidErrorTemplate       = "invalid configuration: %w"
	repositoryResolveErrorTemplateConstant  = "unable to resolve repository path: %w"
	loggerCreationErrorTemplateConstant     = "unable to create logger: %w"
	loggerSyncErrorTemplateConstant         = "unable to flush logger: %w"
	coreCreationErrorTemplateConstant       = "unable to create status core: %w"
	loggerNotInitializedMessageConstant     = "logger not initialized"
	defaultConfigurationSearchPathConstant  = "."
	userConfigurationSearchPathConstant     = "~/.gixcore"
)

// Application wires the Cobra root command, configuration loader, structured logger and status core.
type Application struct {
	rootCommand           *cobra.Command
	configurationLoader   *utils.ConfigurationLoader
	loggerFactory         *utils.LoggerFactory
	logger                *zap.Logger
	configuration         config.Configuration
	configurationMetadata utils.LoadedConfiguration
	configurationFilePath string
	logLevelFlagValue     string
	logFormatFlagValue    string
	repositoryFlagValue   string
	backendFlagValue      string
	lazyFlagValue         bool
	autoStageFlagValue    bool
	threadedFlagValue     bool
	homeExpander          *pathutils.HomeExpander

	backendOverride     vcs.Backend
	environmentOverride scheduler.Environment
}

// NewApplication assembles a fully wired CLI application instance.
func NewApplication() *Application {
	homeExpander := pathutils.NewHomeExpander()
	configurationLoader := utils.NewConfigurationLoader(
		configurationNameConstant,
		configurationTypeConstant,
		environmentPrefixConstant,
		[]string{defaultConfigurationSearchPathConstant, homeExpander.Expand(userConfigurationSearchPathConstant)},
	)
	configurationLoader.SetEmbeddedConfiguration(EmbeddedDefaultConfiguration())
	configurationLoader.SetDecodeHooks(config.ThreadingFlagsDecodeHook())

	application := &Application{
		configurationLoader: configurationLoader,
		loggerFactory:       utils.NewLoggerFactory(nil),
		logger:              zap.NewNop(),
		homeExpander:        homeExpander,
	}

	cobraCommand := &cobra.Command{
		Use:           applicationNameConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			return application.initializeConfiguration(command)
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return command.Help()
		},
	}

	defaults := config.DefaultConfiguration()
	cobraCommand.SetContext(context.Background())
	persistentFlags := cobraCommand.PersistentFlags()
	persistentFlags.StringVar(&application.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	flagutils.AddChoiceFlag(persistentFlags, &application.logLevelFlagValue, logLevelFlagNameConstant, defaults.Common.LogLevel, supportedLogLevels(), logLevelFlagUsageConstant)
	flagutils.AddChoiceFlag(persistentFlags, &application.logFormatFlagValue, logFormatFlagNameConstant, defaults.Common.LogFormat, supportedLogFormats(), logFormatFlagUsageConstant)
	persistentFlags.StringVarP(&application.repositoryFlagValue, repositoryFlagNameConstant, repositoryFlagShorthandConstant, "", repositoryFlagUsageConstant)
	flagutils.AddChoiceFlag(persistentFlags, &application.backendFlagValue, backendFlagNameConstant, string(defaults.Core.Backend), config.SupportedBackends(), backendFlagUsageConstant)
	flagutils.AddToggleFlag(persistentFlags, &application.lazyFlagValue, lazyFlagNameConstant, "", defaults.Core.LazyMode, lazyFlagUsageConstant)
	flagutils.AddToggleFlag(persistentFlags, &application.autoStageFlagValue, autoStageFlagNameConstant, "", defaults.Core.AutoStage, autoStageFlagUsageConstant)
	flagutils.AddToggleFlag(persistentFlags, &application.threadedFlagValue, threadedFlagNameConstant, "", defaults.Core.Threading == config.ThreadingAll, threadedFlagUsageConstant)

	cobraCommand.AddCommand(
		application.newStatusCommand(),
		application.newStageCommand(),
		application.newUnstageCommand(),
		application.newRevertCommand(),
		application.newWatchCommand(),
	)

	application.rootCommand = cobraCommand
	return application
}

// Execute runs the command hierarchy with the process arguments.
func (application *Application) Execute() error {
	return application.ExecuteWithArguments(os.Args[1:])
}

// ExecuteWithArguments runs the command hierarchy with arguments and ensures logger flushing.
func (application *Application) ExecuteWithArguments(arguments []string) error {
	application.rootCommand.SetArgs(flagutils.NormalizeToggleArguments(arguments, application.rootCommand.PersistentFlags()))
	executionError := application.rootCommand.Execute()
	if syncError := utils.SyncLogger(application.logger); syncError != nil {
		return fmt.Errorf(loggerSyncErrorTemplateConstant, syncError)
	}
	return executionError
}

func supportedLogLevels() []string {
	return []string{string(utils.LogLevelDebug), string(utils.LogLevelInfo), string(utils.LogLevelWarn), string(utils.LogLevelError)}
}

func supportedLogFormats() []string {
	return []string{string(utils.LogFormatStructured), string(utils.LogFormatConsole)}
}

// Execute builds a fresh application instance and executes the root command hierarchy.
func Execute() error {
	return NewApplication().Execute()
}

func (application *Application) initializeConfiguration(command *cobra.Command) error {
	loadedConfiguration, loadError := application.configurationLoader.LoadConfiguration(application.configurationFilePath, nil, &application.configuration)
	if loadError != nil {
		return fmt.Errorf(configurationLoadErrorTemplateConstant, loadError)
	}
	application.configurationMetadata = loadedConfiguration
	application.applyFlagOverrides(command)

	if validationError := application.configuration.Validate(); validationError != nil {
		return fmt.Errorf(configurationInvalidErrorTemplate, validationError)
	}
	repositoryPath, resolveError := application.homeExpander.ResolveDirectory(application.configuration.Core.RepositoryPath)
	if resolveError != nil {
		return fmt.Errorf(repositoryResolveErrorTemplateConstant, resolveError)
	}
	application.configuration.Core.RepositoryPath = repositoryPath

	logger, loggerCreationError := application.loggerFactory.CreateLogger(
		utils.LogLevel(application.configuration.Common.LogLevel),
		utils.LogFormat(application.configuration.Common.LogFormat),
	)
	if loggerCreationError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, loggerCreationError)
	}
	application.logger = logger

	application.logger.Debug(
		configurationInitializedMessageConstant,
		zap.String(configurationLogLevelFieldConstant, application.configuration.Common.LogLevel),
		zap.String(configurationLogFormatFieldConstant, application.configuration.Common.LogFormat),
		zap.String(configurationFileFieldConstant, application.configurationMetadata.ConfigFileUsed),
		zap.String(configurationRepositoryFieldConstant, repositoryPath),
	)

	if command != nil {
		updatedContext := utils.WithInvocation(command.Context(), utils.Invocation{
			ConfigurationFilePath: application.configurationMetadata.ConfigFileUsed,
			RepositoryPath:        repositoryPath,
			Backend:               string(application.configuration.Core.Backend),
		})
		command.SetContext(updatedContext)
		if rootCommand := command.Root(); rootCommand != nil {
			rootCommand.SetContext(updatedContext)
		}
	}
	return nil
}

func (application *Application) applyFlagOverrides(command *cobra.Command) {
	if application.persistentFlagChanged(command, logLevelFlagNameConstant) {
		application.configuration.Common.LogLevel = application.logLevelFlagValue
	}
	if application.persistentFlagChanged(command, logFormatFlagNameConstant) {
		application.configuration.Common.LogFormat = application.logFormatFlagValue
	}
	if application.persistentFlagChanged(command, repositoryFlagNameConstant) {
		application.configuration.Core.RepositoryPath = application.repositoryFlagValue
	}
	if application.persistentFlagChanged(command, backendFlagNameConstant) {
		application.configuration.Core.Backend = config.BackendKind(application.backendFlagValue)
	}
	if application.persistentFlagChanged(command, lazyFlagNameConstant) {
		application.configuration.Core.LazyMode = application.lazyFlagValue
	}
	if application.persistentFlagChanged(command, autoStageFlagNameConstant) {
		application.configuration.Core.AutoStage = application.autoStageFlagValue
	}
	if application.persistentFlagChanged(command, threadedFlagNameConstant) {
		application.configuration.Core.Threading = 0
		if application.threadedFlagValue {
			application.configuration.Core.Threading = config.ThreadingAll
		}
	}
}

// openCore builds a status core for the configured repository.
func (application *Application) openCore() (*gixcore.Core, error) {
	if application.logger == nil {
		return nil, errors.New(loggerNotInitializedMessageConstant)
	}
	core, coreError := gixcore.NewCore(gixcore.Dependencies{
		Logger:          application.logger,
		Configuration:   application.configuration.Core,
		Backend:         application.backendOverride,
		CommandObserver: ui.NewConsoleCommandEventLogger(application.logger),
		Environment:     application.environmentOverride,
	})
	if coreError != nil {
		return nil, fmt.Errorf(coreCreationErrorTemplateConstant, coreError)
	}
	return core, nil
}

func (application *Application) outputWriter(command *cobra.Command) io.Writer {
	if command == nil {
		return os.Stdout
	}
	return command.OutOrStdout()
}

func (application *Application) persistentFlagChanged(command *cobra.Command, flagName string) bool {
	if command == nil {
		return false
	}

	flagSetsToInspect := []*pflag.FlagSet{
		command.PersistentFlags(),
		command.InheritedFlags(),
	}

	rootCommand := command.Root()
	if rootCommand != nil {
		flagSetsToInspect = append(flagSetsToInspect, rootCommand.PersistentFlags())
	}

	for _, flagSet := range flagSetsToInspect {
		if flagSet == nil {
			continue
		}

		if flagSet.Changed(flagName) {
			return true
		}
	}

	return false
}
