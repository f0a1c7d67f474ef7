package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	defaultLogLevelConstant           = "info"
	defaultLogFormatConstant          = "console"
	defaultRepositoryPathConstant     = "."
	defaultTickIntervalConstant       = 100 * time.Millisecond
	defaultWatchDebounceConstant      = 250 * time.Millisecond
	unsupportedBackendMessageConstant = "unsupported backend"
	unsupportedBackendTemplate        = "%w %q"
	invalidIntervalMessageConstant    = "interval must be positive"
	invalidIntervalTemplate           = "%s: %w"
	tickIntervalKeyConstant           = "core.tick_interval"
	watchDebounceKeyConstant          = "core.watch_debounce"
)

// BackendKind selects the version-control backend implementation.
type BackendKind string

// Supported backends.
const (
	BackendCLI   BackendKind = "cli"
	BackendGoGit BackendKind = "gogit"
)

// SupportedBackends lists the accepted backend names.
func SupportedBackends() []string {
	return []string{string(BackendCLI), string(BackendGoGit)}
}

var (
	// ErrUnsupportedBackend indicates an unknown backend name.
	ErrUnsupportedBackend = errors.New(unsupportedBackendMessageConstant)

	// ErrInvalidInterval indicates a zero or negative interval.
	ErrInvalidInterval = errors.New(invalidIntervalMessageConstant)
)

// CommonConfiguration holds the logging settings shared by every command.
type CommonConfiguration struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// CoreConfiguration holds the settings read by the status core.
type CoreConfiguration struct {
	RepositoryPath     string         `mapstructure:"repository_path"`
	Backend            BackendKind    `mapstructure:"backend"`
	Threading          ThreadingFlags `mapstructure:"threading"`
	LazyMode           bool           `mapstructure:"lazy_mode"`
	DetectRenames      bool           `mapstructure:"detect_renames"`
	IncludeIgnored     bool           `mapstructure:"include_ignored"`
	AutoStage          bool           `mapstructure:"auto_stage"`
	DisablePostprocess bool           `mapstructure:"disable_postprocess"`
	CompanionSuffix    string         `mapstructure:"companion_suffix"`
	TickInterval       time.Duration  `mapstructure:"tick_interval"`
	WatchDebounce      time.Duration  `mapstructure:"watch_debounce"`
}

// Configuration is the root of the decoded configuration tree.
type Configuration struct {
	Common CommonConfiguration `mapstructure:"common"`
	Core   CoreConfiguration   `mapstructure:"core"`
}

// DefaultConfiguration returns the built-in defaults.
func DefaultConfiguration() Configuration {
	return Configuration{
		Common: CommonConfiguration{
			LogLevel:  defaultLogLevelConstant,
			LogFormat: defaultLogFormatConstant,
		},
		Core: CoreConfiguration{
			RepositoryPath: defaultRepositoryPathConstant,
			Backend:        BackendCLI,
			Threading:      ThreadingAll,
			DetectRenames:  true,
			IncludeIgnored: true,
			AutoStage:      true,
			TickInterval:   defaultTickIntervalConstant,
			WatchDebounce:  defaultWatchDebounceConstant,
		},
	}
}

// Validate checks the values that cannot be corrected silently and normalizes the backend name.
func (configuration *Configuration) Validate() error {
	normalizedBackend := BackendKind(strings.ToLower(strings.TrimSpace(string(configuration.Core.Backend))))
	switch normalizedBackend {
	case BackendCLI, BackendGoGit:
		configuration.Core.Backend = normalizedBackend
	default:
		return fmt.Errorf(unsupportedBackendTemplate, ErrUnsupportedBackend, configuration.Core.Backend)
	}
	if configuration.Core.TickInterval <= 0 {
		return fmt.Errorf(invalidIntervalTemplate, tickIntervalKeyConstant, ErrInvalidInterval)
	}
	if configuration.Core.WatchDebounce <= 0 {
		return fmt.Errorf(invalidIntervalTemplate, watchDebounceKeyConstant, ErrInvalidInterval)
	}
	return nil
}
