package postprocess

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/temirov/gixcore/internal/config"
	pathutils "github.com/temirov/gixcore/internal/utils/path"
	"github.com/temirov/gixcore/internal/vcs"
)

const (
	repositoryNotConfiguredMessageConstant = "postprocess repository not configured"
	stagerNotConfiguredMessageConstant     = "postprocess stager not configured"
	settingsNotConfiguredMessageConstant   = "postprocess settings not configured"
	postprocessSkippedMessageConstant      = "Postprocessing skipped"
	postprocessStageMessageConstant        = "Postprocessing staged paths"
	postprocessUnstageMessageConstant      = "Postprocessing unstaged paths"
	postprocessFailedMessageConstant       = "Postprocessing failed"
	skipReasonFieldConstant                = "reason"
	skipReasonDisabledConstant             = "disabled"
	skipReasonRepositoryConstant           = "repository_unavailable"
	autoStageFieldConstant                 = "auto_stage"
	pathsFieldConstant                     = "paths"
)

var (
	// ErrRepositoryNotConfigured indicates a missing repository accessor.
	ErrRepositoryNotConfigured = errors.New(repositoryNotConfiguredMessageConstant)

	// ErrStagerNotConfigured indicates a missing stager.
	ErrStagerNotConfigured = errors.New(stagerNotConfiguredMessageConstant)

	// ErrSettingsNotConfigured indicates missing settings.
	ErrSettingsNotConfigured = errors.New(settingsNotConfiguredMessageConstant)
)

// Repository exposes the repository state the processor needs.
type Repository interface {
	Handle() vcs.RepositoryHandle
	IsValidRepository() bool
	MarkDirtyPaths(paths ...string)
}

// Stager applies the threading policy to stage and unstage requests.
type Stager interface {
	Stage(executionContext context.Context, paths []string) error
	Unstage(executionContext context.Context, paths []string) error
}

// Dependencies configures a Processor. RootPath resolves paths on disk and defaults to
// the working directory.
type Dependencies struct {
	Logger     *zap.Logger
	RootPath   string
	Repository Repository
	Stager     Stager
	Settings   *config.Settings
}

// Processor reacts to host file notifications.
type Processor struct {
	logger     *zap.Logger
	rootPath   string
	repository Repository
	stager     Stager
	settings   *config.Settings
}

// NewProcessor validates dependencies and constructs a Processor.
func NewProcessor(dependencies Dependencies) (*Processor, error) {
	if dependencies.Repository == nil {
		return nil, ErrRepositoryNotConfigured
	}
	if dependencies.Stager == nil {
		return nil, ErrStagerNotConfigured
	}
	if dependencies.Settings == nil {
		return nil, ErrSettingsNotConfigured
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		logger:     logger,
		rootPath:   dependencies.RootPath,
		repository: dependencies.Repository,
		stager:     dependencies.Stager,
		settings:   dependencies.Settings,
	}, nil
}

// PathsSaved handles paths written by the host.
func (processor *Processor) PathsSaved(executionContext context.Context, paths []string) error {
	return processor.postprocessStage(executionContext, paths)
}

// PathsImported handles paths created by the host.
func (processor *Processor) PathsImported(executionContext context.Context, paths []string) error {
	return processor.postprocessStage(executionContext, paths)
}

// PathsDeleted unstages removed paths regardless of auto-stage.
func (processor *Processor) PathsDeleted(executionContext context.Context, paths []string) error {
	return processor.postprocessUnstage(executionContext, paths)
}

// PathsMoved stages the destinations and unstages the sources.
func (processor *Processor) PathsMoved(executionContext context.Context, movedTo []string, movedFrom []string) error {
	return multierr.Combine(
		processor.postprocessStage(executionContext, movedTo),
		processor.postprocessUnstage(executionContext, movedFrom),
	)
}

func (processor *Processor) postprocessStage(executionContext context.Context, paths []string) error {
	if !processor.enabled() {
		return nil
	}
	candidatePaths := make([]string, 0, len(paths))
	for _, path := range pathutils.NormalizeRelativePaths(paths) {
		if processor.isEmptyDirectory(path) || processor.isEmptyDirectoryCompanion(path) {
			continue
		}
		candidatePaths = append(candidatePaths, path)
	}
	finalPaths := processor.expandCompanions(candidatePaths)
	if len(finalPaths) == 0 {
		return nil
	}

	autoStage := processor.settings.AutoStage()
	processor.logger.Debug(postprocessStageMessageConstant, zap.Strings(pathsFieldConstant, finalPaths), zap.Bool(autoStageFieldConstant, autoStage))
	if !autoStage {
		processor.repository.MarkDirtyPaths(finalPaths...)
		return nil
	}
	if stageError := processor.stager.Stage(executionContext, finalPaths); stageError != nil {
		processor.logger.Warn(postprocessFailedMessageConstant, zap.Strings(pathsFieldConstant, finalPaths), zap.Error(stageError))
		return stageError
	}
	return nil
}

func (processor *Processor) postprocessUnstage(executionContext context.Context, paths []string) error {
	if !processor.enabled() {
		return nil
	}
	finalPaths := processor.expandCompanions(pathutils.NormalizeRelativePaths(paths))
	if len(finalPaths) == 0 {
		return nil
	}

	processor.logger.Debug(postprocessUnstageMessageConstant, zap.Strings(pathsFieldConstant, finalPaths))
	if unstageError := processor.stager.Unstage(executionContext, finalPaths); unstageError != nil {
		processor.logger.Warn(postprocessFailedMessageConstant, zap.Strings(pathsFieldConstant, finalPaths), zap.Error(unstageError))
		return unstageError
	}
	return nil
}

func (processor *Processor) enabled() bool {
	if processor.settings.DisablePostprocess() {
		processor.logger.Debug(postprocessSkippedMessageConstant, zap.String(skipReasonFieldConstant, skipReasonDisabledConstant))
		return false
	}
	if processor.repository.Handle() == nil || !processor.repository.IsValidRepository() {
		processor.logger.Debug(postprocessSkippedMessageConstant, zap.String(skipReasonFieldConstant, skipReasonRepositoryConstant))
		return false
	}
	return true
}

// expandCompanions pairs every path with its companion. Directories contribute only
// their companion file.
func (processor *Processor) expandCompanions(paths []string) []string {
	suffix := processor.settings.CompanionSuffix()
	expandedPaths := make([]string, 0, len(paths)*2)
	for _, path := range paths {
		if len(suffix) == 0 {
			expandedPaths = append(expandedPaths, path)
			continue
		}
		if strings.HasSuffix(path, suffix) {
			expandedPaths = append(expandedPaths, path)
			if assetPath := strings.TrimSuffix(path, suffix); len(assetPath) > 0 && !processor.isDirectory(assetPath) {
				expandedPaths = append(expandedPaths, assetPath)
			}
			continue
		}
		if !processor.isDirectory(path) {
			expandedPaths = append(expandedPaths, path)
		}
		expandedPaths = append(expandedPaths, path+suffix)
	}
	return pathutils.NormalizeRelativePaths(expandedPaths)
}

func (processor *Processor) absolutePath(relativePath string) string {
	return filepath.Join(processor.rootPath, filepath.FromSlash(relativePath))
}

func (processor *Processor) isDirectory(relativePath string) bool {
	fileInfo, statError := os.Stat(processor.absolutePath(relativePath))
	return statError == nil && fileInfo.IsDir()
}

func (processor *Processor) isEmptyDirectory(relativePath string) bool {
	directoryEntries, readError := os.ReadDir(processor.absolutePath(relativePath))
	return readError == nil && len(directoryEntries) == 0
}

func (processor *Processor) isEmptyDirectoryCompanion(relativePath string) bool {
	suffix := processor.settings.CompanionSuffix()
	if len(suffix) == 0 || !strings.HasSuffix(relativePath, suffix) {
		return false
	}
	return processor.isEmptyDirectory(strings.TrimSuffix(relativePath, suffix))
}
