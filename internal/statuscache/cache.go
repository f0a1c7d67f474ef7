package statuscache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/temirov/gixcore/internal/vcs"
)

const (
	backendNotConfiguredMessageConstant  = "status cache backend not configured"
	settingsNotConfiguredMessageConstant = "status cache settings not configured"
	rescanInterruptedMessageConstant     = "rescan interrupted"
	rescanInterruptedTemplateConstant    = "%w: %w"
	fullRescanMessageConstant            = "Full status rescan completed"
	partialRescanMessageConstant         = "Partial status rescan completed"
	partialFallbackMessageConstant       = "No status snapshot yet, running a full rescan instead of a partial one"
	entryCountFieldConstant              = "entries"
	pathsFieldConstant                   = "paths"
)

var (
	// ErrBackendNotConfigured indicates a missing backend.
	ErrBackendNotConfigured = errors.New(backendNotConfiguredMessageConstant)

	// ErrSettingsNotConfigured indicates missing settings.
	ErrSettingsNotConfigured = errors.New(settingsNotConfiguredMessageConstant)

	// ErrRescanInterrupted marks a rescan stopped by context cancellation. It also matches the context error.
	ErrRescanInterrupted = errors.New(rescanInterruptedMessageConstant)
)

// StatusSettings provides the options of a full rescan.
type StatusSettings interface {
	DetectRenames() bool
	IncludeIgnored() bool
}

// Dependencies configures a Cache.
type Dependencies struct {
	Logger   *zap.Logger
	Backend  vcs.Backend
	Settings StatusSettings
}

// Cache owns the current StatusSnapshot. Rescan must be called by a single writer at a time.
type Cache struct {
	logger   *zap.Logger
	backend  vcs.Backend
	settings StatusSettings

	mutex    sync.RWMutex
	snapshot *vcs.StatusSnapshot
}

// NewCache validates dependencies and constructs a Cache.
func NewCache(dependencies Dependencies) (*Cache, error) {
	if dependencies.Backend == nil {
		return nil, ErrBackendNotConfigured
	}
	if dependencies.Settings == nil {
		return nil, ErrSettingsNotConfigured
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{logger: logger, backend: dependencies.Backend, settings: dependencies.Settings}, nil
}

// Snapshot returns the current snapshot, or nil before the first successful full rescan.
func (cache *Cache) Snapshot() *vcs.StatusSnapshot {
	cache.mutex.RLock()
	defer cache.mutex.RUnlock()
	return cache.snapshot
}

// Reset drops the snapshot so that the next rescan is a full one.
func (cache *Cache) Reset() {
	cache.mutex.Lock()
	defer cache.mutex.Unlock()
	cache.snapshot = nil
}

// Rescan refreshes the snapshot from handle and returns it.
// Entries refreshed before a failing path keep their new values.
func (cache *Cache) Rescan(executionContext context.Context, handle vcs.RepositoryHandle, paths []string) (*vcs.StatusSnapshot, error) {
	currentSnapshot := cache.Snapshot()
	if len(paths) == 0 || currentSnapshot == nil {
		if len(paths) > 0 {
			cache.logger.Debug(partialFallbackMessageConstant, zap.Strings(pathsFieldConstant, paths))
		}
		return cache.rescanAll(executionContext, handle)
	}
	return cache.rescanPaths(executionContext, handle, currentSnapshot, paths)
}

func (cache *Cache) rescanAll(executionContext context.Context, handle vcs.RepositoryHandle) (*vcs.StatusSnapshot, error) {
	options := vcs.StatusOptions{
		DetectRenames:  cache.settings.DetectRenames(),
		IncludeIgnored: cache.settings.IncludeIgnored(),
	}
	freshSnapshot, statusError := cache.backend.RetrieveStatus(executionContext, handle, options)
	if statusError != nil {
		return cache.Snapshot(), classifyRescanError(executionContext, statusError)
	}
	if freshSnapshot == nil {
		freshSnapshot = vcs.NewStatusSnapshot(nil)
	}

	cache.mutex.Lock()
	cache.snapshot = freshSnapshot
	cache.mutex.Unlock()

	cache.logger.Debug(fullRescanMessageConstant, zap.Int(entryCountFieldConstant, freshSnapshot.Len()))
	return freshSnapshot, nil
}

// rescanPaths applies every entry reported below paths. Recorded entries below a path that the backend no longer reports are reset.
func (cache *Cache) rescanPaths(executionContext context.Context, handle vcs.RepositoryHandle, snapshot *vcs.StatusSnapshot, paths []string) (*vcs.StatusSnapshot, error) {
	if contextError := executionContext.Err(); contextError != nil {
		return snapshot, classifyRescanError(executionContext, contextError)
	}
	entries, statusError := cache.backend.RetrievePathsStatus(executionContext, handle, paths)
	if statusError != nil {
		return snapshot, classifyRescanError(executionContext, statusError)
	}

	reported := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		reported[entry.Path] = struct{}{}
		snapshot.Update(entry)
	}
	var stalePaths []string
	for _, path := range paths {
		for _, recordedPath := range snapshot.PathsWithin(path) {
			if _, isReported := reported[recordedPath]; !isReported {
				stalePaths = append(stalePaths, recordedPath)
			}
		}
	}
	for _, staleEntry := range vcs.CompleteWithinRoot(handle.Path(), stalePaths, nil) {
		snapshot.Update(staleEntry)
	}

	cache.logger.Debug(partialRescanMessageConstant, zap.Strings(pathsFieldConstant, paths), zap.Int(entryCountFieldConstant, len(entries)))
	return snapshot, nil
}

func classifyRescanError(executionContext context.Context, rescanError error) error {
	if executionContext.Err() == nil && !errors.Is(rescanError, context.Canceled) {
		return rescanError
	}
	if errors.Is(rescanError, ErrRescanInterrupted) {
		return rescanError
	}
	return fmt.Errorf(rescanInterruptedTemplateConstant, ErrRescanInterrupted, rescanError)
}
