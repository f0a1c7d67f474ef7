package fswatch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	pathutils "github.com/temirov/gixcore/internal/utils/path"
)

const (
	defaultDebounceConstant            = 250 * time.Millisecond
	gitDirectoryNameConstant           = ".git"
	rootPathRequiredMessageConstant    = "watch root path required"
	watcherCreateErrorTemplateConstant = "create file-system watcher: %w"
	watchTreeErrorTemplateConstant     = "watch %s: %w"
	watchAddFailedMessageConstant      = "Could not watch directory"
	watchErrorMessageConstant          = "File-system watcher error"
	batchReadyMessageConstant          = "File-system batch ready"
	directoryFieldConstant             = "directory"
	savedCountFieldConstant            = "saved"
	importedCountFieldConstant         = "imported"
	deletedCountFieldConstant          = "deleted"
	repositoryDirtyFieldConstant       = "repository_dirty"
)

// ErrRootPathRequired indicates a watcher without a root directory.
var ErrRootPathRequired = errors.New(rootPathRequiredMessageConstant)

// Dependencies configures a Watcher. Debounce defaults to 250ms.
type Dependencies struct {
	Logger   *zap.Logger
	RootPath string
	Debounce time.Duration
}

// Watcher turns fsnotify events under a working tree into Batches.
type Watcher struct {
	logger      *zap.Logger
	rootPath    string
	debounce    time.Duration
	notifier    *fsnotify.Watcher
	batches     chan Batch
	watchedDirs map[string]struct{}
}

// NewWatcher registers every directory of the working tree plus the .git directory itself.
func NewWatcher(dependencies Dependencies) (*Watcher, error) {
	if len(dependencies.RootPath) == 0 {
		return nil, ErrRootPathRequired
	}
	rootPath, absoluteError := filepath.Abs(dependencies.RootPath)
	if absoluteError != nil {
		return nil, fmt.Errorf(watchTreeErrorTemplateConstant, dependencies.RootPath, absoluteError)
	}
	notifier, notifierError := fsnotify.NewWatcher()
	if notifierError != nil {
		return nil, fmt.Errorf(watcherCreateErrorTemplateConstant, notifierError)
	}

	watcher := &Watcher{
		logger:      dependencies.Logger,
		rootPath:    rootPath,
		debounce:    dependencies.Debounce,
		notifier:    notifier,
		batches:     make(chan Batch, 1),
		watchedDirs: map[string]struct{}{},
	}
	if watcher.logger == nil {
		watcher.logger = zap.NewNop()
	}
	if watcher.debounce <= 0 {
		watcher.debounce = defaultDebounceConstant
	}

	if walkError := watcher.addWatchTree(rootPath); walkError != nil {
		_ = notifier.Close()
		return nil, fmt.Errorf(watchTreeErrorTemplateConstant, rootPath, walkError)
	}
	watcher.addWatchDir(filepath.Join(rootPath, gitDirectoryNameConstant))
	return watcher, nil
}

// Batches returns the channel receiving debounced batches. It is closed when Run returns.
func (watcher *Watcher) Batches() <-chan Batch {
	return watcher.batches
}

// Run consumes file-system events until the context ends, then releases the watcher.
func (watcher *Watcher) Run(executionContext context.Context) error {
	defer close(watcher.batches)
	defer watcher.notifier.Close()

	accumulator := newBatcher()
	debounceTimer := time.NewTimer(watcher.debounce)
	debounceTimer.Stop()
	defer debounceTimer.Stop()

	for {
		select {
		case <-executionContext.Done():
			return nil
		case event, open := <-watcher.notifier.Events:
			if !open {
				return nil
			}
			if event.Op.Has(fsnotify.Create) {
				watcher.maybeWatchNewDir(event.Name)
			}
			relativePath, inside := pathutils.RelativeToRoot(watcher.rootPath, event.Name)
			if !inside || !accumulator.record(relativePath, event.Op) {
				continue
			}
			debounceTimer.Reset(watcher.debounce)
		case watchError, open := <-watcher.notifier.Errors:
			if !open {
				return nil
			}
			watcher.logger.Warn(watchErrorMessageConstant, zap.Error(watchError))
		case <-debounceTimer.C:
			if !accumulator.pending() {
				continue
			}
			batch := accumulator.flush()
			watcher.logger.Debug(batchReadyMessageConstant,
				zap.Int(savedCountFieldConstant, len(batch.Saved)),
				zap.Int(importedCountFieldConstant, len(batch.Imported)),
				zap.Int(deletedCountFieldConstant, len(batch.Deleted)),
				zap.Bool(repositoryDirtyFieldConstant, batch.RepositoryDirty),
			)
			select {
			case watcher.batches <- batch:
			case <-executionContext.Done():
				return nil
			}
		}
	}
}

func (watcher *Watcher) maybeWatchNewDir(absolutePath string) {
	fileInfo, statError := os.Stat(absolutePath)
	if statError != nil || !fileInfo.IsDir() {
		return
	}
	if relativePath, inside := pathutils.RelativeToRoot(watcher.rootPath, absolutePath); !inside || pathutils.IsGitMetadataPath(relativePath) {
		return
	}
	_ = watcher.addWatchTree(absolutePath)
}

func (watcher *Watcher) addWatchTree(root string) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkError error) error {
		if walkError != nil {
			if path == root {
				return walkError
			}
			return nil
		}
		if !entry.IsDir() {
			return nil
		}
		if entry.Name() == gitDirectoryNameConstant {
			return filepath.SkipDir
		}
		watcher.addWatchDir(path)
		return nil
	})
}

func (watcher *Watcher) addWatchDir(path string) {
	if _, watched := watcher.watchedDirs[path]; watched {
		return
	}
	fileInfo, statError := os.Stat(path)
	if statError != nil || !fileInfo.IsDir() {
		return
	}
	if addError := watcher.notifier.Add(path); addError != nil {
		watcher.logger.Debug(watchAddFailedMessageConstant, zap.String(directoryFieldConstant, path), zap.Error(addError))
		return
	}
	watcher.watchedDirs[path] = struct{}{}
}
