package fswatch

import (
	"github.com/fsnotify/fsnotify"

	pathutils "github.com/temirov/gixcore/internal/utils/path"
)

const (
	gitHeadPathConstant  = ".git/HEAD"
	gitIndexPathConstant = ".git/index"
)

// ChangeKind classifies a path within a batch.
type ChangeKind int

// Change kinds reported in a Batch.
const (
	ChangeSaved ChangeKind = iota
	ChangeImported
	ChangeDeleted
)

// Batch is one debounced group of file-system changes.
type Batch struct {
	Saved           []string
	Imported        []string
	Deleted         []string
	RepositoryDirty bool
	ReloadRequested bool
}

// IsEmpty reports whether the batch carries nothing to apply.
func (batch Batch) IsEmpty() bool {
	return len(batch.Saved) == 0 && len(batch.Imported) == 0 && len(batch.Deleted) == 0 && !batch.RepositoryDirty
}

// batcher accumulates classified changes between flushes. The latest event for a path
// decides its kind, except that a write never downgrades an import.
type batcher struct {
	order           []string
	kinds           map[string]ChangeKind
	repositoryDirty bool
	reloadRequested bool
}

func newBatcher() *batcher {
	return &batcher{kinds: map[string]ChangeKind{}}
}

// record classifies one event on a normalized repository-relative path and reports
// whether it contributed to the batch.
func (accumulator *batcher) record(relativePath string, operation fsnotify.Op) bool {
	switch {
	case relativePath == gitHeadPathConstant:
		accumulator.repositoryDirty = true
		accumulator.reloadRequested = true
		return true
	case relativePath == gitIndexPathConstant:
		accumulator.repositoryDirty = true
		return true
	case len(relativePath) == 0 || pathutils.IsGitMetadataPath(relativePath):
		return false
	}

	previousKind, seen := accumulator.kinds[relativePath]
	var kind ChangeKind
	switch {
	case operation.Has(fsnotify.Remove) || operation.Has(fsnotify.Rename):
		kind = ChangeDeleted
	case operation.Has(fsnotify.Create):
		kind = ChangeImported
		if seen && previousKind == ChangeDeleted {
			kind = ChangeSaved
		}
	case operation.Has(fsnotify.Write):
		kind = ChangeSaved
		if seen && previousKind == ChangeImported {
			kind = ChangeImported
		}
	default:
		return false
	}

	if !seen {
		accumulator.order = append(accumulator.order, relativePath)
	}
	accumulator.kinds[relativePath] = kind
	return true
}

func (accumulator *batcher) pending() bool {
	return len(accumulator.order) > 0 || accumulator.repositoryDirty
}

// flush returns the accumulated batch in first-seen order and resets the batcher.
func (accumulator *batcher) flush() Batch {
	batch := Batch{RepositoryDirty: accumulator.repositoryDirty, ReloadRequested: accumulator.reloadRequested}
	for _, relativePath := range accumulator.order {
		switch accumulator.kinds[relativePath] {
		case ChangeSaved:
			batch.Saved = append(batch.Saved, relativePath)
		case ChangeImported:
			batch.Imported = append(batch.Imported, relativePath)
		case ChangeDeleted:
			batch.Deleted = append(batch.Deleted, relativePath)
		}
	}
	accumulator.order = nil
	accumulator.kinds = map[string]ChangeKind{}
	accumulator.repositoryDirty = false
	accumulator.reloadRequested = false
	return batch
}
