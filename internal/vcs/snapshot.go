package vcs

import "sync"

// StatusSnapshot maps repository-relative paths to their status.
//
// A snapshot has a single writer. Readers may call its accessors from any goroutine;
// each entry replacement is atomic from their point of view.
type StatusSnapshot struct {
	mutex   sync.RWMutex
	entries map[string]StatusEntry
}

// NewStatusSnapshot builds a snapshot from the provided entries. Later entries win on duplicate paths.
func NewStatusSnapshot(entries []StatusEntry) *StatusSnapshot {
	snapshot := &StatusSnapshot{entries: make(map[string]StatusEntry, len(entries))}
	for _, entry := range entries {
		snapshot.entries[entry.Path] = entry
	}
	return snapshot
}

// Get returns the entry for path and whether one is recorded.
func (snapshot *StatusSnapshot) Get(path string) (StatusEntry, bool) {
	if snapshot == nil {
		return StatusEntry{}, false
	}
	snapshot.mutex.RLock()
	defer snapshot.mutex.RUnlock()
	entry, exists := snapshot.entries[path]
	return entry, exists
}

// Flags returns the flags recorded for path, or StatusUnmodified when the path is absent.
func (snapshot *StatusSnapshot) Flags(path string) StatusFlags {
	entry, _ := snapshot.Get(path)
	return entry.Flags
}

// Update replaces the entry for entry.Path.
func (snapshot *StatusSnapshot) Update(entry StatusEntry) {
	if snapshot == nil {
		return
	}
	snapshot.mutex.Lock()
	defer snapshot.mutex.Unlock()
	if snapshot.entries == nil {
		snapshot.entries = map[string]StatusEntry{}
	}
	snapshot.entries[entry.Path] = entry
}

// PathsWithin returns the recorded paths equal to pathspec or nested below it.
func (snapshot *StatusSnapshot) PathsWithin(pathspec string) []string {
	if snapshot == nil {
		return nil
	}
	snapshot.mutex.RLock()
	defer snapshot.mutex.RUnlock()
	var paths []string
	for path := range snapshot.entries {
		if PathWithin(path, pathspec) {
			paths = append(paths, path)
		}
	}
	return paths
}

// Len returns the number of recorded entries.
func (snapshot *StatusSnapshot) Len() int {
	if snapshot == nil {
		return 0
	}
	snapshot.mutex.RLock()
	defer snapshot.mutex.RUnlock()
	return len(snapshot.entries)
}

// Entries returns a path-ordered copy of all entries.
func (snapshot *StatusSnapshot) Entries() []StatusEntry {
	if snapshot == nil {
		return nil
	}
	snapshot.mutex.RLock()
	entries := make([]StatusEntry, 0, len(snapshot.entries))
	for _, entry := range snapshot.entries {
		entries = append(entries, entry)
	}
	snapshot.mutex.RUnlock()
	sortEntries(entries)
	return entries
}

// Summary counts entries per category.
func (snapshot *StatusSnapshot) Summary() StatusSummary {
	summary := StatusSummary{}
	for _, entry := range snapshot.Entries() {
		if entry.Flags.HasAny(IndexChangeFlags) {
			summary.Staged++
		}
		if entry.Flags.HasAny(StatusModifiedInWorkdir | StatusDeletedFromWorkdir | StatusTypeChangeInWorkdir | StatusRenamedInWorkdir) {
			summary.Unstaged++
		}
		if entry.Flags.Has(StatusNewInWorkdir) {
			summary.Untracked++
		}
		if entry.Flags.Has(StatusConflicted) {
			summary.Conflicted++
		}
		if entry.Flags.Has(StatusIgnored) {
			summary.Ignored++
		}
	}
	return summary
}
