package dirty

import (
	pathutils "github.com/temirov/gixcore/internal/utils/path"
)

// Tracker records pending paths together with the whole-repository and reload flags.
type Tracker struct {
	pendingPaths  map[string]struct{}
	wholeDirty    bool
	reloadPending bool
}

// NewTracker constructs an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{pendingPaths: map[string]struct{}{}}
}

// Add queues paths after normalizing their separators. Paths already queued are ignored.
func (tracker *Tracker) Add(paths ...string) {
	for _, normalizedPath := range pathutils.NormalizeRelativePaths(paths) {
		tracker.pendingPaths[normalizedPath] = struct{}{}
	}
}

// SetWholeDirty marks the whole repository as needing a full rescan.
func (tracker *Tracker) SetWholeDirty() {
	tracker.wholeDirty = true
}

// SetReloadPending controls whether the repository handle is reopened before the next update.
func (tracker *Tracker) SetReloadPending(reloadPending bool) {
	tracker.reloadPending = reloadPending
}

// DrainAndClear returns the accumulated state and resets the tracker.
func (tracker *Tracker) DrainAndClear() (wholeDirty bool, reloadPending bool, paths []string) {
	wholeDirty = tracker.wholeDirty
	reloadPending = tracker.reloadPending
	paths = tracker.Paths()

	tracker.wholeDirty = false
	tracker.reloadPending = false
	tracker.pendingPaths = map[string]struct{}{}
	return wholeDirty, reloadPending, paths
}

// DrainPaths returns and clears only the queued paths, leaving both flags untouched.
func (tracker *Tracker) DrainPaths() []string {
	paths := tracker.Paths()
	tracker.pendingPaths = map[string]struct{}{}
	return paths
}

// Paths returns the queued paths in no particular order, or nil when none are queued.
func (tracker *Tracker) Paths() []string {
	if len(tracker.pendingPaths) == 0 {
		return nil
	}
	paths := make([]string, 0, len(tracker.pendingPaths))
	for pendingPath := range tracker.pendingPaths {
		paths = append(paths, pendingPath)
	}
	return paths
}

// Contains reports whether path is queued.
func (tracker *Tracker) Contains(path string) bool {
	_, queued := tracker.pendingPaths[pathutils.NormalizeRelativePath(path)]
	return queued
}

// IsWholeDirty reports whether a full rescan is pending.
func (tracker *Tracker) IsWholeDirty() bool {
	return tracker.wholeDirty
}

// IsReloadPending reports whether the handle is reopened before the next update.
func (tracker *Tracker) IsReloadPending() bool {
	return tracker.reloadPending
}

// HasPaths reports whether any path is queued.
func (tracker *Tracker) HasPaths() bool {
	return len(tracker.pendingPaths) > 0
}

// IsDirty reports whether any update is pending.
func (tracker *Tracker) IsDirty() bool {
	return tracker.wholeDirty || tracker.HasPaths()
}
