package vcs

import (
	"sort"
	"strings"
)

const (
	statusFlagSeparatorConstant   = "|"
	statusFlagUnmodifiedConstant  = "unmodified"
	statusFlagNewInIndex          = "new_in_index"
	statusFlagModifiedInIndex     = "modified_in_index"
	statusFlagDeletedFromIndex    = "deleted_from_index"
	statusFlagRenamedInIndex      = "renamed_in_index"
	statusFlagTypeChangeInIndex   = "type_change_in_index"
	statusFlagNewInWorkdir        = "new_in_workdir"
	statusFlagModifiedInWorkdir   = "modified_in_workdir"
	statusFlagDeletedFromWorkdir  = "deleted_from_workdir"
	statusFlagTypeChangeInWorkdir = "type_change_in_workdir"
	statusFlagRenamedInWorkdir    = "renamed_in_workdir"
	statusFlagUnreadable          = "unreadable"
	statusFlagIgnored             = "ignored"
	statusFlagConflicted          = "conflicted"
	statusFlagNonexistent         = "nonexistent"
)

// StatusFlags is a bitset describing the state of a single path. Several flags may apply at once.
type StatusFlags uint32

// StatusUnmodified means the path is tracked and unchanged.
const StatusUnmodified StatusFlags = 0

// Status flags.
const (
	StatusNewInIndex StatusFlags = 1 << iota
	StatusModifiedInIndex
	StatusDeletedFromIndex
	StatusRenamedInIndex
	StatusTypeChangeInIndex
	StatusNewInWorkdir
	StatusModifiedInWorkdir
	StatusDeletedFromWorkdir
	StatusTypeChangeInWorkdir
	StatusRenamedInWorkdir
	StatusUnreadable
	StatusIgnored
	StatusConflicted
	StatusNonexistent
)

// IndexChangeFlags groups the flags describing staged changes.
const IndexChangeFlags = StatusNewInIndex | StatusModifiedInIndex | StatusDeletedFromIndex | StatusRenamedInIndex | StatusTypeChangeInIndex

// WorkdirChangeFlags groups the flags describing unstaged working tree changes.
const WorkdirChangeFlags = StatusNewInWorkdir | StatusModifiedInWorkdir | StatusDeletedFromWorkdir | StatusRenamedInWorkdir | StatusTypeChangeInWorkdir

var statusFlagNames = []struct {
	flag StatusFlags
	name string
}{
	{StatusNewInIndex, statusFlagNewInIndex},
	{StatusModifiedInIndex, statusFlagModifiedInIndex},
	{StatusDeletedFromIndex, statusFlagDeletedFromIndex},
	{StatusRenamedInIndex, statusFlagRenamedInIndex},
	{StatusTypeChangeInIndex, statusFlagTypeChangeInIndex},
	{StatusNewInWorkdir, statusFlagNewInWorkdir},
	{StatusModifiedInWorkdir, statusFlagModifiedInWorkdir},
	{StatusDeletedFromWorkdir, statusFlagDeletedFromWorkdir},
	{StatusTypeChangeInWorkdir, statusFlagTypeChangeInWorkdir},
	{StatusRenamedInWorkdir, statusFlagRenamedInWorkdir},
	{StatusUnreadable, statusFlagUnreadable},
	{StatusIgnored, statusFlagIgnored},
	{StatusConflicted, statusFlagConflicted},
	{StatusNonexistent, statusFlagNonexistent},
}

// Has reports whether every flag in mask is set.
func (flags StatusFlags) Has(mask StatusFlags) bool {
	return flags&mask == mask
}

// HasAny reports whether at least one flag in mask is set.
func (flags StatusFlags) HasAny(mask StatusFlags) bool {
	return flags&mask != 0
}

// String renders the set flags joined by a pipe.
func (flags StatusFlags) String() string {
	if flags == StatusUnmodified {
		return statusFlagUnmodifiedConstant
	}
	names := make([]string, 0, len(statusFlagNames))
	for _, candidate := range statusFlagNames {
		if flags.Has(candidate.flag) {
			names = append(names, candidate.name)
		}
	}
	return strings.Join(names, statusFlagSeparatorConstant)
}

// MarshalYAML renders flags using their names.
func (flags StatusFlags) MarshalYAML() (any, error) {
	return flags.String(), nil
}

// CanStage reports whether the path has working tree changes that can be staged.
func CanStage(flags StatusFlags) bool {
	return flags.HasAny(WorkdirChangeFlags)
}

// CanUnstage reports whether the path has index changes that can be unstaged.
func CanUnstage(flags StatusFlags) bool {
	return flags.HasAny(IndexChangeFlags)
}

// StatusEntry is the status of one repository-relative path.
type StatusEntry struct {
	Path    string      `yaml:"path"`
	OldPath string      `yaml:"old_path,omitempty"`
	Flags   StatusFlags `yaml:"flags"`
}

// StatusSummary counts snapshot entries per category.
type StatusSummary struct {
	Staged     int `yaml:"staged"`
	Unstaged   int `yaml:"unstaged"`
	Untracked  int `yaml:"untracked"`
	Conflicted int `yaml:"conflicted"`
	Ignored    int `yaml:"ignored"`
}

func sortEntries(entries []StatusEntry) {
	sort.Slice(entries, func(leftIndex int, rightIndex int) bool {
		return entries[leftIndex].Path < entries[rightIndex].Path
	})
}
