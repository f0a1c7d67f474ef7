package vcs

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

const pathspecSeparatorConstant = "/"

// PathWithin reports whether path equals pathspec or lies below it.
func PathWithin(path string, pathspec string) bool {
	if len(pathspec) == 0 {
		return true
	}
	return path == pathspec || strings.HasPrefix(path, pathspec+pathspecSeparatorConstant)
}

// FilterWithin keeps the entries lying within any of the pathspecs.
func FilterWithin(entries []StatusEntry, pathspecs []string) []StatusEntry {
	filtered := make([]StatusEntry, 0, len(entries))
	for _, entry := range entries {
		for _, pathspec := range pathspecs {
			if PathWithin(entry.Path, pathspec) {
				filtered = append(filtered, entry)
				break
			}
		}
	}
	return filtered
}

// CompleteWithinRoot appends an entry for every pathspec that matched nothing in entries.
// Missing paths become Nonexistent and files become Unmodified; directories are skipped.
func CompleteWithinRoot(rootPath string, pathspecs []string, entries []StatusEntry) []StatusEntry {
	for _, pathspec := range pathspecs {
		if len(pathspec) == 0 || hasEntryWithin(entries, pathspec) {
			continue
		}
		fileInfo, statError := os.Lstat(filepath.Join(rootPath, filepath.FromSlash(pathspec)))
		switch {
		case errors.Is(statError, os.ErrNotExist):
			entries = append(entries, StatusEntry{Path: pathspec, Flags: StatusNonexistent})
		case statError == nil && fileInfo.IsDir():
		default:
			entries = append(entries, StatusEntry{Path: pathspec, Flags: StatusUnmodified})
		}
	}
	return entries
}

func hasEntryWithin(entries []StatusEntry, pathspec string) bool {
	for _, entry := range entries {
		if PathWithin(entry.Path, pathspec) {
			return true
		}
	}
	return false
}
