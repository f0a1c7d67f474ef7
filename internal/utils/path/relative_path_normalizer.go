package pathutils

import (
	"path"
	"path/filepath"
	"strings"
)

const (
	backslashSeparatorConstant    = "\\"
	forwardSlashSeparatorConstant = "/"
	currentDirectoryConstant      = "."
	parentDirectoryConstant       = ".."
	parentDirectoryPrefixConstant = "../"
	gitDirectoryNameConstant      = ".git"
	gitDirectoryPrefixConstant    = ".git/"
)

// NormalizeRelativePath converts a repository-relative path to the canonical slash form:
// separators become forward slashes and redundant elements are removed. Spaces are part of file
// names and are kept; a blank path and the repository root normalize to the empty string.
func NormalizeRelativePath(candidatePath string) string {
	if len(strings.TrimSpace(candidatePath)) == 0 {
		return ""
	}
	slashedPath := strings.ReplaceAll(candidatePath, backslashSeparatorConstant, forwardSlashSeparatorConstant)
	cleanedPath := strings.TrimPrefix(path.Clean(slashedPath), forwardSlashSeparatorConstant)
	if cleanedPath == currentDirectoryConstant {
		return ""
	}
	return cleanedPath
}

// NormalizeRelativePaths normalizes every path, dropping empty results and duplicates while keeping first-seen order.
func NormalizeRelativePaths(candidatePaths []string) []string {
	if len(candidatePaths) == 0 {
		return nil
	}
	seenPaths := make(map[string]struct{}, len(candidatePaths))
	normalizedPaths := make([]string, 0, len(candidatePaths))
	for _, candidatePath := range candidatePaths {
		normalizedPath := NormalizeRelativePath(candidatePath)
		if len(normalizedPath) == 0 {
			continue
		}
		if _, seen := seenPaths[normalizedPath]; seen {
			continue
		}
		seenPaths[normalizedPath] = struct{}{}
		normalizedPaths = append(normalizedPaths, normalizedPath)
	}
	if len(normalizedPaths) == 0 {
		return nil
	}
	return normalizedPaths
}

// RelativeToRoot converts an absolute file-system path into a normalized repository-relative path.
// The boolean is false when the path lies outside rootPath.
func RelativeToRoot(rootPath string, absolutePath string) (string, bool) {
	relativePath, relativeError := filepath.Rel(rootPath, absolutePath)
	if relativeError != nil {
		return "", false
	}
	slashedPath := filepath.ToSlash(relativePath)
	if slashedPath == parentDirectoryConstant || strings.HasPrefix(slashedPath, parentDirectoryPrefixConstant) {
		return "", false
	}
	return NormalizeRelativePath(slashedPath), true
}

// IsGitMetadataPath reports whether a normalized relative path points into the .git directory.
func IsGitMetadataPath(relativePath string) bool {
	return relativePath == gitDirectoryNameConstant || strings.HasPrefix(relativePath, gitDirectoryPrefixConstant)
}
