package gogit

import (
	"github.com/go-git/go-git/v5"

	"github.com/temirov/gixcore/internal/vcs"
)

var stagingCodeFlags = map[git.StatusCode]vcs.StatusFlags{
	git.Added:              vcs.StatusNewInIndex,
	git.Copied:             vcs.StatusNewInIndex,
	git.Modified:           vcs.StatusModifiedInIndex,
	git.Deleted:            vcs.StatusDeletedFromIndex,
	git.Renamed:            vcs.StatusRenamedInIndex,
	git.UpdatedButUnmerged: vcs.StatusConflicted,
}

var worktreeCodeFlags = map[git.StatusCode]vcs.StatusFlags{
	git.Untracked:          vcs.StatusNewInWorkdir,
	git.Added:              vcs.StatusNewInWorkdir,
	git.Copied:             vcs.StatusNewInWorkdir,
	git.Modified:           vcs.StatusModifiedInWorkdir,
	git.Deleted:            vcs.StatusDeletedFromWorkdir,
	git.Renamed:            vcs.StatusRenamedInWorkdir,
	git.UpdatedButUnmerged: vcs.StatusConflicted,
}

// convertStatus maps go-git file statuses to entries. Without rename detection a staged rename
// becomes an addition plus a deletion of the source path.
func convertStatus(worktreeStatus git.Status, detectRenames bool) []vcs.StatusEntry {
	entries := make([]vcs.StatusEntry, 0, len(worktreeStatus))
	for path, fileStatus := range worktreeStatus {
		if fileStatus == nil {
			continue
		}
		if fileStatus.Staging == git.Untracked {
			entries = append(entries, vcs.StatusEntry{Path: path, Flags: vcs.StatusNewInWorkdir})
			continue
		}

		flags := stagingCodeFlags[fileStatus.Staging] | worktreeCodeFlags[fileStatus.Worktree]
		entry := vcs.StatusEntry{Path: path, Flags: flags}
		if fileStatus.Staging == git.Renamed {
			if detectRenames {
				entry.OldPath = fileStatus.Extra
			} else {
				entry.Flags = entry.Flags&^vcs.StatusRenamedInIndex | vcs.StatusNewInIndex
				if len(fileStatus.Extra) > 0 {
					entries = append(entries, vcs.StatusEntry{Path: fileStatus.Extra, Flags: vcs.StatusDeletedFromIndex})
				}
			}
		}
		if entry.Flags == vcs.StatusUnmodified {
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}
