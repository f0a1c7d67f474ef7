package gogit

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/gixcore/internal/vcs"
)

const (
	testTrackedFileNameConstant = "tracked.txt"
	testAuthorNameConstant      = "gixcore"
	testAuthorEmailConstant     = "gixcore@example.com"
)

func initializeRepository(testInstance *testing.T, commitTrackedFile bool) string {
	testInstance.Helper()
	repositoryRoot := testInstance.TempDir()
	repository, initError := git.PlainInit(repositoryRoot, false)
	require.NoError(testInstance, initError)
	require.NoError(testInstance, os.WriteFile(filepath.Join(repositoryRoot, testTrackedFileNameConstant), []byte("one\n"), 0o644))

	if !commitTrackedFile {
		return repositoryRoot
	}
	worktree, worktreeError := repository.Worktree()
	require.NoError(testInstance, worktreeError)
	_, addError := worktree.Add(testTrackedFileNameConstant)
	require.NoError(testInstance, addError)
	_, commitError := worktree.Commit("initial", &git.CommitOptions{Author: &object.Signature{Name: testAuthorNameConstant, Email: testAuthorEmailConstant, When: time.Now()}})
	require.NoError(testInstance, commitError)
	return repositoryRoot
}

func openHandle(testInstance *testing.T, backend *Backend, repositoryRoot string) vcs.RepositoryHandle {
	testInstance.Helper()
	require.True(testInstance, backend.IsValidRepository(repositoryRoot))
	handle, openError := backend.OpenRepository(context.Background(), repositoryRoot)
	require.NoError(testInstance, openError)
	return handle
}

func retrieveSinglePath(testInstance *testing.T, backend *Backend, handle vcs.RepositoryHandle, path string) vcs.StatusEntry {
	testInstance.Helper()
	entries, statusError := backend.RetrievePathsStatus(context.Background(), handle, []string{path})
	require.NoError(testInstance, statusError)
	require.Len(testInstance, entries, 1)
	return entries[0]
}

func TestStageAndUnstageBeforeFirstCommit(testInstance *testing.T) {
	repositoryRoot := initializeRepository(testInstance, false)
	backend := NewBackend(zap.NewNop())
	handle := openHandle(testInstance, backend, repositoryRoot)

	snapshot, statusError := backend.RetrieveStatus(context.Background(), handle, vcs.StatusOptions{DetectRenames: true})
	require.NoError(testInstance, statusError)
	require.Equal(testInstance, vcs.StatusNewInWorkdir, snapshot.Flags(testTrackedFileNameConstant))

	require.NoError(testInstance, backend.Stage(context.Background(), handle, []string{testTrackedFileNameConstant}))
	stagedEntry := retrieveSinglePath(testInstance, backend, handle, testTrackedFileNameConstant)
	require.True(testInstance, stagedEntry.Flags.Has(vcs.StatusNewInIndex))

	require.NoError(testInstance, backend.Unstage(context.Background(), handle, []string{testTrackedFileNameConstant}))
	unstagedEntry := retrieveSinglePath(testInstance, backend, handle, testTrackedFileNameConstant)
	require.Equal(testInstance, vcs.StatusNewInWorkdir, unstagedEntry.Flags)
}

func TestModifyStageAndRevert(testInstance *testing.T) {
	repositoryRoot := initializeRepository(testInstance, true)
	backend := NewBackend(zap.NewNop())
	handle := openHandle(testInstance, backend, repositoryRoot)
	require.NoError(testInstance, os.WriteFile(filepath.Join(repositoryRoot, testTrackedFileNameConstant), []byte("two\n"), 0o644))

	modifiedEntry := retrieveSinglePath(testInstance, backend, handle, testTrackedFileNameConstant)
	require.Equal(testInstance, vcs.StatusModifiedInWorkdir, modifiedEntry.Flags)

	require.NoError(testInstance, backend.Stage(context.Background(), handle, []string{testTrackedFileNameConstant}))
	stagedEntry := retrieveSinglePath(testInstance, backend, handle, testTrackedFileNameConstant)
	require.Equal(testInstance, vcs.StatusModifiedInIndex, stagedEntry.Flags)

	require.NoError(testInstance, backend.CheckoutPaths(context.Background(), handle, []string{testTrackedFileNameConstant}, vcs.CheckoutOptions{Force: true}))
	revertedEntry := retrieveSinglePath(testInstance, backend, handle, testTrackedFileNameConstant)
	require.Equal(testInstance, vcs.StatusUnmodified, revertedEntry.Flags)

	contents, readError := os.ReadFile(filepath.Join(repositoryRoot, testTrackedFileNameConstant))
	require.NoError(testInstance, readError)
	require.Equal(testInstance, "one\n", string(contents))
}

func TestStageDeletedFile(testInstance *testing.T) {
	repositoryRoot := initializeRepository(testInstance, true)
	backend := NewBackend(zap.NewNop())
	handle := openHandle(testInstance, backend, repositoryRoot)
	require.NoError(testInstance, os.Remove(filepath.Join(repositoryRoot, testTrackedFileNameConstant)))

	require.NoError(testInstance, backend.Stage(context.Background(), handle, []string{testTrackedFileNameConstant}))
	snapshot, statusError := backend.RetrieveStatus(context.Background(), handle, vcs.StatusOptions{})
	require.NoError(testInstance, statusError)
	require.Equal(testInstance, vcs.StatusDeletedFromIndex, snapshot.Flags(testTrackedFileNameConstant))
}

func TestRetrievePathsStatusReportsNonexistent(testInstance *testing.T) {
	repositoryRoot := initializeRepository(testInstance, true)
	backend := NewBackend(zap.NewNop())
	handle := openHandle(testInstance, backend, repositoryRoot)

	entry := retrieveSinglePath(testInstance, backend, handle, "missing.txt")
	require.Equal(testInstance, vcs.StatusNonexistent, entry.Flags)
}

func TestRetrievePathsStatusExpandsDirectories(testInstance *testing.T) {
	repositoryRoot := initializeRepository(testInstance, true)
	backend := NewBackend(zap.NewNop())
	handle := openHandle(testInstance, backend, repositoryRoot)
	require.NoError(testInstance, os.MkdirAll(filepath.Join(repositoryRoot, "dir", "sub"), 0o755))
	require.NoError(testInstance, os.WriteFile(filepath.Join(repositoryRoot, "dir", "a.txt"), []byte("a\n"), 0o644))
	require.NoError(testInstance, os.WriteFile(filepath.Join(repositoryRoot, "dir", "sub", "b.txt"), []byte("b\n"), 0o644))
	require.NoError(testInstance, os.WriteFile(filepath.Join(repositoryRoot, testTrackedFileNameConstant), []byte("two\n"), 0o644))

	entries, statusError := backend.RetrievePathsStatus(context.Background(), handle, []string{"dir"})
	require.NoError(testInstance, statusError)
	require.ElementsMatch(testInstance, []vcs.StatusEntry{
		{Path: "dir/a.txt", Flags: vcs.StatusNewInWorkdir},
		{Path: "dir/sub/b.txt", Flags: vcs.StatusNewInWorkdir},
	}, entries)
}

func TestClosedHandleAndCanceledContext(testInstance *testing.T) {
	repositoryRoot := initializeRepository(testInstance, true)
	backend := NewBackend(nil)
	handle := openHandle(testInstance, backend, repositoryRoot)

	canceledContext, cancel := context.WithCancel(context.Background())
	cancel()
	_, canceledError := backend.RetrieveStatus(canceledContext, handle, vcs.StatusOptions{})
	require.ErrorIs(testInstance, canceledError, context.Canceled)

	require.NoError(testInstance, backend.Close(handle))
	require.NoError(testInstance, backend.Close(handle))
	stageError := backend.Stage(context.Background(), handle, []string{testTrackedFileNameConstant})
	require.ErrorIs(testInstance, stageError, vcs.ErrRepositoryNotOpen)
}

func TestConvertStatusRenameHandling(testInstance *testing.T) {
	worktreeStatus := git.Status{
		"new.txt":   &git.FileStatus{Staging: git.Renamed, Worktree: git.Unmodified, Extra: "old.txt"},
		"clean.txt": &git.FileStatus{Staging: git.Unmodified, Worktree: git.Unmodified},
		"loose.txt": &git.FileStatus{Staging: git.Untracked, Worktree: git.Untracked},
	}

	withRenames := vcs.NewStatusSnapshot(convertStatus(worktreeStatus, true))
	renamedEntry, exists := withRenames.Get("new.txt")
	require.True(testInstance, exists)
	require.Equal(testInstance, vcs.StatusRenamedInIndex, renamedEntry.Flags)
	require.Equal(testInstance, "old.txt", renamedEntry.OldPath)
	require.Equal(testInstance, vcs.StatusNewInWorkdir, withRenames.Flags("loose.txt"))
	_, cleanExists := withRenames.Get("clean.txt")
	require.False(testInstance, cleanExists)

	withoutRenames := vcs.NewStatusSnapshot(convertStatus(worktreeStatus, false))
	require.Equal(testInstance, vcs.StatusNewInIndex, withoutRenames.Flags("new.txt"))
	require.Equal(testInstance, vcs.StatusDeletedFromIndex, withoutRenames.Flags("old.txt"))
}
