package gitcli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/gixcore/internal/vcs"
)

func joinRecords(records ...string) string {
	return strings.Join(records, "\x00") + "\x00"
}

func TestParsePorcelainStatus(testInstance *testing.T) {
	testCases := []struct {
		name            string
		output          string
		expectedEntries []vcs.StatusEntry
	}{
		{
			name:            "empty_output",
			output:          "",
			expectedEntries: []vcs.StatusEntry{},
		},
		{
			name:   "ordinary_staged_and_modified",
			output: joinRecords("1 MM N... 100644 100644 100644 abc def src/main.go"),
			expectedEntries: []vcs.StatusEntry{
				{Path: "src/main.go", Flags: vcs.StatusModifiedInIndex | vcs.StatusModifiedInWorkdir},
			},
		},
		{
			name:   "path_with_spaces",
			output: joinRecords("1 A. N... 000000 100644 100644 000 def docs/read me.md"),
			expectedEntries: []vcs.StatusEntry{
				{Path: "docs/read me.md", Flags: vcs.StatusNewInIndex},
			},
		},
		{
			name:   "rename_consumes_source_record",
			output: joinRecords("2 R. N... 100644 100644 100644 abc abc R100 new name.txt", "old name.txt", "? untracked.txt"),
			expectedEntries: []vcs.StatusEntry{
				{Path: "new name.txt", OldPath: "old name.txt", Flags: vcs.StatusRenamedInIndex},
				{Path: "untracked.txt", Flags: vcs.StatusNewInWorkdir},
			},
		},
		{
			name:   "unmerged_ignored_and_headers",
			output: joinRecords("# branch.oid abc", "u UU N... 100644 100644 100644 100644 a b c conflict.txt", "! build/"),
			expectedEntries: []vcs.StatusEntry{
				{Path: "conflict.txt", Flags: vcs.StatusConflicted},
				{Path: "build/", Flags: vcs.StatusIgnored},
			},
		},
		{
			name:   "deleted_in_worktree",
			output: joinRecords("1 .D N... 100644 100644 000000 abc abc gone.txt"),
			expectedEntries: []vcs.StatusEntry{
				{Path: "gone.txt", Flags: vcs.StatusDeletedFromWorkdir},
			},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			entries, parseError := parsePorcelainStatus(testCase.output)
			require.NoError(testInstance, parseError)
			require.Equal(testInstance, testCase.expectedEntries, entries)
		})
	}
}

func TestParsePorcelainStatusRejectsMalformedRecords(testInstance *testing.T) {
	testCases := []struct {
		name   string
		output string
	}{
		{name: "truncated_ordinary", output: joinRecords("1 M. N...")},
		{name: "unknown_marker", output: joinRecords("x something")},
		{name: "rename_without_source", output: "2 R. N... 100644 100644 100644 abc abc R100 new.txt"},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			_, parseError := parsePorcelainStatus(testCase.output)
			require.Error(testInstance, parseError)
		})
	}
}
