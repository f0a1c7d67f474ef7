package flags

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func TestFormatChoiceUsage(t *testing.T) {
	testCases := []struct {
		name           string
		defaultChoice  string
		choices        []string
		description    string
		expectedOutput string
	}{
		{
			name:           "default_backend_first",
			defaultChoice:  "cli",
			choices:        []string{"cli", "gogit"},
			description:    "Version-control backend.",
			expectedOutput: "`<CLI|gogit>` Version-control backend.",
		},
		{
			name:           "default_log_level_in_middle",
			defaultChoice:  "Info",
			choices:        []string{"debug", "info", "warn", "error"},
			description:    "  Minimum log level.  ",
			expectedOutput: "`<debug|INFO|warn|error>` Minimum log level.",
		},
		{
			name:           "no_description",
			defaultChoice:  "console",
			choices:        []string{"structured", "console"},
			expectedOutput: "`<structured|CONSOLE>`",
		},
		{
			name:           "repeats_and_blanks_dropped",
			defaultChoice:  "",
			choices:        []string{" gogit ", "GoGit", "", "cli"},
			description:    "Backend.",
			expectedOutput: "`<gogit|cli>` Backend.",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			require.Equal(t, testCase.expectedOutput, FormatChoiceUsage(testCase.defaultChoice, testCase.choices, testCase.description))
		})
	}
}

func TestAddChoiceFlag(t *testing.T) {
	testCases := []struct {
		name          string
		arguments     []string
		expectedValue string
		expectedError string
	}{
		{name: "unset_keeps_zero_value", arguments: nil, expectedValue: ""},
		{name: "registered_spelling_is_stored", arguments: []string{"--backend", "GOGIT"}, expectedValue: "gogit"},
		{name: "inline_value", arguments: []string{"--backend=cli"}, expectedValue: "cli"},
		{name: "unknown_choice_rejected", arguments: []string{"--backend", "svn"}, expectedError: invalidChoiceMessageConstant},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			var backend string
			flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
			AddChoiceFlag(flagSet, &backend, "backend", "cli", []string{"cli", "gogit"}, "Version-control backend.")

			parseError := flagSet.Parse(testCase.arguments)
			if len(testCase.expectedError) > 0 {
				require.ErrorContains(t, parseError, testCase.expectedError)
				return
			}
			require.NoError(t, parseError)
			require.Equal(t, testCase.expectedValue, backend)
			require.Equal(t, "`<CLI|gogit>` Version-control backend.", flagSet.Lookup("backend").Usage)
		})
	}
}
