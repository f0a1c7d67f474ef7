package postprocess_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/gixcore/internal/config"
	"github.com/temirov/gixcore/internal/postprocess"
	"github.com/temirov/gixcore/internal/vcs"
)

const testCompanionSuffixConstant = ".meta"

var (
	errTestStage   = errors.New("stage failed")
	errTestUnstage = errors.New("unstage failed")
)

type stubHandle struct{}

func (stubHandle) Path() string { return "/workspace" }

type recordingRepository struct {
	handle      vcs.RepositoryHandle
	invalid     bool
	markedPaths []string
}

func (repository *recordingRepository) Handle() vcs.RepositoryHandle {
	return repository.handle
}

func (repository *recordingRepository) IsValidRepository() bool {
	return !repository.invalid
}

func (repository *recordingRepository) MarkDirtyPaths(paths ...string) {
	repository.markedPaths = append(repository.markedPaths, paths...)
}

type recordingStager struct {
	staged       [][]string
	unstaged     [][]string
	stageError   error
	unstageError error
}

func (stager *recordingStager) Stage(_ context.Context, paths []string) error {
	stager.staged = append(stager.staged, paths)
	return stager.stageError
}

func (stager *recordingStager) Unstage(_ context.Context, paths []string) error {
	stager.unstaged = append(stager.unstaged, paths)
	return stager.unstageError
}

type processorFixture struct {
	processor  *postprocess.Processor
	repository *recordingRepository
	stager     *recordingStager
	rootPath   string
}

func newProcessorFixture(testInstance *testing.T, mutate func(configuration *config.CoreConfiguration)) *processorFixture {
	testInstance.Helper()
	coreConfiguration := config.DefaultConfiguration().Core
	if mutate != nil {
		mutate(&coreConfiguration)
	}
	rootPath := testInstance.TempDir()
	repository := &recordingRepository{handle: stubHandle{}}
	stager := &recordingStager{}
	processor, processorError := postprocess.NewProcessor(postprocess.Dependencies{
		RootPath:   rootPath,
		Repository: repository,
		Stager:     stager,
		Settings:   config.NewSettings(coreConfiguration),
	})
	require.NoError(testInstance, processorError)
	return &processorFixture{processor: processor, repository: repository, stager: stager, rootPath: rootPath}
}

func (fixture *processorFixture) makeDirectory(testInstance *testing.T, relativePath string, withFile bool) {
	testInstance.Helper()
	directoryPath := filepath.Join(fixture.rootPath, filepath.FromSlash(relativePath))
	require.NoError(testInstance, os.MkdirAll(directoryPath, 0o755))
	if withFile {
		require.NoError(testInstance, os.WriteFile(filepath.Join(directoryPath, "file.txt"), []byte("content"), 0o644))
	}
}

func TestNewProcessorValidatesDependencies(testInstance *testing.T) {
	settings := config.NewSettings(config.DefaultConfiguration().Core)
	testCases := []struct {
		name          string
		dependencies  postprocess.Dependencies
		expectedError error
	}{
		{name: "missing_repository", dependencies: postprocess.Dependencies{Stager: &recordingStager{}, Settings: settings}, expectedError: postprocess.ErrRepositoryNotConfigured},
		{name: "missing_stager", dependencies: postprocess.Dependencies{Repository: &recordingRepository{}, Settings: settings}, expectedError: postprocess.ErrStagerNotConfigured},
		{name: "missing_settings", dependencies: postprocess.Dependencies{Repository: &recordingRepository{}, Stager: &recordingStager{}}, expectedError: postprocess.ErrSettingsNotConfigured},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			processor, processorError := postprocess.NewProcessor(testCase.dependencies)
			require.ErrorIs(testInstance, processorError, testCase.expectedError)
			require.Nil(testInstance, processor)
		})
	}
}

func TestStagePolicyFollowsAutoStage(testInstance *testing.T) {
	testCases := []struct {
		name            string
		autoStage       bool
		expectedStaged  [][]string
		expectedDirtied []string
	}{
		{name: "auto_stage_on", autoStage: true, expectedStaged: [][]string{{"Assets/a.txt"}}},
		{name: "auto_stage_off", autoStage: false, expectedDirtied: []string{"Assets/a.txt"}},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			fixture := newProcessorFixture(testInstance, func(configuration *config.CoreConfiguration) {
				configuration.AutoStage = testCase.autoStage
			})

			require.NoError(testInstance, fixture.processor.PathsSaved(context.Background(), []string{"Assets\\a.txt"}))
			require.NoError(testInstance, fixture.processor.PathsImported(context.Background(), []string{"Assets/a.txt"}))

			if testCase.expectedStaged != nil {
				require.Equal(testInstance, append(testCase.expectedStaged, testCase.expectedStaged...), fixture.stager.staged)
			} else {
				require.Empty(testInstance, fixture.stager.staged)
			}
			if testCase.expectedDirtied != nil {
				require.Equal(testInstance, append(testCase.expectedDirtied, testCase.expectedDirtied...), fixture.repository.markedPaths)
			} else {
				require.Empty(testInstance, fixture.repository.markedPaths)
			}
		})
	}
}

func TestDeletionsUnstageWithoutAutoStage(testInstance *testing.T) {
	fixture := newProcessorFixture(testInstance, func(configuration *config.CoreConfiguration) {
		configuration.AutoStage = false
	})

	require.NoError(testInstance, fixture.processor.PathsDeleted(context.Background(), []string{"gone.txt"}))
	require.NoError(testInstance, fixture.processor.PathsMoved(context.Background(), []string{"new.txt"}, []string{"old.txt"}))

	require.Equal(testInstance, [][]string{{"gone.txt"}, {"old.txt"}}, fixture.stager.unstaged)
	require.Empty(testInstance, fixture.stager.staged)
	require.Equal(testInstance, []string{"new.txt"}, fixture.repository.markedPaths)
}

func TestPostprocessingSkipped(testInstance *testing.T) {
	testCases := []struct {
		name   string
		mutate func(configuration *config.CoreConfiguration)
		adjust func(repository *recordingRepository)
	}{
		{name: "disabled", mutate: func(configuration *config.CoreConfiguration) { configuration.DisablePostprocess = true }},
		{name: "no_handle", adjust: func(repository *recordingRepository) { repository.handle = nil }},
		{name: "invalid_repository", adjust: func(repository *recordingRepository) { repository.invalid = true }},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			fixture := newProcessorFixture(testInstance, testCase.mutate)
			if testCase.adjust != nil {
				testCase.adjust(fixture.repository)
			}

			require.NoError(testInstance, fixture.processor.PathsSaved(context.Background(), []string{"a.txt"}))
			require.NoError(testInstance, fixture.processor.PathsMoved(context.Background(), []string{"b.txt"}, []string{"a.txt"}))
			require.Empty(testInstance, fixture.stager.staged)
			require.Empty(testInstance, fixture.stager.unstaged)
			require.Empty(testInstance, fixture.repository.markedPaths)
		})
	}
}

func TestCompanionExpansionAndEmptyDirectories(testInstance *testing.T) {
	fixture := newProcessorFixture(testInstance, func(configuration *config.CoreConfiguration) {
		configuration.CompanionSuffix = testCompanionSuffixConstant
	})
	fixture.makeDirectory(testInstance, "Assets/Empty", false)
	fixture.makeDirectory(testInstance, "Assets/Textures", true)

	savedPaths := []string{
		"Assets/a.png",
		"Assets/b.png.meta",
		"Assets/Empty",
		"Assets/Empty.meta",
		"Assets/Textures",
		"Assets/a.png.meta",
	}
	require.NoError(testInstance, fixture.processor.PathsSaved(context.Background(), savedPaths))

	require.Len(testInstance, fixture.stager.staged, 1)
	require.Equal(testInstance, []string{
		"Assets/a.png",
		"Assets/a.png.meta",
		"Assets/b.png.meta",
		"Assets/b.png",
		"Assets/Textures.meta",
	}, fixture.stager.staged[0])

	require.NoError(testInstance, fixture.processor.PathsDeleted(context.Background(), []string{"Assets/c.png"}))
	require.Equal(testInstance, []string{"Assets/c.png", "Assets/c.png.meta"}, fixture.stager.unstaged[0])
}

func TestMovedCombinesFailures(testInstance *testing.T) {
	fixture := newProcessorFixture(testInstance, nil)
	fixture.stager.stageError = errTestStage
	fixture.stager.unstageError = errTestUnstage

	movedError := fixture.processor.PathsMoved(context.Background(), []string{"b.txt"}, []string{"a.txt"})
	require.ErrorIs(testInstance, movedError, errTestStage)
	require.ErrorIs(testInstance, movedError, errTestUnstage)
	require.Len(testInstance, fixture.stager.staged, 1)
	require.Len(testInstance, fixture.stager.unstaged, 1)
}
