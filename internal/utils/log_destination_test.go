package utils_test

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/gixcore/internal/utils"
)

func TestLogDestinationFlushesBufferedWriters(testInstance *testing.T) {
	var outputBuffer bytes.Buffer
	bufferedWriter := bufio.NewWriterSize(&outputBuffer, 4096)
	destination := utils.NewLogDestination(bufferedWriter)

	written, writeError := destination.Write([]byte("status updated\n"))
	require.NoError(testInstance, writeError)
	require.Equal(testInstance, len("status updated\n"), written)
	require.Equal(testInstance, "status updated\n", outputBuffer.String())
	require.Same(testInstance, destination, utils.NewLogDestination(destination))
}

func TestLogDestinationSyncsFiles(testInstance *testing.T) {
	logFile, createError := os.Create(filepath.Join(testInstance.TempDir(), "core.log"))
	require.NoError(testInstance, createError)
	testInstance.Cleanup(func() { _ = logFile.Close() })

	destination := utils.NewLogDestination(logFile)
	_, writeError := destination.Write([]byte("repository loaded\n"))
	require.NoError(testInstance, writeError)
	require.NoError(testInstance, destination.Sync())

	contents, readError := os.ReadFile(logFile.Name())
	require.NoError(testInstance, readError)
	require.Equal(testInstance, "repository loaded\n", string(contents))
}

func TestLogDestinationDiscardsWithoutWriter(testInstance *testing.T) {
	destination := utils.NewLogDestination(nil)
	written, writeError := destination.Write([]byte("ignored"))
	require.NoError(testInstance, writeError)
	require.Equal(testInstance, len("ignored"), written)
	require.NoError(testInstance, destination.Sync())
}

func TestLoggerEntriesFromWorkersDoNotInterleave(testInstance *testing.T) {
	var outputBuffer bytes.Buffer
	logger, creationError := utils.NewLoggerFactory(&outputBuffer).CreateLogger(utils.LogLevelInfo, utils.LogFormatStructured)
	require.NoError(testInstance, creationError)

	const workerCount = 16
	var waitGroup sync.WaitGroup
	for workerIndex := 0; workerIndex < workerCount; workerIndex++ {
		waitGroup.Add(1)
		go func(workerIndex int) {
			defer waitGroup.Done()
			logger.Info("stage finished", zap.Int("worker", workerIndex))
		}(workerIndex)
	}
	waitGroup.Wait()

	lines := bytes.Split(bytes.TrimSpace(outputBuffer.Bytes()), []byte("\n"))
	require.Len(testInstance, lines, workerCount)
	for _, line := range lines {
		require.True(testInstance, bytes.HasPrefix(line, []byte("{")))
		require.True(testInstance, bytes.HasSuffix(line, []byte("}")))
	}
}
