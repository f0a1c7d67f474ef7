package taskqueue_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/gixcore/internal/taskqueue"
)

const (
	testWaitTimeoutConstant = 2 * time.Second
)

var errTestWork = errors.New("work failed")

func waitForHandle(testInstance *testing.T, handle *taskqueue.Handle) {
	testInstance.Helper()
	select {
	case <-handle.Done():
	case <-time.After(testWaitTimeoutConstant):
		testInstance.Fatalf("worker %s did not finish", handle.Identifier())
	}
}

func TestQueueWorkerDefersCompletionToMainContext(testInstance *testing.T) {
	queue := taskqueue.NewQueue(taskqueue.Dependencies{})

	var completionCalls atomic.Int32
	handle := queue.QueueWorker(context.Background(), func(context.Context) error {
		return nil
	}, func(completedHandle *taskqueue.Handle) error {
		require.True(testInstance, completedHandle.IsDone())
		completionCalls.Add(1)
		return nil
	}, nil)

	waitForHandle(testInstance, handle)
	require.True(testInstance, handle.IsDone())
	require.NoError(testInstance, handle.Err())
	require.Equal(testInstance, int32(0), completionCalls.Load())
	require.Equal(testInstance, 1, queue.PendingActions())
	require.Equal(testInstance, 0, queue.ActiveWorkers())

	require.NoError(testInstance, queue.DrainOne())
	require.Equal(testInstance, int32(1), completionCalls.Load())
	require.NoError(testInstance, queue.DrainOne())
	require.Equal(testInstance, int32(1), completionCalls.Load())
}

func TestQueueWorkerReportsErrors(testInstance *testing.T) {
	testCases := []struct {
		name                string
		work                taskqueue.WorkFunc
		cancelParent        bool
		expectedError       error
		expectedInterrupted bool
	}{
		{
			name:          "work_error",
			work:          func(context.Context) error { return errTestWork },
			expectedError: errTestWork,
		},
		{
			name: "cancelled_work",
			work: func(executionContext context.Context) error {
				<-executionContext.Done()
				return executionContext.Err()
			},
			cancelParent:        true,
			expectedError:       context.Canceled,
			expectedInterrupted: true,
		},
		{
			name: "panicking_work",
			work: func(context.Context) error {
				panic("boom")
			},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			queue := taskqueue.NewQueue(taskqueue.Dependencies{})
			parentContext, cancelParent := context.WithCancel(context.Background())
			defer cancelParent()

			handle := queue.QueueWorker(parentContext, testCase.work, nil, nil)
			if testCase.cancelParent {
				cancelParent()
			}
			waitForHandle(testInstance, handle)

			workerError := handle.Err()
			require.Error(testInstance, workerError)
			if testCase.expectedError != nil {
				require.ErrorIs(testInstance, workerError, testCase.expectedError)
			}
			require.Equal(testInstance, testCase.expectedInterrupted, errors.Is(workerError, taskqueue.ErrWorkerInterrupted))
			require.Equal(testInstance, 0, queue.PendingActions())
		})
	}
}

func TestQueueWorkerSerializesOnLock(testInstance *testing.T) {
	queue := taskqueue.NewQueue(taskqueue.Dependencies{})
	statusLock := taskqueue.NewStatusLock()

	var running atomic.Int32
	var overlapped atomic.Bool
	work := func(context.Context) error {
		if running.Add(1) > 1 {
			overlapped.Store(true)
		}
		time.Sleep(10 * time.Millisecond)
		running.Add(-1)
		return nil
	}

	handles := make([]*taskqueue.Handle, 0, 4)
	for index := 0; index < 4; index++ {
		handles = append(handles, queue.QueueWorker(context.Background(), work, nil, statusLock))
	}
	for _, handle := range handles {
		waitForHandle(testInstance, handle)
		require.NoError(testInstance, handle.Err())
	}
	require.False(testInstance, overlapped.Load())
}

func TestQueueWorkerInterruptedWhileWaitingForLock(testInstance *testing.T) {
	queue := taskqueue.NewQueue(taskqueue.Dependencies{})
	statusLock := taskqueue.NewStatusLock()
	require.True(testInstance, statusLock.TryAcquire(1))
	defer statusLock.Release(1)

	var workCalled atomic.Bool
	handle := queue.QueueWorker(context.Background(), func(context.Context) error {
		workCalled.Store(true)
		return nil
	}, nil, statusLock)
	handle.Cancel()
	waitForHandle(testInstance, handle)

	require.ErrorIs(testInstance, handle.Err(), taskqueue.ErrWorkerInterrupted)
	require.ErrorIs(testInstance, handle.Err(), context.Canceled)
	require.False(testInstance, workCalled.Load())
}

func TestQueueDrainOneIsFIFOAndLogsFailures(testInstance *testing.T) {
	observedCore, observedLogs := observer.New(zapcore.DebugLevel)
	queue := taskqueue.NewQueue(taskqueue.Dependencies{Logger: zap.New(observedCore)})

	var order []string
	queue.Enqueue(func() error {
		order = append(order, "first")
		return nil
	})
	queue.Enqueue(func() error {
		order = append(order, "second")
		return errTestWork
	})
	queue.Enqueue(nil)

	require.Equal(testInstance, 2, queue.PendingActions())
	require.NoError(testInstance, queue.DrainOne())
	drainError := queue.DrainOne()
	require.ErrorIs(testInstance, drainError, errTestWork)
	require.Equal(testInstance, []string{"first", "second"}, order)

	failureEntries := observedLogs.FilterMessage("Main context action failed").All()
	require.Len(testInstance, failureEntries, 1)
	require.Equal(testInstance, zapcore.ErrorLevel, failureEntries[0].Level)
}

func TestQueueCancelAll(testInstance *testing.T) {
	queue := taskqueue.NewQueue(taskqueue.Dependencies{})
	blockingWork := func(executionContext context.Context) error {
		<-executionContext.Done()
		return executionContext.Err()
	}

	firstHandle := queue.QueueWorker(context.Background(), blockingWork, nil, nil)
	secondHandle := queue.QueueWorker(context.Background(), blockingWork, nil, nil)
	require.NotEqual(testInstance, firstHandle.Identifier(), secondHandle.Identifier())

	queue.CancelAll()
	waitForHandle(testInstance, firstHandle)
	waitForHandle(testInstance, secondHandle)
	require.ErrorIs(testInstance, firstHandle.Err(), taskqueue.ErrWorkerInterrupted)
	require.ErrorIs(testInstance, secondHandle.Err(), taskqueue.ErrWorkerInterrupted)
	require.Equal(testInstance, 0, queue.ActiveWorkers())
}
