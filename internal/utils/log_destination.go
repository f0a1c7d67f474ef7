package utils

import (
	"io"
	"sync"

	"go.uber.org/zap/zapcore"
)

type flusher interface {
	Flush() error
}

type syncer interface {
	Sync() error
}

// LogDestination is the zap sink shared by the host loop and background stage workers.
// Entries are written one at a time and buffered writers are flushed after every entry.
type LogDestination struct {
	mutex  sync.Mutex
	writer io.Writer
}

// NewLogDestination wraps writer. A nil writer yields a destination that discards entries.
func NewLogDestination(writer io.Writer) *LogDestination {
	if existing, isDestination := writer.(*LogDestination); isDestination {
		return existing
	}
	return &LogDestination{writer: writer}
}

// Write implements zapcore.WriteSyncer.
func (destination *LogDestination) Write(entry []byte) (int, error) {
	destination.mutex.Lock()
	defer destination.mutex.Unlock()
	if destination.writer == nil {
		return len(entry), nil
	}

	written, writeError := destination.writer.Write(entry)
	if writeError != nil {
		return written, writeError
	}
	if bufferedWriter, isBuffered := destination.writer.(flusher); isBuffered {
		return written, bufferedWriter.Flush()
	}
	return written, nil
}

// Sync implements zapcore.WriteSyncer. Files are synced; buffered writers are flushed.
func (destination *LogDestination) Sync() error {
	destination.mutex.Lock()
	defer destination.mutex.Unlock()
	switch typedWriter := destination.writer.(type) {
	case syncer:
		return typedWriter.Sync()
	case flusher:
		return typedWriter.Flush()
	default:
		return nil
	}
}

var _ zapcore.WriteSyncer = (*LogDestination)(nil)
