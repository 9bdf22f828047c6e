// Package events carries the diagnostic events emitted by the scanner and the
// retention scheduler to whatever sinks the host wires in.
package events

import (
	"log/slog"
)

// Event names, used as the "event" attribute by the slog sink.
const (
	ScanErrorEvent        = "scan_error"
	FilesDeletedAgeEvent  = "files_deleted_age"
	FilesDeletedSizeEvent = "files_deleted_size"
	DeleteErrorEvent      = "delete_error"
)

// Sink receives structured diagnostic events. Implementations must be safe for
// concurrent use; deletions may report from several goroutines.
type Sink interface {
	// ScanError reports an entry skipped during a scan.
	ScanError(path string, reason error)
	// FilesDeletedAge reports files removed by the age phase of a pass.
	FilesDeletedAge(count int)
	// FilesDeletedSize reports files removed by the size phase of a pass.
	FilesDeletedSize(count int, bytes int64)
	// DeleteError reports a file that could not be removed.
	DeleteError(path string, reason error)
}

// Log writes every event to a slog.Logger.
type Log struct {
	Logger *slog.Logger
}

// NewLog returns a Log sink. A nil logger means slog.Default().
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{Logger: logger}
}

func (l *Log) ScanError(path string, reason error) {
	l.Logger.Warn("Skipped entry during scan", "event", ScanErrorEvent, "path", path, "reason", reason)
}

func (l *Log) FilesDeletedAge(count int) {
	l.Logger.Info("Deleted expired files", "event", FilesDeletedAgeEvent, "count", count)
}

func (l *Log) FilesDeletedSize(count int, bytes int64) {
	l.Logger.Info("Deleted files over size budget", "event", FilesDeletedSizeEvent, "count", count, "bytes", bytes)
}

func (l *Log) DeleteError(path string, reason error) {
	l.Logger.Warn("Failed to delete file", "event", DeleteErrorEvent, "path", path, "reason", reason)
}

// Multi fans every event out to each of its sinks in order.
type Multi []Sink

func (m Multi) ScanError(path string, reason error) {
	for _, s := range m {
		s.ScanError(path, reason)
	}
}

func (m Multi) FilesDeletedAge(count int) {
	for _, s := range m {
		s.FilesDeletedAge(count)
	}
}

func (m Multi) FilesDeletedSize(count int, bytes int64) {
	for _, s := range m {
		s.FilesDeletedSize(count, bytes)
	}
}

func (m Multi) DeleteError(path string, reason error) {
	for _, s := range m {
		s.DeleteError(path, reason)
	}
}

// Discard drops all events.
var Discard Sink = discard{}

type discard struct{}

func (discard) ScanError(string, error)     {}
func (discard) FilesDeletedAge(int)         {}
func (discard) FilesDeletedSize(int, int64) {}
func (discard) DeleteError(string, error)   {}
