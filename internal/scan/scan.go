// Package scan turns directory contents under a Root into entry records.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lynxoskar/fileServe200/internal/entry"
	"github.com/lynxoskar/fileServe200/internal/events"
	"github.com/lynxoskar/fileServe200/internal/fsroot"
)

// UploadPrefix marks files that are still being written by an upload.
// Listings never show them. Recursive scans report them once they are older
// than StaleUploadAge, so uploads abandoned by a crash fall to retention.
const UploadPrefix = ".fileserve-upload-"

// StaleUploadAge is how long an upload temp file may sit unmodified before it
// is treated as abandoned.
const StaleUploadAge = time.Hour

// ErrNotDirectory is returned when a listing targets a regular file.
var ErrNotDirectory = errors.New("not a directory")

// Scanner enumerates entries below a Root. It holds no mutable state and is
// safe to call from many goroutines at once.
type Scanner struct {
	Root fsroot.Root
	Sink events.Sink

	// Now replaces time.Now when judging stale upload files.
	Now func() time.Time
}

// New returns a Scanner. A nil sink discards scan errors.
func New(root fsroot.Root, sink events.Sink) *Scanner {
	if sink == nil {
		sink = events.Discard
	}
	return &Scanner{Root: root, Sink: sink}
}

// Shallow lists the direct children of rel, directories and files alike.
//
// Failures on the directory itself are returned. Failures on individual
// children are reported to the sink and the child is left out.
func (s *Scanner) Shallow(ctx context.Context, rel string) ([]entry.Entry, error) {
	dir, err := s.Root.Resolve(rel)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, rel)
	}

	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", rel, err)
	}

	result := make([]entry.Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if strings.HasPrefix(de.Name(), UploadPrefix) {
			continue
		}

		full := filepath.Join(dir, de.Name())
		info, err := de.Info()
		if err != nil {
			s.Sink.ScanError(full, err)
			continue
		}

		if info.Mode()&fs.ModeSymlink != 0 {
			if !s.Root.Contains(full) {
				s.Sink.ScanError(full, fsroot.ErrAccessDenied)
				continue
			}
			info, err = os.Stat(full)
			if err != nil {
				s.Sink.ScanError(full, err)
				continue
			}
		}

		e, err := entry.New(de.Name(), full, info.Size(), info.ModTime(), info.IsDir())
		if err != nil {
			s.Sink.ScanError(full, err)
			continue
		}
		result = append(result, e)
	}

	return result, nil
}

// Recursive walks the whole root and returns every regular file in it.
// Directories, symlinks and special files are never returned. Subdirectories
// that cannot be read are reported and skipped.
func (s *Scanner) Recursive(ctx context.Context) ([]entry.Entry, error) {
	if err := s.Root.Check(); err != nil {
		return nil, err
	}
	root := s.Root.Path()

	result := []entry.Entry{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == root {
				return err
			}
			s.Sink.ScanError(path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			s.Sink.ScanError(path, err)
			return nil
		}
		if strings.HasPrefix(d.Name(), UploadPrefix) && !s.staleUpload(info.ModTime()) {
			return nil
		}

		e, err := entry.New(d.Name(), path, info.Size(), info.ModTime(), false)
		if err != nil {
			s.Sink.ScanError(path, err)
			return nil
		}
		result = append(result, e)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	return result, nil
}

func (s *Scanner) staleUpload(modTime time.Time) bool {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return now().Sub(modTime) > StaleUploadAge
}
