// Package storage reads and writes files below a served root.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/lynxoskar/fileServe200/internal/errutil"
	"github.com/lynxoskar/fileServe200/internal/fsroot"
	"github.com/lynxoskar/fileServe200/internal/hashutil"
	"github.com/lynxoskar/fileServe200/internal/scan"
)

const digestAlgo = "sha256"

var (
	// ErrHashMismatch is returned when uploaded content does not match the expected digest.
	ErrHashMismatch = errors.New("hash mismatch")

	// ErrIsDirectory is returned when a file operation targets a directory.
	ErrIsDirectory = errors.New("is a directory")
)

// Stored describes a file written by Put.
type Stored struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
}

// Local serves files from a Root on the local filesystem.
type Local struct {
	Root fsroot.Root
	g    singleflight.Group
}

func NewLocal(root fsroot.Root) *Local {
	return &Local{Root: root}
}

// Open opens the regular file at rel for reading.
func (l *Local) Open(rel string) (*os.File, fs.FileInfo, error) {
	path, err := l.Root.Resolve(rel)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, nil, fmt.Errorf("%w: %s", ErrIsDirectory, rel)
	}
	return f, info, nil
}

// Put stores the content of r at rel, replacing any existing file.
//
// Content is written to a temporary file next to the target, hashed while
// copying and renamed into place, so readers never observe a partial file.
// When expectedSHA256 is set the upload is rejected with ErrHashMismatch
// unless the content matches, and concurrent uploads of the same digest to the
// same path are collapsed into one write.
func (l *Local) Put(ctx context.Context, rel string, r io.Reader, expectedSHA256 string) (Stored, error) {
	if expectedSHA256 != "" && !hashutil.ValidHex(digestAlgo, expectedSHA256) {
		return Stored{}, fmt.Errorf("invalid %s digest: %q", digestAlgo, expectedSHA256)
	}
	if strings.HasPrefix(filepath.Base(filepath.FromSlash(rel)), scan.UploadPrefix) {
		return Stored{}, fmt.Errorf("%w: reserved name %s", fsroot.ErrAccessDenied, rel)
	}

	finalPath, err := l.Root.Resolve(rel)
	if err != nil {
		return Stored{}, err
	}
	if finalPath == l.Root.Path() {
		return Stored{}, fmt.Errorf("%w: %s", ErrIsDirectory, rel)
	}

	if expectedSHA256 == "" {
		return l.put(ctx, finalPath, r, "")
	}
	key := finalPath + "\x00" + strings.ToLower(expectedSHA256)
	v, err, _ := l.g.Do(key, func() (interface{}, error) {
		return l.put(ctx, finalPath, r, expectedSHA256)
	})
	if err != nil {
		return Stored{}, err
	}
	return v.(Stored), nil
}

func (l *Local) put(ctx context.Context, finalPath string, r io.Reader, expected string) (Stored, error) {
	if info, err := os.Stat(finalPath); err == nil && info.IsDir() {
		return Stored{}, fmt.Errorf("%w: %s", ErrIsDirectory, finalPath)
	}

	dir := filepath.Dir(finalPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Stored{}, fmt.Errorf("failed to create parent dir: %w", err)
	}
	if !l.Root.Contains(dir) {
		return Stored{}, fmt.Errorf("%w: %s", fsroot.ErrAccessDenied, finalPath)
	}

	tmpFile, err := os.CreateTemp(dir, scan.UploadPrefix+"*")
	if err != nil {
		return Stored{}, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		// Gone after a successful rename.
		errutil.LogMsg(errutil.IgnoreNotExist(os.Remove(tmpFile.Name())), "Failed to remove temp file", "path", tmpFile.Name())
	}()
	defer func() { _ = tmpFile.Close() }()

	hasher, err := hashutil.GetHasher(digestAlgo)
	if err != nil {
		return Stored{}, err
	}

	mw := io.MultiWriter(tmpFile, hasher)
	written, err := io.Copy(mw, &ctxReader{ctx: ctx, r: r})
	if err != nil {
		return Stored{}, fmt.Errorf("failed to write to temp file: %w", err)
	}

	actual := hashutil.Hex(hasher)
	if expected != "" && !hashutil.Equal(expected, actual) {
		return Stored{}, fmt.Errorf("%w: expected %s, got %s", ErrHashMismatch, strings.ToLower(expected), actual)
	}

	if err := tmpFile.Close(); err != nil {
		return Stored{}, fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpFile.Name(), finalPath); err != nil {
		return Stored{}, fmt.Errorf("failed to rename to final path: %w", err)
	}

	rel, err := filepath.Rel(l.Root.Path(), finalPath)
	if err != nil {
		rel = filepath.Base(finalPath)
	}
	stored := Stored{Path: filepath.ToSlash(rel), Size: written, SHA256: actual}
	slog.Info("Stored file", "path", stored.Path, "size", written, "sha256", actual)
	return stored, nil
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
