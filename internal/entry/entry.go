package entry

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// SizeUnknown is the size reported for directories, whose size is not computed.
const SizeUnknown int64 = -1

// ErrInvalidEntry is returned by New when a record would be partially populated.
var ErrInvalidEntry = errors.New("invalid entry")

// Entry is one filesystem object observed by a scan.
//
// Entries are immutable and only built through New, so every Entry in
// circulation has all of its fields set.
type Entry struct {
	name    string
	path    string
	size    int64
	modTime time.Time
	isDir   bool
}

// New validates and builds an Entry. Directories always get SizeUnknown,
// whatever size is passed in.
func New(name, fullPath string, size int64, modTime time.Time, isDir bool) (Entry, error) {
	switch {
	case name == "" || name == "." || name == "..":
		return Entry{}, fmt.Errorf("%w: bad name %q", ErrInvalidEntry, name)
	case strings.ContainsRune(name, '/') || strings.ContainsRune(name, filepath.Separator):
		return Entry{}, fmt.Errorf("%w: name %q contains a path separator", ErrInvalidEntry, name)
	case !filepath.IsAbs(fullPath):
		return Entry{}, fmt.Errorf("%w: path %q is not absolute", ErrInvalidEntry, fullPath)
	case filepath.Base(fullPath) != name:
		return Entry{}, fmt.Errorf("%w: path %q does not end in %q", ErrInvalidEntry, fullPath, name)
	case modTime.IsZero():
		return Entry{}, fmt.Errorf("%w: %q has no modification time", ErrInvalidEntry, name)
	case !isDir && size < 0:
		return Entry{}, fmt.Errorf("%w: %q has negative size %d", ErrInvalidEntry, name, size)
	}

	if isDir {
		size = SizeUnknown
	}

	return Entry{
		name:    name,
		path:    filepath.Clean(fullPath),
		size:    size,
		modTime: modTime.UTC(),
		isDir:   isDir,
	}, nil
}

func (e Entry) Name() string       { return e.name }
func (e Entry) Path() string       { return e.path }
func (e Entry) Size() int64        { return e.size }
func (e Entry) ModTime() time.Time { return e.modTime }
func (e Entry) IsDir() bool        { return e.isDir }

// wireEntry is the JSON shape of an Entry.
type wireEntry struct {
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
	IsDirectory  bool      `json:"isDirectory"`
}

// MarshalJSON renders the entry with its absolute path. Callers exposing
// entries to clients should use View to strip the root.
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.view(e.path))
}

// View returns the JSON form of the entry with its path made relative to root.
func (e Entry) View(root string) any {
	rel, err := filepath.Rel(root, e.path)
	if err != nil {
		rel = e.name
	}
	return e.view(filepath.ToSlash(rel))
}

func (e Entry) view(path string) wireEntry {
	return wireEntry{
		Name:         e.name,
		Path:         path,
		Size:         e.size,
		LastModified: e.modTime,
		IsDirectory:  e.isDir,
	}
}
