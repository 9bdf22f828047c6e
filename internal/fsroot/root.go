// Package fsroot confines filesystem access to a single configured directory.
//
// Every path handed to the rest of the system goes through Root.Resolve, which
// checks containment on the symlink-resolved form of the path. This is the only
// defense against "../" traversal and symlinks pointing out of the root.
package fsroot

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrAccessDenied is returned when a path resolves outside the root.
	ErrAccessDenied = errors.New("access denied")

	// ErrMissingRoot is returned when the root directory does not exist.
	ErrMissingRoot = errors.New("root directory missing")
)

// Root is the directory the server is allowed to operate within.
type Root struct {
	dir string
}

// New returns a Root for dir. The directory does not have to exist yet.
func New(dir string) (Root, error) {
	if dir == "" {
		return Root{}, fmt.Errorf("root directory is empty")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Root{}, fmt.Errorf("failed to resolve root %s: %w", dir, err)
	}
	return Root{dir: filepath.Clean(abs)}, nil
}

// Path returns the absolute root path, with symlinks resolved when the root exists.
func (r Root) Path() string {
	real, err := filepath.EvalSymlinks(r.dir)
	if err != nil {
		return r.dir
	}
	return real
}

// Check reports ErrMissingRoot if the root is absent or is not a directory.
func (r Root) Check() error {
	info, err := os.Stat(r.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrMissingRoot, r.dir)
		}
		return fmt.Errorf("failed to stat root %s: %w", r.dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrMissingRoot, r.dir)
	}
	return nil
}

// Resolve maps a client supplied relative path to an absolute path inside the
// root. Leading separators are ignored, so "/a/b" means "a/b" under the root.
// The returned path has symlinks resolved for every component that exists.
func (r Root) Resolve(rel string) (string, error) {
	rel = filepath.FromSlash(rel)
	rel = strings.TrimLeft(rel, string(filepath.Separator)+"/")

	root := r.Path()
	joined := filepath.Join(root, rel)

	resolved, err := resolveExisting(joined)
	if err != nil {
		return "", err
	}
	if !within(root, resolved) {
		return "", fmt.Errorf("%w: %s", ErrAccessDenied, rel)
	}
	return resolved, nil
}

// Contains reports whether abs, after resolving symlinks, is the root or lies below it.
func (r Root) Contains(abs string) bool {
	if !filepath.IsAbs(abs) {
		return false
	}
	resolved, err := resolveExisting(filepath.Clean(abs))
	if err != nil {
		return false
	}
	return within(r.Path(), resolved)
}

// Remove deletes a single non-directory entry inside the root. The final
// component is not followed, so removing a symlink removes the link itself.
func (r Root) Remove(abs string) error {
	if !filepath.IsAbs(abs) {
		return fmt.Errorf("%w: %s is not absolute", ErrAccessDenied, abs)
	}
	abs = filepath.Clean(abs)
	parent, err := resolveExisting(filepath.Dir(abs))
	if err != nil {
		return err
	}
	target := filepath.Join(parent, filepath.Base(abs))
	root := r.Path()
	if target == root || !within(root, target) {
		return fmt.Errorf("%w: %s", ErrAccessDenied, abs)
	}

	info, err := os.Lstat(target)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("refusing to remove directory %s", target)
	}
	return os.Remove(target)
}

// resolveExisting evaluates symlinks on the longest existing prefix of p and
// appends the remaining, not yet existing components.
func resolveExisting(p string) (string, error) {
	var rest []string
	cur := p
	for {
		real, err := filepath.EvalSymlinks(cur)
		if err == nil {
			parts := append([]string{real}, rest...)
			return filepath.Join(parts...), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("failed to resolve %s: %w", cur, err)
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return p, nil
		}
		rest = append([]string{filepath.Base(cur)}, rest...)
		cur = parent
	}
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
