package minfree

import (
	"fmt"
	"log/slog"

	"golang.org/x/sys/unix"

	"github.com/lynxoskar/fileServe200/internal/retention/policy"
)

// Policy triggers the size phase when free disk space is below a threshold.
//
// It works on a FreeBytes snapshot taken with Probe before the pass decides,
// so evaluating it never touches the disk.
type Policy struct {
	MinFreeBytes int64
	FreeBytes    int64
}

func (m *Policy) BytesToFree(usage policy.Usage) (int64, error) {
	if m.MinFreeBytes <= 0 {
		return 0, nil
	}
	free := m.FreeBytes + usage.Freed
	if free < m.MinFreeBytes {
		return m.MinFreeBytes - free, nil
	}
	return 0, nil
}

// Probe returns the bytes available to unprivileged users on the filesystem
// holding path.
func Probe(path string) (int64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, fmt.Errorf("failed to check disk space: %w", err)
	}

	// Available blocks * block size
	freeSpace := int64(stat.Bavail) * int64(stat.Bsize)

	slog.Debug("Disk space check", "path", path, "free_bytes", freeSpace)
	return freeSpace, nil
}
