package retention

import (
	"fmt"
	"math"
	"time"

	"github.com/robfig/cron/v3"
)

// Upper bounds keeping the limits representable in bytes and time.Duration.
const (
	MaxSizeMBLimit            = math.MaxInt64 >> 20
	MaxAgeDaysLimit           = int(math.MaxInt64 / int64(24*time.Hour))
	CleanupIntervalHoursLimit = int(math.MaxInt64 / int64(time.Hour))
)

// DefaultDeleteWorkers bounds concurrent removals when Config.DeleteWorkers is 0.
const DefaultDeleteWorkers = 4

// Config holds the retention limits. It is read once at startup and never
// changes during a pass.
type Config struct {
	// MaxAgeDays deletes files modified more than this many days ago.
	// 0 disables the age phase.
	MaxAgeDays int

	// MaxSizeMB is the directory size budget in MiB.
	// 0 disables the size budget.
	MaxSizeMB int64

	// CleanupIntervalHours is the time between passes.
	// 0 disables periodic passes unless Schedule is set.
	CleanupIntervalHours int

	// Schedule is an optional cron expression ("0 3 * * *", "@every 6h").
	// When set it replaces CleanupIntervalHours.
	Schedule string

	// MinFreeBytes adds a size-phase trigger keeping this much disk space free.
	// 0 disables it.
	MinFreeBytes int64

	// DeleteWorkers is the number of concurrent removals in the deletion phase.
	DeleteWorkers int

	// RunOnStart runs a pass as soon as the scheduler starts.
	RunOnStart bool
}

// DefaultConfig returns the default retention configuration.
func DefaultConfig() Config {
	return Config{
		MaxAgeDays:           30,
		MaxSizeMB:            1000,
		CleanupIntervalHours: 24,
		DeleteWorkers:        DefaultDeleteWorkers,
	}
}

// Validate rejects negative or overflowing limits and unparsable schedules.
func (c Config) Validate() error {
	if c.MaxAgeDays < 0 {
		return fmt.Errorf("max age days must not be negative: %d", c.MaxAgeDays)
	}
	if c.MaxSizeMB < 0 {
		return fmt.Errorf("max size MB must not be negative: %d", c.MaxSizeMB)
	}
	if c.CleanupIntervalHours < 0 {
		return fmt.Errorf("cleanup interval hours must not be negative: %d", c.CleanupIntervalHours)
	}
	if c.MaxAgeDays > MaxAgeDaysLimit {
		return fmt.Errorf("max age days must be at most %d: %d", MaxAgeDaysLimit, c.MaxAgeDays)
	}
	if c.MaxSizeMB > MaxSizeMBLimit {
		return fmt.Errorf("max size MB must be at most %d: %d", MaxSizeMBLimit, c.MaxSizeMB)
	}
	if c.CleanupIntervalHours > CleanupIntervalHoursLimit {
		return fmt.Errorf("cleanup interval hours must be at most %d: %d", CleanupIntervalHoursLimit, c.CleanupIntervalHours)
	}
	if c.MinFreeBytes < 0 {
		return fmt.Errorf("min free bytes must not be negative: %d", c.MinFreeBytes)
	}
	if c.DeleteWorkers < 0 {
		return fmt.Errorf("delete workers must not be negative: %d", c.DeleteWorkers)
	}
	if c.Schedule != "" {
		if _, err := cron.ParseStandard(c.Schedule); err != nil {
			return fmt.Errorf("invalid cron schedule %q: %w", c.Schedule, err)
		}
	}
	return nil
}

// MaxAge returns the age threshold, or 0 when the age phase is disabled.
func (c Config) MaxAge() time.Duration {
	return time.Duration(c.MaxAgeDays) * 24 * time.Hour
}

// Interval returns the time between passes, or 0 when disabled.
func (c Config) Interval() time.Duration {
	return time.Duration(c.CleanupIntervalHours) * time.Hour
}

func (c Config) workers() int {
	if c.DeleteWorkers <= 0 {
		return DefaultDeleteWorkers
	}
	return c.DeleteWorkers
}
