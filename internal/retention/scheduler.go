package retention

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/lynxoskar/fileServe200/internal/errutil"
	"github.com/lynxoskar/fileServe200/internal/events"
	"github.com/lynxoskar/fileServe200/internal/fsroot"
	"github.com/lynxoskar/fileServe200/internal/retention/policy"
	"github.com/lynxoskar/fileServe200/internal/retention/policy/minfree"
	"github.com/lynxoskar/fileServe200/internal/scan"
)

// ErrPassInProgress is returned when a pass is requested while another one runs.
var ErrPassInProgress = errors.New("cleanup pass already in progress")

// State is the step a scheduler is currently in.
type State int32

const (
	Idle State = iota
	Scanning
	Deciding
	Deleting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scanning:
		return "scanning"
	case Deciding:
		return "deciding"
	case Deleting:
		return "deleting"
	default:
		return "unknown"
	}
}

// Recorder receives the report of every completed pass.
type Recorder interface {
	RecordPass(ctx context.Context, report Report) error
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithSink sends diagnostic events to sink.
func WithSink(sink events.Sink) Option {
	return func(s *Scheduler) { s.sink = sink }
}

// WithRecorder adds a Recorder that is handed every completed pass.
func WithRecorder(r Recorder) Option {
	return func(s *Scheduler) { s.recorders = append(s.recorders, r) }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithFreeSpaceProbe replaces the statfs probe used for Config.MinFreeBytes.
func WithFreeSpaceProbe(probe func(path string) (int64, error)) Option {
	return func(s *Scheduler) { s.probe = probe }
}

// WithRemover replaces the function used to delete a file.
func WithRemover(remove func(path string) error) Option {
	return func(s *Scheduler) { s.remove = remove }
}

// WithInterval overrides the tick interval derived from Config.CleanupIntervalHours.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.interval = d }
}

// Scheduler runs retention passes over a root.
//
// At most one pass runs at a time. A pass requested while another is in
// flight fails with ErrPassInProgress instead of waiting, so periodic ticks
// that land during a long pass are dropped rather than queued.
type Scheduler struct {
	scanner   *scan.Scanner
	root      fsroot.Root
	cfg       Config
	interval  time.Duration
	sink      events.Sink
	recorders []Recorder
	now       func() time.Time
	probe     func(path string) (int64, error)
	remove    func(path string) error
	logger    *slog.Logger

	running atomic.Bool
	state   atomic.Int32
	last    atomic.Pointer[Report]
	wg      sync.WaitGroup
}

// NewScheduler creates a Scheduler deleting from the scanner's root.
func NewScheduler(scanner *scan.Scanner, cfg Config, opts ...Option) *Scheduler {
	s := &Scheduler{
		scanner:  scanner,
		root:     scanner.Root,
		cfg:      cfg,
		interval: cfg.Interval(),
		sink:     events.Discard,
		now:      time.Now,
		probe:    minfree.Probe,
		logger:   slog.Default().With("component", "retention.scheduler"),
	}
	s.remove = s.root.Remove
	for _, opt := range opts {
		opt(s)
	}
	if s.sink == nil {
		s.sink = events.Discard
	}
	return s
}

// State returns the step the current pass is in, or Idle.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// LastReport returns the report of the most recent completed pass, if any.
func (s *Scheduler) LastReport() (Report, bool) {
	r := s.last.Load()
	if r == nil {
		return Report{}, false
	}
	return *r, true
}

// Start runs passes on the configured schedule until ctx is cancelled. A
// pass that has started deleting is allowed to finish before Start returns.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.Schedule != "" {
		return s.startCron(ctx)
	}
	if s.interval <= 0 {
		s.logger.Info("Cleanup scheduler disabled")
		return nil
	}

	s.logger.Info("Cleanup scheduler started", "interval", s.interval,
		"max_age_days", s.cfg.MaxAgeDays, "max_size_mb", s.cfg.MaxSizeMB)

	if s.cfg.RunOnStart {
		s.spawn(ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			s.logger.Info("Cleanup scheduler stopped")
			return nil
		case <-ticker.C:
			s.spawn(ctx)
		}
	}
}

func (s *Scheduler) startCron(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(s.cfg.Schedule, func() { s.tick(ctx) }); err != nil {
		return err
	}

	s.logger.Info("Cleanup scheduler started", "schedule", s.cfg.Schedule,
		"max_age_days", s.cfg.MaxAgeDays, "max_size_mb", s.cfg.MaxSizeMB)

	if s.cfg.RunOnStart {
		s.spawn(ctx)
	}
	c.Start()

	<-ctx.Done()
	stopped := c.Stop()
	<-stopped.Done() // Wait for running jobs to finish
	s.wg.Wait()
	s.logger.Info("Cleanup scheduler stopped")
	return nil
}

// spawn runs a tick in the background so the loop keeps draining the ticker.
func (s *Scheduler) spawn(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.tick(ctx)
	}()
}

func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	report, err := s.RunPass(ctx)
	switch {
	case errors.Is(err, ErrPassInProgress):
		s.logger.Debug("Cleanup pass still running, dropping tick")
	case errors.Is(err, fsroot.ErrMissingRoot), errors.Is(err, context.Canceled):
	case err != nil:
		errutil.ReportError(err, "Cleanup pass failed")
	default:
		s.logger.Debug("Cleanup pass completed", "pass_id", report.ID,
			"scanned", report.Plan.Scanned, "deleted", report.Deleted(), "bytes_freed", report.BytesFreed,
			"duration", report.Duration())
	}
}

// RunPass runs one full pass: scan, decide, delete.
//
// Cancelling ctx before the deletion step abandons the pass. Once deletion has
// started it runs to completion.
func (s *Scheduler) RunPass(ctx context.Context) (Report, error) {
	if !s.running.CompareAndSwap(false, true) {
		return Report{}, ErrPassInProgress
	}
	defer s.running.Store(false)
	defer s.setState(Idle)

	report := Report{ID: uuid.NewString(), Started: s.now()}

	plan, err := s.plan(ctx)
	if err != nil {
		return Report{}, err
	}
	report.Plan = plan

	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	s.setState(Deleting)
	s.execute(plan, &report)
	report.Finished = s.now()

	if n := report.AgeDeleted; n > 0 {
		s.sink.FilesDeletedAge(n)
	}
	if n := report.SizeDeleted; n > 0 {
		s.sink.FilesDeletedSize(n, report.SizeBytesFreed)
	}

	for _, r := range s.recorders {
		errutil.LogMsg(r.RecordPass(context.WithoutCancel(ctx), report), "Failed to record cleanup pass", "pass_id", report.ID)
	}
	s.last.Store(&report)

	return report, nil
}

// DryRun scans and decides like RunPass but deletes nothing.
func (s *Scheduler) DryRun(ctx context.Context) (Plan, error) {
	if !s.running.CompareAndSwap(false, true) {
		return Plan{}, ErrPassInProgress
	}
	defer s.running.Store(false)
	defer s.setState(Idle)

	return s.plan(ctx)
}

func (s *Scheduler) plan(ctx context.Context) (Plan, error) {
	if err := s.root.Check(); err != nil {
		if errors.Is(err, fsroot.ErrMissingRoot) {
			s.logger.Warn("Root directory missing, skipping cleanup pass", "root", s.root.Path())
		}
		return Plan{}, err
	}

	s.setState(Scanning)
	inventory, err := s.scanner.Recursive(ctx)
	if err != nil {
		return Plan{}, err
	}

	s.setState(Deciding)
	var extra []policy.Policy
	if s.cfg.MinFreeBytes > 0 {
		free, err := s.probe(s.root.Path())
		if err != nil {
			errutil.ReportError(err, "Failed to probe free space, ignoring min free space policy")
		} else {
			extra = append(extra, &minfree.Policy{MinFreeBytes: s.cfg.MinFreeBytes, FreeBytes: free})
		}
	}

	plan := Decide(inventory, s.cfg, s.now(), extra...)
	for _, err := range plan.PolicyErrors {
		errutil.ReportError(err, "Failed to check size policy")
	}
	return plan, nil
}

func (s *Scheduler) setState(st State) {
	s.state.Store(int32(st))
}
