package retention

import (
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Report describes one completed pass.
type Report struct {
	ID       string
	Started  time.Time
	Finished time.Time
	Plan     Plan

	AgeDeleted     int
	SizeDeleted    int
	AgeBytesFreed  int64
	SizeBytesFreed int64
	BytesFreed     int64

	// Failures lists the planned deletions that did not happen, sorted by path.
	Failures []Failure
}

// Failure is a planned deletion that could not be carried out.
type Failure struct {
	Path  string
	Phase Phase
	Err   error
}

// Deleted is the number of files removed by both phases.
func (r Report) Deleted() int { return r.AgeDeleted + r.SizeDeleted }

// Duration is the wall time of the pass.
func (r Report) Duration() time.Duration { return r.Finished.Sub(r.Started) }

// Failed returns the failure recorded for path, if any.
func (r Report) Failed(path string) (Failure, bool) {
	i, ok := slices.BinarySearchFunc(r.Failures, path, func(f Failure, p string) int {
		return strings.Compare(f.Path, p)
	})
	if !ok {
		return Failure{}, false
	}
	return r.Failures[i], true
}

// execute removes every file in plan with at most cfg.DeleteWorkers removals
// in flight. Failures are reported to the sink and never stop the batch.
func (s *Scheduler) execute(plan Plan, report *Report) {
	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	g.SetLimit(s.cfg.workers())

	run := func(c Candidate, phase Phase) {
		g.Go(func() error {
			err := s.remove(c.Path())

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failures = append(report.Failures, Failure{Path: c.Path(), Phase: phase, Err: err})
				s.sink.DeleteError(c.Path(), err)
				return nil
			}
			switch phase {
			case PhaseAge:
				report.AgeDeleted++
				report.AgeBytesFreed += c.Size()
			case PhaseSize:
				report.SizeDeleted++
				report.SizeBytesFreed += c.Size()
			}
			report.BytesFreed += c.Size()
			return nil
		})
	}

	for _, c := range plan.Age {
		run(c, PhaseAge)
	}
	for _, c := range plan.Size {
		run(c, PhaseSize)
	}
	_ = g.Wait()

	slices.SortFunc(report.Failures, func(a, b Failure) int {
		return strings.Compare(a.Path, b.Path)
	})
}
