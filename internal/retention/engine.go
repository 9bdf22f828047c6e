package retention

import (
	"slices"
	"time"

	"github.com/lynxoskar/fileServe200/internal/entry"
	"github.com/lynxoskar/fileServe200/internal/retention/policy"
	"github.com/lynxoskar/fileServe200/internal/retention/policy/maxsize"
)

// Phase names the step of a pass that selected a file.
type Phase string

const (
	PhaseAge  Phase = "age"
	PhaseSize Phase = "size"
)

// Candidate is a file considered during one pass, with its age measured
// against the pass's single "now".
type Candidate struct {
	entry.Entry
	Age time.Duration
}

// NewCandidates wraps the files in entries. Directories are dropped, they are
// never deleted.
func NewCandidates(entries []entry.Entry, now time.Time) []Candidate {
	out := make([]Candidate, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		out = append(out, Candidate{Entry: e, Age: now.Sub(e.ModTime())})
	}
	return out
}

// Plan is the outcome of Decide: what to delete and why.
type Plan struct {
	Now        time.Time
	Scanned    int
	TotalBytes int64

	// Age holds files older than the age limit, in scan order.
	Age []Candidate
	// Size holds files evicted for the size budget, oldest first.
	Size []Candidate

	// Overage is the number of bytes the size phase had to free.
	Overage int64

	// PolicyErrors holds the errors of size policies that could not be
	// evaluated. Those policies are left out of the overage.
	PolicyErrors []error
}

// Deletions returns every selected file, age phase first.
func (p Plan) Deletions() []Candidate {
	out := make([]Candidate, 0, len(p.Age)+len(p.Size))
	out = append(out, p.Age...)
	return append(out, p.Size...)
}

// AgeBytes is the total size of the age phase selection.
func (p Plan) AgeBytes() int64 { return sumSize(p.Age) }

// SizeBytes is the total size of the size phase selection.
func (p Plan) SizeBytes() int64 { return sumSize(p.Size) }

// RemainingBytes is the size of the inventory once the plan is carried out.
func (p Plan) RemainingBytes() int64 {
	return p.TotalBytes - p.AgeBytes() - p.SizeBytes()
}

// Decide works out which files a pass deletes. It only looks at its
// arguments: the same inventory, config, now and policies always give the
// same plan.
//
// The age phase selects every file strictly older than cfg.MaxAge. The size
// phase then looks at what is left. If any size policy (the cfg.MaxSizeMB
// budget plus extra) reports an overage, the oldest remaining files are
// selected until their sizes add up to at least the largest overage.
func Decide(inventory []entry.Entry, cfg Config, now time.Time, extra ...policy.Policy) Plan {
	candidates := NewCandidates(inventory, now)
	plan := Plan{
		Now:        now,
		Scanned:    len(candidates),
		TotalBytes: sumSize(candidates),
		Age:        []Candidate{},
		Size:       []Candidate{},
	}

	rest := candidates
	if maxAge := cfg.MaxAge(); maxAge > 0 {
		rest = make([]Candidate, 0, len(candidates))
		for _, c := range candidates {
			if c.Age > maxAge {
				plan.Age = append(plan.Age, c)
			} else {
				rest = append(rest, c)
			}
		}
	}

	policies := extra
	if cfg.MaxSizeMB > 0 {
		policies = append([]policy.Policy{maxsize.FromMB(cfg.MaxSizeMB)}, extra...)
	}
	if len(policies) == 0 {
		return plan
	}

	usage := policy.Usage{Remaining: sumSize(rest), Freed: plan.AgeBytes()}
	for _, p := range policies {
		toFree, err := p.BytesToFree(usage)
		if err != nil {
			plan.PolicyErrors = append(plan.PolicyErrors, err)
			continue
		}
		if toFree > plan.Overage {
			plan.Overage = toFree
		}
	}
	if plan.Overage <= 0 {
		return plan
	}

	oldest := slices.Clone(rest)
	slices.SortStableFunc(oldest, func(a, b Candidate) int {
		return a.ModTime().Compare(b.ModTime())
	})

	var removed int64
	for _, c := range oldest {
		if removed >= plan.Overage {
			break
		}
		plan.Size = append(plan.Size, c)
		removed += c.Size()
	}

	return plan
}

func sumSize(cs []Candidate) int64 {
	var total int64
	for _, c := range cs {
		total += c.Size()
	}
	return total
}
