package retention

import (
	"errors"
	"math/rand"
	"path/filepath"
	"reflect"
	"strconv"
	"testing"
	"time"

	"github.com/lynxoskar/fileServe200/internal/entry"
	"github.com/lynxoskar/fileServe200/internal/retention/policy"
	"github.com/lynxoskar/fileServe200/internal/retention/policy/minfree"
)

const mb = int64(1) << 20

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func file(t *testing.T, name string, size int64, age time.Duration) entry.Entry {
	t.Helper()
	e, err := entry.New(name, filepath.Join("/srv", name), size, now.Add(-age), false)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func day(n int) time.Duration { return time.Duration(n) * 24 * time.Hour }

func planNames(cs []Candidate) []string {
	out := []string{}
	for _, c := range cs {
		out = append(out, c.Name())
	}
	return out
}

func TestDecideAgeScenario(t *testing.T) {
	inv := []entry.Entry{
		file(t, "A", 10*mb, day(40)),
		file(t, "B", 5*mb, day(5)),
	}
	plan := Decide(inv, Config{MaxAgeDays: 30, MaxSizeMB: 1000}, now)

	if got := planNames(plan.Deletions()); !reflect.DeepEqual(got, []string{"A"}) {
		t.Fatalf("deletions = %v, want [A]", got)
	}
	if len(plan.Size) != 0 {
		t.Errorf("size phase should not run, got %v", planNames(plan.Size))
	}
	if plan.RemainingBytes() != 5*mb {
		t.Errorf("remaining = %d, want %d", plan.RemainingBytes(), 5*mb)
	}
}

func TestDecideSizeScenario(t *testing.T) {
	// Five 300MB files, one day old, modified a minute apart: f0 is the oldest.
	var inv []entry.Entry
	for i := 0; i < 5; i++ {
		inv = append(inv, file(t, "f"+strconv.Itoa(i), 300*mb, day(1)+time.Duration(5-i)*time.Minute))
	}
	plan := Decide(inv, Config{MaxAgeDays: 30, MaxSizeMB: 1000}, now)

	if len(plan.Age) != 0 {
		t.Errorf("age phase selected %v", planNames(plan.Age))
	}
	if got := planNames(plan.Size); !reflect.DeepEqual(got, []string{"f0", "f1"}) {
		t.Fatalf("size deletions = %v, want [f0 f1]", got)
	}
	if plan.RemainingBytes() != 900*mb {
		t.Errorf("remaining = %d MB, want 900 MB", plan.RemainingBytes()/mb)
	}
	if plan.Overage != 500*mb {
		t.Errorf("overage = %d, want %d", plan.Overage, 500*mb)
	}
}

func TestDecideEmpty(t *testing.T) {
	plan := Decide(nil, Config{MaxAgeDays: 30, MaxSizeMB: 1000}, now)
	if len(plan.Deletions()) != 0 || plan.Scanned != 0 || plan.TotalBytes != 0 {
		t.Errorf("unexpected plan for empty inventory: %+v", plan)
	}
}

func TestDecideAgeBoundary(t *testing.T) {
	inv := []entry.Entry{
		file(t, "exact", 1, day(30)),
		file(t, "older", 1, day(30)+time.Second),
		file(t, "newer", 1, day(30)-time.Second),
	}
	plan := Decide(inv, Config{MaxAgeDays: 30}, now)
	if got := planNames(plan.Age); !reflect.DeepEqual(got, []string{"older"}) {
		t.Errorf("age phase = %v, want [older]", got)
	}
}

// Zero is "no limit": a zero config must never delete anything.
func TestDecideZeroDisablesPhases(t *testing.T) {
	inv := []entry.Entry{
		file(t, "ancient", 900*mb, day(3650)),
		file(t, "huge", 5000*mb, day(1)),
	}

	plan := Decide(inv, Config{}, now)
	if len(plan.Deletions()) != 0 {
		t.Fatalf("zero config deleted %v", planNames(plan.Deletions()))
	}

	plan = Decide(inv, Config{MaxAgeDays: 0, MaxSizeMB: 1000}, now)
	if len(plan.Age) != 0 {
		t.Errorf("disabled age phase selected %v", planNames(plan.Age))
	}

	plan = Decide(inv, Config{MaxAgeDays: 30, MaxSizeMB: 0}, now)
	if len(plan.Size) != 0 {
		t.Errorf("disabled size phase selected %v", planNames(plan.Size))
	}
	if got := planNames(plan.Age); !reflect.DeepEqual(got, []string{"ancient"}) {
		t.Errorf("age phase = %v, want [ancient]", got)
	}
}

func TestDecideSizeExcludesAgeSelection(t *testing.T) {
	inv := []entry.Entry{
		file(t, "old", 600*mb, day(60)),
		file(t, "mid", 400*mb, day(10)),
		file(t, "new", 400*mb, day(2)),
	}
	// Total 1400MB, but the age phase already removes 600MB: 800MB <= 1000MB.
	plan := Decide(inv, Config{MaxAgeDays: 30, MaxSizeMB: 1000}, now)
	if got := planNames(plan.Age); !reflect.DeepEqual(got, []string{"old"}) {
		t.Errorf("age = %v", got)
	}
	if len(plan.Size) != 0 {
		t.Errorf("size phase should see the remaining 800MB only, selected %v", planNames(plan.Size))
	}

	// With a tighter budget the size phase picks from the non-aged set only.
	plan = Decide(inv, Config{MaxAgeDays: 30, MaxSizeMB: 500}, now)
	if got := planNames(plan.Size); !reflect.DeepEqual(got, []string{"mid"}) {
		t.Errorf("size = %v, want [mid]", got)
	}
}

func TestDecideTiesKeepScanOrder(t *testing.T) {
	inv := []entry.Entry{
		file(t, "c", 10, day(1)),
		file(t, "a", 10, day(1)),
		file(t, "b", 10, day(1)),
	}
	plan := Decide(inv, Config{MaxSizeMB: 1}, now, &fixed{25})
	if got := planNames(plan.Size); !reflect.DeepEqual(got, []string{"c", "a", "b"}) {
		t.Errorf("size = %v, want scan order [c a b]", got)
	}
}

func TestDecideExtraPolicy(t *testing.T) {
	inv := []entry.Entry{
		file(t, "old", 100, day(40)),
		file(t, "x", 300, day(3)),
		file(t, "y", 300, day(2)),
	}

	// Disk needs 500 free, has 100; the age phase frees another 100.
	p := &minfree.Policy{MinFreeBytes: 500, FreeBytes: 100}
	plan := Decide(inv, Config{MaxAgeDays: 30}, now, p)

	if got := planNames(plan.Age); !reflect.DeepEqual(got, []string{"old"}) {
		t.Errorf("age = %v", got)
	}
	if plan.Overage != 300 {
		t.Errorf("overage = %d, want 300", plan.Overage)
	}
	if got := planNames(plan.Size); !reflect.DeepEqual(got, []string{"x"}) {
		t.Errorf("size = %v, want [x]", got)
	}
}

func TestDecideIgnoresDirectories(t *testing.T) {
	dir, err := entry.New("d", "/srv/d", 0, now.Add(-day(100)), true)
	if err != nil {
		t.Fatal(err)
	}
	plan := Decide([]entry.Entry{dir}, Config{MaxAgeDays: 1, MaxSizeMB: 1}, now)
	if len(plan.Deletions()) != 0 || plan.Scanned != 0 {
		t.Errorf("directory became a candidate: %+v", plan)
	}
}

func TestDecideProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for iter := 0; iter < 300; iter++ {
		n := rng.Intn(40)
		inv := make([]entry.Entry, 0, n)
		for i := 0; i < n; i++ {
			inv = append(inv, file(t,
				"f"+strconv.Itoa(i),
				int64(rng.Intn(200))*mb,
				time.Duration(rng.Intn(60*24))*time.Hour,
			))
		}
		cfg := Config{MaxAgeDays: rng.Intn(40), MaxSizeMB: int64(rng.Intn(3000))}

		plan := Decide(inv, cfg, now)
		again := Decide(inv, cfg, now)
		if !reflect.DeepEqual(plan, again) {
			t.Fatalf("Decide is not deterministic for %+v", cfg)
		}

		selected := map[string]Phase{}
		for _, c := range plan.Age {
			selected[c.Name()] = PhaseAge
		}
		for _, c := range plan.Size {
			if _, dup := selected[c.Name()]; dup {
				t.Fatalf("%s selected by both phases", c.Name())
			}
			selected[c.Name()] = PhaseSize
		}

		// Age phase: exactly the files strictly older than the limit.
		for _, e := range inv {
			old := cfg.MaxAgeDays > 0 && now.Sub(e.ModTime()) > cfg.MaxAge()
			if old != (selected[e.Name()] == PhaseAge) {
				t.Fatalf("age selection wrong for %s (age %v, limit %d days)", e.Name(), now.Sub(e.ModTime()), cfg.MaxAgeDays)
			}
		}

		if cfg.MaxSizeMB == 0 {
			if len(plan.Size) != 0 {
				t.Fatalf("size phase ran while disabled")
			}
			continue
		}

		budget := cfg.MaxSizeMB * mb
		if plan.RemainingBytes() > budget {
			t.Fatalf("remaining %d over budget %d", plan.RemainingBytes(), budget)
		}
		// Never more than needed: without the last size victim we would
		// still be over budget.
		if k := len(plan.Size); k > 0 {
			last := plan.Size[k-1]
			if plan.RemainingBytes()+last.Size() <= budget {
				t.Fatalf("size phase over-deleted: remaining %d + %d <= %d", plan.RemainingBytes(), last.Size(), budget)
			}
		}
		// Oldest first.
		for i := 1; i < len(plan.Size); i++ {
			if plan.Size[i].ModTime().Before(plan.Size[i-1].ModTime()) {
				t.Fatalf("size phase not oldest first")
			}
		}
	}
}

func TestDecidePolicyError(t *testing.T) {
	inv := []entry.Entry{
		file(t, "x", 300, day(3)),
		file(t, "y", 300, day(2)),
	}
	boom := errors.New("statfs failed")
	plan := Decide(inv, Config{}, now, &failing{boom}, &fixed{100})

	if len(plan.PolicyErrors) != 1 || !errors.Is(plan.PolicyErrors[0], boom) {
		t.Fatalf("policy errors = %v, want [%v]", plan.PolicyErrors, boom)
	}
	if plan.Overage != 100 {
		t.Errorf("overage = %d, want 100 from the working policy", plan.Overage)
	}
	if got := planNames(plan.Size); !reflect.DeepEqual(got, []string{"x"}) {
		t.Errorf("size = %v, want [x]", got)
	}
}

type failing struct{ err error }

func (f *failing) BytesToFree(policy.Usage) (int64, error) { return 0, f.err }

type fixed struct{ n int64 }

func (f *fixed) BytesToFree(policy.Usage) (int64, error) { return f.n, nil }

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"default", DefaultConfig(), false},
		{"zero", Config{}, false},
		{"negative age", Config{MaxAgeDays: -1}, true},
		{"negative size", Config{MaxSizeMB: -1}, true},
		{"negative interval", Config{CleanupIntervalHours: -1}, true},
		{"negative workers", Config{DeleteWorkers: -1}, true},
		{"cron", Config{Schedule: "0 3 * * *"}, false},
		{"every", Config{Schedule: "@every 6h"}, false},
		{"bad cron", Config{Schedule: "whenever"}, true},
		{"size at limit", Config{MaxSizeMB: MaxSizeMBLimit}, false},
		{"size overflows bytes", Config{MaxSizeMB: MaxSizeMBLimit + 1}, true},
		{"age overflows duration", Config{MaxAgeDays: MaxAgeDaysLimit + 1}, true},
		{"interval overflows duration", Config{CleanupIntervalHours: CleanupIntervalHoursLimit + 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
