package maxsize

import (
	"math"
	"testing"

	"github.com/lynxoskar/fileServe200/internal/retention/policy"
)

func TestPolicy(t *testing.T) {
	tests := []struct {
		name      string
		max       int64
		remaining int64
		want      int64
	}{
		{"under budget", 100, 50, 0},
		{"at budget", 100, 100, 0},
		{"over budget", 100, 130, 30},
		{"disabled", 0, 1 << 40, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Policy{MaxBytes: tt.max}
			got, err := p.BytesToFree(policy.Usage{Remaining: tt.remaining})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("BytesToFree = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFromMB(t *testing.T) {
	if got := FromMB(1000).MaxBytes; got != 1000*1024*1024 {
		t.Errorf("FromMB(1000) = %d", got)
	}
	if got := FromMB(1 << 44).MaxBytes; got != math.MaxInt64 {
		t.Errorf("FromMB(1<<44) = %d, want the budget capped at MaxInt64", got)
	}
}
