package maxsize

import (
	"math"

	"github.com/lynxoskar/fileServe200/internal/retention/policy"
)

// Policy triggers the size phase when the directory exceeds a fixed size.
// A MaxBytes of zero or less never triggers.
type Policy struct {
	MaxBytes int64
}

// FromMB builds a Policy from a budget in megabytes (2^20 bytes). Budgets too
// large to express in bytes are capped at math.MaxInt64.
func FromMB(mb int64) *Policy {
	if mb > math.MaxInt64>>20 {
		return &Policy{MaxBytes: math.MaxInt64}
	}
	return &Policy{MaxBytes: mb << 20}
}

func (m *Policy) BytesToFree(usage policy.Usage) (int64, error) {
	if m.MaxBytes <= 0 {
		return 0, nil
	}
	if usage.Remaining > m.MaxBytes {
		return usage.Remaining - m.MaxBytes, nil
	}
	return 0, nil
}
