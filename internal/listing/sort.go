// Package listing orders scanned entries for display.
package listing

import (
	"cmp"
	"slices"
	"strings"

	"github.com/lynxoskar/fileServe200/internal/entry"
)

// Key is the attribute entries are ordered by.
type Key string

const (
	ByName Key = "name"
	BySize Key = "size"
	ByDate Key = "date"
)

// Order is the sort direction.
type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// ParseKey maps a user supplied key to a Key. Unknown values give ByName and
// false.
func ParseKey(s string) (Key, bool) {
	switch k := Key(strings.ToLower(strings.TrimSpace(s))); k {
	case ByName, BySize, ByDate:
		return k, true
	case "":
		return ByName, true
	default:
		return ByName, false
	}
}

// ParseOrder maps a user supplied direction to an Order, defaulting to Asc.
func ParseOrder(s string) Order {
	if Order(strings.ToLower(strings.TrimSpace(s))) == Desc {
		return Desc
	}
	return Asc
}

// Options is a parsed sort request.
type Options struct {
	Key   Key
	Order Order
}

// ParseOptions parses a key and direction. An unrecognised key falls back to
// name ascending, whatever direction was asked for.
func ParseOptions(key, order string) Options {
	k, ok := ParseKey(key)
	if !ok {
		return Options{Key: ByName, Order: Asc}
	}
	return Options{Key: k, Order: ParseOrder(order)}
}

// Sort returns a copy of entries with directories first, each group ordered by
// key in the given direction. Entries that compare equal keep their input order.
func Sort(entries []entry.Entry, key Key, order Order) []entry.Entry {
	out := slices.Clone(entries)
	if out == nil {
		out = []entry.Entry{}
	}
	k, ok := ParseKey(string(key))
	order = ParseOrder(string(order))
	if !ok {
		k, order = ByName, Asc
	}
	key = k

	byKey := compareFunc(key)
	slices.SortStableFunc(out, func(a, b entry.Entry) int {
		if a.IsDir() != b.IsDir() {
			if a.IsDir() {
				return -1
			}
			return 1
		}
		c := byKey(a, b)
		if order == Desc {
			c = -c
		}
		return c
	})
	return out
}

func compareFunc(key Key) func(a, b entry.Entry) int {
	switch key {
	case BySize:
		return func(a, b entry.Entry) int { return cmp.Compare(a.Size(), b.Size()) }
	case ByDate:
		return func(a, b entry.Entry) int { return a.ModTime().Compare(b.ModTime()) }
	default:
		return func(a, b entry.Entry) int {
			return strings.Compare(strings.ToLower(a.Name()), strings.ToLower(b.Name()))
		}
	}
}
