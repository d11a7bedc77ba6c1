package table

import (
	"sort"
	"strconv"
	"strings"
)

// Compare orders two cell values. Numbers sort numerically and before text,
// text sorts lexically, and blanks sort last.
func Compare(a, b string) int {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	switch {
	case a == b:
		return 0
	case a == "":
		return 1
	case b == "":
		return -1
	}

	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	switch {
	case errA == nil && errB == nil:
		if fa < fb {
			return -1
		}
		if fa > fb {
			return 1
		}
		return strings.Compare(a, b)
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	}
	return strings.Compare(a, b)
}

// SortBy stably sorts rows ascending by the given key columns.
func (t *Table) SortBy(keys ...string) error {
	if err := t.Require(keys...); err != nil {
		return err
	}
	sort.SliceStable(t.Rows, func(i, j int) bool {
		return compareRows(t.Rows[i], t.Rows[j], keys) < 0
	})
	return nil
}

func compareRows(a, b map[string]string, keys []string) int {
	for _, k := range keys {
		if c := Compare(a[k], b[k]); c != 0 {
			return c
		}
	}
	return 0
}
