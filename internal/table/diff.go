package table

import (
	"fmt"
	"strconv"
	"strings"
)

// DiffResult counts what Diff kept.
type DiffResult struct {
	Shared    []string
	LeftOnly  int
	RightOnly int
	Matched   int
}

// Summary returns a human-readable summary of the diff.
func (r *DiffResult) Summary() string {
	return fmt.Sprintf("shared_columns=%d left_only=%d right_only=%d matched=%d",
		len(r.Shared), r.LeftOnly, r.RightOnly, r.Matched)
}

// Diff returns the rows that appear in exactly one of left and right, matched
// on every column the two headers share. Cells that parse as numbers match by
// value. Output columns are left's header followed by right-only columns; rows
// are ordered by the shared columns.
func Diff(left, right *Table) (*Table, *DiffResult, error) {
	var shared []string
	for _, h := range left.Headers {
		if right.Has(h) {
			shared = append(shared, h)
		}
	}
	if len(shared) == 0 {
		return nil, nil, &InputFormatError{Reason: "tables share no columns"}
	}

	headers := append([]string(nil), left.Headers...)
	for _, h := range right.Headers {
		if !left.Has(h) {
			headers = append(headers, h)
		}
	}

	leftKeys := keySet(left, shared)
	rightKeys := keySet(right, shared)

	out := New(headers)
	res := &DiffResult{Shared: shared}
	for _, row := range left.Rows {
		if _, ok := rightKeys[rowKey(row, shared)]; ok {
			res.Matched++
			continue
		}
		out.Append(project(row, headers))
		res.LeftOnly++
	}
	for _, row := range right.Rows {
		if _, ok := leftKeys[rowKey(row, shared)]; ok {
			continue
		}
		out.Append(project(row, headers))
		res.RightOnly++
	}

	if err := out.SortBy(shared...); err != nil {
		return nil, nil, err
	}
	return out, res, nil
}

func keySet(t *Table, cols []string) map[string]struct{} {
	set := make(map[string]struct{}, len(t.Rows))
	for _, row := range t.Rows {
		set[rowKey(row, cols)] = struct{}{}
	}
	return set
}

func rowKey(row map[string]string, cols []string) string {
	var b strings.Builder
	for i, c := range cols {
		if i > 0 {
			b.WriteByte(0x1f)
		}
		b.WriteString(keyValue(row[c]))
	}
	return b.String()
}

// keyValue spells numbers canonically so 100 and 100.0 match.
func keyValue(s string) string {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return s
}

func project(row map[string]string, headers []string) map[string]string {
	out := make(map[string]string, len(headers))
	for _, h := range headers {
		out[h] = row[h]
	}
	return out
}
