package table

import (
	"fmt"
	"strings"
)

// UpdateResult tracks what UpdateColumns changed.
type UpdateResult struct {
	Updated        int
	Unmatched      int
	Columns        []string
	MissingColumns []string
}

// Summary returns a human-readable summary of the update.
func (r *UpdateResult) Summary() string {
	return fmt.Sprintf("updated=%d unmatched=%d columns=%d missing_columns=%d",
		r.Updated, r.Unmatched, len(r.Columns), len(r.MissingColumns))
}

// UpdateColumns copies cols from src onto the dst rows whose key matches
// exactly. Columns absent from src are reported and skipped; columns absent
// from dst are appended. The key column is moved to the front of dst. When
// src repeats a key the last row wins.
func UpdateColumns(dst, src *Table, key string, cols []string) (*UpdateResult, error) {
	if err := dst.Require(key); err != nil {
		return nil, err
	}
	if err := src.Require(key); err != nil {
		return nil, err
	}

	res := &UpdateResult{}
	for _, c := range cols {
		if c == key {
			continue
		}
		if src.Has(c) {
			res.Columns = append(res.Columns, c)
		} else {
			res.MissingColumns = append(res.MissingColumns, c)
		}
	}

	index := make(map[string]map[string]string, len(src.Rows))
	for _, row := range src.Rows {
		index[strings.TrimSpace(row[key])] = row
	}

	for _, c := range res.Columns {
		dst.AddColumn(c)
	}
	for _, row := range dst.Rows {
		from, ok := index[strings.TrimSpace(row[key])]
		if !ok {
			res.Unmatched++
			continue
		}
		for _, c := range res.Columns {
			row[c] = from[c]
		}
		res.Updated++
	}
	dst.MoveToFront(key)
	return res, nil
}
