// Package table holds the in-memory CSV tables every pipeline step reads and
// writes. Rows are keyed by header name so steps can add, overwrite and
// reorder columns without tracking positions.
package table

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Table is a header plus rows keyed by header name.
type Table struct {
	Headers []string
	Rows    []map[string]string
}

// New returns an empty table with the given header.
func New(headers []string) *Table {
	h := make([]string, len(headers))
	copy(h, headers)
	return &Table{Headers: h, Rows: make([]map[string]string, 0)}
}

// Load reads a CSV file from disk.
func Load(path string) (*Table, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	t, err := Read(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return t, nil
}

// Read parses CSV from r. A leading UTF-8 BOM is ignored, short rows are
// padded with empty values and extra fields are discarded.
func Read(r io.Reader) (*Table, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	b = bytes.TrimPrefix(b, utf8BOM)

	cr := csv.NewReader(bytes.NewReader(b))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	headers, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &InputFormatError{Reason: "missing header row"}
		}
		return nil, err
	}
	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
	}
	if dup := firstDuplicate(headers); dup != "" {
		return nil, &InputFormatError{Column: dup, Reason: "duplicate column"}
	}

	t := New(headers)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if isBlankRecord(rec) {
			continue
		}
		row := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(rec) {
				row[h] = normalizeField(rec[i])
			} else {
				row[h] = ""
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// Write saves the table to path, creating parent directories as needed.
func (t *Table) Write(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := t.Encode(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// Encode writes the header and rows as CSV with LF line endings and minimal
// quoting.
func (t *Table) Encode(w io.Writer) error {
	if err := writeRecord(w, t.Headers); err != nil {
		return err
	}
	rec := make([]string, len(t.Headers))
	for _, row := range t.Rows {
		for i, h := range t.Headers {
			rec[i] = row[h]
		}
		if err := writeRecord(w, rec); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// Has reports whether the header contains col.
func (t *Table) Has(col string) bool {
	return t.index(col) >= 0
}

// Require returns an InputFormatError naming the first missing column.
func (t *Table) Require(cols ...string) error {
	for _, c := range cols {
		if !t.Has(c) {
			return &InputFormatError{Column: c, Reason: "missing column"}
		}
	}
	return nil
}

// Missing returns the columns from cols that the header lacks.
func (t *Table) Missing(cols ...string) []string {
	var out []string
	for _, c := range cols {
		if !t.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// AddColumn appends col to the header if absent. Existing columns keep their
// position.
func (t *Table) AddColumn(col string) {
	if !t.Has(col) {
		t.Headers = append(t.Headers, col)
	}
}

// DropColumn removes col from the header and every row.
func (t *Table) DropColumn(col string) {
	i := t.index(col)
	if i < 0 {
		return
	}
	t.Headers = append(t.Headers[:i], t.Headers[i+1:]...)
	for _, row := range t.Rows {
		delete(row, col)
	}
}

// MoveToFront moves col to the first header position.
func (t *Table) MoveToFront(col string) {
	i := t.index(col)
	if i <= 0 {
		return
	}
	copy(t.Headers[1:i+1], t.Headers[:i])
	t.Headers[0] = col
}

// Column returns the values of col in row order.
func (t *Table) Column(col string) []string {
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[col]
	}
	return out
}

// Append adds a row. Keys outside the header are kept but never written.
func (t *Table) Append(row map[string]string) {
	t.Rows = append(t.Rows, row)
}

// AppendRecord adds a row from positional values matching the header.
func (t *Table) AppendRecord(rec []string) {
	row := make(map[string]string, len(t.Headers))
	for i, h := range t.Headers {
		if i < len(rec) {
			row[h] = rec[i]
		} else {
			row[h] = ""
		}
	}
	t.Rows = append(t.Rows, row)
}

func (t *Table) index(col string) int {
	for i, h := range t.Headers {
		if h == col {
			return i
		}
	}
	return -1
}

func firstDuplicate(headers []string) string {
	seen := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		if _, ok := seen[h]; ok {
			return h
		}
		seen[h] = struct{}{}
	}
	return ""
}

func isBlankRecord(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func normalizeField(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return s
}

func writeRecord(w io.Writer, rec []string) error {
	for i, field := range rec {
		if i > 0 {
			if _, err := io.WriteString(w, ","); err != nil {
				return err
			}
		}
		if needsQuote(field) {
			field = `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
		}
		if _, err := io.WriteString(w, field); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func needsQuote(s string) bool {
	return strings.ContainsAny(s, ",\"\n\r")
}
