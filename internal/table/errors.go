package table

import "fmt"

// InputFormatError reports a missing or malformed column or field.
// Line is the 1-based data row (header excluded); zero means the problem is
// in the header itself.
type InputFormatError struct {
	Line   int
	Column string
	Value  string
	Reason string
}

func (e *InputFormatError) Error() string {
	switch {
	case e.Line == 0 && e.Column == "":
		return "input format: " + e.Reason
	case e.Line == 0:
		return fmt.Sprintf("input format: column %q: %s", e.Column, e.Reason)
	case e.Value == "":
		return fmt.Sprintf("input format: row %d column %q: %s", e.Line, e.Column, e.Reason)
	default:
		return fmt.Sprintf("input format: row %d column %q: %s (%q)", e.Line, e.Column, e.Reason, e.Value)
	}
}

// JoinMismatchError reports a seat record whose game has no row in the
// game-attributes table.
type JoinMismatchError struct {
	Line int
	Game string
}

func (e *JoinMismatchError) Error() string {
	return fmt.Sprintf("join mismatch: row %d game %q not found in game attributes", e.Line, e.Game)
}

// EmptyInputError reports an input with a header but no data rows. Callers
// still write a header-only output.
type EmptyInputError struct {
	Source string
}

func (e *EmptyInputError) Error() string {
	if e.Source == "" {
		return "empty input: no records"
	}
	return fmt.Sprintf("empty input: %s has no records", e.Source)
}
