package parser

import "fmt"

// CellError reports a table cell missing its expected sub-structure.
// It is recovered during extraction: the field resolves to the Unknown
// marker and the row is retained.
type CellError struct {
	Reason string
}

func (e *CellError) Error() string {
	return "cell: " + e.Reason
}

// UnknownSuffixError reports a currency suffix with no known multiplier.
// It is always surfaced; guessing a multiplier would silently corrupt fees.
type UnknownSuffixError struct {
	Suffix string
	Input  string
}

func (e *UnknownSuffixError) Error() string {
	return fmt.Sprintf("unknown currency suffix %q in %q", e.Suffix, e.Input)
}

// SchemaMismatchError reports a window page whose club headings and data
// tables cannot be paired one in-table and one out-table per club. The
// window cannot be reconciled and the run must not produce output.
type SchemaMismatchError struct {
	Clubs      []string
	TableCount int
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("cannot pair %d tables with %d clubs %v", e.TableCount, len(e.Clubs), e.Clubs)
}

// CoercionError reports a numeric field that is still non-numeric after all
// upstream parsing. The pipeline decides whether to drop the row or abort.
type CoercionError struct {
	Field  string
	Value  string
	Player string
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("%s %q for player %q is not numeric", e.Field, e.Value, e.Player)
}
