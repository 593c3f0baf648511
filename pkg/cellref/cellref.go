// Package cellref parses and represents A1-style cell addresses.
// A Reference is the shared vocabulary between the calculation graph,
// workbook import and formula dependency extraction.
package cellref

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// DefaultSheet is used when a reference is parsed without a sheet name.
const DefaultSheet = "Sheet1"

// Reference is an immutable cell address. Address is normalized to
// uppercase with absolute anchors ($) removed.
type Reference struct {
	Sheet   string `json:"sheet" yaml:"sheet"`
	Address string `json:"address" yaml:"address"`
	Row     int    `json:"row" yaml:"row"`       // 1-based
	Column  int    `json:"column" yaml:"column"` // 1-based, A=1
}

// Parse builds a Reference from a sheet name and an A1 address such as
// "b7" or "$C$10".
func Parse(sheet, address string) (Reference, error) {
	addr := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(address), "$", ""))
	if addr == "" {
		return Reference{}, fmt.Errorf("parse cell: empty address")
	}
	col, row, err := excelize.CellNameToCoordinates(addr)
	if err != nil {
		return Reference{}, fmt.Errorf("parse cell %q: %w", address, err)
	}
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return Reference{}, fmt.Errorf("parse cell %q: %w", address, err)
	}
	sheet = strings.TrimSpace(sheet)
	if sheet == "" {
		sheet = DefaultSheet
	}
	return Reference{Sheet: sheet, Address: name, Row: row, Column: col}, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// static tables.
func MustParse(sheet, address string) Reference {
	ref, err := Parse(sheet, address)
	if err != nil {
		panic(err)
	}
	return ref
}

// ParseQualified parses "Sheet!A1" or "'My Sheet'!A1". Unqualified
// addresses resolve against defaultSheet.
func ParseQualified(ref, defaultSheet string) (Reference, error) {
	ref = strings.TrimSpace(ref)
	if i := strings.LastIndex(ref, "!"); i >= 0 {
		return Parse(UnquoteSheet(ref[:i]), ref[i+1:])
	}
	return Parse(defaultSheet, ref)
}

// FromCoordinates builds a Reference from 1-based column and row numbers.
func FromCoordinates(sheet string, column, row int) (Reference, error) {
	name, err := excelize.CoordinatesToCellName(column, row)
	if err != nil {
		return Reference{}, fmt.Errorf("cell from coordinates (%d, %d): %w", column, row, err)
	}
	return Parse(sheet, name)
}

// ID returns the graph key "Sheet!A1".
func (r Reference) ID() string {
	return r.Sheet + "!" + r.Address
}

func (r Reference) String() string {
	return r.ID()
}

// ColumnName returns the column letters of the reference ("AB" for 28).
func (r Reference) ColumnName() string {
	name, err := excelize.ColumnNumberToName(r.Column)
	if err != nil {
		return ""
	}
	return name
}

// IsZero reports whether r is the zero Reference.
func (r Reference) IsZero() bool {
	return r == Reference{}
}

// UnquoteSheet strips the single quotes Excel puts around sheet names that
// contain spaces or punctuation, undoing '' escapes.
func UnquoteSheet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		s = strings.ReplaceAll(s[1:len(s)-1], "''", "'")
	}
	return s
}
