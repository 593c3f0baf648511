// Package workbook builds a calculation graph from the formula cells of an
// .xlsx workbook.
package workbook

import (
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/dealmodel/dealmodel/pkg/calcgraph"
	"github.com/dealmodel/dealmodel/pkg/cellref"
)

// Options controls which parts of a workbook are extracted.
type Options struct {
	Sheets []string // empty means every sheet

	// SkipInputs leaves constant cells out of the graph. Cells referenced by
	// formulas still appear as external inputs.
	SkipInputs bool
}

// Result is an extracted workbook.
type Result struct {
	Graph    *calcgraph.Graph
	Sheets   []string
	Formulas int
	Inputs   int
	Duration time.Duration
}

// Extract opens the workbook at path and extracts its cells.
func Extract(path string, opts Options) (*Result, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close()
	return ExtractFile(f, opts)
}

// ExtractFile extracts an already opened workbook. Formula cells become
// graph nodes whose dependencies are parsed from the formula text; constant
// cells become input nodes holding their value.
func ExtractFile(f *excelize.File, opts Options) (*Result, error) {
	start := time.Now()

	sheets := f.GetSheetList()
	if len(opts.Sheets) > 0 {
		for _, s := range opts.Sheets {
			if !slices.Contains(sheets, s) {
				return nil, fmt.Errorf("sheet %q not found in workbook", s)
			}
		}
		sheets = opts.Sheets
	}

	res := &Result{Graph: calcgraph.New(), Sheets: sheets}
	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		for r, row := range rows {
			for c, raw := range row {
				if err := res.addCell(f, sheet, c+1, r+1, raw, opts); err != nil {
					return nil, err
				}
			}
		}
	}

	res.Duration = time.Since(start)
	slog.Debug("workbook extracted",
		"sheets", len(res.Sheets), "formulas", res.Formulas, "inputs", res.Inputs, "duration", res.Duration)
	return res, nil
}

func (res *Result) addCell(f *excelize.File, sheet string, col, row int, raw string, opts Options) error {
	ref, err := cellref.FromCoordinates(sheet, col, row)
	if err != nil {
		return err
	}

	formula, err := f.GetCellFormula(sheet, ref.Address)
	if err != nil {
		return fmt.Errorf("read formula %s: %w", ref.ID(), err)
	}
	if formula != "" {
		formula = "=" + formula
		res.Graph.AddCell(ref, formula, calcgraph.ParseFormulaDependencies(formula, sheet), nil)
		res.Formulas++
		return nil
	}

	if raw == "" || opts.SkipInputs {
		return nil
	}
	res.Graph.AddCell(ref, "", nil, nil)
	if err := res.Graph.SetValue(ref, parseValue(raw)); err != nil {
		return err
	}
	res.Inputs++
	return nil
}

// parseValue turns a displayed cell value into a number when it is one.
func parseValue(raw string) any {
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return v
	}
	return raw
}
