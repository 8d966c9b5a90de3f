package pipeline

import (
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"datacleaner/internal"
)

const (
	xlsxSheetName   = "CleanData"
	xlsxMaxColWidth = 50
	xlsxColWidthPad = 2
)

// ExportXLSX writes the table to a single-sheet workbook with column
// widths fitted to the content (capped at 50).
func ExportXLSX(table internal.Table, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), xlsxSheetName); err != nil {
		return err
	}
	sw, err := f.NewStreamWriter(xlsxSheetName)
	if err != nil {
		return err
	}

	columns := table.Schema.Columns()
	for i, w := range columnWidths(table, 0) {
		width := w + xlsxColWidthPad
		if width > xlsxMaxColWidth {
			width = xlsxMaxColWidth
		}
		if err := sw.SetColWidth(i+1, i+1, float64(width)); err != nil {
			return err
		}
	}

	if len(columns) > 0 {
		if err := sw.SetRow("A1", toCells(columns)); err != nil {
			return err
		}
	}
	for i, rec := range table.Records {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := sw.SetRow(cell, toCells(rec.Values())); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func toCells(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
