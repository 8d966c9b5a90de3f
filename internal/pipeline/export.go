package pipeline

import (
	"bufio"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"datacleaner/internal"
)

// Sink encodes a finished table into one output file.
type Sink interface {
	Write(table internal.Table, path string) error
}

type SinkFunc func(table internal.Table, path string) error

func (f SinkFunc) Write(table internal.Table, path string) error { return f(table, path) }

// DefaultSinks wires one sink per output format.
func DefaultSinks(pdfFontPath string, log *zap.Logger) map[Format]Sink {
	if log == nil {
		log = zap.NewNop()
	}
	return map[Format]Sink{
		FormatCSV:     SinkFunc(ExportCSV),
		FormatSafeCSV: SinkFunc(ExportSafeCSV),
		FormatExcel:   SinkFunc(ExportXLSX),
		FormatTXT:     SinkFunc(ExportTXT),
		FormatPDF:     &PDFSink{FontPath: pdfFontPath, Log: log},
		FormatJSON:    &JSONSink{Log: log},
		FormatJSONL:   &JSONSink{Lines: true, Log: log},
	}
}

// ExportCSV writes a ';'-separated UTF-8 file with a header row.
func ExportCSV(table internal.Table, outputPath string) error {
	return writeFile(outputPath, func(w *bufio.Writer) error {
		if table.Schema.Len() == 0 {
			return nil
		}
		cw := csv.NewWriter(w)
		cw.Comma = ';'
		if err := cw.Write(table.Schema.Columns()); err != nil {
			return err
		}
		for _, rec := range table.Records {
			if err := cw.Write(rec.Values()); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

// ExportSafeCSV writes the human-readable fixed-width rendering.
func ExportSafeCSV(table internal.Table, outputPath string) error {
	return writeFixedWidth(table, outputPath, nil)
}

// ExportTXT writes the fixed-width rendering with values reduced to
// letters, numbers, '_', whitespace, '.', '-' and '@'.
func ExportTXT(table internal.Table, outputPath string) error {
	return writeFixedWidth(table, outputPath, sanitizeTXT)
}

func writeFixedWidth(table internal.Table, outputPath string, clean func(string) string) error {
	columns := table.Schema.Columns()
	widths := columnWidths(table, 4)
	return writeFile(outputPath, func(w *bufio.Writer) error {
		if len(columns) == 0 {
			return nil
		}
		var header strings.Builder
		for i, c := range columns {
			header.WriteString(padRight(c, widths[i]))
		}
		w.WriteString(header.String() + "\n")
		w.WriteString(strings.Repeat("=", utf8.RuneCountInString(header.String())) + "\n")
		for _, rec := range table.Records {
			var line strings.Builder
			for i, v := range rec.Values() {
				if clean != nil {
					v = clean(v)
				}
				line.WriteString(padRight(v, widths[i]))
			}
			w.WriteString(line.String() + "\n")
		}
		return nil
	})
}

// columnWidths returns max(rune length of values and header) + pad per column.
func columnWidths(table internal.Table, pad int) []int {
	columns := table.Schema.Columns()
	widths := make([]int, len(columns))
	for i, c := range columns {
		widths[i] = utf8.RuneCountInString(c)
	}
	for _, rec := range table.Records {
		for i, v := range rec.Values() {
			if n := utf8.RuneCountInString(v); n > widths[i] {
				widths[i] = n
			}
		}
	}
	for i := range widths {
		widths[i] += pad
	}
	return widths
}

func padRight(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}

func sanitizeTXT(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsSpace(r) {
			return r
		}
		switch r {
		case '_', '.', '-', '@':
			return r
		}
		return -1
	}, s)
}

func writeFile(outputPath string, fn func(w *bufio.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := fn(w); err != nil {
		_ = f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
