package pipeline

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-pdf/fpdf"
	"go.uber.org/zap"

	"datacleaner/internal"
)

const (
	pdfFontSize     = 6
	pdfCellHeight   = 4
	pdfUnicodeFont  = "DejaVu"
	pdfFallbackFont = "Arial"
)

var pdfSafeReplacer = strings.NewReplacer(
	"\u2022", "-",
	"\u2013", "-",
	"\u2014", "-",
	"\u2018", "'",
	"\u2019", "'",
	"\u201c", `"`,
	"\u201d", `"`,
	"\u00a0", " ",
)

// PDFSink renders the table as a bordered grid on A4 pages with equal
// column widths. FontPath points at a TTF with Unicode coverage; without
// it the built-in Arial is used and non-Latin text may be lost.
type PDFSink struct {
	FontPath string
	Log      *zap.Logger
}

func (s *PDFSink) Write(table internal.Table, outputPath string) error {
	log := s.Log
	if log == nil {
		log = zap.NewNop()
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	translate := func(s string) string { return s }
	if s.FontPath != "" && fileExists(s.FontPath) {
		pdf.AddUTF8Font(pdfUnicodeFont, "", s.FontPath)
		pdf.SetFont(pdfUnicodeFont, "", pdfFontSize)
		log.Info("pdf font", zap.String("font", pdfUnicodeFont), zap.String("path", s.FontPath))
	} else {
		pdf.SetFont(pdfFallbackFont, "", pdfFontSize)
		translate = pdf.UnicodeTranslatorFromDescriptor("")
		log.Warn("pdf font fallback: Arial (font not found), unicode may be lost", zap.String("font_path", s.FontPath))
	}
	text := func(v string) string { return translate(pdfSafeReplacer.Replace(v)) }

	columns := table.Schema.Columns()
	pageW, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	colW := (pageW - left - right) / float64(max(len(columns), 1))

	for _, c := range columns {
		pdf.CellFormat(colW, pdfCellHeight, text(c), "1", 0, "C", false, 0, "")
	}
	pdf.Ln(pdfCellHeight)
	for _, rec := range table.Records {
		for _, v := range rec.Values() {
			pdf.CellFormat(colW, pdfCellHeight, text(v), "1", 0, "", false, 0, "")
		}
		pdf.Ln(pdfCellHeight)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return pdf.OutputFileAndClose(outputPath)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
