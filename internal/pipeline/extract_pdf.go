package pipeline

import (
	"fmt"
	"io"
	"os"
	"strings"

	pdf "github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"datacleaner/internal"
)

// ScanOptions tune the scanned-page heuristic.
type ScanOptions struct {
	MinCharsPerPage int
	MinWordsPerPage int
	ScannedRatio    float64
}

func DefaultScanOptions() ScanOptions {
	return ScanOptions{MinCharsPerPage: 30, MinWordsPerPage: 3, ScannedRatio: 0.6}
}

func (o ScanOptions) withDefaults() ScanOptions {
	def := DefaultScanOptions()
	if o.MinCharsPerPage <= 0 {
		o.MinCharsPerPage = def.MinCharsPerPage
	}
	if o.MinWordsPerPage <= 0 {
		o.MinWordsPerPage = def.MinWordsPerPage
	}
	if o.ScannedRatio <= 0 {
		o.ScannedRatio = def.ScannedRatio
	}
	return o
}

// ScanReport says whether a PDF is mostly image pages with little extractable text.
type ScanReport struct {
	TotalPages   int
	ScannedPages int
	ScannedRatio float64
	IsScanned    bool
}

type scanCounter struct {
	opts    ScanOptions
	total   int
	scanned int
}

func (c *scanCounter) addPage(text string) {
	c.total++
	text = strings.TrimSpace(text)
	if len([]rune(text)) < c.opts.MinCharsPerPage && len(strings.Fields(text)) < c.opts.MinWordsPerPage {
		c.scanned++
	}
}

func (c *scanCounter) report() ScanReport {
	ratio := 1.0
	if c.total > 0 {
		ratio = float64(c.scanned) / float64(c.total)
	}
	return ScanReport{
		TotalPages:   c.total,
		ScannedPages: c.scanned,
		ScannedRatio: ratio,
		IsScanned:    ratio >= c.opts.ScannedRatio,
	}
}

// DetectScannedPDF reads every page of path and classifies the document.
func DetectScannedPDF(path string, opts ScanOptions) (ScanReport, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return ScanReport{}, err
	}
	defer f.Close()

	counter := &scanCounter{opts: opts.withDefaults()}
	for i := 1; i <= r.NumPage(); i++ {
		text, err := pageText(r, i)
		if err != nil {
			return ScanReport{}, err
		}
		counter.addPage(text)
	}
	return counter.report(), nil
}

// pdfSource yields one chunk per page that has at least one non-blank line.
type pdfSource struct {
	file    *os.File
	reader  *pdf.Reader
	schema  *internal.Schema
	page    int
	size    int
	pending []string
	scan    *scanCounter
	log     *zap.Logger
}

func openPDF(path string, opts SourceOptions) (*pdfSource, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	return &pdfSource{
		file:   f,
		reader: r,
		schema: internal.NewSchema([]string{textColumn}),
		size:   opts.chunkSize(),
		scan:   &scanCounter{opts: opts.Scan.withDefaults()},
		log:    opts.logger(),
	}, nil
}

func (s *pdfSource) Next() (internal.Chunk, error) {
	for len(s.pending) == 0 {
		if s.page >= s.reader.NumPage() {
			s.finish()
			return internal.Chunk{}, io.EOF
		}
		s.page++
		text, err := pageText(s.reader, s.page)
		if err != nil {
			return internal.Chunk{}, fmt.Errorf("pdf page %d: %w", s.page, err)
		}
		s.scan.addPage(text)
		s.pending = splitLines(text)
	}

	n := len(s.pending)
	if n > s.size {
		n = s.size
	}
	chunk := internal.Chunk{Schema: s.schema, Records: make([]internal.Record, 0, n)}
	for _, line := range s.pending[:n] {
		chunk.Records = append(chunk.Records, fitRow(s.schema, []string{line}))
	}
	s.pending = s.pending[n:]
	return chunk, nil
}

func (s *pdfSource) finish() {
	if s.scan == nil {
		return
	}
	report := s.scan.report()
	s.scan = nil
	if report.IsScanned {
		s.log.Warn("pdf looks scanned, extracted text may be incomplete",
			zap.Int("pages", report.TotalPages),
			zap.Int("scanned_pages", report.ScannedPages),
			zap.Float64("scanned_ratio", report.ScannedRatio))
	}
}

func (s *pdfSource) Close() error { return s.file.Close() }

// pageText extracts plain text from page i; empty pages yield "".
// ledongthuc/pdf panics on some malformed content streams.
func pageText(r *pdf.Reader, i int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("extract text: %v", rec)
		}
	}()
	p := r.Page(i)
	if p.V.IsNull() {
		return "", nil
	}
	return p.GetPlainText(nil)
}
