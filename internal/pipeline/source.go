package pipeline

import (
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"datacleaner/internal"
)

// ChunkSource yields the records of one input file in bounded chunks.
// Next returns io.EOF once the source is exhausted.
type ChunkSource interface {
	Next() (internal.Chunk, error)
	Close() error
}

// SkipReporter is implemented by sources that drop malformed input rows.
type SkipReporter interface {
	Skipped() int
}

type SourceOptions struct {
	ChunkSize int
	Scan      ScanOptions
	Log       *zap.Logger
}

func (o SourceOptions) chunkSize() int {
	if o.ChunkSize <= 0 {
		return 50000
	}
	return o.ChunkSize
}

func (o SourceOptions) logger() *zap.Logger {
	if o.Log == nil {
		return zap.NewNop()
	}
	return o.Log
}

// OpenSource opens path as a chunk source of the given kind.
func OpenSource(path string, kind InputKind, opts SourceOptions) (ChunkSource, error) {
	switch kind {
	case KindDelimited:
		return openDelimited(path, opts)
	case KindPDFText:
		return openPDF(path, opts)
	case KindJSON, KindJSONLines:
		return openJSON(path, kind, opts)
	case KindSpreadsheet:
		return openSpreadsheet(path, opts)
	case KindHTMLTable:
		return openHTML(path, opts)
	case KindEmail:
		return openEmail(path, opts)
	default:
		return nil, fmt.Errorf("unsupported input kind: %s", kind)
	}
}

// fitRow pads short rows with "" to the schema width. Callers drop rows
// wider than the schema first, so values always matches it and
// NewRecord cannot fail.
func fitRow(schema *internal.Schema, cells []string) internal.Record {
	values := make([]string, schema.Len())
	copy(values, cells)
	rec, _ := internal.NewRecord(schema, values)
	return rec
}

// sliceSource serves rows that were already materialized by a parser
// (HTML and e-mail documents are parsed whole). Rows wider than the
// header are skipped and counted, like malformed delimited lines.
type sliceSource struct {
	schema  *internal.Schema
	rows    [][]string
	size    int
	pos     int
	skipped int
}

func newSliceSource(header []string, rows [][]string, size int) *sliceSource {
	return &sliceSource{schema: internal.NewSchema(header), rows: rows, size: size}
}

func (s *sliceSource) Next() (internal.Chunk, error) {
	chunk := internal.Chunk{Schema: s.schema}
	for s.pos < len(s.rows) && len(chunk.Records) < s.size {
		row := s.rows[s.pos]
		s.pos++
		if len(row) > s.schema.Len() {
			s.skipped++
			continue
		}
		chunk.Records = append(chunk.Records, fitRow(s.schema, row))
	}
	if len(chunk.Records) == 0 {
		return internal.Chunk{}, io.EOF
	}
	return chunk, nil
}

func (s *sliceSource) Skipped() int { return s.skipped }

func (s *sliceSource) Close() error { return nil }

// textLinesSource puts every non-blank line into a single "Text" column.
func textLinesSource(text string, size int) *sliceSource {
	lines := splitLines(text)
	rows := make([][]string, 0, len(lines))
	for _, line := range lines {
		rows = append(rows, []string{line})
	}
	return newSliceSource([]string{textColumn}, rows, size)
}

const textColumn = "Text"

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}
