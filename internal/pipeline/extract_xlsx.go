package pipeline

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"datacleaner/internal"
)

// spreadsheetSource streams the first sheet of a workbook. The first
// non-empty row is the header; blank rows are skipped.
type spreadsheetSource struct {
	file    *excelize.File
	rows    *excelize.Rows
	sheet   string
	schema  *internal.Schema
	size    int
	rowNo   int
	skipped int
	log     *zap.Logger
}

func openSpreadsheet(path string, opts SourceOptions) (*spreadsheetSource, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		_ = f.Close()
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.Rows(sheets[0])
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}

	s := &spreadsheetSource{file: f, rows: rows, sheet: sheets[0], size: opts.chunkSize(), log: opts.logger()}
	if len(sheets) > 1 {
		s.log.Info("workbook has several sheets, reading the first", zap.String("sheet", sheets[0]), zap.Int("sheets", len(sheets)))
	}
	header, err := s.nextRow()
	if err != nil && err != io.EOF {
		_ = s.Close()
		return nil, err
	}
	s.schema = internal.NewSchema(header)
	return s, nil
}

// nextRow returns the next row with at least one non-blank cell.
func (s *spreadsheetSource) nextRow() ([]string, error) {
	for s.rows.Next() {
		s.rowNo++
		cells, err := s.rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("sheet %q row %d: %w", s.sheet, s.rowNo, err)
		}
		if isBlankRow(cells) {
			continue
		}
		return cells, nil
	}
	if err := s.rows.Error(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (s *spreadsheetSource) Next() (internal.Chunk, error) {
	if s.schema.Len() == 0 {
		return internal.Chunk{}, io.EOF
	}
	chunk := internal.Chunk{Schema: s.schema}
	for len(chunk.Records) < s.size {
		cells, err := s.nextRow()
		if err == io.EOF {
			break
		}
		if err != nil {
			return internal.Chunk{}, err
		}
		cells = trimTrailingBlank(cells)
		if len(cells) > s.schema.Len() {
			s.skipped++
			s.log.Debug("skipping row wider than header", zap.String("sheet", s.sheet), zap.Int("row", s.rowNo))
			continue
		}
		chunk.Records = append(chunk.Records, fitRow(s.schema, cells))
	}
	if len(chunk.Records) == 0 {
		return internal.Chunk{}, io.EOF
	}
	return chunk, nil
}

func (s *spreadsheetSource) Skipped() int { return s.skipped }

func (s *spreadsheetSource) Close() error {
	_ = s.rows.Close()
	return s.file.Close()
}

func isBlankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func trimTrailingBlank(cells []string) []string {
	n := len(cells)
	for n > 0 && strings.TrimSpace(cells[n-1]) == "" {
		n--
	}
	return cells[:n]
}
