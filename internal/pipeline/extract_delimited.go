package pipeline

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"datacleaner/internal"
)

const (
	sniffSampleBytes = 64 * 1024
	sniffSampleLines = 20
)

var sniffCandidates = []rune{',', ';', '\t', '|'}

type delimitedSource struct {
	file    *os.File
	reader  *csv.Reader
	schema  *internal.Schema
	size    int
	skipped int
	done    bool
	log     *zap.Logger
}

func openDelimited(path string, opts SourceOptions) (*delimitedSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	br := bufio.NewReaderSize(f, sniffSampleBytes)
	sample, err := br.Peek(sniffSampleBytes)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		_ = f.Close()
		return nil, err
	}
	comma := sniffDelimiter(string(sample), len(sample) == sniffSampleBytes)

	cr := csv.NewReader(br)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	s := &delimitedSource{file: f, reader: cr, size: opts.chunkSize(), log: opts.logger()}
	s.log.Debug("delimiter detected", zap.String("delimiter", string(comma)))
	if err := s.readHeader(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return s, nil
}

func (s *delimitedSource) readHeader() error {
	for {
		rec, err := s.reader.Read()
		if errors.Is(err, io.EOF) {
			s.done = true
			s.schema = internal.NewSchema(nil)
			return nil
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			s.skipBadLine(perr.StartLine, perr.Err.Error())
			continue
		}
		if err != nil {
			return fmt.Errorf("read header: %w", err)
		}
		header := make([]string, len(rec))
		copy(header, rec)
		if len(header) > 0 {
			header[0] = strings.TrimPrefix(header[0], "\uFEFF")
		}
		s.schema = internal.NewSchema(header)
		return nil
	}
}

func (s *delimitedSource) Next() (internal.Chunk, error) {
	if s.done {
		return internal.Chunk{}, io.EOF
	}
	chunk := internal.Chunk{Schema: s.schema}
	for len(chunk.Records) < s.size {
		rec, err := s.reader.Read()
		if errors.Is(err, io.EOF) {
			s.done = true
			break
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			s.skipBadLine(perr.StartLine, perr.Err.Error())
			continue
		}
		if err != nil {
			return internal.Chunk{}, fmt.Errorf("read delimited: %w", err)
		}
		if len(rec) > s.schema.Len() {
			line, _ := s.reader.FieldPos(0)
			s.skipBadLine(line, fmt.Sprintf("expected %d fields, saw %d", s.schema.Len(), len(rec)))
			continue
		}
		chunk.Records = append(chunk.Records, fitRow(s.schema, rec))
	}
	if len(chunk.Records) == 0 {
		return internal.Chunk{}, io.EOF
	}
	return chunk, nil
}

func (s *delimitedSource) skipBadLine(line int, reason string) {
	s.skipped++
	s.log.Debug("skipping malformed line", zap.Int("line", line), zap.String("reason", reason))
}

func (s *delimitedSource) Skipped() int { return s.skipped }

func (s *delimitedSource) Close() error { return s.file.Close() }

// sniffDelimiter picks the candidate whose per-line count is most consistent
// across the sample, preferring higher counts; ',' when nothing matches.
func sniffDelimiter(sample string, truncated bool) rune {
	lines := splitLines(sample)
	if truncated && len(lines) > 1 {
		lines = lines[:len(lines)-1]
	}
	if len(lines) > sniffSampleLines {
		lines = lines[:sniffSampleLines]
	}
	if len(lines) == 0 {
		return ','
	}

	best, bestConsistent, bestCount := ',', 0, 0
	for _, c := range sniffCandidates {
		first := countOutsideQuotes(lines[0], c)
		if first == 0 {
			continue
		}
		consistent := 0
		for _, line := range lines {
			if countOutsideQuotes(line, c) == first {
				consistent++
			}
		}
		if consistent > bestConsistent || (consistent == bestConsistent && first > bestCount) {
			best, bestConsistent, bestCount = c, consistent, first
		}
	}
	return best
}

func countOutsideQuotes(line string, delim rune) int {
	inQuote := false
	n := 0
	for _, r := range line {
		switch {
		case r == '"':
			inQuote = !inQuote
		case r == delim && !inQuote:
			n++
		}
	}
	return n
}
