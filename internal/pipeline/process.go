package pipeline

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"datacleaner/internal"
	"datacleaner/internal/config"
)

const (
	outputPrefix    = "CLEANED_"
	timestampLayout = "20060102_150405"
	metaLastRunAt   = "last_run_at"
)

// RunLedger persists one entry per processed file.
type RunLedger interface {
	RecordRun(run internal.RunRecord) (int64, error)
	SetMetadata(key, value string) error
}

type ProcessingService struct {
	cfg    config.Config
	log    *zap.Logger
	sinks  map[Format]Sink
	ledger RunLedger
	now    func() time.Time
}

// NewProcessingService wires the orchestrator. ledger may be nil; sinks
// defaults to DefaultSinks.
func NewProcessingService(cfg config.Config, log *zap.Logger, ledger RunLedger, sinks map[Format]Sink) *ProcessingService {
	if log == nil {
		log = zap.NewNop()
	}
	if sinks == nil {
		sinks = DefaultSinks(cfg.PDFFontPath, log)
	}
	return &ProcessingService{cfg: cfg, log: log, sinks: sinks, ledger: ledger, now: time.Now}
}

type TableStats struct {
	Chunks       int
	RowsRead     int
	Duplicates   int
	SkippedLines int
}

type FileResult struct {
	Source    string
	Kind      InputKind
	TraceID   string
	Stats     TableStats
	RowsKept  int
	Generated []string
	Skipped   bool
}

// BuildTable pulls chunks from src until io.EOF, cleaning and deduplicating
// each one and appending the survivors in order. scope selects whether the
// seen-key set spans the whole source or is reset for every chunk.
func BuildTable(src ChunkSource, scope string) (internal.Table, TableStats, error) {
	var (
		table   internal.Table
		stats   TableStats
		deduper = NewDeduper()
	)
	for {
		chunk, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return internal.Table{}, stats, err
		}
		stats.Chunks++
		stats.RowsRead += len(chunk.Records)
		if table.Schema == nil {
			table.Schema = chunk.Schema
		}
		if scope == config.DedupScopeChunk {
			deduper.Reset()
		}
		table.Append(deduper.Dedupe(CleanChunk(chunk))...)
	}
	if table.Schema == nil {
		table.Schema = internal.NewSchema(nil)
	}
	stats.Duplicates = deduper.Dropped()
	if sr, ok := src.(SkipReporter); ok {
		stats.SkippedLines = sr.Skipped()
	}
	return table, stats, nil
}

// ProcessFile cleans one input file and writes every selected output.
// Unsupported extensions are a no-op with Skipped set.
func (s *ProcessingService) ProcessFile(path string, formats OutputFormats) (FileResult, error) {
	res := FileResult{Source: path, Kind: DetectInputKind(path)}
	if res.Kind == KindUnsupported {
		s.log.Debug("skipping unsupported file", zap.String("file", path))
		res.Skipped = true
		return res, nil
	}

	res.TraceID = uuid.NewString()
	log := s.log.With(
		zap.String("trace_id", res.TraceID),
		zap.String("file", filepath.Base(path)),
		zap.Stringer("kind", res.Kind),
	)
	start := time.Now()
	run := internal.RunRecord{
		TraceID: res.TraceID,
		Source:  path,
		Kind:    res.Kind.String(),
		Status:  internal.RunOK,
		Timings: map[string]float64{},
	}

	table, stats, err := s.readTable(path, res.Kind, log)
	res.Stats = stats
	run.Timings["readMs"] = float64(time.Since(start).Milliseconds())
	if err != nil {
		log.Error("read failed", zap.Error(err))
		run.Status = internal.RunFailed
		run.Error = err.Error()
		s.record(run, stats, log)
		return res, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	res.RowsKept = table.Len()
	run.RowsKept = table.Len()
	log.Info("cleaned",
		zap.Int("chunks", stats.Chunks),
		zap.Int("rows_read", stats.RowsRead),
		zap.Int("rows_kept", table.Len()),
		zap.Int("duplicates", stats.Duplicates),
		zap.Int("skipped_lines", stats.SkippedLines),
	)

	writeStart := time.Now()
	artifacts, err := s.WriteOutputs(table, path, formats, log)
	for _, a := range artifacts {
		res.Generated = append(res.Generated, a.Path)
	}
	run.Artifacts = artifacts
	run.Timings["writeMs"] = float64(time.Since(writeStart).Milliseconds())
	run.Timings["totalMs"] = float64(time.Since(start).Milliseconds())
	if err != nil {
		run.Status = internal.RunFailed
		run.Error = err.Error()
	}
	s.record(run, stats, log)
	if err != nil {
		return res, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return res, nil
}

func (s *ProcessingService) readTable(path string, kind InputKind, log *zap.Logger) (internal.Table, TableStats, error) {
	src, err := OpenSource(path, kind, SourceOptions{
		ChunkSize: s.cfg.ChunkSize,
		Scan: ScanOptions{
			MinCharsPerPage: s.cfg.PDFScanMinChars,
			MinWordsPerPage: s.cfg.PDFScanMinWords,
			ScannedRatio:    s.cfg.PDFScanRatio,
		},
		Log: log,
	})
	if err != nil {
		return internal.Table{}, TableStats{}, err
	}
	defer src.Close()
	return BuildTable(src, s.cfg.DedupScope)
}

// WriteOutputs hands the table to every selected sink in fan-out order.
// A failing sink does not stop the others; failures are joined.
func (s *ProcessingService) WriteOutputs(table internal.Table, source string, formats OutputFormats, log *zap.Logger) ([]internal.Artifact, error) {
	if log == nil {
		log = s.log
	}
	base := filepath.Base(source)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	name := outputPrefix + stem + "_" + s.now().Format(timestampLayout)

	var (
		artifacts []internal.Artifact
		errs      []error
	)
	for _, f := range formats.List() {
		sink, ok := s.sinks[f]
		if !ok {
			errs = append(errs, fmt.Errorf("no sink for format %s", f))
			continue
		}
		out := filepath.Join(s.cfg.OutputDir(), name+f.fileSuffix())
		if err := sink.Write(table, out); err != nil {
			log.Error("write failed", zap.Stringer("format", f), zap.String("path", out), zap.Error(err))
			errs = append(errs, fmt.Errorf("write %s: %w", f, err))
			continue
		}
		log.Debug("saved", zap.Stringer("format", f), zap.String("path", out))
		artifacts = append(artifacts, internal.Artifact{Format: f.String(), Path: out})
	}
	return artifacts, errors.Join(errs...)
}

func (s *ProcessingService) record(run internal.RunRecord, stats TableStats, log *zap.Logger) {
	if s.ledger == nil {
		return
	}
	run.Chunks = stats.Chunks
	run.RowsRead = stats.RowsRead
	run.Duplicates = stats.Duplicates
	run.SkippedLines = stats.SkippedLines
	if _, err := s.ledger.RecordRun(run); err != nil {
		log.Warn("ledger write failed", zap.Error(err))
	}
}

// ProcessDir processes every non-hidden file in the raw data directory in
// name order. A failing file is logged and the batch continues; all
// failures are joined into the returned error.
func (s *ProcessingService) ProcessDir(formats OutputFormats) ([]FileResult, error) {
	for _, dir := range []string{s.cfg.RawDataDir(), s.cfg.OutputDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	entries, err := os.ReadDir(s.cfg.RawDataDir())
	if err != nil {
		return nil, err
	}

	var (
		results []FileResult
		errs    []error
	)
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		res, err := s.ProcessFile(filepath.Join(s.cfg.RawDataDir(), entry.Name()), formats)
		if err != nil {
			s.log.Error("file failed", zap.String("file", entry.Name()), zap.Error(err))
			errs = append(errs, err)
		}
		results = append(results, res)
	}

	if s.ledger != nil {
		if err := s.ledger.SetMetadata(metaLastRunAt, s.now().UTC().Format(time.RFC3339)); err != nil {
			s.log.Warn("ledger metadata write failed", zap.Error(err))
		}
	}
	return results, errors.Join(errs...)
}
