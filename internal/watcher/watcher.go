package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"datacleaner/internal/config"
	"datacleaner/internal/pipeline"
)

type Processor interface {
	ProcessFile(path string, formats pipeline.OutputFormats) (pipeline.FileResult, error)
}

type stamp struct {
	size    int64
	modTime time.Time
}

// Service polls the raw data directory and processes files that are new
// or changed since the previous cycle.
type Service struct {
	proc    Processor
	cfg     config.Config
	formats pipeline.OutputFormats
	log     *zap.Logger
	seen    map[string]stamp
}

func NewService(proc Processor, cfg config.Config, formats pipeline.OutputFormats, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{proc: proc, cfg: cfg, formats: formats, log: log, seen: map[string]stamp{}}
}

func (s *Service) Run(ctx context.Context) error {
	interval := time.Duration(s.cfg.WatchIntervalSec) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	for {
		if _, err := s.RunCycle(); err != nil {
			s.log.Error("watch cycle failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

// RunCycle processes every changed file once and returns how many were
// handed to the processor. A file that fails is not retried until it changes.
func (s *Service) RunCycle() (int, error) {
	dir := s.cfg.RawDataDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if pipeline.DetectInputKind(entry.Name()) == pipeline.KindUnsupported {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			s.log.Warn("stat failed", zap.String("file", entry.Name()), zap.Error(err))
			continue
		}
		current := stamp{size: info.Size(), modTime: info.ModTime()}
		if prev, ok := s.seen[entry.Name()]; ok && prev == current {
			continue
		}
		s.seen[entry.Name()] = current

		processed++
		res, err := s.proc.ProcessFile(filepath.Join(dir, entry.Name()), s.formats)
		if err != nil {
			s.log.Error("file failed", zap.String("file", entry.Name()), zap.Error(err))
			continue
		}
		s.log.Info("file processed", zap.String("file", entry.Name()), zap.Int("rows_kept", res.RowsKept), zap.Int("outputs", len(res.Generated)))
	}
	return processed, nil
}
