package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"datacleaner/internal/config"
	"datacleaner/internal/logging"
	"datacleaner/internal/pipeline"
	"datacleaner/internal/storage"
	"datacleaner/internal/watcher"
)

func main() {
	cfg, err := config.Load()
	must(err)

	opts := logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat}
	if cfg.LogToFile {
		opts.File = cfg.LogFile()
	}
	log, closeLog, err := logging.New(opts)
	must(err)
	defer closeLog()

	var ledger pipeline.RunLedger
	if cfg.LedgerEnabled {
		db, err := storage.Open(cfg.LedgerPath())
		must(err)
		defer db.Close()
		ledger = db
	}

	formats := pipeline.ParseOutputFormats(strings.Fields(os.Getenv("OUTPUT_FORMATS")))
	proc := pipeline.NewProcessingService(cfg, log, ledger, nil)
	svc := watcher.NewService(proc, cfg, formats, log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info("watching", zap.String("dir", cfg.RawDataDir()), zap.Int("interval_sec", cfg.WatchIntervalSec))
	must(svc.Run(ctx))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
