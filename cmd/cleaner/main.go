package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"datacleaner/internal/config"
	"datacleaner/internal/logging"
	"datacleaner/internal/opener"
	"datacleaner/internal/pipeline"
	"datacleaner/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	switch cmd {
	case "run":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		baseDir := fs.String("base-dir", cfg.BaseDir, "project base directory")
		formats := fs.String("formats", "", "csv,safe_csv,xlsx,txt,pdf,json,jsonl (default: all)")
		open := fs.Bool("open", false, "open generated files after saving")
		_ = fs.Parse(os.Args[2:])
		cfg, err = cfg.WithBaseDir(*baseDir)
		must(err)

		a := newApp(cfg)
		defer a.close()
		results, err := a.svc.ProcessDir(pipeline.ParseOutputFormats(append([]string{*formats}, fs.Args()...)))
		processed := 0
		for _, res := range results {
			if res.Skipped {
				continue
			}
			processed++
			fmt.Printf("%s kind=%s read=%d kept=%d duplicates=%d outputs=%d\n",
				res.Source, res.Kind, res.Stats.RowsRead, res.RowsKept, res.Stats.Duplicates, len(res.Generated))
			if *open {
				a.openAll(res.Generated)
			}
		}
		fmt.Printf("run done files=%d\n", processed)
		if err != nil {
			fmt.Fprintf(os.Stderr, "some files failed: %v\n", err)
			a.close()
			os.Exit(1)
		}
	case "file":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "input file path")
		baseDir := fs.String("base-dir", cfg.BaseDir, "project base directory (outputs go to <base>/output)")
		formats := fs.String("formats", "", "csv,safe_csv,xlsx,txt,pdf,json,jsonl (default: all)")
		open := fs.Bool("open", false, "open generated files after saving")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*input) == "" {
			must(fmt.Errorf("--input is required"))
		}
		cfg, err = cfg.WithBaseDir(*baseDir)
		must(err)

		a := newApp(cfg)
		defer a.close()
		res, err := a.svc.ProcessFile(*input, pipeline.ParseOutputFormats(append([]string{*formats}, fs.Args()...)))
		must(err)
		if res.Skipped {
			fmt.Printf("skipped unsupported file %s\n", *input)
			return
		}
		fmt.Printf("processed %s trace=%s kept=%d duplicates=%d\n", *input, res.TraceID, res.RowsKept, res.Stats.Duplicates)
		for _, p := range res.Generated {
			fmt.Println(p)
		}
		if *open {
			a.openAll(res.Generated)
		}
	case "scan":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "pdf file path")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*input) == "" {
			must(fmt.Errorf("--input is required"))
		}
		report, err := pipeline.DetectScannedPDF(*input, pipeline.ScanOptions{
			MinCharsPerPage: cfg.PDFScanMinChars,
			MinWordsPerPage: cfg.PDFScanMinWords,
			ScannedRatio:    cfg.PDFScanRatio,
		})
		must(err)
		fmt.Printf("pages=%d scanned_pages=%d ratio=%.2f scanned=%t\n", report.TotalPages, report.ScannedPages, report.ScannedRatio, report.IsScanned)
	case "runs":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		baseDir := fs.String("base-dir", cfg.BaseDir, "project base directory")
		limit := fs.Int("limit", 20, "max runs")
		_ = fs.Parse(os.Args[2:])
		cfg, err = cfg.WithBaseDir(*baseDir)
		must(err)

		db, err := storage.Open(cfg.LedgerPath())
		must(err)
		defer db.Close()
		runs, err := db.ListRuns(*limit)
		must(err)
		if last, err := db.GetMetadata(storage.MetaLastRunAt); err == nil && last != nil {
			fmt.Printf("last run at %s\n", *last)
		}
		for _, r := range runs {
			fmt.Printf("#%d %s %s %s kind=%s read=%d kept=%d duplicates=%d outputs=%d %s\n",
				r.ID, r.CreatedAt, r.Status, r.Source, r.Kind, r.RowsRead, r.RowsKept, r.Duplicates, len(r.Artifacts), r.Error)
		}
	default:
		usage()
		os.Exit(1)
	}
}

type app struct {
	svc     *pipeline.ProcessingService
	log     *zap.Logger
	closers []func() error
}

func newApp(cfg config.Config) *app {
	opts := logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat}
	if cfg.LogToFile {
		opts.File = cfg.LogFile()
	}
	log, closeLog, err := logging.New(opts)
	must(err)
	a := &app{log: log, closers: []func() error{closeLog}}

	var ledger pipeline.RunLedger
	if cfg.LedgerEnabled {
		db, err := storage.Open(cfg.LedgerPath())
		must(err)
		ledger = db
		a.closers = append([]func() error{db.Close}, a.closers...)
	}
	a.svc = pipeline.NewProcessingService(cfg, log, ledger, nil)
	return a
}

func (a *app) openAll(paths []string) {
	for _, p := range paths {
		if err := opener.Open(p); err != nil {
			a.log.Warn("open failed", zap.String("path", p), zap.Error(err))
		}
	}
}

func (a *app) close() {
	for _, c := range a.closers {
		_ = c()
	}
	a.closers = nil
}

func must(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`Usage:
  cleaner run [--base-dir=.] [--formats=csv,pdf] [--open]
  cleaner file --input=path [--base-dir=.] [--formats=...] [--open]
  cleaner scan --input=file.pdf
  cleaner runs [--base-dir=.] [--limit=20]`)
}
