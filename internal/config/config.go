package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DedupScopeFile  = "file"
	DedupScopeChunk = "chunk"
)

type Config struct {
	BaseDir string
	// DBPath overrides the ledger location; empty means <base>/data/cleaner.db.
	DBPath        string
	LedgerEnabled bool

	ChunkSize  int
	DedupScope string

	PDFFontPath     string
	PDFScanMinChars int
	PDFScanMinWords int
	PDFScanRatio    float64

	LogLevel  string
	LogFormat string
	LogToFile bool

	WatchIntervalSec int
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		BaseDir:       getEnv("BASE_DIR", "."),
		DBPath:        getEnv("DB_PATH", ""),
		LedgerEnabled: getEnvBool("LEDGER_ENABLED", true),

		ChunkSize:  getEnvInt("CHUNK_SIZE", 50000),
		DedupScope: strings.ToLower(strings.TrimSpace(getEnv("DEDUP_SCOPE", DedupScopeFile))),

		PDFFontPath:     getEnv("PDF_FONT_PATH", ""),
		PDFScanMinChars: getEnvInt("PDF_SCAN_MIN_CHARS", 30),
		PDFScanMinWords: getEnvInt("PDF_SCAN_MIN_WORDS", 3),
		PDFScanRatio:    getEnvFloat("PDF_SCAN_RATIO", 0.6),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
		LogToFile: getEnvBool("LOG_TO_FILE", true),

		WatchIntervalSec: getEnvInt("WATCH_INTERVAL_SEC", 30),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg.WithBaseDir(cfg.BaseDir)
}

// WithBaseDir returns a copy rooted at dir (made absolute).
func (c Config) WithBaseDir(dir string) (Config, error) {
	if strings.TrimSpace(dir) == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Config{}, err
	}
	c.BaseDir = abs
	return c, nil
}

func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.ChunkSize)
	}
	if c.WatchIntervalSec < 0 {
		return fmt.Errorf("WATCH_INTERVAL_SEC must not be negative, got %d", c.WatchIntervalSec)
	}
	switch c.DedupScope {
	case DedupScopeFile, DedupScopeChunk:
	default:
		return fmt.Errorf("unsupported DEDUP_SCOPE: %s", c.DedupScope)
	}
	return nil
}

func (c Config) RawDataDir() string { return filepath.Join(c.BaseDir, "raw_data") }

func (c Config) OutputDir() string { return filepath.Join(c.BaseDir, "output") }

func (c Config) LogDir() string { return filepath.Join(c.BaseDir, "logs") }

func (c Config) LogFile() string { return filepath.Join(c.LogDir(), "data_cleaner.log") }

func (c Config) LedgerPath() string {
	if strings.TrimSpace(c.DBPath) != "" {
		return c.DBPath
	}
	return filepath.Join(c.BaseDir, "data", "cleaner.db")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
