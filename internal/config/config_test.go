package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	for _, k := range []string{"BASE_DIR", "DB_PATH", "CHUNK_SIZE", "DEDUP_SCOPE", "PDF_FONT_PATH", "LOG_LEVEL", "LOG_FORMAT", "LEDGER_ENABLED", "LOG_TO_FILE"} {
		t.Setenv(k, "")
		_ = os.Unsetenv(k)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ChunkSize != 50000 || cfg.DedupScope != DedupScopeFile || !cfg.LedgerEnabled || !cfg.LogToFile {
		t.Fatalf("cfg=%+v", cfg)
	}
	if !filepath.IsAbs(cfg.BaseDir) {
		t.Fatalf("base dir not absolute: %s", cfg.BaseDir)
	}
	if cfg.LedgerPath() != filepath.Join(cfg.BaseDir, "data", "cleaner.db") {
		t.Fatalf("ledger=%s", cfg.LedgerPath())
	}
	if cfg.LogFile() != filepath.Join(cfg.BaseDir, "logs", "data_cleaner.log") {
		t.Fatalf("log=%s", cfg.LogFile())
	}
}

func TestLoadFromEnv(t *testing.T) {
	chdir(t, t.TempDir())
	base := t.TempDir()
	t.Setenv("BASE_DIR", base)
	t.Setenv("CHUNK_SIZE", "100")
	t.Setenv("DEDUP_SCOPE", "Chunk")
	t.Setenv("DB_PATH", "/var/lib/cleaner.db")
	t.Setenv("LEDGER_ENABLED", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BaseDir != base || cfg.ChunkSize != 100 || cfg.DedupScope != DedupScopeChunk || cfg.LedgerEnabled {
		t.Fatalf("cfg=%+v", cfg)
	}
	if cfg.LedgerPath() != "/var/lib/cleaner.db" {
		t.Fatalf("ledger=%s", cfg.LedgerPath())
	}
	if cfg.RawDataDir() != filepath.Join(base, "raw_data") || cfg.OutputDir() != filepath.Join(base, "output") {
		t.Fatalf("dirs=%s %s", cfg.RawDataDir(), cfg.OutputDir())
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"ok", Config{ChunkSize: 10, DedupScope: DedupScopeFile}, true},
		{"zero chunk", Config{ChunkSize: 0, DedupScope: DedupScopeFile}, false},
		{"bad scope", Config{ChunkSize: 10, DedupScope: "row"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err == nil) != tc.ok {
				t.Fatalf("err=%v", err)
			}
		})
	}
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
