package pipeline

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"datacleaner/internal"
	"datacleaner/internal/config"
)

type recorder struct {
	calls  []Format
	paths  []string
	tables []internal.Table
	fail   map[Format]error
}

func (r *recorder) sinks() map[Format]Sink {
	out := map[Format]Sink{}
	for _, f := range AllFormats {
		f := f
		out[f] = SinkFunc(func(table internal.Table, path string) error {
			r.calls = append(r.calls, f)
			if err := r.fail[f]; err != nil {
				return err
			}
			r.paths = append(r.paths, path)
			r.tables = append(r.tables, table)
			return nil
		})
	}
	return out
}

type fakeLedger struct {
	runs []internal.RunRecord
	meta map[string]string
}

func (l *fakeLedger) RecordRun(run internal.RunRecord) (int64, error) {
	l.runs = append(l.runs, run)
	return int64(len(l.runs)), nil
}

func (l *fakeLedger) SetMetadata(key, value string) error {
	if l.meta == nil {
		l.meta = map[string]string{}
	}
	l.meta[key] = value
	return nil
}

type fakeSource struct {
	chunks []internal.Chunk
}

func (s *fakeSource) Next() (internal.Chunk, error) {
	if len(s.chunks) == 0 {
		return internal.Chunk{}, io.EOF
	}
	c := s.chunks[0]
	s.chunks = s.chunks[1:]
	return c, nil
}

func (s *fakeSource) Close() error { return nil }

func newTestService(t *testing.T, sinks map[Format]Sink, ledger RunLedger) (*ProcessingService, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Config{BaseDir: dir, ChunkSize: 2, DedupScope: config.DedupScopeFile}
	svc := NewProcessingService(cfg, zaptest.NewLogger(t), ledger, sinks)
	svc.now = func() time.Time { return time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC) }
	return svc, dir
}

func mkRaw(t *testing.T, base, name, content string) string {
	t.Helper()
	dir := filepath.Join(base, "raw_data")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestProcessFileCollapsesDuplicates(t *testing.T) {
	rec := &recorder{}
	svc, dir := newTestService(t, rec.sinks(), nil)
	path := mkRaw(t, dir, "hello.csv", "Hello!! World\nhello world\nhello   world\n")

	res, err := svc.ProcessFile(path, OutputFormats{JSON: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.tables) != 1 {
		t.Fatalf("len=%d", len(rec.tables))
	}
	table := rec.tables[0]
	if table.Len() != 1 {
		t.Fatalf("len=%d", table.Len())
	}
	if got := table.Records[0].Values()[0]; got != "Hello World" {
		t.Fatalf("value=%q", got)
	}
	if res.Stats.RowsRead != 2 || res.Stats.Duplicates != 1 || res.RowsKept != 1 {
		t.Fatalf("result=%+v", res)
	}
	want := filepath.Join(dir, "output", "CLEANED_hello_20261018_093000.json")
	if len(res.Generated) != 1 || res.Generated[0] != want {
		t.Fatalf("generated=%q want %q", res.Generated, want)
	}
}

func TestProcessEmptySourceWritesEmptyArray(t *testing.T) {
	svc, dir := newTestService(t, nil, nil)
	path := mkRaw(t, dir, "empty.json", "")

	res, err := svc.ProcessFile(path, OutputFormats{JSON: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Generated) != 1 {
		t.Fatalf("len=%d", len(res.Generated))
	}
	raw, err := os.ReadFile(res.Generated[0])
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(raw)) != "[]" {
		t.Fatalf("got %q", raw)
	}
}

func TestFormatSelectionFansOutToPDFOnly(t *testing.T) {
	rec := &recorder{}
	svc, dir := newTestService(t, rec.sinks(), nil)
	path := mkRaw(t, dir, "a.csv", "name\nx\n")

	if _, err := svc.ProcessFile(path, ParseOutputFormats([]string{"pdf"})); err != nil {
		t.Fatal(err)
	}
	if len(rec.calls) != 1 || rec.calls[0] != FormatPDF {
		t.Fatalf("calls=%v", rec.calls)
	}
	if !strings.HasSuffix(rec.paths[0], ".pdf") {
		t.Fatalf("path=%s", rec.paths[0])
	}
}

func TestFanOutOrderAndNames(t *testing.T) {
	rec := &recorder{}
	svc, dir := newTestService(t, rec.sinks(), nil)
	path := mkRaw(t, dir, "report.v2.txt", "a,b\n1,2\n")

	if _, err := svc.ProcessFile(path, AllOutputFormats()); err != nil {
		t.Fatal(err)
	}
	if len(rec.calls) != len(AllFormats) {
		t.Fatalf("calls=%v", rec.calls)
	}
	for i, f := range AllFormats {
		if rec.calls[i] != f {
			t.Fatalf("calls=%v", rec.calls)
		}
	}
	if got := filepath.Base(rec.paths[1]); got != "CLEANED_report.v2_20261018_093000_SAFE.csv" {
		t.Fatalf("safe name=%s", got)
	}
	if got := filepath.Base(rec.paths[2]); got != "CLEANED_report.v2_20261018_093000.xlsx" {
		t.Fatalf("excel name=%s", got)
	}
}

func TestUnsupportedExtensionIsNoop(t *testing.T) {
	rec := &recorder{}
	ledger := &fakeLedger{}
	svc, dir := newTestService(t, rec.sinks(), ledger)
	path := mkRaw(t, dir, "notes.docx", "whatever")

	res, err := svc.ProcessFile(path, AllOutputFormats())
	if err != nil {
		t.Fatal(err)
	}
	if !res.Skipped || len(res.Generated) != 0 || len(rec.calls) != 0 || len(ledger.runs) != 0 {
		t.Fatalf("unsupported file produced work: %+v", res)
	}
}

func TestProcessDirIsolatesFailures(t *testing.T) {
	rec := &recorder{}
	ledger := &fakeLedger{}
	svc, dir := newTestService(t, rec.sinks(), ledger)
	mkRaw(t, dir, "a.json", "{broken")
	mkRaw(t, dir, "b.csv", "name\nx\nX\n")
	mkRaw(t, dir, ".hidden.csv", "name\ny\n")
	if err := os.MkdirAll(filepath.Join(dir, "raw_data", "nested"), 0o755); err != nil {
		t.Fatal(err)
	}

	results, err := svc.ProcessDir(OutputFormats{CSV: true})
	if err == nil || !strings.Contains(err.Error(), "a.json") {
		t.Fatalf("err=%v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len=%d", len(results))
	}
	if len(rec.calls) != 1 || rec.tables[0].Len() != 1 {
		t.Fatalf("calls=%v", rec.calls)
	}
	if len(ledger.runs) != 2 {
		t.Fatalf("runs=%d", len(ledger.runs))
	}
	if ledger.runs[0].Status != internal.RunFailed || ledger.runs[1].Status != internal.RunOK {
		t.Fatalf("statuses=%s,%s", ledger.runs[0].Status, ledger.runs[1].Status)
	}
	if ledger.runs[1].Duplicates != 1 || len(ledger.runs[1].Artifacts) != 1 {
		t.Fatalf("run=%+v", ledger.runs[1])
	}
	if ledger.meta[metaLastRunAt] != "2026-10-18T09:30:00Z" {
		t.Fatalf("meta=%v", ledger.meta)
	}
	if _, err := os.Stat(filepath.Join(dir, "output")); err != nil {
		t.Fatalf("output dir not created: %v", err)
	}
}

func TestSinkFailureDoesNotStopOthers(t *testing.T) {
	rec := &recorder{fail: map[Format]error{FormatCSV: errors.New("disk full")}}
	ledger := &fakeLedger{}
	svc, dir := newTestService(t, rec.sinks(), ledger)
	path := mkRaw(t, dir, "a.csv", "name\nx\n")

	res, err := svc.ProcessFile(path, OutputFormats{CSV: true, JSON: true})
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("err=%v", err)
	}
	if len(rec.calls) != 2 || len(res.Generated) != 1 {
		t.Fatalf("calls=%v generated=%v", rec.calls, res.Generated)
	}
	if len(ledger.runs) != 1 || ledger.runs[0].Status != internal.RunFailed {
		t.Fatalf("runs=%+v", ledger.runs)
	}
}

func TestBuildTableDedupScope(t *testing.T) {
	chunks := func() *fakeSource {
		return &fakeSource{chunks: []internal.Chunk{
			mkChunk(t, []string{"v"}, []string{"a"}, []string{"b"}),
			mkChunk(t, []string{"v"}, []string{"A"}, []string{"c"}),
		}}
	}

	table, stats, err := BuildTable(chunks(), config.DedupScopeFile)
	if err != nil {
		t.Fatal(err)
	}
	if table.Len() != 3 || stats.Duplicates != 1 || stats.Chunks != 2 || stats.RowsRead != 4 {
		t.Fatalf("file scope: len=%d stats=%+v", table.Len(), stats)
	}

	table, stats, err = BuildTable(chunks(), config.DedupScopeChunk)
	if err != nil {
		t.Fatal(err)
	}
	if table.Len() != 4 || stats.Duplicates != 0 {
		t.Fatalf("chunk scope: len=%d stats=%+v", table.Len(), stats)
	}
}

func TestBuildTableEmptySource(t *testing.T) {
	table, stats, err := BuildTable(&fakeSource{}, config.DedupScopeFile)
	if err != nil {
		t.Fatal(err)
	}
	if table.Len() != 0 || table.Schema == nil || stats.Chunks != 0 {
		t.Fatalf("table=%+v stats=%+v", table, stats)
	}
}
