package pipeline

import (
	"path/filepath"
	"testing"

	"github.com/go-pdf/fpdf"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"datacleaner/internal"
)

// mkPDF writes one page per entry, one text line per string.
func mkPDF(t *testing.T, pages ...[]string) string {
	t.Helper()
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetCompression(false)
	for _, lines := range pages {
		doc.AddPage()
		doc.SetFont("Helvetica", "", 12)
		for i, line := range lines {
			doc.Text(20, float64(20+10*i), line)
		}
	}
	path := filepath.Join(t.TempDir(), "in.pdf")
	if err := doc.OutputFileAndClose(path); err != nil {
		t.Fatal(err)
	}
	return path
}

func pdfTexts(t *testing.T, chunks []internal.Chunk) [][]string {
	t.Helper()
	out := make([][]string, 0, len(chunks))
	for _, c := range chunks {
		var texts []string
		for _, rec := range c.Records {
			v, _ := rec.Get(textColumn)
			texts = append(texts, v)
		}
		out = append(out, texts)
	}
	return out
}

func TestScanCounter(t *testing.T) {
	cases := []struct {
		name    string
		pages   []string
		scanned int
		is      bool
	}{
		{"no pages", nil, 0, true},
		{"text pages", []string{"this page has plenty of extractable words on it", "another page with more than enough text here"}, 0, false},
		{"mostly images", []string{"", "  ", "12", "a real page with enough words and characters"}, 3, true},
		{"few words but long", []string{"supercalifragilisticexpialidocious-and-more-characters"}, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := &scanCounter{opts: DefaultScanOptions()}
			for _, p := range tc.pages {
				c.addPage(p)
			}
			r := c.report()
			if r.ScannedPages != tc.scanned || r.IsScanned != tc.is {
				t.Fatalf("report=%+v", r)
			}
			if r.TotalPages != len(tc.pages) {
				t.Fatalf("total=%d", r.TotalPages)
			}
		})
	}
}

func TestScanOptionsDefaults(t *testing.T) {
	o := ScanOptions{MinWordsPerPage: 5}.withDefaults()
	if o.MinCharsPerPage != 30 || o.MinWordsPerPage != 5 || o.ScannedRatio != 0.6 {
		t.Fatalf("opts=%+v", o)
	}
}

func TestOpenPDFRejectsNonPDF(t *testing.T) {
	if _, err := openPDF(mkFile(t, "fake.pdf", "not a pdf"), SourceOptions{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestPDFSourceSplitsPagesIntoChunks(t *testing.T) {
	path := mkPDF(t,
		[]string{"Alpha", "   ", "Beta", "Gamma"},
		[]string{"Delta", "Epsilon"},
	)
	core, logs := observer.New(zapcore.InfoLevel)
	src, err := OpenSource(path, KindPDFText, SourceOptions{ChunkSize: 2, Log: zap.New(core)})
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	chunks := drain(t, src)
	got := pdfTexts(t, chunks)
	want := [][]string{{"Alpha", "Beta"}, {"Gamma"}, {"Delta", "Epsilon"}}
	if len(got) != len(want) {
		t.Fatalf("chunks=%q", got)
	}
	for i := range want {
		if len(got[i]) != len(want[i]) {
			t.Fatalf("chunks=%q", got)
		}
		for j := range want[i] {
			if got[i][j] != want[i][j] {
				t.Fatalf("chunks=%q", got)
			}
		}
	}
	if cols := chunks[0].Schema.Columns(); len(cols) != 1 || cols[0] != textColumn {
		t.Fatalf("columns=%q", cols)
	}
	if n := logs.FilterLevelExact(zapcore.WarnLevel).Len(); n != 0 {
		t.Fatalf("unexpected scanned warning, got %d", n)
	}
}

func TestPDFSourceWarnsOnScannedDocument(t *testing.T) {
	path := mkPDF(t, []string{"x"})
	core, logs := observer.New(zapcore.InfoLevel)
	src, err := OpenSource(path, KindPDFText, SourceOptions{Log: zap.New(core)})
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	got := pdfTexts(t, drain(t, src))
	if len(got) != 1 || len(got[0]) != 1 || got[0][0] != "x" {
		t.Fatalf("chunks=%q", got)
	}
	warns := logs.FilterLevelExact(zapcore.WarnLevel)
	if warns.Len() != 1 {
		t.Fatalf("warnings=%d", warns.Len())
	}
	if pages := warns.All()[0].ContextMap()["pages"]; pages != int64(1) {
		t.Fatalf("pages=%v", pages)
	}
}

func TestDetectScannedPDF(t *testing.T) {
	path := mkPDF(t,
		[]string{"this page carries plenty of extractable words"},
		[]string{""},
	)
	report, err := DetectScannedPDF(path, ScanOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if report.TotalPages != 2 || report.ScannedPages != 1 || report.IsScanned {
		t.Fatalf("report=%+v", report)
	}
}
