package pipeline

import (
	"io"
	"testing"
)

func TestHTMLTableSource(t *testing.T) {
	html := `<html><body><p>intro</p><table>
<tr><th>Наименование</th><th>Кол-во</th></tr>
<tr><td>ВВГнг 3х2.5</td><td>10</td></tr>
<tr><td></td><td> </td></tr>
<tr><td>ПВС</td></tr>
</table></body></html>`
	src, err := openHTML(mkFile(t, "in.html", html), SourceOptions{})
	if err != nil {
		t.Fatal(err)
	}
	chunks := drain(t, src)
	if len(chunks) != 1 {
		t.Fatalf("len=%d", len(chunks))
	}
	recs := chunks[0].Records
	if len(recs) != 2 {
		t.Fatalf("len=%d", len(recs))
	}
	if v, _ := recs[0].Get("Кол-во"); v != "10" {
		t.Fatalf("qty=%q", v)
	}
	if v, _ := recs[1].Get("Наименование"); v != "ПВС" {
		t.Fatalf("name=%q", v)
	}
}

func TestHTMLWithoutTableUsesBodyLines(t *testing.T) {
	src, err := openHTML(mkFile(t, "in.htm", "<html><body>first line\n\nsecond line</body></html>"), SourceOptions{})
	if err != nil {
		t.Fatal(err)
	}
	chunks := drain(t, src)
	if len(chunks) != 1 || len(chunks[0].Records) != 2 {
		t.Fatalf("unexpected chunks")
	}
	if cols := chunks[0].Schema.Columns(); len(cols) != 1 || cols[0] != textColumn {
		t.Fatalf("columns=%q", cols)
	}
}

func TestEmailSourcePrefersHTMLTable(t *testing.T) {
	eml := "From: a@example.com\r\n" +
		"To: b@example.com\r\n" +
		"Subject: price list\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/alternative; boundary=\"XYZ\"\r\n" +
		"\r\n" +
		"--XYZ\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"plain body\r\n" +
		"--XYZ\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<table><tr><td>Item</td><td>Qty</td></tr><tr><td>Bolt</td><td>5</td></tr></table>\r\n" +
		"--XYZ--\r\n"
	src, err := openEmail(mkFile(t, "in.eml", eml), SourceOptions{})
	if err != nil {
		t.Fatal(err)
	}
	chunks := drain(t, src)
	if len(chunks) != 1 || len(chunks[0].Records) != 1 {
		t.Fatalf("unexpected chunks")
	}
	if v, _ := chunks[0].Records[0].Get("Qty"); v != "5" {
		t.Fatalf("qty=%q", v)
	}
}

func TestEmailSourcePlainText(t *testing.T) {
	eml := "From: a@example.com\r\n" +
		"Subject: note\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"line one\r\n" +
		"\r\n" +
		"line two\r\n"
	src, err := openEmail(mkFile(t, "note.eml", eml), SourceOptions{})
	if err != nil {
		t.Fatal(err)
	}
	chunks := drain(t, src)
	if len(chunks) != 1 || len(chunks[0].Records) != 2 {
		t.Fatalf("unexpected chunks")
	}
	if v, _ := chunks[0].Records[1].Get(textColumn); v != "line two" {
		t.Fatalf("text=%q", v)
	}
}

func TestHTMLTableSkipsRowsWiderThanHeader(t *testing.T) {
	html := `<table>
<tr><th>Name</th><th>Qty</th></tr>
<tr><td>Bolt</td><td>5</td><td>extra</td></tr>
<tr><td>Nut</td><td>7</td></tr>
</table>`
	src, err := openHTML(mkFile(t, "wide.html", html), SourceOptions{})
	if err != nil {
		t.Fatal(err)
	}
	chunks := drain(t, src)
	if len(chunks) != 1 || len(chunks[0].Records) != 1 {
		t.Fatalf("chunks=%+v", chunks)
	}
	if v, _ := chunks[0].Records[0].Get("Name"); v != "Nut" {
		t.Fatalf("name=%q", v)
	}
	if got := src.Skipped(); got != 1 {
		t.Fatalf("skipped=%d", got)
	}
}

func TestSliceSourceOnlyWideRows(t *testing.T) {
	src := newSliceSource([]string{"a"}, [][]string{{"1", "2"}, {"3", "4"}}, 1)
	if _, err := src.Next(); err != io.EOF {
		t.Fatalf("err=%v", err)
	}
	if src.Skipped() != 2 {
		t.Fatalf("skipped=%d", src.Skipped())
	}
}
