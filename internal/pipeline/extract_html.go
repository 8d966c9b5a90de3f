package pipeline

import (
	"fmt"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"
	"go.uber.org/zap"
)

func openHTML(path string, opts SourceOptions) (*sliceSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return htmlDocumentSource(doc, opts), nil
}

// openEmail reads an RFC 822 message. A table in the HTML part wins,
// otherwise the plain-text body is split into lines.
func openEmail(path string, opts SourceOptions) (*sliceSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	env, err := enmime.ReadEnvelope(f)
	if err != nil {
		return nil, fmt.Errorf("read envelope: %w", err)
	}
	log := opts.logger().With(zap.String("subject", env.GetHeader("Subject")))

	if env.HTML != "" {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(env.HTML))
		if err == nil {
			if header, rows, ok := firstHTMLTable(doc); ok {
				log.Debug("email table found", zap.Int("rows", len(rows)))
				return newSliceSource(header, rows, opts.chunkSize()), nil
			}
		}
	}
	text := env.Text
	if strings.TrimSpace(text) == "" && env.HTML != "" {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(env.HTML)); err == nil {
			text = doc.Find("body").Text()
		}
	}
	return textLinesSource(text, opts.chunkSize()), nil
}

func htmlDocumentSource(doc *goquery.Document, opts SourceOptions) *sliceSource {
	if header, rows, ok := firstHTMLTable(doc); ok {
		return newSliceSource(header, rows, opts.chunkSize())
	}
	opts.logger().Debug("no html table, falling back to body text")
	return textLinesSource(doc.Find("body").Text(), opts.chunkSize())
}

// firstHTMLTable returns the first table with at least one row; its first
// row is the header.
func firstHTMLTable(doc *goquery.Document) (header []string, rows [][]string, ok bool) {
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		trs := table.Find("tr")
		if trs.Length() == 0 {
			return true
		}
		header = rowCells(trs.First())
		trs.Slice(1, trs.Length()).Each(func(_ int, tr *goquery.Selection) {
			cells := rowCells(tr)
			if len(cells) == 0 || isBlankRow(cells) {
				return
			}
			rows = append(rows, cells)
		})
		ok = true
		return false
	})
	return header, rows, ok
}

func rowCells(tr *goquery.Selection) []string {
	cells := []string{}
	tr.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
		cells = append(cells, strings.TrimSpace(cell.Text()))
	})
	return cells
}
