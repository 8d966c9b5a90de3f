package pipeline

import (
	"path/filepath"
	"strings"
)

// InputKind is the closed set of input encodings the cleaner reads.
type InputKind int

const (
	KindUnsupported InputKind = iota
	KindDelimited
	KindPDFText
	KindJSON
	KindJSONLines
	KindSpreadsheet
	KindHTMLTable
	KindEmail
)

func (k InputKind) String() string {
	switch k {
	case KindDelimited:
		return "delimited"
	case KindPDFText:
		return "pdf_text"
	case KindJSON:
		return "json"
	case KindJSONLines:
		return "json_lines"
	case KindSpreadsheet:
		return "spreadsheet"
	case KindHTMLTable:
		return "html_table"
	case KindEmail:
		return "email"
	default:
		return "unsupported"
	}
}

// DetectInputKind resolves the input kind from the file extension.
func DetectInputKind(path string) InputKind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return KindDelimited
	case ".pdf":
		return KindPDFText
	case ".json":
		return KindJSON
	case ".jsonl", ".jsonlines":
		return KindJSONLines
	case ".xlsx":
		return KindSpreadsheet
	case ".html", ".htm":
		return KindHTMLTable
	case ".eml":
		return KindEmail
	default:
		return KindUnsupported
	}
}
