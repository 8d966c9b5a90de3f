package pipeline

import "strings"

type Format string

const (
	FormatCSV     Format = "csv"
	FormatSafeCSV Format = "safe_csv"
	FormatExcel   Format = "excel"
	FormatTXT     Format = "txt"
	FormatPDF     Format = "pdf"
	FormatJSON    Format = "json"
	FormatJSONL   Format = "jsonl"
)

// AllFormats lists every output format in fan-out order.
var AllFormats = []Format{FormatCSV, FormatSafeCSV, FormatExcel, FormatTXT, FormatPDF, FormatJSON, FormatJSONL}

func (f Format) String() string { return string(f) }

// fileSuffix is appended to CLEANED_<stem>_<timestamp>.
func (f Format) fileSuffix() string {
	switch f {
	case FormatSafeCSV:
		return "_SAFE.csv"
	case FormatExcel:
		return ".xlsx"
	default:
		return "." + string(f)
	}
}

// OutputFormats toggles each output encoding independently.
type OutputFormats struct {
	CSV     bool
	SafeCSV bool
	Excel   bool
	TXT     bool
	PDF     bool
	JSON    bool
	JSONL   bool
}

func AllOutputFormats() OutputFormats {
	return OutputFormats{CSV: true, SafeCSV: true, Excel: true, TXT: true, PDF: true, JSON: true, JSONL: true}
}

// ParseOutputFormats builds a selection from CLI-like names. An empty list
// selects everything; unknown names are ignored.
func ParseOutputFormats(values []string) OutputFormats {
	names := map[string]struct{}{}
	for _, v := range values {
		for _, part := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' }) {
			names[strings.ToLower(strings.TrimSpace(part))] = struct{}{}
		}
	}
	if len(names) == 0 {
		return AllOutputFormats()
	}
	has := func(keys ...string) bool {
		for _, k := range keys {
			if _, ok := names[k]; ok {
				return true
			}
		}
		return false
	}
	return OutputFormats{
		CSV:     has("csv"),
		SafeCSV: has("safe_csv", "safecsv"),
		Excel:   has("xlsx", "excel"),
		TXT:     has("txt"),
		PDF:     has("pdf"),
		JSON:    has("json"),
		JSONL:   has("jsonl"),
	}
}

func (o OutputFormats) Enabled(f Format) bool {
	switch f {
	case FormatCSV:
		return o.CSV
	case FormatSafeCSV:
		return o.SafeCSV
	case FormatExcel:
		return o.Excel
	case FormatTXT:
		return o.TXT
	case FormatPDF:
		return o.PDF
	case FormatJSON:
		return o.JSON
	case FormatJSONL:
		return o.JSONL
	default:
		return false
	}
}

// List returns the enabled formats in fan-out order.
func (o OutputFormats) List() []Format {
	out := make([]Format, 0, len(AllFormats))
	for _, f := range AllFormats {
		if o.Enabled(f) {
			out = append(out, f)
		}
	}
	return out
}
