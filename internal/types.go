package internal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Schema is the ordered, unique column list shared by every record of one source.
type Schema struct {
	columns []string
	index   map[string]int
}

// NewSchema builds a schema from raw header cells. Empty cells become
// "Unnamed: <i>" and repeated names get ".1", ".2", ... suffixes.
func NewSchema(raw []string) *Schema {
	s := &Schema{
		columns: make([]string, 0, len(raw)),
		index:   make(map[string]int, len(raw)),
	}
	counts := map[string]int{}
	for i, name := range raw {
		if strings.TrimSpace(name) == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		base := name
		for {
			if _, taken := s.index[name]; !taken {
				break
			}
			counts[base]++
			name = base + "." + strconv.Itoa(counts[base])
		}
		s.index[name] = len(s.columns)
		s.columns = append(s.columns, name)
	}
	return s
}

func (s *Schema) Columns() []string {
	if s == nil {
		return nil
	}
	return s.columns
}

func (s *Schema) Len() int {
	if s == nil {
		return 0
	}
	return len(s.columns)
}

func (s *Schema) Index(column string) (int, bool) {
	if s == nil {
		return -1, false
	}
	i, ok := s.index[column]
	return i, ok
}

// Record is one row: an ordered column -> string mapping bound to a schema.
type Record struct {
	schema *Schema
	values []string
}

func NewRecord(schema *Schema, values []string) (Record, error) {
	if len(values) != schema.Len() {
		return Record{}, fmt.Errorf("record has %d values, schema has %d columns", len(values), schema.Len())
	}
	return Record{schema: schema, values: values}, nil
}

func (r Record) Schema() *Schema { return r.schema }

// Values returns the values in column order. Callers must not modify the slice.
func (r Record) Values() []string { return r.values }

func (r Record) Len() int { return len(r.values) }

func (r Record) Get(column string) (string, bool) {
	i, ok := r.schema.Index(column)
	if !ok {
		return "", false
	}
	return r.values[i], true
}

// MarshalJSON writes the record as an object with keys in column order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range r.schema.Columns() {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSONString(&buf, col); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := writeJSONString(&buf, r.values[i]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeJSONString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	// Encode appends a newline.
	buf.Truncate(buf.Len() - 1)
	return nil
}

// Chunk is a bounded batch of records read from one source.
type Chunk struct {
	Schema  *Schema
	Records []Record
}

// Table holds every surviving record of one input file in first-seen order.
type Table struct {
	Schema  *Schema
	Records []Record
}

func (t *Table) Append(records ...Record) {
	t.Records = append(t.Records, records...)
}

func (t Table) Len() int { return len(t.Records) }

type RunStatus string

const (
	RunOK     RunStatus = "OK"
	RunFailed RunStatus = "FAILED"
)

type Artifact struct {
	Format string
	Path   string
}

// RunRecord is one ledger entry for a processed input file.
type RunRecord struct {
	ID           int64
	TraceID      string
	Source       string
	Kind         string
	Status       RunStatus
	Chunks       int
	RowsRead     int
	RowsKept     int
	Duplicates   int
	SkippedLines int
	Error        string
	Timings      map[string]float64
	Artifacts    []Artifact
	CreatedAt    string
}
