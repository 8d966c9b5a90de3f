package pipeline

import (
	"strings"

	"datacleaner/internal"
	"datacleaner/internal/util"
)

// CleanedRecord is a normalized record together with its duplicate key.
type CleanedRecord struct {
	Record internal.Record
	Key    string
}

// CleanRecord normalizes every field in column order and derives the row key
// by concatenating the per-field keys with no separator.
func CleanRecord(rec internal.Record) CleanedRecord {
	src := rec.Values()
	values := make([]string, len(src))
	var key strings.Builder
	for i, v := range src {
		values[i] = util.NormalizeText(v)
		key.WriteString(util.DuplicateKey(values[i]))
	}
	// values has one entry per source field, so the width matches the schema.
	cleaned, _ := internal.NewRecord(rec.Schema(), values)
	return CleanedRecord{Record: cleaned, Key: key.String()}
}

func CleanChunk(chunk internal.Chunk) []CleanedRecord {
	out := make([]CleanedRecord, 0, len(chunk.Records))
	for _, rec := range chunk.Records {
		out = append(out, CleanRecord(rec))
	}
	return out
}

// Deduper drops records whose key has already been seen. One Deduper
// belongs to one input file; Reset starts a new scope.
type Deduper struct {
	seen    map[string]struct{}
	dropped int
}

func NewDeduper() *Deduper {
	return &Deduper{seen: map[string]struct{}{}}
}

// Dedupe keeps the first occurrence of every key, preserving input order.
// The empty key participates like any other.
func (d *Deduper) Dedupe(records []CleanedRecord) []internal.Record {
	out := make([]internal.Record, 0, len(records))
	for _, rec := range records {
		if _, exists := d.seen[rec.Key]; exists {
			d.dropped++
			continue
		}
		d.seen[rec.Key] = struct{}{}
		out = append(out, rec.Record)
	}
	return out
}

func (d *Deduper) Reset() {
	d.seen = map[string]struct{}{}
}

// Dropped counts duplicates discarded since the Deduper was created.
func (d *Deduper) Dropped() int { return d.dropped }

func (d *Deduper) SeenKeys() int { return len(d.seen) }
