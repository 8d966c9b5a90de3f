package pipeline

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"datacleaner/internal"
)

type jsonMode int

const (
	jsonModeDocument jsonMode = iota
	jsonModeLines
)

func (m jsonMode) String() string {
	if m == jsonModeLines {
		return "lines"
	}
	return "document"
}

// jsonObject keeps keys in document order.
type jsonObject struct {
	keys   []string
	values map[string]any
}

type objectIterator interface {
	next() (jsonObject, error)
}

// jsonSource streams records from a JSON array / single object or from
// JSON Lines. The column set is the union of keys in first-seen order,
// collected by a first streaming pass so chunks share one schema.
type jsonSource struct {
	file   *os.File
	it     objectIterator
	schema *internal.Schema
	size   int
}

func openJSON(path string, kind InputKind, opts SourceOptions) (*jsonSource, error) {
	log := opts.logger()
	mode := jsonModeDocument
	if kind == KindJSONLines {
		mode = jsonModeLines
	}

	keys, err := collectJSONKeys(path, mode)
	if err != nil && mode == jsonModeDocument {
		log.Info("json document parse failed, retrying as json lines", zap.Error(err))
		lineKeys, lerr := collectJSONKeys(path, jsonModeLines)
		if lerr != nil {
			return nil, fmt.Errorf("parse json: %w; as json lines: %w", err, lerr)
		}
		keys, mode, err = lineKeys, jsonModeLines, nil
	}
	if err != nil {
		return nil, fmt.Errorf("parse json lines: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	log.Debug("json columns collected", zap.Stringer("mode", mode), zap.Int("columns", len(keys)))
	return &jsonSource{
		file:   f,
		it:     newObjectIterator(f, mode),
		schema: internal.NewSchema(keys),
		size:   opts.chunkSize(),
	}, nil
}

func collectJSONKeys(path string, mode jsonMode) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	it := newObjectIterator(f, mode)
	seen := map[string]struct{}{}
	var keys []string
	for {
		obj, err := it.next()
		if errors.Is(err, io.EOF) {
			return keys, nil
		}
		if err != nil {
			return nil, err
		}
		for _, k := range obj.keys {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
}

func (s *jsonSource) Next() (internal.Chunk, error) {
	chunk := internal.Chunk{Schema: s.schema}
	columns := s.schema.Columns()
	for len(chunk.Records) < s.size {
		obj, err := s.it.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return internal.Chunk{}, err
		}
		values := make([]string, len(columns))
		for i, col := range columns {
			values[i] = jsonScalarString(obj.values[col])
		}
		// built from the schema's own columns; width always matches
		rec, _ := internal.NewRecord(s.schema, values)
		chunk.Records = append(chunk.Records, rec)
	}
	if len(chunk.Records) == 0 {
		return internal.Chunk{}, io.EOF
	}
	return chunk, nil
}

func (s *jsonSource) Close() error { return s.file.Close() }

// jsonScalarString renders a decoded value as cell text; missing and null
// values are "", nested values are compact JSON.
func jsonScalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		blob, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(blob)
	}
}

func newObjectIterator(r io.Reader, mode jsonMode) objectIterator {
	if mode == jsonModeLines {
		return &linesIterator{r: bufio.NewReader(r)}
	}
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return &documentIterator{dec: dec}
}

const (
	docStart = iota
	docInArray
	docDone
)

// documentIterator walks a root array of objects (null elements skipped)
// or a single root object.
type documentIterator struct {
	dec   *json.Decoder
	state int
}

func (it *documentIterator) next() (jsonObject, error) {
	switch it.state {
	case docStart:
		tok, err := it.dec.Token()
		if errors.Is(err, io.EOF) {
			it.state = docDone
			return jsonObject{}, io.EOF
		}
		if err != nil {
			return jsonObject{}, fmt.Errorf("json: read first token: %w", err)
		}
		switch tok {
		case json.Delim('['):
			it.state = docInArray
			return it.next()
		case json.Delim('{'):
			it.state = docDone
			obj, err := readObjectBody(it.dec)
			if err != nil {
				return jsonObject{}, err
			}
			if err := expectEnd(it.dec); err != nil {
				return jsonObject{}, err
			}
			return obj, nil
		default:
			return jsonObject{}, fmt.Errorf("json: unsupported root token %v (want object or array)", tok)
		}
	case docInArray:
		for it.dec.More() {
			tok, err := it.dec.Token()
			if err != nil {
				return jsonObject{}, fmt.Errorf("json: read array element: %w", err)
			}
			if tok == nil {
				continue
			}
			if tok != json.Delim('{') {
				return jsonObject{}, fmt.Errorf("json: array element not an object (got %v)", tok)
			}
			return readObjectBody(it.dec)
		}
		if _, err := it.dec.Token(); err != nil {
			return jsonObject{}, fmt.Errorf("json: read array end: %w", err)
		}
		it.state = docDone
		if err := expectEnd(it.dec); err != nil {
			return jsonObject{}, err
		}
		return jsonObject{}, io.EOF
	default:
		return jsonObject{}, io.EOF
	}
}

type linesIterator struct {
	r    *bufio.Reader
	line int
}

func (it *linesIterator) next() (jsonObject, error) {
	for {
		raw, err := it.r.ReadString('\n')
		if raw == "" && errors.Is(err, io.EOF) {
			return jsonObject{}, io.EOF
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return jsonObject{}, err
		}
		it.line++
		line := strings.TrimSpace(raw)
		if line == "" {
			if errors.Is(err, io.EOF) {
				return jsonObject{}, io.EOF
			}
			continue
		}

		dec := json.NewDecoder(strings.NewReader(line))
		dec.UseNumber()
		tok, terr := dec.Token()
		if terr != nil {
			return jsonObject{}, fmt.Errorf("json line %d: %w", it.line, terr)
		}
		if tok != json.Delim('{') {
			return jsonObject{}, fmt.Errorf("json line %d: not an object", it.line)
		}
		obj, oerr := readObjectBody(dec)
		if oerr != nil {
			return jsonObject{}, fmt.Errorf("json line %d: %w", it.line, oerr)
		}
		if eerr := expectEnd(dec); eerr != nil {
			return jsonObject{}, fmt.Errorf("json line %d: %w", it.line, eerr)
		}
		return obj, nil
	}
}

// readObjectBody reads key/value pairs up to and including the closing '}'.
// The opening '{' must already be consumed.
func readObjectBody(dec *json.Decoder) (jsonObject, error) {
	obj := jsonObject{values: map[string]any{}}
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return jsonObject{}, fmt.Errorf("json: read object key: %w", err)
		}
		key, ok := kt.(string)
		if !ok {
			return jsonObject{}, fmt.Errorf("json: object key not a string (got %T)", kt)
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return jsonObject{}, fmt.Errorf("json: decode value of %q: %w", key, err)
		}
		if _, dup := obj.values[key]; !dup {
			obj.keys = append(obj.keys, key)
		}
		obj.values[key] = v
	}
	end, err := dec.Token()
	if err != nil {
		return jsonObject{}, fmt.Errorf("json: read object end: %w", err)
	}
	if end != json.Delim('}') {
		return jsonObject{}, fmt.Errorf("json: expected '}', got %v", end)
	}
	return obj, nil
}

func expectEnd(dec *json.Decoder) error {
	tok, err := dec.Token()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("json: trailing data: %w", err)
	}
	return fmt.Errorf("json: unexpected trailing token %v", tok)
}
