package pipeline

import (
	"bufio"
	"encoding/json"

	"go.uber.org/zap"

	"datacleaner/internal"
)

// JSONSink writes records as objects keyed by column name, in column
// order. Lines selects JSON Lines instead of a single indented array.
type JSONSink struct {
	Lines bool
	Log   *zap.Logger
}

func (s *JSONSink) Write(table internal.Table, outputPath string) error {
	err := writeFile(outputPath, func(w *bufio.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		if s.Lines {
			for _, rec := range table.Records {
				if err := enc.Encode(rec); err != nil {
					return err
				}
			}
			return nil
		}
		enc.SetIndent("", "  ")
		records := table.Records
		if records == nil {
			records = []internal.Record{}
		}
		return enc.Encode(records)
	})
	if err != nil {
		return err
	}
	if s.Log != nil {
		msg := "saved json"
		if s.Lines {
			msg = "saved jsonl"
		}
		s.Log.Info(msg, zap.String("path", outputPath), zap.Int("records", table.Len()))
	}
	return nil
}
