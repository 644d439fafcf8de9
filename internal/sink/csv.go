package sink

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// ExtraColumn is the last CSV column. It holds, as a JSON object, every key
// of an event that has no column of its own.
const ExtraColumn = "_extra"

// CSVSink appends events as rows of <outputDir>/<name>.csv. The file is
// opened lazily on the first write; when it is new, a header row with the
// keys of that first event (sorted alphabetically for determinism) followed
// by ExtraColumn is written. When the file already exists its header is
// reused.
//
// Strings and numbers are written as-is, nested values as JSON.
type CSVSink struct {
	path    string
	file    *os.File
	writer  *csv.Writer
	headers []string
	// columns maps a header to its index; ExtraColumn is not part of it.
	columns  map[string]int
	hasExtra bool
}

// NewCSVSink prepares a sink writing <outputDir>/<name>.csv, creating the
// directory tree if it doesn't already exist.
func NewCSVSink(outputDir, name string) (*CSVSink, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create csv output directory: %w", err)
	}
	return &CSVSink{path: filepath.Join(outputDir, name+".csv")}, nil
}

// Path returns the file the sink writes to.
func (s *CSVSink) Path() string { return s.path }

// Write appends the provided event as a CSV row. An event with keys that fit
// neither a column nor ExtraColumn is refused as a whole.
func (s *CSVSink) Write(evt Event) error {
	if s.writer == nil {
		if err := s.open(evt); err != nil {
			return err
		}
	}

	row := make([]string, len(s.headers))
	extra := make(map[string]interface{})
	for key, v := range evt {
		i, ok := s.columns[key]
		if !ok {
			extra[key] = v
			continue
		}
		cell, err := csvCell(v)
		if err != nil {
			return fmt.Errorf("csv sink %s: field %s: %w", s.path, key, err)
		}
		row[i] = cell
	}

	if len(extra) > 0 {
		if !s.hasExtra {
			return fmt.Errorf("csv sink %s: fields %v have no column", s.path, sortedKeys(extra))
		}
		b, err := json.Marshal(extra)
		if err != nil {
			return fmt.Errorf("csv sink %s: extra fields: %w", s.path, err)
		}
		row[len(row)-1] = string(b)
	}

	if err := s.writer.Write(row); err != nil {
		return err
	}
	s.writer.Flush()
	return s.writer.Error()
}

func (s *CSVSink) open(evt Event) error {
	headers, err := readHeader(s.path)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open csv file %s: %w", s.path, err)
	}

	w := csv.NewWriter(f)
	if headers == nil {
		headers = append(extractHeaders(evt), ExtraColumn)
		if err := w.Write(headers); err != nil {
			f.Close()
			return fmt.Errorf("failed to write csv header for %s: %w", s.path, err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return fmt.Errorf("failed to flush csv header for %s: %w", s.path, err)
		}
	}

	s.hasExtra = headers[len(headers)-1] == ExtraColumn
	s.columns = make(map[string]int, len(headers))
	for i, h := range headers {
		if s.hasExtra && i == len(headers)-1 {
			break
		}
		s.columns[h] = i
	}
	s.file, s.writer, s.headers = f, w, headers
	return nil
}

// readHeader returns the header row of an existing CSV file, or nil when the
// file does not exist or is empty.
func readHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open csv file %s: %w", path, err)
	}
	defer f.Close()

	headers, err := csv.NewReader(f).Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header of %s: %w", path, err)
	}
	return headers, nil
}

// Close flushes and closes the file. A sink that never received an event
// has nothing to close.
func (s *CSVSink) Close(_ context.Context) error {
	if s.file == nil {
		return nil
	}
	s.writer.Flush()
	werr := s.writer.Error()
	cerr := s.file.Close()
	s.file, s.writer = nil, nil
	if werr != nil {
		return werr
	}
	return cerr
}

func csvCell(v interface{}) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case bool, int, int32, int64, float32, float64, json.Number:
		return fmt.Sprint(t), nil
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}

// extractHeaders returns a deterministic, alphabetically-sorted slice of map
// keys which will be used as CSV columns.
func extractHeaders(evt Event) []string {
	headers := make([]string, 0, len(evt))
	for k := range evt {
		if k == ExtraColumn {
			continue
		}
		headers = append(headers, k)
	}
	sort.Strings(headers)
	return headers
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
