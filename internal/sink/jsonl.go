package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// JSONLSink appends one JSON document per line to a file. Output is
// buffered and flushed on Close.
type JSONLSink struct {
	path string
	file *os.File
	buf  *bufio.Writer
	enc  *json.Encoder
}

// NewJSONLSink opens (or creates) path for appending.
func NewJSONLSink(path string) (*JSONLSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create jsonl output directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open jsonl file %s: %w", path, err)
	}
	buf := bufio.NewWriter(f)
	return &JSONLSink{path: path, file: f, buf: buf, enc: json.NewEncoder(buf)}, nil
}

// Write encodes evt as a single line.
func (s *JSONLSink) Write(evt Event) error {
	if s.file == nil {
		return fmt.Errorf("jsonl sink %s is closed", s.path)
	}
	return s.enc.Encode(evt)
}

// Close flushes buffered lines and closes the file.
func (s *JSONLSink) Close(_ context.Context) error {
	if s.file == nil {
		return nil
	}
	ferr := s.buf.Flush()
	cerr := s.file.Close()
	s.file = nil
	if ferr != nil {
		return fmt.Errorf("failed to flush jsonl file %s: %w", s.path, ferr)
	}
	return cerr
}
