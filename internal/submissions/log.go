// Package submissions appends client-posted JSON documents to a line-delimited log file.
package submissions

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrInvalidJSON is returned when a submission body is not a JSON document.
var ErrInvalidJSON = errors.New("invalid JSON")

// Log writes one compacted JSON document per line.
// Appends are serialized so concurrent writers never interleave lines.
type Log struct {
	path string
	mu   sync.Mutex
}

// NewLog returns a Log appending to path. The file and its parent directory are
// created on first write.
func NewLog(path string) *Log {
	return &Log{path: path}
}

// Path returns the log file path.
func (l *Log) Path() string {
	return l.path
}

// Append validates body as JSON and appends it as a single line.
// Invalid JSON returns an error wrapping ErrInvalidJSON; I/O failures are returned unwrapped.
func (l *Log) Append(body []byte) error {
	var buf bytes.Buffer
	if err := json.Compact(&buf, bytes.TrimSpace(body)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if buf.Len() == 0 {
		return ErrInvalidJSON
	}
	buf.WriteByte('\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if dir := filepath.Dir(l.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open submissions log: %w", err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		_ = f.Close()
		return fmt.Errorf("write submissions log: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close submissions log: %w", err)
	}
	return nil
}
