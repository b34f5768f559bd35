package storage

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// maxLine bounds a single query log record.
const maxLine = 10 << 20

// FileRecorder appends events as JSON lines to one file. It is safe for
// concurrent use; each event is written with a single write call.
type FileRecorder struct {
	path string

	mu sync.Mutex
	f  *os.File
}

// NewFileRecorder creates the log file and its directory if needed and
// keeps it open for appending.
func NewFileRecorder(path string) (*FileRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to ensure log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open query log: %w", err)
	}
	return &FileRecorder{path: path, f: f}, nil
}

func (r *FileRecorder) Path() string { return r.path }

func (r *FileRecorder) AppendEvent(event Event) error {
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	line = append(line, '\n')

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return errClosed
	}
	if _, err := r.f.Write(line); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// LoadEvents reads every event in file order. Lines that fail to decode
// are skipped.
func (r *FileRecorder) LoadEvents() ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("open query log: %w", err)
	}
	defer f.Close()

	s := bufio.NewScanner(f)
	s.Buffer(make([]byte, 0, 64<<10), maxLine)
	var events []Event
	for s.Scan() {
		line := bytes.TrimSpace(s.Bytes())
		if len(line) == 0 {
			continue
		}
		var ev Event
		if json.Unmarshal(line, &ev) != nil {
			continue
		}
		events = append(events, ev)
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("scan query log: %w", err)
	}
	return events, nil
}

// Close releases the file. Later appends fail.
func (r *FileRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f = nil
	return err
}

var errClosed = errors.New("query log is closed")
