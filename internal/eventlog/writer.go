// Package eventlog appends newline-delimited JSON records to a rotating file.
package eventlog

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation limits for the log file. Zero fields use lumberjack's defaults
// except MaxSizeMB, which defaults to 50.
type Rotation struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Writer is safe for concurrent use. A nil *Writer discards records.
type Writer struct {
	mu  sync.Mutex
	out *lumberjack.Logger
}

// New returns a writer appending to path, or nil if path is blank.
func New(path string, rot Rotation) *Writer {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if rot.MaxSizeMB <= 0 {
		rot.MaxSizeMB = 50
	}
	return &Writer{out: &lumberjack.Logger{
		Filename:   path,
		MaxSize:    rot.MaxSizeMB,
		MaxBackups: rot.MaxBackups,
		MaxAge:     rot.MaxAgeDays,
		Compress:   rot.Compress,
	}}
}

// Write appends v as one JSON object followed by '\n'.
func (w *Writer) Write(v any) error {
	if w == nil {
		return nil
	}
	if v == nil {
		return fmt.Errorf("eventlog: nil record")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b = append(b, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	_, err = w.out.Write(b)
	return err
}

func (w *Writer) Rotate() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.out.Rotate()
}

func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.out.Close()
}
