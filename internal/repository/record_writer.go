package repository

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"ChainPull/internal/domain/repository"
)

// FileRecordWriter appends tab-delimited records to one file per cycle,
// named <dir>/<cycle>.tsv.
type FileRecordWriter struct {
	dir string

	mu    sync.Mutex
	cycle int64
	file  *os.File
}

var _ repository.RecordWriter = (*FileRecordWriter)(nil)

func NewFileRecordWriter(dir string) *FileRecordWriter {
	return &FileRecordWriter{dir: dir}
}

// Write appends one record. Concurrent workers share the writer.
func (w *FileRecordWriter) Write(_ context.Context, cycle int64, record []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil || w.cycle != cycle {
		if err := w.rotate(cycle); err != nil {
			return err
		}
	}

	cw := csv.NewWriter(w.file)
	cw.Comma = '\t'
	if err := cw.Write(record); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	cw.Flush()
	return cw.Error()
}

func (w *FileRecordWriter) rotate(cycle int64) error {
	if w.file != nil {
		_ = w.file.Close()
		w.file = nil
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(w.dir, strconv.FormatInt(cycle, 10)+".tsv")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	w.file = f
	w.cycle = cycle
	return nil
}

func (w *FileRecordWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}
