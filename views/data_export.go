package views

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"sync"

	"sensor-fdir/models"
)

// CSVWriter is a concurrency-safe, buffered CSV writer for the fused-output
// logs.
//
//   - The bufio.Writer absorbs write syscall overhead.
//   - The mutex is held only for a single row encode.
//   - Flush is driven by the recording controller's flusher, so the fusion
//     loop never waits on disk I/O.
type CSVWriter struct {
	mu   sync.Mutex
	file *os.File
	buf  *bufio.Writer
	csv  *csv.Writer
	rows uint64
}

// NewCSVWriter creates the file and writes the header row.
func NewCSVWriter(path string, bufSizeBytes int, writeHeader bool, header []string) (*CSVWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv create %s: %w", path, err)
	}

	if bufSizeBytes <= 0 {
		bufSizeBytes = 64 * 1024
	}

	bw := bufio.NewWriterSize(f, bufSizeBytes)
	cw := csv.NewWriter(bw)

	w := &CSVWriter{
		file: f,
		buf:  bw,
		csv:  cw,
	}

	if writeHeader && len(header) > 0 {
		if err := cw.Write(header); err != nil {
			f.Close()
			return nil, fmt.Errorf("csv write header: %w", err)
		}
	}

	return w, nil
}

// WriteRow appends a single CSV row. Thread-safe.
func (w *CSVWriter) WriteRow(row []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.csv.Write(row); err != nil {
		return fmt.Errorf("csv write %s: %w", w.file.Name(), err)
	}
	w.rows++
	return nil
}

// WriteRecord appends the row form of rec.
func (w *CSVWriter) WriteRecord(rec models.CSVRowWriter) error {
	return w.WriteRow(rec.CSVRow())
}

// Flush pushes the buffered data to the OS.
func (w *CSVWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return fmt.Errorf("csv flush %s: %w", w.file.Name(), err)
	}
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("csv flush %s: %w", w.file.Name(), err)
	}
	return nil
}

// Close flushes remaining data and closes the file.
func (w *CSVWriter) Close() error {
	flushErr := w.Flush()
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.file.Close(); err != nil {
		return err
	}
	return flushErr
}

// Path returns the file being written.
func (w *CSVWriter) Path() string { return w.file.Name() }

// Rows returns the number of data rows written (excludes header).
func (w *CSVWriter) Rows() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rows
}
