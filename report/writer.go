package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// indent is the indentation of written reports
const indent = "    "

// Marshal encodes the report as an indented JSON array.  An empty report
// encodes as [].
func Marshal(rep Report) ([]byte, error) {

	if rep == nil {
		rep = Report{}
	}

	data, err := json.MarshalIndent(rep, "", indent)

	if err != nil {
		return nil, fmt.Errorf("error encoding report: %w", err)
	}

	return append(data, '\n'), nil
}

// WriteFile writes the report to path atomically, a temporary file in the
// same directory is synced and renamed over path.  The same bytes are
// mirrored to echo when it is not nil.
func WriteFile(path string, rep Report, echo io.Writer) error {

	data, err := Marshal(rep)

	if err != nil {
		return err
	}

	if err := writeAtomic(path, data); err != nil {
		return err
	}

	if echo != nil {
		if _, err := echo.Write(data); err != nil {
			return fmt.Errorf("error mirroring report: %w", err)
		}
	}

	return nil
}

func writeAtomic(path string, data []byte) error {

	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")

	if err != nil {
		return fmt.Errorf("error creating report file: %w", err)
	}

	// no-op once renamed
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("error writing report: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("error syncing report: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error closing report: %w", err)
	}

	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("error setting report permissions: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("error renaming report: %w", err)
	}

	return nil
}

// CheckWritable verifies a report can be created at path by creating and
// removing a temporary file next to it
func CheckWritable(path string) error {

	dir := filepath.Dir(path)

	info, err := os.Stat(dir)

	if err != nil {
		return fmt.Errorf("output directory %s: %w", dir, err)
	}

	if !info.IsDir() {
		return fmt.Errorf("output directory %s is not a directory", dir)
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")

	if err != nil {
		return fmt.Errorf("output directory %s is not writable: %w", dir, err)
	}

	f.Close()

	return os.Remove(f.Name())
}

// LineWriter writes entries to a JSON Lines file as they complete, every
// line is synced so an interrupted run keeps all finished entries
type LineWriter struct {
	mu   sync.Mutex
	file *os.File
}

// OpenLineWriter creates path, truncating the entries of any earlier run
func OpenLineWriter(path string) (*LineWriter, error) {

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)

	if err != nil {
		return nil, fmt.Errorf("error opening line report: %w", err)
	}

	return &LineWriter{file: f}, nil
}

// Write appends one entry
func (w *LineWriter) Write(e Entry) error {

	var buf bytes.Buffer

	if err := json.NewEncoder(&buf).Encode(e); err != nil {
		return fmt.Errorf("error encoding entry %s: %w", e.ImagePath, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.file.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("error writing entry %s: %w", e.ImagePath, err)
	}

	return w.file.Sync()
}

// Close closes the underlying file
func (w *LineWriter) Close() error {
	return w.file.Close()
}
