package artifact

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// AtomicWriter writes to a temp file beside the target and renames it over
// the target on Commit, so readers never observe a partial file.
type AtomicWriter struct {
	path    string
	tmpPath string
	file    *os.File
	done    bool
}

// NewAtomicWriter creates the temp file, creating parent directories as needed.
func NewAtomicWriter(path string) (*AtomicWriter, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "artifact: create directory %s", dir)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, eris.Wrapf(err, "artifact: create temp file for %s", path)
	}
	return &AtomicWriter{path: path, tmpPath: f.Name(), file: f}, nil
}

func (w *AtomicWriter) Write(p []byte) (int, error) {
	return w.file.Write(p)
}

// Commit fsyncs the temp file and renames it over the target.
func (w *AtomicWriter) Commit() error {
	if w.done {
		return eris.New("artifact: writer already finished")
	}
	w.done = true
	if err := w.file.Sync(); err != nil {
		_ = w.file.Close()
		_ = os.Remove(w.tmpPath)
		return eris.Wrap(err, "artifact: sync")
	}
	if err := w.file.Close(); err != nil {
		_ = os.Remove(w.tmpPath)
		return eris.Wrap(err, "artifact: close")
	}
	if err := os.Rename(w.tmpPath, w.path); err != nil {
		_ = os.Remove(w.tmpPath)
		return eris.Wrapf(err, "artifact: rename to %s", w.path)
	}
	return nil
}

// Abort discards the temp file. Calling it after Commit is a no-op.
func (w *AtomicWriter) Abort() {
	if w.done {
		return
	}
	w.done = true
	_ = w.file.Close()
	_ = os.Remove(w.tmpPath)
}

// WriteAtomic writes everything fn produces to path atomically. If fn fails
// the target is left untouched.
func WriteAtomic(path string, fn func(io.Writer) error) error {
	w, err := NewAtomicWriter(path)
	if err != nil {
		return err
	}
	if err := fn(w); err != nil {
		w.Abort()
		return err
	}
	return w.Commit()
}
