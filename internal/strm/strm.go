// Package strm writes pointer files: small text files holding one playable URL.
package strm

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/snapetech/strmsync/internal/logger"
)

// Writer creates or replaces the pointer file at path so that it contains exactly url.
// Implementations must be safe for concurrent use on distinct paths.
type Writer interface {
	Write(path, url string) error
}

// WriteError is a failed pointer write.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string { return fmt.Sprintf("write %s: %v", e.Path, e.Err) }

func (e *WriteError) Unwrap() error { return e.Err }

// FileWriter writes to the local filesystem, creating parent folders as needed.
type FileWriter struct {
	DirMode  os.FileMode // default 0755
	FileMode os.FileMode // default 0644
}

func (w FileWriter) Write(path, url string) error {
	dirMode, fileMode := w.DirMode, w.FileMode
	if dirMode == 0 {
		dirMode = 0o755
	}
	if fileMode == 0 {
		fileMode = 0o644
	}
	if err := os.MkdirAll(filepath.Dir(path), dirMode); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fileMode)
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	_, werr := f.WriteString(url)
	cerr := f.Close()
	if werr != nil {
		return &WriteError{Path: path, Err: werr}
	}
	if cerr != nil {
		return &WriteError{Path: path, Err: cerr}
	}
	return nil
}

// DryRun logs what would be written and touches nothing.
type DryRun struct {
	Log logger.Logger
}

func (d DryRun) Write(path, url string) error {
	log := d.Log
	if log == nil {
		log = logger.Default
	}
	log.Logf("dry-run: would write %s -> %s", path, url)
	return nil
}

// Recorder keeps every write in memory. Useful for tests and previews.
type Recorder struct {
	mu     sync.Mutex
	Files  map[string]string
	Writes int
	// Fail, when set, is consulted first and its error returned for that path.
	Fail func(path string) error
}

func NewRecorder() *Recorder {
	return &Recorder{Files: make(map[string]string)}
}

func (r *Recorder) Write(path, url string) error {
	if r.Fail != nil {
		if err := r.Fail(path); err != nil {
			return &WriteError{Path: path, Err: err}
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Files[path] = url
	r.Writes++
	return nil
}

// Count returns the number of successful writes.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Writes
}

// EnsureDirs creates each directory (and parents).
func EnsureDirs(dirs ...string) error {
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", d, err)
		}
	}
	return nil
}
