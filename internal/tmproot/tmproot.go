// Package tmproot manages loom's process-wide temporary directory
// (spec §4.11): created exactly once per process, removed recursively at
// exit, with a tmpfiles subdirectory fresh files are handed out from.
package tmproot

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// Root is the process-wide temporary directory. Create it once with New
// and pass it down to every component that needs a scratch path — the
// template `tmpdir` function, fs-kind variable storage, and Engine setup
// all share the same Root.
type Root struct {
	dir string

	mu      sync.Mutex
	counter int
}

// New creates a fresh temporary directory (and its tmpfiles
// subdirectory) under the OS default temp root, named uniquely so
// concurrent loom invocations never collide.
func New() (*Root, error) {
	base := filepath.Join(os.TempDir(), "loom-"+uuid.NewString())
	if err := os.MkdirAll(filepath.Join(base, "tmpfiles"), 0o755); err != nil {
		return nil, fmt.Errorf("create temp root %s: %w", base, err)
	}
	return &Root{dir: base}, nil
}

// Dir returns the root directory's absolute path.
func (r *Root) Dir() string { return r.dir }

// FsVarsDir returns the directory filesystem-backed variables are
// persisted under ($TMPDIR/fs_vars/simple).
func (r *Root) FsVarsDir() string {
	return filepath.Join(r.dir, "fs_vars", "simple")
}

// Tmpfile returns a fresh path under the tmpfiles subdirectory. The file
// is not created; callers create or write it as needed.
func (r *Root) Tmpfile() string {
	r.mu.Lock()
	r.counter++
	n := r.counter
	r.mu.Unlock()
	return filepath.Join(r.dir, "tmpfiles", fmt.Sprintf("%d-%s", n, uuid.NewString()))
}

// Close removes the temporary directory and everything under it. Callers
// arrange for this to run at process exit (defer in main, or via a
// signal-aware wrapper).
func (r *Root) Close() error {
	if err := os.RemoveAll(r.dir); err != nil {
		return fmt.Errorf("remove temp root %s: %w", r.dir, err)
	}
	return nil
}
