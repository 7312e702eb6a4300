package runtime

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// BinaryFinder resolves a runtime executable. Paths containing a
// separator are used as-is; bare names are checked against known
// install locations before falling back to PATH lookup.
type BinaryFinder struct {
	name       string
	knownPaths []string
}

// FinderOption configures a BinaryFinder.
type FinderOption func(*BinaryFinder)

// WithKnownPaths sets priority-ordered locations to check before PATH.
// Entries may contain "~" for the home directory and "{name}" for the
// binary name.
func WithKnownPaths(paths ...string) FinderOption {
	return func(f *BinaryFinder) {
		f.knownPaths = paths
	}
}

// NewBinaryFinder creates a finder for the given executable name or
// path.
func NewBinaryFinder(name string, opts ...FinderOption) *BinaryFinder {
	f := &BinaryFinder{name: name}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Find returns the resolved executable path.
func (f *BinaryFinder) Find() (string, error) {
	if f.name == "" {
		return "", fmt.Errorf("binary finder: name is required")
	}

	// Explicit paths bypass the search entirely.
	if strings.ContainsRune(f.name, os.PathSeparator) {
		if isExecutable(f.name) {
			return f.name, nil
		}
		return "", fmt.Errorf("binary finder: %s is not an executable file", f.name)
	}

	for _, p := range f.knownPaths {
		candidate := f.expand(p)
		if candidate == "" {
			continue
		}
		if isExecutable(candidate) {
			return candidate, nil
		}
	}

	path, err := exec.LookPath(f.name)
	if err != nil {
		return "", fmt.Errorf("binary finder: %s not found: %w", f.name, err)
	}
	return path, nil
}

// expand substitutes "~" and "{name}" in a known-path entry.
func (f *BinaryFinder) expand(p string) string {
	p = strings.ReplaceAll(p, "{name}", f.name)
	if strings.HasPrefix(p, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		p = filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return p
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode()&0o111 != 0
}
