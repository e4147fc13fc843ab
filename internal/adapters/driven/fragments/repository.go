// Package fragments stores fragment files on the local filesystem and
// watches the user directory for edits.
package fragments

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/contentsync/internal/core/ports/driven"
)

// Ext is the extension of every fragment and document file.
const Ext = ".graphql"

// Ensure Repository implements the interface.
var _ driven.FragmentRepository = (*Repository)(nil)

// Repository is a filesystem driven.FragmentRepository.
type Repository struct {
	userDir  string
	workDir  string
	debugDir string
}

// NewRepository creates a repository over the three directories. An empty
// debugDir disables debug output.
func NewRepository(userDir, workDir, debugDir string) *Repository {
	return &Repository{userDir: userDir, workDir: workDir, debugDir: debugDir}
}

// UserDir returns the directory holding user fragments.
func (r *Repository) UserDir() string {
	return r.userDir
}

// UserFragments reads every *.graphql file of the user directory.
// A missing directory yields no fragments.
func (r *Repository) UserFragments(_ context.Context) (map[string]string, error) {
	entries, err := os.ReadDir(r.userDir)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading fragments directory: %w", err)
	}

	out := make(map[string]string, len(entries))
	for _, e := range entries {
		if !IsFragmentFile(e.Name()) || e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(r.userDir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading fragment %s: %w", e.Name(), err)
		}
		out[strings.TrimSuffix(e.Name(), Ext)] = string(data)
	}
	return out, nil
}

// WriteUserFragment creates <name>.graphql unless it already exists.
func (r *Repository) WriteUserFragment(_ context.Context, name, source string) (bool, error) {
	if err := os.MkdirAll(r.userDir, 0755); err != nil {
		return false, fmt.Errorf("creating fragments directory: %w", err)
	}
	f, err := os.OpenFile(r.path(r.userDir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if errors.Is(err, fs.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("creating fragment %s: %w", name, err)
	}
	if _, err := f.WriteString(source); err != nil {
		f.Close()
		return false, fmt.Errorf("writing fragment %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return false, fmt.Errorf("writing fragment %s: %w", name, err)
	}
	return true, nil
}

// ResetWorking empties the working directory.
func (r *Repository) ResetWorking(_ context.Context) error {
	if sameDir(r.workDir, r.userDir) {
		return fmt.Errorf("working directory %s is the user fragment directory", r.workDir)
	}
	if err := os.RemoveAll(r.workDir); err != nil {
		return fmt.Errorf("clearing working fragments: %w", err)
	}
	if err := os.MkdirAll(r.workDir, 0755); err != nil {
		return fmt.Errorf("creating working fragments directory: %w", err)
	}
	return nil
}

// WriteWorking writes <name>.graphql to the working directory.
func (r *Repository) WriteWorking(_ context.Context, name, source string) error {
	return writeFile(r.workDir, r.path(r.workDir, name), source)
}

// WriteDebug writes <name>.graphql to the debug directory.
func (r *Repository) WriteDebug(_ context.Context, name, source string) error {
	if r.debugDir == "" {
		return nil
	}
	return writeFile(r.debugDir, r.path(r.debugDir, name), source)
}

func sameDir(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

func (r *Repository) path(dir, name string) string {
	return filepath.Join(dir, filepath.Base(name)+Ext)
}

func writeFile(dir, path, source string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	if err := os.WriteFile(path, []byte(source), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// IsFragmentFile reports whether name is a visible *.graphql file.
func IsFragmentFile(name string) bool {
	base := filepath.Base(name)
	return strings.HasSuffix(base, Ext) && !strings.HasPrefix(base, ".")
}
