package driven

import "context"

// FragmentRepository reads and writes fragment files.
//
// Three locations are involved: the user directory holding hand-edited
// fragments, the working set the sourcing plan is compiled from, and the
// debug directory receiving compiled documents.
type FragmentRepository interface {
	// UserFragments returns user fragment sources keyed by file stem.
	UserFragments(ctx context.Context) (map[string]string, error)

	// WriteUserFragment creates a user fragment unless the file exists.
	// It reports whether the file was written.
	WriteUserFragment(ctx context.Context, name, source string) (bool, error)

	// ResetWorking removes every file from the working set.
	ResetWorking(ctx context.Context) error

	// WriteWorking writes one file of the working set.
	WriteWorking(ctx context.Context, name, source string) error

	// WriteDebug writes a compiled document to the debug directory.
	WriteDebug(ctx context.Context, name, source string) error
}
