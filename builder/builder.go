// Package builder implements the ForwardOnlyBuilder/Builder interfaces:
// the operation surface that every producer of a new
// implementation tree (the directory reader, recipe steps, and the tests
// that hand-construct trees) drives, and the composable implementations of
// it — a directory on disk, a manifest.Tree, and a path-prefixing wrapper —
// that let those operations be applied to more than one target at once.
//
// The split between ForwardOnlyBuilder and Builder mirrors the base/driver
// wrapper pattern used for storage drivers: a minimal interface
// that every target must support, and a richer one that targets capable of
// in-place mutation (as opposed to a strictly append-only archive extraction)
// can additionally implement.
package builder

import "io"

// ForwardOnlyBuilder is the minimal set of operations required to lay out a
// tree from scratch: directories and entries are only ever added, never
// renamed or removed. Archive extraction only ever needs
// this much.
type ForwardOnlyBuilder interface {
	// AddDir creates path as a directory, along with any missing ancestors.
	// Adding an already-present directory is not an error.
	AddDir(path string) error

	// AddFile creates path as a file with the given content, modification
	// time (Unix seconds), and executable bit, reading exactly size bytes
	// from r.
	AddFile(path string, r io.Reader, mtime int64, size int64, executable bool) error

	// AddSymlink creates path as a symlink whose target is the literal
	// string target.
	AddSymlink(path string, target string) error

	// AddHardlink creates path as a hard link to the file already present
	// at target (a path previously passed to AddFile on this same
	// builder). Implementations that cannot honor this on their
	// destination filesystem return a *zerr.Error of zerr.NotSupported;
	// callers are then expected to retry as an ordinary AddFile using the
	// same content.
	AddHardlink(path string, target string, executable bool) error
}

// Builder extends ForwardOnlyBuilder with the in-place mutations that
// applying a 0install <recipe> needs: renaming, removing, and
// retroactively changing an entry already added in this build.
type Builder interface {
	ForwardOnlyBuilder

	// Rename moves the file, symlink, or directory subtree at from to to.
	Rename(from, to string) error

	// Remove deletes the file, symlink, or directory subtree at path.
	Remove(path string) error

	// MarkExecutable sets or clears the executable bit of the file at path.
	MarkExecutable(path string, executable bool) error

	// TurnIntoSymlink replaces the file at path with a symlink whose target
	// is the file's current content, interpreted as a UTF-8 string.
	TurnIntoSymlink(path string) error
}
