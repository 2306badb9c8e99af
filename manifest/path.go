package manifest

import (
	"strings"

	"github.com/zeroinstall-go/zeroinstall/zerr"
)

// Reserved path components that would collide with files the store writes
// itself, or that the line format cannot represent.
const (
	reservedManifest = ".manifest"
	reservedXBit     = ".xbit"
	reservedSymlink  = ".symlink"
)

// ValidatePath enforces the path-safety rules: no path
// component may equal one of the three reserved names, and no path may
// contain a newline (which would corrupt the line-oriented serialization).
// Exported so that package builder can apply the identical rule before ever
// touching the filesystem.
func ValidatePath(p string) error {
	if strings.Contains(p, "\n") {
		return zerr.New(zerr.InvalidData, "path %q contains a newline", p)
	}
	for _, part := range strings.Split(p, "/") {
		if IsReservedName(part) {
			return zerr.New(zerr.InvalidData, "path %q uses a reserved name %q", p, part)
		}
	}
	return nil
}

func validatePath(p string) error { return ValidatePath(p) }

// IsReservedName reports whether name is one of the three path components
// reserved for the store's own bookkeeping files, which a manifest can
// never legitimately contain. Exported so readers that replay an on-disk
// tree (package readdirectory) can skip them the same way ValidatePath
// would reject them.
func IsReservedName(name string) bool {
	switch name {
	case reservedManifest, reservedXBit, reservedSymlink:
		return true
	}
	return false
}

// pathKey rewrites a path so that ordinal byte comparison of the rewritten
// form reproduces the manifest ordering invariant: '/' sorts lower than any
// other byte, so an ancestor directory always sorts before its descendants,
// and among siblings the comparison falls through to ordinal name order.
func pathKey(p string) string {
	return strings.ReplaceAll(p, "/", "\x00")
}

// pathLess implements the total order over directory paths used when
// producing canonical manifest lines.
func pathLess(a, b string) bool {
	return pathKey(a) < pathKey(b)
}
