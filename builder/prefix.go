package builder

import (
	"io"
	"path"
	"strings"
)

// PrefixBuilder rewrites every path passed to it by prepending Prefix before
// forwarding the call to Inner. It is how a recipe's RenameStep or a
// multi-root recipe assembles several builder targets into one combined
// tree rooted at different subdirectories, without every
// RetrievalMethod needing to know where in the final tree it lands.
type PrefixBuilder struct {
	Prefix string
	Inner  ForwardOnlyBuilder
}

// NewPrefixBuilder returns a PrefixBuilder that forwards to inner with every
// path rooted under prefix.
func NewPrefixBuilder(prefix string, inner ForwardOnlyBuilder) *PrefixBuilder {
	return &PrefixBuilder{Prefix: strings.Trim(prefix, "/"), Inner: inner}
}

func (b *PrefixBuilder) join(p string) string {
	if b.Prefix == "" {
		return p
	}
	return path.Join(b.Prefix, p)
}

func (b *PrefixBuilder) inner() (Builder, bool) {
	full, ok := b.Inner.(Builder)
	return full, ok
}

func (b *PrefixBuilder) AddDir(p string) error {
	return b.Inner.AddDir(b.join(p))
}

func (b *PrefixBuilder) AddFile(p string, r io.Reader, mtime int64, size int64, executable bool) error {
	return b.Inner.AddFile(b.join(p), r, mtime, size, executable)
}

func (b *PrefixBuilder) AddSymlink(p string, target string) error {
	return b.Inner.AddSymlink(b.join(p), target)
}

func (b *PrefixBuilder) AddHardlink(p string, target string, executable bool) error {
	return b.Inner.AddHardlink(b.join(p), b.join(target), executable)
}

func (b *PrefixBuilder) Rename(from, to string) error {
	inner, ok := b.inner()
	if !ok {
		return errNotSupported("Rename")
	}
	return inner.Rename(b.join(from), b.join(to))
}

func (b *PrefixBuilder) Remove(p string) error {
	inner, ok := b.inner()
	if !ok {
		return errNotSupported("Remove")
	}
	return inner.Remove(b.join(p))
}

func (b *PrefixBuilder) MarkExecutable(p string, executable bool) error {
	inner, ok := b.inner()
	if !ok {
		return errNotSupported("MarkExecutable")
	}
	return inner.MarkExecutable(b.join(p), executable)
}

func (b *PrefixBuilder) TurnIntoSymlink(p string) error {
	inner, ok := b.inner()
	if !ok {
		return errNotSupported("TurnIntoSymlink")
	}
	return inner.TurnIntoSymlink(b.join(p))
}
