package builder

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeroinstall-go/zeroinstall/manifest"
	"github.com/zeroinstall-go/zeroinstall/zerr"
)

// DirectoryBuilder materializes a tree under a single root directory on
// disk, the way a filesystem storage driver writes blobs under
// its root: every path is validated and resolved relative to Root before any
// syscall touches it, so a malicious ".." component can never escape it.
//
// If Inner is set, every operation that succeeds on disk is replayed against
// Inner afterward — normally a ManifestBuilder, so that a single walk both
// writes files and accumulates their manifest digest.
type DirectoryBuilder struct {
	// Root is the absolute filesystem path new entries are created under.
	Root string

	// Inner, if non-nil, receives every operation after it succeeds on
	// disk. It only needs to implement Builder if Rename/Remove/
	// MarkExecutable/TurnIntoSymlink will be called; AddDir/AddFile/
	// AddSymlink/AddHardlink only require ForwardOnlyBuilder.
	Inner ForwardOnlyBuilder

	// AllowedHardlinkRoot additionally confines where AddHardlink's target
	// may resolve to, as an absolute path or a path relative to Root; it
	// defaults to Root itself. Set this narrower than Root to keep a
	// composed builder (for instance one reached through a PrefixBuilder)
	// from hardlinking to content materialized outside the subtree it is
	// meant to populate.
	AllowedHardlinkRoot string
}

// NewDirectoryBuilder returns a DirectoryBuilder rooted at root, which must
// already exist.
func NewDirectoryBuilder(root string) *DirectoryBuilder {
	return &DirectoryBuilder{Root: root}
}

func (b *DirectoryBuilder) innerBuilder() (Builder, bool) {
	if b.Inner == nil {
		return nil, false
	}
	full, ok := b.Inner.(Builder)
	return full, ok
}

// allowedHardlinkRoot resolves AllowedHardlinkRoot against Root, defaulting
// to Root itself when unset.
func (b *DirectoryBuilder) allowedHardlinkRoot() string {
	if b.AllowedHardlinkRoot == "" {
		return b.Root
	}
	if filepath.IsAbs(b.AllowedHardlinkRoot) {
		return b.AllowedHardlinkRoot
	}
	return filepath.Join(b.Root, b.AllowedHardlinkRoot)
}

// isWithin reports whether child, once cleaned, lies at or under root.
func isWithin(root, child string) bool {
	root = filepath.Clean(root)
	child = filepath.Clean(child)
	if root == child {
		return true
	}
	return strings.HasPrefix(child, root+string(filepath.Separator))
}

// resolve validates p and returns its absolute path under Root.
func (b *DirectoryBuilder) resolve(p string) (string, error) {
	clean := strings.Trim(p, "/")
	if clean != "" {
		if err := manifest.ValidatePath(clean); err != nil {
			return "", err
		}
	}
	for _, part := range strings.Split(clean, "/") {
		if part == ".." {
			return "", zerr.New(zerr.InvalidData, "path %q escapes the build root", p)
		}
	}
	return filepath.Join(b.Root, filepath.FromSlash(clean)), nil
}

func (b *DirectoryBuilder) AddDir(p string) error {
	full, err := b.resolve(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(full, 0o755); err != nil {
		return zerr.Wrap(zerr.IO, err, "mkdir %q", p)
	}
	if b.Inner != nil {
		return b.Inner.AddDir(p)
	}
	return nil
}

func (b *DirectoryBuilder) AddFile(p string, r io.Reader, mtime int64, size int64, executable bool) error {
	full, err := b.resolve(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return zerr.Wrap(zerr.IO, err, "mkdir %q", filepath.Dir(p))
	}
	_ = os.Remove(full)
	mode := os.FileMode(0o644)
	if executable {
		mode = 0o755
	}
	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return zerr.Wrap(zerr.IO, err, "create %q", p)
	}
	n, err := io.Copy(f, r)
	closeErr := f.Close()
	if err != nil {
		return zerr.Wrap(zerr.IO, err, "write %q", p)
	}
	if closeErr != nil {
		return zerr.Wrap(zerr.IO, closeErr, "write %q", p)
	}
	if n != size {
		return zerr.New(zerr.InvalidData, "write %q: declared size %d, wrote %d", p, size, n)
	}
	mt := timeFromUnix(mtime)
	if err := os.Chtimes(full, mt, mt); err != nil {
		return zerr.Wrap(zerr.IO, err, "set mtime %q", p)
	}

	if b.Inner != nil {
		// Re-opening the file from disk for the replay, rather than teeing
		// the original reader, keeps the write and the replay independent:
		// the write always completes (or fails) entirely on its own first.
		tee, err := os.Open(full)
		if err != nil {
			return zerr.Wrap(zerr.IO, err, "reopen %q for manifest replay", p)
		}
		defer tee.Close()
		return b.Inner.AddFile(p, tee, mtime, size, executable)
	}
	return nil
}

func (b *DirectoryBuilder) AddSymlink(p string, target string) error {
	full, err := b.resolve(p)
	if err != nil {
		return err
	}
	_ = os.Remove(full)
	if err := os.Symlink(target, full); err != nil {
		return zerr.Wrap(zerr.IO, err, "symlink %q", p)
	}
	if b.Inner != nil {
		return b.Inner.AddSymlink(p, target)
	}
	return nil
}

// AddHardlink hardlinks path to the file already materialized at target
// within this same Root. If the destination filesystem does not support
// hardlinks (cross-device, or a filesystem like FAT that lacks them
// entirely), it returns zerr.NotSupported so the caller can retry as a plain
// AddFile using the same content.
func (b *DirectoryBuilder) AddHardlink(p string, target string, executable bool) error {
	full, err := b.resolve(p)
	if err != nil {
		return err
	}
	targetFull, err := b.resolve(target)
	if err != nil {
		return err
	}
	if allowed := b.allowedHardlinkRoot(); !isWithin(allowed, targetFull) {
		return zerr.New(zerr.NotSupported, "hardlink target %q escapes allowed root %q", target, allowed)
	}
	_ = os.Remove(full)
	if err := os.Link(targetFull, full); err != nil {
		return zerr.Wrap(zerr.NotSupported, err, "hardlink %q -> %q", p, target)
	}
	if b.Inner != nil {
		return b.Inner.AddHardlink(p, target, executable)
	}
	return nil
}

func (b *DirectoryBuilder) Rename(from, to string) error {
	fullFrom, err := b.resolve(from)
	if err != nil {
		return err
	}
	fullTo, err := b.resolve(to)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullTo), 0o755); err != nil {
		return zerr.Wrap(zerr.IO, err, "mkdir %q", filepath.Dir(to))
	}
	if err := os.Rename(fullFrom, fullTo); err != nil {
		return zerr.Wrap(zerr.IO, err, "rename %q -> %q", from, to)
	}
	if inner, ok := b.innerBuilder(); ok {
		return inner.Rename(from, to)
	}
	return nil
}

func (b *DirectoryBuilder) Remove(p string) error {
	full, err := b.resolve(p)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(full); err != nil {
		return zerr.Wrap(zerr.IO, err, "remove %q", p)
	}
	if inner, ok := b.innerBuilder(); ok {
		return inner.Remove(p)
	}
	return nil
}

func (b *DirectoryBuilder) MarkExecutable(p string, executable bool) error {
	full, err := b.resolve(p)
	if err != nil {
		return err
	}
	mode := os.FileMode(0o644)
	if executable {
		mode = 0o755
	}
	if err := os.Chmod(full, mode); err != nil {
		return zerr.Wrap(zerr.IO, err, "chmod %q", p)
	}
	if inner, ok := b.innerBuilder(); ok {
		return inner.MarkExecutable(p, executable)
	}
	return nil
}

func (b *DirectoryBuilder) TurnIntoSymlink(p string) error {
	full, err := b.resolve(p)
	if err != nil {
		return err
	}
	if fi, err := os.Lstat(full); err == nil && fi.Mode()&os.ModeSymlink != 0 {
		return nil
	}
	content, err := os.ReadFile(full)
	if err != nil {
		return zerr.Wrap(zerr.IO, err, "read %q", p)
	}
	if err := os.Remove(full); err != nil {
		return zerr.Wrap(zerr.IO, err, "remove %q", p)
	}
	if err := os.Symlink(string(content), full); err != nil {
		return zerr.Wrap(zerr.IO, err, "symlink %q", p)
	}
	if inner, ok := b.innerBuilder(); ok {
		return inner.TurnIntoSymlink(p)
	}
	return nil
}
