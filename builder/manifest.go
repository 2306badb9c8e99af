package builder

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/zeroinstall-go/zeroinstall/digest"
	"github.com/zeroinstall-go/zeroinstall/internal/zlog"
	"github.com/zeroinstall-go/zeroinstall/manifest"
	"github.com/zeroinstall-go/zeroinstall/zerr"
)

// appleDoublePrefix marks the "._name" resource-fork shadow file some archivers
// (notably macOS's ditto/tar) emit alongside every real entry. These are
// silently dropped rather than hashed into the
// manifest, since they carry no content the rest of the ecosystem looks at.
const appleDoublePrefix = "._"

// ManifestBuilder implements Builder by recording every operation into a
// manifest.Tree instead of touching a filesystem. It is normally composed
// behind a DirectoryBuilder so that a single walk both materializes files on
// disk and produces their digest in one pass.
//
// format selects the hash function used for per-file content digests
// (SHA-1 for sha1new implementations, SHA-256 for sha256/sha256new ones);
// the content digest itself is always rendered base16 regardless of the
// manifest digest's own encoding.
type ManifestBuilder struct {
	tree   *manifest.Tree
	format digest.Format
}

// NewManifestBuilder returns a ManifestBuilder over a fresh, empty tree,
// hashing file and symlink content with format's hash function.
func NewManifestBuilder(format digest.Format) *ManifestBuilder {
	return &ManifestBuilder{tree: manifest.New(), format: format}
}

// Tree returns the tree accumulated so far. The caller must not add more
// entries through the builder while concurrently reading the tree.
func (b *ManifestBuilder) Tree() *manifest.Tree { return b.tree }

func isAppleDouble(p string) bool {
	return strings.HasPrefix(path.Base(p), appleDoublePrefix)
}

func (b *ManifestBuilder) AddDir(p string) error {
	return b.tree.AddDir(strings.Trim(p, "/"))
}

func (b *ManifestBuilder) AddFile(p string, r io.Reader, mtime int64, size int64, executable bool) error {
	if isAppleDouble(p) {
		zlog.GetLogger(context.Background()).Debugf("manifest builder: dropping AppleDouble file %q", p)
		_, err := io.Copy(io.Discard, r)
		return err
	}
	dirPath, name := splitRel(p)
	if err := b.tree.AddDir(dirPath); err != nil {
		return err
	}
	d, n, err := digest.SumReader(b.format, r)
	if err != nil {
		return zerr.Wrap(zerr.IO, err, "manifest builder: hash %q", p)
	}
	if n != size {
		return zerr.New(zerr.InvalidData, "manifest builder: %q declared size %d, read %d", p, size, n)
	}
	var entry manifest.Entry
	if executable {
		entry = manifest.ExecutableFile{Digest: d, ModTime: mtime, Size: size}
	} else {
		entry = manifest.NormalFile{Digest: d, ModTime: mtime, Size: size}
	}
	return b.tree.Put(dirPath, name, entry)
}

func (b *ManifestBuilder) AddSymlink(p string, target string) error {
	if isAppleDouble(p) {
		zlog.GetLogger(context.Background()).Debugf("manifest builder: dropping AppleDouble symlink %q", p)
		return nil
	}
	dirPath, name := splitRel(p)
	if err := b.tree.AddDir(dirPath); err != nil {
		return err
	}
	d := b.format.ContentDigest([]byte(target))
	return b.tree.Put(dirPath, name, manifest.Symlink{Digest: d, Size: int64(len(target))})
}

// AddHardlink records path as sharing the same digest/size/mtime as target,
// which must already have been added as a file. This is how two hardlinked
// files on disk end up with identical manifest entries without either being
// re-hashed.
func (b *ManifestBuilder) AddHardlink(p string, target string, executable bool) error {
	targetDir, targetName := splitRel(strings.Trim(target, "/"))
	srcDir, ok := b.lookupDir(targetDir)
	if !ok {
		return zerr.New(zerr.InvalidData, "manifest builder: hardlink target %q not present", target)
	}
	src, ok := srcDir[targetName]
	if !ok {
		return zerr.New(zerr.InvalidData, "manifest builder: hardlink target %q not present", target)
	}
	dirPath, name := splitRel(p)
	if err := b.tree.AddDir(dirPath); err != nil {
		return err
	}
	switch v := src.(type) {
	case manifest.NormalFile:
		if executable {
			return b.tree.Put(dirPath, name, manifest.ExecutableFile{Digest: v.Digest, ModTime: v.ModTime, Size: v.Size})
		}
		return b.tree.Put(dirPath, name, manifest.NormalFile{Digest: v.Digest, ModTime: v.ModTime, Size: v.Size})
	case manifest.ExecutableFile:
		if !executable {
			return b.tree.Put(dirPath, name, manifest.NormalFile{Digest: v.Digest, ModTime: v.ModTime, Size: v.Size})
		}
		return b.tree.Put(dirPath, name, v)
	default:
		return zerr.New(zerr.InvalidData, "manifest builder: hardlink target %q is not a file", target)
	}
}

func (b *ManifestBuilder) lookupDir(dirPath string) (map[string]manifest.Entry, bool) {
	return b.tree.DirEntries(dirPath)
}

func (b *ManifestBuilder) Rename(from, to string) error {
	return b.tree.Rename(strings.Trim(from, "/"), strings.Trim(to, "/"))
}

func (b *ManifestBuilder) Remove(p string) error {
	if !b.tree.Remove(strings.Trim(p, "/")) {
		return zerr.New(zerr.InvalidData, "manifest builder: remove %q: not present", p)
	}
	return nil
}

func (b *ManifestBuilder) MarkExecutable(p string, executable bool) error {
	dirPath, name := splitRel(p)
	dir, ok := b.lookupDir(dirPath)
	if !ok {
		return zerr.New(zerr.InvalidData, "manifest builder: mark executable %q: parent not present", p)
	}
	e, ok := dir[name]
	if !ok {
		return zerr.New(zerr.InvalidData, "manifest builder: mark executable %q: not present", p)
	}
	switch v := e.(type) {
	case manifest.NormalFile:
		if executable {
			return b.tree.Put(dirPath, name, manifest.ExecutableFile{Digest: v.Digest, ModTime: v.ModTime, Size: v.Size})
		}
		return nil
	case manifest.ExecutableFile:
		if !executable {
			return b.tree.Put(dirPath, name, manifest.NormalFile{Digest: v.Digest, ModTime: v.ModTime, Size: v.Size})
		}
		return nil
	default:
		return zerr.New(zerr.InvalidData, "manifest builder: %q is not a file", p)
	}
}

func (b *ManifestBuilder) TurnIntoSymlink(p string) error {
	return zerr.New(zerr.NotSupported, "manifest builder: TurnIntoSymlink %q: requires file content, not available from manifest entries alone", p)
}

func splitRel(p string) (dir, name string) {
	p = strings.Trim(p, "/")
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return "", p
	}
	return p[:i], p[i+1:]
}
