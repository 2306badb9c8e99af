// Package readdirectory implements the directory-to-builder-calls walk:
// replaying an existing on-disk tree through a
// builder.Builder so that (when the builder is a manifest.Tree-backed one)
// its digest can be computed, or (when it is a DirectoryBuilder) it can be
// copied elsewhere.
//
// The hardlink-detection approach — group regular files by (device, inode),
// treat the lexicographically first path in each group as canonical, and
// replay the rest as AddHardlink calls against it — is adapted from
// continuity's BuildManifest, generalized from a one-shot protobuf builder
// to an arbitrary builder.Builder target.
package readdirectory

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/zeroinstall-go/zeroinstall/builder"
	"github.com/zeroinstall-go/zeroinstall/manifest"
	"github.com/zeroinstall-go/zeroinstall/zerr"
)

type hardlinkKey struct {
	dev, ino uint64
}

type fileRecord struct {
	relPath string
	absPath string
	info    fs.FileInfo
}

// Read walks root and replays its contents — directories, files (including
// detected hardlinks), and symlinks — into b, in an order that always
// places a directory's AddDir call before any entry placed inside it.
// Entries whose name is reserved for the store's own bookkeeping files
// (.manifest, .xbit, .symlink) are skipped silently, the same way
// manifest.ValidatePath would reject them. Any other entry type (socket,
// device, named pipe) fails with zerr.NotSupported.
func Read(root string, b builder.ForwardOnlyBuilder) error {
	root = filepath.Clean(root)

	var dirs []string
	files := map[hardlinkKey][]fileRecord{}
	var fileOrder []hardlinkKey
	var symlinks []fileRecord

	err := filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return zerr.Wrap(zerr.IO, err, "walk %q", p)
		}
		if p == root {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return zerr.Wrap(zerr.IO, err, "relativize %q", p)
		}
		rel = filepath.ToSlash(rel)

		if manifest.IsReservedName(info.Name()) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		switch {
		case info.Mode()&os.ModeSymlink != 0:
			symlinks = append(symlinks, fileRecord{relPath: rel, absPath: p, info: info})
		case info.IsDir():
			dirs = append(dirs, rel)
		case info.Mode().IsRegular():
			key, ok := inodeKey(info)
			if !ok {
				// Platforms without a usable device/inode pair (or a
				// filesystem that never reuses them for links) fall back to
				// treating every file as its own singleton group.
				key = hardlinkKey{dev: 0, ino: uint64(len(fileOrder)) + 1}
			}
			if _, seen := files[key]; !seen {
				fileOrder = append(fileOrder, key)
			}
			files[key] = append(files[key], fileRecord{relPath: rel, absPath: p, info: info})
		default:
			// Sockets, devices, and named pipes carry no content a 0install
			// implementation tree can represent.
			return zerr.New(zerr.NotSupported, "unsupported entry type %v at %q", info.Mode().Type(), rel)
		}
		return nil
	})
	if err != nil {
		return err
	}

	sort.Strings(dirs)
	for _, d := range dirs {
		if err := b.AddDir(d); err != nil {
			return err
		}
	}

	for _, key := range fileOrder {
		group := files[key]
		sort.Slice(group, func(i, j int) bool { return group[i].relPath < group[j].relPath })
		canonical := group[0]
		if err := addFile(b, canonical); err != nil {
			return err
		}
		for _, link := range group[1:] {
			executable := link.info.Mode()&0o111 != 0
			if err := b.AddHardlink(link.relPath, canonical.relPath, executable); err != nil {
				if !zerr.Is(err, zerr.NotSupported) {
					return err
				}
				if err := addFile(b, link); err != nil {
					return err
				}
			}
		}
	}

	sort.Slice(symlinks, func(i, j int) bool { return symlinks[i].relPath < symlinks[j].relPath })
	for _, s := range symlinks {
		target, err := os.Readlink(s.absPath)
		if err != nil {
			return zerr.Wrap(zerr.IO, err, "readlink %q", s.relPath)
		}
		if err := b.AddSymlink(s.relPath, target); err != nil {
			return err
		}
	}
	return nil
}

func addFile(b builder.ForwardOnlyBuilder, rec fileRecord) error {
	f, err := os.Open(rec.absPath)
	if err != nil {
		return zerr.Wrap(zerr.IO, err, "open %q", rec.relPath)
	}
	defer f.Close()
	executable := rec.info.Mode()&0o111 != 0
	return b.AddFile(rec.relPath, f, rec.info.ModTime().Unix(), rec.info.Size(), executable)
}

func inodeKey(info fs.FileInfo) (hardlinkKey, bool) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return hardlinkKey{}, false
	}
	if stat.Nlink < 2 {
		return hardlinkKey{}, false
	}
	return hardlinkKey{dev: uint64(stat.Dev), ino: stat.Ino}, true
}

// IsWithin reports whether child, once cleaned, lies at or under root.
func IsWithin(root, child string) bool {
	root = filepath.Clean(root)
	child = filepath.Clean(child)
	if root == child {
		return true
	}
	return strings.HasPrefix(child, root+string(filepath.Separator))
}
