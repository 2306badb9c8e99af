// Package manifest implements the canonical, hashable directory-tree
// listing: an ordered tree of directories,
// files, and symlinks whose serialized line form is independent of
// insertion order, and whose digest is the implementation's identity in
// the content-addressed store.
package manifest

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/zeroinstall-go/zeroinstall/digest"
	"github.com/zeroinstall-go/zeroinstall/zerr"
)

// Tree is an in-memory, ordered directory tree. The zero value is an empty
// tree containing only the root directory.
type Tree struct {
	// dirs maps a directory's Unix-style relative path ("" for the root) to
	// the set of entries it directly contains, keyed by entry name.
	dirs map[string]map[string]Entry
}

// New returns an empty Tree containing only the root directory.
func New() *Tree {
	return &Tree{dirs: map[string]map[string]Entry{"": {}}}
}

func (t *Tree) ensure() {
	if t.dirs == nil {
		t.dirs = map[string]map[string]Entry{"": {}}
	}
}

// HasDir reports whether path has been added as a directory (the root,
// path "", always has one).
func (t *Tree) HasDir(path string) bool {
	t.ensure()
	_, ok := t.dirs[path]
	return ok
}

// DirEntries returns the entries directly contained by dirPath, for callers
// (package builder's ManifestBuilder) that need to look up an
// already-recorded entry, e.g. to resolve a hardlink's target.
func (t *Tree) DirEntries(dirPath string) (map[string]Entry, bool) {
	t.ensure()
	entries, ok := t.dirs[dirPath]
	return entries, ok
}

// AddDir inserts path and all of its missing ancestors as directories. It
// is idempotent: adding an already-present directory is a no-op.
func (t *Tree) AddDir(path string) error {
	t.ensure()
	if path != "" {
		if err := validatePath(path); err != nil {
			return err
		}
	}
	for _, p := range ancestorsAndSelf(path) {
		if _, ok := t.dirs[p]; !ok {
			t.dirs[p] = map[string]Entry{}
		}
	}
	return nil
}

// ancestorsAndSelf returns path's ancestor directories (root first) followed
// by path itself, e.g. "a/b/c" -> ["", "a", "a/b", "a/b/c"].
func ancestorsAndSelf(path string) []string {
	if path == "" {
		return []string{""}
	}
	parts := strings.Split(path, "/")
	out := make([]string, 0, len(parts)+1)
	out = append(out, "")
	cur := ""
	for _, p := range parts {
		if cur == "" {
			cur = p
		} else {
			cur = cur + "/" + p
		}
		out = append(out, cur)
	}
	return out
}

// Put inserts or overwrites the entry named name inside directory dirPath.
// It fails with zerr.InvalidData if dirPath has not been added (builder
// programs are required to emit AddDir before any entry it contains — see
// this ordering guarantee — so a missing parent indicates a
// malformed program rather than something to paper over silently).
func (t *Tree) Put(dirPath, name string, e Entry) error {
	t.ensure()
	if err := validatePath(joinPath(dirPath, name)); err != nil {
		return err
	}
	dir, ok := t.dirs[dirPath]
	if !ok {
		return zerr.New(zerr.InvalidData, "put %q: parent directory %q not present", name, dirPath)
	}
	dir[name] = e
	return nil
}

// Remove deletes the directory (and all of its descendants) or file named
// by path. It reports whether anything was removed.
func (t *Tree) Remove(path string) bool {
	t.ensure()
	if path == "" {
		return false // the root directory can never be removed
	}
	if _, ok := t.dirs[path]; ok {
		prefix := path + "/"
		for p := range t.dirs {
			if p == path || strings.HasPrefix(p, prefix) {
				delete(t.dirs, p)
			}
		}
		dirPath, name := splitPath(path)
		if dir, ok := t.dirs[dirPath]; ok {
			delete(dir, name)
		}
		return true
	}
	dirPath, name := splitPath(path)
	dir, ok := t.dirs[dirPath]
	if !ok {
		return false
	}
	if _, ok := dir[name]; !ok {
		return false
	}
	delete(dir, name)
	return true
}

// Rename moves the subtree or file at from to to, adding any missing parent
// directories of to. It fails if from is absent or to is not a valid path.
// Entry values (digest/size/mtime) are copied unchanged, preserving
// hardlink relations: two entries that shared a digest/size/mtime before the
// rename still do afterward.
func (t *Tree) Rename(from, to string) error {
	t.ensure()
	if err := validatePath(to); err != nil {
		return err
	}
	if _, ok := t.dirs[from]; ok {
		toDirPath, _ := splitPath(to)
		if err := t.AddDir(toDirPath); err != nil {
			return err
		}
		renamed := map[string]map[string]Entry{}
		prefix := from + "/"
		for p, entries := range t.dirs {
			switch {
			case p == from:
				renamed[to] = entries
			case strings.HasPrefix(p, prefix):
				renamed[to+p[len(from):]] = entries
			default:
				renamed[p] = entries
			}
		}
		t.dirs = renamed
		return nil
	}

	fromDirPath, fromName := splitPath(from)
	fromDir, ok := t.dirs[fromDirPath]
	if !ok {
		return zerr.New(zerr.InvalidData, "rename: %q not present", from)
	}
	e, ok := fromDir[fromName]
	if !ok {
		return zerr.New(zerr.InvalidData, "rename: %q not present", from)
	}
	toDirPath, toName := splitPath(to)
	if err := t.AddDir(toDirPath); err != nil {
		return err
	}
	toDir := t.dirs[toDirPath]
	delete(fromDir, fromName)
	toDir[toName] = e
	return nil
}

// WithTimeOffset returns a copy of the tree whose NormalFile/ExecutableFile
// modification times are each rounded up to the next even second and then
// shifted by seconds. Used to derive distinct manifest digests for
// time-shifted variants of the same content (e.g. archived copies), per
// 
func (t *Tree) WithTimeOffset(seconds int64) *Tree {
	t.ensure()
	out := &Tree{dirs: make(map[string]map[string]Entry, len(t.dirs))}
	for dirPath, entries := range t.dirs {
		newEntries := make(map[string]Entry, len(entries))
		for name, e := range entries {
			switch v := e.(type) {
			case NormalFile:
				newEntries[name] = NormalFile{Digest: v.Digest, Size: v.Size, ModTime: roundUpEven(v.ModTime) + seconds}
			case ExecutableFile:
				newEntries[name] = ExecutableFile{Digest: v.Digest, Size: v.Size, ModTime: roundUpEven(v.ModTime) + seconds}
			default:
				newEntries[name] = e
			}
		}
		out.dirs[dirPath] = newEntries
	}
	return out
}

func roundUpEven(t int64) int64 {
	if t%2 != 0 {
		return t + 1
	}
	return t
}

// Lines returns the canonical serialized line sequence.
// Every line is LF-terminated, including the last.
func (t *Tree) Lines() []string {
	t.ensure()
	dirPaths := make([]string, 0, len(t.dirs))
	for p := range t.dirs {
		dirPaths = append(dirPaths, p)
	}
	sort.Slice(dirPaths, func(i, j int) bool { return pathLess(dirPaths[i], dirPaths[j]) })

	var lines []string
	for _, dirPath := range dirPaths {
		if dirPath != "" {
			lines = append(lines, fmt.Sprintf("D /%s\n", dirPath))
		}
		names := make([]string, 0, len(t.dirs[dirPath]))
		for name := range t.dirs[dirPath] {
			names = append(names, name)
		}
		sort.Strings(names) // ordinal byte order
		for _, name := range names {
			switch e := t.dirs[dirPath][name].(type) {
			case NormalFile:
				lines = append(lines, fmt.Sprintf("F %s %d %d %s\n", e.Digest, e.ModTime, e.Size, name))
			case ExecutableFile:
				lines = append(lines, fmt.Sprintf("X %s %d %d %s\n", e.Digest, e.ModTime, e.Size, name))
			case Symlink:
				lines = append(lines, fmt.Sprintf("S %s %d %s\n", e.Digest, e.Size, name))
			}
		}
	}
	return lines
}

// Digest computes the manifest digest: f's prefix, separator, and the
// f-encoded hash of the concatenated canonical lines.
func (t *Tree) Digest(f digest.Format) digest.ID {
	h := digest.NewDigester(f)
	for _, line := range t.Lines() {
		_, _ = io.WriteString(h, line)
	}
	return digest.NewID(f, h.Sum())
}

// Load parses a canonical manifest line stream (as written by Lines, or by
// the store's .manifest file) back into a Tree. Unknown line kinds, wrong
// field counts, a non-integer mtime/size, or an overflowing integer all
// fail with zerr.InvalidData.
func Load(r io.Reader) (*Tree, error) {
	t := New()
	currentDir := ""
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		// A file/symlink name may itself contain spaces, so only the kind,
		// digest, mtime, and size fields are split strictly; the name takes
		// whatever remains of the line.
		kind := line[:1]
		switch kind {
		case "D":
			fields := strings.SplitN(line, " ", 2)
			if len(fields) != 2 {
				return nil, zerr.New(zerr.InvalidData, "manifest: malformed D line %q", line)
			}
			p := strings.TrimPrefix(fields[1], "/")
			if err := t.AddDir(p); err != nil {
				return nil, err
			}
			currentDir = p
		case "F", "X":
			fields := strings.SplitN(line, " ", 5)
			if len(fields) != 5 {
				return nil, zerr.New(zerr.InvalidData, "manifest: malformed %s line %q", kind, line)
			}
			mtime, err := strconv.ParseInt(fields[2], 10, 64)
			if err != nil {
				return nil, zerr.Wrap(zerr.InvalidData, err, "manifest: bad mtime in %q", line)
			}
			size, err := strconv.ParseInt(fields[3], 10, 64)
			if err != nil {
				return nil, zerr.Wrap(zerr.InvalidData, err, "manifest: bad size in %q", line)
			}
			var e Entry
			if kind == "F" {
				e = NormalFile{Digest: fields[1], ModTime: mtime, Size: size}
			} else {
				e = ExecutableFile{Digest: fields[1], ModTime: mtime, Size: size}
			}
			if err := t.Put(currentDir, fields[4], e); err != nil {
				return nil, err
			}
		case "S":
			fields := strings.SplitN(line, " ", 4)
			if len(fields) != 4 {
				return nil, zerr.New(zerr.InvalidData, "manifest: malformed S line %q", line)
			}
			size, err := strconv.ParseInt(fields[2], 10, 64)
			if err != nil {
				return nil, zerr.Wrap(zerr.InvalidData, err, "manifest: bad size in %q", line)
			}
			if err := t.Put(currentDir, fields[3], Symlink{Digest: fields[1], Size: size}); err != nil {
				return nil, err
			}
		default:
			return nil, zerr.New(zerr.InvalidData, "manifest: unknown line kind %q", kind)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, zerr.Wrap(zerr.IO, err, "manifest: read")
	}
	return t, nil
}

func joinPath(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

func splitPath(path string) (dir, name string) {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return "", path
	}
	return path[:i], path[i+1:]
}
