package store

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/zeroinstall-go/zeroinstall/manifest"
	"github.com/zeroinstall-go/zeroinstall/metrics"
	"github.com/zeroinstall-go/zeroinstall/zerr"
)

type manifestFile struct {
	relPath   string
	digestHex string
	size      int64
}

// filesOf extracts every regular/executable file entry from tree's
// canonical line form, reconstructing each one's full relative path by
// tracking the most recently seen "D" line — the same bookkeeping
// manifest.Load performs while parsing, applied here to Lines() instead of
// a raw reader since Tree keeps its directory map unexported.
func filesOf(tree *manifest.Tree) []manifestFile {
	var out []manifestFile
	currentDir := ""
	for _, line := range tree.Lines() {
		line = strings.TrimSuffix(line, "\n")
		if line == "" {
			continue
		}
		switch line[:1] {
		case "D":
			fields := strings.SplitN(line, " ", 2)
			currentDir = strings.TrimPrefix(fields[1], "/")
		case "F", "X":
			fields := strings.SplitN(line, " ", 5)
			if len(fields) != 5 {
				continue
			}
			size, err := strconv.ParseInt(fields[3], 10, 64)
			if err != nil {
				continue
			}
			name := fields[4]
			rel := name
			if currentDir != "" {
				rel = currentDir + "/" + name
			}
			out = append(out, manifestFile{relPath: rel, digestHex: fields[1], size: size})
		}
	}
	return out
}

// Optimise replaces bit-identical files across the store's implementations
// with hardlinks, returning the number of bytes
// reclaimed. Files are grouped by (content digest, size) read from each
// implementation's `.manifest`; the first file seen for a group is kept as
// the canonical copy, and every subsequent match is relinked to it,
// provided both reside on the same device and are not already the same
// inode.
func (s *ImplementationStore) Optimise() (reclaimedTotal uint64, err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveStoreOp("optimise", start, err)
		metrics.AddOptimisedBytes(reclaimedTotal)
	}()

	if !s.kind.writable() {
		return 0, zerr.New(zerr.UnauthorizedAccess, "store: %s is %s, cannot optimise", s.path, s.kind)
	}

	unlock, err := s.lockStore()
	if err != nil {
		return 0, err
	}
	defer unlock()

	ids, err := s.ListAll()
	if err != nil {
		return 0, err
	}

	type key struct {
		digestHex string
		size      int64
	}
	canonical := make(map[key]string, len(ids))
	var reclaimed uint64

	for _, id := range ids {
		dir := s.digestPath(id)
		f, err := os.Open(filepath.Join(dir, manifestFileName))
		if err != nil {
			continue // no .manifest written (e.g. a foreign store entry); skip
		}
		tree, err := manifest.Load(f)
		f.Close()
		if err != nil {
			return reclaimed, zerr.Wrap(zerr.InvalidData, err, "store: optimise: load manifest for %s", id)
		}

		for _, mf := range filesOf(tree) {
			k := key{mf.digestHex, mf.size}
			absPath := filepath.Join(dir, filepath.FromSlash(mf.relPath))
			existing, ok := canonical[k]
			if !ok {
				canonical[k] = absPath
				continue
			}
			freed, err := relinkIfDistinct(existing, absPath, mf.size)
			if err != nil {
				return reclaimed, zerr.Wrap(zerr.IO, err, "store: optimise: relink %s", absPath)
			}
			reclaimed += freed
		}
	}
	return reclaimed, nil
}

// relinkIfDistinct replaces dupPath with a hardlink to canonicalPath,
// unless they are already the same inode or live on different devices (a
// hardlink cannot span filesystems, so such pairs are left alone per
//  "must not span devices" constraint). It returns the bytes
// reclaimed (size if relinked, 0 otherwise).
func relinkIfDistinct(canonicalPath, dupPath string, size int64) (uint64, error) {
	cInfo, err := os.Stat(canonicalPath)
	if err != nil {
		return 0, err
	}
	dInfo, err := os.Stat(dupPath)
	if err != nil {
		return 0, err
	}
	cStat, cOK := cInfo.Sys().(*syscall.Stat_t)
	dStat, dOK := dInfo.Sys().(*syscall.Stat_t)
	if !cOK || !dOK {
		return 0, nil
	}
	if cStat.Dev != dStat.Dev {
		return 0, nil
	}
	if cStat.Ino == dStat.Ino {
		return 0, nil
	}

	dir := filepath.Dir(dupPath)
	dirInfo, err := os.Stat(dir)
	if err != nil {
		return 0, err
	}
	if err := os.Chmod(dir, dirInfo.Mode()|0o200); err != nil {
		return 0, err
	}
	defer os.Chmod(dir, dirInfo.Mode())

	tmp := dupPath + ".optimise-tmp"
	if err := os.Link(canonicalPath, tmp); err != nil {
		return 0, err
	}
	if err := os.Rename(tmp, dupPath); err != nil {
		_ = os.Remove(tmp)
		return 0, err
	}
	return uint64(size), nil
}
