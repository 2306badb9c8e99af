// Package store implements the Zero Install content-addressed
// implementation store: a directory of `<digest>`
// subdirectories, each holding one implementation's materialized tree plus
// its canonical `.manifest`, with atomic addition, digest verification, and
// hardlink-based deduplication across implementations.
//
// The add/verify/remove lifecycle mirrors a staged blob writer:
// stage into a temporary location, verify the computed digest, then
// atomically rename into its content-addressed
// final path, treating a pre-existing destination as "another actor won"
// rather than a conflict.
package store

import (
	"context"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/zeroinstall-go/zeroinstall/builder"
	"github.com/zeroinstall-go/zeroinstall/digest"
	"github.com/zeroinstall-go/zeroinstall/events"
	"github.com/zeroinstall-go/zeroinstall/internal/lockset"
	"github.com/zeroinstall-go/zeroinstall/internal/zlog"
	"github.com/zeroinstall-go/zeroinstall/manifest"
	"github.com/zeroinstall-go/zeroinstall/metrics"
	"github.com/zeroinstall-go/zeroinstall/readdirectory"
	"github.com/zeroinstall-go/zeroinstall/zerr"
)

const (
	manifestFileName = ".manifest"
	lockFileName     = ".lock"
	tempPrefix       = "."
)

// BuildFunc populates a fresh implementation directory through b. The
// caller (typically a recipe.Apply invocation) owns translating fetched
// bytes into builder calls; Add only owns the staging, verification, and
// atomic publish around it.
type BuildFunc func(b builder.Builder) error

// ImplementationStore is one content-addressed store directory. The zero value is not usable; construct with Open.
type ImplementationStore struct {
	path string
	kind Kind

	digestLocks lockset.Set // serializes Add/Remove of the same digest within this process
	fileLock    *os.File    // holds the advisory flock on path/.lock for this store's lifetime

	logger zlog.Logger
	sink   events.Sink
}

// SetSink installs the events.Sink that Add/Remove/Verify publish
// notifications to, replacing the default events.NopSink. Mirrors
// wiring a notification listener onto a store only when
// notifications are configured.
func (s *ImplementationStore) SetSink(sink events.Sink) {
	if sink == nil {
		sink = events.NopSink{}
	}
	s.sink = sink
}

// Open prepares an ImplementationStore rooted at path, creating path (and
// its advisory lock file) if it does not already exist. kind controls
// whether mutating operations are permitted.
func Open(path string, kind Kind) (*ImplementationStore, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, zerr.Wrap(zerr.IO, err, "store: create root %s", path)
	}
	lockPath := filepath.Join(path, lockFileName)
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, zerr.Wrap(zerr.IO, err, "store: open lock file %s", lockPath)
	}
	return &ImplementationStore{path: path, kind: kind, fileLock: f, logger: zlog.GetLogger(context.Background()), sink: events.NopSink{}}, nil
}

// Path returns the store's root directory.
func (s *ImplementationStore) Path() string { return s.path }

// Kind returns how this store may be used.
func (s *ImplementationStore) Kind() Kind { return s.kind }

// lockStore takes the per-store advisory file lock,
// guarding against concurrent mutation from other processes. Within this
// process, the caller is additionally expected to have taken the relevant
// per-digest lock via s.digestLocks where the operation is digest-scoped.
func (s *ImplementationStore) lockStore() (unlock func(), err error) {
	if err := unix.Flock(int(s.fileLock.Fd()), unix.LOCK_EX); err != nil {
		return nil, zerr.Wrap(zerr.IO, err, "store: lock %s", s.path)
	}
	return func() { _ = unix.Flock(int(s.fileLock.Fd()), unix.LOCK_UN) }, nil
}

func (s *ImplementationStore) digestPath(id digest.ID) string {
	return filepath.Join(s.path, string(id))
}

// Contains reports whether id's directory already exists.
func (s *ImplementationStore) Contains(id digest.ID) bool {
	_, err := os.Stat(s.digestPath(id))
	return err == nil
}

// GetPath returns id's absolute directory path, or false if absent.
func (s *ImplementationStore) GetPath(id digest.ID) (string, bool) {
	p := s.digestPath(id)
	if _, err := os.Stat(p); err != nil {
		return "", false
	}
	return p, true
}

// ListAll enumerates every subdirectory whose name parses as a recognized
// digest identifier.
func (s *ImplementationStore) ListAll() ([]digest.ID, error) {
	entries, err := os.ReadDir(s.path)
	if err != nil {
		return nil, zerr.Wrap(zerr.IO, err, "store: list %s", s.path)
	}
	var out []digest.ID
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if digest.ID(e.Name()).Valid() {
			out = append(out, digest.ID(e.Name()))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// ListTemp enumerates leftover `.<hex>` temp directories from interrupted
// Add calls.
func (s *ImplementationStore) ListTemp() ([]string, error) {
	entries, err := os.ReadDir(s.path)
	if err != nil {
		return nil, zerr.Wrap(zerr.IO, err, "store: list %s", s.path)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() && isTempDirName(e.Name()) {
			out = append(out, filepath.Join(s.path, e.Name()))
		}
	}
	return out, nil
}

func isTempDirName(name string) bool {
	return strings.HasPrefix(name, tempPrefix) && name != lockFileName && !digest.ID(name).Valid()
}

// tempSuffix derives a temp-directory suffix from a fresh UUID's raw bytes,
// replacing a hand-rolled crypto/rand-plus-hex generator with a
// uuid-derived convention, wired
// here through the upstream github.com/google/uuid module.
func tempSuffix() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

// Add implements the store's add operation: idempotent if id is already present,
// otherwise stages a fresh tree under a random temp directory via build,
// verifies the resulting manifest digest equals id, writes the canonical
// `.manifest`, and atomically renames into place.
func (s *ImplementationStore) Add(id digest.ID, build BuildFunc) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveStoreOp("add", start, err) }()

	if !s.kind.writable() {
		return zerr.New(zerr.UnauthorizedAccess, "store: %s is %s, cannot add", s.path, s.kind)
	}
	format, err := id.Format()
	if err != nil {
		return zerr.Wrap(zerr.InvalidData, err, "store: add")
	}

	unlockDigest := s.digestLocks.Lock(string(id))
	defer unlockDigest()

	if s.Contains(id) {
		return nil
	}

	unlockStore, err := s.lockStore()
	if err != nil {
		return err
	}
	defer unlockStore()

	// Re-check after acquiring the store lock: another process may have
	// completed the add while we waited.
	if s.Contains(id) {
		return nil
	}

	tempDir := filepath.Join(s.path, tempPrefix+tempSuffix())
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return zerr.Wrap(zerr.IO, err, "store: create temp dir")
	}
	cleanTemp := func() { _ = os.RemoveAll(tempDir) }

	mb := builder.NewManifestBuilder(format)
	db := builder.NewDirectoryBuilder(tempDir)
	db.Inner = mb

	if err := build(db); err != nil {
		cleanTemp()
		return err
	}

	actual := mb.Tree().Digest(format)
	if actual != id {
		cleanTemp()
		s.sink.Write(events.Failed(events.ActionVerifyFailed, string(id), s.path,
			zerr.New(zerr.DigestMismatch, "computed %s", actual)))
		return zerr.New(zerr.DigestMismatch, "store: add %s: computed manifest digest %s from content:\n%s",
			id, actual, strings.Join(mb.Tree().Lines(), ""))
	}

	manifestPath := filepath.Join(tempDir, manifestFileName)
	if err := writeManifest(manifestPath, mb.Tree()); err != nil {
		cleanTemp()
		return err
	}

	if err := writeProtect(tempDir); err != nil {
		s.logger.Warnf("store: write-protect %s: %v", tempDir, err)
	}

	finalDir := s.digestPath(id)
	if err := os.Rename(tempDir, finalDir); err != nil {
		if os.IsExist(err) || s.Contains(id) {
			cleanTemp()
			return nil
		}
		cleanTemp()
		return zerr.Wrap(zerr.IO, err, "store: rename %s to %s", tempDir, finalDir)
	}
	s.logger.Debugf("store: added %s", id)
	if werr := s.sink.Write(events.Published(events.ActionAdded, string(id), s.path)); werr != nil {
		s.logger.Warnf("store: publish added event for %s: %v", id, werr)
	}
	return nil
}

func writeManifest(path string, tree *manifest.Tree) error {
	f, err := os.Create(path)
	if err != nil {
		return zerr.Wrap(zerr.IO, err, "store: write manifest %s", path)
	}
	defer f.Close()
	for _, line := range tree.Lines() {
		if _, err := io.WriteString(f, line); err != nil {
			return zerr.Wrap(zerr.IO, err, "store: write manifest %s", path)
		}
	}
	return nil
}

// writeProtect marks dir and its contents read-only, best-effort: it
// write-protects the temp dir when the platform permits it. Failures are
// logged, not fatal: a store on a filesystem
// that ignores permission bits (e.g. some network mounts) should not fail
// an otherwise-successful add.
func writeProtect(dir string) error {
	return filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		mode := info.Mode()
		if info.IsDir() {
			return os.Chmod(p, mode&^0o222|0o555)
		}
		return os.Chmod(p, mode&^0o222)
	})
}

func unprotect(dir string) error {
	return filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return os.Chmod(p, info.Mode()|0o200)
		}
		return os.Chmod(p, info.Mode()|0o200)
	})
}

// Verify recomputes id's manifest by re-walking its on-disk tree and
// confirms the digest still matches its directory name.
func (s *ImplementationStore) Verify(id digest.ID) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveStoreOp("verify", start, err) }()

	dir, ok := s.GetPath(id)
	if !ok {
		err = zerr.New(zerr.ImplementationNotFound, "store: verify %s: not found", id)
		return err
	}
	format, ferr := id.Format()
	if ferr != nil {
		err = zerr.Wrap(zerr.InvalidData, ferr, "store: verify %s", id)
		return err
	}

	mb := builder.NewManifestBuilder(format)
	if rerr := readdirectory.Read(dir, mb); rerr != nil {
		err = zerr.Wrap(zerr.IO, rerr, "store: verify %s: walk", id)
		return err
	}

	actual := mb.Tree().Digest(format)
	if actual != id {
		err = zerr.New(zerr.DigestMismatch, "store: verify %s: recomputed digest %s", id, actual)
		if werr := s.sink.Write(events.Failed(events.ActionVerifyFailed, string(id), s.path, err)); werr != nil {
			s.logger.Warnf("store: publish verify_failed event for %s: %v", id, werr)
		}
		return err
	}
	return nil
}

// Remove deletes id's directory, returning whether it existed.
func (s *ImplementationStore) Remove(id digest.ID) (removed bool, err error) {
	start := time.Now()
	defer func() { metrics.ObserveStoreOp("remove", start, err) }()

	if !s.kind.writable() {
		return false, zerr.New(zerr.UnauthorizedAccess, "store: %s is %s, cannot remove", s.path, s.kind)
	}

	unlockDigest := s.digestLocks.Lock(string(id))
	defer unlockDigest()

	unlockStore, err := s.lockStore()
	if err != nil {
		return false, err
	}
	defer unlockStore()

	dir := s.digestPath(id)
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, zerr.Wrap(zerr.IO, err, "store: stat %s", dir)
	}
	if err := unprotect(dir); err != nil {
		s.logger.Warnf("store: unprotect %s before remove: %v", dir, err)
	}
	if rmErr := os.RemoveAll(dir); rmErr != nil {
		return false, zerr.Wrap(zerr.IO, rmErr, "store: remove %s", dir)
	}
	if werr := s.sink.Write(events.Published(events.ActionRemoved, string(id), s.path)); werr != nil {
		s.logger.Warnf("store: publish removed event for %s: %v", id, werr)
	}
	return true, nil
}

// Purge removes every `<digest>` entry and every leftover temp directory.
func (s *ImplementationStore) Purge() error {
	if !s.kind.writable() {
		return zerr.New(zerr.UnauthorizedAccess, "store: %s is %s, cannot purge", s.path, s.kind)
	}
	ids, err := s.ListAll()
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, err := s.Remove(id); err != nil {
			return err
		}
	}
	temps, err := s.ListTemp()
	if err != nil {
		return err
	}
	for _, t := range temps {
		if err := os.RemoveAll(t); err != nil {
			return zerr.Wrap(zerr.IO, err, "store: purge temp dir %s", t)
		}
	}
	return nil
}
