// Package recipe applies RetrievalMethod/Recipe trees
// against a builder.Builder: downloading and unpacking an
// archive, fetching a single file, or replaying steps recorded as children
// of a <recipe> element (archive, single-file, remove, rename, copy-from),
// each targeting its own Destination subdirectory of the overall build via
// a builder.PrefixBuilder.
//
// Concrete archive-format extraction (zip, tar+gzip, …) is an explicit
// Non-goal: callers inject an Extractor per MIME type they support, the
// same way a storage backend is injected behind a base wrapper
// rather than this package hardcoding one.
package recipe

import (
	"context"
	"io"
	"path"

	"github.com/zeroinstall-go/zeroinstall/builder"
	"github.com/zeroinstall-go/zeroinstall/readdirectory"
	"github.com/zeroinstall-go/zeroinstall/zerr"
)

// Step is one element of a Recipe: Archive, SingleFile, Remove, Rename, or
// CopyFrom.
type Step interface{ isStep() }

// Method is a top-level retrieval method attached directly to an
// implementation: Archive, SingleFile, or Recipe. Archive and
// SingleFile double as both a Method and a Step, since a recipe step of
// either kind behaves identically to a bare implementation-level one; only
// Recipe itself cannot nest (a <recipe> inside a <recipe> is not part of the
// grammar).
type Method interface{ isMethod() }

func (Archive) isMethod()    {}
func (SingleFile) isMethod() {}
func (Recipe) isMethod()     {}

// Archive unpacks an archive fetched from Href into Destination, optionally
// stripping a leading ExtractSubdir from every archive member's path before
// it is added to the build.
type Archive struct {
	Href          string
	MimeType      string
	ExtractSubdir string
	Destination   string
	Size          int64
}

func (Archive) isStep() {}

// SingleFile fetches Href and adds it at Destination (a full file path, not
// a directory), with the given executable bit.
type SingleFile struct {
	Href        string
	Destination string
	Executable  bool
	Size        int64
}

func (SingleFile) isStep() {}

// Remove deletes Path from the build so far.
type Remove struct{ Path string }

func (Remove) isStep() {}

// Rename moves From to To within the build so far.
type Rename struct{ From, To string }

func (Rename) isStep() {}

// CopyFrom replays another implementation's already-materialized tree
// (resolved by FetchHandle.ResolvePath from Source, an implementation
// digest ID) under Destination within this build, optionally restricted to
// a subtree of it via SourcePath.
type CopyFrom struct {
	Source      string
	SourcePath  string
	Destination string
}

func (CopyFrom) isStep() {}

// Recipe is an ordered sequence of steps, all of which must succeed for the
// retrieval to count as successful.
type Recipe struct {
	Steps []Step
}

// Extractor unpacks a single archive format (identified by MIME type) into
// b, restricted to the subtree named by subdir (empty means the whole
// archive). No concrete implementation ships in this package; callers
// register the formats they need.
type Extractor interface {
	Extract(b builder.ForwardOnlyBuilder, r io.Reader, subdir string) error
}

// FetchHandle resolves the external inputs a recipe step needs: a byte
// stream for a download href, or a local path for a CopyFrom source. It is
// supplied by the caller (the feed/implementation manager), never
// implemented by this package; the download
// transport itself is out of scope here.
type FetchHandle interface {
	Open(ctx context.Context, href string, expectedSize int64) (io.ReadCloser, error)
	ResolvePath(ctx context.Context, implementationID string) (string, error)
}

// Extractors maps an archive MIME type to the Extractor that handles it.
type Extractors map[string]Extractor

// ApplyMethod runs a single top-level retrieval method (Archive, SingleFile,
// or Recipe) against root. A bare Archive or SingleFile method is applied
// exactly as the equivalent recipe step would be, directly against root
// (no destination prefix beyond what the method itself declares).
func ApplyMethod(ctx context.Context, root builder.Builder, m Method, fetch FetchHandle, extractors Extractors) error {
	switch v := m.(type) {
	case Archive:
		return applyArchive(ctx, root, v, fetch, extractors)
	case SingleFile:
		return applySingleFile(ctx, root, v, fetch)
	case Recipe:
		return Apply(ctx, root, v, fetch, extractors)
	default:
		return zerr.New(zerr.NotSupported, "recipe: unknown retrieval method %T", m)
	}
}

// Apply runs every step of the recipe against root in order, stopping at
// the first failure.
func Apply(ctx context.Context, root builder.Builder, r Recipe, fetch FetchHandle, extractors Extractors) error {
	for _, step := range r.Steps {
		if err := applyStep(ctx, root, step, fetch, extractors); err != nil {
			return err
		}
	}
	return nil
}

func applyStep(ctx context.Context, root builder.Builder, step Step, fetch FetchHandle, extractors Extractors) error {
	switch s := step.(type) {
	case Archive:
		return applyArchive(ctx, root, s, fetch, extractors)
	case SingleFile:
		return applySingleFile(ctx, root, s, fetch)
	case Remove:
		return root.Remove(s.Path)
	case Rename:
		return root.Rename(s.From, s.To)
	case CopyFrom:
		return applyCopyFrom(ctx, root, s, fetch)
	default:
		return zerr.New(zerr.NotSupported, "recipe: unknown step type %T", step)
	}
}

func applyArchive(ctx context.Context, root builder.Builder, a Archive, fetch FetchHandle, extractors Extractors) error {
	x, ok := extractors[a.MimeType]
	if !ok {
		return zerr.New(zerr.NotSupported, "recipe: no extractor registered for archive MIME type %q", a.MimeType)
	}
	stream, err := fetch.Open(ctx, a.Href, a.Size)
	if err != nil {
		return zerr.Wrap(zerr.WebError, err, "recipe: fetch archive %q", a.Href)
	}
	defer stream.Close()

	dest := builder.NewPrefixBuilder(a.Destination, root)
	if err := x.Extract(dest, stream, a.ExtractSubdir); err != nil {
		return zerr.Wrap(zerr.IO, err, "recipe: extract archive %q", a.Href)
	}
	return nil
}

func applySingleFile(ctx context.Context, root builder.Builder, sf SingleFile, fetch FetchHandle) error {
	stream, err := fetch.Open(ctx, sf.Href, sf.Size)
	if err != nil {
		return zerr.Wrap(zerr.WebError, err, "recipe: fetch file %q", sf.Href)
	}
	defer stream.Close()
	return root.AddFile(sf.Destination, stream, 0, sf.Size, sf.Executable)
}

func applyCopyFrom(ctx context.Context, root builder.Builder, cf CopyFrom, fetch FetchHandle) error {
	path, err := fetch.ResolvePath(ctx, cf.Source)
	if err != nil {
		return zerr.Wrap(zerr.ImplementationNotFound, err, "recipe: resolve copy-from source %q", cf.Source)
	}
	if cf.SourcePath != "" {
		path = filepathJoin(path, cf.SourcePath)
	}
	dest := builder.NewPrefixBuilder(cf.Destination, root)
	// ReadDirectory only ever calls AddDir for directories it actually finds
	// under the source; a source with files but no subdirectories would
	// otherwise leave Destination itself never created.
	if err := dest.AddDir(""); err != nil {
		return err
	}
	return readdirectory.Read(path, dest)
}

func filepathJoin(base, rel string) string {
	return path.Join(base, rel)
}
