package recipe

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zeroinstall-go/zeroinstall/builder"
	"github.com/zeroinstall-go/zeroinstall/digest"
)

type fakeFetch struct {
	bodies map[string]string
	paths  map[string]string
}

func (f fakeFetch) Open(_ context.Context, href string, _ int64) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(f.bodies[href])), nil
}

func (f fakeFetch) ResolvePath(_ context.Context, id string) (string, error) {
	return f.paths[id], nil
}

type tarLikeExtractor struct{ members map[string]string }

func (e tarLikeExtractor) Extract(b builder.ForwardOnlyBuilder, r io.Reader, subdir string) error {
	_, _ = io.Copy(io.Discard, r)
	if err := b.AddDir(""); err != nil {
		return err
	}
	for name, content := range e.members {
		rel := strings.TrimPrefix(name, subdir+"/")
		if rel == name && subdir != "" {
			continue // not under the requested subdir
		}
		if err := b.AddFile(rel, strings.NewReader(content), 0, int64(len(content)), false); err != nil {
			return err
		}
	}
	return nil
}

func TestApplySingleFile(t *testing.T) {
	root := builder.NewManifestBuilder(digest.SHA1New)
	fetch := fakeFetch{bodies: map[string]string{"http://x/file": "hello"}}

	rec := Recipe{Steps: []Step{SingleFile{Href: "http://x/file", Destination: "bin/tool", Executable: true, Size: 5}}}
	require.NoError(t, Apply(context.Background(), root, rec, fetch, nil))

	require.Contains(t, strings.Join(root.Tree().Lines(), ""), "tool")
}

func TestApplyArchiveUsesRegisteredExtractor(t *testing.T) {
	root := builder.NewManifestBuilder(digest.SHA1New)
	fetch := fakeFetch{bodies: map[string]string{"http://x/a.tgz": "ignored-stream"}}
	extractors := Extractors{"application/x-tar-gz": tarLikeExtractor{members: map[string]string{"readme": "hi"}}}

	rec := Recipe{Steps: []Step{Archive{Href: "http://x/a.tgz", MimeType: "application/x-tar-gz", Destination: "pkg"}}}
	require.NoError(t, Apply(context.Background(), root, rec, fetch, extractors))

	require.True(t, root.Tree().HasDir("pkg"))
}

func TestApplyUnknownMimeTypeFails(t *testing.T) {
	root := builder.NewManifestBuilder(digest.SHA1New)
	fetch := fakeFetch{}
	rec := Recipe{Steps: []Step{Archive{Href: "x", MimeType: "nope"}}}
	require.Error(t, Apply(context.Background(), root, rec, fetch, Extractors{}))
}

func TestApplyRename(t *testing.T) {
	disk := t.TempDir()
	mb := builder.NewManifestBuilder(digest.SHA1New)
	db := builder.NewDirectoryBuilder(disk)
	db.Inner = mb
	require.NoError(t, db.AddFile("a", strings.NewReader("data"), 1, 4, false))

	rec := Recipe{Steps: []Step{Rename{From: "a", To: "b"}}}
	require.NoError(t, Apply(context.Background(), db, rec, fakeFetch{}, nil))

	_, err := os.Stat(filepath.Join(disk, "b"))
	require.NoError(t, err)
}

func TestApplyCopyFrom(t *testing.T) {
	source := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(source, "lib.so"), []byte("bin"), 0o644))

	root := builder.NewManifestBuilder(digest.SHA1New)
	fetch := fakeFetch{paths: map[string]string{"sha256=abc": source}}
	rec := Recipe{Steps: []Step{CopyFrom{Source: "sha256=abc", Destination: "deps"}}}
	require.NoError(t, Apply(context.Background(), root, rec, fetch, nil))

	require.True(t, root.Tree().HasDir("deps"))
}
