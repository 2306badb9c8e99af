package builder

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zeroinstall-go/zeroinstall/digest"
	"github.com/zeroinstall-go/zeroinstall/manifest"
)

func newComposed(t *testing.T) (*DirectoryBuilder, *ManifestBuilder) {
	t.Helper()
	root := t.TempDir()
	mb := NewManifestBuilder(digest.SHA1New)
	db := NewDirectoryBuilder(root)
	db.Inner = mb
	return db, mb
}

func TestAddFileWritesDiskAndManifest(t *testing.T) {
	db, mb := newComposed(t)
	require.NoError(t, db.AddFile("a", strings.NewReader("data"), 1337, 4, false))

	want := "F " + digest.SHA1New.ContentDigest([]byte("data")) + " 1337 4 a\n"
	require.Equal(t, []string{want}, mb.Tree().Lines())
}

func TestAddDirThenAddFileNested(t *testing.T) {
	db, mb := newComposed(t)
	require.NoError(t, db.AddDir("bin"))
	require.NoError(t, db.AddFile("bin/tool", strings.NewReader("xyz"), 1, 3, true))

	require.True(t, mb.Tree().HasDir("bin"))
	lines := mb.Tree().Lines()
	require.Contains(t, strings.Join(lines, ""), "X ")
}

func TestAddSymlink(t *testing.T) {
	db, mb := newComposed(t)
	require.NoError(t, db.AddSymlink("link", "target"))

	want := "S " + digest.SHA1New.ContentDigest([]byte("target")) + " 6 link\n"
	require.Equal(t, []string{want}, mb.Tree().Lines())
}

func TestAddHardlinkSharesDigest(t *testing.T) {
	db, mb := newComposed(t)
	require.NoError(t, db.AddFile("a", strings.NewReader("data"), 1, 4, false))
	err := db.AddHardlink("b", "a", false)
	require.NoError(t, err)

	dirEntries, ok := mb.Tree().DirEntries("")
	require.True(t, ok)
	require.Equal(t, dirEntries["a"], dirEntries["b"])
}

func TestAppleDoubleFilesAreSuppressed(t *testing.T) {
	db, mb := newComposed(t)
	require.NoError(t, db.AddFile("._shadow", strings.NewReader("rsrc"), 1, 4, false))

	require.Empty(t, mb.Tree().Lines())
}

func TestPathEscapeRejected(t *testing.T) {
	db, _ := newComposed(t)
	err := db.AddFile("../escape", strings.NewReader("x"), 1, 1, false)
	require.Error(t, err)
}

func TestPrefixBuilderRewritesPaths(t *testing.T) {
	mb := NewManifestBuilder(digest.SHA1New)
	pb := NewPrefixBuilder("lib", mb)
	require.NoError(t, pb.AddDir("pkg"))
	require.True(t, mb.Tree().HasDir("lib/pkg"))
}

func TestRenameThroughDirectoryBuilder(t *testing.T) {
	db, mb := newComposed(t)
	require.NoError(t, db.AddFile("a", strings.NewReader("data"), 1, 4, false))
	require.NoError(t, db.Rename("a", "b"))

	entries, _ := mb.Tree().DirEntries("")
	_, hasOld := entries["a"]
	_, hasNew := entries["b"]
	require.False(t, hasOld)
	require.True(t, hasNew)
}

func TestMarkExecutableThroughDirectoryBuilder(t *testing.T) {
	db, mb := newComposed(t)
	require.NoError(t, db.AddFile("a", strings.NewReader("data"), 1, 4, false))
	require.NoError(t, db.MarkExecutable("a", true))

	entries, _ := mb.Tree().DirEntries("")
	_, isExecutable := entries["a"].(manifest.ExecutableFile)
	require.True(t, isExecutable)
	require.Contains(t, strings.Join(mb.Tree().Lines(), ""), "X ")
}
