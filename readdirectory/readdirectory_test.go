package readdirectory

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zeroinstall-go/zeroinstall/builder"
	"github.com/zeroinstall-go/zeroinstall/digest"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestReadProducesManifestMatchingDisk(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "bin", "tool"), "xyz")
	writeFile(t, filepath.Join(root, "readme"), "hello")
	require.NoError(t, os.Chmod(filepath.Join(root, "bin", "tool"), 0o755))

	mb := builder.NewManifestBuilder(digest.SHA1New)
	require.NoError(t, Read(root, mb))

	require.True(t, mb.Tree().HasDir("bin"))
	lines := strings.Join(mb.Tree().Lines(), "")
	require.Contains(t, lines, "tool")
	require.Contains(t, lines, "readme")
	require.Contains(t, lines, "X ")
	require.Contains(t, lines, "F ")
}

func TestReadFollowsSymlinks(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a"), "data")
	require.NoError(t, os.Symlink("a", filepath.Join(root, "link")))

	mb := builder.NewManifestBuilder(digest.SHA1New)
	require.NoError(t, Read(root, mb))

	require.Contains(t, strings.Join(mb.Tree().Lines(), ""), "S ")
}

func TestReadDetectsHardlinks(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a"), "data")
	require.NoError(t, os.Link(filepath.Join(root, "a"), filepath.Join(root, "b")))

	mb := builder.NewManifestBuilder(digest.SHA1New)
	require.NoError(t, Read(root, mb))

	entries, ok := mb.Tree().DirEntries("")
	require.True(t, ok)
	require.Equal(t, entries["a"], entries["b"])
}

func TestIsWithin(t *testing.T) {
	require.True(t, IsWithin("/a/b", "/a/b"))
	require.True(t, IsWithin("/a/b", "/a/b/c"))
	require.False(t, IsWithin("/a/b", "/a/bc"))
	require.False(t, IsWithin("/a/b", "/a"))
}
