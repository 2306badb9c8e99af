package manifest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zeroinstall-go/zeroinstall/digest"
)

func TestScenarioRoundTripSingleFile(t *testing.T) {
	tr := New()
	require.NoError(t, tr.Put("", "a", NormalFile{
		Digest:  digest.SHA1New.ContentDigest([]byte("data")),
		ModTime: 1337,
		Size:    4,
	}))

	want := "F a17c9aaa61e80a1bf71d0d850af4e5baa9800bbd 1337 4 a\n"
	require.Equal(t, []string{want}, tr.Lines())

	id := tr.Digest(digest.SHA1New)
	require.True(t, strings.HasPrefix(string(id), "sha1new="))
}

func TestLoadSaveRoundTrip(t *testing.T) {
	tr := New()
	require.NoError(t, tr.AddDir("bin"))
	require.NoError(t, tr.Put("bin", "tool", ExecutableFile{Digest: "aa", ModTime: 10, Size: 3}))
	require.NoError(t, tr.AddDir("share/doc"))
	require.NoError(t, tr.Put("share/doc", "readme", NormalFile{Digest: "bb", ModTime: 20, Size: 5}))
	require.NoError(t, tr.Put("", "link", Symlink{Digest: "cc", Size: 7}))

	loaded, err := Load(strings.NewReader(strings.Join(tr.Lines(), "")))
	require.NoError(t, err)
	require.Equal(t, tr.Lines(), loaded.Lines())
}

func TestParseThenLinesIsStable(t *testing.T) {
	input := "D /bin\n" +
		"F aa 10 3 tool\n" +
		"D /share\n" +
		"D /share/doc\n" +
		"F bb 20 5 readme\n"
	tr, err := Load(strings.NewReader(input))
	require.NoError(t, err)
	require.Equal(t, input, strings.Join(tr.Lines(), ""))
}

func TestDirectoryOrderingTreatsSlashAsLowest(t *testing.T) {
	// "a/b" must sort before "aa": '/' is lower than any other byte.
	tr := New()
	require.NoError(t, tr.AddDir("aa"))
	require.NoError(t, tr.AddDir("a/b"))

	lines := tr.Lines()
	var order []string
	for _, l := range lines {
		if strings.HasPrefix(l, "D ") {
			order = append(order, strings.TrimSpace(l))
		}
	}
	require.Equal(t, []string{"D /a", "D /a/b", "D /aa"}, order)
}

func TestWithTimeOffsetZeroPreservesDigestForEvenMtimes(t *testing.T) {
	tr := New()
	require.NoError(t, tr.Put("", "f", NormalFile{Digest: "aa", ModTime: 100, Size: 1}))

	shifted := tr.WithTimeOffset(0)
	require.Equal(t, tr.Digest(digest.SHA256), shifted.Digest(digest.SHA256))
}

func TestWithTimeOffsetRoundsOddMtimesUp(t *testing.T) {
	tr := New()
	require.NoError(t, tr.Put("", "f", NormalFile{Digest: "aa", ModTime: 101, Size: 1}))

	shifted := tr.WithTimeOffset(0)
	entry := shifted.dirs[""]["f"].(NormalFile)
	require.Equal(t, int64(102), entry.ModTime)
}

func TestPutFailsWithoutParentDirectory(t *testing.T) {
	tr := New()
	err := tr.Put("missing", "f", NormalFile{Digest: "aa", ModTime: 1, Size: 1})
	require.Error(t, err)
}

func TestReservedNamesRejected(t *testing.T) {
	tr := New()
	require.Error(t, tr.AddDir(".manifest"))
	require.Error(t, tr.Put("", ".xbit", NormalFile{}))
	require.Error(t, tr.Put("", ".symlink", NormalFile{}))
}

func TestNewlineInPathRejected(t *testing.T) {
	tr := New()
	require.Error(t, tr.Put("", "bad\nname", NormalFile{}))
}

func TestRemoveDirectoryRemovesDescendants(t *testing.T) {
	tr := New()
	require.NoError(t, tr.AddDir("a/b"))
	require.NoError(t, tr.Put("a/b", "f", NormalFile{Digest: "aa", Size: 1}))

	require.True(t, tr.Remove("a"))
	require.False(t, tr.HasDir("a"))
	require.False(t, tr.HasDir("a/b"))
}

func TestRemoveReportsFalseWhenAbsent(t *testing.T) {
	tr := New()
	require.False(t, tr.Remove("nope"))
}

func TestRenamePreservesEntryFields(t *testing.T) {
	tr := New()
	entry := NormalFile{Digest: "aa", ModTime: 5, Size: 9}
	require.NoError(t, tr.Put("", "f", entry))
	require.NoError(t, tr.Rename("f", "g"))

	got := tr.dirs[""]["g"].(NormalFile)
	require.Equal(t, entry, got)
}

func TestRenameFailsWhenSourceAbsent(t *testing.T) {
	tr := New()
	require.Error(t, tr.Rename("nope", "g"))
}

func TestRenameDirectorySubtree(t *testing.T) {
	tr := New()
	require.NoError(t, tr.AddDir("old/child"))
	require.NoError(t, tr.Put("old/child", "f", NormalFile{Digest: "aa", Size: 1}))

	require.NoError(t, tr.Rename("old", "new"))
	require.True(t, tr.HasDir("new/child"))
	require.False(t, tr.HasDir("old"))
}
