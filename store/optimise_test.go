package store

import (
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zeroinstall-go/zeroinstall/builder"
	"github.com/zeroinstall-go/zeroinstall/digest"
	"github.com/zeroinstall-go/zeroinstall/manifest"
)

func addFileTree(t *testing.T, s *ImplementationStore, files map[string]string) digest.ID {
	t.Helper()
	tree := manifest.New()
	for name, content := range files {
		require.NoError(t, tree.Put("", name, manifest.NormalFile{
			Digest:  digest.SHA1New.ContentDigest([]byte(content)),
			ModTime: 1700000000,
			Size:    int64(len(content)),
		}))
	}
	id := tree.Digest(digest.SHA1New)
	err := s.Add(id, func(b builder.Builder) error {
		for name, content := range files {
			if err := b.AddFile(name, strings.NewReader(content), 1700000000, int64(len(content)), false); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	return id
}

func inode(t *testing.T, path string) uint64 {
	t.Helper()
	fi, err := os.Stat(path)
	require.NoError(t, err)
	st, ok := fi.Sys().(*syscall.Stat_t)
	require.True(t, ok)
	return st.Ino
}

func TestOptimiseHardlinksDuplicateContent(t *testing.T) {
	s, err := Open(t.TempDir(), ReadWrite)
	require.NoError(t, err)

	idA := addFileTree(t, s, map[string]string{"shared.txt": "identical payload"})
	idB := addFileTree(t, s, map[string]string{"shared.txt": "identical payload", "unique.txt": "b-only"})

	pathA, _ := s.GetPath(idA)
	pathB, _ := s.GetPath(idB)
	require.NotEqual(t, inode(t, filepath.Join(pathA, "shared.txt")), inode(t, filepath.Join(pathB, "shared.txt")))

	reclaimed, err := s.Optimise()
	require.NoError(t, err)
	require.Equal(t, uint64(len("identical payload")), reclaimed)

	require.Equal(t, inode(t, filepath.Join(pathA, "shared.txt")), inode(t, filepath.Join(pathB, "shared.txt")))

	data, err := os.ReadFile(filepath.Join(pathB, "shared.txt"))
	require.NoError(t, err)
	require.Equal(t, "identical payload", string(data))
}

func TestOptimiseSkipsAlreadyHardlinkedFiles(t *testing.T) {
	s, err := Open(t.TempDir(), ReadWrite)
	require.NoError(t, err)

	idA := addFileTree(t, s, map[string]string{"shared.txt": "same bytes"})
	idB := addFileTree(t, s, map[string]string{"shared.txt": "same bytes", "other.txt": "b-only"})

	first, err := s.Optimise()
	require.NoError(t, err)
	require.Equal(t, uint64(len("same bytes")), first)

	second, err := s.Optimise()
	require.NoError(t, err)
	require.Equal(t, uint64(0), second, "a second pass must find nothing left to hardlink")

	pathA, _ := s.GetPath(idA)
	pathB, _ := s.GetPath(idB)
	require.Equal(t, inode(t, filepath.Join(pathA, "shared.txt")), inode(t, filepath.Join(pathB, "shared.txt")))
}

func TestOptimiseLeavesDistinctContentAlone(t *testing.T) {
	s, err := Open(t.TempDir(), ReadWrite)
	require.NoError(t, err)

	idA := addFileTree(t, s, map[string]string{"f.txt": "content one"})
	idB := addFileTree(t, s, map[string]string{"f.txt": "content two, longer"})

	reclaimed, err := s.Optimise()
	require.NoError(t, err)
	require.Equal(t, uint64(0), reclaimed)

	pathA, _ := s.GetPath(idA)
	pathB, _ := s.GetPath(idB)
	require.NotEqual(t, inode(t, filepath.Join(pathA, "f.txt")), inode(t, filepath.Join(pathB, "f.txt")))
}

func TestOptimiseRejectsOnReadOnlyStore(t *testing.T) {
	s, err := Open(t.TempDir(), ReadOnly)
	require.NoError(t, err)
	_, err = s.Optimise()
	require.Error(t, err)
}
