package objectstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustOpen(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func touch(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func listDir(t *testing.T, path string) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(path)
	require.NoError(t, err)
	return entries
}

func TestBasic(t *testing.T) {
	s := mustOpen(t)
	require.Empty(t, listDir(t, s.refsDir))
	require.Empty(t, listDir(t, s.objectsDir))

	tree, err := s.New("")
	require.NoError(t, err)
	lease, err := tree.Write()
	require.NoError(t, err)
	touch(t, filepath.Join(lease.Path, "A"))
	require.NoError(t, lease.Close())
	_, err = s.Commit(tree, "a")
	require.NoError(t, err)
	require.NoError(t, tree.Close())

	require.True(t, s.Contains("a"))
	require.FileExists(t, filepath.Join(s.refsDir, "a", "A"))
	require.Len(t, listDir(t, s.refsDir), 1)
	require.Len(t, listDir(t, s.objectsDir), 1)
	require.Len(t, listDir(t, filepath.Join(s.refsDir, "a")), 1)

	tree, err = s.New("")
	require.NoError(t, err)
	lease, err = tree.Write()
	require.NoError(t, err)
	touch(t, filepath.Join(lease.Path, "A"))
	touch(t, filepath.Join(lease.Path, "B"))
	require.NoError(t, lease.Close())
	_, err = s.Commit(tree, "b")
	require.NoError(t, err)
	require.NoError(t, tree.Close())

	require.True(t, s.Contains("b"))
	require.FileExists(t, filepath.Join(s.refsDir, "b", "B"))
	require.Len(t, listDir(t, s.refsDir), 2)
	require.Len(t, listDir(t, s.objectsDir), 2)
	require.Len(t, listDir(t, filepath.Join(s.refsDir, "b")), 2)

	_, ok := s.ResolveRef("")
	require.False(t, ok)
	p, ok := s.ResolveRef("a")
	require.True(t, ok)
	require.Equal(t, filepath.Join(s.refsDir, "a"), p)
}

func TestCleanup(t *testing.T) {
	s := mustOpen(t)
	tree, err := s.New("")
	require.NoError(t, err)
	require.Len(t, listDir(t, s.tmpDir), 1)

	lease, err := tree.Write()
	require.NoError(t, err)
	touch(t, filepath.Join(lease.Path, "A"))
	require.NoError(t, lease.Close())
	require.NoError(t, tree.Close())

	require.Empty(t, listDir(t, s.tmpDir))
}

func TestDuplicate(t *testing.T) {
	s := mustOpen(t)

	tree, err := s.New("")
	require.NoError(t, err)
	lease, err := tree.Write()
	require.NoError(t, err)
	touch(t, filepath.Join(lease.Path, "A"))
	require.NoError(t, lease.Close())
	_, err = s.Commit(tree, "a")
	require.NoError(t, err)
	require.NoError(t, tree.Close())

	tree, err = s.New("")
	require.NoError(t, err)
	lease, err = tree.Write()
	require.NoError(t, err)
	copyFile(t, filepath.Join(s.refsDir, "a", "A"), filepath.Join(lease.Path, "A"))
	require.NoError(t, lease.Close())
	_, err = s.Commit(tree, "b")
	require.NoError(t, err)
	require.NoError(t, tree.Close())

	require.FileExists(t, filepath.Join(s.refsDir, "a", "A"))
	require.FileExists(t, filepath.Join(s.refsDir, "b", "A"))
	require.Len(t, listDir(t, s.refsDir), 2)
	require.Len(t, listDir(t, s.objectsDir), 1)
	require.Len(t, listDir(t, filepath.Join(s.refsDir, "a")), 1)
	require.Len(t, listDir(t, filepath.Join(s.refsDir, "b")), 1)
}

func copyFile(t *testing.T, src, dst string) {
	t.Helper()
	data, err := os.ReadFile(src)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(dst, data, 0o644))
}

func TestObjectBase(t *testing.T) {
	s := mustOpen(t)

	tree, err := s.New("")
	require.NoError(t, err)
	lease, err := tree.Write()
	require.NoError(t, err)
	touch(t, filepath.Join(lease.Path, "A"))
	require.NoError(t, lease.Close())
	_, err = s.Commit(tree, "a")
	require.NoError(t, err)
	require.NoError(t, tree.Close())

	tree, err = s.New("a")
	require.NoError(t, err)
	_, err = s.Commit(tree, "b")
	require.NoError(t, err)
	require.NoError(t, tree.Close())

	tree, err = s.New("b")
	require.NoError(t, err)
	lease, err = tree.Write()
	require.NoError(t, err)
	touch(t, filepath.Join(lease.Path, "C"))
	require.NoError(t, lease.Close())
	_, err = s.Commit(tree, "c")
	require.NoError(t, err)
	require.NoError(t, tree.Close())

	require.FileExists(t, filepath.Join(s.refsDir, "a", "A"))
	require.FileExists(t, filepath.Join(s.refsDir, "b", "A"))
	require.FileExists(t, filepath.Join(s.refsDir, "c", "A"))
	require.FileExists(t, filepath.Join(s.refsDir, "c", "C"))

	require.Len(t, listDir(t, s.refsDir), 3)
	require.Len(t, listDir(t, s.objectsDir), 2)
}
