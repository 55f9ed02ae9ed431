package objectstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMaterializeRecreatesMissingDst(t *testing.T) {
	root := t.TempDir()
	s := &Store{objectsDir: filepath.Join(root, "objects"), refsDir: filepath.Join(root, "refs")}
	require.NoError(t, os.MkdirAll(s.objectsDir, 0o755))
	require.NoError(t, os.MkdirAll(s.refsDir, 0o755))

	objDir := filepath.Join(s.objectsDir, "deadbeef")
	require.NoError(t, os.MkdirAll(filepath.Join(objDir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(objDir, "A"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(objDir, "sub", "B"), []byte("b"), 0o644))
	require.NoError(t, os.Symlink("A", filepath.Join(objDir, "link")))
	require.NoError(t, os.Symlink(objDir, filepath.Join(s.refsDir, "base")))

	// dst does not exist on disk yet, mirroring the state left behind by
	// Commit's rename of a previously-materialized tmp/ directory.
	dst := filepath.Join(root, "tmp", "fresh-checkout")
	_, statErr := os.Stat(dst)
	require.True(t, os.IsNotExist(statErr))

	require.NoError(t, materialize(s, dst, "base"))

	require.FileExists(t, filepath.Join(dst, "A"))
	require.FileExists(t, filepath.Join(dst, "sub", "B"))
	target, err := os.Readlink(filepath.Join(dst, "link"))
	require.NoError(t, err)
	require.Equal(t, "A", target)
}

func TestMaterializeNoBaseCreatesEmptyDst(t *testing.T) {
	root := t.TempDir()
	dst := filepath.Join(root, "tmp", "fresh-checkout")
	require.NoError(t, materialize(&Store{}, dst, ""))
	require.DirExists(t, dst)
	entries, err := os.ReadDir(dst)
	require.NoError(t, err)
	require.Empty(t, entries)
}
