package treehash

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTreeDeterministic(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "A"), []byte("a"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "B"), []byte("b"), 0o644))

	h1, err := Tree(dir)
	require.NoError(t, err)
	h2, err := Tree(dir)
	require.NoError(t, err)
	require.Equal(t, h1, h2)
	require.False(t, h1.IsZero())
}

func TestTreeOrderIndependentOfListing(t *testing.T) {
	a := t.TempDir()
	b := t.TempDir()
	// create entries in reverse order between the two trees; the digest
	// must not depend on creation order, only on sorted names.
	require.NoError(t, os.WriteFile(filepath.Join(a, "1"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(a, "2"), []byte("y"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(b, "2"), []byte("y"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(b, "1"), []byte("x"), 0o644))

	ha, err := Tree(a)
	require.NoError(t, err)
	hb, err := Tree(b)
	require.NoError(t, err)
	require.Equal(t, ha, hb)
}

func TestTreeChangesWithContent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "A"), []byte("a"), 0o644))
	h1, err := Tree(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "A"), []byte("changed"), 0o644))
	h2, err := Tree(dir)
	require.NoError(t, err)
	require.NotEqual(t, h1, h2)
}

func TestTreeSymlink(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "target"), []byte("x"), 0o644))
	require.NoError(t, os.Symlink("target", filepath.Join(dir, "link")))

	h1, err := Tree(dir)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(dir, "link")))
	require.NoError(t, os.Symlink("target2", filepath.Join(dir, "link")))
	h2, err := Tree(dir)
	require.NoError(t, err)
	require.NotEqual(t, h1, h2)
}
