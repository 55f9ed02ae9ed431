package vfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBoundOSWriteAndRead(t *testing.T) {
	dir := t.TempDir()
	v := NewVFS(dir)

	f, err := v.Create("A")
	require.NoError(t, err)
	_, err = f.WriteString("hello")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	entries, err := v.ReadDir(".")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "A", entries[0].Name())

	data, err := os.ReadFile(filepath.Join(dir, "A"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))
}

func TestBoundOSRejectsEscape(t *testing.T) {
	dir := t.TempDir()
	v := NewVFS(dir)

	_, err := v.Open("../../etc/passwd")
	require.Error(t, err)
}

func TestBoundOSMkdirAllAndSymlink(t *testing.T) {
	dir := t.TempDir()
	v := NewVFS(dir)

	require.NoError(t, v.MkdirAll("a/b/c", 0o755))
	require.NoError(t, v.Symlink("target", "a/link"))

	target, err := v.Readlink("a/link")
	require.NoError(t, err)
	require.Equal(t, "target", target)

	fi, err := v.Lstat("a/link")
	require.NoError(t, err)
	require.True(t, fi.Mode()&os.ModeSymlink != 0)
}
