package vfs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	defaultDirectoryMode = 0o755
	defaultCreateMode    = 0o666
)

// BoundOS is a VFS implementation based on the OS filesystem which is bound
// to a base directory.
//
// Behaviours of note:
//  1. Read and write operations can only be directed to paths which
//     descend from the base dir — callers cannot escape it with "../".
//  2. Symlinks don't have their targets modified, and therefore can point
//     to locations outside the base dir or to non-existent paths.
//  3. Readlink and Lstat ensure that the link file itself is located
//     within the base dir.
type BoundOS struct {
	baseDir string
}

func newBoundOS(d string, _ bool) VFS {
	return &BoundOS{baseDir: filepath.Clean(d)}
}

func (fs *BoundOS) Create(filename string) (*os.File, error) {
	return fs.OpenFile(filename, os.O_RDWR|os.O_CREATE|os.O_TRUNC, defaultCreateMode)
}

func (fs *BoundOS) OpenFile(filename string, flag int, perm os.FileMode) (*os.File, error) {
	fn, err := fs.abs(filename)
	if err != nil {
		return nil, err
	}
	if flag&os.O_CREATE != 0 {
		if err := fs.createDir(fn); err != nil {
			return nil, err
		}
	}
	return os.OpenFile(fn, flag, perm)
}

func (fs *BoundOS) ReadDir(path string) ([]os.DirEntry, error) {
	dir, err := fs.abs(path)
	if err != nil {
		return nil, err
	}
	return os.ReadDir(dir)
}

func (fs *BoundOS) Rename(from, to string) error {
	f, err := fs.abs(from)
	if err != nil {
		return err
	}
	t, err := fs.abs(to)
	if err != nil {
		return err
	}
	if err := fs.createDir(t); err != nil {
		return err
	}
	return os.Rename(f, t)
}

func (fs *BoundOS) MkdirAll(path string, perm os.FileMode) error {
	dir, err := fs.abs(path)
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, perm)
}

func (fs *BoundOS) Open(filename string) (*os.File, error) {
	return fs.OpenFile(filename, os.O_RDONLY, 0)
}

func (fs *BoundOS) Stat(filename string) (os.FileInfo, error) {
	filename, err := fs.abs(filename)
	if err != nil {
		return nil, err
	}
	return os.Stat(filename)
}

func (fs *BoundOS) Remove(filename string) error {
	fn, err := fs.abs(filename)
	if err != nil {
		return err
	}
	return os.Remove(fn)
}

func (fs *BoundOS) Join(elem ...string) string {
	return filepath.Join(elem...)
}

func (fs *BoundOS) RemoveAll(path string) error {
	dir, err := fs.abs(path)
	if err != nil {
		return err
	}
	return os.RemoveAll(dir)
}

func (fs *BoundOS) Symlink(target, link string) error {
	ln, err := fs.abs(link)
	if err != nil {
		return err
	}
	if err := fs.createDir(ln); err != nil {
		return err
	}
	return os.Symlink(target, ln)
}

func (fs *BoundOS) Lstat(filename string) (os.FileInfo, error) {
	fn, err := fs.abs(filename)
	if err != nil {
		return nil, err
	}
	return os.Lstat(fn)
}

func (fs *BoundOS) Readlink(link string) (string, error) {
	ln, err := fs.abs(link)
	if err != nil {
		return "", err
	}
	return os.Readlink(ln)
}

// Root returns the base dir this VFS is bound to.
func (fs *BoundOS) Root() string {
	return fs.baseDir
}

func (fs *BoundOS) createDir(fullpath string) error {
	dir := filepath.Dir(fullpath)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, defaultDirectoryMode)
}

var ErrPathOutsideBase = errors.New("vfs: path outside base dir")

// abs resolves filename against the base dir. A path that, once cleaned,
// lies outside the base dir (for example "../x") is rejected with
// ErrPathOutsideBase.
func (fs *BoundOS) abs(filename string) (string, error) {
	if filepath.IsAbs(filename) {
		clean := filepath.Clean(filename)
		if clean == fs.baseDir || strings.HasPrefix(clean, fs.baseDir+string(filepath.Separator)) {
			return clean, nil
		}
		return "", fmt.Errorf("%w: %s", ErrPathOutsideBase, filename)
	}
	joined := filepath.Join(fs.baseDir, filename)
	if joined != fs.baseDir && !strings.HasPrefix(joined, fs.baseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathOutsideBase, filename)
	}
	return joined, nil
}
