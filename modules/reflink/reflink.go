// Package reflink clones regular files using filesystem copy-on-write
// where the platform supports it, falling back to a streamed byte copy.
package reflink

import (
	"errors"
	"io/fs"
	"os"

	"github.com/jikortus/osbuild/modules/streamio"
)

// Method identifies how CloneFile actually produced the destination, so
// callers that care about inode-sharing semantics (copy-on-write
// materialization) can tell a true clone/hardlink from a plain copy.
type Method int

const (
	// MethodReflink: dst shares storage blocks with src until either is
	// written to (the underlying filesystem breaks sharing per-extent).
	MethodReflink Method = iota
	// MethodHardlink: dst is the same inode as src; writing to either
	// mutates both unless the filesystem provides copy-on-write semantics
	// for hardlinks too, which most do not. CloneFile never produces it:
	// writes to a hardlinked dst would reach src.
	MethodHardlink
	// MethodCopy: dst is an independent byte-for-byte copy of src.
	MethodCopy
)

// CloneFile creates dst as a clone of src, preferring a filesystem reflink
// and falling back to a full byte copy; it never hardlinks. perm is applied
// to dst when the result is an independent copy; reflinked destinations
// inherit src's mode.
func CloneFile(dst, src string, perm fs.FileMode) (Method, error) {
	if err := cloneFile(dst, src); err == nil {
		return MethodReflink, nil
	}
	if err := copyFile(dst, src, perm); err != nil {
		return MethodCopy, err
	}
	return MethodCopy, nil
}

func copyFile(dst, src string, perm fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := streamio.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// ErrNotSupported is returned by platform-specific cloneFile
// implementations when the underlying filesystem does not support
// copy-on-write reflinks.
var ErrNotSupported = errors.New("reflink: not supported")
