package objectstore

import (
	"fmt"
	"os"

	"github.com/jikortus/osbuild/modules/reflink"
	"github.com/jikortus/osbuild/modules/vfs"
)

// materialize prepares dst to hold a working tree's mutable content. dst
// may not exist on disk yet: a tree committed earlier has had its tmp/
// entry renamed away by Commit, so the first Write after a commit starts
// from scratch here. If base is "", there is nothing to copy — dst is
// simply (re)created, empty. Otherwise the entire contents of the base's
// committed object directory are cloned into dst: regular files via
// reflink.CloneFile (filesystem copy-on-write where supported, falling
// back to a full copy), directories recreated structurally, and symlinks
// recreated pointing at their original targets. Files under dst are new
// inodes; before materialization, Object.Read serves the base's object
// directory itself, which is what gives reads the base's inodes.
//
// All traversal of src and dst is bound through modules/vfs, so cloning
// can never step outside either directory regardless of what entry names
// the base tree happens to contain.
func materialize(s *Store, dst, base string) error {
	if base == "" {
		return os.MkdirAll(dst, 0o755)
	}
	src, ok := s.resolveRefObjectDir(base)
	if !ok {
		return fmt.Errorf("objectstore: base ref %q does not resolve to an object", base)
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return fmt.Errorf("objectstore: create %s: %w", dst, err)
	}
	return cloneTree(vfs.NewVFS(dst), vfs.NewVFS(src), ".")
}

// cloneTree recreates, under dstFS, the subtree rooted at rel (relative
// to both dstFS's and srcFS's own bases). Each VFS is bound to the
// working tree or object directory it walks, so a symlink or directory
// name under src can never cause a write outside dst, nor a read outside
// src.
func cloneTree(dstFS, srcFS vfs.VFS, rel string) error {
	entries, err := srcFS.ReadDir(rel)
	if err != nil {
		return fmt.Errorf("objectstore: list base %s: %w", rel, err)
	}
	for _, e := range entries {
		srcRel := srcFS.Join(rel, e.Name())
		dstRel := dstFS.Join(rel, e.Name())
		info, err := e.Info()
		if err != nil {
			return fmt.Errorf("objectstore: stat %s: %w", srcRel, err)
		}
		switch {
		case info.Mode()&os.ModeSymlink != 0:
			target, err := srcFS.Readlink(srcRel)
			if err != nil {
				return fmt.Errorf("objectstore: readlink %s: %w", srcRel, err)
			}
			if err := dstFS.Symlink(target, dstRel); err != nil {
				return fmt.Errorf("objectstore: recreate symlink %s: %w", dstRel, err)
			}
		case e.IsDir():
			if err := dstFS.MkdirAll(dstRel, info.Mode().Perm()); err != nil {
				return fmt.Errorf("objectstore: recreate dir %s: %w", dstRel, err)
			}
			if err := cloneTree(dstFS, srcFS, srcRel); err != nil {
				return err
			}
		default:
			srcAbs := srcFS.Join(srcFS.Root(), srcRel)
			dstAbs := dstFS.Join(dstFS.Root(), dstRel)
			if _, err := reflink.CloneFile(dstAbs, srcAbs, info.Mode().Perm()); err != nil {
				return fmt.Errorf("objectstore: clone %s: %w", srcAbs, err)
			}
		}
	}
	return nil
}
