package treehash

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// entry type tags, written into the hash stream ahead of each directory
// entry's type-specific payload.
const (
	tagFile    = 'F'
	tagDir     = 'D'
	tagSymlink = 'L'
)

// Tree computes the treesum of the directory rooted at path, per the
// normalization rules: entries are visited in sorted byte-lexicographic
// order of their names; each entry contributes its name, a type tag, and
// type-specific data (file bytes + mode, a recursive digest for
// directories, or the symlink target for symlinks). File content is
// streamed directly into the hash rather than buffered, so memory use does
// not grow with tree size.
func Tree(path string) (Hash, error) {
	h := NewHasher()
	if err := writeDir(h, path); err != nil {
		return ZeroHash, err
	}
	return h.Sum(), nil
}

func writeDir(h Hasher, path string) error {
	entries, err := os.ReadDir(path)
	if err != nil {
		return fmt.Errorf("treehash: read dir %s: %w", path, err)
	}
	// os.ReadDir returns entries already sorted by filename; sort again
	// explicitly since the ordering is a correctness requirement of the
	// digest, not something that should depend on an incidental stdlib
	// guarantee.
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, e := range entries {
		if err := writeEntry(h, filepath.Join(path, e.Name()), e.Name(), e); err != nil {
			return err
		}
	}
	return nil
}

func writeEntry(h Hasher, full, name string, e os.DirEntry) error {
	if _, err := io.WriteString(h, name); err != nil {
		return err
	}
	info, err := e.Info()
	if err != nil {
		return fmt.Errorf("treehash: stat %s: %w", full, err)
	}
	switch {
	case info.Mode()&os.ModeSymlink != 0:
		return writeSymlink(h, full)
	case e.IsDir():
		return writeSubdir(h, full)
	default:
		return writeFile(h, full, info)
	}
}

func writeSubdir(h Hasher, full string) error {
	if _, err := h.Write([]byte{tagDir}); err != nil {
		return err
	}
	sub, err := Tree(full)
	if err != nil {
		return err
	}
	_, err = h.Write(sub[:])
	return err
}

func writeSymlink(h Hasher, full string) error {
	if _, err := h.Write([]byte{tagSymlink}); err != nil {
		return err
	}
	target, err := os.Readlink(full)
	if err != nil {
		return fmt.Errorf("treehash: readlink %s: %w", full, err)
	}
	_, err = io.WriteString(h, target)
	return err
}

func writeFile(h Hasher, full string, info os.FileInfo) error {
	if _, err := h.Write([]byte{tagFile}); err != nil {
		return err
	}
	var mode [4]byte
	putUint32(mode[:], uint32(info.Mode().Perm()))
	if _, err := h.Write(mode[:]); err != nil {
		return err
	}
	f, err := os.Open(full)
	if err != nil {
		return fmt.Errorf("treehash: open %s: %w", full, err)
	}
	defer f.Close()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("treehash: read %s: %w", full, err)
	}
	return nil
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}
