package objectstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jikortus/osbuild/modules/treehash"
)

// Commit computes tree's treesum, promotes its content into
// objects/<treesum> (or, if an object with that treesum already exists,
// discards the tree's content and reuses the existing one — the
// deduplication guarantee of spec §4.1), and creates refs/<refName>
// pointing at it. After a successful commit, tree.Base() returns refName
// and the tree's copy-on-write layer is cleared, so the next write
// re-materializes from the newly committed base.
//
// Commit requires tree to be usable and held by neither a reader nor a
// writer in the caller's scope.
func (s *Store) Commit(tree *Object, refName string) (treehash.Hash, error) {
	if refName == "" {
		return treehash.ZeroHash, fmt.Errorf("objectstore: commit requires a non-empty ref name")
	}

	tree.mu.Lock()
	if !tree.usable {
		tree.mu.Unlock()
		return treehash.ZeroHash, newStateError("commit", ErrSealed)
	}
	if tree.writer || tree.readers > 0 {
		tree.mu.Unlock()
		return treehash.ZeroHash, newStateError("commit", ErrLeaseHeld)
	}
	tree.mu.Unlock()

	sum, err := tree.Treesum()
	if err != nil {
		return treehash.ZeroHash, err
	}

	if err := s.promote(tree, sum); err != nil {
		return treehash.ZeroHash, err
	}
	if err := writeManifest(s.objectsDir, sum, filepath.Join(s.objectsDir, sum.String())); err != nil {
		// The manifest is read-side convenience only; its absence is
		// never an error to a caller of Commit.
		log.WithError(err).Warn("failed to write object manifest sidecar")
	}
	if err := s.linkRef(refName, sum); err != nil {
		return treehash.ZeroHash, err
	}

	tree.mu.Lock()
	tree.base = refName
	tree.materialized = false
	tree.committed = true
	tree.treesum = sum
	tree.treesumValid = true
	tree.mu.Unlock()

	s.markExists(sum)
	log.WithField("ref", refName).WithField("treesum", sum.String()).Debug("committed working tree")
	return sum, nil
}

// promote ensures objects/<sum> exists, either by renaming tree's tmp
// directory into place (first occurrence) or by discarding it (the
// object already exists — deduplication).
func (s *Store) promote(tree *Object, sum treehash.Hash) error {
	dest := filepath.Join(s.objectsDir, sum.String())

	if !tree.materialized {
		// Nothing was ever written: the tree's content is exactly its
		// base's (or, with no base, the empty tree), which is already
		// present under objects/ if it has a base, or needs to be
		// created fresh if it does not.
		if s.objectExists(sum) {
			return nil
		}
		return os.MkdirAll(dest, 0o755)
	}

	if err := os.Rename(tree.path, dest); err == nil {
		return nil
	}
	// Rename failed. Rather than interrogate platform-specific errno
	// values for "destination exists", just check directly: if the
	// object is there, another commit (possibly concurrent) got there
	// first with byte-identical content and we discard our copy; any
	// other cause is a genuine I/O failure.
	if _, statErr := os.Stat(dest); statErr == nil {
		return os.RemoveAll(tree.path)
	}
	return fmt.Errorf("objectstore: promote %s: %w", tree.path, err)
}

func (s *Store) linkRef(refName string, sum treehash.Hash) error {
	refPath := filepath.Join(s.refsDir, refName)
	if err := os.MkdirAll(filepath.Dir(refPath), 0o755); err != nil {
		return fmt.Errorf("objectstore: create ref dir: %w", err)
	}
	_ = os.Remove(refPath) // a prior ref under the same name is replaced
	target, err := filepath.Rel(filepath.Dir(refPath), filepath.Join(s.objectsDir, sum.String()))
	if err != nil {
		target = filepath.Join(s.objectsDir, sum.String())
	}
	if err := os.Symlink(target, refPath); err != nil {
		return fmt.Errorf("objectstore: link ref %s: %w", refName, err)
	}
	return nil
}

// markExists records sum as present in the positive-only existence cache.
func (s *Store) markExists(sum treehash.Hash) {
	s.exists.Set(sum.String(), struct{}{}, 1)
}
