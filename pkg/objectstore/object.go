package objectstore

import (
	"fmt"
	"sync"

	"github.com/jikortus/osbuild/modules/treehash"
)

// Object is a working tree: a mutable (or, once committed and
// unmaterialized again, read-only-by-sharing) directory under tmp/,
// subject to the reader/writer lease discipline described in spec §4.2.
//
// The zero value is not usable; Objects are obtained from Store.New.
type Object struct {
	store   *Store
	tmpName string
	path    string // tmp/<tmpName>; the working tree's on-disk root once materialized

	mu           sync.Mutex
	base         string // ref name this tree derives from, or "" for none
	readers      int
	writer       bool
	usable       bool
	materialized bool // true once copy-on-write materialization has happened
	committed    bool // true once Store.Commit has promoted this tree
	treesum      treehash.Hash
	treesumValid bool
}

// Read acquires a read lease. It fails with a *StateError if a writer is
// active or the tree is no longer usable. Nested read leases (including
// one taken internally by Treesum) are allowed.
func (o *Object) Read() (ReadLease, error) {
	o.mu.Lock()
	if !o.usable {
		o.mu.Unlock()
		return ReadLease{}, newStateError("read", ErrSealed)
	}
	if o.writer {
		o.mu.Unlock()
		return ReadLease{}, newStateError("read", ErrWriterActive)
	}
	o.readers++
	path := o.currentPathLocked()
	o.mu.Unlock()

	return ReadLease{Path: path, release: o.releaseRead}, nil
}

func (o *Object) releaseRead() {
	o.mu.Lock()
	o.readers--
	o.mu.Unlock()
}

// Write acquires the exclusive write lease, materializing the working
// tree from its base on first write since construction or commit. It
// fails with a *StateError if any reader or writer is active, or if the
// tree is not usable.
func (o *Object) Write() (WriteLease, error) {
	o.mu.Lock()
	if !o.usable {
		o.mu.Unlock()
		return WriteLease{}, newStateError("write", ErrSealed)
	}
	if o.readers > 0 {
		o.mu.Unlock()
		return WriteLease{}, newStateError("write", ErrReaderActive)
	}
	if o.writer {
		o.mu.Unlock()
		return WriteLease{}, newStateError("write", ErrWriterActive)
	}
	o.writer = true
	needsMaterialize := !o.materialized
	base := o.base
	o.mu.Unlock()

	if needsMaterialize {
		if err := materialize(o.store, o.path, base); err != nil {
			o.mu.Lock()
			o.writer = false
			o.mu.Unlock()
			return WriteLease{}, err
		}
		o.mu.Lock()
		o.materialized = true
		o.mu.Unlock()
		log.WithField("path", o.path).Debug("materialized working tree")
	}

	return WriteLease{Path: o.path, release: o.releaseWrite}, nil
}

func (o *Object) releaseWrite() {
	o.mu.Lock()
	o.writer = false
	o.treesumValid = false
	o.mu.Unlock()
}

// currentPathLocked returns the directory whose content currently backs
// this working tree's reads, under o.mu. Before materialization it is the
// base's committed object directory (or the empty tmp directory, for a
// tree with no base); after materialization it is the tmp working
// directory itself.
func (o *Object) currentPathLocked() string {
	if o.materialized || o.base == "" {
		return o.path
	}
	if dir, ok := o.store.resolveRefObjectDir(o.base); ok {
		return dir
	}
	return o.path
}

// Treesum computes (or returns the cached) content hash of the tree's
// current state. It fails with a *StateError if a writer is active.
func (o *Object) Treesum() (treehash.Hash, error) {
	o.mu.Lock()
	if o.writer {
		o.mu.Unlock()
		return treehash.ZeroHash, newStateError("treesum", ErrWriterActive)
	}
	if o.treesumValid {
		sum := o.treesum
		o.mu.Unlock()
		return sum, nil
	}
	o.mu.Unlock()

	lease, err := o.Read()
	if err != nil {
		return treehash.ZeroHash, err
	}
	defer lease.Close()

	sum, err := treehash.Tree(lease.Path)
	if err != nil {
		return treehash.ZeroHash, err
	}

	o.mu.Lock()
	o.treesum = sum
	o.treesumValid = true
	o.mu.Unlock()
	return sum, nil
}

// Base returns the ref name this tree currently derives from, or "" if
// none. It requires no lease to be held.
func (o *Object) Base() (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.usable {
		return "", newStateError("base", ErrSealed)
	}
	if o.writer || o.readers > 0 {
		return "", newStateError("base", ErrLeaseHeld)
	}
	return o.base, nil
}

// SetBase re-points the working tree at a new base, re-linking lazily
// (see spec §4.3). It is only
// defined before any write has occurred since construction or the last
// commit; afterward it fails with a *StateError, per the REDESIGN
// resolution of the source's unspecified post-write behavior.
func (o *Object) SetBase(refName string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.usable {
		return newStateError("set-base", ErrSealed)
	}
	if o.writer || o.readers > 0 {
		return newStateError("set-base", ErrLeaseHeld)
	}
	if o.materialized {
		return newStateError("set-base", ErrWrittenSince)
	}
	if refName != "" && !o.store.Contains(refName) {
		return fmt.Errorf("objectstore: set-base: ref %q does not exist", refName)
	}
	o.base = refName
	o.treesumValid = false
	if refName != "" {
		if sum, ok := o.store.refTreesum(refName); ok {
			o.treesum = sum
			o.treesumValid = true
		}
	}
	return nil
}

// Close seals the working tree's owning scope: it becomes permanently
// unusable, and its tmp/ entry is removed (a no-op if Commit already
// promoted or discarded it). Callers obtain an Object from Store.New and
// must call Close exactly once, typically via defer.
func (o *Object) Close() error {
	o.mu.Lock()
	already := !o.usable
	o.usable = false
	o.mu.Unlock()
	if already {
		return nil
	}
	o.store.release(o.tmpName)
	log.WithField("path", o.path).Debug("working tree sealed")
	return nil
}
