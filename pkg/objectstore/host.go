package objectstore

import "sync"

// HostTree is a working tree permanently bound to the host filesystem root,
// per spec §4.5. It never allocates a tmp/ entry and is never committed: it
// exists purely so callers that generically hold an Object-like handle can
// be handed a read-only view of the live host root instead of a checkout.
//
// Read always succeeds, yielding root. Write always fails with a
// *StateError wrapping ErrHostTreeWrite — a HostTree never yields a
// mutable path. Base, SetBase, and Treesum are not meaningful for a tree
// whose content is the live host filesystem and are not implemented.
type HostTree struct {
	root string

	mu      sync.Mutex
	readers int
	usable  bool
}

// NewHostTree returns a HostTree bound to root (typically "/").
func NewHostTree(root string) *HostTree {
	return &HostTree{root: root, usable: true}
}

// Read acquires a read lease over the host root. It fails with a
// *StateError only once the tree has been closed.
func (h *HostTree) Read() (ReadLease, error) {
	h.mu.Lock()
	if !h.usable {
		h.mu.Unlock()
		return ReadLease{}, newStateError("read", ErrSealed)
	}
	h.readers++
	h.mu.Unlock()

	return ReadLease{Path: h.root, release: h.releaseRead}, nil
}

func (h *HostTree) releaseRead() {
	h.mu.Lock()
	h.readers--
	h.mu.Unlock()
}

// Write always fails: a HostTree is permanently read-only, per spec §4.5.
func (h *HostTree) Write() (WriteLease, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.usable {
		return WriteLease{}, newStateError("write", ErrSealed)
	}
	return WriteLease{}, newStateError("write", ErrHostTreeWrite)
}

// Close seals the HostTree. It holds no tmp/ resources to release.
func (h *HostTree) Close() error {
	h.mu.Lock()
	h.usable = false
	h.mu.Unlock()
	return nil
}
