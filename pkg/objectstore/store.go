// Package objectstore implements a content-addressed object store for
// filesystem trees: working-tree checkout/commit, copy-on-write
// materialization of a base tree, and a committed objects/refs mapping.
package objectstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/emirpasic/gods/sets/treeset"
	"github.com/emirpasic/gods/utils"
	"github.com/jikortus/osbuild/modules/treehash"
	"github.com/jikortus/osbuild/modules/uid"
)

const (
	objectsDirName = "objects"
	refsDirName    = "refs"
	tmpDirName     = "tmp"

	defaultCompressionALGO = "zstd"
)

// Store is a handle to a root directory organized into objects/, refs/,
// and tmp/ subdirectories. A Store owns every entry it creates under
// tmp/: Close removes all of them. It never touches objects/ or refs/
// except via Commit.
type Store struct {
	root, objectsDir, refsDir, tmpDir string

	cfg storeConfig

	mu   sync.Mutex
	live *treeset.Set // tmp/ directory names handed out and not yet released

	exists *ristretto.Cache[string, struct{}] // positive-only cache of objects/<sum> existence

	closed uint32
}

// Option configures a Store at Open time.
type Option func(*options)

type options struct {
	compressionALGO string
}

// WithCompressionALGO sets the compression algorithm name recorded in a
// new store's config.toml. The default is "zstd". The manifest sidecar
// written for each committed object is always zstd-compressed, whatever
// name is recorded.
func WithCompressionALGO(algo string) Option {
	return func(o *options) {
		if algo != "" {
			o.compressionALGO = algo
		}
	}
}

// Open binds a Store to root, creating objects/, refs/, and tmp/ if they
// do not already exist. Open is idempotent: reopening an existing store
// validates that it was created with the same hash algorithm this build
// uses.
func Open(root string, opts ...Option) (*Store, error) {
	o := &options{compressionALGO: defaultCompressionALGO}
	for _, fn := range opts {
		fn(o)
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("objectstore: resolve root: %w", err)
	}

	s := &Store{
		root:       abs,
		objectsDir: filepath.Join(abs, objectsDirName),
		refsDir:    filepath.Join(abs, refsDirName),
		tmpDir:     filepath.Join(abs, tmpDirName),
		live:       treeset.NewWith(utils.StringComparator),
	}
	for _, dir := range []string{s.objectsDir, s.refsDir, s.tmpDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("objectstore: create %s: %w", dir, err)
		}
	}

	if s.cfg, err = loadOrInitConfig(abs, o.compressionALGO); err != nil {
		return nil, err
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, struct{}]{
		NumCounters: 10000,
		MaxCost:     10000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("objectstore: create cache: %w", err)
	}
	s.exists = cache

	log.WithField("root", abs).Debug("store opened")
	return s, nil
}

// Root returns the absolute path this Store is bound to.
func (s *Store) Root() string { return s.root }

// New allocates a fresh working tree under tmp/. If baseRef is non-empty,
// the new tree's initial content is that of the named ref (lazily: no
// materialization happens until the tree's first Write). baseRef must
// already exist per Contains, or New returns an error.
func (s *Store) New(baseRef string) (*Object, error) {
	if baseRef != "" && !s.Contains(baseRef) {
		return nil, fmt.Errorf("objectstore: base ref %q does not exist", baseRef)
	}
	name, err := s.allocTmp()
	if err != nil {
		return nil, err
	}
	o := &Object{
		store:   s,
		tmpName: name,
		path:    filepath.Join(s.tmpDir, name),
		base:    baseRef,
		usable:  true,
	}
	if baseRef != "" {
		if sum, ok := s.refTreesum(baseRef); ok {
			o.treesum = sum
			o.treesumValid = true
		}
	}
	return o, nil
}

func (s *Store) allocTmp() (string, error) {
	name := uid.NewString()
	if err := os.MkdirAll(filepath.Join(s.tmpDir, name), 0o755); err != nil {
		return "", fmt.Errorf("objectstore: create working tree: %w", err)
	}
	s.mu.Lock()
	s.live.Add(name)
	s.mu.Unlock()
	return name, nil
}

// release removes a working tree's tmp/ entry and stops tracking it. It is
// called once from Object's scope-exit path, whether or not the tree was
// committed (when Commit renamed the tree's tmp/ entry into objects/ and
// it was not written again, RemoveAll below is a no-op).
func (s *Store) release(tmpName string) {
	s.mu.Lock()
	s.live.Remove(tmpName)
	s.mu.Unlock()
	_ = os.RemoveAll(filepath.Join(s.tmpDir, tmpName))
}

// Contains reports whether refs/<refName> exists.
func (s *Store) Contains(refName string) bool {
	if refName == "" {
		return false
	}
	_, err := os.Lstat(filepath.Join(s.refsDir, refName))
	return err == nil
}

// ResolveRef returns the absolute path of refs/<refName> if it exists.
// ResolveRef("") always reports not-found.
func (s *Store) ResolveRef(refName string) (string, bool) {
	if refName == "" {
		return "", false
	}
	p := filepath.Join(s.refsDir, refName)
	if _, err := os.Lstat(p); err != nil {
		return "", false
	}
	return p, true
}

// refTreesum returns the treesum a committed ref points to, derived
// directly from the objects/ path it resolves to (no hashing needed: the
// directory name under objects/ is the treesum).
func (s *Store) refTreesum(refName string) (treehash.Hash, bool) {
	target, ok := s.resolveRefObjectDir(refName)
	if !ok {
		return treehash.ZeroHash, false
	}
	sum := treehash.New(filepath.Base(target))
	return sum, true
}

func (s *Store) resolveRefObjectDir(refName string) (string, bool) {
	p := filepath.Join(s.refsDir, refName)
	target, err := filepath.EvalSymlinks(p)
	if err != nil {
		return "", false
	}
	return target, true
}

// objectExists reports whether objects/<sum> already exists, consulting
// (and populating) the in-process cache. The cache is positive-only: a
// miss always falls back to a real stat, so a cold or evicted cache can
// never cause a false negative.
func (s *Store) objectExists(sum treehash.Hash) bool {
	key := sum.String()
	if _, ok := s.exists.Get(key); ok {
		return true
	}
	if _, err := os.Stat(filepath.Join(s.objectsDir, key)); err != nil {
		return false
	}
	s.exists.Set(key, struct{}{}, 1)
	return true
}

// Close removes every working tree this Store created under tmp/ that is
// still live. It never touches objects/ or refs/.
func (s *Store) Close() error {
	if !atomic.CompareAndSwapUint32(&s.closed, 0, 1) {
		return errors.New("objectstore: store already closed")
	}
	s.mu.Lock()
	names := s.live.Values()
	s.live.Clear()
	s.mu.Unlock()

	var errs []error
	for _, v := range names {
		name := v.(string)
		if err := os.RemoveAll(filepath.Join(s.tmpDir, name)); err != nil {
			errs = append(errs, err)
		}
	}
	s.exists.Close()
	log.WithField("root", s.root).Debug("store closed")
	return errors.Join(errs...)
}
