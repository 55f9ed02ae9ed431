package objectstore

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/jikortus/osbuild/modules/streamio"
	"github.com/jikortus/osbuild/modules/treehash"
)

// manifestEntry describes one top-level entry of a committed object, for
// cheap introspection (size, kind) without re-walking the committed tree.
type manifestEntry struct {
	Name string
	Kind string // "file", "dir", "symlink"
	Size int64
}

// manifestsDirName is the store-root subdirectory holding manifest
// sidecars. It is a sibling of objects/, so objects/ lists only object
// directories.
const manifestsDirName = "manifests"

func manifestPath(objectsDir string, sum treehash.Hash) string {
	return filepath.Join(filepath.Dir(objectsDir), manifestsDirName, sum.String()+".manifest.zst")
}

// writeManifest records the top-level shape of the object at objDir into a
// zstd-compressed sidecar under <root>/manifests/. This is read-side
// convenience only: Contains and ResolveRef never consult it, and its
// absence is never an error.
func writeManifest(objectsDir string, sum treehash.Hash, objDir string) error {
	entries, err := os.ReadDir(objDir)
	if err != nil {
		return fmt.Errorf("objectstore: list %s: %w", objDir, err)
	}
	descs := make([]manifestEntry, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			return fmt.Errorf("objectstore: stat %s: %w", e.Name(), err)
		}
		descs = append(descs, manifestEntry{
			Name: e.Name(),
			Kind: entryKind(info),
			Size: info.Size(),
		})
	}
	sort.Slice(descs, func(i, j int) bool { return descs[i].Name < descs[j].Name })

	path := manifestPath(objectsDir, sum)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("objectstore: create manifest dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("objectstore: create manifest: %w", err)
	}
	defer f.Close()

	z := streamio.GetZstdWriter(f)
	defer streamio.PutZstdWriter(z)
	w := bufio.NewWriter(z)
	for _, d := range descs {
		if _, err := fmt.Fprintf(w, "%s\t%s\t%d\n", d.Kind, d.Name, d.Size); err != nil {
			return err
		}
	}
	return w.Flush()
}

func entryKind(info os.FileInfo) string {
	switch {
	case info.Mode()&os.ModeSymlink != 0:
		return "symlink"
	case info.IsDir():
		return "dir"
	default:
		return "file"
	}
}
