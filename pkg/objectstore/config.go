package objectstore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/jikortus/osbuild/modules/treehash"
)

const configFileName = "config.toml"

// storeConfig is persisted once at <root>/config.toml on first Open and
// compared on every subsequent Open. It records the choices that are
// baked into every treesum ever computed by this store, so a later
// version of this code cannot silently reinterpret existing objects/
// entries under a different algorithm.
type storeConfig struct {
	HashAlgorithm   string `toml:"hash_algorithm"`
	CompressionALGO string `toml:"compression_algorithm"`
}

func defaultStoreConfig(compressionALGO string) storeConfig {
	return storeConfig{
		HashAlgorithm:   treehash.Algorithm,
		CompressionALGO: compressionALGO,
	}
}

func loadOrInitConfig(root string, compressionALGO string) (storeConfig, error) {
	path := filepath.Join(root, configFileName)
	var cfg storeConfig
	_, err := toml.DecodeFile(path, &cfg)
	switch {
	case os.IsNotExist(err):
		cfg = defaultStoreConfig(compressionALGO)
		if err := writeConfig(path, cfg); err != nil {
			return storeConfig{}, fmt.Errorf("objectstore: write config: %w", err)
		}
		return cfg, nil
	case err != nil:
		return storeConfig{}, fmt.Errorf("objectstore: read config: %w", err)
	}
	if cfg.HashAlgorithm != treehash.Algorithm {
		return storeConfig{}, fmt.Errorf("objectstore: store at %s was created with hash algorithm %q, this build uses %q",
			root, cfg.HashAlgorithm, treehash.Algorithm)
	}
	return cfg, nil
}

func writeConfig(path string, cfg storeConfig) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
