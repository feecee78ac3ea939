// Package config loads the node's only configuration surface: a TOML file
// parsed with github.com/BurntSushi/toml. Process supervision, peer
// discovery and RPC transport configuration are deliberately out of
// scope; this carries only what the store and chain worker need to start.
package config

import (
	"github.com/BurntSushi/toml"

	"vulkan/corverrors"
	"vulkan/params"
)

// Config is the node's startup configuration.
type Config struct {
	// DataDir holds the bolt database file.
	DataDir string `toml:"data_dir"`
	// SyncWrites is parsed from the file and defaults to true. No write
	// path reads it: the chain manager and the mempool mirror always
	// commit their write batches with fsync.
	SyncWrites bool `toml:"sync_writes"`

	// MempoolMaxBytes overrides params.MempoolMaxBytes when positive.
	MempoolMaxBytes int `toml:"mempool_max_bytes"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		DataDir:         "vulkan-data",
		SyncWrites:      true,
		MempoolMaxBytes: params.MempoolMaxBytes,
	}
}

// Load reads and parses the TOML config at path, filling in defaults for
// any key the file does not set. A key the file sets, even to a zero
// value, overrides the default.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, corverrors.Wrap(corverrors.Storage, "load config", err)
	}
	return cfg, nil
}
