// Package imagecache provides the default demand-paged tile cache behind
// cache-backed image buffers. Decoded pixels are held as fixed-size tiles in
// an LRU keyed by (file, subimage, mip level, tile coordinates), evicted
// under a byte budget derived from system RAM unless configured explicitly.
package imagecache

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config controls cache behavior. The zero value is not useful; start from
// DefaultConfig.
type Config struct {
	// MaxMemoryMB caps cached tile bytes. 0 derives a budget from total
	// system RAM (see ComputeMemoryLimit).
	MaxMemoryMB int `yaml:"max_memory_mb"`

	// TileSize is the edge length of cached tiles in pixels.
	TileSize int `yaml:"tile_size"`

	// ForceFloat stores tiles as float32 regardless of the file's native
	// type. Buffers that need the native precision bypass the cache.
	ForceFloat bool `yaml:"force_float"`

	// Verbose logs open/evict activity.
	Verbose bool `yaml:"verbose"`
}

// DefaultConfig returns the settings used by the shared cache.
func DefaultConfig() Config {
	return Config{
		TileSize:   64,
		ForceFloat: true,
	}
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading cache config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing cache config %s: %w", path, err)
	}
	if cfg.TileSize <= 0 {
		cfg.TileSize = DefaultConfig().TileSize
	}
	return cfg, nil
}
