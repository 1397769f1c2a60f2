package imagecache

import (
	"sync/atomic"

	"github.com/pspoerri/imgbuf"
	"github.com/pspoerri/imgbuf/pix"
)

// tileKey identifies a tile within a specific file, subimage, and mip level.
type tileKey struct {
	name       string
	subimage   int
	miplevel   int
	tx, ty, tz int
}

// Tile is one cached block of decoded pixels, handed out as a
// reference-counted handle. The pixel bytes stay valid until every holder
// has released the tile; holders never mutate them.
type Tile struct {
	cache   *Cache
	key     tileKey
	roi     imgbuf.ROI
	format  pix.Type
	pixels  []byte
	refs    atomic.Int32
	evicted bool // set under cache.mu; pixels return to the pool on last release
}

// ROI returns the tile's pixel region (absolute coordinates, all channels).
func (t *Tile) ROI() imgbuf.ROI { return t.roi }

// Format returns the element type the cache stored this tile as.
func (t *Tile) Format() pix.Type { return t.format }

// Pixels returns the tile's contiguous channel-interleaved pixel bytes.
func (t *Tile) Pixels() []byte { return t.pixels }

// Release drops one reference. The cache may recycle the tile's storage once
// the count reaches zero and the tile has been evicted.
func (t *Tile) Release() {
	if t.refs.Add(-1) == 0 && t.cache != nil {
		t.cache.recycleIfEvicted(t)
	}
}

func (t *Tile) bytes() int64 {
	return int64(len(t.pixels))
}
