package imagecache

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/pspoerri/imgbuf"
	"github.com/pspoerri/imgbuf/pix"
)

// Stats counts cache activity, useful for tuning and tests.
type Stats struct {
	FilesOpened int64
	TileHits    int64
	TileMisses  int64
	Evictions   int64
}

// Cache is the default imgbuf.ImageCache: decoded pixels live in fixed-size
// tiles under an LRU byte budget. Safe for concurrent use by many buffers.
type Cache struct {
	cfg      Config
	maxBytes int64

	mu    sync.Mutex
	files map[string]*fileRecord
	tiles map[tileKey]*Tile
	order []tileKey // oldest first
	used  int64

	filesOpened atomic.Int64
	tileHits    atomic.Int64
	tileMisses  atomic.Int64
	evictions   atomic.Int64
}

// fileRecord holds everything the cache knows about one file. The record's
// own lock serializes the open so two buffers racing on first access decode
// the file's structure once.
type fileRecord struct {
	mu       sync.Mutex
	name     string
	override *imgbuf.ImageSpec // AddFile config hints, applied on open
	opened   bool
	broken   error

	format    string
	subimages []subimageRecord
}

type subimageRecord struct {
	native *imgbuf.ImageSpec
	spec   *imgbuf.ImageSpec // format rewritten to the cache storage type
}

// NewCache creates a cache with the given configuration.
func NewCache(cfg Config) *Cache {
	if cfg.TileSize <= 0 {
		cfg.TileSize = DefaultConfig().TileSize
	}
	maxBytes := int64(cfg.MaxMemoryMB) * 1024 * 1024
	if maxBytes <= 0 {
		maxBytes = ComputeMemoryLimit(defaultMemoryFraction, cfg.Verbose)
	}
	return &Cache{
		cfg:      cfg,
		maxBytes: maxBytes,
		files:    make(map[string]*fileRecord),
		tiles:    make(map[tileKey]*Tile),
	}
}

var (
	sharedOnce sync.Once
	shared     *Cache
)

// Shared returns the process-wide cache instance, creating it with defaults
// on first use and installing it as the imgbuf default.
func Shared() *Cache {
	sharedOnce.Do(func() {
		shared = NewCache(DefaultConfig())
		imgbuf.SetDefaultCache(shared)
	})
	return shared
}

// Stats returns a snapshot of activity counters.
func (c *Cache) Stats() Stats {
	return Stats{
		FilesOpened: c.filesOpened.Load(),
		TileHits:    c.tileHits.Load(),
		TileMisses:  c.tileMisses.Load(),
		Evictions:   c.evictions.Load(),
	}
}

// storageType returns the element type tiles are stored as for a native spec.
func (c *Cache) storageType(native pix.Type) pix.Type {
	if c.cfg.ForceFloat {
		return pix.Float
	}
	return native
}

func (c *Cache) fileFor(name string) *fileRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.files[name]
	if !ok {
		rec = &fileRecord{name: name}
		c.files[name] = rec
	}
	return rec
}

// ensureOpen opens the file's structure exactly once per record generation.
func (c *Cache) ensureOpen(rec *fileRecord) error {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.opened {
		return rec.broken
	}
	rec.opened = true

	in, err := imgbuf.OpenInput(rec.name)
	if err != nil {
		rec.broken = err
		return err
	}
	defer in.Close()
	c.filesOpened.Add(1)
	rec.format = imgbuf.InputFormatName(rec.name)

	for sub := 0; ; sub++ {
		if sub > 0 && !in.SeekSubimage(sub, 0) {
			break
		}
		native := in.Spec().Copy()
		if rec.override != nil {
			for _, a := range rec.override.Attrs() {
				native.SetAttr(a.Name, a.Value)
			}
		}
		spec := native.Copy()
		spec.SetFormat(c.storageType(native.Format))
		spec.TileWidth = c.cfg.TileSize
		spec.TileHeight = c.cfg.TileSize
		spec.TileDepth = 1
		rec.subimages = append(rec.subimages, subimageRecord{native: native, spec: spec})
	}
	if c.cfg.Verbose {
		log.Printf("imagecache: opened %s (%s, %d subimages)", rec.name, rec.format, len(rec.subimages))
	}
	return nil
}

func (c *Cache) subimage(name string, subimage, miplevel int) (*fileRecord, *subimageRecord, error) {
	rec := c.fileFor(name)
	if err := c.ensureOpen(rec); err != nil {
		return nil, nil, err
	}
	if miplevel != 0 {
		return nil, nil, fmt.Errorf("imagecache: %s has no mip level %d", name, miplevel)
	}
	if subimage < 0 || subimage >= len(rec.subimages) {
		return nil, nil, fmt.Errorf("imagecache: %s has no subimage %d", name, subimage)
	}
	return rec, &rec.subimages[subimage], nil
}

// ImageInfo implements imgbuf.ImageCache.
func (c *Cache) ImageInfo(name string) (imgbuf.CacheImageInfo, error) {
	rec := c.fileFor(name)
	if err := c.ensureOpen(rec); err != nil {
		return imgbuf.CacheImageInfo{}, err
	}
	return imgbuf.CacheImageInfo{
		Subimages:  len(rec.subimages),
		MipLevels:  1,
		FileFormat: rec.format,
		CachedType: rec.subimages[0].spec.Format,
	}, nil
}

// Spec implements imgbuf.ImageCache; the returned copy reports the cache's
// storage pixel type and tile dimensions.
func (c *Cache) Spec(name string, subimage, miplevel int) (*imgbuf.ImageSpec, error) {
	_, si, err := c.subimage(name, subimage, miplevel)
	if err != nil {
		return nil, err
	}
	return si.spec.Copy(), nil
}

// NativeSpec implements imgbuf.ImageCache with the file's ground truth.
func (c *Cache) NativeSpec(name string, subimage, miplevel int) (*imgbuf.ImageSpec, error) {
	_, si, err := c.subimage(name, subimage, miplevel)
	if err != nil {
		return nil, err
	}
	return si.native.Copy(), nil
}

// Tile implements imgbuf.ImageCache: a ref-counted handle on the tile
// containing pixel (x,y,z). Misses decode the whole subimage and populate
// every one of its tiles, so neighboring lookups hit.
func (c *Cache) Tile(name string, subimage, miplevel, x, y, z int) (imgbuf.CacheTile, error) {
	_, si, err := c.subimage(name, subimage, miplevel)
	if err != nil {
		return nil, err
	}
	s := si.spec
	if !s.ROI().Contains(x, y, z) {
		return nil, fmt.Errorf("imagecache: pixel (%d,%d,%d) outside %s data window", x, y, z, name)
	}
	ts := c.cfg.TileSize
	key := tileKey{
		name: name, subimage: subimage, miplevel: miplevel,
		tx: (x - s.X) / ts, ty: (y - s.Y) / ts, tz: z - s.Z,
	}

	c.mu.Lock()
	if t, ok := c.tiles[key]; ok {
		t.refs.Add(1)
		c.mu.Unlock()
		c.tileHits.Add(1)
		return t, nil
	}
	c.mu.Unlock()
	c.tileMisses.Add(1)

	t, err := c.populateSubimage(name, subimage, miplevel, si, key)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("imagecache: tile %v missing after decode of %s", key, name)
	}
	return t, nil
}

// populateSubimage decodes one subimage through its format plugin and slices
// it into cached tiles. The tile named by want is referenced the moment it
// lands so budget pressure from later inserts cannot evict it; the returned
// handle carries that reference.
func (c *Cache) populateSubimage(name string, subimage, miplevel int, si *subimageRecord, want tileKey) (*Tile, error) {
	in, err := imgbuf.OpenInput(name)
	if err != nil {
		return nil, err
	}
	defer in.Close()
	c.filesOpened.Add(1)
	if !in.SeekSubimage(subimage, miplevel) {
		return nil, fmt.Errorf("imagecache: %s has no subimage %d mip %d", name, subimage, miplevel)
	}

	s := si.spec
	esz := s.Format.Size()
	nch := s.NChannels
	whole := make([]byte, s.ImageBytes())
	if err := in.ReadImage(s.Format, whole); err != nil {
		return nil, fmt.Errorf("imagecache: decoding %s: %w", name, err)
	}

	ts := c.cfg.TileSize
	tilesAcross := (s.Width + ts - 1) / ts
	tilesDown := (s.Height + ts - 1) / ts

	var wanted *Tile
	c.mu.Lock()
	defer c.mu.Unlock()
	for z := 0; z < s.Depth; z++ {
		for ty := 0; ty < tilesDown; ty++ {
			for tx := 0; tx < tilesAcross; tx++ {
				key := tileKey{name: name, subimage: subimage, miplevel: miplevel, tx: tx, ty: ty, tz: z}
				if existing, ok := c.tiles[key]; ok {
					if key == want {
						existing.refs.Add(1)
						wanted = existing
					}
					continue
				}
				w := mini(ts, s.Width-tx*ts)
				h := mini(ts, s.Height-ty*ts)
				pixBytes := nch * esz
				t := &Tile{
					cache:  c,
					key:    key,
					format: s.Format,
					roi: imgbuf.ROI{
						XBegin: s.X + tx*ts, XEnd: s.X + tx*ts + w,
						YBegin: s.Y + ty*ts, YEnd: s.Y + ty*ts + h,
						ZBegin: s.Z + z, ZEnd: s.Z + z + 1,
						ChBegin: 0, ChEnd: nch,
					},
					pixels: getTileBytes(w * h * pixBytes),
				}
				for row := 0; row < h; row++ {
					srcOff := ((int64(z)*int64(s.Height)+int64(ty*ts+row))*int64(s.Width) + int64(tx*ts)) * int64(pixBytes)
					copy(t.pixels[row*w*pixBytes:(row+1)*w*pixBytes], whole[srcOff:])
				}
				if key == want {
					t.refs.Add(1)
					wanted = t
				}
				c.insertLocked(key, t)
			}
		}
	}
	return wanted, nil
}

// insertLocked adds a tile and evicts the oldest unreferenced tiles while the
// budget is exceeded. Caller holds c.mu.
func (c *Cache) insertLocked(key tileKey, t *Tile) {
	c.tiles[key] = t
	c.order = append(c.order, key)
	c.used += t.bytes()

	for c.used > c.maxBytes && len(c.order) > 0 {
		evicted := false
		for i, old := range c.order {
			ot, ok := c.tiles[old]
			if !ok {
				c.order = append(c.order[:i], c.order[i+1:]...)
				evicted = true
				break
			}
			if old == key || ot.refs.Load() > 0 {
				continue // never evict the tile being inserted or held tiles
			}
			delete(c.tiles, old)
			c.order = append(c.order[:i], c.order[i+1:]...)
			c.used -= ot.bytes()
			ot.evicted = true
			putTileBytes(ot.pixels)
			ot.pixels = nil
			c.evictions.Add(1)
			evicted = true
			break
		}
		if !evicted {
			break // everything left is referenced
		}
	}
}

// recycleIfEvicted is called by a tile's final Release.
func (c *Cache) recycleIfEvicted(t *Tile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.evicted && t.pixels != nil {
		putTileBytes(t.pixels)
		t.pixels = nil
	}
}

// GetPixels implements imgbuf.ImageCache: copies the region into dst in the
// requested element type by walking the covering tiles.
func (c *Cache) GetPixels(name string, subimage, miplevel int, roi imgbuf.ROI, format pix.Type, dst []byte) error {
	_, si, err := c.subimage(name, subimage, miplevel)
	if err != nil {
		return err
	}
	s := si.spec
	roi = imgbuf.Intersection(roi, s.ROI())
	if !roi.Defined() {
		return nil
	}
	nch := roi.NChannels()
	esz := format.Size()
	dstPixBytes := nch * esz
	dstRowBytes := roi.Width() * dstPixBytes
	ts := c.cfg.TileSize

	for z := roi.ZBegin; z < roi.ZEnd; z++ {
		for ty := (roi.YBegin - s.Y) / ts; ty*ts+s.Y < roi.YEnd; ty++ {
			for tx := (roi.XBegin - s.X) / ts; tx*ts+s.X < roi.XEnd; tx++ {
				th, err := c.Tile(name, subimage, miplevel, s.X+tx*ts, s.Y+ty*ts, z)
				if err != nil {
					return err
				}
				t := th.(*Tile)
				tr := t.roi
				inter := imgbuf.Intersection(roi, tr)
				srcPixBytes := s.NChannels * t.format.Size()
				for y := inter.YBegin; y < inter.YEnd; y++ {
					srcOff := (int64(y-tr.YBegin)*int64(tr.Width()) + int64(inter.XBegin-tr.XBegin)) * int64(srcPixBytes)
					dstOff := (int64(z-roi.ZBegin)*int64(roi.Height())+int64(y-roi.YBegin))*int64(dstRowBytes) +
						int64(inter.XBegin-roi.XBegin)*int64(dstPixBytes)
					copyRowConvert(dst[dstOff:], format, roi.ChBegin, nch,
						t.pixels[srcOff:], t.format, s.NChannels, inter.Width())
				}
				th.Release()
			}
		}
	}
	return nil
}

// copyRowConvert converts n pixels from a full-channel source row into a
// possibly channel-subsetted destination row.
func copyRowConvert(dst []byte, dt pix.Type, chbegin, nch int, src []byte, st pix.Type, srcNch, n int) {
	if chbegin == 0 && nch == srcNch {
		pix.ConvertSpan(dt, dst, st, src, n*nch)
		return
	}
	desz := dt.Size()
	sesz := st.Size()
	for i := 0; i < n; i++ {
		srcPix := src[i*srcNch*sesz:]
		dstPix := dst[i*nch*desz:]
		pix.ConvertStrided(dt, dstPix, desz, st, srcPix[chbegin*sesz:], sesz, nch)
	}
}

// Invalidate implements imgbuf.ImageCache: drops all state for a file so the
// next access reopens it. Held tile handles stay valid until released.
func (c *Cache) Invalidate(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.files, name)
	kept := c.order[:0]
	for _, key := range c.order {
		if key.name != name {
			kept = append(kept, key)
			continue
		}
		if t, ok := c.tiles[key]; ok {
			delete(c.tiles, key)
			c.used -= t.bytes()
			t.evicted = true
			if t.refs.Load() == 0 {
				putTileBytes(t.pixels)
				t.pixels = nil
			}
		}
	}
	c.order = kept
}

// InvalidateAll drops every file and tile.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	names := make([]string, 0, len(c.files))
	for n := range c.files {
		names = append(names, n)
	}
	c.mu.Unlock()
	for _, n := range names {
		c.Invalidate(n)
	}
}

// AddFile implements imgbuf.ImageCache: pre-registers a file with optional
// spec attribute overrides applied when it is opened.
func (c *Cache) AddFile(name string, config *imgbuf.ImageSpec) error {
	rec := c.fileFor(name)
	rec.mu.Lock()
	if rec.opened {
		rec.mu.Unlock()
		return fmt.Errorf("imagecache: %s already opened; Invalidate it before AddFile", name)
	}
	if config != nil {
		rec.override = config.Copy()
	}
	rec.mu.Unlock()
	return c.ensureOpen(rec)
}

func mini(a, b int) int {
	if a < b {
		return a
	}
	return b
}
