package imagecache

import "sync"

// tilePools maps byte size → *sync.Pool of []byte for tile pixel storage.
// Using sync.Map avoids a mutex on the hot path; in practice only a handful
// of distinct tile byte sizes exist per run, so the map stays tiny.
var tilePools sync.Map

// getTileBytes returns a zeroed byte slice of exactly n bytes, reusing pooled
// storage when available.
func getTileBytes(n int) []byte {
	if p, ok := tilePools.Load(n); ok {
		if v := p.(*sync.Pool).Get(); v != nil {
			buf := v.([]byte)
			clear(buf)
			return buf
		}
	}
	return make([]byte, n)
}

// putTileBytes returns a tile byte slice to the pool for reuse.
func putTileBytes(buf []byte) {
	if buf == nil {
		return
	}
	p, _ := tilePools.LoadOrStore(len(buf), &sync.Pool{})
	p.(*sync.Pool).Put(buf)
}
