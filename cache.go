package imgbuf

import "github.com/pspoerri/imgbuf/pix"

// CacheImageInfo summarizes what a tile cache knows about a file.
type CacheImageInfo struct {
	Subimages  int
	MipLevels  int      // mip levels of the first subimage
	FileFormat string   // format plugin name, e.g. "png"
	CachedType pix.Type // element type the cache stores pixels as
}

// ImageCache is the demand-paging tile cache collaborator a Buffer reads
// through while in cache-backed storage. Implementations must be safe for
// concurrent use by many buffers; the default lives in package imagecache.
type ImageCache interface {
	// ImageInfo returns file-level information, opening the file on first use.
	ImageInfo(name string) (CacheImageInfo, error)

	// Spec returns the descriptor of a subimage/mip level with the pixel
	// format rewritten to the cache's storage type. The result is a copy the
	// caller may keep.
	Spec(name string, subimage, miplevel int) (*ImageSpec, error)

	// NativeSpec is like Spec but reports the file's ground-truth format.
	NativeSpec(name string, subimage, miplevel int) (*ImageSpec, error)

	// GetPixels copies the region into dst, converting to the requested
	// element type. dst must hold roi.NPixels()*roi.NChannels() elements,
	// contiguous, channel-interleaved.
	GetPixels(name string, subimage, miplevel int, roi ROI, format pix.Type, dst []byte) error

	// Tile returns a reference-counted handle on the tile containing pixel
	// (x,y,z). The caller must Release it.
	Tile(name string, subimage, miplevel, x, y, z int) (CacheTile, error)

	// Invalidate drops all cached state for the named file, forcing a reopen
	// on next use. Needed before overwriting a file the cache has seen.
	Invalidate(name string)

	// AddFile pre-registers a file, optionally overriding how it is opened
	// with hints from config (may be nil).
	AddFile(name string, config *ImageSpec) error
}

// CacheTile is a reference-counted handle on one cached tile's pixels. The
// byte slice stays valid until Release; holders never mutate it.
type CacheTile interface {
	ROI() ROI
	Format() pix.Type
	Pixels() []byte
	Release()
}
