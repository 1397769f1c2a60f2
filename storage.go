package imgbuf

// Storage identifies which backing store currently holds a buffer's pixels.
// Exactly one mode is active at a time.
type Storage uint8

const (
	// StorageUninitialized means no descriptor and no pixels.
	StorageUninitialized Storage = iota

	// StorageLocal means the buffer owns contiguous local memory holding
	// every pixel.
	StorageLocal

	// StorageApp means the buffer wraps caller-supplied memory. It behaves
	// like StorageLocal for every access path but is never freed by the
	// buffer.
	StorageApp

	// StorageCache means pixel bytes are fetched on demand from the tile
	// cache collaborator; the buffer holds no pixel memory of its own.
	StorageCache
)

// String returns a short name for diagnostics.
func (s Storage) String() string {
	switch s {
	case StorageUninitialized:
		return "uninitialized"
	case StorageLocal:
		return "local"
	case StorageApp:
		return "app"
	case StorageCache:
		return "cache"
	}
	return "invalid"
}

// IsLocalLike reports whether pixel bytes are directly addressable.
func (s Storage) IsLocalLike() bool { return s == StorageLocal || s == StorageApp }
