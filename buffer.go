// Package imgbuf provides an in-memory image abstraction that unifies three
// pixel sources behind one interface: fully resident local memory, a
// demand-paged tile cache, and deep (variable-samples-per-pixel) data.
//
// A Buffer starts uninitialized, with local memory, wrapping caller memory,
// or bound to a file. File-bound buffers materialize their descriptor and
// pixels lazily on first observation; reads may be satisfied straight from
// the tile cache without copying pixel bytes, and the first mutation
// transparently promotes such a buffer to local storage.
package imgbuf

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pspoerri/imgbuf/internal/memtrack"
	"github.com/pspoerri/imgbuf/pix"
)

// readChunkRows is the scanline granularity for cache fetches during pixel
// materialization, between which the progress callback can cancel.
const readChunkRows = 64

var (
	defaultCacheMu sync.RWMutex
	defaultCache   ImageCache
)

// SetDefaultCache installs the process-wide cache used by buffers constructed
// without an explicit one. Package imagecache calls this for its shared
// instance; tests may substitute fakes.
func SetDefaultCache(c ImageCache) {
	defaultCacheMu.Lock()
	defaultCache = c
	defaultCacheMu.Unlock()
}

// DefaultCache returns the process-wide cache, or nil if none is installed.
func DefaultCache() ImageCache {
	defaultCacheMu.RLock()
	defer defaultCacheMu.RUnlock()
	return defaultCache
}

// Buffer is the image object. The zero value is an uninitialized buffer.
//
// Read-only accessors are safe for concurrent use; mutation requires external
// synchronization, like the standard library's image types. The one internal
// lock guards first-time descriptor/pixel materialization so concurrent first
// readers perform the expensive work at most once.
type Buffer struct {
	name       string
	fileFormat string
	subimage   int
	miplevel   int
	nsubimages int
	nmiplevels int

	storage    Storage
	spec       ImageSpec
	nativeSpec ImageSpec

	pixels       []byte
	trackedBytes int64 // bytes registered with memtrack (0 for app buffers)

	cache ImageCache
	deep  *DeepData

	mu          sync.Mutex // guards materialization and state transitions
	specValid   atomic.Bool
	pixelsValid atomic.Bool

	errs errorState
}

// New returns an uninitialized buffer.
func New() *Buffer { return &Buffer{} }

// NewBufferSpec allocates a local buffer for the given descriptor with all
// pixels zero-initialized. Check HasError afterwards: an allocation beyond
// the process pixel-memory budget leaves the buffer uninitialized.
func NewBufferSpec(spec *ImageSpec) *Buffer {
	b := &Buffer{}
	b.ResetSpec(spec)
	return b
}

// NewBufferFile binds a buffer to a file without touching it. The descriptor
// and pixels materialize on first access. A nil cache selects the process
// default; with no cache at all, reads go directly through the format plugin.
func NewBufferFile(name string, subimage, miplevel int, cache ImageCache) *Buffer {
	b := &Buffer{}
	b.ResetFile(name, subimage, miplevel, cache)
	return b
}

// Wrap builds a buffer around caller-supplied pixel memory. The buffer never
// frees data; the caller keeps it alive until the buffer is reset or dropped.
func Wrap(spec *ImageSpec, data []byte) (*Buffer, error) {
	b := &Buffer{}
	if err := b.ResetWrapped(spec, data); err != nil {
		return nil, err
	}
	return b, nil
}

// Clear releases any owned pixel memory and returns the buffer to the
// uninitialized state. Wrapped app memory and the cache are never freed.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clearLocked()
}

// clearLocked resets every field except the mutex, which is held by the
// caller and must survive the reset.
func (b *Buffer) clearLocked() {
	b.releasePixelsLocked()
	b.name = ""
	b.fileFormat = ""
	b.subimage, b.miplevel = 0, 0
	b.nsubimages, b.nmiplevels = 0, 0
	b.storage = StorageUninitialized
	b.spec = ImageSpec{}
	b.nativeSpec = ImageSpec{}
	b.cache = nil
	b.specValid.Store(false)
	b.pixelsValid.Store(false)
	b.errs.reset()
}

func (b *Buffer) releasePixelsLocked() {
	if b.trackedBytes > 0 {
		memtrack.Sub(b.trackedBytes)
		b.trackedBytes = 0
	}
	b.pixels = nil
	b.deep = nil
}

// ResetSpec re-initializes the buffer with freshly allocated, zeroed local
// pixels for spec. On allocation failure the buffer is left uninitialized
// with the error recorded.
func (b *Buffer) ResetSpec(spec *ImageSpec) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clearLocked()
	b.spec = *spec.Copy()
	b.nativeSpec = *spec.Copy()
	if b.spec.Deep {
		npix := int64(b.spec.Width) * int64(b.spec.Height) * int64(b.spec.Depth)
		b.deep = NewDeepData(npix, b.spec.NChannels, b.spec.ChannelFormats)
		b.storage = StorageLocal
	} else if err := b.allocLocked(); err != nil {
		return
	}
	b.specValid.Store(true)
	b.pixelsValid.Store(true)
}

// ResetFile re-initializes the buffer to lazily source the named file.
func (b *Buffer) ResetFile(name string, subimage, miplevel int, cache ImageCache) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clearLocked()
	b.name = name
	b.subimage = subimage
	b.miplevel = miplevel
	b.cache = cache
}

// ResetWrapped re-initializes the buffer around caller memory. data must hold
// at least spec.ImageBytes() bytes.
func (b *Buffer) ResetWrapped(spec *ImageSpec, data []byte) error {
	if int64(len(data)) < spec.ImageBytes() {
		return fmt.Errorf("imgbuf: wrapped buffer needs %d bytes, got %d", spec.ImageBytes(), len(data))
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clearLocked()
	b.spec = *spec.Copy()
	b.nativeSpec = *spec.Copy()
	b.pixels = data
	b.storage = StorageApp
	b.specValid.Store(true)
	b.pixelsValid.Store(true)
	return nil
}

// allocLocked allocates local pixel storage for b.spec, honoring the process
// pixel-memory budget. On failure the buffer degrades to uninitialized and
// the error is recorded; no pixel op will touch invalid memory afterwards.
func (b *Buffer) allocLocked() error {
	n := b.spec.ImageBytes()
	if n <= 0 || b.spec.NChannels < 1 {
		err := fmt.Errorf("imgbuf: cannot allocate %dx%dx%d, %d channels",
			b.spec.Width, b.spec.Height, b.spec.Depth, b.spec.NChannels)
		b.recordErr(err)
		b.storage = StorageUninitialized
		return err
	}
	if err := memtrack.Reserve(n); err != nil {
		b.recordErr(err)
		b.releasePixelsLocked()
		b.storage = StorageUninitialized
		b.pixelsValid.Store(false)
		return err
	}
	b.pixels = make([]byte, n)
	b.trackedBytes = n
	b.storage = StorageLocal
	return nil
}

func (b *Buffer) cacheOrDefault() ImageCache {
	if b.cache != nil {
		return b.cache
	}
	return DefaultCache()
}

// Name returns the file name the buffer is bound to, or "".
func (b *Buffer) Name() string { return b.name }

// FileFormatName returns the format plugin name once the spec materialized.
func (b *Buffer) FileFormatName() string {
	b.validateSpec()
	return b.fileFormat
}

// Subimage returns the currently selected subimage.
func (b *Buffer) Subimage() int { return b.subimage }

// Miplevel returns the currently selected mip level.
func (b *Buffer) Miplevel() int { return b.miplevel }

// NSubimages returns the subimage count of the bound file.
func (b *Buffer) NSubimages() int {
	b.validateSpec()
	return b.nsubimages
}

// NMipLevels returns the mip level count of the bound file.
func (b *Buffer) NMipLevels() int {
	b.validateSpec()
	return b.nmiplevels
}

// Storage returns the active storage mode.
func (b *Buffer) Storage() Storage { return b.storage }

// Initialized reports whether the buffer has a valid descriptor and an active
// storage mode.
func (b *Buffer) Initialized() bool {
	return b.specValid.Load() && b.storage != StorageUninitialized
}

// CachedPixels reports whether pixels are served from the tile cache.
func (b *Buffer) CachedPixels() bool { return b.storage == StorageCache }

// Deep reports whether the image holds variable-samples-per-pixel data.
func (b *Buffer) Deep() bool {
	b.validateSpec()
	return b.spec.Deep
}

// Spec returns the buffer's descriptor, materializing it on first call. For
// file buffers the pixel format reflects what the cache stores, which may
// differ from the file's native format (see NativeSpec). A bad buffer yields
// a zero descriptor. Callers must not mutate the result.
func (b *Buffer) Spec() *ImageSpec {
	b.validateSpec()
	return &b.spec
}

// NativeSpec returns the ground-truth descriptor as the file declares it.
func (b *Buffer) NativeSpec() *ImageSpec {
	b.validateSpec()
	return &b.nativeSpec
}

// validateSpec is the descriptor half of the lazy materialization protocol:
// lock-free fast path, then double-checked work under the lock.
func (b *Buffer) validateSpec() bool {
	if b.specValid.Load() {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.initSpecLocked(b.subimage, b.miplevel)
}

func (b *Buffer) initSpecLocked(subimage, miplevel int) bool {
	if b.specValid.Load() && subimage == b.subimage && miplevel == b.miplevel {
		return true
	}
	if b.name == "" {
		return false
	}
	if cache := b.cacheOrDefault(); cache != nil {
		info, err := cache.ImageInfo(b.name)
		if err != nil {
			b.recordErr(err)
			return false
		}
		spec, err := cache.Spec(b.name, subimage, miplevel)
		if err != nil {
			b.recordErr(err)
			return false
		}
		native, err := cache.NativeSpec(b.name, subimage, miplevel)
		if err != nil {
			b.recordErr(err)
			return false
		}
		b.spec = *spec
		b.nativeSpec = *native
		b.nsubimages = info.Subimages
		b.nmiplevels = info.MipLevels
		b.fileFormat = info.FileFormat
	} else {
		in, err := OpenInput(b.name)
		if err != nil {
			b.recordErr(err)
			return false
		}
		defer in.Close()
		if !in.SeekSubimage(subimage, miplevel) {
			b.recordErr(fmt.Errorf("imgbuf: %s has no subimage %d mip %d", b.name, subimage, miplevel))
			return false
		}
		b.spec = *in.Spec().Copy()
		b.nativeSpec = *in.Spec().Copy()
		b.nsubimages = countSubimages(in)
		b.nmiplevels = 1
		b.fileFormat = InputFormatName(b.name)
	}
	b.subimage = subimage
	b.miplevel = miplevel
	b.specValid.Store(true)
	return true
}

func countSubimages(in ImageInput) int {
	n := 1
	for in.SeekSubimage(n, 0) {
		n++
	}
	in.SeekSubimage(0, 0)
	return n
}

// validatePixels is the pixel half of the lazy materialization protocol.
func (b *Buffer) validatePixels() bool {
	if b.pixelsValid.Load() {
		return true
	}
	return b.Read(b.subimage, b.miplevel, false, pix.Unknown, nil) == nil
}

// Read materializes the pixels of the requested subimage/mip level. It is a
// no-op when pixels are already valid for that selection, unless force is
// set. A valid convert type requests the pixels in that element type; a
// conversion the cache cannot satisfy losslessly bypasses it and reads
// directly through the format plugin. The progress callback (may be nil) can
// cancel between chunks; already-fetched chunks are kept.
func (b *Buffer) Read(subimage, miplevel int, force bool, convert pix.Type, progress ProgressCallback) error {
	if b.readSatisfied(subimage, miplevel, force, convert) {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.readSatisfied(subimage, miplevel, force, convert) {
		return nil // another thread got here first
	}
	return b.readLocked(subimage, miplevel, 0, -1, force, convert, progress)
}

// ReadChannels is Read restricted to the channel range [chbegin,chend). The
// materialized buffer's descriptor covers only those channels.
func (b *Buffer) ReadChannels(subimage, miplevel, chbegin, chend int, force bool, convert pix.Type, progress ProgressCallback) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.readLocked(subimage, miplevel, chbegin, chend, force, convert, progress)
}

func (b *Buffer) readSatisfied(subimage, miplevel int, force bool, convert pix.Type) bool {
	return b.pixelsValid.Load() && !force &&
		subimage == b.subimage && miplevel == b.miplevel &&
		(!convert.IsValid() || convert == b.spec.Format)
}

func (b *Buffer) readLocked(subimage, miplevel, chbegin, chend int, force bool, convert pix.Type, progress ProgressCallback) error {
	if b.name == "" {
		return b.recordErr(fmt.Errorf("imgbuf: Read called on a buffer with no file binding"))
	}

	// Re-resolve the descriptor for the requested selection.
	if subimage != b.subimage || miplevel != b.miplevel || !b.specValid.Load() {
		b.specValid.Store(false)
		b.pixelsValid.Store(false)
		if !b.initSpecLocked(subimage, miplevel) {
			return fmt.Errorf("imgbuf: cannot resolve spec for %q subimage %d mip %d", b.name, subimage, miplevel)
		}
	}

	if b.spec.Deep {
		return b.readDeepLocked()
	}

	cache := b.cacheOrDefault()
	cachedType := b.spec.Format
	want := convert
	if !want.IsValid() {
		want = cachedType
	}
	fullChans := chbegin <= 0 && (chend < 0 || chend >= b.spec.NChannels)

	// Cache short-circuit: no local pixels yet, nothing forced, no channel
	// subset, and the requested type is exactly what the cache stores.
	if cache != nil && b.pixels == nil && !force && fullChans && want == cachedType {
		b.storage = StorageCache
		b.pixelsValid.Store(true)
		return nil
	}

	// Local materialization. Apply the channel subset to the descriptor.
	if !fullChans {
		if chend < 0 || chend > b.spec.NChannels {
			chend = b.spec.NChannels
		}
		b.spec.ChannelNames = append([]string(nil), b.spec.ChannelNames[chbegin:chend]...)
		b.spec.NChannels = chend - chbegin
		b.spec.ChannelFormats = nil
	} else {
		chbegin, chend = 0, b.spec.NChannels
	}
	b.spec.SetFormat(want)

	b.releasePixelsLocked()
	if err := b.allocLocked(); err != nil {
		return err
	}

	// Forced reads and cache-incompatible conversions bypass the cache and
	// go straight to the format plugin, so precision is never limited by
	// what the cache chose to store.
	if cache == nil || force || want != cachedType {
		if err := b.readDirectLocked(chbegin, chend, want); err != nil {
			b.releasePixelsLocked()
			b.storage = StorageUninitialized
			return err
		}
	} else {
		if err := b.readFromCacheLocked(cache, want, progress); err != nil {
			b.releasePixelsLocked()
			b.storage = StorageUninitialized
			return err
		}
	}
	b.pixelsValid.Store(true)
	return nil
}

// readDirectLocked reads through the format plugin into local pixels,
// extracting a channel subset if one was requested.
func (b *Buffer) readDirectLocked(chbegin, chend int, want pix.Type) error {
	in, err := OpenInput(b.name)
	if err != nil {
		return b.recordErr(err)
	}
	defer in.Close()
	if !in.SeekSubimage(b.subimage, b.miplevel) {
		return b.recordErr(fmt.Errorf("imgbuf: %s has no subimage %d mip %d", b.name, b.subimage, b.miplevel))
	}
	native := in.Spec()
	b.nativeSpec = *native.Copy()

	if chbegin == 0 && chend == native.NChannels {
		return b.recordErr(in.ReadImage(want, b.pixels))
	}

	// Channel subset: read all channels, then copy out the wanted range.
	full := make([]byte, int64(native.Width)*int64(native.Height)*int64(native.Depth)*
		int64(native.NChannels)*int64(want.Size()))
	if err := in.ReadImage(want, full); err != nil {
		return b.recordErr(err)
	}
	esz := want.Size()
	nsub := chend - chbegin
	npix := int(b.spec.ImageBytes()) / (nsub * esz)
	for p := 0; p < npix; p++ {
		src := full[(p*native.NChannels+chbegin)*esz:]
		dst := b.pixels[p*nsub*esz:]
		copy(dst[:nsub*esz], src[:nsub*esz])
	}
	return nil
}

// readFromCacheLocked fills local pixels from the tile cache in scanline
// chunks, honoring progress cancellation between chunks.
func (b *Buffer) readFromCacheLocked(cache ImageCache, want pix.Type, progress ProgressCallback) error {
	s := &b.spec
	roi := s.ROI()
	total := int64(s.Height) * int64(s.Depth)
	var done int64
	rowBytes := s.ScanlineBytes()
	for z := roi.ZBegin; z < roi.ZEnd; z++ {
		for y := roi.YBegin; y < roi.YEnd; y += readChunkRows {
			y1 := y + readChunkRows
			if y1 > roi.YEnd {
				y1 = roi.YEnd
			}
			chunk := roi
			chunk.YBegin, chunk.YEnd = y, y1
			chunk.ZBegin, chunk.ZEnd = z, z+1
			off := (int64(z-s.Z)*int64(s.Height) + int64(y-s.Y)) * rowBytes
			if err := cache.GetPixels(b.name, b.subimage, b.miplevel, chunk, want, b.pixels[off:]); err != nil {
				return b.recordErr(err)
			}
			done += int64(y1 - y)
			if progress != nil && progress(done, total) {
				return nil // cancelled; fetched chunks are kept
			}
		}
	}
	return nil
}

// readDeepLocked delegates deep images entirely to the format plugin's deep
// entry point and forces local storage; deep data cannot be demand-paged.
func (b *Buffer) readDeepLocked() error {
	in, err := OpenInput(b.name)
	if err != nil {
		return b.recordErr(err)
	}
	defer in.Close()
	if !in.SeekSubimage(b.subimage, b.miplevel) {
		return b.recordErr(fmt.Errorf("imgbuf: %s has no subimage %d mip %d", b.name, b.subimage, b.miplevel))
	}
	di, ok := in.(DeepInput)
	if !ok {
		return b.recordErr(fmt.Errorf("imgbuf: %s plugin cannot read deep data", b.fileFormat))
	}
	dd, err := di.ReadNativeDeep()
	if err != nil {
		return b.recordErr(err)
	}
	b.nativeSpec = *in.Spec().Copy()
	b.deep = dd
	b.storage = StorageLocal
	b.pixelsValid.Store(true)
	return nil
}

// Write writes the buffer's pixels to a file. fileformat selects the output
// plugin ("" = by extension); a valid dtype overrides the stored pixel type.
// Writing over the buffer's own backing file first forces the pixels local,
// and the cache's record of the target name is invalidated before the file is
// opened for writing.
func (b *Buffer) Write(filename, fileformat string, dtype pix.Type, progress ProgressCallback) error {
	if !b.validatePixels() {
		return fmt.Errorf("imgbuf: Write on a buffer with no valid pixels")
	}

	// Avoid reading partially overwritten data when the target is our own
	// backing file and pixels still live in the cache.
	if filename == b.name && b.storage == StorageCache {
		if err := b.Read(b.subimage, b.miplevel, true, pix.Unknown, nil); err != nil {
			return err
		}
	}
	if cache := b.cacheOrDefault(); cache != nil {
		cache.Invalidate(filename)
	}

	out, err := CreateOutput(filename, fileformat)
	if err != nil {
		return b.recordErr(err)
	}
	spec := b.Spec().Copy()
	if dtype.IsValid() {
		spec.SetFormat(dtype)
	}
	if err := out.Open(filename, spec); err != nil {
		return b.recordErr(err)
	}

	src := b.pixels
	if !b.storage.IsLocalLike() || spec.Format != b.spec.Format {
		src = make([]byte, spec.ImageBytes())
		if err := b.GetPixels(spec.ROI(), spec.Format, src); err != nil {
			out.Close()
			return err
		}
	}
	if err := out.WriteImage(spec.Format, src, progress); err != nil {
		out.Close()
		return b.recordErr(err)
	}
	return b.recordErr(out.Close())
}

// makeWritableLocked promotes a cache-backed buffer to local storage (one
// time, never demoted) so pixel mutation cannot be lost to a cache refetch.
func (b *Buffer) makeWritable() bool {
	if b.storage.IsLocalLike() {
		return true
	}
	if b.storage == StorageCache {
		return b.Read(b.subimage, b.miplevel, true, b.spec.Format, nil) == nil
	}
	return false
}
