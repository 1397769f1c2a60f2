package imgbuf

// Iterator walks a region of a buffer pixel by pixel in x-fastest order,
// exposing typed read (and optionally write) access. It is the bridge
// algorithm collaborators use instead of raw address math; cache-backed and
// local buffers look identical through it.
//
// A single Iterator must not be shared between goroutines, but many
// iterators may walk the same buffer concurrently as long as none writes.
type Iterator struct {
	b        *Buffer
	roi      ROI
	wrap     WrapMode
	writable bool

	x, y, z int
	done    bool

	vals  []float32
	dirty bool // vals modified, flush before advancing
}

// NewIterator returns a read-write iterator over roi (the buffer's data
// window when roi is undefined). Writing through it promotes cache-backed
// buffers to local storage.
func NewIterator(b *Buffer, roi ROI, wrap WrapMode) *Iterator {
	it := newIter(b, roi, wrap)
	it.writable = true
	return it
}

// NewConstIterator returns a read-only iterator over roi.
func NewConstIterator(b *Buffer, roi ROI, wrap WrapMode) *Iterator {
	return newIter(b, roi, wrap)
}

func newIter(b *Buffer, roi ROI, wrap WrapMode) *Iterator {
	if !roi.Defined() {
		roi = b.Spec().ROI()
	}
	it := &Iterator{
		b:    b,
		roi:  roi,
		wrap: wrap,
		x:    roi.XBegin,
		y:    roi.YBegin,
		z:    roi.ZBegin,
		vals: make([]float32, b.Spec().NChannels),
	}
	it.done = !roi.Defined() || !b.validatePixels()
	if !it.done {
		it.load()
	}
	return it
}

// Done reports whether the iterator has passed the last pixel.
func (it *Iterator) Done() bool { return it.done }

// Next advances to the next pixel, flushing any pending write.
func (it *Iterator) Next() {
	if it.done {
		return
	}
	it.flush()
	it.x++
	if it.x >= it.roi.XEnd {
		it.x = it.roi.XBegin
		it.y++
		if it.y >= it.roi.YEnd {
			it.y = it.roi.YBegin
			it.z++
			if it.z >= it.roi.ZEnd {
				it.done = true
				return
			}
		}
	}
	it.load()
}

// Pos returns the current pixel coordinate.
func (it *Iterator) Pos() (x, y, z int) { return it.x, it.y, it.z }

// Get returns the current pixel's channel c as float32.
func (it *Iterator) Get(c int) float32 {
	if c < 0 || c >= len(it.vals) {
		return 0
	}
	return it.vals[c]
}

// Pixel copies all channel values of the current pixel into dst.
func (it *Iterator) Pixel(dst []float32) {
	copy(dst, it.vals)
}

// Set stages a write of channel c; it lands in the buffer when the iterator
// advances (or on Flush). No-op on read-only iterators.
func (it *Iterator) Set(c int, v float32) {
	if !it.writable || c < 0 || c >= len(it.vals) {
		return
	}
	it.vals[c] = v
	it.dirty = true
}

// Flush forces any staged write to the buffer immediately.
func (it *Iterator) Flush() { it.flush() }

func (it *Iterator) load() {
	it.b.GetPixel(it.x, it.y, it.z, it.vals, it.wrap)
	it.dirty = false
}

func (it *Iterator) flush() {
	if it.dirty {
		it.b.SetPixel(it.x, it.y, it.z, it.vals)
		it.dirty = false
	}
}
