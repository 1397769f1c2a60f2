package imgbuf

// Deep data adapter: every per-pixel deep accessor converts (x,y,z) to the
// origin-relative linear pixel index used by the dense address math and
// forwards to the DeepData block. All of them are silent no-ops returning
// zero values when the buffer's descriptor is not flagged deep.

// deepIndex returns the linear pixel index, or -1 when the buffer is not a
// materialized deep image or the coordinate is outside the data window.
func (b *Buffer) deepIndex(x, y, z int) int64 {
	if !b.Deep() || !b.validatePixels() || b.deep == nil {
		return -1
	}
	return b.spec.PixelIndex(x, y, z)
}

// DeepSamples returns the sample count of pixel (x,y,z), 0 for non-deep
// buffers or out-of-window coordinates.
func (b *Buffer) DeepSamples(x, y, z int) int {
	idx := b.deepIndex(x, y, z)
	if idx < 0 {
		return 0
	}
	return b.deep.Samples(idx)
}

// SetDeepSamples resizes the sample storage of pixel (x,y,z).
func (b *Buffer) SetDeepSamples(x, y, z, nsamples int) {
	if idx := b.deepIndex(x, y, z); idx >= 0 {
		b.deep.SetSamples(idx, nsamples)
	}
}

// DeepInsertSamples inserts nsamples zero samples at samplepos.
func (b *Buffer) DeepInsertSamples(x, y, z, samplepos, nsamples int) {
	if idx := b.deepIndex(x, y, z); idx >= 0 {
		b.deep.InsertSamples(idx, samplepos, nsamples)
	}
}

// DeepEraseSamples removes nsamples samples starting at samplepos.
func (b *Buffer) DeepEraseSamples(x, y, z, samplepos, nsamples int) {
	if idx := b.deepIndex(x, y, z); idx >= 0 {
		b.deep.EraseSamples(idx, samplepos, nsamples)
	}
}

// DeepValue returns sample s of channel c at (x,y,z), 0 when unavailable.
func (b *Buffer) DeepValue(x, y, z, c, s int) float32 {
	idx := b.deepIndex(x, y, z)
	if idx < 0 {
		return 0
	}
	return b.deep.Value(idx, c, s)
}

// SetDeepValue sets sample s of channel c at (x,y,z).
func (b *Buffer) SetDeepValue(x, y, z, c, s int, val float32) {
	if idx := b.deepIndex(x, y, z); idx >= 0 {
		b.deep.SetValue(idx, c, s, val)
	}
}

// CopyDeepPixel replaces the samples at (x,y,z) with those of (sx,sy,sz) in
// src. Returns false when either buffer is not deep or a coordinate is
// outside its data window.
func (b *Buffer) CopyDeepPixel(x, y, z int, src *Buffer, sx, sy, sz int) bool {
	idx := b.deepIndex(x, y, z)
	if idx < 0 || src == nil {
		return false
	}
	sidx := src.deepIndex(sx, sy, sz)
	if sidx < 0 {
		return false
	}
	return b.deep.CopyPixel(idx, src.deep, sidx)
}

// DeepDataPtr returns the underlying deep block, nil for non-deep buffers.
func (b *Buffer) DeepDataPtr() *DeepData {
	if !b.Deep() || !b.validatePixels() {
		return nil
	}
	return b.deep
}

// InitDeepData prepares an empty deep block sized to the current descriptor.
// Intended for buffers constructed from a deep spec rather than a file.
func (b *Buffer) InitDeepData() *DeepData {
	if !b.validateSpec() {
		return nil
	}
	if !b.spec.Deep {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.deep == nil {
		s := &b.spec
		npix := int64(s.Width) * int64(s.Height) * int64(s.Depth)
		b.deep = NewDeepData(npix, s.NChannels, s.ChannelFormats)
		b.storage = StorageLocal
		b.pixelsValid.Store(true)
	}
	return b.deep
}
