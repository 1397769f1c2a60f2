package imgbuf

import "github.com/pspoerri/imgbuf/pix"

// DeepData holds variable-samples-per-pixel image data: every pixel carries
// its own sample count, and each channel stores one value per sample. Pixels
// are addressed by the origin-relative linear index the owning buffer
// computes. Values are held as float32 regardless of the declared channel
// types, which are retained for write-back fidelity.
type DeepData struct {
	npixels      int64
	nchannels    int
	channelTypes []pix.Type

	nsamples []int       // per-pixel sample count
	values   [][]float32 // indexed pixel*nchannels + channel, len == nsamples[pixel]
}

// NewDeepData creates an empty deep block for npixels pixels of nchannels
// channels, all sample counts zero. channelTypes may be nil (defaults to
// float).
func NewDeepData(npixels int64, nchannels int, channelTypes []pix.Type) *DeepData {
	if channelTypes == nil {
		channelTypes = make([]pix.Type, nchannels)
		for i := range channelTypes {
			channelTypes[i] = pix.Float
		}
	}
	return &DeepData{
		npixels:      npixels,
		nchannels:    nchannels,
		channelTypes: append([]pix.Type(nil), channelTypes...),
		nsamples:     make([]int, npixels),
		values:       make([][]float32, npixels*int64(nchannels)),
	}
}

// NPixels returns the pixel count the block was sized for.
func (d *DeepData) NPixels() int64 { return d.npixels }

// NChannels returns the channel count.
func (d *DeepData) NChannels() int { return d.nchannels }

// ChannelType returns the declared element type of channel c.
func (d *DeepData) ChannelType(c int) pix.Type {
	if c < 0 || c >= len(d.channelTypes) {
		return pix.Unknown
	}
	return d.channelTypes[c]
}

func (d *DeepData) validPixel(pixel int64) bool {
	return d != nil && pixel >= 0 && pixel < d.npixels
}

// Samples returns the sample count of a pixel, 0 for out-of-range indices.
func (d *DeepData) Samples(pixel int64) int {
	if !d.validPixel(pixel) {
		return 0
	}
	return d.nsamples[pixel]
}

// SetSamples resizes a pixel's sample storage to n across all channels.
// Existing samples are kept up to the new count; grown samples are zero.
func (d *DeepData) SetSamples(pixel int64, n int) {
	if !d.validPixel(pixel) || n < 0 {
		return
	}
	for c := 0; c < d.nchannels; c++ {
		i := pixel*int64(d.nchannels) + int64(c)
		old := d.values[i]
		if n <= len(old) {
			d.values[i] = old[:n]
			continue
		}
		grown := make([]float32, n)
		copy(grown, old)
		d.values[i] = grown
	}
	d.nsamples[pixel] = n
}

// InsertSamples inserts n zero samples at position pos within a pixel.
func (d *DeepData) InsertSamples(pixel int64, pos, n int) {
	if !d.validPixel(pixel) || n <= 0 {
		return
	}
	cur := d.nsamples[pixel]
	if pos < 0 {
		pos = 0
	}
	if pos > cur {
		pos = cur
	}
	for c := 0; c < d.nchannels; c++ {
		i := pixel*int64(d.nchannels) + int64(c)
		old := d.values[i]
		grown := make([]float32, cur+n)
		copy(grown, old[:pos])
		copy(grown[pos+n:], old[pos:])
		d.values[i] = grown
	}
	d.nsamples[pixel] = cur + n
}

// EraseSamples removes n samples starting at pos within a pixel.
func (d *DeepData) EraseSamples(pixel int64, pos, n int) {
	if !d.validPixel(pixel) || n <= 0 {
		return
	}
	cur := d.nsamples[pixel]
	if pos < 0 || pos >= cur {
		return
	}
	if pos+n > cur {
		n = cur - pos
	}
	for c := 0; c < d.nchannels; c++ {
		i := pixel*int64(d.nchannels) + int64(c)
		old := d.values[i]
		d.values[i] = append(old[:pos], old[pos+n:]...)
	}
	d.nsamples[pixel] = cur - n
}

// Value returns sample s of channel c of a pixel, 0 when out of range.
func (d *DeepData) Value(pixel int64, c, s int) float32 {
	if !d.validPixel(pixel) || c < 0 || c >= d.nchannels {
		return 0
	}
	v := d.values[pixel*int64(d.nchannels)+int64(c)]
	if s < 0 || s >= len(v) {
		return 0
	}
	return v[s]
}

// SetValue sets sample s of channel c of a pixel; out-of-range indices are a
// no-op.
func (d *DeepData) SetValue(pixel int64, c, s int, val float32) {
	if !d.validPixel(pixel) || c < 0 || c >= d.nchannels {
		return
	}
	v := d.values[pixel*int64(d.nchannels)+int64(c)]
	if s < 0 || s >= len(v) {
		return
	}
	v[s] = val
}

// CopyPixel replaces a pixel's samples with those of srcPixel in src. The
// channel counts must match; returns false otherwise.
func (d *DeepData) CopyPixel(pixel int64, src *DeepData, srcPixel int64) bool {
	if !d.validPixel(pixel) || src == nil || !src.validPixel(srcPixel) {
		return false
	}
	if d.nchannels != src.nchannels {
		return false
	}
	n := src.nsamples[srcPixel]
	d.SetSamples(pixel, n)
	for c := 0; c < d.nchannels; c++ {
		copy(d.values[pixel*int64(d.nchannels)+int64(c)],
			src.values[srcPixel*int64(src.nchannels)+int64(c)])
	}
	return true
}

// Copy returns a deep copy of the block.
func (d *DeepData) Copy() *DeepData {
	if d == nil {
		return nil
	}
	dup := NewDeepData(d.npixels, d.nchannels, d.channelTypes)
	copy(dup.nsamples, d.nsamples)
	for i, v := range d.values {
		dup.values[i] = append([]float32(nil), v...)
	}
	return dup
}
