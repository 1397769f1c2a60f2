package imgbuf

import (
	"fmt"

	"github.com/pspoerri/imgbuf/pix"
)

// LocalPixels returns the buffer's pixel bytes when storage is local or
// wrapped app memory, nil otherwise (including cache-backed buffers).
func (b *Buffer) LocalPixels() []byte {
	if b.storage.IsLocalLike() {
		return b.pixels
	}
	return nil
}

// PixelAddress returns the byte offset of channel ch of pixel (x,y,z) within
// LocalPixels, or -1 when the buffer is not local or the coordinate lies
// outside the data window.
func (b *Buffer) PixelAddress(x, y, z, ch int) int64 {
	if !b.storage.IsLocalLike() || !b.pixelsValid.Load() {
		return -1
	}
	s := &b.spec
	idx := s.PixelIndex(x, y, z)
	if idx < 0 || ch < 0 || ch >= s.NChannels {
		return -1
	}
	return idx*int64(s.PixelBytes()) + int64(s.ChannelByteOffset(ch))
}

// GetPixel reads pixel (x,y,z) into vals as float32, converting from the
// stored representation. Out-of-window coordinates are resolved per wrap; if
// still outside the data window afterwards, vals is zero-filled. Fills at
// most min(len(vals), NChannels) entries; the rest are zeroed.
func (b *Buffer) GetPixel(x, y, z int, vals []float32, wrap WrapMode) {
	clear(vals)
	if !b.validatePixels() {
		return
	}
	s := &b.spec
	if s.Deep {
		return
	}
	if !s.ROI().Contains(x, y, z) {
		var ok bool
		x, y, z, ok = b.doWrap(x, y, z, wrap)
		if !ok {
			return
		}
	}
	n := len(vals)
	if n > s.NChannels {
		n = s.NChannels
	}
	if b.storage.IsLocalLike() {
		b.getPixelLocal(x, y, z, vals[:n])
		return
	}
	b.getPixelCached(x, y, z, vals[:n])
}

// GetChannel reads one channel of pixel (x,y,z), 0 for out-of-range channels.
func (b *Buffer) GetChannel(x, y, z, c int, wrap WrapMode) float32 {
	if c < 0 || c >= b.Spec().NChannels {
		return 0
	}
	scratch := make([]float32, c+1)
	b.GetPixel(x, y, z, scratch, wrap)
	return scratch[c]
}

func (b *Buffer) getPixelLocal(x, y, z int, vals []float32) {
	s := &b.spec
	base := s.PixelIndex(x, y, z) * int64(s.PixelBytes())
	for c := range vals {
		t := s.ChannelFormat(c)
		vals[c] = pix.GetFloat(t, b.pixels[base+int64(s.ChannelByteOffset(c)):])
	}
}

func (b *Buffer) getPixelCached(x, y, z int, vals []float32) {
	cache := b.cacheOrDefault()
	if cache == nil {
		return
	}
	tile, err := cache.Tile(b.name, b.subimage, b.miplevel, x, y, z)
	if err != nil {
		b.recordErr(err)
		return
	}
	defer tile.Release()
	tr := tile.ROI()
	t := tile.Format()
	esz := t.Size()
	nch := b.spec.NChannels
	idx := (int64(z-tr.ZBegin)*int64(tr.Height())+int64(y-tr.YBegin))*int64(tr.Width()) + int64(x-tr.XBegin)
	base := idx * int64(nch) * int64(esz)
	pixels := tile.Pixels()
	for c := range vals {
		vals[c] = pix.GetFloat(t, pixels[base+int64(c*esz):])
	}
}

// SetPixel writes vals into pixel (x,y,z), converting to the stored
// representation. A cache-backed buffer is promoted to local storage first so
// the mutation cannot be lost to a refetch. Coordinates outside the data
// window are a silent no-op returning false.
func (b *Buffer) SetPixel(x, y, z int, vals []float32) bool {
	if !b.validatePixels() || b.spec.Deep {
		return false
	}
	if !b.makeWritable() {
		return false
	}
	s := &b.spec
	if !s.ROI().Contains(x, y, z) {
		return false
	}
	n := len(vals)
	if n > s.NChannels {
		n = s.NChannels
	}
	base := s.PixelIndex(x, y, z) * int64(s.PixelBytes())
	for c := 0; c < n; c++ {
		t := s.ChannelFormat(c)
		pix.PutFloat(t, b.pixels[base+int64(s.ChannelByteOffset(c)):], vals[c])
	}
	return true
}

// clipChannels bounds the roi's channel range to the spec and substitutes the
// data window for undefined regions.
func (b *Buffer) clipRequest(roi ROI) ROI {
	s := &b.spec
	if !roi.Defined() {
		roi = s.ROI()
	}
	if roi.ChEnd <= roi.ChBegin || roi.ChEnd > s.NChannels {
		roi.ChEnd = s.NChannels
	}
	if roi.ChBegin < 0 {
		roi.ChBegin = 0
	}
	return roi
}

// GetPixels copies the region into dst as a contiguous, channel-interleaved
// block of the requested element type, laid out per the requested roi.
// Portions of the roi outside the pixel data window come back zero-filled.
// Local buffers take a row-parallel strided conversion fast path; cache-backed
// buffers fetch rows through the cache collaborator.
func (b *Buffer) GetPixels(roi ROI, format pix.Type, dst []byte) error {
	if !b.validatePixels() {
		return fmt.Errorf("imgbuf: GetPixels on a buffer with no valid pixels")
	}
	if b.spec.Deep {
		return fmt.Errorf("imgbuf: GetPixels not supported on deep buffers")
	}
	roi = b.clipRequest(roi)
	if !roi.Defined() {
		return nil
	}
	s := &b.spec
	nch := roi.NChannels()
	esz := format.Size()
	pixBytes := nch * esz
	rowBytes := roi.Width() * pixBytes
	need := int64(rowBytes) * int64(roi.Height()) * int64(roi.Depth())
	if int64(len(dst)) < need {
		return fmt.Errorf("imgbuf: GetPixels destination holds %d bytes, need %d", len(dst), need)
	}
	dw := s.ROI()
	cache := b.cacheOrDefault()

	rowRange := func(z, y0, y1 int) error {
		for y := y0; y < y1; y++ {
			dstRow := dst[(int64(z-roi.ZBegin)*int64(roi.Height())+int64(y-roi.YBegin))*int64(rowBytes):]
			dstRow = dstRow[:rowBytes]
			if z < dw.ZBegin || z >= dw.ZEnd || y < dw.YBegin || y >= dw.YEnd {
				clear(dstRow)
				continue
			}
			xlo := maxi(roi.XBegin, dw.XBegin)
			xhi := mini(roi.XEnd, dw.XEnd)
			if xlo >= xhi {
				clear(dstRow)
				continue
			}
			clear(dstRow[:(xlo-roi.XBegin)*pixBytes])
			clear(dstRow[(xhi-roi.XBegin)*pixBytes:])
			span := dstRow[(xlo-roi.XBegin)*pixBytes : (xhi-roi.XBegin)*pixBytes]
			if b.storage.IsLocalLike() {
				b.getRowLocal(span, format, xlo, xhi, y, z, roi.ChBegin, roi.ChEnd)
			} else if cache != nil {
				chunk := ROI{XBegin: xlo, XEnd: xhi, YBegin: y, YEnd: y + 1,
					ZBegin: z, ZEnd: z + 1, ChBegin: roi.ChBegin, ChEnd: roi.ChEnd}
				if err := cache.GetPixels(b.name, b.subimage, b.miplevel, chunk, format, span); err != nil {
					return b.recordErr(err)
				}
			}
		}
		return nil
	}

	if b.storage.IsLocalLike() {
		// Rows are independent; partition them across workers.
		for z := roi.ZBegin; z < roi.ZEnd; z++ {
			z := z
			parallelRows(roi.YBegin, roi.YEnd, func(y0, y1 int) {
				rowRange(z, y0, y1)
			})
		}
		return nil
	}
	// Cache fetches are I/O bound and can fail; keep them sequential.
	for z := roi.ZBegin; z < roi.ZEnd; z++ {
		if err := rowRange(z, roi.YBegin, roi.YEnd); err != nil {
			return err
		}
	}
	return nil
}

func (b *Buffer) getRowLocal(dst []byte, format pix.Type, xlo, xhi, y, z, chbegin, chend int) {
	s := &b.spec
	srcPixBytes := s.PixelBytes()
	base := s.PixelIndex(xlo, y, z) * int64(srcPixBytes)
	uniform := len(s.ChannelFormats) == 0

	if uniform && chbegin == 0 && chend == s.NChannels {
		// Full channel range, one stored type: the whole row is one
		// contiguous span of elements.
		n := (xhi - xlo) * s.NChannels
		pix.ConvertSpan(format, dst, s.Format, b.pixels[base:], n)
		return
	}
	esz := format.Size()
	nch := chend - chbegin
	for x := 0; x < xhi-xlo; x++ {
		srcPix := b.pixels[base+int64(x*srcPixBytes):]
		dstPix := dst[x*nch*esz:]
		for c := chbegin; c < chend; c++ {
			t := s.ChannelFormat(c)
			v := pix.GetFloat(t, srcPix[s.ChannelByteOffset(c):])
			pix.PutFloat(format, dstPix[(c-chbegin)*esz:], v)
		}
	}
}

// SetPixels writes a contiguous, channel-interleaved block of the given
// element type into the region. The roi is clipped to the data window;
// source pixels falling outside it are silently skipped. Cache-backed buffers
// are promoted to local storage first.
func (b *Buffer) SetPixels(roi ROI, format pix.Type, src []byte) error {
	if !b.validatePixels() {
		return fmt.Errorf("imgbuf: SetPixels on a buffer with no valid pixels")
	}
	if b.spec.Deep {
		return fmt.Errorf("imgbuf: SetPixels not supported on deep buffers")
	}
	if !b.makeWritable() {
		return fmt.Errorf("imgbuf: cannot promote buffer to writable local storage")
	}
	roi = b.clipRequest(roi)
	if !roi.Defined() {
		return nil
	}
	s := &b.spec
	nch := roi.NChannels()
	esz := format.Size()
	pixBytes := nch * esz
	rowBytes := roi.Width() * pixBytes
	dw := s.ROI()
	dstPixBytes := s.PixelBytes()
	uniform := len(s.ChannelFormats) == 0

	for z := roi.ZBegin; z < roi.ZEnd; z++ {
		if z < dw.ZBegin || z >= dw.ZEnd {
			continue
		}
		z := z
		y0 := maxi(roi.YBegin, dw.YBegin)
		y1 := mini(roi.YEnd, dw.YEnd)
		parallelRows(y0, y1, func(ya, yb int) {
			for y := ya; y < yb; y++ {
				srcRow := src[(int64(z-roi.ZBegin)*int64(roi.Height())+int64(y-roi.YBegin))*int64(rowBytes):]
				xlo := maxi(roi.XBegin, dw.XBegin)
				xhi := mini(roi.XEnd, dw.XEnd)
				if xlo >= xhi {
					continue
				}
				srcSpan := srcRow[(xlo-roi.XBegin)*pixBytes:]
				base := s.PixelIndex(xlo, y, z) * int64(dstPixBytes)
				if uniform && roi.ChBegin == 0 && roi.ChEnd == s.NChannels {
					n := (xhi - xlo) * s.NChannels
					pix.ConvertSpan(s.Format, b.pixels[base:], format, srcSpan, n)
					continue
				}
				for x := 0; x < xhi-xlo; x++ {
					dstPix := b.pixels[base+int64(x*dstPixBytes):]
					srcPix := srcSpan[x*pixBytes:]
					for c := roi.ChBegin; c < roi.ChEnd; c++ {
						t := s.ChannelFormat(c)
						v := pix.GetFloat(format, srcPix[(c-roi.ChBegin)*esz:])
						pix.PutFloat(t, dstPix[s.ChannelByteOffset(c):], v)
					}
				}
			}
		})
	}
	return nil
}

// ZeroFill sets every local pixel to zero, promoting cache-backed buffers.
func (b *Buffer) ZeroFill() bool {
	if !b.validatePixels() || !b.makeWritable() {
		return false
	}
	clear(b.pixels)
	return true
}
