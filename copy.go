package imgbuf

import (
	"fmt"

	"github.com/pspoerri/imgbuf/pix"
)

// CopyPixels copies pixel values from src into b over the geometric
// intersection of the two pixel data windows, converting element types as
// needed. If the intersection covers less than b's own window, b is
// zero-filled first so non-overlapping pixels come out zero. Deep buffers are
// not supported.
func (b *Buffer) CopyPixels(src *Buffer) bool {
	if b == src {
		return true
	}
	if b.Deep() || src.Deep() {
		return false
	}
	if !b.validatePixels() || !src.validatePixels() {
		return false
	}

	myroi := b.spec.ROI()
	inter := Intersection(myroi, src.spec.ROI())
	if inter != myroi {
		if !b.ZeroFill() {
			return false
		}
	}
	if !inter.Defined() || inter.NChannels() <= 0 {
		return true
	}

	// Convert through the destination's own format, row by row via bulk
	// accessors; both ends handle cache-backed storage transparently.
	tmp := make([]byte, int64(inter.Width())*int64(inter.Height())*int64(inter.Depth())*
		int64(inter.NChannels())*int64(b.spec.Format.Size()))
	if err := src.GetPixels(inter, b.spec.Format, tmp); err != nil {
		b.recordErr(err)
		return false
	}
	if err := b.SetPixels(inter, b.spec.Format, tmp); err != nil {
		return false
	}
	return true
}

// Copy turns b into a copy of src: pixels are fully re-materialized, the
// descriptor and metadata are duplicated, and the pixel format is overridden
// when format is a valid type. An uninitialized src clears b.
func (b *Buffer) Copy(src *Buffer, format pix.Type) error {
	if b == src {
		return nil
	}
	if src.Storage() == StorageUninitialized {
		b.Clear()
		return nil
	}
	if !src.validatePixels() {
		return fmt.Errorf("imgbuf: Copy source has no valid pixels: %s", src.GetError(false))
	}
	if src.Deep() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.clearLocked()
		b.name = src.name
		b.spec = *src.Spec().Copy()
		b.nativeSpec = *src.NativeSpec().Copy()
		b.deep = src.deep.Copy()
		b.storage = StorageLocal
		b.specValid.Store(true)
		b.pixelsValid.Store(true)
		return nil
	}

	newspec := src.Spec().Copy()
	if format.IsValid() {
		newspec.SetFormat(format)
	}
	b.ResetSpec(newspec)
	if b.Storage() == StorageUninitialized {
		return fmt.Errorf("imgbuf: Copy allocation failed: %s", b.GetError(false))
	}
	b.name = src.name
	b.nativeSpec = *src.NativeSpec().Copy()
	if !b.CopyPixels(src) {
		return fmt.Errorf("imgbuf: CopyPixels failed: %s", b.GetError(false))
	}
	return nil
}

// Clone duplicates the buffer. Owned local memory is duplicated into newly
// allocated storage (two buffers never alias owned memory); wrapped app
// memory is shared with the clone; cache-backed buffers stay cache-backed
// without copying bytes.
func (b *Buffer) Clone() *Buffer {
	switch b.storage {
	case StorageUninitialized:
		return New()
	case StorageApp:
		dup, err := Wrap(b.spec.Copy(), b.pixels)
		if err != nil {
			return New()
		}
		dup.name = b.name
		dup.nativeSpec = *b.nativeSpec.Copy()
		return dup
	case StorageCache:
		dup := NewBufferFile(b.name, b.subimage, b.miplevel, b.cache)
		if err := dup.Read(b.subimage, b.miplevel, false, pix.Unknown, nil); err != nil {
			dup.Errorf("imgbuf: clone of %q: %v", b.name, err)
		}
		return dup
	}
	// Local: duplicate bytes.
	dup := NewBufferSpec(b.spec.Copy())
	if dup.Storage() == StorageUninitialized {
		return dup // allocation failure already recorded on dup
	}
	dup.name = b.name
	dup.fileFormat = b.fileFormat
	dup.subimage, dup.miplevel = b.subimage, b.miplevel
	dup.nativeSpec = *b.nativeSpec.Copy()
	if b.deep != nil {
		dup.deep = b.deep.Copy()
	}
	copy(dup.pixels, b.pixels)
	return dup
}
