// Package codec provides format plugins for common raster formats, adapting
// the standard library image codecs, golang.org/x/image, and
// github.com/gen2brain/webp to the imgbuf input/output interfaces.
//
// Importing the package (usually blank) registers every codec:
//
//	import _ "github.com/pspoerri/imgbuf/codec"
package codec

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"os"

	"github.com/pspoerri/imgbuf"
	"github.com/pspoerri/imgbuf/pix"
)

// writeChunkRows is the scanline granularity between progress callbacks
// while converting pixels for encoding.
const writeChunkRows = 64

// stdInput adapts a decoded image.Image to imgbuf.ImageInput. All these
// formats hold a single subimage at a single level.
type stdInput struct {
	spec *imgbuf.ImageSpec
	img  image.Image
}

func newStdInput(img image.Image) *stdInput {
	b := img.Bounds()
	var nch int
	var format pix.Type
	switch img.(type) {
	case *image.Gray:
		nch, format = 1, pix.UInt8
	case *image.Gray16:
		nch, format = 1, pix.UInt16
	case *image.YCbCr:
		nch, format = 3, pix.UInt8
	case *image.NRGBA64, *image.RGBA64:
		nch, format = 4, pix.UInt16
	default:
		nch, format = 4, pix.UInt8
	}
	spec := imgbuf.NewImageSpec(b.Dx(), b.Dy(), nch, format)
	return &stdInput{spec: spec, img: img}
}

func (in *stdInput) Spec() *imgbuf.ImageSpec { return in.spec }

func (in *stdInput) SeekSubimage(subimage, miplevel int) bool {
	return subimage == 0 && miplevel == 0
}

func (in *stdInput) Close() error {
	in.img = nil
	return nil
}

// ReadImage converts the decoded image into dst in the requested element
// type, channel-interleaved.
func (in *stdInput) ReadImage(format pix.Type, dst []byte) error {
	if in.img == nil {
		return fmt.Errorf("codec: input already closed")
	}
	s := in.spec
	esz := format.Size()
	nch := s.NChannels
	bounds := in.img.Bounds()
	vals := make([]float32, nch)
	for y := 0; y < s.Height; y++ {
		for x := 0; x < s.Width; x++ {
			samplePixel(in.img, bounds.Min.X+x, bounds.Min.Y+y, vals)
			off := (y*s.Width + x) * nch * esz
			for c := 0; c < nch; c++ {
				pix.PutFloat(format, dst[off+c*esz:], vals[c])
			}
		}
	}
	return nil
}

// samplePixel extracts normalized channel values, using concrete image types
// where it matters and the generic color path otherwise.
func samplePixel(img image.Image, x, y int, vals []float32) {
	switch im := img.(type) {
	case *image.Gray:
		vals[0] = float32(im.GrayAt(x, y).Y) / 0xff
	case *image.Gray16:
		vals[0] = float32(im.Gray16At(x, y).Y) / 0xffff
	case *image.NRGBA:
		c := im.NRGBAAt(x, y)
		vals[0] = float32(c.R) / 0xff
		vals[1] = float32(c.G) / 0xff
		vals[2] = float32(c.B) / 0xff
		vals[3] = float32(c.A) / 0xff
	case *image.YCbCr:
		r, g, b, _ := im.At(x, y).RGBA()
		vals[0] = float32(r) / 0xffff
		vals[1] = float32(g) / 0xffff
		vals[2] = float32(b) / 0xffff
	default:
		c := color.NRGBA64Model.Convert(img.At(x, y)).(color.NRGBA64)
		vals[0] = float32(c.R) / 0xffff
		vals[1] = float32(c.G) / 0xffff
		vals[2] = float32(c.B) / 0xffff
		if len(vals) > 3 {
			vals[3] = float32(c.A) / 0xffff
		}
	}
}

// openFunc decodes a whole file into an image.Image.
type decodeFunc func(r io.Reader) (image.Image, error)

func openWith(decode decodeFunc) imgbuf.InputOpener {
	return func(name string) (imgbuf.ImageInput, error) {
		f, err := os.Open(name)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		img, err := decode(f)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", name, err)
		}
		return newStdInput(img), nil
	}
}

// encodeFunc writes an image.Image in a specific format. The spec carries
// format-specific attributes such as quality.
type encodeFunc func(w io.Writer, img image.Image, spec *imgbuf.ImageSpec) error

// stdOutput adapts an encodeFunc to imgbuf.ImageOutput.
type stdOutput struct {
	name   string
	spec   *imgbuf.ImageSpec
	encode encodeFunc
	// deep16 marks encoders that can keep 16-bit depth.
	deep16  bool
	written bool
}

func (out *stdOutput) Open(name string, spec *imgbuf.ImageSpec) error {
	if spec.Deep {
		return fmt.Errorf("codec: %s cannot store deep images", name)
	}
	if spec.NChannels < 1 || spec.NChannels > 4 {
		return fmt.Errorf("codec: %s cannot store %d channels", name, spec.NChannels)
	}
	out.name = name
	out.spec = spec.Copy()
	return nil
}

// WriteImage converts src into an image.Image in scanline chunks (invoking
// the progress callback between chunks; cancellation keeps what was
// converted) and encodes it to the target file.
func (out *stdOutput) WriteImage(format pix.Type, src []byte, progress imgbuf.ProgressCallback) error {
	if out.spec == nil {
		return fmt.Errorf("codec: WriteImage before Open")
	}
	s := out.spec
	img := out.newCanvas()
	esz := format.Size()
	nch := s.NChannels
	vals := make([]float32, 4)
	total := int64(s.Height)
	for y0 := 0; y0 < s.Height; y0 += writeChunkRows {
		y1 := y0 + writeChunkRows
		if y1 > s.Height {
			y1 = s.Height
		}
		for y := y0; y < y1; y++ {
			for x := 0; x < s.Width; x++ {
				off := (y*s.Width + x) * nch * esz
				for c := 0; c < nch; c++ {
					vals[c] = pix.GetFloat(format, src[off+c*esz:])
				}
				storePixel(img, x, y, nch, vals)
			}
		}
		if progress != nil && progress(int64(y1), total) {
			break // cancelled; encode what we have
		}
	}

	f, err := os.Create(out.name)
	if err != nil {
		return err
	}
	if err := out.encode(f, img, s); err != nil {
		f.Close()
		return fmt.Errorf("encoding %s: %w", out.name, err)
	}
	out.written = true
	return f.Close()
}

func (out *stdOutput) Close() error {
	out.spec = nil
	return nil
}

// newCanvas picks the draw target matching channel count and bit depth.
func (out *stdOutput) newCanvas() image.Image {
	s := out.spec
	r := image.Rect(0, 0, s.Width, s.Height)
	wide := out.deep16 && s.Format.Size() >= 2 && !s.Format.IsFloatingPoint()
	// Float sources keep 16 bits too when the encoder can.
	if out.deep16 && s.Format.IsFloatingPoint() {
		wide = true
	}
	if s.NChannels == 1 {
		if wide {
			return image.NewGray16(r)
		}
		return image.NewGray(r)
	}
	if wide {
		return image.NewNRGBA64(r)
	}
	return image.NewNRGBA(r)
}

func storePixel(img image.Image, x, y, nch int, vals []float32) {
	to8 := func(v float32) uint8 {
		return uint8(clamp01(v)*0xff + 0.5)
	}
	to16 := func(v float32) uint16 {
		return uint16(clamp01(v)*0xffff + 0.5)
	}
	r, g, b, a := spread(nch, vals)
	switch im := img.(type) {
	case *image.Gray:
		im.SetGray(x, y, color.Gray{Y: to8(r)})
	case *image.Gray16:
		im.SetGray16(x, y, color.Gray16{Y: to16(r)})
	case *image.NRGBA:
		im.SetNRGBA(x, y, color.NRGBA{R: to8(r), G: to8(g), B: to8(b), A: to8(a)})
	case *image.NRGBA64:
		im.SetNRGBA64(x, y, color.NRGBA64{R: to16(r), G: to16(g), B: to16(b), A: to16(a)})
	}
}

// spread maps 1..4 stored channels onto RGBA: gray replicates, missing alpha
// is opaque.
func spread(nch int, vals []float32) (r, g, b, a float32) {
	switch nch {
	case 1:
		return vals[0], vals[0], vals[0], 1
	case 2:
		return vals[0], vals[0], vals[0], vals[1]
	case 3:
		return vals[0], vals[1], vals[2], 1
	default:
		return vals[0], vals[1], vals[2], vals[3]
	}
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
