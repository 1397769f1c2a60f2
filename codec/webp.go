package codec

import (
	"image"
	"io"

	"github.com/gen2brain/webp"

	"github.com/pspoerri/imgbuf"
)

// The WebP codec is pure Go (WASM-based); it uses a system libwebp via purego
// when one is available, otherwise falls back to the bundled WASM build.
func init() {
	imgbuf.RegisterInput("webp", []string{"webp"}, openWith(webp.Decode))
	imgbuf.RegisterOutput("webp", []string{"webp"}, func() imgbuf.ImageOutput {
		return &stdOutput{encode: encodeWebP}
	})
}

func encodeWebP(w io.Writer, img image.Image, spec *imgbuf.ImageSpec) error {
	quality := spec.AttrInt("webp:quality", 85)
	opts := webp.Options{
		Lossless: spec.AttrInt("webp:lossless", 0) != 0,
		Quality:  quality,
	}
	return webp.Encode(w, img, opts)
}
