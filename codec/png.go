package codec

import (
	"image"
	"image/png"
	"io"

	"github.com/pspoerri/imgbuf"
)

func init() {
	imgbuf.RegisterInput("png", []string{"png"}, openWith(png.Decode))
	imgbuf.RegisterOutput("png", []string{"png"}, func() imgbuf.ImageOutput {
		return &stdOutput{encode: encodePNG, deep16: true}
	})
}

func encodePNG(w io.Writer, img image.Image, spec *imgbuf.ImageSpec) error {
	level := png.BestSpeed
	if spec.AttrString("png:compression", "") == "best" {
		level = png.BestCompression
	}
	enc := &png.Encoder{CompressionLevel: level}
	return enc.Encode(w, img)
}
