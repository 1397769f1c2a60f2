package codec

import (
	"image"
	"io"

	"golang.org/x/image/tiff"

	"github.com/pspoerri/imgbuf"
)

func init() {
	imgbuf.RegisterInput("tiff", []string{"tif", "tiff"}, openWith(tiff.Decode))
	imgbuf.RegisterOutput("tiff", []string{"tif", "tiff"}, func() imgbuf.ImageOutput {
		return &stdOutput{encode: encodeTIFF, deep16: true}
	})
}

func encodeTIFF(w io.Writer, img image.Image, spec *imgbuf.ImageSpec) error {
	opts := &tiff.Options{Compression: tiff.Deflate, Predictor: true}
	if spec.AttrString("tiff:compression", "") == "none" {
		opts.Compression = tiff.Uncompressed
	}
	return tiff.Encode(w, img, opts)
}
