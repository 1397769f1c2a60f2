package codec

import (
	"image"
	"io"

	"golang.org/x/image/bmp"

	"github.com/pspoerri/imgbuf"
)

func init() {
	imgbuf.RegisterInput("bmp", []string{"bmp"}, openWith(bmp.Decode))
	imgbuf.RegisterOutput("bmp", []string{"bmp"}, func() imgbuf.ImageOutput {
		return &stdOutput{encode: encodeBMP}
	})
}

func encodeBMP(w io.Writer, img image.Image, _ *imgbuf.ImageSpec) error {
	return bmp.Encode(w, img)
}
