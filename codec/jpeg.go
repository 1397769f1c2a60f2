package codec

import (
	"image"
	"image/jpeg"
	"io"

	"github.com/pspoerri/imgbuf"
)

func init() {
	imgbuf.RegisterInput("jpeg", []string{"jpg", "jpeg"}, openWith(jpeg.Decode))
	imgbuf.RegisterOutput("jpeg", []string{"jpg", "jpeg"}, func() imgbuf.ImageOutput {
		return &stdOutput{encode: encodeJPEG}
	})
}

func encodeJPEG(w io.Writer, img image.Image, spec *imgbuf.ImageSpec) error {
	quality := spec.AttrInt("jpeg:quality", 90)
	return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
}
