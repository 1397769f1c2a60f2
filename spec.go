package imgbuf

import (
	"fmt"

	"github.com/pspoerri/imgbuf/pix"
)

// ImageSpec describes an image's geometry, channel layout, pixel type, tiling,
// and named metadata attributes. The pixel data window (X/Y/Z + dimensions)
// may differ from the full/display window (FullX...), which is the logical
// frame used for wrap-mode boundary math.
type ImageSpec struct {
	X, Y, Z             int // data window origin
	Width, Height, Depth int
	FullX, FullY, FullZ int // display window origin
	FullWidth           int
	FullHeight          int
	FullDepth           int

	NChannels    int
	ChannelNames []string

	// Format is the pixel element type for all channels unless
	// ChannelFormats overrides it per channel.
	Format         pix.Type
	ChannelFormats []pix.Type

	// Tile dimensions; 0 means scanline orientation.
	TileWidth  int
	TileHeight int
	TileDepth  int

	// Deep marks variable-samples-per-pixel storage.
	Deep bool

	attrs attrList
}

// NewImageSpec builds a 2D spec with the data and display windows both at the
// origin, default channel names, and a uniform pixel format.
func NewImageSpec(width, height, nchannels int, format pix.Type) *ImageSpec {
	s := &ImageSpec{
		Width: width, Height: height, Depth: 1,
		FullWidth: width, FullHeight: height, FullDepth: 1,
		NChannels: nchannels,
		Format:    format,
	}
	s.ChannelNames = DefaultChannelNames(nchannels)
	return s
}

// DefaultChannelNames returns R,G,B,A for the first four channels and
// "channel%d" beyond that.
func DefaultChannelNames(nchannels int) []string {
	rgba := [4]string{"R", "G", "B", "A"}
	names := make([]string, nchannels)
	for i := range names {
		if i < 4 {
			names[i] = rgba[i]
		} else {
			names[i] = fmt.Sprintf("channel%d", i)
		}
	}
	return names
}

// ChannelFormat returns the pixel type of channel c, falling back to the
// whole-image format when no per-channel override exists.
func (s *ImageSpec) ChannelFormat(c int) pix.Type {
	if c >= 0 && c < len(s.ChannelFormats) && s.ChannelFormats[c].IsValid() {
		return s.ChannelFormats[c]
	}
	return s.Format
}

// SetFormat sets a uniform pixel format, dropping per-channel overrides.
func (s *ImageSpec) SetFormat(t pix.Type) {
	s.Format = t
	s.ChannelFormats = nil
}

// PixelBytes returns the byte size of one whole pixel (all channels).
func (s *ImageSpec) PixelBytes() int {
	if len(s.ChannelFormats) == 0 {
		return s.NChannels * s.Format.Size()
	}
	n := 0
	for c := 0; c < s.NChannels; c++ {
		n += s.ChannelFormat(c).Size()
	}
	return n
}

// ChannelByteOffset returns the byte offset of channel c within a pixel.
func (s *ImageSpec) ChannelByteOffset(c int) int {
	if len(s.ChannelFormats) == 0 {
		return c * s.Format.Size()
	}
	n := 0
	for i := 0; i < c; i++ {
		n += s.ChannelFormat(i).Size()
	}
	return n
}

// ScanlineBytes returns the byte size of one scanline.
func (s *ImageSpec) ScanlineBytes() int64 {
	return int64(s.Width) * int64(s.PixelBytes())
}

// PlaneBytes returns the byte size of one z plane.
func (s *ImageSpec) PlaneBytes() int64 {
	return s.ScanlineBytes() * int64(s.Height)
}

// ImageBytes returns the byte size of the whole pixel data window.
func (s *ImageSpec) ImageBytes() int64 {
	return s.PlaneBytes() * int64(s.Depth)
}

// ROI returns the pixel data window with the full channel range.
func (s *ImageSpec) ROI() ROI {
	return ROI{
		XBegin: s.X, XEnd: s.X + s.Width,
		YBegin: s.Y, YEnd: s.Y + s.Height,
		ZBegin: s.Z, ZEnd: s.Z + s.Depth,
		ChBegin: 0, ChEnd: s.NChannels,
	}
}

// ROIFull returns the full/display window with the full channel range.
func (s *ImageSpec) ROIFull() ROI {
	return ROI{
		XBegin: s.FullX, XEnd: s.FullX + s.FullWidth,
		YBegin: s.FullY, YEnd: s.FullY + s.FullHeight,
		ZBegin: s.FullZ, ZEnd: s.FullZ + s.FullDepth,
		ChBegin: 0, ChEnd: s.NChannels,
	}
}

// SetROI moves the data window to cover r (channels are unaffected).
func (s *ImageSpec) SetROI(r ROI) {
	s.X, s.Y, s.Z = r.XBegin, r.YBegin, r.ZBegin
	s.Width, s.Height, s.Depth = r.Width(), r.Height(), r.Depth()
}

// SetROIFull moves the display window to cover r.
func (s *ImageSpec) SetROIFull(r ROI) {
	s.FullX, s.FullY, s.FullZ = r.XBegin, r.YBegin, r.ZBegin
	s.FullWidth, s.FullHeight, s.FullDepth = r.Width(), r.Height(), r.Depth()
}

// PixelIndex returns the origin-relative linear index of (x,y,z), or -1 when
// the coordinate lies outside the data window. Deep data blocks and local
// address math share this ordering.
func (s *ImageSpec) PixelIndex(x, y, z int) int64 {
	x -= s.X
	y -= s.Y
	z -= s.Z
	if x < 0 || x >= s.Width || y < 0 || y >= s.Height || z < 0 || z >= s.Depth {
		return -1
	}
	return (int64(z)*int64(s.Height)+int64(y))*int64(s.Width) + int64(x)
}

// CopyDimensions copies geometry, channel count, formats, tiling, and the
// deep flag from src, leaving channel names and attributes alone.
func (s *ImageSpec) CopyDimensions(src *ImageSpec) {
	s.X, s.Y, s.Z = src.X, src.Y, src.Z
	s.Width, s.Height, s.Depth = src.Width, src.Height, src.Depth
	s.FullX, s.FullY, s.FullZ = src.FullX, src.FullY, src.FullZ
	s.FullWidth, s.FullHeight, s.FullDepth = src.FullWidth, src.FullHeight, src.FullDepth
	s.TileWidth, s.TileHeight, s.TileDepth = src.TileWidth, src.TileHeight, src.TileDepth
	s.NChannels = src.NChannels
	s.Format = src.Format
	s.ChannelFormats = append([]pix.Type(nil), src.ChannelFormats...)
	s.Deep = src.Deep
}

// Copy returns a deep copy of the spec, including attributes.
func (s *ImageSpec) Copy() *ImageSpec {
	dup := *s
	dup.ChannelNames = append([]string(nil), s.ChannelNames...)
	dup.ChannelFormats = append([]pix.Type(nil), s.ChannelFormats...)
	dup.attrs = s.attrs.copy()
	return &dup
}
