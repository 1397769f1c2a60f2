package imgbuf

import "fmt"

// ROI is a half-open rectangular region of interest in 3D image space plus a
// channel range: [XBegin,XEnd) x [YBegin,YEnd) x [ZBegin,ZEnd) over channels
// [ChBegin,ChEnd). It is a plain value type; all operations return new values.
type ROI struct {
	XBegin, XEnd int
	YBegin, YEnd int
	ZBegin, ZEnd int
	ChBegin      int
	ChEnd        int
}

// NewROI builds a 2D region covering z in [0,1) and channels [0,nchannels).
func NewROI(xbegin, xend, ybegin, yend, nchannels int) ROI {
	return ROI{
		XBegin: xbegin, XEnd: xend,
		YBegin: ybegin, YEnd: yend,
		ZBegin: 0, ZEnd: 1,
		ChBegin: 0, ChEnd: nchannels,
	}
}

// Defined reports whether the region spans at least one pixel on every
// spatial axis.
func (r ROI) Defined() bool {
	return r.XEnd > r.XBegin && r.YEnd > r.YBegin && r.ZEnd > r.ZBegin
}

// Width returns the x extent.
func (r ROI) Width() int { return r.XEnd - r.XBegin }

// Height returns the y extent.
func (r ROI) Height() int { return r.YEnd - r.YBegin }

// Depth returns the z extent.
func (r ROI) Depth() int { return r.ZEnd - r.ZBegin }

// NChannels returns the channel extent.
func (r ROI) NChannels() int { return r.ChEnd - r.ChBegin }

// NPixels returns the number of pixels covered, 0 when undefined.
func (r ROI) NPixels() int64 {
	if !r.Defined() {
		return 0
	}
	return int64(r.Width()) * int64(r.Height()) * int64(r.Depth())
}

// Contains reports whether the pixel coordinate lies inside the region.
func (r ROI) Contains(x, y, z int) bool {
	return x >= r.XBegin && x < r.XEnd &&
		y >= r.YBegin && y < r.YEnd &&
		z >= r.ZBegin && z < r.ZEnd
}

// ContainsROI reports whether other lies entirely within r. Both regions must
// be defined.
func (r ROI) ContainsROI(other ROI) bool {
	if !r.Defined() || !other.Defined() {
		return false
	}
	return other.XBegin >= r.XBegin && other.XEnd <= r.XEnd &&
		other.YBegin >= r.YBegin && other.YEnd <= r.YEnd &&
		other.ZBegin >= r.ZBegin && other.ZEnd <= r.ZEnd &&
		other.ChBegin >= r.ChBegin && other.ChEnd <= r.ChEnd
}

// Intersection returns the region common to a and b. The result is undefined
// (zero extent on some axis) when they do not overlap.
func Intersection(a, b ROI) ROI {
	return ROI{
		XBegin: maxi(a.XBegin, b.XBegin), XEnd: mini(a.XEnd, b.XEnd),
		YBegin: maxi(a.YBegin, b.YBegin), YEnd: mini(a.YEnd, b.YEnd),
		ZBegin: maxi(a.ZBegin, b.ZBegin), ZEnd: mini(a.ZEnd, b.ZEnd),
		ChBegin: maxi(a.ChBegin, b.ChBegin), ChEnd: mini(a.ChEnd, b.ChEnd),
	}
}

// Union returns the smallest region containing both a and b.
func Union(a, b ROI) ROI {
	switch {
	case !a.Defined():
		return b
	case !b.Defined():
		return a
	}
	return ROI{
		XBegin: mini(a.XBegin, b.XBegin), XEnd: maxi(a.XEnd, b.XEnd),
		YBegin: mini(a.YBegin, b.YBegin), YEnd: maxi(a.YEnd, b.YEnd),
		ZBegin: mini(a.ZBegin, b.ZBegin), ZEnd: maxi(a.ZEnd, b.ZEnd),
		ChBegin: mini(a.ChBegin, b.ChBegin), ChEnd: maxi(a.ChEnd, b.ChEnd),
	}
}

// String formats the region as "x[0,4) y[0,4) z[0,1) ch[0,3)".
func (r ROI) String() string {
	return fmt.Sprintf("x[%d,%d) y[%d,%d) z[%d,%d) ch[%d,%d)",
		r.XBegin, r.XEnd, r.YBegin, r.YEnd, r.ZBegin, r.ZEnd, r.ChBegin, r.ChEnd)
}

func mini(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxi(a, b int) int {
	if a > b {
		return a
	}
	return b
}
