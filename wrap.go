package imgbuf

// WrapMode decides how pixel accesses outside the data window are resolved.
// Resolution happens against the full/display window; afterwards the
// coordinate is re-tested against the data window and, if still outside, the
// access degrades to a zero-valued pixel.
type WrapMode uint8

const (
	// WrapBlack performs no coordinate remapping; out-of-window reads yield
	// zero pixels.
	WrapBlack WrapMode = iota

	// WrapClamp saturates each axis to the full-window bounds.
	WrapClamp

	// WrapPeriodic wraps modulo the full-window extent.
	WrapPeriodic

	// WrapMirror reflects at the full-window boundaries.
	WrapMirror
)

var wrapNames = []string{"black", "clamp", "periodic", "mirror"}

// String returns the lowercase wrap mode name.
func (w WrapMode) String() string {
	if int(w) < len(wrapNames) {
		return wrapNames[w]
	}
	return "invalid"
}

// WrapModeFromString parses a wrap mode name; unknown names map to WrapBlack.
func WrapModeFromString(name string) WrapMode {
	for i, n := range wrapNames {
		if n == name {
			return WrapMode(i)
		}
	}
	return WrapBlack
}

func wrapPeriodic(coord, origin, width int) int {
	if width <= 0 {
		return origin
	}
	v := (coord - origin) % width
	if v < 0 {
		v += width
	}
	return origin + v
}

func wrapMirror(coord, origin, width int) int {
	if width <= 0 {
		return origin
	}
	i := coord - origin
	period := 2 * width
	i %= period
	if i < 0 {
		i += period
	}
	if i >= width {
		i = period - 1 - i
	}
	return origin + i
}

func clampi(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// doWrap resolves an out-of-window coordinate per the wrap mode against the
// full/display window, then reports whether the resolved coordinate lies
// inside the pixel data window.
func (b *Buffer) doWrap(x, y, z int, wrap WrapMode) (int, int, int, bool) {
	s := b.Spec()
	switch wrap {
	case WrapBlack:
		// No remapping; still outside.
		return x, y, z, false
	case WrapClamp:
		x = clampi(x, s.FullX, s.FullX+s.FullWidth-1)
		y = clampi(y, s.FullY, s.FullY+s.FullHeight-1)
		z = clampi(z, s.FullZ, s.FullZ+s.FullDepth-1)
	case WrapPeriodic:
		x = wrapPeriodic(x, s.FullX, s.FullWidth)
		y = wrapPeriodic(y, s.FullY, s.FullHeight)
		z = wrapPeriodic(z, s.FullZ, s.FullDepth)
	case WrapMirror:
		x = wrapMirror(x, s.FullX, s.FullWidth)
		y = wrapMirror(y, s.FullY, s.FullHeight)
		z = wrapMirror(z, s.FullZ, s.FullDepth)
	default:
		return x, y, z, false
	}
	inside := x >= s.X && x < s.X+s.Width &&
		y >= s.Y && y < s.Y+s.Height &&
		z >= s.Z && z < s.Z+s.Depth
	return x, y, z, inside
}
