package pix

// ConvertSpan converts n contiguous elements from src (type st) into dst
// (type dt). Same-type conversion degenerates to a copy. dst and src must not
// overlap unless the types are identical.
func ConvertSpan(dt Type, dst []byte, st Type, src []byte, n int) {
	if dt == st {
		copy(dst[:n*dt.Size()], src[:n*st.Size()])
		return
	}
	ConvertStrided(dt, dst, dt.Size(), st, src, st.Size(), n)
}

// ConvertStrided converts n elements with explicit byte strides between
// consecutive elements of dst and src. The hot pairs get dedicated loops; the
// rest funnel through the generic float32 path.
func ConvertStrided(dt Type, dst []byte, dstStride int, st Type, src []byte, srcStride int, n int) {
	switch {
	case st == dt:
		// Bytewise copy per element; GetFloat/PutFloat would lose precision
		// for 32-bit integer types.
		sz := st.Size()
		for i := 0; i < n; i++ {
			copy(dst[i*dstStride:i*dstStride+sz], src[i*srcStride:i*srcStride+sz])
		}
	case st == UInt8 && dt == Float:
		for i := 0; i < n; i++ {
			PutFloat(Float, dst[i*dstStride:], float32(src[i*srcStride])/255)
		}
	case st == Float && dt == UInt8:
		for i := 0; i < n; i++ {
			PutFloat(UInt8, dst[i*dstStride:], GetFloat(Float, src[i*srcStride:]))
		}
	case st == UInt16 && dt == Float:
		for i := 0; i < n; i++ {
			PutFloat(Float, dst[i*dstStride:], GetFloat(UInt16, src[i*srcStride:]))
		}
	case st == Float && dt == UInt16:
		for i := 0; i < n; i++ {
			PutFloat(UInt16, dst[i*dstStride:], GetFloat(Float, src[i*srcStride:]))
		}
	case st == Half && dt == Float:
		for i := 0; i < n; i++ {
			PutFloat(Float, dst[i*dstStride:], GetFloat(Half, src[i*srcStride:]))
		}
	case st == Float && dt == Half:
		for i := 0; i < n; i++ {
			PutFloat(Half, dst[i*dstStride:], GetFloat(Float, src[i*srcStride:]))
		}
	default:
		for i := 0; i < n; i++ {
			PutFloat(dt, dst[i*dstStride:], GetFloat(st, src[i*srcStride:]))
		}
	}
}
