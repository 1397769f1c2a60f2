package imgbuf

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ChannelStats summarizes one channel's values over a region.
type ChannelStats struct {
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64
}

// ComputeStats gathers per-channel Min/Max/Mean/StdDev over roi (the data
// window when undefined). Returns false for buffers with no valid pixels or
// deep buffers.
func ComputeStats(b *Buffer, roi ROI) ([]ChannelStats, bool) {
	if !b.validatePixels() || b.Deep() {
		return nil, false
	}
	roi = b.clipRequest(roi)
	if !roi.Defined() {
		return nil, false
	}
	nch := roi.NChannels()
	npix := roi.NPixels()
	samples := make([][]float64, nch)
	for c := range samples {
		samples[c] = make([]float64, 0, npix)
	}
	for it := NewConstIterator(b, roi, WrapBlack); !it.Done(); it.Next() {
		for c := 0; c < nch; c++ {
			samples[c] = append(samples[c], float64(it.Get(roi.ChBegin+c)))
		}
	}
	out := make([]ChannelStats, nch)
	for c := range out {
		s := samples[c]
		if len(s) == 0 {
			continue
		}
		out[c] = ChannelStats{
			Min:    floats.Min(s),
			Max:    floats.Max(s),
			Mean:   stat.Mean(s, nil),
			StdDev: stat.StdDev(s, nil),
		}
	}
	return out, true
}
