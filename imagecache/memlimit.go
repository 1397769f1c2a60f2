package imagecache

import (
	"log"
	"runtime"
)

// defaultMemoryFraction is the fraction of total RAM the tile cache may use
// when no explicit budget is configured.
const defaultMemoryFraction = 0.25

// fallbackLimit is used when RAM detection fails or yields too little.
const fallbackLimit = 256 * 1024 * 1024

// ComputeMemoryLimit returns the byte budget for cached tiles: a fraction of
// total system RAM minus the current Go heap overhead, so tile storage leaves
// headroom for decode buffers and the rest of the process.
func ComputeMemoryLimit(fraction float64, verbose bool) int64 {
	totalRAM, err := totalSystemRAM()
	if err != nil {
		if verbose {
			log.Printf("Cannot detect system RAM: %v; using %d MB tile budget", err, fallbackLimit/(1024*1024))
		}
		return fallbackLimit
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	overhead := int64(m.Sys)

	limit := int64(float64(totalRAM)*fraction) - overhead
	if limit < fallbackLimit {
		limit = fallbackLimit
	}
	if verbose {
		log.Printf("Tile cache budget: %.1f GB (%.0f%% of %.1f GB RAM minus %.1f MB heap overhead)",
			float64(limit)/(1024*1024*1024), fraction*100,
			float64(totalRAM)/(1024*1024*1024), float64(overhead)/(1024*1024))
	}
	return limit
}
