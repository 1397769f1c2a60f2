package imgbuf

import (
	"runtime"
	"sync"
)

// parallelRows partitions the half-open row range [begin,end) into contiguous
// chunks and runs fn on each from its own goroutine. Rows carry no inter-row
// dependency in the bulk copy paths, so the only synchronization is the final
// join.
func parallelRows(begin, end int, fn func(y0, y1 int)) {
	n := end - begin
	if n <= 0 {
		return
	}
	workers := runtime.NumCPU()
	if workers > n {
		workers = n
	}
	// Tiny ranges are cheaper on the calling goroutine.
	if workers <= 1 || n < 64 {
		fn(begin, end)
		return
	}
	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for y := begin; y < end; y += chunk {
		y1 := y + chunk
		if y1 > end {
			y1 = end
		}
		wg.Add(1)
		go func(a, b int) {
			defer wg.Done()
			fn(a, b)
		}(y, y1)
	}
	wg.Wait()
}
