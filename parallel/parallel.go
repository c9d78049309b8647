// Package parallel - partitions index ranges across goroutines.
package parallel

import (
	"runtime"
	"sync"
)

// Range is a half-open index range [Start, End).
type Range struct {
	Start, End int
}

// Len returns the number of indices in the range.
func (r Range) Len() int {
	return r.End - r.Start
}

// Workers resolves a requested worker count. Values <= 0 mean one worker per CPU.
func Workers(n int) int {
	if n <= 0 {
		return runtime.NumCPU()
	}
	return n
}

// Chunks splits [0, dataSize) into at most workers contiguous ranges of near
// equal size. The last range absorbs the remainder. Ranges are returned in
// index order and never empty.
//
// Arguments:
//   - dataSize: The number of indices to partition.
//   - workers: The maximum number of ranges (<= 0 means runtime.NumCPU()).
//
// Returns:
//   - The ranges, in order. Nil when dataSize <= 0.
//
// @example
// Chunks(10, 3) // [{0 3} {3 6} {6 10}]
func Chunks(dataSize, workers int) []Range {
	if dataSize <= 0 {
		return nil
	}
	workers = Workers(workers)
	if workers > dataSize {
		workers = dataSize
	}

	partSize := dataSize / workers
	ranges := make([]Range, workers)
	for i := range ranges {
		ranges[i].Start = i * partSize
		ranges[i].End = ranges[i].Start + partSize
	}
	ranges[workers-1].End = dataSize
	return ranges
}

// For executes fn across multiple goroutines, one per partition of [0, dataSize).
//
// Small inputs (fewer than two indices per worker) run serially on the calling
// goroutine. fn must not share mutable state across partitions.
//
// Arguments:
//   - dataSize: The size of the data to process.
//   - workers: Number of goroutines (<= 0 means runtime.NumCPU()).
//   - fn: Function to execute for each partition (receives start and end indices).
//
// @example
//
//	parallel.For(rows, 0, func(start, end int) {
//	    for y := start; y < end; y++ {
//	        // Process row y
//	    }
//	})
func For(dataSize, workers int, fn func(start, end int)) {
	workers = Workers(workers)
	if workers == 1 || dataSize < workers*2 {
		if dataSize > 0 {
			fn(0, dataSize)
		}
		return
	}

	ranges := Chunks(dataSize, workers)

	var wg sync.WaitGroup
	wg.Add(len(ranges))
	for _, r := range ranges {
		go func(start, end int) {
			defer wg.Done()
			fn(start, end)
		}(r.Start, r.End)
	}
	wg.Wait()
}

// ForEach runs fn once per range concurrently and waits for all of them.
// The index passed to fn is the position of the range in ranges.
func ForEach(ranges []Range, fn func(i int, r Range)) {
	if len(ranges) == 1 {
		fn(0, ranges[0])
		return
	}

	var wg sync.WaitGroup
	wg.Add(len(ranges))
	for i, r := range ranges {
		go func(i int, r Range) {
			defer wg.Done()
			fn(i, r)
		}(i, r)
	}
	wg.Wait()
}
