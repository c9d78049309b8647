package tensorview

import (
	"github.com/nvr-ai/go-postprocess/parallel"
	"github.com/pkg/errors"
)

// Transpose writes out[x][y] = in[y][x] for every valid index on the calling
// goroutine. out must be shaped (in.Cols(), in.Rows()) and must not share
// memory with in.
func Transpose(in ReadOnlyView2D, out View2D) error {
	return TransposeParallel(in, out, 1)
}

// TransposeParallel is Transpose split across output rows. Each goroutine
// writes a disjoint range of output rows and only reads the input, so no
// synchronization is needed beyond the final join.
//
// This is the layout conversion used to turn a channel-major (channels, anchors)
// detector output into anchor-major (anchors, channels) rows, which makes each
// anchor's channels contiguous for the decoder.
//
// Arguments:
//   - in: The (H, W) source view.
//   - out: The (W, H) destination view.
//   - workers: Number of goroutines (<= 0 means one per CPU).
//
// Returns:
//   - ErrShapeMismatch if out is not shaped (W, H).
//   - ErrAliased if out and in start at the same address.
//
// @example
// in, _ := NewReadOnlyView2D([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
// out, _ := NewView2D(make([]float32, 6), 3, 2)
// _ = TransposeParallel(in, out, 0) // out.Data() == [1 4 2 5 3 6]
func TransposeParallel(in ReadOnlyView2D, out View2D, workers int) error {
	dstView := out.ro
	if dstView.rows != in.cols || dstView.cols != in.rows {
		return errors.Wrapf(ErrShapeMismatch,
			"cannot transpose (%d, %d) into (%d, %d)", in.rows, in.cols, dstView.rows, dstView.cols)
	}
	if len(in.data) == 0 {
		return nil
	}
	if &in.data[0] == &dstView.data[0] {
		return ErrAliased
	}

	src, dst := in.data, dstView.data
	srcCols, dstCols := in.cols, dstView.cols

	parallel.For(dstView.rows, workers, func(start, end int) {
		for x := start; x < end; x++ {
			row := dst[x*dstCols : (x+1)*dstCols]
			for y := range row {
				row[y] = src[y*srcCols+x]
			}
		}
	})
	return nil
}
