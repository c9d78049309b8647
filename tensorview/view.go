// Package tensorview - strided multi-dimensional access over flat float32 buffers.
//
// Views never own their buffer: the caller that owns the backing slice (usually
// the inference session) must keep it alive for as long as the view is in use.
// Layout is row-major, so the flat offset of (i, j, k) in a (d0, d1, d2) view is
// ((i*d1)+j)*d2 + k.
package tensorview

import (
	"math"

	"github.com/pkg/errors"
)

// ReadOnlyView2D is a read-only (rows, cols) view over a flat buffer.
type ReadOnlyView2D struct {
	data       []float32
	rows, cols int
}

// NewReadOnlyView2D wraps data as a (rows, cols) view.
//
// Arguments:
//   - data: The flat row-major buffer. Its length must equal rows*cols.
//   - rows: The first (outer) extent.
//   - cols: The second (inner) extent.
//
// Returns:
//   - The view.
//   - ErrShapeMismatch if the buffer length does not match the shape or the
//     element count overflows int.
//
// @example
// v, err := NewReadOnlyView2D([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
// v.At(1, 0) // 4
func NewReadOnlyView2D(data []float32, rows, cols int) (ReadOnlyView2D, error) {
	if rows < 0 || cols < 0 {
		return ReadOnlyView2D{}, errors.Wrapf(ErrShapeMismatch, "negative extent (%d, %d)", rows, cols)
	}
	if _, ok := elements(rows, cols); !ok {
		return ReadOnlyView2D{}, errors.Wrapf(ErrShapeMismatch, "shape (%d, %d) overflows", rows, cols)
	}
	if len(data) != rows*cols {
		return ReadOnlyView2D{}, errors.Wrapf(ErrShapeMismatch,
			"buffer has %d elements, shape (%d, %d) needs %d", len(data), rows, cols, rows*cols)
	}
	return ReadOnlyView2D{data: data, rows: rows, cols: cols}, nil
}

// At returns the element at row i, column j.
func (v ReadOnlyView2D) At(i, j int) float32 {
	checkIndex(i, v.rows)
	checkIndex(j, v.cols)
	return v.data[i*v.cols+j]
}

// Row returns row i. The slice aliases the view's buffer and its capacity is
// clipped to the row, so appends never spill into the next row. Callers must
// not write through it.
func (v ReadOnlyView2D) Row(i int) []float32 {
	checkIndex(i, v.rows)
	start := i * v.cols
	end := start + v.cols
	return v.data[start:end:end]
}

// Rows returns the first extent.
func (v ReadOnlyView2D) Rows() int { return v.rows }

// Cols returns the second extent.
func (v ReadOnlyView2D) Cols() int { return v.cols }

// Shape returns (rows, cols).
func (v ReadOnlyView2D) Shape() [2]int { return [2]int{v.rows, v.cols} }

// Len returns the number of elements.
func (v ReadOnlyView2D) Len() int { return len(v.data) }

// Data returns the underlying flat buffer.
func (v ReadOnlyView2D) Data() []float32 { return v.data }

// View2D is a mutable (rows, cols) view over a flat buffer. The read-only view
// is held unexported, so NewView2D is the only way to get one.
type View2D struct {
	ro ReadOnlyView2D
}

// NewView2D wraps data as a mutable (rows, cols) view.
func NewView2D(data []float32, rows, cols int) (View2D, error) {
	ro, err := NewReadOnlyView2D(data, rows, cols)
	if err != nil {
		return View2D{}, err
	}
	return View2D{ro: ro}, nil
}

// At returns the element at row i, column j.
func (v View2D) At(i, j int) float32 { return v.ro.At(i, j) }

// Row returns row i, capacity clipped like ReadOnlyView2D.Row.
func (v View2D) Row(i int) []float32 { return v.ro.Row(i) }

// Rows returns the first extent.
func (v View2D) Rows() int { return v.ro.rows }

// Cols returns the second extent.
func (v View2D) Cols() int { return v.ro.cols }

// Shape returns (rows, cols).
func (v View2D) Shape() [2]int { return v.ro.Shape() }

// Len returns the number of elements.
func (v View2D) Len() int { return v.ro.Len() }

// Data returns the underlying flat buffer.
func (v View2D) Data() []float32 { return v.ro.data }

// Set stores value at row i, column j.
func (v View2D) Set(i, j int, value float32) {
	checkIndex(i, v.ro.rows)
	checkIndex(j, v.ro.cols)
	v.ro.data[i*v.ro.cols+j] = value
}

// MutableRow returns row i for writing.
func (v View2D) MutableRow(i int) []float32 {
	return v.ro.Row(i)
}

// ReadOnly narrows the view. There is no way back.
func (v View2D) ReadOnly() ReadOnlyView2D {
	return v.ro
}

// elements returns the product of non-negative extents, or false if it does
// not fit in an int.
func elements(dims ...int) (int, bool) {
	n := 1
	for _, d := range dims {
		if d != 0 && n > math.MaxInt/d {
			return 0, false
		}
		n *= d
	}
	return n, true
}
