package tensorview

import "github.com/pkg/errors"

// ReadOnlyView3D is a read-only (d0, d1, d2) view over a flat buffer.
type ReadOnlyView3D struct {
	data  []float32
	shape [3]int
}

// NewReadOnlyView3D wraps data as a (d0, d1, d2) view. The buffer length must
// equal d0*d1*d2 and the product must fit in an int.
func NewReadOnlyView3D(data []float32, d0, d1, d2 int) (ReadOnlyView3D, error) {
	if d0 < 0 || d1 < 0 || d2 < 0 {
		return ReadOnlyView3D{}, errors.Wrapf(ErrShapeMismatch, "negative extent (%d, %d, %d)", d0, d1, d2)
	}
	if _, ok := elements(d0, d1, d2); !ok {
		return ReadOnlyView3D{}, errors.Wrapf(ErrShapeMismatch, "shape (%d, %d, %d) overflows", d0, d1, d2)
	}
	if len(data) != d0*d1*d2 {
		return ReadOnlyView3D{}, errors.Wrapf(ErrShapeMismatch,
			"buffer has %d elements, shape (%d, %d, %d) needs %d", len(data), d0, d1, d2, d0*d1*d2)
	}
	return ReadOnlyView3D{data: data, shape: [3]int{d0, d1, d2}}, nil
}

// At returns the element at (i, j, k).
func (v ReadOnlyView3D) At(i, j, k int) float32 {
	checkIndex(i, v.shape[0])
	checkIndex(j, v.shape[1])
	checkIndex(k, v.shape[2])
	return v.data[(i*v.shape[1]+j)*v.shape[2]+k]
}

// Row returns the innermost run at (i, j).
func (v ReadOnlyView3D) Row(i, j int) []float32 {
	checkIndex(i, v.shape[0])
	checkIndex(j, v.shape[1])
	start := (i*v.shape[1] + j) * v.shape[2]
	end := start + v.shape[2]
	return v.data[start:end:end]
}

// Plane returns the (d1, d2) plane at outer index i.
func (v ReadOnlyView3D) Plane(i int) ReadOnlyView2D {
	checkIndex(i, v.shape[0])
	size := v.shape[1] * v.shape[2]
	start := i * size
	return ReadOnlyView2D{data: v.data[start : start+size : start+size], rows: v.shape[1], cols: v.shape[2]}
}

// Shape returns (d0, d1, d2).
func (v ReadOnlyView3D) Shape() [3]int { return v.shape }

// Len returns the number of elements.
func (v ReadOnlyView3D) Len() int { return len(v.data) }

// Data returns the underlying flat buffer.
func (v ReadOnlyView3D) Data() []float32 { return v.data }

// View3D is a mutable (d0, d1, d2) view over a flat buffer. Only NewView3D
// builds one.
type View3D struct {
	ro ReadOnlyView3D
}

// NewView3D wraps data as a mutable (d0, d1, d2) view.
func NewView3D(data []float32, d0, d1, d2 int) (View3D, error) {
	ro, err := NewReadOnlyView3D(data, d0, d1, d2)
	if err != nil {
		return View3D{}, err
	}
	return View3D{ro: ro}, nil
}

// At returns the element at (i, j, k).
func (v View3D) At(i, j, k int) float32 { return v.ro.At(i, j, k) }

// Row returns the innermost run at (i, j).
func (v View3D) Row(i, j int) []float32 { return v.ro.Row(i, j) }

// Plane returns the read-only (d1, d2) plane at outer index i.
func (v View3D) Plane(i int) ReadOnlyView2D { return v.ro.Plane(i) }

// Shape returns (d0, d1, d2).
func (v View3D) Shape() [3]int { return v.ro.shape }

// Len returns the number of elements.
func (v View3D) Len() int { return v.ro.Len() }

// Data returns the underlying flat buffer.
func (v View3D) Data() []float32 { return v.ro.data }

// Set stores value at (i, j, k).
func (v View3D) Set(i, j, k int, value float32) {
	shape := v.ro.shape
	checkIndex(i, shape[0])
	checkIndex(j, shape[1])
	checkIndex(k, shape[2])
	v.ro.data[(i*shape[1]+j)*shape[2]+k] = value
}

// MutablePlane returns the (d1, d2) plane at outer index i for writing.
func (v View3D) MutablePlane(i int) View2D {
	return View2D{ro: v.ro.Plane(i)}
}

// ReadOnly narrows the view.
func (v View3D) ReadOnly() ReadOnlyView3D {
	return v.ro
}
